package main

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/steveiliop56/tinyprovider/internal/bootstrap"
	"github.com/steveiliop56/tinyprovider/internal/config"
	"github.com/steveiliop56/tinyprovider/internal/repository"
	"github.com/steveiliop56/tinyprovider/internal/service"
	"github.com/steveiliop56/tinyprovider/internal/utils"
	"github.com/steveiliop56/tinyprovider/internal/utils/tlog"

	"github.com/charmbracelet/huh"
	"github.com/traefik/paerser/cli"
)

type ClientCmdConfig struct {
	DatabasePath string   `description:"The path to the database file."`
	Interactive  bool     `description:"Register the client interactively."`
	Name         string   `description:"Client name."`
	RedirectURIs []string `description:"Comma-separated list of redirect URIs."`
}

func NewClientCmdConfig() *ClientCmdConfig {
	return &ClientCmdConfig{
		DatabasePath: config.NewDefaultConfiguration().DatabasePath,
	}
}

func clientCmd() *cli.Command {
	cmd := &cli.Command{
		Name:          "client",
		Description:   "Manage registered OAuth clients",
		Configuration: nil,
		Resources:     nil,
		Run: func(_ []string) error {
			return errors.New("use tinyprovider client create or tinyprovider client delete")
		},
	}

	// AddCommand only fails on a nil command
	_ = cmd.AddCommand(createClientCmd())
	_ = cmd.AddCommand(deleteClientCmd())

	return cmd
}

func setupClientServices(cfg *ClientCmdConfig) (*service.ClientService, *service.ProviderService, error) {
	db, err := bootstrap.NewBootstrapApp(config.Config{}).SetupDatabase(cfg.DatabasePath)

	if err != nil {
		return nil, nil, err
	}

	providerService := service.NewProviderService(service.ProviderServiceConfig{
		Database: db,
	})

	if err := providerService.Init(); err != nil {
		return nil, nil, err
	}

	clientService := service.NewClientService(service.ClientServiceConfig{
		Database: db,
	}, service.NewRandomTokenGenerator())

	if err := clientService.Init(); err != nil {
		return nil, nil, err
	}

	return clientService, providerService, nil
}

func createClientCmd() *cli.Command {
	tCfg := NewClientCmdConfig()

	loaders := []cli.ResourceLoader{
		&cli.FlagLoader{},
	}

	return &cli.Command{
		Name:          "create",
		Description:   "Register a new OAuth client",
		Configuration: tCfg,
		Resources:     loaders,
		Run: func(_ []string) error {
			tlog.NewSimpleLogger().Init()

			if tCfg.Interactive {
				var redirectURIs string

				form := huh.NewForm(
					huh.NewGroup(
						huh.NewInput().Title("Name").Value(&tCfg.Name).Validate((func(s string) error {
							if strings.TrimSpace(s) == "" {
								return errors.New("name cannot be empty")
							}
							return nil
						})),
						huh.NewText().Title("Redirect URIs, one per line").Value(&redirectURIs).Validate((func(s string) error {
							if strings.TrimSpace(s) == "" {
								return errors.New("redirect uris cannot be empty")
							}
							return nil
						})),
					),
				)

				var baseTheme *huh.Theme = huh.ThemeBase()

				err := form.WithTheme(baseTheme).Run()

				if err != nil {
					return fmt.Errorf("failed to run interactive prompt: %w", err)
				}

				tCfg.RedirectURIs = strings.Split(redirectURIs, "\n")
			}

			redirectURIs, err := parseRedirectURIs(tCfg.RedirectURIs)

			if err != nil {
				return err
			}

			clients, providers, err := setupClientServices(tCfg)

			if err != nil {
				return fmt.Errorf("failed to setup services: %w", err)
			}

			ctx := context.Background()

			provider, err := providers.Instance(ctx)

			if err != nil {
				return fmt.Errorf("failed to load provider: %w", err)
			}

			client, err := clients.Create(ctx, service.ClientInput{
				Name:        tCfg.Name,
				RedirectURI: utils.JoinLines(redirectURIs),
				Owner:       provider,
			})

			if err != nil {
				return err
			}

			if err := client.Errors.Err(); err != nil {
				return fmt.Errorf("invalid client: %w", err)
			}

			lname := strings.ToLower(client.Name)

			builder := strings.Builder{}

			fmt.Fprintf(&builder, "Created client %s\n\n", client.Name)

			fmt.Fprintf(&builder, "Client ID: %s\n", client.ClientID)
			fmt.Fprintf(&builder, "Client Secret: %s\n\n", client.ClientSecret)

			fmt.Fprint(&builder, "To keep the client in your configuration instead, use the CLI flags:\n\n")
			fmt.Fprintf(&builder, "--clients.%s.clientid=%s\n", lname, client.ClientID)
			fmt.Fprintf(&builder, "--clients.%s.clientsecret=%s\n", lname, client.ClientSecret)
			fmt.Fprintf(&builder, "--clients.%s.name=%s\n", lname, utils.Capitalize(lname))
			fmt.Fprintf(&builder, "--clients.%s.redirecturis=%s\n\n", lname, strings.Join(client.RedirectURIs(), ","))

			fmt.Fprintln(&builder, "Make sure to save the secret, only a hash of it is stored.")

			fmt.Print(builder.String())
			return nil
		},
	}
}

// parseRedirectURIs trims the entries and requires each to be an absolute URI. The flag is split on
// commas, so a URI holding a comma in its query ends up as a relative piece and is refused.
func parseRedirectURIs(entries []string) ([]string, error) {
	uris := []string{}

	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		uri, err := url.Parse(entry)
		if err != nil || !uri.IsAbs() {
			return nil, fmt.Errorf("redirect uri %q is not an absolute uri, use --interactive for uris containing commas", entry)
		}

		uris = append(uris, entry)
	}

	if len(uris) == 0 {
		return nil, errors.New("at least one redirect uri is required")
	}

	return uris, nil
}

func deleteClientCmd() *cli.Command {
	tCfg := NewClientCmdConfig()

	loaders := []cli.ResourceLoader{
		&cli.FlagLoader{},
	}

	return &cli.Command{
		Name:          "delete",
		Description:   "Delete a client and every grant issued to it",
		Configuration: tCfg,
		Resources:     loaders,
		AllowArg:      true,
		Run: func(args []string) error {
			tlog.NewSimpleLogger().Init()

			if len(args) == 0 {
				return errors.New("client id is required. use tinyprovider client delete <client-id>")
			}

			clients, _, err := setupClientServices(tCfg)

			if err != nil {
				return fmt.Errorf("failed to setup services: %w", err)
			}

			ctx := context.Background()

			client, err := clients.GetClient(ctx, args[0])

			if errors.Is(err, repository.ErrNotFound) {
				return fmt.Errorf("client %s not found", args[0])
			}

			if err != nil {
				return err
			}

			count, err := clients.Destroy(ctx, client)

			if err != nil {
				return err
			}

			tlog.App.Info().Str("clientId", client.ClientID).Int64("authorizations", count).Msg("Client deleted")

			return nil
		},
	}
}
