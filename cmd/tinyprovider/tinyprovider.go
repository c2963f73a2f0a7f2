package main

import (
	"fmt"

	"github.com/steveiliop56/tinyprovider/internal/bootstrap"
	"github.com/steveiliop56/tinyprovider/internal/config"
	"github.com/steveiliop56/tinyprovider/internal/utils/loaders"
	"github.com/steveiliop56/tinyprovider/internal/utils/tlog"

	"github.com/rs/zerolog/log"
	"github.com/traefik/paerser/cli"
)

func main() {
	tConfig := config.NewDefaultConfiguration()

	loaders := []cli.ResourceLoader{
		&loaders.FileLoader{},
		&loaders.FlagLoader{},
		&loaders.EnvLoader{},
	}

	cmdTinyprovider := &cli.Command{
		Name:          "tinyprovider",
		Description:   "A small OAuth2 authorization server for your self-hosted apps.",
		Configuration: tConfig,
		Resources:     loaders,
		Run: func(_ []string) error {
			return runCmd(*tConfig)
		},
	}

	err := cmdTinyprovider.AddCommand(versionCmd())

	if err != nil {
		log.Fatal().Err(err).Msg("Failed to add version command")
	}

	err = cmdTinyprovider.AddCommand(healthcheckCmd())

	if err != nil {
		log.Fatal().Err(err).Msg("Failed to add healthcheck command")
	}

	err = cmdTinyprovider.AddCommand(clientCmd())

	if err != nil {
		log.Fatal().Err(err).Msg("Failed to add client command")
	}

	err = cli.Execute(cmdTinyprovider)

	if err != nil {
		log.Fatal().Err(err).Msg("Failed to execute command")
	}
}

func runCmd(cfg config.Config) error {
	tlog.NewLogger(cfg.Log).Init()

	tlog.App.Info().Str("version", config.Version).Msg("Starting tinyprovider")

	app := bootstrap.NewBootstrapApp(cfg)

	err := app.Setup()

	if err != nil {
		return fmt.Errorf("failed to bootstrap app: %w", err)
	}

	return nil
}
