package loaders

import (
	"fmt"
	"os"
	"strings"

	"github.com/steveiliop56/tinyprovider/internal/config"

	"github.com/rs/zerolog/log"
	"github.com/traefik/paerser/cli"
	"github.com/traefik/paerser/env"
	"github.com/traefik/paerser/file"
	"github.com/traefik/paerser/flag"
)

// paerser names the root of every flag tree "traefik"
const configFileFlag = "traefik.experimental.configFile"

// FileLoader decodes a YAML or TOML file named by --experimental.configFile.
type FileLoader struct{}

func (f *FileLoader) Load(args []string, cmd *cli.Command) (bool, error) {
	flags, err := flag.Parse(args, cmd.Configuration)

	if err != nil {
		return false, err
	}

	path := ""

	for key, value := range flags {
		if strings.EqualFold(key, configFileFlag) {
			path = value
		}
	}

	if path == "" {
		return false, nil
	}

	log.Warn().Str("path", path).Msg("Loading configuration from file, this loader is experimental")

	if err := file.Decode(path, cmd.Configuration); err != nil {
		return false, fmt.Errorf("failed to decode configuration file: %w", err)
	}

	return true, nil
}

type FlagLoader struct{}

func (*FlagLoader) Load(args []string, cmd *cli.Command) (bool, error) {
	if len(args) == 0 {
		return false, nil
	}

	if err := flag.Decode(args, cmd.Configuration); err != nil {
		return false, fmt.Errorf("failed to decode configuration from flags: %w", err)
	}

	return true, nil
}

// EnvLoader decodes TINYPROVIDER_ prefixed variables, e.g. TINYPROVIDER_OAUTH_TOKENEXPIRY.
type EnvLoader struct{}

func (e *EnvLoader) Load(_ []string, cmd *cli.Command) (bool, error) {
	vars := env.FindPrefixedEnvVars(os.Environ(), config.DefaultNamePrefix, cmd.Configuration)

	if len(vars) == 0 {
		return false, nil
	}

	if err := env.Decode(vars, config.DefaultNamePrefix, cmd.Configuration); err != nil {
		return false, fmt.Errorf("failed to decode configuration from environment variables: %w", err)
	}

	return true, nil
}
