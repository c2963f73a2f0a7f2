package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/steveiliop56/tinyprovider/internal/utils/tlog"

	"github.com/cenkalti/backoff/v5"
	"github.com/traefik/paerser/cli"
)

type healthResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func healthcheckCmd() *cli.Command {
	return &cli.Command{
		Name:          "healthcheck",
		Description:   "Perform a health check",
		Configuration: nil,
		Resources:     nil,
		AllowArg:      true,
		Run: func(args []string) error {
			tlog.NewSimpleLogger().Init()

			appURL := os.Getenv("TINYPROVIDER_APPURL")

			if len(args) > 0 {
				appURL = args[0]
			}

			if appURL == "" {
				return errors.New("TINYPROVIDER_APPURL is not set and no argument was provided")
			}

			tlog.App.Info().Str("app_url", appURL).Msg("Performing health check")

			client := http.Client{
				Timeout: 10 * time.Second,
			}

			exp := backoff.NewExponentialBackOff()
			exp.InitialInterval = 500 * time.Millisecond
			exp.RandomizationFactor = 0.1
			exp.Multiplier = 1.5
			exp.Reset()

			operation := func() (healthResponse, error) {
				return checkHealth(&client, appURL+"/api/health")
			}

			healthResp, err := backoff.Retry(context.Background(), operation, backoff.WithBackOff(exp), backoff.WithMaxTries(3))

			if err != nil {
				return err
			}

			tlog.App.Info().Interface("response", healthResp).Msg("Tinyprovider is healthy")

			return nil
		},
	}
}

func checkHealth(client *http.Client, url string) (healthResponse, error) {
	var healthResp healthResponse

	req, err := http.NewRequest("GET", url, nil)

	if err != nil {
		return healthResp, backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
	}

	resp, err := client.Do(req)

	if err != nil {
		return healthResp, fmt.Errorf("failed to perform request: %w", err)
	}

	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return healthResp, fmt.Errorf("service is not healthy, got: %s", resp.Status)
	}

	body, err := io.ReadAll(resp.Body)

	if err != nil {
		return healthResp, fmt.Errorf("failed to read response: %w", err)
	}

	err = json.Unmarshal(body, &healthResp)

	if err != nil {
		return healthResp, backoff.Permanent(fmt.Errorf("failed to decode response: %w", err))
	}

	return healthResp, nil
}
