package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/cardano-foundation/node-supervisor/internal/config"
)

// controlURL builds the base URL of a running supervisor's control surface
// from settings, for the status/restart/kill CLI subcommands.
func controlURL(settings *config.Settings, path string) string {
	return "http://" + settings.MetricsAddr + path
}

func newStatusCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print the running supervisor's lifecycle state",
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := config.Load(*configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			body, err := controlGet(cmd.Context(), controlURL(settings, "/status"))
			if err != nil {
				return err
			}
			fmt.Println(string(body))
			return nil
		},
	}
}

func newRestartCommand(configPath *string) *cobra.Command {
	var forced bool
	cmd := &cobra.Command{
		Use:   "restart",
		Short: "Restart the daemon via the running supervisor's control surface",
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := config.Load(*configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			path := "/control/restart"
			if forced {
				path += "?forced=true"
			}
			body, err := controlPost(cmd.Context(), controlURL(settings, path))
			if err != nil {
				return err
			}
			fmt.Println(string(body))
			return nil
		},
	}
	cmd.Flags().BoolVar(&forced, "forced", false, "bypass the UNRECOVERABLE lockout")
	return cmd
}

func newKillCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "kill",
		Short: "Forcibly kill the daemon via the running supervisor's control surface",
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := config.Load(*configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			body, err := controlPost(cmd.Context(), controlURL(settings, "/control/kill"))
			if err != nil {
				return err
			}
			fmt.Println(string(body))
			return nil
		},
	}
}

func controlGet(ctx context.Context, url string) ([]byte, error) {
	return doControlRequest(ctx, http.MethodGet, url)
}

func controlPost(ctx context.Context, url string) ([]byte, error) {
	return doControlRequest(ctx, http.MethodPost, url)
}

func doControlRequest(ctx context.Context, method, url string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s %s: %w", method, url, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("%s %s: %s", method, url, string(body))
	}
	return body, nil
}
