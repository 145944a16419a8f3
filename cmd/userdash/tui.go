package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/odyssey-erp/userdash/internal/app"
	"github.com/odyssey-erp/userdash/internal/tui"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Open the dashboard in the terminal against a running proxy",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := app.LoadClientConfig()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if proxyURL, _ := cmd.Flags().GetString("proxy-url"); proxyURL != "" {
			cfg.ProxyURL = proxyURL
		}
		return tui.Run(cmd.Context(), cfg)
	},
}

func init() {
	tuiCmd.Flags().String("proxy-url", "", "Proxy base URL (overrides PROXY_URL)")
}
