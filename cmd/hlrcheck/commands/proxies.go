package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hlrcheck/hlr-batch/internal/proxy"
)

var proxiesCmd = &cobra.Command{
	Use:   "proxies",
	Short: "Manage the proxy list the browser may route through.",
}

var proxiesUpdateCmd = &cobra.Command{
	Use:   "update",
	Short: "Download a fresh proxy list and replace the proxy file.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger := newLogger()

		client := proxy.NewClient(cfg.Proxy.SourceURL)
		entries, err := client.Fetch(cmd.Context())
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			return fmt.Errorf("%w from %s; keeping %s", proxy.ErrNoProxies, client.SourceURL(), cfg.Proxy.File)
		}
		if err := proxy.Save(cfg.Proxy.File, entries); err != nil {
			return err
		}
		logger.Printf("proxy list updated: entries=%d file=%s", len(entries), cfg.Proxy.File)
		return nil
	},
}

func init() {
	proxiesCmd.AddCommand(proxiesUpdateCmd)
	rootCmd.AddCommand(proxiesCmd)
}
