package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hlrcheck/hlr-batch/internal/app"
	"github.com/hlrcheck/hlr-batch/internal/config"
	"github.com/hlrcheck/hlr-batch/internal/hlr"
)

var checkHeadless bool

func init() {
	checkCmd.Flags().BoolVar(&checkHeadless, "headless", true, "Run the browser headless")
	rootCmd.AddCommand(checkCmd)
}

var checkCmd = &cobra.Command{
	Use:   "check <msisdn>",
	Short: "Look up a single number and print the raw result.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(func(cfg *config.Config) {
			if cmd.Flags().Changed("headless") {
				cfg.Browser.Headless = &checkHeadless
			}
		})
		if err != nil {
			return err
		}
		s, err := openSession(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer s.cleanup()

		res, err := app.CheckOne(cmd.Context(), s.rt, args[0])
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		_, _ = fmt.Fprintf(out, "provider: %s\nhlr:      %s\nok:       %t\n\n%s\n",
			hlr.Value(res.Provider), hlr.Value(res.LocationCode), res.Succeeded, res.RawText)
		if !res.Succeeded {
			return fmt.Errorf("lookup for %s did not succeed", args[0])
		}
		return nil
	},
}
