package commands

import (
	"github.com/spf13/cobra"

	"github.com/hlrcheck/hlr-batch/internal/app"
	"github.com/hlrcheck/hlr-batch/internal/config"
)

var runFlags struct {
	all       bool
	scheduled bool
	inputDir  string
	outputDir string
	mode      string
	suffix    string
	store     string
	proxy     string
	headless  bool
	useProxy  bool
}

func init() {
	f := runCmd.Flags()
	f.BoolVar(&runFlags.all, "all", false, "Process every pending input file in name order (default)")
	f.BoolVar(&runFlags.scheduled, "scheduled", false, "Process the one pending file picked by the current minute")
	f.StringVar(&runFlags.inputDir, "input-dir", "", "Directory of input tables (env: HLR_INPUT_DIR)")
	f.StringVar(&runFlags.outputDir, "output-dir", "", "Directory of output tables (env: HLR_OUTPUT_DIR)")
	f.StringVar(&runFlags.mode, "mode", "", "Input mode: auto, prefix or msisdn (env: HLR_INPUT_MODE)")
	f.StringVar(&runFlags.suffix, "suffix", "", "Prefix suffix policy: random or fixed (env: HLR_SUFFIX)")
	f.StringVar(&runFlags.store, "store", "", "Job status store: file or sqlite (env: HLR_STORE)")
	f.StringVar(&runFlags.proxy, "proxy", "", "Route the browser through this proxy server (env: HLR_PROXY)")
	f.BoolVar(&runFlags.headless, "headless", true, "Run the browser headless (env: HLR_HEADLESS)")
	f.BoolVar(&runFlags.useProxy, "use-proxy", false, "Pick a random proxy from the proxy file (env: HLR_USE_PROXY)")
	runCmd.MarkFlagsMutuallyExclusive("all", "scheduled")
	rootCmd.AddCommand(runCmd)
}

var runCmd = &cobra.Command{
	Use:   "run [--all|--scheduled]",
	Short: "Look up every row of the pending input files.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(runOverrides(cmd))
		if err != nil {
			return err
		}
		s, err := openSession(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer s.cleanup()

		if runFlags.scheduled {
			_, err = app.RunScheduled(cmd.Context(), s.rt)
			return err
		}
		_, err = app.RunAll(cmd.Context(), s.rt)
		return err
	},
}

func runOverrides(cmd *cobra.Command) func(*config.Config) {
	changed := cmd.Flags().Changed
	return func(cfg *config.Config) {
		if changed("input-dir") {
			cfg.Jobs.InputDir = runFlags.inputDir
		}
		if changed("output-dir") {
			cfg.Jobs.OutputDir = runFlags.outputDir
		}
		if changed("mode") {
			cfg.Batch.InputMode = runFlags.mode
		}
		if changed("suffix") {
			cfg.Batch.Suffix = runFlags.suffix
		}
		if changed("store") {
			cfg.Jobs.Store = runFlags.store
		}
		if changed("proxy") {
			cfg.Browser.Proxy = runFlags.proxy
		}
		if changed("headless") {
			cfg.Browser.Headless = &runFlags.headless
		}
		if changed("use-proxy") {
			cfg.Browser.UseProxy = &runFlags.useProxy
		}
	}
}
