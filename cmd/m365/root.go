// m365 is a pipeline-composable CLI for Microsoft 365 mail and drive
// operations. Stages exchange record lists as JSON on stdin/stdout, so
// built-ins and external scripts compose with '>' and '%':
//
//	m365 run 'search_attachments --query invoice > save_attachments % --dst out'
//	m365 run 'search_emails --query release > for_each % ./notify.sh'
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"m365/internal/config"
	"m365/internal/logging"
)

// version is set at build time via -ldflags.
var version = "dev"

// cfg is loaded once in the root PersistentPreRunE; every subcommand reads
// from it.
var cfg config.Config

// exitCode lets subcommands request a specific process exit status; main
// applies it after Execute returns.
var exitCode int

var rootFlags struct {
	configPath string
	logLevel   string
}

var rootCmd = &cobra.Command{
	Use:   "m365",
	Short: "Pipeline-composable Microsoft 365 mail and drive operations",
	Long: "m365 wraps Microsoft Graph mail and drive calls as pipeline stages.\n" +
		"Each stage reads a JSON record list on stdin and writes one on stdout,\n" +
		"so stages chain with '>' and bind the previous output with '%'.",
	SilenceUsage: true,
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		// Missing .env is fine; credentials may come from the real
		// environment.
		_ = godotenv.Load()

		var err error
		cfg, err = config.Load(rootFlags.configPath)
		if err != nil {
			return err
		}
		if rootFlags.logLevel != "" {
			cfg.LogLevel = rootFlags.logLevel
		}
		logging.Init(logging.ParseLevel(cfg.LogLevel), cfg.LogFormat)
		return nil
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&rootFlags.configPath, "config", "", "Config file path (default .m365.yaml)")
	pf.StringVar(&rootFlags.logLevel, "log-level", "", "Log level override (debug, info, warn, error)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(outlookCmd)
	rootCmd.AddCommand(onedriveCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.Version = version
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if exitCode == 0 {
			exitCode = 1
		}
	}
	os.Exit(exitCode)
}
