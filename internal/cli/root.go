package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var flags GlobalFlags

func newRootCmd() *cobra.Command {
	flags = GlobalFlags{}
	root := &cobra.Command{
		Use:           "xcpipe",
		Short:         "Token-efficient xcodebuild results for agents",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.BoolVar(&flags.JSON, "json", false, "Print results as JSON and diagnostics as NDJSON on stderr")
	pf.BoolVar(&flags.Verbose, "verbose", false, "Verbose output")
	pf.StringVar(&flags.CacheDir, "cache-dir", "", "Result bundle cache directory (default: ~/.ios-simulator-skill/xcresults)")
	pf.StringVar(&flags.ProjectDir, "project-dir", "", "Directory holding .claude/skills/<skill>/config.json")

	root.AddCommand(newBuildCmd())
	root.AddCommand(newTestCmd())
	root.AddCommand(newErrorsCmd())
	root.AddCommand(newWarningsCmd())
	root.AddCommand(newLogCmd())
	root.AddCommand(newAllCmd())
	root.AddCommand(newListCmd())
	root.AddCommand(newCleanupCmd())
	root.AddCommand(newSimulatorsCmd())
	root.AddCommand(newCacheCmd())
	root.AddCommand(newConfigCmd())
	return root
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCmd()
	root.SetOut(os.Stdout)
	root.SetErr(os.Stderr)
	if err := root.ExecuteContext(ctx); err != nil {
		stop()
		PrintFatal(err)
	}
}
