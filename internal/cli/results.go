package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vburojevic/xcpipe/internal/core"
	"github.com/vburojevic/xcpipe/internal/report"
)

func newErrorsCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "errors <xcresult-id>",
		Short: "Show the errors of a cached build",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return showIssues(cmd, args[0], limit, false)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", report.DefaultIssueLimit, "Maximum number of errors to print")
	return cmd
}

func newWarningsCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "warnings <xcresult-id>",
		Short: "Show the warnings of a cached build",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return showIssues(cmd, args[0], limit, true)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", report.DefaultIssueLimit, "Maximum number of warnings to print")
	return cmd
}

func showIssues(cmd *cobra.Command, id string, limit int, warnings bool) error {
	ac, err := NewAppContext(cmd)
	if err != nil {
		return err
	}
	p, err := ac.openBundle(id)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	var issues []core.Issue
	if warnings {
		issues = p.Warnings(ctx)
	} else {
		issues = p.Errors(ctx)
	}
	if ac.Flags.JSON {
		if issues == nil {
			issues = []core.Issue{}
		}
		ac.printJSON(issues)
		return nil
	}
	if warnings {
		ac.println(report.Warnings(issues, limit))
	} else {
		ac.println(report.Errors(issues, limit))
	}
	return nil
}

func newLogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "log <xcresult-id>",
		Short: "Show the tail of a cached build log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ac, err := NewAppContext(cmd)
			if err != nil {
				return err
			}
			p, err := ac.openBundle(args[0])
			if err != nil {
				return err
			}
			log := p.BuildLog(cmd.Context())
			if log == "" {
				fmt.Fprintln(ac.Err, "No build log available")
				return ExitError{Code: 1}
			}
			ac.println(report.Log(log, ac.Settings.LogLines))
			return nil
		},
	}
	cmd.Flags().Int("lines", 0, "Number of trailing lines to print (default 50, or log_lines from settings)")
	return cmd
}

func newAllCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "all <xcresult-id>",
		Short: "Show counts, errors, warnings and the log tail of a cached build",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ac, err := NewAppContext(cmd)
			if err != nil {
				return err
			}
			id := args[0]
			p, err := ac.openBundle(id)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			errCount, warnCount := p.CountIssues(ctx)
			d := report.NewDetails(id, errCount, warnCount, p.Errors(ctx), p.Warnings(ctx), p.BuildLog(ctx))
			if ac.Flags.JSON {
				ac.printJSON(d)
				return nil
			}
			ac.println(d.Text())
			return nil
		},
	}
}

func newListCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List cached result bundles, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ac, err := NewAppContext(cmd)
			if err != nil {
				return err
			}
			bundles, err := ac.Cache.List(limit)
			if err != nil {
				return err
			}
			if ac.Flags.JSON {
				if bundles == nil {
					bundles = []core.BundleInfo{}
				}
				ac.printJSON(bundles)
				return nil
			}
			ac.println(report.BundleList(bundles))
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 10, "Maximum number of bundles (0 for all)")
	return cmd
}

func newCleanupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete all but the most recent result bundles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ac, err := NewAppContext(cmd)
			if err != nil {
				return err
			}
			keep := ac.Settings.KeepRecent
			removed, err := ac.Cache.Cleanup(keep)
			if ac.Flags.JSON {
				ac.printJSON(map[string]int{"removed": removed, "kept": keep})
			} else {
				ac.println(fmt.Sprintf("Removed %d bundle(s), keeping the %d most recent", removed, keep))
			}
			return err
		},
	}
	cmd.Flags().Int("keep", 0, "Number of bundles to keep (default 20, or keep_recent from settings)")
	return cmd
}
