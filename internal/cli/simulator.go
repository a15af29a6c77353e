package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vburojevic/xcpipe/internal/core"
	"github.com/vburojevic/xcpipe/internal/report"
)

const suggestLimit = 4

func newSimulatorsCmd() *cobra.Command {
	var get, deviceType, runtime string
	var suggest bool

	cmd := &cobra.Command{
		Use:   "simulators",
		Short: "Summarize simulators; the full list is cached under an id",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ac, err := NewAppContext(cmd)
			if err != nil {
				return err
			}
			cache, err := ac.Progressive()
			if err != nil {
				return err
			}

			if get != "" {
				sims, ok := core.CachedSimulators(cache, get, deviceType, runtime)
				if !ok {
					fmt.Fprintf(ac.Err, "Error: Cache ID not found or expired: %s\n", get)
					return ExitError{Code: 1}
				}
				if ac.Flags.JSON {
					ac.printJSON(sims)
					return nil
				}
				ac.println(report.DeviceList(fmt.Sprintf("Simulators (%d):", len(sims)), sims, false))
				return nil
			}

			list, err := core.SimctlList(cmd.Context(), ac.Runner, ac.Emitter)
			if err != nil {
				return err
			}
			sims := core.FlattenSimulators(list)

			if suggest {
				picks := core.SuggestSimulators(sims, suggestLimit)
				if ac.Flags.JSON {
					ac.printJSON(picks)
					return nil
				}
				ac.println(report.DeviceList("Recommended Simulators:", picks, true))
				return nil
			}

			summary, err := core.SummarizeSimulators(sims, cache)
			if err != nil {
				ac.Emitter.Emit(core.Warn("simulators", "Could not cache simulator list: "+err.Error()))
			}
			if ac.Flags.JSON {
				ac.printJSON(summary)
				return nil
			}
			ac.println(report.SimulatorSummary(summary))
			return nil
		},
	}

	cmd.Flags().StringVar(&get, "get", "", "Print the full cached list for this cache id")
	cmd.Flags().StringVar(&deviceType, "device-type", "", "With --get: keep devices whose name contains this (iPhone, iPad, ...)")
	cmd.Flags().StringVar(&runtime, "runtime", "", "With --get: keep devices whose runtime contains this (e.g. 'iOS 18')")
	cmd.Flags().BoolVar(&suggest, "suggest", false, "Recommend simulators")
	return cmd
}

func newCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or prune the progressive output cache",
	}

	var cacheType string
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List live cache entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ac, cache, err := progressiveContext(cmd)
			if err != nil {
				return err
			}
			entries := cache.ListEntries(cacheType)
			if ac.Flags.JSON {
				ac.printJSON(entries)
				return nil
			}
			ac.println(report.CacheEntries(entries))
			return nil
		},
	}
	listCmd.Flags().StringVar(&cacheType, "type", "", "Only entries of this type, e.g. simulator-list")

	pruneCmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete expired cache entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ac, cache, err := progressiveContext(cmd)
			if err != nil {
				return err
			}
			n := cache.Cleanup(ac.Settings.CacheMaxAge)
			printRemoved(ac, n)
			return nil
		},
	}

	var clearType string
	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete cache entries regardless of age",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ac, cache, err := progressiveContext(cmd)
			if err != nil {
				return err
			}
			printRemoved(ac, cache.Clear(clearType))
			return nil
		},
	}
	clearCmd.Flags().StringVar(&clearType, "type", "", "Only entries of this type")

	cmd.AddCommand(listCmd, pruneCmd, clearCmd)
	return cmd
}

func progressiveContext(cmd *cobra.Command) (*AppContext, *core.ProgressiveCache, error) {
	ac, err := NewAppContext(cmd)
	if err != nil {
		return nil, nil, err
	}
	cache, err := ac.Progressive()
	if err != nil {
		return nil, nil, err
	}
	return ac, cache, nil
}

func printRemoved(ac *AppContext, n int) {
	if ac.Flags.JSON {
		ac.printJSON(map[string]int{"removed": n})
		return
	}
	ac.println(fmt.Sprintf("Removed %d cache entries", n))
}
