package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vburojevic/xcpipe/internal/core"
	"github.com/vburojevic/xcpipe/internal/util"
)

var errSimulatorNameRequired = errors.New("simulator name required (no terminal for the interactive picker)")

type configView struct {
	Path     string          `json:"path"`
	Settings string          `json:"settings_file,omitempty"`
	Config   core.ConfigData `json:"config"`
}

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or change the simulator preference",
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the device config",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ac, cfg, err := configContext(cmd)
			if err != nil {
				return err
			}
			if ac.Flags.JSON {
				ac.printJSON(configView{Path: cfg.Path, Settings: ac.Settings.File, Config: cfg.Data})
				return nil
			}
			d := cfg.Data.Device
			ac.println(strings.Join([]string{
				"Config: " + cfg.Path,
				"  Preferred simulator: " + orNone(d.PreferredSimulator),
				"  Last used simulator: " + orNone(d.LastUsedSimulator),
				"  Last used at:        " + orNone(d.LastUsedAt),
				fmt.Sprintf("  Fallback to any iPhone: %t", d.FallbackToAnyIPhone),
			}, "\n"))
			return nil
		},
	}

	set := &cobra.Command{
		Use:   "set-simulator [name]",
		Short: "Set the preferred simulator (interactive picker without a name)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ac, cfg, err := configContext(cmd)
			if err != nil {
				return err
			}
			name := ""
			if len(args) == 1 {
				name = strings.TrimSpace(args[0])
			}
			if name == "" {
				if ac.Flags.JSON || !isTerminal(stdinFile) {
					return ExitError{Code: 2, Err: errSimulatorNameRequired}
				}
				lines, err := core.SimctlDeviceLister{Runner: ac.Runner}.AvailableDevices(cmd.Context())
				if err != nil {
					return err
				}
				names := []string{}
				for _, ln := range lines {
					if n := core.DeviceName(ln); n != "" {
						names = append(names, n)
					}
				}
				if name, err = pickSimulator(names, cfg.PreferredSimulator()); err != nil {
					return err
				}
			}
			cfg.SetPreferredSimulator(name)
			if err := cfg.Save(); err != nil {
				return err
			}
			ac.println(fmt.Sprintf("Preferred simulator set to '%s' (%s)", name, cfg.Path))
			return nil
		},
	}

	clearCmd := &cobra.Command{
		Use:   "clear-simulator",
		Short: "Remove the preferred simulator",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ac, cfg, err := configContext(cmd)
			if err != nil {
				return err
			}
			cfg.SetPreferredSimulator("")
			if err := cfg.Save(); err != nil {
				return err
			}
			ac.println("Preferred simulator cleared")
			return nil
		},
	}

	cmd.AddCommand(show, set, clearCmd)
	return cmd
}

func configContext(cmd *cobra.Command) (*AppContext, *core.Config, error) {
	ac, err := NewAppContext(cmd)
	if err != nil {
		return nil, nil, err
	}
	dir := ac.Settings.ProjectDir
	if dir == "" {
		wd, err := getwd()
		if err != nil {
			return nil, nil, err
		}
		if dir, err = util.FindProjectRoot(wd); err != nil {
			return nil, nil, err
		}
	}
	return ac, core.LoadConfig(dir, ac.Settings.ResolveSkillName(), ac.Emitter), nil
}

func orNone(s *string) string {
	if s == nil || *s == "" {
		return "(none)"
	}
	return *s
}
