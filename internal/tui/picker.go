package tui

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/huh"
)

var ErrNoSimulators = errors.New("no simulators available")

func simulatorOptions(names []string, current string) []huh.Option[string] {
	opts := make([]huh.Option[string], 0, len(names))
	for _, n := range names {
		label := n
		if n == current {
			label = n + " (current)"
		}
		opts = append(opts, huh.NewOption(label, n))
	}
	return opts
}

// PickSimulator asks the user to choose one of names. current is
// preselected when present. Aborting returns huh.ErrUserAborted.
func PickSimulator(names []string, current string) (string, error) {
	if len(names) == 0 {
		return "", ErrNoSimulators
	}
	choice := current
	if choice == "" {
		choice = names[0]
	}
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Preferred simulator").
				Description(fmt.Sprintf("%d available", len(names))).
				Options(simulatorOptions(names, current)...).
				Value(&choice),
		),
	).WithShowHelp(true)
	if err := form.Run(); err != nil {
		return "", err
	}
	return choice, nil
}
