package main

import (
	"fmt"
	"os"

	"calsync/engine"
	"calsync/internal/utils"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func validStrategies() []string {
	return []string{
		string(engine.LocalWins),
		string(engine.RemoteWins),
		string(engine.Merge),
		string(engine.Defer),
	}
}

func newConflictsCmd(a *App) *cobra.Command {
	var includeResolved bool
	var providerFilter string

	conflictsCmd := &cobra.Command{
		Use:   "conflicts",
		Short: "Review and resolve sync conflicts",
		Long: `List conflicts where local and remote copies of an event diverged.

A conflict is recorded when both sides changed since the last sync and the
changes disagree. Deferred conflicts stay open until resolved here; the
affected event keeps syncing around them.

Examples:
  calsync conflicts                              # List open conflicts
  calsync conflicts --all                        # Include resolved history
  calsync conflicts resolve                      # Interactive resolution
  calsync conflicts resolve 4f1c2a local_wins    # Resolve one conflict
  calsync conflicts resolve --all remote_wins    # Resolve everything open`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.init(); err != nil {
				return err
			}

			conflicts, err := a.store.ListConflicts(providerFilter, includeResolved)
			if err != nil {
				return fmt.Errorf("failed to list conflicts: %w", err)
			}
			if len(conflicts) == 0 {
				fmt.Println("No conflicts")
				return nil
			}

			dateFormat := a.config.GetDateFormat()
			fmt.Printf("\nConflicts (%d):\n\n", len(conflicts))
			for i := range conflicts {
				printConflict(&conflicts[i], dateFormat)
			}
			return nil
		},
	}

	conflictsCmd.Flags().BoolVar(&includeResolved, "all", false, "include resolved conflicts")
	conflictsCmd.Flags().StringVarP(&providerFilter, "provider", "p", "", "only conflicts for this provider")

	conflictsCmd.AddCommand(newConflictsResolveCmd(a))

	return conflictsCmd
}

func newConflictsResolveCmd(a *App) *cobra.Command {
	var resolveAll bool

	cmd := &cobra.Command{
		Use:   "resolve [conflict-id] [strategy]",
		Short: "Resolve conflicts",
		Long: `Resolve one or all open conflicts with an explicit strategy.

Strategies:
  local_wins    keep the local copy, overwrite the remote
  remote_wins   keep the remote copy, overwrite the local
  merge         field-level three-way merge (content conflicts only)
  defer         leave the conflict open

With no arguments an interactive picker opens.`,
		Args: cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.init(); err != nil {
				return err
			}

			switch {
			case resolveAll:
				if len(args) != 1 {
					return fmt.Errorf("usage: calsync conflicts resolve --all <strategy>")
				}
				return a.resolveAllConflicts(args[0])
			case len(args) == 2:
				return a.resolveOneConflict(args[0], args[1])
			case len(args) == 0:
				if !term.IsTerminal(int(os.Stdin.Fd())) {
					return fmt.Errorf("no terminal for interactive resolution; pass <conflict-id> <strategy>")
				}
				return a.resolveInteractively()
			default:
				return fmt.Errorf("usage: calsync conflicts resolve <conflict-id> <strategy>")
			}
		},
	}

	cmd.ValidArgsFunction = strategyCompletion
	cmd.Flags().BoolVar(&resolveAll, "all", false, "resolve every open conflict with the given strategy")
	return cmd
}

func parseStrategy(s string) (engine.Strategy, error) {
	strategy := engine.Strategy(s)
	if !engine.ValidStrategy(strategy) {
		return "", utils.ErrInvalidStrategy(s, validStrategies())
	}
	return strategy, nil
}

func (a *App) resolveOneConflict(idOrPrefix, strategyStr string) error {
	strategy, err := parseStrategy(strategyStr)
	if err != nil {
		return err
	}
	c, err := a.findConflict(idOrPrefix)
	if err != nil {
		return err
	}

	if err := a.coordinator.ResolveConflict(c.ID, strategy); err != nil {
		return err
	}
	fmt.Printf("✓ Resolved %s with %s\n", shortID(c.ID), strategy)
	a.maybeBackgroundSync()
	return nil
}

func (a *App) resolveAllConflicts(strategyStr string) error {
	strategy, err := parseStrategy(strategyStr)
	if err != nil {
		return err
	}

	conflicts, err := a.store.ListConflicts("", false)
	if err != nil {
		return fmt.Errorf("failed to list conflicts: %w", err)
	}
	if len(conflicts) == 0 {
		fmt.Println("No open conflicts")
		return nil
	}

	ids := make([]string, 0, len(conflicts))
	for _, c := range conflicts {
		ids = append(ids, c.ID)
	}

	resolved, err := a.coordinator.ResolveConflicts(ids, strategy)
	fmt.Printf("Resolved %d of %d conflicts\n", resolved, len(ids))
	if err != nil {
		return err
	}
	a.maybeBackgroundSync()
	return nil
}

func (a *App) resolveInteractively() error {
	conflicts, err := a.store.ListConflicts("", false)
	if err != nil {
		return fmt.Errorf("failed to list conflicts: %w", err)
	}
	if len(conflicts) == 0 {
		fmt.Println("No open conflicts")
		return nil
	}

	choices, err := pickResolutions(conflicts)
	if err != nil {
		return err
	}
	if len(choices) == 0 {
		fmt.Println("Nothing resolved")
		return nil
	}

	resolved := 0
	for _, choice := range choices {
		if err := a.coordinator.ResolveConflict(choice.conflictID, choice.strategy); err != nil {
			fmt.Printf("✗ %s: %v\n", shortID(choice.conflictID), err)
			continue
		}
		resolved++
	}
	fmt.Printf("Resolved %d conflicts\n", resolved)
	if resolved > 0 {
		a.maybeBackgroundSync()
	}
	return nil
}

// findConflict looks up an open conflict by full id or unique prefix.
func (a *App) findConflict(idOrPrefix string) (*engine.Conflict, error) {
	conflicts, err := a.store.ListConflicts("", true)
	if err != nil {
		return nil, err
	}

	var match *engine.Conflict
	for i := range conflicts {
		if conflicts[i].ID == idOrPrefix {
			return &conflicts[i], nil
		}
		if len(idOrPrefix) >= 4 && len(conflicts[i].ID) > len(idOrPrefix) && conflicts[i].ID[:len(idOrPrefix)] == idOrPrefix {
			if match != nil {
				return nil, fmt.Errorf("conflict id %q is ambiguous", idOrPrefix)
			}
			match = &conflicts[i]
		}
	}
	if match == nil {
		return nil, utils.ErrConflictNotFound(idOrPrefix)
	}
	return match, nil
}
