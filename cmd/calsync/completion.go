package main

import (
	"strings"

	"github.com/spf13/cobra"
)

// providerCompletion provides shell completion for provider name arguments
func providerCompletion(a *App) func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
	return func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		if len(args) > 0 {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}
		if err := a.init(); err != nil {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}

		var completions []string
		for _, name := range a.providerNames() {
			if strings.HasPrefix(strings.ToLower(name), strings.ToLower(toComplete)) {
				completions = append(completions, name)
			}
		}
		return completions, cobra.ShellCompDirectiveNoFileComp
	}
}

// strategyCompletion completes the strategy argument of 'conflicts resolve':
// first a conflict id (no completion), then one of the strategy names.
func strategyCompletion(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) != 1 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}

	var completions []string
	for _, s := range validStrategies() {
		if strings.HasPrefix(s, strings.ToLower(toComplete)) {
			completions = append(completions, s)
		}
	}
	return completions, cobra.ShellCompDirectiveNoFileComp
}
