package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/webservice/packages/webservice"
)

var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish|powershell]",
	Short: "Generate shell completion scripts",
	Long: `Generate a shell completion script for websvc and write it to stdout.

Examples:
  source <(websvc completion bash)
  websvc completion zsh > "${fpath[1]}/_websvc"
  websvc completion fish > ~/.config/fish/completions/websvc.fish
  websvc completion powershell | Out-String | Invoke-Expression`,
	DisableFlagsInUseLine: true,
	ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
	Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		switch args[0] {
		case "bash":
			return cmd.Root().GenBashCompletionV2(out, true)
		case "zsh":
			return cmd.Root().GenZshCompletion(out)
		case "fish":
			return cmd.Root().GenFishCompletion(out, true)
		case "powershell":
			return cmd.Root().GenPowerShellCompletionWithDesc(out)
		}
		return fmt.Errorf("unsupported shell: %s", args[0])
	},
}

var completionMethods = []webservice.Method{
	webservice.MethodGet, webservice.MethodPost, webservice.MethodPut,
	webservice.MethodDelete, webservice.MethodPatch,
}

// completeMethod completes the method argument of request; the path is free
// form and falls back to no completion.
func completeMethod(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	methods := make([]string, len(completionMethods))
	for i, m := range completionMethods {
		methods[i] = string(m)
	}
	return methods, cobra.ShellCompDirectiveNoFileComp
}

func fixedValues(values ...string) func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
	return func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return values, cobra.ShellCompDirectiveNoFileComp
	}
}

// registerCompletions wires value completion for flags with a closed set of
// values. Flags not registered on cmd are skipped.
func registerCompletions(cmd *cobra.Command) {
	closed := map[string][]string{
		"output":   {"console", "json"},
		"encoding": {"json", "url", "xml"},
		"cache":    {"protocol", "reload", "return-else-load", "return-dont-load"},
	}
	for name, values := range closed {
		if cmd.Flags().Lookup(name) == nil {
			continue
		}
		_ = cmd.RegisterFlagCompletionFunc(name, fixedValues(values...))
	}
	if cmd.Flags().Lookup("schema") != nil {
		_ = cmd.MarkFlagFilename("schema", "json")
	}
}
