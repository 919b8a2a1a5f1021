package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish|powershell]",
	Short: "Generate shell completion scripts",
	Long: `Generate shell completion scripts for projcoords.

Besides commands and flags, the scripts complete generate datasets, vector
DB backends, MCP transports and logging options:

  projcoords generate <TAB>          circle sphere rp2 klein
  projcoords compute --backend <TAB> pinecone qdrant
  projcoords mcp --transport <TAB>   stdio http

Bash:
  $ projcoords completion bash > /etc/bash_completion.d/projcoords

Zsh:
  $ projcoords completion zsh > "${fpath[1]}/_projcoords"

Fish:
  $ projcoords completion fish > ~/.config/fish/completions/projcoords.fish

PowerShell:
  PS> projcoords completion powershell | Out-String | Invoke-Expression
`,
	ValidArgs: []string{"bash", "zsh", "fish", "powershell"},
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		switch args[0] {
		case "bash":
			return rootCmd.GenBashCompletionV2(out, true)
		case "zsh":
			return rootCmd.GenZshCompletion(out)
		case "fish":
			return rootCmd.GenFishCompletion(out, true)
		case "powershell":
			return rootCmd.GenPowerShellCompletionWithDesc(out)
		}
		return fmt.Errorf("unsupported shell: %s", args[0])
	},
}

func init() {
	rootCmd.AddCommand(completionCmd)
}

// flagValues lists the fixed values offered for each completable flag.
var flagValues = []struct {
	cmd    *cobra.Command
	flag   string
	values []string
}{
	{rootCmd, "log-level", []string{"debug", "info", "warn", "error"}},
	{rootCmd, "log-format", []string{"console", "json"}},
	{computeCmd, "backend", []string{"pinecone", "qdrant"}},
	{exportCmd, "backend", []string{"pinecone", "qdrant"}},
	{mcpCmd, "transport", []string{"stdio", "http"}},
}

// registerCompletions attaches value completions to flags. It runs from
// Execute, once every command has registered its flags.
func registerCompletions() {
	for _, fv := range flagValues {
		values := fv.values
		err := fv.cmd.RegisterFlagCompletionFunc(fv.flag, func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
			return values, cobra.ShellCompDirectiveNoFileComp
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "completion for --%s: %v\n", fv.flag, err)
		}
	}

	for _, name := range []string{"file", "output"} {
		for _, c := range []*cobra.Command{computeCmd, exportCmd} {
			if c.Flags().Lookup(name) != nil {
				_ = c.MarkFlagFilename(name, "jsonl", "ndjson", "json", "csv")
			}
		}
	}
}
