package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	versionpkg "lsp-indexer/src/internal/version"
)

// CLI Constants
const (
	CmdIndex       = "index"
	CmdSearch      = "search"
	CmdSymbols     = "symbols"
	CmdDefinition  = "definition"
	CmdReferences  = "references"
	CmdCompletion  = "completion"
	CmdDiagnostics = "diagnostics"
	CmdRemote      = "remote"
	CmdConfig      = "config"
	CmdVersion     = "version"
	FlagConfig     = "config"
	FlagVerbose    = "verbose"
	FlagRemoteHost = "remote-host"
	FlagLanguage   = "language"
	FlagRoot       = "root"
	FlagJSON       = "json"
	FlagWatch      = "watch"
	FlagKind       = "kind"
	FlagLimit      = "limit"
	FlagForce      = "force"
	FlagWait       = "wait"
	LanguageAuto   = "auto"
)

// CLI Variables
var (
	configPath     string
	verbose        bool
	remoteHost     string
	language       string
	rootDir        string
	formatJSON     bool
	watchMode      bool
	kindFilter     string
	resultLimit    int
	force          bool
	diagnosticWait time.Duration
)

// Root command
var rootCmd = &cobra.Command{
	Use:   "lsp-indexer",
	Short: "LSP Indexer - a language server client and workspace symbol index",
	Long: `LSP Indexer drives a Language Server Protocol server over stdio, locally or on a
remote host through ssh, and builds a searchable index of every symbol in a workspace.

QUICK START:
  lsp-indexer index                        # Index the current directory
  lsp-indexer search Widget                # Find symbols by name

AVAILABLE COMMANDS:

  Index:
    lsp-indexer index [root]               # Walk the workspace and index symbols
    lsp-indexer index --watch              # Re-index whenever sources change
    lsp-indexer search <query>             # Search the index by name

  Queries:
    lsp-indexer symbols <file>             # Document outline
    lsp-indexer definition <file> <l> <c>  # Go to definition
    lsp-indexer references <file> <l> <c>  # Find references
    lsp-indexer completion <file> <l> <c>  # Completion candidates
    lsp-indexer diagnostics <file>         # Diagnostics published for a file

  Remote:
    lsp-indexer remote ls <path>           # List a remote directory
    lsp-indexer remote cat <path>          # Print a remote file

Lines and columns are 1-based. Use 'lsp-indexer <command> --help' for details.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Command definitions
var (
	indexCmd = &cobra.Command{
		Use:   CmdIndex + " [root]",
		Short: "Index workspace symbols",
		Long: `Scan the workspace root for source files and ask the language server for the
symbols of each file, one file at a time.

Files the server does not answer for within indexing.step_timeout are skipped.
With --watch the command keeps running and re-indexes after source changes
(local roots only).

Examples:
  lsp-indexer index
  lsp-indexer index ~/src/project --json
  lsp-indexer index --remote-host dev@build-box /srv/project`,
		Args: cobra.MaximumNArgs(1),
		RunE: runIndexCmd,
	}

	searchCmd = &cobra.Command{
		Use:   CmdSearch + " <query>",
		Short: "Search indexed symbols by name",
		Long: `Index the workspace and print symbols whose name contains the query,
case-insensitively. Names starting with the query are listed first, shorter
names before longer ones.

Examples:
  lsp-indexer search parse
  lsp-indexer search Widget --kind class --limit 5`,
		Args: cobra.ExactArgs(1),
		RunE: runSearchCmd,
	}

	symbolsCmd = &cobra.Command{
		Use:   CmdSymbols + " <file>",
		Short: "Print the symbol outline of a file",
		Args:  cobra.ExactArgs(1),
		RunE:  runSymbolsCmd,
	}

	definitionCmd = &cobra.Command{
		Use:   CmdDefinition + " <file> <line> <column>",
		Short: "Find the definition of the symbol at a position",
		Args:  cobra.ExactArgs(3),
		RunE:  runDefinitionCmd,
	}

	referencesCmd = &cobra.Command{
		Use:   CmdReferences + " <file> <line> <column>",
		Short: "Find references to the symbol at a position",
		Args:  cobra.ExactArgs(3),
		RunE:  runReferencesCmd,
	}

	completionCmd = &cobra.Command{
		Use:   CmdCompletion + " <file> <line> <column>",
		Short: "List completion candidates at a position",
		Args:  cobra.ExactArgs(3),
		RunE:  runCompletionCmd,
	}

	diagnosticsCmd = &cobra.Command{
		Use:   CmdDiagnostics + " <file>",
		Short: "Print diagnostics the server publishes for a file",
		Long: `Open the file and collect the diagnostics the language server publishes for it
within the --wait period.`,
		Args: cobra.ExactArgs(1),
		RunE: runDiagnosticsCmd,
	}

	remoteCmd = &cobra.Command{
		Use:   CmdRemote,
		Short: "Inspect the remote host",
		Long: `Run the file-system primitives the indexer uses against the configured remote
host. Requires remote.enabled in the configuration or --remote-host.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	configCmd = &cobra.Command{
		Use:   CmdConfig,
		Short: "Manage the configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	versionCmd = &cobra.Command{
		Use:   CmdVersion,
		Short: "Show version information",
		Long: `Display version information for LSP Indexer.

Examples:
  lsp-indexer version              # Show version number
  lsp-indexer version --verbose    # Show detailed build information`,
		RunE: runVersionCmd,
	}
)

// Remote subcommands
var (
	remoteListCmd = &cobra.Command{
		Use:   "ls <path>",
		Short: "List a remote directory",
		Args:  cobra.ExactArgs(1),
		RunE:  runRemoteListCmd,
	}

	remoteCatCmd = &cobra.Command{
		Use:   "cat <path>",
		Short: "Print a remote file",
		Args:  cobra.ExactArgs(1),
		RunE:  runRemoteCatCmd,
	}

	remoteExpandCmd = &cobra.Command{
		Use:   "expand <path>",
		Short: "Expand a ~ path on the remote host",
		Args:  cobra.ExactArgs(1),
		RunE:  runRemoteExpandCmd,
	}
)

// Config subcommands
var (
	configInitCmd = &cobra.Command{
		Use:   "init",
		Short: "Write the default configuration file",
		RunE:  runConfigInitCmd,
	}

	configShowCmd = &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE:  runConfigShowCmd,
	}
)

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVarP(&configPath, FlagConfig, "c", "", "Configuration file path (optional)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, FlagVerbose, "v", false, "Verbose output")
	rootCmd.PersistentFlags().StringVar(&remoteHost, FlagRemoteHost, "", "Run the server and file access on [user@]host over ssh")
	rootCmd.PersistentFlags().StringVarP(&language, FlagLanguage, "l", "", "Use the servers entry for this language (\"auto\" detects it from the root)")

	indexCmd.Flags().BoolVar(&formatJSON, FlagJSON, false, "Output in JSON format")
	indexCmd.Flags().BoolVarP(&watchMode, FlagWatch, "w", false, "Re-index when source files change")

	searchCmd.Flags().StringVar(&rootDir, FlagRoot, "", "Workspace root (default: current directory)")
	searchCmd.Flags().StringVarP(&kindFilter, FlagKind, "k", "", "Only symbols of this kind (name or number)")
	searchCmd.Flags().IntVarP(&resultLimit, FlagLimit, "n", 0, "Maximum number of results (0 = all)")
	searchCmd.Flags().BoolVar(&formatJSON, FlagJSON, false, "Output in JSON format")

	for _, c := range []*cobra.Command{symbolsCmd, definitionCmd, referencesCmd, completionCmd, diagnosticsCmd} {
		c.Flags().StringVar(&rootDir, FlagRoot, "", "Workspace root (default: current directory)")
		c.Flags().BoolVar(&formatJSON, FlagJSON, false, "Output in JSON format")
	}
	diagnosticsCmd.Flags().DurationVar(&diagnosticWait, FlagWait, 3*time.Second, "How long to collect diagnostics")

	configInitCmd.Flags().BoolVarP(&force, FlagForce, "f", false, "Overwrite an existing file")

	// Subcommands
	remoteCmd.AddCommand(remoteListCmd)
	remoteCmd.AddCommand(remoteCatCmd)
	remoteCmd.AddCommand(remoteExpandCmd)

	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)

	// Add commands to root
	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(symbolsCmd)
	rootCmd.AddCommand(definitionCmd)
	rootCmd.AddCommand(referencesCmd)
	rootCmd.AddCommand(completionCmd)
	rootCmd.AddCommand(diagnosticsCmd)
	rootCmd.AddCommand(remoteCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

// Command runner functions - these delegate to the index, query and remote
// modules

func runIndexCmd(cmd *cobra.Command, args []string) error {
	root := ""
	if len(args) == 1 {
		root = args[0]
	}
	cfg, err := loadCommandConfigFor(root)
	if err != nil {
		return err
	}
	return RunIndex(cmd.Context(), cmd.OutOrStdout(), cfg, IndexOptions{
		Root:  root,
		JSON:  formatJSON,
		Watch: watchMode,
	})
}

func runSearchCmd(cmd *cobra.Command, args []string) error {
	cfg, err := loadCommandConfig()
	if err != nil {
		return err
	}
	return RunSearch(cmd.Context(), cmd.OutOrStdout(), cfg, args[0], SearchOptions{
		Root:  rootDir,
		Kind:  kindFilter,
		Limit: resultLimit,
		JSON:  formatJSON,
	})
}

func runSymbolsCmd(cmd *cobra.Command, args []string) error {
	cfg, err := loadCommandConfig()
	if err != nil {
		return err
	}
	return RunSymbols(cmd.OutOrStdout(), cfg, QueryOptions{Root: rootDir, File: args[0], JSON: formatJSON})
}

func runDefinitionCmd(cmd *cobra.Command, args []string) error {
	cfg, opts, err := positionQuery(args)
	if err != nil {
		return err
	}
	return RunDefinition(cmd.OutOrStdout(), cfg, opts)
}

func runReferencesCmd(cmd *cobra.Command, args []string) error {
	cfg, opts, err := positionQuery(args)
	if err != nil {
		return err
	}
	return RunReferences(cmd.OutOrStdout(), cfg, opts)
}

func runCompletionCmd(cmd *cobra.Command, args []string) error {
	cfg, opts, err := positionQuery(args)
	if err != nil {
		return err
	}
	return RunCompletion(cmd.OutOrStdout(), cfg, opts)
}

func runDiagnosticsCmd(cmd *cobra.Command, args []string) error {
	cfg, err := loadCommandConfig()
	if err != nil {
		return err
	}
	return RunDiagnostics(cmd.OutOrStdout(), cfg, QueryOptions{Root: rootDir, File: args[0], JSON: formatJSON}, diagnosticWait)
}

func runRemoteListCmd(cmd *cobra.Command, args []string) error {
	cfg, err := loadCommandConfig()
	if err != nil {
		return err
	}
	return RemoteList(cmd.Context(), cmd.OutOrStdout(), newRemoteFS(cfg), args[0])
}

func runRemoteCatCmd(cmd *cobra.Command, args []string) error {
	cfg, err := loadCommandConfig()
	if err != nil {
		return err
	}
	return RemoteCat(cmd.Context(), cmd.OutOrStdout(), newRemoteFS(cfg), args[0])
}

func runRemoteExpandCmd(cmd *cobra.Command, args []string) error {
	cfg, err := loadCommandConfig()
	if err != nil {
		return err
	}
	return RemoteExpand(cmd.Context(), cmd.OutOrStdout(), newRemoteFS(cfg), args[0])
}

func runConfigInitCmd(cmd *cobra.Command, args []string) error {
	return InitConfig(cmd.OutOrStdout(), configPath, force)
}

func runConfigShowCmd(cmd *cobra.Command, args []string) error {
	cfg, err := loadCommandConfig()
	if err != nil {
		return err
	}
	return ShowConfig(cmd.OutOrStdout(), cfg)
}

func runVersionCmd(cmd *cobra.Command, args []string) error {
	if verbose {
		fmt.Fprintln(cmd.OutOrStdout(), versionpkg.GetFullVersionInfo())
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "lsp-indexer %s\n", versionpkg.GetVersion())
	return nil
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
