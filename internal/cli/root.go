package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"compras/internal/config"
	"compras/internal/log"
)

// Execute runs comprasctl.
func Execute() error {
	return NewRootCommand().Execute()
}

type globalOptions struct {
	dbPath  string
	verbose bool
}

// NewRootCommand builds the comprasctl command tree.
func NewRootCommand() *cobra.Command {
	opts := &globalOptions{}
	root := &cobra.Command{
		Use:   "comprasctl",
		Short: "Inspect and edit monthly shopping lists",
		Long: `comprasctl reads and edits the monthly shopping lists stored by the
compras server. Every edit goes through the same merge rules as the API.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.dbPath, "db", "", "Path to the SQLite database (overrides SQLITE_DB_PATH and selects the sqlite backend)")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Log to stderr")

	root.AddCommand(
		newCatalogCommand(),
		newMonthsCommand(opts),
		newShowCommand(opts),
		newSeedCommand(opts),
		newAddCommand(opts),
		newSetCommand(opts),
		newRmCommand(opts),
	)
	return root
}

// openStack loads the configuration, applies the global flags and opens
// the document pipeline.
func (o *globalOptions) openStack(ctx context.Context, stderr io.Writer) (*Stack, error) {
	cfg := config.Load()
	if o.dbPath != "" {
		cfg.DataBackend = "sqlite"
		cfg.SQLiteDBPath = o.dbPath
	}
	// The CLI never listens for other processes.
	cfg.AMQPURL = ""
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := log.Discard()
	if o.verbose {
		lc := log.DefaultConfig()
		lc.Level = log.ParseLevel(cfg.LogLevel)
		lc.Component = log.ComponentCLI
		lc.Output = stderr
		logger = log.New(lc)
	}
	stack, err := NewStack(ctx, cfg, logger, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	return stack, nil
}

func writeFormatted(w io.Writer, format string, v any) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml", "yml", "":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(v)
	}
	return fmt.Errorf("unknown format %q: use yaml or json", format)
}

// Main is the body of cmd/comprasctl.
func Main() {
	if err := Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
