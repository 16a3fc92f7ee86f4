package cli

import (
	"context"
	"fmt"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"compras/internal/catalog"
	"compras/internal/core"
	"compras/internal/partition"
)

const commandTimeout = 30 * time.Second

func newCatalogCommand() *cobra.Command {
	var (
		format     string
		seed       bool
		categories bool
	)
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Print the default catalog",
		Long: `Prints the embedded catalog, or with --seed the tree a new month starts from.
With --categories only the category names are printed, one per line.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := catalog.Default()
			if err != nil {
				return err
			}
			if categories {
				for _, name := range cat.CategoryNames() {
					fmt.Fprintln(cmd.OutOrStdout(), name)
				}
				return nil
			}
			if seed {
				return writeFormatted(cmd.OutOrStdout(), format, cat.Seed())
			}
			return writeFormatted(cmd.OutOrStdout(), format, cat)
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "yaml", "Output format: yaml or json")
	cmd.Flags().BoolVar(&seed, "seed", false, "Print the seed tree instead of the catalog")
	cmd.Flags().BoolVar(&categories, "categories", false, "Print only the category names")
	return cmd
}

func newMonthsCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "months",
		Short: "List months that have a stored list",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
			defer cancel()
			stack, err := opts.openStack(ctx, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer stack.Close(ctx)

			months, err := stack.Backend.Months(ctx)
			if err != nil {
				return err
			}
			for _, m := range months {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", m, core.MonthLabel(m))
			}
			return nil
		},
	}
}

func newShowCommand(opts *globalOptions) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "show <month>",
		Short: "Print a month's list and totals",
		Long: `Prints the list of a month. A month without a stored list is seeded
from the catalog first, exactly as the server does.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMonth(cmd, opts, args[0], func(ctx context.Context, m *partition.Manager, month string) error {
				tree, summary, err := m.Summary(ctx, month)
				if err != nil {
					return err
				}
				if format == "table" {
					return writeTable(cmd, tree, summary)
				}
				return writeFormatted(cmd.OutOrStdout(), format, struct {
					Month      string            `json:"month" yaml:"month"`
					Summary    core.MonthSummary `json:"summary" yaml:"summary"`
					Categories core.Tree         `json:"categories" yaml:"categories"`
				}{month, summary, tree})
			})
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "yaml", "Output format: yaml, json or table")
	return cmd
}

func newSeedCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "seed <month>",
		Short: "Create a month from the catalog if it has no list yet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMonth(cmd, opts, args[0], func(ctx context.Context, m *partition.Manager, month string) error {
				tree, err := m.Snapshot(ctx, month)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %d categories, %d items\n", month, len(tree), tree.ItemCount())
				return nil
			})
		},
	}
}

func newAddCommand(opts *globalOptions) *cobra.Command {
	var (
		category string
		quantity string
		price    string
	)
	cmd := &cobra.Command{
		Use:   "add <month> <name>",
		Short: "Add an item to a month",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if category == "" {
				return fmt.Errorf("--category is required")
			}
			return withMonth(cmd, opts, args[0], func(ctx context.Context, m *partition.Manager, month string) error {
				tree, err := m.AddItem(ctx, month, core.NewItem{Name: args[1], Quantity: quantity, Price: price}, category)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %d items, total %.2f\n", month, tree.ItemCount(), core.TotalCost(tree))
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&category, "category", "c", "", "Category name (created when missing)")
	cmd.Flags().StringVarP(&quantity, "quantity", "q", "1", "Quantity, dot or comma decimals")
	cmd.Flags().StringVarP(&price, "price", "p", "0", "Unit price, dot or comma decimals")
	return cmd
}

func newSetCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "set <month> <item-id> <name|quantity|price> <value>",
		Short: "Change one field of an item",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid item id %q", args[1])
			}
			field, err := core.ParseField(args[2])
			if err != nil {
				return err
			}
			return withMonth(cmd, opts, args[0], func(ctx context.Context, m *partition.Manager, month string) error {
				tree, err := m.UpdateItem(ctx, month, id, field, args[3])
				if err != nil {
					return err
				}
				if _, _, ok := tree.FindItem(id); !ok {
					return fmt.Errorf("item %d not found in %s", id, month)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: total %.2f\n", month, core.TotalCost(tree))
				return nil
			})
		},
	}
}

func newRmCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <month> <item-id>",
		Short: "Delete an item",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid item id %q", args[1])
			}
			return withMonth(cmd, opts, args[0], func(ctx context.Context, m *partition.Manager, month string) error {
				tree, err := m.DeleteItem(ctx, month, id)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %d items, total %.2f\n", month, tree.ItemCount(), core.TotalCost(tree))
				return nil
			})
		},
	}
}

// withMonth opens the store, runs fn against month and waits for the
// resulting writes before closing.
func withMonth(cmd *cobra.Command, opts *globalOptions, arg string, fn func(context.Context, *partition.Manager, string) error) error {
	month, err := core.ParseMonth(arg)
	if err != nil {
		return fmt.Errorf("%w: %q", err, arg)
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
	defer cancel()

	stack, err := opts.openStack(ctx, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	runErr := fn(ctx, stack.Manager, month)
	if err := stack.Close(ctx); err != nil && runErr == nil {
		runErr = fmt.Errorf("failed to save %s: %w", month, err)
	}
	return runErr
}

func writeTable(cmd *cobra.Command, tree core.Tree, summary core.MonthSummary) error {
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCATEGORIA\tITEM\tQTD\tPREÇO\tSUBTOTAL")
	for _, c := range tree {
		for _, it := range c.Items {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%g\t%.2f\t%.2f\n", it.ID, c.Name, it.Name, it.Quantity, it.Price, it.Subtotal())
		}
	}
	fmt.Fprintf(tw, "\t\tTOTAL\t\t\t%.2f\n", summary.Total)
	return tw.Flush()
}
