package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"shipdocs/internal/app"
	"shipdocs/internal/documents"
	"shipdocs/internal/models"
	"shipdocs/internal/schemacache"
	"shipdocs/internal/storage"

	"github.com/spf13/cobra"
)

// setupSchemasCmd runs field detection on every configured template
var setupSchemasCmd = &cobra.Command{
	Use:   "setup-schemas",
	Short: "Detect and store form schemas for the configured templates",
	Long: `Upload each configured template to the form-filling service with sample
instructions and store the detected field list, replacing any stored copy.

Run this once after changing a template so generation can prefill fields
deterministically.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := app.New(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer a.Close()
		results, err := a.Service.SetupSchemas(cmd.Context())
		printSetupResults(cmd.OutOrStdout(), results)
		return err
	},
}

// schemasCmd is the parent command for stored form schemas
var schemasCmd = &cobra.Command{
	Use:   "schemas",
	Short: "Manage stored form schemas",
	Long: `Inspect and manage stored form schemas.

Available subcommands:
  list   - List stored schemas
  show   - Print one schema as JSON
  delete - Delete a schema so the next run detects it again`,
}

var schemasListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored schemas",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSchemaCache(cmd.Context(), func(c *schemacache.Cache) error {
			recs, err := c.List(cmd.Context())
			if err != nil {
				return err
			}
			printSchemaList(cmd.OutOrStdout(), recs)
			return nil
		})
	},
}

var schemasShowCmd = &cobra.Command{
	Use:   "show <template-name>",
	Short: "Print one schema as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSchemaCache(cmd.Context(), func(c *schemacache.Cache) error {
			rec, err := c.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(rec)
		})
	},
}

var schemasDeleteCmd = &cobra.Command{
	Use:   "delete <template-name>",
	Short: "Delete a stored schema",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSchemaCache(cmd.Context(), func(c *schemacache.Cache) error {
			deleted, err := c.Delete(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !deleted {
				return fmt.Errorf("no stored schema for %s", args[0])
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted schema for %s\n", args[0])
			return nil
		})
	},
}

func init() {
	schemasCmd.AddCommand(schemasListCmd, schemasShowCmd, schemasDeleteCmd)
}

// withSchemaCache opens only what the schema commands need: Postgres, and
// Redis when configured so deletes also evict the cached copy.
func withSchemaCache(ctx context.Context, fn func(*schemacache.Cache) error) error {
	db, err := storage.NewDB(ctx, cfg.PostgresURL)
	if err != nil {
		return err
	}
	defer db.Close()
	opts := []schemacache.Option{schemacache.WithLogger(logger)}
	if cfg.RedisURL != "" {
		rdb, err := schemacache.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return err
		}
		defer rdb.Close()
		opts = append(opts, schemacache.WithRedis(rdb, time.Duration(cfg.SchemaCacheTTLSec)*time.Second))
	}
	return fn(schemacache.New(storage.NewSchemaRepo(db), opts...))
}

func printSchemaList(w io.Writer, recs []models.FormSchemaRecord) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TEMPLATE\tFIELDS\tUPDATED\tDESCRIPTION")
	for _, r := range recs {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", r.TemplateName, r.NumFields, r.UpdatedAt.Format(time.RFC3339), r.Description)
	}
	_ = tw.Flush()
}

func printSetupResults(w io.Writer, results []documents.SetupResult) {
	for _, r := range results {
		if r.Error != "" {
			fmt.Fprintf(w, "FAILED %s: %s\n", r.TemplateName, r.Error)
			continue
		}
		fmt.Fprintf(w, "saved %s (%d fields)\n", r.TemplateName, r.NumFields)
	}
}
