package main

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"transponster/internal/api"
	"transponster/internal/backfill"
	"transponster/internal/config"
	"transponster/internal/daemonrun"
	"transponster/internal/mapping"
	"transponster/internal/services/slack"
)

func newMappingsCommand(ctx *commandContext) *cobra.Command {
	mappingsCmd := &cobra.Command{
		Use:     "mappings",
		Aliases: []string{"mapping"},
		Short:   "Inspect and edit file-to-document mappings",
	}

	mappingsCmd.AddCommand(newMappingsListCommand(ctx))
	mappingsCmd.AddCommand(newMappingsGetCommand(ctx))
	mappingsCmd.AddCommand(newMappingsPutCommand(ctx))
	mappingsCmd.AddCommand(newMappingsDeleteCommand(ctx))
	mappingsCmd.AddCommand(newMappingsImportCommand(ctx))
	mappingsCmd.AddCommand(newMappingsBackfillCommand(ctx))

	return mappingsCmd
}

// withMappings runs viaAPI against the daemon and falls back to the local
// database when the daemon is not reachable.
func (c *commandContext) withMappings(viaAPI func(*api.Client) error, local func(*mapping.Store) error) error {
	client, err := c.apiClient()
	if err == nil {
		err = viaAPI(client)
		if !api.IsUnavailable(err) {
			return err
		}
	}
	return c.withStore(local)
}

func newMappingsListCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List mappings, most recently updated first",
		RunE: func(cmd *cobra.Command, args []string) error {
			var list api.MappingListResponse
			err := ctx.withMappings(
				func(client *api.Client) error {
					resp, err := client.Mappings(cmd.Context(), limit)
					list = resp
					return err
				},
				func(store *mapping.Store) error {
					items, err := store.List(cmd.Context(), limit)
					if err != nil {
						return err
					}
					total, err := store.Count(cmd.Context())
					if err != nil {
						return err
					}
					list = api.MappingListResponse{Mappings: api.FromMappings(items), Total: total}
					return nil
				},
			)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, list)
			}
			out := cmd.OutOrStdout()
			if len(list.Mappings) == 0 {
				fmt.Fprintln(out, "No mappings")
				return nil
			}
			rows := make([][]string, 0, len(list.Mappings))
			for _, m := range list.Mappings {
				rows = append(rows, []string{m.SourceFileID, m.DocumentID, dash(m.UpdatedAt)})
			}
			footer := []string{fmt.Sprintf("%d of %d", len(list.Mappings), list.Total), "", ""}
			fmt.Fprintln(out, renderTableWithFooter([]string{"Slack file", "Document", "Updated"}, rows, nil, footer))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "Maximum number of mappings to show (0 for all)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print mappings as JSON")
	return cmd
}

func newMappingsGetCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "get FILE_ID",
		Short: "Show the document a Slack file is linked to",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fileID := strings.TrimSpace(args[0])
			var found api.Mapping
			err := ctx.withMappings(
				func(client *api.Client) error {
					m, err := client.Mapping(cmd.Context(), fileID)
					found = m
					return err
				},
				func(store *mapping.Store) error {
					m, err := store.Lookup(cmd.Context(), fileID)
					if err != nil {
						return err
					}
					if m == nil {
						return &api.StatusError{Code: http.StatusNotFound, Message: "mapping not found"}
					}
					found = api.FromMapping(*m)
					return nil
				},
			)
			if api.IsNotFound(err) {
				return fmt.Errorf("no mapping for %s", fileID)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s (updated %s)\n", found.SourceFileID, found.DocumentID, dash(found.UpdatedAt))
			return nil
		},
	}
}

func newMappingsPutCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "put FILE_ID DOCUMENT_ID",
		Short: "Link a Slack file to a document, replacing any existing link",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			fileID, docID := strings.TrimSpace(args[0]), strings.TrimSpace(args[1])
			if fileID == "" || docID == "" {
				return errors.New("file id and document id are required")
			}
			err := ctx.withMappings(
				func(client *api.Client) error {
					_, err := client.PutMapping(cmd.Context(), fileID, docID)
					return err
				},
				func(store *mapping.Store) error {
					return store.Put(cmd.Context(), fileID, docID)
				},
			)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Mapped %s -> %s\n", fileID, docID)
			return nil
		},
	}
}

func newMappingsDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:     "delete FILE_ID",
		Aliases: []string{"rm"},
		Short:   "Remove the link for a Slack file",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fileID := strings.TrimSpace(args[0])
			var deleted bool
			err := ctx.withMappings(
				func(client *api.Client) error {
					ok, err := client.DeleteMapping(cmd.Context(), fileID)
					deleted = ok
					return err
				},
				func(store *mapping.Store) error {
					ok, err := store.Delete(cmd.Context(), fileID)
					deleted = ok
					return err
				},
			)
			if err != nil {
				return err
			}
			if !deleted {
				fmt.Fprintf(cmd.OutOrStdout(), "No mapping for %s\n", fileID)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted mapping for %s\n", fileID)
			return nil
		},
	}
}

func newMappingsImportCommand(ctx *commandContext) *cobra.Command {
	var overwrite bool

	cmd := &cobra.Command{
		Use:   "import [FILE]",
		Short: "Import a legacy JSON mapping file (defaults to paths.legacy_mappings_file)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			path := cfg.Paths.LegacyMappingsFile
			if len(args) == 1 {
				path, err = config.ExpandPath(args[0])
				if err != nil {
					return fmt.Errorf("resolve path: %w", err)
				}
			}
			if strings.TrimSpace(path) == "" {
				return errors.New("no file given and paths.legacy_mappings_file is not set")
			}
			file, err := os.Open(path)
			if err != nil {
				return fmt.Errorf("open mappings file: %w", err)
			}
			defer file.Close()

			return ctx.withStore(func(store *mapping.Store) error {
				stats, err := store.ImportJSON(cmd.Context(), file, overwrite)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Imported %d mappings from %s (%d skipped)\n", stats.Imported, path, stats.Skipped)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Replace mappings that already exist")
	return cmd
}

func newMappingsBackfillCommand(ctx *commandContext) *cobra.Command {
	var sinceFlag string
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "backfill",
		Short: "Link earlier Slack transcripts to Drive documents with the same name",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			since, err := time.ParseInLocation("2006-01-02", strings.TrimSpace(sinceFlag), time.Local)
			if err != nil {
				return fmt.Errorf("invalid --since %q: expected YYYY-MM-DD", sinceFlag)
			}
			if cfg.Slack.BotToken == "" {
				return errors.New("slack.bot_token is required for backfill")
			}
			if !cfg.Drive.Enabled {
				return errors.New("drive.enabled is false; there are no documents to match")
			}

			logger := ctx.commandLogger(cmd)
			drive, err := daemonrun.NewDrive(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			files := slack.New(cfg.Slack, slack.WithLogger(logger))

			return ctx.withStore(func(store *mapping.Store) error {
				report, err := backfill.Run(cmd.Context(), files, drive, store, backfill.Options{
					Since:  since,
					DryRun: dryRun,
					Logger: logger,
				})
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderBackfill(report, dryRun))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&sinceFlag, "since", "", "Only consider files posted on or after this date (YYYY-MM-DD)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report matches without writing mappings")
	_ = cmd.MarkFlagRequired("since")
	return cmd
}

func renderBackfill(report backfill.Report, dryRun bool) string {
	if len(report.Entries) == 0 {
		return "No transcripts found"
	}
	rows := make([][]string, 0, len(report.Entries))
	for _, e := range report.Entries {
		detail := e.DocumentID
		if e.Detail != "" {
			detail = e.Detail
		}
		rows = append(rows, []string{e.FileID, e.Name, string(e.Outcome), detail})
	}
	linked := report.Count(backfill.OutcomeMapped)
	label := "mapped"
	if dryRun {
		linked = report.Count(backfill.OutcomeWouldMap)
		label = "would map"
	}
	footer := []string{
		fmt.Sprintf("%d files", len(report.Entries)),
		"",
		fmt.Sprintf("%d %s", linked, label),
		fmt.Sprintf("%d unmatched", report.Count(backfill.OutcomeNoMatch)+report.Count(backfill.OutcomeAmbiguous)),
	}
	return renderTableWithFooter([]string{"Slack file", "Name", "Outcome", "Document"}, rows, nil, footer)
}
