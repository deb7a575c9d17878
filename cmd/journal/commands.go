package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/jacobB1290/JwebAPP-sub000/internal/export"
	"github.com/jacobB1290/JwebAPP-sub000/internal/importer"
)

// Set at build time with -ldflags.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "journal %s\n", Version)
			fmt.Fprintf(out, "  commit: %s\n", GitCommit)
			fmt.Fprintf(out, "  built:  %s\n", BuildDate)
		},
	}
}

func newImportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <url>...",
		Short: "Import shared AI conversations as pending entries",
		Long: `Import fetches each shared conversation link, or a PDF, text or markdown
transcript, and stores it as an entry waiting to be filed. Run
"journal backfill" or open the app to have entries titled, tagged and filed.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			im, err := a.newImporter()
			if err != nil {
				return err
			}
			results, importErr := im.ImportAll(cmd.Context(), args)
			out := cmd.OutOrStdout()
			for _, res := range results {
				note := ""
				if res.Expanded {
					note = " (expanded)"
				}
				fmt.Fprintf(out, "imported %q: %d messages%s\n", res.Entry.Title, res.Messages, note)
			}
			if importErr != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "%d of %d imports failed:\n%v\n", len(args)-len(results), len(args), importErr)
				return fmt.Errorf("import failed: %s", importer.TagOf(importErr))
			}
			return nil
		},
	}
	return cmd
}

func newBackfillCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backfill",
		Short: "Title, tag and file imported entries now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			bf := a.newBackfiller()
			out := cmd.OutOrStdout()
			if retry, _ := cmd.Flags().GetBool("retry-failed"); retry {
				moved, err := bf.RetryFailed(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "requeued %d failed entries\n", moved)
			}
			report, err := bf.Run(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "filed %d, failed %d\n", report.Processed, report.Failed)
			return nil
		},
	}
	cmd.Flags().Bool("retry-failed", false, "move failed entries back to pending before the pass")
	return cmd
}

func newModelsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "models",
		Short: "List the models the companion can use",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			catalog := a.gateway.Catalog()
			selected := catalog.Resolve(a.cfg.LLM.Model).ID
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, m := range catalog.Models() {
				marker := " "
				if m.ID == selected {
					marker = "*"
				}
				fmt.Fprintf(tw, "%s %s\t%s\t%s\n", marker, m.ID, m.Family, m.DisplayName)
			}
			if remote, _ := cmd.Flags().GetBool("remote"); remote {
				models, err := catalog.Remote(cmd.Context(), a.gateway.Listers()...)
				if err != nil {
					tw.Flush()
					return fmt.Errorf("list upstream models: %w", err)
				}
				fmt.Fprintln(tw, "\nupstream:")
				for _, m := range models {
					fmt.Fprintf(tw, "  %s\t%s\t%s\n", m.ID, m.Family, m.DisplayName)
				}
			}
			return tw.Flush()
		},
	}
	cmd.Flags().Bool("remote", false, "also ask configured providers for their model lists")
	return cmd
}

func newExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the journal to a JSON archive or an HTML page",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			format, _ := cmd.Flags().GetString("format")
			format = strings.ToLower(format)
			if format != "json" && format != "html" {
				return fmt.Errorf("unknown format %q (want json or html)", format)
			}
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			out, _ := cmd.Flags().GetString("out")
			if out == "" {
				out = filepath.Join(a.cfg.DataDir, "export", "journal."+format)
			}
			snapshots, memo, err := export.Collect(cmd.Context(), a.store, time.Now().UTC())
			if err != nil {
				return err
			}
			if len(snapshots) == 0 && memo == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "nothing to export")
				return nil
			}

			switch format {
			case "json":
				err = export.Save(out, snapshots, memo)
			case "html":
				err = writeHTMLFile(out, export.Archive{Entries: snapshots, Memo: memo})
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "exported %d entries to %s\n", len(snapshots), out)
			return nil
		},
	}
	cmd.Flags().String("format", "json", "json or html")
	cmd.Flags().StringP("out", "o", "", "output file (default <data dir>/export/journal.<format>)")
	return cmd
}

func writeHTMLFile(path string, archive export.Archive) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create export dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		err = errors.Join(err, f.Close())
	}()
	return export.WriteHTML(f, "Journal", archive)
}
