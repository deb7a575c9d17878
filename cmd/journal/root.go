package main

import (
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/jacobB1290/JwebAPP-sub000/internal/continuation"
	"github.com/jacobB1290/JwebAPP-sub000/internal/importer"
	"github.com/jacobB1290/JwebAPP-sub000/internal/queue"
	"github.com/jacobB1290/JwebAPP-sub000/internal/tui"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "journal",
		Short: "A notebook with an AI companion that reads along",
		Long: `journal opens a writing surface in the terminal. Pause and the companion
answers; entries are titled, tagged and filed as you go.

Imported conversations are filed in the background while the app is open.`,
		SilenceUsage: true,
		RunE:         runTUI,
	}
	root.PersistentFlags().String("config", "", "path to config.yaml (default $JOURNAL_CONFIG or the user config dir)")
	root.Flags().Bool("no-alt-screen", false, "disable the alternate screen buffer")
	root.Flags().Bool("no-backfill", false, "do not file imported conversations while the app is open")

	root.AddCommand(
		newImportCmd(),
		newBackfillCmd(),
		newModelsCmd(),
		newExportCmd(),
		newVersionCmd(),
	)
	return root
}

func runTUI(cmd *cobra.Command, _ []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()
	log := a.log.WithField("component", "cli")

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	model := a.cfg.LLM.Model
	q := queue.New(a.gateway, a.store,
		queue.WithMatcher(continuation.New(a.gateway, model, a.log)),
		queue.WithModel(model),
		queue.WithJobTimeout(a.jobTimeout()),
		queue.WithLogger(a.log),
	)
	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		if err := q.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.WithError(err).Error("queue worker stopped")
		}
	}()

	im, err := a.newImporter()
	if err != nil {
		return err
	}

	var reports <-chan importer.Report
	if skip, _ := cmd.Flags().GetBool("no-backfill"); !skip {
		sched, err := importer.NewScheduler(ctx, a.cfg.Import.Schedule, a.newBackfiller(), a.log)
		if err != nil {
			return err
		}
		sched.Start()
		defer sched.Stop()
		reports = sched.Reports()
	}

	var opts []tea.ProgramOption
	if noAlt, _ := cmd.Flags().GetBool("no-alt-screen"); !noAlt {
		opts = append(opts, tea.WithAltScreen())
	}
	opts = append(opts, tea.WithMouseCellMotion())

	program := tea.NewProgram(tui.New(tui.Config{
		Queue:         q,
		Store:         a.store,
		Importer:      im,
		Reports:       reports,
		Model:         a.gateway.Catalog().Resolve(model).ID,
		ImportTimeout: a.cfg.Import.FetchTimeout * 2,
		Logger:        a.log,
	}), opts...)

	_, runErr := program.Run()
	cancel()
	<-workerDone
	if runErr != nil {
		return fmt.Errorf("program error: %w", runErr)
	}
	return nil
}
