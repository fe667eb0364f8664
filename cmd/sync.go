package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/opsync/internal/activity"
	"github.com/sells-group/opsync/internal/exports"
	"github.com/sells-group/opsync/internal/reconcile"
	"github.com/sells-group/opsync/internal/runlog"
	"github.com/sells-group/opsync/pkg/monday"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Reconcile the Monday.com board against the latest exports",
	Long: `Formats the newest contacts export, builds the activity index from the
newest messages export, and walks every board contact deciding between a
last-activity update and a new contact. Missing export files degrade to
empty inputs; a failed board read aborts the run.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.RequireMonday(); err != nil {
			return err
		}

		log := zap.L().With(zap.String("command", "sync"))

		rl := openRunLog()
		if rl != nil {
			defer rl.Close() //nolint:errcheck
		}
		runID := startRun(ctx, rl, "contacts")

		// Locate the newest export. Each missing piece degrades the run
		// instead of aborting it.
		var messagesCSV string
		exportDir, err := exports.LatestDir(cfg.Exports.Dir)
		if err != nil {
			log.Warn("no export directory, proceeding with empty inputs", zap.Error(err))
		} else {
			log.Info("using export", zap.String("dir", exportDir))

			if contactsCSV, err := exports.FindContactsCSV(exportDir); err != nil {
				log.Warn("no contacts CSV in export", zap.Error(err))
			} else if err := exports.FormatContacts(contactsCSV, cfg.Exports.FormattedContacts); err != nil {
				log.Warn("contacts formatting failed", zap.Error(err))
			}

			if messagesCSV, err = exports.FindMessagesCSV(exportDir); err != nil {
				log.Warn("no messages CSV in export", zap.Error(err))
				messagesCSV = ""
			}
		}

		formatted := exports.LoadFormatted(cfg.Exports.FormattedContacts)
		log.Info("formatted contacts loaded", zap.Int("keys", len(formatted)))

		index := activity.BuildFromCSV(messagesCSV)
		log.Info("activity index built", zap.Int("keys", len(index)))

		client := newMondayClient()
		contacts, err := client.Contacts(ctx, cfg.Monday.BoardID)
		if err != nil {
			failRun(ctx, rl, runID, err)
			return eris.Wrap(err, "sync: fetch board contacts")
		}
		log.Info("board contacts fetched", zap.Int("count", len(contacts)))

		rec := &reconcile.Reconciler{
			BoardID: cfg.Monday.BoardID,
			Writer:  client,
		}
		result := rec.Run(ctx, contacts, formatted, index)

		log.Info("reconciliation complete",
			zap.Int("updated", result.Updated),
			zap.Int("created", result.Created),
			zap.Int("skipped", result.Skipped),
			zap.Int("failed", result.Failed),
		)
		completeRun(ctx, rl, runID, int64(result.Updated+result.Created))

		fmt.Printf("Sync complete: %d updated, %d created, %d skipped, %d failed\n",
			result.Updated, result.Created, result.Skipped, result.Failed)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)
}

func newMondayClient() monday.Client {
	return monday.NewClient(cfg.Monday.APIKey, monday.ColumnIDs{
		Phone1:       cfg.Monday.Columns.Phone1,
		Phone2:       cfg.Monday.Columns.Phone2,
		DateCreated:  cfg.Monday.Columns.DateCreated,
		LastActivity: cfg.Monday.Columns.LastActivity,
	}, monday.WithAPIURL(cfg.Monday.APIURL))
}

// openRunLog opens the run log, degrading to nil when unavailable. Run
// bookkeeping must never take a job down.
func openRunLog() *runlog.Log {
	rl, err := runlog.Open(cfg.RunLog.Path)
	if err != nil {
		zap.L().Warn("run log unavailable", zap.Error(err))
		return nil
	}
	return rl
}

func startRun(ctx context.Context, rl *runlog.Log, job string) string {
	if rl == nil {
		return ""
	}
	id, err := rl.Start(ctx, job)
	if err != nil {
		zap.L().Warn("run log start failed", zap.Error(err))
		return ""
	}
	return id
}

func completeRun(ctx context.Context, rl *runlog.Log, id string, records int64) {
	if rl == nil || id == "" {
		return
	}
	if err := rl.Complete(ctx, id, records); err != nil {
		zap.L().Warn("run log complete failed", zap.Error(err))
	}
}

func failRun(ctx context.Context, rl *runlog.Log, id string, cause error) {
	if rl == nil || id == "" {
		return
	}
	if err := rl.Fail(ctx, id, cause.Error()); err != nil {
		zap.L().Warn("run log fail failed", zap.Error(err))
	}
}
