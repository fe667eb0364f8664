package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/opsync/pkg/openphone"
)

var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Snapshot OpenPhone history to local JSON files",
	Long: `Resolves the workspace's first phone number, enumerates its conversations,
and fans out over single-participant groups fetching call and message
history. Results land as participants.json, calls.json, and messages.json
in the output directory.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.RequireOpenPhone(); err != nil {
			return err
		}

		log := zap.L().With(zap.String("command", "collect"))

		rl := openRunLog()
		if rl != nil {
			defer rl.Close() //nolint:errcheck
		}
		runID := startRun(ctx, rl, "collect")

		client := openphone.NewClient(cfg.OpenPhone.APIKey,
			openphone.WithBaseURL(cfg.OpenPhone.BaseURL),
			openphone.WithPageSize(cfg.OpenPhone.PageSize),
			openphone.WithRateLimit(cfg.OpenPhone.RateLimit),
		)

		number, err := openphone.FirstPhoneNumber(ctx, client)
		if err != nil {
			failRun(ctx, rl, runID, err)
			return eris.Wrap(err, "collect: resolve phone number")
		}
		log.Info("using phone number", zap.String("id", number.ID), zap.String("number", number.Number))

		var groups [][]string
		convs, errs := openphone.Conversations(ctx, client, number.ID)
		for conv := range convs {
			groups = append(groups, conv.Participants)
		}
		if err := <-errs; err != nil {
			failRun(ctx, rl, runID, err)
			return eris.Wrap(err, "collect: list conversations")
		}
		log.Info("conversations enumerated", zap.Int("groups", len(groups)))

		calls, messages, err := openphone.Collect(ctx, client, number.ID, groups, cfg.Collect.Concurrency)
		if err != nil {
			failRun(ctx, rl, runID, err)
			return eris.Wrap(err, "collect: fetch history")
		}

		outDir := cfg.Collect.OutputDir
		if err := os.MkdirAll(outDir, 0o755); err != nil {
			failRun(ctx, rl, runID, err)
			return eris.Wrap(err, "collect: create output dir")
		}
		if err := writeJSON(filepath.Join(outDir, "participants.json"), groups); err != nil {
			failRun(ctx, rl, runID, err)
			return err
		}
		if err := writeJSON(filepath.Join(outDir, "calls.json"), calls); err != nil {
			failRun(ctx, rl, runID, err)
			return err
		}
		if err := writeJSON(filepath.Join(outDir, "messages.json"), messages); err != nil {
			failRun(ctx, rl, runID, err)
			return err
		}

		completeRun(ctx, rl, runID, int64(len(calls)+len(messages)))
		log.Info("collection complete",
			zap.Int("calls", len(calls)),
			zap.Int("messages", len(messages)),
			zap.String("dir", outDir),
		)
		fmt.Printf("Collected %d calls and %d messages into %s\n", len(calls), len(messages), outDir)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(collectCmd)
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return eris.Wrapf(err, "collect: marshal %s", filepath.Base(path))
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrapf(err, "collect: write %s", filepath.Base(path))
	}
	return nil
}
