package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/opsync/internal/exports"
	"github.com/sells-group/opsync/internal/inbox"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Retrieve OpenPhone workspace exports",
	Long: `Watches the Gmail inbox for an OpenPhone export notification, then
downloads and unpacks the linked archive into the exports directory.
Request the export from the OpenPhone dashboard first; the email usually
arrives within a few minutes.`,
}

var exportContactsCmd = &cobra.Command{
	Use:   "contacts",
	Short: "Download the latest contacts export",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runExport(cmd, "contacts")
	},
}

var exportMessagesCmd = &cobra.Command{
	Use:   "messages",
	Short: "Download the latest messages export",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runExport(cmd, "messages")
	},
}

func runExport(cmd *cobra.Command, kind string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log := zap.L().With(zap.String("command", "export"), zap.String("kind", kind))

	rl := openRunLog()
	if rl != nil {
		defer rl.Close() //nolint:errcheck
	}
	runID := startRun(ctx, rl, "export-"+kind)

	svc, err := inbox.NewService(ctx, cfg.Gmail.CredentialsFile, cfg.Gmail.TokenFile)
	if err != nil {
		failRun(ctx, rl, runID, err)
		return eris.Wrap(err, "export: gmail service")
	}

	log.Info("polling inbox for export link")
	link, err := inbox.WaitForExportLink(ctx, svc, inbox.PollOptions{})
	if err != nil {
		failRun(ctx, rl, runID, err)
		return eris.Wrap(err, "export: wait for link")
	}
	log.Info("export link found")

	dir, err := exports.DownloadArchive(ctx, link, cfg.Exports.Dir)
	if err != nil {
		failRun(ctx, rl, runID, err)
		return eris.Wrap(err, "export: download archive")
	}

	completeRun(ctx, rl, runID, 1)
	log.Info("export unpacked", zap.String("dir", dir))
	fmt.Printf("Export unpacked into %s\n", dir)
	return nil
}

func init() {
	exportCmd.AddCommand(exportContactsCmd)
	exportCmd.AddCommand(exportMessagesCmd)
	rootCmd.AddCommand(exportCmd)
}
