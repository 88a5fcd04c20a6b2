package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"QuantCore/internal/model"
	"QuantCore/internal/scheduler"
	"QuantCore/internal/watch"
)

var (
	watchOut      string
	watchData     string
	watchDebounce time.Duration
	watchRecord   bool
)

var watchCmd = &cobra.Command{
	Use:   "watch <dir>",
	Short: "Run request files as they appear in a directory",
	Long: `Watch a directory for *.json request files. Each created or rewritten
file is analyzed and the response is written next to it as
<name>.result.json, or into --out when given. Failed requests produce the
error payload instead.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := args[0]
		out := watchOut
		if out == "" {
			out = dir
		}
		if err := os.MkdirAll(out, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}

		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.close()

		src, err := a.source(watchData)
		if err != nil {
			return err
		}
		rec := a.openRecorder(watchRecord)
		defer rec.Close()

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		w, err := watch.NewWatcher(dir, watchDebounce, a.logger)
		if err != nil {
			return err
		}
		defer w.Close()

		sched := scheduler.NewScheduler(ctx, a.engine, src, rec, a.logger)
		a.logger.Info("watching for requests", zap.String("dir", dir), zap.String("out", out))
		for ev := range w.Watch(ctx) {
			var result any
			resp, err := sched.RunFile("watch", ev.Path)
			if err != nil {
				result = model.Payload(err)
			} else {
				result = resp
			}
			if err := writeResult(watch.ResultPath(out, ev.Path), result); err != nil {
				a.logger.Error("write result failed", zap.String("request_file", ev.Path), zap.Error(err))
			}
		}
		return nil
	},
}

// writeResult writes through a temp file so readers never see a partial result.
func writeResult(path string, v any) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if err := writeJSON(f, v); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

func init() {
	watchCmd.Flags().StringVar(&watchOut, "out", "", "directory for result files (default is the watched directory)")
	watchCmd.Flags().StringVar(&watchData, "data", "parquet", "market data source for symbols without inline data: parquet, mock or none")
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", 200*time.Millisecond, "quiet period before a changed file is run")
	watchCmd.Flags().BoolVar(&watchRecord, "record", false, "store runs in the SQLite history")
	rootCmd.AddCommand(watchCmd)
}
