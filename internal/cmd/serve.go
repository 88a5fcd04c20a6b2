package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"QuantCore/internal/httpapi"
	"QuantCore/internal/scheduler"
)

var (
	serveData   string
	serveRunNow bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API and run scheduled jobs",
	Long: `Start the HTTP API on server.addr and register every job under
schedule.jobs. Runs are recorded to database.sqlite_path.

Endpoints:
  POST /api/v1/analyze         rank a universe
  POST /api/v1/backtest        single strategy, single symbol
  GET  /api/v1/strategies      strategy catalog
  GET  /api/v1/strategies/:id  one catalog entry
  GET  /api/v1/runs            recorded run history
  GET  /api/v1/health          liveness`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.close()

		src, err := a.source(serveData)
		if err != nil {
			return err
		}
		rec := a.openRecorder(true)
		defer rec.Close()

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		sched := scheduler.NewScheduler(ctx, a.engine, src, rec, a.logger)
		if err := sched.RegisterAll(a.cfg.Schedule.Jobs); err != nil {
			return err
		}
		sched.Start()
		defer sched.Stop()

		if serveRunNow {
			for _, j := range a.cfg.Schedule.Jobs {
				name := j.Name
				go func() {
					if _, err := sched.RunNow(name); err != nil {
						a.logger.Warn("startup run failed", zap.String("job", name), zap.Error(err))
					}
				}()
			}
		}

		a.logger.Info("quantcore is running", zap.String("addr", a.cfg.Server.Addr))
		srv := httpapi.NewServer(a.engine, rec, a.logger)
		if err := srv.Run(ctx, a.cfg.Server.Addr); err != nil {
			return err
		}
		a.logger.Info("quantcore stopped")
		return nil
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveData, "data", "parquet", "market data source for scheduled jobs: parquet, mock or none")
	serveCmd.Flags().BoolVar(&serveRunNow, "run-now", false, "run every scheduled job once at startup")
	rootCmd.AddCommand(serveCmd)
}
