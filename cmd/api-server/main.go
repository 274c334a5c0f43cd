package main

import (
	"Recharge/config"
	"Recharge/pkg/database"
	"Recharge/pkg/log"
	"Recharge/pkg/server"
	"Recharge/service"
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

func main() {
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "dev"
	}
	path := fmt.Sprintf("configs/config.%s.yaml", env)
	cfg := config.New(path)

	cliApp := &cli.App{
		Name:  "api-server",
		Usage: "积分充值服务",
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "start http server and reconcile scheduler",
				Action: func(ctx *cli.Context) error {
					app, cleanup, err := InitServer(cfg)
					if err != nil {
						return err
					}
					defer cleanup()
					return server.Run(ctx, app)
				},
			},
			{
				Name:  "migrate",
				Usage: "create or update database tables",
				Action: func(ctx *cli.Context) error {
					if err := database.Migrate(database.NewDB(cfg)); err != nil {
						return err
					}
					log.L.Info("migrate finished")
					return nil
				},
			},
			{
				Name:  "reconcile",
				Usage: "run one sweep over pending orders",
				Action: func(ctx *cli.Context) error {
					return runOnce(ctx, cfg, (*service.ReconcileService).Sweep)
				},
			},
			{
				Name:  "sync-refund",
				Usage: "sync refund state of paid orders",
				Action: func(ctx *cli.Context) error {
					return runOnce(ctx, cfg, (*service.ReconcileService).SyncRefunds)
				},
			},
		},
	}
	if err := cliApp.Run(os.Args); err != nil {
		log.L.Fatal("failed to start server", zap.Error(err))
	}
}

// runOnce 手动触发一轮对账任务
func runOnce(ctx *cli.Context, cfg *config.Config, job func(*service.ReconcileService, context.Context) (*service.SweepReport, error)) error {
	app, cleanup, err := InitServer(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	report, err := job(app.Reconcile, ctx.Context)
	if err != nil {
		return err
	}
	log.L.Info("job finished",
		zap.String("command", ctx.Command.Name),
		zap.Bool("skipped", report.Skipped),
		zap.Int("scanned", report.Scanned),
		zap.Any("results", report.Results))
	return nil
}
