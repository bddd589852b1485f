package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/allisson/cardvault/cmd/app/commands"
	"github.com/allisson/cardvault/internal/app"
	"github.com/allisson/cardvault/internal/config"
)

func getSystemCommands(version string) []*cli.Command {
	return []*cli.Command{
		{
			Name:  "server",
			Usage: "Start the ops server, the outbox processor and the key rotation scheduler",
			Action: func(ctx context.Context, cmd *cli.Command) error {
				return commands.RunServer(ctx, version)
			},
		},
		{
			Name:  "migrate",
			Usage: "Run database migrations",
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				return commands.RunMigrations(container.Logger(), cfg.StoreDriver, cfg.DBConnectionString)
			},
		},
		{
			Name:  "verify-audit-logs",
			Usage: "Verify the signatures of audit entries within a time range",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:     "start-date",
					Required: true,
					Usage:    "Start date (YYYY-MM-DD or YYYY-MM-DD HH:MM:SS)",
				},
				&cli.StringFlag{
					Name:     "end-date",
					Required: true,
					Usage:    "End date (YYYY-MM-DD or YYYY-MM-DD HH:MM:SS)",
				},
				&cli.StringFlag{
					Name:  "subject-id",
					Usage: "Only verify entries recorded for this subject",
				},
				&cli.StringFlag{
					Name:  "operation",
					Usage: "Only verify entries for this operation (e.g. reveal_card)",
				},
				formatFlag,
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer commands.CloseContainer(container, container.Logger())
				commands.WarnIfMemoryStore(container)

				accessUseCase, err := container.AccessUseCase()
				if err != nil {
					return err
				}

				return commands.RunVerifyAuditLogs(
					ctx,
					accessUseCase,
					container.Logger(),
					commands.DefaultIO().Writer,
					commands.VerifyAuditOptions{
						StartDate: cmd.String("start-date"),
						EndDate:   cmd.String("end-date"),
						SubjectID: cmd.String("subject-id"),
						Operation: cmd.String("operation"),
						Format:    cmd.String("format"),
					},
				)
			},
		},
	}
}
