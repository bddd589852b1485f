package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/allisson/cardvault/cmd/app/commands"
	"github.com/allisson/cardvault/internal/app"
	"github.com/allisson/cardvault/internal/config"
)

func getVaultCommands() []*cli.Command {
	return []*cli.Command{
		{
			Name:  "vault-stats",
			Usage: "Show card record counts by state and encryption key",
			Flags: []cli.Flag{subjectFlag, formatFlag},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				container := app.NewContainer(config.Load())
				defer commands.CloseContainer(container, container.Logger())
				commands.WarnIfMemoryStore(container)

				vault, err := container.VaultUseCase()
				if err != nil {
					return err
				}

				return commands.RunVaultStats(
					ctx,
					vault,
					commands.DefaultIO().Writer,
					cmd.String("subject"),
					cmd.String("format"),
				)
			},
		},
		{
			Name:  "purge-expired-cards",
			Usage: "Delete cards whose token expired more than the given days ago",
			Flags: []cli.Flag{
				&cli.IntFlag{
					Name:     "days",
					Aliases:  []string{"d"},
					Required: true,
					Usage:    "Delete cards whose token expired more than this many days ago",
				},
				&cli.BoolFlag{
					Name:    "dry-run",
					Aliases: []string{"n"},
					Value:   false,
					Usage:   "Show how many cards would be deleted without deleting",
				},
				subjectFlag,
				formatFlag,
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				container := app.NewContainer(config.Load())
				defer commands.CloseContainer(container, container.Logger())
				commands.WarnIfMemoryStore(container)

				vault, err := container.VaultUseCase()
				if err != nil {
					return err
				}

				return commands.RunPurgeExpiredCards(
					ctx,
					vault,
					container.Logger(),
					commands.DefaultIO().Writer,
					int(cmd.Int("days")),
					cmd.Bool("dry-run"),
					cmd.String("subject"),
					cmd.String("format"),
				)
			},
		},
	}
}
