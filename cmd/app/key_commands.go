package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/allisson/cardvault/cmd/app/commands"
	"github.com/allisson/cardvault/internal/app"
	"github.com/allisson/cardvault/internal/config"
)

func getKeyCommands() []*cli.Command {
	return []*cli.Command{
		{
			Name:  "create-master-key",
			Usage: "Generate a master key for the software HSM provider",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:    "id",
					Aliases: []string{"i"},
					Value:   "",
					Usage:   "Master key ID (e.g., prod-master-key-2026)",
				},
				&cli.StringFlag{
					Name:    "existing",
					Aliases: []string{"e"},
					Sources: cli.EnvVars("MASTER_KEYS"),
					Usage:   "Current MASTER_KEYS value; the new key is appended and becomes active",
				},
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				return commands.RunCreateMasterKey(
					commands.DefaultIO().Writer,
					cmd.String("id"),
					cmd.String("existing"),
				)
			},
		},
		{
			Name:  "rotate-keys",
			Usage: "Rotate the payment key and re-encrypt every active card",
			Flags: []cli.Flag{subjectFlag, formatFlag},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				container := app.NewContainer(config.Load())
				defer commands.CloseContainer(container, container.Logger())
				commands.WarnIfMemoryStore(container)

				vault, err := container.VaultUseCase()
				if err != nil {
					return err
				}

				return commands.RunRotateKeys(
					ctx,
					vault,
					container.Logger(),
					commands.DefaultIO().Writer,
					cmd.String("subject"),
					cmd.String("format"),
				)
			},
		},
		{
			Name:  "check-key-rotation",
			Usage: "List keys due for rotation and queue rotation events",
			Flags: []cli.Flag{formatFlag},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				container := app.NewContainer(config.Load())
				defer commands.CloseContainer(container, container.Logger())
				commands.WarnIfMemoryStore(container)

				keys, err := container.KeyLifecycleUseCase()
				if err != nil {
					return err
				}

				return commands.RunCheckKeyRotation(
					ctx,
					keys,
					container.Logger(),
					commands.DefaultIO().Writer,
					cmd.String("format"),
				)
			},
		},
		{
			Name:  "list-keys",
			Usage: "List key metadata",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:    "purpose",
					Aliases: []string{"p"},
					Usage:   "Filter by purpose (data, pii, payment, auth, hmac, signing, master)",
				},
				&cli.StringFlag{
					Name:  "status",
					Usage: "Filter by status (active, rotating, deactivated, compromised, archived)",
				},
				formatFlag,
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				container := app.NewContainer(config.Load())
				defer commands.CloseContainer(container, container.Logger())
				commands.WarnIfMemoryStore(container)

				keys, err := container.KeyLifecycleUseCase()
				if err != nil {
					return err
				}

				return commands.RunListKeys(
					ctx,
					keys,
					commands.DefaultIO().Writer,
					cmd.String("purpose"),
					cmd.String("status"),
					cmd.String("format"),
				)
			},
		},
		{
			Name:  "backup-hsm-keys",
			Usage: "Export every HSM key in wrapped form",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:     "output",
					Aliases:  []string{"o"},
					Required: true,
					Usage:    "Backup file path",
				},
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				container := app.NewContainer(config.Load())
				defer commands.CloseContainer(container, container.Logger())
				commands.WarnIfMemoryStore(container)

				module, err := container.HSM()
				if err != nil {
					return err
				}

				file, err := os.OpenFile(cmd.String("output"), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
				if err != nil {
					return fmt.Errorf("failed to create backup file: %w", err)
				}
				defer func() { _ = file.Close() }()

				if err := commands.RunBackupHSMKeys(ctx, module, container.Logger(), file); err != nil {
					return err
				}
				return file.Sync()
			},
		},
		{
			Name:  "restore-hsm-keys",
			Usage: "Import HSM keys from a backup file",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:     "input",
					Aliases:  []string{"i"},
					Required: true,
					Usage:    "Backup file path",
				},
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				container := app.NewContainer(config.Load())
				defer commands.CloseContainer(container, container.Logger())
				commands.WarnIfMemoryStore(container)

				module, err := container.HSM()
				if err != nil {
					return err
				}

				file, err := os.Open(cmd.String("input"))
				if err != nil {
					return fmt.Errorf("failed to open backup file: %w", err)
				}
				defer func() { _ = file.Close() }()

				return commands.RunRestoreHSMKeys(ctx, module, container.Logger(), file, commands.DefaultIO().Writer)
			},
		},
	}
}
