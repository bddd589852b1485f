package main

import (
	"github.com/urfave/cli/v3"
)

func getCommands(version string) []*cli.Command {
	cmds := []*cli.Command{}
	cmds = append(cmds, getSystemCommands(version)...)
	cmds = append(cmds, getKeyCommands()...)
	cmds = append(cmds, getVaultCommands()...)
	return cmds
}

var formatFlag = &cli.StringFlag{
	Name:    "format",
	Aliases: []string{"f"},
	Value:   "text",
	Usage:   "Output format: 'text' or 'json'",
}

var subjectFlag = &cli.StringFlag{
	Name:    "subject",
	Aliases: []string{"s"},
	Value:   "cli-operator",
	Usage:   "Subject recorded in the audit trail for this command",
}
