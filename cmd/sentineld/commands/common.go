// Package commands implements sentineld's kong subcommands.
package commands

import "log/slog"

// CLI is the root command definition and global flags, shared by every
// subcommand via kong's parent-struct convention.
type CLI struct {
	Config  string `short:"c" help:"Fleet configuration file path" default:"fleet.yaml"`
	Verbose bool   `short:"v" help:"Enable verbose logging"`

	Serve    ServeCmd    `cmd:"" help:"Start the supervisor and its control API"`
	Validate ValidateCmd `cmd:"" help:"Validate a fleet configuration file"`
	Token    TokenCmd    `cmd:"" help:"Manage control API invitations and bearer tokens"`
}

// Global carries state shared across subcommands beyond what kong threads
// through automatically.
type Global struct {
	Logger *slog.Logger
}
