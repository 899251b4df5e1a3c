package main

import (
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"github.com/sentineld/sentineld/cmd/sentineld/commands"
	"github.com/sentineld/sentineld/internal/apperrors"
	"github.com/sentineld/sentineld/internal/version"
)

// rootCLI embeds commands.CLI with the top-level --version flag, kept here
// rather than in the commands package since kong.VersionFlag's Vars binding
// is a main-package concern.
type rootCLI struct {
	commands.CLI
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`
}

func main() {
	cli := &rootCLI{}
	parser := kong.Parse(cli,
		kong.Description("sentineld: supervises a fleet of long-running daemon processes behind a token-guarded control API."),
		kong.Vars{"version": version.Version},
	)

	level := slog.LevelInfo
	if cli.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	globals := &commands.Global{Logger: logger}
	errorAdapter := apperrors.NewCLIAdapter(cli.Verbose, logger)

	if err := parser.Run(globals, &cli.CLI); err != nil {
		errorAdapter.HandleError(err)
	}
}
