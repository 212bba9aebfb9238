package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/ledgerlint/internal"
	pkgconfig "github.com/starford/ledgerlint/pkg/config"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

// Exit codes.
const (
	exitViolations = 1
	exitFailure    = 2
)

type command func(ctx context.Context, opts ...internal.Option) error

// action loads the configuration, applies flag overrides and runs fn.
func action(fn command, extra func(*cli.Command) []internal.Option) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		cfg := internal.NewDefaultConfig()
		if _, err := pkgconfig.LoadOptional(cmd.String("config"), cfg); err != nil {
			return fmt.Errorf("failed to parse config: %w", err)
		}
		applyFlags(cmd, cfg)
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}

		opts := []internal.Option{
			internal.WithConfig(cfg),
			internal.WithVersion(version),
		}
		if extra != nil {
			opts = append(opts, extra(cmd)...)
		}
		return fn(ctx, opts...)
	}
}

func applyFlags(cmd *cli.Command, cfg *internal.Config) {
	if cmd.IsSet("root") {
		cfg.Repo.Root = cmd.String("root")
	}
	if cmd.IsSet("ledger-dir") {
		cfg.Repo.LedgerDir = cmd.String("ledger-dir")
	}
	if cmd.IsSet("format") {
		cfg.Output.Format = cmd.String("format")
	}
	if cmd.IsSet("schema") {
		cfg.Schema.Path = cmd.String("schema")
	}
	if cmd.Bool("record") {
		cfg.History.Enabled = true
	}
	if cmd.IsSet("port") {
		cfg.App.HTTP.Port = int(cmd.Int("port"))
	}
}

func issueArgs(cmd *cli.Command) []internal.Option {
	return []internal.Option{internal.WithIssues(cmd.Args().Slice()...)}
}

func main() {
	validate := action(internal.Validate, issueArgs)

	cmd := &cli.Command{
		Name:      "ledgerlint",
		Usage:     "Validate per-issue task ledgers against their schema, lifecycle rules and commit history",
		Version:   version,
		ArgsUsage: "[ISSUE...]",
		Action:    validate,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file (optional)",
				DefaultText: "ledgerlint.yaml",
				Value:       "ledgerlint.yaml",
				Sources:     cli.EnvVars("LEDGERLINT_CONFIG"),
			},
			&cli.StringFlag{
				Name:    "root",
				Aliases: []string{"r"},
				Usage:   "Repository root",
				Sources: cli.EnvVars("LEDGERLINT_ROOT"),
			},
			&cli.StringFlag{
				Name:  "ledger-dir",
				Usage: "Ledger directory relative to the repository root",
			},
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "Output format: text, table or json",
			},
			&cli.StringFlag{
				Name:  "schema",
				Usage: "Additional JSON Schema every ledger must satisfy",
			},
			&cli.BoolFlag{
				Name:  "record",
				Usage: "Record runs in the history database",
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "validate",
				Usage:     "Validate ledgers (all when no issue is given)",
				ArgsUsage: "[ISSUE...]",
				Action:    validate,
			},
			{
				Name:      "list",
				Usage:     "List ledgers with task counts",
				ArgsUsage: "[ISSUE...]",
				Action:    action(internal.List, issueArgs),
			},
			{
				Name:   "watch",
				Usage:  "Re-validate ledgers whenever they change",
				Action: action(internal.Watch, nil),
			},
			{
				Name:  "serve",
				Usage: "Serve the HTTP API with live validation events",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:    "port",
						Aliases: []string{"p"},
						Usage:   "HTTP port",
					},
				},
				Action: action(internal.Serve, nil),
			},
			{
				Name:   "mcp",
				Usage:  "Serve ledger tools over MCP on stdin/stdout",
				Action: action(internal.ServeMCP, nil),
			},
			{
				Name:      "history",
				Usage:     "Show recorded runs, or the violations of one run",
				ArgsUsage: "[RUN-ID]",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Number of runs to show",
						Value: 20,
					},
				},
				Action: action(internal.History, func(cmd *cli.Command) []internal.Option {
					return []internal.Option{
						internal.WithRunID(cmd.Args().First()),
						internal.WithLimit(int(cmd.Int("limit"))),
					}
				}),
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		if errors.Is(err, internal.ErrViolations) {
			os.Exit(exitViolations)
		}
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(exitFailure)
	}
}
