package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/scribe/internal"
)

func options(cmd *cli.Command) ([]internal.Option, error) {
	cfg, err := internal.LoadConfig(cmd.String("config"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return []internal.Option{internal.WithConfig(cfg)}, nil
}

func build(ctx context.Context, cmd *cli.Command) error {
	opts, err := options(cmd)
	if err != nil {
		return err
	}
	bo := internal.BuildOptions{Clean: cmd.Bool("clean"), NoCache: cmd.Bool("no-cache")}
	if _, err := internal.Build(ctx, bo, opts...); err != nil {
		return fmt.Errorf("build error: %w", err)
	}
	return nil
}

func clean(ctx context.Context, cmd *cli.Command) error {
	opts, err := options(cmd)
	if err != nil {
		return err
	}
	if err := internal.Clean(ctx, opts...); err != nil {
		return fmt.Errorf("clean error: %w", err)
	}
	return nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	opts, err := options(cmd)
	if err != nil {
		return err
	}
	so := internal.ServeOptions{Port: int(cmd.Int("port")), Build: cmd.Bool("build")}
	if err := internal.Serve(ctx, so, opts...); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func mcp(ctx context.Context, cmd *cli.Command) error {
	opts, err := options(cmd)
	if err != nil {
		return err
	}
	if err := internal.ServeMCP(ctx, opts...); err != nil {
		return fmt.Errorf("mcp server error: %w", err)
	}
	return nil
}

func main() {
	cmd := &cli.Command{
		Name:  "scribe",
		Usage: "Static site builder for Markdown posts with checksum-cached builds",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config.yaml",
				Value:       "config.yaml",
				Sources:     cli.EnvVars("SCRIBE_CONFIG_FILE"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "build",
				Usage:  "Build the site and publish changed files",
				Action: build,
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "clean", Usage: "Clean output and cache before building"},
					&cli.BoolFlag{Name: "no-cache", Usage: "Ignore the stored post cache"},
				},
			},
			{
				Name:   "clean",
				Usage:  "Delete the output, staging and cache directories",
				Action: clean,
			},
			{
				Name:   "serve",
				Usage:  "Serve the output directory for local preview",
				Action: serve,
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "port", Aliases: []string{"p"}, Usage: "Override server.port"},
					&cli.BoolFlag{Name: "build", Usage: "Build before serving"},
				},
			},
			{
				Name:   "mcp",
				Usage:  "Run the MCP management server on stdio",
				Action: mcp,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
