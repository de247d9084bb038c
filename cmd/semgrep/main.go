package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/andersk/semgrep/internal/config"
	"github.com/andersk/semgrep/internal/mcp"
	"github.com/andersk/semgrep/internal/output"
	"github.com/andersk/semgrep/internal/rule"
	"github.com/andersk/semgrep/internal/scan"
)

var version = "0.1.0"

// loadConfigWithOverrides loads the project configuration and applies
// CLI flag overrides on top of it.
func loadConfigWithOverrides(c *cli.Context) (*config.Config, error) {
	root := c.String("root")
	if root == "" {
		root = "."
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root path %q: %w", root, err)
	}

	cfg, err := config.Load(absRoot)
	if err != nil {
		return nil, err
	}

	if rules := c.StringSlice("rules"); len(rules) > 0 {
		cfg.RuleFiles = rules
	}
	if include := c.StringSlice("include"); len(include) > 0 {
		cfg.Scan.Include = include
	}
	if exclude := c.StringSlice("exclude"); len(exclude) > 0 {
		cfg.Scan.Exclude = append(cfg.Scan.Exclude, exclude...)
	}
	if c.IsSet("jobs") {
		cfg.Limits.Jobs = c.Int("jobs")
	}
	if c.IsSet("timeout") {
		cfg.Limits.RuleTimeoutMs = c.Int("timeout")
	}
	if c.IsSet("format") {
		cfg.Output.Format = c.String("format")
	}
	if c.Bool("explain") {
		cfg.Output.Explanations = true
	}
	if c.Bool("verbose") {
		cfg.Verbose = true
	}

	return cfg, cfg.Validate()
}

func main() {
	app := &cli.App{
		Name:                   "semgrep",
		Usage:                  "Structural code search with pattern rules",
		Version:                version,
		UseShortOptionHandling: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "root",
				Aliases: []string{"r"},
				Usage:   "Project root directory to scan",
			},
			&cli.StringSliceFlag{
				Name:  "rules",
				Usage: "Rule files or directories (overrides config)",
			},
			&cli.StringSliceFlag{
				Name:  "include",
				Usage: "Scan only files matching glob patterns (e.g., --include 'src/**/*.py')",
			},
			&cli.StringSliceFlag{
				Name:  "exclude",
				Usage: "Skip files matching glob patterns (e.g., --exclude '**/testdata/**')",
			},
			&cli.IntFlag{
				Name:    "jobs",
				Aliases: []string{"j"},
				Usage:   "Number of files scanned in parallel",
			},
			&cli.IntFlag{
				Name:  "timeout",
				Usage: "Per-rule per-file timeout in milliseconds",
			},
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "Output format: text or json",
			},
			&cli.BoolFlag{
				Name:  "explain",
				Usage: "Record how each rule's formula evaluated (json output only)",
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Trace rule evaluation to stderr",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "scan",
				Usage:  "Scan the project once and report findings",
				Action: scanCommand,
			},
			{
				Name:   "watch",
				Usage:  "Scan, then rescan files as they change",
				Action: watchCommand,
			},
			{
				Name:   "mcp",
				Usage:  "Serve scanning over the Model Context Protocol on stdio",
				Action: mcpCommand,
			},
			{
				Name:   "rules-schema",
				Usage:  "Print the JSON schema of the rule file format",
				Action: schemaCommand,
			},
		},
		// Bare invocation scans, matching what people reach for first.
		Action: scanCommand,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

func scanCommand(c *cli.Context) error {
	cfg, err := loadConfigWithOverrides(c)
	if err != nil {
		return err
	}

	scanner, err := scan.NewScanner(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	report, err := scanner.Run(ctx)
	if err != nil {
		return err
	}

	if cfg.Output.Format == "json" {
		if err := output.JSON(os.Stdout, report); err != nil {
			return err
		}
	} else {
		if err := output.Text(os.Stdout, report); err != nil {
			return err
		}
	}

	if len(report.Findings) > 0 {
		return cli.Exit("", 1)
	}
	return nil
}

func watchCommand(c *cli.Context) error {
	cfg, err := loadConfigWithOverrides(c)
	if err != nil {
		return err
	}

	scanner, err := scan.NewScanner(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initial full scan before watching for changes.
	report, err := scanner.Run(ctx)
	if err != nil {
		return err
	}
	if err := output.Text(os.Stdout, report); err != nil {
		return err
	}

	watcher, err := scan.NewWatcher(scanner)
	if err != nil {
		return err
	}
	if err := watcher.Start(ctx); err != nil {
		return err
	}
	defer watcher.Stop()

	fmt.Fprintf(os.Stderr, "watching %s for changes, Ctrl-C to stop\n", cfg.Root)
	for {
		select {
		case <-ctx.Done():
			return nil
		case res := <-watcher.Results():
			for _, f := range res.Findings {
				fmt.Printf("%s:%d:%d %s [%s] %s\n",
					f.Path, f.Span.StartPoint.Row+1, f.Span.StartPoint.Column+1,
					f.Severity, f.RuleID, f.Message)
			}
			for _, e := range res.Errors {
				fmt.Fprintf(os.Stderr, "error: %s\n", e.Error())
			}
			if len(res.Findings) == 0 {
				fmt.Printf("%s: clean\n", res.Path)
			}
		}
	}
}

func mcpCommand(c *cli.Context) error {
	cfg, err := loadConfigWithOverrides(c)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	server := mcp.NewServer(cfg)
	if err := server.Run(ctx); err != nil && ctx.Err() == nil {
		return fmt.Errorf("MCP server error: %w", err)
	}
	return nil
}

func schemaCommand(c *cli.Context) error {
	schema, err := rule.FileSchemaJSON()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(os.Stdout, "%s\n", schema)
	return err
}
