// Command repoanalyzer is the demo host for the parsing and pattern
// engine: a CLI exposing parse/classify over files, a watch mode that
// invalidates the cache coordinator on filesystem change, and an MCP
// server for editor/assistant integration. The command surface covers
// parse/classify/watch/mcp only; search, symbol lookup, and other
// project-analysis commands are a separate collaborator's concern.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/Zmaroo/RepoAnalyzer/internal/config"
	"github.com/Zmaroo/RepoAnalyzer/internal/debug"
	"github.com/Zmaroo/RepoAnalyzer/internal/engine"
	"github.com/Zmaroo/RepoAnalyzer/internal/mcpserver"
	"github.com/Zmaroo/RepoAnalyzer/internal/version"
	"github.com/Zmaroo/RepoAnalyzer/internal/watcher"
)

var cleanupFuncs []func()

func loadConfigWithOverrides(c *cli.Context) (*config.Config, error) {
	configPath := c.String("config")
	if rootFlag := c.String("root"); rootFlag != "" && configPath == "." {
		configPath = rootFlag
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config from %s: %w", configPath, err)
	}

	if includeFlags := c.StringSlice("include"); len(includeFlags) > 0 {
		cfg.Include = includeFlags
	}
	if excludeFlags := c.StringSlice("exclude"); len(excludeFlags) > 0 {
		cfg.Exclude = append(cfg.Exclude, excludeFlags...)
	}
	if rootFlag := c.String("root"); rootFlag != "" {
		absRoot, err := filepath.Abs(rootFlag)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve root path %q: %w", rootFlag, err)
		}
		cfg.Project.Root = absRoot
	}

	return cfg, nil
}

func main() {
	app := &cli.App{
		Name:                   "repoanalyzer",
		Usage:                  "Source parsing and pattern extraction engine",
		Version:                version.Version,
		UseShortOptionHandling: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Config search directory (looks for .repoanalyzer.kdl there)",
				Value:   ".",
			},
			&cli.StringSliceFlag{
				Name:  "include",
				Usage: "Include files matching glob patterns",
			},
			&cli.StringSliceFlag{
				Name:  "exclude",
				Usage: "Exclude files matching glob patterns",
			},
			&cli.StringFlag{
				Name:    "root",
				Aliases: []string{"r"},
				Usage:   "Project root directory (overrides config)",
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "parse",
				Usage:     "Parse a file and print its ParserResult as JSON",
				ArgsUsage: "<file>",
				Action:    parseCommand,
			},
			{
				Name:      "classify",
				Usage:     "Classify a file and print its Classification as JSON",
				ArgsUsage: "<file>",
				Action:    classifyCommand,
			},
			{
				Name:      "watch",
				Usage:     "Watch the project root and invalidate the cache coordinator on change",
				ArgsUsage: "[dir]",
				Action:    watchCommand,
			},
			{
				Name:   "mcp",
				Usage:  "Run as an MCP server over stdio",
				Action: mcpCommand,
			},
		},
	}

	defer func() {
		for _, cleanup := range cleanupFuncs {
			cleanup()
		}
	}()

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

func buildEngine(c *cli.Context) (*engine.Engine, *config.Config, error) {
	cfg, err := loadConfigWithOverrides(c)
	if err != nil {
		return nil, nil, err
	}
	if err := config.ValidateConfig(cfg); err != nil {
		return nil, nil, fmt.Errorf("invalid config: %w", err)
	}
	return engine.New(cfg), cfg, nil
}

func parseCommand(c *cli.Context) error {
	path := c.Args().First()
	if path == "" {
		return fmt.Errorf("usage: repoanalyzer parse <file>")
	}
	source, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	eng, _, err := buildEngine(c)
	if err != nil {
		return err
	}

	result := eng.Parse(context.Background(), path, source, eng.DefaultParserOptions())
	return printJSON(result)
}

func classifyCommand(c *cli.Context) error {
	path := c.Args().First()
	if path == "" {
		return fmt.Errorf("usage: repoanalyzer classify <file>")
	}
	prefix, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if len(prefix) > 512 {
		prefix = prefix[:512]
	}

	eng, _, err := buildEngine(c)
	if err != nil {
		return err
	}

	classification, err := eng.Classify(path, prefix)
	if err != nil {
		return err
	}
	return printJSON(classification)
}

func watchCommand(c *cli.Context) error {
	eng, cfg, err := buildEngine(c)
	if err != nil {
		return err
	}

	root := c.Args().First()
	if root == "" {
		root = cfg.Project.Root
	}

	w, err := watcher.New(eng)
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := w.Start(root); err != nil {
		return fmt.Errorf("failed to start file watcher: %w", err)
	}
	cleanupFuncs = append(cleanupFuncs, func() { _ = w.Stop() })

	debug.Log("WATCH", "watching %s for changes, invalidating cache on every event\n", root)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	return nil
}

func mcpCommand(c *cli.Context) error {
	debug.SetMCPMode(true)

	eng, _, err := buildEngine(c)
	if err != nil {
		return debug.Fatal("failed to build engine: %v", err)
	}

	server := mcpserver.NewServer(eng, "repoanalyzer-mcp-server", version.Version)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		debug.LogMCP("starting MCP server on stdio\n")
		errChan <- server.Start(ctx)
	}()

	select {
	case err := <-errChan:
		if err != nil {
			return debug.Fatal("MCP server error: %v", err)
		}
		return nil
	case <-sigChan:
		cancel()
		return nil
	}
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
