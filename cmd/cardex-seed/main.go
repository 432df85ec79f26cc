package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/kailas-cloud/cardex/internal/app"
	"github.com/kailas-cloud/cardex/internal/config"
	"github.com/kailas-cloud/cardex/internal/domain/entity"
	"github.com/kailas-cloud/cardex/internal/fixtures"
	logpkg "github.com/kailas-cloud/cardex/internal/logger"
	"github.com/kailas-cloud/cardex/internal/version"
)

const loggerKey = "logger"

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	fileFlag := &cli.StringFlag{
		Name:     "file",
		Aliases:  []string{"f"},
		Usage:    "Path to a JSON fixture file with sets, cards and products",
		Required: true,
	}
	return &cli.App{
		Name:  "cardex-seed",
		Usage: "Load reference data into the cardex document store",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "env",
				Aliases: []string{"e"},
				Usage:   "Environment whose config/<env>.yaml is used (local, dev, prod)",
				Value:   "local",
				EnvVars: []string{"ENV"},
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Explicit config file path, overrides --env lookup",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
		},
		Before: setupLogger,
		After: func(c *cli.Context) error {
			if l, ok := c.App.Metadata[loggerKey].(*zap.Logger); ok {
				_ = l.Sync()
			}
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:   "load",
				Usage:  "Upsert every fixture document through the catalog",
				Action: loadCommand,
				Flags:  []cli.Flag{fileFlag},
			},
			{
				Name:   "validate",
				Usage:  "Parse a fixture file and report what it contains",
				Action: validateCommand,
				Flags:  []cli.Flag{fileFlag},
			},
			{
				Name:   "count",
				Usage:  "Print the number of stored documents per entity type",
				Action: countCommand,
			},
			{
				Name:  "version",
				Usage: "Print build information",
				Action: func(c *cli.Context) error {
					_, err := fmt.Fprintln(c.App.Writer, version.Get().String())
					return err
				},
			},
		},
	}
}

func setupLogger(c *cli.Context) error {
	logger, err := logpkg.NewLogger(c.String("env"), "cardex-seed", logpkg.WithLevel(c.String("log-level")))
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	if c.App.Metadata == nil {
		c.App.Metadata = make(map[string]any)
	}
	c.App.Metadata[loggerKey] = logger
	return nil
}

func loggerFrom(c *cli.Context) *zap.Logger {
	if l, ok := c.App.Metadata[loggerKey].(*zap.Logger); ok {
		return l
	}
	return zap.NewNop()
}

func loadConfig(c *cli.Context) (config.Config, error) {
	if path := c.String("config"); path != "" {
		return config.LoadFile(path)
	}
	return config.Load(c.String("env"))
}

// openApp assembles the services without building the index; upserts only
// touch the store and the shared cache.
func openApp(c *cli.Context) (*app.App, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	// The seed file is for the server's memory store; fixtures come from --file.
	cfg.Database.SeedFile = ""
	if cfg.Database.Driver == config.DriverMemory {
		loggerFrom(c).Warn("Memory driver selected, loaded documents are discarded on exit")
	}
	a, err := app.New(c.Context, cfg, loggerFrom(c))
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	return a, nil
}

func loadCommand(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	catalog, err := fixtures.Load(c.String("file"))
	if err != nil {
		return err
	}

	a, err := openApp(c)
	if err != nil {
		return err
	}
	defer a.Close()

	summary, err := fixtures.Apply(ctx, a.Catalog, catalog, loggerFrom(c))
	if err != nil {
		return fmt.Errorf("load failed: %w", err)
	}
	for _, t := range entity.All() {
		fmt.Fprintf(c.App.Writer, "%-8s created=%d updated=%d\n",
			t, summary.Created[t], summary.Updated[t])
	}
	fmt.Fprintln(c.App.Writer, "stored:")
	return printCounts(ctx, c, a)
}

func validateCommand(c *cli.Context) error {
	catalog, err := fixtures.Load(c.String("file"))
	if err != nil {
		return err
	}
	for _, t := range entity.All() {
		fmt.Fprintf(c.App.Writer, "%-8s %d\n", t, len(catalog[t]))
	}
	return nil
}

func countCommand(c *cli.Context) error {
	a, err := openApp(c)
	if err != nil {
		return err
	}
	defer a.Close()

	return printCounts(c.Context, c, a)
}

func printCounts(ctx context.Context, c *cli.Context, a *app.App) error {
	for _, t := range entity.All() {
		n, err := a.Repo.Count(ctx, t)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.App.Writer, "%-8s %d\n", t, n)
	}
	return nil
}
