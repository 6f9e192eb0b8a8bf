package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/salesrank-backend/internal/dataset"
	"github.com/angelmondragon/salesrank-backend/pkg/config"
	"github.com/angelmondragon/salesrank-backend/pkg/db"
	"github.com/angelmondragon/salesrank-backend/pkg/logger"
	"github.com/angelmondragon/salesrank-backend/pkg/migrate"
)

const usage = "up|down|status|version|create|validate|seed|stats"

type options struct {
	cmd          string
	dir          string
	name         string
	version      string
	articles     string
	transactions string
	batchSize    int
}

func main() {
	_ = godotenv.Load()

	var opts options
	flags := flag.NewFlagSet("migrate", flag.ExitOnError)
	flags.StringVar(&opts.cmd, "cmd", "up", "command: "+usage)
	flags.StringVar(&opts.dir, "dir", "", "migrations directory (default: migrations embedded in the binary; create writes to "+migrate.SourceDir+")")
	flags.StringVar(&opts.name, "name", "", "migration name for -cmd=create")
	flags.StringVar(&opts.version, "version", "", "target version (YYYYMMDDHHMMSS) for -cmd=version")
	flags.StringVar(&opts.articles, "articles", "", "articles CSV for -cmd=seed")
	flags.StringVar(&opts.transactions, "transactions", "", "transactions CSV for -cmd=seed")
	flags.IntVar(&opts.batchSize, "batch", dataset.DefaultBatchSize, "rows per insert batch for -cmd=seed")
	_ = flags.Parse(os.Args[1:])

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logg := logger.New(logger.Options{ServiceName: "migrate"})
	if err := run(ctx, opts, logg); err != nil {
		logg.Error(logg.WithField(ctx, "cmd", opts.cmd), "migrate.failed", err)
		fmt.Fprintf(os.Stderr, "migrate %s: %v\n", opts.cmd, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options, logg *logger.Logger) error {
	// create and validate never touch the database
	switch opts.cmd {
	case "create":
		if opts.name == "" {
			return errors.New("missing -name")
		}
		dir := opts.dir
		if dir == "" {
			dir = migrate.SourceDir
		}
		path, err := migrate.CreateSQLMigration(dir, opts.name, time.Now())
		if err != nil {
			return err
		}
		fmt.Println("created migration:", path)
		return nil
	case "validate":
		if err := migrate.Validate(migrationsFS(opts.dir)); err != nil {
			return err
		}
		fmt.Println("migrations valid")
		return nil
	}

	cfg, err := config.LoadDatabase()
	if err != nil {
		return err
	}
	logg = logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})
	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "cmd": opts.cmd})

	client, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return err
	}
	defer client.Close()

	switch opts.cmd {
	case "seed":
		return seed(ctx, opts, client, logg)
	case "stats":
		counts, err := client.Counts(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("articles=%d transactions=%d\n", counts.Articles, counts.Transactions)
		return nil
	}

	if client.Driver() != config.DBDriverPostgres {
		return fmt.Errorf("-cmd=%s needs the postgres driver, got %s", opts.cmd, client.Driver())
	}
	sqlDB, err := client.DB().DB()
	if err != nil {
		return err
	}
	runner, err := migrate.NewRunner(sqlDB, migrationsFS(opts.dir))
	if err != nil {
		return err
	}

	var steps []migrate.Step
	switch opts.cmd {
	case "up":
		steps, err = runner.Up(ctx)
	case "down":
		steps, err = runner.Down(ctx)
	case "version":
		if opts.version == "" {
			return errors.New("missing -version")
		}
		steps, err = runner.MigrateTo(ctx, opts.version)
	case "status":
		statuses, err := runner.Status(ctx)
		if err != nil {
			return err
		}
		for _, s := range statuses {
			fmt.Printf("%-8s %d %s\n", s.State, s.Version, s.Path)
		}
		return nil
	default:
		return fmt.Errorf("unknown -cmd %q (want %s)", opts.cmd, usage)
	}

	for _, s := range steps {
		fmt.Printf("%-4s %d %s\n", s.Direction, s.Version, s.Path)
	}
	if err != nil {
		return err
	}
	logg.Info(logg.WithField(ctx, "steps", len(steps)), "migrate.completed")
	return nil
}

func seed(ctx context.Context, opts options, client *db.Client, logg *logger.Logger) error {
	if opts.articles == "" && opts.transactions == "" {
		return errors.New("seed needs -articles and/or -transactions")
	}
	loader, err := dataset.NewLoader(client, logg, opts.batchSize)
	if err != nil {
		return err
	}

	// articles first so transactions can reference them
	if opts.articles != "" {
		if err := loadFile(ctx, opts.articles, loader.LoadArticles); err != nil {
			return err
		}
	}
	if opts.transactions != "" {
		if err := loadFile(ctx, opts.transactions, loader.LoadTransactions); err != nil {
			return err
		}
	}
	return nil
}

func loadFile(ctx context.Context, path string, load func(context.Context, io.Reader) (dataset.Result, error)) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	res, err := load(ctx, f)
	if err != nil {
		return fmt.Errorf("%s (after %d rows): %w", path, res.Rows, err)
	}
	fmt.Printf("loaded %s: %d rows in %d batches\n", path, res.Rows, res.Batches)
	return nil
}

func migrationsFS(dir string) fs.FS {
	if dir == "" {
		return migrate.Migrations()
	}
	return os.DirFS(dir)
}
