// Command pricebook-import loads tab-separated price book files into the
// price_book table. Files may be plain text or gzip-compressed; multiple
// files are imported concurrently.
package main

import (
	"context"
	"flag"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"

	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/mock-register/internal/pricebook"
	"github.com/xenking/mock-register/internal/repository"
)

func main() {
	var databaseURL string
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	files := flag.Args()
	if len(files) == 0 {
		slog.Error("no input files: pass one or more .tsv or .tsv.gz paths")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, files); err != nil {
		slog.Error("price book import failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("price book import completed successfully")
}

func run(ctx context.Context, databaseURL string, files []string) error {
	slog.Info("connecting to database")
	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	repo := repository.NewPriceBookRepository(pool)
	var total atomic.Int64

	g, ctx := errgroup.WithContext(ctx)
	for _, path := range files {
		g.Go(importFile(ctx, repo, path, &total))
	}
	if err := g.Wait(); err != nil {
		return err
	}

	slog.Info("import finished", slog.Int64("items", total.Load()))
	return nil
}

func importFile(ctx context.Context, repo *repository.PriceBookRepository, path string, total *atomic.Int64) func() error {
	return func() error {
		f, err := os.Open(path)
		if err != nil {
			return errors.Wrapf(err, "open %s", path)
		}
		defer func() { _ = f.Close() }()

		var r io.Reader = f
		if strings.HasSuffix(path, ".gz") {
			gz, err := pgzip.NewReader(f)
			if err != nil {
				return errors.Wrapf(err, "open gzip %s", path)
			}
			defer func() { _ = gz.Close() }()
			r = gz
		}

		items, err := pricebook.ParseTSV(ctx, r)
		if err != nil {
			return errors.Wrapf(err, "parse %s", path)
		}

		for _, it := range items {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := repo.Upsert(ctx, it); err != nil {
				return errors.Wrapf(err, "import %s", path)
			}
		}

		total.Add(int64(len(items)))
		slog.Info("file imported", slog.String("path", path), slog.Int("items", len(items)))
		return nil
	}
}
