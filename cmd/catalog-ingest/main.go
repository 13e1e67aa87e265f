// Command catalog-ingest loads gzipped NDJSON catalog price feeds into the
// database. Each line is one object: {"sku", "title", "currency", "list_price"}.
package main

import (
	"bufio"
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/commerce-pricing/internal/storage/postgres"
)

const progressEvery = 10_000

// priceRow is one decoded feed line.
type priceRow struct {
	sku       string
	title     string
	currency  string
	listPrice decimal.Decimal
}

func main() {
	var (
		databaseURL     string
		defaultCurrency string
		workers         int
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&defaultCurrency, "currency", "USD", "currency assumed for rows that omit one")
	flag.IntVar(&workers, "workers", 4, "concurrent upsert workers per file")
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
		slog.Error("no feed files given: pass one or more .ndjson.gz paths")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, defaultCurrency, workers, files); err != nil {
		slog.Error("catalog ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("catalog ingest completed successfully")
}

func run(ctx context.Context, databaseURL, defaultCurrency string, workers int, files []string) error {
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			return errors.Wrapf(err, "check file %s", f)
		}
	}

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	catalog := postgres.NewCatalogRepository(pool)

	for _, f := range files {
		slog.Info("ingesting feed", slog.String("file", f))
		if err := ingestFile(ctx, catalog, f, defaultCurrency, workers); err != nil {
			return errors.Wrapf(err, "ingest %s", f)
		}
	}
	return nil
}

// ingestFile streams one gzipped feed, decoding on the main goroutine and
// fanning upserts out to a bounded worker group.
func ingestFile(ctx context.Context, catalog *postgres.CatalogRepository, path, defaultCurrency string, workers int) error {
	rows := make(chan priceRow, workers*2)

	g, ctx := errgroup.WithContext(ctx)
	for range workers {
		g.Go(func() error {
			for row := range rows {
				if err := catalog.UpsertPrice(ctx, row.sku, row.title, row.currency, row.listPrice); err != nil {
					return err
				}
			}
			return nil
		})
	}

	g.Go(func() error {
		defer close(rows)

		var count uint64
		err := streamGzFile(ctx, path, func(line []byte) error {
			row, err := decodeRow(line, defaultCurrency)
			if err != nil {
				return err
			}

			select {
			case rows <- row:
			case <-ctx.Done():
				return ctx.Err()
			}

			count++
			if count%progressEvery == 0 {
				slog.Info("ingest progress", slog.String("file", path), slog.Uint64("rows", count))
			}
			return nil
		})
		if err != nil {
			return err
		}

		slog.Info("feed decoded", slog.String("file", path), slog.Uint64("rows", count))
		return nil
	})

	return g.Wait()
}

// decodeRow parses one NDJSON feed line.
func decodeRow(line []byte, defaultCurrency string) (priceRow, error) {
	var (
		row      priceRow
		rawPrice string
	)
	d := jx.DecodeBytes(line)
	if err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		var err error
		switch string(key) {
		case "sku":
			row.sku, err = d.Str()
		case "title":
			row.title, err = d.Str()
		case "currency":
			row.currency, err = d.Str()
		case "list_price":
			// Accept both JSON numbers and strings; keep full precision.
			var raw jx.Raw
			if raw, err = d.Raw(); err == nil {
				rawPrice = string(raw)
			}
		default:
			err = d.Skip()
		}
		return err
	}); err != nil {
		return priceRow{}, errors.Wrap(err, "decode feed line")
	}

	if row.sku == "" {
		return priceRow{}, errors.New("feed line has no sku")
	}
	if row.currency == "" {
		row.currency = defaultCurrency
	}
	if len(rawPrice) >= 2 && rawPrice[0] == '"' {
		rawPrice = rawPrice[1 : len(rawPrice)-1]
	}
	price, err := decimal.NewFromString(rawPrice)
	if err != nil {
		return priceRow{}, errors.Wrapf(err, "parse list price for %q", row.sku)
	}
	row.listPrice = price
	return row, nil
}

// streamGzFile opens a gzip-compressed file and calls fn for each line.
func streamGzFile(ctx context.Context, path string, fn func(line []byte) error) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	scanner := bufio.NewScanner(gz)
	scanner.Buffer(make([]byte, 0, 1<<16), 1<<20)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		if err := fn(line); err != nil {
			return err
		}
	}

	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "scan %s", path)
	}

	return nil
}
