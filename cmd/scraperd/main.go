package main

import (
	"context"
	"flag"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/juju/clock"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/bookdex/bookdex/bookstore"
	"github.com/bookdex/bookdex/bookstore/memory"
	"github.com/bookdex/bookdex/bookstore/postgres"
	"github.com/bookdex/bookdex/runner"
	"github.com/bookdex/bookdex/sources"
)

const appName = "scraperd"

func main() {
	var (
		sourceName = flag.String(
			"source", "all",
			"Name of a single registered source to scrape, or 'all' for every"+
				" enabled source",
		)
		dbDSN = flag.String(
			"db-dsn", os.Getenv("BOOKS_DB_DSN"),
			"PostgreSQL DSN for the book store. [defaults to the BOOKS_DB_DSN"+
				" envvar; an empty value selects a throwaway in-memory store]",
		)
		logDir = flag.String(
			"log-dir", "",
			"Directory for rotated log files. [an empty value logs to stderr only]",
		)
	)
	flag.Parse()

	host, _ := os.Hostname()
	logger := newLogger(*logDir).WithFields(logrus.Fields{
		"app":  appName,
		"host": host,
	})

	if err := run(*sourceName, *dbDSN, logger); err != nil {
		logger.WithField("err", err).Error("shutting down due to an error")
		os.Exit(1)
	}

	logger.Info("shutdown complete")
}

func run(sourceName, dbDSN string, logger *logrus.Entry) error {
	runSources, err := selectSources(sourceName)
	if err != nil {
		return err
	}

	store, err := getStore(dbDSN, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.WithField("err", err).Warn("book store close failed")
		}
	}()

	ctx, cancelFn := context.WithCancel(context.Background())
	defer cancelFn()

	// Launch a separate process to listen and respond to os signals
	// and trigger a graceful shutdown.
	go func() {
		signalChan := make(chan os.Signal, 1)
		signal.Notify(signalChan, syscall.SIGINT, syscall.SIGTERM)

		select {
		case s := <-signalChan:
			logger.WithField("signal", s.String()).
				Info("shutting down due to os signal")
			cancelFn()
		case <-ctx.Done():
		}
	}()

	r, err := runner.New(runner.Config{
		Sources:    runSources,
		Store:      store,
		NewFetcher: runner.NewFetcherFactory(clock.WallClock, logger),
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	_, err = r.Run(ctx)

	return err
}

func selectSources(name string) ([]sources.Source, error) {
	if name == "all" {
		return sources.EnabledSources(), nil
	}

	src, err := sources.ByName(name)
	if err != nil {
		return nil, err
	}

	return []sources.Source{src}, nil
}

func getStore(dsn string, logger *logrus.Entry) (bookstore.Store, error) {
	if dsn == "" {
		logger.Warn("no database DSN configured, using a throwaway in-memory store")

		return memory.NewInMemoryStore(), nil
	}

	store, err := postgres.NewBookStore(dsn)
	if err != nil {
		return nil, err
	}
	if err := store.EnsureSchema(); err != nil {
		return nil, err
	}

	return store, nil
}

// newLogger builds the root logger, teeing to a rotated file when a log
// directory is configured.
func newLogger(logDir string) *logrus.Logger {
	logger := logrus.New()
	if logDir == "" {
		return logger
	}

	logger.SetOutput(io.MultiWriter(os.Stderr, &lumberjack.Logger{
		Filename:   filepath.Join(logDir, appName+".log"),
		MaxSize:    10, // megabytes
		MaxBackups: 5,
	}))

	return logger
}
