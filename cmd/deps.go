package main

import (
	"context"
	"net/http"
	"time"

	"github.com/rotisserie/eris"

	"github.com/votesquad/voter-cli/internal/blocks"
	"github.com/votesquad/voter-cli/internal/sbe"
	"github.com/votesquad/voter-cli/internal/store"
	"github.com/votesquad/voter-cli/pkg/geocode"
)

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		path := cfg.Store.SQLitePath
		if path == "" {
			path = "voter.db"
		}
		return store.NewSQLite(path)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// initGeocoder builds the geocode client stack: census client, retry,
// then the persistent cache when a store is supplied.
func initGeocoder(st store.Store) geocode.Client {
	var opts []geocode.Option
	if cfg.Geocode.RateLimit > 0 {
		opts = append(opts, geocode.WithRateLimit(cfg.Geocode.RateLimit))
	}
	if cfg.Geocode.BaseURL != "" {
		opts = append(opts, geocode.WithBaseURL(cfg.Geocode.BaseURL))
	}
	if cfg.Geocode.Benchmark != "" {
		opts = append(opts, geocode.WithBenchmark(cfg.Geocode.Benchmark))
	}

	client := geocode.NewClient(opts...)
	if cfg.Geocode.Retries > 0 {
		client = geocode.WithRetry(client, geocode.RetryOptions{Attempts: cfg.Geocode.Retries})
	}
	if st != nil {
		client = geocode.WithCache(client, store.GeocodeCache{Store: st})
	}
	return client
}

func initSource() *sbe.Source {
	return &sbe.Source{
		DataDir:    cfg.Data.Dir,
		HTTPClient: &http.Client{Timeout: 30 * time.Minute},
	}
}

func initBlockLoader() *blocks.Loader {
	return &blocks.Loader{
		HTTPClient: &http.Client{Timeout: 10 * time.Minute},
		DataDir:    cfg.Data.Dir,
		SF1: &blocks.SF1Client{
			APIKey:  cfg.Census.APIKey,
			BaseURL: cfg.Census.BaseURL,
		},
	}
}

func batchOptions() geocode.BatchOptions {
	return geocode.BatchOptions{
		ChunkSize:    cfg.Geocode.ChunkSize,
		Concurrency:  cfg.Geocode.Concurrency,
		ChunkTimeout: time.Duration(cfg.Geocode.ChunkTimeoutSecs) * time.Second,
	}
}
