// Package app wires storage and services from configuration. The HTTP
// server and the CLI commands share it.
package app

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/meghashyamc/caseindex/audit"
	"github.com/meghashyamc/caseindex/config"
	"github.com/meghashyamc/caseindex/db/kvdb"
	"github.com/meghashyamc/caseindex/db/searchdb"
	"github.com/meghashyamc/caseindex/db/sourcedb"
	"github.com/meghashyamc/caseindex/encryption"
	"github.com/meghashyamc/caseindex/logger"
	"github.com/meghashyamc/caseindex/services/index"
	"github.com/meghashyamc/caseindex/services/savedsearch"
	"github.com/meghashyamc/caseindex/services/search"
)

type App struct {
	Logger      logger.Logger
	Source      *sourcedb.SQLiteDB
	SearchDB    *searchdb.BleveDB
	KVDB        *kvdb.BoltDB
	Audit       *audit.LogSink
	Index       *index.Service
	Jobs        *index.Jobs
	Search      *search.Service
	SavedSearch *savedsearch.Service

	stopJobs context.CancelFunc
}

// New opens every store named in cfg. Jobs run until ctx is done or Close
// is called.
func New(ctx context.Context, cfg *config.Config, logger logger.Logger) (*App, error) {
	a := &App{Logger: logger}

	decryptor, err := encryption.New(cfg.GetEncryptionKey())
	if err != nil {
		logger.Error("error creating decryptor", "err", err.Error())
		return nil, err
	}

	a.Source, err = sourcedb.New(logger, cfg.GetSourceDBPath())
	if err != nil {
		logger.Error("error creating source database", "err", err.Error())
		return nil, err
	}

	a.SearchDB, err = searchdb.New(logger, filepath.Join(cfg.GetStoragePath(), cfg.GetIndexPath()))
	if err != nil {
		logger.Error("error creating searchDB", "err", err.Error())
		a.Close()
		return nil, err
	}

	a.KVDB, err = kvdb.New(logger, cfg.GetKVDBPath())
	if err != nil {
		logger.Error("error creating kvDB", "err", err.Error())
		a.Close()
		return nil, err
	}

	a.Audit = audit.NewLogSink(logger)
	a.Index = index.New(logger, a.Source, a.SearchDB, decryptor, a.Audit)
	jobsCtx, stopJobs := context.WithCancel(ctx)
	a.stopJobs = stopJobs
	a.Jobs = index.NewJobs(jobsCtx, logger, a.Index, a.KVDB)
	a.Search = search.New(logger, a.SearchDB, a.Source, a.Index.Projector(), a.Audit, search.Options{
		MaxCandidates: cfg.GetSearchMaxCandidates(),
		RankedEnabled: cfg.GetRankedSearchEnabled(),
	})
	a.SavedSearch = savedsearch.New(logger, a.KVDB, a.Search, a.Audit)

	return a, nil
}

func (a *App) Close() error {
	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	// a running rebuild is cancelled and stores its status before the
	// stores it writes to are closed
	if a.Jobs != nil {
		a.stopJobs()
		a.Jobs.Wait()
	}
	if a.Audit != nil {
		a.Audit.Close()
	}
	if a.KVDB != nil {
		keep(a.KVDB.Close())
	}
	if a.SearchDB != nil {
		keep(a.SearchDB.Close())
	}
	if a.Source != nil {
		keep(a.Source.Close())
	}
	if firstErr != nil {
		return fmt.Errorf("failed to close storage: %w", firstErr)
	}
	return nil
}
