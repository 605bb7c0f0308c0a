package main

import (
	"github.com/alfredjeanlab/graphsync/internal/fetch"
	"github.com/alfredjeanlab/graphsync/internal/persister"
	"github.com/alfredjeanlab/graphsync/internal/provider"
	"github.com/alfredjeanlab/graphsync/internal/store/postgres"
	"github.com/alfredjeanlab/graphsync/internal/synchronize"
)

// pipeline wires the fetch and synchronize phases to one database.
type pipeline struct {
	store        *postgres.PostgresStore
	client       *provider.HTTPClient
	persister    *persister.Diffing
	fetcher      *fetch.Fetcher
	synchronizer *synchronize.Synchronizer
}

func openPipeline() (*pipeline, error) {
	store, err := openStore(cfg)
	if err != nil {
		return nil, err
	}
	client := newClient(cfg)
	p := persister.New(store, logger)
	return &pipeline{
		store:        store,
		client:       client,
		persister:    p,
		fetcher:      fetch.New(client, store, cfg.Projects, logger),
		synchronizer: synchronize.New(store, client, p, cfg.CustomFields, logger),
	}, nil
}

func (p *pipeline) Close() {
	if err := p.store.Close(); err != nil {
		logger.Error("close store", "err", err)
	}
}

// unitsFor returns the units named by args, or the configured ones.
func unitsFor(args []string) []string {
	if len(args) > 0 {
		return synchronize.Units(args)
	}
	return synchronize.Units(cfg.Collections)
}
