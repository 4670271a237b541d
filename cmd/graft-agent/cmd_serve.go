package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/graftdb/graft/client"
	"github.com/graftdb/graft/storage/badgerstore"
	"github.com/graftdb/graft/syncer"
	log "github.com/sirupsen/logrus"
)

// cmdServe runs the background sync task against a local badger-backed
// store, pulling from and pushing to a remote metastore/pagestore pair
// until signaled to exit.
type cmdServe struct {
	LogConfig LogConfig `group:"Logging"`

	DataDir string `long:"data-dir" env:"GRAFT_DATA_DIR" default:"graft-data" description:"Directory backing the local badger store"`

	MetastoreURL string `long:"metastore-url" env:"GRAFT_METASTORE_URL" required:"true" description:"Base URL of the remote metastore"`
	PagestoreURL string `long:"pagestore-url" env:"GRAFT_PAGESTORE_URL" required:"true" description:"Base URL of the remote pagestore"`

	SyncInterval    time.Duration `long:"sync-interval" default:"30s" description:"Period between unprompted sync cycles"`
	SyncWorkerLimit int           `long:"sync-worker-limit" default:"4" description:"Max volumes synced concurrently per cycle"`
}

func (cmd *cmdServe) Execute(_ []string) error {
	initLog(cmd.LogConfig)

	log.WithFields(log.Fields{
		"data_dir":      cmd.DataDir,
		"metastore_url": cmd.MetastoreURL,
		"pagestore_url": cmd.PagestoreURL,
	}).Info("graft-agent: starting")

	store, err := badgerstore.Open(cmd.DataDir)
	if err != nil {
		return err
	}
	defer store.Close()

	metastore := client.NewMetastoreClient(client.Config{BaseURL: cmd.MetastoreURL})
	pagestore := client.NewPagestoreClient(client.Config{BaseURL: cmd.PagestoreURL})

	task := syncer.NewTask(store, metastore, pagestore, syncer.Config{
		Interval:    cmd.SyncInterval,
		WorkerLimit: cmd.SyncWorkerLimit,
	}, nil)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	err = task.Run(ctx)
	if err != nil && ctx.Err() != nil {
		// Canceled by signal; a clean shutdown, not a failure.
		log.Info("graft-agent: shutting down")
		return nil
	}
	return err
}
