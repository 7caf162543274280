package server

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"

	"github.com/emrgen/linkstore/internal/cache"
	"github.com/emrgen/linkstore/internal/compress"
	"github.com/emrgen/linkstore/internal/config"
	"github.com/emrgen/linkstore/internal/database"
	"github.com/emrgen/linkstore/internal/jobs"
	"github.com/emrgen/linkstore/internal/linkbag"
	"github.com/emrgen/linkstore/internal/queue"
	"github.com/emrgen/linkstore/internal/service"
	"github.com/emrgen/linkstore/internal/store"
	"github.com/sirupsen/logrus"
)

// App holds the components behind the servers.
type App struct {
	Store    store.Store
	DB       *database.Database
	Service  *service.LinkService
	Executor *jobs.TaskExecutor

	cancel  context.CancelFunc
	closers []io.Closer
}

// Open wires the store, the cache, the index queue and the jobs from the config.
func Open(cfg *config.Config) (*App, error) {
	if cfg.DB.DSN == "" && cfg.DB.Driver != config.DriverPostgres {
		if err := os.MkdirAll(filepath.Dir(cfg.DB.Path), os.ModePerm); err != nil {
			return nil, err
		}
	}

	s, err := store.NewStore(cfg)
	if err != nil {
		return nil, err
	}
	app := &App{Store: s, closers: []io.Closer{s}}

	codec, err := compress.ByName(cfg.RecordCompression)
	if err != nil {
		_ = app.Close()
		return nil, err
	}

	opts := database.Options{
		Thresholds: &linkbag.Thresholds{
			EmbeddedToExternal: cfg.LinkBag.EmbeddedToExternalThreshold,
			ExternalToEmbedded: cfg.LinkBag.ExternalToEmbeddedThreshold,
		},
		Compression: codec,
	}

	if cfg.RedisAddr != "" {
		rc := cache.NewRedisRecordCache(cfg.RedisAddr)
		opts.Cache = rc
		app.closers = append(app.closers, rc)
		logrus.Infof("caching records in redis at %s", cfg.RedisAddr)
	}

	var feed []jobs.Job
	if cfg.KafkaBrokers != "" {
		q, err := queue.NewKafkaIndexQueue(cfg.KafkaBrokers, cfg.KafkaIndexTopic)
		if err != nil {
			_ = app.Close()
			return nil, err
		}
		opts.Queue = q
		app.closers = append(app.closers, q)
		logrus.Infof("publishing index changes to %s on %s", cfg.KafkaIndexTopic, cfg.KafkaBrokers)
	}

	app.DB = database.New(s, opts)

	if opts.Queue != nil {
		ctx, cancel := context.WithCancel(context.Background())
		app.cancel = cancel

		changes, err := opts.Queue.Subscribe(ctx)
		if err != nil {
			_ = app.Close()
			return nil, err
		}
		feed = append(feed, jobs.NewIndexFeedJob(changes, app.DB.Indexes()))
	}

	audit := jobs.NewTreeAuditTask(cfg.AuditSchedule, s)
	app.Service = service.NewLinkService(app.DB, audit)
	app.Executor = jobs.NewTaskExecutor(feed, []jobs.CronJob{audit})

	return app, nil
}

// Close releases the components in reverse order of opening.
func (a *App) Close() error {
	if a.cancel != nil {
		a.cancel()
	}

	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i].Close())
	}

	return errors.Join(errs...)
}
