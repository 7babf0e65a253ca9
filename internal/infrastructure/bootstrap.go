package infrastructure

import (
	"context"

	"quotaledger/internal/config"
	"quotaledger/internal/repository"
	"quotaledger/internal/scheduler"
	"quotaledger/internal/service"
	transportHTTP "quotaledger/internal/transport/http"
	transportNATS "quotaledger/internal/transport/nats"
	"quotaledger/internal/worker"
)

// Bootstrap initialises all dependencies from config and wires up the
// application. Returns the App, a cleanup function, or an error.
func Bootstrap(ctx context.Context) (*App, func(), error) {
	cfg, err := config.New()
	if err != nil {
		return nil, nil, err
	}

	db, err := connectPostgres(cfg.DSN())
	if err != nil {
		return nil, nil, err
	}

	rdb, err := connectRedis(cfg.RedisAddr())
	if err != nil {
		db.Close()
		return nil, nil, err
	}

	var cleanupFns []func()
	cleanupFns = append(cleanupFns, func() {
		db.Close()
		_ = rdb.Close()
	})

	// ── Infrastructure wiring ──────────────────────────────────────────────────
	var bus repository.MessageBus = repository.NopBus{}
	var servers []Server

	var svc service.Engine

	switch cfg.BusProvider {
	case "nats":
		nc, err := connectNats(cfg.NatsAddr())
		if err != nil {
			return nil, runCleanup(cleanupFns), err
		}
		bus = transportNATS.NewBus(nc)
		cleanupFns = append(cleanupFns, nc.Close)

		repo := repository.NewRepo(db, rdb, bus)
		svc = repo

		// The audit worker and the command handler both ride the same
		// connection; queue groups keep processing single-delivery across
		// instances.
		servers = append(servers, worker.NewAuditWorker(svc, nc))
		servers = append(servers, transportNATS.NewHandler(svc, nc))

	case "none":
		repo := repository.NewRepo(db, rdb, bus)
		svc = repo
	}

	if addr, apiErr := cfg.ApiAddr(); apiErr == nil {
		servers = append(servers, transportHTTP.NewServer(addr, svc))
	}

	if cfg.ResetCron != "" {
		servers = append(servers, scheduler.New(svc, cfg.ResetCron))
	}

	return NewApp(servers), runCleanup(cleanupFns), nil
}

// runCleanup returns a single function that calls all cleanup functions in reverse order.
func runCleanup(fns []func()) func() {
	return func() {
		for i := len(fns) - 1; i >= 0; i-- {
			fns[i]()
		}
	}
}
