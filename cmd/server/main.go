package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"

	_ "github.com/jackc/pgx/v5/stdlib"

	accessadapters "eventgate/internal/access/adapters"
	accessapi "eventgate/internal/access/handler"
	accessservice "eventgate/internal/access/service"
	eventtypeapi "eventgate/internal/eventtype/handler"
	eventtypeservice "eventgate/internal/eventtype/service"
	eventtypestore "eventgate/internal/eventtype/store"
	"eventgate/internal/platform/config"
	"eventgate/internal/platform/httpserver"
	"eventgate/internal/platform/logger"
	platformredis "eventgate/internal/platform/redis"
	registrationapi "eventgate/internal/registration/handler"
	registrationservice "eventgate/internal/registration/service"
	registrationstore "eventgate/internal/registration/store"
	"eventgate/internal/rules/cache"
	"eventgate/internal/rules/engine"
	rulesapi "eventgate/internal/rules/handler"
	"eventgate/internal/rules/metrics"
	"eventgate/internal/rules/plugin"
	rulesservice "eventgate/internal/rules/service"
	rulesstore "eventgate/internal/rules/store"
	httptransport "eventgate/internal/transport/http"
)

// eventTypeStore joins the two contracts one store type implements.
type eventTypeStore interface {
	eventtypestore.EventTypeStore
	eventtypestore.EventTypeRuleStore
}

// resolutionCache joins per-event and per-type invalidation.
type resolutionCache interface {
	cache.ResolutionCache
	cache.TypeInvalidator
}

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal services packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	var (
		ruleStore rulesstore.RuleStore
		typeStore eventTypeStore
		regStore  registrationstore.RegistrationStore
	)
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("pgx", cfg.DatabaseURL)
		if err != nil {
			log.Error("open database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		ruleStore = rulesstore.NewPostgres(db)
		typeStore = eventtypestore.NewPostgres(db)
		regStore = registrationstore.NewPostgres(db)
	} else {
		log.Warn("no database configured, using in-memory stores")
		ruleStore = rulesstore.NewInMemory()
		typeStore = eventtypestore.NewInMemory()
		regStore = registrationstore.NewInMemory()
	}

	var resolution resolutionCache
	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("connect redis", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		resolution = cache.NewRedis(redisClient.Client, cfg.CacheTTL)
	} else {
		resolution = cache.NewInMemory(cfg.CacheTTL)
	}

	eng := engine.New(ruleStore, typeStore, plugin.NewBuiltinRegistry(), log,
		engine.WithCache(resolution),
		engine.WithMetrics(metrics.New()),
	)
	ruleSvc := rulesservice.New(ruleStore, typeStore, typeStore, resolution, log)
	typeSvc := eventtypeservice.New(typeStore, typeStore, log,
		eventtypeservice.WithTypeInvalidator(resolution))
	regSvc := registrationservice.New(regStore, typeStore, log)

	handlers := []httptransport.Registrar{
		rulesapi.New(eng, ruleSvc, log),
		eventtypeapi.New(typeSvc, log),
		registrationapi.New(regSvc, log),
	}
	if cfg.DirectoryURL != "" {
		directory := accessadapters.NewDirectory(cfg.DirectoryURL)
		accessSvc := accessservice.New(eng, regSvc, directory, log)
		handlers = append(handlers, accessapi.New(accessSvc, log))
	} else {
		log.Warn("no directory configured, eligibility endpoints disabled")
	}

	router := httptransport.NewRouter(log, handlers...)
	srv := httpserver.New(cfg.Addr, router)

	log.Info("starting eventgate", "addr", cfg.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
}
