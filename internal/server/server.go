/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/friendsincode/vanir_energy/internal/api"
	"github.com/friendsincode/vanir_energy/internal/audit"
	"github.com/friendsincode/vanir_energy/internal/cache"
	"github.com/friendsincode/vanir_energy/internal/config"
	"github.com/friendsincode/vanir_energy/internal/db"
	"github.com/friendsincode/vanir_energy/internal/eventbus"
	"github.com/friendsincode/vanir_energy/internal/events"
	"github.com/friendsincode/vanir_energy/internal/planner"
	"github.com/friendsincode/vanir_energy/internal/telemetry"
	"github.com/friendsincode/vanir_energy/internal/timeline"
)

// Server bundles HTTP and supporting services.
type Server struct {
	cfg        *config.Config
	logger     zerolog.Logger
	router     chi.Router
	httpServer *http.Server
	closers    []func() error

	db       *gorm.DB
	cache    *cache.Cache
	planner  *planner.Client
	timeline *timeline.Service
	auditSvc *audit.Service
	api      *api.API
	bus      *events.Bus
	natsBus  *eventbus.NATSBus

	bgCancel context.CancelFunc
	bgWG     sync.WaitGroup
}

// New constructs the server and wires dependencies.
func New(cfg *config.Config, logger zerolog.Logger) (*Server, error) {
	for _, warn := range cfg.LegacyEnvWarnings {
		logger.Warn().Msg(warn)
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(securityHeadersMiddleware)
	router.Use(telemetry.TracingMiddleware("vanir-energy-api"))
	router.Use(telemetry.MetricsMiddleware)
	router.Use(middleware.Timeout(60 * time.Second))

	srv := &Server{
		cfg:    cfg,
		logger: logger,
		router: router,
		bus:    events.NewBus(),
	}

	if err := srv.initDependencies(); err != nil {
		return nil, err
	}

	srv.configureRoutes()
	srv.startBackgroundWorkers()

	addr := fmt.Sprintf("%s:%d", cfg.HTTPBind, cfg.HTTPPort)
	srv.httpServer = &http.Server{
		Addr:              addr,
		Handler:           srv.router,
		ReadHeaderTimeout: 15 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return srv, nil
}

func securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "default-src 'self'; frame-ancestors 'none'; base-uri 'self'")

		// Only advertise HSTS for requests served over HTTPS.
		if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
			w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) initDependencies() error {
	database, err := db.Connect(s.cfg)
	if err != nil {
		return err
	}
	if err := db.Migrate(database); err != nil {
		return err
	}
	s.db = database
	s.DeferClose(func() error { return db.Close(database) })

	if s.cfg.CacheEnabled {
		cacheCfg := cache.DefaultConfig()
		cacheCfg.RedisAddr = s.cfg.RedisAddr
		cacheCfg.RedisPassword = s.cfg.RedisPassword
		cacheCfg.RedisDB = s.cfg.RedisDB
		planCache, err := cache.New(cacheCfg, s.logger)
		if err != nil {
			s.logger.Warn().Err(err).Msg("cache initialization failed, continuing without cache")
		} else {
			s.cache = planCache
			s.DeferClose(func() error { return s.cache.Close() })
		}
	}

	plannerCfg := planner.DefaultConfig(s.cfg.PlannerBaseURL)
	plannerCfg.RequestTimeout = s.cfg.PlannerTimeout
	s.planner = planner.New(plannerCfg, s.cache, s.logger)

	s.timeline = timeline.NewService(s.planner, s.planner, s.planner, s.bus, s.db, s.logger)
	s.auditSvc = audit.NewService(s.db, s.bus, s.logger)
	s.api = api.New(s.timeline, s.auditSvc, s.logger)

	if s.cfg.NATSEnabled {
		natsCfg := eventbus.DefaultNATSConfig()
		natsCfg.URL = s.cfg.NATSURL
		natsBus, err := eventbus.NewNATSBus(natsCfg, s.bus, s.logger)
		if err != nil {
			s.logger.Warn().Err(err).Msg("event bridge initialization failed, continuing in-process")
		} else {
			s.natsBus = natsBus
			s.DeferClose(func() error { return s.natsBus.Close() })
		}
	}

	return nil
}

func (s *Server) startBackgroundWorkers() {
	ctx, cancel := context.WithCancel(context.Background())
	s.bgCancel = cancel

	s.bgWG.Add(1)
	go func() {
		defer s.bgWG.Done()
		s.auditSvc.Start(ctx)
	}()

	if s.cache != nil {
		s.bgWG.Add(1)
		go func() {
			defer s.bgWG.Done()
			s.runCacheInvalidationListener(ctx)
		}()
	}
}

// runCacheInvalidationListener drops cached planner responses once an apply
// lands or another node reports a schedule change, so the next session load
// sees the new authoritative schedule.
func (s *Server) runCacheInvalidationListener(ctx context.Context) {
	applied := s.bus.Subscribe(events.EventTimelineApplied)
	scheduleUpdate := s.bus.Subscribe(events.EventScheduleUpdate)

	defer func() {
		s.bus.Unsubscribe(events.EventTimelineApplied, applied)
		s.bus.Unsubscribe(events.EventScheduleUpdate, scheduleUpdate)
	}()

	s.logger.Info().Msg("cache invalidation listener started")

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("cache invalidation listener stopped")
			return

		case <-applied:
			s.logger.Debug().Msg("invalidating planner cache (plan applied)")
			if err := s.cache.Invalidate(ctx); err != nil {
				s.logger.Warn().Err(err).Msg("cache invalidation failed")
			}

		case <-scheduleUpdate:
			s.logger.Debug().Msg("invalidating planner cache (schedule update)")
			if err := s.cache.Invalidate(ctx); err != nil {
				s.logger.Warn().Err(err).Msg("cache invalidation failed")
			}
		}
	}
}

func (s *Server) stopBackgroundWorkers() {
	if s.bgCancel == nil {
		return
	}
	s.bgCancel()
	s.bgWG.Wait()
	s.bgCancel = nil
}

func (s *Server) configureRoutes() {
	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	s.router.Handle("/metrics", telemetry.Handler())

	s.api.Routes(s.router)
}

// HTTPServer exposes the configured http.Server for the caller to run.
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// EventBus exposes the in-process bus, mainly for tests.
func (s *Server) EventBus() *events.Bus {
	return s.bus
}

// DeferClose registers a cleanup to run on Close, in reverse order.
func (s *Server) DeferClose(fn func() error) {
	s.closers = append(s.closers, fn)
}

// Close stops background workers and releases resources.
func (s *Server) Close() error {
	s.stopBackgroundWorkers()
	var firstErr error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
