// Castellan - Authorization and Security Monitoring for Content Platforms
// Copyright 2026 Castellan Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/castellan-io/castellan

package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/castellan-io/castellan/internal/authz"
	"github.com/castellan-io/castellan/internal/logging"
	"github.com/castellan-io/castellan/internal/models"
)

// NewRouter assembles the HTTP surface. Security console endpoints require
// the security manage permission; event ingestion and authorization probes
// only require a resolvable active actor.
func NewRouter(handler *Handler, mw *Middleware) chi.Router {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(mw.CORS())

	r.Get("/healthz", handler.Health)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(mw.RateLimit())
		r.Use(mw.BlockedIPGate)
		r.Use(mw.ResolveActor)

		r.Get("/authz/check", handler.CheckPermission)
		r.Get("/authz/route-access", handler.CheckRouteAccess)

		r.Post("/security/events", handler.CreateSecurityEvent)

		// Security console: admins only.
		r.Group(func(r chi.Router) {
			r.Use(mw.RequirePermission(authz.ResourceSecurity, models.ActionManage, models.ScopeAll))

			r.Get("/security/events", handler.ListSecurityEvents)
			r.Post("/security/events/{id}/resolve", handler.ResolveSecurityEvent)
			r.Get("/security/dashboard", handler.Dashboard)
			r.Get("/security/alert-configs", handler.ListAlertConfigs)
			r.Put("/security/alert-configs", handler.UpdateAlertConfig)
			r.Get("/security/blocked-ips", handler.ListBlockedIPs)
			r.Post("/security/blocked-ips", handler.BlockIP)
			r.Delete("/security/blocked-ips/{ip}", handler.UnblockIP)
		})
	})

	return r
}

// Server wraps http.Server with suture-compatible lifecycle management.
type Server struct {
	srv  *http.Server
	addr string
}

// NewServer creates an HTTP server for the router.
func NewServer(addr string, router chi.Router) *Server {
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       2 * time.Minute,
		},
		addr: addr,
	}
}

// Serve runs the server until the context is cancelled, then shuts down
// gracefully. It implements suture.Service.
func (s *Server) Serve(ctx context.Context) error {
	errChan := make(chan error, 1)
	go func() {
		logging.Info().Str("addr", s.addr).Msg("http server listening")
		errChan <- s.srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			logging.Error().Err(err).Msg("http server shutdown failed")
		}
		<-errChan
		return ctx.Err()
	case err := <-errChan:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// String implements fmt.Stringer for supervisor logs.
func (s *Server) String() string {
	return "http-server"
}
