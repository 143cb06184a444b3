// Package metrics exposes counters for reconciliation and directory updates.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Metrics holds the bot's collectors.
type Metrics struct {
	Registry *prometheus.Registry

	BadgesCreated     prometheus.Counter
	BadgesDeleted     prometheus.Counter
	RolesCreated      prometheus.Counter
	HierarchyFailures prometheus.Counter
	DirectoryPublish  *prometheus.CounterVec
	RemoteErrors      *prometheus.CounterVec
	Selections        *prometheus.CounterVec
}

// New registers the bot's collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{
		Registry: reg,
		BadgesCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "slippidex_badges_created_total",
			Help: "Character badges uploaded by reconciliation.",
		}),
		BadgesDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "slippidex_badges_deleted_total",
			Help: "Unrecognized badges purged by reconciliation.",
		}),
		RolesCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "slippidex_roles_created_total",
			Help: "Character roles created by reconciliation.",
		}),
		HierarchyFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "slippidex_hierarchy_failures_total",
			Help: "Reconciliation runs that found the bot's role ranked too low.",
		}),
		DirectoryPublish: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "slippidex_directory_publish_total",
			Help: "Directory message edits by result.",
		}, []string{"result"}),
		RemoteErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "slippidex_remote_errors_total",
			Help: "Failed Discord API calls by operation.",
		}, []string{"op"}),
		Selections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "slippidex_selection_steps_total",
			Help: "Selection menu submissions by outcome.",
		}, []string{"outcome"}),
	}

	reg.MustRegister(
		m.BadgesCreated,
		m.BadgesDeleted,
		m.RolesCreated,
		m.HierarchyFailures,
		m.DirectoryPublish,
		m.RemoteErrors,
		m.Selections,
	)
	return m
}

// Server serves /metrics.
type Server struct {
	server *http.Server
	log    *zap.SugaredLogger
}

// Serve starts serving the registry on addr. An empty addr disables the
// server and returns nil.
func Serve(addr string, m *Metrics, log *zap.SugaredLogger) *Server {
	if addr == "" {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{}))

	s := &Server{
		server: &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second},
		log:    log,
	}
	go func() {
		log.Infow("metrics server started", "addr", addr)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Errorw("metrics server failed", "error", err)
		}
	}()
	return s
}

// Stop shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	if s == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}
