package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/cadms/dashcache/client"
	"github.com/cadms/dashcache/coordinator"
	"github.com/cadms/dashcache/persist"
)

// New creates a new server instance
func New(c *Config, cl *client.Client, coord *coordinator.Coordinator, bridge *persist.Bridge) (*Server, error) {
	if cl == nil {
		return nil, errors.New("no slice client provided")
	}
	if coord == nil {
		return nil, errors.New("no cache coordinator provided")
	}

	return &Server{
		c: c,
		h: newHandlers(cl, coord, bridge),
	}, nil
}

// Server represents a server instance
type Server struct {
	c *Config
	h *handlers
}

// Router returns the request router serving the slice and admin
// endpoints.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/api/v1/dashboard/{userID}", s.h.DashboardHandler).Methods("GET")
	r.HandleFunc("/api/v1/overview", s.h.SystemOverviewHandler).Methods("GET")
	r.HandleFunc("/api/v1/stats/{userID}", s.h.UserStatisticsHandler).Methods("GET")
	r.HandleFunc("/api/v1/actionable/{userID}", s.h.ActionableItemsHandler).Methods("GET")
	r.HandleFunc("/api/v1/activity/{userID}", s.h.ActivityFeedHandler).Methods("GET")
	r.HandleFunc("/api/v1/personalization/{userID}", s.h.PersonalizationHandler).Methods("GET")
	r.HandleFunc("/api/v1/personalization/{userID}", s.h.UpdatePersonalizationHandler).Methods("PUT")
	r.HandleFunc("/api/v1/refresh/{userID}", s.h.RefreshAllHandler).Methods("POST")

	r.HandleFunc("/admin/cache/stats", s.h.StatsHandler).Methods("GET")
	r.HandleFunc("/admin/cache/clear", s.h.ClearHandler).Methods("POST")
	r.HandleFunc("/admin/cache/optimize", s.h.OptimizeHandler).Methods("POST")
	r.HandleFunc("/admin/cache/invalidate", s.h.InvalidateHandler).Methods("POST")
	r.HandleFunc("/admin/cache/preloads", s.h.PreloadStatusHandler).Methods("GET")
	r.HandleFunc("/admin/persistence/save", s.h.PersistSaveHandler).Methods("POST")
	r.HandleFunc("/admin/persistence/clear", s.h.PersistClearHandler).Methods("POST")

	return r
}

// ListenAndServe listens for new requests and serves them
func (s *Server) ListenAndServe() {
	r := s.Router()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tlsEnabled := s.c.TLS != nil && s.c.TLS.CertFile != "" && s.c.TLS.KeyFile != ""
	if !s.c.TLSOnly {
		go listenAndServe(ctx, cancel, s.c.ListenAddr, r)
	}

	if tlsEnabled {
		go listenAndServeTLS(ctx, cancel, s.c.TLSListenAddr, s.c.TLS, r)
	}

	<-ctx.Done()
}

// listenAndServe serves a plain http webserver
func listenAndServe(ctx context.Context, cancel func(), addr string, handler http.Handler) {
	defer cancel()
	addrStr := getAddrString(addr)
	log.Infof("http server listening on: http://%s\n", addrStr)
	log.Error(http.ListenAndServe(addr, handler))
}

// listenAndServeTLS serves a tls webserver
func listenAndServeTLS(ctx context.Context, cancel func(), addr string, tls *TLSConfig, handler http.Handler) {
	defer cancel()
	addrStr := getAddrString(addr)
	log.Infof("https server listening on: https://%s\n", addrStr)
	log.Error(http.ListenAndServeTLS(addr, tls.CertFile, tls.KeyFile, handler))
}

func getAddrString(addr string) string {
	if strings.HasPrefix(addr, ":") {
		addr = fmt.Sprintf("0.0.0.0%s", addr)
	}
	return addr
}
