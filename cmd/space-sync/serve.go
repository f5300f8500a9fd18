package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/Sternrassler/space-sync/internal/config"
	"github.com/Sternrassler/space-sync/pkg/loader"
	"github.com/Sternrassler/space-sync/pkg/logging"
	"github.com/Sternrassler/space-sync/pkg/metrics"
	"github.com/Sternrassler/space-sync/pkg/store"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

func serveCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run fetch sessions on demand behind an HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
			}
			return runServe(cmd.Context(), cfg)
		},
	}
	cmd.Flags().IntVar(&port, "port", 0, "listen port")
	return cmd
}

// server owns one loader and exposes it over HTTP.
type server struct {
	cfg    *config.Config
	rdb    *redis.Client
	loader *loader.Loader
	store  *store.Memory
	logger zerolog.Logger
}

func newServer(c *config.Config, rdb *redis.Client, fetcher loader.Fetcher) *server {
	mem := store.NewMemory()
	return &server{
		cfg:    c,
		rdb:    rdb,
		loader: loader.New(fetcher, mem, loader.WithThreshold(c.Fetch.SimilarityThreshold)),
		store:  mem,
		logger: logging.NewLogger("server"),
	}
}

func (s *server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthHandler)
	mux.HandleFunc("/ready", readyHandler(s.rdb))
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/fetch", s.fetchHandler)
	return mux
}

func runServe(ctx context.Context, c *config.Config) error {
	rdb, err := newRedis(ctx, c.Redis)
	if err != nil {
		return err
	}
	if rdb != nil {
		defer rdb.Close()
	}

	hub, err := newHubClient(c, rdb)
	if err != nil {
		return err
	}
	defer hub.Close()

	s := newServer(c, rdb, hub)
	events, cancel := s.loader.Subscribe()
	defer cancel()
	go logEvents(events)

	httpServer := &http.Server{
		Addr:              ":" + strconv.Itoa(c.Server.Port),
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", httpServer.Addr).Str("hub", c.Hub.BaseURL).Msg("Starting server")
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info().Msg("Shutting down")
	s.loader.Stop()

	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	return httpServer.Shutdown(shutdownCtx)
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "OK")
}

func readyHandler(rdb *redis.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if rdb != nil {
			if err := rdb.Ping(r.Context()).Err(); err != nil {
				http.Error(w, "redis unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "OK")
	}
}

type fetchRequest struct {
	Space       string `json:"space"`
	Mode        string `json:"mode,omitempty"`
	Limit       int    `json:"limit,omitempty"`
	MaxFeatures int    `json:"max_features,omitempty"`
	Parallel    int    `json:"parallel,omitempty"`
}

type sessionStatus struct {
	Session  string `json:"session"`
	Status   string `json:"status"`
	Features int    `json:"features"`
	Groups   int    `json:"groups"`
	Error    string `json:"error,omitempty"`
}

// fetchHandler starts (POST), reports (GET) and stops (DELETE) the session.
func (s *server) fetchHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.startFetch(w, r)
	case http.MethodGet:
		sess := s.loader.Session()
		if sess == nil {
			http.Error(w, "no fetch session", http.StatusNotFound)
			return
		}
		s.writeStatus(w, http.StatusOK, sess)
	case http.MethodDelete:
		sess := s.loader.Session()
		if sess == nil {
			http.Error(w, "no fetch session", http.StatusNotFound)
			return
		}
		s.loader.Stop()
		s.writeStatus(w, http.StatusAccepted, sess)
	default:
		w.Header().Set("Allow", "GET, POST, DELETE")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *server) startFetch(w http.ResponseWriter, r *http.Request) {
	var req fetchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body: "+err.Error(), http.StatusBadRequest)
		return
	}

	fc := s.cfg.Fetch
	if req.Space != "" {
		fc.Space = req.Space
	}
	if req.Mode != "" {
		fc.Mode = req.Mode
	}
	if req.Limit > 0 {
		fc.Limit = req.Limit
	}
	if req.MaxFeatures > 0 {
		fc.MaxFeatures = req.MaxFeatures
	}
	if req.Parallel > 0 {
		fc.Parallel = req.Parallel
	}

	params, err := loaderParams(fc)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	// sessions outlive the request
	sess, err := s.loader.Start(context.WithoutCancel(r.Context()), loader.Conn{Space: fc.Space}, loader.Meta{Name: layerName(fc)}, params)
	switch {
	case errors.Is(err, loader.ErrSessionActive):
		http.Error(w, err.Error(), http.StatusConflict)
		return
	case errors.Is(err, loader.ErrInvalidParams):
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	case err != nil:
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	s.writeStatus(w, http.StatusAccepted, sess)
}

func (s *server) writeStatus(w http.ResponseWriter, code int, sess *loader.Session) {
	st := sessionStatus{
		Session:  sess.ID(),
		Status:   string(sess.Status()),
		Features: sess.Count(),
		Groups:   len(s.store.Groups()),
	}
	if err := sess.Err(); err != nil {
		st.Error = err.Error()
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(st); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to write response")
	}
}
