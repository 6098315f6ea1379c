package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	"github.com/zoneremote/zoneremote-go/pkg/browse"
	"github.com/zoneremote/zoneremote-go/pkg/command"
	"github.com/zoneremote/zoneremote-go/pkg/history"
	"github.com/zoneremote/zoneremote-go/pkg/service"
	"github.com/zoneremote/zoneremote-go/pkg/wire"
	"github.com/zoneremote/zoneremote-go/pkg/zone"
)

// Remote is the part of the service the HTTP layer drives.
type Remote interface {
	Status() string
	CoreInfo() *wire.CoreInfo
	Paired() bool
	Zones() []zone.Zone
	FindZone(nameOrID string) (zone.Zone, error)
	Execute(ctx context.Context, nameOrID, cmd string) (command.Result, zone.Zone, error)
	Browse(ctx context.Context, nameOrID string, opts browse.Options) (service.BrowseResult, error)
	Play(ctx context.Context, nameOrID, itemKey string) (service.PlayResult, error)
	BrowseState() browse.State
	Subscribe(buffer int) (<-chan service.Event, func())
}

// History is the command journal as read by the HTTP layer.
type History interface {
	List(ctx context.Context, zoneID string, limit, offset int) ([]history.Entry, error)
	Count(ctx context.Context) (int, error)
}

var _ Remote = (*service.Service)(nil)

// ServerConfig holds configuration for the HTTP server.
type ServerConfig struct {
	Listen  string
	Version string

	// Logger is the optional logger. If nil, logging is disabled.
	Logger *slog.Logger
}

// Server is the HTTP front end of the remote.
type Server struct {
	config  ServerConfig
	logger  *slog.Logger
	remote  Remote
	history History
	router  chi.Router
	server  *http.Server
}

// NewServer creates a server. history may be nil when the journal is
// disabled.
func NewServer(cfg ServerConfig, remote Remote, hist History) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	s := &Server{
		config:  cfg,
		logger:  logger,
		remote:  remote,
		history: hist,
	}
	s.router = s.buildRouter()
	s.server = &http.Server{
		Addr:              cfg.Listen,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(s.logRequests)

	// Compatibility endpoint: /api?command=..&zone=.., ?webradio=1, ?fetch=1
	r.Get("/api", handler(s.handleCompat))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", handler(s.handleHealth))
		r.Get("/zones", handler(s.handleZones))
		r.Get("/zones/{zone}", handler(s.handleZone))
		r.Post("/zones/{zone}/commands/{command}", handler(s.handleCommand))
		r.Post("/zones/{zone}/browse", handler(s.handleBrowse))
		r.Post("/zones/{zone}/play", handler(s.handlePlay))
		r.Get("/browse", handler(s.handleBrowseState))
		r.Get("/history", handler(s.handleHistory))
		r.Get("/events", s.handleEvents)
	})
	return r
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	return s.server.ListenAndServe()
}

// Shutdown stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// handler adapts a handler returning an error.
func handler(fn func(w http.ResponseWriter, r *http.Request) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := fn(w, r); err != nil {
			writeError(w, err)
		}
	}
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", chimw.GetReqID(r.Context()))
	})
}

// handleCompat serves the query-string API of the original remote.
func (s *Server) handleCompat(w http.ResponseWriter, r *http.Request) error {
	q := r.URL.Query()
	zoneRef := q.Get("zone")

	switch {
	case q.Get("command") != "" && zoneRef != "":
		s.logger.Info("command received", "command", q.Get("command"), "zone", zoneRef)
		if _, _, err := s.remote.Execute(r.Context(), zoneRef, q.Get("command")); err != nil {
			return err
		}
		w.WriteHeader(http.StatusOK)
		return nil

	case q.Get("webradio") != "" && zoneRef != "":
		res, err := s.remote.Play(r.Context(), zoneRef, q.Get("item_key"))
		if err != nil {
			return err
		}
		writeJSON(w, http.StatusOK, res)
		return nil

	case q.Get("fetch") != "":
		writeJSON(w, http.StatusOK, s.remote.Zones())
		return nil
	}

	return badRequest("expected command and zone, webradio and zone, or fetch")
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) error {
	version := s.config.Version
	if version == "" {
		version = "dev"
	}

	resp := HealthResponse{
		Status:  "ok",
		Version: version,
		Remote:  s.remote.Status(),
		Paired:  s.remote.Paired(),
		Core:    s.remote.CoreInfo(),
		Zones:   len(s.remote.Zones()),
	}
	writeJSON(w, http.StatusOK, resp)
	return nil
}

func (s *Server) handleZones(w http.ResponseWriter, _ *http.Request) error {
	writeJSON(w, http.StatusOK, ZoneListResponse{Zones: s.remote.Zones()})
	return nil
}

func (s *Server) handleZone(w http.ResponseWriter, r *http.Request) error {
	z, err := s.remote.FindZone(chi.URLParam(r, "zone"))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, z)
	return nil
}

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) error {
	res, z, err := s.remote.Execute(r.Context(), chi.URLParam(r, "zone"), chi.URLParam(r, "command"))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, CommandResponse{
		Command: chi.URLParam(r, "command"),
		Result:  res.String(),
		ZoneID:  z.ID,
		Zone:    z.DisplayName,
	})
	return nil
}

func (s *Server) handleBrowse(w http.ResponseWriter, r *http.Request) error {
	q := r.URL.Query()
	opts := browse.Options{
		ItemKey: q.Get("item_key"),
		Input:   q.Get("input"),
	}

	var err error
	if opts.PopAll, err = boolParam(q.Get("pop_all")); err != nil {
		return err
	}
	if opts.RefreshList, err = boolParam(q.Get("refresh_list")); err != nil {
		return err
	}
	if opts.PopLevels, err = intParam(q.Get("pop_levels"), 0); err != nil {
		return err
	}

	res, err := s.remote.Browse(r.Context(), chi.URLParam(r, "zone"), opts)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, res)
	return nil
}

func (s *Server) handlePlay(w http.ResponseWriter, r *http.Request) error {
	res, err := s.remote.Play(r.Context(), chi.URLParam(r, "zone"), r.URL.Query().Get("item_key"))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, res)
	return nil
}

func (s *Server) handleBrowseState(w http.ResponseWriter, _ *http.Request) error {
	writeJSON(w, http.StatusOK, s.remote.BrowseState())
	return nil
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) error {
	if s.history == nil {
		return &apiError{status: http.StatusNotFound, code: "history_disabled", message: "command history is disabled"}
	}

	q := r.URL.Query()
	limit, err := intParam(q.Get("limit"), 100)
	if err != nil {
		return err
	}
	offset, err := intParam(q.Get("offset"), 0)
	if err != nil {
		return err
	}

	zoneID := ""
	if ref := q.Get("zone"); ref != "" {
		z, err := s.remote.FindZone(ref)
		if err != nil {
			return err
		}
		zoneID = z.ID
	}

	entries, err := s.history.List(r.Context(), zoneID, limit, offset)
	if err != nil {
		return err
	}
	total, err := s.history.Count(r.Context())
	if err != nil {
		return err
	}

	writeJSON(w, http.StatusOK, HistoryResponse{Entries: entries, Total: total})
	return nil
}

func boolParam(v string) (bool, error) {
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, badRequest("invalid boolean " + strconv.Quote(v))
	}
	return b, nil
}

func intParam(v string, def int) (int, error) {
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, badRequest("invalid number " + strconv.Quote(v))
	}
	return n, nil
}

// apiError is an error with its own HTTP mapping.
type apiError struct {
	status  int
	code    string
	message string
}

func (e *apiError) Error() string { return e.message }

func badRequest(msg string) error {
	return &apiError{status: http.StatusBadRequest, code: "bad_request", message: msg}
}

// errorStatus maps an error to an HTTP status and error kind.
func errorStatus(err error) (int, string) {
	var ae *apiError
	switch {
	case errors.As(err, &ae):
		return ae.status, ae.code
	case errors.Is(err, zone.ErrZoneNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, command.ErrUnsupported):
		return http.StatusBadRequest, "unsupported"
	case errors.Is(err, command.ErrInvalidTarget):
		return http.StatusConflict, "invalid_target"
	case errors.Is(err, browse.ErrStaleResult):
		return http.StatusConflict, "superseded"
	case errors.Is(err, browse.ErrProtocolAnomaly):
		return http.StatusBadGateway, "protocol_anomaly"
	case errors.Is(err, browse.ErrCollaboratorFailure):
		return http.StatusBadGateway, "collaborator_failure"
	case errors.Is(err, service.ErrNotPaired), errors.Is(err, service.ErrNotStarted):
		return http.StatusServiceUnavailable, "not_paired"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func writeError(w http.ResponseWriter, err error) {
	status, kind := errorStatus(err)
	writeJSON(w, status, ErrorResponse{Error: kind, Message: err.Error()})
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// WebSocket timeouts.
const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = (wsPongWait * 9) / 10
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(*http.Request) bool {
		return true
	},
}

// handleEvents streams service events over a websocket. The first message
// is a snapshot of the zones.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	events, cancel := s.remote.Subscribe(64)
	defer cancel()

	// Reader: handles pongs and notices the client going away.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		conn.SetReadLimit(512)
		conn.SetReadDeadline(time.Now().Add(wsPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(wsPongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					s.logger.Debug("websocket read error", "error", err)
				}
				return
			}
		}
	}()

	snapshot := service.Event{
		Type:   service.EventZonesChanged,
		Time:   time.Now(),
		Status: s.remote.Status(),
		Zones:  s.remote.Zones(),
	}
	conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	if err := conn.WriteJSON(snapshot); err != nil {
		return
	}

	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-events:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-gone:
			return
		case <-r.Context().Done():
			return
		}
	}
}
