package web

import (
	"bytes"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"eventcal/internal/config"
	"eventcal/internal/dates"
	"eventcal/internal/ics"
	appLog "eventcal/internal/log"
	"eventcal/internal/model"
	"eventcal/internal/store"
)

// maxBodyBytes bounds JSON and ICS request bodies.
const maxBodyBytes = 4 << 20

// Server exposes the event store over HTTP.
type Server struct {
	cfg     *config.Config
	store   *store.Store
	fetcher *ics.Fetcher
	router  chi.Router

	// now is the clock used for "today" in stats and the month grid.
	now func() time.Time
}

// NewServer constructs a new Server.
func NewServer(cfg *config.Config, st *store.Store) *Server {
	cacheDir := ""
	if cfg != nil {
		cacheDir = cfg.FeedCacheDir
	}
	s := &Server{
		cfg:     cfg,
		store:   st,
		fetcher: ics.NewFetcher(cacheDir),
		router:  chi.NewRouter(),
		now:     time.Now,
	}
	s.registerRoutes()
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+cfg.Listen)
	}
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.router)
	if s.basicAuthEnabled() {
		return s.basicAuthMiddleware(h)
	}
	return h
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	if s.cfg.BasicAuth.Username == "" || s.cfg.BasicAuth.Password == "" {
		return false
	}
	return true
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="EventCal", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func (s *Server) registerRoutes() {
	r := s.router
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(api chi.Router) {
		api.Get("/events", s.handleListEvents)
		api.Post("/events", s.handleCreateEvent)
		api.Get("/events/{id}", s.handleGetEvent)
		api.Put("/events/{id}", s.handleUpdateEvent)
		api.Delete("/events/{id}", s.handleDeleteEvent)
		api.Post("/events/{id}/move", s.handleMoveEvent)
		api.Post("/conflicts", s.handleConflicts)
		api.Get("/month", s.handleMonth)
		api.Get("/stats", s.handleStats)
		api.Post("/import", s.handleImport)
		api.Post("/import/url", s.handleImportURL)
	})

	r.Get("/calendar.ics", s.handleExport)
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		appLog.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start).String(),
		)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleListEvents serves GET /api/events.
//
// Query parameters (all optional):
//   - date=2006-01-02  only that day
//   - month=2006-01    only that month (ignored when date is set)
//   - q=...            case-insensitive title/description search
//   - category=...     exact category, "all" for any
func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var events []model.Event
	switch {
	case q.Get("date") != "":
		day, err := dates.ParseDay(q.Get("date"))
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		events = s.store.ForDate(day)
	case q.Get("month") != "":
		month, err := dates.ParseMonth(q.Get("month"))
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		events = s.store.ForMonth(month)
	default:
		events = s.store.All()
	}

	writeJSON(w, http.StatusOK, store.FilterEvents(events, q.Get("q"), q.Get("category")))
}

func (s *Server) handleGetEvent(w http.ResponseWriter, r *http.Request) {
	ev, ok := s.store.Get(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, store.ErrEventNotFound.Error())
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

func (s *Server) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	req, ev, ok := decodeEvent(w, r)
	if !ok {
		return
	}
	opts := store.CreateOptions()
	opts.Force = req.Force

	out, err := s.store.Create(ev, opts)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeOutcome(w, http.StatusCreated, out)
}

func (s *Server) handleUpdateEvent(w http.ResponseWriter, r *http.Request) {
	req, ev, ok := decodeEvent(w, r)
	if !ok {
		return
	}
	opts := store.CreateOptions()
	opts.Force = req.Force

	out, err := s.store.Update(chi.URLParam(r, "id"), ev, opts)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeOutcome(w, http.StatusOK, out)
}

type moveRequest struct {
	Date string `json:"date"`
}

func (s *Server) handleMoveEvent(w http.ResponseWriter, r *http.Request) {
	var req moveRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	day, err := dates.ParseDay(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	out, err := s.store.Move(chi.URLParam(r, "id"), day, store.MoveOptions())
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeOutcome(w, http.StatusOK, out)
}

type deleteResponse struct {
	Deleted []string `json:"deleted"`
}

func (s *Server) handleDeleteEvent(w http.ResponseWriter, r *http.Request) {
	ids, err := s.store.Delete(chi.URLParam(r, "id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, deleteResponse{Deleted: ids})
}

type conflictsResponse struct {
	Conflicts []model.Event `json:"conflicts"`
}

// handleConflicts lists the events a candidate would collide with, without
// writing anything.
func (s *Server) handleConflicts(w http.ResponseWriter, r *http.Request) {
	req, ev, ok := decodeEvent(w, r)
	if !ok {
		return
	}
	found := s.store.FindConflicts(ev, req.ExcludeID)
	if found == nil {
		found = []model.Event{}
	}
	writeJSON(w, http.StatusOK, conflictsResponse{Conflicts: found})
}

type monthDay struct {
	Date    string        `json:"date"`
	InMonth bool          `json:"inMonth"`
	IsToday bool          `json:"isToday"`
	Events  []model.Event `json:"events"`
}

type monthResponse struct {
	Month string     `json:"month"`
	Title string     `json:"title"`
	Days  []monthDay `json:"days"`
}

// handleMonth serves the padded month grid for ?month=2006-01 (default: the
// current month) with each cell's events.
func (s *Server) handleMonth(w http.ResponseWriter, r *http.Request) {
	now := s.now()
	month := now
	if raw := r.URL.Query().Get("month"); raw != "" {
		parsed, err := dates.ParseMonth(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		month = parsed
	}

	grid := dates.MonthGrid(month)
	byDay := make(map[string][]model.Event)
	for _, ev := range s.store.All() {
		key := dates.FormatDay(ev.Date)
		byDay[key] = append(byDay[key], ev)
	}

	resp := monthResponse{
		Month: month.Format("2006-01"),
		Title: dates.FormatMonth(month),
		Days:  make([]monthDay, 0, len(grid)),
	}
	for _, day := range grid {
		key := dates.FormatDay(day)
		evs := byDay[key]
		if evs == nil {
			evs = []model.Event{}
		}
		resp.Days = append(resp.Days, monthDay{
			Date:    key,
			InMonth: dates.IsSameMonth(day, month),
			IsToday: dates.IsSameDay(day, now),
			Events:  evs,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.store.Stats(s.now()))
}

func (s *Server) handleExport(w http.ResponseWriter, _ *http.Request) {
	doc := ics.Export(s.store.All(), s.now().UTC())
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="calendar.ics"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(doc))
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	events, err := ics.Parse(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.store.Import(events))
}

type importURLRequest struct {
	URL string `json:"url"`
}

// handleImportURL downloads a remote ICS feed and imports it like
// handleImport. Repeated imports of the same feed skip known ids.
func (s *Server) handleImportURL(w http.ResponseWriter, r *http.Request) {
	var req importURLRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	res, err := s.fetcher.Fetch(r.Context(), strings.TrimSpace(req.URL))
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	events, err := ics.Parse(bytes.NewReader(res.Body))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.store.Import(events))
}

type outcomeResponse struct {
	Status    string        `json:"status"`
	Events    []model.Event `json:"events,omitempty"`
	Conflicts []model.Event `json:"conflicts,omitempty"`
}

// writeOutcome sends okStatus for applied mutations and 409 when the
// conflict policy stopped the write.
func writeOutcome(w http.ResponseWriter, okStatus int, out store.Outcome) {
	resp := outcomeResponse{
		Status:    out.Status.String(),
		Events:    out.Events,
		Conflicts: out.Conflicts,
	}
	if !out.Applied() {
		writeJSON(w, http.StatusConflict, resp)
		return
	}
	writeJSON(w, okStatus, resp)
}

func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrEventNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, store.ErrDuplicateID):
		writeError(w, http.StatusConflict, err.Error())
	default:
		appLog.Error("store operation failed", err)
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	return dec.Decode(v)
}

// decodeEvent reads and validates an eventRequest body. On failure it has
// already written the 400 response.
func decodeEvent(w http.ResponseWriter, r *http.Request) (eventRequest, model.Event, bool) {
	var req eventRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return req, model.Event{}, false
	}
	ev, err := req.toEvent()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return req, model.Event{}, false
	}
	return req, ev, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: strings.TrimSpace(msg)})
}
