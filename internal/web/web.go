package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"meetcal/internal/config"
	"meetcal/internal/ics"
	appLog "meetcal/internal/log"
)

// Feeds is what the HTTP layer needs from the feed service.
type Feeds interface {
	Calendar(ctx context.Context, team string) (string, bool)
	Occurrences(ctx context.Context, team string, from, to time.Time) (ics.ExpandResult, error)
}

// teamPattern is the set of team names a feed path may carry.
var teamPattern = regexp.MustCompile(`^[a-zA-Z\d\s_-]+$`)

// Server exposes team calendar feeds and the occurrence listing.
type Server struct {
	cfg   *config.Config
	feeds Feeds
	mux   *http.ServeMux
	now   func() time.Time
}

func NewServer(cfg *config.Config, feeds Feeds) *Server {
	s := &Server{
		cfg:   cfg,
		feeds: feeds,
		mux:   http.NewServeMux(),
		now:   time.Now,
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	// Empty username or password disables auth.
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
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
			w.Header().Set("WWW-Authenticate", `Basic realm="meetcal", charset="UTF-8"`)
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

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+s.cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	appLog.Info("HTTP server stopped")
	return nil
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /meetings/calendar.ics", s.handleCalendar)
	s.mux.HandleFunc("GET /meetings/{team}/calendar.ics", s.handleCalendar)
	s.mux.HandleFunc("GET /api/occurrences", s.handleOccurrences)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleCalendar serves /meetings/calendar.ics (all teams) and
// /meetings/{team}/calendar.ics. A team without meetings gets a 404 rather
// than an empty calendar.
func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	team := r.PathValue("team")
	if team != "" && !teamPattern.MatchString(team) {
		http.NotFound(w, r)
		return
	}
	team = strings.ToLower(team)

	doc, ok := s.feeds.Calendar(r.Context(), team)
	if !ok {
		appLog.Debug("no feed available", "team", team)
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", ics.ContentType)
	w.Header().Set("Content-Disposition", "inline; filename=calendar.ics")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(doc)); err != nil {
		appLog.Error("failed to write calendar response", err, "team", team)
	}
}

// occurrencesResponse is the JSON response shape for /api/occurrences.
type occurrencesResponse struct {
	Occurrences   []occurrenceDTO `json:"occurrences"`
	TruncatedUIDs []string        `json:"truncated_uids,omitempty"`
	SkippedUIDs   []string        `json:"skipped_uids,omitempty"`
	RangeStart    time.Time       `json:"range_start"`
	RangeEnd      time.Time       `json:"range_end"`
}

type occurrenceDTO struct {
	UID         string    `json:"uid"`
	InstanceKey string    `json:"instance_key"`
	Team        string    `json:"team"`
	Title       string    `json:"title"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
}

// handleOccurrences lists meeting instances for a calendar view.
//
// GET /api/occurrences?team=core&days=31&backfill=1
//   - team:     optional team filter
//   - days:     days ahead of now (default 31)
//   - backfill: days before now (default 1)
func (s *Server) handleOccurrences(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	team := q.Get("team")
	if team != "" && !teamPattern.MatchString(team) {
		writeError(w, http.StatusBadRequest, "invalid team")
		return
	}
	days := parseIntDefault(q.Get("days"), 31)
	if days <= 0 {
		days = 31
	}
	backfill := parseIntDefault(q.Get("backfill"), 1)
	if backfill < 0 {
		backfill = 0
	}

	now := s.now().UTC()
	rangeStart := now.AddDate(0, 0, -backfill)
	rangeEnd := now.AddDate(0, 0, days)

	res, err := s.feeds.Occurrences(r.Context(), team, rangeStart, rangeEnd)
	if err != nil {
		appLog.Error("api occurrences: expand failed", err, "team", team)
		writeError(w, http.StatusInternalServerError, "failed to expand occurrences")
		return
	}

	dtos := make([]occurrenceDTO, 0, len(res.Occurrences))
	for _, occ := range res.Occurrences {
		dtos = append(dtos, occurrenceDTO{
			UID:         occ.UID,
			InstanceKey: occ.InstanceKey,
			Team:        occ.Team,
			Title:       occ.Title,
			Start:       occ.Start,
			End:         occ.End,
		})
	}

	writeJSON(w, http.StatusOK, occurrencesResponse{
		Occurrences:   dtos,
		TruncatedUIDs: res.TruncatedEvents,
		SkippedUIDs:   res.Skipped,
		RangeStart:    rangeStart,
		RangeEnd:      rangeEnd,
	})
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
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
	writeJSON(w, status, errResp{Error: msg})
}
