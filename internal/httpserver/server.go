// Package httpserver wires the betwixt HTTP API.
//
// Responsibilities:
//   - Router + middleware (JSON, CORS, timeouts, panic recovery, request IDs,
//     per-IP rate limiting on mutating routes).
//   - Session issuance and enforcement (JWT + httpOnly cookie).
//   - Puzzle endpoints: GET /puzzle/today, GET /puzzle/leaderboard.
//   - Game endpoints (session required): POST /game, GET /game,
//     POST /game/validate, POST /game/guess.
//   - Account endpoints: /auth/*, /stats/me.
//
// Every failure crossing this boundary is a {"success":false,"message":...}
// JSON envelope; handlers never panic or leak raw errors to clients.
package httpserver

import (
	"encoding/json"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/betwixt-game/betwixt/internal/game"
	"github.com/betwixt-game/betwixt/internal/puzzle"
	"github.com/betwixt-game/betwixt/internal/store"
	"github.com/betwixt-game/betwixt/internal/words"
)

// Server bundles router, store, dictionary, and the puzzle generator.
type Server struct {
	r          *chi.Mux
	store      store.Store
	dict       *words.Dictionary
	gen        *puzzle.Generator
	maxGuesses int

	// now is swappable in tests.
	now func() time.Time

	limiterMu sync.Mutex
	limiters  map[string]*rate.Limiter
}

// New constructs a Server, installs middleware, and registers routes.
func New(st store.Store, dict *words.Dictionary) *Server {
	s := &Server{
		r:          chi.NewRouter(),
		store:      st,
		dict:       dict,
		gen:        puzzle.NewGenerator(dict, st),
		maxGuesses: envInt("GAME_MAX_GUESSES", game.DefaultMaxGuesses),
		now:        time.Now,
		limiters:   make(map[string]*rate.Limiter),
	}

	s.r.Use(chimw.RequestID)
	s.r.Use(chimw.RealIP)
	s.r.Use(chimw.Recoverer)
	s.r.Use(chimw.Timeout(10 * time.Second))
	s.r.Use(jsonContentType)
	s.r.Use(corsFromEnv)

	s.r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		ok(w, map[string]any{
			"service": "betwixt",
			"endpoints": []string{
				"POST /session", "GET /puzzle/today", "GET /puzzle/leaderboard",
				"POST /game", "GET /game", "POST /game/validate", "POST /game/guess",
				"/auth/*", "GET /stats/me",
			},
		})
	})
	s.r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		answers, allowed := s.dict.Stats()
		ok(w, map[string]any{"answers": answers, "allowed": allowed})
	})

	s.r.With(s.rateLimit).Post("/session", s.handleIssueSession)

	s.r.Get("/puzzle/today", s.handleTodayPuzzle)
	s.r.Get("/puzzle/leaderboard", s.handleLeaderboard)

	s.r.Route("/game", func(r chi.Router) {
		r.Use(s.requireSession)
		r.Post("/", s.handleInitGame)
		r.Get("/", s.handleGameState)
		r.Post("/validate", s.handleValidateWord)
		r.With(s.rateLimit).Post("/guess", s.handleSubmitGuess)
	})

	s.mountAuthRoutes()

	s.r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		fail(w, http.StatusNotFound, "Not found: "+r.URL.Path)
	})

	return s
}

// Start begins serving HTTP on addr.
func (s *Server) Start(addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return srv.ListenAndServe()
}

// Router exposes the internal router for tests.
func (s *Server) Router() chi.Router { return s.r }

/* ------------------------------ middleware -------------------------------- */

// jsonContentType sets a default JSON Content-Type header on all responses.
func jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		next.ServeHTTP(w, r)
	})
}

// corsFromEnv enables credentialed CORS for a single origin.
// Uses CLIENT_ORIGIN env var; defaults to http://localhost:3000.
func corsFromEnv(next http.Handler) http.Handler {
	origin := getEnv("CLIENT_ORIGIN", "http://localhost:3000")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Vary", "Origin")
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Credentials", "true")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// rateLimit applies a per-client-IP token bucket to mutating routes.
// RATE_LIMIT_RPS / RATE_LIMIT_BURST tune it (defaults 5 rps, burst 10).
func (s *Server) rateLimit(next http.Handler) http.Handler {
	rps := envInt("RATE_LIMIT_RPS", 5)
	burst := envInt("RATE_LIMIT_BURST", 10)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiterFor(r.RemoteAddr, rps, burst).Allow() {
			fail(w, http.StatusTooManyRequests, "Too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) limiterFor(key string, rps, burst int) *rate.Limiter {
	s.limiterMu.Lock()
	defer s.limiterMu.Unlock()
	if lim, ok := s.limiters[key]; ok {
		return lim
	}
	lim := rate.NewLimiter(rate.Limit(rps), burst)
	s.limiters[key] = lim
	return lim
}

/* ------------------------------- responses -------------------------------- */

// ok writes a success envelope merged with extra payload fields.
func ok(w http.ResponseWriter, extra map[string]any) {
	body := map[string]any{"success": true}
	for k, v := range extra {
		body[k] = v
	}
	writeJSON(w, http.StatusOK, body)
}

// fail writes the uniform {"success":false,"message":...} failure envelope.
func fail(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"success": false, "message": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("encode response")
	}
}

/* ------------------------------- small util -------------------------------- */

// getEnv returns the value of k or def if unset/empty.
func getEnv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

// envInt returns the integer value of k or def if unset/invalid.
func envInt(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
