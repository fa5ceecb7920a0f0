package httpserver

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/betwixt-game/betwixt/internal/puzzle"
	"github.com/betwixt-game/betwixt/internal/store"
)

// puzzleView is the public shape of a daily puzzle. The secret word and its
// pool id never appear here.
type puzzleView struct {
	ID         string `json:"id"`
	Date       string `json:"date"`
	TopWord    string `json:"topWord"`
	BottomWord string `json:"bottomWord"`
}

// handleTodayPuzzle returns today's puzzle, generating it on first request.
// Repeated calls on the same calendar day return the same puzzle id.
func (s *Server) handleTodayPuzzle(w http.ResponseWriter, r *http.Request) {
	p, err := s.gen.GetOrCreate(r.Context(), s.now())
	if err != nil {
		if errors.Is(err, puzzle.ErrPoolExhausted) {
			log.Error().Err(err).Msg("secret-word pool exhausted")
			fail(w, http.StatusServiceUnavailable, "No puzzle available, word pool exhausted")
			return
		}
		log.Error().Err(err).Msg("get or create puzzle")
		fail(w, http.StatusInternalServerError, "Failed to load today's puzzle")
		return
	}
	ok(w, map[string]any{"puzzle": puzzleView{
		ID:         p.ID,
		Date:       p.Date,
		TopWord:    p.TopWord,
		BottomWord: p.BottomWord,
	}})
}

type leaderboardEntry struct {
	Player  string `json:"player"`
	Guesses int    `json:"guesses"`
}

// handleLeaderboard lists won games for a date (default today), fewest
// guesses first. Guests appear under a truncated session id.
func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	if date == "" {
		date = puzzle.DateKey(s.now())
	}
	p, err := s.store.PuzzleByDate(r.Context(), date)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			ok(w, map[string]any{"date": date, "top": []leaderboardEntry{}})
			return
		}
		fail(w, http.StatusInternalServerError, "Failed to load leaderboard")
		return
	}
	rows, err := s.store.TopGamesByPuzzle(r.Context(), p.ID, 20)
	if err != nil {
		fail(w, http.StatusInternalServerError, "Failed to load leaderboard")
		return
	}
	top := lo.Map(rows, func(row store.LeaderboardRow, _ int) leaderboardEntry {
		player := row.Username
		if player == "" {
			player = "guest-" + shortID(row.SessionID)
		}
		return leaderboardEntry{Player: player, Guesses: row.Guesses}
	})
	ok(w, map[string]any{"date": date, "top": top})
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
