package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/betwixt-game/betwixt/internal/game"
	"github.com/betwixt-game/betwixt/internal/store"
	"github.com/betwixt-game/betwixt/internal/words"
)

const (
	msgInvalidLength = "Guess must be 5 letters"
	msgNotInWordList = "Not a valid word"
	msgGameComplete  = "Game is already complete"
	msgGameNotFound  = "Game not found"
	msgUpdateFailed  = "Failed to update game"
	msgUpdateRace    = "Game was updated concurrently, try again"
)

// gameStateView is the wire shape of a game. The secret word is populated
// only once the game is complete.
type gameStateView struct {
	ID               string           `json:"id"`
	CurrentTop       string           `json:"currentTop"`
	CurrentBottom    string           `json:"currentBottom"`
	Guesses          []string         `json:"guesses"`
	GuessDirections  []game.Direction `json:"guessDirections"`
	Completed        bool             `json:"completed"`
	Won              bool             `json:"won"`
	SecretWord       string           `json:"secretWord,omitempty"`
	GuessesRemaining int              `json:"guessesRemaining"`
}

func (s *Server) viewOf(g *game.Game, secret string) gameStateView {
	v := gameStateView{
		ID:               g.ID,
		CurrentTop:       g.CurrentTop,
		CurrentBottom:    g.CurrentBottom,
		Guesses:          g.Guesses,
		GuessDirections:  g.Directions,
		Completed:        g.Completed,
		Won:              g.Won,
		GuessesRemaining: g.GuessesRemaining(s.maxGuesses),
	}
	if v.Guesses == nil {
		v.Guesses = []string{}
	}
	if v.GuessDirections == nil {
		v.GuessDirections = []game.Direction{}
	}
	if g.Completed {
		v.SecretWord = secret
	}
	return v
}

// handleInitGame creates (or returns) the session's game for today's puzzle.
func (s *Server) handleInitGame(w http.ResponseWriter, r *http.Request) {
	sess := currentSession(r)
	p, err := s.gen.GetOrCreate(r.Context(), s.now())
	if err != nil {
		log.Error().Err(err).Msg("get or create puzzle")
		fail(w, http.StatusInternalServerError, "Failed to load today's puzzle")
		return
	}

	if g, err := s.store.GameBySessionAndPuzzle(r.Context(), sess.ID, p.ID); err == nil {
		ok(w, map[string]any{"game": s.viewOf(g, p.SecretWord)})
		return
	} else if !errors.Is(err, store.ErrNotFound) {
		fail(w, http.StatusInternalServerError, msgUpdateFailed)
		return
	}

	g := game.New(sess.ID, p.ID, p.TopWord, p.BottomWord)
	g.UserID = sess.UserID
	if err := s.store.CreateGame(r.Context(), g); err != nil {
		if errors.Is(err, store.ErrConflict) {
			// Two inits raced; the stored row wins.
			if g, err = s.store.GameBySessionAndPuzzle(r.Context(), sess.ID, p.ID); err == nil {
				ok(w, map[string]any{"game": s.viewOf(g, p.SecretWord)})
				return
			}
		}
		log.Error().Err(err).Str("session", sess.ID).Msg("create game")
		fail(w, http.StatusInternalServerError, msgUpdateFailed)
		return
	}
	ok(w, map[string]any{"game": s.viewOf(g, p.SecretWord)})
}

// handleGameState returns the session's game for today, or null data when
// the session has not started one.
func (s *Server) handleGameState(w http.ResponseWriter, r *http.Request) {
	sess := currentSession(r)
	p, err := s.gen.GetOrCreate(r.Context(), s.now())
	if err != nil {
		fail(w, http.StatusInternalServerError, "Failed to load today's puzzle")
		return
	}
	g, err := s.store.GameBySessionAndPuzzle(r.Context(), sess.ID, p.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			ok(w, map[string]any{"game": nil})
			return
		}
		fail(w, http.StatusInternalServerError, msgUpdateFailed)
		return
	}
	ok(w, map[string]any{"game": s.viewOf(g, p.SecretWord)})
}

type validateReq struct {
	Guess string `json:"guess"`
}

// handleValidateWord checks a candidate guess against length and dictionary
// rules without touching game state. Invalidity is a result, not a
// transport error, so the status is 200 either way.
func (s *Server) handleValidateWord(w http.ResponseWriter, r *http.Request) {
	var req validateReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		fail(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if msg, valid := s.checkWord(req.Guess); !valid {
		writeJSON(w, http.StatusOK, map[string]any{"success": false, "message": msg})
		return
	}
	ok(w, map[string]any{"message": "Valid word"})
}

// checkWord applies the validation rules shared by validate and guess.
func (s *Server) checkWord(guess string) (string, bool) {
	guess = strings.ToLower(strings.TrimSpace(guess))
	if len(guess) != words.WordLength {
		return msgInvalidLength, false
	}
	if !s.dict.IsAllowed(guess) {
		return msgNotInWordList, false
	}
	return "", true
}

type guessReq struct {
	Guess          string `json:"guess"`
	SkipValidation bool   `json:"skipValidation"`
}

// handleSubmitGuess runs one state-machine transition and persists it with
// a compare-and-swap update.
func (s *Server) handleSubmitGuess(w http.ResponseWriter, r *http.Request) {
	sess := currentSession(r)

	var req guessReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		fail(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	guess := strings.ToLower(strings.TrimSpace(req.Guess))

	p, err := s.gen.GetOrCreate(r.Context(), s.now())
	if err != nil {
		fail(w, http.StatusInternalServerError, "Failed to load today's puzzle")
		return
	}
	g, err := s.store.GameBySessionAndPuzzle(r.Context(), sess.ID, p.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			fail(w, http.StatusNotFound, msgGameNotFound)
			return
		}
		fail(w, http.StatusInternalServerError, msgUpdateFailed)
		return
	}

	if !req.SkipValidation {
		if msg, valid := s.checkWord(guess); !valid {
			fail(w, http.StatusBadRequest, msg)
			return
		}
	}

	dir, err := g.ApplyGuess(p.SecretWord, guess, s.maxGuesses)
	if err != nil {
		switch {
		case errors.Is(err, game.ErrGameOver):
			fail(w, http.StatusConflict, msgGameComplete)
		case errors.Is(err, game.ErrInvalidGuess):
			fail(w, http.StatusBadRequest, msgInvalidLength)
		case errors.Is(err, game.ErrOutOfBounds):
			fail(w, http.StatusBadRequest, fmt.Sprintf(
				"Word must be between '%s' and '%s'", g.CurrentTop, g.CurrentBottom))
		default:
			fail(w, http.StatusInternalServerError, msgUpdateFailed)
		}
		return
	}

	if err := s.store.UpdateGame(r.Context(), g); err != nil {
		if errors.Is(err, store.ErrConflict) {
			fail(w, http.StatusConflict, msgUpdateRace)
			return
		}
		log.Error().Err(err).Str("game", g.ID).Msg("update game")
		fail(w, http.StatusInternalServerError, msgUpdateFailed)
		return
	}

	if g.Completed && g.UserID != "" {
		if err := s.store.BumpStats(r.Context(), g.UserID, g.Won); err != nil {
			log.Warn().Err(err).Str("user", g.UserID).Msg("bump stats")
		}
	}

	ok(w, map[string]any{
		"message": guessMessage(dir, guess, g),
		"game":    s.viewOf(g, p.SecretWord),
	})
}

func guessMessage(dir game.Direction, guess string, g *game.Game) string {
	switch dir {
	case game.DirectionWin:
		return "You found the word!"
	case game.DirectionUp:
		if g.Completed {
			return "Out of guesses! The word was after '" + guess + "'"
		}
		return "The word comes after '" + guess + "'"
	default:
		if g.Completed {
			return "Out of guesses! The word was before '" + guess + "'"
		}
		return "The word comes before '" + guess + "'"
	}
}
