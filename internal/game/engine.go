package game

import (
	"errors"
	"strings"

	"github.com/google/uuid"
)

// DefaultMaxGuesses is the guess budget when GAME_MAX_GUESSES is unset.
// Running out of guesses completes the game as a loss.
const DefaultMaxGuesses = 10

var (
	// ErrGameOver is returned for guesses against a completed game.
	ErrGameOver = errors.New("game is already complete")
	// ErrInvalidGuess is returned for malformed input (length or charset).
	ErrInvalidGuess = errors.New("guess must be 5 letters")
	// ErrOutOfBounds is returned when a guess falls outside the open
	// interval (CurrentTop, CurrentBottom). The game state is unchanged.
	ErrOutOfBounds = errors.New("guess is outside the current range")
)

// New starts a game for a session at the puzzle's initial bracket.
func New(sessionID, puzzleID, topWord, bottomWord string) *Game {
	return &Game{
		ID:            uuid.NewString(),
		SessionID:     sessionID,
		PuzzleID:      puzzleID,
		CurrentTop:    strings.ToLower(topWord),
		CurrentBottom: strings.ToLower(bottomWord),
		Guesses:       []string{},
		Directions:    []Direction{},
	}
}

// ApplyGuess runs one transition of the state machine.
//
// The guess is assumed to be dictionary-validated by the caller; this
// function still normalizes and checks shape so the invariants below hold
// for any input. On success exactly one of the following happened, and
// Guesses/Directions each grew by one element:
//   - guess == secret: Completed and Won are set, direction "win".
//   - guess < secret:  CurrentTop advanced to guess, direction "up".
//   - guess > secret:  CurrentBottom retreated to guess, direction "down".
//
// A non-winning guess that consumes the last slot of maxGuesses completes
// the game as a loss. Rejected guesses (ErrGameOver, ErrInvalidGuess,
// ErrOutOfBounds) leave the game untouched.
func (g *Game) ApplyGuess(secret, guess string, maxGuesses int) (Direction, error) {
	if g.Completed {
		return "", ErrGameOver
	}
	guess = strings.ToLower(strings.TrimSpace(guess))
	if len(guess) != 5 || !isAlpha(guess) {
		return "", ErrInvalidGuess
	}
	if guess <= g.CurrentTop || guess >= g.CurrentBottom {
		return "", ErrOutOfBounds
	}
	if maxGuesses <= 0 {
		maxGuesses = DefaultMaxGuesses
	}

	secret = strings.ToLower(secret)
	var dir Direction
	switch {
	case guess == secret:
		dir = DirectionWin
		g.Completed = true
		g.Won = true
	case guess < secret:
		dir = DirectionUp
		g.CurrentTop = guess
	default:
		dir = DirectionDown
		g.CurrentBottom = guess
	}
	g.Guesses = append(g.Guesses, guess)
	g.Directions = append(g.Directions, dir)

	if !g.Won && len(g.Guesses) >= maxGuesses {
		g.Completed = true
	}
	return dir, nil
}

// GuessesRemaining reports how many guesses are left under maxGuesses.
func (g *Game) GuessesRemaining(maxGuesses int) int {
	if maxGuesses <= 0 {
		maxGuesses = DefaultMaxGuesses
	}
	if rem := maxGuesses - len(g.Guesses); rem > 0 {
		return rem
	}
	return 0
}

// isAlpha checks that a string consists only of lowercase a-z.
func isAlpha(s string) bool {
	for _, r := range s {
		if r < 'a' || r > 'z' {
			return false
		}
	}
	return true
}
