// Package game implements the bracket-narrowing state machine.
//
// A game tracks a shrinking alphabetic range (CurrentTop, CurrentBottom)
// around a hidden secret word. Each accepted guess either narrows one
// boundary or wins the game.
package game

import "time"

// Direction records what a single guess did to the bracket.
//   - "up":   the guess was below the secret; the top boundary moved up to it.
//   - "down": the guess was above the secret; the bottom boundary moved down.
//   - "win":  the guess was the secret word.
type Direction string

const (
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
	DirectionWin  Direction = "win"
)

// Game holds the state of one session's attempt at one daily puzzle.
// Exactly one row exists per (SessionID, PuzzleID) pair.
type Game struct {
	ID            string      // row identifier (UUID)
	SessionID     string      // owning session
	PuzzleID      string      // daily puzzle being played
	UserID        string      // optional account link; empty for guests
	CurrentTop    string      // highest guess known to sort below the secret
	CurrentBottom string      // lowest guess known to sort above the secret
	Guesses       []string    // accepted guesses, in order
	Directions    []Direction // one entry per accepted guess
	Completed     bool        // terminal: won or out of guesses
	Won           bool        // true only if the secret was guessed
	Version       int         // optimistic-concurrency token, bumped per update
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
