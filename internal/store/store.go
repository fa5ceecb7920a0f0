// Package store defines the persistence interface for betwixt and its two
// implementations: SQLite (production) and an in-memory store used for
// tests and ephemeral development runs.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/betwixt-game/betwixt/internal/game"
)

var (
	// ErrNotFound is returned when a requested row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when an insert hits a uniqueness constraint
	// or an update loses an optimistic-concurrency race.
	ErrConflict = errors.New("conflict")
	// ErrAlreadyUsed is returned when claiming a secret word that another
	// request claimed first.
	ErrAlreadyUsed = errors.New("secret word already used")
)

// Session is an anonymous per-browser identity. Sessions are issued
// explicitly; every game row requires one.
type Session struct {
	ID        string
	UserID    string // empty until the session logs into an account
	CreatedAt time.Time
}

// User is an optional registered account with aggregate stats.
type User struct {
	ID           string
	Username     string
	PasswordHash string
	CreatedAt    time.Time
	GamesPlayed  int
	Wins         int
	Streak       int
}

// SecretWord is one entry of the daily-answer pool. A word is claimed at
// most once; claimed words are never reused.
type SecretWord struct {
	ID       string
	Word     string
	Used     bool
	UsedDate string // "YYYY-MM-DD", empty while unused
}

// Puzzle is one day's bracket: TopWord < secret < BottomWord.
// SecretWord is resolved by the store for server-side use and must never
// reach a client before the game completes.
type Puzzle struct {
	ID           string
	Date         string // "YYYY-MM-DD" UTC, unique
	TopWord      string
	BottomWord   string
	SecretWordID string
	SecretWord   string
}

// LeaderboardRow is one finished, won game on a puzzle's leaderboard.
type LeaderboardRow struct {
	SessionID  string
	Username   string // empty for guest sessions
	Guesses    int
	FinishedAt time.Time
}

// Store is the full persistence surface. Implementations must make
// ClaimSecretWord, CreatePuzzle, CreateGame, and UpdateGame safe under
// concurrent callers: claims are conditional updates, puzzle creation is
// first-writer-wins on the date, and game updates are compare-and-swap on
// the row version.
type Store interface {
	// Sessions.
	CreateSession(ctx context.Context, s *Session) error
	SessionByID(ctx context.Context, id string) (*Session, error)
	// AttachUser links a session (and its existing games) to an account.
	AttachUser(ctx context.Context, sessionID, userID string) error

	// Users.
	CreateUser(ctx context.Context, u *User) error
	UserByUsername(ctx context.Context, username string) (*User, error)
	UserByID(ctx context.Context, id string) (*User, error)
	// BumpStats increments games played and adjusts wins/streak.
	BumpStats(ctx context.Context, userID string, won bool) error

	// Secret-word pool.
	// SeedSecretWords inserts missing pool words; returns how many were new.
	SeedSecretWords(ctx context.Context, words []string) (int, error)
	UnusedSecretWords(ctx context.Context) ([]SecretWord, error)
	// ClaimSecretWord marks a word used for a date; ErrAlreadyUsed if the
	// word was claimed in the meantime.
	ClaimSecretWord(ctx context.Context, id, date string) error
	// ReleaseSecretWord undoes a claim whose puzzle insert lost a race.
	ReleaseSecretWord(ctx context.Context, id string) error

	// Daily puzzles.
	PuzzleByDate(ctx context.Context, date string) (*Puzzle, error)
	PuzzleByID(ctx context.Context, id string) (*Puzzle, error)
	// CreatePuzzle inserts p unless a puzzle for the date exists already;
	// reports whether the row was actually inserted.
	CreatePuzzle(ctx context.Context, p *Puzzle) (created bool, err error)

	// Games.
	// CreateGame inserts g; ErrConflict if the (session, puzzle) pair
	// already has a game.
	CreateGame(ctx context.Context, g *game.Game) error
	GameBySessionAndPuzzle(ctx context.Context, sessionID, puzzleID string) (*game.Game, error)
	// UpdateGame persists g only if the stored version still matches
	// g.Version; bumps g.Version on success, ErrConflict otherwise.
	UpdateGame(ctx context.Context, g *game.Game) error
	// TopGamesByPuzzle lists won games for a puzzle, fewest guesses first.
	TopGamesByPuzzle(ctx context.Context, puzzleID string, limit int) ([]LeaderboardRow, error)
}
