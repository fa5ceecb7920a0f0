package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/betwixt-game/betwixt/internal/game"
)

// Memory is a mutex-guarded map-backed Store. State is lost on restart; it
// exists for tests and ephemeral development runs, and mirrors the SQLite
// implementation's concurrency semantics (conditional claims, first-writer
// puzzle creation, versioned game updates).
type Memory struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	users    map[string]*User    // by id
	secrets  map[string]*SecretWord
	puzzles  map[string]*Puzzle  // by id
	byDate   map[string]string   // date -> puzzle id
	games    map[string]*game.Game // by id
	byPair   map[string]string   // sessionID|puzzleID -> game id
}

// NewMemory constructs an empty in-memory Store.
func NewMemory() *Memory {
	return &Memory{
		sessions: make(map[string]*Session),
		users:    make(map[string]*User),
		secrets:  make(map[string]*SecretWord),
		puzzles:  make(map[string]*Puzzle),
		byDate:   make(map[string]string),
		games:    make(map[string]*game.Game),
		byPair:   make(map[string]string),
	}
}

func pairKey(sessionID, puzzleID string) string { return sessionID + "|" + puzzleID }

/* ------------------------------- sessions ------------------------------- */

func (m *Memory) CreateSession(ctx context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[s.ID]; ok {
		return ErrConflict
	}
	cp := *s
	m.sessions[s.ID] = &cp
	return nil
}

func (m *Memory) SessionByID(ctx context.Context, id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *Memory) AttachUser(ctx context.Context, sessionID, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return ErrNotFound
	}
	s.UserID = userID
	for _, g := range m.games {
		if g.SessionID == sessionID && g.UserID == "" {
			g.UserID = userID
		}
	}
	return nil
}

/* -------------------------------- users --------------------------------- */

func (m *Memory) CreateUser(ctx context.Context, u *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if strings.EqualFold(existing.Username, u.Username) {
			return ErrConflict
		}
	}
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *Memory) UserByUsername(ctx context.Context, username string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if strings.EqualFold(u.Username, username) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) UserByID(ctx context.Context, id string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *Memory) BumpStats(ctx context.Context, userID string, won bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return ErrNotFound
	}
	u.GamesPlayed++
	if won {
		u.Wins++
		u.Streak++
	} else {
		u.Streak = 0
	}
	return nil
}

/* ----------------------------- secret words ------------------------------ */

func (m *Memory) SeedSecretWords(ctx context.Context, words []string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing := make(map[string]struct{}, len(m.secrets))
	for _, sw := range m.secrets {
		existing[sw.Word] = struct{}{}
	}
	inserted := 0
	for _, w := range words {
		w = strings.ToLower(w)
		if _, ok := existing[w]; ok {
			continue
		}
		sw := &SecretWord{ID: uuid.NewString(), Word: w}
		m.secrets[sw.ID] = sw
		existing[w] = struct{}{}
		inserted++
	}
	return inserted, nil
}

func (m *Memory) UnusedSecretWords(ctx context.Context) ([]SecretWord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []SecretWord
	for _, sw := range m.secrets {
		if !sw.Used {
			out = append(out, *sw)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Word < out[j].Word })
	return out, nil
}

func (m *Memory) ClaimSecretWord(ctx context.Context, id, date string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sw, ok := m.secrets[id]
	if !ok || sw.Used {
		return ErrAlreadyUsed
	}
	sw.Used = true
	sw.UsedDate = date
	return nil
}

func (m *Memory) ReleaseSecretWord(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if sw, ok := m.secrets[id]; ok && sw.Used {
		sw.Used = false
		sw.UsedDate = ""
	}
	return nil
}

/* ------------------------------- puzzles --------------------------------- */

func (m *Memory) PuzzleByDate(ctx context.Context, date string) (*Puzzle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byDate[date]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *m.puzzles[id]
	return &cp, nil
}

func (m *Memory) PuzzleByID(ctx context.Context, id string) (*Puzzle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.puzzles[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *Memory) CreatePuzzle(ctx context.Context, p *Puzzle) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byDate[p.Date]; ok {
		return false, nil
	}
	cp := *p
	m.puzzles[p.ID] = &cp
	m.byDate[p.Date] = p.ID
	return true, nil
}

/* -------------------------------- games ---------------------------------- */

func (m *Memory) CreateGame(ctx context.Context, g *game.Game) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := pairKey(g.SessionID, g.PuzzleID)
	if _, ok := m.byPair[key]; ok {
		return ErrConflict
	}
	now := time.Now().UTC()
	if g.CreatedAt.IsZero() {
		g.CreatedAt = now
	}
	g.UpdatedAt = now
	m.games[g.ID] = copyGame(g)
	m.byPair[key] = g.ID
	return nil
}

func (m *Memory) GameBySessionAndPuzzle(ctx context.Context, sessionID, puzzleID string) (*game.Game, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byPair[pairKey(sessionID, puzzleID)]
	if !ok {
		return nil, ErrNotFound
	}
	return copyGame(m.games[id]), nil
}

func (m *Memory) UpdateGame(ctx context.Context, g *game.Game) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.games[g.ID]
	if !ok {
		return ErrNotFound
	}
	if stored.Version != g.Version {
		return ErrConflict
	}
	g.UpdatedAt = time.Now().UTC()
	g.Version++
	m.games[g.ID] = copyGame(g)
	return nil
}

func (m *Memory) TopGamesByPuzzle(ctx context.Context, puzzleID string, limit int) ([]LeaderboardRow, error) {
	if limit <= 0 {
		limit = 20
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []LeaderboardRow
	for _, g := range m.games {
		if g.PuzzleID != puzzleID || !g.Completed || !g.Won {
			continue
		}
		row := LeaderboardRow{
			SessionID:  g.SessionID,
			Guesses:    len(g.Guesses),
			FinishedAt: g.UpdatedAt,
		}
		if g.UserID != "" {
			if u, ok := m.users[g.UserID]; ok {
				row.Username = u.Username
			}
		}
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Guesses != out[j].Guesses {
			return out[i].Guesses < out[j].Guesses
		}
		return out[i].FinishedAt.Before(out[j].FinishedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// copyGame deep-copies a game so callers never alias stored state.
func copyGame(g *game.Game) *game.Game {
	cp := *g
	cp.Guesses = append([]string{}, g.Guesses...)
	cp.Directions = append([]game.Direction{}, g.Directions...)
	return &cp
}
