package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"

	"github.com/betwixt-game/betwixt/internal/game"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Open opens (and creates if missing) a SQLite database.
//
//   - Ensures the parent directory exists for relative DSNs (./data/app.db).
//   - Configures busy timeout and WAL journaling.
//   - Enforces foreign keys.
//   - Pins in-memory databases to a single connection so the pool does not
//     silently hand out fresh empty databases.
func Open(dsn string) (*sql.DB, error) {
	memory := strings.Contains(dsn, ":memory:")
	if !memory {
		if dir := filepath.Dir(dsn); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("mkdir %s: %w", dir, err)
			}
		}
	}

	db, err := sql.Open("sqlite3", dsn+"?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, err
	}
	if memory {
		db.SetMaxOpenConns(1)
	}
	if _, err := db.Exec(`PRAGMA foreign_keys = ON;`); err != nil {
		return nil, fmt.Errorf("set pragmas: %w", err)
	}
	return db, nil
}

// Migrate applies the embedded SQL migrations in lexical order.
// Applied files are recorded in a _migrations table and skipped on rerun.
func Migrate(db *sql.DB) error {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS _migrations (name TEXT PRIMARY KEY);`); err != nil {
		return fmt.Errorf("create _migrations: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	for _, f := range files {
		var done int
		err := db.QueryRow(`SELECT 1 FROM _migrations WHERE name=?`, f).Scan(&done)
		if err == nil {
			continue
		}
		if err != sql.ErrNoRows {
			return fmt.Errorf("query _migrations: %w", err)
		}

		sqlText, err := migrationsFS.ReadFile("migrations/" + f)
		if err != nil {
			return fmt.Errorf("read %s: %w", f, err)
		}

		tx, err := db.Begin()
		if err != nil {
			return err
		}
		if _, err := tx.Exec(string(sqlText)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("apply %s: %w", f, err)
		}
		if _, err := tx.Exec(`INSERT INTO _migrations(name) VALUES (?)`, f); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record %s: %w", f, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit %s: %w", f, err)
		}
		log.Info().Str("migration", f).Msg("applied")
	}
	return nil
}

// SQLite is the production Store backed by database/sql + go-sqlite3.
type SQLite struct {
	db *sql.DB
}

// NewSQLite wraps an opened, migrated database handle.
func NewSQLite(db *sql.DB) *SQLite { return &SQLite{db: db} }

/* ------------------------------- sessions ------------------------------- */

func (s *SQLite) CreateSession(ctx context.Context, sess *Session) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, user_id, created_at) VALUES (?,?,?)`,
		sess.ID, nullable(sess.UserID), sess.CreatedAt.UTC().Format(time.RFC3339))
	return err
}

func (s *SQLite) SessionByID(ctx context.Context, id string) (*Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, COALESCE(user_id,''), created_at FROM sessions WHERE id=?`, id)
	var sess Session
	var created string
	if err := row.Scan(&sess.ID, &sess.UserID, &created); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	sess.CreatedAt = mustParse(created)
	return &sess, nil
}

func (s *SQLite) AttachUser(ctx context.Context, sessionID, userID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`UPDATE sessions SET user_id=? WHERE id=?`, userID, sessionID); err != nil {
		return err
	}
	// Claim the session's existing games for the account.
	if _, err := tx.ExecContext(ctx,
		`UPDATE user_games SET user_id=? WHERE session_id=? AND user_id IS NULL`,
		userID, sessionID); err != nil {
		return err
	}
	return tx.Commit()
}

/* -------------------------------- users --------------------------------- */

func (s *SQLite) CreateUser(ctx context.Context, u *User) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, username, password_hash, created_at) VALUES (?,?,?,?)`,
		u.ID, u.Username, u.PasswordHash, u.CreatedAt.UTC().Format(time.RFC3339))
	if err != nil && strings.Contains(err.Error(), "UNIQUE") {
		return ErrConflict
	}
	return err
}

func (s *SQLite) UserByUsername(ctx context.Context, username string) (*User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, username, password_hash, created_at, games_played, wins, streak
		 FROM users WHERE username=? COLLATE NOCASE`, username)
	return scanUser(row)
}

func (s *SQLite) UserByID(ctx context.Context, id string) (*User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, username, password_hash, created_at, games_played, wins, streak
		 FROM users WHERE id=?`, id)
	return scanUser(row)
}

func scanUser(row *sql.Row) (*User, error) {
	var u User
	var created string
	if err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &created,
		&u.GamesPlayed, &u.Wins, &u.Streak); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	u.CreatedAt = mustParse(created)
	return &u, nil
}

func (s *SQLite) BumpStats(ctx context.Context, userID string, won bool) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var gp, wins, streak int
	row := tx.QueryRowContext(ctx,
		`SELECT games_played, wins, streak FROM users WHERE id=?`, userID)
	if err := row.Scan(&gp, &wins, &streak); err != nil {
		if err == sql.ErrNoRows {
			return ErrNotFound
		}
		return err
	}
	gp++
	if won {
		wins++
		streak++
	} else {
		streak = 0
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE users SET games_played=?, wins=?, streak=? WHERE id=?`,
		gp, wins, streak, userID); err != nil {
		return err
	}
	return tx.Commit()
}

/* ----------------------------- secret words ------------------------------ */

func (s *SQLite) SeedSecretWords(ctx context.Context, words []string) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR IGNORE INTO secret_words (id, word, used) VALUES (?,?,0)`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	inserted := 0
	for _, w := range words {
		res, err := stmt.ExecContext(ctx, uuid.NewString(), strings.ToLower(w))
		if err != nil {
			return 0, fmt.Errorf("seed %q: %w", w, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			inserted++
		}
	}
	return inserted, tx.Commit()
}

func (s *SQLite) UnusedSecretWords(ctx context.Context) ([]SecretWord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, word FROM secret_words WHERE used=0 ORDER BY word`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SecretWord
	for rows.Next() {
		var sw SecretWord
		if err := rows.Scan(&sw.ID, &sw.Word); err != nil {
			return nil, err
		}
		out = append(out, sw)
	}
	return out, rows.Err()
}

// ClaimSecretWord is the atomic claim: the conditional update succeeds for
// exactly one caller per word.
func (s *SQLite) ClaimSecretWord(ctx context.Context, id, date string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE secret_words SET used=1, used_date=? WHERE id=? AND used=0`, date, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrAlreadyUsed
	}
	return nil
}

func (s *SQLite) ReleaseSecretWord(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE secret_words SET used=0, used_date=NULL WHERE id=? AND used=1`, id)
	return err
}

/* ------------------------------- puzzles --------------------------------- */

const puzzleCols = `p.id, p.date, p.top_word, p.bottom_word, p.secret_word_id, w.word`

func (s *SQLite) PuzzleByDate(ctx context.Context, date string) (*Puzzle, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+puzzleCols+` FROM daily_puzzles p
		 JOIN secret_words w ON w.id = p.secret_word_id
		 WHERE p.date=?`, date)
	return scanPuzzle(row)
}

func (s *SQLite) PuzzleByID(ctx context.Context, id string) (*Puzzle, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+puzzleCols+` FROM daily_puzzles p
		 JOIN secret_words w ON w.id = p.secret_word_id
		 WHERE p.id=?`, id)
	return scanPuzzle(row)
}

func scanPuzzle(row *sql.Row) (*Puzzle, error) {
	var p Puzzle
	if err := row.Scan(&p.ID, &p.Date, &p.TopWord, &p.BottomWord,
		&p.SecretWordID, &p.SecretWord); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (s *SQLite) CreatePuzzle(ctx context.Context, p *Puzzle) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO daily_puzzles (id, date, top_word, bottom_word, secret_word_id)
		 VALUES (?,?,?,?,?)
		 ON CONFLICT(date) DO NOTHING`,
		p.ID, p.Date, p.TopWord, p.BottomWord, p.SecretWordID)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

/* -------------------------------- games ---------------------------------- */

func (s *SQLite) CreateGame(ctx context.Context, g *game.Game) error {
	guesses, directions, err := marshalHistory(g)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	if g.CreatedAt.IsZero() {
		g.CreatedAt = now
	}
	g.UpdatedAt = now

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO user_games
		   (id, session_id, daily_puzzle_id, user_id, current_top, current_bottom,
		    guesses, guess_directions, guess_count, completed, won, version,
		    created_at, updated_at)
		 VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)
		 ON CONFLICT(session_id, daily_puzzle_id) DO NOTHING`,
		g.ID, g.SessionID, g.PuzzleID, nullable(g.UserID),
		g.CurrentTop, g.CurrentBottom,
		guesses, directions, len(g.Guesses), boolInt(g.Completed), boolInt(g.Won),
		g.Version, g.CreatedAt.Format(time.RFC3339), g.UpdatedAt.Format(time.RFC3339))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrConflict
	}
	return nil
}

func (s *SQLite) GameBySessionAndPuzzle(ctx context.Context, sessionID, puzzleID string) (*game.Game, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, session_id, daily_puzzle_id, COALESCE(user_id,''),
		        current_top, current_bottom, guesses, guess_directions,
		        completed, won, version, created_at, updated_at
		 FROM user_games WHERE session_id=? AND daily_puzzle_id=?`,
		sessionID, puzzleID)

	var g game.Game
	var guesses, directions, created, updated string
	var completed, won int
	if err := row.Scan(&g.ID, &g.SessionID, &g.PuzzleID, &g.UserID,
		&g.CurrentTop, &g.CurrentBottom, &guesses, &directions,
		&completed, &won, &g.Version, &created, &updated); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal([]byte(guesses), &g.Guesses); err != nil {
		return nil, fmt.Errorf("decode guesses: %w", err)
	}
	if err := json.Unmarshal([]byte(directions), &g.Directions); err != nil {
		return nil, fmt.Errorf("decode directions: %w", err)
	}
	g.Completed = completed == 1
	g.Won = won == 1
	g.CreatedAt = mustParse(created)
	g.UpdatedAt = mustParse(updated)
	return &g, nil
}

// UpdateGame is the compare-and-swap write: the row is only touched when the
// stored version still matches the version the caller read.
func (s *SQLite) UpdateGame(ctx context.Context, g *game.Game) error {
	guesses, directions, err := marshalHistory(g)
	if err != nil {
		return err
	}
	g.UpdatedAt = time.Now().UTC()

	res, err := s.db.ExecContext(ctx,
		`UPDATE user_games
		 SET current_top=?, current_bottom=?, guesses=?, guess_directions=?,
		     guess_count=?, completed=?, won=?, user_id=?, version=version+1,
		     updated_at=?
		 WHERE id=? AND version=?`,
		g.CurrentTop, g.CurrentBottom, guesses, directions,
		len(g.Guesses), boolInt(g.Completed), boolInt(g.Won), nullable(g.UserID),
		g.UpdatedAt.Format(time.RFC3339), g.ID, g.Version)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrConflict
	}
	g.Version++
	return nil
}

func (s *SQLite) TopGamesByPuzzle(ctx context.Context, puzzleID string, limit int) ([]LeaderboardRow, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT g.session_id, COALESCE(u.username,''), g.guess_count, g.updated_at
		 FROM user_games g
		 LEFT JOIN users u ON u.id = g.user_id
		 WHERE g.daily_puzzle_id=? AND g.completed=1 AND g.won=1
		 ORDER BY g.guess_count ASC, g.updated_at ASC
		 LIMIT ?`, puzzleID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]LeaderboardRow, 0, limit)
	for rows.Next() {
		var r LeaderboardRow
		var finished string
		if err := rows.Scan(&r.SessionID, &r.Username, &r.Guesses, &finished); err != nil {
			return nil, err
		}
		r.FinishedAt = mustParse(finished)
		out = append(out, r)
	}
	return out, rows.Err()
}

/* -------------------------------- helpers -------------------------------- */

func marshalHistory(g *game.Game) (guesses, directions string, err error) {
	gb, err := json.Marshal(g.Guesses)
	if err != nil {
		return "", "", err
	}
	db, err := json.Marshal(g.Directions)
	if err != nil {
		return "", "", err
	}
	return string(gb), string(db), nil
}

// nullable maps "" to NULL so empty foreign keys do not trip constraints.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// mustParse parses RFC3339 timestamps; on error returns zero time.
func mustParse(s string) time.Time {
	t, _ := time.Parse(time.RFC3339, s)
	return t
}
