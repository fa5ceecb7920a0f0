package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/betwixt-game/betwixt/internal/game"
)

func newTestSQLite(t *testing.T) *SQLite {
	t.Helper()
	db, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, Migrate(db))
	return NewSQLite(db)
}

func seedOne(t *testing.T, s *SQLite, word string) SecretWord {
	t.Helper()
	ctx := context.Background()
	_, err := s.SeedSecretWords(ctx, []string{word})
	require.NoError(t, err)
	unused, err := s.UnusedSecretWords(ctx)
	require.NoError(t, err)
	for _, sw := range unused {
		if sw.Word == word {
			return sw
		}
	}
	t.Fatalf("seeded word %q not found", word)
	return SecretWord{}
}

func mkSession(t *testing.T, s *SQLite) *Session {
	t.Helper()
	sess := &Session{ID: uuid.NewString(), CreatedAt: time.Now().UTC()}
	require.NoError(t, s.CreateSession(context.Background(), sess))
	return sess
}

func mkPuzzle(t *testing.T, s *SQLite, date, secret string) *Puzzle {
	t.Helper()
	ctx := context.Background()
	sw := seedOne(t, s, secret)
	require.NoError(t, s.ClaimSecretWord(ctx, sw.ID, date))
	p := &Puzzle{
		ID: uuid.NewString(), Date: date,
		TopWord: "apple", BottomWord: "zebra",
		SecretWordID: sw.ID, SecretWord: secret,
	}
	created, err := s.CreatePuzzle(ctx, p)
	require.NoError(t, err)
	require.True(t, created)
	return p
}

func TestSeedSecretWordsIdempotent(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	n, err := s.SeedSecretWords(ctx, []string{"mango", "tiger"})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = s.SeedSecretWords(ctx, []string{"mango", "tiger", "zebra"})
	require.NoError(t, err)
	assert.Equal(t, 1, n, "reseeding only inserts new words")
}

func TestClaimSecretWordOnce(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()
	sw := seedOne(t, s, "mango")

	require.NoError(t, s.ClaimSecretWord(ctx, sw.ID, "2024-06-01"))
	assert.ErrorIs(t, s.ClaimSecretWord(ctx, sw.ID, "2024-06-02"), ErrAlreadyUsed)

	unused, err := s.UnusedSecretWords(ctx)
	require.NoError(t, err)
	assert.Empty(t, unused)

	// Release puts the word back in play.
	require.NoError(t, s.ReleaseSecretWord(ctx, sw.ID))
	require.NoError(t, s.ClaimSecretWord(ctx, sw.ID, "2024-06-02"))
}

func TestCreatePuzzleUniqueDate(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()
	p := mkPuzzle(t, s, "2024-06-01", "mango")

	sw2 := seedOne(t, s, "tiger")
	loser := &Puzzle{
		ID: uuid.NewString(), Date: "2024-06-01",
		TopWord: "pasta", BottomWord: "trunk", SecretWordID: sw2.ID,
	}
	created, err := s.CreatePuzzle(ctx, loser)
	require.NoError(t, err)
	assert.False(t, created, "second insert for the date must lose")

	got, err := s.PuzzleByDate(ctx, "2024-06-01")
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)
	assert.Equal(t, "mango", got.SecretWord, "secret word resolved via join")
}

func TestPuzzleByDateNotFound(t *testing.T) {
	s := newTestSQLite(t)
	_, err := s.PuzzleByDate(context.Background(), "1999-01-01")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGameRoundTrip(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()
	sess := mkSession(t, s)
	p := mkPuzzle(t, s, "2024-06-01", "mango")

	g := game.New(sess.ID, p.ID, p.TopWord, p.BottomWord)
	require.NoError(t, s.CreateGame(ctx, g))

	_, err := g.ApplyGuess("mango", "lemon", game.DefaultMaxGuesses)
	require.NoError(t, err)
	require.NoError(t, s.UpdateGame(ctx, g))

	got, err := s.GameBySessionAndPuzzle(ctx, sess.ID, p.ID)
	require.NoError(t, err)
	assert.Equal(t, g.ID, got.ID)
	assert.Equal(t, "lemon", got.CurrentTop)
	assert.Equal(t, []string{"lemon"}, got.Guesses)
	assert.Equal(t, []game.Direction{game.DirectionUp}, got.Directions)
	assert.Equal(t, 1, got.Version)
	assert.False(t, got.Completed)
}

func TestCreateGameUniquePerSessionAndPuzzle(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()
	sess := mkSession(t, s)
	p := mkPuzzle(t, s, "2024-06-01", "mango")

	require.NoError(t, s.CreateGame(ctx, game.New(sess.ID, p.ID, "apple", "zebra")))
	err := s.CreateGame(ctx, game.New(sess.ID, p.ID, "apple", "zebra"))
	assert.ErrorIs(t, err, ErrConflict)
}

func TestUpdateGameVersionConflict(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()
	sess := mkSession(t, s)
	p := mkPuzzle(t, s, "2024-06-01", "mango")

	g := game.New(sess.ID, p.ID, p.TopWord, p.BottomWord)
	require.NoError(t, s.CreateGame(ctx, g))

	// Two request handlers read the same row.
	first, err := s.GameBySessionAndPuzzle(ctx, sess.ID, p.ID)
	require.NoError(t, err)
	second, err := s.GameBySessionAndPuzzle(ctx, sess.ID, p.ID)
	require.NoError(t, err)

	_, err = first.ApplyGuess("mango", "lemon", game.DefaultMaxGuesses)
	require.NoError(t, err)
	require.NoError(t, s.UpdateGame(ctx, first))

	_, err = second.ApplyGuess("mango", "movie", game.DefaultMaxGuesses)
	require.NoError(t, err)
	assert.ErrorIs(t, s.UpdateGame(ctx, second), ErrConflict,
		"stale version must not overwrite")

	got, err := s.GameBySessionAndPuzzle(ctx, sess.ID, p.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"lemon"}, got.Guesses, "first write wins")
}

func TestTopGamesByPuzzle(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()
	p := mkPuzzle(t, s, "2024-06-01", "mango")

	// Three players: quick win, slow win, loss.
	histories := []struct {
		guesses []string
		won     bool
	}{
		{[]string{"mango"}, true},
		{[]string{"lemon", "movie", "mango"}, true},
		{[]string{"lemon"}, false},
	}
	for _, h := range histories {
		sess := mkSession(t, s)
		g := game.New(sess.ID, p.ID, p.TopWord, p.BottomWord)
		require.NoError(t, s.CreateGame(ctx, g))
		for _, guess := range h.guesses {
			_, err := g.ApplyGuess("mango", guess, game.DefaultMaxGuesses)
			require.NoError(t, err)
		}
		if !h.won {
			g.Completed = true
		}
		require.NoError(t, s.UpdateGame(ctx, g))
	}

	rows, err := s.TopGamesByPuzzle(ctx, p.ID, 20)
	require.NoError(t, err)
	require.Len(t, rows, 2, "only won games rank")
	assert.Equal(t, 1, rows[0].Guesses)
	assert.Equal(t, 3, rows[1].Guesses)
}

func TestAttachUserClaimsGames(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()
	sess := mkSession(t, s)
	p := mkPuzzle(t, s, "2024-06-01", "mango")

	g := game.New(sess.ID, p.ID, p.TopWord, p.BottomWord)
	require.NoError(t, s.CreateGame(ctx, g))

	u := &User{ID: uuid.NewString(), Username: "player_one",
		PasswordHash: "x", CreatedAt: time.Now().UTC()}
	require.NoError(t, s.CreateUser(ctx, u))
	require.NoError(t, s.AttachUser(ctx, sess.ID, u.ID))

	got, err := s.GameBySessionAndPuzzle(ctx, sess.ID, p.ID)
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.UserID)

	gotSess, err := s.SessionByID(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, u.ID, gotSess.UserID)
}

func TestCreateUserDuplicateUsername(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	u := &User{ID: uuid.NewString(), Username: "player_one",
		PasswordHash: "x", CreatedAt: time.Now().UTC()}
	require.NoError(t, s.CreateUser(ctx, u))

	dup := &User{ID: uuid.NewString(), Username: "Player_One",
		PasswordHash: "y", CreatedAt: time.Now().UTC()}
	assert.ErrorIs(t, s.CreateUser(ctx, dup), ErrConflict,
		"usernames are case-insensitively unique")
}

func TestBumpStats(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	u := &User{ID: uuid.NewString(), Username: "player_one",
		PasswordHash: "x", CreatedAt: time.Now().UTC()}
	require.NoError(t, s.CreateUser(ctx, u))

	require.NoError(t, s.BumpStats(ctx, u.ID, true))
	require.NoError(t, s.BumpStats(ctx, u.ID, true))
	require.NoError(t, s.BumpStats(ctx, u.ID, false))

	got, err := s.UserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.GamesPlayed)
	assert.Equal(t, 2, got.Wins)
	assert.Equal(t, 0, got.Streak, "loss resets the streak")
}
