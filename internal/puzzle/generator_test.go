package puzzle

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/betwixt-game/betwixt/internal/store"
	"github.com/betwixt-game/betwixt/internal/words"
)

var testDay = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestGenerator(t *testing.T, answers, allowed []string, minSide int) (*Generator, *store.Memory) {
	t.Helper()
	dict := words.New(answers, allowed)
	st := store.NewMemory()
	_, err := st.SeedSecretWords(context.Background(), dict.Answers())
	require.NoError(t, err)

	gen := NewGenerator(dict, st)
	gen.MinSideCandidates = minSide
	return gen, st
}

func TestDateKey(t *testing.T) {
	assert.Equal(t, "2024-06-01", DateKey(testDay))
	// Late-evening local times resolve to the UTC day.
	est := time.Date(2024, 5, 31, 23, 0, 0, 0, time.FixedZone("EST", -5*3600))
	assert.Equal(t, "2024-06-01", DateKey(est))
}

func TestGetOrCreateBracketsSecret(t *testing.T) {
	gen, _ := newTestGenerator(t,
		[]string{"mango"},
		[]string{"apple", "cabin", "kayak", "mango", "otter", "tiger", "zebra"},
		1)

	p, err := gen.GetOrCreate(context.Background(), testDay)
	require.NoError(t, err)

	assert.Equal(t, "mango", p.SecretWord)
	assert.Less(t, p.TopWord, "mango")
	assert.Greater(t, p.BottomWord, "mango")
	assert.Equal(t, "2024-06-01", p.Date)
}

func TestGetOrCreateIdempotentPerDay(t *testing.T) {
	gen, st := newTestGenerator(t,
		[]string{"mango"},
		[]string{"apple", "kayak", "mango", "otter", "zebra"},
		1)

	p1, err := gen.GetOrCreate(context.Background(), testDay)
	require.NoError(t, err)
	p2, err := gen.GetOrCreate(context.Background(), testDay.Add(3*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, p1.ID, p2.ID, "same calendar day must reuse the puzzle")

	unused, err := st.UnusedSecretWords(context.Background())
	require.NoError(t, err)
	assert.Empty(t, unused, "the secret word must be claimed exactly once")
}

func TestGetOrCreatePrefersIdealLetterDistance(t *testing.T) {
	// Only one candidate per side sits 2-4 first letters away from 'm';
	// the heuristic must pick those over the distant alternatives.
	gen, _ := newTestGenerator(t,
		[]string{"mango"},
		[]string{"apple", "kayak", "mango", "otter", "zebra"},
		1)

	p, err := gen.GetOrCreate(context.Background(), testDay)
	require.NoError(t, err)
	assert.Equal(t, "kayak", p.TopWord)
	assert.Equal(t, "otter", p.BottomWord)
}

func TestGetOrCreateFallsBackToAnyFirstLetter(t *testing.T) {
	// No word within the ideal distance below 'm': apple is the only
	// choice and must still be accepted.
	gen, _ := newTestGenerator(t,
		[]string{"mango"},
		[]string{"apple", "mango", "otter"},
		1)

	p, err := gen.GetOrCreate(context.Background(), testDay)
	require.NoError(t, err)
	assert.Equal(t, "apple", p.TopWord)
	assert.Equal(t, "otter", p.BottomWord)
}

func TestGetOrCreateFallsBackToSameFirstLetter(t *testing.T) {
	gen, _ := newTestGenerator(t,
		[]string{"mango"},
		[]string{"madam", "mango", "merit"},
		1)

	p, err := gen.GetOrCreate(context.Background(), testDay)
	require.NoError(t, err)
	assert.Equal(t, "madam", p.TopWord)
	assert.Equal(t, "merit", p.BottomWord)
}

func TestGetOrCreateSkipsThinSecrets(t *testing.T) {
	// apple has nothing below it; only mango has two candidates a side.
	gen, _ := newTestGenerator(t,
		[]string{"apple", "mango"},
		[]string{"apple", "cabin", "kayak", "mango", "otter", "zebra"},
		2)

	p, err := gen.GetOrCreate(context.Background(), testDay)
	require.NoError(t, err)
	assert.Equal(t, "mango", p.SecretWord)
}

func TestGetOrCreatePoolExhausted(t *testing.T) {
	// The default candidate requirement cannot be met by a tiny list.
	gen, st := newTestGenerator(t,
		[]string{"mango"},
		[]string{"apple", "mango", "zebra"},
		DefaultMinSideCandidates)

	_, err := gen.GetOrCreate(context.Background(), testDay)
	require.ErrorIs(t, err, ErrPoolExhausted)

	// Nothing may be claimed by a failed generation.
	unused, err := st.UnusedSecretWords(context.Background())
	require.NoError(t, err)
	assert.Len(t, unused, 1)
}

func TestGetOrCreateLosingInsertReleasesClaim(t *testing.T) {
	dict := words.New([]string{"mango"}, []string{"apple", "kayak", "mango", "otter", "zebra"})
	st := store.NewMemory()
	_, err := st.SeedSecretWords(context.Background(), []string{"mango", "tiger"})
	require.NoError(t, err)

	// Simulate a concurrent winner: today's puzzle already exists by the
	// time our insert runs, but was missed by the initial lookup.
	winner := &store.Puzzle{ID: "winner", Date: DateKey(testDay), TopWord: "apple", BottomWord: "zebra"}
	gen := NewGenerator(dict, &racingStore{Memory: st, winner: winner})
	gen.MinSideCandidates = 1

	p, err := gen.GetOrCreate(context.Background(), testDay)
	require.NoError(t, err)
	assert.Equal(t, "winner", p.ID, "loser must return the winner's puzzle")

	unused, err := st.UnusedSecretWords(context.Background())
	require.NoError(t, err)
	assert.Len(t, unused, 2, "lost race must release the claimed secret")
}

// racingStore makes the first PuzzleByDate miss, then installs the winning
// row so CreatePuzzle reports a lost race.
type racingStore struct {
	*store.Memory
	winner *store.Puzzle
	looked bool
}

func (r *racingStore) PuzzleByDate(ctx context.Context, date string) (*store.Puzzle, error) {
	if !r.looked {
		r.looked = true
		return nil, store.ErrNotFound
	}
	return r.Memory.PuzzleByDate(ctx, date)
}

func (r *racingStore) CreatePuzzle(ctx context.Context, p *store.Puzzle) (bool, error) {
	if _, err := r.Memory.CreatePuzzle(ctx, r.winner); err != nil {
		return false, err
	}
	return r.Memory.CreatePuzzle(ctx, p)
}
