package puzzle

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/betwixt-game/betwixt/internal/store"
	"github.com/betwixt-game/betwixt/internal/words"
)

const (
	// DefaultMinSideCandidates is how many dictionary words must sort
	// strictly on each side of a secret word before it may be used.
	// A thinner side makes the bracket too easy to collapse.
	DefaultMinSideCandidates = 100

	// Boundary words ideally start 2-4 letters away from the secret's
	// first letter.
	idealLetterMin = 2
	idealLetterMax = 4
)

// ErrPoolExhausted means no unused secret word satisfies the candidate
// requirement. This is a data-sufficiency failure, not a transient fault;
// callers must surface it rather than retry.
var ErrPoolExhausted = errors.New("no usable secret word left in the pool")

// Store is the slice of persistence the generator needs.
type Store interface {
	PuzzleByDate(ctx context.Context, date string) (*store.Puzzle, error)
	UnusedSecretWords(ctx context.Context) ([]store.SecretWord, error)
	ClaimSecretWord(ctx context.Context, id, date string) error
	ReleaseSecretWord(ctx context.Context, id string) error
	CreatePuzzle(ctx context.Context, p *store.Puzzle) (bool, error)
}

// Generator builds at most one puzzle per date, lazily.
type Generator struct {
	dict *words.Dictionary
	st   Store

	// MinSideCandidates can be lowered for small test dictionaries.
	MinSideCandidates int
}

func NewGenerator(dict *words.Dictionary, st Store) *Generator {
	return &Generator{dict: dict, st: st, MinSideCandidates: DefaultMinSideCandidates}
}

// GetOrCreate returns the puzzle for now's calendar day, generating and
// persisting it on first request. Calling it twice on the same day returns
// the same puzzle row; concurrent first calls are resolved by the store's
// unique date constraint, with the loser releasing its claimed secret.
func (g *Generator) GetOrCreate(ctx context.Context, now time.Time) (*store.Puzzle, error) {
	date := DateKey(now)

	p, err := g.st.PuzzleByDate(ctx, date)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	pool, err := g.st.UnusedSecretWords(ctx)
	if err != nil {
		return nil, err
	}

	for len(pool) > 0 {
		i := randInt(len(pool))
		cand := pool[i]
		pool[i] = pool[len(pool)-1]
		pool = pool[:len(pool)-1]

		below, above := g.dict.CountAround(cand.Word)
		if below < g.MinSideCandidates || above < g.MinSideCandidates {
			continue
		}

		if err := g.st.ClaimSecretWord(ctx, cand.ID, date); err != nil {
			if errors.Is(err, store.ErrAlreadyUsed) {
				continue
			}
			return nil, err
		}

		top, err := pickBracket(g.dict.Below(cand.Word), cand.Word, true)
		if err == nil {
			var bottom string
			bottom, err = pickBracket(g.dict.Above(cand.Word), cand.Word, false)
			if err == nil {
				p := &store.Puzzle{
					ID:           uuid.NewString(),
					Date:         date,
					TopWord:      top,
					BottomWord:   bottom,
					SecretWordID: cand.ID,
					SecretWord:   cand.Word,
				}
				created, cerr := g.st.CreatePuzzle(ctx, p)
				if cerr != nil {
					_ = g.st.ReleaseSecretWord(ctx, cand.ID)
					return nil, cerr
				}
				if !created {
					// Another request inserted today's puzzle first.
					_ = g.st.ReleaseSecretWord(ctx, cand.ID)
					return g.st.PuzzleByDate(ctx, date)
				}
				log.Info().Str("date", date).Str("top", top).Str("bottom", bottom).
					Msg("generated daily puzzle")
				return p, nil
			}
		}
		// Bracket selection failed for this word; put it back in the pool.
		_ = g.st.ReleaseSecretWord(ctx, cand.ID)
	}

	return nil, fmt.Errorf("%w (need %d candidates on each side)", ErrPoolExhausted, g.MinSideCandidates)
}

// pickBracket chooses a boundary word from side, the dictionary words
// strictly below (isTop) or above the secret.
//
// Preference order:
//  1. Words whose first letter is 2-4 alphabet positions away from the
//     secret's first letter, on the correct side.
//  2. Words with any differing first letter on the correct side.
//  3. Any word on the correct side.
//
// The pick is randomized among whichever tier is non-empty first.
func pickBracket(side []string, secret string, isTop bool) (string, error) {
	if len(side) == 0 {
		return "", fmt.Errorf("no words %s %q", map[bool]string{true: "below", false: "above"}[isTop], secret)
	}
	first := secret[0]

	ideal := lo.Filter(side, func(w string, _ int) bool {
		return letterDistanceOK(w[0], first, isTop)
	})
	if len(ideal) > 0 {
		return ideal[randInt(len(ideal))], nil
	}

	differing := lo.Filter(side, func(w string, _ int) bool {
		if isTop {
			return w[0] < first
		}
		return w[0] > first
	})
	if len(differing) > 0 {
		return differing[randInt(len(differing))], nil
	}

	return side[randInt(len(side))], nil
}

// letterDistanceOK reports whether b's first letter sits 2-4 positions on
// the correct side of the secret's first letter.
func letterDistanceOK(b, secretFirst byte, isTop bool) bool {
	var d int
	if isTop {
		d = int(secretFirst) - int(b)
	} else {
		d = int(b) - int(secretFirst)
	}
	return d >= idealLetterMin && d <= idealLetterMax
}

// randInt returns a cryptographically random int in [0, n).
func randInt(n int) int {
	if n <= 1 {
		return 0
	}
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0
	}
	return int(v.Int64())
}
