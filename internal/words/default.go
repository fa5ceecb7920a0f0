package words

import (
	"bufio"
	"os"
	"strings"
	"sync"

	"github.com/betwixt-game/betwixt/assets"
)

// Initialization behavior (Default):
//  1. If WORDS_ANSWERS_FILE and WORDS_ALLOWED_FILE are both set, load the
//     pool from the first and the guess dictionary from the second.
//  2. If only WORDS_ALLOWED_FILE is set, use it for both.
//  3. Otherwise fall back to the embedded lists in assets/.
var (
	defaultOnce sync.Once
	defaultDict *Dictionary
	defaultErr  error
)

// Default loads the process-wide dictionary exactly once.
func Default() (*Dictionary, error) {
	defaultOnce.Do(func() {
		defaultDict, defaultErr = load()
	})
	return defaultDict, defaultErr
}

func load() (*Dictionary, error) {
	answersPath := os.Getenv("WORDS_ANSWERS_FILE")
	allowedPath := os.Getenv("WORDS_ALLOWED_FILE")

	var ansList, allowList []string
	var err error

	switch {
	case answersPath != "" && allowedPath != "":
		if ansList, err = readWordFile(answersPath); err != nil {
			return nil, err
		}
		if allowList, err = readWordFile(allowedPath); err != nil {
			return nil, err
		}

	case allowedPath != "":
		if allowList, err = readWordFile(allowedPath); err != nil {
			return nil, err
		}
		ansList = allowList

	default:
		if ansList, err = assets.AnswersList(); err != nil {
			return nil, err
		}
		if allowList, err = assets.AllowedList(); err != nil {
			return nil, err
		}
	}

	return New(ansList, allowList), nil
}

// readWordFile loads one word per line, skipping blanks and # comments.
// Normalization happens in New.
func readWordFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		s := strings.TrimSpace(sc.Text())
		if s == "" || strings.HasPrefix(s, "#") {
			continue
		}
		out = append(out, s)
	}
	return out, sc.Err()
}
