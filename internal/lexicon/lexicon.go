// internal/lexicon/lexicon.go
package lexicon

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"
	"strings"
	"unicode/utf8"
)

// ErrEmpty is returned when a dictionary source contains no usable words.
var ErrEmpty = errors.New("lexicon: dictionary has no words")

// Lexicon is the read-only word list shared by every game.
// It is safe for concurrent use once loaded.
type Lexicon struct {
	words map[string]struct{}

	// hintSource holds the words long enough to produce a hint (>= 2 runes).
	hintSource []string
}

// Load reads a newline-separated dictionary file.
func Load(path string) (*Lexicon, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dictionary %s: %w", path, err)
	}
	defer f.Close()

	lex, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("failed to load dictionary %s: %w", path, err)
	}
	return lex, nil
}

// Read builds a Lexicon from r. Each line is trimmed and lower-cased; blank lines are skipped.
func Read(r io.Reader) (*Lexicon, error) {
	lex := &Lexicon{words: make(map[string]struct{})}

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		word := strings.ToLower(strings.TrimSpace(scanner.Text()))
		if word == "" {
			continue
		}
		if _, dup := lex.words[word]; dup {
			continue
		}
		lex.words[word] = struct{}{}
		if utf8.RuneCountInString(word) >= 2 {
			lex.hintSource = append(lex.hintSource, word)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(lex.hintSource) == 0 {
		return nil, ErrEmpty
	}
	return lex, nil
}

// FromWords builds a Lexicon from an in-memory list.
func FromWords(words ...string) (*Lexicon, error) {
	return Read(strings.NewReader(strings.Join(words, "\n")))
}

// Contains reports whether word is in the dictionary. Callers pass lower-cased words.
func (l *Lexicon) Contains(word string) bool {
	_, ok := l.words[word]
	return ok
}

// Len returns the number of distinct words.
func (l *Lexicon) Len() int {
	return len(l.words)
}

// SampleHint picks a random dictionary word and returns a 2 or 3 letter slice of it
// taken at a random offset.
func (l *Lexicon) SampleHint() string {
	word := []rune(l.hintSource[rand.Intn(len(l.hintSource))])

	maxLen := min(3, len(word))
	hintLen := 2 + rand.Intn(maxLen-1)
	start := rand.Intn(len(word) - hintLen + 1)

	return string(word[start : start+hintLen])
}
