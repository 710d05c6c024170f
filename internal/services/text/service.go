package text

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/mcoot/typerace-go/internal/dependencies/random"
	"github.com/mcoot/typerace-go/internal/model"
)

//go:embed texts.yaml
var defaultLibrary []byte

// library is the on-disk shape of a passage file
type library struct {
	Easy   []string `yaml:"easy"`
	Medium []string `yaml:"medium"`
	Hard   []string `yaml:"hard"`
}

func (l library) byDifficulty() map[model.Difficulty][]string {
	return map[model.Difficulty][]string{
		model.DifficultyEasy:   l.Easy,
		model.DifficultyMedium: l.Medium,
		model.DifficultyHard:   l.Hard,
	}
}

// Service hands out race passages by difficulty
type Service struct {
	random random.Random

	mu       sync.RWMutex
	passages map[model.Difficulty][]string
}

// New creates a new text Service with no passages loaded
func New(rng random.Random) *Service {
	return &Service{
		random:   rng,
		passages: make(map[model.Difficulty][]string),
	}
}

// LoadDefaults installs the built-in passage library
func (s *Service) LoadDefaults() error {
	lib, err := parseLibrary(bytes.NewReader(defaultLibrary))
	if err != nil {
		return fmt.Errorf("parse built-in texts: %w", err)
	}
	return s.LoadPassages(lib.byDifficulty())
}

// LoadFromFile replaces the library with the passages in a YAML file
func (s *Service) LoadFromFile(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	lib, err := parseLibrary(file)
	if err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return s.LoadPassages(lib.byDifficulty())
}

// LoadPassages directly loads passages (useful for testing).
// Blank passages are dropped; the previous library is replaced wholesale.
func (s *Service) LoadPassages(passages map[model.Difficulty][]string) error {
	loaded := make(map[model.Difficulty][]string, len(passages))
	for difficulty, texts := range passages {
		if !difficulty.IsValid() {
			return fmt.Errorf("%w: %q", model.ErrInvalidDifficulty, difficulty)
		}
		for _, t := range texts {
			t = strings.TrimSpace(t)
			if t != "" {
				loaded[difficulty] = append(loaded[difficulty], t)
			}
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.passages = loaded
	return nil
}

// Random returns a passage of the given difficulty.
// Unknown difficulties fall back to medium.
func (s *Service) Random(difficulty model.Difficulty) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !difficulty.IsValid() {
		difficulty = model.DifficultyMedium
	}

	texts := s.passages[difficulty]
	if len(texts) == 0 {
		return "", model.ErrTextsNotLoaded
	}
	return texts[s.random.Intn(len(texts))], nil
}

// Count returns the number of passages for a difficulty
func (s *Service) Count(difficulty model.Difficulty) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.passages[difficulty])
}

func parseLibrary(r io.Reader) (library, error) {
	var lib library
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&lib); err != nil {
		if errors.Is(err, io.EOF) {
			return library{}, nil
		}
		return library{}, err
	}
	return lib, nil
}
