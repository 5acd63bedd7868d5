// Package docstore keeps the reference document list in a JSON file.
//
// The file holds a plain JSON array of models.Document. Writes are
// read-modify-write under a mutex and land through a temp file rename, so a
// reader never observes a half-written list.
package docstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"telecalc/internal/clock"
	"telecalc/internal/logger"
	"telecalc/pkg/models"
)

var (
	// ErrNotFound is returned when no document has the requested ID.
	ErrNotFound = errors.New("document not found")

	// ErrInvalidDocument is wrapped by every document validation error.
	ErrInvalidDocument = errors.New("invalid document")
)

// Observer is told about every completed write ("seed", "upsert", "delete").
type Observer func(op string, err error)

// Option configures a Store.
type Option func(*Store)

// WithObserver registers fn to be called after each write.
func WithObserver(fn Observer) Option {
	return func(s *Store) { s.observe = fn }
}

// Store is a file-backed document list. It is safe for concurrent use.
type Store struct {
	path    string
	clock   clock.Clock
	observe Observer
	log     zerolog.Logger

	mu   sync.RWMutex
	docs []models.Document
}

// Open loads the list at path. A missing file is created from seed; an
// existing file gains the seed entries whose IDs it does not have yet.
// Entries already in the file are never overwritten by the seed.
func Open(path string, seed []models.Document, clk clock.Clock, opts ...Option) (*Store, error) {
	const op = "docstore.Open"

	if clk == nil {
		clk = clock.Real{}
	}
	s := &Store{
		path:  path,
		clock: clk,
		log:   logger.WithComponent("docstore"),
	}
	for _, opt := range opts {
		opt(s)
	}

	seed = s.prepareSeed(seed)

	s.mu.Lock()
	defer s.mu.Unlock()

	docs, err := s.read()
	switch {
	case errors.Is(err, fs.ErrNotExist):
		s.docs = seed
		err = s.write(seed)
		s.notify("seed", err)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		s.log.Info().Str("path", path).Int("documents", len(seed)).Msg("Created document store from seed")
		return s, nil
	case err != nil:
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	missing := absent(docs, seed)
	s.docs = docs
	if len(missing) > 0 {
		merged := Merge(docs, missing)
		err := s.write(merged)
		s.notify("seed", err)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		s.docs = merged
	}

	s.log.Info().
		Str("path", path).
		Int("documents", len(s.docs)).
		Int("seeded", len(missing)).
		Msg("Opened document store")
	return s, nil
}

// Merge returns existing with incoming upserted by ID: a document whose ID is
// already present replaces it in place, the rest are appended in order.
// Neither argument is modified.
func Merge(existing, incoming []models.Document) []models.Document {
	out := make([]models.Document, len(existing), len(existing)+len(incoming))
	copy(out, existing)

	index := make(map[string]int, len(out))
	for i, d := range out {
		index[d.ID] = i
	}
	for _, d := range incoming {
		if i, ok := index[d.ID]; ok {
			out[i] = d
			continue
		}
		index[d.ID] = len(out)
		out = append(out, d)
	}
	return out
}

func absent(existing, seed []models.Document) []models.Document {
	have := make(map[string]bool, len(existing))
	for _, d := range existing {
		have[d.ID] = true
	}
	var out []models.Document
	for _, d := range seed {
		if !have[d.ID] {
			out = append(out, d)
		}
	}
	return out
}

// prepareSeed gives seed entries without an ID a stable one derived from the
// URL, so the same seed merges idempotently across restarts.
func (s *Store) prepareSeed(seed []models.Document) []models.Document {
	now := s.clock.Now().UTC()
	out := make([]models.Document, 0, len(seed))
	for _, d := range seed {
		d = normalize(d)
		if d.ID == "" {
			d.ID = uuid.NewSHA1(uuid.NameSpaceURL, []byte(d.URL)).String()
		}
		if d.UpdatedAt.IsZero() {
			d.UpdatedAt = now
		}
		out = append(out, d)
	}
	return out
}

// List returns every document, pinned ones first, otherwise in file order.
func (s *Store) List() []models.Document {
	s.mu.RLock()
	out := make([]models.Document, len(s.docs))
	copy(out, s.docs)
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].Pinned && !out[j].Pinned })
	return out
}

// Get returns the document with the given ID.
func (s *Store) Get(id string) (models.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, d := range s.docs {
		if d.ID == id {
			return d, nil
		}
	}
	return models.Document{}, ErrNotFound
}

// Upsert validates docs, assigns IDs to new ones, stamps UpdatedAt and writes
// them. It returns the stored versions in argument order.
func (s *Store) Upsert(docs ...models.Document) ([]models.Document, error) {
	const op = "docstore.Upsert"

	now := s.clock.Now().UTC()
	prepared := make([]models.Document, 0, len(docs))
	for i, d := range docs {
		d = normalize(d)
		if err := validate(d); err != nil {
			return nil, fmt.Errorf("%s: document %d: %w", op, i, err)
		}
		if d.ID == "" {
			d.ID = uuid.NewString()
		}
		d.UpdatedAt = now
		prepared = append(prepared, d)
	}

	err := s.modify(func(current []models.Document) ([]models.Document, error) {
		return Merge(current, prepared), nil
	})
	s.notify("upsert", err)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.log.Debug().Int("documents", len(prepared)).Msg("Upserted documents")
	return prepared, nil
}

// Delete removes the document with the given ID.
func (s *Store) Delete(id string) error {
	const op = "docstore.Delete"

	err := s.modify(func(current []models.Document) ([]models.Document, error) {
		out := make([]models.Document, 0, len(current))
		for _, d := range current {
			if d.ID != id {
				out = append(out, d)
			}
		}
		if len(out) == len(current) {
			return nil, ErrNotFound
		}
		return out, nil
	})
	if errors.Is(err, ErrNotFound) {
		return err
	}
	s.notify("delete", err)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.log.Debug().Str("id", id).Msg("Deleted document")
	return nil
}

// Reload replaces the in-memory list with the file contents. A file that does
// not parse leaves the list unchanged.
func (s *Store) Reload() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	docs, err := s.read()
	if err != nil {
		return fmt.Errorf("docstore.Reload: %w", err)
	}
	s.docs = docs
	return nil
}

// modify runs fn on the current file contents and writes the result.
func (s *Store) modify(fn func([]models.Document) ([]models.Document, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.read()
	if errors.Is(err, fs.ErrNotExist) {
		current, err = s.docs, nil
	}
	if err != nil {
		return err
	}

	next, err := fn(current)
	if err != nil {
		return err
	}
	if err := s.write(next); err != nil {
		return err
	}
	s.docs = next
	return nil
}

func (s *Store) read() ([]models.Document, error) {
	b, err := os.ReadFile(s.path)
	if err != nil {
		return nil, err
	}
	if len(strings.TrimSpace(string(b))) == 0 {
		return []models.Document{}, nil
	}

	var docs []models.Document
	if err := json.Unmarshal(b, &docs); err != nil {
		return nil, fmt.Errorf("parse %s: %w", s.path, err)
	}
	return docs, nil
}

func (s *Store) write(docs []models.Document) error {
	if docs == nil {
		docs = []models.Document{}
	}
	b, err := json.MarshalIndent(docs, "", "  ")
	if err != nil {
		return fmt.Errorf("encode documents: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+"-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(append(b, '\n')); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace %s: %w", s.path, err)
	}
	return nil
}

func (s *Store) notify(op string, err error) {
	if s.observe != nil {
		s.observe(op, err)
	}
}

func normalize(d models.Document) models.Document {
	d.ID = strings.TrimSpace(d.ID)
	d.Category = strings.TrimSpace(d.Category)
	d.TitleAR = strings.TrimSpace(d.TitleAR)
	d.TitleEN = strings.TrimSpace(d.TitleEN)
	d.URL = strings.TrimSpace(d.URL)
	return d
}

func validate(d models.Document) error {
	if d.TitleAR == "" && d.TitleEN == "" {
		return fmt.Errorf("%w: a title in Arabic or English is required", ErrInvalidDocument)
	}
	u, err := url.Parse(d.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: url must be an absolute http(s) link: %q", ErrInvalidDocument, d.URL)
	}
	return nil
}
