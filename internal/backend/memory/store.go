// Package memory implements backend.Backend over annotation dumps held in memory,
// one JSONL file per project. It powers offline sessions and the test suites.
package memory

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"sort"
	"strings"
	"sync"

	"cosyq/internal/backend"
	"cosyq/internal/query"

	"github.com/natefinch/atomic"
	"github.com/rs/zerolog/log"
)

// Document is one annotation record.
type Document map[string]any

// Store provides thread-safe storage of documents partitioned by project.
type Store struct {
	mu       sync.RWMutex
	projects map[string][]Document

	reMu    sync.Mutex
	regexes map[string]*regexp.Regexp
}

// NewStore creates a new empty Store.
func NewStore() *Store {
	return &Store{
		projects: make(map[string][]Document),
		regexes:  make(map[string]*regexp.Regexp),
	}
}

// Append adds documents to a project. Documents carrying an "_id" already present in
// the project are skipped.
func (s *Store) Append(project string, docs []Document) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.projects[project]

	existing := make(map[string]bool)
	for _, d := range current {
		if id, ok := d["_id"]; ok {
			existing[fmt.Sprint(id)] = true
		}
	}

	for _, d := range docs {
		if id, ok := d["_id"]; ok {
			key := fmt.Sprint(id)
			if existing[key] {
				continue
			}
			existing[key] = true
		}
		current = append(current, d)
	}

	// An empty project still exists.
	if current == nil {
		current = []Document{}
	}
	s.projects[project] = current
}

// Load reads documents from <dir>/<project>.jsonl.
func (s *Store) Load(dir string, project string) error {
	path := filepath.Join(dir, project+".jsonl")
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open dump: %w", err)
	}
	defer file.Close()

	var docs []Document
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		dec := json.NewDecoder(bytes.NewReader(line))
		dec.UseNumber()
		var d Document
		if err := dec.Decode(&d); err != nil {
			log.Warn().Err(err).Str("project", project).Msg("Skipping invalid JSON line in dump")
			continue
		}
		docs = append(docs, d)
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading dump: %w", err)
	}

	log.Info().Str("project", project).Int("count", len(docs)).Msg("Loaded documents from dump")
	s.Append(project, docs)
	return nil
}

// LoadDir loads every *.jsonl file in dir as a project named after the file.
func (s *Store) LoadDir(dir string) error {
	matches, err := filepath.Glob(filepath.Join(dir, "*.jsonl"))
	if err != nil {
		return err
	}
	for _, m := range matches {
		project := strings.TrimSuffix(filepath.Base(m), ".jsonl")
		if err := s.Load(dir, project); err != nil {
			return err
		}
	}
	return nil
}

// Save persists the documents of a project to <dir>/<project>.jsonl atomically.
func (s *Store) Save(dir string, project string) error {
	s.mu.RLock()
	docs, ok := s.projects[project]
	s.mu.RUnlock()

	if !ok {
		return fmt.Errorf("%w: %s", backend.ErrUnknownProject, project)
	}

	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	for _, d := range docs {
		if err := encoder.Encode(d); err != nil {
			return fmt.Errorf("failed to encode document: %w", err)
		}
	}

	path := filepath.Join(dir, project+".jsonl")
	if err := atomic.WriteFile(path, &buf); err != nil {
		return fmt.Errorf("failed to write dump: %w", err)
	}

	log.Info().Str("project", project).Int("count", len(docs)).Msg("Documents saved to dump")
	return nil
}

// ProjectNames returns the stored project names, sorted.
func (s *Store) ProjectNames(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.projects))
	for name := range s.projects {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Count returns the number of documents in project matching q.
// An unknown project holds no documents.
func (s *Store) Count(ctx context.Context, project string, q query.QuerySpec) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.RLock()
	docs := s.projects[project]
	s.mu.RUnlock()

	var n int64
	for _, d := range docs {
		ok, err := s.matches(d, q)
		if err != nil {
			return 0, err
		}
		if ok {
			n++
		}
	}
	return n, nil
}

// GroupCount counts matching documents per distinct tuple of keys, in order of
// first appearance.
func (s *Store) GroupCount(ctx context.Context, project string, q query.QuerySpec, keys []string) ([]backend.GroupRow, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	docs := s.projects[project]
	s.mu.RUnlock()

	index := make(map[string]int)
	var rows []backend.GroupRow
	for _, d := range docs {
		ok, err := s.matches(d, q)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}

		values := make([]string, len(keys))
		for i, k := range keys {
			if v, present := d.Field(k); present && v != nil {
				values[i] = fmt.Sprint(v)
			}
		}
		id := strings.Join(values, "\x00")
		if i, seen := index[id]; seen {
			rows[i].Count++
			continue
		}
		index[id] = len(rows)
		rows = append(rows, backend.GroupRow{Values: values, Count: 1})
	}
	return rows, nil
}

// Close is a no-op for the in-memory store.
func (s *Store) Close(ctx context.Context) error {
	return nil
}

// Field resolves a dotted path such as "ann.key" through nested objects.
func (d Document) Field(path string) (any, bool) {
	var cur any = map[string]any(d)
	for _, part := range strings.Split(path, ".") {
		var m map[string]any
		switch v := cur.(type) {
		case map[string]any:
			m = v
		case Document:
			m = v
		default:
			return nil, false
		}
		next, ok := m[part]
		if !ok {
			return nil, false
		}
		cur = next
	}
	return cur, true
}

func (s *Store) matches(d Document, q query.QuerySpec) (bool, error) {
	for _, c := range q {
		raw, present := d.Field(c.Key)
		if !present || raw == nil {
			return false, nil
		}
		v := fmt.Sprint(raw)

		switch c.Rule.Kind {
		case query.Literal:
			if v != c.Rule.Value {
				return false, nil
			}
		case query.OneOf:
			if !slices.Contains(c.Rule.Values, v) {
				return false, nil
			}
		case query.Regex:
			re, err := s.compile(c.Rule.Value)
			if err != nil {
				return false, err
			}
			if !re.MatchString(v) {
				return false, nil
			}
		}
	}
	return true, nil
}

func (s *Store) compile(pattern string) (*regexp.Regexp, error) {
	s.reMu.Lock()
	defer s.reMu.Unlock()

	if re, ok := s.regexes[pattern]; ok {
		return re, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid regex %q: %w", pattern, err)
	}
	s.regexes[pattern] = re
	return re, nil
}
