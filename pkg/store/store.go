// Package store is in-memory, mutex-guarded persistence for compiled TM
// exports and run-history records, keyed by name. Adapted from
// smasonuk-sicpu's pkg/vfs.VirtualDisk: a sync.RWMutex-guarded map with
// dirty-file tracking and host-directory Load/Persist, repurposed here
// from raw file bytes to typed compiled-program and run-history records.
package store

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// validName mirrors pkg/vfs's filename-validation shape, widened from
// 8.3-style filenames to the longer, underscore/dash-friendly names a
// compiled program is given on the command line (tmc compile --save <name>).
var validName = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`)

var (
	ErrInvalidName = fmt.Errorf("store: invalid name")
	ErrNotFound    = fmt.Errorf("store: not found")
)

// CompiledEntry is one named, exported TM: the YAML document pkg/export
// produced, plus bookkeeping timestamps.
type CompiledEntry struct {
	YAML     []byte
	Created  time.Time
	Modified time.Time
}

// RunRecord is one recorded simulator run against a named compiled
// program, kept for `tmc run --save` / history inspection.
type RunRecord struct {
	Input     string    `yaml:"input"`
	Accepted  bool      `yaml:"accepted"`
	Steps     int       `yaml:"steps"`
	HitLimit  bool      `yaml:"hit_limit"`
	FinalTape string    `yaml:"final_tape"`
	Recorded  time.Time `yaml:"recorded"`
}

// Store holds every compiled program and its run history for one CLI
// session. Safe for concurrent use, matching VirtualDisk's contract.
type Store struct {
	Mu         sync.RWMutex
	Compiled   map[string]*CompiledEntry
	Runs       map[string][]*RunRecord
	dirtyNames map[string]bool
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		Compiled:   make(map[string]*CompiledEntry),
		Runs:       make(map[string][]*RunRecord),
		dirtyNames: make(map[string]bool),
	}
}

// SaveCompiled records (or overwrites) a compiled program's exported YAML
// under name.
func (s *Store) SaveCompiled(name string, yamlDoc []byte) error {
	if !validName.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}

	s.Mu.Lock()
	defer s.Mu.Unlock()

	data := make([]byte, len(yamlDoc))
	copy(data, yamlDoc)

	now := time.Now()
	entry, ok := s.Compiled[name]
	if !ok {
		entry = &CompiledEntry{Created: now}
		s.Compiled[name] = entry
	}
	entry.YAML = data
	entry.Modified = now
	s.dirtyNames[name] = true
	return nil
}

// LoadCompiled returns the exported YAML previously saved under name.
func (s *Store) LoadCompiled(name string) ([]byte, error) {
	if !validName.MatchString(name) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}

	s.Mu.RLock()
	defer s.Mu.RUnlock()

	entry, ok := s.Compiled[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return entry.YAML, nil
}

// ListCompiled returns every stored program name, sorted.
func (s *Store) ListCompiled() []string {
	s.Mu.RLock()
	defer s.Mu.RUnlock()

	out := make([]string, 0, len(s.Compiled))
	for name := range s.Compiled {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// RecordRun appends rec to name's run history. The compiled program need
// not exist in this Store (a run can be recorded against a program
// compiled in a previous process and loaded back via LoadFrom), so this
// does not check s.Compiled.
func (s *Store) RecordRun(name string, rec RunRecord) error {
	if !validName.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}

	s.Mu.Lock()
	defer s.Mu.Unlock()

	s.Runs[name] = append(s.Runs[name], &rec)
	s.dirtyNames[historyKey(name)] = true
	return nil
}

// RunHistory returns every recorded run for name, oldest first.
func (s *Store) RunHistory(name string) ([]*RunRecord, error) {
	if !validName.MatchString(name) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}

	s.Mu.RLock()
	defer s.Mu.RUnlock()

	return s.Runs[name], nil
}

func historyKey(name string) string { return name + ".history" }

const (
	compiledExt = ".tm.yaml"
	historyExt  = ".history.yaml"
)

// PersistTo writes every dirty compiled program and run history to dir,
// one file per name, mirroring VirtualDisk.PersistTo's snapshot-then-
// write pattern (the in-memory lock is held only long enough to copy
// what needs writing, not across the I/O itself).
func (s *Store) PersistTo(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	s.Mu.Lock()
	compiledSnapshot := make(map[string][]byte)
	historySnapshot := make(map[string][]*RunRecord)
	for key := range s.dirtyNames {
		if name, ok := cutHistoryKey(key); ok {
			historySnapshot[name] = append([]*RunRecord(nil), s.Runs[name]...)
			continue
		}
		if entry, ok := s.Compiled[key]; ok {
			compiledSnapshot[key] = entry.YAML
		}
	}
	s.dirtyNames = make(map[string]bool)
	s.Mu.Unlock()

	var firstErr error
	record := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	for name, data := range compiledSnapshot {
		record(os.WriteFile(filepath.Join(dir, name+compiledExt), data, 0o644))
	}
	for name, runs := range historySnapshot {
		data, err := yaml.Marshal(runs)
		if err != nil {
			record(err)
			continue
		}
		record(os.WriteFile(filepath.Join(dir, name+historyExt), data, 0o644))
	}

	return firstErr
}

func cutHistoryKey(key string) (string, bool) {
	const suffix = ".history"
	if len(key) > len(suffix) && key[len(key)-len(suffix):] == suffix {
		return key[:len(key)-len(suffix)], true
	}
	return "", false
}

// LoadFrom populates the Store from a directory previously written by
// PersistTo. Missing directories are treated as first-run, not an error.
func (s *Store) LoadFrom(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	s.Mu.Lock()
	defer s.Mu.Unlock()

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		full := filepath.Join(dir, entry.Name())
		switch {
		case len(entry.Name()) > len(compiledExt) && entry.Name()[len(entry.Name())-len(compiledExt):] == compiledExt:
			name := entry.Name()[:len(entry.Name())-len(compiledExt)]
			data, err := os.ReadFile(full)
			if err != nil {
				continue
			}
			info, statErr := os.Stat(full)
			ts := time.Now()
			if statErr == nil {
				ts = info.ModTime()
			}
			s.Compiled[name] = &CompiledEntry{YAML: data, Created: ts, Modified: ts}
		case len(entry.Name()) > len(historyExt) && entry.Name()[len(entry.Name())-len(historyExt):] == historyExt:
			name := entry.Name()[:len(entry.Name())-len(historyExt)]
			data, err := os.ReadFile(full)
			if err != nil {
				continue
			}
			var runs []*RunRecord
			if err := yaml.Unmarshal(data, &runs); err != nil {
				continue
			}
			s.Runs[name] = runs
		}
	}

	return nil
}
