// Package fingerprint implements cook's persistent per-directory
// content-fingerprint cache (spec §4.2): it lets the engine tell that
// an ingredient's content is unchanged even though its modification
// time moved forward, so dependents don't rebuild needlessly.
package fingerprint

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/mdhender/cook/internal/statcache"
)

// syncInterval is the maximum time a dirty subdir may go unflushed
// (spec §3 invariant 5).
const syncInterval = 60 * time.Second

// Store is the interface both the default text-file backend and the
// sqlite backend (SPEC_FULL.md DOMAIN STACK) implement.
type Store interface {
	Search(path string) (Value, bool)
	Assign(path string, v Value)
	Delete(path string)
	Fingerprint(path string) (string, error)
	IngredientsFingerprintDiffers(target, combinedHash string) bool
	RecordIngredientsHash(target, combinedHash string)
	Sync(force bool) error
	Tweak()
}

// TextStore is the default backend: one text file per directory, named
// ".<progname>.fp", falling back to a redirected shared cache area
// under buildRoot when the directory is read-only.
type TextStore struct {
	mu        sync.Mutex
	progname  string
	buildRoot string
	stats     *statcache.Cache
	subdirs   map[string]*subdir
	lastSync  time.Time

	// ingredientsHash remembers, per target, the combined hash of its
	// ingredient set as of the last successful build.
	ingredientsHash map[string]string
}

// NewTextStore creates a fingerprint store rooted at buildRoot (used
// only for the read-only redirection area), naming its cache files
// ".<progname>.fp".
func NewTextStore(progname, buildRoot string, stats *statcache.Cache) *TextStore {
	return &TextStore{
		progname:        progname,
		buildRoot:       buildRoot,
		stats:           stats,
		subdirs:         make(map[string]*subdir),
		ingredientsHash: make(map[string]string),
	}
}

func (s *TextStore) subdirFor(path string) *subdir {
	dir := filepath.Dir(path)
	sd, ok := s.subdirs[dir]
	if !ok {
		sd = newSubdir(dir)
		s.subdirs[dir] = sd
	}
	sd.ensureLoaded(s.progname, s.buildRoot)
	return sd
}

// Search returns the cached fingerprint if its stored witness equals
// the current stat witness of path; otherwise it returns false and
// marks the entry stale by deleting it.
func (s *TextStore) Search(path string) (Value, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sd := s.subdirFor(path)
	name := filepath.Base(path)
	v, ok := sd.records[name]
	if !ok {
		return Value{}, false
	}

	entry, err := s.stats.Lookup(path)
	if err != nil || entry.State != statcache.Exists || !entry.Witness.Equal(v.Witness) {
		delete(sd.records, name)
		sd.markDirty()
		return Value{}, false
	}
	return v, true
}

// Assign inserts or updates the fingerprint for path.
func (s *TextStore) Assign(path string, v Value) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sd := s.subdirFor(path)
	sd.records[filepath.Base(path)] = v
	sd.markDirty()
}

// Delete removes the fingerprint for path.
func (s *TextStore) Delete(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sd := s.subdirFor(path)
	if _, ok := sd.records[filepath.Base(path)]; ok {
		delete(sd.records, filepath.Base(path))
		sd.markDirty()
	}
}

// Fingerprint computes the content hash from disk, stores it under the
// current stat witness, and returns the hash.
func (s *TextStore) Fingerprint(path string) (string, error) {
	hash, err := hashFile(path)
	if err != nil {
		return "", err
	}

	entry, err := s.stats.Lookup(path)
	if err != nil {
		return "", err
	}

	s.Assign(path, Value{Witness: entry.Witness, Hash: hash})
	return hash, nil
}

// IngredientsFingerprintDiffers compares a target's remembered
// ingredients-set hash (from its last successful build) against
// combinedHash, the current one.
func (s *TextStore) IngredientsFingerprintDiffers(target, combinedHash string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.ingredientsHash[target]
	if !ok {
		return true
	}
	return old != combinedHash
}

// RecordIngredientsHash stores the ingredient-set digest for target
// after a successful build, so the next run's
// IngredientsFingerprintDiffers call has something to compare against.
func (s *TextStore) RecordIngredientsHash(target, combinedHash string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ingredientsHash[target] = combinedHash
}

// HashIngredients combines a sorted ingredient-name list's fingerprints
// into one digest, used by callers to build the combinedHash argument
// above.
func HashIngredients(hashes []string) string {
	var b []byte
	for _, h := range hashes {
		b = append(b, h...)
		b = append(b, 0)
	}
	return hashBytes(b)
}

// Sync flushes dirty subdirs if at least syncInterval has elapsed since
// the last flush, or unconditionally when force is true (shutdown,
// interrupt).
func (s *TextStore) Sync(force bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !force && time.Since(s.lastSync) < syncInterval {
		return nil
	}

	var firstErr error
	for _, sd := range s.subdirs {
		if err := sd.flush(s.progname, s.buildRoot, force); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	s.lastSync = time.Now()
	return firstErr
}

// Tweak advances stored mtimes after any action that may have altered
// them, so the next run sees a coherent ordering (spec §4.2). In
// practice this means re-reading the current witness for every record
// whose underlying file's mtime moved backward relative to what was
// stored, which can happen after archive extraction or clock skew.
func (s *TextStore) Tweak() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for dir, sd := range s.subdirs {
		for name, v := range sd.records {
			path := filepath.Join(dir, name)
			entry, err := s.stats.Lookup(path)
			if err != nil || entry.State != statcache.Exists {
				continue
			}
			if entry.Witness.MTime.Before(v.Witness.MTime) {
				v.Witness = entry.Witness
				sd.records[name] = v
				sd.markDirty()
			}
		}
	}
}
