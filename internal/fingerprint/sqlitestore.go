package fingerprint

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/mdhender/cook/internal/statcache"

	_ "modernc.org/sqlite"
)

// SQLiteStore is the alternate fingerprint backend selected with
// --fingerprint-backend=sqlite (SPEC_FULL.md DOMAIN STACK): a single
// embedded database replaces the per-directory text files, which pays
// off once a tree has enough directories that many small file flushes
// start to dominate build overhead.
type SQLiteStore struct {
	mu    sync.Mutex
	db    *sql.DB
	stats *statcache.Cache

	ingredientsHash map[string]string
}

// NewSQLiteStore opens (creating if necessary) a fingerprint database
// at dbPath.
func NewSQLiteStore(dbPath string, stats *statcache.Cache) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("fingerprint: opening %s: %w", dbPath, err)
	}
	const schema = `
CREATE TABLE IF NOT EXISTS fingerprints (
	path TEXT PRIMARY KEY,
	size INTEGER NOT NULL,
	mtime INTEGER NOT NULL,
	ino INTEGER NOT NULL,
	dev INTEGER NOT NULL,
	hash TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS ingredients_hash (
	target TEXT PRIMARY KEY,
	hash TEXT NOT NULL
);
`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("fingerprint: initializing schema: %w", err)
	}
	return &SQLiteStore{db: db, stats: stats, ingredientsHash: make(map[string]string)}, nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) Search(path string) (Value, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var v Value
	var sec int64
	row := s.db.QueryRow(`SELECT size, mtime, ino, dev, hash FROM fingerprints WHERE path = ?`, path)
	if err := row.Scan(&v.Witness.Size, &sec, &v.Witness.Ino, &v.Witness.Dev, &v.Hash); err != nil {
		return Value{}, false
	}
	v.Witness.MTime = secToTime(sec)

	entry, err := s.stats.Lookup(path)
	if err != nil || entry.State != statcache.Exists || !entry.Witness.Equal(v.Witness) {
		s.db.Exec(`DELETE FROM fingerprints WHERE path = ?`, path)
		return Value{}, false
	}
	return v, true
}

func (s *SQLiteStore) Assign(path string, v Value) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.db.Exec(`
INSERT INTO fingerprints (path, size, mtime, ino, dev, hash) VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(path) DO UPDATE SET size=excluded.size, mtime=excluded.mtime, ino=excluded.ino, dev=excluded.dev, hash=excluded.hash`,
		path, v.Witness.Size, v.Witness.MTime.Unix(), v.Witness.Ino, v.Witness.Dev, v.Hash)
}

func (s *SQLiteStore) Delete(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.db.Exec(`DELETE FROM fingerprints WHERE path = ?`, path)
}

func (s *SQLiteStore) Fingerprint(path string) (string, error) {
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

func (s *SQLiteStore) IngredientsFingerprintDiffers(target, combinedHash string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	var hash string
	row := s.db.QueryRow(`SELECT hash FROM ingredients_hash WHERE target = ?`, target)
	if err := row.Scan(&hash); err != nil {
		return true
	}
	return hash != combinedHash
}

func (s *SQLiteStore) RecordIngredientsHash(target, combinedHash string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.db.Exec(`
INSERT INTO ingredients_hash (target, hash) VALUES (?, ?)
ON CONFLICT(target) DO UPDATE SET hash=excluded.hash`, target, combinedHash)
}

// Sync is a no-op for the sqlite backend: every write already commits
// immediately, so there is no dirty-subdir batch to flush. It still
// satisfies the Store interface for callers that sync unconditionally
// at shutdown.
func (s *SQLiteStore) Sync(force bool) error { return nil }

// Tweak mirrors TextStore.Tweak: re-synchronize any record whose
// on-disk mtime has slipped behind what was stored.
func (s *SQLiteStore) Tweak() {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.db.Query(`SELECT path, mtime FROM fingerprints`)
	if err != nil {
		return
	}
	defer rows.Close()

	type fix struct {
		path string
		w    statcache.Witness
	}
	var fixes []fix
	for rows.Next() {
		var path string
		var sec int64
		if err := rows.Scan(&path, &sec); err != nil {
			continue
		}
		entry, err := s.stats.Lookup(path)
		if err != nil || entry.State != statcache.Exists {
			continue
		}
		if entry.Witness.MTime.Before(secToTime(sec)) {
			fixes = append(fixes, fix{path: path, w: entry.Witness})
		}
	}
	for _, f := range fixes {
		s.db.Exec(`UPDATE fingerprints SET size=?, mtime=?, ino=?, dev=? WHERE path=?`,
			f.w.Size, f.w.MTime.Unix(), f.w.Ino, f.w.Dev, f.path)
	}
}

func secToTime(sec int64) time.Time {
	return time.Unix(sec, 0)
}
