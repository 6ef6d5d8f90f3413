// Package statcache implements cook's in-memory path -> stat memoization
// cache (spec §4.1). It is deliberately dumb: the only policy it embeds
// is "ask the OS once, remember the answer until told otherwise."
package statcache

import (
	"os"
	"sync"
	"syscall"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// State tags the three possible outcomes of a lookup.
type State int

const (
	Unknown State = iota
	Exists
	Missing
)

// Witness is the (size, mtime, ino, dev) tuple that validates a
// fingerprint. Two witnesses match when all four fields are equal, with
// mtime compared at whole-second resolution (the resolution the
// fingerprint stores persist).
type Witness struct {
	Size  int64
	MTime time.Time
	Ino   uint64
	Dev   uint64
}

// Equal reports whether two witnesses describe the same file state.
func (w Witness) Equal(o Witness) bool {
	return w.Size == o.Size && w.MTime.Unix() == o.MTime.Unix() && w.Ino == o.Ino && w.Dev == o.Dev
}

// Entry is the cached state for one path.
type Entry struct {
	State   State
	Witness Witness
}

// Cache memoizes path -> Entry. Entries are invalidated explicitly via
// Clear whenever a recipe body observably writes a path. It is safe for
// concurrent use from one scheduler goroutine plus any reaper
// goroutines it spawns, guarded by an internal mutex.
//
// When constructed with a positive size limit, the cache degrades to a
// bounded LRU instead of an unbounded map, for trees large enough that
// memory becomes a concern (cook's --stat-cache-size flag).
type Cache struct {
	mu   sync.Mutex
	m    map[string]Entry
	lru  *lru.Cache[string, Entry]
	stat func(string) (os.FileInfo, error)

	// resolveArchiveMember resolves an archive-member name (e.g.
	// "lib.a(obj.o)") to the stat info of the member within the
	// archive. It is an external collaborator per spec §4.1; tests
	// substitute it, and the zero value treats every path as a plain
	// file.
	resolveArchiveMember func(path string) (os.FileInfo, bool, error)
}

// New creates an unbounded stat cache.
func New() *Cache {
	return &Cache{m: make(map[string]Entry), stat: os.Lstat}
}

// NewBounded creates a stat cache backed by an LRU of the given size.
func NewBounded(size int) *Cache {
	c, err := lru.New[string, Entry](size)
	if err != nil {
		// size <= 0 is a caller bug; fall back to unbounded rather
		// than panic deep inside the build.
		return New()
	}
	return &Cache{lru: c, stat: os.Lstat}
}

// SetArchiveResolver installs the archive-member resolver.
func (c *Cache) SetArchiveResolver(f func(path string) (os.FileInfo, bool, error)) {
	c.resolveArchiveMember = f
}

func (c *Cache) get(path string) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lru != nil {
		return c.lru.Get(path)
	}
	e, ok := c.m[path]
	return e, ok
}

func (c *Cache) set(path string, e Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lru != nil {
		c.lru.Add(path, e)
		return
	}
	c.m[path] = e
}

// Clear invalidates the cached entry for path. Called whenever a
// recipe body observably writes path.
func (c *Cache) Clear(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lru != nil {
		c.lru.Remove(path)
		return
	}
	delete(c.m, path)
}

// Lookup returns the cached entry for path, performing a real stat on
// first reference.
func (c *Cache) Lookup(path string) (Entry, error) {
	if e, ok := c.get(path); ok && e.State != Unknown {
		return e, nil
	}

	if c.resolveArchiveMember != nil {
		if info, isMember, err := c.resolveArchiveMember(path); isMember {
			if err != nil {
				e := Entry{State: Missing}
				c.set(path, e)
				return e, nil
			}
			e := Entry{State: Exists, Witness: witnessFromInfo(info)}
			c.set(path, e)
			return e, nil
		}
	}

	info, err := c.stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			e := Entry{State: Missing}
			c.set(path, e)
			return e, nil
		}
		return Entry{}, err
	}
	e := Entry{State: Exists, Witness: witnessFromInfo(info)}
	c.set(path, e)
	return e, nil
}

// Exists is a convenience wrapper over Lookup.
func (c *Cache) Exists(path string) bool {
	e, err := c.Lookup(path)
	return err == nil && e.State == Exists
}

// ModTime returns the modification time for path, or the zero time if
// the path does not exist or cannot be statted.
func (c *Cache) ModTime(path string) time.Time {
	e, err := c.Lookup(path)
	if err != nil || e.State != Exists {
		return time.Time{}
	}
	return e.Witness.MTime
}

// Oldest returns the oldest modification time among the members named
// by path. It returns the mtime of the single entry Lookup resolves
// (an archive member through the archive resolver, otherwise the plain
// file); followSymlinks is accepted but not consulted.
func (c *Cache) Oldest(path string, followSymlinks bool) (time.Time, error) {
	e, err := c.Lookup(path)
	if err != nil {
		return time.Time{}, err
	}
	if e.State != Exists {
		return time.Time{}, os.ErrNotExist
	}
	return e.Witness.MTime, nil
}

// Newest mirrors Oldest; cook's default archive resolver has a single
// member per path so the two coincide, but the API keeps them distinct
// for when a real archive resolver is plugged in.
func (c *Cache) Newest(path string, followSymlinks bool) (time.Time, error) {
	return c.Oldest(path, followSymlinks)
}

func witnessFromInfo(info os.FileInfo) Witness {
	w := Witness{Size: info.Size(), MTime: info.ModTime()}
	if st, ok := info.Sys().(*syscall.Stat_t); ok {
		w.Ino = uint64(st.Ino)
		w.Dev = uint64(st.Dev)
	}
	return w
}
