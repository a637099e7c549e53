package data

import (
	"sync"
	"time"

	"github.com/swapboard/swapboard/src/types"
	"gorm.io/gorm"
)

// Settings is a read-through cache over the settings table. Entries are
// held for at most TTL before the next Get reloads them, and Invalidate
// forces a reload so moderator tooling can push changes without a restart.
type Settings struct {
	db  *gorm.DB
	ttl time.Duration

	mu       sync.RWMutex
	values   map[string]string
	loadedAt time.Time

	now func() time.Time
}

// NewSettings creates the cache. A zero TTL defaults to one minute.
func NewSettings(db *gorm.DB, ttl time.Duration) *Settings {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &Settings{db: db, ttl: ttl, now: time.Now}
}

// Get retrieves a setting value, reloading the table when the cache is
// stale. A missing key returns the empty string.
func (s *Settings) Get(name string) string {
	s.mu.RLock()
	fresh := s.values != nil && s.now().Sub(s.loadedAt) < s.ttl
	val := s.values[name]
	s.mu.RUnlock()

	if fresh {
		return val
	}
	if err := s.Reload(); err != nil {
		// Serve the stale value rather than failing the caller.
		return val
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.values[name]
}

// Reload replaces the cache contents from the database.
func (s *Settings) Reload() error {
	var settings []types.Setting
	if err := s.db.Find(&settings).Error; err != nil {
		return err
	}

	values := make(map[string]string, len(settings))
	for _, st := range settings {
		values[st.Name] = st.Value
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.values = values
	s.loadedAt = s.now()
	return nil
}

// Invalidate drops the cache so the next Get reloads from the database.
func (s *Settings) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values = nil
	s.loadedAt = time.Time{}
}
