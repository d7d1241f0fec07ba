package cache

import (
	"sync"
	"time"
)

// DefaultVersionTTL bounds how long a process trusts its view of a namespace version.
const DefaultVersionTTL = 5 * time.Second

// VersionMemo is an explicit in-process TTL cache of namespace versions.
// Another instance's bump becomes visible here once the entry expires.
type VersionMemo struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]memoEntry
}

type memoEntry struct {
	version int64
	expires time.Time
}

// NewVersionMemo creates a memo. ttl <= 0 uses DefaultVersionTTL.
func NewVersionMemo(ttl time.Duration) *VersionMemo {
	if ttl <= 0 {
		ttl = DefaultVersionTTL
	}
	return &VersionMemo{ttl: ttl, now: time.Now, entries: make(map[string]memoEntry)}
}

// Get returns the memoised version if it has not expired.
func (m *VersionMemo) Get(namespace string) (int64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[namespace]
	if !ok || !m.now().Before(e.expires) {
		return 0, false
	}
	return e.version, true
}

// Set stores version for namespace.
func (m *VersionMemo) Set(namespace string, version int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[namespace] = memoEntry{version: version, expires: m.now().Add(m.ttl)}
}

// Forget drops the memoised version.
func (m *VersionMemo) Forget(namespace string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, namespace)
}
