package engine

import (
	"net/url"
	"sync"
	"time"
)

type preference struct {
	engine    string
	expiresAt time.Time
}

// DomainMemory remembers which engine last fetched a host successfully, so
// a host that blocks the plain HTTP engine goes straight to the browser on
// the next request. Entries expire after the TTL.
type DomainMemory struct {
	mu    sync.Mutex
	prefs map[string]preference
	ttl   time.Duration
	now   func() time.Time
}

// NewDomainMemory creates a DomainMemory with the given TTL.
func NewDomainMemory(ttl time.Duration) *DomainMemory {
	return &DomainMemory{
		prefs: make(map[string]preference),
		ttl:   ttl,
		now:   time.Now,
	}
}

// Preferred returns the engine remembered for rawURL's host, or "".
func (m *DomainMemory) Preferred(rawURL string) string {
	host := hostOf(rawURL)
	if host == "" {
		return ""
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.prefs[host]
	if !ok {
		return ""
	}
	if m.now().After(p.expiresAt) {
		delete(m.prefs, host)
		return ""
	}
	return p.engine
}

// Remember records that engineName fetched rawURL. Expired entries are
// pruned on the way.
func (m *DomainMemory) Remember(rawURL, engineName string) {
	host := hostOf(rawURL)
	if host == "" {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	for h, p := range m.prefs {
		if now.After(p.expiresAt) {
			delete(m.prefs, h)
		}
	}
	m.prefs[host] = preference{engine: engineName, expiresAt: now.Add(m.ttl)}
}

// Forget drops the preference for rawURL's host.
func (m *DomainMemory) Forget(rawURL string) {
	host := hostOf(rawURL)
	m.mu.Lock()
	delete(m.prefs, host)
	m.mu.Unlock()
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}
