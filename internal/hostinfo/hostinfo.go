// Package hostinfo caches metadata about the foreground application.
package hostinfo

import (
	"sync"

	"github.com/rs/zerolog"
)

// Metadata describes the running application.
type Metadata struct {
	PID          uint64 `json:"pid"`
	MainBase     uint64 `json:"main_nso_base"`
	HeapBase     uint64 `json:"heap_base"`
	TitleID      uint64 `json:"title_id"`
	TitleVersion uint64 `json:"title_version"`
	BuildID      uint8  `json:"build_id"`
}

// Resolver queries the platform process services.
type Resolver interface {
	ApplicationPID() (uint64, error)
	Describe(pid uint64) (Metadata, error)
}

// Cache holds the metadata of the last seen application and reloads it
// whenever the application pid changes.
type Cache struct {
	res Resolver
	log zerolog.Logger

	mu   sync.Mutex
	meta Metadata
}

// NewCache returns an empty cache over res.
func NewCache(res Resolver, log zerolog.Logger) *Cache {
	return &Cache{res: res, log: log}
}

// Get returns the cached metadata.
func (c *Cache) Get() Metadata {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.meta
}

// Refresh reloads metadata if the foreground pid differs from the cached
// one. A pid lookup failure leaves the cache untouched.
func (c *Cache) Refresh() Metadata {
	pid, err := c.res.ApplicationPID()
	if err != nil {
		c.log.Debug().Err(err).Msg("application pid")
		return c.Get()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if pid == c.meta.PID {
		return c.meta
	}
	c.loadLocked(pid)
	return c.meta
}

// Reload reloads metadata for the current application unconditionally.
func (c *Cache) Reload() Metadata {
	pid, err := c.res.ApplicationPID()
	if err != nil {
		c.log.Debug().Err(err).Msg("application pid")
		pid = 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loadLocked(pid)
	return c.meta
}

func (c *Cache) loadLocked(pid uint64) {
	meta, err := c.res.Describe(pid)
	if err != nil {
		c.log.Warn().Err(err).Uint64("pid", pid).Msg("describe application")
		c.meta = Metadata{PID: pid}
		return
	}
	meta.PID = pid
	c.meta = meta
	c.log.Debug().
		Uint64("pid", pid).
		Str("title_id", hex16(meta.TitleID)).
		Uint64("main", meta.MainBase).
		Msg("application metadata loaded")
}

func hex16(v uint64) string {
	const digits = "0123456789ABCDEF"
	var b [16]byte
	for i := 15; i >= 0; i-- {
		b[i] = digits[v&0xF]
		v >>= 4
	}
	return string(b[:])
}
