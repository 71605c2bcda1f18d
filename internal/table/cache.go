package table

import (
	"io"
	"sync"

	"github.com/sirupsen/logrus"
)

// Provider loads the tables for an identity.
type Provider interface {
	Load(id ID) (*Tables, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ID) (*Tables, error)

// Load implements Provider.
func (f ProviderFunc) Load(id ID) (*Tables, error) { return f(id) }

// Fixed returns a provider serving t for every identity.
func Fixed(t *Tables) Provider {
	return ProviderFunc(func(ID) (*Tables, error) { return t, nil })
}

// Cache loads each identity at most once and keeps it for its lifetime.
// Concurrent first requests for one identity share a single load; later
// requests only read. Failed loads are not remembered.
type Cache struct {
	provider Provider
	log      logrus.FieldLogger
	entries  sync.Map // ID -> *cacheEntry
}

type cacheEntry struct {
	once   sync.Once
	tables *Tables
	err    error
}

// NewCache wraps p. log may be nil.
func NewCache(p Provider, log logrus.FieldLogger) *Cache {
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}
	return &Cache{provider: p, log: log}
}

// Get returns the tables for id, loading them on first use.
func (c *Cache) Get(id ID) (*Tables, error) {
	id = id.Normalize()
	v, _ := c.entries.LoadOrStore(id, &cacheEntry{})
	e := v.(*cacheEntry)
	e.once.Do(func() {
		e.tables, e.err = c.provider.Load(id)
		if e.err == nil {
			c.log.WithFields(logrus.Fields{
				"tables": id.String(),
				"source": e.tables.Source,
				"b":      e.tables.B.Len(),
				"d":      e.tables.D.Len(),
			}).Debug("loaded tables")
		}
	})
	if e.err != nil {
		c.entries.CompareAndDelete(id, e)
		return nil, e.err
	}
	return e.tables, nil
}

// Len returns the number of identities currently cached.
func (c *Cache) Len() int {
	n := 0
	c.entries.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
