// Package cache keeps recently read document metadata in an expiring LRU.
package cache

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"docintel/internal/metrics"
	"docintel/internal/model"
)

// Documents is an owner-scoped LRU of document records with a TTL.
// Each API instance holds its own cache.
type Documents struct {
	lru     *expirable.LRU[docKey, model.Document]
	metrics *metrics.Pipeline
}

// NewDocuments creates a cache holding at most size records, each for ttl.
func NewDocuments(size int, ttl time.Duration, m *metrics.Pipeline) *Documents {
	if size <= 0 {
		size = 1
	}
	return &Documents{
		lru:     expirable.NewLRU[docKey, model.Document](size, nil, ttl),
		metrics: m,
	}
}

// Get returns a copy of the cached record. Lookups never cross owners.
func (c *Documents) Get(ownerID, id string) (*model.Document, bool) {
	doc, ok := c.lru.Get(docKey{ownerID, id})
	c.metrics.CacheLookup(ok)
	if !ok {
		return nil, false
	}
	return &doc, true
}

func (c *Documents) Set(doc *model.Document) {
	if doc == nil {
		return
	}
	c.lru.Add(docKey{doc.OwnerID, doc.ID}, *doc)
}

// Invalidate drops the record after its extracted fields change.
func (c *Documents) Invalidate(ownerID, id string) {
	c.lru.Remove(docKey{ownerID, id})
}

type docKey struct {
	owner, id string
}
