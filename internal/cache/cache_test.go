package cache

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docintel/internal/metrics"
	"docintel/internal/model"
)

func TestDocuments_GetSet(t *testing.T) {
	c := NewDocuments(10, time.Minute, nil)

	_, ok := c.Get("user-1", "d1")
	assert.False(t, ok)

	c.Set(&model.Document{ID: "d1", OwnerID: "user-1", OriginalName: "scan.pdf"})

	got, ok := c.Get("user-1", "d1")
	require.True(t, ok)
	assert.Equal(t, "scan.pdf", got.OriginalName)

	_, ok = c.Get("user-2", "d1")
	assert.False(t, ok, "other owners never see the record")
}

func TestDocuments_SlashInIDsDoesNotCollide(t *testing.T) {
	c := NewDocuments(10, time.Minute, nil)
	c.Set(&model.Document{ID: "c/d", OwnerID: "a/b", OriginalName: "first"})
	c.Set(&model.Document{ID: "d", OwnerID: "a/b/c", OriginalName: "second"})

	got, ok := c.Get("a/b", "c/d")
	require.True(t, ok)
	assert.Equal(t, "first", got.OriginalName)

	got, ok = c.Get("a/b/c", "d")
	require.True(t, ok)
	assert.Equal(t, "second", got.OriginalName)
}

func TestDocuments_ReturnsCopies(t *testing.T) {
	c := NewDocuments(10, time.Minute, nil)
	c.Set(&model.Document{ID: "d1", OwnerID: "u", OriginalName: "a"})

	got, _ := c.Get("u", "d1")
	got.OriginalName = "mutated"

	again, _ := c.Get("u", "d1")
	assert.Equal(t, "a", again.OriginalName)
}

func TestDocuments_Invalidate(t *testing.T) {
	c := NewDocuments(10, time.Minute, nil)
	c.Set(&model.Document{ID: "d1", OwnerID: "u"})

	c.Invalidate("u", "d1")

	_, ok := c.Get("u", "d1")
	assert.False(t, ok)
}

func TestDocuments_TTL(t *testing.T) {
	c := NewDocuments(10, 50*time.Millisecond, nil)
	c.Set(&model.Document{ID: "d1", OwnerID: "u"})

	time.Sleep(120 * time.Millisecond)

	_, ok := c.Get("u", "d1")
	assert.False(t, ok)
}

func TestDocuments_Eviction(t *testing.T) {
	c := NewDocuments(2, time.Minute, nil)
	c.Set(&model.Document{ID: "a", OwnerID: "u"})
	c.Set(&model.Document{ID: "b", OwnerID: "u"})
	c.Set(&model.Document{ID: "c", OwnerID: "u"})

	_, ok := c.Get("u", "a")
	assert.False(t, ok)
	_, ok = c.Get("u", "c")
	assert.True(t, ok)
}

func TestDocuments_RecordsLookups(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := metrics.NewPipeline(reg)
	require.NoError(t, err)

	c := NewDocuments(10, time.Minute, m)
	c.Get("u", "missing")
	c.Set(&model.Document{ID: "d1", OwnerID: "u"})
	c.Get("u", "d1")

	mfs, err := reg.Gather()
	require.NoError(t, err)
	var total float64
	for _, mf := range mfs {
		if mf.GetName() == "docintel_cache_lookups_total" {
			for _, metric := range mf.GetMetric() {
				total += metric.GetCounter().GetValue()
			}
		}
	}
	assert.Equal(t, 2.0, total)
}
