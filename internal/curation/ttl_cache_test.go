package curation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTTLCache(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := newTTLCache[string](time.Minute, func() time.Time { return now })

	_, ok := c.get()
	assert.False(t, ok)

	c.set("curator")
	v, ok := c.get()
	assert.True(t, ok)
	assert.Equal(t, "curator", v)

	now = now.Add(time.Minute)
	_, ok = c.get()
	assert.False(t, ok, "entries expire at exactly ttl")

	c.set("again")
	c.invalidate()
	_, ok = c.get()
	assert.False(t, ok)

	disabled := newTTLCache[string](-1, func() time.Time { return now })
	disabled.set("x")
	_, ok = disabled.get()
	assert.False(t, ok)
}
