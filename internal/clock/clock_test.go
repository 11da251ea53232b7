package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMock_SetAndAdd(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewMock(start)
	assert.Equal(t, start, c.Now())

	c.Add(36 * time.Hour)
	assert.Equal(t, start.Add(36*time.Hour), c.Now())

	later := time.Date(2025, 6, 1, 12, 0, 0, 0, time.FixedZone("CEST", 2*3600))
	c.Set(later)
	assert.Equal(t, time.UTC, c.Now().Location())
	assert.True(t, later.Equal(c.Now()))
}

func TestReal_IsUTC(t *testing.T) {
	assert.Equal(t, time.UTC, Real{}.Now().Location())
}
