package spotify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoffDoubles(t *testing.T) {
	b := NewBackoff(time.Second, 4)

	var delays []time.Duration
	for {
		delay, next, ok := b.Next()
		if !ok {
			break
		}
		delays = append(delays, delay)
		b = next
	}

	assert.Equal(t, []time.Duration{
		1 * time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
	}, delays)
}

func TestBackoffExhausted(t *testing.T) {
	b := NewBackoff(time.Second, 1)

	delay, next, ok := b.Next()
	assert.True(t, ok)
	assert.Equal(t, time.Second, delay)

	_, _, ok = next.Next()
	assert.False(t, ok)
}

func TestBackoffIsPure(t *testing.T) {
	b := NewBackoff(time.Second, 2)

	// Calling Next twice on the same state yields the same result.
	d1, n1, _ := b.Next()
	d2, n2, _ := b.Next()
	assert.Equal(t, d1, d2)
	assert.Equal(t, n1, n2)
}
