package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// TestTimerDuration tests elapsed time measurement
func TestTimerDuration(t *testing.T) {
	timer := NewTimer()
	time.Sleep(10 * time.Millisecond)
	assert.GreaterOrEqual(t, timer.Duration(), 10*time.Millisecond)
}

// TestTimerObserve tests recording into a histogram
func TestTimerObserve(t *testing.T) {
	timer := NewTimer()
	assert.NotPanics(t, func() {
		timer.ObserveDuration(RequestDuration)
	})
}
