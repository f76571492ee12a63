package executor

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDedup_SeenAfterMark(t *testing.T) {
	d := NewDedup(8, time.Minute)

	_, ok := d.Seen("a")
	assert.False(t, ok)

	d.MarkSuccess("a", "sub-a")
	id, ok := d.Seen("a")
	assert.True(t, ok)
	assert.Equal(t, "sub-a", id)
}

func TestDedup_EmptySubmissionID(t *testing.T) {
	d := NewDedup(8, time.Minute)
	d.MarkSuccess("a", "")

	id, ok := d.Seen("a")
	assert.True(t, ok, "the intent is remembered even without a submission id")
	assert.Empty(t, id)

	// A later mark with a real id upgrades the entry.
	d.MarkSuccess("a", "sub-a")
	id, _ = d.Seen("a")
	assert.Equal(t, "sub-a", id)
	assert.Equal(t, 1, d.Len())
}

func TestDedup_CapacityEvictsOldest(t *testing.T) {
	d := NewDedup(3, time.Minute)
	for i := 0; i < 5; i++ {
		d.MarkSuccess(fmt.Sprintf("intent-%d", i), "sub")
	}

	assert.Equal(t, 3, d.Len())
	_, ok := d.Seen("intent-0")
	assert.False(t, ok)
	_, ok = d.Seen("intent-1")
	assert.False(t, ok)
	_, ok = d.Seen("intent-4")
	assert.True(t, ok)
}

func TestDedup_RemarkMovesToBack(t *testing.T) {
	d := NewDedup(2, time.Minute)
	d.MarkSuccess("a", "sub-a")
	d.MarkSuccess("b", "sub-b")
	d.MarkSuccess("a", "sub-a") // refresh a; b is now oldest
	d.MarkSuccess("c", "sub-c")

	_, ok := d.Seen("a")
	assert.True(t, ok)
	_, ok = d.Seen("b")
	assert.False(t, ok)
}

func TestDedup_TTLExpiry(t *testing.T) {
	d := NewDedup(8, 20*time.Millisecond)
	d.MarkSuccess("a", "sub-a")

	_, ok := d.Seen("a")
	assert.True(t, ok)

	time.Sleep(30 * time.Millisecond)
	_, ok = d.Seen("a")
	assert.False(t, ok)
	assert.Zero(t, d.Len())
}

func TestDedup_Cleanup(t *testing.T) {
	d := NewDedup(8, 20*time.Millisecond)
	d.MarkSuccess("a", "sub-a")
	d.MarkSuccess("b", "sub-b")

	time.Sleep(30 * time.Millisecond)
	d.MarkSuccess("c", "sub-c")
	d.Cleanup()

	assert.Equal(t, 1, d.Len())
	_, ok := d.Seen("c")
	assert.True(t, ok)
}

func TestDedup_ZeroTTLNeverExpires(t *testing.T) {
	d := NewDedup(8, 0)
	d.MarkSuccess("a", "sub-a")
	d.Cleanup()

	_, ok := d.Seen("a")
	assert.True(t, ok)
}
