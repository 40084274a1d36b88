package gpio

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFakeButtonPress(t *testing.T) {
	var b Button = NewFakeButton()
	fake := b.(*FakeButton)

	at := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	require.True(t, fake.Press(at))

	select {
	case got := <-b.Presses():
		assert.Equal(t, at, got)
	default:
		t.Fatal("expected a press")
	}
}

func TestFakeButtonDropsWhenFull(t *testing.T) {
	b := NewFakeButton()
	at := time.Now()
	for i := 0; i < pressBuffer; i++ {
		require.True(t, b.Press(at))
	}
	assert.False(t, b.Press(at))
}

func TestFakeButtonClose(t *testing.T) {
	b := NewFakeButton()
	require.NoError(t, b.Close())
	require.NoError(t, b.Close())
	assert.True(t, b.Closed())
	assert.False(t, b.Press(time.Now()))

	_, ok := <-b.Presses()
	assert.False(t, ok, "press channel is closed")
}
