package gpio

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimClaim(t *testing.T) {
	tests := []struct {
		name    string
		pin     Pin
		hog     bool
		wantErr error
	}{
		{name: "free pin", pin: 4},
		{name: "last line", pin: 63},
		{name: "out of range", pin: 64, wantErr: ErrUnknownPin},
		{name: "negative", pin: NoPin, wantErr: ErrUnknownPin},
		{name: "hogged", pin: 7, hog: true, wantErr: ErrPinInUse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sim := NewSim(64)
			if tt.hog {
				sim.Hog(tt.pin)
			}
			l, err := sim.Claim(tt.pin)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.ErrorIs(t, sim.Available(tt.pin), tt.wantErr)
				assert.Empty(t, sim.Claims())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.pin, l.Pin())
			assert.True(t, sim.Claimed(tt.pin))
		})
	}
}

func TestSimDoubleClaim(t *testing.T) {
	sim := NewSim(8)
	_, err := sim.Claim(3)
	require.NoError(t, err)

	_, err = sim.Claim(3)
	assert.ErrorIs(t, err, ErrPinInUse)
	assert.ErrorIs(t, sim.Available(3), ErrPinInUse)
}

func TestSimReleaseResetsLine(t *testing.T) {
	sim := NewSim(8)
	l, err := sim.Claim(2)
	require.NoError(t, err)
	require.NoError(t, l.Set(true))
	assert.True(t, sim.Level(2))

	require.NoError(t, sim.Release(2))
	assert.False(t, sim.Level(2))
	assert.False(t, sim.Claimed(2))
	assert.NoError(t, sim.Available(2))

	// stale handles stop working and a second release is harmless
	assert.ErrorIs(t, l.Set(true), ErrNotClaimed)
	assert.NoError(t, sim.Release(2))
}

func TestSimEventsAndObserver(t *testing.T) {
	sim := NewSim(8)
	a, err := sim.Claim(1)
	require.NoError(t, err)
	b, err := sim.Claim(5)
	require.NoError(t, err)

	var seen []Event
	sim.OnChange(func(p Pin, high bool) {
		seen = append(seen, Event{Pin: p, High: high})
	})
	sim.Record(true)

	require.NoError(t, a.Set(true))
	require.NoError(t, b.Set(true))
	require.NoError(t, a.Set(false))

	want := []Event{{1, true}, {5, true}, {1, false}}
	assert.Equal(t, want, sim.Events())
	assert.Equal(t, want, seen)
}

func TestSimFailWrites(t *testing.T) {
	sim := NewSim(8)
	l, err := sim.Claim(6)
	require.NoError(t, err)

	boom := errors.New("boom")
	sim.FailWrites(6, boom)
	assert.ErrorIs(t, l.Set(true), boom)
	assert.False(t, sim.Level(6))

	sim.FailWrites(6, nil)
	assert.NoError(t, l.Set(true))
}

func TestSimPort(t *testing.T) {
	sim := NewSim(64)
	p, ok := sim.Port(31)
	assert.True(t, ok)
	assert.Equal(t, 0, p)
	p, ok = sim.Port(32)
	assert.True(t, ok)
	assert.Equal(t, 1, p)
	_, ok = sim.Port(64)
	assert.False(t, ok)
}
