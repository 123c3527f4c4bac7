package sink

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/daniarmadeit/idi-motors-bot/internal/entities"
	"github.com/daniarmadeit/idi-motors-bot/internal/listing"
)

func newRegistry(t *testing.T, ttl time.Duration) *Registry {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	// long sweep interval; tests trigger sweeps directly
	return NewRegistry(ctx, nil, nil, ttl, time.Hour)
}

func TestTrackLifecycle(t *testing.T) {
	r := newRegistry(t, time.Minute)

	id := uuid.New()
	snk := r.Track(id)

	st, ok := r.Get(id)
	require.True(t, ok)
	require.Equal(t, entities.StatusQueued, st.Info().Status)

	snk.Processing()
	require.Equal(t, entities.StatusProcessing, st.Info().Status)

	snk.Progress(3, 10)
	info := st.Info()
	require.Equal(t, 3, info.Done)
	require.Equal(t, 10, info.Total)

	snk.Failed(errors.New("bundle download failed"))
	info = st.Info()
	require.Equal(t, entities.StatusFailed, info.Status)
	require.Equal(t, "bundle download failed", info.Error)
}

func TestCarDataParking(t *testing.T) {
	r := newRegistry(t, time.Minute)

	id := uuid.New()
	snk := r.Track(id)
	require.Nil(t, snk.st.Car())

	car := &listing.CarData{Name: "2014 TOYOTA VITZ"}
	snk.SetCar(car)

	st, _ := r.Get(id)
	require.Same(t, car, st.Car())
}

func TestSweepRemovesFinishedEntries(t *testing.T) {
	r := newRegistry(t, 10*time.Millisecond)

	finished := uuid.New()
	r.Track(finished).Failed(errors.New("done and dusted"))

	pending := uuid.New()
	r.Track(pending)

	time.Sleep(30 * time.Millisecond)
	r.sweep()

	_, ok := r.Get(finished)
	require.False(t, ok, "finished entries expire")

	_, ok = r.Get(pending)
	require.True(t, ok, "unfinished entries are never swept")
}
