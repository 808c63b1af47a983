package control

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startLoop(t *testing.T) *Loop {
	t.Helper()
	l := New(16)
	l.Start()
	t.Cleanup(l.Stop)
	return l
}

func TestLoopRunsTasksInOrder(t *testing.T) {
	l := startLoop(t)

	var seen []int
	for i := 0; i < 10; i++ {
		i := i
		require.True(t, l.Post(func() { seen = append(seen, i) }))
	}
	require.NoError(t, l.Do(context.Background(), func() {}))
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, seen)
}

func TestCallReturnsResult(t *testing.T) {
	l := startLoop(t)

	v, err := Call(context.Background(), l, func() (string, error) { return "ok", nil })
	require.NoError(t, err)
	assert.Equal(t, "ok", v)

	boom := errors.New("boom")
	_, err = Call(context.Background(), l, func() (int, error) { return 0, boom })
	assert.ErrorIs(t, err, boom)
}

func TestLoopSurvivesPanics(t *testing.T) {
	l := startLoop(t)

	l.Post(func() { panic("handler bug") })
	ran := false
	require.NoError(t, l.Do(context.Background(), func() { ran = true }))
	assert.True(t, ran)
}

func TestDoHonoursContextWhileWaiting(t *testing.T) {
	l := startLoop(t)

	release := make(chan struct{})
	l.Post(func() { <-release })
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := l.Do(ctx, func() {})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestStoppedLoopRejectsWork(t *testing.T) {
	l := New(4)
	l.Start()
	l.Stop()

	assert.False(t, l.Post(func() {}))
	assert.ErrorIs(t, l.Do(context.Background(), func() {}), ErrStopped)
	_, err := Call(context.Background(), l, func() (int, error) { return 1, nil })
	assert.ErrorIs(t, err, ErrStopped)
}

func TestStopWithoutStart(t *testing.T) {
	l := New(1)
	assert.NotPanics(t, l.Stop)
	assert.False(t, l.Post(func() {}))
}
