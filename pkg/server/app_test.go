package server

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type journal struct {
	mu      sync.Mutex
	entries []string
}

func (j *journal) add(s string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, s)
}

func (j *journal) list() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]string(nil), j.entries...)
}

type fakeComponent struct {
	name     string
	j        *journal
	startErr error
}

func (f *fakeComponent) Start(context.Context) error {
	if f.startErr != nil {
		return f.startErr
	}
	f.j.add("start " + f.name)
	return nil
}

func (f *fakeComponent) Stop(context.Context) error {
	f.j.add("stop " + f.name)
	return nil
}

func TestAppRunStopsInReverseOrder(t *testing.T) {
	j := &journal{}
	app := New(nil, nil, time.Second)
	app.AddComponent(&fakeComponent{name: "queue", j: j})
	app.AddComponent(&fakeComponent{name: "kafka", j: j})
	app.AddComponent(nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	require.Eventually(t, func() bool { return len(j.list()) == 2 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}
	assert.Equal(t, []string{"start queue", "start kafka", "stop kafka", "stop queue"}, j.list())
}

func TestAppRunStartFailureUnwinds(t *testing.T) {
	j := &journal{}
	boom := errors.New("boom")
	app := New(nil, nil, time.Second)
	app.AddComponent(&fakeComponent{name: "queue", j: j})
	app.AddComponent(&fakeComponent{name: "kafka", j: j, startErr: boom})

	err := app.Run(context.Background())
	require.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"start queue", "stop queue"}, j.list())
}
