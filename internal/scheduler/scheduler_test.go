package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timmy/jobimport/internal/logger"
	"github.com/timmy/jobimport/internal/service"
)

type recordingRunner struct {
	mu    sync.Mutex
	calls []string
	errs  map[string]error
}

func (r *recordingRunner) Sources() []string { return []string{"hh", "osonish"} }

func (r *recordingRunner) Run(_ context.Context, name string, _ service.RunOptions) (*service.RunReport, error) {
	r.mu.Lock()
	r.calls = append(r.calls, name)
	r.mu.Unlock()
	if err := r.errs[name]; err != nil {
		return nil, err
	}
	return &service.RunReport{RunID: "r-" + name, Source: name}, nil
}

func TestRunCycleContinuesAfterFailure(t *testing.T) {
	runner := &recordingRunner{errs: map[string]error{"hh": errors.New("boom")}}
	s := New(runner, "@every 1h", logger.GetDefault())

	s.RunCycle(context.Background())
	assert.Equal(t, []string{"hh", "osonish"}, runner.calls)
}

func TestRunCycleSkipsLockedSource(t *testing.T) {
	runner := &recordingRunner{errs: map[string]error{"osonish": service.ErrRunInProgress}}
	New(runner, "@every 1h", nil).RunCycle(context.Background())
	assert.Len(t, runner.calls, 2)
}

func TestRunCycleStopsOnCancel(t *testing.T) {
	runner := &recordingRunner{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	New(runner, "@every 1h", nil).RunCycle(ctx)
	assert.Empty(t, runner.calls)
}

func TestStartRejectsBadSpec(t *testing.T) {
	s := New(&recordingRunner{}, "every now and then", nil)
	assert.Error(t, s.Start(context.Background(), false))
}

func TestStartStop(t *testing.T) {
	s := New(&recordingRunner{}, "@every 1h", nil)
	require.NoError(t, s.Start(context.Background(), false))
	s.Stop()
}

func TestKVFields(t *testing.T) {
	f := kvFields([]interface{}{"entry", 1, "next", "soon", "dangling"})
	assert.Equal(t, logger.Fields{"entry": 1, "next": "soon"}, f)
}
