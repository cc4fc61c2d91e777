package main

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samirrijal/casaview/internal/core/ports"
)

type countingSyncer struct {
	calls atomic.Int32
	err   error
}

func (c *countingSyncer) Sync(ctx context.Context) (*ports.SyncEvent, error) {
	c.calls.Add(1)
	if c.err != nil {
		return nil, c.err
	}
	return &ports.SyncEvent{SyncedAt: time.Now()}, nil
}

func TestScheduler_RunsImmediatelyAndRepeats(t *testing.T) {
	svc := &countingSyncer{}
	s := newScheduler(svc, 50*time.Millisecond, time.Second)
	require.NoError(t, s.Start())
	defer s.Stop()

	assert.Eventually(t, func() bool { return svc.calls.Load() >= 2 }, 2*time.Second, 10*time.Millisecond)
}

func TestScheduler_KeepsRunningAfterFailure(t *testing.T) {
	svc := &countingSyncer{err: errors.New("content store down")}
	s := newScheduler(svc, 50*time.Millisecond, time.Second)
	require.NoError(t, s.Start())
	defer s.Stop()

	assert.Eventually(t, func() bool { return svc.calls.Load() >= 2 }, 2*time.Second, 10*time.Millisecond)
}

func TestRootCmd_Subcommands(t *testing.T) {
	root := rootCmd()
	names := map[string]bool{}
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["sync"])
	assert.True(t, names["watch"])

	watch, _, err := root.Find([]string{"watch"})
	require.NoError(t, err)
	assert.NotNil(t, watch.Flags().Lookup("interval"))
}
