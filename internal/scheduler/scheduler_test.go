package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexanderramin/sitesync/internal/report"
)

func TestAdd_RejectsBadSchedule(t *testing.T) {
	s := New(nil, nil)
	err := s.Add(Job{Name: "resync", Schedule: "every now and then", Run: func(context.Context) error { return nil }})
	assert.Error(t, err)
}

func TestTrigger_ReportsFailures(t *testing.T) {
	sink := &report.Collector{}
	s := New(nil, sink)
	require.NoError(t, s.Add(Job{Name: "resync", Schedule: "@every 1h", Run: func(context.Context) error {
		return errors.New("backend down")
	}}))

	assert.True(t, s.Trigger("resync"))
	assert.False(t, s.Trigger("unknown"))
	require.Len(t, sink.Failures(), 1)
	assert.Equal(t, "resync", sink.Failures()[0].Op)

	_, ok := s.Next("resync")
	assert.True(t, ok)
	_, ok = s.Next("unknown")
	assert.False(t, ok)
}

func TestTrigger_SkipsOverlappingRuns(t *testing.T) {
	s := New(nil, nil)
	release := make(chan struct{})
	started := make(chan struct{})
	require.NoError(t, s.Add(Job{Name: "slow", Schedule: "@every 1h", Run: func(context.Context) error {
		close(started)
		<-release
		return nil
	}}))

	done := make(chan bool)
	go func() { done <- s.Trigger("slow") }()
	<-started
	assert.False(t, s.Trigger("slow"))
	close(release)
	assert.True(t, <-done)
}

func TestStart_FiresOnSchedule(t *testing.T) {
	s := New(nil, nil)
	var runs atomic.Int32
	require.NoError(t, s.Add(Job{Name: "expiry", Schedule: "@every 1s", Run: func(context.Context) error {
		runs.Add(1)
		return nil
	}}))
	s.Start(context.Background())
	defer s.Stop()

	assert.Eventually(t, func() bool { return runs.Load() > 0 }, 3*time.Second, 50*time.Millisecond)
}
