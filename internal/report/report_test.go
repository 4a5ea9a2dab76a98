package report

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestCollector_ByKind(t *testing.T) {
	c := &Collector{}
	c.Report(Failure{Kind: KindFetch, Op: "list", Entity: "phases", ID: "p1", Err: errors.New("boom")})
	c.Report(Failure{Kind: KindPersist, Op: "set", Entity: "task", Err: errors.New("disk full")})

	require.Len(t, c.Failures(), 2)
	fetch := c.ByKind(KindFetch)
	require.Len(t, fetch, 1)
	assert.Equal(t, "p1", fetch[0].ID)
	assert.Contains(t, fetch[0].Error(), "boom")
}

func TestFailure_Unwrap(t *testing.T) {
	sentinel := errors.New("sentinel")
	f := Failure{Kind: KindCommand, Op: "delete", Entity: "task", Err: sentinel}
	assert.True(t, errors.Is(f, sentinel))
}

func TestMulti_SkipsNil(t *testing.T) {
	c := &Collector{}
	m := Multi{nil, c, Discard{}}
	m.Report(Failure{Kind: KindDecode})
	assert.Len(t, c.Failures(), 1)
}

func TestLogSink_WritesWarn(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	s := LogSink{Logger: zap.New(core)}
	s.Report(Failure{Kind: KindEnrichment, Op: "lookup", Entity: "profile", ID: "u1", Err: errors.New("gone")})

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "sync failure", entries[0].Message)
	assert.Equal(t, "enrichment", entries[0].ContextMap()["kind"])
}
