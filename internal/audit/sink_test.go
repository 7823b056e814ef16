package audit

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wildhaven/wildhaven/internal/directory"
)

type stubWriter struct {
	mu      sync.Mutex
	entries []Entry
	err     error
	wrote   chan struct{}
}

func newStubWriter() *stubWriter {
	return &stubWriter{wrote: make(chan struct{}, 8)}
}

func (s *stubWriter) Insert(ctx context.Context, e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer func() { s.wrote <- struct{}{} }()
	if s.err != nil {
		return s.err
	}
	s.entries = append(s.entries, e)
	return nil
}

func (s *stubWriter) all() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Entry(nil), s.entries...)
}

type stubLookup struct {
	person *directory.Person
	err    error
}

func (s *stubLookup) Person(ctx context.Context, principalID string) (*directory.Person, error) {
	return s.person, s.err
}

func waitWrite(t *testing.T, w *stubWriter) {
	t.Helper()
	select {
	case <-w.wrote:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for audit write")
	}
}

func TestRecordWritesDetached(t *testing.T) {
	writer := newStubWriter()
	lookup := &stubLookup{person: &directory.Person{ID: "usr_1", Name: "Dana Reyes", Email: "dana@example.org"}}
	sink := NewSink(writer, lookup, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))

	sink.Record(context.Background(), Entry{
		ActorID:    "usr_1",
		TenantID:   uuid.New(),
		Action:     "membership.set_role",
		EntityType: "membership",
	})
	waitWrite(t, writer)

	entries := writer.all()
	require.Len(t, entries, 1)
	assert.NotEqual(t, uuid.Nil, entries[0].ID)
	assert.False(t, entries[0].CreatedAt.IsZero())
	require.NotNil(t, entries[0].ActorName)
	assert.Equal(t, "Dana Reyes", *entries[0].ActorName)
	require.NotNil(t, entries[0].ActorEmail)
	assert.Equal(t, "dana@example.org", *entries[0].ActorEmail)
}

func TestLookupFailureLeavesActorFieldsNil(t *testing.T) {
	writer := newStubWriter()
	lookup := &stubLookup{err: errors.New("directory unavailable")}
	sink := NewSink(writer, lookup, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))

	sink.Write(context.Background(), Entry{ID: uuid.New(), ActorID: "usr_1", Action: "a", EntityType: "e"})

	entries := writer.all()
	require.Len(t, entries, 1)
	assert.Nil(t, entries[0].ActorName)
	assert.Nil(t, entries[0].ActorEmail)
}

func TestWriteFailureDoesNotPropagate(t *testing.T) {
	writer := newStubWriter()
	writer.err = errors.New("insert failed")
	sink := NewSink(writer, nil, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))

	// Must not panic or surface the error in any way.
	sink.Write(context.Background(), Entry{ID: uuid.New(), ActorID: "usr_1", Action: "a", EntityType: "e"})
}

type stubEnqueuer struct {
	entries []Entry
	err     error
}

func (s *stubEnqueuer) EnqueueAuditWrite(ctx context.Context, e Entry) error {
	if s.err != nil {
		return s.err
	}
	s.entries = append(s.entries, e)
	return nil
}

func TestRecordPrefersQueue(t *testing.T) {
	writer := newStubWriter()
	enq := &stubEnqueuer{}
	sink := NewSink(writer, nil, enq, slog.New(slog.NewTextHandler(io.Discard, nil)))

	sink.Record(context.Background(), Entry{ActorID: "usr_1", Action: "a", EntityType: "e"})

	require.Len(t, enq.entries, 1)
	assert.Empty(t, writer.all())
}

func TestRecordFallsBackWhenQueueFails(t *testing.T) {
	writer := newStubWriter()
	enq := &stubEnqueuer{err: errors.New("redis down")}
	sink := NewSink(writer, nil, enq, slog.New(slog.NewTextHandler(io.Discard, nil)))

	sink.Record(context.Background(), Entry{ActorID: "usr_1", Action: "a", EntityType: "e"})
	waitWrite(t, writer)
	require.Len(t, writer.all(), 1)
}

func TestRecordSurvivesCallerCancellation(t *testing.T) {
	writer := newStubWriter()
	sink := NewSink(writer, nil, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))

	ctx, cancel := context.WithCancel(context.Background())
	sink.Record(ctx, Entry{ActorID: "usr_1", Action: "a", EntityType: "e"})
	cancel()
	waitWrite(t, writer)
	require.Len(t, writer.all(), 1)
}
