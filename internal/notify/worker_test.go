package notify

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "civreg/pkg/domain"
)

func silentLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func testEvent(kind Kind) Event {
	return Event{
		Kind:         kind,
		TransferID:   id.NewTransferID(),
		FamilyID:     "F001",
		FromOfficeID: "O-A",
		ToOfficeID:   "O-B",
		Actor:        "clerk-1",
		Timestamp:    time.Now(),
	}
}

func TestWorkerDrainsInbox(t *testing.T) {
	sink := NewMemory()
	ch := make(chan Event, 8)
	worker := NewWorker(sink, ch, silentLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- worker.Run(ctx) }()

	inbox := NewInbox(ch, silentLogger())
	require.NoError(t, inbox.Emit(ctx, testEvent(KindTransferRequested)))
	require.NoError(t, inbox.Emit(ctx, testEvent(KindTransferApproved)))

	require.Eventually(t, func() bool {
		return len(sink.Events()) == 2
	}, time.Second, 10*time.Millisecond)

	cancel()
	err := <-done
	assert.ErrorIs(t, err, context.Canceled)

	kinds := []Kind{sink.Events()[0].Kind, sink.Events()[1].Kind}
	assert.Equal(t, []Kind{KindTransferRequested, KindTransferApproved}, kinds)
}

// flakySink fails for one event kind and records the rest.
type flakySink struct {
	mu       sync.Mutex
	failKind Kind
	events   []Event
}

func (s *flakySink) Emit(_ context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if event.Kind == s.failKind {
		return errors.New("broker down")
	}
	s.events = append(s.events, event)
	return nil
}

func (s *flakySink) delivered() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func TestWorkerLogsAndContinuesOnSinkFailure(t *testing.T) {
	sink := &flakySink{failKind: KindTransferRequested}
	ch := make(chan Event, 8)
	worker := NewWorker(sink, ch, silentLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- worker.Run(ctx) }()

	inbox := NewInbox(ch, silentLogger())
	require.NoError(t, inbox.Emit(ctx, testEvent(KindTransferRequested)))
	require.NoError(t, inbox.Emit(ctx, testEvent(KindTransferCompleted)))

	// The first delivery fails; the worker logs it and still delivers the
	// second event.
	require.Eventually(t, func() bool {
		return sink.delivered() == 1
	}, time.Second, 10*time.Millisecond)

	cancel()
	<-done
}

func TestInboxDropsWhenFull(t *testing.T) {
	ch := make(chan Event, 1)
	inbox := NewInbox(ch, silentLogger())

	ctx := context.Background()
	require.NoError(t, inbox.Emit(ctx, testEvent(KindTransferRequested)))
	// Buffer full: the second emit drops instead of blocking.
	require.NoError(t, inbox.Emit(ctx, testEvent(KindTransferApproved)))
	assert.Len(t, ch, 1)
}
