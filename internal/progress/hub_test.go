package progress

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type memorySink struct {
	mu      sync.Mutex
	batches [][]Event
	closed  bool
	err     error
}

func (s *memorySink) Consume(_ context.Context, events []Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	batch := append([]Event(nil), events...)
	s.batches = append(s.batches, batch)
	return s.err
}

func (s *memorySink) Close(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *memorySink) total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, b := range s.batches {
		n += len(b)
	}
	return n
}

func (s *memorySink) batchCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.batches)
}

func (s *memorySink) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func validEvent(stage Stage) Event {
	evt := Event{
		RunID: UUIDToBytes(uuid.New()),
		TS:    time.Now().UTC(),
		Stage: stage,
	}
	switch stage {
	case StageArticleStart, StageArticleRetry, StageArticleDone, StageArticleFailed:
		evt.URL = "https://news.example/1"
	case StageCommentPage:
		evt.URL = "https://news.example/1"
		evt.Page = 1
	}
	return evt
}

func TestHubFlushesWhenBatchFills(t *testing.T) {
	t.Parallel()

	sink := &memorySink{}
	hub := NewHub(Config{MaxBatchEvents: 3, FlushInterval: time.Hour}, sink)
	defer hub.Close(context.Background())

	for i := 0; i < 3; i++ {
		hub.Emit(validEvent(StageRunStart))
	}
	require.Eventually(t, func() bool { return sink.total() == 3 }, 2*time.Second, 10*time.Millisecond)
	require.Equal(t, 1, sink.batchCount())
}

func TestHubFlushesOnInterval(t *testing.T) {
	t.Parallel()

	sink := &memorySink{}
	hub := NewHub(Config{MaxBatchEvents: 100, FlushInterval: 20 * time.Millisecond}, sink)
	defer hub.Close(context.Background())

	hub.Emit(validEvent(StageArticleStart))
	require.Eventually(t, func() bool { return sink.total() == 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestHubCloseDrainsPendingEvents(t *testing.T) {
	t.Parallel()

	sink := &memorySink{}
	hub := NewHub(Config{MaxBatchEvents: 100, FlushInterval: time.Hour}, sink)

	for i := 0; i < 5; i++ {
		hub.Emit(validEvent(StageCommentPage))
	}
	require.NoError(t, hub.Close(context.Background()))
	require.Equal(t, 5, sink.total())
	require.True(t, sink.isClosed())
}

func TestHubCloseIsIdempotent(t *testing.T) {
	t.Parallel()

	hub := NewHub(Config{}, &memorySink{})
	require.NoError(t, hub.Close(context.Background()))
	require.NoError(t, hub.Close(context.Background()))
}

func TestHubDiscardsInvalidEvents(t *testing.T) {
	t.Parallel()

	sink := &memorySink{}
	hub := NewHub(Config{}, sink)

	// Missing run id and timestamp, then missing url.
	hub.Emit(Event{Stage: StageRunStart})
	hub.Emit(Event{RunID: UUIDToBytes(uuid.New()), TS: time.Now(), Stage: StageArticleDone})
	require.NoError(t, hub.Close(context.Background()))
	require.Zero(t, sink.total())
}

func TestHubEmitAfterCloseIsNoop(t *testing.T) {
	t.Parallel()

	sink := &memorySink{}
	hub := NewHub(Config{}, sink)
	require.NoError(t, hub.Close(context.Background()))
	hub.Emit(validEvent(StageRunStart))
	require.Zero(t, sink.total())
}

func TestHubSurvivesSinkErrors(t *testing.T) {
	t.Parallel()

	failing := &memorySink{err: errors.New("sink down")}
	healthy := &memorySink{}
	hub := NewHub(Config{}, failing, healthy)

	hub.Emit(validEvent(StageRunStart))
	require.NoError(t, hub.Close(context.Background()))
	require.Equal(t, 1, healthy.total())
}

func TestEventValidate(t *testing.T) {
	t.Parallel()

	runID := UUIDToBytes(uuid.New())
	now := time.Now().UTC()

	tests := []struct {
		name    string
		evt     Event
		wantErr bool
	}{
		{"run start ok", Event{RunID: runID, TS: now, Stage: StageRunStart}, false},
		{"article done ok", Event{RunID: runID, TS: now, Stage: StageArticleDone, URL: "https://a", Dur: time.Second}, false},
		{"comment page ok", Event{RunID: runID, TS: now, Stage: StageCommentPage, URL: "https://a", Page: 2}, false},
		{"missing run id", Event{TS: now, Stage: StageRunStart}, true},
		{"missing timestamp", Event{RunID: runID, Stage: StageRunStart}, true},
		{"article stage without url", Event{RunID: runID, TS: now, Stage: StageArticleStart}, true},
		{"comment page without page", Event{RunID: runID, TS: now, Stage: StageCommentPage, URL: "https://a"}, true},
		{"unknown stage", Event{RunID: runID, TS: now, Stage: "WAT"}, true},
		{"negative duration", Event{RunID: runID, TS: now, Stage: StageRunDone, Dur: -1}, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.evt.Validate()
			if tc.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}
