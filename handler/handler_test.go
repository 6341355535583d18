package handler

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/require"

	"message-sweeper/internal/usecase"
)

type stubSweeper struct {
	out   usecase.SweepResult
	err   error
	calls int
}

func (s *stubSweeper) Sweep(_ context.Context) (usecase.SweepResult, error) {
	s.calls++
	return s.out, s.err
}

func makeEvent() events.CloudWatchEvent {
	return events.CloudWatchEvent{
		ID:         "evt-1",
		DetailType: "Scheduled Event",
		Source:     "aws.events",
		Time:       time.Date(2026, 10, 17, 10, 15, 0, 0, time.UTC),
	}
}

func newTestHandler(t *testing.T, s Sweeper) (*Handler, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	h, err := NewHandler(s, slog.New(slog.NewTextHandler(&buf, nil)))
	require.NoError(t, err)
	return h, &buf
}

func TestNewHandler_ValidatesDependency(t *testing.T) {
	_, err := NewHandler(nil, nil)
	require.Error(t, err)
}

func TestHandle_HappyPath(t *testing.T) {
	s := &stubSweeper{out: usecase.SweepResult{RunID: "run-1", Found: 2, Deleted: 2, Batches: 1}}
	h, logs := newTestHandler(t, s)

	err := h.Handle(context.Background(), makeEvent())
	require.NoError(t, err)
	require.Equal(t, 1, s.calls)
	require.Contains(t, logs.String(), "scheduled sweep")
	require.Contains(t, logs.String(), "event_id=evt-1")
	require.Contains(t, logs.String(), "run_id=run-1")
	require.NotContains(t, logs.String(), "deleted=")
	require.NotContains(t, logs.String(), "found=")
}

func TestHandle_PropagatesSweepError(t *testing.T) {
	sweepErr := &usecase.Error{Code: usecase.ErrorCommit, Reason: "delete_batch_failed", Err: errors.New("transaction canceled")}
	s := &stubSweeper{out: usecase.SweepResult{RunID: "run-2"}, err: sweepErr}
	h, logs := newTestHandler(t, s)

	err := h.Handle(context.Background(), makeEvent())
	require.ErrorIs(t, err, sweepErr)

	var usecaseErr *usecase.Error
	require.ErrorAs(t, err, &usecaseErr)
	require.Equal(t, usecase.ErrorCommit, usecaseErr.Code)
	require.Contains(t, logs.String(), "event_id=evt-1")
	require.Contains(t, logs.String(), "run_id=run-2")
	require.NotContains(t, logs.String(), "transaction canceled")
	require.Equal(t, 1, bytes.Count(logs.Bytes(), []byte("\n")))
}

func TestHandle_IgnoresEventPayload(t *testing.T) {
	s := &stubSweeper{}
	h, _ := newTestHandler(t, s)

	require.NoError(t, h.Handle(context.Background(), events.CloudWatchEvent{}))
	require.Equal(t, 1, s.calls)
}
