package delivery

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bekksaar/intakebot/core/telegram/sender"
	"github.com/bekksaar/intakebot/internal/funnel"
	"github.com/bekksaar/intakebot/internal/leads"
)

type fakeSender struct {
	mu    sync.Mutex
	ids   []uuid.UUID
	sent  []Payload
	err   error
	block chan struct{}
}

func (f *fakeSender) Send(_ context.Context, id uuid.UUID, p Payload) error {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ids = append(f.ids, id)
	f.sent = append(f.sent, p)
	return f.err
}

type fakeArchive struct {
	mu    sync.Mutex
	leads []leads.Lead
}

func (f *fakeArchive) Save(_ context.Context, l leads.Lead) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.leads = append(f.leads, l)
	return nil
}

type fakeRecorder struct {
	mu       sync.Mutex
	statuses []string
}

func (f *fakeRecorder) DeliveryResult(status string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses = append(f.statuses, status)
}

func TestAsyncDeliversAndArchives(t *testing.T) {
	s := &fakeSender{}
	arch := &fakeArchive{}
	rec := &fakeRecorder{}
	d := NewDispatcher(time.Second)
	a := NewAsync(s, d, WithArchive(arch), WithRecorder(rec))

	require.NoError(t, a.Submit(context.Background(), sampleRecord()))
	d.Close()

	require.Len(t, s.sent, 1)
	assert.Equal(t, NewPayload(sampleRecord()), s.sent[0])
	require.Len(t, arch.leads, 1)
	assert.Equal(t, s.ids[0], arch.leads[0].ID)
	assert.Equal(t, leads.StatusDelivered, arch.leads[0].Status)
	assert.Equal(t, []string{funnel.DeliveryOK}, rec.statuses)
}

func TestAsyncFailureIsArchivedAsFailed(t *testing.T) {
	s := &fakeSender{err: errors.New("collector down")}
	arch := &fakeArchive{}
	rec := &fakeRecorder{}
	d := NewDispatcher(time.Second)
	a := NewAsync(s, d, WithArchive(arch), WithRecorder(rec))

	require.NoError(t, a.Submit(context.Background(), sampleRecord()))
	d.Close()

	require.Len(t, s.sent, 1, "no retries")
	require.Len(t, arch.leads, 1)
	assert.Equal(t, leads.StatusFailed, arch.leads[0].Status)
	assert.Equal(t, []string{funnel.DeliveryFail}, rec.statuses)
	assert.Equal(t, uint64(1), d.ErrorCount())
}

func TestAsyncSubmitDoesNotBlock(t *testing.T) {
	s := &fakeSender{block: make(chan struct{})}
	d := NewDispatcher(time.Second)
	a := NewAsync(s, d)

	done := make(chan error, 1)
	go func() { done <- a.Submit(context.Background(), sampleRecord()) }()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Submit blocked on delivery")
	}
	close(s.block)
	d.Close()
	assert.Len(t, s.sent, 1)
}

func TestAsyncSurvivesCancelledUpdateContext(t *testing.T) {
	s := &fakeSender{}
	d := NewDispatcher(time.Second)
	a := NewAsync(s, d)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, a.Submit(ctx, sampleRecord()))
	cancel()
	d.Close()
	assert.Len(t, s.sent, 1)
}

func TestAsyncClosedDispatcher(t *testing.T) {
	rec := &fakeRecorder{}
	d := NewDispatcher(time.Second)
	d.Close()
	a := NewAsync(&fakeSender{}, d, WithRecorder(rec))

	err := a.Submit(context.Background(), sampleRecord())
	assert.ErrorIs(t, err, sender.ErrQueueClosed)
	assert.Equal(t, []string{funnel.DeliveryDropped}, rec.statuses)
}
