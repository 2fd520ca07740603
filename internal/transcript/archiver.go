// Package transcript keeps the durable, capped per-user conversation log.
package transcript

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ashureev/veltrix/internal/domain"
	"github.com/ashureev/veltrix/internal/metrics"
	"github.com/ashureev/veltrix/internal/store"
)

// MaxEntries caps each user's transcript.
const MaxEntries = 100

const defaultWriteTimeout = 5 * time.Second

// Archiver appends finished turns to a transcript store.
type Archiver struct {
	store   store.Transcripts
	metrics *metrics.Metrics
	timeout time.Duration
	now     func() time.Time
}

// NewArchiver creates an archiver. m may be nil.
func NewArchiver(s store.Transcripts, m *metrics.Metrics) *Archiver {
	return &Archiver{store: s, metrics: m, timeout: defaultWriteTimeout, now: time.Now}
}

// Archive appends the (user message, reply) pair. Failures are logged and
// dropped: a lost transcript line never fails the turn. The write outlives
// cancellation of ctx so a client disconnect does not lose the line.
func (a *Archiver) Archive(ctx context.Context, userID, message, reply string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.timeout)
	defer cancel()

	now := a.now()
	entries := []domain.Message{
		{Speaker: domain.SpeakerUser, Text: message, Timestamp: now},
		{Speaker: domain.SpeakerBot, Text: reply, Timestamp: now},
	}
	if err := a.store.AppendTranscript(ctx, userID, entries, MaxEntries); err != nil {
		a.metrics.ArchiveFailure()
		slog.Warn("Transcript append failed", "user_id", userID, "error", err)
	}
}

// History returns the user's transcript, oldest first.
func (a *Archiver) History(ctx context.Context, userID string) ([]domain.Message, error) {
	entries, err := a.store.Transcript(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load transcript: %w", err)
	}
	if entries == nil {
		entries = []domain.Message{}
	}
	return entries, nil
}
