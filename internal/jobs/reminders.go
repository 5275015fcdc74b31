// Package jobs holds the recurring background sweeps.
package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/google/uuid"

	"github.com/aldoetobex/claims-backend/internal/claims"
	"github.com/aldoetobex/claims-backend/pkg/models"
)

// Reminder is one claim that has waited too long for the claimant's documents.
type Reminder struct {
	ClaimID     uuid.UUID
	ClaimNumber string
	ClaimantID  uuid.UUID
	Since       time.Time
	Waiting     time.Duration
	Request     string
}

// DocumentsReminder finds claims parked in documents_required past StaleAfter.
type DocumentsReminder struct {
	store      claims.Store
	staleAfter time.Duration
	log        *slog.Logger

	Now func() time.Time
}

func NewDocumentsReminder(store claims.Store, staleAfter time.Duration, log *slog.Logger) *DocumentsReminder {
	if log == nil {
		log = slog.Default()
	}
	return &DocumentsReminder{
		store:      store,
		staleAfter: staleAfter,
		log:        log.With("job", "documents_reminder"),
		Now:        func() time.Time { return time.Now().UTC() },
	}
}

// Sweep returns the stale claims and logs one line per claim.
func (r *DocumentsReminder) Sweep(ctx context.Context) ([]Reminder, error) {
	list, err := r.store.InStatus(ctx, models.ClaimDocumentsRequired)
	if err != nil {
		return nil, err
	}
	now := r.Now()
	cutoff := now.Add(-r.staleAfter)

	var out []Reminder
	for i := range list {
		c := &list[i]
		since, request := c.UpdatedAt, ""
		// The request is the newest documents_required entry.
		for j := len(c.StatusHistory) - 1; j >= 0; j-- {
			if h := c.StatusHistory[j]; h.Status == models.ClaimDocumentsRequired {
				since, request = h.Timestamp, h.Comment
				break
			}
		}
		if since.After(cutoff) {
			continue
		}
		rem := Reminder{
			ClaimID:     c.ID,
			ClaimNumber: c.ClaimNumber,
			ClaimantID:  c.ClaimantID,
			Since:       since,
			Waiting:     now.Sub(since),
			Request:     request,
		}
		out = append(out, rem)
		r.log.Info("claim awaiting documents",
			"claim", rem.ClaimNumber, "claimant", rem.ClaimantID, "waiting", rem.Waiting.Round(time.Minute).String())
	}
	if len(out) > 0 {
		r.log.Warn("stale document requests", "count", len(out))
	}
	return out, nil
}

// Schedule registers the sweep on s. It never overlaps itself.
func (r *DocumentsReminder) Schedule(s *gocron.Scheduler, every time.Duration) (*gocron.Job, error) {
	return s.Every(every).SingletonMode().Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), every)
		defer cancel()
		if _, err := r.Sweep(ctx); err != nil {
			r.log.Error("documents reminder sweep failed", "err", err)
		}
	})
}
