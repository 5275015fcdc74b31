// Package query serves read models over the claim store: filtered pages,
// status counts for dashboards and the per-claim audit view.
package query

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/aldoetobex/claims-backend/internal/claims"
	"github.com/aldoetobex/claims-backend/internal/documents"
	"github.com/aldoetobex/claims-backend/pkg/models"
	"github.com/aldoetobex/claims-backend/pkg/sanitize"
)

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
	previewLength   = 140
)

// Filter narrows a listing. Page is 1-based.
type Filter struct {
	Status     models.ClaimStatus
	ClaimType  string
	Search     string
	ClaimantID *uuid.UUID
	Page       int
	PageSize   int
}

// ClaimSummary is one row of a claim list.
type ClaimSummary struct {
	ID             uuid.UUID          `json:"id"`
	ClaimNumber    string             `json:"claim_number"`
	PolicyNumber   string             `json:"policy_number"`
	ClaimantName   string             `json:"claimant_name"`
	ClaimType      string             `json:"claim_type"`
	Status         models.ClaimStatus `json:"status"`
	Priority       models.Priority    `json:"priority"`
	ClaimAmount    int64              `json:"claim_amount"`
	ApprovedAmount *int64             `json:"approved_amount,omitempty"`
	IncidentDate   time.Time          `json:"incident_date"`
	Preview        string             `json:"description_preview"`
	DocumentCount  int                `json:"document_count"`
	CreatedAt      time.Time          `json:"created_at"`
}

type Page struct {
	Items    []ClaimSummary `json:"items"`
	Page     int            `json:"page"`
	PageSize int            `json:"pageSize"`
	Total    int64          `json:"total"`
	Pages    int            `json:"pages"`
}

// Counts is the dashboard tally. Every status is present, zero or not.
type Counts struct {
	ByStatus map[models.ClaimStatus]int64 `json:"by_status"`
	Total    int64                        `json:"total"`
}

// Detail is a single claim with the moves still open to it.
type Detail struct {
	*models.Claim
	NextStatuses []models.ClaimStatus `json:"next_statuses"`
}

// History is the audit trail of a claim, replayed against the transition table.
type History struct {
	ClaimNumber string                 `json:"claim_number"`
	Entries     []models.StatusHistory `json:"entries"`
	Consistent  bool                   `json:"consistent"`
	Problem     string                 `json:"problem,omitempty"`
}

type Service struct {
	store    claims.Store
	cache    Cache
	countTTL time.Duration
	log      *slog.Logger
}

// NewService wires the read side. cache may be nil, which disables count caching.
func NewService(store claims.Store, cache Cache, countTTL time.Duration, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{store: store, cache: cache, countTTL: countTTL, log: log.With("component", "query")}
}

// normalizePage clamps paging so (page-1)*size cannot overflow.
func normalizePage(page, size int) (int, int) {
	if size < 1 {
		size = DefaultPageSize
	}
	size = min(size, MaxPageSize)
	return max(1, min(page, math.MaxInt32/size)), size
}

// List returns one page of claims, newest first.
func (s *Service) List(ctx context.Context, f Filter) (*Page, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, claims.NewValidationError("status", fmt.Sprintf("Unknown status %q", f.Status))
	}
	page, size := normalizePage(f.Page, f.PageSize)

	rows, total, err := s.store.List(ctx, claims.ListFilter{
		Status:     f.Status,
		ClaimType:  strings.TrimSpace(f.ClaimType),
		Search:     f.Search,
		ClaimantID: f.ClaimantID,
		Offset:     (page - 1) * size,
		Limit:      size,
	})
	if err != nil {
		return nil, err
	}

	items := make([]ClaimSummary, 0, len(rows))
	for i := range rows {
		items = append(items, summarize(&rows[i]))
	}
	return &Page{
		Items:    items,
		Page:     page,
		PageSize: size,
		Total:    total,
		Pages:    int(math.Ceil(float64(total) / float64(size))),
	}, nil
}

func summarize(c *models.Claim) ClaimSummary {
	return ClaimSummary{
		ID:             c.ID,
		ClaimNumber:    c.ClaimNumber,
		PolicyNumber:   c.PolicyNumber,
		ClaimantName:   c.ClaimantName,
		ClaimType:      c.ClaimType,
		Status:         c.Status,
		Priority:       c.Priority,
		ClaimAmount:    c.ClaimAmount,
		ApprovedAmount: c.ApprovedAmount,
		IncidentDate:   c.IncidentDate,
		Preview:        sanitize.Preview(c.Description, previewLength),
		DocumentCount:  len(c.Documents),
		CreatedAt:      c.CreatedAt,
	}
}

func countsKey(claimantID *uuid.UUID) string {
	if claimantID == nil {
		return "counts:all"
	}
	return "counts:" + claimantID.String()
}

// Counts tallies claims by status, optionally for one claimant.
// Cache failures are logged and fall through to the store.
func (s *Service) Counts(ctx context.Context, claimantID *uuid.UUID) (*Counts, error) {
	key := countsKey(claimantID)
	gen, cacheable := int64(0), s.cache != nil
	if s.cache != nil {
		raw, ok, err := s.cache.Get(ctx, key)
		if err != nil {
			s.log.Warn("counts cache read failed", "key", key, "err", err)
		} else if ok {
			var out Counts
			if err := json.Unmarshal(raw, &out); err == nil {
				return &out, nil
			}
		}
		// Taken before the store read so an Invalidate during the read discards this result.
		if gen, err = s.cache.Generation(ctx, key); err != nil {
			s.log.Warn("counts cache generation read failed", "key", key, "err", err)
			cacheable = false
		}
	}

	byStatus, err := s.store.CountByStatus(ctx, claimantID)
	if err != nil {
		return nil, err
	}
	out := &Counts{ByStatus: make(map[models.ClaimStatus]int64, len(models.AllClaimStatuses))}
	for _, st := range models.AllClaimStatuses {
		out.ByStatus[st] = byStatus[st]
		out.Total += byStatus[st]
	}

	if cacheable {
		if raw, err := json.Marshal(out); err == nil {
			stored, err := s.cache.SetIfGeneration(ctx, key, gen, raw, s.countTTL)
			switch {
			case err != nil:
				s.log.Warn("counts cache write failed", "key", key, "err", err)
			case !stored:
				s.log.Debug("counts changed during read, not cached", "key", key)
			}
		}
	}
	return out, nil
}

// Invalidate drops cached counts touched by a change to c. It is an engine listener.
func (s *Service) Invalidate(ctx context.Context, c *models.Claim) {
	if s.cache == nil || c == nil {
		return
	}
	if err := s.cache.Delete(ctx, countsKey(nil), countsKey(&c.ClaimantID)); err != nil {
		s.log.Warn("counts cache invalidation failed", "claim", c.ClaimNumber, "err", err)
	}
}

func (s *Service) load(ctx context.Context, id uuid.UUID, by documents.Viewer) (*models.Claim, error) {
	c, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !by.CanAccess(c) {
		return nil, claims.ErrForbidden
	}
	return c, nil
}

// Detail returns the claim if by may see it. Clients get no next statuses.
func (s *Service) Detail(ctx context.Context, id uuid.UUID, by documents.Viewer) (*Detail, error) {
	c, err := s.load(ctx, id, by)
	if err != nil {
		return nil, err
	}
	out := &Detail{Claim: c, NextStatuses: []models.ClaimStatus{}}
	if by.Staff {
		out.NextStatuses = claims.NextStatuses(c.Status)
	}
	return out, nil
}

// History replays the audit trail. A trail the table would not allow is
// reported, not hidden; it means the store was written around the engine.
func (s *Service) History(ctx context.Context, id uuid.UUID, by documents.Viewer) (*History, error) {
	c, err := s.load(ctx, id, by)
	if err != nil {
		return nil, err
	}
	out := &History{ClaimNumber: c.ClaimNumber, Entries: c.StatusHistory, Consistent: true}
	if out.Entries == nil {
		out.Entries = []models.StatusHistory{}
	}
	statuses, err := claims.Replay(c.StatusHistory)
	switch {
	case err != nil:
		out.Consistent, out.Problem = false, err.Error()
	case len(statuses) > 0 && statuses[len(statuses)-1] != c.Status:
		out.Consistent = false
		out.Problem = fmt.Sprintf("history ends at %s but claim is %s", statuses[len(statuses)-1], c.Status)
	}
	if !out.Consistent {
		s.log.Error("claim history does not replay", "claim", c.ClaimNumber, "problem", out.Problem)
	}
	return out, nil
}
