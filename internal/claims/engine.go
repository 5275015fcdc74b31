// Package claims owns the claim lifecycle: the transition table, the payload
// each edge requires, the append-only status history and optimistic concurrency.
package claims

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aldoetobex/claims-backend/pkg/models"
	"github.com/aldoetobex/claims-backend/pkg/utils"
)

// NewClaim is the validated submission payload the engine turns into a claim.
type NewClaim struct {
	PolicyNumber       string
	ClaimantID         uuid.UUID
	ClaimantName       string
	ClaimType          string
	IncidentDate       time.Time
	ClaimAmount        int64
	Description        string
	Location           string
	Witnesses          []string
	PoliceReportNumber string
	HospitalName       string
	DoctorName         string
	PaymentDetails     models.PaymentDetails
}

// TransitionPayload carries the edge-specific fields of a transition.
type TransitionPayload struct {
	ApprovedAmount       *int64
	RejectionReason      string
	TransactionReference string
	Comment              string
}

// Listener is called after a create or transition has been committed.
type Listener func(ctx context.Context, c *models.Claim)

// Engine is the single writer of claim lifecycle state.
type Engine struct {
	store Store
	log   *slog.Logger

	// Now and NewNumber are replaceable in tests.
	Now       func() time.Time
	NewNumber func(time.Time) string

	mu        sync.RWMutex
	listeners []Listener
}

// NewEngine creates an engine over store.
func NewEngine(store Store, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{
		store:     store,
		log:       log.With("component", "claims"),
		Now:       func() time.Time { return time.Now().UTC() },
		NewNumber: utils.GenerateClaimNumber,
	}
}

// Subscribe registers l for every committed change.
func (e *Engine) Subscribe(l Listener) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listeners = append(e.listeners, l)
}

func (e *Engine) notify(ctx context.Context, c *models.Claim) {
	e.mu.RLock()
	ls := e.listeners
	e.mu.RUnlock()
	for _, l := range ls {
		l(ctx, c.Clone())
	}
}

// Get returns the latest stored state of a claim.
func (e *Engine) Get(ctx context.Context, id uuid.UUID) (*models.Claim, error) {
	return e.store.Get(ctx, id)
}

// GetByNumber looks a claim up by its human-readable number.
func (e *Engine) GetByNumber(ctx context.Context, number string) (*models.Claim, error) {
	return e.store.GetByNumber(ctx, number)
}

// DerivePriority is the default priority for a fresh claim.
func DerivePriority(claimType string, amount int64) models.Priority {
	switch {
	case amount >= 1_000_000:
		return models.PriorityHigh
	case strings.EqualFold(claimType, "Emergency"),
		strings.EqualFold(claimType, "Surgery"),
		strings.EqualFold(claimType, "Hospitalization"):
		return models.PriorityHigh
	case amount >= 100_000:
		return models.PriorityMedium
	default:
		return models.PriorityLow
	}
}

// Create persists a new claim in Submitted with its first history entry.
func (e *Engine) Create(ctx context.Context, in NewClaim, actor string) (*models.Claim, error) {
	if in.ClaimAmount <= 0 {
		return nil, NewValidationError("claim_amount", "Must be greater than 0")
	}
	if strings.TrimSpace(actor) == "" {
		return nil, NewValidationError("actor", "This field is required")
	}

	now := e.Now()
	c := &models.Claim{
		ID:                 uuid.New(),
		PolicyNumber:       in.PolicyNumber,
		ClaimantID:         in.ClaimantID,
		ClaimantName:       in.ClaimantName,
		ClaimType:          in.ClaimType,
		IncidentDate:       in.IncidentDate,
		ClaimAmount:        in.ClaimAmount,
		Description:        in.Description,
		Location:           in.Location,
		Witnesses:          in.Witnesses,
		PoliceReportNumber: in.PoliceReportNumber,
		HospitalName:       in.HospitalName,
		DoctorName:         in.DoctorName,
		PaymentDetails:     in.PaymentDetails,
		Status:             models.ClaimSubmitted,
		Priority:           DerivePriority(in.ClaimType, in.ClaimAmount),
		Version:            1,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	c.StatusHistory = []models.StatusHistory{{
		ClaimID:   c.ID,
		Seq:       1,
		Status:    models.ClaimSubmitted,
		Actor:     actor,
		Comment:   "claim submitted",
		Timestamp: now,
	}}

	// Claim numbers are random; retry the rare collision.
	var err error
	for attempt := 0; attempt < 3; attempt++ {
		c.ClaimNumber = e.NewNumber(now)
		if err = e.store.Create(ctx, c); !errors.Is(err, ErrDuplicateNumber) {
			break
		}
	}
	if err != nil {
		return nil, err
	}

	e.log.Info("claim created", "claim", c.ClaimNumber, "policy", c.PolicyNumber, "actor", actor)
	e.notify(ctx, c)
	return c.Clone(), nil
}

// Transition moves the claim to target. snapshot is the state the caller decided on;
// if the stored claim has moved past it the call fails with ErrConcurrentModification.
func (e *Engine) Transition(ctx context.Context, snapshot *models.Claim, target models.ClaimStatus, actor string, p TransitionPayload) (*models.Claim, error) {
	if snapshot == nil {
		return nil, ErrNotFound
	}
	if !target.Valid() {
		return nil, NewValidationError("status", fmt.Sprintf("Unknown status %q", target))
	}
	if strings.TrimSpace(actor) == "" {
		return nil, NewValidationError("actor", "This field is required")
	}

	latest, err := e.store.Get(ctx, snapshot.ID)
	if err != nil {
		return nil, err
	}
	if latest.Version != snapshot.Version {
		return nil, fmt.Errorf("%w: claim %s is at revision %d (%s), caller read %d",
			ErrConcurrentModification, latest.ClaimNumber, latest.Version, latest.Status, snapshot.Version)
	}
	if !CanTransition(latest.Status, target) {
		return nil, &InvalidTransitionError{From: latest.Status, To: target}
	}
	if err := checkPayload(latest, target, p); err != nil {
		return nil, err
	}

	now := e.Now()
	next := latest.Clone()
	next.Status = target
	switch target {
	case models.ClaimApproved:
		amount := *p.ApprovedAmount
		next.ApprovedAmount = &amount
	case models.ClaimRejected:
		next.RejectionReason = strings.TrimSpace(p.RejectionReason)
	case models.ClaimPaid:
		next.PaymentReference = strings.TrimSpace(p.TransactionReference)
	}
	entry := models.StatusHistory{
		ClaimID:   next.ID,
		Seq:       len(latest.StatusHistory) + 1,
		Status:    target,
		Actor:     actor,
		Comment:   strings.TrimSpace(p.Comment),
		Timestamp: now,
	}
	next.StatusHistory = append(next.StatusHistory, entry)
	next.Version = latest.Version + 1
	next.UpdatedAt = now

	if err := e.store.Save(ctx, next, latest.Version, []models.StatusHistory{entry}); err != nil {
		return nil, err
	}

	e.log.Info("claim transitioned",
		"claim", next.ClaimNumber, "from", latest.Status, "to", target, "actor", actor, "version", next.Version)
	e.notify(ctx, next)
	return next, nil
}

// AssignPriority changes the priority without touching the status history.
func (e *Engine) AssignPriority(ctx context.Context, snapshot *models.Claim, p models.Priority, actor string) (*models.Claim, error) {
	if snapshot == nil {
		return nil, ErrNotFound
	}
	if !p.Valid() {
		return nil, NewValidationError("priority", "Value is not allowed")
	}
	latest, err := e.store.Get(ctx, snapshot.ID)
	if err != nil {
		return nil, err
	}
	if latest.Version != snapshot.Version {
		return nil, fmt.Errorf("%w: claim %s is at revision %d, caller read %d",
			ErrConcurrentModification, latest.ClaimNumber, latest.Version, snapshot.Version)
	}
	if latest.Status.IsTerminal() {
		return nil, fmt.Errorf("%w: %s is %s", ErrClaimClosed, latest.ClaimNumber, latest.Status)
	}

	next := latest.Clone()
	next.Priority = p
	next.Version = latest.Version + 1
	next.UpdatedAt = e.Now()
	if err := e.store.Save(ctx, next, latest.Version, nil); err != nil {
		return nil, err
	}
	e.log.Info("claim priority assigned", "claim", next.ClaimNumber, "priority", p, "actor", actor)
	e.notify(ctx, next)
	return next, nil
}

// checkPayload enforces the fields each edge requires.
func checkPayload(c *models.Claim, target models.ClaimStatus, p TransitionPayload) error {
	switch target {
	case models.ClaimApproved:
		switch {
		case p.ApprovedAmount == nil:
			return NewValidationError("approved_amount", "This field is required")
		case *p.ApprovedAmount <= 0:
			return NewValidationError("approved_amount", "Must be greater than 0")
		case *p.ApprovedAmount > c.ClaimAmount:
			return NewValidationError("approved_amount",
				fmt.Sprintf("Must be less than or equal to the claimed amount %d", c.ClaimAmount))
		}
	case models.ClaimRejected:
		if strings.TrimSpace(p.RejectionReason) == "" {
			return NewValidationError("rejection_reason", "This field is required")
		}
	case models.ClaimPaid:
		if strings.TrimSpace(p.TransactionReference) == "" {
			return NewValidationError("transaction_reference", "This field is required")
		}
	}
	return nil
}
