// Package review turns staff decisions into lifecycle transitions.
package review

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/aldoetobex/claims-backend/internal/claims"
	"github.com/aldoetobex/claims-backend/pkg/models"
)

// Kind names a staff decision.
type Kind string

const (
	KindApprove          Kind = "approve"
	KindReject           Kind = "reject"
	KindRequestDocuments Kind = "request_documents"
	KindMarkPaid         Kind = "mark_paid"
	KindStartReview      Kind = "start_review"
	KindInvestigate      Kind = "investigate"
	KindClose            Kind = "close"
)

// Decision is one staff action against a claim.
type Decision struct {
	Kind Kind
	// Version is the claim revision the reviewer looked at. Nil means "latest".
	Version              *int64
	ApprovedAmount       *int64
	Reason               string
	Comment              string
	TransactionReference string
}

type Processor struct {
	engine *claims.Engine
}

func NewProcessor(engine *claims.Engine) *Processor { return &Processor{engine: engine} }

// precheck rejects terminal claims and statuses the decision does not start from.
func precheck(c *models.Claim, target models.ClaimStatus, from ...models.ClaimStatus) error {
	if c == nil {
		return claims.ErrNotFound
	}
	if c.Status.IsTerminal() {
		return fmt.Errorf("%w: %s is %s", claims.ErrClaimClosed, c.ClaimNumber, c.Status)
	}
	if !slices.Contains(from, c.Status) {
		return &claims.InvalidTransitionError{From: c.Status, To: target}
	}
	return nil
}

func required(field, v string) error {
	if strings.TrimSpace(v) == "" {
		return claims.NewValidationError(field, "This field is required")
	}
	return nil
}

// approvableFrom are the statuses a claim can be approved from.
var approvableFrom = []models.ClaimStatus{models.ClaimUnderReview, models.ClaimInvestigation}

// Approve records the amount the insurer will pay.
func (p *Processor) Approve(ctx context.Context, c *models.Claim, amount int64, comment, actor string) (*models.Claim, error) {
	if err := precheck(c, models.ClaimApproved, approvableFrom...); err != nil {
		return nil, err
	}
	switch {
	case amount <= 0:
		return nil, claims.NewValidationError("approved_amount", "Must be greater than 0")
	case amount > c.ClaimAmount:
		return nil, claims.NewValidationError("approved_amount",
			fmt.Sprintf("Must be less than or equal to the claimed amount %d", c.ClaimAmount))
	}
	return p.engine.Transition(ctx, c, models.ClaimApproved, actor, claims.TransitionPayload{
		ApprovedAmount: &amount,
		Comment:        comment,
	})
}

// Reject closes the claim without payment.
func (p *Processor) Reject(ctx context.Context, c *models.Claim, reason, comment, actor string) (*models.Claim, error) {
	if err := precheck(c, models.ClaimRejected, models.ClaimUnderReview, models.ClaimInvestigation); err != nil {
		return nil, err
	}
	if err := required("reason", reason); err != nil {
		return nil, err
	}
	return p.engine.Transition(ctx, c, models.ClaimRejected, actor, claims.TransitionPayload{
		RejectionReason: reason,
		Comment:         comment,
	})
}

// RequestDocuments asks the claimant for more evidence. The comment says what is missing.
func (p *Processor) RequestDocuments(ctx context.Context, c *models.Claim, comment, actor string) (*models.Claim, error) {
	if err := precheck(c, models.ClaimDocumentsRequired, models.ClaimUnderReview); err != nil {
		return nil, err
	}
	if err := required("comment", comment); err != nil {
		return nil, err
	}
	return p.engine.Transition(ctx, c, models.ClaimDocumentsRequired, actor, claims.TransitionPayload{Comment: comment})
}

// MarkPaid records that the payment collaborator settled an approved claim.
func (p *Processor) MarkPaid(ctx context.Context, c *models.Claim, transactionRef, comment, actor string) (*models.Claim, error) {
	if err := precheck(c, models.ClaimPaid, models.ClaimApproved); err != nil {
		return nil, err
	}
	if err := required("transaction_reference", transactionRef); err != nil {
		return nil, err
	}
	return p.engine.Transition(ctx, c, models.ClaimPaid, actor, claims.TransitionPayload{
		TransactionReference: transactionRef,
		Comment:              comment,
	})
}

// StartReview picks up a new claim, or resumes one whose documents arrived.
func (p *Processor) StartReview(ctx context.Context, c *models.Claim, comment, actor string) (*models.Claim, error) {
	if err := precheck(c, models.ClaimUnderReview, models.ClaimSubmitted, models.ClaimDocumentsRequired); err != nil {
		return nil, err
	}
	return p.engine.Transition(ctx, c, models.ClaimUnderReview, actor, claims.TransitionPayload{Comment: comment})
}

// Investigate escalates a claim under review.
func (p *Processor) Investigate(ctx context.Context, c *models.Claim, comment, actor string) (*models.Claim, error) {
	if err := precheck(c, models.ClaimInvestigation, models.ClaimUnderReview); err != nil {
		return nil, err
	}
	return p.engine.Transition(ctx, c, models.ClaimInvestigation, actor, claims.TransitionPayload{Comment: comment})
}

// Close ends a non-terminal claim administratively; a comment is mandatory.
func (p *Processor) Close(ctx context.Context, c *models.Claim, comment, actor string) (*models.Claim, error) {
	if c != nil && !c.Status.IsTerminal() {
		if err := required("comment", comment); err != nil {
			return nil, err
		}
	}
	if err := precheck(c, models.ClaimClosed, claims.NonTerminal()...); err != nil {
		return nil, err
	}
	return p.engine.Transition(ctx, c, models.ClaimClosed, actor, claims.TransitionPayload{Comment: comment})
}

// Apply loads the claim and dispatches d. A stale d.Version fails with
// ErrConcurrentModification before anything else is checked.
func (p *Processor) Apply(ctx context.Context, id uuid.UUID, d Decision, actor string) (*models.Claim, error) {
	c, err := p.engine.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if d.Version != nil && *d.Version != c.Version {
		return nil, fmt.Errorf("%w: claim %s is at revision %d, decision was made on %d",
			claims.ErrConcurrentModification, c.ClaimNumber, c.Version, *d.Version)
	}

	switch d.Kind {
	case KindApprove:
		if err := precheck(c, models.ClaimApproved, approvableFrom...); err != nil {
			return nil, err
		}
		if d.ApprovedAmount == nil {
			return nil, claims.NewValidationError("approved_amount", "This field is required")
		}
		return p.Approve(ctx, c, *d.ApprovedAmount, d.Comment, actor)
	case KindReject:
		return p.Reject(ctx, c, d.Reason, d.Comment, actor)
	case KindRequestDocuments:
		return p.RequestDocuments(ctx, c, d.Comment, actor)
	case KindMarkPaid:
		return p.MarkPaid(ctx, c, d.TransactionReference, d.Comment, actor)
	case KindStartReview:
		return p.StartReview(ctx, c, d.Comment, actor)
	case KindInvestigate:
		return p.Investigate(ctx, c, d.Comment, actor)
	case KindClose:
		return p.Close(ctx, c, d.Comment, actor)
	}
	return nil, claims.NewValidationError("kind", fmt.Sprintf("Unknown decision %q", d.Kind))
}

// AssignPriority re-prioritises a claim in the review queue.
func (p *Processor) AssignPriority(ctx context.Context, id uuid.UUID, version *int64, pr models.Priority, actor string) (*models.Claim, error) {
	c, err := p.engine.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if version != nil && *version != c.Version {
		return nil, fmt.Errorf("%w: claim %s is at revision %d, caller read %d",
			claims.ErrConcurrentModification, c.ClaimNumber, c.Version, *version)
	}
	return p.engine.AssignPriority(ctx, c, pr, actor)
}
