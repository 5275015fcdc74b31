package review

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aldoetobex/claims-backend/internal/claims"
	"github.com/aldoetobex/claims-backend/pkg/models"
)

func newProcessor(t *testing.T) (*Processor, *claims.Engine) {
	t.Helper()
	e := claims.NewEngine(claims.NewMemoryStore(), nil)
	e.Now = func() time.Time { return time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC) }
	return NewProcessor(e), e
}

func submitted(t *testing.T, e *claims.Engine, amount int64) *models.Claim {
	t.Helper()
	c, err := e.Create(context.Background(), claims.NewClaim{
		PolicyNumber: "E390073",
		ClaimantID:   uuid.New(),
		ClaimantName: "Ada Client",
		ClaimType:    "Hospitalization",
		IncidentDate: time.Date(2026, 10, 14, 0, 0, 0, 0, time.UTC),
		ClaimAmount:  amount,
		Description:  "Admitted overnight after a fall at home, two nights.",
	}, "client:Ada Client")
	require.NoError(t, err)
	return c
}

func underReview(t *testing.T, p *Processor, e *claims.Engine, amount int64) *models.Claim {
	t.Helper()
	c, err := p.StartReview(context.Background(), submitted(t, e, amount), "", "staff:Sam")
	require.NoError(t, err)
	return c
}

func TestApprove_WithinClaimAmount(t *testing.T) {
	p, e := newProcessor(t)
	c := underReview(t, p, e, 2500000)

	got, err := p.Approve(context.Background(), c, 2300000, "partial cover", "staff:Sam")
	require.NoError(t, err)
	assert.Equal(t, models.ClaimApproved, got.Status)
	require.NotNil(t, got.ApprovedAmount)
	assert.Equal(t, int64(2300000), *got.ApprovedAmount)
	assert.Equal(t, "partial cover", got.StatusHistory[len(got.StatusHistory)-1].Comment)
}

func TestApprove_AmountBounds(t *testing.T) {
	p, e := newProcessor(t)
	c := underReview(t, p, e, 2500000)

	for _, amt := range []int64{0, -5, 2500001} {
		_, err := p.Approve(context.Background(), c, amt, "", "staff:Sam")
		assert.ErrorIs(t, err, claims.ErrValidation, "amount %d", amt)
	}

	latest, err := e.Get(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ClaimUnderReview, latest.Status)
	assert.Equal(t, c.Version, latest.Version)
}

func TestApprove_FromSubmittedIsInvalid(t *testing.T) {
	p, e := newProcessor(t)
	c := submitted(t, e, 100000)

	_, err := p.Approve(context.Background(), c, 50000, "", "staff:Sam")
	var ite *claims.InvalidTransitionError
	require.ErrorAs(t, err, &ite)
	assert.Equal(t, models.ClaimSubmitted, ite.From)
	assert.Equal(t, models.ClaimApproved, ite.To)
}

func TestMarkPaid_ThenRejectFails(t *testing.T) {
	p, e := newProcessor(t)
	c := underReview(t, p, e, 2500000)
	c, err := p.Approve(context.Background(), c, 2500000, "", "staff:Sam")
	require.NoError(t, err)

	_, err = p.MarkPaid(context.Background(), c, "  ", "", "staff:Sam")
	assert.ErrorIs(t, err, claims.ErrValidation)

	paid, err := p.MarkPaid(context.Background(), c, "TRX-1", "", "staff:Sam")
	require.NoError(t, err)
	assert.Equal(t, models.ClaimPaid, paid.Status)
	assert.Equal(t, "TRX-1", paid.PaymentReference)
	assert.True(t, paid.Status.IsTerminal())

	_, err = p.Reject(context.Background(), paid, "changed mind", "", "staff:Sam")
	assert.ErrorIs(t, err, claims.ErrClaimClosed)
	_, err = p.Close(context.Background(), paid, "", "staff:Sam")
	assert.ErrorIs(t, err, claims.ErrClaimClosed)
}

func TestReject_RequiresReason(t *testing.T) {
	p, e := newProcessor(t)
	c := underReview(t, p, e, 100000)

	_, err := p.Reject(context.Background(), c, "", "", "staff:Sam")
	var ve *claims.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve.Fields, "reason")

	got, err := p.Reject(context.Background(), c, "Policy lapsed at incident date", "", "staff:Sam")
	require.NoError(t, err)
	assert.Equal(t, models.ClaimRejected, got.Status)
	assert.Equal(t, "Policy lapsed at incident date", got.RejectionReason)
}

func TestRequestDocuments_RoundTrip(t *testing.T) {
	p, e := newProcessor(t)
	c := underReview(t, p, e, 100000)

	_, err := p.RequestDocuments(context.Background(), c, "", "staff:Sam")
	assert.ErrorIs(t, err, claims.ErrValidation)

	c, err = p.RequestDocuments(context.Background(), c, "Please upload the discharge summary", "staff:Sam")
	require.NoError(t, err)
	assert.Equal(t, models.ClaimDocumentsRequired, c.Status)

	_, err = p.Investigate(context.Background(), c, "", "staff:Sam")
	assert.ErrorIs(t, err, claims.ErrInvalidTransition)

	c, err = p.StartReview(context.Background(), c, "documents received", "staff:Sam")
	require.NoError(t, err)
	assert.Equal(t, models.ClaimUnderReview, c.Status)

	c, err = p.Investigate(context.Background(), c, "", "staff:Sam")
	require.NoError(t, err)
	c, err = p.Approve(context.Background(), c, 90000, "", "staff:Sam")
	require.NoError(t, err)

	statuses, err := claims.Replay(c.StatusHistory)
	require.NoError(t, err)
	assert.Equal(t, []models.ClaimStatus{
		models.ClaimSubmitted, models.ClaimUnderReview, models.ClaimDocumentsRequired,
		models.ClaimUnderReview, models.ClaimInvestigation, models.ClaimApproved,
	}, statuses)
}

func TestClose_RequiresComment(t *testing.T) {
	p, e := newProcessor(t)
	c := submitted(t, e, 100000)

	_, err := p.Close(context.Background(), c, " ", "staff:Sam")
	assert.ErrorIs(t, err, claims.ErrValidation)

	got, err := p.Close(context.Background(), c, "Duplicate of CLM-20261014-ABCDEF", "staff:Sam")
	require.NoError(t, err)
	assert.Equal(t, models.ClaimClosed, got.Status)
}

func TestApply_StaleVersion(t *testing.T) {
	p, e := newProcessor(t)
	c := underReview(t, p, e, 100000)
	stale := c.Version - 1

	_, err := p.Apply(context.Background(), c.ID, Decision{Kind: KindInvestigate, Version: &stale}, "staff:Sam")
	assert.ErrorIs(t, err, claims.ErrConcurrentModification)

	cur := c.Version
	got, err := p.Apply(context.Background(), c.ID, Decision{Kind: KindInvestigate, Version: &cur}, "staff:Sam")
	require.NoError(t, err)
	assert.Equal(t, models.ClaimInvestigation, got.Status)
}

func TestApply_Dispatch(t *testing.T) {
	p, e := newProcessor(t)
	c := underReview(t, p, e, 100000)

	_, err := p.Apply(context.Background(), c.ID, Decision{Kind: KindApprove}, "staff:Sam")
	assert.ErrorIs(t, err, claims.ErrValidation)

	_, err = p.Apply(context.Background(), c.ID, Decision{Kind: "escalate"}, "staff:Sam")
	assert.ErrorIs(t, err, claims.ErrValidation)

	_, err = p.Apply(context.Background(), uuid.New(), Decision{Kind: KindClose, Comment: "x"}, "staff:Sam")
	assert.ErrorIs(t, err, claims.ErrNotFound)

	got, err := p.Apply(context.Background(), c.ID, Decision{Kind: KindApprove, ApprovedAmount: amount(100000)}, "staff:Sam")
	require.NoError(t, err)
	assert.Equal(t, models.ClaimApproved, got.Status)

	got, err = p.Apply(context.Background(), c.ID, Decision{Kind: KindMarkPaid, TransactionReference: "TRX-9"}, "staff:Sam")
	require.NoError(t, err)
	assert.Equal(t, models.ClaimPaid, got.Status)
	// Status is checked before the payload.
	_, err = p.Apply(context.Background(), c.ID, Decision{Kind: KindApprove}, "staff:Sam")
	assert.ErrorIs(t, err, claims.ErrClaimClosed)

	fresh := submitted(t, e, 100000)
	_, err = p.Apply(context.Background(), fresh.ID, Decision{Kind: KindApprove}, "staff:Sam")
	var ite *claims.InvalidTransitionError
	assert.True(t, errors.As(err, &ite), "got %v", err)
}

func TestConcurrentApproveAndReject_OneWins(t *testing.T) {
	p, e := newProcessor(t)
	c := underReview(t, p, e, 100000)

	var (
		wg   sync.WaitGroup
		errs = make([]error, 2)
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, errs[0] = p.Approve(context.Background(), c, 100000, "", "staff:Sam")
	}()
	go func() {
		defer wg.Done()
		_, errs[1] = p.Reject(context.Background(), c, "not covered", "", "staff:Kim")
	}()
	wg.Wait()

	failed := 0
	for _, err := range errs {
		if err != nil {
			failed++
			assert.True(t, errors.Is(err, claims.ErrConcurrentModification) || errors.Is(err, claims.ErrClaimClosed),
				"unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, failed)

	latest, err := e.Get(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Contains(t, []models.ClaimStatus{models.ClaimApproved, models.ClaimRejected}, latest.Status)
	assert.Len(t, latest.StatusHistory, 3)
}

func TestAssignPriority(t *testing.T) {
	p, e := newProcessor(t)
	c := submitted(t, e, 100000)

	got, err := p.AssignPriority(context.Background(), c.ID, nil, models.PriorityHigh, "staff:Sam")
	require.NoError(t, err)
	assert.Equal(t, models.PriorityHigh, got.Priority)
	assert.Equal(t, models.ClaimSubmitted, got.Status)
	assert.Len(t, got.StatusHistory, 1)

	stale := c.Version
	_, err = p.AssignPriority(context.Background(), c.ID, &stale, models.PriorityLow, "staff:Sam")
	assert.ErrorIs(t, err, claims.ErrConcurrentModification)
}

func amount(v int64) *int64 { return &v }
