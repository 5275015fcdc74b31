package claims

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aldoetobex/claims-backend/pkg/models"
)

/* ============================================================================
   Helpers
   ============================================================================ */

func newTestEngine(t *testing.T) (*Engine, *MemoryStore) {
	t.Helper()
	store := NewMemoryStore()
	e := NewEngine(store, nil)
	e.Now = func() time.Time { return time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC) }
	return e, store
}

func createClaim(t *testing.T, e *Engine, amount int64) *models.Claim {
	t.Helper()
	c, err := e.Create(context.Background(), NewClaim{
		PolicyNumber: "E390073",
		ClaimantID:   uuid.New(),
		ClaimantName: "Ada Client",
		ClaimType:    "Hospitalization",
		IncidentDate: time.Date(2026, 10, 14, 0, 0, 0, 0, time.UTC),
		ClaimAmount:  amount,
		Description:  "Admitted overnight after a fall at home, two nights.",
	}, "client-1")
	require.NoError(t, err)
	return c
}

// walk drives a claim through the given statuses with valid payloads.
func walk(t *testing.T, e *Engine, c *models.Claim, path ...models.ClaimStatus) *models.Claim {
	t.Helper()
	for _, to := range path {
		p := TransitionPayload{Comment: "step to " + string(to)}
		switch to {
		case models.ClaimApproved:
			amt := c.ClaimAmount
			p.ApprovedAmount = &amt
		case models.ClaimRejected:
			p.RejectionReason = "not covered"
		case models.ClaimPaid:
			p.TransactionReference = "TRX-1"
		}
		next, err := e.Transition(context.Background(), c, to, "staff-1", p)
		require.NoError(t, err, "transition %s -> %s", c.Status, to)
		c = next
	}
	return c
}

func amountPtr(v int64) *int64 { return &v }

/* ============================================================================
   Tests
   ============================================================================ */

func TestCreate_StartsSubmittedWithHistory(t *testing.T) {
	e, _ := newTestEngine(t)
	c := createClaim(t, e, 800000)

	assert.Equal(t, models.ClaimSubmitted, c.Status)
	assert.Regexp(t, `^CLM-20261015-[A-Z2-9]{6}$`, c.ClaimNumber)
	require.Len(t, c.StatusHistory, 1)
	assert.Equal(t, models.ClaimSubmitted, c.LastStatus())
	assert.Equal(t, "client-1", c.StatusHistory[0].Actor)
	assert.Equal(t, int64(1), c.Version)
	assert.Equal(t, models.PriorityHigh, c.Priority)
	assert.Nil(t, c.ApprovedAmount)
	assert.Empty(t, c.RejectionReason)
}

func TestCreate_RetriesDuplicateNumber(t *testing.T) {
	e, _ := newTestEngine(t)
	numbers := []string{"CLM-1", "CLM-1", "CLM-2"}
	e.NewNumber = func(time.Time) string {
		n := numbers[0]
		numbers = numbers[1:]
		return n
	}
	first := createClaim(t, e, 1000)
	second := createClaim(t, e, 1000)
	assert.Equal(t, "CLM-1", first.ClaimNumber)
	assert.Equal(t, "CLM-2", second.ClaimNumber)
}

func TestTransition_SubmittedToApprovedIsInvalid(t *testing.T) {
	e, _ := newTestEngine(t)
	c := createClaim(t, e, 800000)

	_, err := e.Transition(context.Background(), c, models.ClaimApproved, "staff-1",
		TransitionPayload{ApprovedAmount: amountPtr(1000)})

	var ite *InvalidTransitionError
	require.ErrorAs(t, err, &ite)
	assert.Equal(t, models.ClaimSubmitted, ite.From)
	assert.Equal(t, models.ClaimApproved, ite.To)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestTransition_TableIsEnforcedForEveryPair(t *testing.T) {
	paths := map[models.ClaimStatus][]models.ClaimStatus{
		models.ClaimSubmitted:         nil,
		models.ClaimUnderReview:       {models.ClaimUnderReview},
		models.ClaimDocumentsRequired: {models.ClaimUnderReview, models.ClaimDocumentsRequired},
		models.ClaimInvestigation:     {models.ClaimUnderReview, models.ClaimInvestigation},
		models.ClaimApproved:          {models.ClaimUnderReview, models.ClaimApproved},
		models.ClaimPaid:              {models.ClaimUnderReview, models.ClaimApproved, models.ClaimPaid},
		models.ClaimRejected:          {models.ClaimUnderReview, models.ClaimRejected},
		models.ClaimClosed:            {models.ClaimClosed},
	}

	for from, path := range paths {
		for _, to := range models.AllClaimStatuses {
			t.Run(fmt.Sprintf("%s->%s", from, to), func(t *testing.T) {
				e, _ := newTestEngine(t)
				c := walk(t, e, createClaim(t, e, 5000), path...)
				require.Equal(t, from, c.Status)

				p := TransitionPayload{
					ApprovedAmount:       amountPtr(4000),
					RejectionReason:      "duplicate",
					TransactionReference: "TRX-9",
				}
				next, err := e.Transition(context.Background(), c, to, "staff-1", p)
				if CanTransition(from, to) {
					require.NoError(t, err)
					assert.Equal(t, to, next.Status)
					assert.Equal(t, next.Status, next.LastStatus())
					assert.Len(t, next.StatusHistory, len(c.StatusHistory)+1)
				} else {
					assert.ErrorIs(t, err, ErrInvalidTransition)
				}
			})
		}
	}
}

func TestTransition_TerminalStatesAcceptNothing(t *testing.T) {
	for _, path := range [][]models.ClaimStatus{
		{models.ClaimUnderReview, models.ClaimApproved, models.ClaimPaid},
		{models.ClaimUnderReview, models.ClaimRejected},
		{models.ClaimClosed},
	} {
		e, _ := newTestEngine(t)
		c := walk(t, e, createClaim(t, e, 5000), path...)
		require.True(t, c.Status.IsTerminal())
		assert.Empty(t, NextStatuses(c.Status))

		for _, to := range models.AllClaimStatuses {
			_, err := e.Transition(context.Background(), c, to, "staff-1", TransitionPayload{
				ApprovedAmount: amountPtr(1), RejectionReason: "x", TransactionReference: "y",
			})
			assert.ErrorIs(t, err, ErrInvalidTransition, "%s -> %s", c.Status, to)
		}
	}
}

func TestTransition_ApprovePayload(t *testing.T) {
	tests := []struct {
		name   string
		amount *int64
		ok     bool
	}{
		{"missing", nil, false},
		{"zero", amountPtr(0), false},
		{"negative", amountPtr(-5), false},
		{"above claim", amountPtr(2_500_001), false},
		{"equal to claim", amountPtr(2_500_000), true},
		{"partial", amountPtr(2_300_000), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, _ := newTestEngine(t)
			c := walk(t, e, createClaim(t, e, 2_500_000), models.ClaimUnderReview)

			next, err := e.Transition(context.Background(), c, models.ClaimApproved, "staff-1",
				TransitionPayload{ApprovedAmount: tt.amount})
			if !tt.ok {
				var ve *ValidationError
				require.ErrorAs(t, err, &ve)
				assert.Contains(t, ve.Fields, "approved_amount")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, *tt.amount, *next.ApprovedAmount)
			assert.Empty(t, next.RejectionReason)
		})
	}
}

func TestTransition_RejectAndPaidRequireFields(t *testing.T) {
	e, _ := newTestEngine(t)
	c := walk(t, e, createClaim(t, e, 5000), models.ClaimUnderReview)

	_, err := e.Transition(context.Background(), c, models.ClaimRejected, "staff-1", TransitionPayload{RejectionReason: "  "})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve.Fields, "rejection_reason")

	c = walk(t, e, c, models.ClaimApproved)
	_, err = e.Transition(context.Background(), c, models.ClaimPaid, "staff-1", TransitionPayload{})
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve.Fields, "transaction_reference")

	paid := walk(t, e, c, models.ClaimPaid)
	assert.Equal(t, "TRX-1", paid.PaymentReference)
	assert.Equal(t, models.ClaimSubmitted, paid.StatusHistory[0].Status)
	assert.Equal(t, models.ClaimPaid, paid.LastStatus())
}

func TestTransition_StaleSnapshotFails(t *testing.T) {
	e, _ := newTestEngine(t)
	c := createClaim(t, e, 5000)
	walk(t, e, c, models.ClaimUnderReview)

	// c still says Submitted at revision 1.
	_, err := e.Transition(context.Background(), c, models.ClaimClosed, "staff-2", TransitionPayload{})
	assert.ErrorIs(t, err, ErrConcurrentModification)
}

func TestTransition_ConcurrentDecisionsExactlyOneWins(t *testing.T) {
	e, _ := newTestEngine(t)
	c := walk(t, e, createClaim(t, e, 5000), models.ClaimUnderReview)

	const racers = 8
	var wg sync.WaitGroup
	errs := make([]error, racers)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p := TransitionPayload{ApprovedAmount: amountPtr(100), RejectionReason: "fraud"}
			to := models.ClaimApproved
			if i%2 == 1 {
				to = models.ClaimRejected
			}
			_, errs[i] = e.Transition(context.Background(), c, to, fmt.Sprintf("staff-%d", i), p)
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		assert.ErrorIs(t, err, ErrConcurrentModification)
	}
	assert.Equal(t, 1, wins)

	final, err := e.Get(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Len(t, final.StatusHistory, 3)
	assert.Equal(t, final.Status, final.LastStatus())
	assert.False(t, final.ApprovedAmount != nil && final.RejectionReason != "")
}

func TestTransition_HistoryIsAppendOnlyAndReplayable(t *testing.T) {
	e, _ := newTestEngine(t)
	c := createClaim(t, e, 5000)
	c = walk(t, e, c,
		models.ClaimUnderReview, models.ClaimDocumentsRequired, models.ClaimUnderReview,
		models.ClaimInvestigation, models.ClaimApproved, models.ClaimPaid)

	seq, err := Replay(c.StatusHistory)
	require.NoError(t, err)
	assert.Equal(t, []models.ClaimStatus{
		models.ClaimSubmitted, models.ClaimUnderReview, models.ClaimDocumentsRequired, models.ClaimUnderReview,
		models.ClaimInvestigation, models.ClaimApproved, models.ClaimPaid,
	}, seq)
	for i, h := range c.StatusHistory {
		assert.Equal(t, i+1, h.Seq)
	}
	assert.Equal(t, int64(len(c.StatusHistory)), c.Version)
}

func TestReplay_RejectsImpossibleHistory(t *testing.T) {
	_, err := Replay([]models.StatusHistory{
		{Status: models.ClaimSubmitted},
		{Status: models.ClaimPaid},
	})
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestAssignPriority(t *testing.T) {
	e, _ := newTestEngine(t)
	c := createClaim(t, e, 5000)

	next, err := e.AssignPriority(context.Background(), c, models.PriorityLow, "staff-1")
	require.NoError(t, err)
	assert.Equal(t, models.PriorityLow, next.Priority)
	assert.Len(t, next.StatusHistory, 1)

	_, err = e.AssignPriority(context.Background(), next, "urgent", "staff-1")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = e.AssignPriority(context.Background(), c, models.PriorityHigh, "staff-1")
	assert.ErrorIs(t, err, ErrConcurrentModification)
}

func TestSubscribe_SeesCommittedChanges(t *testing.T) {
	e, _ := newTestEngine(t)
	var mu sync.Mutex
	var seen []models.ClaimStatus
	e.Subscribe(func(_ context.Context, c *models.Claim) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, c.Status)
	})

	c := createClaim(t, e, 5000)
	_, err := e.Transition(context.Background(), c, models.ClaimApproved, "staff-1", TransitionPayload{})
	require.Error(t, err)
	walk(t, e, c, models.ClaimUnderReview)

	assert.Equal(t, []models.ClaimStatus{models.ClaimSubmitted, models.ClaimUnderReview}, seen)
}

func TestDerivePriority(t *testing.T) {
	assert.Equal(t, models.PriorityHigh, DerivePriority("Accident", 1_000_000))
	assert.Equal(t, models.PriorityHigh, DerivePriority("Emergency", 10))
	assert.Equal(t, models.PriorityMedium, DerivePriority("Theft", 100_000))
	assert.Equal(t, models.PriorityLow, DerivePriority("Other", 99_999))
}

func TestErrors_AreDistinguishable(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", &TooManyFilesError{Existing: 10, Adding: 1, Limit: 10})
	assert.ErrorIs(t, err, ErrTooManyFiles)
	assert.False(t, errors.Is(err, ErrValidation))
	assert.ErrorIs(t, &IncompleteStepError{Step: "claim_details"}, ErrValidation)
}
