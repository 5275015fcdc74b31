package claims

import (
	"slices"

	"github.com/aldoetobex/claims-backend/pkg/models"
)

// validTransitions is the authoritative lifecycle table.
var validTransitions = map[models.ClaimStatus][]models.ClaimStatus{
	models.ClaimSubmitted: {
		models.ClaimUnderReview,
		models.ClaimClosed,
	},
	models.ClaimUnderReview: {
		models.ClaimDocumentsRequired,
		models.ClaimInvestigation,
		models.ClaimApproved,
		models.ClaimRejected,
		models.ClaimClosed,
	},
	models.ClaimDocumentsRequired: {
		models.ClaimUnderReview,
		models.ClaimClosed,
	},
	models.ClaimInvestigation: {
		models.ClaimApproved,
		models.ClaimRejected,
		models.ClaimClosed,
	},
	models.ClaimApproved: {
		models.ClaimPaid,
		models.ClaimClosed,
	},
	// Terminal states have no transitions
	models.ClaimPaid:     {},
	models.ClaimRejected: {},
	models.ClaimClosed:   {},
}

// CanTransition reports whether the table has an edge from -> to.
func CanTransition(from, to models.ClaimStatus) bool {
	return slices.Contains(validTransitions[from], to)
}

// NextStatuses returns the statuses reachable from the given one.
func NextStatuses(from models.ClaimStatus) []models.ClaimStatus {
	return slices.Clone(validTransitions[from])
}

// Replay walks a history and returns the sequence of statuses it records.
// It fails with InvalidTransitionError at the first entry the table would not allow.
func Replay(history []models.StatusHistory) ([]models.ClaimStatus, error) {
	out := make([]models.ClaimStatus, 0, len(history))
	for i, h := range history {
		if i == 0 {
			if h.Status != models.ClaimSubmitted {
				return out, &InvalidTransitionError{From: "", To: h.Status}
			}
		} else if !CanTransition(out[i-1], h.Status) {
			return out, &InvalidTransitionError{From: out[i-1], To: h.Status}
		}
		out = append(out, h.Status)
	}
	return out, nil
}

// NonTerminal lists the statuses that still have outgoing edges.
func NonTerminal() []models.ClaimStatus {
	out := make([]models.ClaimStatus, 0, len(models.AllClaimStatuses))
	for _, s := range models.AllClaimStatuses {
		if !s.IsTerminal() {
			out = append(out, s)
		}
	}
	return out
}
