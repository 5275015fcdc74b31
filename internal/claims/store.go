package claims

import (
	"context"

	"github.com/google/uuid"

	"github.com/aldoetobex/claims-backend/pkg/models"
)

// ListFilter narrows a claim listing. Zero values mean "any".
type ListFilter struct {
	Status     models.ClaimStatus
	ClaimType  string
	Search     string
	ClaimantID *uuid.UUID
	Offset     int
	Limit      int
}

// Store persists claims. Writes are compare-and-swap on Claim.Version:
// they fail with ErrConcurrentModification when the stored revision moved on.
type Store interface {
	Create(ctx context.Context, c *models.Claim) error
	Get(ctx context.Context, id uuid.UUID) (*models.Claim, error)
	GetByNumber(ctx context.Context, number string) (*models.Claim, error)

	// Save persists c (already at its new Version) if the stored row is still at expected.
	// appended are the history entries added by this write.
	Save(ctx context.Context, c *models.Claim, expected int64, appended []models.StatusHistory) error

	// AddDocuments inserts docs and bumps the claim revision from expected.
	AddDocuments(ctx context.Context, claimID uuid.UUID, expected int64, docs []models.Document) error
	Document(ctx context.Context, id uuid.UUID) (*models.Document, error)

	List(ctx context.Context, f ListFilter) ([]models.Claim, int64, error)
	CountByStatus(ctx context.Context, claimantID *uuid.UUID) (map[models.ClaimStatus]int64, error)
	InStatus(ctx context.Context, status models.ClaimStatus) ([]models.Claim, error)
}
