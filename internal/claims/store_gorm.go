package claims

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/aldoetobex/claims-backend/pkg/models"
)

// GormStore is the Postgres-backed Store.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore wraps an opened gorm connection.
func NewGormStore(db *gorm.DB) *GormStore { return &GormStore{db: db} }

func (s *GormStore) Create(ctx context.Context, c *models.Claim) error {
	err := s.db.WithContext(ctx).Create(c).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("%w: %s", ErrDuplicateNumber, c.ClaimNumber)
	}
	return err
}

func (s *GormStore) withRelations(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).
		Preload("StatusHistory", func(db *gorm.DB) *gorm.DB { return db.Order("seq ASC") }).
		Preload("Documents", func(db *gorm.DB) *gorm.DB { return db.Order("uploaded_at ASC") })
}

func (s *GormStore) Get(ctx context.Context, id uuid.UUID) (*models.Claim, error) {
	var c models.Claim
	if err := s.withRelations(ctx).First(&c, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, err
	}
	return &c, nil
}

func (s *GormStore) GetByNumber(ctx context.Context, number string) (*models.Claim, error) {
	var c models.Claim
	if err := s.withRelations(ctx).First(&c, "claim_number = ?", number).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, number)
		}
		return nil, err
	}
	return &c, nil
}

// bumpVersion is the compare-and-swap every write goes through.
func bumpVersion(tx *gorm.DB, id uuid.UUID, expected int64, cols map[string]any) error {
	cols["version"] = expected + 1
	if _, ok := cols["updated_at"]; !ok {
		cols["updated_at"] = time.Now().UTC()
	}
	res := tx.Model(&models.Claim{}).
		Where("id = ? AND version = ?", id, expected).
		Updates(cols)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		var n int64
		if err := tx.Model(&models.Claim{}).Where("id = ?", id).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return fmt.Errorf("%w: claim %s moved past revision %d", ErrConcurrentModification, id, expected)
	}
	return nil
}

func (s *GormStore) Save(ctx context.Context, c *models.Claim, expected int64, appended []models.StatusHistory) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := bumpVersion(tx, c.ID, expected, map[string]any{
			"status":            c.Status,
			"approved_amount":   c.ApprovedAmount,
			"rejection_reason":  c.RejectionReason,
			"payment_reference": c.PaymentReference,
			"priority":          c.Priority,
			"updated_at":        c.UpdatedAt,
		}); err != nil {
			return err
		}
		if len(appended) == 0 {
			return nil
		}
		rows := make([]models.StatusHistory, len(appended))
		copy(rows, appended)
		for i := range rows {
			rows[i].ClaimID = c.ID
		}
		return tx.Create(&rows).Error
	})
}

func (s *GormStore) AddDocuments(ctx context.Context, claimID uuid.UUID, expected int64, docs []models.Document) error {
	if len(docs) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := bumpVersion(tx, claimID, expected, map[string]any{}); err != nil {
			return err
		}
		rows := make([]models.Document, len(docs))
		copy(rows, docs)
		for i := range rows {
			rows[i].ClaimID = claimID
		}
		return tx.Create(&rows).Error
	})
}

func (s *GormStore) Document(ctx context.Context, id uuid.UUID) (*models.Document, error) {
	var d models.Document
	if err := s.db.WithContext(ctx).First(&d, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: document %s", ErrNotFound, id)
		}
		return nil, err
	}
	return &d, nil
}

// likeEscaper makes user search text match literally inside a LIKE pattern.
var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

func (s *GormStore) filtered(ctx context.Context, f ListFilter) *gorm.DB {
	q := s.db.WithContext(ctx).Model(&models.Claim{})
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.ClaimType != "" {
		q = q.Where("LOWER(claim_type) = ?", strings.ToLower(f.ClaimType))
	}
	if f.ClaimantID != nil {
		q = q.Where("claimant_id = ?", *f.ClaimantID)
	}
	if term := strings.ToLower(strings.TrimSpace(f.Search)); term != "" {
		like := "%" + likeEscaper.Replace(term) + "%"
		q = q.Where(`(LOWER(claim_number) LIKE ? ESCAPE '\' OR LOWER(policy_number) LIKE ? ESCAPE '\'`+
			` OR LOWER(claimant_name) LIKE ? ESCAPE '\' OR CAST(claimant_id AS TEXT) LIKE ? ESCAPE '\')`,
			like, like, like, like)
	}
	return q
}

func (s *GormStore) List(ctx context.Context, f ListFilter) ([]models.Claim, int64, error) {
	var total int64
	if err := s.filtered(ctx, f).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	q := s.filtered(ctx, f).
		Preload("Documents").
		Order("created_at DESC, claim_number DESC")
	if f.Offset > 0 {
		q = q.Offset(f.Offset)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	rows := make([]models.Claim, 0)
	if err := q.Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

func (s *GormStore) CountByStatus(ctx context.Context, claimantID *uuid.UUID) (map[models.ClaimStatus]int64, error) {
	var rows []struct {
		Status models.ClaimStatus
		N      int64
	}
	q := s.filtered(ctx, ListFilter{ClaimantID: claimantID}).
		Select("status, COUNT(*) AS n").
		Group("status")
	if err := q.Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[models.ClaimStatus]int64, len(rows))
	for _, r := range rows {
		out[r.Status] = r.N
	}
	return out, nil
}

func (s *GormStore) InStatus(ctx context.Context, status models.ClaimStatus) ([]models.Claim, error) {
	rows := make([]models.Claim, 0)
	err := s.db.WithContext(ctx).
		Preload("StatusHistory", func(db *gorm.DB) *gorm.DB { return db.Order("seq ASC") }).
		Where("status = ?", status).
		Order("updated_at ASC").
		Find(&rows).Error
	return rows, err
}
