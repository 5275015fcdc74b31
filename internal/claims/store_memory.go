package claims

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aldoetobex/claims-backend/pkg/models"
)

// MemoryStore is an in-process Store. Reads return copies.
type MemoryStore struct {
	mu       sync.RWMutex
	claims   map[uuid.UUID]*models.Claim
	byNumber map[string]uuid.UUID
	docs     map[uuid.UUID]models.Document
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		claims:   make(map[uuid.UUID]*models.Claim),
		byNumber: make(map[string]uuid.UUID),
		docs:     make(map[uuid.UUID]models.Document),
	}
}

func (s *MemoryStore) Create(_ context.Context, c *models.Claim) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.byNumber[c.ClaimNumber]; taken {
		return fmt.Errorf("%w: %s", ErrDuplicateNumber, c.ClaimNumber)
	}
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	for i := range c.StatusHistory {
		c.StatusHistory[i].ClaimID = c.ID
	}
	s.claims[c.ID] = c.Clone()
	s.byNumber[c.ClaimNumber] = c.ID
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id uuid.UUID) (*models.Claim, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.claims[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return c.Clone(), nil
}

func (s *MemoryStore) GetByNumber(ctx context.Context, number string) (*models.Claim, error) {
	s.mu.RLock()
	id, ok := s.byNumber[number]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, number)
	}
	return s.Get(ctx, id)
}

func (s *MemoryStore) Save(_ context.Context, c *models.Claim, expected int64, _ []models.StatusHistory) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.claims[c.ID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, c.ID)
	}
	if cur.Version != expected {
		return fmt.Errorf("%w: claim %s is at revision %d, expected %d", ErrConcurrentModification, c.ID, cur.Version, expected)
	}
	next := c.Clone()
	next.Documents = cur.Documents
	s.claims[c.ID] = next
	return nil
}

func (s *MemoryStore) AddDocuments(_ context.Context, claimID uuid.UUID, expected int64, docs []models.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.claims[claimID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, claimID)
	}
	if cur.Version != expected {
		return fmt.Errorf("%w: claim %s is at revision %d, expected %d", ErrConcurrentModification, claimID, cur.Version, expected)
	}
	next := cur.Clone()
	for _, d := range docs {
		if d.ID == uuid.Nil {
			d.ID = uuid.New()
		}
		d.ClaimID = claimID
		next.Documents = append(next.Documents, d)
		s.docs[d.ID] = d
	}
	next.Version++
	next.UpdatedAt = time.Now().UTC()
	s.claims[claimID] = next
	return nil
}

func (s *MemoryStore) Document(_ context.Context, id uuid.UUID) (*models.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.docs[id]
	if !ok {
		return nil, fmt.Errorf("%w: document %s", ErrNotFound, id)
	}
	return &d, nil
}

func (s *MemoryStore) List(_ context.Context, f ListFilter) ([]models.Claim, int64, error) {
	s.mu.RLock()
	matched := make([]models.Claim, 0, len(s.claims))
	for _, c := range s.claims {
		if matches(c, f) {
			matched = append(matched, *c.Clone())
		}
	}
	s.mu.RUnlock()

	slices.SortFunc(matched, func(a, b models.Claim) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(b.ClaimNumber, a.ClaimNumber)
	})

	total := int64(len(matched))
	start := min(max(f.Offset, 0), len(matched))
	end := len(matched)
	if f.Limit > 0 {
		end = min(start+f.Limit, len(matched))
	}
	return matched[start:end], total, nil
}

func (s *MemoryStore) CountByStatus(_ context.Context, claimantID *uuid.UUID) (map[models.ClaimStatus]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[models.ClaimStatus]int64)
	for _, c := range s.claims {
		if claimantID != nil && c.ClaimantID != *claimantID {
			continue
		}
		out[c.Status]++
	}
	return out, nil
}

func (s *MemoryStore) InStatus(ctx context.Context, status models.ClaimStatus) ([]models.Claim, error) {
	list, _, err := s.List(ctx, ListFilter{Status: status})
	return list, err
}

func matches(c *models.Claim, f ListFilter) bool {
	if f.Status != "" && c.Status != f.Status {
		return false
	}
	if f.ClaimType != "" && !strings.EqualFold(c.ClaimType, f.ClaimType) {
		return false
	}
	if f.ClaimantID != nil && c.ClaimantID != *f.ClaimantID {
		return false
	}
	if q := strings.ToLower(strings.TrimSpace(f.Search)); q != "" {
		hay := strings.ToLower(c.ClaimNumber + "\x00" + c.PolicyNumber + "\x00" + c.ClaimantName + "\x00" + c.ClaimantID.String())
		if !strings.Contains(hay, q) {
			return false
		}
	}
	return true
}
