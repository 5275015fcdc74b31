// Package policies answers the questions a claim asks of its policy:
// does it exist, is it active, who holds it and what product line it covers.
package policies

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"gorm.io/gorm"

	"github.com/aldoetobex/claims-backend/pkg/models"
)

var ErrNotFound = errors.New("policy not found")

// Lookup resolves a policy by number.
type Lookup interface {
	Get(ctx context.Context, number string) (*models.Policy, error)
}

// claimTypes lists the claim types each product line can raise.
var claimTypes = map[models.PolicyType][]string{
	models.PolicyHealth:   {"Medical Expense", "Hospitalization", "Surgery", "Emergency", "Other"},
	models.PolicyMotor:    {"Accident", "Theft", "Vandalism", "Natural Disaster", "Third Party Liability", "Other"},
	models.PolicyLife:     {"Death Benefit", "Critical Illness", "Disability", "Other"},
	models.PolicyProperty: {"Fire", "Flood", "Theft", "Storm Damage", "Burglary", "Other"},
	models.PolicyTravel:   {"Trip Cancellation", "Lost Baggage", "Medical Emergency", "Flight Delay", "Other"},
}

// ClaimTypes returns the claim types allowed for a policy type.
func ClaimTypes(t models.PolicyType) []string { return slices.Clone(claimTypes[t]) }

// AllowsClaimType reports whether claimType may be raised under t. Case-insensitive.
func AllowsClaimType(t models.PolicyType, claimType string) bool {
	return slices.ContainsFunc(claimTypes[t], func(s string) bool {
		return strings.EqualFold(s, strings.TrimSpace(claimType))
	})
}

// ValidType reports whether t is a known product line.
func ValidType(t models.PolicyType) bool {
	_, ok := claimTypes[t]
	return ok
}

/* ================================ Gorm ================================== */

type GormLookup struct{ db *gorm.DB }

func NewGormLookup(db *gorm.DB) *GormLookup { return &GormLookup{db: db} }

func (l *GormLookup) Get(ctx context.Context, number string) (*models.Policy, error) {
	var p models.Policy
	err := l.db.WithContext(ctx).First(&p, "policy_number = ?", normalize(number)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, number)
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Upsert creates or replaces a policy record.
func (l *GormLookup) Upsert(ctx context.Context, p *models.Policy) error {
	p.PolicyNumber = normalize(p.PolicyNumber)
	return l.db.WithContext(ctx).Save(p).Error
}

/* =============================== Memory ================================= */

// Memory is an in-process Lookup for tests and local runs.
type Memory struct {
	mu sync.RWMutex
	m  map[string]models.Policy
}

func NewMemory(ps ...models.Policy) *Memory {
	m := &Memory{m: map[string]models.Policy{}}
	for _, p := range ps {
		_ = m.Upsert(context.Background(), &p)
	}
	return m
}

func (m *Memory) Get(_ context.Context, number string) (*models.Policy, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.m[normalize(number)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, number)
	}
	return &p, nil
}

func (m *Memory) Upsert(_ context.Context, p *models.Policy) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p.PolicyNumber = normalize(p.PolicyNumber)
	m.m[p.PolicyNumber] = *p
	return nil
}

func normalize(number string) string {
	return strings.ToUpper(strings.TrimSpace(number))
}
