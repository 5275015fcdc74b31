package models

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

/* =============================== Enums ================================== */

// Role defines the type of user in the system.
type Role string

const (
	RoleClient Role = "client"
	RoleStaff  Role = "staff"
)

// ClaimStatus defines lifecycle states for a claim.
type ClaimStatus string

const (
	ClaimSubmitted         ClaimStatus = "submitted"
	ClaimUnderReview       ClaimStatus = "under_review"
	ClaimDocumentsRequired ClaimStatus = "documents_required"
	ClaimInvestigation     ClaimStatus = "investigation"
	ClaimApproved          ClaimStatus = "approved"
	ClaimPaid              ClaimStatus = "paid"
	ClaimRejected          ClaimStatus = "rejected"
	ClaimClosed            ClaimStatus = "closed"
)

// AllClaimStatuses lists every status in lifecycle order.
var AllClaimStatuses = []ClaimStatus{
	ClaimSubmitted, ClaimUnderReview, ClaimDocumentsRequired, ClaimInvestigation,
	ClaimApproved, ClaimPaid, ClaimRejected, ClaimClosed,
}

// Valid reports whether s is one of the known statuses.
func (s ClaimStatus) Valid() bool { return slices.Contains(AllClaimStatuses, s) }

// IsTerminal reports whether the status has no outgoing transitions.
func (s ClaimStatus) IsTerminal() bool {
	return s == ClaimPaid || s == ClaimRejected || s == ClaimClosed
}

// Priority is derived at submission and may be reassigned by staff.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool {
	return p == PriorityLow || p == PriorityMedium || p == PriorityHigh
}

// PolicyType is the product line of a policy; it constrains claim types.
type PolicyType string

const (
	PolicyHealth   PolicyType = "health"
	PolicyMotor    PolicyType = "motor"
	PolicyLife     PolicyType = "life"
	PolicyProperty PolicyType = "property"
	PolicyTravel   PolicyType = "travel"
)

// PaymentMethod is how an approved claim gets paid out.
type PaymentMethod string

const (
	PayBankTransfer PaymentMethod = "bank_transfer"
	PayCheque       PaymentMethod = "cheque"
	PayMobileMoney  PaymentMethod = "mobile_money"
)

/* =============================== Entities =============================== */

// User represents a client or a staff member.
type User struct {
	ID           uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Email        string    `gorm:"uniqueIndex;not null"`
	PasswordHash string    `gorm:"not null"`
	Role         Role      `gorm:"type:varchar(20);not null"`
	Name         string
	CreatedAt    time.Time
}

// Policy is the slice of a policy record the claims core depends on.
type Policy struct {
	PolicyNumber string     `gorm:"primaryKey;type:varchar(40)" json:"policy_number"`
	PolicyType   PolicyType `gorm:"type:varchar(20);not null" json:"policy_type"`
	HolderID     uuid.UUID  `gorm:"type:uuid;not null;index" json:"holder_id"`
	Active       bool       `gorm:"not null;default:true" json:"active"`
	CreatedAt    time.Time  `json:"created_at"`
}

// PaymentDetails says where the money goes once a claim is paid.
type PaymentDetails struct {
	Method        PaymentMethod `gorm:"type:varchar(20)" json:"method"`
	AccountNumber string        `json:"account_number,omitempty"`
	AccountName   string        `json:"account_name,omitempty"`
	BankName      string        `json:"bank_name,omitempty"`
}

// Claim is a client's request for compensation under a policy.
type Claim struct {
	ID           uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	ClaimNumber  string    `gorm:"type:varchar(32);uniqueIndex;not null" json:"claim_number"`
	PolicyNumber string    `gorm:"type:varchar(40);not null;index" json:"policy_number"`
	ClaimantID   uuid.UUID `gorm:"type:uuid;not null;index" json:"claimant_id"`
	ClaimantName string    `json:"claimant_name"`

	ClaimType          string    `gorm:"type:varchar(60);not null;index" json:"claim_type"`
	IncidentDate       time.Time `gorm:"type:date;not null" json:"incident_date"`
	ClaimAmount        int64     `gorm:"not null" json:"claim_amount"` // minor units
	Description        string    `gorm:"type:text;not null" json:"description"`
	Location           string    `json:"location,omitempty"`
	Witnesses          []string  `gorm:"serializer:json;type:jsonb" json:"witnesses,omitempty"`
	PoliceReportNumber string    `json:"police_report_number,omitempty"`
	HospitalName       string    `json:"hospital_name,omitempty"`
	DoctorName         string    `json:"doctor_name,omitempty"`

	PaymentDetails PaymentDetails `gorm:"embedded;embeddedPrefix:payment_" json:"payment_details"`

	Status           ClaimStatus `gorm:"type:varchar(30);not null;index" json:"status"`
	ApprovedAmount   *int64      `json:"approved_amount,omitempty"`
	RejectionReason  string      `gorm:"type:text" json:"rejection_reason,omitempty"`
	PaymentReference string      `gorm:"type:varchar(80)" json:"payment_reference,omitempty"`
	Priority         Priority    `gorm:"type:varchar(10);not null;default:'low'" json:"priority"`

	// Version is the optimistic concurrency revision; every write bumps it.
	Version   int64     `gorm:"not null;default:1" json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	StatusHistory []StatusHistory `gorm:"foreignKey:ClaimID" json:"status_history"`
	Documents     []Document      `gorm:"foreignKey:ClaimID" json:"documents"`
}

// LastStatus returns the status recorded by the newest history entry.
func (c *Claim) LastStatus() ClaimStatus {
	if len(c.StatusHistory) == 0 {
		return ""
	}
	return c.StatusHistory[len(c.StatusHistory)-1].Status
}

// Clone returns a deep copy so callers never share slices with a store.
func (c *Claim) Clone() *Claim {
	if c == nil {
		return nil
	}
	out := *c
	if c.ApprovedAmount != nil {
		v := *c.ApprovedAmount
		out.ApprovedAmount = &v
	}
	out.Witnesses = slices.Clone(c.Witnesses)
	out.StatusHistory = slices.Clone(c.StatusHistory)
	out.Documents = slices.Clone(c.Documents)
	return &out
}

// StatusHistory is one append-only audit entry of a claim's lifecycle.
type StatusHistory struct {
	ID        uuid.UUID   `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"-"`
	ClaimID   uuid.UUID   `gorm:"type:uuid;not null;uniqueIndex:ux_history_claim_seq" json:"-"`
	Seq       int         `gorm:"not null;uniqueIndex:ux_history_claim_seq" json:"seq"`
	Status    ClaimStatus `gorm:"type:varchar(30);not null" json:"status"`
	Actor     string      `gorm:"type:varchar(80);not null" json:"actor"`
	Comment   string      `gorm:"type:text" json:"comment,omitempty"`
	Timestamp time.Time   `gorm:"not null" json:"timestamp"`
}

// Document is a file attached to exactly one claim.
type Document struct {
	ID           uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	ClaimID      uuid.UUID `gorm:"type:uuid;not null;index" json:"claim_id"`
	FileName     string    `gorm:"not null" json:"file_name"`
	MimeType     string    `gorm:"type:varchar(120);not null" json:"mime_type"`
	Size         int64     `gorm:"not null" json:"size"`
	DocumentType string    `json:"document_type"`
	StorageKey   string    `gorm:"not null" json:"-"`
	UploadedBy   string    `gorm:"type:varchar(80)" json:"uploaded_by"`
	UploadedAt   time.Time `gorm:"not null" json:"uploaded_at"`
}
