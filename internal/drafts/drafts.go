// Package drafts turns the multi-step claim form into a submission. Nothing is
// persisted until Submit; every step reports its own failing fields.
package drafts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/aldoetobex/claims-backend/internal/claims"
	"github.com/aldoetobex/claims-backend/internal/documents"
	"github.com/aldoetobex/claims-backend/internal/policies"
	"github.com/aldoetobex/claims-backend/pkg/models"
	"github.com/aldoetobex/claims-backend/pkg/validation"
)

// Step names one page of the claim form.
type Step string

const (
	StepClaimDetails   Step = "claim_details"
	StepAdditionalInfo Step = "additional_info"
	StepDocuments      Step = "documents"
	StepReview         Step = "review"
)

// Steps is the form order.
var Steps = []Step{StepClaimDetails, StepAdditionalInfo, StepDocuments, StepReview}

// Valid reports whether s is a known step.
func (s Step) Valid() bool { return slices.Contains(Steps, s) }

// Next returns the step after s; review is the last.
func (s Step) Next() Step {
	i := slices.Index(Steps, s)
	if i < 0 {
		return StepClaimDetails
	}
	return Steps[min(i+1, len(Steps)-1)]
}

const dateLayout = "2006-01-02"

/* ================================ Draft ================================= */

type ClaimDetails struct {
	PolicyNumber string `json:"policy_number" validate:"required,policynum"`
	ClaimType    string `json:"claim_type" validate:"required,max=60"`
	IncidentDate string `json:"incident_date" validate:"required,datetime=2006-01-02"`
	ClaimAmount  int64  `json:"claim_amount" validate:"gt=0"`
	Description  string `json:"description" validate:"required,min=20,max=5000"`
}

type PaymentInfo struct {
	Method        string `json:"method" validate:"required,oneof=bank_transfer cheque mobile_money"`
	AccountNumber string `json:"account_number" validate:"required_if=Method bank_transfer,accountno"`
	AccountName   string `json:"account_name" validate:"required_if=Method bank_transfer,max=120"`
	BankName      string `json:"bank_name" validate:"required_if=Method bank_transfer,max=120"`
}

type AdditionalInfo struct {
	Location           string      `json:"location" validate:"max=200"`
	Witnesses          []string    `json:"witnesses" validate:"max=10,dive,max=120"`
	PoliceReportNumber string      `json:"police_report_number" validate:"max=60"`
	HospitalName       string      `json:"hospital_name" validate:"max=120"`
	DoctorName         string      `json:"doctor_name" validate:"max=120"`
	PaymentDetails     PaymentInfo `json:"payment_details"`
}

// PendingDocument describes a file the client intends to upload.
type PendingDocument struct {
	FileName     string `json:"file_name"`
	MimeType     string `json:"mime_type"`
	Size         int64  `json:"size"`
	DocumentType string `json:"document_type"`
}

// Draft is the client-held claim form.
type Draft struct {
	CurrentStep    Step              `json:"current_step"`
	ClaimDetails   ClaimDetails      `json:"claim_details"`
	AdditionalInfo AdditionalInfo    `json:"additional_info"`
	Documents      []PendingDocument `json:"documents"`
}

// normalize trims free-text fields in place so rules are checked against what gets stored.
func (d *Draft) normalize() {
	cd, ai := &d.ClaimDetails, &d.AdditionalInfo
	for _, f := range []*string{
		&cd.PolicyNumber, &cd.ClaimType, &cd.IncidentDate, &cd.Description,
		&ai.Location, &ai.PoliceReportNumber, &ai.HospitalName, &ai.DoctorName,
		&ai.PaymentDetails.Method, &ai.PaymentDetails.AccountNumber,
		&ai.PaymentDetails.AccountName, &ai.PaymentDetails.BankName,
	} {
		*f = strings.TrimSpace(*f)
	}
	for i := range ai.Witnesses {
		ai.Witnesses[i] = strings.TrimSpace(ai.Witnesses[i])
	}
}

/* =============================== Builder ================================ */

// Claimant is the authenticated client submitting the draft.
type Claimant struct {
	ID    uuid.UUID
	Name  string
	Actor string
}

type Builder struct {
	engine   *claims.Engine
	docs     *documents.Service
	policies policies.Lookup
	log      *slog.Logger

	Now func() time.Time
}

func NewBuilder(engine *claims.Engine, docs *documents.Service, pl policies.Lookup, log *slog.Logger) *Builder {
	if log == nil {
		log = slog.Default()
	}
	return &Builder{
		engine:   engine,
		docs:     docs,
		policies: pl,
		log:      log.With("component", "drafts"),
		Now:      func() time.Time { return time.Now().UTC() },
	}
}

// ValidateStep checks one step. Field failures come back as *claims.IncompleteStepError;
// anything else is an infrastructure error.
func (b *Builder) ValidateStep(ctx context.Context, d *Draft, step Step, claimant uuid.UUID) error {
	d.normalize()
	var (
		fields map[string][]string
		err    error
	)
	switch step {
	case StepClaimDetails:
		fields, err = b.claimDetails(ctx, d.ClaimDetails, claimant)
	case StepAdditionalInfo:
		fields, err = b.additionalInfo(d.AdditionalInfo)
	case StepDocuments:
		fields = b.pendingDocuments(d.Documents)
	case StepReview:
		return nil
	default:
		return claims.NewValidationError("step", fmt.Sprintf("Unknown step %q", step))
	}
	if err != nil {
		return err
	}
	if len(fields) > 0 {
		return &claims.IncompleteStepError{Step: string(step), Fields: fields}
	}
	return nil
}

// Advance validates the current step and moves the draft to the next one.
func (b *Builder) Advance(ctx context.Context, d *Draft, claimant uuid.UUID) (Step, error) {
	if d.CurrentStep == "" {
		d.CurrentStep = StepClaimDetails
	}
	if err := b.ValidateStep(ctx, d, d.CurrentStep, claimant); err != nil {
		return d.CurrentStep, err
	}
	d.CurrentStep = d.CurrentStep.Next()
	return d.CurrentStep, nil
}

func (b *Builder) claimDetails(ctx context.Context, in ClaimDetails, claimant uuid.UUID) (map[string][]string, error) {
	fields, err := validation.Validate(in)
	if err != nil {
		return nil, err
	}
	add := func(k, msg string) {
		if fields == nil {
			fields = map[string][]string{}
		}
		fields[k] = append(fields[k], msg)
	}

	if _, bad := fields["incident_date"]; !bad {
		d, _ := time.Parse(dateLayout, in.IncidentDate)
		if d.After(today(b.Now())) {
			add("incident_date", "Must not be in the future")
		}
	}

	if _, bad := fields["policy_number"]; bad {
		return fields, nil
	}
	p, err := b.policies.Get(ctx, in.PolicyNumber)
	switch {
	case errors.Is(err, policies.ErrNotFound):
		add("policy_number", "Policy not found")
		return fields, nil
	case err != nil:
		return nil, fmt.Errorf("policy lookup: %w", err)
	case !p.Active:
		add("policy_number", "Policy is not active")
	case p.HolderID != claimant:
		add("policy_number", "Policy is not held by the claimant")
	}
	if _, bad := fields["claim_type"]; !bad && !policies.AllowsClaimType(p.PolicyType, in.ClaimType) {
		add("claim_type", fmt.Sprintf("Not covered by a %s policy (allowed: %s)",
			p.PolicyType, strings.Join(policies.ClaimTypes(p.PolicyType), ", ")))
	}
	return fields, nil
}

func (b *Builder) additionalInfo(in AdditionalInfo) (map[string][]string, error) {
	fields, err := validation.Validate(in)
	if err != nil {
		return nil, err
	}
	pd := in.PaymentDetails
	if pd.Method == string(models.PayMobileMoney) && strings.TrimSpace(pd.AccountNumber) == "" {
		if fields == nil {
			fields = map[string][]string{}
		}
		fields["payment_details.account_number"] = append(fields["payment_details.account_number"], "This field is required")
	}
	return fields, nil
}

func (b *Builder) pendingDocuments(docs []PendingDocument) map[string][]string {
	fields := map[string][]string{}
	if len(docs) == 0 {
		fields["documents"] = []string{"At least one document is required"}
		return fields
	}
	if limit := b.docs.Limits().MaxFiles; len(docs) > limit {
		fields["documents"] = []string{fmt.Sprintf("Must contain at most %d items", limit)}
	}
	for i, pd := range docs {
		if strings.TrimSpace(pd.FileName) == "" {
			fields[fmt.Sprintf("documents.%d.file_name", i)] = []string{"This field is required"}
			continue
		}
		if _, err := b.docs.CheckFile(pd.FileName, pd.MimeType, pd.Size); err != nil {
			fields[fmt.Sprintf("documents.%d", i)] = []string{err.Error()}
		}
	}
	if len(fields) == 0 {
		return nil
	}
	return fields
}

/* =============================== Submit ================================= */

type SubmissionState string

const (
	SubmissionComplete         SubmissionState = "complete"
	SubmissionDocumentsPending SubmissionState = "documents_pending"
)

// Submission is the result of Submit. The claim exists even when State is
// documents_pending; the caller retries the missing files with Attach.
type Submission struct {
	Claim       *models.Claim
	Documents   []models.Document
	Failed      []documents.FileError
	AttachError error
	State       SubmissionState
}

// Submit validates every step, creates the claim and attaches the buffered files.
// When files is empty the pending descriptors are expected to be uploaded later.
func (b *Builder) Submit(ctx context.Context, d *Draft, files []documents.Upload, who Claimant) (*Submission, error) {
	d.normalize()
	if len(d.Documents) == 0 {
		for _, f := range files {
			d.Documents = append(d.Documents, PendingDocument{
				FileName: f.FileName, MimeType: f.MimeType, Size: f.Size, DocumentType: f.DocumentType,
			})
		}
	}
	for _, step := range Steps {
		if err := b.ValidateStep(ctx, d, step, who.ID); err != nil {
			return nil, err
		}
	}

	nc := b.newClaim(d, who)
	c, err := b.engine.Create(ctx, nc, who.Actor)
	if err != nil {
		return nil, err
	}

	sub := &Submission{Claim: c, State: SubmissionDocumentsPending}
	if len(files) == 0 {
		return sub, nil
	}

	res, err := b.docs.Attach(ctx, c.ID, files, documents.Viewer{ID: who.ID})
	if err != nil {
		b.log.Warn("claim created without documents", "claim", c.ClaimNumber, "err", err)
		sub.AttachError = err
		return sub, nil
	}
	sub.Documents = res.Stored
	sub.Failed = res.Failed
	if len(res.Failed) == 0 && len(res.Stored) > 0 {
		sub.State = SubmissionComplete
	}
	if latest, err := b.engine.Get(ctx, c.ID); err == nil {
		sub.Claim = latest
	}
	return sub, nil
}

func (b *Builder) newClaim(d *Draft, who Claimant) claims.NewClaim {
	cd, ai := d.ClaimDetails, d.AdditionalInfo
	incident, _ := time.Parse(dateLayout, cd.IncidentDate)

	witnesses := make([]string, 0, len(ai.Witnesses))
	for _, w := range ai.Witnesses {
		if w = strings.TrimSpace(w); w != "" {
			witnesses = append(witnesses, w)
		}
	}

	return claims.NewClaim{
		PolicyNumber:       strings.ToUpper(strings.TrimSpace(cd.PolicyNumber)),
		ClaimantID:         who.ID,
		ClaimantName:       who.Name,
		ClaimType:          canonicalType(cd.ClaimType),
		IncidentDate:       incident,
		ClaimAmount:        cd.ClaimAmount,
		Description:        strings.TrimSpace(cd.Description),
		Location:           strings.TrimSpace(ai.Location),
		Witnesses:          witnesses,
		PoliceReportNumber: strings.TrimSpace(ai.PoliceReportNumber),
		HospitalName:       strings.TrimSpace(ai.HospitalName),
		DoctorName:         strings.TrimSpace(ai.DoctorName),
		PaymentDetails: models.PaymentDetails{
			Method:        models.PaymentMethod(ai.PaymentDetails.Method),
			AccountNumber: strings.TrimSpace(ai.PaymentDetails.AccountNumber),
			AccountName:   strings.TrimSpace(ai.PaymentDetails.AccountName),
			BankName:      strings.TrimSpace(ai.PaymentDetails.BankName),
		},
	}
}

// canonicalType restores the catalogue spelling of a case-insensitive match.
func canonicalType(t string) string {
	t = strings.TrimSpace(t)
	for _, pt := range []models.PolicyType{models.PolicyHealth, models.PolicyMotor, models.PolicyLife, models.PolicyProperty, models.PolicyTravel} {
		for _, known := range policies.ClaimTypes(pt) {
			if strings.EqualFold(known, t) {
				return known
			}
		}
	}
	return t
}

func today(now time.Time) time.Time {
	y, m, d := now.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
