package drafts

import (
	"encoding/json"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/aldoetobex/claims-backend/internal/auth"
	"github.com/aldoetobex/claims-backend/internal/documents"
	"github.com/aldoetobex/claims-backend/pkg/models"
)

// ===== DTOs =====

type ValidateStepRequest struct {
	Step  Step  `json:"step"`
	Draft Draft `json:"draft"`
}

type ValidateStepResponse struct {
	Valid    bool `json:"valid"`
	NextStep Step `json:"next_step"`
}

type SubmissionResponse struct {
	Claim       *models.Claim          `json:"claim"`
	Documents   []models.Document      `json:"documents"`
	Failed      []documents.FailedFile `json:"failed"`
	AttachError string                 `json:"attach_error,omitempty"`
	State       SubmissionState        `json:"state"`
}

func toResponse(s *Submission) SubmissionResponse {
	out := documents.ToResponse(&documents.AttachResult{Stored: s.Documents, Failed: s.Failed})
	resp := SubmissionResponse{Claim: s.Claim, Documents: out.Stored, Failed: out.Failed, State: s.State}
	if s.AttachError != nil {
		resp.AttachError = s.AttachError.Error()
	}
	return resp
}

type Handler struct{ b *Builder }

func NewHandler(b *Builder) *Handler { return &Handler{b: b} }

func claimant(c *fiber.Ctx) Claimant {
	u := auth.CurrentUser(c)
	return Claimant{ID: u.ID, Name: u.Name, Actor: u.Actor()}
}

// Validate Draft Step godoc
// @Summary      Validate one step of a claim draft
// @Tags         drafts
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      ValidateStepRequest  true  "step + draft"
// @Success      200      {object}  ValidateStepResponse
// @Failure      422      {object}  models.ValidationErrorResponse
// @Router       /drafts/validate [post]
func (h *Handler) ValidateStep(c *fiber.Ctx) error {
	var in ValidateStepRequest
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json")
	}
	if in.Step == "" {
		in.Step = in.Draft.CurrentStep
	}
	if err := h.b.ValidateStep(c.UserContext(), &in.Draft, in.Step, claimant(c).ID); err != nil {
		return err
	}
	return c.JSON(ValidateStepResponse{Valid: true, NextStep: in.Step.Next()})
}

// Advance Draft godoc
// @Summary      Validate the current step and move the draft forward
// @Tags         drafts
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      Draft  true  "draft"
// @Success      200      {object}  Draft
// @Failure      422      {object}  models.ValidationErrorResponse
// @Router       /drafts/advance [post]
func (h *Handler) Advance(c *fiber.Ctx) error {
	var d Draft
	if err := c.BodyParser(&d); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json")
	}
	if _, err := h.b.Advance(c.UserContext(), &d, claimant(c).ID); err != nil {
		return err
	}
	return c.JSON(d)
}

// Submit Claim godoc
// @Summary      Submit a claim draft
// @Description  multipart: "draft" (JSON) + files[]; or a JSON draft whose documents are uploaded later
// @Tags         claims
// @Security     BearerAuth
// @Accept       multipart/form-data
// @Produce      json
// @Param        draft  formData  string  true   "draft JSON"
// @Param        files  formData  []file  false  "documents"
// @Success      201    {object}  SubmissionResponse
// @Failure      422    {object}  models.ValidationErrorResponse
// @Router       /claims [post]
func (h *Handler) Submit(c *fiber.Ctx) error {
	var (
		d     Draft
		files []documents.Upload
	)
	if strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEMultipartForm) {
		form, err := c.MultipartForm()
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid multipart form")
		}
		raw := form.Value["draft"]
		if len(raw) == 0 {
			return fiber.NewError(fiber.StatusBadRequest, "draft field is required")
		}
		if err := json.Unmarshal([]byte(raw[0]), &d); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "draft must be valid JSON")
		}
		files = documents.UploadsFromForm(form)
	} else if err := c.BodyParser(&d); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json")
	}

	sub, err := h.b.Submit(c.UserContext(), &d, files, claimant(c))
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(toResponse(sub))
}
