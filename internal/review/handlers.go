package review

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/aldoetobex/claims-backend/internal/auth"
	"github.com/aldoetobex/claims-backend/pkg/models"
	"github.com/aldoetobex/claims-backend/pkg/validation"
)

// ===== DTOs =====

type DecisionRequest struct {
	Kind                 Kind   `json:"kind" validate:"required,oneof=approve reject request_documents mark_paid start_review investigate close" example:"approve"`
	Version              *int64 `json:"version,omitempty" example:"3"`
	ApprovedAmount       *int64 `json:"approved_amount,omitempty" example:"750000"`
	Reason               string `json:"reason,omitempty" validate:"max=2000"`
	Comment              string `json:"comment,omitempty" validate:"max=2000"`
	TransactionReference string `json:"transaction_reference,omitempty" validate:"max=80"`
}

type PriorityRequest struct {
	Priority models.Priority `json:"priority" validate:"required,oneof=low medium high" example:"high"`
	Version  *int64          `json:"version,omitempty"`
}

type Handler struct{ p *Processor }

func NewHandler(p *Processor) *Handler { return &Handler{p: p} }

func claimID(c *fiber.Ctx) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return uuid.Nil, fiber.NewError(fiber.StatusBadRequest, "invalid claim id")
	}
	return id, nil
}

// Decide godoc
// @Summary      Apply a staff decision to a claim
// @Description  approve | reject | request_documents | mark_paid | start_review | investigate | close
// @Tags         review
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string           true  "Claim ID"
// @Param        payload  body      DecisionRequest  true  "decision"
// @Success      200      {object}  models.Claim
// @Failure      409      {object}  models.TransitionErrorResponse
// @Failure      422      {object}  models.ValidationErrorResponse
// @Router       /admin/claims/{id}/decisions [post]
func (h *Handler) Decide(c *fiber.Ctx) error {
	id, err := claimID(c)
	if err != nil {
		return err
	}
	var in DecisionRequest
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json")
	}
	if errs, _ := validation.Validate(in); errs != nil {
		return validation.Respond(c, errs)
	}

	claim, err := h.p.Apply(c.UserContext(), id, Decision{
		Kind:                 in.Kind,
		Version:              in.Version,
		ApprovedAmount:       in.ApprovedAmount,
		Reason:               in.Reason,
		Comment:              in.Comment,
		TransactionReference: in.TransactionReference,
	}, auth.CurrentUser(c).Actor())
	if err != nil {
		return err
	}
	return c.JSON(claim)
}

// Set Priority godoc
// @Summary      Reassign a claim's review priority
// @Tags         review
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string           true  "Claim ID"
// @Param        payload  body      PriorityRequest  true  "priority"
// @Success      200      {object}  models.Claim
// @Failure      409      {object}  models.ErrorResponse
// @Router       /admin/claims/{id}/priority [put]
func (h *Handler) SetPriority(c *fiber.Ctx) error {
	id, err := claimID(c)
	if err != nil {
		return err
	}
	var in PriorityRequest
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json")
	}
	if errs, _ := validation.Validate(in); errs != nil {
		return validation.Respond(c, errs)
	}
	claim, err := h.p.AssignPriority(c.UserContext(), id, in.Version, in.Priority, auth.CurrentUser(c).Actor())
	if err != nil {
		return err
	}
	return c.JSON(claim)
}
