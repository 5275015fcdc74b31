package query

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/aldoetobex/claims-backend/internal/auth"
	"github.com/aldoetobex/claims-backend/internal/documents"
	"github.com/aldoetobex/claims-backend/pkg/models"
)

type Handler struct{ svc *Service }

func NewHandler(svc *Service) *Handler { return &Handler{svc: svc} }

func parseFilter(c *fiber.Ctx) Filter {
	page, _ := strconv.Atoi(c.Query("page", "1"))
	size, _ := strconv.Atoi(c.Query("pageSize", strconv.Itoa(DefaultPageSize)))
	return Filter{
		Status:    models.ClaimStatus(c.Query("status")),
		ClaimType: c.Query("claim_type"),
		Search:    c.Query("q"),
		Page:      page,
		PageSize:  size,
	}
}

func claimID(c *fiber.Ctx) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return uuid.Nil, fiber.NewError(fiber.StatusBadRequest, "invalid claim id")
	}
	return id, nil
}

// List My Claims godoc
// @Summary      List the caller's claims
// @Tags         claims
// @Security     BearerAuth
// @Produce      json
// @Param        status    query string false "status"
// @Param        q         query string false "search claim/policy number"
// @Param        page      query int    false "page"
// @Param        pageSize  query int    false "pageSize"
// @Success      200  {object}  Page
// @Router       /claims/mine [get]
func (h *Handler) ListMine(c *fiber.Ctx) error {
	f := parseFilter(c)
	uid := auth.CurrentUser(c).ID
	f.ClaimantID = &uid
	page, err := h.svc.List(c.UserContext(), f)
	if err != nil {
		return err
	}
	return c.JSON(page)
}

// List All Claims godoc
// @Summary      List claims for review (staff)
// @Tags         admin
// @Security     BearerAuth
// @Produce      json
// @Param        status      query string false "status"
// @Param        claim_type  query string false "claim type"
// @Param        q           query string false "search claim/policy number or claimant"
// @Param        page        query int    false "page"
// @Param        pageSize    query int    false "pageSize"
// @Success      200  {object}  Page
// @Failure      422  {object}  models.ValidationErrorResponse
// @Router       /admin/claims [get]
func (h *Handler) ListAll(c *fiber.Ctx) error {
	page, err := h.svc.List(c.UserContext(), parseFilter(c))
	if err != nil {
		return err
	}
	return c.JSON(page)
}

// Claim Counts godoc
// @Summary      Count claims by status (staff)
// @Tags         admin
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  Counts
// @Router       /admin/claims/counts [get]
func (h *Handler) CountsAll(c *fiber.Ctx) error {
	out, err := h.svc.Counts(c.UserContext(), nil)
	if err != nil {
		return err
	}
	return c.JSON(out)
}

// My Claim Counts godoc
// @Summary      Count the caller's claims by status
// @Tags         claims
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  Counts
// @Router       /claims/mine/counts [get]
func (h *Handler) CountsMine(c *fiber.Ctx) error {
	uid := auth.CurrentUser(c).ID
	out, err := h.svc.Counts(c.UserContext(), &uid)
	if err != nil {
		return err
	}
	return c.JSON(out)
}

// Claim Detail godoc
// @Summary      Claim detail (owner or staff)
// @Tags         claims
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Claim ID"
// @Success      200  {object}  Detail
// @Failure      403  {object}  models.ErrorResponse
// @Failure      404  {object}  models.ErrorResponse
// @Router       /claims/{id} [get]
func (h *Handler) Detail(c *fiber.Ctx) error {
	id, err := claimID(c)
	if err != nil {
		return err
	}
	out, err := h.svc.Detail(c.UserContext(), id, documents.ViewerOf(c))
	if err != nil {
		return err
	}
	return c.JSON(out)
}

// Claim History godoc
// @Summary      Status history of a claim (owner or staff)
// @Tags         claims
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Claim ID"
// @Success      200  {object}  History
// @Router       /claims/{id}/history [get]
func (h *Handler) History(c *fiber.Ctx) error {
	id, err := claimID(c)
	if err != nil {
		return err
	}
	out, err := h.svc.History(c.UserContext(), id, documents.ViewerOf(c))
	if err != nil {
		return err
	}
	return c.JSON(out)
}
