package query

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aldoetobex/claims-backend/internal/auth"
	"github.com/aldoetobex/claims-backend/pkg/models"
)

func injectAuth(userID uuid.UUID, role models.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Locals("userID", userID.String())
		c.Locals("role", string(role))
		c.Locals("name", "Test User")
		return c.Next()
	}
}

func newTestApp(svc *Service, userID uuid.UUID, role models.Role) *fiber.App {
	h := NewHandler(svc)
	app := fiber.New(fiber.Config{ErrorHandler: auth.ErrorHandler})
	app.Use(injectAuth(userID, role))
	app.Get("/api/claims/mine", h.ListMine)
	app.Get("/api/claims/mine/counts", h.CountsMine)
	app.Get("/api/claims/:id", h.Detail)
	app.Get("/api/claims/:id/history", h.History)
	app.Get("/api/admin/claims", h.ListAll)
	app.Get("/api/admin/claims/counts", h.CountsAll)
	return app
}

func get(t *testing.T, app *fiber.App, path string, out any) int {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest("GET", path, nil))
	require.NoError(t, err)
	if out != nil && resp.StatusCode == 200 {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestHandler_ClientViews(t *testing.T) {
	f := newFixture(t)
	ada := uuid.New()
	mine := f.create(t, ada, "Hospitalization", desc)
	theirs := f.create(t, uuid.New(), "Collision", desc)
	app := newTestApp(f.svc, ada, models.RoleClient)

	var page Page
	require.Equal(t, 200, get(t, app, "/api/claims/mine?pageSize=5", &page))
	assert.Equal(t, int64(1), page.Total)
	assert.Equal(t, mine.ClaimNumber, page.Items[0].ClaimNumber)
	assert.Equal(t, 5, page.PageSize)

	var counts Counts
	require.Equal(t, 200, get(t, app, "/api/claims/mine/counts", &counts))
	assert.Equal(t, int64(1), counts.Total)

	var detail map[string]any
	require.Equal(t, 200, get(t, app, "/api/claims/"+mine.ID.String(), &detail))
	assert.Equal(t, mine.ClaimNumber, detail["claim_number"])
	assert.Equal(t, "submitted", detail["status"])

	assert.Equal(t, 403, get(t, app, "/api/claims/"+theirs.ID.String(), nil))
	assert.Equal(t, 404, get(t, app, "/api/claims/"+uuid.NewString(), nil))
	assert.Equal(t, 400, get(t, app, "/api/claims/nope", nil))

	var h History
	require.Equal(t, 200, get(t, app, "/api/claims/"+mine.ID.String()+"/history", &h))
	assert.True(t, h.Consistent)
	assert.Len(t, h.Entries, 1)
}

func TestHandler_StaffViews(t *testing.T) {
	f := newFixture(t)
	f.create(t, uuid.New(), "Hospitalization", desc)
	f.create(t, uuid.New(), "Collision", desc)
	app := newTestApp(f.svc, uuid.New(), models.RoleStaff)

	var page Page
	require.Equal(t, 200, get(t, app, "/api/admin/claims?claim_type=Collision", &page))
	assert.Equal(t, int64(1), page.Total)

	assert.Equal(t, 422, get(t, app, "/api/admin/claims?status=weird", nil))

	var counts Counts
	require.Equal(t, 200, get(t, app, "/api/admin/claims/counts", &counts))
	assert.Equal(t, int64(2), counts.Total)
	assert.Equal(t, int64(2), counts.ByStatus[models.ClaimSubmitted])
}
