package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aldoetobex/claims-backend/internal/claims"
	"github.com/aldoetobex/claims-backend/pkg/models"
)

func newApp(tokens *Tokens) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	app.Get("/me", tokens.RequireAuth(), func(c *fiber.Ctx) error {
		u := CurrentUser(c)
		return c.JSON(fiber.Map{"id": u.ID, "role": u.Role, "actor": u.Actor()})
	})
	app.Get("/staff", tokens.RequireAuth(), RequireRole(models.RoleStaff), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})
	return app
}

func TestRequireAuth(t *testing.T) {
	tokens := NewTokens("test-secret", time.Hour)
	app := newApp(tokens)
	id := uuid.New()

	tok, err := tokens.Issue(User{ID: id, Role: models.RoleClient, Name: "Ada"})
	require.NoError(t, err)

	req := httptest.NewRequest("GET", "/me", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, 200, resp.StatusCode)

	var out map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, id.String(), out["id"])
	assert.Equal(t, "client:Ada", out["actor"])

	// Wrong secret
	other, _ := NewTokens("other", time.Hour).Issue(User{ID: id, Role: models.RoleClient})
	req = httptest.NewRequest("GET", "/me", nil)
	req.Header.Set("Authorization", "Bearer "+other)
	resp, _ = app.Test(req)
	assert.Equal(t, 401, resp.StatusCode)

	// Missing header
	resp, _ = app.Test(httptest.NewRequest("GET", "/me", nil))
	assert.Equal(t, 401, resp.StatusCode)

	// Client on a staff route
	req = httptest.NewRequest("GET", "/staff", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	resp, _ = app.Test(req)
	assert.Equal(t, 403, resp.StatusCode)
}

func TestErrorHandler_DomainErrors(t *testing.T) {
	cases := []struct {
		err  error
		code int
		tag  string
	}{
		{claims.NewValidationError("claim_amount", "Must be greater than 0"), 422, ""},
		{&claims.InvalidTransitionError{From: models.ClaimSubmitted, To: models.ClaimApproved}, 409, "INVALID_TRANSITION"},
		{fmt.Errorf("%w: CLM-1 is paid", claims.ErrClaimClosed), 409, "CLAIM_CLOSED"},
		{claims.ErrConcurrentModification, 409, "CONCURRENT_MODIFICATION"},
		{&claims.TooManyFilesError{Existing: 10, Adding: 1, Limit: 10}, 409, "TOO_MANY_FILES"},
		{&claims.UnsupportedFileTypeError{FileName: "a.exe", MimeType: "application/x-msdownload"}, 415, "UNSUPPORTED_FILE_TYPE"},
		{&claims.FileTooLargeError{FileName: "big.pdf", Size: 6 << 20, Limit: 5 << 20}, 413, "FILE_TOO_LARGE"},
		{claims.ErrNotFound, 404, "NOT_FOUND"},
		{claims.ErrForbidden, 403, "FORBIDDEN"},
		{fiber.ErrTooManyRequests, 429, "TOO_MANY_REQUESTS"},
		{errors.New("db down"), 500, "INTERNAL_SERVER_ERROR"},
	}
	for _, tc := range cases {
		app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
		err := tc.err
		app.Get("/", func(c *fiber.Ctx) error { return err })

		resp, rerr := app.Test(httptest.NewRequest("GET", "/", nil))
		require.NoError(t, rerr)
		assert.Equal(t, tc.code, resp.StatusCode, "%v", tc.err)

		var body map[string]any
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		if tc.tag != "" {
			assert.Equal(t, tc.tag, body["code"], "%v", tc.err)
		} else {
			assert.Contains(t, body, "errors")
		}
	}
}

func TestErrorHandler_StepBody(t *testing.T) {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	app.Get("/", func(c *fiber.Ctx) error {
		return &claims.IncompleteStepError{Step: "claim_details", Fields: map[string][]string{"description": {"Must be at least 20 characters"}}}
	})
	resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)
	assert.Equal(t, 422, resp.StatusCode)

	var body models.ValidationErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "claim_details", body.Step)
	assert.Contains(t, body.Errors, "description")
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(2)
	defer rl.Stop()

	tokens := NewTokens("s", time.Hour)
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	app.Post("/claims", tokens.RequireAuth(), rl.Middleware(), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusCreated)
	})

	a, _ := tokens.Issue(User{ID: uuid.New(), Role: models.RoleClient})
	b, _ := tokens.Issue(User{ID: uuid.New(), Role: models.RoleClient})

	send := func(tok string) int {
		req := httptest.NewRequest("POST", "/claims", nil)
		req.Header.Set("Authorization", "Bearer "+tok)
		resp, err := app.Test(req)
		require.NoError(t, err)
		return resp.StatusCode
	}

	assert.Equal(t, 201, send(a))
	assert.Equal(t, 201, send(a))
	assert.Equal(t, 429, send(a))
	assert.Equal(t, 201, send(b))
}

func TestRateLimiter_StopEndsCleanup(t *testing.T) {
	rl := NewRateLimiter(5)
	rl.Stop()
	rl.Stop()

	select {
	case <-rl.exited:
	case <-time.After(time.Second):
		t.Fatal("cleanup goroutine still running after Stop")
	}
}
