package main

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aldoetobex/claims-backend/internal/auth"
	"github.com/aldoetobex/claims-backend/internal/claims"
	"github.com/aldoetobex/claims-backend/internal/config"
	"github.com/aldoetobex/claims-backend/internal/documents"
	"github.com/aldoetobex/claims-backend/internal/drafts"
	"github.com/aldoetobex/claims-backend/internal/policies"
	"github.com/aldoetobex/claims-backend/internal/query"
	"github.com/aldoetobex/claims-backend/internal/review"
	"github.com/aldoetobex/claims-backend/internal/storage"
	"github.com/aldoetobex/claims-backend/pkg/models"
)

func TestNewBlobStore(t *testing.T) {
	b, err := newBlobStore(t.Context(), config.StorageConfig{Backend: "memory"})
	require.NoError(t, err)
	assert.IsType(t, &storage.Memory{}, b)

	b, err = newBlobStore(t.Context(), config.StorageConfig{Backend: "supabase", SupabaseURL: "http://localhost", SupabaseBucket: "x"})
	require.NoError(t, err)
	assert.IsType(t, &storage.Supabase{}, b)

	_, err = newBlobStore(t.Context(), config.StorageConfig{Backend: "ftp"})
	assert.Error(t, err)
}

func TestRoutes_AuthAndRoles(t *testing.T) {
	store := claims.NewMemoryStore()
	engine := claims.NewEngine(store, nil)
	docs := documents.NewService(store, storage.NewMemory(), documents.Limits{}, nil)
	tokens := auth.NewTokens("test-secret", time.Hour)
	h := handlers{
		auth:   auth.NewHandler(nil, tokens),
		drafts: drafts.NewHandler(drafts.NewBuilder(engine, docs, policies.NewMemory(), nil)),
		docs:   documents.NewHandler(docs, time.Minute),
		query:  query.NewHandler(query.NewService(store, nil, 0, nil)),
		review: review.NewHandler(review.NewProcessor(engine)),
		tokens: tokens,
	}
	app := newApp(&config.Config{Server: config.ServerConfig{BodyLimitMB: 1}}, nil, h)

	do := func(method, path, token string) int {
		req := httptest.NewRequest(method, path, strings.NewReader(`{}`))
		req.Header.Set("Content-Type", "application/json")
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		resp, err := app.Test(req)
		require.NoError(t, err)
		return resp.StatusCode
	}

	client, err := tokens.Issue(auth.User{ID: uuid.New(), Role: models.RoleClient, Name: "Ada"})
	require.NoError(t, err)
	staff, err := tokens.Issue(auth.User{ID: uuid.New(), Role: models.RoleStaff, Name: "Sam"})
	require.NoError(t, err)

	assert.Equal(t, 401, do("GET", "/api/claims/mine", ""))
	assert.Equal(t, 200, do("GET", "/api/claims/mine", client))
	assert.Equal(t, 403, do("GET", "/api/claims/mine", staff))

	assert.Equal(t, 403, do("GET", "/api/admin/claims", client))
	assert.Equal(t, 200, do("GET", "/api/admin/claims", staff))
	assert.Equal(t, 200, do("GET", "/api/admin/claims/counts", staff))
	assert.Equal(t, 422, do("POST", "/api/admin/claims/"+uuid.NewString()+"/decisions", staff))
}
