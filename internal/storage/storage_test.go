package storage

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObjectKey(t *testing.T) {
	id := uuid.MustParse("6f1c3c86-4c7a-4a43-9f3a-0b2d2a0e5a11")
	now := time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)

	k1 := ObjectKey(id, "Hospital Bill (final).PDF", now)
	k2 := ObjectKey(id, "Hospital Bill (final).PDF", now)

	assert.True(t, strings.HasPrefix(k1, "claims/"+id.String()+"/"))
	assert.True(t, strings.HasSuffix(k1, "-hospital-bill-final.pdf"), k1)
	assert.NotEqual(t, k1, k2)

	assert.True(t, strings.HasSuffix(ObjectKey(id, "....png", now), "-document.png"))
}

func TestSupabase_UploadSignDelete(t *testing.T) {
	var uploaded []byte
	var removed []string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.Header.Get("apikey"))
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/storage/v1/object/sign/docs/claims/a.pdf":
			_ = json.NewEncoder(w).Encode(map[string]string{"signedURL": "/object/sign/docs/claims/a.pdf?token=t"})
		case r.Method == http.MethodPost && r.URL.Path == "/storage/v1/object/docs/remove":
			var body struct {
				Prefixes []string `json:"prefixes"`
			}
			_ = json.NewDecoder(r.Body).Decode(&body)
			removed = body.Prefixes
			w.WriteHeader(http.StatusOK)
		case r.Method == http.MethodPost && r.URL.Path == "/storage/v1/object/docs/claims/a.pdf":
			assert.Equal(t, "application/pdf", r.Header.Get("Content-Type"))
			uploaded, _ = io.ReadAll(r.Body)
			w.WriteHeader(http.StatusOK)
		case r.Method == http.MethodDelete:
			w.WriteHeader(http.StatusNotFound)
		default:
			w.WriteHeader(http.StatusTeapot)
		}
	}))
	defer srv.Close()

	s := NewSupabase(SupabaseConfig{URL: srv.URL, ServiceKey: "secret", Bucket: "docs", BearerAuth: true})
	ctx := context.Background()

	require.NoError(t, s.Upload(ctx, "claims/a.pdf", strings.NewReader("%PDF"), "application/pdf", 4))
	assert.Equal(t, "%PDF", string(uploaded))

	url, err := s.SignedURL(ctx, "claims/a.pdf", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/storage/v1/object/sign/docs/claims/a.pdf?token=t", url)

	// Missing object on delete is fine.
	require.NoError(t, s.Delete(ctx, "claims/gone.pdf"))

	require.NoError(t, s.BulkDelete(ctx, []string{"claims/a.pdf", "claims/b.pdf"}))
	assert.Equal(t, []string{"claims/a.pdf", "claims/b.pdf"}, removed)

	err = s.Upload(ctx, "claims/other.pdf", strings.NewReader("x"), "application/pdf", 1)
	assert.ErrorContains(t, err, "418")
}

func TestMemory(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	require.NoError(t, m.Upload(ctx, "k", strings.NewReader("data"), "image/png", 4))
	o, ok := m.Get("k")
	require.True(t, ok)
	assert.Equal(t, "data", string(o.Data))

	_, err := m.SignedURL(ctx, "missing", time.Minute)
	assert.Error(t, err)

	require.NoError(t, m.BulkDelete(ctx, []string{"k"}))
	assert.Equal(t, 0, m.Len())
}
