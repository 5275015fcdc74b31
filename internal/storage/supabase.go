package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

/*
Supabase wraps the few Supabase Storage REST calls documents need.

Notes on authorization:
- A legacy service_role JWT needs both `apikey` and `Authorization: Bearer <token>`.
- A Secret API Key (sb_secret_...) that is NOT a JWT only needs `apikey`; set BearerAuth false.
*/
type Supabase struct {
	baseURL    string // e.g. https://<project>.supabase.co
	apiKey     string
	bucket     string
	bearerAuth bool
	client     *http.Client
}

// SupabaseConfig is read from SUPABASE_URL / SUPABASE_SERVICE_KEY / SUPABASE_BUCKET.
type SupabaseConfig struct {
	URL        string
	ServiceKey string
	Bucket     string
	BearerAuth bool
}

func NewSupabase(cfg SupabaseConfig) *Supabase {
	return &Supabase{
		baseURL:    cfg.URL,
		apiKey:     cfg.ServiceKey,
		bucket:     cfg.Bucket,
		bearerAuth: cfg.BearerAuth,
		client:     &http.Client{Timeout: 30 * time.Second},
	}
}

func (s *Supabase) authorize(req *http.Request) {
	req.Header.Set("apikey", s.apiKey)
	if s.bearerAuth {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}
}

func (s *Supabase) do(req *http.Request, op string, okStatus ...int) (*http.Response, error) {
	s.authorize(req)
	res, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("supabase %s: %w", op, err)
	}
	for _, code := range okStatus {
		if res.StatusCode == code {
			return res, nil
		}
	}
	if res.StatusCode >= 300 {
		defer res.Body.Close()
		b, _ := io.ReadAll(res.Body)
		return nil, fmt.Errorf("supabase %s error: %s | %s", op, res.Status, string(b))
	}
	return res, nil
}

// Upload sends a new object to: POST /storage/v1/object/{bucket}/{objectName}
func (s *Supabase) Upload(ctx context.Context, key string, r io.Reader, contentType string, size int64) error {
	url := fmt.Sprintf("%s/storage/v1/object/%s/%s", s.baseURL, s.bucket, key)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, r)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", contentType)
	if size > 0 {
		req.ContentLength = size
	}

	res, err := s.do(req, "upload")
	if err != nil {
		return err
	}
	return res.Body.Close()
}

// SignedURL creates a short-lived signed URL:
// POST /storage/v1/object/sign/{bucket}/{objectName}  body: {"expiresIn": <seconds>}
func (s *Supabase) SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	url := fmt.Sprintf("%s/storage/v1/object/sign/%s/%s", s.baseURL, s.bucket, key)

	body, _ := json.Marshal(map[string]int{"expiresIn": int(ttl.Seconds())})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := s.do(req, "sign")
	if err != nil {
		return "", err
	}
	defer res.Body.Close()

	var out struct {
		SignedURL string `json:"signedURL"`
	}
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return "", err
	}
	if out.SignedURL == "" {
		return "", fmt.Errorf("empty signedURL in response")
	}

	// API returns a relative path; convert to absolute URL.
	return s.baseURL + "/storage/v1" + out.SignedURL, nil
}

// Delete removes an object by key. 404 counts as success.
func (s *Supabase) Delete(ctx context.Context, key string) error {
	url := fmt.Sprintf("%s/storage/v1/object/%s/%s", s.baseURL, s.bucket, key)

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, url, nil)
	if err != nil {
		return err
	}
	res, err := s.do(req, "delete", http.StatusNotFound)
	if err != nil {
		return err
	}
	return res.Body.Close()
}

// BulkDelete removes multiple objects in one call:
// POST /storage/v1/object/{bucket}/remove  body: {"prefixes": [...]}
func (s *Supabase) BulkDelete(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}

	url := fmt.Sprintf("%s/storage/v1/object/%s/remove", s.baseURL, s.bucket)

	body, _ := json.Marshal(map[string][]string{"prefixes": keys})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := s.do(req, "bulk delete")
	if err != nil {
		return err
	}
	return res.Body.Close()
}
