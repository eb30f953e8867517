package service_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	config "github.com/maheshrc27/postflow/configs"
	"github.com/maheshrc27/postflow/internal/models"
	"github.com/maheshrc27/postflow/internal/service"
)

// graphFake mimics the Graph API endpoints used for pages and instagram
// business accounts. containerStatus decides what a status check returns for
// the n-th created container (1-based).
type graphFake struct {
	t *testing.T

	mu              sync.Mutex
	calls           map[string]int
	containers      []map[string]any
	photos          []map[string]any
	feeds           []map[string]any
	checks          map[string]int
	containerStatus func(n int, check int) string
	rejectPath      string
}

func newGraphFake(t *testing.T) (*graphFake, *httptest.Server) {
	f := &graphFake{
		t:      t,
		calls:  make(map[string]int),
		checks: make(map[string]int),
		containerStatus: func(int, int) string {
			return "FINISHED"
		},
	}
	srv := httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *graphFake) serve(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	assert.Equal(f.t, "Bearer token-123", r.Header.Get("Authorization"))

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	kind := parts[len(parts)-1]
	if r.Method == http.MethodGet {
		kind = "status"
	}
	f.calls[kind]++

	if f.rejectPath != "" && f.rejectPath == kind {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"Invalid parameter","type":"OAuthException","code":100}}`))
		return
	}

	var body map[string]any
	if r.Method == http.MethodPost {
		assert.NoError(f.t, json.NewDecoder(r.Body).Decode(&body))
	}

	switch kind {
	case "photos":
		f.photos = append(f.photos, body)
		n := len(f.photos)
		writeJSON(w, map[string]string{"id": fmt.Sprintf("photo_%d", n), "post_id": fmt.Sprintf("page_post_%d", n)})
	case "feed":
		f.feeds = append(f.feeds, body)
		writeJSON(w, map[string]string{"id": "feed_post_1"})
	case "media":
		f.containers = append(f.containers, body)
		writeJSON(w, map[string]string{"id": fmt.Sprintf("c_%d", len(f.containers))})
	case "status":
		id := parts[len(parts)-1]
		f.checks[id]++
		var n int
		_, _ = fmt.Sscanf(id, "c_%d", &n)
		writeJSON(w, map[string]string{"id": id, "status_code": f.containerStatus(n, f.checks[id]), "status": "detail for " + id})
	case "media_publish":
		writeJSON(w, map[string]string{"id": "ig_media_1", "creation": fmt.Sprint(body["creation_id"])})
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (f *graphFake) count(kind string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[kind]
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func testClientOptions() service.ClientOptions {
	return service.ClientOptions{
		Timeout:        5 * time.Second,
		MaxRetries:     2,
		RetryBaseDelay: time.Millisecond,
		RetryMaxDelay:  2 * time.Millisecond,
	}
}

func testPlatformsConfig(graphURL, tiktokURL string) config.Platforms {
	return config.Platforms{
		GraphBaseURL:    graphURL,
		TiktokBaseURL:   tiktokURL,
		PollInterval:    time.Millisecond,
		PollMaxAttempts: 3,
		TiktokPrivacy:   "SELF_ONLY",
	}
}

func passthroughMedia(t *testing.T) service.MediaResolver {
	r2, err := service.NewR2Service(context.Background(), config.Config{})
	require.NoError(t, err)
	return r2
}

func pageAccount() *models.SocialAccount {
	return &models.SocialAccount{
		OwnerID:     "shop-1",
		Platform:    models.PlatformFacebook,
		PageID:      "page-1",
		AccessToken: "token-123",
	}
}

func igAccount() *models.SocialAccount {
	return &models.SocialAccount{
		OwnerID:           "shop-1",
		Platform:          models.PlatformInstagram,
		PageID:            "page-1",
		AccessToken:       "token-123",
		BusinessAccountID: "ig-1",
	}
}

// memoryPosts is an in-memory PostStore honoring the scheduled to processing
// claim.
type memoryPosts struct {
	mu      sync.Mutex
	status  map[string]models.PostStatus
	results map[string]*models.PostResult
	claims  int
}

func newMemoryPosts(ids ...string) *memoryPosts {
	m := &memoryPosts{status: make(map[string]models.PostStatus), results: make(map[string]*models.PostResult)}
	for _, id := range ids {
		m.status[id] = models.PostStatusScheduled
	}
	return m
}

func (m *memoryPosts) Claim(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.claims++
	if m.status[id] != models.PostStatusScheduled {
		return false, nil
	}
	m.status[id] = models.PostStatusProcessing
	return true, nil
}

func (m *memoryPosts) Complete(_ context.Context, id string, res *models.PostResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status[id] != models.PostStatusProcessing {
		return fmt.Errorf("post %s not processing", id)
	}
	m.status[id] = res.Status
	m.results[id] = res
	return nil
}

func (m *memoryPosts) result(id string) *models.PostResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.results[id]
}

// staticAccounts serves accounts keyed by platform.
type staticAccounts map[string]*models.SocialAccount

func (s staticAccounts) GetAccount(_ context.Context, _ string, platform string) (*models.SocialAccount, error) {
	acc, ok := s[platform]
	if !ok {
		return nil, nil
	}
	cp := *acc
	return &cp, nil
}
