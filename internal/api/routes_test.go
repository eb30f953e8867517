package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	config "github.com/maheshrc27/postflow/configs"
	"github.com/maheshrc27/postflow/internal/api"
	"github.com/maheshrc27/postflow/internal/api/handlers"
	"github.com/maheshrc27/postflow/internal/api/middleware"
	job "github.com/maheshrc27/postflow/internal/jobs"
	"github.com/maheshrc27/postflow/internal/models"
	"github.com/maheshrc27/postflow/internal/service"
	"github.com/maheshrc27/postflow/internal/transfer"
	"github.com/maheshrc27/postflow/pkg/utils"
)

const (
	jwtSecret  = "0123456789abcdef0123456789abcdef"
	cronSecret = "cron-secret"
)

type runnerStub struct {
	summary *job.RunSummary
	err     error
	calls   int
}

func (r *runnerStub) RunDue(context.Context) (*job.RunSummary, error) {
	r.calls++
	return r.summary, r.err
}

type postServiceStub struct {
	owner  string
	pc     *transfer.PostCreation
	files  int
	err    error
	post   *models.ScheduledPost
	delay  time.Duration
	getErr error
}

func (s *postServiceStub) CreatePost(_ context.Context, ownerID string, pc *transfer.PostCreation, files []*multipart.FileHeader) (*models.ScheduledPost, time.Duration, error) {
	s.owner = ownerID
	s.pc = pc
	s.files = len(files)
	if s.err != nil {
		return nil, 0, s.err
	}
	return s.post, s.delay, nil
}

func (s *postServiceStub) PostInfo(_ context.Context, ownerID, postID string) (*models.ScheduledPost, []*models.PublishAttempt, error) {
	if s.getErr != nil {
		return nil, nil, s.getErr
	}
	return &models.ScheduledPost{ID: postID, OwnerID: ownerID}, []*models.PublishAttempt{{PostID: postID, Platform: "facebook", Success: true}}, nil
}

type enqueuerStub struct {
	tasks []*asynq.Task
}

func (e *enqueuerStub) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	e.tasks = append(e.tasks, task)
	return &asynq.TaskInfo{}, nil
}

func newTestApp(runner *runnerStub, posts *postServiceStub, tasks *enqueuerStub) *fiber.App {
	cfg := config.Config{SecretKey: jwtSecret, CookieName: "session", CronSecret: cronSecret}
	app := fiber.New()
	api.Register(app, api.Routes{
		Auth:  middleware.NewAuthMiddleware(cfg),
		Cron:  handlers.NewCronHandler(runner),
		Posts: handlers.NewPostHandler(posts, tasks),
	})
	return app
}

func decode(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

func cronRequest(method string) *http.Request {
	req := httptest.NewRequest(method, api.PublishScheduledPath, nil)
	req.Header.Set("Authorization", "Bearer "+cronSecret)
	return req
}

func TestPublishScheduled(t *testing.T) {
	runner := &runnerStub{summary: &job.RunSummary{RunID: "run-1", Total: 3, Processed: 2, Failed: 1}}
	app := newTestApp(runner, &postServiceStub{}, nil)

	resp, err := app.Test(cronRequest(http.MethodPost))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decode(t, resp)
	assert.Equal(t, "Scheduled posts processed", body["message"])
	assert.Equal(t, float64(3), body["total"])
	assert.Equal(t, float64(2), body["processed"])
	assert.Equal(t, float64(1), body["failed"])
	assert.Equal(t, float64(0), body["skipped"])
	assert.Equal(t, 1, runner.calls)
}

func TestPublishScheduledWrongMethod(t *testing.T) {
	runner := &runnerStub{summary: &job.RunSummary{}}
	app := newTestApp(runner, &postServiceStub{}, nil)

	for _, method := range []string{http.MethodGet, http.MethodPut, http.MethodDelete} {
		resp, err := app.Test(cronRequest(method))
		require.NoError(t, err)

		assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode, method)
		assert.Equal(t, "POST", resp.Header.Get("Allow"))
		assert.Contains(t, decode(t, resp), "error")
	}
	assert.Zero(t, runner.calls)
}

func TestPublishScheduledFailure(t *testing.T) {
	app := newTestApp(&runnerStub{err: errors.New("list due posts: connection refused")}, &postServiceStub{}, nil)

	resp, err := app.Test(cronRequest(http.MethodPost))
	require.NoError(t, err)
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	body := decode(t, resp)
	assert.Equal(t, "Failed to publish scheduled posts", body["error"])
	assert.Equal(t, "list due posts: connection refused", body["details"])
}

func TestPublishScheduledRequiresSecret(t *testing.T) {
	runner := &runnerStub{summary: &job.RunSummary{}}
	app := newTestApp(runner, &postServiceStub{}, nil)

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, api.PublishScheduledPath, nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Zero(t, runner.calls)
}

func authed(t *testing.T, req *http.Request) *http.Request {
	t.Helper()
	token, err := utils.GenerateToken(jwtSecret, "shop-1", time.Hour)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func TestCreatePostJSON(t *testing.T) {
	posts := &postServiceStub{post: &models.ScheduledPost{ID: "post-1", Status: models.PostStatusScheduled}, delay: time.Minute}
	tasks := &enqueuerStub{}
	app := newTestApp(&runnerStub{}, posts, tasks)

	body := `{"platforms":["facebook"],"scheduled_for":"2026-06-01T10:00:00Z","captions":{"default":"hi"},"image_urls":["https://cdn.example.com/a.jpg"]}`
	req := httptest.NewRequest(http.MethodPost, "/api/posts", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(authed(t, req))
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	assert.Equal(t, "shop-1", posts.owner)
	assert.Equal(t, []string{"facebook"}, posts.pc.Platforms)
	assert.Equal(t, "hi", posts.pc.Captions["default"])
	require.Len(t, tasks.tasks, 1)
	assert.JSONEq(t, `{"post_id":"post-1"}`, string(tasks.tasks[0].Payload()))
	assert.Equal(t, "post-1", decode(t, resp)["id"])
}

func TestCreatePostMultipart(t *testing.T) {
	posts := &postServiceStub{post: &models.ScheduledPost{ID: "post-2"}}
	app := newTestApp(&runnerStub{}, posts, nil)

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	require.NoError(t, w.WriteField("payload", `{"platforms":["instagram"],"scheduled_for":"2026-06-01T10:00:00Z"}`))
	part, err := w.CreateFormFile("images", "a.png")
	require.NoError(t, err)
	_, err = part.Write([]byte{0x89, 'P', 'N', 'G'})
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/posts", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := app.Test(authed(t, req))
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	assert.Equal(t, []string{"instagram"}, posts.pc.Platforms)
	assert.Equal(t, 1, posts.files)
}

func TestCreatePostErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		body   string
		status int
	}{
		{name: "validation", err: service.ErrValidation, body: `{}`, status: http.StatusBadRequest},
		{name: "store failure", err: errors.New("db down"), body: `{}`, status: http.StatusInternalServerError},
		{name: "malformed json", body: `{`, status: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newTestApp(&runnerStub{}, &postServiceStub{err: tt.err}, nil)
			req := httptest.NewRequest(http.MethodPost, "/api/posts", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")

			resp, err := app.Test(authed(t, req))
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
}

func TestCreatePostRequiresAuth(t *testing.T) {
	app := newTestApp(&runnerStub{}, &postServiceStub{}, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/posts", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestGetPost(t *testing.T) {
	app := newTestApp(&runnerStub{}, &postServiceStub{}, nil)

	resp, err := app.Test(authed(t, httptest.NewRequest(http.MethodGet, "/api/posts/abc", nil)))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decode(t, resp)
	post := body["post"].(map[string]any)
	assert.Equal(t, "abc", post["id"])
	assert.Len(t, body["attempts"], 1)

	missing := newTestApp(&runnerStub{}, &postServiceStub{getErr: service.ErrPostNotFound}, nil)
	resp, err = missing.Test(authed(t, httptest.NewRequest(http.MethodGet, "/api/posts/abc", nil)))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHealthAndMetrics(t *testing.T) {
	app := newTestApp(&runnerStub{}, &postServiceStub{}, nil)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	raw, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(raw), "go_goroutines")
}
