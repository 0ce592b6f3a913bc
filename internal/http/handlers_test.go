package http

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/tasklab/taskd/internal/logger"
	"github.com/tasklab/taskd/internal/middleware"
	"github.com/tasklab/taskd/internal/models"
	"github.com/tasklab/taskd/internal/repository"
	"github.com/tasklab/taskd/internal/service"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	log := logger.Init("taskd-test")
	log.SetOutput(io.Discard)

	repo := repository.NewMemoryTaskRepository()
	svc := service.NewTaskService(repo)
	h := NewTaskHandler(svc, log, "test", "memory")

	handler := middleware.RequestIDMiddleware(NewMux(h))
	handler = middleware.SecurityHeadersMiddleware(handler)
	handler = middleware.LoggingMiddleware(handler)

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any) (*http.Response, []byte) {
	t.Helper()

	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		r = bytes.NewReader(b)
	}

	req, err := http.NewRequest(method, url, r)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, data
}

func decodeTask(t *testing.T, data []byte) models.Task {
	t.Helper()
	var task models.Task
	if err := json.Unmarshal(data, &task); err != nil {
		t.Fatalf("unmarshal task: %v; body=%s", err, string(data))
	}
	return task
}

func decodeList(t *testing.T, data []byte) (int, []models.Task) {
	t.Helper()
	var payload struct {
		Total int           `json:"total"`
		Tasks []models.Task `json:"tasks"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		t.Fatalf("unmarshal list: %v; body=%s", err, string(data))
	}
	return payload.Total, payload.Tasks
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)

	resp, body := doJSON(t, ts.Client(), http.MethodGet, ts.URL+"/health", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status=%d body=%s", resp.StatusCode, string(body))
	}

	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if payload["status"] != "healthy" {
		t.Fatalf("status=%v", payload["status"])
	}
	if payload["store"] != "memory" {
		t.Fatalf("store=%v", payload["store"])
	}
}

func TestRoot_ListsEndpoints(t *testing.T) {
	ts := newTestServer(t)

	resp, body := doJSON(t, ts.Client(), http.MethodGet, ts.URL+"/", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status=%d body=%s", resp.StatusCode, string(body))
	}
	if !strings.Contains(string(body), "/api/tasks") {
		t.Fatalf("body=%s", string(body))
	}
}

func TestCreateTask_RejectsEmptyTitle(t *testing.T) {
	ts := newTestServer(t)

	resp, body := doJSON(t, ts.Client(), http.MethodPost, ts.URL+"/api/tasks", map[string]any{
		"title": "   ",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status=%d body=%s", resp.StatusCode, string(body))
	}
}

func TestCreateTask_IgnoresClientSuppliedID(t *testing.T) {
	ts := newTestServer(t)

	resp, body := doJSON(t, ts.Client(), http.MethodPost, ts.URL+"/api/tasks", map[string]any{
		"id":    "evil-id",
		"title": "Buy milk",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status=%d body=%s", resp.StatusCode, string(body))
	}
	created := decodeTask(t, body)
	if created.ID == "evil-id" || !strings.HasPrefix(created.ID, "t_") {
		t.Fatalf("id=%q", created.ID)
	}
}

func TestUpdateTask_PartialPatchViaPUTAndPATCH(t *testing.T) {
	ts := newTestServer(t)

	resp, body := doJSON(t, ts.Client(), http.MethodPost, ts.URL+"/api/tasks", map[string]any{
		"title":       "Walk dog",
		"description": "before work",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status=%d body=%s", resp.StatusCode, string(body))
	}
	created := decodeTask(t, body)

	// PATCH only completed; title and description must survive.
	resp, body = doJSON(t, ts.Client(), http.MethodPatch, ts.URL+"/api/tasks/"+created.ID, map[string]any{
		"completed": true,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status=%d body=%s", resp.StatusCode, string(body))
	}
	patched := decodeTask(t, body)
	if !patched.Completed || patched.Title != "Walk dog" || patched.Description != "before work" {
		t.Fatalf("patched=%+v", patched)
	}
	if patched.UpdatedAt.Before(created.UpdatedAt) {
		t.Fatalf("updated_at went backwards")
	}

	// PUT behaves the same way (partial semantics, documented decision).
	resp, body = doJSON(t, ts.Client(), http.MethodPut, ts.URL+"/api/tasks/"+created.ID, map[string]any{
		"title": "Walk dog twice",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status=%d body=%s", resp.StatusCode, string(body))
	}
	replaced := decodeTask(t, body)
	if replaced.Title != "Walk dog twice" || !replaced.Completed {
		t.Fatalf("replaced=%+v", replaced)
	}
}

func TestUpdateTask_EmptyBodyRejected(t *testing.T) {
	ts := newTestServer(t)

	resp, body := doJSON(t, ts.Client(), http.MethodPost, ts.URL+"/api/tasks", map[string]any{
		"title": "Buy milk",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status=%d body=%s", resp.StatusCode, string(body))
	}
	created := decodeTask(t, body)

	resp, body = doJSON(t, ts.Client(), http.MethodPatch, ts.URL+"/api/tasks/"+created.ID, map[string]any{})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status=%d body=%s", resp.StatusCode, string(body))
	}
}

func TestUpdateTask_NotFoundDoesNotCreate(t *testing.T) {
	ts := newTestServer(t)

	resp, body := doJSON(t, ts.Client(), http.MethodPut, ts.URL+"/api/tasks/t_ghost", map[string]any{
		"title": "should not appear",
	})
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status=%d body=%s", resp.StatusCode, string(body))
	}

	resp, body = doJSON(t, ts.Client(), http.MethodGet, ts.URL+"/api/tasks", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status=%d body=%s", resp.StatusCode, string(body))
	}
	total, tasks := decodeList(t, body)
	if total != 0 || len(tasks) != 0 {
		t.Fatalf("update created a task: total=%d", total)
	}
}

func TestDeleteTask_SecondDeleteIs404(t *testing.T) {
	ts := newTestServer(t)

	resp, body := doJSON(t, ts.Client(), http.MethodPost, ts.URL+"/api/tasks", map[string]any{
		"title": "Ephemeral",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status=%d body=%s", resp.StatusCode, string(body))
	}
	created := decodeTask(t, body)

	resp, _ = doJSON(t, ts.Client(), http.MethodDelete, ts.URL+"/api/tasks/"+created.ID, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("first delete status=%d", resp.StatusCode)
	}

	resp, _ = doJSON(t, ts.Client(), http.MethodDelete, ts.URL+"/api/tasks/"+created.ID, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("second delete status=%d", resp.StatusCode)
	}
}

func TestSearchTasks(t *testing.T) {
	ts := newTestServer(t)

	for _, title := range []string{"Buy milk", "Buy bread", "Walk dog"} {
		resp, body := doJSON(t, ts.Client(), http.MethodPost, ts.URL+"/api/tasks", map[string]any{
			"title": title,
		})
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("status=%d body=%s", resp.StatusCode, string(body))
		}
	}

	resp, body := doJSON(t, ts.Client(), http.MethodGet, ts.URL+"/api/tasks/search?q=buy", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status=%d body=%s", resp.StatusCode, string(body))
	}
	total, tasks := decodeList(t, body)
	if total != 2 || len(tasks) != 2 {
		t.Fatalf("total=%d len=%d", total, len(tasks))
	}

	resp, body = doJSON(t, ts.Client(), http.MethodGet, ts.URL+"/api/tasks/search", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("missing q: status=%d body=%s", resp.StatusCode, string(body))
	}
}

// The canonical walkthrough: create two tasks, list, delete the first, list
// again, and confirm the deleted id is gone for good.
func TestTaskLifecycleScenario(t *testing.T) {
	ts := newTestServer(t)
	client := ts.Client()

	resp, body := doJSON(t, client, http.MethodPost, ts.URL+"/api/tasks", map[string]any{
		"title":       "Buy milk",
		"description": "2%",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status=%d body=%s", resp.StatusCode, string(body))
	}
	first := decodeTask(t, body)
	if first.Title != "Buy milk" || first.Description != "2%" || first.Completed {
		t.Fatalf("first=%+v", first)
	}
	if !first.CreatedAt.Equal(first.UpdatedAt) {
		t.Fatalf("fresh task: created_at != updated_at")
	}

	resp, body = doJSON(t, client, http.MethodPost, ts.URL+"/api/tasks", map[string]any{
		"title": "Walk dog",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status=%d body=%s", resp.StatusCode, string(body))
	}
	second := decodeTask(t, body)
	if second.ID == first.ID {
		t.Fatalf("duplicate id: %s", first.ID)
	}

	resp, body = doJSON(t, client, http.MethodGet, ts.URL+"/api/tasks", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status=%d body=%s", resp.StatusCode, string(body))
	}
	total, tasks := decodeList(t, body)
	if total != 2 || len(tasks) != 2 {
		t.Fatalf("total=%d len=%d", total, len(tasks))
	}

	resp, _ = doJSON(t, client, http.MethodDelete, ts.URL+"/api/tasks/"+first.ID, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete status=%d", resp.StatusCode)
	}

	resp, body = doJSON(t, client, http.MethodGet, ts.URL+"/api/tasks", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status=%d body=%s", resp.StatusCode, string(body))
	}
	total, tasks = decodeList(t, body)
	if total != 1 || len(tasks) != 1 || tasks[0].ID != second.ID {
		t.Fatalf("after delete: total=%d tasks=%v", total, tasks)
	}

	resp, body = doJSON(t, client, http.MethodGet, ts.URL+"/api/tasks/"+first.ID, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status=%d body=%s", resp.StatusCode, string(body))
	}
	if !strings.Contains(string(body), "task not found") {
		t.Fatalf("body=%s", string(body))
	}
}

func TestMalformedJSONIs400(t *testing.T) {
	ts := newTestServer(t)

	req, err := http.NewRequest(http.MethodPost, ts.URL+"/api/tasks", strings.NewReader("{not json"))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status=%d", resp.StatusCode)
	}
}
