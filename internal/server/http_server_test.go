package server

import (
	"encoding/json"
	"errors"
	"image"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/darkepoch/mubot/internal/bot"
	"github.com/darkepoch/mubot/internal/client"
	"github.com/darkepoch/mubot/internal/task"
)

type fakeController struct {
	calls []string
	err   error
}

func (f *fakeController) record(name string) error {
	f.calls = append(f.calls, name)
	return f.err
}

func (f *fakeController) Start() error  { return f.record("start") }
func (f *fakeController) Stop() error   { return f.record("stop") }
func (f *fakeController) Pause() error  { return f.record("pause") }
func (f *fakeController) Resume() error { return f.record("resume") }
func (f *fakeController) Status() bot.Status {
	return bot.Status{State: "idle", ErrorThreshold: 5}
}

type fakeClients struct {
	list     []client.ClientWindow
	tasks    map[client.ID]task.Task
	arranged bool
}

func (f *fakeClients) Clients() []client.ClientWindow { return f.list }
func (f *fakeClients) Get(id client.ID) (client.ClientWindow, bool) {
	for _, c := range f.list {
		if c.ID == id {
			return c, true
		}
	}
	return client.ClientWindow{}, false
}
func (f *fakeClients) TaskFor(id client.ID) (task.Task, bool) {
	t, found := f.tasks[id]
	return t, found
}
func (f *fakeClients) AssignTask(id client.ID, t task.Task) error {
	if err := t.Validate(); err != nil {
		return err
	}
	f.tasks[id] = t
	return nil
}
func (f *fakeClients) ClearTask(id client.ID) { delete(f.tasks, id) }
func (f *fakeClients) Arrange() error {
	f.arranged = true
	return nil
}

type fakeProcesses struct {
	spawnErr   error
	terminated []int
}

func (f *fakeProcesses) Enabled() bool { return true }
func (f *fakeProcesses) Spawn() (int, error) {
	if f.spawnErr != nil {
		return 0, f.spawnErr
	}
	return 1234, nil
}
func (f *fakeProcesses) Terminate(pid int) error {
	if pid != 1234 {
		return client.ErrUnknownProcess
	}
	f.terminated = append(f.terminated, pid)
	return nil
}
func (f *fakeProcesses) Info() []client.ProcessInfo {
	return []client.ProcessInfo{{PID: 1234, Status: "running"}}
}

type fakeReferences struct {
	name   string
	region image.Rectangle
}

func (f *fakeReferences) SaveReference(name string, region image.Rectangle) (string, error) {
	f.name, f.region = name, region
	return "/refs/" + name + ".png", nil
}

type testServer struct {
	srv        *HttpServer
	handler    http.Handler
	controller *fakeController
	clients    *fakeClients
	processes  *fakeProcesses
	references *fakeReferences
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	catalog, err := task.NewCatalog(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ts := &testServer{
		controller: &fakeController{},
		clients: &fakeClients{
			list:  []client.ClientWindow{{ID: 0xA, Title: "game 1", Active: true}},
			tasks: map[client.ID]task.Task{},
		},
		processes:  &fakeProcesses{},
		references: &fakeReferences{},
	}
	srv, err := New(slog.New(slog.NewTextHandler(io.Discard, nil)), Deps{
		Controller: ts.controller,
		Clients:    ts.clients,
		Processes:  ts.processes,
		References: ts.references,
		Tasks:      catalog,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ts.srv = srv
	ts.handler = srv.Handler()
	return ts
}

func (ts *testServer) do(method, path, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, httptest.NewRequest(method, path, reader))
	return rec
}

func TestTransitions(t *testing.T) {
	for _, op := range []string{"start", "stop", "pause", "resume"} {
		ts := newTestServer(t)
		rec := ts.do(http.MethodPost, "/api/"+op, "")
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", op, rec.Code)
		}
		if len(ts.controller.calls) != 1 || ts.controller.calls[0] != op {
			t.Fatalf("%s: unexpected calls %v", op, ts.controller.calls)
		}
	}

	ts := newTestServer(t)
	if rec := ts.do(http.MethodGet, "/api/start", ""); rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405 for GET, got %d", rec.Code)
	}
}

func TestTransitionErrors(t *testing.T) {
	tests := []struct {
		err  error
		code int
	}{
		{bot.ErrUnsupportedPlatform, http.StatusNotImplemented},
		{bot.ErrAlreadyRunning, http.StatusConflict},
		{bot.ErrStillStopping, http.StatusConflict},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		ts := newTestServer(t)
		ts.controller.err = tt.err
		rec := ts.do(http.MethodPost, "/api/start", "")
		if rec.Code != tt.code {
			t.Errorf("%v: expected %d, got %d", tt.err, tt.code, rec.Code)
		}
		var body map[string]string
		if err := json.NewDecoder(rec.Body).Decode(&body); err != nil || body["error"] != tt.err.Error() {
			t.Errorf("%v: unexpected body %v (%v)", tt.err, body, err)
		}
	}
}

func TestStatus(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(http.MethodGet, "/api/status", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var msg statusMessage
	if err := json.NewDecoder(rec.Body).Decode(&msg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg.Status.State != "idle" || len(msg.Clients) != 1 || msg.Clients[0].Handle != "0xA" {
		t.Fatalf("unexpected status %+v", msg)
	}
	if len(msg.Processes) != 1 {
		t.Fatalf("expected process info, got %+v", msg.Processes)
	}
}

func TestAssignTask(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodPost, "/api/clients/0xA/task", `{"task":"combat"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}
	if got, found := ts.clients.tasks[0xA]; !found || got.Type != task.Combat {
		t.Fatalf("expected combat to be assigned, got %+v", got)
	}

	rec = ts.do(http.MethodGet, "/api/clients", "")
	if !strings.Contains(rec.Body.String(), `"task":"combat"`) {
		t.Fatalf("expected assignment in client list, got %s", rec.Body)
	}

	rec = ts.do(http.MethodDelete, "/api/clients/10/task", "")
	if rec.Code != http.StatusOK || len(ts.clients.tasks) != 0 {
		t.Fatalf("expected assignment to be cleared, got %d %v", rec.Code, ts.clients.tasks)
	}
}

func TestAssignTaskErrors(t *testing.T) {
	tests := []struct {
		path string
		body string
		code int
	}{
		{"/api/clients/0xB/task", `{"task":"combat"}`, http.StatusNotFound},
		{"/api/clients/nope/task", `{"task":"combat"}`, http.StatusBadRequest},
		{"/api/clients/0xA/task", `not json`, http.StatusBadRequest},
		{"/api/clients/0xA/task", `{"task":"dancing"}`, http.StatusNotFound},
	}

	for _, tt := range tests {
		ts := newTestServer(t)
		if rec := ts.do(http.MethodPost, tt.path, tt.body); rec.Code != tt.code {
			t.Errorf("%s %s: expected %d, got %d", tt.path, tt.body, tt.code, rec.Code)
		}
	}
}

func TestProcesses(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodPost, "/api/processes/spawn", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "1234") {
		t.Fatalf("unexpected spawn response %d %s", rec.Code, rec.Body)
	}

	if rec = ts.do(http.MethodPost, "/api/processes/1234/terminate", ""); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec = ts.do(http.MethodPost, "/api/processes/99/terminate", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown process, got %d", rec.Code)
	}
	if rec = ts.do(http.MethodPost, "/api/processes/abc/terminate", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad pid, got %d", rec.Code)
	}

	ts.processes.spawnErr = client.ErrTooManyProcesses
	if rec = ts.do(http.MethodPost, "/api/processes/spawn", ""); rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 at the process limit, got %d", rec.Code)
	}
}

func TestCaptureReference(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodPost, "/api/reference/login_button", `{"x":10,"y":20,"width":30,"height":40}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}
	if ts.references.name != "login_button" || ts.references.region != image.Rect(10, 20, 40, 60) {
		t.Fatalf("unexpected capture %q %v", ts.references.name, ts.references.region)
	}

	if rec = ts.do(http.MethodPost, "/api/reference/full", ""); rec.Code != http.StatusOK {
		t.Fatalf("expected full screen capture to succeed, got %d", rec.Code)
	}
	if !ts.references.region.Empty() {
		t.Fatalf("expected an empty region, got %v", ts.references.region)
	}
}

func TestArrangeAndIndex(t *testing.T) {
	ts := newTestServer(t)
	if rec := ts.do(http.MethodPost, "/api/arrange", ""); rec.Code != http.StatusOK || !ts.clients.arranged {
		t.Fatalf("expected windows to be arranged, got %d", rec.Code)
	}

	rec := ts.do(http.MethodGet, "/", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "game 1") {
		t.Fatalf("unexpected index page %d", rec.Code)
	}
}

func TestStopBeforeListen(t *testing.T) {
	srv := newTestServer(t).srv
	if err := srv.Stop(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := srv.Listen(0); err != nil {
		t.Fatalf("expected Listen after Stop to return nil, got %v", err)
	}
}

func TestStopWhileListening(t *testing.T) {
	for i := 0; i < 20; i++ {
		srv := newTestServer(t).srv
		done := make(chan error, 1)
		go func() { done <- srv.Listen(0) }()

		if err := srv.Stop(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		select {
		case err := <-done:
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Fatal("Listen did not return after Stop")
		}
	}
}
