package server

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"image"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/darkepoch/mubot/internal/bot"
	"github.com/darkepoch/mubot/internal/client"
	"github.com/darkepoch/mubot/internal/config"
	"github.com/darkepoch/mubot/internal/task"
)

const statusInterval = time.Second

var (
	//go:embed all:templates
	templatesFS embed.FS
)

// Clients is the registry surface exposed over HTTP.
type Clients interface {
	Clients() []client.ClientWindow
	Get(id client.ID) (client.ClientWindow, bool)
	TaskFor(id client.ID) (task.Task, bool)
	AssignTask(id client.ID, t task.Task) error
	ClearTask(id client.ID)
	Arrange() error
}

type Processes interface {
	Enabled() bool
	Spawn() (int, error)
	Terminate(pid int) error
	Info() []client.ProcessInfo
}

// References captures new reference images from the screen.
type References interface {
	SaveReference(name string, region image.Rectangle) (string, error)
}

type Tasks interface {
	Lookup(name string) (task.Task, error)
	Tasks() []task.Task
}

type Deps struct {
	Controller bot.Controller
	Clients    Clients
	Processes  Processes
	References References
	Tasks      Tasks
}

type HttpServer struct {
	logger    *slog.Logger
	deps      Deps
	templates *template.Template
	wsServer  *WebSocketServer

	mu      sync.Mutex
	server  *http.Server
	cancel  context.CancelFunc
	stopped bool
}

type clientView struct {
	client.ClientWindow
	Handle string `json:"handle"`
	Task   string `json:"task,omitempty"`
}

type statusMessage struct {
	Status    bot.Status           `json:"status"`
	Summary   string               `json:"summary"`
	Clients   []clientView         `json:"clients"`
	Processes []client.ProcessInfo `json:"processes,omitempty"`
}

type IndexData struct {
	Version string
	Status  string
	Clients []clientView
}

func New(logger *slog.Logger, deps Deps) (*HttpServer, error) {
	templates, err := template.ParseFS(templatesFS, "templates/*.gohtml")
	if err != nil {
		return nil, fmt.Errorf("error parsing templates: %w", err)
	}

	return &HttpServer{
		logger:    logger,
		deps:      deps,
		templates: templates,
		wsServer:  NewWebSocketServer(logger),
	}, nil
}

// Handler returns the routes without starting the status stream.
func (s *HttpServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.getRoot)
	mux.HandleFunc("GET /ws", s.wsServer.HandleWebSocket)
	mux.HandleFunc("GET /api/status", s.getStatus)
	mux.HandleFunc("POST /api/start", s.transition("started", s.deps.Controller.Start))
	mux.HandleFunc("POST /api/stop", s.transition("stopped", s.deps.Controller.Stop))
	mux.HandleFunc("POST /api/pause", s.transition("paused", s.deps.Controller.Pause))
	mux.HandleFunc("POST /api/resume", s.transition("resumed", s.deps.Controller.Resume))
	mux.HandleFunc("GET /api/tasks", s.getTasks)
	mux.HandleFunc("GET /api/clients", s.getClients)
	mux.HandleFunc("POST /api/clients/{id}/task", s.assignTask)
	mux.HandleFunc("DELETE /api/clients/{id}/task", s.clearTask)
	mux.HandleFunc("POST /api/arrange", s.arrange)
	mux.HandleFunc("GET /api/processes", s.getProcesses)
	mux.HandleFunc("POST /api/processes/spawn", s.spawnProcess)
	mux.HandleFunc("POST /api/processes/{pid}/terminate", s.terminateProcess)
	mux.HandleFunc("POST /api/reference/{name}", s.captureReference)

	return mux
}

// Listen serves until Stop is called. It returns nil right away if Stop already ran.
func (s *HttpServer) Listen(port int) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.server = srv
	s.mu.Unlock()

	go s.wsServer.Run(ctx)
	go s.BroadcastStatus(ctx)

	s.logger.Info("Control server listening", slog.Int("port", port))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}

func (s *HttpServer) Stop() error {
	s.mu.Lock()
	s.stopped = true
	if s.cancel != nil {
		s.cancel()
	}
	srv := s.server
	s.mu.Unlock()

	if srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}

// BroadcastStatus pushes the status to websocket clients every second.
func (s *HttpServer) BroadcastStatus(ctx context.Context) {
	ticker := time.NewTicker(statusInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			jsonData, err := json.Marshal(s.statusData())
			if err != nil {
				s.logger.Error("Failed to marshal status data", slog.Any("error", err))
				continue
			}
			s.wsServer.Broadcast(ctx, jsonData)
		}
	}
}

func (s *HttpServer) statusData() statusMessage {
	status := s.deps.Controller.Status()
	msg := statusMessage{Status: status, Summary: status.String(), Clients: s.clientViews()}
	if s.deps.Processes != nil && s.deps.Processes.Enabled() {
		msg.Processes = s.deps.Processes.Info()
	}
	return msg
}

func (s *HttpServer) clientViews() []clientView {
	views := make([]clientView, 0)
	if s.deps.Clients == nil {
		return views
	}
	for _, c := range s.deps.Clients.Clients() {
		v := clientView{ClientWindow: c, Handle: c.ID.String()}
		if t, found := s.deps.Clients.TaskFor(c.ID); found {
			v.Task = t.Label()
		}
		views = append(views, v)
	}
	return views
}

func (s *HttpServer) getRoot(w http.ResponseWriter, r *http.Request) {
	data := IndexData{
		Version: config.Version,
		Status:  s.deps.Controller.Status().String(),
		Clients: s.clientViews(),
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.templates.ExecuteTemplate(w, "index.gohtml", data); err != nil {
		s.logger.Error("Error rendering index", slog.Any("error", err))
	}
}

func (s *HttpServer) getStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.statusData())
}

func (s *HttpServer) transition(done string, op func() error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := op(); err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"result": done, "status": s.deps.Controller.Status()})
	}
}

func (s *HttpServer) getTasks(w http.ResponseWriter, r *http.Request) {
	if s.deps.Tasks == nil {
		writeJSON(w, http.StatusOK, []task.Task{})
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Tasks.Tasks())
}

func (s *HttpServer) getClients(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.clientViews())
}

type assignRequest struct {
	Task string `json:"task"`
}

func (s *HttpServer) assignTask(w http.ResponseWriter, r *http.Request) {
	c, ok := s.lookupClient(w, r)
	if !ok {
		return
	}

	var req assignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(fmt.Errorf("invalid request body: %w", err)))
		return
	}
	if req.Task == "" {
		s.deps.Clients.ClearTask(c.ID)
		writeJSON(w, http.StatusOK, map[string]string{"result": "cleared"})
		return
	}
	if s.deps.Tasks == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody(errors.New("task catalog not available")))
		return
	}

	t, err := s.deps.Tasks.Lookup(req.Task)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err = s.deps.Clients.AssignTask(c.ID, t); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"result": "assigned", "client": c.ID.String(), "task": t.Label()})
}

func (s *HttpServer) clearTask(w http.ResponseWriter, r *http.Request) {
	c, ok := s.lookupClient(w, r)
	if !ok {
		return
	}
	s.deps.Clients.ClearTask(c.ID)
	writeJSON(w, http.StatusOK, map[string]string{"result": "cleared"})
}

func (s *HttpServer) lookupClient(w http.ResponseWriter, r *http.Request) (client.ClientWindow, bool) {
	if s.deps.Clients == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody(errors.New("client registry not available")))
		return client.ClientWindow{}, false
	}
	raw, err := strconv.ParseUint(r.PathValue("id"), 0, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(fmt.Errorf("invalid client id %q", r.PathValue("id"))))
		return client.ClientWindow{}, false
	}
	c, found := s.deps.Clients.Get(client.ID(raw))
	if !found {
		writeJSON(w, http.StatusNotFound, errorBody(fmt.Errorf("client %s not found", client.ID(raw))))
		return client.ClientWindow{}, false
	}
	return c, true
}

func (s *HttpServer) arrange(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Clients.Arrange(); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"result": "arranged"})
}

func (s *HttpServer) getProcesses(w http.ResponseWriter, r *http.Request) {
	if s.deps.Processes == nil || !s.deps.Processes.Enabled() {
		writeJSON(w, http.StatusOK, []client.ProcessInfo{})
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Processes.Info())
}

func (s *HttpServer) spawnProcess(w http.ResponseWriter, r *http.Request) {
	if s.deps.Processes == nil {
		s.writeError(w, client.ErrProcessManagementDisabled)
		return
	}
	pid, err := s.deps.Processes.Spawn()
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"pid": pid})
}

func (s *HttpServer) terminateProcess(w http.ResponseWriter, r *http.Request) {
	if s.deps.Processes == nil {
		s.writeError(w, client.ErrProcessManagementDisabled)
		return
	}
	pid, err := strconv.Atoi(r.PathValue("pid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(fmt.Errorf("invalid pid %q", r.PathValue("pid"))))
		return
	}
	if err = s.deps.Processes.Terminate(pid); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"result": "terminated"})
}

type regionRequest struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// captureReference saves a new reference image. The body is an optional
// region, the whole screen is captured without one.
func (s *HttpServer) captureReference(w http.ResponseWriter, r *http.Request) {
	if s.deps.References == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody(errors.New("screen capture not available")))
		return
	}

	var req regionRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody(fmt.Errorf("invalid region: %w", err)))
			return
		}
	}
	if req.Width < 0 || req.Height < 0 {
		writeJSON(w, http.StatusBadRequest, errorBody(errors.New("region size must not be negative")))
		return
	}

	region := image.Rect(req.X, req.Y, req.X+req.Width, req.Y+req.Height)
	path, err := s.deps.References.SaveReference(r.PathValue("name"), region)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"path": path})
}

func (s *HttpServer) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("Control request failed", slog.Any("error", err))
	}
	writeJSON(w, status, errorBody(err))
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, bot.ErrUnsupportedPlatform):
		return http.StatusNotImplemented
	case errors.Is(err, bot.ErrAlreadyRunning),
		errors.Is(err, bot.ErrNotRunning),
		errors.Is(err, bot.ErrAlreadyPaused),
		errors.Is(err, bot.ErrNotPaused),
		errors.Is(err, bot.ErrStillStopping),
		errors.Is(err, client.ErrTooManyProcesses),
		errors.Is(err, client.ErrProcessManagementDisabled):
		return http.StatusConflict
	case errors.Is(err, client.ErrUnknownProcess),
		errors.Is(err, task.ErrUnknownType):
		return http.StatusNotFound
	case errors.Is(err, task.ErrInvalidParams):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func errorBody(err error) map[string]string {
	return map[string]string{"error": err.Error()}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
