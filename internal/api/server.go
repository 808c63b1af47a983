package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/bryanchriswhite/livejar/internal/config"
	"github.com/bryanchriswhite/livejar/internal/control"
	"github.com/bryanchriswhite/livejar/internal/logger"
	"github.com/bryanchriswhite/livejar/internal/metrics"
	"github.com/bryanchriswhite/livejar/internal/streams"
)

// Version is reported by the health endpoint
var Version = "0.1.0"

const maxBodyBytes = 1 << 20

// Server represents the HTTP API server
type Server struct {
	router     *mux.Router
	dispatcher *Dispatcher
	hub        *Hub
	http       *http.Server
	log        *zerolog.Logger
}

// NewServer creates a new API server
func NewServer(dispatcher *Dispatcher, hub *Hub) *Server {
	s := &Server{
		router:     mux.NewRouter(),
		dispatcher: dispatcher,
		hub:        hub,
		log:        logger.WithComponent("api"),
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()

	// Streams
	api.HandleFunc("/streams", s.handleListStreams).Methods("GET")
	api.HandleFunc("/streams", s.handleAddStream).Methods("POST")
	api.HandleFunc("/streams/{id:[0-9]+}", s.handleGetStream).Methods("GET")
	api.HandleFunc("/streams/{id:[0-9]+}", s.handleUpdateStream).Methods("PATCH")
	api.HandleFunc("/streams/{id:[0-9]+}", s.handleDeleteStream).Methods("DELETE")
	api.HandleFunc("/streams/{id:[0-9]+}/switch/{target:[0-9]+}", s.handleSwitchStreams).Methods("POST")

	// Windows
	api.HandleFunc("/windows/main/state", s.handleGetState).Methods("GET")
	api.HandleFunc("/windows/main/state", s.handleSetState).Methods("PATCH")
	api.HandleFunc("/windows/{id:[0-9]+}/state", s.handleGetState).Methods("GET")
	api.HandleFunc("/windows/{id:[0-9]+}/state", s.handleSetState).Methods("PATCH")
	api.HandleFunc("/windows/{id:[0-9]+}/open", s.handleWindowCommand("window.open")).Methods("POST")
	api.HandleFunc("/windows/{id:[0-9]+}/close", s.handleWindowCommand("window.close")).Methods("POST")
	api.HandleFunc("/windows/{id:[0-9]+}/solo", s.handleWindowCommand("window.solo")).Methods("POST")
	api.HandleFunc("/windows/{id:[0-9]+}/minimize", s.handleWindowCommand("window.minimize")).Methods("POST")
	api.HandleFunc("/windows/{id:[0-9]+}/maximize", s.handleWindowCommand("window.maximize")).Methods("POST")
	api.HandleFunc("/windows/{id:[0-9]+}/unmaximize", s.handleWindowCommand("window.unmaximize")).Methods("POST")

	// Playlists
	api.HandleFunc("/playlists", s.handleListPlaylists).Methods("GET")
	api.HandleFunc("/playlists/{type}/{label}", s.handleUpdatePlaylist).Methods("PUT")
	api.HandleFunc("/playlists/{type}/{label}", s.handleDeletePlaylist).Methods("DELETE")
	api.HandleFunc("/playlists/{type}/{label}/entries", s.handleAddToPlaylist).Methods("POST")
	api.HandleFunc("/playlists/{type}/{label}/entries/{entry}", s.handleRemoveFromPlaylist).Methods("DELETE")

	// Settings
	api.HandleFunc("/settings", s.handleGetSettings).Methods("GET")
	api.HandleFunc("/settings", s.handleUpdateSettings).Methods("PUT")
	api.HandleFunc("/settings", s.handleClearSettings).Methods("DELETE")
	api.HandleFunc("/settings/{path}", s.handleUpdateSetting).Methods("PATCH")
	api.HandleFunc("/settings/{path}", s.handleResetSetting).Methods("DELETE")

	// Application
	api.HandleFunc("/app/quit", s.handleQuit).Methods("POST")

	// Generic command endpoint, same frames as the websocket
	api.HandleFunc("/commands", s.handleListCommands).Methods("GET")
	api.HandleFunc("/commands", s.handleCommand).Methods("POST")

	// Push channels
	if s.hub != nil {
		api.Handle("/ws", s.hub)
	}

	// Health check
	api.HandleFunc("/health", s.handleHealth).Methods("GET")

	s.router.Handle("/metrics", metrics.Handler()).Methods("GET")
}

// Handler returns the routed handler with CORS applied
func (s *Server) Handler() http.Handler {
	return s.enableCORS(s.router)
}

// Start serves on port until Shutdown
func (s *Server) Start(port int) error {
	s.http = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.log.Info().Int("port", port).Msgf("Starting server on http://localhost:%d", port)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

// enableCORS adds CORS headers
func (s *Server) enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// exec marshals args, dispatches command and writes the outcome
func (s *Server) exec(w http.ResponseWriter, r *http.Request, command string, args any) {
	raw, err := json.Marshal(args)
	if err != nil {
		s.writeError(w, fmt.Errorf("%w: %v", ErrBadArgs, err))
		return
	}
	result, err := s.dispatcher.Dispatch(r.Context(), Caller{}, command, raw)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeResult(w, result)
}

func (s *Server) writeResult(w http.ResponseWriter, result any) {
	if result == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	if fields, ok := fieldErrors(err); ok {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":  err.Error(),
			"errors": fields,
		})
		return
	}

	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, ErrBadArgs), errors.Is(err, ErrUnknownCommand):
		status = http.StatusBadRequest
	case errors.Is(err, streams.ErrKindNotImplemented):
		status = http.StatusNotImplemented
	case errors.Is(err, control.ErrStopped), errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		status = http.StatusServiceUnavailable
	}
	if status == http.StatusInternalServerError {
		s.log.Error().Err(err).Msg("Request failed")
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func fieldErrors(err error) (map[string]string, bool) {
	fe, ok := config.AsFieldErrors(err)
	if !ok {
		return nil, false
	}
	return map[string]string(fe), true
}

// readBody returns the request body, nil when empty
func readBody(w http.ResponseWriter, r *http.Request) (json.RawMessage, error) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadArgs, err)
	}
	if len(data) == 0 {
		return nil, nil
	}
	if !json.Valid(data) {
		return nil, fmt.Errorf("%w: body is not valid JSON", ErrBadArgs)
	}
	return data, nil
}

func pathID(r *http.Request, name string) int {
	// route patterns only admit digits
	id, _ := strconv.Atoi(mux.Vars(r)[name])
	return id
}

// optionalPathID returns nil on the main window routes
func optionalPathID(r *http.Request) *int {
	if _, ok := mux.Vars(r)["id"]; !ok {
		return nil
	}
	id := pathID(r, "id")
	return &id
}

// HTTP Handlers

func (s *Server) handleListStreams(w http.ResponseWriter, r *http.Request) {
	s.exec(w, r, "stream.list", nil)
}

func (s *Server) handleAddStream(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.exec(w, r, "stream.add", body)
}

func (s *Server) handleGetStream(w http.ResponseWriter, r *http.Request) {
	raw, _ := json.Marshal(idArgs{ID: pathID(r, "id")})
	result, err := s.dispatcher.Dispatch(r.Context(), Caller{}, "window.get", raw)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if result == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "stream not found"})
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleUpdateStream(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.exec(w, r, "stream.update", struct {
		ID     int             `json:"id"`
		Stream json.RawMessage `json:"stream"`
	}{pathID(r, "id"), body})
}

func (s *Server) handleDeleteStream(w http.ResponseWriter, r *http.Request) {
	s.exec(w, r, "stream.delete", idArgs{ID: pathID(r, "id")})
}

func (s *Server) handleSwitchStreams(w http.ResponseWriter, r *http.Request) {
	s.exec(w, r, "stream.switch", switchArgs{ID: pathID(r, "id"), TargetID: pathID(r, "target")})
}

func (s *Server) handleGetState(w http.ResponseWriter, r *http.Request) {
	s.exec(w, r, "window.getState", optionalIDArgs{ID: optionalPathID(r)})
}

func (s *Server) handleSetState(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.exec(w, r, "window.setState", struct {
		ID    *int            `json:"id"`
		State json.RawMessage `json:"state"`
	}{optionalPathID(r), body})
}

func (s *Server) handleWindowCommand(command string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.exec(w, r, command, idArgs{ID: pathID(r, "id")})
	}
}

func (s *Server) handleQuit(w http.ResponseWriter, r *http.Request) {
	s.exec(w, r, "app.quit", nil)
}

func (s *Server) handleListPlaylists(w http.ResponseWriter, r *http.Request) {
	s.exec(w, r, "playlist.list", nil)
}

func playlistKey(r *http.Request) playlistArgs {
	vars := mux.Vars(r)
	return playlistArgs{Label: vars["label"], Type: config.StreamType(vars["type"])}
}

func (s *Server) handleUpdatePlaylist(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Entries []string `json:"entries"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, fmt.Errorf("%w: %v", ErrBadArgs, err))
		return
	}
	args := playlistKey(r)
	args.Entries = req.Entries
	if args.Entries == nil {
		args.Entries = []string{}
	}
	s.exec(w, r, "playlist.update", args)
}

func (s *Server) handleDeletePlaylist(w http.ResponseWriter, r *http.Request) {
	s.exec(w, r, "playlist.delete", playlistKey(r))
}

func (s *Server) handleAddToPlaylist(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Entry string `json:"entry"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, fmt.Errorf("%w: %v", ErrBadArgs, err))
		return
	}
	args := playlistKey(r)
	args.Entry = req.Entry
	s.exec(w, r, "playlist.add", args)
}

func (s *Server) handleRemoveFromPlaylist(w http.ResponseWriter, r *http.Request) {
	args := playlistKey(r)
	args.Entry = mux.Vars(r)["entry"]
	s.exec(w, r, "playlist.remove", args)
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	s.exec(w, r, "settings.getSettings", nil)
}

func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.exec(w, r, "settings.updateSettings", struct {
		Settings json.RawMessage `json:"settings"`
	}{body})
}

func (s *Server) handleClearSettings(w http.ResponseWriter, r *http.Request) {
	s.exec(w, r, "settings.clear", nil)
}

func (s *Server) handleUpdateSetting(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Value any `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, fmt.Errorf("%w: %v", ErrBadArgs, err))
		return
	}
	s.exec(w, r, "settings.updateSetting", settingArgs{Key: mux.Vars(r)["path"], Value: req.Value})
}

func (s *Server) handleResetSetting(w http.ResponseWriter, r *http.Request) {
	s.exec(w, r, "settings.reset", settingArgs{Key: mux.Vars(r)["path"]})
}

func (s *Server) handleListCommands(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.dispatcher.Commands())
}

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	var f Frame
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&f); err != nil {
		s.writeError(w, fmt.Errorf("%w: %v", ErrBadArgs, err))
		return
	}
	result, err := s.dispatcher.Dispatch(r.Context(), Caller{}, f.Command, f.Args)
	reply := Reply{ID: f.ID, Result: result}
	if err != nil {
		reply.Result = nil
		reply.Error = err.Error()
		reply.Fields, _ = fieldErrors(err)
	}
	writeJSON(w, http.StatusOK, reply)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": Version,
	})
}
