package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"melodex/core/scanner"
	"melodex/logger"
	"melodex/model"
	"melodex/repository"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// progressHub fans scan progress out to websocket subscribers,
// per user. Slow subscribers drop ticks instead of slowing the scan.
type progressHub struct {
	mu   sync.Mutex
	subs map[int64][]chan scanner.Progress
}

func newProgressHub() *progressHub {
	return &progressHub{subs: make(map[int64][]chan scanner.Progress)}
}

func (hub *progressHub) subscribe(userID int64) chan scanner.Progress {
	ch := make(chan scanner.Progress, 64)
	hub.mu.Lock()
	hub.subs[userID] = append(hub.subs[userID], ch)
	hub.mu.Unlock()
	return ch
}

func (hub *progressHub) unsubscribe(userID int64, ch chan scanner.Progress) {
	hub.mu.Lock()
	defer hub.mu.Unlock()
	subs := hub.subs[userID]
	for i, sub := range subs {
		if sub == ch {
			hub.subs[userID] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	close(ch)
}

func (hub *progressHub) publish(userID int64, p scanner.Progress) {
	hub.mu.Lock()
	defer hub.mu.Unlock()
	for _, ch := range hub.subs[userID] {
		select {
		case ch <- p:
		default:
		}
	}
}

type scanRequest struct {
	Path string `json:"path,omitempty"`
	Full bool   `json:"full"`
}

// TriggerScanHandler starts a tree scan in the background and returns
// the job id. Progress is observable via the scan status endpoint and
// the websocket stream.
func (h *APIHandler) TriggerScanHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	username, err := GetUsernameFromContext(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req scanRequest
	if r.Body != nil {
		// An empty body means a full-library incremental scan.
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	root, err := h.scanner.ResolveOwnerFolder(&model.User{ID: userID, Username: username})
	if err != nil {
		http.Error(w, "Library folder not found", http.StatusNotFound)
		return
	}
	path := root
	if req.Path != "" {
		if !scanner.PathIsUnder(req.Path, root) {
			http.Error(w, "Path outside library", http.StatusBadRequest)
			return
		}
		path = req.Path
	}

	job := &model.ScanJob{
		ID:     uuid.NewString(),
		UserID: userID,
		Path:   path,
		Full:   req.Full,
		Status: model.ScanStatusRunning,
	}
	if err := h.scanJobs.Create(r.Context(), job); err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	// The scan outlives the HTTP request on purpose.
	go h.runScanJob(job)

	respondJSON(w, http.StatusAccepted, job)
}

func (h *APIHandler) runScanJob(job *model.ScanJob) {
	ctx := context.Background()
	report, err := h.scanner.ScanTree(ctx, job.UserID, job.Path, job.Full, func(p scanner.Progress) {
		job.FilesScanned = p.FilesScanned
		h.progress.publish(job.UserID, p)
	})

	switch {
	case err == context.Canceled:
		job.Status = model.ScanStatusCancelled
	case err != nil:
		job.Status = model.ScanStatusFailed
		job.Error = err.Error()
		logger.Error("scan job failed", logger.String("jobID", job.ID), logger.ErrorField(err))
	default:
		job.Status = model.ScanStatusCompleted
		job.FilesScanned = report.FilesScanned
	}

	if err := h.scanJobs.Update(ctx, job); err != nil {
		logger.Error("failed to record scan job state",
			logger.String("jobID", job.ID), logger.ErrorField(err))
	}

	// A full scan may have deleted tracks in bulk; sweep the orphans
	// right away instead of waiting for the periodic pass.
	if job.Full && job.Status == model.ScanStatusCompleted {
		if _, err := h.maint.CleanUp(ctx, &job.UserID); err != nil {
			logger.Error("post-scan cleanup failed", logger.ErrorField(err))
		}
	}
}

// ScanStatusHandler reports the most recent scan job of the user.
func (h *APIHandler) ScanStatusHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	job, err := h.scanJobs.LatestByUserID(r.Context(), userID)
	if err == repository.ErrNotFound {
		http.Error(w, "No scan recorded", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, job)
}

// ScanProgressWSHandler streams progress ticks of the user's running
// scans over a websocket until the client disconnects.
func (h *APIHandler) ScanProgressWSHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("websocket upgrade failed", logger.ErrorField(err))
		return
	}
	defer conn.Close()

	ch := h.progress.subscribe(userID)
	defer h.progress.unsubscribe(userID, ch)

	// Reads are discarded; the read loop only notices the disconnect.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		case p, ok := <-ch:
			if !ok {
				return
			}
			if err := conn.WriteJSON(p); err != nil {
				return
			}
		}
	}
}

// CleanupHandler runs an orphan sweep for the calling user.
func (h *APIHandler) CleanupHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	report, err := h.maint.CleanUp(r.Context(), &userID)
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, report)
}

// ResetHandler wipes the calling user's whole index.
func (h *APIHandler) ResetHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	report, err := h.maint.ResetAllData(r.Context(), userID)
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, report)
}

type shareWebhook struct {
	UserIDs []int64 `json:"userIds"`
	FileID  int64   `json:"fileId"`
	Path    string  `json:"path"`
	Folder  bool    `json:"folder"`
}

// ShareWebhookHandler receives share notifications from the sharing
// subsystem. The hook adapter swallows indexing failures, so this
// always acknowledges.
func (h *APIHandler) ShareWebhookHandler(w http.ResponseWriter, r *http.Request) {
	var req shareWebhook
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	h.hooks.ItemShared(r.Context(), req.UserIDs, req.FileID, req.Path, req.Folder)
	w.WriteHeader(http.StatusAccepted)
}

// UnshareWebhookHandler receives unshare notifications.
func (h *APIHandler) UnshareWebhookHandler(w http.ResponseWriter, r *http.Request) {
	var req shareWebhook
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	h.hooks.ItemUnshared(r.Context(), req.UserIDs, req.FileID)
	w.WriteHeader(http.StatusAccepted)
}
