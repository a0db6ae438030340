package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/Leo328/basic-youtube-voice-cloning-app/internal/observe"
	"github.com/Leo328/basic-youtube-voice-cloning-app/internal/pipeline"
)

// submitRequest is the JSON body for POST /jobs.
type submitRequest struct {
	URL string `json:"url"`
}

// submitResponse is returned with 202 Accepted.
type submitResponse struct {
	JobID string `json:"job_id"`
}

// jobResponse is the snapshot body for GET /jobs/{id}.
type jobResponse struct {
	JobID      string     `json:"job_id"`
	URL        string     `json:"url"`
	State      string     `json:"state"`
	VoiceID    string     `json:"voice_id,omitempty"`
	Error      string     `json:"error,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

func toJobResponse(snap pipeline.Snapshot) jobResponse {
	resp := jobResponse{
		JobID:     snap.ID,
		URL:       snap.URL,
		State:     string(snap.State),
		VoiceID:   snap.VoiceID,
		Error:     snap.Failure,
		CreatedAt: snap.CreatedAt,
	}
	if !snap.FinishedAt.IsZero() {
		t := snap.FinishedAt
		resp.FinishedAt = &t
	}
	return resp
}

// handleSubmitJob handles POST /jobs.
func (s *Server) handleSubmitJob(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	id, err := s.orch.Submit(r.Context(), req.URL)
	if err != nil {
		if errors.Is(err, pipeline.ErrEmptyURL) {
			writeError(w, http.StatusBadRequest, "url is required")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to start job")
		return
	}

	writeJSON(w, http.StatusAccepted, submitResponse{JobID: id})
}

// handleJobStatus handles GET /jobs/{id}.
func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	snap, err := s.orch.Job(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "unknown job")
		return
	}
	writeJSON(w, http.StatusOK, toJobResponse(snap))
}

// handleCancelJob handles DELETE /jobs/{id}.
func (s *Server) handleCancelJob(w http.ResponseWriter, r *http.Request) {
	err := s.orch.Cancel(r.PathValue("id"))
	switch {
	case errors.Is(err, pipeline.ErrUnknownJob):
		writeError(w, http.StatusNotFound, "unknown job")
	case errors.Is(err, pipeline.ErrJobFinished):
		writeError(w, http.StatusConflict, "job already finished")
	case err != nil:
		writeError(w, http.StatusInternalServerError, "cancel failed")
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

// progressMessage is one websocket frame on the progress stream.
type progressMessage struct {
	JobID     string    `json:"job_id"`
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
}

// handleProgress handles GET /jobs/{id}/progress: upgrades to a websocket
// and forwards progress events until the job reaches a terminal state. A
// subscriber that joins late misses earlier events; the job snapshot
// endpoint carries the current state.
func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := s.orch.Job(id); err != nil {
		writeError(w, http.StatusNotFound, "unknown job")
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		observe.Logger(r.Context()).Warn("websocket accept failed", "job_id", id, "err", err)
		return
	}
	defer conn.CloseNow()

	events, cancel := s.bus.Subscribe(id)
	defer cancel()

	s.metrics.ActiveSubscribers.Add(r.Context(), 1)
	defer s.metrics.ActiveSubscribers.Add(context.Background(), -1)

	ctx := r.Context()
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				// Terminal: the broadcaster closed the stream.
				_ = conn.Close(websocket.StatusNormalClosure, "job finished")
				return
			}
			msg := progressMessage{JobID: ev.JobID, Timestamp: ev.Timestamp, Message: ev.Message}
			if err := wsjson.Write(ctx, conn, msg); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}
