package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Leo328/basic-youtube-voice-cloning-app/internal/observe"
	"github.com/Leo328/basic-youtube-voice-cloning-app/internal/voicestore"
	"github.com/Leo328/basic-youtube-voice-cloning-app/pkg/cloning"
)

// saveVoiceRequest is the JSON body for POST /voices.
type saveVoiceRequest struct {
	Name    string `json:"name"`
	VoiceID string `json:"voice_id"`
}

// voiceResponse echoes a saved binding.
type voiceResponse struct {
	Name    string `json:"name"`
	VoiceID string `json:"voice_id"`
}

// listVoicesResponse is the body for GET /voices.
type listVoicesResponse struct {
	Voices map[string]string `json:"voices"`
}

// speakRequest is the JSON body for POST /voices/{name}/speak.
type speakRequest struct {
	Text string `json:"text"`
}

// handleSaveVoice handles POST /voices: bind a name to a voice ID from a
// completed job. The upstream voice is renamed to match as a best-effort
// courtesy; a rename failure does not fail the save.
func (s *Server) handleSaveVoice(w http.ResponseWriter, r *http.Request) {
	var req saveVoiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.VoiceID == "" {
		writeError(w, http.StatusBadRequest, "voice_id is required")
		return
	}

	if err := s.store.Create(req.Name, req.VoiceID); err != nil {
		switch {
		case errors.Is(err, voicestore.ErrEmptyName):
			writeError(w, http.StatusBadRequest, "name is required")
		case errors.Is(err, voicestore.ErrDuplicateName):
			writeError(w, http.StatusConflict, "voice name already taken")
		default:
			writeError(w, http.StatusInternalServerError, "failed to save voice")
		}
		return
	}

	if err := s.cloner.RenameVoice(r.Context(), req.VoiceID, req.Name); err != nil {
		observe.Logger(r.Context()).Warn("upstream voice rename failed",
			"voice_id", req.VoiceID, "name", req.Name, "err", err)
	}

	writeJSON(w, http.StatusCreated, voiceResponse{Name: req.Name, VoiceID: req.VoiceID})
}

// handleListVoices handles GET /voices.
func (s *Server) handleListVoices(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, listVoicesResponse{Voices: s.store.List()})
}

// handleDeleteVoice handles DELETE /voices/{name}: remove the binding and
// delete the voice upstream. The local registry is authoritative, so an
// upstream failure (other than the voice already being gone) is logged but
// does not keep the binding alive.
func (s *Server) handleDeleteVoice(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	voiceID, err := s.store.Lookup(name)
	if err != nil {
		writeError(w, http.StatusNotFound, "unknown voice name")
		return
	}

	if err := s.cloner.DeleteVoice(r.Context(), voiceID); err != nil {
		if cloning.KindOf(err) != cloning.KindUnknownVoice {
			observe.Logger(r.Context()).Warn("upstream voice delete failed",
				"voice_id", voiceID, "name", name, "err", err)
		}
	}

	if err := s.store.Delete(name); err != nil {
		if errors.Is(err, voicestore.ErrNotFound) {
			writeError(w, http.StatusNotFound, "unknown voice name")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to delete voice")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleSpeak handles POST /voices/{name}/speak: synthesize text with a
// saved voice and return the audio bytes.
func (s *Server) handleSpeak(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	voiceID, err := s.store.Lookup(name)
	if err != nil {
		writeError(w, http.StatusNotFound, "unknown voice name")
		return
	}

	var req speakRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	audio, err := s.cloner.Synthesize(r.Context(), voiceID, req.Text)
	if err != nil {
		writeError(w, cloningStatus(err), err.Error())
		return
	}

	w.Header().Set("Content-Type", "audio/mpeg")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(audio)
}

// serviceInfo is the body for GET /.
type serviceInfo struct {
	Service string `json:"service"`
	Version string `json:"version"`
}

// handleServiceInfo handles GET /.
func (s *Server) handleServiceInfo(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, serviceInfo{Service: "voicecloned", Version: s.version})
}
