package assistant

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/starkhealth/backend/internal/auth"

	log "github.com/sirupsen/logrus"
)

type chatRequest struct {
	Messages []Message `json:"messages"`
}

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{
		service: service,
	}
}

// HandleChat streams the assistant reply as server-sent events, one
// `data:` line per content chunk, terminated by `data: [DONE]`.
func (handler *Handler) HandleChat(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Errorf("handle chat: decode request: %s", err)
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	if len(req.Messages) == 0 {
		http.Error(w, "no messages provided", http.StatusBadRequest)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		log.Error("handle chat: response writer does not support streaming")
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	err := handler.service.Chat(r.Context(), userID, req.Messages, func(chunk string) error {
		payload, err := json.Marshal(chunk)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	})
	if err != nil {
		// headers are out, the error can only go on the stream
		log.Errorf("handle chat for user %s: %s", userID, err)
		fmt.Fprintf(w, "data: %s\n\n", `{"error":"assistant unavailable"}`)
		flusher.Flush()
		return
	}

	fmt.Fprint(w, "data: [DONE]\n\n")
	flusher.Flush()
}
