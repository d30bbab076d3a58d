package scene

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/inamate/bubblesets/internal/auth"
	"github.com/inamate/bubblesets/internal/document"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type createRequest struct {
	Name   string `json:"name"`
	Sample bool   `json:"sample"`
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())

	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}

	sc, err := h.service.Create(r.Context(), req.Name, userID, req.Sample)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sc)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	scenes, err := h.service.List(r.Context(), auth.UserIDFromContext(r.Context()))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, scenes)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	sc, err := h.service.Get(r.Context(), mux.Vars(r)["sceneId"], auth.UserIDFromContext(r.Context()))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sc)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), mux.Vars(r)["sceneId"], auth.UserIDFromContext(r.Context())); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Document(w http.ResponseWriter, r *http.Request) {
	doc, err := h.service.Document(r.Context(), mux.Vars(r)["sceneId"], auth.UserIDFromContext(r.Context()))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (h *Handler) AddGrouping(w http.ResponseWriter, r *http.Request) {
	var g document.Grouping
	if err := json.NewDecoder(r.Body).Decode(&g); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if id, ok := mux.Vars(r)["groupingId"]; ok {
		g.ID = id
	}

	out, err := h.service.AddGrouping(r.Context(), mux.Vars(r)["sceneId"], auth.UserIDFromContext(r.Context()), g)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func (h *Handler) RemoveGrouping(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := h.service.RemoveGrouping(r.Context(), vars["sceneId"], auth.UserIDFromContext(r.Context()), vars["groupingId"]); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Outline(w http.ResponseWriter, r *http.Request) {
	out, err := h.service.Outline(r.Context(), mux.Vars(r)["sceneId"], auth.UserIDFromContext(r.Context()))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	case errors.Is(err, ErrForbidden):
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "forbidden"})
	case errors.Is(err, ErrConflict):
		writeJSON(w, http.StatusConflict, map[string]string{"error": "scene changed, reload and retry"})
	case errors.Is(err, ErrInvalidGrouping), errors.Is(err, document.ErrInvalidScene):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
	default:
		slog.Error("service error", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// Routes registers the scene endpoints on an authenticated router.
func (h *Handler) Routes(api *mux.Router) {
	api.HandleFunc("/scenes", h.List).Methods("GET")
	api.HandleFunc("/scenes", h.Create).Methods("POST")
	api.HandleFunc("/scenes/{sceneId}", h.Get).Methods("GET")
	api.HandleFunc("/scenes/{sceneId}", h.Delete).Methods("DELETE")
	api.HandleFunc("/scenes/{sceneId}/document", h.Document).Methods("GET")
	api.HandleFunc("/scenes/{sceneId}/groupings", h.AddGrouping).Methods("POST")
	api.HandleFunc("/scenes/{sceneId}/groupings/{groupingId}", h.AddGrouping).Methods("PUT")
	api.HandleFunc("/scenes/{sceneId}/groupings/{groupingId}", h.RemoveGrouping).Methods("DELETE")
	api.HandleFunc("/scenes/{sceneId}/outline", h.Outline).Methods("GET")
}
