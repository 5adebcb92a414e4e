package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/example/session-scheduler/internal/access"
	"github.com/example/session-scheduler/internal/application"
)

type sessionService interface {
	GetSession(ctx context.Context, id string) (application.Session, error)
	Assignments(ctx context.Context, id string) (items, users []string, err error)
	SetAssignments(ctx context.Context, sessionID string, itemIDs, userIDs []string, propagate bool) (application.SyncResult, error)
	SyncSiblingsForward(ctx context.Context, sessionID string) (application.SyncResult, error)
	TransitionStatus(ctx context.Context, sessionID, target string, scheduledDate *time.Time) (application.Session, error)
	DeleteSession(ctx context.Context, sessionID string) error
	CheckWriteAccess(ctx context.Context, sessionID string) (access.Result, error)
	ListSelectable(ctx context.Context) ([]application.SelectableSession, error)
}

// SessionHandler serves per-session endpoints and the selection list.
type SessionHandler struct {
	service   sessionService
	responder responder
}

func NewSessionHandler(service sessionService, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{service: service, responder: newResponder(logger)}
}

func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	session, err := h.service.GetSession(r.Context(), id)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toSessionDTO(session))
}

func (h *SessionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteSession(r.Context(), id); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

func (h *SessionHandler) GetAssignments(w http.ResponseWriter, r *http.Request) {
	id, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	items, users, err := h.service.Assignments(r.Context(), id)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, assignmentsDTO{ItemIDs: nonNil(items), UserIDs: nonNil(users)})
}

func (h *SessionHandler) PutAssignments(w http.ResponseWriter, r *http.Request) {
	id, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	var req assignmentsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	result, err := h.service.SetAssignments(r.Context(), id, req.ItemIDs, req.UserIDs, req.Propagate)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toSyncDTO(result))
}

func (h *SessionHandler) Sync(w http.ResponseWriter, r *http.Request) {
	id, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	result, err := h.service.SyncSiblingsForward(r.Context(), id)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toSyncDTO(result))
}

func (h *SessionHandler) PutStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}
	errs := make(map[string]string)
	scheduled := parseOptionalDate("scheduled_date", req.ScheduledDate, errs)
	if len(errs) > 0 {
		h.responder.handleServiceError(r.Context(), w, &application.ValidationError{FieldErrors: errs})
		return
	}

	session, err := h.service.TransitionStatus(r.Context(), id, req.Status, scheduled)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toSessionDTO(session))
}

func (h *SessionHandler) Access(w http.ResponseWriter, r *http.Request) {
	id, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	result, err := h.service.CheckWriteAccess(r.Context(), id)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toAccessDTO(id, result))
}

func (h *SessionHandler) Selectable(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.service.ListSelectable(r.Context())
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	out := make([]selectableDTO, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, selectableDTO{
			Session:          toSessionDTO(s.Session),
			RemainingSeconds: int64(s.Remaining / time.Second),
			Urgency:          string(s.Urgency),
		})
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, selectableResponse{Sessions: out})
}

func (h *SessionHandler) sessionID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidSessionID)
		return "", false
	}
	return id, true
}

type assignmentsRequest struct {
	ItemIDs   []string `json:"item_ids"`
	UserIDs   []string `json:"user_ids"`
	Propagate bool     `json:"propagate"`
}

type statusRequest struct {
	Status        string  `json:"status"`
	ScheduledDate *string `json:"scheduled_date"`
}

type selectableResponse struct {
	Sessions []selectableDTO `json:"sessions"`
}
