package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/example/session-scheduler/internal/application"
	"github.com/example/session-scheduler/internal/recurrence"
)

type templateService interface {
	CreateTemplate(ctx context.Context, input application.TemplateInput) (application.Session, application.GenerateResult, error)
	UpdateTemplate(ctx context.Context, id string, input application.TemplateInput) (application.Session, application.GenerateResult, error)
	GetSession(ctx context.Context, id string) (application.Session, error)
	ListOccurrences(ctx context.Context, templateID string) ([]application.Session, error)
	GenerateOccurrences(ctx context.Context, templateID string) (application.GenerateResult, error)
	GenerateAll(ctx context.Context) (application.BatchResult, error)
	SyncChildrenFromTemplate(ctx context.Context, templateID string) (application.SyncResult, error)
}

// TemplateHandler serves the template administration endpoints.
type TemplateHandler struct {
	service   templateService
	responder responder
	logger    *slog.Logger
}

func NewTemplateHandler(service templateService, logger *slog.Logger) *TemplateHandler {
	return &TemplateHandler{service: service, responder: newResponder(logger), logger: defaultLogger(logger)}
}

func (h *TemplateHandler) Create(w http.ResponseWriter, r *http.Request) {
	input, ok := h.decodeTemplate(w, r)
	if !ok {
		return
	}

	template, result, err := h.service.CreateTemplate(r.Context(), input)
	if err != nil && template.ID == "" {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.renderSaved(r.Context(), w, template, result, err, http.StatusCreated)
}

func (h *TemplateHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	input, ok := h.decodeTemplate(w, r)
	if !ok {
		return
	}

	template, result, err := h.service.UpdateTemplate(r.Context(), id, input)
	if err != nil && template.ID == "" {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.renderSaved(r.Context(), w, template, result, err, http.StatusOK)
}

func (h *TemplateHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	template, err := h.service.GetSession(r.Context(), id)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	if !template.IsTemplate() {
		h.responder.handleServiceError(r.Context(), w, application.ErrNotTemplate)
		return
	}
	occurrences, err := h.service.ListOccurrences(r.Context(), id)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, templateResponse{
		Template:    toSessionDTO(template),
		RRule:       templateRRule(template),
		Occurrences: toSessionDTOs(occurrences),
	})
}

func (h *TemplateHandler) Generate(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.GenerateOccurrences(r.Context(), r.PathValue("id"))
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toGenerateDTO(result))
}

func (h *TemplateHandler) GenerateAll(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.GenerateAll(r.Context())
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, batchDTO{
		Templates: result.Templates,
		Created:   result.Created,
		Seeded:    result.Seeded,
		Errors:    nonNil(result.Errors),
	})
}

func (h *TemplateHandler) Sync(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.SyncChildrenFromTemplate(r.Context(), r.PathValue("id"))
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toSyncDTO(result))
}

func (h *TemplateHandler) Calendar(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	template, err := h.service.GetSession(r.Context(), id)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	occurrences, err := h.service.ListOccurrences(r.Context(), id)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	body := renderCalendar(template, occurrences)
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(body)); err != nil {
		handlerLogger(r.Context(), h.logger, "TemplateHandler", "Calendar").Warn("write calendar failed", "error", err)
	}
}

// renderSaved writes a stored template. A generation failure after a successful save is
// reported inside the body rather than as an error status.
func (h *TemplateHandler) renderSaved(ctx context.Context, w http.ResponseWriter, template application.Session, result application.GenerateResult, err error, status int) {
	payload := savedTemplateResponse{
		Template:   toSessionDTO(template),
		RRule:      templateRRule(template),
		Generation: toGenerateDTO(result),
	}
	if err != nil {
		handlerLogger(ctx, h.logger, "TemplateHandler", "Save", "template_id", template.ID).
			Warn("template saved but generation failed", "error", err, "error_kind", application.ErrorKind(err))
		payload.GenerationError = err.Error()
	}
	h.responder.writeJSON(ctx, w, status, payload)
}

func (h *TemplateHandler) decodeTemplate(w http.ResponseWriter, r *http.Request) (application.TemplateInput, bool) {
	var req templateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return application.TemplateInput{}, false
	}
	input, vErr := req.toInput()
	if vErr != nil {
		h.responder.handleServiceError(r.Context(), w, vErr)
		return application.TemplateInput{}, false
	}
	return input, true
}

type templateRequest struct {
	Name          string   `json:"name"`
	Type          string   `json:"type"`
	RepeatType    string   `json:"repeat_type"`
	RepeatDays    []string `json:"repeat_days"`
	RepeatEndDate *string  `json:"repeat_end_date"`
	SessionDate   string   `json:"session_date"`
	StartTime     string   `json:"start_time"`
	EndTime       string   `json:"end_time"`
	ValidFrom     *string  `json:"valid_from"`
	ValidUntil    *string  `json:"valid_until"`
	CreatedBy     string   `json:"created_by"`
	ItemIDs       []string `json:"item_ids"`
	UserIDs       []string `json:"user_ids"`
}

func (req templateRequest) toInput() (application.TemplateInput, *application.ValidationError) {
	errs := make(map[string]string)
	input := application.TemplateInput{
		Name:          strings.TrimSpace(req.Name),
		Type:          strings.TrimSpace(req.Type),
		RepeatType:    strings.TrimSpace(req.RepeatType),
		RepeatDays:    append([]string(nil), req.RepeatDays...),
		RepeatEndDate: parseOptionalDate("repeat_end_date", req.RepeatEndDate, errs),
		StartTime:     strings.TrimSpace(req.StartTime),
		EndTime:       strings.TrimSpace(req.EndTime),
		ValidFrom:     parseOptionalInstant("valid_from", req.ValidFrom, errs),
		ValidUntil:    parseOptionalInstant("valid_until", req.ValidUntil, errs),
		CreatedBy:     strings.TrimSpace(req.CreatedBy),
		ItemIDs:       append([]string(nil), req.ItemIDs...),
		UserIDs:       append([]string(nil), req.UserIDs...),
	}
	if date := parseOptionalDate("session_date", &req.SessionDate, errs); date != nil {
		input.SessionDate = *date
	}
	if len(errs) > 0 {
		return application.TemplateInput{}, &application.ValidationError{FieldErrors: errs}
	}
	return input, nil
}

type templateResponse struct {
	Template    sessionDTO   `json:"template"`
	RRule       string       `json:"rrule,omitempty"`
	Occurrences []sessionDTO `json:"occurrences"`
}

type savedTemplateResponse struct {
	Template        sessionDTO  `json:"template"`
	RRule           string      `json:"rrule,omitempty"`
	Generation      generateDTO `json:"generation"`
	GenerationError string      `json:"generation_error,omitempty"`
}

func templateRRule(template application.Session) string {
	rule, err := recurrence.NewRule(string(template.RepeatType), template.RepeatDays, template.SessionDate, template.RepeatEndDate)
	if err != nil || !rule.Recurring() {
		return ""
	}
	value, err := rule.RRule()
	if err != nil {
		return ""
	}
	return value
}
