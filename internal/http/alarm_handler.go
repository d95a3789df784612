package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/example/alarmd/internal/alarm"
	"github.com/example/alarmd/internal/application"
)

type alarmService interface {
	CreateDefinition(ctx context.Context, input application.DefinitionInput) (alarm.Definition, error)
	UpdateDefinition(ctx context.Context, definitionID string, input application.DefinitionInput) (alarm.Definition, error)
	SetDefinitionEnabled(ctx context.Context, definitionID string, enabled bool) (alarm.Definition, error)
	DeleteDefinition(ctx context.Context, definitionID string) error
	GetDefinition(ctx context.Context, definitionID string) (alarm.Definition, error)
	ListDefinitions(ctx context.Context) ([]alarm.Definition, error)
	Snooze(ctx context.Context, instanceID string) (alarm.Instance, error)
	Dismiss(ctx context.Context, instanceID string) error
	NextFiring(ctx context.Context) (alarm.Instance, bool, error)
	OnTimeDiscontinuity(ctx context.Context) error
}

// AlarmHandler exposes the alarm service over HTTP.
type AlarmHandler struct {
	service   alarmService
	responder responder
}

// NewAlarmHandler constructs a handler delegating to the given service.
func NewAlarmHandler(service alarmService, logger *slog.Logger) *AlarmHandler {
	return &AlarmHandler{service: service, responder: newResponder(logger)}
}

type definitionRequest struct {
	Hour           int    `json:"hour"`
	Minute         int    `json:"minute"`
	Weekdays       []int  `json:"weekdays"`
	Enabled        bool   `json:"enabled"`
	Label          string `json:"label"`
	Vibrate        bool   `json:"vibrate"`
	AlertRef       string `json:"alert_ref"`
	Silent         bool   `json:"silent"`
	SnoozeDuration string `json:"snooze_duration"`
	DeleteAfterUse bool   `json:"delete_after_use"`
}

func (r definitionRequest) toInput() (application.DefinitionInput, error) {
	input := application.DefinitionInput{
		Hour:           r.Hour,
		Minute:         r.Minute,
		Enabled:        r.Enabled,
		Label:          r.Label,
		Vibrate:        r.Vibrate,
		AlertRef:       r.AlertRef,
		Silent:         r.Silent,
		DeleteAfterUse: r.DeleteAfterUse,
	}
	for _, day := range r.Weekdays {
		input.Weekdays = append(input.Weekdays, time.Weekday(day))
	}
	if strings.TrimSpace(r.SnoozeDuration) != "" {
		d, err := time.ParseDuration(r.SnoozeDuration)
		if err != nil {
			return application.DefinitionInput{}, errBadRequestBody
		}
		input.SnoozeDuration = d
	}
	return input, nil
}

type definitionResponse struct {
	ID             string    `json:"id"`
	Hour           int       `json:"hour"`
	Minute         int       `json:"minute"`
	Weekdays       []int     `json:"weekdays"`
	Enabled        bool      `json:"enabled"`
	Label          string    `json:"label"`
	Vibrate        bool      `json:"vibrate"`
	AlertRef       string    `json:"alert_ref,omitempty"`
	Silent         bool      `json:"silent"`
	SnoozeDuration string    `json:"snooze_duration,omitempty"`
	DeleteAfterUse bool      `json:"delete_after_use"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func toDefinitionResponse(def alarm.Definition) definitionResponse {
	resp := definitionResponse{
		ID:             def.ID,
		Hour:           def.Hour,
		Minute:         def.Minute,
		Enabled:        def.Enabled,
		Label:          def.Label,
		Vibrate:        def.Vibrate,
		AlertRef:       def.AlertRef,
		Silent:         def.Silent,
		DeleteAfterUse: def.DeleteAfterUse,
		CreatedAt:      def.CreatedAt,
		UpdatedAt:      def.UpdatedAt,
	}
	for _, day := range def.Recurrence.Weekdays() {
		resp.Weekdays = append(resp.Weekdays, int(day))
	}
	if def.SnoozeDuration > 0 {
		resp.SnoozeDuration = def.SnoozeDuration.String()
	}
	return resp
}

type instanceResponse struct {
	ID           string     `json:"id"`
	DefinitionID string     `json:"definition_id"`
	TriggerAt    time.Time  `json:"trigger_at"`
	State        string     `json:"state"`
	Label        string     `json:"label,omitempty"`
	SnoozedUntil *time.Time `json:"snoozed_until,omitempty"`
}

func toInstanceResponse(inst alarm.Instance) instanceResponse {
	return instanceResponse{
		ID:           inst.ID,
		DefinitionID: inst.DefinitionID,
		TriggerAt:    inst.TriggerAt,
		State:        inst.State.String(),
		Label:        inst.Label,
		SnoozedUntil: inst.SnoozedUntil,
	}
}

// Create handles POST /alarms.
func (h *AlarmHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req definitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}
	input, err := req.toInput()
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}

	def, err := h.service.CreateDefinition(r.Context(), input)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, toDefinitionResponse(def))
}

// Update handles PUT /alarms/{id}.
func (h *AlarmHandler) Update(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	alarmID, ok := AlarmIDFromContext(r.Context())
	if !ok || strings.TrimSpace(alarmID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidAlarmID)
		return
	}

	var req definitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}
	input, err := req.toInput()
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}

	def, err := h.service.UpdateDefinition(r.Context(), alarmID, input)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toDefinitionResponse(def))
}

// Delete handles DELETE /alarms/{id}.
func (h *AlarmHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	alarmID, ok := AlarmIDFromContext(r.Context())
	if !ok || strings.TrimSpace(alarmID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidAlarmID)
		return
	}

	if err := h.service.DeleteDefinition(r.Context(), alarmID); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

// Get handles GET /alarms/{id}.
func (h *AlarmHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	alarmID, ok := AlarmIDFromContext(r.Context())
	if !ok || strings.TrimSpace(alarmID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidAlarmID)
		return
	}

	def, err := h.service.GetDefinition(r.Context(), alarmID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toDefinitionResponse(def))
}

// List handles GET /alarms.
func (h *AlarmHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	defs, err := h.service.ListDefinitions(r.Context())
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	responses := make([]definitionResponse, 0, len(defs))
	for _, def := range defs {
		responses = append(responses, toDefinitionResponse(def))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, responses)
}

// SetEnabled handles POST /alarms/{id}/enable and /alarms/{id}/disable.
func (h *AlarmHandler) SetEnabled(w http.ResponseWriter, r *http.Request, enabled bool) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	alarmID, ok := AlarmIDFromContext(r.Context())
	if !ok || strings.TrimSpace(alarmID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidAlarmID)
		return
	}

	def, err := h.service.SetDefinitionEnabled(r.Context(), alarmID, enabled)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toDefinitionResponse(def))
}

// NextFiring handles GET /alarms/next.
func (h *AlarmHandler) NextFiring(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	inst, found, err := h.service.NextFiring(r.Context())
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	if !found {
		h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toInstanceResponse(inst))
}

// Snooze handles POST /instances/{id}/snooze.
func (h *AlarmHandler) Snooze(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	instanceID, ok := InstanceIDFromContext(r.Context())
	if !ok || strings.TrimSpace(instanceID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidInstanceID)
		return
	}

	inst, err := h.service.Snooze(r.Context(), instanceID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toInstanceResponse(inst))
}

// Dismiss handles POST /instances/{id}/dismiss.
func (h *AlarmHandler) Dismiss(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	instanceID, ok := InstanceIDFromContext(r.Context())
	if !ok || strings.TrimSpace(instanceID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidInstanceID)
		return
	}

	if err := h.service.Dismiss(r.Context(), instanceID); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

// Reconcile handles POST /reconcile, re-deriving all instances after an
// externally detected time discontinuity.
func (h *AlarmHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	if err := h.service.OnTimeDiscontinuity(r.Context()); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}
