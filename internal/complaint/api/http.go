// Package api exposes the complaint lifecycle over HTTP
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/resolveit/grievance-platform/internal/complaint/domain"
	"github.com/resolveit/grievance-platform/internal/complaint/service"
	"github.com/resolveit/grievance-platform/internal/escalation"
	"github.com/resolveit/grievance-platform/internal/identity"
	"github.com/resolveit/grievance-platform/internal/shared/auth"
	"github.com/resolveit/grievance-platform/internal/shared/errors"
	"github.com/resolveit/grievance-platform/internal/shared/types"
)

// Handler provides HTTP handlers for the complaint module
type Handler struct {
	lifecycle *service.Lifecycle
	sweeper   *escalation.Sweeper
	store     domain.Store
}

// NewHandler creates a new complaint handler
func NewHandler(lifecycle *service.Lifecycle, sweeper *escalation.Sweeper, store domain.Store) *Handler {
	return &Handler{lifecycle: lifecycle, sweeper: sweeper, store: store}
}

// Routes registers the complaint routes. The anonymous intake endpoint is
// public; everything else requires authentication.
func (h *Handler) Routes(authMW func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()

	r.Post("/anonymous", h.CreateAnonymous)

	r.Group(func(r chi.Router) {
		r.Use(authMW)

		staff := auth.RequireRole(identity.RoleOfficer, identity.RoleAdmin)
		admin := auth.RequireRole(identity.RoleAdmin)

		// Citizen-facing: every authenticated user owns complaints
		r.Post("/", h.Create)
		r.Route("/mine", func(r chi.Router) {
			r.Get("/", h.ListMine)
			r.Route("/{complaintID}", func(r chi.Router) {
				r.Get("/", h.GetMine)
				r.Put("/", h.Edit)
				r.Post("/withdraw", h.Withdraw)
				r.Post("/rate", h.Rate)
			})
		})

		// Staff- and admin-facing
		r.With(staff).Get("/assigned", h.ListAssigned)
		r.With(admin).Get("/", h.ListAll)
		r.With(admin).Get("/officers", h.ListOfficers)
		r.Route("/{complaintID}", func(r chi.Router) {
			r.With(staff).Get("/", h.Get)
			r.With(staff).Put("/", h.OfficerUpdate)
			r.With(staff).Post("/notes", h.AddNote)
			r.With(admin).Put("/admin", h.AdminUpdate)
			r.With(admin).Post("/escalate", h.Escalate)
		})
	})

	return r
}

// --- Request types ---

type CreateComplaintRequest struct {
	Title                    string          `json:"title"`
	Description              string          `json:"description"`
	Category                 domain.Category `json:"category"`
	Priority                 domain.Priority `json:"priority"`
	DueDate                  *time.Time      `json:"due_date,omitempty"`
	EscalationThresholdHours int             `json:"escalation_threshold_hours,omitempty"`
}

type AnonymousComplaintRequest struct {
	CreateComplaintRequest
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

type EditComplaintRequest struct {
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Category    domain.Category `json:"category"`
	Priority    domain.Priority `json:"priority"`
	DueDate     *time.Time      `json:"due_date,omitempty"`
}

type RateComplaintRequest struct {
	Rating   int    `json:"rating"`
	Feedback string `json:"feedback,omitempty"`
}

// OfficerUpdateRequest deliberately carries no priority field; only
// admins may reprioritize a complaint
type OfficerUpdateRequest struct {
	Status          *domain.Status `json:"status,omitempty"`
	DueDate         *time.Time     `json:"due_date,omitempty"`
	AssignOfficerID *types.ID      `json:"assign_officer_id,omitempty"`
	Comment         string         `json:"comment,omitempty"`
}

type AdminUpdateRequest struct {
	Status          *domain.Status   `json:"status,omitempty"`
	Priority        *domain.Priority `json:"priority,omitempty"`
	AssignOfficerID *types.ID        `json:"assign_officer_id,omitempty"`
	UnassignOfficer bool             `json:"unassign_officer,omitempty"`
	DueDate         *time.Time       `json:"due_date,omitempty"`
	ResolvedAt      *time.Time       `json:"resolved_at,omitempty"`
	Comment         string           `json:"comment,omitempty"`
}

type AddNoteRequest struct {
	Message string `json:"message"`
}

type EscalateRequest struct {
	OfficerID types.ID `json:"officer_id"`
}

// --- Handlers ---

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateComplaintRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	actor := auth.GetActor(r.Context())
	c, err := h.lifecycle.Create(r.Context(), domain.NewComplaintParams{
		Title:                    req.Title,
		Description:              req.Description,
		Category:                 req.Category,
		Priority:                 req.Priority,
		DueDate:                  req.DueDate,
		EscalationThresholdHours: req.EscalationThresholdHours,
	}, actor)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, c)
}

func (h *Handler) CreateAnonymous(w http.ResponseWriter, r *http.Request) {
	var req AnonymousComplaintRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	// Zero actor makes the complaint anonymous
	c, err := h.lifecycle.Create(r.Context(), domain.NewComplaintParams{
		Title:                    req.Title,
		Description:              req.Description,
		Category:                 req.Category,
		Priority:                 req.Priority,
		DueDate:                  req.DueDate,
		AnonymousEmail:           req.Email,
		AnonymousPhone:           req.Phone,
		EscalationThresholdHours: req.EscalationThresholdHours,
	}, identity.Actor{})
	if err != nil {
		writeError(w, err)
		return
	}

	// The ticket number is the anonymous filer's only handle on the case
	writeJSON(w, http.StatusCreated, map[string]any{
		"complaint": c,
		"ticket":    c.TicketNumber(),
	})
}

func (h *Handler) ListMine(w http.ResponseWriter, r *http.Request) {
	actor := auth.GetActor(r.Context())
	complaints, err := h.lifecycle.ListForOwner(r.Context(), actor)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": complaints, "total": len(complaints)})
}

func (h *Handler) GetMine(w http.ResponseWriter, r *http.Request) {
	id, err := complaintID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	detail, err := h.lifecycle.GetForOwner(r.Context(), id, auth.GetActor(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (h *Handler) Edit(w http.ResponseWriter, r *http.Request) {
	id, err := complaintID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req EditComplaintRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	c, err := h.lifecycle.Edit(r.Context(), id, service.EditParams{
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		Priority:    req.Priority,
		DueDate:     req.DueDate,
	}, auth.GetActor(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *Handler) Withdraw(w http.ResponseWriter, r *http.Request) {
	id, err := complaintID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.lifecycle.Withdraw(r.Context(), id, auth.GetActor(r.Context())); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "withdrawn"})
}

func (h *Handler) Rate(w http.ResponseWriter, r *http.Request) {
	id, err := complaintID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req RateComplaintRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	c, err := h.lifecycle.Rate(r.Context(), id, req.Rating, req.Feedback, auth.GetActor(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *Handler) ListAssigned(w http.ResponseWriter, r *http.Request) {
	actor := auth.GetActor(r.Context())
	complaints, err := h.lifecycle.ListAssigned(r.Context(), actor.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": complaints, "total": len(complaints)})
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := complaintID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	detail, err := h.lifecycle.GetForStaff(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (h *Handler) OfficerUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := complaintID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req OfficerUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	c, err := h.lifecycle.Transition(r.Context(), id, service.Changes{
		Status:            req.Status,
		DueDate:           req.DueDate,
		AssignedOfficerID: req.AssignOfficerID,
		Comment:           req.Comment,
	}, auth.GetActor(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *Handler) AddNote(w http.ResponseWriter, r *http.Request) {
	id, err := complaintID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req AddNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	if err := h.lifecycle.AddInternalNote(r.Context(), id, req.Message, auth.GetActor(r.Context())); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"status": "note added"})
}

func (h *Handler) ListAll(w http.ResponseWriter, r *http.Request) {
	complaints, err := h.lifecycle.ListAll(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": complaints, "total": len(complaints)})
}

func (h *Handler) ListOfficers(w http.ResponseWriter, r *http.Request) {
	var level *identity.OfficerLevel
	if l := r.URL.Query().Get("level"); l != "" {
		lv := identity.OfficerLevel(l)
		level = &lv
	}

	officers, err := h.store.FindOfficers(r.Context(), identity.RoleOfficer, level)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": officers, "total": len(officers)})
}

func (h *Handler) AdminUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := complaintID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req AdminUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	c, err := h.lifecycle.Transition(r.Context(), id, service.Changes{
		Status:            req.Status,
		Priority:          req.Priority,
		AssignedOfficerID: req.AssignOfficerID,
		UnassignOfficer:   req.UnassignOfficer,
		DueDate:           req.DueDate,
		ResolvedAt:        req.ResolvedAt,
		Comment:           req.Comment,
	}, auth.GetActor(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *Handler) Escalate(w http.ResponseWriter, r *http.Request) {
	id, err := complaintID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req EscalateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	c, err := h.sweeper.Escalate(r.Context(), id, req.OfficerID, auth.GetActor(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// --- Helpers ---

func complaintID(r *http.Request) (types.ID, error) {
	id, err := types.ParseID(chi.URLParam(r, "complaintID"))
	if err != nil {
		return "", errors.BadRequest("invalid complaint ID")
	}
	return id, nil
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")

	if appErr, ok := err.(*errors.AppError); ok {
		w.WriteHeader(appErr.HTTPStatus)
		json.NewEncoder(w).Encode(map[string]any{
			"error":   appErr.Message,
			"code":    appErr.Code,
			"details": appErr.Details,
		})
		return
	}

	w.WriteHeader(http.StatusInternalServerError)
	json.NewEncoder(w).Encode(map[string]string{"error": "internal server error"})
}
