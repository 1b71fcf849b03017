// Package handler exposes the registry over HTTP.
package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"safemint/internal/registry/models"
	"safemint/internal/registry/service"
	id "safemint/pkg/domain"
	dErrors "safemint/pkg/domain-errors"
	"safemint/pkg/platform/httputil"
	"safemint/pkg/requestcontext"
)

const defaultPageSize = 50

// Handler serves project registration, edits, lookups, and the paginated
// status partitions.
type Handler struct {
	registry *service.Service
	logger   *slog.Logger
}

func New(registry *service.Service, logger *slog.Logger) *Handler {
	return &Handler{registry: registry, logger: logger}
}

// Register mounts authenticated registry endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/projects", h.HandleSaveProject)
	r.Put("/projects/{name}", h.HandleEditProject)
	r.Get("/projects/{name}", h.HandleGetProject)
	r.Get("/projects/{name}/id", h.HandleProjectID)
	r.Get("/projects/id/{id}", h.HandleGetProjectByID)
	r.Get("/projects/status/{status}", h.HandleListByStatus)
	r.Get("/registry/price", h.HandleGetPrice)
}

// RegisterAdmin mounts the fee-schedule endpoint; the caller wraps it in the
// admin middleware.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Put("/admin/registry/price", h.HandleSetPrice)
}

type saveProjectRequest struct {
	Name            string `json:"name"`
	ProjectContract string `json:"project_contract"`
	StartTime       int64  `json:"start_time"`
	EndTime         int64  `json:"end_time"`
	IPFSAddress     string `json:"ipfs_address"`
}

type editProjectRequest struct {
	StartTime   int64  `json:"start_time"`
	EndTime     int64  `json:"end_time"`
	IPFSAddress string `json:"ipfs_address"`
}

type projectResponse struct {
	ID              uint64 `json:"id"`
	Name            string `json:"name"`
	Owner           string `json:"owner"`
	ProjectContract string `json:"project_contract"`
	StartTime       int64  `json:"start_time"`
	EndTime         int64  `json:"end_time"`
	IPFSAddress     string `json:"ipfs_address"`
	ProjectFee      string `json:"project_fee"`
	Status          string `json:"status"`
}

func toProjectResponse(p *models.Project) projectResponse {
	return projectResponse{
		ID:              p.ID,
		Name:            p.Name,
		Owner:           p.Owner.String(),
		ProjectContract: p.ProjectContract.String(),
		StartTime:       p.StartTime,
		EndTime:         p.EndTime,
		IPFSAddress:     p.IPFSAddress,
		ProjectFee:      id.AmountString(p.ProjectFee),
		Status:          p.Status.String(),
	}
}

func (h *Handler) HandleSaveProject(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	caller := requestcontext.Caller(ctx)

	req, ok := httputil.DecodeAndPrepare[saveProjectRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	project, err := h.registry.SaveProject(ctx, caller, service.SaveProjectInput{
		Name:            req.Name,
		ProjectContract: id.Account(req.ProjectContract),
		StartTime:       req.StartTime,
		EndTime:         req.EndTime,
		IPFSAddress:     req.IPFSAddress,
	})
	if err != nil {
		h.logger.WarnContext(ctx, "save project failed",
			"request_id", requestID,
			"project", req.Name,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toProjectResponse(project))
}

func (h *Handler) HandleEditProject(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	caller := requestcontext.Caller(ctx)
	name := chi.URLParam(r, "name")

	req, ok := httputil.DecodeAndPrepare[editProjectRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	project, err := h.registry.EditProject(ctx, caller, service.EditProjectInput{
		Name:        name,
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
		IPFSAddress: req.IPFSAddress,
	})
	if err != nil {
		h.logger.WarnContext(ctx, "edit project failed",
			"request_id", requestID,
			"project", name,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toProjectResponse(project))
}

func (h *Handler) HandleGetProject(w http.ResponseWriter, r *http.Request) {
	project, err := h.registry.GetProject(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toProjectResponse(project))
}

func (h *Handler) HandleProjectID(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	projectID, err := h.registry.ProjectID(r.Context(), name)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"name": name, "id": projectID})
}

func (h *Handler) HandleGetProjectByID(w http.ResponseWriter, r *http.Request) {
	projectID, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "malformed project id"))
		return
	}
	project, err := h.registry.GetProjectByID(r.Context(), projectID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toProjectResponse(project))
}

// HandleListByStatus pages through one status partition in submission order.
// "challenge" is an alias for the locked partition.
func (h *Handler) HandleListByStatus(w http.ResponseWriter, r *http.Request) {
	status, ok := parseStatus(chi.URLParam(r, "status"))
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "status error"))
		return
	}

	offset := queryInt(r, "offset", 0)
	limit := queryInt(r, "limit", defaultPageSize)

	page, err := h.registry.ListByStatus(r.Context(), status, offset, limit)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	projects := make([]projectResponse, 0, len(page))
	for _, p := range page {
		projects = append(projects, toProjectResponse(p))
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"status":   status.String(),
		"offset":   offset,
		"limit":    limit,
		"projects": projects,
	})
}

func (h *Handler) HandleGetPrice(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{
		"project_price": id.AmountString(h.registry.ProjectPrice()),
	})
}

type setPriceRequest struct {
	ProjectPrice string `json:"project_price"`
}

func (h *Handler) HandleSetPrice(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[setPriceRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	price, ok := id.ParseAmount(req.ProjectPrice)
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "malformed amount"))
		return
	}

	if err := h.registry.SetProjectPrice(ctx, price); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, nil)
}

func parseStatus(raw string) (models.Status, bool) {
	switch raw {
	case "pending":
		return models.StatusPending, true
	case "passed":
		return models.StatusPassed, true
	case "reject", "rejected":
		return models.StatusRejected, true
	case "locked", "challenge":
		return models.StatusLocked, true
	default:
		return 0, false
	}
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}
