package branch

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/appetiteclub/apt"
	"github.com/appetiteclub/apt/telemetry"
	"github.com/go-chi/chi/v5"

	"github.com/savoria/savoria/services/console/internal/delivery"
)

const MaxBodyBytes = 1 << 20

// Handler exposes the branch surface to screen clients.
type Handler struct {
	hub    *Hub
	repo   Repository
	logger apt.Logger
	tlm    *telemetry.HTTP
}

func NewHandler(hub *Hub, repo Repository, logger apt.Logger) *Handler {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	return &Handler{
		hub:    hub,
		repo:   repo,
		logger: logger,
		tlm:    telemetry.NewHTTP(),
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/branches", func(r chi.Router) {
		r.Get("/", h.ListBranches)
		r.Post("/", h.CreateBranch)
		r.Get("/hierarchy", h.GetHierarchy)
		r.Get("/metrics/consolidated", h.GetConsolidatedMetrics)
		r.Post("/switch", h.SwitchBranch)
		r.Get("/{id}", h.GetBranch)
		r.Put("/{id}", h.UpdateBranch)
		r.Delete("/{id}", h.DeleteBranch)
		r.Post("/{id}/clone", h.CloneBranch)
		r.Post("/{id}/delivery-route", h.PlanDeliveryRoute)
		r.Get("/{id}/metrics", h.GetBranchMetrics)
		r.Post("/{id}/assign", h.AssignUser)
		r.Delete("/{id}/users/{user_id}", h.RemoveUser)
	})
}

func (h *Handler) log(r *http.Request) apt.Logger {
	return h.logger.With("request_id", apt.RequestIDFrom(r.Context()))
}

func (h *Handler) ListBranches(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.ListBranches")
	defer finish()
	log := h.log(r)
	ctx := r.Context()

	q := r.URL.Query()
	filters := Filters{
		IncludeInactive: q.Get("includeInactive") == "true",
		Status:          q.Get("status"),
		Type:            q.Get("type"),
		Search:          q.Get("search"),
	}

	branches, err := h.hub.Manager().BranchesWith(ctx, filters)
	if err != nil {
		log.Errorf("cannot list branches: %v", err)
		apt.RespondError(w, http.StatusBadGateway, "Could not list branches")
		return
	}

	apt.RespondSuccess(w, branches)
}

func (h *Handler) GetBranch(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.GetBranch")
	defer finish()
	log := h.log(r)
	ctx := r.Context()

	id := chi.URLParam(r, "id")
	b, err := h.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrBranchNotFound) {
			apt.RespondError(w, http.StatusNotFound, "Branch not found")
			return
		}
		log.Errorf("cannot get branch: %v", err)
		apt.RespondError(w, http.StatusBadGateway, "Could not get branch")
		return
	}

	apt.RespondSuccess(w, b)
}

func (h *Handler) CreateBranch(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.CreateBranch")
	defer finish()
	log := h.log(r)
	ctx := r.Context()

	if !h.hub.CanManageBranches() {
		apt.RespondError(w, http.StatusForbidden, "Branch management requires an admin role")
		return
	}

	var data CreateData
	if err := decodeBody(w, r, &data); err != nil {
		apt.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if data.Name == "" {
		apt.RespondError(w, http.StatusBadRequest, "Branch name is required")
		return
	}

	b, err := h.hub.CreateBranch(ctx, data)
	if err != nil {
		log.Errorf("cannot create branch: %v", err)
		apt.RespondError(w, http.StatusBadGateway, err.Error())
		return
	}

	apt.Respond(w, http.StatusCreated, b, nil)
}

func (h *Handler) UpdateBranch(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.UpdateBranch")
	defer finish()
	log := h.log(r)
	ctx := r.Context()

	if !h.hub.CanManageBranches() {
		apt.RespondError(w, http.StatusForbidden, "Branch management requires an admin role")
		return
	}

	id := chi.URLParam(r, "id")
	var data UpdateData
	if err := decodeBody(w, r, &data); err != nil {
		apt.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	b, err := h.hub.UpdateBranch(ctx, id, data)
	if err != nil {
		log.Errorf("cannot update branch: %v", err)
		apt.RespondError(w, http.StatusBadGateway, err.Error())
		return
	}

	apt.RespondSuccess(w, b)
}

func (h *Handler) DeleteBranch(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.DeleteBranch")
	defer finish()
	log := h.log(r)
	ctx := r.Context()

	if !h.hub.CanManageBranches() {
		apt.RespondError(w, http.StatusForbidden, "Branch management requires an admin role")
		return
	}

	id := chi.URLParam(r, "id")
	if err := h.hub.DeleteBranch(ctx, id); err != nil {
		log.Errorf("cannot delete branch: %v", err)
		apt.RespondError(w, http.StatusBadGateway, err.Error())
		return
	}

	apt.RespondSuccess(w, map[string]string{"deleted": id})
}

func (h *Handler) CloneBranch(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.CloneBranch")
	defer finish()
	log := h.log(r)
	ctx := r.Context()

	if !h.hub.CanManageBranches() {
		apt.RespondError(w, http.StatusForbidden, "Branch management requires an admin role")
		return
	}

	sourceID := chi.URLParam(r, "id")
	var data CreateData
	if err := decodeBody(w, r, &data); err != nil {
		apt.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	b, err := h.hub.CloneBranch(ctx, sourceID, data)
	if err != nil {
		log.Errorf("cannot clone branch: %v", err)
		apt.RespondError(w, http.StatusBadGateway, err.Error())
		return
	}

	apt.Respond(w, http.StatusCreated, b, nil)
}

func (h *Handler) SwitchBranch(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.SwitchBranch")
	defer finish()
	log := h.log(r)
	ctx := r.Context()

	var body struct {
		BranchID string `json:"branchId"`
	}
	if err := decodeBody(w, r, &body); err != nil || body.BranchID == "" {
		apt.RespondError(w, http.StatusBadRequest, "branchId is required")
		return
	}

	if !h.hub.Manager().CanAccessBranch(body.BranchID) {
		apt.RespondError(w, http.StatusForbidden, "No access to this branch")
		return
	}

	current, err := h.hub.SwitchBranch(ctx, body.BranchID)
	if err != nil {
		log.Errorf("cannot switch branch: %v", err)
		apt.RespondError(w, http.StatusBadGateway, err.Error())
		return
	}

	apt.RespondSuccess(w, map[string]string{"currentBranch": current})
}

func (h *Handler) AssignUser(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.AssignUser")
	defer finish()
	log := h.log(r)
	ctx := r.Context()

	if !h.hub.CanManageBranches() {
		apt.RespondError(w, http.StatusForbidden, "Branch management requires an admin role")
		return
	}

	branchID := chi.URLParam(r, "id")
	var body struct {
		UserID string `json:"userId"`
	}
	if err := decodeBody(w, r, &body); err != nil || body.UserID == "" {
		apt.RespondError(w, http.StatusBadRequest, "userId is required")
		return
	}

	if err := h.hub.AssignUser(ctx, branchID, body.UserID); err != nil {
		log.Errorf("cannot assign user: %v", err)
		apt.RespondError(w, http.StatusBadGateway, err.Error())
		return
	}

	apt.RespondSuccess(w, map[string]string{"assigned": body.UserID})
}

func (h *Handler) RemoveUser(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.RemoveUser")
	defer finish()
	log := h.log(r)
	ctx := r.Context()

	if !h.hub.CanManageBranches() {
		apt.RespondError(w, http.StatusForbidden, "Branch management requires an admin role")
		return
	}

	branchID := chi.URLParam(r, "id")
	userID := chi.URLParam(r, "user_id")

	if err := h.hub.RemoveUser(ctx, branchID, userID); err != nil {
		log.Errorf("cannot remove user: %v", err)
		apt.RespondError(w, http.StatusBadGateway, err.Error())
		return
	}

	apt.RespondSuccess(w, map[string]string{"removed": userID})
}

// PlanDeliveryRoute orders drop-off stops by nearest neighbor starting from
// the branch's own coordinates, optionally split across several drivers.
func (h *Handler) PlanDeliveryRoute(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.PlanDeliveryRoute")
	defer finish()
	log := h.log(r)
	ctx := r.Context()

	id := chi.URLParam(r, "id")
	var body struct {
		Stops   []delivery.Stop `json:"stops"`
		Drivers int             `json:"drivers"`
	}
	if err := decodeBody(w, r, &body); err != nil {
		apt.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if len(body.Stops) == 0 {
		apt.RespondError(w, http.StatusBadRequest, "At least one stop is required")
		return
	}

	b, err := h.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrBranchNotFound) {
			apt.RespondError(w, http.StatusNotFound, "Branch not found")
			return
		}
		log.Errorf("cannot get branch for route planning: %v", err)
		apt.RespondError(w, http.StatusBadGateway, "Could not get branch")
		return
	}
	if b.Address.Coordinates == nil {
		apt.RespondError(w, http.StatusBadRequest, "Branch has no coordinates")
		return
	}

	depot := delivery.Point{
		Lat: b.Address.Coordinates.Latitude,
		Lng: b.Address.Coordinates.Longitude,
	}
	apt.RespondSuccess(w, delivery.Split(depot, body.Stops, body.Drivers))
}

func (h *Handler) GetHierarchy(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.GetHierarchy")
	defer finish()
	ctx := r.Context()

	apt.RespondSuccess(w, h.hub.Hierarchy(ctx))
}

func (h *Handler) GetBranchMetrics(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.GetBranchMetrics")
	defer finish()
	log := h.log(r)
	ctx := r.Context()

	id := chi.URLParam(r, "id")
	start, end, err := parseRange(r)
	if err != nil {
		apt.RespondError(w, http.StatusBadRequest, "Invalid date range")
		return
	}

	metrics, err := h.repo.Metrics(ctx, id, start, end)
	if err != nil {
		log.Errorf("cannot get branch metrics: %v", err)
		apt.RespondError(w, http.StatusBadGateway, "Could not get branch metrics")
		return
	}

	apt.RespondSuccess(w, metrics)
}

func (h *Handler) GetConsolidatedMetrics(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.GetConsolidatedMetrics")
	defer finish()
	log := h.log(r)
	ctx := r.Context()

	start, end, err := parseRange(r)
	if err != nil {
		apt.RespondError(w, http.StatusBadRequest, "Invalid date range")
		return
	}

	metrics, err := h.repo.ConsolidatedMetrics(ctx, start, end)
	if err != nil {
		log.Errorf("cannot get consolidated metrics: %v", err)
		apt.RespondError(w, http.StatusBadGateway, "Could not get consolidated metrics")
		return
	}

	apt.RespondSuccess(w, metrics)
}

func parseRange(r *http.Request) (start, end *time.Time, err error) {
	if s := r.URL.Query().Get("startDate"); s != "" {
		t, perr := time.Parse(time.RFC3339, s)
		if perr != nil {
			return nil, nil, perr
		}
		start = &t
	}
	if s := r.URL.Query().Get("endDate"); s != "" {
		t, perr := time.Parse(time.RFC3339, s)
		if perr != nil {
			return nil, nil, perr
		}
		end = &t
	}
	return start, end, nil
}

func decodeBody(w http.ResponseWriter, r *http.Request, out any) error {
	defer r.Body.Close()
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxBodyBytes)).Decode(out)
}
