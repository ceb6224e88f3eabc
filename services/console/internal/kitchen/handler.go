package kitchen

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/appetiteclub/apt"
	"github.com/appetiteclub/apt/telemetry"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/savoria/savoria/pkg/enums/orderstatus"
)

const MaxBodyBytes = 1 << 20

// BoardView is the grouped snapshot a display renders.
type BoardView struct {
	New       []Order            `json:"new"`
	Preparing []Order            `json:"preparing"`
	Ready     []Order            `json:"ready"`
	Counts    map[string]int     `json:"counts"`
	Messages  map[string]Message `json:"messages"`
	Muted     bool               `json:"muted"`
	Live      bool               `json:"live"`
	Selected  string             `json:"selected,omitempty"`
}

// Handler exposes the kitchen board to screen clients.
type Handler struct {
	board  *Board
	logger apt.Logger
	tlm    *telemetry.HTTP
}

func NewHandler(board *Board, logger apt.Logger) *Handler {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	return &Handler{
		board:  board,
		logger: logger,
		tlm:    telemetry.NewHTTP(),
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/kitchen", func(r chi.Router) {
		r.Get("/board", h.GetBoard)
		r.Get("/stream", h.StreamBoard)
		r.Post("/board/mute", h.SetMute)
		r.Post("/board/cursor", h.MoveCursor)
		r.Patch("/orders/{id}/status", h.UpdateOrderStatus)
		r.Patch("/orders/{id}/advance", h.AdvanceOrder)
	})
}

func (h *Handler) log(r *http.Request) apt.Logger {
	return h.logger.With("request_id", apt.RequestIDFrom(r.Context()))
}

func (h *Handler) GetBoard(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.GetBoard")
	defer finish()

	apt.RespondSuccess(w, h.boardView())
}

func (h *Handler) boardView() BoardView {
	view := BoardView{
		New:       []Order{},
		Preparing: []Order{},
		Ready:     []Order{},
		Messages:  h.board.Messages(),
		Muted:     h.board.Muted(),
		Live:      h.board.FeedConnected(),
	}
	for _, o := range h.board.Orders() {
		switch o.Status {
		case orderstatus.Statuses.Confirmed.Code():
			view.New = append(view.New, o)
		case orderstatus.Statuses.Preparing.Code():
			view.Preparing = append(view.Preparing, o)
		case orderstatus.Statuses.Ready.Code():
			view.Ready = append(view.Ready, o)
		}
	}
	view.Counts = map[string]int{
		"new":       len(view.New),
		"preparing": len(view.Preparing),
		"ready":     len(view.Ready),
	}
	if selected, ok := h.board.Selected(); ok {
		view.Selected = selected.ID
	}
	return view
}

func (h *Handler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.UpdateOrderStatus")
	defer finish()
	log := h.log(r)
	ctx := r.Context()

	id := chi.URLParam(r, "id")
	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxBodyBytes)).Decode(&body); err != nil {
		apt.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if orderstatus.ByName(body.Status) == nil {
		apt.RespondError(w, http.StatusBadRequest, "Unknown order status")
		return
	}

	if err := h.board.UpdateStatus(ctx, id, body.Status); err != nil {
		if errors.Is(err, ErrUnknownOrder) {
			apt.RespondError(w, http.StatusNotFound, "Order not on the board")
			return
		}
		log.Errorf("cannot update order status: %v", err)
		apt.RespondError(w, http.StatusBadGateway, err.Error())
		return
	}

	apt.RespondSuccess(w, h.boardView())
}

func (h *Handler) AdvanceOrder(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.AdvanceOrder")
	defer finish()
	log := h.log(r)
	ctx := r.Context()

	id := chi.URLParam(r, "id")
	if err := h.board.Advance(ctx, id); err != nil {
		if errors.Is(err, ErrUnknownOrder) {
			apt.RespondError(w, http.StatusNotFound, "Order not on the board")
			return
		}
		log.Errorf("cannot advance order: %v", err)
		apt.RespondError(w, http.StatusBadGateway, err.Error())
		return
	}

	apt.RespondSuccess(w, h.boardView())
}

func (h *Handler) SetMute(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.SetMute")
	defer finish()

	var body struct {
		Muted bool `json:"muted"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxBodyBytes)).Decode(&body); err != nil {
		apt.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	h.board.SetMuted(body.Muted)
	apt.RespondSuccess(w, map[string]bool{"muted": body.Muted})
}

func (h *Handler) MoveCursor(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.MoveCursor")
	defer finish()
	log := h.log(r)
	ctx := r.Context()

	var body struct {
		Action string `json:"action"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxBodyBytes)).Decode(&body); err != nil {
		apt.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	switch body.Action {
	case "next":
		h.board.CursorNext()
	case "prev":
		h.board.CursorPrev()
	case "commit":
		if err := h.board.CursorCommit(ctx); err != nil {
			log.Errorf("cannot commit selected order: %v", err)
			apt.RespondError(w, http.StatusBadGateway, err.Error())
			return
		}
	default:
		apt.RespondError(w, http.StatusBadRequest, "Unknown cursor action")
		return
	}

	apt.RespondSuccess(w, h.boardView())
}

// StreamBoard pushes board snapshots over SSE whenever the board changes.
func (h *Handler) StreamBoard(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	subscriberID := uuid.New().String()
	h.logger.Info("new SSE connection", "subscriber_id", subscriberID)

	changes, cancel := h.board.Subscribe()
	defer cancel()

	fmt.Fprintf(w, ": connected\n\n")
	fmt.Fprintf(w, "retry: 2000\n\n")
	h.sendBoard(w)

	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			h.logger.Info("SSE client disconnected", "subscriber_id", subscriberID)
			return

		case <-ticker.C:
			fmt.Fprintf(w, ": keepalive\n\n")
			if f, ok := w.(http.Flusher); ok {
				f.Flush()
			}

		case _, ok := <-changes:
			if !ok {
				h.logger.Info("board change channel closed", "subscriber_id", subscriberID)
				return
			}
			h.sendBoard(w)
			if cue := h.board.TakeCue(); cue != nil {
				h.sendCue(w, cue)
			}
			if f, ok := w.(http.Flusher); ok {
				f.Flush()
			}
		}
	}
}

func (h *Handler) sendBoard(w http.ResponseWriter) {
	data, err := json.Marshal(h.boardView())
	if err != nil {
		h.logger.Error("failed to encode board view", "error", err)
		return
	}
	fmt.Fprintf(w, "event: board\n")
	fmt.Fprintf(w, "data: %s\n\n", data)
}

func (h *Handler) sendCue(w http.ResponseWriter, cue *Cue) {
	data, err := json.Marshal(map[string]any{
		"frequency":   cue.Frequency,
		"duration_ms": cue.Duration.Milliseconds(),
		"pulses":      cue.Pulses,
	})
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: chime\n")
	fmt.Fprintf(w, "data: %s\n\n", data)
}
