package branch

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/appetiteclub/apt"
	"github.com/appetiteclub/apt/events"

	"github.com/savoria/savoria/pkg/event"
	"github.com/savoria/savoria/services/console/internal/session"
)

// ErrUseMetricsRepo is returned by the Hub's metrics methods: metrics have
// their own fetch lifecycle and must not share the branch list cache, so
// callers go to the Repository directly.
var ErrUseMetricsRepo = errors.New("metrics are served by the branch repository, not the hub")

// Hub composes the Manager with the hierarchy view and owns the
// cross-cutting side effects of branch mutations: the fallback switch after
// deleting the active branch, switch notifications, and bus events.
type Hub struct {
	mgr       *Manager
	repo      Repository
	sessions  session.Store
	notifier  *SwitchNotifier
	publisher events.Publisher // optional
	logger    apt.Logger

	mu               sync.Mutex
	hierarchy        []Node
	hierarchyLoaded  bool
	hierarchyLoading bool
	hierarchyErr     error
	lastUserID       string
}

func NewHub(mgr *Manager, repo Repository, sessions session.Store, notifier *SwitchNotifier, publisher events.Publisher, logger apt.Logger) *Hub {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	if notifier == nil {
		notifier = NewSwitchNotifier()
	}
	h := &Hub{
		mgr:       mgr,
		repo:      repo,
		sessions:  sessions,
		notifier:  notifier,
		publisher: publisher,
		logger:    logger,
	}
	if u, err := sessions.User(); err == nil {
		h.lastUserID = u.ID
	}
	return h
}

func (h *Hub) Manager() *Manager         { return h.mgr }
func (h *Hub) Notifier() *SwitchNotifier { return h.notifier }

// Branches proxies the manager's listing.
func (h *Hub) Branches(ctx context.Context) ([]Branch, error) {
	return h.mgr.Branches(ctx)
}

func (h *Hub) CurrentBranch(ctx context.Context) (*Branch, error) {
	return h.mgr.CurrentBranch(ctx)
}

// Loading reports whether either the branch list or the hierarchy is being
// fetched.
func (h *Hub) Loading() bool {
	h.mu.Lock()
	hl := h.hierarchyLoading
	h.mu.Unlock()
	return h.mgr.Loading() || hl
}

// Err returns the first pending error, branch list first.
func (h *Hub) Err() error {
	if err := h.mgr.Err(); err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.hierarchyErr
}

// CreateBranch delegates to the manager and refreshes the hierarchy, which
// is derived from the same records.
func (h *Hub) CreateBranch(ctx context.Context, data CreateData) (*Branch, error) {
	b, err := h.mgr.CreateBranch(ctx, data)
	if err != nil {
		return nil, err
	}
	h.RefetchHierarchy(ctx)
	if b != nil {
		h.publish(ctx, event.EventBranchCreated, b.ID, b.Code, b.Name)
	}
	return b, nil
}

func (h *Hub) UpdateBranch(ctx context.Context, id string, data UpdateData) (*Branch, error) {
	b, err := h.mgr.UpdateBranch(ctx, id, data)
	if err != nil {
		return nil, err
	}
	h.RefetchHierarchy(ctx)
	return b, nil
}

// DeleteBranch deletes the branch and, when it was the caller's active one,
// switches to the first remaining branch. No replacement means no switch.
func (h *Hub) DeleteBranch(ctx context.Context, id string) error {
	wasCurrent := h.sessions.CurrentBranchID() == id
	var remaining []Branch
	if wasCurrent {
		branches, err := h.mgr.Branches(ctx)
		if err == nil {
			for _, b := range branches {
				if b.ID != id {
					remaining = append(remaining, b)
				}
			}
		}
	}

	if err := h.mgr.DeleteBranch(ctx, id); err != nil {
		return err
	}

	if wasCurrent && len(remaining) > 0 {
		if _, err := h.SwitchBranch(ctx, remaining[0].ID); err != nil {
			h.logger.Error("Fallback switch after delete failed", "branch_id", remaining[0].ID, "error", err)
		}
	}

	h.RefetchHierarchy(ctx)
	h.publish(ctx, event.EventBranchDeleted, id, "", "")
	return nil
}

// SwitchBranch delegates to the manager, then notifies subscribers and
// publishes the switch on the bus.
func (h *Hub) SwitchBranch(ctx context.Context, id string) (string, error) {
	current, err := h.mgr.SwitchBranch(ctx, id)
	if err != nil {
		return "", err
	}

	var detail *Branch
	if branches, lerr := h.mgr.Branches(ctx); lerr == nil {
		for i := range branches {
			if branches[i].ID == current {
				detail = &branches[i]
				break
			}
		}
	}
	h.notifier.Notify(SwitchEvent{BranchID: current, Branch: detail})

	name := ""
	if detail != nil {
		name = detail.Name
	}
	h.publishSwitch(ctx, current, name)
	return current, nil
}

func (h *Hub) CloneBranch(ctx context.Context, sourceID string, data CreateData) (*Branch, error) {
	b, err := h.mgr.CloneBranch(ctx, sourceID, data)
	if err != nil {
		return nil, err
	}
	h.RefetchHierarchy(ctx)
	return b, nil
}

func (h *Hub) AssignUser(ctx context.Context, branchID, userID string) error {
	return h.mgr.AssignUser(ctx, branchID, userID)
}

func (h *Hub) RemoveUser(ctx context.Context, branchID, userID string) error {
	return h.mgr.RemoveUser(ctx, branchID, userID)
}

// Hierarchy returns the cached tree, fetching it on first use.
func (h *Hub) Hierarchy(ctx context.Context) []Node {
	h.mu.Lock()
	loaded := h.hierarchyLoaded
	nodes := h.hierarchy
	h.mu.Unlock()
	if loaded {
		return nodes
	}
	return h.RefetchHierarchy(ctx)
}

// RefetchHierarchy reloads the tree. Hierarchy is a decorative view:
// failures degrade to an empty tree and are only surfaced through Err.
func (h *Hub) RefetchHierarchy(ctx context.Context) []Node {
	h.mu.Lock()
	h.hierarchyLoading = true
	h.mu.Unlock()

	nodes, err := h.repo.Hierarchy(ctx)

	h.mu.Lock()
	defer h.mu.Unlock()
	h.hierarchyLoading = false
	h.hierarchyLoaded = true
	if err != nil {
		h.logger.Error("Branch hierarchy fetch failed", "error", err)
		h.hierarchy = []Node{}
		h.hierarchyErr = err
		return h.hierarchy
	}
	h.hierarchy = nodes
	h.hierarchyErr = nil
	return nodes
}

// BranchMetrics is intentionally not served here; see ErrUseMetricsRepo.
func (h *Hub) BranchMetrics(ctx context.Context, id string) (*BranchMetrics, error) {
	return nil, ErrUseMetricsRepo
}

// ConsolidatedMetrics is intentionally not served here; see ErrUseMetricsRepo.
func (h *Hub) ConsolidatedMetrics(ctx context.Context) (*ConsolidatedMetrics, error) {
	return nil, ErrUseMetricsRepo
}

// SetUser stores the new session user. Whenever the user identity changes
// the branch list is refetched unconditionally.
func (h *Hub) SetUser(ctx context.Context, u *session.User) error {
	if err := h.sessions.SetUser(u); err != nil {
		return err
	}

	newID := ""
	if u != nil {
		newID = u.ID
	}
	h.mu.Lock()
	changed := newID != h.lastUserID
	h.lastUserID = newID
	h.mu.Unlock()

	if changed {
		if _, err := h.mgr.Refetch(ctx); err != nil {
			h.logger.Error("Branch refetch after user change failed", "error", err)
		}
		h.RefetchHierarchy(ctx)
	}
	return nil
}

// FilterBranches applies an arbitrary predicate over the listing.
func (h *Hub) FilterBranches(ctx context.Context, keep func(Branch) bool) ([]Branch, error) {
	return h.mgr.filter(ctx, keep)
}

func (h *Hub) ActiveBranches(ctx context.Context) ([]Branch, error) {
	return h.mgr.ActiveBranches(ctx)
}

func (h *Hub) BranchesByType(ctx context.Context, t string) ([]Branch, error) {
	return h.mgr.BranchesByType(ctx, t)
}

// UserBranches returns the branches the session user may act on.
func (h *Hub) UserBranches(ctx context.Context) ([]Branch, error) {
	return h.mgr.AssignedBranches(ctx)
}

// CanManageBranches reports whether the session user may create, edit or
// delete branches.
func (h *Hub) CanManageBranches() bool {
	u, err := h.sessions.User()
	if err != nil {
		return false
	}
	return u.IsPrivileged()
}

func (h *Hub) CanSwitchBranches() bool {
	return h.mgr.CanSwitchBranches()
}

func (h *Hub) publishSwitch(ctx context.Context, branchID, branchName string) {
	if h.publisher == nil {
		return
	}
	h.mu.Lock()
	userID := h.lastUserID
	h.mu.Unlock()
	payload := event.BranchSwitchedEvent{
		EventType:  event.EventBranchSwitched,
		OccurredAt: time.Now().UTC(),
		TenantID:   h.sessions.TenantID(),
		UserID:     userID,
		BranchID:   branchID,
		BranchName: branchName,
	}
	data, _ := json.Marshal(payload)
	if err := h.publisher.Publish(ctx, event.BranchesTopic, data); err != nil {
		h.logger.Error("Failed to publish branch.switched event", "error", err)
	}
}

func (h *Hub) publish(ctx context.Context, eventType, branchID, code, name string) {
	if h.publisher == nil {
		return
	}
	payload := event.BranchLifecycleEvent{
		EventType:  eventType,
		OccurredAt: time.Now().UTC(),
		TenantID:   h.sessions.TenantID(),
		BranchID:   branchID,
		Code:       code,
		Name:       name,
	}
	data, _ := json.Marshal(payload)
	if err := h.publisher.Publish(ctx, event.BranchesTopic, data); err != nil {
		h.logger.Error("Failed to publish branch event", "event_type", eventType, "error", err)
	}
}
