package branch

import (
	"context"
	"errors"
	"sync"

	"github.com/appetiteclub/apt"

	"github.com/savoria/savoria/services/console/internal/session"
)

// Manager owns the branch list lifecycle for the signed-in user: the cached
// query, permission-aware views over it, and the mutation wrappers with
// their pending flags.
type Manager struct {
	repo     Repository
	cache    *ListCache
	sessions session.Store
	logger   apt.Logger
	filters  Filters

	mu      sync.Mutex
	pending map[string]bool
}

const (
	opCreate = "create"
	opUpdate = "update"
	opDelete = "delete"
	opClone  = "clone"
	opSwitch = "switch"
	opAssign = "assign"
	opRemove = "remove"
)

func NewManager(repo Repository, cache *ListCache, sessions session.Store, filters Filters, logger apt.Logger) *Manager {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	return &Manager{
		repo:     repo,
		cache:    cache,
		sessions: sessions,
		logger:   logger,
		filters:  filters,
		pending:  make(map[string]bool),
	}
}

// Branches returns the branch list for the manager's default filters. With
// no authenticated user it returns an empty list without touching the API.
func (m *Manager) Branches(ctx context.Context) ([]Branch, error) {
	return m.BranchesWith(ctx, m.filters)
}

// BranchesWith is Branches with explicit filters, sharing the same cache.
func (m *Manager) BranchesWith(ctx context.Context, filters Filters) ([]Branch, error) {
	if !m.authenticated() {
		return []Branch{}, nil
	}
	return m.cache.Get(ctx, filters)
}

// Refetch drops the cache and reloads the default listing.
func (m *Manager) Refetch(ctx context.Context) ([]Branch, error) {
	m.cache.Invalidate()
	return m.Branches(ctx)
}

// CurrentBranch resolves the session's active branch against the listing.
func (m *Manager) CurrentBranch(ctx context.Context) (*Branch, error) {
	id := m.sessions.CurrentBranchID()
	if id == "" {
		return nil, nil
	}
	branches, err := m.Branches(ctx)
	if err != nil {
		return nil, err
	}
	for i := range branches {
		if branches[i].ID == id {
			return &branches[i], nil
		}
	}
	return nil, nil
}

// AssignedBranches returns the branches the user may act on: the full
// listing for privileged roles, the assigned subset otherwise.
func (m *Manager) AssignedBranches(ctx context.Context) ([]Branch, error) {
	branches, err := m.Branches(ctx)
	if err != nil {
		return nil, err
	}
	u, err := m.sessions.User()
	if err != nil {
		return []Branch{}, nil
	}
	if u.IsPrivileged() {
		return branches, nil
	}
	out := make([]Branch, 0, len(branches))
	for _, b := range branches {
		if u.CanAccessBranch(b.ID) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (m *Manager) CanAccessBranch(id string) bool {
	u, err := m.sessions.User()
	if err != nil {
		return false
	}
	return u.CanAccessBranch(id)
}

func (m *Manager) CanSwitchBranches() bool {
	u, err := m.sessions.User()
	if err != nil {
		return false
	}
	return u.CanSwitchBranches()
}

// ActiveBranches filters the listing down to active branches.
func (m *Manager) ActiveBranches(ctx context.Context) ([]Branch, error) {
	return m.filter(ctx, func(b Branch) bool {
		return b.IsActive && b.Status == StatusActive
	})
}

// BranchesByType filters the listing by branch type.
func (m *Manager) BranchesByType(ctx context.Context, t string) ([]Branch, error) {
	return m.filter(ctx, func(b Branch) bool {
		return b.Type == t
	})
}

func (m *Manager) filter(ctx context.Context, keep func(Branch) bool) ([]Branch, error) {
	branches, err := m.Branches(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Branch, 0, len(branches))
	for _, b := range branches {
		if keep(b) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (m *Manager) CreateBranch(ctx context.Context, data CreateData) (*Branch, error) {
	defer m.track(opCreate)()
	b, err := m.repo.Create(ctx, data)
	if err != nil {
		return nil, err
	}
	m.cache.Invalidate()
	return b, nil
}

func (m *Manager) UpdateBranch(ctx context.Context, id string, data UpdateData) (*Branch, error) {
	defer m.track(opUpdate)()
	b, err := m.repo.Update(ctx, id, data)
	if err != nil {
		return nil, err
	}
	m.cache.Invalidate()
	return b, nil
}

func (m *Manager) DeleteBranch(ctx context.Context, id string) error {
	defer m.track(opDelete)()
	if err := m.repo.Delete(ctx, id); err != nil {
		return err
	}
	m.cache.Invalidate()
	return nil
}

func (m *Manager) CloneBranch(ctx context.Context, sourceID string, data CreateData) (*Branch, error) {
	defer m.track(opClone)()
	b, err := m.repo.Clone(ctx, sourceID, data)
	if err != nil {
		return nil, err
	}
	m.cache.Invalidate()
	return b, nil
}

// SwitchBranch changes the active branch and persists the server's answer
// into the session.
func (m *Manager) SwitchBranch(ctx context.Context, id string) (string, error) {
	defer m.track(opSwitch)()
	current, err := m.repo.Switch(ctx, id)
	if err != nil {
		return "", err
	}
	if err := m.sessions.SetCurrentBranchID(current); err != nil {
		m.logger.Error("Could not persist current branch", "branch_id", current, "error", err)
	}
	m.cache.Invalidate()
	return current, nil
}

func (m *Manager) AssignUser(ctx context.Context, branchID, userID string) error {
	defer m.track(opAssign)()
	if err := m.repo.AssignUser(ctx, branchID, userID); err != nil {
		return err
	}
	m.cache.Invalidate()
	return nil
}

func (m *Manager) RemoveUser(ctx context.Context, branchID, userID string) error {
	defer m.track(opRemove)()
	if err := m.repo.RemoveUser(ctx, branchID, userID); err != nil {
		return err
	}
	m.cache.Invalidate()
	return nil
}

func (m *Manager) IsCreating() bool  { return m.isPending(opCreate) }
func (m *Manager) IsUpdating() bool  { return m.isPending(opUpdate) }
func (m *Manager) IsDeleting() bool  { return m.isPending(opDelete) }
func (m *Manager) IsCloning() bool   { return m.isPending(opClone) }
func (m *Manager) IsSwitching() bool { return m.isPending(opSwitch) }
func (m *Manager) IsAssigning() bool { return m.isPending(opAssign) }
func (m *Manager) IsRemoving() bool  { return m.isPending(opRemove) }

// Loading reports whether a list fetch is in flight.
func (m *Manager) Loading() bool {
	return m.cache.Loading()
}

// Err returns the last list fetch error for the default filters.
func (m *Manager) Err() error {
	if !m.authenticated() {
		return nil
	}
	return m.cache.LastErr(m.filters)
}

func (m *Manager) authenticated() bool {
	u, err := m.sessions.User()
	if err != nil || u == nil {
		if err != nil && !errors.Is(err, session.ErrNoUser) {
			m.logger.Debug("Session user unreadable", "error", err)
		}
		return false
	}
	return true
}

func (m *Manager) track(op string) func() {
	m.mu.Lock()
	m.pending[op] = true
	m.mu.Unlock()
	return func() {
		m.mu.Lock()
		m.pending[op] = false
		m.mu.Unlock()
	}
}

func (m *Manager) isPending(op string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pending[op]
}
