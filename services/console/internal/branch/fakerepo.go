package branch

import (
	"context"
	"sync"
	"time"
)

// FakeRepo is an in-memory Repository used by tests and demo setups. Any
// behavior can be overridden per call via the ...Func fields; unset funcs
// fall back to the in-memory map.
type FakeRepo struct {
	mu       sync.Mutex
	branches map[string]Branch
	order    []string

	ListFunc         func(ctx context.Context, filters Filters) ([]Branch, error)
	GetFunc          func(ctx context.Context, id string) (*Branch, error)
	CreateFunc       func(ctx context.Context, data CreateData) (*Branch, error)
	UpdateFunc       func(ctx context.Context, id string, data UpdateData) (*Branch, error)
	DeleteFunc       func(ctx context.Context, id string) error
	CloneFunc        func(ctx context.Context, sourceID string, data CreateData) (*Branch, error)
	SwitchFunc       func(ctx context.Context, id string) (string, error)
	AssignFunc       func(ctx context.Context, branchID, userID string) error
	RemoveFunc       func(ctx context.Context, branchID, userID string) error
	HierarchyFunc    func(ctx context.Context) ([]Node, error)
	MetricsFunc      func(ctx context.Context, id string, start, end *time.Time) (*BranchMetrics, error)
	ConsolidatedFunc func(ctx context.Context, start, end *time.Time) (*ConsolidatedMetrics, error)

	// Call counters for assertions.
	ListCalls   int
	SwitchCalls int
	DeleteCalls int
}

func NewFakeRepo(seed ...Branch) *FakeRepo {
	f := &FakeRepo{branches: make(map[string]Branch)}
	for _, b := range seed {
		f.branches[b.ID] = b
		f.order = append(f.order, b.ID)
	}
	return f
}

func (f *FakeRepo) List(ctx context.Context, filters Filters) ([]Branch, error) {
	f.mu.Lock()
	f.ListCalls++
	fn := f.ListFunc
	f.mu.Unlock()
	if fn != nil {
		return fn(ctx, filters)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Branch, 0, len(f.order))
	for _, id := range f.order {
		b := f.branches[id]
		if !filters.IncludeInactive && !b.IsActive {
			continue
		}
		if filters.Status != "" && b.Status != filters.Status {
			continue
		}
		if filters.Type != "" && b.Type != filters.Type {
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

func (f *FakeRepo) Get(ctx context.Context, id string) (*Branch, error) {
	if f.GetFunc != nil {
		return f.GetFunc(ctx, id)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.branches[id]
	if !ok {
		return nil, ErrBranchNotFound
	}
	return &b, nil
}

func (f *FakeRepo) Create(ctx context.Context, data CreateData) (*Branch, error) {
	if f.CreateFunc != nil {
		return f.CreateFunc(ctx, data)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	b := Branch{
		ID:       "fake-" + data.Name,
		Name:     data.Name,
		Code:     data.Code,
		Type:     data.Type,
		Status:   StatusActive,
		IsActive: true,
	}
	f.branches[b.ID] = b
	f.order = append(f.order, b.ID)
	return &b, nil
}

func (f *FakeRepo) Update(ctx context.Context, id string, data UpdateData) (*Branch, error) {
	if f.UpdateFunc != nil {
		return f.UpdateFunc(ctx, id, data)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.branches[id]
	if !ok {
		return nil, ErrBranchNotFound
	}
	if data.Name != nil {
		b.Name = *data.Name
	}
	if data.Status != nil {
		b.Status = *data.Status
		b.IsActive = b.Status == StatusActive
	}
	if data.Type != nil {
		b.Type = *data.Type
	}
	f.branches[id] = b
	return &b, nil
}

func (f *FakeRepo) UpdateMany(ctx context.Context, updates []BranchUpdate) ([]Branch, error) {
	results := make([]Branch, 0, len(updates))
	for _, u := range updates {
		b, err := f.Update(ctx, u.ID, u.Data)
		if err != nil {
			return nil, err
		}
		results = append(results, *b)
	}
	return results, nil
}

func (f *FakeRepo) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	f.DeleteCalls++
	fn := f.DeleteFunc
	f.mu.Unlock()
	if fn != nil {
		return fn(ctx, id)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.branches[id]; !ok {
		return ErrBranchNotFound
	}
	delete(f.branches, id)
	for i, bid := range f.order {
		if bid == id {
			f.order = append(f.order[:i], f.order[i+1:]...)
			break
		}
	}
	return nil
}

func (f *FakeRepo) Clone(ctx context.Context, sourceID string, data CreateData) (*Branch, error) {
	if f.CloneFunc != nil {
		return f.CloneFunc(ctx, sourceID, data)
	}
	if _, err := f.Get(ctx, sourceID); err != nil {
		return nil, err
	}
	return f.Create(ctx, data)
}

func (f *FakeRepo) Switch(ctx context.Context, id string) (string, error) {
	f.mu.Lock()
	f.SwitchCalls++
	fn := f.SwitchFunc
	f.mu.Unlock()
	if fn != nil {
		return fn(ctx, id)
	}
	return id, nil
}

func (f *FakeRepo) AssignUser(ctx context.Context, branchID, userID string) error {
	if f.AssignFunc != nil {
		return f.AssignFunc(ctx, branchID, userID)
	}
	return nil
}

func (f *FakeRepo) RemoveUser(ctx context.Context, branchID, userID string) error {
	if f.RemoveFunc != nil {
		return f.RemoveFunc(ctx, branchID, userID)
	}
	return nil
}

func (f *FakeRepo) Hierarchy(ctx context.Context) ([]Node, error) {
	if f.HierarchyFunc != nil {
		return f.HierarchyFunc(ctx)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	nodes := make([]Node, 0, len(f.order))
	for _, id := range f.order {
		if b := f.branches[id]; b.ParentID == "" {
			nodes = append(nodes, Node{Branch: b})
		}
	}
	return nodes, nil
}

func (f *FakeRepo) Metrics(ctx context.Context, id string, start, end *time.Time) (*BranchMetrics, error) {
	if f.MetricsFunc != nil {
		return f.MetricsFunc(ctx, id, start, end)
	}
	return &BranchMetrics{}, nil
}

func (f *FakeRepo) ConsolidatedMetrics(ctx context.Context, start, end *time.Time) (*ConsolidatedMetrics, error) {
	if f.ConsolidatedFunc != nil {
		return f.ConsolidatedFunc(ctx, start, end)
	}
	return &ConsolidatedMetrics{}, nil
}
