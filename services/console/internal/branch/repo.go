package branch

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrBranchNotFound is returned when a branch lookup resolves to nothing,
	// including the backend quirk of answering a single-branch request with a
	// collection payload.
	ErrBranchNotFound = errors.New("branch not found")
)

// Repository is the branch data access contract against the platform API.
type Repository interface {
	List(ctx context.Context, filters Filters) ([]Branch, error)
	Get(ctx context.Context, id string) (*Branch, error)
	Create(ctx context.Context, data CreateData) (*Branch, error)
	Update(ctx context.Context, id string, data UpdateData) (*Branch, error)
	UpdateMany(ctx context.Context, updates []BranchUpdate) ([]Branch, error)
	Delete(ctx context.Context, id string) error
	Clone(ctx context.Context, sourceID string, data CreateData) (*Branch, error)

	// Switch changes the caller's active branch and returns the branch id the
	// server settled on.
	Switch(ctx context.Context, id string) (string, error)

	AssignUser(ctx context.Context, branchID, userID string) error
	RemoveUser(ctx context.Context, branchID, userID string) error

	Hierarchy(ctx context.Context) ([]Node, error)
	Metrics(ctx context.Context, id string, start, end *time.Time) (*BranchMetrics, error)
	ConsolidatedMetrics(ctx context.Context, start, end *time.Time) (*ConsolidatedMetrics, error)
}
