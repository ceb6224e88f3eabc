package branch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/appetiteclub/apt"

	"github.com/savoria/savoria/services/console/internal/session"
)

func newTestManager(t *testing.T, repo Repository, user *session.User) (*Manager, *session.MemStore) {
	t.Helper()
	store := session.NewMemStore()
	if user != nil {
		if err := store.SetUser(user); err != nil {
			t.Fatalf("SetUser failed: %v", err)
		}
	}
	cache := NewListCache(repo, time.Minute, apt.NewNoopLogger())
	return NewManager(repo, cache, store, Filters{}, apt.NewNoopLogger()), store
}

func TestBranchesWithoutUserFiresNoRequest(t *testing.T) {
	repo := NewFakeRepo(Branch{ID: "b1", IsActive: true})
	mgr, _ := newTestManager(t, repo, nil)

	branches, err := mgr.Branches(context.Background())
	if err != nil {
		t.Fatalf("Branches failed: %v", err)
	}
	if len(branches) != 0 {
		t.Errorf("Expected empty list, got %d", len(branches))
	}
	if repo.ListCalls != 0 {
		t.Errorf("Expected no API call without a user, got %d", repo.ListCalls)
	}
}

func TestAssignedBranchesMatchesCanAccessBranch(t *testing.T) {
	all := []Branch{
		{ID: "b1", IsActive: true, Status: StatusActive},
		{ID: "b2", IsActive: true, Status: StatusActive},
		{ID: "b3", IsActive: true, Status: StatusActive},
	}
	repo := NewFakeRepo(all...)

	tests := []struct {
		name string
		user *session.User
		want []string
	}{
		{
			name: "admin sees everything",
			user: &session.User{ID: "u1", Role: session.RoleAdmin},
			want: []string{"b1", "b2", "b3"},
		},
		{
			name: "manager sees assignments",
			user: &session.User{ID: "u2", Role: session.RoleManager, AssignedBranches: []string{"b1", "b3"}},
			want: []string{"b1", "b3"},
		},
		{
			name: "staff with no assignments sees nothing",
			user: &session.User{ID: "u3", Role: session.RoleStaff},
			want: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mgr, _ := newTestManager(t, repo, tt.user)
			got, err := mgr.AssignedBranches(context.Background())
			if err != nil {
				t.Fatalf("AssignedBranches failed: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("Expected %d branches, got %d", len(tt.want), len(got))
			}
			// The assigned set must agree with per-branch access checks.
			for i, b := range got {
				if b.ID != tt.want[i] {
					t.Errorf("Position %d: expected %s, got %s", i, tt.want[i], b.ID)
				}
				if !mgr.CanAccessBranch(b.ID) {
					t.Errorf("CanAccessBranch(%s) is false for an assigned branch", b.ID)
				}
			}
			for _, b := range all {
				assigned := false
				for _, w := range tt.want {
					if w == b.ID {
						assigned = true
					}
				}
				if mgr.CanAccessBranch(b.ID) != assigned {
					t.Errorf("CanAccessBranch(%s) = %v, want %v", b.ID, !assigned, assigned)
				}
			}
		})
	}
}

func TestSwitchBranchPersistsServerAnswer(t *testing.T) {
	repo := NewFakeRepo(Branch{ID: "b2", IsActive: true, Status: StatusActive})
	repo.SwitchFunc = func(ctx context.Context, id string) (string, error) {
		return "b2", nil
	}
	user := &session.User{ID: "u1", Role: session.RoleAdmin, CurrentBranch: "b1"}
	mgr, store := newTestManager(t, repo, user)

	current, err := mgr.SwitchBranch(context.Background(), "b2")
	if err != nil {
		t.Fatalf("SwitchBranch failed: %v", err)
	}
	if current != "b2" {
		t.Errorf("Expected b2, got %q", current)
	}
	if store.CurrentBranchID() != "b2" {
		t.Errorf("Session not updated, current branch is %q", store.CurrentBranchID())
	}
}

func TestMutationErrorsPropagateUnchanged(t *testing.T) {
	boom := errors.New("duplicate branch code")
	repo := NewFakeRepo()
	repo.CreateFunc = func(ctx context.Context, data CreateData) (*Branch, error) {
		return nil, boom
	}
	mgr, _ := newTestManager(t, repo, &session.User{ID: "u1", Role: session.RoleAdmin})

	_, err := mgr.CreateBranch(context.Background(), CreateData{Name: "Dup"})
	if !errors.Is(err, boom) {
		t.Errorf("Expected original error, got %v", err)
	}
}

func TestPendingFlagsAreIndependent(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	repo := NewFakeRepo()
	repo.CreateFunc = func(ctx context.Context, data CreateData) (*Branch, error) {
		close(started)
		<-release
		return &Branch{ID: "b1"}, nil
	}
	mgr, _ := newTestManager(t, repo, &session.User{ID: "u1", Role: session.RoleAdmin})

	errc := make(chan error, 1)
	go func() {
		_, err := mgr.CreateBranch(context.Background(), CreateData{Name: "New"})
		errc <- err
	}()

	<-started
	if !mgr.IsCreating() {
		t.Error("Expected IsCreating during the call")
	}
	if mgr.IsDeleting() || mgr.IsSwitching() || mgr.IsUpdating() {
		t.Error("Unrelated pending flags flipped")
	}

	close(release)
	if err := <-errc; err != nil {
		t.Fatalf("CreateBranch failed: %v", err)
	}
	if mgr.IsCreating() {
		t.Error("IsCreating still set after completion")
	}
}

func TestMutationInvalidatesListCache(t *testing.T) {
	repo := NewFakeRepo(Branch{ID: "b1", IsActive: true, Status: StatusActive})
	mgr, _ := newTestManager(t, repo, &session.User{ID: "u1", Role: session.RoleAdmin})

	ctx := context.Background()
	mgr.Branches(ctx)
	if _, err := mgr.CreateBranch(ctx, CreateData{Name: "Second"}); err != nil {
		t.Fatalf("CreateBranch failed: %v", err)
	}
	branches, err := mgr.Branches(ctx)
	if err != nil {
		t.Fatalf("Branches failed: %v", err)
	}
	if len(branches) != 2 {
		t.Errorf("Expected refreshed list with 2 branches, got %d", len(branches))
	}
}

func TestActiveBranchesAndByType(t *testing.T) {
	repo := NewFakeRepo(
		Branch{ID: "b1", Type: TypeMain, Status: StatusActive, IsActive: true},
		Branch{ID: "b2", Type: TypeFranchise, Status: StatusActive, IsActive: true},
		Branch{ID: "b3", Type: TypeFranchise, Status: StatusSuspended, IsActive: true},
	)
	mgr, _ := newTestManager(t, repo, &session.User{ID: "u1", Role: session.RoleAdmin})

	ctx := context.Background()
	active, err := mgr.ActiveBranches(ctx)
	if err != nil {
		t.Fatalf("ActiveBranches failed: %v", err)
	}
	if len(active) != 2 {
		t.Errorf("Expected 2 active, got %d", len(active))
	}

	franchises, err := mgr.BranchesByType(ctx, TypeFranchise)
	if err != nil {
		t.Fatalf("BranchesByType failed: %v", err)
	}
	if len(franchises) != 2 {
		t.Errorf("Expected 2 franchises, got %d", len(franchises))
	}
}

func TestCurrentBranchResolvedFromListing(t *testing.T) {
	repo := NewFakeRepo(
		Branch{ID: "b1", Name: "Main", IsActive: true, Status: StatusActive},
		Branch{ID: "b2", Name: "North", IsActive: true, Status: StatusActive},
	)
	user := &session.User{ID: "u1", Role: session.RoleAdmin, CurrentBranch: "b2"}
	mgr, _ := newTestManager(t, repo, user)

	b, err := mgr.CurrentBranch(context.Background())
	if err != nil {
		t.Fatalf("CurrentBranch failed: %v", err)
	}
	if b == nil || b.Name != "North" {
		t.Errorf("Expected North, got %+v", b)
	}
}
