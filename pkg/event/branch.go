package event

import "time"

const (
	BranchesTopic = "branches"

	EventBranchSwitched = "branch.switched"
	EventBranchCreated  = "branch.created"
	EventBranchDeleted  = "branch.deleted"
)

// BranchSwitchedEvent announces that a user changed their active branch.
type BranchSwitchedEvent struct {
	EventType  string    `json:"event_type"`
	OccurredAt time.Time `json:"occurred_at"`
	TenantID   string    `json:"tenant_id,omitempty"`
	UserID     string    `json:"user_id,omitempty"`
	BranchID   string    `json:"branch_id"`
	BranchName string    `json:"branch_name,omitempty"`
}

// BranchLifecycleEvent announces branch creation or deletion.
type BranchLifecycleEvent struct {
	EventType  string    `json:"event_type"`
	OccurredAt time.Time `json:"occurred_at"`
	TenantID   string    `json:"tenant_id,omitempty"`
	BranchID   string    `json:"branch_id"`
	Code       string    `json:"code,omitempty"`
	Name       string    `json:"name,omitempty"`
}
