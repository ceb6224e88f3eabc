package session

const (
	RoleSuperadmin = "superadmin"
	RoleAdmin      = "admin"
	RoleManager    = "manager"
	RoleStaff      = "staff"
)

// User mirrors the authenticated user record cached by the auth service.
type User struct {
	ID               string   `json:"id"`
	Name             string   `json:"name,omitempty"`
	Email            string   `json:"email,omitempty"`
	Role             string   `json:"role"`
	TenantID         string   `json:"tenantId,omitempty"`
	AssignedBranches []string `json:"assignedBranches,omitempty"`
	CurrentBranch    string   `json:"currentBranch,omitempty"`
}

// IsPrivileged reports whether the user's role bypasses branch assignment
// checks.
func (u *User) IsPrivileged() bool {
	if u == nil {
		return false
	}
	return u.Role == RoleAdmin || u.Role == RoleSuperadmin
}

// CanAccessBranch reports whether the user may operate on the given branch.
// Privileged roles can access every branch; everyone else only their
// assigned ones.
func (u *User) CanAccessBranch(branchID string) bool {
	if u == nil {
		return false
	}
	if u.IsPrivileged() {
		return true
	}
	for _, id := range u.AssignedBranches {
		if id == branchID {
			return true
		}
	}
	return false
}

// CanSwitchBranches reports whether the branch switcher should be offered:
// privileged roles always, other roles only with more than one assignment.
func (u *User) CanSwitchBranches() bool {
	if u == nil {
		return false
	}
	if u.IsPrivileged() {
		return true
	}
	return len(u.AssignedBranches) > 1
}
