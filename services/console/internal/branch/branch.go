package branch

import (
	"net/url"
	"strings"
	"time"
)

// Branch types and statuses are opaque strings on the wire; these are the
// values the platform currently emits.
const (
	TypeMain      = "main"
	TypeBranch    = "branch"
	TypeFranchise = "franchise"

	StatusActive            = "active"
	StatusInactive          = "inactive"
	StatusSuspended         = "suspended"
	StatusTemporarilyClosed = "temporarily_closed"
)

// Branch is the full branch record as served by the platform API.
type Branch struct {
	ID           string        `json:"_id"`
	TenantID     string        `json:"tenantId,omitempty"`
	ParentID     string        `json:"parentBranchId,omitempty"`
	Name         string        `json:"name"`
	Code         string        `json:"code"`
	Type         string        `json:"type"`
	Status       string        `json:"status"`
	Address      Address       `json:"address"`
	Contact      Contact       `json:"contact"`
	Operations   Operations    `json:"operations"`
	Financial    Financial     `json:"financial"`
	Inventory    Inventory     `json:"inventory"`
	MenuConfig   MenuConfig    `json:"menuConfig"`
	Staffing     Staffing      `json:"staffing"`
	Metrics      BranchMetrics `json:"metrics"`
	Integrations Integrations  `json:"integrations"`
	Settings     Settings      `json:"settings"`
	IsActive     bool          `json:"isActive"`
	CreatedBy    string        `json:"createdBy,omitempty"`
	UpdatedBy    string        `json:"updatedBy,omitempty"`
	CreatedAt    time.Time     `json:"createdAt,omitempty"`
	UpdatedAt    time.Time     `json:"updatedAt,omitempty"`
}

type Address struct {
	Street      string       `json:"street"`
	City        string       `json:"city"`
	State       string       `json:"state,omitempty"`
	PostalCode  string       `json:"postalCode,omitempty"`
	Country     string       `json:"country"`
	Coordinates *Coordinates `json:"coordinates,omitempty"`
}

type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type Contact struct {
	Phone        string `json:"phone"`
	Email        string `json:"email,omitempty"`
	ManagerName  string `json:"managerName,omitempty"`
	ManagerPhone string `json:"managerPhone,omitempty"`
	ManagerEmail string `json:"managerEmail,omitempty"`
}

type Operations struct {
	OpenTime        string   `json:"openTime"`
	CloseTime       string   `json:"closeTime"`
	Timezone        string   `json:"timezone"`
	DaysOpen        []string `json:"daysOpen"`
	SeatingCapacity int      `json:"seatingCapacity,omitempty"`
	DeliveryRadius  float64  `json:"deliveryRadius,omitempty"`
}

type Financial struct {
	Currency          string   `json:"currency"`
	TaxRate           float64  `json:"taxRate,omitempty"`
	ServiceChargeRate float64  `json:"serviceChargeRate,omitempty"`
	TipEnabled        bool     `json:"tipEnabled,omitempty"`
	PaymentMethods    []string `json:"paymentMethods,omitempty"`
}

type Inventory struct {
	TrackInventory       bool `json:"trackInventory"`
	LowStockAlertEnabled bool `json:"lowStockAlertEnabled"`
	AutoReorderEnabled   bool `json:"autoReorderEnabled"`
}

type MenuConfig struct {
	InheritFromParent bool    `json:"inheritFromParent"`
	PriceMultiplier   float64 `json:"priceMultiplier,omitempty"`
	CustomPricing     bool    `json:"customPricing,omitempty"`
}

type Staffing struct {
	MaxStaff     int      `json:"maxStaff,omitempty"`
	CurrentStaff int      `json:"currentStaff,omitempty"`
	Roles        []string `json:"roles,omitempty"`
	ShiftPattern string   `json:"shiftPattern,omitempty"`
}

// BranchMetrics is the rollup the platform maintains per branch.
type BranchMetrics struct {
	AvgOrderValue float64    `json:"avgOrderValue,omitempty"`
	TotalOrders   int        `json:"totalOrders,omitempty"`
	TotalRevenue  float64    `json:"totalRevenue,omitempty"`
	Rating        float64    `json:"rating,omitempty"`
	LastUpdated   *time.Time `json:"lastUpdated,omitempty"`
}

type Integrations struct {
	POSSystemID           string `json:"posSystemId,omitempty"`
	POSSystemType         string `json:"posSystemType,omitempty"`
	KitchenDisplayID      string `json:"kitchenDisplayId,omitempty"`
	OnlineOrderingEnabled bool   `json:"onlineOrderingEnabled,omitempty"`
}

type Settings struct {
	OrderPrefix         string `json:"orderPrefix,omitempty"`
	OrderNumberSequence int    `json:"orderNumberSequence,omitempty"`
	ReceiptHeader       string `json:"receiptHeader,omitempty"`
	ReceiptFooter       string `json:"receiptFooter,omitempty"`
}

// ConsolidatedMetrics aggregates metrics across every branch of a tenant.
type ConsolidatedMetrics struct {
	TotalBranches int            `json:"totalBranches"`
	TotalOrders   int            `json:"totalOrders"`
	TotalRevenue  float64        `json:"totalRevenue"`
	AvgOrderValue float64        `json:"avgOrderValue"`
	Branches      []BranchRollup `json:"branches,omitempty"`
}

type BranchRollup struct {
	BranchID   string        `json:"branchId"`
	BranchName string        `json:"branchName"`
	Metrics    BranchMetrics `json:"metrics"`
}

// Node is one node of the branch hierarchy tree.
type Node struct {
	Branch
	Children []Node `json:"children,omitempty"`
}

// Filters narrows a branch listing. The zero value lists active branches.
type Filters struct {
	IncludeInactive bool
	Status          string
	Type            string
	Search          string
}

// Query renders the filters as a query string, preserving the parameter
// order the backend's cache keys rely on: includeInactive, status, type,
// search. An empty filter set renders to "".
func (f Filters) Query() string {
	var params []string
	if f.IncludeInactive {
		params = append(params, "includeInactive=true")
	}
	if f.Status != "" {
		params = append(params, "status="+url.QueryEscape(f.Status))
	}
	if f.Type != "" {
		params = append(params, "type="+url.QueryEscape(f.Type))
	}
	if f.Search != "" {
		params = append(params, "search="+url.QueryEscape(f.Search))
	}
	if len(params) == 0 {
		return ""
	}
	return "?" + strings.Join(params, "&")
}

// CreateData is the payload for creating or cloning a branch.
type CreateData struct {
	Name       string      `json:"name"`
	Code       string      `json:"code,omitempty"`
	Type       string      `json:"type,omitempty"`
	ParentID   string      `json:"parentBranchId,omitempty"`
	Address    Address     `json:"address"`
	Contact    Contact     `json:"contact"`
	Operations Operations  `json:"operations"`
	Financial  Financial   `json:"financial"`
	Inventory  *Inventory  `json:"inventory,omitempty"`
	MenuConfig *MenuConfig `json:"menuConfig,omitempty"`
	Staffing   *Staffing   `json:"staffing,omitempty"`
	Settings   *Settings   `json:"settings,omitempty"`
}

// UpdateData is a partial branch update; nil fields are left untouched by
// the server.
type UpdateData struct {
	Name       *string     `json:"name,omitempty"`
	Type       *string     `json:"type,omitempty"`
	Status     *string     `json:"status,omitempty"`
	Address    *Address    `json:"address,omitempty"`
	Contact    *Contact    `json:"contact,omitempty"`
	Operations *Operations `json:"operations,omitempty"`
	Financial  *Financial  `json:"financial,omitempty"`
	Inventory  *Inventory  `json:"inventory,omitempty"`
	MenuConfig *MenuConfig `json:"menuConfig,omitempty"`
	Staffing   *Staffing   `json:"staffing,omitempty"`
	Settings   *Settings   `json:"settings,omitempty"`
}

// BranchUpdate pairs a branch id with its partial update for bulk edits.
type BranchUpdate struct {
	ID   string     `json:"id"`
	Data UpdateData `json:"data"`
}
