package access

import "errors"

// Capabilities are the five independent flags stored per (role, module)
// pair. A missing row means no access; Denied is the explicit default.
type Capabilities struct {
	View   bool `json:"can_view"`
	Create bool `json:"can_create"`
	Edit   bool `json:"can_edit"`
	Delete bool `json:"can_delete"`
	Export bool `json:"can_export"`
}

// Denied is the zero capability set returned for absent matrix rows.
var Denied = Capabilities{}

// Matrix maps module name to capabilities for a single role.
type Matrix = map[string]Capabilities

var (
	ErrNotFound     = errors.New("permission entry not found")
	ErrInvalidInput = errors.New("invalid permission input")
)

// Baseline module and role lists. The permission editor always offers these
// even before any matrix row exists; stored values extend the set.
var (
	BaselineModules = []string{
		"dashboard", "users", "patients", "doctors", "staff",
		"appointments", "medical_records", "prescriptions",
		"lab_tests", "billing", "inventory", "departments",
		"reports", "settings", "system",
	}
	BaselineRoles = []string{"admin", "doctor", "nurse", "staff", "patient"}
)
