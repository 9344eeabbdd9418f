package domain

import "time"

// Role is a marketplace role.
type Role string

const (
	RoleSeller           Role = "seller"
	RoleLogisticsCompany Role = "logistics_company"
	RoleDriver           Role = "driver"
	RoleSourcingAgent    Role = "sourcing_agent"
	RoleImportCoach      Role = "import_coach"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleSeller, RoleLogisticsCompany, RoleDriver, RoleSourcingAgent, RoleImportCoach:
		return true
	}
	return false
}

// Code is the short role code embedded in order and quote numbers.
func (r Role) Code() string {
	switch r {
	case RoleSeller:
		return "S"
	case RoleLogisticsCompany:
		return "L"
	case RoleDriver:
		return "D"
	case RoleSourcingAgent:
		return "SA"
	case RoleImportCoach:
		return "IC"
	default:
		return "U"
	}
}

// CanFulfil reports whether the role may be assigned deliveries.
func (r Role) CanFulfil() bool {
	return r == RoleDriver || r == RoleLogisticsCompany
}

// User is a registered marketplace participant.
type User struct {
	ID        string
	Name      string
	Phone     string
	Email     string
	Role      Role
	Profile   RoleProfile
	CreatedAt time.Time
}

// Caller is the authenticated identity behind a request.
type Caller struct {
	ID   string
	Role Role
}
