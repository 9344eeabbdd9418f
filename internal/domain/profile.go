package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidProfile is wrapped by every profile decoding or validation failure.
var ErrInvalidProfile = errors.New("invalid role profile")

// RoleProfile is the role-specific part of a user's application. Exactly
// one concrete type exists per role.
type RoleProfile interface {
	Role() Role
	Validate() error
}

// DriverProfile is filled by individual drivers.
type DriverProfile struct {
	LicenseNumber string      `json:"license_number"`
	VehicleType   VehicleType `json:"vehicle_type"`
	VehiclePlate  string      `json:"vehicle_plate"`
}

func (DriverProfile) Role() Role { return RoleDriver }

func (p DriverProfile) Validate() error {
	if strings.TrimSpace(p.LicenseNumber) == "" {
		return fmt.Errorf("%w: license_number is required", ErrInvalidProfile)
	}
	if !p.VehicleType.Valid() {
		return fmt.Errorf("%w: unknown vehicle_type %q", ErrInvalidProfile, p.VehicleType)
	}
	return nil
}

// LogisticsCompanyProfile is filled by logistics companies.
type LogisticsCompanyProfile struct {
	CompanyName        string      `json:"company_name"`
	RegistrationNumber string      `json:"registration_number"`
	FleetVehicleType   VehicleType `json:"fleet_vehicle_type"`
	ServiceAreas       []string    `json:"service_areas"`
}

func (LogisticsCompanyProfile) Role() Role { return RoleLogisticsCompany }

func (p LogisticsCompanyProfile) Validate() error {
	if strings.TrimSpace(p.CompanyName) == "" {
		return fmt.Errorf("%w: company_name is required", ErrInvalidProfile)
	}
	if strings.TrimSpace(p.RegistrationNumber) == "" {
		return fmt.Errorf("%w: registration_number is required", ErrInvalidProfile)
	}
	if p.FleetVehicleType != "" && !p.FleetVehicleType.Valid() {
		return fmt.Errorf("%w: unknown fleet_vehicle_type %q", ErrInvalidProfile, p.FleetVehicleType)
	}
	return nil
}

// SellerProfile is filled by sellers shipping goods.
type SellerProfile struct {
	BusinessName      string   `json:"business_name"`
	BusinessAddress   string   `json:"business_address"`
	ProductCategories []string `json:"product_categories"`
}

func (SellerProfile) Role() Role { return RoleSeller }

func (p SellerProfile) Validate() error {
	if strings.TrimSpace(p.BusinessName) == "" {
		return fmt.Errorf("%w: business_name is required", ErrInvalidProfile)
	}
	return nil
}

// SourcingAgentProfile is filled by sourcing agents.
type SourcingAgentProfile struct {
	AgencyName      string   `json:"agency_name"`
	Markets         []string `json:"markets"`
	YearsExperience int      `json:"years_experience"`
}

func (SourcingAgentProfile) Role() Role { return RoleSourcingAgent }

func (p SourcingAgentProfile) Validate() error {
	if len(p.Markets) == 0 {
		return fmt.Errorf("%w: at least one market is required", ErrInvalidProfile)
	}
	if p.YearsExperience < 0 {
		return fmt.Errorf("%w: years_experience cannot be negative", ErrInvalidProfile)
	}
	return nil
}

// ImportCoachProfile is filled by import coaches.
type ImportCoachProfile struct {
	Specialties    []string `json:"specialties"`
	Certifications []string `json:"certifications"`
	HourlyRate     float64  `json:"hourly_rate"`
}

func (ImportCoachProfile) Role() Role { return RoleImportCoach }

func (p ImportCoachProfile) Validate() error {
	if len(p.Specialties) == 0 {
		return fmt.Errorf("%w: at least one specialty is required", ErrInvalidProfile)
	}
	if p.HourlyRate < 0 {
		return fmt.Errorf("%w: hourly_rate cannot be negative", ErrInvalidProfile)
	}
	return nil
}

// DecodeRoleProfile decodes raw into the profile type owned by role and
// validates it. Unknown fields are rejected.
func DecodeRoleProfile(role Role, raw json.RawMessage) (RoleProfile, error) {
	var profile RoleProfile
	switch role {
	case RoleDriver:
		profile = &DriverProfile{}
	case RoleLogisticsCompany:
		profile = &LogisticsCompanyProfile{}
	case RoleSeller:
		profile = &SellerProfile{}
	case RoleSourcingAgent:
		profile = &SourcingAgentProfile{}
	case RoleImportCoach:
		profile = &ImportCoachProfile{}
	default:
		return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidProfile, role)
	}

	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, fmt.Errorf("%w: profile is required for role %s", ErrInvalidProfile, role)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(profile); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidProfile, err)
	}

	if err := profile.Validate(); err != nil {
		return nil, err
	}
	return profile, nil
}

// ProfileVehicleType returns the vehicle class a fulfilling profile declares.
func ProfileVehicleType(p RoleProfile) VehicleType {
	switch v := p.(type) {
	case *DriverProfile:
		return v.VehicleType
	case *LogisticsCompanyProfile:
		return v.FleetVehicleType
	}
	return ""
}
