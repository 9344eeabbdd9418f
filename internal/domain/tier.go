package domain

// ServiceTier is a pricing and speed class.
type ServiceTier string

const (
	ServiceTierStandard  ServiceTier = "standard"
	ServiceTierExpress   ServiceTier = "express"
	ServiceTierOvernight ServiceTier = "overnight"
	ServiceTierEconomy   ServiceTier = "economy"
)

// Valid reports whether t is a known tier. The empty tier is not valid;
// callers default it to standard before validating.
func (t ServiceTier) Valid() bool {
	switch t {
	case ServiceTierStandard, ServiceTierExpress, ServiceTierOvernight, ServiceTierEconomy:
		return true
	}
	return false
}

// VehicleType is the vehicle class a driver operates or a delivery requires.
type VehicleType string

const (
	VehicleBike  VehicleType = "bike"
	VehicleCar   VehicleType = "car"
	VehicleVan   VehicleType = "van"
	VehicleTruck VehicleType = "truck"
)

// Valid reports whether v is a known vehicle type.
func (v VehicleType) Valid() bool {
	switch v {
	case VehicleBike, VehicleCar, VehicleVan, VehicleTruck:
		return true
	}
	return false
}
