package enums

import "fmt"

// VehicleType is the service class requested on a scheduled booking.
type VehicleType string

const (
	VehicleTypeStandard VehicleType = "standard"
	VehicleTypeComfort  VehicleType = "comfort"
	VehicleTypeVan      VehicleType = "van"
	VehicleTypeMoto     VehicleType = "moto"
)

var validVehicleTypes = []VehicleType{
	VehicleTypeStandard,
	VehicleTypeComfort,
	VehicleTypeVan,
	VehicleTypeMoto,
}

// String implements fmt.Stringer.
func (v VehicleType) String() string {
	return string(v)
}

// IsValid reports whether the value is a known VehicleType.
func (v VehicleType) IsValid() bool {
	for _, candidate := range validVehicleTypes {
		if candidate == v {
			return true
		}
	}
	return false
}

// ParseVehicleType converts raw input into a VehicleType.
func ParseVehicleType(value string) (VehicleType, error) {
	for _, candidate := range validVehicleTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid vehicle type %q", value)
}
