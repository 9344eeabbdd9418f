package service

import (
	"strings"
	"unicode/utf8"

	"dispatch/internal/domain"
)

const minContentDescriptionLen = 3

func validateLocation(loc domain.Location, errInvalid error) error {
	if !loc.Coordinate.Valid() {
		return errInvalid
	}
	return nil
}

func validatePackage(p domain.PackageDetails) error {
	if !(p.WeightKg > 0) {
		return ErrInvalidWeight
	}
	if d := p.Dimensions; d != nil && !(d.Length > 0 && d.Width > 0 && d.Height > 0) {
		return ErrInvalidDimensions
	}
	if utf8.RuneCountInString(strings.TrimSpace(p.ContentDescription)) < minContentDescriptionLen {
		return ErrInvalidContentDescription
	}
	return nil
}

// normalizeTier defaults an empty tier to standard and rejects unknown ones.
func normalizeTier(t domain.ServiceTier) (domain.ServiceTier, error) {
	if t == "" {
		return domain.ServiceTierStandard, nil
	}
	if !t.Valid() {
		return "", ErrInvalidServiceTier
	}
	return t, nil
}

func validateVehicleType(v domain.VehicleType) error {
	if v != "" && !v.Valid() {
		return ErrInvalidVehicleType
	}
	return nil
}

// pageBounds turns a 1-based page and a size into limit/offset.
func pageBounds(page, limit int) (int, int) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if page <= 0 {
		page = 1
	}
	return limit, (page - 1) * limit
}
