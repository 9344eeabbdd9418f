package handler

import (
	"dispatch/internal/domain"
)

// LocationRequest is a location in a request body. Coordinates are pointers
// so a missing value is distinguishable from zero.
type LocationRequest struct {
	Address   string   `json:"address"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

func (r *LocationRequest) toDomain(errInvalid error) (domain.Location, error) {
	if r == nil || r.Latitude == nil || r.Longitude == nil {
		return domain.Location{}, errInvalid
	}
	return domain.Location{
		Address:    r.Address,
		Coordinate: domain.Coordinate{Latitude: *r.Latitude, Longitude: *r.Longitude},
	}, nil
}

// DimensionsRequest are optional package dimensions in centimetres.
type DimensionsRequest struct {
	Length float64 `json:"length"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// PackageRequest describes the package in a request body.
type PackageRequest struct {
	Weight             float64            `json:"weight"`
	Dimensions         *DimensionsRequest `json:"dimensions,omitempty"`
	ContentDescription string             `json:"content_description"`
}

func (r PackageRequest) toDomain() domain.PackageDetails {
	p := domain.PackageDetails{
		WeightKg:           r.Weight,
		ContentDescription: r.ContentDescription,
	}
	if r.Dimensions != nil {
		p.Dimensions = &domain.Dimensions{
			Length: r.Dimensions.Length,
			Width:  r.Dimensions.Width,
			Height: r.Dimensions.Height,
		}
	}
	return p
}

// LocationResponse is a location in a response body.
type LocationResponse struct {
	Address   string  `json:"address,omitempty"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

func toLocationResponse(l domain.Location) LocationResponse {
	return LocationResponse{
		Address:   l.Address,
		Latitude:  l.Coordinate.Latitude,
		Longitude: l.Coordinate.Longitude,
	}
}

// PackageResponse describes the package in a response body.
type PackageResponse struct {
	Weight             float64            `json:"weight"`
	Dimensions         *DimensionsRequest `json:"dimensions,omitempty"`
	ContentDescription string             `json:"content_description"`
}

func toPackageResponse(p domain.PackageDetails) PackageResponse {
	resp := PackageResponse{
		Weight:             p.WeightKg,
		ContentDescription: p.ContentDescription,
	}
	if p.Dimensions != nil {
		resp.Dimensions = &DimensionsRequest{
			Length: p.Dimensions.Length,
			Width:  p.Dimensions.Width,
			Height: p.Dimensions.Height,
		}
	}
	return resp
}

// PageResponse wraps a page of items.
type PageResponse[T any] struct {
	Items []T `json:"items"`
	Total int `json:"total"`
	Page  int `json:"page"`
	Limit int `json:"limit"`
}
