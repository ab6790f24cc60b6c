package geofence

import (
	"time"

	"workforce-backend/internal/geo"
)

// DefaultRadiusMeters は半径未指定時の既定値
const DefaultRadiusMeters = 100.0

// Region は office_locations テーブルの1行。作成後は不変。
type Region struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Latitude     float64   `json:"latitude"`
	Longitude    float64   `json:"longitude"`
	RadiusMeters float64   `json:"radius_meters"`
	CreatedAt    time.Time `json:"created_at"`
}

func (r Region) Center() geo.Coordinate {
	return geo.Coordinate{Latitude: r.Latitude, Longitude: r.Longitude}
}

func (r Region) Radius() float64 { return r.RadiusMeters }

func (r Region) toDTO() RegionResponse {
	return RegionResponse{
		ID:           r.ID,
		Name:         r.Name,
		Latitude:     r.Latitude,
		Longitude:    r.Longitude,
		RadiusMeters: r.RadiusMeters,
		CreatedAt:    r.CreatedAt,
	}
}
