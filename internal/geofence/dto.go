package geofence

import "time"

// 座標は 0 も有効値なので required ではなくポインタで未指定を判定する
type CreateRegionRequest struct {
	Name         string   `json:"name" binding:"required"`
	Latitude     *float64 `json:"latitude"`
	Longitude    *float64 `json:"longitude"`
	RadiusMeters *float64 `json:"radius_meters,omitempty"` // 未指定なら 100
}

type RegionResponse struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Latitude     float64   `json:"latitude"`
	Longitude    float64   `json:"longitude"`
	RadiusMeters float64   `json:"radius_meters"`
	CreatedAt    time.Time `json:"created_at"`
}
