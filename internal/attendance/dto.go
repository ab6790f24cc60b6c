package attendance

import "time"

const (
	SortWorkDateDesc = "work_date_desc"
	SortWorkDateAsc  = "work_date_asc"
	DefaultPageLimit = 50
	MaxPageLimit     = 200
	DefaultSort      = SortWorkDateDesc
	DateLayout       = "2006-01-02"
)

// チェックイン/アウト共通の入力。座標は 0 も有効なのでポインタで未指定を判定する。
type CheckRequest struct {
	Latitude       *float64   `json:"latitude"`
	Longitude      *float64   `json:"longitude"`
	AccuracyMeters float64    `json:"accuracy_meters"`
	CapturedAt     *time.Time `json:"captured_at,omitempty"`
	Address        *string    `json:"address,omitempty"`
}

type SessionResponse struct {
	UserID           string           `json:"user_id"`
	WorkDate         string           `json:"work_date"` // YYYY-MM-DD
	State            State            `json:"state"`
	CheckedIn        bool             `json:"checked_in"`
	CheckedOut       bool             `json:"checked_out"`
	CheckInTime      *time.Time       `json:"check_in_time,omitempty"`
	CheckInLocation  *LocationReading `json:"check_in_location,omitempty"`
	CheckOutTime     *time.Time       `json:"check_out_time,omitempty"`
	CheckOutLocation *LocationReading `json:"check_out_location,omitempty"`
	WorkLocation     string           `json:"work_location,omitempty"` // office|remote
	IsInOfficeRadius *bool            `json:"is_in_office_radius,omitempty"`
	TotalHours       *float64         `json:"total_hours,omitempty"`
}

type ListQuery struct {
	UserID       *string
	From         *string // YYYY-MM-DD
	To           *string // YYYY-MM-DD
	WorkLocation *string
	Limit        int
	Offset       int
	Sort         string
}

type ListResponse struct {
	Items []SessionResponse `json:"items"`
	Total int64             `json:"total"`
}

const (
	EncodingUTF8     = "utf8"
	EncodingShiftJIS = "sjis"
)

type ExportQuery struct {
	From     string // YYYY-MM-DD（必須）
	To       string // YYYY-MM-DD（必須）
	UserID   *string
	Encoding string // utf8|sjis
}
