package attendance

import (
	"database/sql"
	"encoding/json"
	"time"

	"workforce-backend/internal/geo"
)

// State はその日のセッション状態
type State string

const (
	StateNotCheckedIn State = "NOT_CHECKED_IN"
	StateCheckedIn    State = "CHECKED_IN"
	StateCheckedOut   State = "CHECKED_OUT"
)

// LocationReading はクライアントから送られた1回分の測位値。
// 単独では保存せず、セッションの check_in/check_out_location に埋め込む。
type LocationReading struct {
	Latitude       float64   `json:"latitude"`
	Longitude      float64   `json:"longitude"`
	AccuracyMeters float64   `json:"accuracy_meters"`
	CapturedAt     time.Time `json:"captured_at"`
	Address        *string   `json:"address,omitempty"` // 逆ジオコーディング（任意）
}

func (r LocationReading) Coordinate() geo.Coordinate {
	return geo.Coordinate{Latitude: r.Latitude, Longitude: r.Longitude}
}

// Session: (user_id, work_date) ごとに1件。削除はしない。
type Session struct {
	SessionID        uint64
	UserID           string
	WorkDate         string // YYYY-MM-DD
	CheckInTime      *time.Time
	CheckInLocation  *LocationReading
	CheckOutTime     *time.Time
	CheckOutLocation *LocationReading
	WorkLocation     geo.WorkLocation
	TotalHours       *float64
}

func (s Session) State() State {
	switch {
	case s.CheckOutTime != nil:
		return StateCheckedOut
	case s.CheckInTime != nil:
		return StateCheckedIn
	default:
		return StateNotCheckedIn
	}
}

func (s Session) toDTO() SessionResponse {
	st := s.State()
	res := SessionResponse{
		UserID:           s.UserID,
		WorkDate:         s.WorkDate,
		State:            st,
		CheckedIn:        st != StateNotCheckedIn,
		CheckedOut:       st == StateCheckedOut,
		CheckInTime:      s.CheckInTime,
		CheckInLocation:  s.CheckInLocation,
		CheckOutTime:     s.CheckOutTime,
		CheckOutLocation: s.CheckOutLocation,
		WorkLocation:     string(s.WorkLocation),
		TotalHours:       s.TotalHours,
	}
	if s.WorkLocation.Valid() {
		in := s.WorkLocation == geo.WorkLocationOffice
		res.IsInOfficeRadius = &in
	}
	return res
}

// DB行に対応（スキャン用）
type sessionRow struct {
	SessionID        uint64
	UserID           string
	WorkDate         string // DATE → "YYYY-MM-DD"
	CheckInTime      sql.NullTime
	CheckInLocation  sql.NullString // JSON
	CheckOutTime     sql.NullTime
	CheckOutLocation sql.NullString // JSON
	WorkLocation     sql.NullString
	TotalHours       sql.NullFloat64
}

func (r sessionRow) toModel() (Session, error) {
	s := Session{
		SessionID:    r.SessionID,
		UserID:       r.UserID,
		WorkDate:     r.WorkDate,
		WorkLocation: geo.WorkLocation(r.WorkLocation.String),
	}
	if r.CheckInTime.Valid {
		t := r.CheckInTime.Time.UTC()
		s.CheckInTime = &t
	}
	if r.CheckOutTime.Valid {
		t := r.CheckOutTime.Time.UTC()
		s.CheckOutTime = &t
	}
	if r.TotalHours.Valid {
		h := r.TotalHours.Float64
		s.TotalHours = &h
	}
	var err error
	if s.CheckInLocation, err = decodeReading(r.CheckInLocation); err != nil {
		return Session{}, err
	}
	if s.CheckOutLocation, err = decodeReading(r.CheckOutLocation); err != nil {
		return Session{}, err
	}
	return s, nil
}

func decodeReading(ns sql.NullString) (*LocationReading, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	var r LocationReading
	if err := json.Unmarshal([]byte(ns.String), &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func encodeReading(r LocationReading) (string, error) {
	buf, err := json.Marshal(r)
	if err != nil {
		return "", err
	}
	return string(buf), nil
}
