package attendance

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"workforce-backend/internal/geo"
	"workforce-backend/internal/geofence"
)

// ===== インターフェース群 =====

type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// RegionLister はジオフェンス一覧の読み取り口（geofence.Service が実装）
type RegionLister interface {
	List(ctx context.Context) ([]geofence.Region, error)
}

// ===== Service本体 =====

type Service struct {
	store   SessionStore
	regions RegionLister
	clock   Clock
	loc     *time.Location // work_date の区切り
	log     *zap.Logger
}

func NewService(store SessionStore, regions RegionLister, loc *time.Location, log *zap.Logger) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		store:   store,
		regions: regions,
		clock:   realClock{},
		loc:     loc,
		log:     log,
	}
}

// WithClock はテスト等で時計を差し替える
func (s *Service) WithClock(c Clock) *Service {
	s.clock = c
	return s
}

// POST /attendance/check-in
func (s *Service) CheckIn(ctx context.Context, userID string, in CheckRequest) (SessionResponse, error) {
	now := s.now()
	reading, err := s.readingFrom(userID, in, now)
	if err != nil {
		return SessionResponse{}, err
	}
	workDate := s.workDate(now)

	// 既にチェックイン済みなら分類前に弾く（最終判定はストアの UNIQUE キー）
	cur, err := s.store.Get(ctx, userID, workDate)
	switch {
	case err == nil:
		if cur.State() != StateNotCheckedIn {
			return SessionResponse{}, ErrAlreadyCheckedIn
		}
	case errors.Is(err, ErrSessionNotFound):
	default:
		return SessionResponse{}, s.upstream("load session", err)
	}

	regions, err := s.regions.List(ctx)
	if err != nil {
		return SessionResponse{}, s.upstream("list office locations", err)
	}
	wl := geo.Classify(reading.Coordinate(), regions)

	sess, err := s.store.CreateCheckIn(ctx, userID, workDate, now, reading, wl)
	if err != nil {
		return SessionResponse{}, s.storeErr("create check-in", err)
	}

	s.log.Info("checked in",
		zap.String("user_id", userID),
		zap.String("work_date", workDate),
		zap.String("work_location", string(wl)),
		zap.Int("regions", len(regions)),
	)
	return sess.toDTO(), nil
}

// POST /attendance/check-out
func (s *Service) CheckOut(ctx context.Context, userID string, in CheckRequest) (SessionResponse, error) {
	now := s.now()
	reading, err := s.readingFrom(userID, in, now)
	if err != nil {
		return SessionResponse{}, err
	}
	workDate := s.workDate(now)

	cur, err := s.store.Get(ctx, userID, workDate)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return SessionResponse{}, ErrNotCheckedIn
		}
		return SessionResponse{}, s.upstream("load session", err)
	}
	switch cur.State() {
	case StateNotCheckedIn:
		return SessionResponse{}, ErrNotCheckedIn
	case StateCheckedOut:
		return SessionResponse{}, ErrAlreadyCheckedOut
	}

	hours, err := TotalHours(*cur.CheckInTime, now)
	if err != nil {
		s.log.Warn("check-out precedes check-in",
			zap.String("user_id", userID),
			zap.Time("check_in_time", *cur.CheckInTime),
			zap.Time("check_out_time", now),
		)
		return SessionResponse{}, err
	}

	sess, err := s.store.RecordCheckOut(ctx, userID, workDate, now, reading, hours)
	if err != nil {
		return SessionResponse{}, s.storeErr("record check-out", err)
	}

	s.log.Info("checked out",
		zap.String("user_id", userID),
		zap.String("work_date", workDate),
		zap.Float64("total_hours", hours),
	)
	return sess.toDTO(), nil
}

// GET /attendance/today: 未チェックインでも失敗しない
func (s *Service) Today(ctx context.Context, userID string) (SessionResponse, error) {
	if strings.TrimSpace(userID) == "" {
		return SessionResponse{}, ErrInvalid("user_id is required")
	}
	workDate := s.workDate(s.now())

	sess, err := s.store.Get(ctx, userID, workDate)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return Session{UserID: userID, WorkDate: workDate}.toDTO(), nil
		}
		return SessionResponse{}, s.upstream("load session", err)
	}
	return sess.toDTO(), nil
}

// GET /attendance
func (s *Service) List(ctx context.Context, q ListQuery) (ListResponse, error) {
	if err := normalizeListQuery(&q); err != nil {
		return ListResponse{}, err
	}

	rows, total, err := s.store.List(ctx, q)
	if err != nil {
		return ListResponse{}, s.upstream("list sessions", err)
	}
	out := make([]SessionResponse, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toDTO())
	}
	return ListResponse{Items: out, Total: total}, nil
}

// TotalHours は (checkOut - checkIn) を時間単位で返す。負なら ErrInvalidInterval。
func TotalHours(checkIn, checkOut time.Time) (float64, error) {
	d := checkOut.Sub(checkIn)
	if d < 0 {
		return 0, ErrInvalidInterval
	}
	return d.Hours(), nil
}

// ===== helpers =====

func (s *Service) now() time.Time {
	// DATETIME(6) に合わせてマイクロ秒で丸める
	return s.clock.Now().UTC().Truncate(time.Microsecond)
}

func (s *Service) workDate(now time.Time) string {
	return now.In(s.loc).Format(DateLayout)
}

func (s *Service) readingFrom(userID string, in CheckRequest, now time.Time) (LocationReading, error) {
	if strings.TrimSpace(userID) == "" {
		return LocationReading{}, ErrInvalid("user_id is required")
	}
	if in.Latitude == nil || in.Longitude == nil {
		return LocationReading{}, ErrInvalidCoordinate
	}
	r := LocationReading{
		Latitude:       *in.Latitude,
		Longitude:      *in.Longitude,
		AccuracyMeters: in.AccuracyMeters,
		CapturedAt:     now,
	}
	if err := r.Coordinate().Validate(); err != nil {
		return LocationReading{}, ErrInvalidCoordinate
	}
	if in.AccuracyMeters < 0 {
		return LocationReading{}, ErrInvalid("accuracy_meters must be >= 0")
	}
	if in.CapturedAt != nil && !in.CapturedAt.IsZero() {
		r.CapturedAt = in.CapturedAt.UTC()
	}
	if in.Address != nil {
		if addr := strings.TrimSpace(*in.Address); addr != "" {
			r.Address = &addr
		}
	}
	return r, nil
}

// storeErr: 状態違反はそのまま、それ以外は一時障害として返す
func (s *Service) storeErr(op string, err error) error {
	var api *APIError
	if errors.As(err, &api) {
		return api
	}
	return s.upstream(op, err)
}

func (s *Service) upstream(op string, err error) error {
	s.log.Error(op, zap.Error(err))
	return ErrUnavailable(op + ": upstream unavailable")
}

func normalizeListQuery(q *ListQuery) error {
	if q.Sort == "" {
		q.Sort = DefaultSort
	}
	if q.Sort != SortWorkDateAsc && q.Sort != SortWorkDateDesc {
		return ErrInvalid("sort must be work_date_desc or work_date_asc")
	}
	q.Limit, q.Offset = clampPage(q.Limit, q.Offset)

	var from, to time.Time
	var err error
	if q.From != nil && *q.From != "" {
		if from, err = time.ParseInLocation(DateLayout, *q.From, time.UTC); err != nil {
			return ErrInvalid("from must be YYYY-MM-DD")
		}
	}
	if q.To != nil && *q.To != "" {
		if to, err = time.ParseInLocation(DateLayout, *q.To, time.UTC); err != nil {
			return ErrInvalid("to must be YYYY-MM-DD")
		}
	}
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		return ErrInvalid("to must be >= from")
	}
	if q.WorkLocation != nil && *q.WorkLocation != "" && !geo.WorkLocation(*q.WorkLocation).Valid() {
		return ErrInvalid("work_location must be office or remote")
	}
	return nil
}
