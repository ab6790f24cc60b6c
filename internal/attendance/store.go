package attendance

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"workforce-backend/internal/geo"
	"workforce-backend/internal/platform/db"
)

// SessionStore: (user_id, work_date) 単位の read-modify-write はそれぞれ原子的に行う。
// 状態違反は ErrAlreadyCheckedIn / ErrNotCheckedIn / ErrAlreadyCheckedOut で返す。
type SessionStore interface {
	Get(ctx context.Context, userID, workDate string) (Session, error)
	CreateCheckIn(ctx context.Context, userID, workDate string, at time.Time, loc LocationReading, wl geo.WorkLocation) (Session, error)
	RecordCheckOut(ctx context.Context, userID, workDate string, at time.Time, loc LocationReading, totalHours float64) (Session, error)
	List(ctx context.Context, q ListQuery) ([]Session, int64, error)
}

type Store struct{ db *sql.DB }

func NewStore(conn *sql.DB) *Store { return &Store{db: conn} }

const selectSession = `
	SELECT session_id, user_id, DATE_FORMAT(work_date, '%Y-%m-%d') AS work_date,
	check_in_time, check_in_location, check_out_time, check_out_location, work_location, total_hours
	FROM attendance_sessions`

func scanSession(sc interface{ Scan(...any) error }) (Session, error) {
	var r sessionRow
	if err := sc.Scan(&r.SessionID, &r.UserID, &r.WorkDate,
		&r.CheckInTime, &r.CheckInLocation, &r.CheckOutTime, &r.CheckOutLocation,
		&r.WorkLocation, &r.TotalHours); err != nil {
		return Session{}, err
	}
	return r.toModel()
}

func (s *Store) Get(ctx context.Context, userID, workDate string) (Session, error) {
	return getSession(ctx, s.db, userID, workDate, false)
}

func getSession(ctx context.Context, q db.DBTX, userID, workDate string, forUpdate bool) (Session, error) {
	query := selectSession + `
	WHERE user_id = ? AND work_date = ?`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	sess, err := scanSession(q.QueryRowContext(ctx, query, userID, workDate))
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, ErrSessionNotFound
	}
	return sess, err
}

// CreateCheckIn: uq_user_day(user_id, work_date) への INSERT 一発で重複を弾く。
// 行はチェックインでしか作られないので、重複キー = チェックイン済み。
func (s *Store) CreateCheckIn(ctx context.Context, userID, workDate string, at time.Time, loc LocationReading, wl geo.WorkLocation) (Session, error) {
	locJSON, err := encodeReading(loc)
	if err != nil {
		return Session{}, err
	}
	const q = `
	INSERT INTO attendance_sessions
	(user_id, work_date, check_in_time, check_in_location, work_location, created_at)
	VALUES (?, ?, ?, ?, ?, UTC_TIMESTAMP(6))`
	res, err := s.db.ExecContext(ctx, q, userID, workDate, at, locJSON, string(wl))
	if err != nil {
		if db.IsDuplicateKey(err) {
			return Session{}, ErrAlreadyCheckedIn
		}
		return Session{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Session{}, fmt.Errorf("last insert id: %w", err)
	}

	checkIn := at
	return Session{
		SessionID:       uint64(id),
		UserID:          userID,
		WorkDate:        workDate,
		CheckInTime:     &checkIn,
		CheckInLocation: &loc,
		WorkLocation:    wl,
	}, nil
}

// RecordCheckOut: 行ロック (FOR UPDATE) を取って状態を再確認してから更新する
func (s *Store) RecordCheckOut(ctx context.Context, userID, workDate string, at time.Time, loc LocationReading, totalHours float64) (Session, error) {
	if totalHours < 0 {
		return Session{}, ErrInvalidInterval
	}
	locJSON, err := encodeReading(loc)
	if err != nil {
		return Session{}, err
	}

	var out Session
	err = db.RunInTx(ctx, s.db, nil, func(ctx context.Context, tx db.DBTX) error {
		cur, err := getSession(ctx, tx, userID, workDate, true)
		if err != nil {
			if errors.Is(err, ErrSessionNotFound) {
				return ErrNotCheckedIn
			}
			return err
		}
		switch cur.State() {
		case StateNotCheckedIn:
			return ErrNotCheckedIn
		case StateCheckedOut:
			return ErrAlreadyCheckedOut
		}

		const q = `
		UPDATE attendance_sessions
		SET check_out_time = ?, check_out_location = ?, total_hours = ?
		WHERE session_id = ? AND check_out_time IS NULL`
		res, err := tx.ExecContext(ctx, q, at, locJSON, totalHours, cur.SessionID)
		if err != nil {
			return err
		}
		if aff, _ := res.RowsAffected(); aff != 1 {
			return ErrAlreadyCheckedOut
		}

		checkOut := at
		hours := totalHours
		cur.CheckOutTime = &checkOut
		cur.CheckOutLocation = &loc
		cur.TotalHours = &hours
		out = cur
		return nil
	})
	if err != nil {
		return Session{}, err
	}
	return out, nil
}

// List: 条件に応じて動的WHERE + ORDER + LIMIT/OFFSET
func (s *Store) List(ctx context.Context, q ListQuery) ([]Session, int64, error) {
	var (
		buf    bytes.Buffer
		args   []any
		wheres []string
	)

	buf.WriteString(selectSession)
	if q.UserID != nil && *q.UserID != "" {
		wheres = append(wheres, "user_id = ?")
		args = append(args, *q.UserID)
	}
	if q.From != nil && *q.From != "" {
		wheres = append(wheres, "work_date >= ?")
		args = append(args, *q.From)
	}
	if q.To != nil && *q.To != "" {
		wheres = append(wheres, "work_date <= ?")
		args = append(args, *q.To)
	}
	if q.WorkLocation != nil && *q.WorkLocation != "" {
		wheres = append(wheres, "work_location = ?")
		args = append(args, *q.WorkLocation)
	}
	if len(wheres) > 0 {
		buf.WriteString(" WHERE " + strings.Join(wheres, " AND "))
	}

	switch q.Sort {
	case SortWorkDateAsc:
		buf.WriteString(" ORDER BY work_date ASC, session_id ASC")
	default:
		buf.WriteString(" ORDER BY work_date DESC, session_id DESC")
	}

	limit, offset := clampPage(q.Limit, q.Offset)
	buf.WriteString(fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset))

	// COUNT（ORDER BY より前までを再構築）
	var cntBuf bytes.Buffer
	cntBuf.WriteString("SELECT COUNT(*) FROM attendance_sessions")
	if len(wheres) > 0 {
		cntBuf.WriteString(" WHERE " + strings.Join(wheres, " AND "))
	}

	// ページと件数を同じスナップショットから取る
	out := make([]Session, 0, limit)
	var total int64
	err := db.ReadOnly(ctx, s.db, func(ctx context.Context, tx db.DBTX) error {
		rows, err := tx.QueryContext(ctx, buf.String(), args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			sess, err := scanSession(rows)
			if err != nil {
				return err
			}
			out = append(out, sess)
		}
		if err := rows.Err(); err != nil {
			return err
		}
		// 同じ接続で次のクエリを投げる前に閉じる
		rows.Close()
		return tx.QueryRowContext(ctx, cntBuf.String(), args...).Scan(&total)
	})
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// ===== helpers =====

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultPageLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

var _ SessionStore = (*Store)(nil)
