package attendance

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"workforce-backend/internal/geo"
)

var sessionCols = []string{
	"session_id", "user_id", "work_date",
	"check_in_time", "check_in_location", "check_out_time", "check_out_location", "work_location", "total_hours",
}

func setupMockStore(t *testing.T) (sqlmock.Sqlmock, *Store) {
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return mock, NewStore(conn)
}

func TestStore_Get(t *testing.T) {
	mock, store := setupMockStore(t)
	in := at("2026-10-18", 9, 0, 0)

	rows := sqlmock.NewRows(sessionCols).
		AddRow(7, "u1", "2026-10-18", in, `{"latitude":40.7128,"longitude":-74.006,"accuracy_meters":5,"captured_at":"2026-10-18T09:00:00Z"}`, nil, nil, "office", nil)
	mock.ExpectQuery(`FROM attendance_sessions\s+WHERE user_id = \? AND work_date = \?`).
		WithArgs("u1", "2026-10-18").
		WillReturnRows(rows)

	got, err := store.Get(context.Background(), "u1", "2026-10-18")
	require.NoError(t, err)
	assert.EqualValues(t, 7, got.SessionID)
	assert.Equal(t, StateCheckedIn, got.State())
	assert.Equal(t, geo.WorkLocationOffice, got.WorkLocation)
	require.NotNil(t, got.CheckInLocation)
	assert.Equal(t, 40.7128, got.CheckInLocation.Latitude)
	assert.Nil(t, got.CheckOutLocation)
	assert.Nil(t, got.TotalHours)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Get_NotFound(t *testing.T) {
	mock, store := setupMockStore(t)

	mock.ExpectQuery(`FROM attendance_sessions`).
		WithArgs("u1", "2026-10-18").
		WillReturnRows(sqlmock.NewRows(sessionCols))

	_, err := store.Get(context.Background(), "u1", "2026-10-18")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_CreateCheckIn(t *testing.T) {
	mock, store := setupMockStore(t)
	in := at("2026-10-18", 9, 0, 0)

	mock.ExpectExec(`INSERT INTO attendance_sessions`).
		WithArgs("u1", "2026-10-18", in, sqlmock.AnyArg(), "remote").
		WillReturnResult(sqlmock.NewResult(42, 1))

	got, err := store.CreateCheckIn(context.Background(), "u1", "2026-10-18", in, LocationReading{Latitude: 1, Longitude: 2}, geo.WorkLocationRemote)
	require.NoError(t, err)
	assert.EqualValues(t, 42, got.SessionID)
	assert.Equal(t, in, *got.CheckInTime)
	assert.Equal(t, StateCheckedIn, got.State())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_CreateCheckIn_Duplicate(t *testing.T) {
	mock, store := setupMockStore(t)

	mock.ExpectExec(`INSERT INTO attendance_sessions`).
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'u1-2026-10-18' for key 'uq_user_day'"})

	_, err := store.CreateCheckIn(context.Background(), "u1", "2026-10-18", at("2026-10-18", 9, 0, 0), LocationReading{}, geo.WorkLocationOffice)
	assert.ErrorIs(t, err, ErrAlreadyCheckedIn)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_CreateCheckIn_OtherError(t *testing.T) {
	mock, store := setupMockStore(t)
	boom := errors.New("connection reset")

	mock.ExpectExec(`INSERT INTO attendance_sessions`).WillReturnError(boom)

	_, err := store.CreateCheckIn(context.Background(), "u1", "2026-10-18", at("2026-10-18", 9, 0, 0), LocationReading{}, geo.WorkLocationOffice)
	assert.ErrorIs(t, err, boom)
	assert.False(t, errors.Is(err, ErrAlreadyCheckedIn))
}

func TestStore_CreateCheckIn_LastInsertIDError(t *testing.T) {
	mock, store := setupMockStore(t)
	boom := errors.New("driver does not support LastInsertId")

	mock.ExpectExec(`INSERT INTO attendance_sessions`).
		WillReturnResult(sqlmock.NewErrorResult(boom))

	got, err := store.CreateCheckIn(context.Background(), "u1", "2026-10-18", at("2026-10-18", 9, 0, 0), LocationReading{}, geo.WorkLocationOffice)
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, got.SessionID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_RecordCheckOut(t *testing.T) {
	mock, store := setupMockStore(t)
	in := at("2026-10-18", 9, 0, 0)
	out := at("2026-10-18", 17, 30, 0)

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM attendance_sessions\s+WHERE user_id = \? AND work_date = \? FOR UPDATE`).
		WithArgs("u1", "2026-10-18").
		WillReturnRows(sqlmock.NewRows(sessionCols).
			AddRow(7, "u1", "2026-10-18", in, nil, nil, nil, "office", nil))
	mock.ExpectExec(`UPDATE attendance_sessions\s+SET check_out_time = \?, check_out_location = \?, total_hours = \?\s+WHERE session_id = \? AND check_out_time IS NULL`).
		WithArgs(out, sqlmock.AnyArg(), 8.5, 7).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	got, err := store.RecordCheckOut(context.Background(), "u1", "2026-10-18", out, LocationReading{Latitude: 1, Longitude: 2}, 8.5)
	require.NoError(t, err)
	assert.Equal(t, StateCheckedOut, got.State())
	require.NotNil(t, got.TotalHours)
	assert.Equal(t, 8.5, *got.TotalHours)
	assert.Equal(t, geo.WorkLocationOffice, got.WorkLocation)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_RecordCheckOut_NotCheckedIn(t *testing.T) {
	mock, store := setupMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).WillReturnRows(sqlmock.NewRows(sessionCols))
	mock.ExpectRollback()

	_, err := store.RecordCheckOut(context.Background(), "u1", "2026-10-18", at("2026-10-18", 17, 0, 0), LocationReading{}, 8)
	assert.ErrorIs(t, err, ErrNotCheckedIn)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_RecordCheckOut_AlreadyCheckedOut(t *testing.T) {
	mock, store := setupMockStore(t)
	in := at("2026-10-18", 9, 0, 0)
	out := at("2026-10-18", 17, 0, 0)

	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows(sessionCols).
			AddRow(7, "u1", "2026-10-18", in, nil, out, nil, "office", 8.0))
	mock.ExpectRollback()

	_, err := store.RecordCheckOut(context.Background(), "u1", "2026-10-18", out, LocationReading{}, 8)
	assert.ErrorIs(t, err, ErrAlreadyCheckedOut)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_RecordCheckOut_LostUpdate(t *testing.T) {
	mock, store := setupMockStore(t)
	in := at("2026-10-18", 9, 0, 0)

	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows(sessionCols).
			AddRow(7, "u1", "2026-10-18", in, nil, nil, nil, "office", nil))
	mock.ExpectExec(`UPDATE attendance_sessions`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	_, err := store.RecordCheckOut(context.Background(), "u1", "2026-10-18", at("2026-10-18", 17, 0, 0), LocationReading{}, 8)
	assert.ErrorIs(t, err, ErrAlreadyCheckedOut)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_RecordCheckOut_NegativeHours(t *testing.T) {
	mock, store := setupMockStore(t)

	_, err := store.RecordCheckOut(context.Background(), "u1", "2026-10-18", at("2026-10-18", 8, 0, 0), LocationReading{}, -1)
	assert.ErrorIs(t, err, ErrInvalidInterval)
	// DB には触れない
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_List(t *testing.T) {
	mock, store := setupMockStore(t)
	in := at("2026-10-17", 9, 0, 0)

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM attendance_sessions WHERE user_id = \? AND work_date >= \? AND work_date <= \? ORDER BY work_date ASC, session_id ASC LIMIT 10 OFFSET 5`).
		WithArgs("u1", "2026-10-01", "2026-10-31").
		WillReturnRows(sqlmock.NewRows(sessionCols).
			AddRow(3, "u1", "2026-10-17", in, nil, in.Add(8*time.Hour), nil, "remote", 8.0))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM attendance_sessions WHERE user_id = \? AND work_date >= \? AND work_date <= \?`).
		WithArgs("u1", "2026-10-01", "2026-10-31").
		WillReturnRows(sqlmock.NewRows([]string{"COUNT(*)"}).AddRow(6))
	mock.ExpectCommit()

	got, total, err := store.List(context.Background(), ListQuery{
		UserID: ptr("u1"),
		From:   ptr("2026-10-01"),
		To:     ptr("2026-10-31"),
		Limit:  10,
		Offset: 5,
		Sort:   SortWorkDateAsc,
	})
	require.NoError(t, err)
	assert.EqualValues(t, 6, total)
	require.Len(t, got, 1)
	assert.Equal(t, StateCheckedOut, got[0].State())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_List_NoFilterClampsLimit(t *testing.T) {
	mock, store := setupMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM attendance_sessions ORDER BY work_date DESC, session_id DESC LIMIT 200 OFFSET 0`).
		WillReturnRows(sqlmock.NewRows(sessionCols))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM attendance_sessions$`).
		WillReturnRows(sqlmock.NewRows([]string{"COUNT(*)"}).AddRow(0))
	mock.ExpectCommit()

	got, total, err := store.List(context.Background(), ListQuery{Limit: 10000, Offset: -3})
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Zero(t, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_List_QueryErrorRollsBack(t *testing.T) {
	mock, store := setupMockStore(t)
	boom := errors.New("lost connection")

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM attendance_sessions`).WillReturnError(boom)
	mock.ExpectRollback()

	_, _, err := store.List(context.Background(), ListQuery{})
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}
