package attendance

import (
	"context"
	"sort"
	"sync"
	"time"

	"workforce-backend/internal/geo"
)

type sessionKey struct {
	userID   string
	workDate string
}

// MemStore はプロセス内の SessionStore（attendance.store: memory）。
// キーごとのロックで直列化するので、別ユーザ・別日の操作は待たされない。
// ロックはチェックアウトで捨てるので、残るのは出勤中のキーの分だけ。
type MemStore struct {
	mu       sync.Mutex // sessions / locks / nextID を保護
	sessions map[sessionKey]Session
	locks    map[sessionKey]*sync.Mutex
	nextID   uint64
}

func NewMemStore() *MemStore {
	return &MemStore{
		sessions: make(map[sessionKey]Session),
		locks:    make(map[sessionKey]*sync.Mutex),
	}
}

func (m *MemStore) lock(k sessionKey) func() {
	m.mu.Lock()
	l, ok := m.locks[k]
	if !ok {
		l = &sync.Mutex{}
		m.locks[k] = l
	}
	m.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// forget はチェックアウト済みキーのロックを捨てる。
// チェックアウト後の状態は変わらないので、別の mutex で入ってきても load の結果で弾かれる。
func (m *MemStore) forget(k sessionKey) {
	m.mu.Lock()
	delete(m.locks, k)
	m.mu.Unlock()
}

func (m *MemStore) load(k sessionKey) (Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[k]
	return s, ok
}

func (m *MemStore) Get(ctx context.Context, userID, workDate string) (Session, error) {
	if err := ctx.Err(); err != nil {
		return Session{}, err
	}
	s, ok := m.load(sessionKey{userID, workDate})
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	return s, nil
}

func (m *MemStore) CreateCheckIn(ctx context.Context, userID, workDate string, at time.Time, loc LocationReading, wl geo.WorkLocation) (Session, error) {
	if err := ctx.Err(); err != nil {
		return Session{}, err
	}
	k := sessionKey{userID, workDate}
	if _, ok := m.load(k); ok {
		return Session{}, ErrAlreadyCheckedIn
	}
	unlock := m.lock(k)
	defer unlock()

	if cur, ok := m.load(k); ok && cur.CheckInTime != nil {
		if cur.CheckOutTime != nil {
			m.forget(k)
		}
		return Session{}, ErrAlreadyCheckedIn
	}

	checkIn := at
	m.mu.Lock()
	m.nextID++
	s := Session{
		SessionID:       m.nextID,
		UserID:          userID,
		WorkDate:        workDate,
		CheckInTime:     &checkIn,
		CheckInLocation: &loc,
		WorkLocation:    wl,
	}
	m.sessions[k] = s
	m.mu.Unlock()
	return s, nil
}

func (m *MemStore) RecordCheckOut(ctx context.Context, userID, workDate string, at time.Time, loc LocationReading, totalHours float64) (Session, error) {
	if err := ctx.Err(); err != nil {
		return Session{}, err
	}
	if totalHours < 0 {
		return Session{}, ErrInvalidInterval
	}
	k := sessionKey{userID, workDate}
	// セッションが無いキーにはロックを作らない
	if _, ok := m.load(k); !ok {
		return Session{}, ErrNotCheckedIn
	}
	unlock := m.lock(k)
	defer unlock()

	cur, ok := m.load(k)
	if !ok || cur.CheckInTime == nil {
		return Session{}, ErrNotCheckedIn
	}
	if cur.CheckOutTime != nil {
		m.forget(k)
		return Session{}, ErrAlreadyCheckedOut
	}

	checkOut := at
	hours := totalHours
	cur.CheckOutTime = &checkOut
	cur.CheckOutLocation = &loc
	cur.TotalHours = &hours

	m.mu.Lock()
	m.sessions[k] = cur
	delete(m.locks, k)
	m.mu.Unlock()
	return cur, nil
}

func (m *MemStore) List(ctx context.Context, q ListQuery) ([]Session, int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}

	m.mu.Lock()
	matched := make([]Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		if q.UserID != nil && *q.UserID != "" && s.UserID != *q.UserID {
			continue
		}
		if q.From != nil && *q.From != "" && s.WorkDate < *q.From {
			continue
		}
		if q.To != nil && *q.To != "" && s.WorkDate > *q.To {
			continue
		}
		if q.WorkLocation != nil && *q.WorkLocation != "" && string(s.WorkLocation) != *q.WorkLocation {
			continue
		}
		matched = append(matched, s)
	}
	m.mu.Unlock()

	// YYYY-MM-DD は文字列比較で日付順になる
	asc := q.Sort == SortWorkDateAsc
	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if a.WorkDate != b.WorkDate {
			return (a.WorkDate < b.WorkDate) == asc
		}
		return (a.SessionID < b.SessionID) == asc
	})

	total := int64(len(matched))
	limit, offset := clampPage(q.Limit, q.Offset)
	if offset >= len(matched) {
		return []Session{}, total, nil
	}
	end := offset + limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end], total, nil
}

var _ SessionStore = (*MemStore)(nil)
