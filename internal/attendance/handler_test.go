package attendance

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"workforce-backend/internal/geo"
	"workforce-backend/internal/platform/auth"
)

// asUser は RequireAuth の代わりに sub/role を詰める
func asUser(userID, role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if userID != "" {
			c.Set(auth.CtxUserIDKey, userID)
			c.Set(auth.CtxRoleKey, role)
		}
		c.Next()
	}
}

func newTestRouter(svc *Service, userID, role string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	g := r.Group("/api/v1", asUser(userID, role))
	RegisterRoutes(g, svc, auth.RequireRole(auth.RoleAdmin))
	return r
}

func doJSON(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) Code {
	t.Helper()
	var body errorDTO
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return body.Error.Code
}

func TestHandler_CheckInAndOut(t *testing.T) {
	svc, _, clock := newTestService(t, hq)
	r := newTestRouter(svc, "u1", auth.RoleEmployee)

	w := doJSON(r, http.MethodPost, "/api/v1/attendance/check-in", `{"latitude":40.7128,"longitude":-74.006,"accuracy_meters":8}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var res SessionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, "u1", res.UserID)
	assert.Equal(t, string(geo.WorkLocationOffice), res.WorkLocation)
	assert.True(t, res.CheckedIn)

	w = doJSON(r, http.MethodPost, "/api/v1/attendance/check-in", `{"latitude":40.7128,"longitude":-74.006}`)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, CodeAlreadyCheckedIn, errorCode(t, w))

	clock.Set(at("2026-10-18", 17, 0, 0))
	w = doJSON(r, http.MethodPost, "/api/v1/attendance/check-out", `{"latitude":40.75,"longitude":-73.99}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	res = SessionResponse{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, StateCheckedOut, res.State)
	require.NotNil(t, res.TotalHours)
	assert.InDelta(t, 8.0, *res.TotalHours, 1e-9)
	// 分類はチェックイン時のまま
	assert.Equal(t, string(geo.WorkLocationOffice), res.WorkLocation)

	w = doJSON(r, http.MethodPost, "/api/v1/attendance/check-out", `{"latitude":40.75,"longitude":-73.99}`)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, CodeAlreadyCheckedOut, errorCode(t, w))
}

func TestHandler_CheckOut_NotCheckedIn(t *testing.T) {
	svc, _, _ := newTestService(t)
	r := newTestRouter(svc, "u1", auth.RoleEmployee)

	w := doJSON(r, http.MethodPost, "/api/v1/attendance/check-out", `{"latitude":1,"longitude":1}`)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, CodeNotCheckedIn, errorCode(t, w))
}

func TestHandler_CheckIn_BadRequest(t *testing.T) {
	svc, _, _ := newTestService(t, hq)
	r := newTestRouter(svc, "u1", auth.RoleEmployee)

	cases := map[string]struct {
		body string
		code Code
	}{
		"broken json":   {`{`, CodeInvalidArgument},
		"missing lat":   {`{"longitude":1}`, CodeInvalidCoordinate},
		"lat too large": {`{"latitude":91,"longitude":1}`, CodeInvalidCoordinate},
		"lng too small": {`{"latitude":1,"longitude":-181}`, CodeInvalidCoordinate},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			w := doJSON(r, http.MethodPost, "/api/v1/attendance/check-in", tc.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, tc.code, errorCode(t, w))
		})
	}

	res, err := svc.Today(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, StateNotCheckedIn, res.State)
}

func TestHandler_Unauthenticated(t *testing.T) {
	svc, _, _ := newTestService(t)
	r := newTestRouter(svc, "", "")

	for _, tc := range []struct{ method, path string }{
		{http.MethodPost, "/api/v1/attendance/check-in"},
		{http.MethodPost, "/api/v1/attendance/check-out"},
		{http.MethodGet, "/api/v1/attendance/today"},
		{http.MethodGet, "/api/v1/attendance"},
	} {
		w := doJSON(r, tc.method, tc.path, `{"latitude":1,"longitude":1}`)
		assert.Equal(t, http.StatusUnauthorized, w.Code, tc.path)
		assert.Equal(t, CodeUnauthenticated, errorCode(t, w))
	}
}

func TestHandler_Today(t *testing.T) {
	svc, _, _ := newTestService(t, hq)
	r := newTestRouter(svc, "u1", auth.RoleEmployee)

	w := doJSON(r, http.MethodGet, "/api/v1/attendance/today", "")
	require.Equal(t, http.StatusOK, w.Code)
	var res SessionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, StateNotCheckedIn, res.State)
	assert.False(t, res.CheckedIn)
	assert.Nil(t, res.IsInOfficeRadius)
	assert.Equal(t, "2026-10-18", res.WorkDate)
}

func TestHandler_List_EmployeeSeesOwnOnly(t *testing.T) {
	svc, _, _ := newTestService(t, hq)
	ctx := context.Background()
	for _, u := range []string{"u1", "u2", "u3"} {
		_, err := svc.CheckIn(ctx, u, reading(40.7128, -74.0060))
		require.NoError(t, err)
	}

	r := newTestRouter(svc, "u2", auth.RoleEmployee)
	// user_id を指定しても無視される
	w := doJSON(r, http.MethodGet, "/api/v1/attendance?user_id=u1", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "1", w.Header().Get("X-Total-Count"))

	var res ListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	require.Len(t, res.Items, 1)
	assert.Equal(t, "u2", res.Items[0].UserID)
}

func TestHandler_List_AdminFilters(t *testing.T) {
	svc, _, _ := newTestService(t, hq)
	ctx := context.Background()
	_, err := svc.CheckIn(ctx, "u1", reading(40.7128, -74.0060))
	require.NoError(t, err)
	_, err = svc.CheckIn(ctx, "u2", reading(35.6812, 139.7671))
	require.NoError(t, err)

	r := newTestRouter(svc, "boss", auth.RoleAdmin)

	w := doJSON(r, http.MethodGet, "/api/v1/attendance", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "2", w.Header().Get("X-Total-Count"))

	w = doJSON(r, http.MethodGet, "/api/v1/attendance?work_location=remote", "")
	require.Equal(t, http.StatusOK, w.Code)
	var res ListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	require.Len(t, res.Items, 1)
	assert.Equal(t, "u2", res.Items[0].UserID)

	w = doJSON(r, http.MethodGet, "/api/v1/attendance?sort=sideways", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandler_Export(t *testing.T) {
	svc, _, _ := newTestService(t, hq)
	_, err := svc.CheckIn(context.Background(), "u1", reading(40.7128, -74.0060))
	require.NoError(t, err)

	t.Run("admin", func(t *testing.T) {
		r := newTestRouter(svc, "boss", auth.RoleAdmin)
		w := doJSON(r, http.MethodGet, "/api/v1/attendance/export?from=2026-10-01&to=2026-10-31", "")
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Equal(t, "text/csv; charset=utf-8", w.Header().Get("Content-Type"))
		assert.Contains(t, w.Header().Get("Content-Disposition"), "attendance_2026-10-01_2026-10-31.csv")
		assert.True(t, strings.HasPrefix(w.Body.String(), "user_id,work_date,"))
		assert.Contains(t, w.Body.String(), "u1,2026-10-18,")
	})

	t.Run("missing range", func(t *testing.T) {
		r := newTestRouter(svc, "boss", auth.RoleAdmin)
		w := doJSON(r, http.MethodGet, "/api/v1/attendance/export", "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("employee forbidden", func(t *testing.T) {
		r := newTestRouter(svc, "u1", auth.RoleEmployee)
		w := doJSON(r, http.MethodGet, "/api/v1/attendance/export?from=2026-10-01&to=2026-10-31", "")
		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.EqualValues(t, auth.CodeForbidden, errorCode(t, w))
	})
}
