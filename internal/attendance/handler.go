package attendance

import (
	"bytes"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"workforce-backend/internal/platform/auth"
)

type Handler struct{ svc *Service }

// admin はエクスポート等の管理者向けルートに掛けるロールゲート
func RegisterRoutes(r gin.IRoutes, svc *Service, admin ...gin.HandlerFunc) {
	h := &Handler{svc: svc}
	r.POST("/attendance/check-in", h.CheckIn)
	r.POST("/attendance/check-out", h.CheckOut)
	r.GET("/attendance/today", h.Today)
	r.GET("/attendance", h.List)
	r.GET("/attendance/export", append(admin, h.Export)...)
}

// ---------- handlers ----------

// CheckIn godoc
// @Summary  出勤打刻（位置からオフィス/リモートを判定）
// @Tags     attendance
// @Accept   json
// @Produce  json
// @Param    body body CheckRequest true "location reading"
// @Success  201 {object} SessionResponse
// @Failure  409 {object} errorDTO
// @Router   /attendance/check-in [post]
func (h *Handler) CheckIn(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var req CheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody(CodeInvalidArgument, "invalid json"))
		return
	}

	res, err := h.svc.CheckIn(c.Request.Context(), userID, req)
	if err != nil {
		c.JSON(toHTTPStatus(err), errorFromErr(err))
		return
	}
	c.JSON(http.StatusCreated, res)
}

// CheckOut godoc
// @Summary  退勤打刻
// @Tags     attendance
// @Accept   json
// @Produce  json
// @Param    body body CheckRequest true "location reading"
// @Success  200 {object} SessionResponse
// @Failure  409 {object} errorDTO
// @Router   /attendance/check-out [post]
func (h *Handler) CheckOut(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var req CheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody(CodeInvalidArgument, "invalid json"))
		return
	}

	res, err := h.svc.CheckOut(c.Request.Context(), userID, req)
	if err != nil {
		c.JSON(toHTTPStatus(err), errorFromErr(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

// Today godoc
// @Summary  本日の打刻状況
// @Tags     attendance
// @Produce  json
// @Success  200 {object} SessionResponse
// @Router   /attendance/today [get]
func (h *Handler) Today(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	res, err := h.svc.Today(c.Request.Context(), userID)
	if err != nil {
		c.JSON(toHTTPStatus(err), errorFromErr(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

// List godoc
// @Summary  打刻履歴（管理者以外は自分の分のみ）
// @Tags     attendance
// @Produce  json
// @Param    user_id       query string false "user id (admin only)"
// @Param    from          query string false "YYYY-MM-DD"
// @Param    to            query string false "YYYY-MM-DD"
// @Param    work_location query string false "office|remote"
// @Param    limit         query int    false "limit"
// @Param    offset        query int    false "offset"
// @Param    sort          query string false "work_date_desc|work_date_asc"
// @Success  200 {object} ListResponse
// @Router   /attendance [get]
func (h *Handler) List(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	q := ListQuery{
		From:         optQuery(c, "from"),
		To:           optQuery(c, "to"),
		WorkLocation: optQuery(c, "work_location"),
		Limit:        parseIntDefault(c.Query("limit"), DefaultPageLimit),
		Offset:       parseIntDefault(c.Query("offset"), 0),
		Sort:         c.DefaultQuery("sort", DefaultSort),
	}
	if auth.IsAdmin(c) {
		q.UserID = optQuery(c, "user_id")
	} else {
		q.UserID = &userID
	}

	res, err := h.svc.List(c.Request.Context(), q)
	if err != nil {
		c.JSON(toHTTPStatus(err), errorFromErr(err))
		return
	}
	c.Header("X-Total-Count", strconv.FormatInt(res.Total, 10))
	c.JSON(http.StatusOK, res)
}

// Export godoc
// @Summary  打刻履歴 CSV 出力
// @Tags     attendance
// @Produce  text/csv
// @Param    from     query string true  "YYYY-MM-DD"
// @Param    to       query string true  "YYYY-MM-DD"
// @Param    user_id  query string false "user id"
// @Param    encoding query string false "utf8|sjis"
// @Success  200 {string} string "csv"
// @Router   /attendance/export [get]
func (h *Handler) Export(c *gin.Context) {
	in := ExportQuery{
		From:     c.Query("from"),
		To:       c.Query("to"),
		UserID:   optQuery(c, "user_id"),
		Encoding: c.DefaultQuery("encoding", EncodingUTF8),
	}

	// 途中で失敗したら JSON エラーを返したいので一旦バッファに書く
	var buf bytes.Buffer
	if err := h.svc.Export(c.Request.Context(), &buf, in); err != nil {
		c.JSON(toHTTPStatus(err), errorFromErr(err))
		return
	}

	contentType := "text/csv; charset=utf-8"
	if in.Encoding == EncodingShiftJIS {
		contentType = "text/csv; charset=Shift_JIS"
	}
	c.Header("Content-Disposition", `attachment; filename="attendance_`+in.From+`_`+in.To+`.csv"`)
	c.Data(http.StatusOK, contentType, buf.Bytes())
}

// ---------- helpers ----------

func currentUser(c *gin.Context) (string, bool) {
	userID, _, ok := auth.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorBody(CodeUnauthenticated, "missing user"))
		return "", false
	}
	return userID, true
}

func optQuery(c *gin.Context, key string) *string {
	v := c.Query(key)
	if v == "" {
		return nil
	}
	return &v
}

func parseIntDefault(s string, d int) int {
	if s == "" {
		return d
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return d
	}
	return v
}
