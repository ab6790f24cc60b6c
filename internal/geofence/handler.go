package geofence

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type Handler struct{ svc *Service }

// admin には作成系に掛けるロールゲートを渡す（auth.RequireRole("admin") 等）
func RegisterRoutes(r gin.IRoutes, svc *Service, admin ...gin.HandlerFunc) {
	h := &Handler{svc: svc}
	r.GET("/office-locations", h.List)
	r.POST("/office-locations", append(admin, h.Create)...)
}

// Create godoc
// @Summary  オフィス拠点（ジオフェンス）登録
// @Tags     office-locations
// @Accept   json
// @Produce  json
// @Param    body body CreateRegionRequest true "region"
// @Success  201 {object} RegionResponse
// @Router   /office-locations [post]
func (h *Handler) Create(c *gin.Context) {
	var req CreateRegionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, newErrDTO(ErrInvalid("invalid json or missing required fields")))
		return
	}

	res, err := h.svc.Create(c.Request.Context(), req)
	if err != nil {
		c.JSON(toHTTPStatus(err), newErrDTO(err))
		return
	}
	c.Header("Location", "/office-locations/"+res.ID)
	c.JSON(http.StatusCreated, res)
}

// List godoc
// @Summary  オフィス拠点一覧
// @Tags     office-locations
// @Produce  json
// @Success  200 {array} RegionResponse
// @Router   /office-locations [get]
func (h *Handler) List(c *gin.Context) {
	res, err := h.svc.ListResponses(c.Request.Context())
	if err != nil {
		c.JSON(toHTTPStatus(err), newErrDTO(err))
		return
	}
	c.JSON(http.StatusOK, res)
}
