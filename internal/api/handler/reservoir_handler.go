package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/pumproom/pkg/response"
)

type toggleRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

// ListReservoirs 水库列表
// @Summary 水库列表
// @Tags reservoirs
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response{data=[]model.Reservoir}
// @Router /api/v1/reservoirs [get]
func (h *Handler) ListReservoirs(c *gin.Context) {
	list, err := h.resService.List(c.Request.Context())
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.Success(c, list)
}

// UpdateReservoir 启停水库
// @Summary 启用 / 停用水库
// @Tags reservoirs
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param name path string true "水库名"
// @Param request body toggleRequest true "启停"
// @Success 200 {object} response.Response{data=model.Reservoir}
// @Failure 404 {object} response.Response
// @Router /api/v1/reservoirs/{name} [patch]
func (h *Handler) UpdateReservoir(c *gin.Context) {
	var req toggleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	r, err := h.resService.SetEnabled(c.Request.Context(), c.Param("name"), *req.Enabled)
	if err != nil {
		notFoundOr(c, err, "reservoir not found")
		return
	}
	response.Success(c, r)
}
