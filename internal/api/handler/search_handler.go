package handler

import (
	"errors"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/pumproom/internal/query"
	"github.com/d60-Lab/pumproom/internal/repository"
	"github.com/d60-Lab/pumproom/internal/service"
	"github.com/d60-Lab/pumproom/internal/stream"
	"github.com/d60-Lab/pumproom/pkg/response"
)

type searchRequest struct {
	query.ReservoirQuery
	Distill bool `json:"distill"`
}

type streamRequest struct {
	Reservoir string               `json:"reservoir" binding:"required"`
	Query     query.ReservoirQuery `json:"query"`
}

// Search 并发查询所有启用的水库
// @Summary 扇出搜索
// @Description 每个启用的水库一个调用；单个水库失败体现在对应的 cargo 上
// @Tags search
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body searchRequest true "查询"
// @Success 200 {object} response.Response{data=service.SearchResult}
// @Failure 400 {object} response.Response
// @Router /api/v1/search [post]
func (h *Handler) Search(c *gin.Context) {
	var req searchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	res, err := h.search.Search(c.Request.Context(), req.ReservoirQuery, currentWatcher(c), req.Distill)
	var invalid *service.ErrInvalidQuery
	if errors.As(err, &invalid) {
		response.BadRequest(c, err.Error())
		return
	}
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.Success(c, res)
}

// StartStream 启动流式查询
// @Summary 启动流式查询
// @Description 同一水库已有运行中的流时返回 409
// @Tags streams
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body streamRequest true "水库与查询"
// @Success 202 {object} response.Response
// @Failure 404 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /api/v1/streams [post]
func (h *Handler) StartStream(c *gin.Context) {
	var req streamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if err := req.Query.Validate(); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	started, err := h.streams.Start(c.Request.Context(), req.Reservoir, req.Query, currentWatcher(c))
	switch {
	case errors.Is(err, stream.ErrReservoirNotFound):
		response.NotFound(c, err.Error())
		return
	case errors.Is(err, stream.ErrReservoirDisabled), errors.Is(err, stream.ErrStreamUnsupported), errors.Is(err, query.ErrEmpty):
		response.BadRequest(c, err.Error())
		return
	case err != nil:
		response.InternalError(c, err)
		return
	}
	if !started {
		response.Conflict(c, "stream already running", gin.H{"started": false})
		return
	}
	response.Accepted(c, gin.H{"started": true})
}

// ListStreams 流状态
// @Summary 流状态列表
// @Tags streams
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response{data=[]model.Stream}
// @Router /api/v1/streams [get]
func (h *Handler) ListStreams(c *gin.Context) {
	list, err := h.streams.List(c.Request.Context())
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.Success(c, list)
}

// ListInvoices 外部调用记录
// @Summary 调用记录
// @Tags invoices
// @Produce json
// @Security BearerAuth
// @Param reservoir query string false "水库名"
// @Param status query int false "状态码"
// @Param since query string false "RFC3339 起始时间"
// @Param page query int false "页码" default(1)
// @Param page_size query int false "每页数量" default(50)
// @Success 200 {object} response.Response{data=map[string]interface{}}
// @Router /api/v1/invoices [get]
func (h *Handler) ListInvoices(c *gin.Context) {
	page, pageSize := paging(c, 50)
	f := repository.InvoiceFilter{
		Reservoir: c.Query("reservoir"),
		Offset:    (page - 1) * pageSize,
		Limit:     pageSize,
	}
	if s := c.Query("status"); s != "" {
		status, err := strconv.Atoi(s)
		if err != nil {
			response.BadRequest(c, "status must be an integer")
			return
		}
		f.Status = status
	}
	if s := c.Query("since"); s != "" {
		since, err := time.Parse(time.RFC3339, s)
		if err != nil {
			response.BadRequest(c, "since must be RFC3339")
			return
		}
		f.Since = &since
	}
	list, err := h.stamps.ListInvoices(c.Request.Context(), f)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.Success(c, gin.H{"page": page, "page_size": pageSize, "list": list})
}
