package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/pumproom/internal/ingest"
	"github.com/d60-Lab/pumproom/internal/service"
	"github.com/d60-Lab/pumproom/pkg/response"
)

const maxImportBytes = 64 << 20

type edgeRequest struct {
	SourceID string `json:"source_id" binding:"required"`
	TargetID string `json:"target_id" binding:"required"`
	Relation string `json:"relation" binding:"required,max=32"`
}

// Link 建立有向边（异步写入边索引）
// @Summary 新建边
// @Tags 事件图
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body edgeRequest true "边"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /api/v1/graph/edges [post]
func (h *Handler) Link(c *gin.Context) {
	var req edgeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	err := h.graphService.Link(c.Request.Context(), req.SourceID, req.TargetID, req.Relation)
	switch {
	case errors.Is(err, service.ErrSelfLoop):
		response.BadRequest(c, err.Error())
		return
	case errors.Is(err, service.ErrNodeNotFound):
		response.NotFound(c, err.Error())
		return
	case err != nil:
		response.InternalError(c, err)
		return
	}
	response.Success(c, nil)
}

// Unlink 删除边
// @Summary 删除边
// @Tags 事件图
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body edgeRequest true "边"
// @Success 200 {object} response.Response
// @Router /api/v1/graph/edges [delete]
func (h *Handler) Unlink(c *gin.Context) {
	var req edgeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if err := h.graphService.Unlink(c.Request.Context(), req.SourceID, req.TargetID, req.Relation); err != nil {
		response.InternalError(c, err)
		return
	}
	response.Success(c, nil)
}

// GetNode 节点详情
// @Summary 节点详情
// @Tags 事件图
// @Security BearerAuth
// @Param id path string true "节点ID"
// @Success 200 {object} response.Response{data=model.Node}
// @Failure 404 {object} response.Response
// @Router /api/v1/graph/nodes/{id} [get]
func (h *Handler) GetNode(c *gin.Context) {
	n, err := h.graphService.GetNode(c.Request.Context(), c.Param("id"))
	if errors.Is(err, service.ErrNodeNotFound) {
		response.NotFound(c, err.Error())
		return
	}
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.Success(c, n)
}

// ListOutgoing 查询节点出边
// @Summary 出边列表
// @Tags 事件图
// @Security BearerAuth
// @Param id path string true "节点ID"
// @Param page query int false "页码" default(1)
// @Param page_size query int false "每页数量" default(10)
// @Success 200 {object} response.Response{data=map[string]interface{}}
// @Router /api/v1/graph/nodes/{id}/outgoing [get]
func (h *Handler) ListOutgoing(c *gin.Context) {
	page, pageSize := paging(c, 10)
	list, err := h.graphService.ListOutgoing(c.Request.Context(), c.Param("id"), page, pageSize)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.Success(c, gin.H{"page": page, "page_size": pageSize, "list": list})
}

// ListIncoming 查询节点入边（来自冗余表）
// @Summary 入边列表
// @Tags 事件图
// @Security BearerAuth
// @Param id path string true "节点ID"
// @Param page query int false "页码" default(1)
// @Param page_size query int false "每页数量" default(10)
// @Success 200 {object} response.Response{data=map[string]interface{}}
// @Router /api/v1/graph/nodes/{id}/incoming [get]
func (h *Handler) ListIncoming(c *gin.Context) {
	page, pageSize := paging(c, 10)
	list, err := h.graphService.ListIncoming(c.Request.Context(), c.Param("id"), page, pageSize)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.Success(c, gin.H{"page": page, "page_size": pageSize, "list": list})
}

// Import 导入告警报告 / 溯源数据
// @Summary 导入事件图
// @Tags 事件图
// @Accept plain
// @Produce json
// @Security BearerAuth
// @Param format path string true "fireeye-ax | darpa-tc"
// @Success 200 {object} response.Response{data=service.ImportResult}
// @Failure 400 {object} response.Response
// @Router /api/v1/graph/import/{format} [post]
func (h *Handler) Import(c *gin.Context) {
	body := http.MaxBytesReader(c.Writer, c.Request.Body, maxImportBytes)
	res, err := h.graphService.Import(c.Request.Context(), c.Param("format"), body)
	if errors.Is(err, ingest.ErrUnknownFormat) || errors.Is(err, service.ErrMalformedImport) {
		response.BadRequest(c, err.Error())
		return
	}
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.Success(c, res)
}
