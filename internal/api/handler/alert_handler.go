package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/pumproom/internal/service"
	"github.com/d60-Lab/pumproom/pkg/middleware"
	"github.com/d60-Lab/pumproom/pkg/response"
)

type subscribeRequest struct {
	NotifyEmail bool `json:"notify_email"`
}

// ListDistilleries distillery 名称
// @Summary distillery 列表
// @Tags distilleries
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response{data=[]string}
// @Router /api/v1/distilleries [get]
func (h *Handler) ListDistilleries(c *gin.Context) {
	response.Success(c, h.distillery.Names())
}

// ListDocuments 某个 distillery 的文档（新的在前）
// @Summary 文档列表
// @Tags distilleries
// @Produce json
// @Security BearerAuth
// @Param name path string true "distillery"
// @Param page query int false "页码" default(1)
// @Param page_size query int false "每页数量" default(20)
// @Success 200 {object} response.Response{data=map[string]interface{}}
// @Failure 404 {object} response.Response
// @Router /api/v1/distilleries/{name}/documents [get]
func (h *Handler) ListDocuments(c *gin.Context) {
	page, pageSize := paging(c, 20)
	ctx := c.Request.Context()
	docs, err := h.distillery.Documents(ctx, c.Param("name"), page, pageSize)
	if errors.Is(err, service.ErrUnknownDistillery) {
		response.NotFound(c, err.Error())
		return
	}
	if err != nil {
		response.InternalError(c, err)
		return
	}
	total, err := h.distillery.DocumentTotal(ctx, c.Param("name"))
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.Success(c, gin.H{"page": page, "page_size": pageSize, "total": total, "list": docs})
}

// Subscribe 订阅 distillery 告警
// @Summary 订阅
// @Tags alerts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param name path string true "distillery"
// @Param request body subscribeRequest false "通知方式"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /api/v1/distilleries/{name}/subscription [post]
func (h *Handler) Subscribe(c *gin.Context) {
	var req subscribeRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}
	}
	err := h.alertService.Subscribe(c.Request.Context(), c.Param("name"), middleware.WatcherID(c), req.NotifyEmail)
	if errors.Is(err, service.ErrUnknownDistillery) {
		response.NotFound(c, err.Error())
		return
	}
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.Success(c, nil)
}

// Unsubscribe 取消订阅
// @Summary 取消订阅
// @Tags alerts
// @Security BearerAuth
// @Param name path string true "distillery"
// @Success 200 {object} response.Response
// @Router /api/v1/distilleries/{name}/subscription [delete]
func (h *Handler) Unsubscribe(c *gin.Context) {
	err := h.alertService.Unsubscribe(c.Request.Context(), c.Param("name"), middleware.WatcherID(c))
	if errors.Is(err, service.ErrUnknownDistillery) {
		response.NotFound(c, err.Error())
		return
	}
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.Success(c, nil)
}

// ListSubscriptions 当前 watcher 的订阅
// @Summary 我的订阅
// @Tags alerts
// @Security BearerAuth
// @Success 200 {object} response.Response{data=[]model.Subscription}
// @Router /api/v1/subscriptions [get]
func (h *Handler) ListSubscriptions(c *gin.Context) {
	list, err := h.alertService.Subscriptions(c.Request.Context(), middleware.WatcherID(c))
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.Success(c, list)
}

// ListAlerts 当前 watcher 的告警
// @Summary 我的告警
// @Tags alerts
// @Security BearerAuth
// @Param page query int false "页码" default(1)
// @Param page_size query int false "每页数量" default(20)
// @Success 200 {object} response.Response{data=map[string]interface{}}
// @Router /api/v1/alerts [get]
func (h *Handler) ListAlerts(c *gin.Context) {
	page, pageSize := paging(c, 20)
	list, total, err := h.alertService.Alerts(c.Request.Context(), middleware.WatcherID(c), page, pageSize)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.Success(c, gin.H{"page": page, "page_size": pageSize, "total": total, "list": list})
}
