package handler

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/d60-Lab/pumproom/internal/repository"
	"github.com/d60-Lab/pumproom/internal/service"
	"github.com/d60-Lab/pumproom/internal/stream"
	"github.com/d60-Lab/pumproom/pkg/middleware"
	"github.com/d60-Lab/pumproom/pkg/response"
)

// Deps 处理器依赖
type Deps struct {
	DB         *gorm.DB
	Auth       *service.AuthService
	Reservoirs *service.ReservoirService
	Search     *service.SearchService
	Streams    *stream.Controller
	Stamps     repository.StampRepository
	Distillery *service.Distillery
	Alerts     *service.AlertService
	Graph      service.GraphService
	Replicator *service.EdgeReplicator
	Fanout     *service.AlertFanout
}

// Handler HTTP 处理器集合
type Handler struct {
	db           *gorm.DB
	authService  *service.AuthService
	resService   *service.ReservoirService
	search       *service.SearchService
	streams      *stream.Controller
	stamps       repository.StampRepository
	distillery   *service.Distillery
	alertService *service.AlertService
	graphService service.GraphService
	replicator   *service.EdgeReplicator
	fanout       *service.AlertFanout
}

func New(d Deps) *Handler {
	return &Handler{
		db:           d.DB,
		authService:  d.Auth,
		resService:   d.Reservoirs,
		search:       d.Search,
		streams:      d.Streams,
		stamps:       d.Stamps,
		distillery:   d.Distillery,
		alertService: d.Alerts,
		graphService: d.Graph,
		replicator:   d.Replicator,
		fanout:       d.Fanout,
	}
}

func paging(c *gin.Context, defSize int) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", strconv.Itoa(defSize)))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 500 {
		pageSize = defSize
	}
	return page, pageSize
}

func currentWatcher(c *gin.Context) *string {
	id := middleware.WatcherID(c)
	if id == "" {
		return nil
	}
	return &id
}

// notFoundOr 把仓储的 ErrNotFound 映射成 404
func notFoundOr(c *gin.Context, err error, msg string) {
	if errors.Is(err, repository.ErrNotFound) {
		response.NotFound(c, msg)
		return
	}
	response.InternalError(c, err)
}
