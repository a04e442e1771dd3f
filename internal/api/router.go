package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/LJTian/JuventudHub/internal/ingest"
	"github.com/LJTian/JuventudHub/internal/logger"
	"github.com/LJTian/JuventudHub/internal/processor"
	"github.com/LJTian/JuventudHub/internal/storage"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Loader 只读访问文章集合
type Loader interface {
	Load(ctx context.Context) ([]processor.Article, error)
}

// ReportSource 提供最近一轮采集报告，由 scheduler.Scheduler 实现
type ReportSource interface {
	LastReport() (*ingest.Report, error)
}

type Server struct {
	store   Loader
	reports ReportSource
	filter  *processor.Filter
	loc     *time.Location
	log     logger.Logger
	now     func() time.Time
}

func NewServer(store Loader, reports ReportSource, filter *processor.Filter, loc *time.Location, log logger.Logger) *Server {
	if loc == nil {
		loc = time.Local
	}
	if log == nil {
		log = logger.NewNop()
	}
	if filter == nil {
		filter = processor.NewFilter(processor.DefaultTerms)
	}
	return &Server{
		store:   store,
		reports: reports,
		filter:  filter,
		loc:     loc,
		log:     log,
		now:     time.Now,
	}
}

func (s *Server) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", s.health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/api/v1")
	{
		v1.GET("/articles", s.listArticles)
		v1.GET("/stats", s.stats)
		v1.GET("/filters", s.filters)
		v1.GET("/report", s.lastReport)
		v1.GET("/export", s.export)
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) listArticles(c *gin.Context) {
	items, q, ok := s.query(c)
	if !ok {
		return
	}
	total := len(items)
	if len(items) > q.Limit {
		items = items[:q.Limit]
	}
	c.JSON(http.StatusOK, gin.H{
		"code":    "ok",
		"message": "success",
		"total":   total,
		"data":    items,
	})
}

func (s *Server) stats(c *gin.Context) {
	items, _, ok := s.query(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"code":    "ok",
		"message": "success",
		"data":    computeStats(items, s.filter, s.now().In(s.loc)),
	})
}

func (s *Server) filters(c *gin.Context) {
	items, ok := s.load(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"code":    "ok",
		"message": "success",
		"data":    computeFilters(items, s.filter),
	})
}

func (s *Server) lastReport(c *gin.Context) {
	if s.reports == nil {
		c.JSON(http.StatusNotFound, gin.H{"code": "not_found", "message": "no scheduler attached"})
		return
	}
	r, err := s.reports.LastReport()
	if r == nil {
		c.JSON(http.StatusNotFound, gin.H{"code": "not_found", "message": "no run finished yet"})
		return
	}
	resp := gin.H{"code": "ok", "message": "success", "data": r}
	if err != nil {
		resp["error"] = err.Error()
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) export(c *gin.Context) {
	items, _, ok := s.query(c)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := storage.WriteWorkbook(&buf, items); err != nil {
		s.log.Error("export workbook failed", logger.Err(err))
		internalError(c)
		return
	}
	name := fmt.Sprintf("noticias-%s.xlsx", s.now().In(s.loc).Format("20060102"))
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

// query 读取全部文章并按请求参数筛选；失败时已写好响应
func (s *Server) query(c *gin.Context) ([]processor.Article, Query, bool) {
	q, err := parseQuery(c, s.loc)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "bad_request", "message": err.Error()})
		return nil, Query{}, false
	}
	items, ok := s.load(c)
	if !ok {
		return nil, Query{}, false
	}
	return q.Apply(items), q, true
}

func (s *Server) load(c *gin.Context) ([]processor.Article, bool) {
	items, err := s.store.Load(c.Request.Context())
	if err != nil {
		s.log.Error("load articles failed", logger.Err(err))
		if errors.Is(err, storage.ErrCorrupt) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"code": "store_unreadable", "message": "stored articles unreadable"})
			return nil, false
		}
		internalError(c)
		return nil, false
	}
	return items, true
}

func internalError(c *gin.Context) {
	c.JSON(http.StatusInternalServerError, gin.H{
		"code":    "internal_error",
		"message": "internal server error",
	})
}
