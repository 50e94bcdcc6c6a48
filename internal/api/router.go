package api

import (
	"context"
	"crypto/subtle"
	"errors"
	"log"
	"net/http"
	"os"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/LJTian/DailyBriefing/internal/briefing"
	"github.com/LJTian/DailyBriefing/internal/publish"
	"github.com/LJTian/DailyBriefing/internal/storage"
)

// BriefingStore 简报历史的只读接口
type BriefingStore interface {
	LatestBriefing(ctx context.Context) (*storage.Briefing, error)
	ListBriefings(ctx context.Context, limit int) ([]storage.Briefing, error)
}

// Trigger 手动触发一轮生成
type Trigger func(ctx context.Context) (*briefing.Outcome, error)

type Server struct {
	store    BriefingStore // 可为 nil：未配置数据库
	run      Trigger
	feedPath string
}

func NewServer(store BriefingStore, run Trigger, feedPath string) *Server {
	return &Server{store: store, run: run, feedPath: feedPath}
}

func (s *Server) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", s.health)
	r.GET("/feed.json", s.feed)

	v1 := r.Group("/api/v1")
	{
		v1.GET("/briefings", s.listBriefings)
		v1.GET("/briefings/latest", s.latestBriefing)
		v1.POST("/briefings/run", s.runBriefing)
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) listBriefings(c *gin.Context) {
	if s.store == nil {
		historyDisabled(c)
		return
	}

	limitStr := c.DefaultQuery("limit", "20")
	limit, err := strconv.Atoi(limitStr)
	if err != nil || limit <= 0 {
		limit = 20
	}

	items, err := s.store.ListBriefings(c.Request.Context(), limit)
	if err != nil {
		log.Printf("list briefings error: %v", err)
		internalError(c)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    "ok",
		"message": "success",
		"data":    items,
	})
}

func (s *Server) latestBriefing(c *gin.Context) {
	if s.store == nil {
		historyDisabled(c)
		return
	}

	b, err := s.store.LatestBriefing(c.Request.Context())
	if errors.Is(err, storage.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{
			"code":    "not_found",
			"message": "no briefing published yet",
		})
		return
	}
	if err != nil {
		log.Printf("latest briefing error: %v", err)
		internalError(c)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    "ok",
		"message": "success",
		"data":    b,
	})
}

// feed 优先由最新一条历史记录生成；没有数据库或尚无记录时返回本地写出的 feed 文件
func (s *Server) feed(c *gin.Context) {
	if s.store != nil {
		b, err := s.store.LatestBriefing(c.Request.Context())
		switch {
		case err == nil:
			c.JSON(http.StatusOK, []publish.FeedRecord{feedRecord(b)})
			return
		case !errors.Is(err, storage.ErrNotFound):
			log.Printf("feed: latest briefing error: %v", err)
		}
	}

	data, err := os.ReadFile(s.feedPath)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"code":    "not_found",
			"message": "feed not published yet",
		})
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", data)
}

func (s *Server) runBriefing(c *gin.Context) {
	if s.run == nil {
		c.JSON(http.StatusNotImplemented, gin.H{
			"code":    "not_implemented",
			"message": "manual run is not enabled",
		})
		return
	}

	// 客户端断开连接不应中断已经开始的发布
	out, err := s.run(context.WithoutCancel(c.Request.Context()))
	if errors.Is(err, briefing.ErrRunInProgress) {
		c.JSON(http.StatusConflict, gin.H{
			"code":    "conflict",
			"message": "a briefing run is already in progress",
		})
		return
	}
	if err != nil {
		log.Printf("manual briefing run error: %v", err)
		internalError(c)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    "ok",
		"message": "success",
		"data": gin.H{
			"objectKey": out.ObjectKey,
			"streamUrl": out.StreamURL,
			"feed":      out.Feed,
			"stats":     out.Stats,
		},
	})
}

func feedRecord(b *storage.Briefing) publish.FeedRecord {
	return publish.FeedRecord{
		UID:            b.FeedUID,
		UpdateDate:     publish.FormatUpdateDate(b.PublishedAt),
		TitleText:      b.Title,
		MainText:       "",
		StreamURL:      b.StreamURL,
		RedirectionURL: b.RedirectionURL,
	}
}

func historyDisabled(c *gin.Context) {
	c.JSON(http.StatusServiceUnavailable, gin.H{
		"code":    "history_disabled",
		"message": "briefing history is not configured",
	})
}

func internalError(c *gin.Context) {
	c.JSON(http.StatusInternalServerError, gin.H{
		"code":    "internal_error",
		"message": "internal server error",
	})
}

// 不需要认证的路径：健康检查与对外发布的订阅源
var publicPaths = map[string]bool{
	"/health":    true,
	"/feed.json": true,
}

// BasicAuth 为整个站点增加一个简单的 Basic Auth 访问密码。
// 仅当配置了 APP_BASIC_USER / APP_BASIC_PASS 时启用。
// /health 与 /feed.json 不做认证，便于健康检查和播放端拉取。
func BasicAuth(user, pass string) gin.HandlerFunc {
	const realm = "Restricted"
	uBytes := []byte(user)
	pBytes := []byte(pass)

	return func(c *gin.Context) {
		if publicPaths[c.Request.URL.Path] {
			c.Next()
			return
		}
		u, p, ok := c.Request.BasicAuth()
		if !ok ||
			subtle.ConstantTimeCompare([]byte(u), uBytes) != 1 ||
			subtle.ConstantTimeCompare([]byte(p), pBytes) != 1 {
			c.Header("WWW-Authenticate", `Basic realm="`+realm+`"`)
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		c.Next()
	}
}
