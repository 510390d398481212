// file: internal/transport/http/router/router.go
package router

import (
	"net/http"
	"slices"
	"time"

	"DataAgents/internal/core/port"
	"DataAgents/internal/observe"
	"DataAgents/internal/service"
	"DataAgents/internal/transport/http/middleware"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
)

// Dependencies 结构体用于将所有依赖项注入到路由器中
type Dependencies struct {
	Router *service.Router
	// Tokens 为 nil 时关闭认证，所有接口公开
	Tokens *service.TokenService
	// Limiter 为 nil 时不做按 IP 限速
	Limiter     *middleware.IPRateLimiter
	CORSOrigins []string
	Version     string
}

// New 创建并配置一个全新的、基于 Gin 的 HTTP 路由器 (V1 版本)
func New(deps Dependencies) http.Handler {
	router := gin.New()
	startedAt := time.Now()

	// --- 配置全局中间件 ---
	router.Use(gin.Recovery())
	router.Use(observe.PrometheusMiddleware())
	router.Use(gzip.Gzip(gzip.DefaultCompression))
	router.Use(cors.New(corsConfig(deps.CORSOrigins)))
	if deps.Limiter != nil {
		router.Use(deps.Limiter.Middleware())
	}
	router.Use(middleware.ErrorHandlingMiddleware())

	router.GET("/metrics", gin.WrapH(observe.Handler()))

	apiV1 := router.Group("/api/v1")
	{
		apiV1.GET("/system/status", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"data": gin.H{
				"status":         "ok",
				"version":        deps.Version,
				"adapters":       deps.Router.Len(),
				"auth_enabled":   deps.Tokens != nil,
				"uptime_seconds": int64(time.Since(startedAt).Seconds()),
			}})
		})

		if deps.Tokens != nil {
			apiV1.POST("/auth/token", handleIssueToken(deps.Tokens))
		}

		protected := apiV1.Group("")
		if deps.Tokens != nil {
			protected.Use(middleware.JWTAuth(deps.Tokens))
		}
		{
			protected.GET("/adapters", handleListAdapters(deps.Router))
			protected.GET("/adapters/:name/discover", handleDiscover(deps.Router))
			protected.GET("/adapters/:name/schema", handleSchema(deps.Router))
			protected.GET("/discover", handleDiscoverAll(deps.Router))
			protected.POST("/query", handleQuery(deps.Router))
		}
	}

	return router
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", "Accept"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || slices.Contains(origins, "*") {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = origins
	cfg.AllowCredentials = true
	return cfg
}

// --- 处理器 ---

type adapterInfo struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

func handleListAdapters(r *service.Router) gin.HandlerFunc {
	return func(c *gin.Context) {
		names := r.Names()
		list := make([]adapterInfo, 0, len(names))
		for _, name := range names {
			a, err := r.Get(name)
			if err != nil {
				// 列表与获取之间被注销，跳过即可
				continue
			}
			list = append(list, adapterInfo{Name: name, Type: a.Type()})
		}
		c.JSON(http.StatusOK, gin.H{"data": list})
	}
}

func handleDiscover(r *service.Router) gin.HandlerFunc {
	return func(c *gin.Context) {
		d, err := r.Discover(c.Request.Context(), c.Param("name"))
		if err != nil {
			_ = c.Error(err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": d})
	}
}

func handleSchema(r *service.Router) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, err := r.Schema(c.Request.Context(), c.Param("name"))
		if err != nil {
			_ = c.Error(err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": s})
	}
}

// outcomeBody 是扇出结果中单个适配器的表示，Result 与 Error 恰有一个存在
type outcomeBody struct {
	Result *port.ResultSet `json:"result,omitempty"`
	Error  gin.H           `json:"error,omitempty"`
}

func errorBody(err error) gin.H {
	status, body := middleware.StatusFor(err)
	body["status"] = status
	return body
}

func handleDiscoverAll(r *service.Router) gin.HandlerFunc {
	return func(c *gin.Context) {
		outcomes := r.DiscoverAll(c.Request.Context())
		out := make(map[string]gin.H, len(outcomes))
		for name, o := range outcomes {
			if o.Err != nil {
				out[name] = gin.H{"error": errorBody(o.Err)}
				continue
			}
			out[name] = gin.H{"discovery": o.Discovery}
		}
		c.JSON(http.StatusOK, gin.H{"data": out})
	}
}

type queryRequest struct {
	// Adapter 为空时查询全部适配器
	Adapter string `json:"adapter"`
	Query   string `json:"query"`
}

func handleQuery(r *service.Router) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req queryRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			_ = c.Error(err)
			return
		}

		if req.Adapter != "" {
			res, err := r.Query(c.Request.Context(), req.Adapter, req.Query)
			if err != nil {
				_ = c.Error(err)
				return
			}
			c.JSON(http.StatusOK, gin.H{"data": res})
			return
		}

		outcomes := r.QueryAll(c.Request.Context(), req.Query)
		out := make(map[string]outcomeBody, len(outcomes))
		for name, o := range outcomes {
			if o.Err != nil {
				out[name] = outcomeBody{Error: errorBody(o.Err)}
				continue
			}
			out[name] = outcomeBody{Result: o.Result}
		}
		c.JSON(http.StatusOK, gin.H{"data": out})
	}
}

type tokenRequest struct {
	ClientID     string `json:"client_id" binding:"required"`
	ClientSecret string `json:"client_secret" binding:"required"`
}

func handleIssueToken(tokens *service.TokenService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req tokenRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			_ = c.Error(err)
			return
		}
		token, expiresAt, err := tokens.Issue(req.ClientID, req.ClientSecret)
		if err != nil {
			_ = c.Error(err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": gin.H{
			"token":      token,
			"token_type": "Bearer",
			"expires_at": expiresAt.UTC().Format(time.RFC3339),
		}})
	}
}
