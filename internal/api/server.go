package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"campusloop/internal/api/auth"
	"campusloop/internal/api/middleware"
	"campusloop/internal/config"
	"campusloop/internal/model"
	"campusloop/internal/pkg/imagestore"
	"campusloop/internal/pkg/metrics"
	"campusloop/internal/pkg/notify"
	"campusloop/internal/pkg/ratelimit"
	"campusloop/internal/pkg/unread"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

// Server 封装了 API 服务所需的依赖和路由处理。
//
// 它持有数据库连接、Redis 客户端、图片存储以及 Gin 路由引擎。
// 所有请求级状态都在请求内解决，Server 自身跨请求不可变。
type Server struct {
	cfg    *config.Config
	logger *slog.Logger
	db     *gorm.DB
	rdb    *redis.Client
	router *gin.Engine
	auth   *auth.Handler

	users    UserStore
	products ProductStore
	chats    ChatStore
	images   *imagestore.Store
	tracker  *unread.Tracker
}

// NewServer 初始化 API 服务器。
//
// 它负责：
// 1. 连接 MySQL 数据库并执行自动迁移
// 2. 连接 Redis（登录限流、会话未读标记）
// 3. 初始化图片存储与 Gin 路由引擎
func NewServer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Server, error) {
	db, err := gorm.Open(mysql.Open(cfg.MySQL.DSN), &gorm.Config{
		Logger:         gormLogger.Default.LogMode(gormLogger.Silent), // 关闭GORM调试日志
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&model.User{}, &model.Product{}, &model.ProductImage{}, &model.Chat{}, &model.Message{}); err != nil {
		return nil, err
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       0,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	images, err := imagestore.New(cfg.Upload.Dir, cfg.Upload.MaxImageSize, cfg.Upload.ThumbWidth)
	if err != nil {
		return nil, err
	}

	metrics.InitMetrics()

	users := dbUserStore{db: db}
	loginLimiter := ratelimit.NewRedisLimiter(rdb, logger, "campusloop:ratelimit:login:",
		cfg.Security.LoginRateLimit, cfg.Security.LoginRateBurst)
	mailer := notify.NewEmailNotifier(&cfg.Email, logger)

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.Metrics())
	r.Use(middleware.CORS(cfg.App.FrontendOrigin))

	s := &Server{
		cfg:      cfg,
		logger:   logger,
		db:       db,
		rdb:      rdb,
		router:   r,
		auth:     auth.NewHandler(users, cfg.Security.JWTSecret, cfg.Security.TokenExpiry, loginLimiter, mailer, logger),
		users:    users,
		products: dbProductStore{db: db},
		chats:    dbChatStore{db: db},
		images:   images,
		tracker:  unread.NewTracker(rdb, 0),
	}
	s.registerRoutes()
	return s, nil
}

// Router 返回 HTTP 路由处理器。
func (s *Server) Router() http.Handler {
	return s.router
}

// Close 关闭数据库与 Redis 连接。
func (s *Server) Close() error {
	var firstErr error
	if s.rdb != nil {
		if err := s.rdb.Close(); err != nil {
			firstErr = err
		}
	}
	if s.db != nil {
		sqlDB, err := s.db.DB()
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
		} else {
			if closeErr := sqlDB.Close(); closeErr != nil {
				if firstErr == nil {
					firstErr = closeErr
				}
			}
		}
	}
	return firstErr
}

// registerRoutes 注册所有的 API 路由。
func (s *Server) registerRoutes() {
	// Prometheus metrics 端点
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	s.router.GET("/healthz", s.handleHealthz)

	s.router.POST("/auth/signup", s.auth.Signup)
	s.router.POST("/auth/login", s.auth.Login)

	// 公开的商品浏览接口
	s.router.GET("/products", s.handleListProducts)
	s.router.GET("/products/:id", s.handleGetProduct)
	s.router.GET("/products/:id/image", s.handleProductImage)
	s.router.GET("/images/:name", s.handleServeImage)

	authed := s.router.Group("/")
	authed.Use(middleware.AuthMiddleware(s.cfg.Security.JWTSecret))
	authed.GET("/users/profile", s.handleProfile)
	authed.GET("/users/listings", s.handleUserListings)
	authed.POST("/listings", s.handleCreateListing)
	authed.PATCH("/products/:id/status", s.handleUpdateProductStatus)
	authed.DELETE("/products/:id", s.handleDeleteProduct)
	authed.GET("/chats", s.handleListChats)
	authed.POST("/chats", s.handleCreateChat)
	authed.GET("/chats/:id/messages", s.handleListMessages)
	authed.POST("/chats/:id/messages", s.handleSendMessage)

	s.router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"message": "Route not found"})
	})
}

func (s *Server) handleHealthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if s.db == nil || s.rdb == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error"})
		return
	}

	var one int
	if err := s.db.WithContext(ctx).Raw("SELECT 1").Scan(&one).Error; err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error"})
		return
	}
	if err := s.rdb.Ping(ctx).Err(); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func getUserID(c *gin.Context) uint {
	v, ok := c.Get("userID")
	if !ok {
		return 0
	}
	if id, ok := v.(uint); ok {
		return id
	}
	return 0
}
