package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"campusloop/internal/model"
	"campusloop/internal/pkg/metrics"
	"campusloop/internal/pkg/notify"
	"campusloop/internal/pkg/ratelimit"

	"github.com/gin-gonic/gin"
	"github.com/go-sql-driver/mysql"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// bcrypt cost 12 对应 2^12 轮迭代，单次校验毫秒级，足以拖垮离线爆破。
const bcryptCost = 12

// 帐号枚举防护：邮箱不存在和密码错误必须返回同一条消息。
const msgInvalidCredentials = "Invalid email or password"

var emailRegex = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// UserStore 抽象用户表访问，便于在测试中替换。
type UserStore interface {
	// FindByEmail 按归一化邮箱查找用户，未找到时返回 gorm.ErrRecordNotFound。
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	// Create 插入新用户，邮箱冲突时返回存储层的唯一约束错误。
	Create(ctx context.Context, user *model.User) error
}

// Handler 提供注册与登录接口。
type Handler struct {
	store       UserStore
	jwtSecret   []byte
	tokenExpiry time.Duration
	limiter     *ratelimit.Limiter
	notifier    notify.Notifier
	logger      *slog.Logger
}

// NewHandler 创建 Auth Handler。
func NewHandler(store UserStore, jwtSecret string, tokenExpiry time.Duration, limiter *ratelimit.Limiter, notifier notify.Notifier, logger *slog.Logger) *Handler {
	if tokenExpiry <= 0 {
		tokenExpiry = 7 * 24 * time.Hour
	}
	return &Handler{
		store:       store,
		jwtSecret:   []byte(jwtSecret),
		tokenExpiry: tokenExpiry,
		limiter:     limiter,
		notifier:    notifier,
		logger:      logger,
	}
}

type signupRequest struct {
	FullName        string `json:"fullName"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// userView 是返回给前端的用户视图，密码哈希永远不出现在这里。
type userView struct {
	ID           uint      `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Status       string    `json:"status"`
	RewardPoints int       `json:"rewardPoints"`
	CreatedAt    time.Time `json:"createdAt"`
}

type authResponse struct {
	Message string   `json:"message"`
	Token   string   `json:"token"`
	User    userView `json:"user"`
}

type customClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
}

// Signup 创建新用户。
//
// 校验按固定顺序执行，每一步失败都返回独立的 400 提示；
// 邮箱重复返回 409。并发注册同一邮箱时由唯一索引兜底，
// 插入触发唯一约束错误同样映射为 409。
func (h *Handler) Signup(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid request body"})
		return
	}

	if req.FullName == "" || req.Email == "" || req.Password == "" || req.ConfirmPassword == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "All fields are required"})
		return
	}
	if !emailRegex.MatchString(strings.TrimSpace(req.Email)) {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid email address"})
		return
	}
	if len(req.Password) < 6 {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Password must be at least 6 characters"})
		return
	}
	if req.Password != req.ConfirmPassword {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Passwords do not match"})
		return
	}

	email := normalizeEmail(req.Email)
	ctx := c.Request.Context()

	_, err := h.store.FindByEmail(ctx, email)
	if err == nil {
		c.JSON(http.StatusConflict, gin.H{"message": "An account with this email already exists"})
		return
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		h.logger.Error("signup query failed", slog.String("email", email), slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Server error during signup"})
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcryptCost)
	if err != nil {
		h.logger.Error("hash password failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Server error during signup"})
		return
	}

	user := model.User{
		Name:     strings.TrimSpace(req.FullName),
		Email:    email,
		Password: string(hash),
		Status:   model.UserStatusActive,
	}
	if err := h.store.Create(ctx, &user); err != nil {
		if isDuplicateKey(err) {
			c.JSON(http.StatusConflict, gin.H{"message": "An account with this email already exists"})
			return
		}
		h.logger.Error("create user failed", slog.String("email", email), slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Server error during signup"})
		return
	}

	token, err := h.issueToken(&user)
	if err != nil {
		h.logger.Error("sign token failed", slog.String("email", email), slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Server error during signup"})
		return
	}

	metrics.SignupTotal.Inc()
	h.logger.Info("user registered", slog.String("email", email))

	if h.notifier != nil {
		// 欢迎邮件走异步，SMTP 抖动不拖慢注册响应
		go func(to, name string) {
			if err := h.notifier.SendWelcome(context.Background(), to, name); err != nil {
				h.logger.Warn("send welcome email failed", slog.String("email", to), slog.String("error", err.Error()))
			}
		}(user.Email, user.Name)
	}

	c.JSON(http.StatusCreated, authResponse{
		Message: "Account created successfully",
		Token:   token,
		User:    formatUser(&user),
	})
}

// Login 校验用户并返回 JWT。
//
// 查无此人和密码错误返回同一条 401 消息，防止撞库时用响应差异
// 枚举已注册邮箱。BANNED / SUSPENDED 的提示只在密码验证通过之后
// 才返回：账号状态本身也是不该免费泄露的信息。
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid request body"})
		return
	}
	if req.Email == "" || req.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Email and password are required"})
		return
	}

	ctx := c.Request.Context()

	if h.limiter != nil {
		allowed, _ := h.limiter.Allow(ctx, c.ClientIP())
		if !allowed {
			metrics.LoginThrottledTotal.Inc()
			c.JSON(http.StatusTooManyRequests, gin.H{"message": "Too many login attempts, try again later"})
			return
		}
	}

	email := normalizeEmail(req.Email)

	user, err := h.store.FindByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			h.logger.Error("login query failed", slog.String("email", email), slog.String("error", err.Error()))
			c.JSON(http.StatusInternalServerError, gin.H{"message": "Server error during login"})
			return
		}
		metrics.LoginFailureTotal.Inc()
		c.JSON(http.StatusUnauthorized, gin.H{"message": msgInvalidCredentials})
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		metrics.LoginFailureTotal.Inc()
		c.JSON(http.StatusUnauthorized, gin.H{"message": msgInvalidCredentials})
		return
	}

	switch user.Status {
	case model.UserStatusBanned:
		metrics.LoginFailureTotal.Inc()
		c.JSON(http.StatusForbidden, gin.H{"message": "Your account has been banned. Contact support to appeal."})
		return
	case model.UserStatusSuspended:
		metrics.LoginFailureTotal.Inc()
		c.JSON(http.StatusForbidden, gin.H{"message": "Your account is temporarily suspended."})
		return
	}

	token, err := h.issueToken(user)
	if err != nil {
		h.logger.Error("sign token failed", slog.String("email", email), slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Server error during login"})
		return
	}

	metrics.LoginSuccessTotal.Inc()
	h.logger.Info("user logged in", slog.String("email", email))

	c.JSON(http.StatusOK, authResponse{
		Message: "Login successful",
		Token:   token,
		User:    formatUser(user),
	})
}

func (h *Handler) issueToken(user *model.User) (string, error) {
	now := time.Now()
	claims := customClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(user.ID), 10),
			ExpiresAt: jwt.NewNumericDate(now.Add(h.tokenExpiry)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		Email: user.Email,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(h.jwtSecret)
}

func formatUser(user *model.User) userView {
	return userView{
		ID:           user.ID,
		Name:         user.Name,
		Email:        user.Email,
		Status:       user.Status,
		RewardPoints: user.RewardPoints,
		CreatedAt:    user.CreatedAt,
	}
}

func normalizeEmail(email string) string {
	return strings.TrimSpace(strings.ToLower(email))
}

// isDuplicateKey 识别 MySQL 唯一约束冲突（1062）。
func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var mysqlErr *mysql.MySQLError
	return errors.As(err, &mysqlErr) && mysqlErr.Number == 1062
}
