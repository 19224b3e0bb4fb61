package api

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// profileResponse 个人主页接口的响应。
type profileResponse struct {
	ID                    uint      `json:"id"`
	Name                  string    `json:"name"`
	Email                 string    `json:"email"`
	Status                string    `json:"status"`
	RewardPoints          int       `json:"rewardPoints"`
	MemberSince           time.Time `json:"memberSince"`
	TotalListings         int64     `json:"totalListings"`
	CompletedTransactions int64     `json:"completedTransactions"`
}

// listingView 商品列表接口里单条商品的视图。
type listingView struct {
	ID          uint      `json:"id"`
	Title       string    `json:"title"`
	Category    string    `json:"category"`
	Price       float64   `json:"price"`
	ListingType string    `json:"listingType"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"createdAt"`
	ImageURL    *string   `json:"imageUrl"`
}

// handleProfile 返回当前用户的资料与统计。
//
// GET /users/profile
//
// 身份只取自中间件解析出的 token，绝不信任请求参数里的用户 ID。
func (s *Server) handleProfile(c *gin.Context) {
	userID := getUserID(c)

	row, err := s.users.Profile(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"message": "User not found"})
			return
		}
		s.logger.Error("query profile failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Server error fetching profile"})
		return
	}

	c.JSON(http.StatusOK, profileResponse{
		ID:                    row.ID,
		Name:                  row.Name,
		Email:                 row.Email,
		Status:                row.Status,
		RewardPoints:          row.RewardPoints,
		MemberSince:           row.CreatedAt,
		TotalListings:         row.TotalListings,
		CompletedTransactions: row.CompletedTransactions,
	})
}

// handleUserListings 返回当前用户的所有未下架商品，按发布时间倒序。
//
// GET /users/listings
func (s *Server) handleUserListings(c *gin.Context) {
	userID := getUserID(c)

	rows, err := s.users.Listings(c.Request.Context(), userID)
	if err != nil {
		s.logger.Error("query user listings failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Server error fetching listings"})
		return
	}

	c.JSON(http.StatusOK, toListingViews(rows))
}

func toListingViews(rows []listingRow) []listingView {
	// 初始化为空切片，保证空结果序列化成 [] 而不是 null
	views := make([]listingView, 0, len(rows))
	for _, row := range rows {
		views = append(views, listingView{
			ID:          row.ID,
			Title:       row.Title,
			Category:    row.Category,
			Price:       row.Price,
			ListingType: row.ListingType,
			Status:      row.Status,
			CreatedAt:   row.CreatedAt,
			ImageURL:    row.ImageURL,
		})
	}
	return views
}
