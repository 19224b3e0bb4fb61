package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"campusloop/internal/model"
	"campusloop/internal/pkg/imagestore"
	"campusloop/internal/pkg/metrics"
	"campusloop/internal/pkg/sanitize"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// sellerView 商品详情里附带的卖家信息。
type sellerView struct {
	ID    uint   `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// productView 商品详情接口的响应。
type productView struct {
	ID          uint       `json:"id"`
	Title       string     `json:"title"`
	Category    string     `json:"category"`
	Price       float64    `json:"price"`
	Description string     `json:"description"`
	ListingType string     `json:"listingType"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"createdAt"`
	Seller      sellerView `json:"seller"`
	ImageURL    *string    `json:"imageUrl"`
}

// handleListProducts 公开的商品浏览接口。
//
// GET /products?category=&q=&limit=20&offset=0
//
// 只返回未下架且仍可交易（在售/已预定）的商品。
func (s *Server) handleListProducts(c *gin.Context) {
	filter := ProductFilter{
		Category: c.Query("category"),
		Query:    c.Query("q"),
		Limit:    parseQueryInt(c, "limit", 20),
		Offset:   parseQueryInt(c, "offset", 0),
	}

	rows, err := s.products.List(c.Request.Context(), filter)
	if err != nil {
		s.logger.Error("list products failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Server error fetching products"})
		return
	}

	c.JSON(http.StatusOK, toListingViews(rows))
}

// handleGetProduct 公开的商品详情接口。
//
// GET /products/:id
func (s *Server) handleGetProduct(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	product, err := s.products.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"message": "Product not found"})
			return
		}
		s.logger.Error("get product failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Server error fetching product"})
		return
	}

	view := productView{
		ID:          product.ID,
		Title:       product.Title,
		Category:    product.Category,
		Price:       product.Price,
		Description: product.Description,
		ListingType: product.ListingType,
		Status:      product.Status,
		CreatedAt:   product.CreatedAt,
		Seller: sellerView{
			ID:    product.Seller.ID,
			Name:  product.Seller.Name,
			Email: product.Seller.Email,
		},
	}
	if len(product.Images) > 0 {
		view.ImageURL = &product.Images[0].ImageURL
	}

	c.JSON(http.StatusOK, view)
}

// handleCreateListing 处理发布商品的请求（multipart 表单）。
//
// POST /listings
//
// 表单字段: title, category, price, description, listingType（可选）,
// image（必填，JPEG/PNG，≤ 配置上限）。描述在入库前做 HTML 清洗。
func (s *Server) handleCreateListing(c *gin.Context) {
	userID := getUserID(c)

	title := sanitize.Text(c.PostForm("title"))
	category := sanitize.Text(c.PostForm("category"))
	priceStr := c.PostForm("price")
	description := sanitize.Text(c.PostForm("description"))
	if title == "" || category == "" || priceStr == "" || description == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "All fields are required"})
		return
	}

	price, err := strconv.ParseFloat(priceStr, 64)
	if err != nil || price < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid price"})
		return
	}

	listingType := c.DefaultPostForm("listingType", model.ListingTypeSell)
	switch listingType {
	case model.ListingTypeSell, model.ListingTypeDonate, model.ListingTypeRent:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid listing type"})
		return
	}

	fileHeader, err := c.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Image is required"})
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		s.logger.Error("open upload failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Server error creating listing"})
		return
	}
	defer file.Close()

	saved, err := s.images.Save(file)
	if err != nil {
		switch {
		case errors.Is(err, imagestore.ErrTooLarge):
			c.JSON(http.StatusBadRequest, gin.H{"message": "Image size should be less than 5MB"})
		case errors.Is(err, imagestore.ErrUnsupportedType):
			c.JSON(http.StatusBadRequest, gin.H{"message": "Only JPEG and PNG images are allowed"})
		default:
			s.logger.Error("save image failed", slog.String("error", err.Error()))
			c.JSON(http.StatusInternalServerError, gin.H{"message": "Server error creating listing"})
		}
		return
	}

	product := model.Product{
		SellerID:         userID,
		Title:            title,
		Category:         category,
		Price:            price,
		Description:      description,
		ListingType:      listingType,
		Status:           model.ProductStatusAvailable,
		ModerationStatus: model.ModerationActive,
	}
	image := model.ProductImage{
		ImageURL:  "/images/" + saved.ThumbName,
		StoreName: saved.Name,
	}

	if err := s.products.Create(c.Request.Context(), &product, &image); err != nil {
		s.logger.Error("create listing failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Server error creating listing"})
		return
	}

	metrics.ListingsCreatedTotal.Inc()
	s.logger.Info("listing created",
		slog.Uint64("product_id", uint64(product.ID)),
		slog.Uint64("seller_id", uint64(userID)),
	)

	c.JSON(http.StatusCreated, gin.H{"id": product.ID})
}

// updateProductStatusRequest 更新交易状态的请求。
type updateProductStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// handleUpdateProductStatus 卖家更新自己商品的交易状态。
//
// PATCH /products/:id/status
func (s *Server) handleUpdateProductStatus(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	userID := getUserID(c)

	var req updateProductStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Status is required"})
		return
	}
	switch req.Status {
	case model.ProductStatusAvailable, model.ProductStatusReserved,
		model.ProductStatusSold, model.ProductStatusDonated:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid status"})
		return
	}

	updated, err := s.products.UpdateStatus(c.Request.Context(), id, userID, req.Status)
	if err != nil {
		s.logger.Error("update product status failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Server error updating product"})
		return
	}
	if !updated {
		c.JSON(http.StatusNotFound, gin.H{"message": "Product not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": req.Status})
}

// handleDeleteProduct 卖家下架自己的商品（软删除）。
//
// DELETE /products/:id
func (s *Server) handleDeleteProduct(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	userID := getUserID(c)

	deleted, err := s.products.SoftDelete(c.Request.Context(), id, userID)
	if err != nil {
		s.logger.Error("delete product failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Server error deleting product"})
		return
	}
	if !deleted {
		c.JSON(http.StatusNotFound, gin.H{"message": "Product not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": id})
}

// handleProductImage 返回商品首图的原图文件。
//
// GET /products/:id/image
func (s *Server) handleProductImage(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	product, err := s.products.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"message": "Product not found"})
			return
		}
		s.logger.Error("get product failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Server error fetching product"})
		return
	}
	if len(product.Images) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"message": "Product has no image"})
		return
	}

	path, err := s.images.Resolve(product.Images[0].StoreName)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"message": "Image not found"})
		return
	}
	c.File(path)
}

// handleServeImage 按文件名返回已存储的图片（列表页缩略图走这里）。
//
// GET /images/:name
func (s *Server) handleServeImage(c *gin.Context) {
	path, err := s.images.Resolve(c.Param("name"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"message": "Image not found"})
		return
	}
	c.File(path)
}

// parseIDParam 解析路径中的 :id，非法时直接响应 400。
func parseIDParam(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid id"})
		return 0, false
	}
	return uint(id), true
}

// parseQueryInt 解析查询参数中的整数值，缺失或非法时返回默认值。
func parseQueryInt(c *gin.Context, key string, def int) int {
	val := c.Query(key)
	if val == "" {
		return def
	}
	iv, err := strconv.Atoi(val)
	if err != nil {
		return def
	}
	return iv
}
