package api

import (
	"context"
	"errors"
	"time"

	"campusloop/internal/model"

	"gorm.io/gorm"
)

// profileRow 个人主页聚合查询的结果行。
type profileRow struct {
	ID                    uint      `gorm:"column:id"`
	Name                  string    `gorm:"column:name"`
	Email                 string    `gorm:"column:email"`
	Status                string    `gorm:"column:status"`
	RewardPoints          int       `gorm:"column:reward_points"`
	CreatedAt             time.Time `gorm:"column:created_at"`
	TotalListings         int64     `gorm:"column:total_listings"`
	CompletedTransactions int64     `gorm:"column:completed_transactions"`
}

// listingRow 商品列表查询的结果行，image_url 取 ID 最小的那张图。
type listingRow struct {
	ID          uint      `gorm:"column:id"`
	SellerID    uint      `gorm:"column:seller_id"`
	Title       string    `gorm:"column:title"`
	Category    string    `gorm:"column:category"`
	Price       float64   `gorm:"column:price"`
	ListingType string    `gorm:"column:listing_type"`
	Status      string    `gorm:"column:status"`
	CreatedAt   time.Time `gorm:"column:created_at"`
	ImageURL    *string   `gorm:"column:image_url"`
}

// chatRow 会话列表查询的结果行。
type chatRow struct {
	ID           uint       `gorm:"column:id"`
	ProductID    uint       `gorm:"column:product_id"`
	ProductTitle string     `gorm:"column:product_title"`
	BuyerID      uint       `gorm:"column:buyer_id"`
	BuyerName    string     `gorm:"column:buyer_name"`
	BuyerEmail   string     `gorm:"column:buyer_email"`
	SellerID     uint       `gorm:"column:seller_id"`
	SellerName   string     `gorm:"column:seller_name"`
	SellerEmail  string     `gorm:"column:seller_email"`
	LastText     *string    `gorm:"column:last_text"`
	LastSentAt   *time.Time `gorm:"column:last_sent_at"`
}

// firstImageSelect 以子查询取商品首图（ID 最小，保证结果稳定）。
const firstImageSelect = `(SELECT image_url FROM product_images
 WHERE product_images.product_id = products.id
 ORDER BY product_images.id ASC LIMIT 1) AS image_url`

// UserStore 用户表访问（auth 包的 UserStore 是它的子集）。
type UserStore interface {
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	Create(ctx context.Context, user *model.User) error
	Profile(ctx context.Context, userID uint) (*profileRow, error)
	Listings(ctx context.Context, userID uint) ([]listingRow, error)
}

// ProductFilter 公开商品列表的筛选条件。
type ProductFilter struct {
	Category string
	Query    string
	Limit    int
	Offset   int
}

// ProductStore 商品表访问。
type ProductStore interface {
	List(ctx context.Context, filter ProductFilter) ([]listingRow, error)
	// Get 返回未下架的商品（含卖家和按 ID 升序的图片），未找到返回 gorm.ErrRecordNotFound。
	Get(ctx context.Context, id uint) (*model.Product, error)
	// Create 在一个事务里写入商品行和首图行。
	Create(ctx context.Context, product *model.Product, image *model.ProductImage) error
	// SoftDelete 把卖家自己的商品标记为 REMOVED，返回是否真的改到了行。
	SoftDelete(ctx context.Context, id, sellerID uint) (bool, error)
	// UpdateStatus 更新交易状态；首次置为 DONATED 时给卖家加积分。
	UpdateStatus(ctx context.Context, id, sellerID uint, status string) (bool, error)
}

// ChatStore 会话与消息访问。
type ChatStore interface {
	ListForUser(ctx context.Context, userID uint) ([]chatRow, error)
	// Get 返回会话基本信息，未找到返回 gorm.ErrRecordNotFound。
	Get(ctx context.Context, id uint) (*model.Chat, error)
	// FindOrCreate 查找或创建（商品, 买家）对应的会话。
	FindOrCreate(ctx context.Context, productID, buyerID, sellerID uint) (*model.Chat, error)
	Messages(ctx context.Context, chatID uint) ([]model.Message, error)
	CreateMessage(ctx context.Context, msg *model.Message) error
}

// 捐赠成功给卖家的积分奖励。
const donationRewardPoints = 10

type dbUserStore struct {
	db *gorm.DB
}

func (s dbUserStore) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (s dbUserStore) Create(ctx context.Context, user *model.User) error {
	return s.db.WithContext(ctx).Create(user).Error
}

func (s dbUserStore) Profile(ctx context.Context, userID uint) (*profileRow, error) {
	rows := []profileRow{}
	err := s.db.WithContext(ctx).Table("users").
		Select(`users.id, users.name, users.email, users.status, users.reward_points, users.created_at,
 (SELECT COUNT(*) FROM products
  WHERE products.seller_id = users.id
    AND products.moderation_status <> ?) AS total_listings,
 (SELECT COUNT(*) FROM products
  WHERE products.seller_id = users.id
    AND products.status IN ?) AS completed_transactions`,
			model.ModerationRemoved,
			[]string{model.ProductStatusSold, model.ProductStatusDonated}).
		Where("users.id = ?", userID).
		Limit(1).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return &rows[0], nil
}

func (s dbUserStore) Listings(ctx context.Context, userID uint) ([]listingRow, error) {
	rows := []listingRow{}
	err := s.db.WithContext(ctx).Table("products").
		Select(`products.id, products.seller_id, products.title, products.category, products.price,
 products.listing_type, products.status, products.created_at, `+firstImageSelect).
		Where("products.seller_id = ? AND products.moderation_status <> ?", userID, model.ModerationRemoved).
		Order("products.created_at DESC, products.id DESC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

type dbProductStore struct {
	db *gorm.DB
}

func (s dbProductStore) List(ctx context.Context, filter ProductFilter) ([]listingRow, error) {
	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := s.db.WithContext(ctx).Table("products").
		Select(`products.id, products.seller_id, products.title, products.category, products.price,
 products.listing_type, products.status, products.created_at, `+firstImageSelect).
		Where("products.moderation_status <> ?", model.ModerationRemoved).
		Where("products.status IN ?", []string{model.ProductStatusAvailable, model.ProductStatusReserved})

	if filter.Category != "" {
		query = query.Where("products.category = ?", filter.Category)
	}
	if filter.Query != "" {
		query = query.Where("products.title LIKE ?", "%"+filter.Query+"%")
	}

	rows := []listingRow{}
	err := query.
		Order("products.created_at DESC, products.id DESC").
		Limit(limit).Offset(offset).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s dbProductStore) Get(ctx context.Context, id uint) (*model.Product, error) {
	var product model.Product
	err := s.db.WithContext(ctx).
		Preload("Seller").
		Preload("Images", func(db *gorm.DB) *gorm.DB {
			return db.Order("product_images.id ASC")
		}).
		Where("id = ? AND moderation_status <> ?", id, model.ModerationRemoved).
		First(&product).Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func (s dbProductStore) Create(ctx context.Context, product *model.Product, image *model.ProductImage) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(product).Error; err != nil {
			return err
		}
		if image != nil {
			image.ProductID = product.ID
			if err := tx.Create(image).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (s dbProductStore) SoftDelete(ctx context.Context, id, sellerID uint) (bool, error) {
	res := s.db.WithContext(ctx).Model(&model.Product{}).
		Where("id = ? AND seller_id = ? AND moderation_status <> ?", id, sellerID, model.ModerationRemoved).
		Update("moderation_status", model.ModerationRemoved)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (s dbProductStore) UpdateStatus(ctx context.Context, id, sellerID uint, status string) (bool, error) {
	updated := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var product model.Product
		err := tx.Where("id = ? AND seller_id = ? AND moderation_status <> ?", id, sellerID, model.ModerationRemoved).
			First(&product).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if product.Status == status {
			updated = true
			return nil
		}

		if err := tx.Model(&model.Product{}).Where("id = ?", product.ID).
			Update("status", status).Error; err != nil {
			return err
		}

		// 积分只跟第一次到达 DONATED 绑定（donated_at 落下后不再发放），
		// 来回切换状态刷不了分
		if status == model.ProductStatusDonated && product.DonatedAt == nil {
			if err := tx.Model(&model.Product{}).Where("id = ?", product.ID).
				Update("donated_at", time.Now()).Error; err != nil {
				return err
			}
			if err := tx.Model(&model.User{}).Where("id = ?", sellerID).
				Update("reward_points", gorm.Expr("reward_points + ?", donationRewardPoints)).Error; err != nil {
				return err
			}
		}
		updated = true
		return nil
	})
	return updated, err
}

type dbChatStore struct {
	db *gorm.DB
}

func (s dbChatStore) ListForUser(ctx context.Context, userID uint) ([]chatRow, error) {
	rows := []chatRow{}
	err := s.db.WithContext(ctx).Table("chats").
		Select(`chats.id, chats.product_id, products.title AS product_title,
 chats.buyer_id, buyers.name AS buyer_name, buyers.email AS buyer_email,
 chats.seller_id, sellers.name AS seller_name, sellers.email AS seller_email,
 (SELECT text FROM messages WHERE messages.chat_id = chats.id ORDER BY messages.id DESC LIMIT 1) AS last_text,
 (SELECT created_at FROM messages WHERE messages.chat_id = chats.id ORDER BY messages.id DESC LIMIT 1) AS last_sent_at`).
		Joins("JOIN products ON products.id = chats.product_id").
		Joins("JOIN users buyers ON buyers.id = chats.buyer_id").
		Joins("JOIN users sellers ON sellers.id = chats.seller_id").
		Where("chats.buyer_id = ? OR chats.seller_id = ?", userID, userID).
		Order("last_sent_at DESC, chats.id DESC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s dbChatStore) Get(ctx context.Context, id uint) (*model.Chat, error) {
	var chat model.Chat
	if err := s.db.WithContext(ctx).First(&chat, id).Error; err != nil {
		return nil, err
	}
	return &chat, nil
}

func (s dbChatStore) FindOrCreate(ctx context.Context, productID, buyerID, sellerID uint) (*model.Chat, error) {
	var chat model.Chat
	err := s.db.WithContext(ctx).
		Where("product_id = ? AND buyer_id = ?", productID, buyerID).
		First(&chat).Error
	if err == nil {
		return &chat, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	chat = model.Chat{ProductID: productID, BuyerID: buyerID, SellerID: sellerID}
	if err := s.db.WithContext(ctx).Create(&chat).Error; err != nil {
		// 并发创建撞上唯一索引时读回已有会话
		var existing model.Chat
		if findErr := s.db.WithContext(ctx).
			Where("product_id = ? AND buyer_id = ?", productID, buyerID).
			First(&existing).Error; findErr == nil {
			return &existing, nil
		}
		return nil, err
	}
	return &chat, nil
}

func (s dbChatStore) Messages(ctx context.Context, chatID uint) ([]model.Message, error) {
	msgs := []model.Message{}
	err := s.db.WithContext(ctx).
		Preload("Sender").
		Where("chat_id = ?", chatID).
		Order("id ASC").
		Find(&msgs).Error
	if err != nil {
		return nil, err
	}
	return msgs, nil
}

func (s dbChatStore) CreateMessage(ctx context.Context, msg *model.Message) error {
	return s.db.WithContext(ctx).Create(msg).Error
}
