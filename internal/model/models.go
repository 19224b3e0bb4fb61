package model

import (
	"time"
)

// 商品交易类型。
const (
	ListingTypeSell   = "SELL"   // 出售
	ListingTypeDonate = "DONATE" // 捐赠
	ListingTypeRent   = "RENT"   // 出租
)

// 商品交易状态。
const (
	ProductStatusAvailable = "AVAILABLE" // 在售
	ProductStatusReserved  = "RESERVED"  // 已预定
	ProductStatusSold      = "SOLD"      // 已售出
	ProductStatusDonated   = "DONATED"   // 已捐出
)

// 商品审核状态。REMOVED 表示被卖家或管理员下架（软删除），
// 所有对外查询都必须过滤掉 REMOVED 的商品。
const (
	ModerationActive  = "ACTIVE"
	ModerationFlagged = "FLAGGED"
	ModerationRemoved = "REMOVED"
)

// Product 表示一条商品信息。
//
// 商品归属于发布它的卖家（SellerID），删除采用软删除：
// 把 ModerationStatus 置为 REMOVED，行本身保留，方便审计与统计。
type Product struct {
	ID        uint      `gorm:"primaryKey"` // 商品 ID
	CreatedAt time.Time // 发布时间
	UpdatedAt time.Time // 更新时间

	SellerID    uint    `gorm:"not null;index"`             // 卖家用户 ID
	Seller      User    `gorm:"foreignKey:SellerID"`        // 卖家
	Title       string  `gorm:"type:varchar(200);not null"` // 标题
	Category    string  `gorm:"type:varchar(64);not null"`  // 分类（Textbooks / Electronics / ...）
	Price       float64 `gorm:"not null"`                   // 价格（捐赠商品为 0）
	Description string  `gorm:"type:text"`                  // 描述（入库前已做 HTML 清洗）

	ListingType      string `gorm:"type:varchar(16);default:SELL"`      // 交易类型: SELL / DONATE / RENT
	Status           string `gorm:"type:varchar(16);default:AVAILABLE"` // 交易状态: AVAILABLE / RESERVED / SOLD / DONATED
	ModerationStatus string `gorm:"type:varchar(16);default:ACTIVE"`    // 审核状态: ACTIVE / FLAGGED / REMOVED

	DonatedAt *time.Time // 首次置为 DONATED 的时间，积分只在这次发放

	Images []ProductImage `gorm:"foreignKey:ProductID"` // 商品图片
}

// ProductImage 表示商品的一张图片。
//
// 同一商品的“首图”约定为 ID 最小的那张，列表接口据此取封面。
type ProductImage struct {
	ID        uint      `gorm:"primaryKey"`        // 图片 ID
	ProductID uint      `gorm:"not null;index"`    // 所属商品 ID
	ImageURL  string    `gorm:"type:varchar(255)"` // 对外访问的 URL
	StoreName string    `gorm:"type:varchar(255)"` // 存储文件名（相对上传目录）
	CreatedAt time.Time // 上传时间
}

// Chat 表示买家与卖家围绕某个商品的会话。
//
// 同一（商品, 买家）组合只允许存在一个会话，由唯一索引保证。
type Chat struct {
	ID        uint      `gorm:"primaryKey"` // 会话 ID
	CreatedAt time.Time // 创建时间

	ProductID uint    `gorm:"not null;uniqueIndex:idx_chat_product_buyer"` // 商品 ID
	Product   Product `gorm:"foreignKey:ProductID"`
	BuyerID   uint    `gorm:"not null;uniqueIndex:idx_chat_product_buyer"` // 买家用户 ID
	Buyer     User    `gorm:"foreignKey:BuyerID"`
	SellerID  uint    `gorm:"not null;index"` // 卖家用户 ID
	Seller    User    `gorm:"foreignKey:SellerID"`

	Messages []Message `gorm:"foreignKey:ChatID"`
}

// Message 表示会话中的一条消息。
type Message struct {
	ID        uint      `gorm:"primaryKey"`     // 消息 ID
	ChatID    uint      `gorm:"not null;index"` // 所属会话 ID
	SenderID  uint      `gorm:"not null"`       // 发送者用户 ID
	Sender    User      `gorm:"foreignKey:SenderID"`
	Text      string    `gorm:"type:varchar(2000);not null"` // 消息正文（纯文本）
	CreatedAt time.Time // 发送时间
}
