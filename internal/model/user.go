package model

import "time"

// 用户账号状态。
const (
	UserStatusActive    = "ACTIVE"    // 正常
	UserStatusBanned    = "BANNED"    // 已封禁
	UserStatusSuspended = "SUSPENDED" // 临时停用
)

// User 表示校园市集的注册用户。
//
// Email 入库前统一转小写并去除首尾空格，配合唯一索引保证不会出现
// 大小写不同的重复账号。Password 存 bcrypt 哈希，任何接口都不允许返回。
type User struct {
	ID           uint      `gorm:"primaryKey"`                      // 用户 ID
	Name         string    `gorm:"type:varchar(100);not null"`      // 显示名
	Email        string    `gorm:"type:varchar(191);uniqueIndex"`   // 邮箱（唯一，已归一化）
	Password     string    `gorm:"not null"`                        // bcrypt 哈希
	Status       string    `gorm:"type:varchar(16);default:ACTIVE"` // 账号状态: ACTIVE / BANNED / SUSPENDED
	RewardPoints int       `gorm:"default:0"`                       // 累计积分（捐赠奖励）
	CreatedAt    time.Time // 注册时间

	Products []Product `gorm:"foreignKey:SellerID"`
}
