package api

import (
	"context"

	"campusloop/internal/model"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// SeedDemoData 初始化本地演示数据：一个演示账号和几条示例商品。
// 只在本地环境由 main 调用，重复执行是幂等的。
func (s *Server) SeedDemoData(ctx context.Context) error {
	const demoEmail = "demo@campusloop.edu"
	var user model.User
	err := s.db.WithContext(ctx).Where("email = ?", demoEmail).First(&user).Error
	if err != nil && err != gorm.ErrRecordNotFound {
		return err
	}
	if err == gorm.ErrRecordNotFound {
		hash, hashErr := bcrypt.GenerateFromPassword([]byte("demo-pass"), bcrypt.DefaultCost)
		if hashErr != nil {
			return hashErr
		}
		user = model.User{
			Name:     "Demo Student",
			Email:    demoEmail,
			Password: string(hash),
			Status:   model.UserStatusActive,
		}
		if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
			return err
		}
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&model.Product{}).
		Where("seller_id = ?", user.ID).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	samples := []model.Product{
		{
			SellerID:         user.ID,
			Title:            "Calculus: Early Transcendentals (8th Edition)",
			Category:         "Textbooks",
			Price:            25,
			Description:      "Lightly used, no highlighting. Pickup at the main library.",
			ListingType:      model.ListingTypeSell,
			Status:           model.ProductStatusAvailable,
			ModerationStatus: model.ModerationActive,
		},
		{
			SellerID:         user.ID,
			Title:            "Desk lamp",
			Category:         "Electronics",
			Price:            0,
			Description:      "Works fine, moving out so giving it away.",
			ListingType:      model.ListingTypeDonate,
			Status:           model.ProductStatusAvailable,
			ModerationStatus: model.ModerationActive,
		},
		{
			SellerID:         user.ID,
			Title:            "Mini fridge",
			Category:         "Appliances",
			Price:            10,
			Description:      "Rent per month, dorm sized, clean inside.",
			ListingType:      model.ListingTypeRent,
			Status:           model.ProductStatusAvailable,
			ModerationStatus: model.ModerationActive,
		},
	}
	return s.db.WithContext(ctx).Create(&samples).Error
}
