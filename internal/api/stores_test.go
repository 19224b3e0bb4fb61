package api

import (
	"context"
	"path/filepath"
	"testing"

	"campusloop/internal/model"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

func newStoreDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "store.db")), &gorm.Config{
		Logger:         gormLogger.Default.LogMode(gormLogger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&model.User{}, &model.Product{}, &model.ProductImage{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func rewardPoints(t *testing.T, db *gorm.DB, userID uint) int {
	t.Helper()
	var user model.User
	if err := db.First(&user, userID).Error; err != nil {
		t.Fatalf("load user: %v", err)
	}
	return user.RewardPoints
}

func TestUpdateStatusDonationRewardOnce(t *testing.T) {
	db := newStoreDB(t)
	ctx := context.Background()

	seller := model.User{Name: "Ada", Email: "ada@uni.edu", Password: "x", Status: model.UserStatusActive}
	if err := db.Create(&seller).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	product := model.Product{
		SellerID:         seller.ID,
		Title:            "Desk lamp",
		Category:         "Electronics",
		ListingType:      model.ListingTypeDonate,
		Status:           model.ProductStatusAvailable,
		ModerationStatus: model.ModerationActive,
	}
	if err := db.Create(&product).Error; err != nil {
		t.Fatalf("create product: %v", err)
	}

	store := dbProductStore{db: db}

	updated, err := store.UpdateStatus(ctx, product.ID, seller.ID, model.ProductStatusDonated)
	if err != nil || !updated {
		t.Fatalf("first donation: updated = %v, err = %v", updated, err)
	}
	if pts := rewardPoints(t, db, seller.ID); pts != 10 {
		t.Fatalf("points after first donation = %d, want 10", pts)
	}

	// 来回切换 DONATED / AVAILABLE 不能重复拿积分
	sequence := []string{
		model.ProductStatusAvailable,
		model.ProductStatusDonated,
		model.ProductStatusAvailable,
		model.ProductStatusDonated,
	}
	for _, status := range sequence {
		if _, err := store.UpdateStatus(ctx, product.ID, seller.ID, status); err != nil {
			t.Fatalf("update to %s: %v", status, err)
		}
	}
	if pts := rewardPoints(t, db, seller.ID); pts != 10 {
		t.Errorf("points after toggling = %d, want 10", pts)
	}

	// 重复发同一个状态也是幂等的
	if _, err := store.UpdateStatus(ctx, product.ID, seller.ID, model.ProductStatusDonated); err != nil {
		t.Fatalf("repeat donation: %v", err)
	}
	if pts := rewardPoints(t, db, seller.ID); pts != 10 {
		t.Errorf("points after repeated PATCH = %d, want 10", pts)
	}
}

func TestUpdateStatusOtherSellersProduct(t *testing.T) {
	db := newStoreDB(t)
	ctx := context.Background()

	seller := model.User{Name: "Ada", Email: "ada@uni.edu", Password: "x", Status: model.UserStatusActive}
	if err := db.Create(&seller).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	product := model.Product{
		SellerID:         seller.ID,
		Title:            "Bike",
		Category:         "Sports",
		Price:            50,
		ListingType:      model.ListingTypeSell,
		Status:           model.ProductStatusAvailable,
		ModerationStatus: model.ModerationActive,
	}
	if err := db.Create(&product).Error; err != nil {
		t.Fatalf("create product: %v", err)
	}

	store := dbProductStore{db: db}

	updated, err := store.UpdateStatus(ctx, product.ID, seller.ID+1, model.ProductStatusSold)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated {
		t.Error("another user must not be able to update the product")
	}
	if pts := rewardPoints(t, db, seller.ID); pts != 0 {
		t.Errorf("points = %d, want 0", pts)
	}
}

func TestSoftDeleteHidesFromQueries(t *testing.T) {
	db := newStoreDB(t)
	ctx := context.Background()

	seller := model.User{Name: "Ada", Email: "ada@uni.edu", Password: "x", Status: model.UserStatusActive}
	if err := db.Create(&seller).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	product := model.Product{
		SellerID:         seller.ID,
		Title:            "Bike",
		Category:         "Sports",
		Price:            50,
		ListingType:      model.ListingTypeSell,
		Status:           model.ProductStatusAvailable,
		ModerationStatus: model.ModerationActive,
	}
	if err := db.Create(&product).Error; err != nil {
		t.Fatalf("create product: %v", err)
	}

	store := dbProductStore{db: db}

	deleted, err := store.SoftDelete(ctx, product.ID, seller.ID)
	if err != nil || !deleted {
		t.Fatalf("soft delete: deleted = %v, err = %v", deleted, err)
	}

	if _, err := store.Get(ctx, product.ID); err != gorm.ErrRecordNotFound {
		t.Errorf("Get after delete: err = %v, want record not found", err)
	}
	rows, err := store.List(ctx, ProductFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("list returned %d rows, want 0", len(rows))
	}

	// 已下架的商品再删一次不应报告成功
	deleted, err = store.SoftDelete(ctx, product.ID, seller.ID)
	if err != nil {
		t.Fatalf("second delete: %v", err)
	}
	if deleted {
		t.Error("second delete reported success")
	}
}
