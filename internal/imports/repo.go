package imports

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/shopfront-backend/pkg/db/models"
)

// txRepository writes one import step. Every method runs on the transaction
// it was built with.
type txRepository struct {
	tx *gorm.DB
}

func newTxRepository(tx *gorm.DB) *txRepository {
	return &txRepository{tx: tx}
}

// ensureCategory returns the category id for name, inserting it when missing.
// Concurrent imports from other shops may insert the same name.
func (r *txRepository) ensureCategory(name string) (uuid.UUID, error) {
	row := models.Category{Name: name}
	if err := r.tx.Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "name"}}, DoNothing: true}).Create(&row).Error; err != nil {
		return uuid.Nil, err
	}
	var stored models.Category
	if err := r.tx.Where("name = ?", name).First(&stored).Error; err != nil {
		return uuid.Nil, err
	}
	return stored.ID, nil
}

func (r *txRepository) linkShopCategory(shopID, categoryID uuid.UUID) error {
	return r.tx.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.ShopCategory{ShopID: shopID, CategoryID: categoryID}).Error
}

func (r *txRepository) ensureProduct(name string, categoryID uuid.UUID) (uuid.UUID, error) {
	row := models.Product{Name: name, CategoryID: categoryID}
	err := r.tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}, {Name: "category_id"}},
		DoNothing: true,
	}).Create(&row).Error
	if err != nil {
		return uuid.Nil, err
	}
	var stored models.Product
	if err := r.tx.Where("name = ? AND category_id = ?", name, categoryID).First(&stored).Error; err != nil {
		return uuid.Nil, err
	}
	return stored.ID, nil
}

func (r *txRepository) ensureParameter(name string) (uuid.UUID, error) {
	row := models.Parameter{Name: name}
	if err := r.tx.Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "name"}}, DoNothing: true}).Create(&row).Error; err != nil {
		return uuid.Nil, err
	}
	var stored models.Parameter
	if err := r.tx.Where("name = ?", name).First(&stored).Error; err != nil {
		return uuid.Nil, err
	}
	return stored.ID, nil
}

// upsertProductInfo writes the shop row keyed by (product, shop, external id).
// created is false when an existing row was updated. Imports for one shop are
// serialised by the caller, so a plain lookup is enough here.
func (r *txRepository) upsertProductInfo(info *models.ProductInfo) (created bool, err error) {
	var existing models.ProductInfo
	err = r.tx.
		Where("product_id = ? AND shop_id = ? AND external_id = ?", info.ProductID, info.ShopID, info.ExternalID).
		First(&existing).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return true, r.tx.Create(info).Error
	case err != nil:
		return false, err
	}

	info.ID = existing.ID
	err = r.tx.Model(&models.ProductInfo{}).
		Where("id = ?", existing.ID).
		Updates(map[string]any{
			"model":      info.Model,
			"quantity":   info.Quantity,
			"price":      info.Price,
			"price_rrc":  info.PriceRRC,
			"updated_at": time.Now().UTC(),
		}).Error
	return false, err
}

func (r *txRepository) upsertProductParameter(productInfoID, parameterID uuid.UUID, value string) error {
	return r.tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "product_info_id"}, {Name: "parameter_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"value"}),
	}).Create(&models.ProductParameter{
		ProductInfoID: productInfoID,
		ParameterID:   parameterID,
		Value:         value,
	}).Error
}

// pruneParameters drops attributes the feed no longer lists for the row.
func (r *txRepository) pruneParameters(productInfoID uuid.UUID, keep []uuid.UUID) error {
	q := r.tx.Where("product_info_id = ?", productInfoID)
	if len(keep) > 0 {
		q = q.Where("parameter_id NOT IN ?", keep)
	}
	return q.Delete(&models.ProductParameter{}).Error
}

// zeroMissing sets quantity 0 on the shop's rows that were not in the feed.
// zeroMissing sets quantity 0 on the shop's rows that were neither imported
// (seen) nor named by a failed good (failedExternal).
func (r *txRepository) zeroMissing(shopID uuid.UUID, seen []uuid.UUID, failedExternal []int64) (int, error) {
	q := r.tx.Model(&models.ProductInfo{}).
		Where("shop_id = ?", shopID).
		Where("quantity <> 0")
	if len(seen) > 0 {
		q = q.Where("id NOT IN ?", seen)
	}
	if len(failedExternal) > 0 {
		q = q.Where("external_id NOT IN ?", failedExternal)
	}
	res := q.Updates(map[string]any{"quantity": 0, "updated_at": time.Now().UTC()})
	return int(res.RowsAffected), res.Error
}

func (r *txRepository) findShopByName(name string) (*models.Shop, error) {
	var shop models.Shop
	if err := r.tx.Where("name = ?", name).First(&shop).Error; err != nil {
		return nil, err
	}
	return &shop, nil
}

func (r *txRepository) findShopByUser(userID uuid.UUID) (*models.Shop, error) {
	var shop models.Shop
	if err := r.tx.Where("user_id = ?", userID).First(&shop).Error; err != nil {
		return nil, err
	}
	return &shop, nil
}

func (r *txRepository) createShop(shop *models.Shop) error {
	return r.tx.Create(shop).Error
}

func (r *txRepository) setShopURL(shopID uuid.UUID, url string) error {
	return r.tx.Model(&models.Shop{}).Where("id = ?", shopID).Update("url", url).Error
}
