package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/nordfoods/mrp_backend/config"
	"bitbucket.org/nordfoods/mrp_backend/utils"
	"github.com/shopspring/decimal"
)

type Product struct {
	ID            int             `gorm:"primary_key" json:"id"`
	BusinessId    string          `gorm:"index;not null" json:"business_id"`
	Name          string          `gorm:"size:255;not null" json:"name" binding:"required"`
	Sku           string          `gorm:"size:100" json:"sku"`
	Barcode       string          `gorm:"size:100" json:"barcode"`
	Unit          string          `gorm:"size:20" json:"unit"`
	Description   string          `gorm:"type:text" json:"description"`
	PurchasePrice decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"purchase_price"`
	Images        []*Image        `gorm:"polymorphic:Reference;polymorphicValue:products" json:"images"`
	IsActive      *bool           `gorm:"not null;default:true" json:"is_active"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewProduct struct {
	Name          string          `json:"name" binding:"required"`
	Sku           string          `json:"sku"`
	Barcode       string          `json:"barcode"`
	Unit          string          `json:"unit"`
	Description   string          `json:"description"`
	PurchasePrice decimal.Decimal `json:"purchase_price"`
	Images        []*NewImage     `json:"images"`
	IsActive      *bool           `json:"is_active"`
}

type ProductsEdge Edge[Product]

type ProductsConnection struct {
	Edges    []*ProductsEdge `json:"edges"`
	PageInfo *PageInfo       `json:"pageInfo"`
}

func (p Product) GetCursor() string {
	return p.CreatedAt.String()
}

func (input *NewProduct) validate(ctx context.Context, businessId string, id int) error {
	// name
	if err := utils.ValidateUnique[Product](ctx, businessId, "name", input.Name, id); err != nil {
		return err
	}
	// sku
	if input.Sku != "" {
		if err := utils.ValidateUnique[Product](ctx, businessId, "sku", input.Sku, id); err != nil {
			return err
		}
	}
	return nil
}

func CreateProduct(ctx context.Context, input *NewProduct) (*Product, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	if err := input.validate(ctx, businessId, 0); err != nil {
		return nil, err
	}

	images, err := mapNewImages(input.Images, "products", 0)
	if err != nil {
		return nil, err
	}

	isActive := input.IsActive
	if isActive == nil {
		isActive = utils.NewTrue()
	}

	product := Product{
		BusinessId:    businessId,
		Name:          input.Name,
		Sku:           input.Sku,
		Barcode:       input.Barcode,
		Unit:          input.Unit,
		Description:   input.Description,
		PurchasePrice: input.PurchasePrice,
		IsActive:      isActive,
		// associations
		Images: images,
	}

	db := config.GetDB()
	tx := db.Begin()
	if err := tx.WithContext(ctx).Create(&product).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := SaveHistoryCreate(tx.WithContext(ctx), product.ID, "products", &product, "Created Product "+product.Name); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return &product, nil
}

func UpdateProduct(ctx context.Context, id int, input *NewProduct) (*Product, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	if err := input.validate(ctx, businessId, id); err != nil {
		return nil, err
	}

	product, err := utils.FetchModel[Product](ctx, businessId, id)
	if err != nil {
		return nil, err
	}
	before := *product

	db := config.GetDB()
	tx := db.Begin()
	if err := tx.WithContext(ctx).Model(product).Updates(map[string]interface{}{
		"Name":          input.Name,
		"Sku":           input.Sku,
		"Barcode":       input.Barcode,
		"Unit":          input.Unit,
		"Description":   input.Description,
		"PurchasePrice": input.PurchasePrice,
	}).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	// upserting association
	images, err := UpsertImages(ctx, tx, input.Images, "products", product.ID)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	product.Images = images

	if err := SaveHistoryUpdate(tx.WithContext(ctx), id, "products", &before, input, "Updated Product "+input.Name); err != nil {
		tx.Rollback()
		return nil, err
	}

	// caching
	if err := RemoveRedisBoth(*product); err != nil {
		tx.Rollback()
		return nil, err
	}

	return product, tx.Commit().Error
}

func DeleteProduct(ctx context.Context, id int) (*Product, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	product, err := utils.FetchModel[Product](ctx, businessId, id, "Images")
	if err != nil {
		return nil, err
	}

	// block deletion while referenced by purchasing records
	count, err := utils.ResourceCountWhere[PurchaseOrderDetail](ctx, "", "product_id = ?", id)
	if err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, errors.New("product is referenced by purchase orders")
	}
	count, err = utils.ResourceCountWhere[SupplierProduct](ctx, businessId, "product_id = ?", id)
	if err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, errors.New("product is referenced by supplier catalog entries")
	}

	db := config.GetDB()
	tx := db.Begin()
	if err := tx.WithContext(ctx).Delete(&product).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	// deleting association
	for _, image := range product.Images {
		if err := image.Delete(tx, ctx); err != nil {
			tx.Rollback()
			return nil, err
		}
	}

	if err := SaveHistoryDelete(tx.WithContext(ctx), id, "products", product, "Deleted Product "+product.Name); err != nil {
		tx.Rollback()
		return nil, err
	}

	// caching
	if err := RemoveRedisBoth(*product); err != nil {
		tx.Rollback()
		return nil, err
	}

	return product, tx.Commit().Error
}

func GetProduct(ctx context.Context, id int) (*Product, error) {
	return GetResource[Product](ctx, id)
}

func GetProducts(ctx context.Context, name *string, sku *string) ([]*Product, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	db := config.GetDB()
	var results []*Product

	dbCtx := db.WithContext(ctx).Where("business_id = ?", businessId)
	if name != nil && len(*name) > 0 {
		dbCtx = dbCtx.Where("name LIKE ?", "%"+*name+"%")
	}
	if sku != nil && len(*sku) > 0 {
		dbCtx = dbCtx.Where("sku = ?", *sku)
	}
	if err := dbCtx.Order("name").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func ToggleActiveProduct(ctx context.Context, id int, isActive bool) (*Product, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	return ToggleActiveModel[Product](ctx, businessId, id, isActive)
}

func PaginateProduct(ctx context.Context, limit int, after *string, name *string) (*ProductsConnection, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Where("business_id = ?", businessId)
	if name != nil && *name != "" {
		dbCtx = dbCtx.Where("name LIKE ?", "%"+*name+"%")
	}

	edges, pageInfo, err := FetchPageCompositeCursor[Product](dbCtx, limit, after, "created_at", "<")
	if err != nil {
		return nil, err
	}

	var connection ProductsConnection
	connection.PageInfo = pageInfo
	for _, edge := range edges {
		productsEdge := ProductsEdge(edge)
		connection.Edges = append(connection.Edges, &productsEdge)
	}
	return &connection, nil
}
