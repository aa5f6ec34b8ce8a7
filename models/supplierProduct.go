package models

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"bitbucket.org/nordfoods/mrp_backend/config"
	"bitbucket.org/nordfoods/mrp_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// SupplierProduct is one catalog row per (business, supplier, product) pair.
// Price/volume statistics are derived from confirmed purchase orders; the
// certificate sub-record is maintained independently and survives a
// destructive catalog rebuild.
type SupplierProduct struct {
	ID         int    `gorm:"primary_key" json:"id"`
	BusinessId string `gorm:"uniqueIndex:idx_supplier_product_key,priority:1;not null" json:"business_id"`
	SupplierId int    `gorm:"uniqueIndex:idx_supplier_product_key,priority:2;index;not null" json:"supplier_id"`
	ProductId  int    `gorm:"uniqueIndex:idx_supplier_product_key,priority:3;index;not null" json:"product_id"`

	ProductName         string `gorm:"size:255" json:"product_name"`
	Unit                string `gorm:"size:20" json:"unit"`
	SupplierProductCode string `gorm:"size:100" json:"supplier_product_code"`

	LastPrice    decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"last_price"`
	AveragePrice decimal.Decimal `gorm:"type:decimal(20,6);default:0" json:"average_price"`
	MinPrice     decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"min_price"`
	MaxPrice     decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"max_price"`
	CurrencyCode string          `gorm:"size:3" json:"currency_code"`

	TotalOrderedQty decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total_ordered_qty"`
	OrderCount      int             `gorm:"default:0" json:"order_count"`

	LastOrderDate           *time.Time `gorm:"default:null" json:"last_order_date"`
	LastPurchaseOrderId     int        `gorm:"default:0" json:"last_purchase_order_id"`
	LastPurchaseOrderNumber string     `gorm:"size:255" json:"last_purchase_order_number"`
	FirstSeenAt             time.Time  `json:"first_seen_at"`

	// certificate sub-record, not derived from order history
	CertificateUnit        string           `gorm:"size:100" json:"certificate_unit"`
	CertificateNumber      string           `gorm:"size:100" json:"certificate_number"`
	CertificateType        *CertificateType `gorm:"type:enum('eco','halal','kosher','vegan','vege','gmp','iso','other');default:null" json:"certificate_type"`
	CertificateValidFrom   *time.Time       `gorm:"default:null" json:"certificate_valid_from"`
	CertificateValidTo     *time.Time       `gorm:"default:null" json:"certificate_valid_to"`
	CertificateFileName    string           `gorm:"size:255" json:"certificate_file_name"`
	CertificateContentType string           `gorm:"size:100" json:"certificate_content_type"`
	CertificateStoragePath string           `gorm:"size:512" json:"certificate_storage_path"`
	CertificateFileUrl     string           `gorm:"size:512" json:"certificate_file_url"`
	CertificateUploadedAt  *time.Time       `gorm:"default:null" json:"certificate_uploaded_at"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// CatalogLineItem is the read-only line-item input folded into the catalog.
type CatalogLineItem struct {
	ProductId           int
	Name                string
	Unit                string
	SupplierProductCode string
	UnitPrice           decimal.Decimal
	Quantity            decimal.Decimal
}

// CatalogOrderContext carries provenance from the order owning a line item.
type CatalogOrderContext struct {
	OrderId      int
	OrderNumber  string
	OrderDate    time.Time
	CurrencyCode string
}

// CatalogKey is the business key certificates are matched by across a rebuild.
type CatalogKey struct {
	SupplierId int
	ProductId  int
}

// CertificateRecord is a detached copy of an entry's certificate sub-record.
type CertificateRecord struct {
	CertificateUnit        string
	CertificateNumber      string
	CertificateType        *CertificateType
	CertificateValidFrom   *time.Time
	CertificateValidTo     *time.Time
	CertificateFileName    string
	CertificateContentType string
	CertificateStoragePath string
	CertificateFileUrl     string
	CertificateUploadedAt  *time.Time
}

const catalogDeleteBatchSize = 500

// certificate uploads: PDF only, capped at 10 MB
const certificateMaxFileSize = 10 << 20

func (sp SupplierProduct) GetId() int {
	return sp.ID
}

func (sp SupplierProduct) GetCursor() string {
	return sp.CreatedAt.String()
}

func (sp SupplierProduct) Key() CatalogKey {
	return CatalogKey{SupplierId: sp.SupplierId, ProductId: sp.ProductId}
}

func (sp SupplierProduct) HasCertificateData() bool {
	return sp.CertificateUnit != "" ||
		sp.CertificateNumber != "" ||
		sp.CertificateType != nil ||
		sp.CertificateValidFrom != nil ||
		sp.CertificateValidTo != nil ||
		sp.CertificateFileName != "" ||
		sp.CertificateStoragePath != "" ||
		sp.CertificateFileUrl != ""
}

func (sp SupplierProduct) CertificateSnapshot() CertificateRecord {
	return CertificateRecord{
		CertificateUnit:        sp.CertificateUnit,
		CertificateNumber:      sp.CertificateNumber,
		CertificateType:        sp.CertificateType,
		CertificateValidFrom:   sp.CertificateValidFrom,
		CertificateValidTo:     sp.CertificateValidTo,
		CertificateFileName:    sp.CertificateFileName,
		CertificateContentType: sp.CertificateContentType,
		CertificateStoragePath: sp.CertificateStoragePath,
		CertificateFileUrl:     sp.CertificateFileUrl,
		CertificateUploadedAt:  sp.CertificateUploadedAt,
	}
}

// ApplyLineItem folds one line item into the entry's running statistics.
// It is a pure in-memory fold; persistence is the caller's concern.
//
// averagePrice is the order-count-weighted running mean:
// (avg_prev * count_prev + price) / count_new
func (sp *SupplierProduct) ApplyLineItem(line CatalogLineItem, order CatalogOrderContext, now time.Time) {

	qty := line.Quantity
	if qty.IsNegative() {
		qty = decimal.Zero
	}

	if sp.OrderCount == 0 {
		sp.LastPrice = line.UnitPrice
		sp.AveragePrice = line.UnitPrice
		sp.MinPrice = line.UnitPrice
		sp.MaxPrice = line.UnitPrice
		sp.TotalOrderedQty = qty
		sp.OrderCount = 1
		sp.FirstSeenAt = now
	} else {
		prevCount := decimal.NewFromInt(int64(sp.OrderCount))
		newCount := prevCount.Add(decimal.NewFromInt(1))
		sp.AveragePrice = sp.AveragePrice.Mul(prevCount).Add(line.UnitPrice).Div(newCount)
		if line.UnitPrice.LessThan(sp.MinPrice) {
			sp.MinPrice = line.UnitPrice
		}
		if line.UnitPrice.GreaterThan(sp.MaxPrice) {
			sp.MaxPrice = line.UnitPrice
		}
		sp.LastPrice = line.UnitPrice
		sp.TotalOrderedQty = sp.TotalOrderedQty.Add(qty)
		sp.OrderCount++
	}

	if line.Name != "" {
		sp.ProductName = line.Name
	}
	if line.Unit != "" {
		sp.Unit = line.Unit
	}
	if line.SupplierProductCode != "" {
		sp.SupplierProductCode = line.SupplierProductCode
	}
	if order.CurrencyCode != "" {
		sp.CurrencyCode = order.CurrencyCode
	}
	orderDate := order.OrderDate
	sp.LastOrderDate = &orderDate
	sp.LastPurchaseOrderId = order.OrderId
	sp.LastPurchaseOrderNumber = order.OrderNumber
	sp.UpdatedAt = now
}

// UpsertCatalogFromLineItem creates or updates the catalog entry for one
// line item. Line items without a resolvable product id or with a
// non-positive unit price are silently skipped (nil, nil).
func UpsertCatalogFromLineItem(tx *gorm.DB, businessId string, supplierId int, line CatalogLineItem, order CatalogOrderContext) (*SupplierProduct, error) {

	if line.ProductId <= 0 {
		return nil, nil
	}
	if !line.UnitPrice.IsPositive() {
		return nil, nil
	}

	var entry SupplierProduct
	err := tx.
		Where("business_id = ? AND supplier_id = ? AND product_id = ?", businessId, supplierId, line.ProductId).
		First(&entry).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	now := time.Now().UTC()
	if errors.Is(err, gorm.ErrRecordNotFound) {
		entry = SupplierProduct{
			BusinessId: businessId,
			SupplierId: supplierId,
			ProductId:  line.ProductId,
		}
		entry.ApplyLineItem(line, order, now)
		if err := tx.Create(&entry).Error; err != nil {
			return nil, err
		}
		return &entry, nil
	}

	entry.ApplyLineItem(line, order, now)
	if err := tx.Save(&entry).Error; err != nil {
		return nil, err
	}
	return &entry, nil
}

// catalogLineFromDetail maps a stored order line to the fold input.
func catalogLineFromDetail(detail PurchaseOrderDetail) CatalogLineItem {
	return CatalogLineItem{
		ProductId: detail.ProductId,
		Name:      detail.Name,
		Unit:      detail.Unit,
		UnitPrice: detail.DetailUnitRate,
		Quantity:  detail.DetailQty,
	}
}

// UpdateCatalogFromPurchaseOrder folds every line item of a confirmed order
// into the supplier's catalog. Draft orders contribute nothing.
func UpdateCatalogFromPurchaseOrder(tx *gorm.DB, po *PurchaseOrder) error {

	if po == nil || !po.CurrentStatus.IsCatalogRelevant() {
		return nil
	}
	if po.SupplierId <= 0 {
		return nil
	}

	order := CatalogOrderContext{
		OrderId:      po.ID,
		OrderNumber:  po.OrderNumber,
		OrderDate:    po.OrderDate,
		CurrencyCode: po.CurrencyCode,
	}

	for _, detail := range po.Details {
		if _, err := UpsertCatalogFromLineItem(tx, po.BusinessId, po.SupplierId, catalogLineFromDetail(detail), order); err != nil {
			return err
		}
	}

	// catalog changed; drop the supplier's cached list
	return ClearSupplierCatalogCache(po.BusinessId, po.SupplierId)
}

// SnapshotCatalogCertificates collects the certificate sub-records of all
// in-scope entries, keyed by the business key. supplierId 0 means all
// suppliers of the business.
func SnapshotCatalogCertificates(tx *gorm.DB, businessId string, supplierId int) (map[CatalogKey]CertificateRecord, error) {

	var entries []*SupplierProduct
	dbCtx := tx.Where("business_id = ?", businessId)
	if supplierId > 0 {
		dbCtx = dbCtx.Where("supplier_id = ?", supplierId)
	}
	if err := dbCtx.Find(&entries).Error; err != nil {
		return nil, err
	}

	snapshot := make(map[CatalogKey]CertificateRecord)
	for _, entry := range entries {
		if entry.HasCertificateData() {
			snapshot[entry.Key()] = entry.CertificateSnapshot()
		}
	}
	return snapshot, nil
}

// DeleteCatalogEntries removes all in-scope entries in bounded batches.
// Returns the number of rows deleted.
func DeleteCatalogEntries(tx *gorm.DB, businessId string, supplierId int) (int64, error) {

	var total int64
	for {
		var ids []int
		dbCtx := tx.Model(&SupplierProduct{}).Where("business_id = ?", businessId)
		if supplierId > 0 {
			dbCtx = dbCtx.Where("supplier_id = ?", supplierId)
		}
		if err := dbCtx.Order("id").Limit(catalogDeleteBatchSize).Pluck("id", &ids).Error; err != nil {
			return total, err
		}
		if len(ids) == 0 {
			return total, nil
		}
		result := tx.Where("id IN ?", ids).Delete(&SupplierProduct{})
		if result.Error != nil {
			return total, result.Error
		}
		total += result.RowsAffected
	}
}

// RestoreCatalogCertificates merges preserved certificate sub-records back
// onto recreated entries, matching by business key. Entries whose key no
// longer exists are skipped. Returns the number of entries updated.
func RestoreCatalogCertificates(tx *gorm.DB, businessId string, supplierId int, snapshot map[CatalogKey]CertificateRecord) (int, error) {

	if len(snapshot) == 0 {
		return 0, nil
	}

	var entries []*SupplierProduct
	dbCtx := tx.Where("business_id = ?", businessId)
	if supplierId > 0 {
		dbCtx = dbCtx.Where("supplier_id = ?", supplierId)
	}
	if err := dbCtx.Find(&entries).Error; err != nil {
		return 0, err
	}

	restored := 0
	for _, entry := range entries {
		record, ok := snapshot[entry.Key()]
		if !ok {
			continue
		}
		// pure field-merge, price/quantity fields untouched
		err := tx.Model(entry).Updates(map[string]interface{}{
			"CertificateUnit":        record.CertificateUnit,
			"CertificateNumber":      record.CertificateNumber,
			"CertificateType":        record.CertificateType,
			"CertificateValidFrom":   record.CertificateValidFrom,
			"CertificateValidTo":     record.CertificateValidTo,
			"CertificateFileName":    record.CertificateFileName,
			"CertificateContentType": record.CertificateContentType,
			"CertificateStoragePath": record.CertificateStoragePath,
			"CertificateFileUrl":     record.CertificateFileUrl,
			"CertificateUploadedAt":  record.CertificateUploadedAt,
		}).Error
		if err != nil {
			return restored, err
		}
		restored++
	}
	return restored, nil
}

type NewProductCertificate struct {
	CertificateUnit      string        `json:"certificate_unit"`
	CertificateNumber    string        `json:"certificate_number"`
	CertificateType      *string       `json:"certificate_type"`
	CertificateValidFrom *MyDateString `json:"certificate_valid_from"`
	CertificateValidTo   *MyDateString `json:"certificate_valid_to"`
}

// UpdateProductCertificate updates the certificate sub-record only; the
// entry's price/quantity statistics are never touched here.
func UpdateProductCertificate(ctx context.Context, entryId int, input *NewProductCertificate) (*SupplierProduct, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	entry, err := utils.FetchModel[SupplierProduct](ctx, businessId, entryId)
	if err != nil {
		return nil, err
	}

	var certType *CertificateType
	if input.CertificateType != nil && *input.CertificateType != "" {
		parsed, err := ParseCertificateType(*input.CertificateType)
		if err != nil {
			return nil, err
		}
		certType = &parsed
	}

	var validFrom, validTo *time.Time
	if input.CertificateValidFrom != nil {
		t := time.Time(*input.CertificateValidFrom)
		validFrom = &t
	}
	if input.CertificateValidTo != nil {
		t := time.Time(*input.CertificateValidTo)
		validTo = &t
	}

	db := config.GetDB()
	tx := db.Begin()
	err = tx.WithContext(ctx).Model(entry).Updates(map[string]interface{}{
		"CertificateUnit":      input.CertificateUnit,
		"CertificateNumber":    input.CertificateNumber,
		"CertificateType":      certType,
		"CertificateValidFrom": validFrom,
		"CertificateValidTo":   validTo,
	}).Error
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	// caching
	if err := RemoveRedisBoth(*entry); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := ClearSupplierCatalogCache(businessId, entry.SupplierId); err != nil {
		tx.Rollback()
		return nil, err
	}

	return entry, tx.Commit().Error
}

// AttachCertificateFile uploads one certificate PDF for an entry and records
// the resulting locator and metadata. Only application/pdf up to 10 MB is
// accepted. Storage path convention:
// certificates/{businessId}/{supplierId}/{entryId}/{timestamp}_{filename}
func AttachCertificateFile(ctx context.Context, entryId int, filename string, contentType string, size int64, file io.Reader) (*SupplierProduct, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	if contentType != "application/pdf" {
		return nil, errors.New("certificate file must be a PDF")
	}
	if size > certificateMaxFileSize {
		return nil, errors.New("certificate file exceeds the 10 MB limit")
	}
	filename = strings.TrimSpace(filename)
	if filename == "" {
		return nil, errors.New("filename is required")
	}

	entry, err := utils.FetchModel[SupplierProduct](ctx, businessId, entryId)
	if err != nil {
		return nil, err
	}

	uploadedAt := time.Now().UTC()
	objectName := fmt.Sprintf("certificates/%s/%d/%d/%d_%s",
		businessId, entry.SupplierId, entry.ID, uploadedAt.Unix(), filename)
	replacedObject := entry.CertificateStoragePath

	if err := utils.UploadFileToGCS(ctx, objectName, file); err != nil {
		return nil, err
	}
	fileUrl := getCloudURL(objectName)

	db := config.GetDB()
	tx := db.Begin()
	err = tx.WithContext(ctx).Model(entry).Updates(map[string]interface{}{
		"CertificateFileName":    filename,
		"CertificateContentType": contentType,
		"CertificateStoragePath": objectName,
		"CertificateFileUrl":     fileUrl,
		"CertificateUploadedAt":  uploadedAt,
	}).Error
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	// caching
	if err := RemoveRedisBoth(*entry); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := ClearSupplierCatalogCache(businessId, entry.SupplierId); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	// The replaced object is dropped only after the new locator is durable;
	// if the update had failed the entry would still point at the old file.
	if replacedObject != "" {
		if err := utils.DeleteImageFromGCS(ctx, replacedObject); err != nil {
			config.LogError(config.GetLogger(), "supplierProduct", "AttachCertificateFile",
				"deleting replaced certificate file", replacedObject, err)
		}
	}

	return entry, nil
}

// RemoveCertificateFile clears the entry's file fields. The stored object is
// deleted best-effort: a storage failure is logged and does not block the
// field clear.
func RemoveCertificateFile(ctx context.Context, entryId int) (*SupplierProduct, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	entry, err := utils.FetchModel[SupplierProduct](ctx, businessId, entryId)
	if err != nil {
		return nil, err
	}

	if entry.CertificateStoragePath != "" {
		if err := utils.DeleteImageFromGCS(ctx, entry.CertificateStoragePath); err != nil {
			config.LogError(config.GetLogger(), "supplierProduct", "RemoveCertificateFile",
				"deleting certificate file", entry.CertificateStoragePath, err)
		}
	}

	db := config.GetDB()
	tx := db.Begin()
	err = tx.WithContext(ctx).Model(entry).Updates(map[string]interface{}{
		"CertificateFileName":    "",
		"CertificateContentType": "",
		"CertificateStoragePath": "",
		"CertificateFileUrl":     "",
		"CertificateUploadedAt":  nil,
	}).Error
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	// caching
	if err := RemoveRedisBoth(*entry); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := ClearSupplierCatalogCache(businessId, entry.SupplierId); err != nil {
		tx.Rollback()
		return nil, err
	}

	return entry, tx.Commit().Error
}

func GetSupplierProduct(ctx context.Context, id int) (*SupplierProduct, error) {
	return GetResource[SupplierProduct](ctx, id)
}

func supplierCatalogCacheKey(businessId string, supplierId int) string {
	return "SupplierProductList:" + businessId + ":" + fmt.Sprint(supplierId)
}

func ClearSupplierCatalogCache(businessId string, supplierId int) error {
	return config.RemoveRedisKey(supplierCatalogCacheKey(businessId, supplierId))
}

// GetSupplierProducts lists one supplier's catalog, cached per supplier.
func GetSupplierProducts(ctx context.Context, supplierId int) ([]*SupplierProduct, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	var results []*SupplierProduct

	useCache := !config.CatalogCacheDisabled()
	if useCache {
		exists, err := config.GetRedisObject(supplierCatalogCacheKey(businessId, supplierId), &results)
		if err != nil {
			return nil, err
		}
		if exists {
			return results, nil
		}
	}

	db := config.GetDB()
	err := db.WithContext(ctx).
		Where("business_id = ? AND supplier_id = ?", businessId, supplierId).
		Order("product_name").
		Find(&results).Error
	if err != nil {
		return nil, err
	}

	if useCache {
		if err := config.SetRedisObject(supplierCatalogCacheKey(businessId, supplierId), &results, utils.GetCacheLifespan()); err != nil {
			return nil, err
		}
	}
	return results, nil
}

// GetProductSuppliers lists every supplier's catalog entry for one product,
// answering "who sells this and at what price".
func GetProductSuppliers(ctx context.Context, productId int) ([]*SupplierProduct, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	db := config.GetDB()
	var results []*SupplierProduct
	err := db.WithContext(ctx).
		Where("business_id = ? AND product_id = ?", businessId, productId).
		Order("last_order_date DESC").
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}
