package workflow

import (
	"fmt"
	"time"

	"bitbucket.org/nordfoods/mrp_backend/config"
	"bitbucket.org/nordfoods/mrp_backend/models"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// CatalogRebuildSummary reports what a rebuild run touched.
type CatalogRebuildSummary struct {
	BusinessId            string `json:"business_id"`
	SupplierId            int    `json:"supplier_id"`
	EntriesDeleted        int64  `json:"entries_deleted"`
	EntriesCreated        int    `json:"entries_created"`
	EntriesUpdated        int    `json:"entries_updated"`
	OrdersProcessed       int    `json:"orders_processed"`
	SuppliersTouched      int    `json:"suppliers_touched"`
	CertificatesPreserved int    `json:"certificates_preserved"`
	LineItemErrors        int    `json:"line_item_errors"`
	DurationMs            int64  `json:"duration_ms"`

	suppliers map[int]bool
}

// RebuildCatalog drops and rebuilds the supplier catalog from confirmed
// order history. supplierId 0 rebuilds every supplier of the business.
//
// Certificate sub-records are snapshotted before the delete and merged back
// onto the recreated entries by business key, so a rebuild never loses
// certificate data. Per-line errors are logged and skipped; bulk I/O errors
// abort the run and roll everything back.
func RebuildCatalog(logger *logrus.Logger, businessId string, supplierId int) (*CatalogRebuildSummary, error) {

	if businessId == "" {
		return nil, fmt.Errorf("business id is required")
	}

	started := time.Now()

	summary, err := rebuildCatalogLocked(logger, config.GetDB(), businessId, supplierId)
	if err != nil {
		return nil, err
	}

	// caches only after commit
	for id := range summary.suppliers {
		if err := models.ClearSupplierCatalogCache(businessId, id); err != nil {
			config.LogError(logger, "workflow", "RebuildCatalog", "clearing catalog cache", id, err)
		}
	}
	if supplierId > 0 && !summary.suppliers[supplierId] {
		if err := models.ClearSupplierCatalogCache(businessId, supplierId); err != nil {
			config.LogError(logger, "workflow", "RebuildCatalog", "clearing catalog cache", supplierId, err)
		}
	}

	summary.DurationMs = time.Since(started).Milliseconds()

	logger.WithFields(logrus.Fields{
		"field":             "Workflow",
		"business_id":       businessId,
		"supplier_id":       supplierId,
		"entries_deleted":   summary.EntriesDeleted,
		"entries_created":   summary.EntriesCreated,
		"entries_updated":   summary.EntriesUpdated,
		"orders_processed":  summary.OrdersProcessed,
		"suppliers_touched": summary.SuppliersTouched,
		"certs_preserved":   summary.CertificatesPreserved,
		"line_item_errors":  summary.LineItemErrors,
		"duration_ms":       summary.DurationMs,
	}).Info("catalog rebuild finished")

	return summary, nil
}

// rebuildCatalogLocked serializes with the order-event consumer and runs the
// rebuild in one transaction. GET_LOCK is connection-scoped and survives
// COMMIT, so the release must run inside the transaction callback while the
// connection is still doing our work; a release deferred past the commit
// would leak the lock on the pooled connection and starve ProcessMessage.
func rebuildCatalogLocked(logger *logrus.Logger, db *gorm.DB, businessId string, supplierId int) (*CatalogRebuildSummary, error) {

	var summary *CatalogRebuildSummary
	err := db.Transaction(func(tx *gorm.DB) error {
		// one rebuild at a time per business
		if err := AcquireBusinessPostingLock(tx, businessId); err != nil {
			return err
		}
		defer ReleaseBusinessPostingLock(tx, businessId)

		var err error
		summary, err = RebuildCatalogTx(logger, tx, businessId, supplierId)
		return err
	})
	if err != nil {
		return nil, err
	}
	return summary, nil
}

// RebuildCatalogTx runs the snapshot / delete / replay / merge sequence on a
// caller-provided transaction, without locking or cache invalidation.
func RebuildCatalogTx(logger *logrus.Logger, tx *gorm.DB, businessId string, supplierId int) (*CatalogRebuildSummary, error) {

	summary := &CatalogRebuildSummary{
		BusinessId: businessId,
		SupplierId: supplierId,
		suppliers:  make(map[int]bool),
	}

	// 1. preserve certificate sub-records keyed by (supplier, product)
	certSnapshot, err := models.SnapshotCatalogCertificates(tx, businessId, supplierId)
	if err != nil {
		return nil, err
	}

	// 2. destructive reset, batched deletes
	deleted, err := models.DeleteCatalogEntries(tx, businessId, supplierId)
	if err != nil {
		return nil, err
	}
	summary.EntriesDeleted = deleted

	// 3. replay confirmed order history oldest-first
	orders, err := models.ListConfirmedOrdersForRebuild(tx, businessId, supplierId)
	if err != nil {
		return nil, err
	}

	seenEntries := make(map[models.CatalogKey]bool)

	for _, po := range orders {
		order := models.CatalogOrderContext{
			OrderId:      po.ID,
			OrderNumber:  po.OrderNumber,
			OrderDate:    po.OrderDate,
			CurrencyCode: po.CurrencyCode,
		}
		for _, detail := range po.Details {
			line := models.CatalogLineItem{
				ProductId: detail.ProductId,
				Name:      detail.Name,
				Unit:      detail.Unit,
				UnitPrice: detail.DetailUnitRate,
				Quantity:  detail.DetailQty,
			}
			entry, err := models.UpsertCatalogFromLineItem(tx, businessId, po.SupplierId, line, order)
			if err != nil {
				summary.LineItemErrors++
				config.LogError(logger, "workflow", "RebuildCatalogTx",
					"folding line item", map[string]interface{}{
						"order_id":  po.ID,
						"detail_id": detail.ID,
					}, err)
				continue
			}
			if entry == nil {
				// skipped: free-text line or non-positive rate
				continue
			}
			key := entry.Key()
			if seenEntries[key] {
				summary.EntriesUpdated++
			} else {
				seenEntries[key] = true
				summary.EntriesCreated++
			}
			summary.suppliers[po.SupplierId] = true
		}
		summary.OrdersProcessed++
	}
	summary.SuppliersTouched = len(summary.suppliers)

	// 4. merge preserved certificates back by business key
	restored, err := models.RestoreCatalogCertificates(tx, businessId, supplierId, certSnapshot)
	if err != nil {
		return nil, err
	}
	summary.CertificatesPreserved = restored

	return summary, nil
}

// RebuildCatalogAll rebuilds the catalog for every active business. Used by
// the maintenance binary.
func RebuildCatalogAll(logger *logrus.Logger) error {

	db := config.GetDB()
	var businessIds []string
	if err := db.Model(&models.Business{}).Where("is_active = 1").Pluck("id", &businessIds).Error; err != nil {
		return err
	}

	for _, businessId := range businessIds {
		if _, err := RebuildCatalog(logger, businessId, 0); err != nil {
			config.LogError(logger, "workflow", "RebuildCatalogAll", "rebuilding business", businessId, err)
			return err
		}
	}
	return nil
}
