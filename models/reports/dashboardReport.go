package reports

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/nordfoods/mrp_backend/config"
	"bitbucket.org/nordfoods/mrp_backend/models"
	"bitbucket.org/nordfoods/mrp_backend/utils"
	_ "github.com/go-sql-driver/mysql"
	"github.com/shopspring/decimal"
)

type DashboardResponse struct {
	SupplierCount       int64                    `json:"supplier_count"`
	ProductCount        int64                    `json:"product_count"`
	CatalogEntryCount   int64                    `json:"catalog_entry_count"`
	OpenOrderCount      int64                    `json:"open_order_count"`
	ExpiringCertificates int64                   `json:"expiring_certificates"`
	MonthlyPurchases    []MonthlyPurchaseDetails `json:"monthly_purchases"`
}

type MonthlyPurchaseDetails struct {
	Month          string          `json:"month"`
	OrderCount     int             `json:"order_count"`
	PurchaseAmount decimal.Decimal `json:"purchase_amount"`
}

// GetDashboardReport returns the landing-page summary: master data counts,
// certificates expiring within 30 days and a 12-month purchase series.
func GetDashboardReport(ctx context.Context) (*DashboardResponse, error) {
	started := time.Now()
	db := config.GetDB()

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	var result DashboardResponse
	cacheKey := "Report:Dashboard:" + businessId
	if reportCacheEnabled() {
		if found, err := cacheGet(cacheKey, &result); err == nil && found {
			return &result, nil
		}
	}

	if err := db.WithContext(ctx).Model(&models.Supplier{}).
		Where("business_id = ? AND is_active = 1", businessId).Count(&result.SupplierCount).Error; err != nil {
		return nil, err
	}
	if err := db.WithContext(ctx).Model(&models.Product{}).
		Where("business_id = ? AND is_active = 1", businessId).Count(&result.ProductCount).Error; err != nil {
		return nil, err
	}
	if err := db.WithContext(ctx).Model(&models.SupplierProduct{}).
		Where("business_id = ?", businessId).Count(&result.CatalogEntryCount).Error; err != nil {
		return nil, err
	}
	if err := db.WithContext(ctx).Model(&models.PurchaseOrder{}).
		Where("business_id = ? AND current_status = 'Confirmed'", businessId).Count(&result.OpenOrderCount).Error; err != nil {
		return nil, err
	}
	if err := db.WithContext(ctx).Model(&models.SupplierProduct{}).
		Where("business_id = ? AND certificate_valid_to IS NOT NULL AND certificate_valid_to BETWEEN NOW() AND DATE_ADD(NOW(), INTERVAL 30 DAY)", businessId).
		Count(&result.ExpiringCertificates).Error; err != nil {
		return nil, err
	}

	sql := `
SELECT
    DATE_FORMAT(po.order_date, '%Y-%m') month,
    COUNT(po.id) order_count,
    SUM(
        CASE
            WHEN po.currency_code <> 'EUR' THEN po.order_total_amount * po.exchange_rate
            ELSE po.order_total_amount
        END
    ) purchase_amount
FROM purchase_orders po
WHERE
    po.business_id = @businessId
    AND po.current_status IN ('Confirmed', 'Closed')
    AND po.order_date >= DATE_SUB(NOW(), INTERVAL 12 MONTH)
GROUP BY DATE_FORMAT(po.order_date, '%Y-%m')
ORDER BY month;
	`
	if err := db.WithContext(ctx).Raw(sql, map[string]interface{}{
		"businessId": businessId,
	}).Scan(&result.MonthlyPurchases).Error; err != nil {
		return nil, err
	}

	if reportCacheEnabled() {
		_ = cacheSet(cacheKey, &result, reportCacheTTL())
	}
	logSlowReport(ctx, "dashboard", started, nil)
	return &result, nil
}
