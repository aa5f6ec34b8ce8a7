package reports

import (
	"context"
	"fmt"
	"time"

	"bitbucket.org/nordfoods/mrp_backend/config"
	"bitbucket.org/nordfoods/mrp_backend/models"
	"bitbucket.org/nordfoods/mrp_backend/utils"
	"github.com/shopspring/decimal"
)

type PurchasesBySupplierResponse struct {
	SupplierID     int             `json:"SupplierId"`
	SupplierName   *string         `json:"SupplierName,omitempty"`
	OrderCount     int             `json:"OrderCount"`
	TotalPurchases decimal.Decimal `json:"TotalPurchases"`
}

// GetPurchasesBySupplierReport sums confirmed and closed purchase orders per
// supplier. Foreign-currency orders are converted with the order's own
// exchange rate.
func GetPurchasesBySupplierReport(ctx context.Context, fromDate models.MyDateString, toDate models.MyDateString, supplierId *int) ([]*PurchasesBySupplierResponse, error) {
	started := time.Now()
	sqlT := `
WITH OrderTotals AS (
    select
        po.supplier_id,
        count(po.id) order_count,
        sum(
            (
                CASE
                    WHEN po.currency_code <> 'EUR' THEN po.order_total_amount * po.exchange_rate
                    ELSE po.order_total_amount
                END
            )
        ) adjustedAmount
    from
        purchase_orders po
    WHERE
		po.business_id = @businessId
        AND po.current_status IN ('Confirmed', 'Closed')
		AND po.order_date BETWEEN @fromDate AND @toDate
		{{- if .supplierId }} AND po.supplier_id = @supplierId {{- end }}
    GROUP BY
        supplier_id
)
SELECT
    suppliers.name supplier_name,
    ot.supplier_id,
    ot.order_count,
    ot.adjustedAmount total_purchases
from
    OrderTotals ot
    LEFT JOIN suppliers ON suppliers.id = ot.supplier_id
ORDER BY suppliers.name;
	`
	var results []*PurchasesBySupplierResponse
	business, err := models.GetBusiness(ctx)
	if err != nil {
		return nil, err
	}
	if err := fromDate.StartOfDayUTCTime(business.Timezone); err != nil {
		return nil, err
	}
	if err := toDate.EndOfDayUTCTime(business.Timezone); err != nil {
		return nil, err
	}

	cacheKey := fmt.Sprintf("Report:PurchasesBySupplier:%s:%v:%v:%d",
		business.ID, time.Time(fromDate).Unix(), time.Time(toDate).Unix(), utils.DereferencePtr(supplierId, 0))
	if reportCacheEnabled() {
		if found, err := cacheGet(cacheKey, &results); err == nil && found {
			return results, nil
		}
	}

	sql, err := utils.ExecTemplate(sqlT, map[string]interface{}{
		"supplierId": utils.DereferencePtr(supplierId, 0) > 0,
	})
	if err != nil {
		return nil, err
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Raw(sql, map[string]interface{}{
		"businessId": business.ID,
		"fromDate":   fromDate,
		"toDate":     toDate,
		"supplierId": supplierId,
	}).Scan(&results).Error; err != nil {
		return nil, err
	}

	if reportCacheEnabled() {
		_ = cacheSet(cacheKey, results, reportCacheTTL())
	}
	logSlowReport(ctx, "purchases_by_supplier", started, nil)
	return results, nil
}
