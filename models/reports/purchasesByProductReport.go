package reports

import (
	"context"
	"time"

	"bitbucket.org/nordfoods/mrp_backend/config"
	"bitbucket.org/nordfoods/mrp_backend/models"
	"bitbucket.org/nordfoods/mrp_backend/utils"
	"github.com/shopspring/decimal"
)

type PurchasesByProductResponse struct {
	ProductID      int             `json:"ProductId"`
	ProductName    *string         `json:"ProductName,omitempty"`
	Unit           string          `json:"Unit"`
	OrderCount     int             `json:"OrderCount"`
	TotalQty       decimal.Decimal `json:"TotalQty"`
	TotalPurchases decimal.Decimal `json:"TotalPurchases"`
	MinUnitRate    decimal.Decimal `json:"MinUnitRate"`
	MaxUnitRate    decimal.Decimal `json:"MaxUnitRate"`
}

// GetPurchasesByProductReport aggregates confirmed and closed order line
// items per product. Free-text lines (no product id) are excluded.
func GetPurchasesByProductReport(ctx context.Context, fromDate models.MyDateString, toDate models.MyDateString, supplierId *int) ([]*PurchasesByProductResponse, error) {
	started := time.Now()
	sqlT := `
WITH LineTotals AS (
    select
        pod.product_id,
        count(DISTINCT po.id) order_count,
        sum(pod.detail_qty) total_qty,
        sum(
            (
                CASE
                    WHEN po.currency_code <> 'EUR' THEN pod.detail_total_amount * po.exchange_rate
                    ELSE pod.detail_total_amount
                END
            )
        ) adjustedAmount,
        min(pod.detail_unit_rate) min_unit_rate,
        max(pod.detail_unit_rate) max_unit_rate
    from
        purchase_order_details pod
        JOIN purchase_orders po ON po.id = pod.purchase_order_id
    WHERE
		po.business_id = @businessId
        AND po.current_status IN ('Confirmed', 'Closed')
		AND po.order_date BETWEEN @fromDate AND @toDate
		AND pod.product_id > 0
		{{- if .supplierId }} AND po.supplier_id = @supplierId {{- end }}
    GROUP BY
        pod.product_id
)
SELECT
    products.name product_name,
    products.unit,
    lt.product_id,
    lt.order_count,
    lt.total_qty,
    lt.adjustedAmount total_purchases,
    lt.min_unit_rate,
    lt.max_unit_rate
from
    LineTotals lt
    LEFT JOIN products ON products.id = lt.product_id
ORDER BY products.name;
	`
	var results []*PurchasesByProductResponse
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
	logSlowReport(ctx, "purchases_by_product", started, nil)
	return results, nil
}
