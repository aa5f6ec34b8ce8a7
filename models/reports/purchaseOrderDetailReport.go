package reports

import (
	"context"
	"time"

	"bitbucket.org/nordfoods/mrp_backend/config"
	"bitbucket.org/nordfoods/mrp_backend/models"
	"bitbucket.org/nordfoods/mrp_backend/utils"
	"github.com/shopspring/decimal"
)

type PurchaseOrderDetailResponse struct {
	OrderID        int             `json:"OrderId"`
	OrderNumber    string          `json:"OrderNumber"`
	OrderDate      time.Time       `json:"OrderDate"`
	CurrentStatus  string          `json:"CurrentStatus"`
	SupplierID     int             `json:"SupplierId"`
	SupplierName   *string         `json:"SupplierName,omitempty"`
	ProductID      int             `json:"ProductId"`
	ProductName    string          `json:"ProductName"`
	Unit           string          `json:"Unit"`
	DetailQty      decimal.Decimal `json:"DetailQty"`
	DetailUnitRate decimal.Decimal `json:"DetailUnitRate"`
	DetailTotal    decimal.Decimal `json:"DetailTotal"`
	CurrencyCode   string          `json:"CurrencyCode"`
}

// GetPurchaseOrderDetailReport lists order line items in a date range,
// newest orders first.
func GetPurchaseOrderDetailReport(ctx context.Context, fromDate models.MyDateString, toDate models.MyDateString, supplierId *int, status *string) ([]*PurchaseOrderDetailResponse, error) {
	started := time.Now()
	sqlT := `
SELECT
    po.id order_id,
    po.order_number,
    po.order_date,
    po.current_status,
    po.supplier_id,
    suppliers.name supplier_name,
    pod.product_id,
    pod.name product_name,
    pod.unit,
    pod.detail_qty,
    pod.detail_unit_rate,
    pod.detail_total_amount detail_total,
    po.currency_code
FROM
    purchase_order_details pod
    JOIN purchase_orders po ON po.id = pod.purchase_order_id
    LEFT JOIN suppliers ON suppliers.id = po.supplier_id
WHERE
	po.business_id = @businessId
	AND po.order_date BETWEEN @fromDate AND @toDate
	{{- if .supplierId }} AND po.supplier_id = @supplierId {{- end }}
	{{- if .status }} AND po.current_status = @status {{- end }}
ORDER BY po.order_date DESC, po.id DESC, pod.id;
	`
	var results []*PurchaseOrderDetailResponse
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
		"status":     utils.DereferencePtr(status, "") != "",
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
		"status":     status,
	}).Scan(&results).Error; err != nil {
		return nil, err
	}
	logSlowReport(ctx, "purchase_order_detail", started, nil)
	return results, nil
}
