package reports

import (
	"context"
	"errors"
	"fmt"

	"bitbucket.org/nordfoods/mrp_backend/config"
	"bitbucket.org/nordfoods/mrp_backend/models"
	"bitbucket.org/nordfoods/mrp_backend/utils"
	"github.com/xuri/excelize/v2"
)

// ExportSupplierCatalogExcel renders the supplier catalog (one supplier, or
// all when supplierId is 0) as a spreadsheet. The caller owns closing the
// returned file.
func ExportSupplierCatalogExcel(ctx context.Context, supplierId int) (*excelize.File, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	db := config.GetDB()
	var entries []*models.SupplierProduct
	dbCtx := db.WithContext(ctx).Where("business_id = ?", businessId)
	if supplierId > 0 {
		dbCtx = dbCtx.Where("supplier_id = ?", supplierId)
	}
	if err := dbCtx.Order("supplier_id, product_name").Find(&entries).Error; err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	sheetName := "Catalog"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		return nil, err
	}
	f.SetActiveSheet(index)
	f.DeleteSheet("Sheet1")

	headings := []string{
		"SupplierId", "ProductId", "ProductName", "Unit", "SupplierProductCode",
		"LastPrice", "AveragePrice", "MinPrice", "MaxPrice", "Currency",
		"TotalOrderedQty", "OrderCount", "LastOrderDate", "LastOrderNumber",
		"CertificateType", "CertificateNumber", "CertificateValidTo",
	}
	col := 'A'
	for _, h := range headings {
		f.SetCellValue(sheetName, string(col)+"1", h)
		col++
	}

	for i, e := range entries {
		row := fmt.Sprint(i + 2)
		lastOrderDate := ""
		if e.LastOrderDate != nil {
			lastOrderDate = e.LastOrderDate.Format("2006-01-02")
		}
		certType := ""
		if e.CertificateType != nil {
			certType = string(*e.CertificateType)
		}
		certValidTo := ""
		if e.CertificateValidTo != nil {
			certValidTo = e.CertificateValidTo.Format("2006-01-02")
		}
		values := []interface{}{
			e.SupplierId, e.ProductId, e.ProductName, e.Unit, e.SupplierProductCode,
			e.LastPrice.String(), e.AveragePrice.String(), e.MinPrice.String(), e.MaxPrice.String(), e.CurrencyCode,
			e.TotalOrderedQty.String(), e.OrderCount, lastOrderDate, e.LastPurchaseOrderNumber,
			certType, e.CertificateNumber, certValidTo,
		}
		col := 'A'
		for _, v := range values {
			f.SetCellValue(sheetName, string(col)+row, v)
			col++
		}
	}

	return f, nil
}
