package models_test

import (
	"fmt"
	"testing"
	"time"

	"bitbucket.org/nordfoods/mrp_backend/models"
	"github.com/shopspring/decimal"
)

// NOTE: These tests are intentionally DB-free. They validate the fold
// semantics of the catalog entry itself; persistence is covered by the
// docker-gated regression tests.

func lineItem(productId int, price, qty int64) models.CatalogLineItem {
	return models.CatalogLineItem{
		ProductId: productId,
		Name:      "Organic Rye Flour",
		Unit:      "kg",
		UnitPrice: decimal.NewFromInt(price),
		Quantity:  decimal.NewFromInt(qty),
	}
}

func orderContext(orderId int, day int) models.CatalogOrderContext {
	return models.CatalogOrderContext{
		OrderId:      orderId,
		OrderNumber:  fmt.Sprintf("PO-%04d", orderId),
		OrderDate:    time.Date(2026, 3, day, 0, 0, 0, 0, time.UTC),
		CurrencyCode: "EUR",
	}
}

func TestApplyLineItem_FirstFoldInitializesAllStatistics(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	entry := models.SupplierProduct{BusinessId: "biz-1", SupplierId: 7, ProductId: 3}

	entry.ApplyLineItem(lineItem(3, 10, 5), orderContext(1, 1), now)

	if entry.OrderCount != 1 {
		t.Fatalf("expected order count 1, got %d", entry.OrderCount)
	}
	for name, got := range map[string]decimal.Decimal{
		"last":    entry.LastPrice,
		"average": entry.AveragePrice,
		"min":     entry.MinPrice,
		"max":     entry.MaxPrice,
	} {
		if !got.Equal(decimal.NewFromInt(10)) {
			t.Fatalf("expected %s price 10 after first fold, got %s", name, got)
		}
	}
	if !entry.TotalOrderedQty.Equal(decimal.NewFromInt(5)) {
		t.Fatalf("expected total qty 5, got %s", entry.TotalOrderedQty)
	}
	if !entry.FirstSeenAt.Equal(now) {
		t.Fatalf("expected first seen %s, got %s", now, entry.FirstSeenAt)
	}
	if entry.LastOrderDate == nil || !entry.LastOrderDate.Equal(orderContext(1, 1).OrderDate) {
		t.Fatalf("expected last order date set from the order")
	}
}

func TestApplyLineItem_RunningStatisticsOverThreeOrders(t *testing.T) {
	now := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	entry := models.SupplierProduct{BusinessId: "biz-1", SupplierId: 7, ProductId: 3}

	// three confirmed orders: price 10 qty 5, price 12 qty 3, price 11 qty 2
	entry.ApplyLineItem(lineItem(3, 10, 5), orderContext(1, 1), now)
	entry.ApplyLineItem(lineItem(3, 12, 3), orderContext(2, 2), now)
	entry.ApplyLineItem(lineItem(3, 11, 2), orderContext(3, 3), now)

	if entry.OrderCount != 3 {
		t.Fatalf("expected order count 3, got %d", entry.OrderCount)
	}
	if !entry.TotalOrderedQty.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("expected total qty 10, got %s", entry.TotalOrderedQty)
	}
	if !entry.MinPrice.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("expected min 10, got %s", entry.MinPrice)
	}
	if !entry.MaxPrice.Equal(decimal.NewFromInt(12)) {
		t.Fatalf("expected max 12, got %s", entry.MaxPrice)
	}
	if !entry.LastPrice.Equal(decimal.NewFromInt(11)) {
		t.Fatalf("expected last 11, got %s", entry.LastPrice)
	}
	// (10*1 + 12)/2 = 11, (11*2 + 11)/3 = 11
	if !entry.AveragePrice.Equal(decimal.NewFromInt(11)) {
		t.Fatalf("expected average 11, got %s", entry.AveragePrice)
	}
	if entry.LastPurchaseOrderId != 3 {
		t.Fatalf("expected provenance from order 3, got %d", entry.LastPurchaseOrderId)
	}
}

func TestApplyLineItem_WeightedMeanIsOrderCountWeighted(t *testing.T) {
	now := time.Now().UTC()
	entry := models.SupplierProduct{}

	// quantities must not skew the mean: (100 + 10) / 2 regardless of qty
	entry.ApplyLineItem(lineItem(3, 100, 1000), orderContext(1, 1), now)
	entry.ApplyLineItem(lineItem(3, 10, 1), orderContext(2, 2), now)

	if !entry.AveragePrice.Equal(decimal.NewFromInt(55)) {
		t.Fatalf("expected average 55, got %s", entry.AveragePrice)
	}
}

func TestApplyLineItem_NegativeQuantityAddsNothing(t *testing.T) {
	now := time.Now().UTC()
	entry := models.SupplierProduct{}

	entry.ApplyLineItem(lineItem(3, 10, 5), orderContext(1, 1), now)
	line := lineItem(3, 12, 0)
	line.Quantity = decimal.NewFromInt(-4)
	entry.ApplyLineItem(line, orderContext(2, 2), now)

	if !entry.TotalOrderedQty.Equal(decimal.NewFromInt(5)) {
		t.Fatalf("expected total qty unchanged at 5, got %s", entry.TotalOrderedQty)
	}
	if entry.OrderCount != 2 {
		t.Fatalf("expected order count 2, got %d", entry.OrderCount)
	}
}

func TestApplyLineItem_EmptyDescriptiveFieldsDoNotOverwrite(t *testing.T) {
	now := time.Now().UTC()
	entry := models.SupplierProduct{}

	entry.ApplyLineItem(lineItem(3, 10, 5), orderContext(1, 1), now)

	line := models.CatalogLineItem{
		ProductId: 3,
		UnitPrice: decimal.NewFromInt(9),
		Quantity:  decimal.NewFromInt(1),
	}
	order := orderContext(2, 2)
	order.CurrencyCode = ""
	entry.ApplyLineItem(line, order, now)

	if entry.ProductName != "Organic Rye Flour" {
		t.Fatalf("expected product name preserved, got %q", entry.ProductName)
	}
	if entry.Unit != "kg" {
		t.Fatalf("expected unit preserved, got %q", entry.Unit)
	}
	if entry.CurrencyCode != "EUR" {
		t.Fatalf("expected currency preserved, got %q", entry.CurrencyCode)
	}
	// provenance still advances
	if entry.LastPurchaseOrderId != 2 {
		t.Fatalf("expected provenance from order 2, got %d", entry.LastPurchaseOrderId)
	}
}

func TestUpsertCatalogFromLineItem_SkipsUnlinkedAndUnpricedLines(t *testing.T) {
	order := orderContext(1, 1)

	// free-text line without a product id
	entry, err := models.UpsertCatalogFromLineItem(nil, "biz-1", 7, lineItem(0, 10, 5), order)
	if err != nil || entry != nil {
		t.Fatalf("expected (nil, nil) for missing product id, got (%v, %v)", entry, err)
	}

	// zero price
	entry, err = models.UpsertCatalogFromLineItem(nil, "biz-1", 7, lineItem(3, 0, 5), order)
	if err != nil || entry != nil {
		t.Fatalf("expected (nil, nil) for zero price, got (%v, %v)", entry, err)
	}

	// negative price
	line := lineItem(3, 0, 5)
	line.UnitPrice = decimal.NewFromInt(-2)
	entry, err = models.UpsertCatalogFromLineItem(nil, "biz-1", 7, line, order)
	if err != nil || entry != nil {
		t.Fatalf("expected (nil, nil) for negative price, got (%v, %v)", entry, err)
	}
}

func TestCertificateSnapshotRoundTrip(t *testing.T) {
	certType := models.CertificateTypeEco
	validFrom := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	validTo := time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)

	entry := models.SupplierProduct{
		SupplierId:           7,
		ProductId:            3,
		CertificateUnit:      "EcoCert PL-EKO-07",
		CertificateNumber:    "CERT-2026-0042",
		CertificateType:      &certType,
		CertificateValidFrom: &validFrom,
		CertificateValidTo:   &validTo,
		CertificateFileName:  "rye-flour-eco.pdf",
	}

	if !entry.HasCertificateData() {
		t.Fatalf("expected certificate data to be detected")
	}

	snapshot := entry.CertificateSnapshot()
	if snapshot.CertificateNumber != "CERT-2026-0042" || snapshot.CertificateType == nil ||
		*snapshot.CertificateType != models.CertificateTypeEco {
		t.Fatalf("snapshot lost certificate fields: %+v", snapshot)
	}

	blank := models.SupplierProduct{SupplierId: 7, ProductId: 3}
	if blank.HasCertificateData() {
		t.Fatalf("blank entry must not report certificate data")
	}
}

func TestParseCertificateType(t *testing.T) {
	for _, valid := range []string{"eco", "halal", "kosher", "vegan", "vege", "gmp", "iso", "other"} {
		if _, err := models.ParseCertificateType(valid); err != nil {
			t.Fatalf("expected %q to parse, got %v", valid, err)
		}
	}
	if _, err := models.ParseCertificateType("organic"); err == nil {
		t.Fatalf("expected unknown certificate type to be rejected")
	}
}
