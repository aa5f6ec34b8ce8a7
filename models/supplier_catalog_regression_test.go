package models_test

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"testing"
	"time"

	"bitbucket.org/nordfoods/mrp_backend/config"
	"bitbucket.org/nordfoods/mrp_backend/models"
	"bitbucket.org/nordfoods/mrp_backend/utils"
	"bitbucket.org/nordfoods/mrp_backend/workflow"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Regression: the catalog must fold confirmed orders exactly once per
// delivery, survive a destructive rebuild without losing certificates, and
// reconcile cancelled orders on rebuild.
func TestSupplierCatalog_FoldRebuildAndCertificates(t *testing.T) {
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}

	ctx := context.Background()

	redisName, redisPort := startRedisContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(redisName) })

	mysqlName, mysqlPort := startMySQLContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(mysqlName) })

	t.Setenv("REDIS_ADDRESS", fmt.Sprintf("127.0.0.1:%s", redisPort))
	t.Setenv("DB_USER", "root")
	t.Setenv("DB_PASSWORD", "testpw")
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_PORT", mysqlPort)
	t.Setenv("DB_NAME", "nordfoods_test")
	t.Setenv("TOKEN_HOUR_LIFESPAN", "24")

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	models.MigrateTable()

	ctx = utils.SetUserIdInContext(ctx, 1)
	ctx = utils.SetUserNameInContext(ctx, "Test")
	ctx = utils.SetUsernameInContext(ctx, "test@local")

	biz, err := models.CreateBusiness(ctx, &models.NewBusiness{
		Name:     "Catalog Rebuild Co",
		Email:    "owner@catalog.test",
		Timezone: "Europe/Warsaw",
	})
	if err != nil {
		t.Fatalf("CreateBusiness: %v", err)
	}
	businessID := biz.ID.String()
	ctx = utils.SetBusinessIdInContext(ctx, businessID)

	supplier, err := models.CreateSupplier(ctx, &models.NewSupplier{
		Name:                 "Mazury Mills",
		CurrencyCode:         "EUR",
		SupplierPaymentTerms: models.PaymentTermsNet30,
	})
	if err != nil {
		t.Fatalf("CreateSupplier: %v", err)
	}

	flour, err := models.CreateProduct(ctx, &models.NewProduct{
		Name: "Organic Rye Flour",
		Sku:  "RYE-001",
		Unit: "kg",
	})
	if err != nil {
		t.Fatalf("CreateProduct: %v", err)
	}

	logger := logrus.New()

	detail := func(price, qty int64) models.NewPurchaseOrderDetail {
		return models.NewPurchaseOrderDetail{
			ProductId:      flour.ID,
			Name:           flour.Name,
			Unit:           "kg",
			DetailQty:      decimal.NewFromInt(qty),
			DetailUnitRate: decimal.NewFromInt(price),
		}
	}

	confirmOrder := func(day int, details ...models.NewPurchaseOrderDetail) *models.PurchaseOrder {
		t.Helper()
		po, err := models.CreatePurchaseOrder(ctx, &models.NewPurchaseOrder{
			SupplierId:        supplier.ID,
			OrderDate:         time.Date(2026, 3, day, 0, 0, 0, 0, time.UTC),
			OrderPaymentTerms: models.PaymentTermsNet30,
			CurrencyCode:      "EUR",
			ExchangeRate:      decimal.NewFromInt(1),
			CurrentStatus:     models.PurchaseOrderStatusConfirmed,
			Details:           details,
		})
		if err != nil {
			t.Fatalf("CreatePurchaseOrder(day=%d): %v", day, err)
		}
		drainConfirmEvent(t, ctx, logger, businessID, po.ID)
		return po
	}

	// three confirmed orders: price 10 qty 5, price 12 qty 3, price 11 qty 2;
	// the last order also carries a free-text line and a zero-rate line that
	// must never reach the catalog
	confirmOrder(1, detail(10, 5))
	confirmOrder(2, detail(12, 3))
	po3 := confirmOrder(3,
		detail(11, 2),
		models.NewPurchaseOrderDetail{
			Name:           "Pallet deposit",
			DetailQty:      decimal.NewFromInt(1),
			DetailUnitRate: decimal.NewFromInt(25),
		},
		models.NewPurchaseOrderDetail{
			ProductId:      flour.ID,
			Name:           flour.Name,
			Unit:           "kg",
			DetailQty:      decimal.NewFromInt(4),
			DetailUnitRate: decimal.Zero,
		},
	)

	// a draft never contributes
	if _, err := models.CreatePurchaseOrder(ctx, &models.NewPurchaseOrder{
		SupplierId:        supplier.ID,
		OrderDate:         time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC),
		OrderPaymentTerms: models.PaymentTermsNet30,
		CurrencyCode:      "EUR",
		CurrentStatus:     models.PurchaseOrderStatusDraft,
		Details:           []models.NewPurchaseOrderDetail{detail(99, 1)},
	}); err != nil {
		t.Fatalf("CreatePurchaseOrder(draft): %v", err)
	}

	assertStats := func(label string) *models.SupplierProduct {
		t.Helper()
		entries, err := models.GetSupplierProducts(ctx, supplier.ID)
		if err != nil {
			t.Fatalf("%s: GetSupplierProducts: %v", label, err)
		}
		if len(entries) != 1 {
			t.Fatalf("%s: expected 1 catalog entry, got %d", label, len(entries))
		}
		e := entries[0]
		if e.OrderCount != 3 {
			t.Fatalf("%s: expected order count 3, got %d", label, e.OrderCount)
		}
		if !e.TotalOrderedQty.Equal(decimal.NewFromInt(10)) {
			t.Fatalf("%s: expected total qty 10, got %s", label, e.TotalOrderedQty)
		}
		if !e.MinPrice.Equal(decimal.NewFromInt(10)) || !e.MaxPrice.Equal(decimal.NewFromInt(12)) {
			t.Fatalf("%s: expected min 10 max 12, got %s/%s", label, e.MinPrice, e.MaxPrice)
		}
		if !e.LastPrice.Equal(decimal.NewFromInt(11)) {
			t.Fatalf("%s: expected last price 11, got %s", label, e.LastPrice)
		}
		if !e.AveragePrice.Equal(decimal.NewFromInt(11)) {
			t.Fatalf("%s: expected average 11, got %s", label, e.AveragePrice)
		}
		if e.LastPurchaseOrderId != po3.ID {
			t.Fatalf("%s: expected provenance from order %d, got %d", label, po3.ID, e.LastPurchaseOrderId)
		}
		return e
	}

	entry := assertStats("after confirmations")

	// at-least-once delivery: re-delivering the last confirm event must not
	// double-count
	drainConfirmEvent(t, ctx, logger, businessID, po3.ID)
	assertStats("after duplicate delivery")

	// certificate sub-record lives independently of the statistics
	certType := string(models.CertificateTypeEco)
	validFrom := models.MyDateString(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	validTo := models.MyDateString(time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC))
	if _, err := models.UpdateProductCertificate(ctx, entry.ID, &models.NewProductCertificate{
		CertificateUnit:      "EcoCert PL-EKO-07",
		CertificateNumber:    "CERT-2026-0042",
		CertificateType:      &certType,
		CertificateValidFrom: &validFrom,
		CertificateValidTo:   &validTo,
	}); err != nil {
		t.Fatalf("UpdateProductCertificate: %v", err)
	}

	// destructive rebuild replays history and merges certificates back
	summary, err := workflow.RebuildCatalog(logger, businessID, 0)
	if err != nil {
		t.Fatalf("RebuildCatalog: %v", err)
	}
	if summary.EntriesDeleted != 1 || summary.EntriesCreated != 1 {
		t.Fatalf("expected 1 deleted / 1 created, got %d/%d", summary.EntriesDeleted, summary.EntriesCreated)
	}
	if summary.OrdersProcessed != 3 {
		t.Fatalf("expected 3 orders replayed, got %d", summary.OrdersProcessed)
	}
	if summary.CertificatesPreserved != 1 {
		t.Fatalf("expected 1 certificate preserved, got %d", summary.CertificatesPreserved)
	}
	if summary.LineItemErrors != 0 {
		t.Fatalf("expected no line item errors, got %d", summary.LineItemErrors)
	}

	rebuilt := assertStats("after rebuild")
	if rebuilt.CertificateNumber != "CERT-2026-0042" {
		t.Fatalf("certificate lost on rebuild: %+v", rebuilt)
	}
	if rebuilt.CertificateType == nil || *rebuilt.CertificateType != models.CertificateTypeEco {
		t.Fatalf("certificate type lost on rebuild")
	}

	// rebuild is idempotent
	again, err := workflow.RebuildCatalog(logger, businessID, 0)
	if err != nil {
		t.Fatalf("RebuildCatalog(second): %v", err)
	}
	if again.EntriesCreated != 1 || again.CertificatesPreserved != 1 {
		t.Fatalf("second rebuild diverged: %+v", again)
	}
	assertStats("after second rebuild")

	// cancelling a confirmed order leaves live stats alone until the next
	// rebuild reconciles them away
	po4 := confirmOrder(5, detail(99, 7))
	if _, err := models.UpdateStatusPurchaseOrder(ctx, po4.ID, string(models.PurchaseOrderStatusCancelled)); err != nil {
		t.Fatalf("UpdateStatusPurchaseOrder(cancel): %v", err)
	}
	if _, err := workflow.RebuildCatalog(logger, businessID, 0); err != nil {
		t.Fatalf("RebuildCatalog(after cancel): %v", err)
	}
	reconciled := assertStats("after cancelling order 4 and rebuilding")
	if reconciled.MaxPrice.Equal(decimal.NewFromInt(99)) {
		t.Fatalf("cancelled order leaked into rebuilt catalog")
	}
}

func drainConfirmEvent(t *testing.T, ctx context.Context, logger *logrus.Logger, businessID string, orderId int) {
	t.Helper()
	db := config.GetDB()
	var rec models.PubSubMessageRecord
	err := db.WithContext(ctx).
		Where("business_id = ? AND reference_type = ? AND reference_id = ? AND action = ?",
			businessID, models.OrderReferenceTypePurchaseOrder, orderId, models.PubSubMessageActionConfirm).
		Order("id DESC").
		First(&rec).Error
	if err != nil {
		t.Fatalf("expected confirm outbox record for order %d: %v", orderId, err)
	}
	if err := workflow.ProcessMessage(ctx, logger, models.ConvertToPubSubMessage(rec)); err != nil {
		t.Fatalf("ProcessMessage(order=%d): %v", orderId, err)
	}
}

func startRedisContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("mrp-test-redis-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-p", "127.0.0.1:0:6379",
		"redis:7-alpine",
	)
	if err != nil {
		t.Fatalf("start redis container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "6379/tcp")
	if err != nil {
		t.Fatalf("redis docker port: %v", err)
	}
	// wait until ready
	deadline := time.Now().Add(60 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "redis-cli", "ping")
		if err == nil {
			return name, port
		}
		time.Sleep(250 * time.Millisecond)
	}
	t.Fatalf("redis did not become ready")
	return "", ""
}

func startMySQLContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("mrp-test-mysql-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-e", "MYSQL_ROOT_PASSWORD=testpw",
		"-e", "MYSQL_DATABASE=nordfoods_test",
		"-p", "127.0.0.1:0:3306",
		"mysql:8.0",
		"--default-authentication-plugin=mysql_native_password",
	)
	if err != nil {
		t.Fatalf("start mysql container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "3306/tcp")
	if err != nil {
		t.Fatalf("mysql docker port: %v", err)
	}
	// wait until ready
	deadline := time.Now().Add(120 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "mysqladmin", "ping", "-h", "127.0.0.1", "-ptestpw", "--silent")
		if err == nil {
			return name, port
		}
		time.Sleep(500 * time.Millisecond)
	}
	t.Fatalf("mysql did not become ready")
	return "", ""
}

func dockerHostPort(container, portProto string) (string, error) {
	out, err := dockerRun("port", container, portProto)
	if err != nil {
		return "", fmt.Errorf("docker port: %w: %s", err, out)
	}
	re := regexp.MustCompile(`:(\d+)`)
	m := re.FindStringSubmatch(out)
	if len(m) != 2 {
		return "", fmt.Errorf("unexpected docker port output: %q", out)
	}
	return m[1], nil
}

func dockerRmForce(container string) error {
	if strings.TrimSpace(container) == "" {
		return nil
	}
	_, err := dockerRun("rm", "-f", container)
	return err
}

func dockerRun(args ...string) (string, error) {
	cmd := exec.Command("docker", args...)
	b, err := cmd.CombinedOutput()
	return string(b), err
}
