package models_test

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"strings"
	"testing"
	"time"

	"cloud.google.com/go/storage"

	"bitbucket.org/nordfoods/mrp_backend/config"
	"bitbucket.org/nordfoods/mrp_backend/models"
	"bitbucket.org/nordfoods/mrp_backend/utils"
)

// Regression: a certificate file replacement must keep the previous stored
// object until the new locator is committed; a failed replacement must leave
// both the entry and the old object untouched. Also covers the standalone
// upload endpoints, attachment lookup and the audit trail written by
// supplier/product commands.
func TestCertificateFilesUploadsAndAuditTrail(t *testing.T) {
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}

	ctx := context.Background()

	redisName, redisPort := startRedisContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(redisName) })

	mysqlName, mysqlPort := startMySQLContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(mysqlName) })

	gcsName, gcsPort := startFakeGCSContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(gcsName) })

	t.Setenv("REDIS_ADDRESS", fmt.Sprintf("127.0.0.1:%s", redisPort))
	t.Setenv("DB_USER", "root")
	t.Setenv("DB_PASSWORD", "testpw")
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_PORT", mysqlPort)
	t.Setenv("DB_NAME", "nordfoods_test")
	t.Setenv("TOKEN_HOUR_LIFESPAN", "24")
	t.Setenv("STORAGE_EMULATOR_HOST", fmt.Sprintf("127.0.0.1:%s", gcsPort))
	t.Setenv("GCS_BUCKET", "mrp-test-bucket")
	t.Setenv("GCS_URL", "storage.googleapis.test")

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	models.MigrateTable()
	createTestBucket(t, ctx, "mrp-test-bucket")

	ctx = utils.SetUserIdInContext(ctx, 1)
	ctx = utils.SetUserNameInContext(ctx, "Test")
	ctx = utils.SetUsernameInContext(ctx, "test@local")

	biz, err := models.CreateBusiness(ctx, &models.NewBusiness{
		Name:     "Cert Files Co",
		Email:    "owner@certfiles.test",
		Timezone: "Europe/Warsaw",
	})
	if err != nil {
		t.Fatalf("CreateBusiness: %v", err)
	}
	businessID := biz.ID.String()
	ctx = utils.SetBusinessIdInContext(ctx, businessID)

	supplier, err := models.CreateSupplier(ctx, &models.NewSupplier{
		Name:                 "Baltic Organics",
		CurrencyCode:         "EUR",
		SupplierPaymentTerms: models.PaymentTermsNet30,
	})
	if err != nil {
		t.Fatalf("CreateSupplier: %v", err)
	}

	product, err := models.CreateProduct(ctx, &models.NewProduct{
		Name: "Cold Pressed Rapeseed Oil",
		Sku:  "OIL-001",
		Unit: "l",
	})
	if err != nil {
		t.Fatalf("CreateProduct: %v", err)
	}

	// supplier/product commands must leave an audit trail
	suppliersRef := "suppliers"
	histories, err := models.GetHistories(ctx, &supplier.ID, &suppliersRef, nil)
	if err != nil {
		t.Fatalf("GetHistories(suppliers): %v", err)
	}
	if len(histories) != 1 || histories[0].ActionType != "CREATE" {
		t.Fatalf("expected one CREATE history row for the supplier, got %+v", histories)
	}
	if _, err := models.UpdateSupplier(ctx, supplier.ID, &models.NewSupplier{
		Name:                 "Baltic Organics Sp. z o.o.",
		CurrencyCode:         "EUR",
		SupplierPaymentTerms: models.PaymentTermsNet30,
	}); err != nil {
		t.Fatalf("UpdateSupplier: %v", err)
	}
	histories, err = models.GetHistories(ctx, &supplier.ID, &suppliersRef, nil)
	if err != nil {
		t.Fatalf("GetHistories(suppliers, after update): %v", err)
	}
	if len(histories) != 2 {
		t.Fatalf("expected CREATE and UPDATE history rows, got %d", len(histories))
	}
	productsRef := "products"
	histories, err = models.GetHistories(ctx, &product.ID, &productsRef, nil)
	if err != nil {
		t.Fatalf("GetHistories(products): %v", err)
	}
	if len(histories) != 1 || histories[0].ActionType != "CREATE" {
		t.Fatalf("expected one CREATE history row for the product, got %+v", histories)
	}

	// manual notes share the same trail
	note, err := models.CreateManualHistory(ctx, &models.NewHistory{
		BusinessId:    businessID,
		ActionType:    "NOTE",
		Description:   "supplier audit scheduled",
		ReferenceID:   supplier.ID,
		ReferenceType: "suppliers",
		UserId:        1,
		UserName:      "Test",
	})
	if err != nil {
		t.Fatalf("CreateManualHistory: %v", err)
	}
	fetched, err := models.GetHistory(ctx, note.ID)
	if err != nil || fetched.Description != "supplier audit scheduled" {
		t.Fatalf("GetHistory(%d): %+v, %v", note.ID, fetched, err)
	}
	if _, err := models.DeleteHistory(ctx, note.ID); err != nil {
		t.Fatalf("DeleteHistory: %v", err)
	}
	if _, err := models.GetHistory(ctx, note.ID); err == nil {
		t.Fatalf("expected deleted history row to be gone")
	}

	// admin-wide dropdown projection
	allBusinesses, err := models.ListAllBusiness(ctx)
	if err != nil {
		t.Fatalf("ListAllBusiness: %v", err)
	}
	found := false
	for _, b := range allBusinesses {
		if b.Name == "Cert Files Co" {
			found = true
		}
	}
	if !found {
		t.Fatalf("ListAllBusiness missing the created business: %+v", allBusinesses)
	}

	// a catalog entry to hang certificate files on
	db := config.GetDB()
	entry := &models.SupplierProduct{
		BusinessId:   businessID,
		SupplierId:   supplier.ID,
		ProductId:    product.ID,
		ProductName:  product.Name,
		Unit:         "l",
		CurrencyCode: "EUR",
		FirstSeenAt:  time.Now().UTC(),
	}
	if err := db.Create(entry).Error; err != nil {
		t.Fatalf("creating catalog entry: %v", err)
	}

	pdf := []byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\ntrailer\n<< >>\n%%EOF\n")
	attach := func(filename string) (*models.SupplierProduct, error) {
		return models.AttachCertificateFile(ctx, entry.ID,
			filename, "application/pdf", int64(len(pdf)), bytes.NewReader(pdf))
	}
	mustObject := func(label, objectName string, want bool) {
		t.Helper()
		ok, err := utils.ObjectExistsInGCS(ctx, objectName)
		if err != nil {
			t.Fatalf("%s: ObjectExistsInGCS(%s): %v", label, objectName, err)
		}
		if ok != want {
			t.Fatalf("%s: object %q exists=%v, want %v", label, objectName, ok, want)
		}
	}
	currentEntry := func(label string) *models.SupplierProduct {
		t.Helper()
		var current models.SupplierProduct
		if err := db.First(&current, entry.ID).Error; err != nil {
			t.Fatalf("%s: reloading entry: %v", label, err)
		}
		return &current
	}

	attached, err := attach("organic-cert.pdf")
	if err != nil {
		t.Fatalf("AttachCertificateFile: %v", err)
	}
	firstObject := attached.CertificateStoragePath
	if firstObject == "" {
		t.Fatalf("expected a storage path on the entry")
	}
	mustObject("first upload", firstObject, true)

	// a replacement whose database update fails (file name exceeds the column)
	// must keep both the old object and the old locator
	oversized := strings.Repeat("a", 300) + ".pdf"
	if _, err := attach(oversized); err == nil {
		t.Fatalf("expected the oversized file name to be rejected by the database")
	}
	mustObject("after failed replacement", firstObject, true)
	current := currentEntry("after failed replacement")
	if current.CertificateStoragePath != firstObject {
		t.Fatalf("failed replacement moved the locator: %q -> %q", firstObject, current.CertificateStoragePath)
	}
	if current.CertificateFileName != "organic-cert.pdf" {
		t.Fatalf("failed replacement changed the file name: %q", current.CertificateFileName)
	}

	// a successful replacement drops the old object only after the commit
	replaced, err := attach("renewed-cert.pdf")
	if err != nil {
		t.Fatalf("AttachCertificateFile(replacement): %v", err)
	}
	secondObject := replaced.CertificateStoragePath
	if secondObject == "" || secondObject == firstObject {
		t.Fatalf("expected a new storage path, got %q", secondObject)
	}
	mustObject("replaced object", secondObject, true)
	mustObject("old object after replacement", firstObject, false)

	if _, err := models.RemoveCertificateFile(ctx, entry.ID); err != nil {
		t.Fatalf("RemoveCertificateFile: %v", err)
	}
	mustObject("after remove", secondObject, false)
	if cleared := currentEntry("after remove"); cleared.CertificateStoragePath != "" {
		t.Fatalf("expected cleared file fields, got %+v", cleared)
	}

	// standalone image upload + removal
	var pngBuf bytes.Buffer
	if err := png.Encode(&pngBuf, image.NewRGBA(image.Rect(0, 0, 8, 8))); err != nil {
		t.Fatalf("encoding test image: %v", err)
	}
	imageResp, err := models.UploadSingleImage(ctx, "label-photo.png", bytes.NewReader(pngBuf.Bytes()))
	if err != nil {
		t.Fatalf("UploadSingleImage: %v", err)
	}
	if imageResp.ImageUrl == "" || imageResp.ThumbnailUrl == "" {
		t.Fatalf("expected image and thumbnail urls, got %+v", imageResp)
	}
	urlPrefix := "https://storage.googleapis.test/mrp-test-bucket/"
	imageObject := strings.TrimPrefix(imageResp.ImageUrl, urlPrefix)
	mustObject("uploaded image", imageObject, true)
	if _, err := models.RemoveImage(ctx, imageResp.ImageUrl); err != nil {
		t.Fatalf("RemoveImage: %v", err)
	}
	mustObject("removed image", imageObject, false)

	// standalone document upload + removal
	fileResp, err := models.UploadSingleFile(ctx, "delivery-terms.pdf", bytes.NewReader(pdf))
	if err != nil {
		t.Fatalf("UploadSingleFile: %v", err)
	}
	fileObject := strings.TrimPrefix(fileResp.ImageUrl, urlPrefix)
	mustObject("uploaded file", fileObject, true)
	if _, err := models.RemoveFile(ctx, fileResp.ImageUrl); err != nil {
		t.Fatalf("RemoveFile: %v", err)
	}
	mustObject("removed file", fileObject, false)

	// attachments stay fetchable through the tenant-checked lookup
	doc, err := models.CreateAttachment(ctx, "supply-terms.pdf", bytes.NewReader(pdf), "suppliers", supplier.ID)
	if err != nil {
		t.Fatalf("CreateAttachment: %v", err)
	}
	gotDoc, err := models.GetDocument(ctx, doc.ID)
	if err != nil {
		t.Fatalf("GetDocument: %v", err)
	}
	if gotDoc.DocumentUrl != doc.DocumentUrl {
		t.Fatalf("GetDocument url mismatch: %q != %q", gotDoc.DocumentUrl, doc.DocumentUrl)
	}
}

func createTestBucket(t *testing.T, ctx context.Context, bucket string) {
	t.Helper()
	client, err := storage.NewClient(ctx)
	if err != nil {
		t.Fatalf("storage client: %v", err)
	}
	defer client.Close()

	deadline := time.Now().Add(60 * time.Second)
	for {
		err := client.Bucket(bucket).Create(ctx, "test-project", nil)
		if err == nil {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("creating bucket %q: %v", bucket, err)
		}
		time.Sleep(250 * time.Millisecond)
	}
}

func startFakeGCSContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("mrp-test-gcs-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-p", "127.0.0.1:0:4443",
		"fsouza/fake-gcs-server",
		"-scheme", "http",
	)
	if err != nil {
		t.Fatalf("start fake gcs container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "4443/tcp")
	if err != nil {
		t.Fatalf("fake gcs docker port: %v", err)
	}
	return name, port
}
