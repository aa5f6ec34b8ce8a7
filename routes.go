package main

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"bitbucket.org/nordfoods/mrp_backend/middlewares"
	"bitbucket.org/nordfoods/mrp_backend/models"
	"bitbucket.org/nordfoods/mrp_backend/models/reports"
	"bitbucket.org/nordfoods/mrp_backend/utils"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// registerRoutes wires the REST API. All /api routes require a session
// token; /api/admin additionally requires the admin role.
func registerRoutes(r *gin.Engine) {

	r.POST("/auth/login", loginHandler)
	r.POST("/auth/logout", logoutHandler)

	// Direct-to-bucket upload flow (session checked inside the handlers).
	r.POST("/uploads/sign", signUploadHandler())
	r.POST("/uploads/complete", completeUploadHandler())
	r.GET("/uploads/object", uploadObjectHandler())

	api := r.Group("/api", middlewares.Authorize())
	{
		api.POST("/auth/change-password", changePasswordHandler)

		api.GET("/business", getBusinessHandler)
		api.PUT("/business", updateBusinessHandler)
		api.POST("/business/transaction-locking", updateTransactionLockingHandler)
		api.GET("/business/transaction-locking", getTransactionLockingHandler)

		api.POST("/suppliers", createSupplierHandler)
		api.GET("/suppliers", listSuppliersHandler)
		api.GET("/suppliers/paginate", paginateSuppliersHandler)
		api.GET("/suppliers/:id", getSupplierHandler)
		api.PUT("/suppliers/:id", updateSupplierHandler)
		api.DELETE("/suppliers/:id", deleteSupplierHandler)
		api.PATCH("/suppliers/:id/active", toggleActiveSupplierHandler)
		api.GET("/suppliers/:id/products", getSupplierProductsHandler)

		api.POST("/products", createProductHandler)
		api.GET("/products", listProductsHandler)
		api.GET("/products/paginate", paginateProductsHandler)
		api.GET("/products/:id", getProductHandler)
		api.PUT("/products/:id", updateProductHandler)
		api.DELETE("/products/:id", deleteProductHandler)
		api.PATCH("/products/:id/active", toggleActiveProductHandler)
		api.GET("/products/:id/suppliers", getProductSuppliersHandler)

		api.POST("/purchase-orders", createPurchaseOrderHandler)
		api.GET("/purchase-orders", listPurchaseOrdersHandler)
		api.GET("/purchase-orders/paginate", paginatePurchaseOrdersHandler)
		api.GET("/purchase-orders/:id", getPurchaseOrderHandler)
		api.PUT("/purchase-orders/:id", updatePurchaseOrderHandler)
		api.DELETE("/purchase-orders/:id", deletePurchaseOrderHandler)
		api.PATCH("/purchase-orders/:id/status", updateStatusPurchaseOrderHandler)
		api.GET("/purchase-orders/:id/outbox", getPurchaseOrderOutboxHandler)
		api.POST("/purchase-orders/:id/outbox/reprocess", reprocessPurchaseOrderOutboxHandler)

		api.POST("/cmrs", createCmrHandler)
		api.GET("/cmrs", listCmrsHandler)
		api.GET("/cmrs/paginate", paginateCmrsHandler)
		api.GET("/cmrs/:id", getCmrHandler)
		api.PUT("/cmrs/:id", updateCmrHandler)
		api.DELETE("/cmrs/:id", deleteCmrHandler)
		api.PATCH("/cmrs/:id/status", updateStatusCmrHandler)

		api.GET("/catalog/:id", getCatalogEntryHandler)
		api.PUT("/catalog/:id/certificate", updateProductCertificateHandler)
		api.POST("/catalog/:id/certificate/file", attachCertificateFileHandler)
		api.DELETE("/catalog/:id/certificate/file", removeCertificateFileHandler)

		api.POST("/documents", createAttachmentHandler)
		api.GET("/documents/:id", getAttachmentHandler)
		api.DELETE("/documents/:id", deleteAttachmentHandler)

		// standalone uploads, referenced later via document/image inputs
		api.POST("/files/images", uploadImageHandler)
		api.DELETE("/files/images", removeImageHandler)
		api.POST("/files/documents", uploadFileHandler)
		api.DELETE("/files/documents", removeFileHandler)

		api.GET("/histories", listHistoriesHandler)
		api.POST("/histories", createManualHistoryHandler)
		api.GET("/histories/paginate", paginateHistoriesHandler)
		api.GET("/histories/:id", getHistoryHandler)

		api.GET("/reports/dashboard", dashboardReportHandler)
		api.GET("/reports/purchases-by-supplier", purchasesBySupplierReportHandler)
		api.GET("/reports/purchases-by-product", purchasesByProductReportHandler)
		api.GET("/reports/purchase-order-details", purchaseOrderDetailReportHandler)
		api.GET("/reports/supplier-catalog/export", exportSupplierCatalogHandler)

		admin := api.Group("/admin", middlewares.AdminOnly())
		{
			admin.POST("/businesses", createBusinessHandler)
			admin.GET("/businesses", listBusinessesHandler)
			admin.GET("/businesses/all", listAllBusinessesHandler)
			admin.PATCH("/businesses/:id/active", toggleActiveBusinessHandler)
			admin.POST("/users", createUserHandler)
			admin.GET("/users", listUsersHandler)
			admin.DELETE("/histories/:id", deleteHistoryHandler)
		}
	}
}

// respond writes the common JSON envelope. Record-not-found maps to 404,
// everything else from the model layer is a 400.
func respond(c *gin.Context, result interface{}, err error) {
	if err != nil {
		if errors.Is(err, utils.ErrorRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": result})
}

func pathId(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

func queryStrPtr(c *gin.Context, name string) *string {
	if v, ok := c.GetQuery(name); ok {
		return &v
	}
	return nil
}

func queryIntPtr(c *gin.Context, name string) *int {
	if v, ok := c.GetQuery(name); ok {
		if n, err := strconv.Atoi(v); err == nil {
			return &n
		}
	}
	return nil
}

func queryBoolPtr(c *gin.Context, name string) *bool {
	if v, ok := c.GetQuery(name); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			return &b
		}
	}
	return nil
}

func queryLimit(c *gin.Context) int {
	if n := queryIntPtr(c, "limit"); n != nil && *n > 0 {
		return *n
	}
	return 20
}

// queryDatePtr accepts "2006-01-02" or "2006-01-02T15:04:05".
func queryDatePtr(c *gin.Context, name string) (*models.MyDateString, error) {
	v, ok := c.GetQuery(name)
	if !ok || v == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02T15:04:05", v)
	if err != nil {
		t, err = time.Parse("2006-01-02", v)
		if err != nil {
			return nil, errors.New(name + " must be a date")
		}
	}
	d := models.MyDateString(t)
	return &d, nil
}

// auth

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func loginHandler(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username and password are required"})
		return
	}
	result, err := models.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": result})
}

func logoutHandler(c *gin.Context) {
	ok, err := models.Logout(c.Request.Context())
	respond(c, gin.H{"logged_out": ok}, err)
}

type changePasswordRequest struct {
	OldPassword string `json:"old_password" binding:"required"`
	NewPassword string `json:"new_password" binding:"required"`
}

func changePasswordHandler(c *gin.Context) {
	var req changePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "old_password and new_password are required"})
		return
	}
	user, err := models.ChangePassword(c.Request.Context(), req.OldPassword, req.NewPassword)
	if err != nil {
		respond(c, nil, err)
		return
	}
	user.PrepareGive()
	respond(c, user, nil)
}

// business

func getBusinessHandler(c *gin.Context) {
	result, err := models.GetBusiness(c.Request.Context())
	respond(c, result, err)
}

func updateBusinessHandler(c *gin.Context) {
	var input models.NewBusiness
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	result, err := models.UpdateBusiness(c.Request.Context(), &input)
	respond(c, result, err)
}

func updateTransactionLockingHandler(c *gin.Context) {
	var input models.NewTransactionLocking
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	result, err := models.UpdateTransactionLocking(c.Request.Context(), input)
	respond(c, result, err)
}

func getTransactionLockingHandler(c *gin.Context) {
	result, err := models.GetTransactionLockingRecords(c.Request.Context(), queryIntPtr(c, "user_id"))
	respond(c, result, err)
}

func createBusinessHandler(c *gin.Context) {
	var input models.NewBusiness
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	result, err := models.CreateBusiness(c.Request.Context(), &input)
	respond(c, result, err)
}

func listBusinessesHandler(c *gin.Context) {
	result, err := models.GetBusinesses(c.Request.Context(), queryStrPtr(c, "name"))
	respond(c, result, err)
}

func listAllBusinessesHandler(c *gin.Context) {
	result, err := models.ListAllBusiness(c.Request.Context())
	respond(c, result, err)
}

func toggleActiveBusinessHandler(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	isActive := queryBoolPtr(c, "is_active")
	if isActive == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "is_active is required"})
		return
	}
	result, err := models.ToggleActiveBusiness(c.Request.Context(), id, *isActive)
	respond(c, result, err)
}

// users

func createUserHandler(c *gin.Context) {
	var input models.NewUser
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	result, err := models.CreateUser(c.Request.Context(), &input)
	respond(c, result, err)
}

func listUsersHandler(c *gin.Context) {
	result, err := models.GetAllUsers(c.Request.Context())
	respond(c, result, err)
}

// suppliers

func createSupplierHandler(c *gin.Context) {
	var input models.NewSupplier
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	result, err := models.CreateSupplier(c.Request.Context(), &input)
	respond(c, result, err)
}

func listSuppliersHandler(c *gin.Context) {
	result, err := models.GetSuppliers(c.Request.Context(), queryStrPtr(c, "name"))
	respond(c, result, err)
}

func paginateSuppliersHandler(c *gin.Context) {
	limit := queryLimit(c)
	result, err := models.PaginateSupplier(c.Request.Context(), &limit, queryStrPtr(c, "after"),
		queryStrPtr(c, "name"), queryStrPtr(c, "phone"), queryStrPtr(c, "email"), queryBoolPtr(c, "is_active"))
	respond(c, result, err)
}

func getSupplierHandler(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	result, err := models.GetSupplier(c.Request.Context(), id)
	respond(c, result, err)
}

func updateSupplierHandler(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	var input models.NewSupplier
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	result, err := models.UpdateSupplier(c.Request.Context(), id, &input)
	respond(c, result, err)
}

func deleteSupplierHandler(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	result, err := models.DeleteSupplier(c.Request.Context(), id)
	respond(c, result, err)
}

func toggleActiveSupplierHandler(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	isActive := queryBoolPtr(c, "is_active")
	if isActive == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "is_active is required"})
		return
	}
	result, err := models.ToggleActiveSupplier(c.Request.Context(), id, *isActive)
	respond(c, result, err)
}

// products

func createProductHandler(c *gin.Context) {
	var input models.NewProduct
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	result, err := models.CreateProduct(c.Request.Context(), &input)
	respond(c, result, err)
}

func listProductsHandler(c *gin.Context) {
	result, err := models.GetProducts(c.Request.Context(), queryStrPtr(c, "name"), queryStrPtr(c, "sku"))
	respond(c, result, err)
}

func paginateProductsHandler(c *gin.Context) {
	result, err := models.PaginateProduct(c.Request.Context(), queryLimit(c), queryStrPtr(c, "after"), queryStrPtr(c, "name"))
	respond(c, result, err)
}

func getProductHandler(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	result, err := models.GetProduct(c.Request.Context(), id)
	respond(c, result, err)
}

func updateProductHandler(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	var input models.NewProduct
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	result, err := models.UpdateProduct(c.Request.Context(), id, &input)
	respond(c, result, err)
}

func deleteProductHandler(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	result, err := models.DeleteProduct(c.Request.Context(), id)
	respond(c, result, err)
}

func toggleActiveProductHandler(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	isActive := queryBoolPtr(c, "is_active")
	if isActive == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "is_active is required"})
		return
	}
	result, err := models.ToggleActiveProduct(c.Request.Context(), id, *isActive)
	respond(c, result, err)
}

// purchase orders

func createPurchaseOrderHandler(c *gin.Context) {
	var input models.NewPurchaseOrder
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	result, err := models.CreatePurchaseOrder(c.Request.Context(), &input)
	respond(c, result, err)
}

func listPurchaseOrdersHandler(c *gin.Context) {
	result, err := models.GetPurchaseOrders(c.Request.Context(), queryStrPtr(c, "order_number"))
	respond(c, result, err)
}

func paginatePurchaseOrdersHandler(c *gin.Context) {
	limit := queryLimit(c)

	var status *models.PurchaseOrderStatus
	if s := queryStrPtr(c, "status"); s != nil {
		parsed, err := models.ParsePurchaseOrderStatus(*s)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		status = &parsed
	}
	startOrderDate, err := queryDatePtr(c, "start_order_date")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	endOrderDate, err := queryDatePtr(c, "end_order_date")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := models.PaginatePurchaseOrder(c.Request.Context(), &limit, queryStrPtr(c, "after"),
		queryStrPtr(c, "order_number"), queryStrPtr(c, "reference_number"),
		queryIntPtr(c, "supplier_id"), status,
		startOrderDate, endOrderDate)
	respond(c, result, err)
}

func getPurchaseOrderHandler(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	result, err := models.GetPurchaseOrder(c.Request.Context(), id)
	respond(c, result, err)
}

func updatePurchaseOrderHandler(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	var input models.NewPurchaseOrder
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	result, err := models.UpdatePurchaseOrder(c.Request.Context(), id, &input)
	respond(c, result, err)
}

func deletePurchaseOrderHandler(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	result, err := models.DeletePurchaseOrder(c.Request.Context(), id)
	respond(c, result, err)
}

type statusRequest struct {
	Status string `json:"status" binding:"required"`
}

func updateStatusPurchaseOrderHandler(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "status is required"})
		return
	}
	result, err := models.UpdateStatusPurchaseOrder(c.Request.Context(), id, req.Status)
	respond(c, result, err)
}

func getPurchaseOrderOutboxHandler(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	result, err := models.GetOutboxStatus(c.Request.Context(), models.OrderReferenceTypePurchaseOrder, id)
	respond(c, result, err)
}

func reprocessPurchaseOrderOutboxHandler(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	result, err := models.ReprocessOutbox(c.Request.Context(), models.OrderReferenceTypePurchaseOrder, id)
	respond(c, result, err)
}

// consignment notes

func createCmrHandler(c *gin.Context) {
	var input models.NewCmr
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	result, err := models.CreateCmr(c.Request.Context(), &input)
	respond(c, result, err)
}

func listCmrsHandler(c *gin.Context) {
	result, err := models.GetCmrs(c.Request.Context(), queryIntPtr(c, "supplier_id"), queryStrPtr(c, "status"))
	respond(c, result, err)
}

func paginateCmrsHandler(c *gin.Context) {
	issueDateStart, err := queryDatePtr(c, "issue_date_start")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	issueDateEnd, err := queryDatePtr(c, "issue_date_end")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	result, err := models.PaginateCmr(c.Request.Context(), queryLimit(c), queryStrPtr(c, "after"),
		queryStrPtr(c, "cmr_number"), queryIntPtr(c, "supplier_id"), queryStrPtr(c, "status"),
		issueDateStart, issueDateEnd)
	respond(c, result, err)
}

func getCmrHandler(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	result, err := models.GetCmr(c.Request.Context(), id)
	respond(c, result, err)
}

func updateCmrHandler(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	var input models.NewCmr
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	result, err := models.UpdateCmr(c.Request.Context(), id, &input)
	respond(c, result, err)
}

func deleteCmrHandler(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	result, err := models.DeleteCmr(c.Request.Context(), id)
	respond(c, result, err)
}

func updateStatusCmrHandler(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "status is required"})
		return
	}
	result, err := models.UpdateStatusCmr(c.Request.Context(), id, req.Status)
	respond(c, result, err)
}

// supplier catalog

func getSupplierProductsHandler(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	result, err := models.GetSupplierProducts(c.Request.Context(), id)
	respond(c, result, err)
}

func getProductSuppliersHandler(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	result, err := models.GetProductSuppliers(c.Request.Context(), id)
	respond(c, result, err)
}

func getCatalogEntryHandler(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	result, err := models.GetSupplierProduct(c.Request.Context(), id)
	respond(c, result, err)
}

func updateProductCertificateHandler(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	var input models.NewProductCertificate
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	result, err := models.UpdateProductCertificate(c.Request.Context(), id, &input)
	respond(c, result, err)
}

func attachCertificateFileHandler(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot read file"})
		return
	}
	defer file.Close()

	contentType := fileHeader.Header.Get("Content-Type")
	result, err := models.AttachCertificateFile(c.Request.Context(), id,
		fileHeader.Filename, contentType, fileHeader.Size, file)
	respond(c, result, err)
}

func removeCertificateFileHandler(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	result, err := models.RemoveCertificateFile(c.Request.Context(), id)
	respond(c, result, err)
}

// documents

func createAttachmentHandler(c *gin.Context) {
	referenceType := c.PostForm("reference_type")
	referenceId, err := strconv.Atoi(c.PostForm("reference_id"))
	if err != nil || referenceId <= 0 || referenceType == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "reference_type and reference_id are required"})
		return
	}
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot read file"})
		return
	}
	defer file.Close()

	result, err := models.CreateAttachment(c.Request.Context(), fileHeader.Filename, file, referenceType, referenceId)
	respond(c, result, err)
}

func getAttachmentHandler(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	result, err := models.GetDocument(c.Request.Context(), id)
	respond(c, result, err)
}

func deleteAttachmentHandler(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	result, err := models.DeleteAttachment(c.Request.Context(), id)
	respond(c, result, err)
}

// standalone file uploads

func uploadImageHandler(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot read file"})
		return
	}
	defer file.Close()

	result, err := models.UploadSingleImage(c.Request.Context(), fileHeader.Filename, file)
	respond(c, result, err)
}

func removeImageHandler(c *gin.Context) {
	url := c.Query("url")
	if url == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "url is required"})
		return
	}
	result, err := models.RemoveImage(c.Request.Context(), url)
	respond(c, result, err)
}

func uploadFileHandler(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot read file"})
		return
	}
	defer file.Close()

	result, err := models.UploadSingleFile(c.Request.Context(), fileHeader.Filename, file)
	respond(c, result, err)
}

func removeFileHandler(c *gin.Context) {
	url := c.Query("url")
	if url == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "url is required"})
		return
	}
	result, err := models.RemoveFile(c.Request.Context(), url)
	respond(c, result, err)
}

// histories

func listHistoriesHandler(c *gin.Context) {
	result, err := models.GetHistories(c.Request.Context(),
		queryIntPtr(c, "reference_id"), queryStrPtr(c, "reference_type"), queryIntPtr(c, "user_id"))
	respond(c, result, err)
}

func getHistoryHandler(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	result, err := models.GetHistory(c.Request.Context(), id)
	respond(c, result, err)
}

// createManualHistoryHandler records a free-form audit note. Actor and
// business come from the session, not the request body.
func createManualHistoryHandler(c *gin.Context) {
	var input models.NewHistory
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ctx := c.Request.Context()
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "business id is required"})
		return
	}
	input.BusinessId = businessId
	if userId, ok := utils.GetUserIdFromContext(ctx); ok {
		input.UserId = userId
	}
	if userName, ok := utils.GetUserNameFromContext(ctx); ok {
		input.UserName = userName
	}
	result, err := models.CreateManualHistory(ctx, &input)
	respond(c, result, err)
}

func deleteHistoryHandler(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	result, err := models.DeleteHistory(c.Request.Context(), id)
	respond(c, result, err)
}

func paginateHistoriesHandler(c *gin.Context) {
	limit := queryLimit(c)
	result, err := models.PaginateHistory(c.Request.Context(), &limit, queryStrPtr(c, "after"),
		queryStrPtr(c, "reference_type"), queryIntPtr(c, "reference_id"),
		queryIntPtr(c, "user_id"), queryStrPtr(c, "action_type"))
	respond(c, result, err)
}

// reports

func requireDateRange(c *gin.Context) (models.MyDateString, models.MyDateString, bool) {
	from, err := queryDatePtr(c, "from_date")
	if err == nil {
		var to *models.MyDateString
		to, err = queryDatePtr(c, "to_date")
		if err == nil && from != nil && to != nil {
			return *from, *to, true
		}
	}
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	} else {
		c.JSON(http.StatusBadRequest, gin.H{"error": "from_date and to_date are required"})
	}
	return models.MyDateString{}, models.MyDateString{}, false
}

func dashboardReportHandler(c *gin.Context) {
	result, err := reports.GetDashboardReport(c.Request.Context())
	respond(c, result, err)
}

func purchasesBySupplierReportHandler(c *gin.Context) {
	from, to, ok := requireDateRange(c)
	if !ok {
		return
	}
	result, err := reports.GetPurchasesBySupplierReport(c.Request.Context(), from, to,
		queryIntPtr(c, "supplier_id"))
	respond(c, result, err)
}

func purchasesByProductReportHandler(c *gin.Context) {
	from, to, ok := requireDateRange(c)
	if !ok {
		return
	}
	result, err := reports.GetPurchasesByProductReport(c.Request.Context(), from, to,
		queryIntPtr(c, "supplier_id"))
	respond(c, result, err)
}

func purchaseOrderDetailReportHandler(c *gin.Context) {
	from, to, ok := requireDateRange(c)
	if !ok {
		return
	}
	result, err := reports.GetPurchaseOrderDetailReport(c.Request.Context(), from, to,
		queryIntPtr(c, "supplier_id"), queryStrPtr(c, "status"))
	respond(c, result, err)
}

func exportSupplierCatalogHandler(c *gin.Context) {
	supplierId := 0
	if v := queryIntPtr(c, "supplier_id"); v != nil {
		supplierId = *v
	}
	f, err := reports.ExportSupplierCatalogExcel(c.Request.Context(), supplierId)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	fileName := fmt.Sprintf("supplier_catalog_%s.xlsx", time.Now().Format("20060102_150405"))
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fileName))
	if err := f.Write(c.Writer); err != nil {
		c.Status(http.StatusInternalServerError)
	}
}
