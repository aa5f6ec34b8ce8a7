package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bitbucket.org/nordfoods/mrp_backend/config"
	"bitbucket.org/nordfoods/mrp_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type PurchaseOrder struct {
	ID                          int                 `gorm:"primary_key" json:"id"`
	BusinessId                  string              `gorm:"index;not null" json:"business_id" binding:"required"`
	SupplierId                  int                 `gorm:"index;not null" json:"supplier_id" binding:"required"`
	OrderNumber                 string              `gorm:"size:255;not null" json:"order_number" binding:"required"`
	SequenceNo                  decimal.Decimal     `gorm:"type:decimal(15);not null" json:"sequence_no"`
	ReferenceNumber             string              `gorm:"size:255;default:null" json:"reference_number"`
	OrderDate                   time.Time           `gorm:"not null" json:"order_date" binding:"required"`
	ExpectedDeliveryDate        *time.Time          `gorm:"default:null" json:"expected_delivery_date"`
	DueDate                     *time.Time          `gorm:"default:null" json:"due_date"`
	OrderPaymentTerms           PaymentTerms        `gorm:"type:enum('Net15','Net30','Net45','Net60','DueMonthEnd','DueNextMonthEnd','DueOnReceipt','Custom');not null" json:"order_payment_terms" binding:"required"`
	OrderPaymentTermsCustomDays int                 `gorm:"default:0" json:"order_payment_terms_custom_days"`
	DeliveryAddress             string              `gorm:"type:text;default:null" json:"delivery_address"`
	Notes                       string              `gorm:"type:text;default:null" json:"notes"`
	TermsAndConditions          string              `gorm:"type:text;default:null" json:"terms_and_conditions"`
	CurrencyCode                string              `gorm:"size:3;not null;default:'EUR'" json:"currency_code"`
	ExchangeRate                decimal.Decimal     `gorm:"type:decimal(20,6);default:1" json:"exchange_rate"`
	CurrentStatus               PurchaseOrderStatus `gorm:"type:enum('Draft','Confirmed','Closed','Cancelled');not null" json:"current_status" binding:"required"`
	Documents                   []*Document         `gorm:"polymorphic:Reference" json:"documents"`
	OrderSubtotal               decimal.Decimal     `gorm:"type:decimal(20,4);default:0" json:"order_subtotal"`
	// sum(detailTotalAmount)
	OrderTotalAmount decimal.Decimal       `gorm:"type:decimal(20,4);default:0" json:"order_total_amount"`
	Details          []PurchaseOrderDetail `json:"purchase_order_details" validate:"required,dive,required"`
	CreatedAt        time.Time             `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time             `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewPurchaseOrder struct {
	SupplierId                  int                      `json:"supplier_id" binding:"required"`
	ReferenceNumber             string                   `json:"reference_number"`
	OrderDate                   time.Time                `json:"order_date" binding:"required"`
	ExpectedDeliveryDate        *time.Time               `json:"expected_delivery_date"`
	OrderPaymentTerms           PaymentTerms             `json:"order_payment_terms" binding:"required"`
	OrderPaymentTermsCustomDays int                      `json:"order_payment_terms_custom_days"`
	DeliveryAddress             string                   `json:"delivery_address"`
	Notes                       string                   `json:"notes"`
	TermsAndConditions          string                   `json:"terms_and_conditions"`
	CurrencyCode                string                   `json:"currency_code"`
	ExchangeRate                decimal.Decimal          `json:"exchange_rate"`
	CurrentStatus               PurchaseOrderStatus      `json:"current_status" binding:"required"`
	Documents                   []*NewDocument           `json:"documents"`
	Details                     []NewPurchaseOrderDetail `json:"details"`
}

type PurchaseOrderDetail struct {
	ID                int             `gorm:"primary_key" json:"id"`
	PurchaseOrderId   int             `gorm:"index;not null" json:"purchase_order_id" binding:"required"`
	ProductId         int             `gorm:"index" json:"product_id"`
	ProductType       ProductType     `gorm:"type:enum('S','I');default:S" json:"product_type"`
	Name              string          `gorm:"size:255" json:"name" binding:"required"`
	Description       string          `gorm:"size:255;default:null" json:"description"`
	Unit              string          `gorm:"size:20" json:"unit"`
	DetailQty         decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"detail_qty" binding:"required"`
	DetailUnitRate    decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"detail_unit_rate" binding:"required"`
	DetailTotalAmount decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"detail_total_amount"`
}

type NewPurchaseOrderDetail struct {
	DetailId       int             `json:"detail_id"`
	ProductId      int             `json:"product_id"`
	ProductType    ProductType     `json:"product_type"`
	Name           string          `json:"name" binding:"required"`
	Description    string          `json:"description"`
	Unit           string          `json:"unit"`
	DetailQty      decimal.Decimal `json:"detail_qty" binding:"required"`
	DetailUnitRate decimal.Decimal `json:"detail_unit_rate" binding:"required"`
	IsDeletedItem  *bool           `json:"is_deleted_item"`
}

type PurchaseOrdersConnection struct {
	Edges    []*PurchaseOrdersEdge `json:"edges"`
	PageInfo *PageInfo             `json:"pageInfo"`
}

type PurchaseOrdersEdge Edge[PurchaseOrder]

func (po PurchaseOrder) CheckTransactionLock(ctx context.Context) error {
	return validatePurchaseLock(ctx, po.OrderDate, po.BusinessId)
}

// returns decoded curosr string
func (po PurchaseOrder) GetCursor() string {
	return po.CreatedAt.String()
}

func (item *PurchaseOrderDetail) calculateDetailTotal() {
	item.DetailTotalAmount = item.DetailQty.Mul(item.DetailUnitRate)
}

func (input NewPurchaseOrder) validate(ctx context.Context, businessId string, _ int) error {

	// exists supplier
	if err := utils.ValidateResourceId[Supplier](ctx, businessId, input.SupplierId); err != nil {
		return errors.New("supplier not found")
	}
	// validate transaction date
	if err := validatePurchaseLock(ctx, input.OrderDate, businessId); err != nil {
		return err
	}
	for _, detail := range input.Details {
		if err := ValidateProductId(ctx, businessId, detail.ProductId, detail.ProductType); err != nil {
			return err
		}
		if detail.DetailQty.IsNegative() {
			return errors.New("detail qty must not be negative")
		}
	}

	return nil
}

func CreatePurchaseOrder(ctx context.Context, input *NewPurchaseOrder) (*PurchaseOrder, error) {
	db := config.GetDB()

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	// If callers request "Confirmed" on create, we still create as Draft
	// and then transition Draft -> Confirmed inside the same DB transaction.
	requestedStatus := input.CurrentStatus

	// validate PurchaseOrder
	if err := input.validate(ctx, businessId, 0); err != nil {
		return nil, err
	}

	// construct Documents
	documents, err := mapNewDocuments(input.Documents, "purchase_orders", 0)
	if err != nil {
		return nil, err
	}

	var purchaseOrderItems []PurchaseOrderDetail
	var orderSubtotal decimal.Decimal

	for _, item := range input.Details {
		purchaseOrderItem := PurchaseOrderDetail{
			ProductId:      item.ProductId,
			ProductType:    item.ProductType,
			Name:           item.Name,
			Description:    item.Description,
			Unit:           item.Unit,
			DetailQty:      item.DetailQty,
			DetailUnitRate: item.DetailUnitRate,
		}

		purchaseOrderItem.calculateDetailTotal()
		orderSubtotal = orderSubtotal.Add(purchaseOrderItem.DetailTotalAmount)

		purchaseOrderItems = append(purchaseOrderItems, purchaseOrderItem)
	}

	currencyCode := input.CurrencyCode
	if currencyCode == "" {
		currencyCode = "EUR"
	}
	exchangeRate := input.ExchangeRate
	if exchangeRate.IsZero() {
		exchangeRate = decimal.NewFromInt(1)
	}

	purchaseOrder := PurchaseOrder{
		BusinessId:                  businessId,
		SupplierId:                  input.SupplierId,
		ReferenceNumber:             input.ReferenceNumber,
		OrderDate:                   input.OrderDate,
		ExpectedDeliveryDate:        input.ExpectedDeliveryDate,
		DueDate:                     calculateDueDate(input.OrderDate, input.OrderPaymentTerms, input.OrderPaymentTermsCustomDays),
		OrderPaymentTerms:           input.OrderPaymentTerms,
		OrderPaymentTermsCustomDays: input.OrderPaymentTermsCustomDays,
		DeliveryAddress:             input.DeliveryAddress,
		Notes:                       input.Notes,
		TermsAndConditions:          input.TermsAndConditions,
		CurrencyCode:                currencyCode,
		ExchangeRate:                exchangeRate,
		CurrentStatus:               PurchaseOrderStatusDraft,
		Documents:                   documents,
		OrderSubtotal:               orderSubtotal,
		OrderTotalAmount:            orderSubtotal,
		Details:                     purchaseOrderItems,
	}

	tx := db.Begin()

	seqNo, err := utils.GetSequence[PurchaseOrder](ctx, businessId)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	purchaseOrder.SequenceNo = decimal.NewFromInt(seqNo)
	purchaseOrder.OrderNumber = "PO-" + fmt.Sprint(seqNo)

	// always rollback on early-return or panic to avoid leaking DB locks
	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback().Error
			panic(r)
		}
	}()
	defer func() { _ = tx.Rollback().Error }()

	err = tx.WithContext(ctx).Create(&purchaseOrder).Error
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	// Reload with Details so the confirm event carries them.
	if err := tx.WithContext(ctx).Preload("Details").First(&purchaseOrder, purchaseOrder.ID).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	// If requested "Confirmed", apply the status transition deterministically (Draft -> Confirmed).
	if requestedStatus == PurchaseOrderStatusConfirmed {
		if err := tx.WithContext(ctx).Model(&purchaseOrder).Update("CurrentStatus", PurchaseOrderStatusConfirmed).Error; err != nil {
			tx.Rollback()
			return nil, err
		}
		purchaseOrder.CurrentStatus = PurchaseOrderStatusConfirmed

		// enqueue confirm event; the catalog worker folds line items from it
		if err := EnqueueOrderEvent(ctx, tx, businessId, purchaseOrder.OrderDate, purchaseOrder.ID,
			OrderReferenceTypePurchaseOrder, &purchaseOrder, nil, PubSubMessageActionConfirm); err != nil {
			tx.Rollback()
			return nil, err
		}
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return &purchaseOrder, nil
}

func UpdatePurchaseOrder(ctx context.Context, purchaseOrderID int, updatedOrder *NewPurchaseOrder) (*PurchaseOrder, error) {
	db := config.GetDB()

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	if err := updatedOrder.validate(ctx, businessId, purchaseOrderID); err != nil {
		return nil, err
	}

	// Fetch the existing purchase order
	existingOrder, err := utils.FetchModelForChange[PurchaseOrder](ctx, businessId, purchaseOrderID, "Details")
	if err != nil {
		return nil, err
	}

	if existingOrder.CurrentStatus == PurchaseOrderStatusClosed {
		return nil, errors.New("cannot edit purchase order that is already closed")
	}
	if existingOrder.CurrentStatus == PurchaseOrderStatusCancelled {
		return nil, errors.New("cannot edit purchase order that is cancelled")
	}
	// Catalog integrity guardrail (behind flag): confirmed orders are immutable.
	if config.StrictOrderImmutability() && existingOrder.CurrentStatus == PurchaseOrderStatusConfirmed {
		return nil, errors.New("cannot edit a confirmed purchase order; cancel and recreate, then rebuild the supplier catalog")
	}

	oldStatus := existingOrder.CurrentStatus
	oldOrder := *existingOrder

	existingOrder.SupplierId = updatedOrder.SupplierId
	existingOrder.ReferenceNumber = updatedOrder.ReferenceNumber
	existingOrder.OrderDate = updatedOrder.OrderDate
	existingOrder.ExpectedDeliveryDate = updatedOrder.ExpectedDeliveryDate
	existingOrder.DueDate = calculateDueDate(updatedOrder.OrderDate, updatedOrder.OrderPaymentTerms, updatedOrder.OrderPaymentTermsCustomDays)
	existingOrder.OrderPaymentTerms = updatedOrder.OrderPaymentTerms
	existingOrder.OrderPaymentTermsCustomDays = updatedOrder.OrderPaymentTermsCustomDays
	existingOrder.DeliveryAddress = updatedOrder.DeliveryAddress
	existingOrder.Notes = updatedOrder.Notes
	existingOrder.TermsAndConditions = updatedOrder.TermsAndConditions
	if updatedOrder.CurrencyCode != "" {
		existingOrder.CurrencyCode = updatedOrder.CurrencyCode
	}
	if !updatedOrder.ExchangeRate.IsZero() {
		existingOrder.ExchangeRate = updatedOrder.ExchangeRate
	}
	existingOrder.CurrentStatus = updatedOrder.CurrentStatus

	tx := db.Begin()

	var orderSubtotal decimal.Decimal

	// Iterate through the updated items
	for _, updatedItem := range updatedOrder.Details {
		var existingItem *PurchaseOrderDetail

		// Check if the item already exists in the purchase order
		for i := range existingOrder.Details {
			if existingOrder.Details[i].ID == updatedItem.DetailId {
				existingItem = &existingOrder.Details[i]
				break
			}
		}

		// If the item doesn't exist, add it to the purchase order
		if existingItem == nil {
			newItem := PurchaseOrderDetail{
				PurchaseOrderId: purchaseOrderID,
				ProductId:       updatedItem.ProductId,
				ProductType:     updatedItem.ProductType,
				Name:            updatedItem.Name,
				Description:     updatedItem.Description,
				Unit:            updatedItem.Unit,
				DetailQty:       updatedItem.DetailQty,
				DetailUnitRate:  updatedItem.DetailUnitRate,
			}

			newItem.calculateDetailTotal()
			orderSubtotal = orderSubtotal.Add(newItem.DetailTotalAmount)
			existingOrder.Details = append(existingOrder.Details, newItem)

		} else {
			if updatedItem.IsDeletedItem != nil && *updatedItem.IsDeletedItem {
				// Find the index of the item to delete
				for i, item := range existingOrder.Details {
					if item.ID == updatedItem.DetailId {
						// Delete the item from the database
						if err := tx.WithContext(ctx).Delete(&existingOrder.Details[i]).Error; err != nil {
							tx.Rollback()
							return nil, err
						}
						// Remove the item from the slice
						existingOrder.Details = append(existingOrder.Details[:i], existingOrder.Details[i+1:]...)
						break
					}
				}
			} else {
				// Update existing item details
				existingItem.ProductId = updatedItem.ProductId
				existingItem.ProductType = updatedItem.ProductType
				existingItem.Name = updatedItem.Name
				existingItem.Description = updatedItem.Description
				existingItem.Unit = updatedItem.Unit
				existingItem.DetailQty = updatedItem.DetailQty
				existingItem.DetailUnitRate = updatedItem.DetailUnitRate

				existingItem.calculateDetailTotal()
				orderSubtotal = orderSubtotal.Add(existingItem.DetailTotalAmount)

				if err := tx.WithContext(ctx).Save(&existingItem).Error; err != nil {
					tx.Rollback()
					return nil, err
				}
			}
		}
	}

	existingOrder.OrderSubtotal = orderSubtotal
	existingOrder.OrderTotalAmount = orderSubtotal

	// Save the updated purchase order to the database
	if err := tx.WithContext(ctx).Save(&existingOrder).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	// Refresh the existingOrder to get the latest details
	if err := tx.WithContext(ctx).Preload("Details").First(&existingOrder, purchaseOrderID).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	// Draft -> Confirmed through edit still enqueues the confirm event.
	if !oldStatus.IsCatalogRelevant() && existingOrder.CurrentStatus.IsCatalogRelevant() {
		if err := EnqueueOrderEvent(ctx, tx, businessId, existingOrder.OrderDate, existingOrder.ID,
			OrderReferenceTypePurchaseOrder, existingOrder, nil, PubSubMessageActionConfirm); err != nil {
			tx.Rollback()
			return nil, err
		}
	} else if oldStatus.IsCatalogRelevant() {
		// catalog stats are fold-only; edits after confirm are reconciled by a rebuild
		if err := EnqueueOrderEvent(ctx, tx, businessId, existingOrder.OrderDate, existingOrder.ID,
			OrderReferenceTypePurchaseOrder, existingOrder, &oldOrder, PubSubMessageActionUpdate); err != nil {
			tx.Rollback()
			return nil, err
		}
	}

	documents, err := upsertDocuments(ctx, tx, updatedOrder.Documents, "purchase_orders", purchaseOrderID)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	existingOrder.Documents = documents

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	return existingOrder, nil
}

func DeletePurchaseOrder(ctx context.Context, id int) (*PurchaseOrder, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	result, err := utils.FetchModelForChange[PurchaseOrder](ctx, businessId, id, "Details", "Documents")
	if err != nil {
		return nil, err
	}

	if result.CurrentStatus == PurchaseOrderStatusClosed {
		return nil, errors.New("cannot delete purchase order that is already closed")
	}
	if result.CurrentStatus == PurchaseOrderStatusConfirmed {
		return nil, errors.New("cancel the purchase order before deleting it")
	}

	db := config.GetDB()
	tx := db.Begin()

	err = tx.WithContext(ctx).Model(&result).Association("Details").Unscoped().Clear()
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	err = tx.WithContext(ctx).Delete(&result).Error
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := deleteDocuments(ctx, tx, result.Documents); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := EnqueueOrderEvent(ctx, tx, businessId, result.OrderDate, result.ID,
		OrderReferenceTypePurchaseOrder, nil, result, PubSubMessageActionDelete); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	return result, nil
}

func GetPurchaseOrder(ctx context.Context, id int) (*PurchaseOrder, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	return utils.FetchModel[PurchaseOrder](ctx, businessId, id, "Details", "Documents")
}

func GetPurchaseOrders(ctx context.Context, order_number *string) ([]*PurchaseOrder, error) {
	db := config.GetDB()
	var results []*PurchaseOrder

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	dbCtx := db.WithContext(ctx).Where("business_id = ?", businessId)
	if order_number != nil && len(*order_number) > 0 {
		dbCtx = dbCtx.Where("order_number LIKE ?", "%"+*order_number+"%")
	}
	err := dbCtx.
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

func UpdateStatusPurchaseOrder(ctx context.Context, id int, status string) (*PurchaseOrder, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	newStatus, err := ParsePurchaseOrderStatus(status)
	if err != nil {
		return nil, err
	}

	po, err := utils.FetchModelForChange[PurchaseOrder](ctx, businessId, id, "Details")
	if err != nil {
		return nil, err
	}

	if po.CurrentStatus == PurchaseOrderStatusClosed {
		return nil, errors.New("cannot update purchase order that is already closed")
	}
	if po.CurrentStatus == PurchaseOrderStatusCancelled {
		return nil, errors.New("cannot update purchase order that is cancelled")
	}
	if po.CurrentStatus == PurchaseOrderStatusDraft && newStatus == PurchaseOrderStatusClosed {
		return nil, errors.New("draft purchase order must be confirmed before closing")
	}

	oldStatus := po.CurrentStatus

	// db action
	db := config.GetDB()
	tx := db.Begin()
	if err := tx.WithContext(ctx).Model(&po).UpdateColumn("CurrentStatus", newStatus).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	po.CurrentStatus = newStatus

	if oldStatus == PurchaseOrderStatusDraft && newStatus == PurchaseOrderStatusConfirmed {
		// enqueue confirm event; the catalog worker folds line items from it
		if err := EnqueueOrderEvent(ctx, tx, businessId, po.OrderDate, po.ID,
			OrderReferenceTypePurchaseOrder, po, nil, PubSubMessageActionConfirm); err != nil {
			tx.Rollback()
			return nil, err
		}
	} else if oldStatus.IsCatalogRelevant() && !newStatus.IsCatalogRelevant() {
		// Confirmed -> Cancelled; catalog is reconciled by a rebuild
		if err := EnqueueOrderEvent(ctx, tx, businessId, po.OrderDate, po.ID,
			OrderReferenceTypePurchaseOrder, po, nil, PubSubMessageActionUpdate); err != nil {
			tx.Rollback()
			return nil, err
		}
	}

	if err := createHistory(tx.WithContext(ctx), "Update", id, "purchase_orders", nil, nil, "Updated current status to "+status); err != nil {
		tx.Rollback()
		return nil, err
	}

	// Commit the transaction
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	return po, nil
}

func PaginatePurchaseOrder(
	ctx context.Context, limit *int, after *string,

	orderNumber *string,
	referenceNumber *string,

	supplierID *int,
	currentStatus *PurchaseOrderStatus,

	startOrderDate *MyDateString,
	endOrderDate *MyDateString,
) (*PurchaseOrdersConnection, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	business, err := GetBusiness(ctx)
	if err != nil {
		return nil, errors.New("business id is required")
	}
	if err := startOrderDate.StartOfDayUTCTime(business.Timezone); err != nil {
		return nil, err
	}
	if err := endOrderDate.EndOfDayUTCTime(business.Timezone); err != nil {
		return nil, err
	}

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Where("business_id = ?", businessId)
	if orderNumber != nil && *orderNumber != "" {
		dbCtx.Where("order_number LIKE ?", "%"+*orderNumber+"%")
	}
	if referenceNumber != nil && *referenceNumber != "" {
		dbCtx.Where("reference_number LIKE ?", "%"+*referenceNumber+"%")
	}
	if supplierID != nil && *supplierID > 0 {
		dbCtx.Where("supplier_id = ?", *supplierID)
	}
	if currentStatus != nil {
		dbCtx.Where("current_status = ?", *currentStatus)
	}
	if startOrderDate != nil && endOrderDate != nil {
		dbCtx.Where("order_date BETWEEN ? AND ?", time.Time(*startOrderDate), time.Time(*endOrderDate))
	}

	edges, pageInfo, err := FetchPageCompositeCursor[PurchaseOrder](dbCtx, *limit, after, "created_at", "<")
	if err != nil {
		return nil, err
	}
	var purchaseOrdersConnection PurchaseOrdersConnection
	purchaseOrdersConnection.PageInfo = pageInfo
	for _, edge := range edges {
		purchaseOrderEdge := PurchaseOrdersEdge(edge)
		purchaseOrdersConnection.Edges = append(purchaseOrdersConnection.Edges, &purchaseOrderEdge)
	}

	return &purchaseOrdersConnection, err
}

// ListConfirmedOrdersForRebuild streams non-draft purchase orders for a
// supplier (or all suppliers when supplierId is 0) in creation order.
func ListConfirmedOrdersForRebuild(tx *gorm.DB, businessId string, supplierId int) ([]*PurchaseOrder, error) {
	var orders []*PurchaseOrder
	dbCtx := tx.
		Preload("Details").
		Where("business_id = ?", businessId).
		Where("current_status IN ?", []PurchaseOrderStatus{PurchaseOrderStatusConfirmed, PurchaseOrderStatusClosed}).
		Order("created_at ASC, id ASC")
	if supplierId > 0 {
		dbCtx = dbCtx.Where("supplier_id = ?", supplierId)
	}
	if err := dbCtx.Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}
