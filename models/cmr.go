package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bitbucket.org/nordfoods/mrp_backend/config"
	"bitbucket.org/nordfoods/mrp_backend/utils"
	"github.com/shopspring/decimal"
)

// Cmr is a road consignment note tracking a supplier delivery, optionally
// linked to the purchase order it fulfils.
type Cmr struct {
	ID                  int             `gorm:"primary_key" json:"id"`
	BusinessId          string          `gorm:"index;not null" json:"business_id"`
	SupplierId          int             `gorm:"index;not null" json:"supplier_id" binding:"required"`
	PurchaseOrderId     *int            `gorm:"index;default:null" json:"purchase_order_id"`
	CmrNumber           string          `gorm:"size:255;index" json:"cmr_number"`
	SequenceNo          decimal.Decimal `gorm:"type:decimal(15);not null" json:"sequence_no"`
	IssueDate           time.Time       `gorm:"not null" json:"issue_date" binding:"required"`
	DeliveryDate        *time.Time      `gorm:"default:null" json:"delivery_date"`
	PlaceOfLoading      string          `gorm:"size:255" json:"place_of_loading"`
	PlaceOfDelivery     string          `gorm:"size:255" json:"place_of_delivery"`
	CarrierName         string          `gorm:"size:255" json:"carrier_name"`
	VehicleRegistration string          `gorm:"size:50" json:"vehicle_registration"`
	Notes               string          `gorm:"type:text" json:"notes"`
	CurrentStatus       CmrStatus       `gorm:"type:enum('Draft','Issued','InTransit','Delivered');default:Draft" json:"current_status"`
	Documents           []*Document     `gorm:"polymorphic:Reference;polymorphicValue:cmrs" json:"documents"`
	CreatedAt           time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt           time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewCmr struct {
	SupplierId          int            `json:"supplier_id" binding:"required"`
	PurchaseOrderId     *int           `json:"purchase_order_id"`
	IssueDate           time.Time      `json:"issue_date" binding:"required"`
	DeliveryDate        *time.Time     `json:"delivery_date"`
	PlaceOfLoading      string         `json:"place_of_loading"`
	PlaceOfDelivery     string         `json:"place_of_delivery"`
	CarrierName         string         `json:"carrier_name"`
	VehicleRegistration string         `json:"vehicle_registration"`
	Notes               string         `json:"notes"`
	CurrentStatus       *string        `json:"current_status"`
	Documents           []*NewDocument `json:"documents"`
}

type CmrsEdge Edge[Cmr]

type CmrsConnection struct {
	Edges    []*CmrsEdge `json:"edges"`
	PageInfo *PageInfo   `json:"pageInfo"`
}

func (c Cmr) GetCursor() string {
	return c.CreatedAt.String()
}

func (input *NewCmr) validate(ctx context.Context, businessId string) error {
	// supplier
	if err := utils.ValidateResourceId[Supplier](ctx, businessId, input.SupplierId); err != nil {
		return err
	}
	// linked order must belong to the business and the same supplier
	if input.PurchaseOrderId != nil && *input.PurchaseOrderId > 0 {
		po, err := utils.FetchModel[PurchaseOrder](ctx, businessId, *input.PurchaseOrderId)
		if err != nil {
			return err
		}
		if po.SupplierId != input.SupplierId {
			return errors.New("purchase order belongs to a different supplier")
		}
	}
	return nil
}

func CreateCmr(ctx context.Context, input *NewCmr) (*Cmr, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	if err := input.validate(ctx, businessId); err != nil {
		return nil, err
	}

	status := CmrStatusDraft
	if input.CurrentStatus != nil && *input.CurrentStatus != "" {
		parsed, err := ParseCmrStatus(*input.CurrentStatus)
		if err != nil {
			return nil, err
		}
		status = parsed
	}

	cmr := Cmr{
		BusinessId:          businessId,
		SupplierId:          input.SupplierId,
		PurchaseOrderId:     input.PurchaseOrderId,
		IssueDate:           input.IssueDate,
		DeliveryDate:        input.DeliveryDate,
		PlaceOfLoading:      input.PlaceOfLoading,
		PlaceOfDelivery:     input.PlaceOfDelivery,
		CarrierName:         input.CarrierName,
		VehicleRegistration: input.VehicleRegistration,
		Notes:               input.Notes,
		CurrentStatus:       status,
	}

	db := config.GetDB()
	tx := db.Begin()

	seqNo, err := utils.GetSequence[Cmr](ctx, businessId)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	cmr.SequenceNo = decimal.NewFromInt(seqNo)
	cmr.CmrNumber = "CMR-" + fmt.Sprint(seqNo)

	// always rollback on early-return or panic to avoid leaking DB locks
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
		tx.Rollback()
	}()

	if err := tx.WithContext(ctx).Create(&cmr).Error; err != nil {
		return nil, err
	}

	// associations
	documents, err := mapNewDocuments(input.Documents, "cmrs", cmr.ID)
	if err != nil {
		return nil, err
	}
	for _, document := range documents {
		if err := document.Store(tx, ctx); err != nil {
			return nil, err
		}
	}
	cmr.Documents = documents

	if err := createHistory(tx, "CREATE", cmr.ID, "cmrs", nil, &cmr, "Created CMR "+cmr.CmrNumber); err != nil {
		return nil, err
	}

	if err := EnqueueOrderEvent(ctx, tx, businessId, cmr.IssueDate, cmr.ID, OrderReferenceTypeCmr, &cmr, nil, PubSubMessageActionCreate); err != nil {
		return nil, err
	}

	return &cmr, tx.Commit().Error
}

func UpdateCmr(ctx context.Context, id int, input *NewCmr) (*Cmr, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	if err := input.validate(ctx, businessId); err != nil {
		return nil, err
	}

	cmr, err := utils.FetchModel[Cmr](ctx, businessId, id, "Documents")
	if err != nil {
		return nil, err
	}
	if cmr.CurrentStatus == CmrStatusDelivered {
		return nil, errors.New("cannot edit a delivered CMR")
	}
	oldCmr := *cmr

	db := config.GetDB()
	tx := db.Begin()
	err = tx.WithContext(ctx).Model(cmr).Updates(map[string]interface{}{
		"SupplierId":          input.SupplierId,
		"PurchaseOrderId":     input.PurchaseOrderId,
		"IssueDate":           input.IssueDate,
		"DeliveryDate":        input.DeliveryDate,
		"PlaceOfLoading":      input.PlaceOfLoading,
		"PlaceOfDelivery":     input.PlaceOfDelivery,
		"CarrierName":         input.CarrierName,
		"VehicleRegistration": input.VehicleRegistration,
		"Notes":               input.Notes,
	}).Error
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	// upserting association
	documents, err := upsertDocuments(ctx, tx, input.Documents, "cmrs", cmr.ID)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	cmr.Documents = documents

	if err := createHistory(tx, "UPDATE", cmr.ID, "cmrs", &oldCmr, cmr, "Updated CMR "+cmr.CmrNumber); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := EnqueueOrderEvent(ctx, tx, businessId, cmr.IssueDate, cmr.ID, OrderReferenceTypeCmr, cmr, &oldCmr, PubSubMessageActionUpdate); err != nil {
		tx.Rollback()
		return nil, err
	}

	// caching
	if err := RemoveRedisBoth(*cmr); err != nil {
		tx.Rollback()
		return nil, err
	}

	return cmr, tx.Commit().Error
}

func UpdateStatusCmr(ctx context.Context, id int, status string) (*Cmr, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	newStatus, err := ParseCmrStatus(status)
	if err != nil {
		return nil, err
	}

	cmr, err := utils.FetchModel[Cmr](ctx, businessId, id)
	if err != nil {
		return nil, err
	}
	if cmr.CurrentStatus == CmrStatusDelivered {
		return nil, errors.New("CMR is already delivered")
	}
	oldCmr := *cmr

	db := config.GetDB()
	tx := db.Begin()
	if err := tx.WithContext(ctx).Model(cmr).UpdateColumn("CurrentStatus", newStatus).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if newStatus == CmrStatusDelivered && cmr.DeliveryDate == nil {
		now := time.Now().UTC()
		if err := tx.WithContext(ctx).Model(cmr).UpdateColumn("DeliveryDate", now).Error; err != nil {
			tx.Rollback()
			return nil, err
		}
	}

	if err := createHistory(tx, "UPDATE", cmr.ID, "cmrs", &oldCmr, cmr, "Updated current status to "+status); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := EnqueueOrderEvent(ctx, tx, businessId, cmr.IssueDate, cmr.ID, OrderReferenceTypeCmr, cmr, &oldCmr, PubSubMessageActionUpdate); err != nil {
		tx.Rollback()
		return nil, err
	}

	// caching
	if err := RemoveRedisBoth(*cmr); err != nil {
		tx.Rollback()
		return nil, err
	}

	return cmr, tx.Commit().Error
}

func DeleteCmr(ctx context.Context, id int) (*Cmr, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	cmr, err := utils.FetchModel[Cmr](ctx, businessId, id, "Documents")
	if err != nil {
		return nil, err
	}
	if cmr.CurrentStatus == CmrStatusDelivered {
		return nil, errors.New("cannot delete a delivered CMR")
	}

	db := config.GetDB()
	tx := db.Begin()
	if err := tx.WithContext(ctx).Delete(&cmr).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	// deleting association
	if err := deleteDocuments(ctx, tx, cmr.Documents); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := createHistory(tx, "DELETE", cmr.ID, "cmrs", cmr, nil, "Deleted CMR "+cmr.CmrNumber); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := EnqueueOrderEvent(ctx, tx, businessId, cmr.IssueDate, cmr.ID, OrderReferenceTypeCmr, cmr, nil, PubSubMessageActionDelete); err != nil {
		tx.Rollback()
		return nil, err
	}

	// caching
	if err := RemoveRedisBoth(*cmr); err != nil {
		tx.Rollback()
		return nil, err
	}

	return cmr, tx.Commit().Error
}

func GetCmr(ctx context.Context, id int) (*Cmr, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	return utils.FetchModel[Cmr](ctx, businessId, id, "Documents")
}

func GetCmrs(ctx context.Context, supplierId *int, currentStatus *string) ([]*Cmr, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	db := config.GetDB()
	var results []*Cmr

	dbCtx := db.WithContext(ctx).Where("business_id = ?", businessId)
	if supplierId != nil && *supplierId > 0 {
		dbCtx = dbCtx.Where("supplier_id = ?", supplierId)
	}
	if currentStatus != nil && *currentStatus != "" {
		status, err := ParseCmrStatus(*currentStatus)
		if err != nil {
			return nil, err
		}
		dbCtx = dbCtx.Where("current_status = ?", status)
	}
	if err := dbCtx.Order("created_at DESC").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func PaginateCmr(ctx context.Context,
	limit int,
	after *string,
	cmrNumber *string,
	supplierID *int,
	currentStatus *string,
	issueDateStart *MyDateString,
	issueDateEnd *MyDateString,
) (*CmrsConnection, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	business, err := GetBusinessById(ctx, businessId)
	if err != nil {
		return nil, err
	}
	if err := issueDateStart.StartOfDayUTCTime(business.Timezone); err != nil {
		return nil, err
	}
	if err := issueDateEnd.EndOfDayUTCTime(business.Timezone); err != nil {
		return nil, err
	}

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Where("business_id = ?", businessId)
	if cmrNumber != nil && *cmrNumber != "" {
		dbCtx = dbCtx.Where("cmr_number LIKE ?", "%"+*cmrNumber+"%")
	}
	if supplierID != nil && *supplierID > 0 {
		dbCtx = dbCtx.Where("supplier_id = ?", *supplierID)
	}
	if currentStatus != nil && *currentStatus != "" {
		status, err := ParseCmrStatus(*currentStatus)
		if err != nil {
			return nil, err
		}
		dbCtx = dbCtx.Where("current_status = ?", status)
	}
	if issueDateStart != nil && issueDateEnd != nil {
		dbCtx = dbCtx.Where("issue_date BETWEEN ? AND ?", time.Time(*issueDateStart), time.Time(*issueDateEnd))
	}

	edges, pageInfo, err := FetchPageCompositeCursor[Cmr](dbCtx, limit, after, "created_at", "<")
	if err != nil {
		return nil, err
	}

	var connection CmrsConnection
	connection.PageInfo = pageInfo
	for _, edge := range edges {
		cmrsEdge := CmrsEdge(edge)
		connection.Edges = append(connection.Edges, &cmrsEdge)
	}
	return &connection, nil
}
