package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bitbucket.org/nordfoods/mrp_backend/config"
	"bitbucket.org/nordfoods/mrp_backend/utils"
	"github.com/google/uuid"
)

type Business struct {
	ID                          uuid.UUID `gorm:"primary_key" json:"id"`
	LogoUrl                     string    `json:"logo_url"`
	Name                        string    `gorm:"index;size:100;not null" json:"name" binding:"required"`
	ContactName                 string    `gorm:"size:100" json:"contact_name"`
	Email                       string    `gorm:"size:255" json:"email"`
	Phone                       string    `gorm:"size:20" json:"phone"`
	Mobile                      string    `gorm:"size:20" json:"mobile"`
	Website                     string    `gorm:"size:255" json:"website"`
	About                       string    `gorm:"type:text" json:"about"`
	Address                     string    `gorm:"type:text" json:"address"`
	Country                     string    `gorm:"size:100"  json:"country"`
	City                        string    `gorm:"size:100"  json:"city"`
	VatNumber                   string    `gorm:"size:100" json:"vat_number"`
	Timezone                    string    `gorm:"size:50" json:"timezone"`
	PurchaseTransactionLockDate time.Time `json:"purchase_transaction_lock_date"`
	IsActive                    *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt                   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt                   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewBusiness struct {
	LogoUrl     string `json:"logo_url"`
	Name        string `json:"name" binding:"required"`
	ContactName string `json:"contact_name"`
	Email       string `json:"email" binding:"required"`
	Phone       string `json:"phone"`
	Mobile      string `json:"mobile"`
	Website     string `json:"website"`
	About       string `json:"about"`
	Address     string `json:"address"`
	Country     string `json:"country"`
	City        string `json:"city"`
	VatNumber   string `json:"vat_number"`
	Timezone    string `json:"timezone"`
}

type NewTransactionLocking struct {
	PurchaseTransactionLockDate time.Time `json:"purchase_transaction_lock_date"`
	Reason                      string    `json:"reason"`
}

type TransactionLockingRecord struct {
	ID                          int       `gorm:"primary_key" json:"id"`
	BusinessId                  string    `gorm:"index;not null" json:"business_id"`
	PurchaseTransactionLockDate time.Time `json:"purchase_transaction_lock_date"`
	Reason                      string    `gorm:"default:null" json:"reason"`
	UserId                      int       `gorm:"index;not null" json:"user_id"`
	UserName                    string    `gorm:"size:100" json:"user_name"`
	CreatedAt                   time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (business *Business) StoreRedis() error {
	return config.SetRedisObject("Business:"+fmt.Sprint(business.ID), business, 0)
}

func (business *Business) RemoveRedis() error {
	return config.RemoveRedisKey("Business:" + fmt.Sprint(business.ID))
}

func (input *NewBusiness) validate(ctx context.Context, id string) error {
	// name
	if err := utils.ValidateUnique[Business](ctx, "", "name", input.Name, id); err != nil {
		return err
	}
	// email
	if err := utils.ValidateUnique[Business](ctx, "", "email", input.Email, id); err != nil {
		return err
	}
	// phone
	if input.Phone != "" {
		if err := utils.ValidateUnique[Business](ctx, "", "phone", input.Phone, id); err != nil {
			return err
		}
	}
	// mobile
	if input.Mobile != "" {
		if err := utils.ValidateUnique[Business](ctx, "", "mobile", input.Mobile, id); err != nil {
			return err
		}
	}
	// website
	if input.Website != "" {
		if err := utils.ValidateUnique[Business](ctx, "", "website", input.Website, id); err != nil {
			return err
		}
	}
	return nil
}

func CreateBusiness(ctx context.Context, input *NewBusiness) (*Business, error) {
	// only admin have access

	// When creating a business,
	// - create 'Owner' user
	if err := input.validate(ctx, ""); err != nil {
		return nil, err
	}
	db := config.GetDB()

	tx := db.Begin()

	BID := uuid.New()
	timezone := "Europe/Warsaw"
	if input.Timezone != "" {
		timezone = input.Timezone
	}

	business := Business{
		ID:                          BID,
		LogoUrl:                     input.LogoUrl,
		Name:                        input.Name,
		ContactName:                 input.ContactName,
		Email:                       input.Email,
		Phone:                       input.Phone,
		Mobile:                      input.Mobile,
		Website:                     input.Website,
		About:                       input.About,
		Address:                     input.Address,
		Country:                     input.Country,
		City:                        input.City,
		VatNumber:                   input.VatNumber,
		Timezone:                    timezone,
		IsActive:                    utils.NewTrue(),
		PurchaseTransactionLockDate: time.Time{},
	}

	// create business
	err := tx.WithContext(ctx).Create(&business).Error
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	businessId := business.ID.String()
	ctx = context.WithValue(ctx, utils.ContextKeyBusinessId, businessId)

	if _, err := CreateDefaultOwner(tx, ctx, businessId, business.Email, business.Name); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err = tx.Commit().Error; err != nil {
		return nil, err
	}

	// caching
	if err := utils.ClearRedisAdmin[Business](); err != nil {
		return nil, err
	}

	return &business, nil
}

func UpdateBusiness(ctx context.Context, input *NewBusiness) (*Business, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	if err := input.validate(ctx, businessId); err != nil {
		return nil, err
	}

	// db action
	db := config.GetDB()
	tx := db.Begin()
	var business Business
	if err := db.WithContext(ctx).Where("id = ?", businessId).First(&business).Error; err != nil {
		return nil, err
	}

	err := tx.WithContext(ctx).Model(&business).Updates(map[string]interface{}{
		"LogoUrl":     input.LogoUrl,
		"Name":        input.Name,
		"ContactName": input.ContactName,
		"Email":       input.Email,
		"Phone":       input.Phone,
		"Mobile":      input.Mobile,
		"Website":     input.Website,
		"About":       input.About,
		"Address":     input.Address,
		"Country":     input.Country,
		"City":        input.City,
		"VatNumber":   input.VatNumber,
	}).Error
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	// caching
	if err := business.RemoveRedis(); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := utils.ClearRedisAdmin[Business](); err != nil {
		tx.Rollback()
		return nil, err
	}
	return &business, tx.Commit().Error
}

func UpdateTransactionLocking(ctx context.Context, input NewTransactionLocking) (*Business, error) {
	db := config.GetDB()

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	// check exists
	var business Business
	if err := db.WithContext(ctx).Where("id = ?", businessId).First(&business).Error; err != nil {
		return nil, utils.ErrorRecordNotFound
	}

	userId, ok := utils.GetUserIdFromContext(ctx)
	if !ok {
		return nil, errors.New("user id is required")
	}
	userName, ok := utils.GetUserNameFromContext(ctx)
	if !ok {
		return nil, errors.New("user id is required")
	}

	// db action
	tx := db.Begin()
	err := tx.WithContext(ctx).Model(&business).Updates(map[string]interface{}{
		"PurchaseTransactionLockDate": input.PurchaseTransactionLockDate,
	}).Error
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	transactionLockingRecord := TransactionLockingRecord{
		BusinessId:                  businessId,
		PurchaseTransactionLockDate: input.PurchaseTransactionLockDate,
		Reason:                      input.Reason,
		UserId:                      userId,
		UserName:                    userName,
	}
	err = tx.WithContext(ctx).Create(&transactionLockingRecord).Error
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	// caching
	if err := business.RemoveRedis(); err != nil {
		return nil, err
	}
	if err := utils.ClearRedisAdmin[Business](); err != nil {
		return nil, err
	}
	return &business, nil
}

func ToggleActiveBusiness(ctx context.Context, id uuid.UUID, isActive bool) (*Business, error) {

	db := config.GetDB()
	var result Business

	// check exists
	err := db.WithContext(ctx).Where("id = ?", id).First(&result).Error
	if err != nil {
		return nil, utils.ErrorRecordNotFound
	}

	// db action
	tx := db.Begin()
	err = tx.WithContext(ctx).Model(&result).Updates(map[string]interface{}{
		"IsActive": isActive,
	}).Error
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	// toggling related users
	err = tx.WithContext(ctx).Model(&User{}).Where("business_id = ?", id).Updates(map[string]interface{}{
		"IsActive": isActive,
	}).Error
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	// caching
	if err := result.RemoveRedis(); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := utils.ClearRedisAdmin[Business](); err != nil {
		tx.Rollback()
		return nil, err
	}
	return &result, tx.Commit().Error
}

// ReconcileCatalog triggers reprocessing of any unprocessed order events for
// the business via the worker reconcile flow.
func ReconcileCatalog(ctx context.Context, businessId string) (bool, error) {

	msg := config.PubSubMessage{
		BusinessId:    businessId,
		ReferenceType: "Reconcile",
		CorrelationId: "",
	}
	// attach correlation_id if present
	if cid, ok := utils.GetCorrelationIdFromContext(ctx); ok {
		msg.CorrelationId = cid
	}

	_, err := config.PublishOrderEventWithResult(ctx, businessId, msg)
	if err != nil {
		return false, err
	}
	return true, nil
}

func GetBusinessById(ctx context.Context, id string) (*Business, error) {

	var result Business

	exists, err := config.GetRedisObject("Business:"+id, &result)
	if err != nil {
		return nil, err
	}

	if !exists {
		db := config.GetDB()
		// db query
		err := db.WithContext(ctx).Where("id = ?", id).First(&result).Error
		if err != nil {
			return nil, utils.ErrorRecordNotFound
		}
		// caching
		if err := result.StoreRedis(); err != nil {
			return nil, err
		}
	}
	return &result, nil
}

func GetBusiness(ctx context.Context) (*Business, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	return GetBusinessById(ctx, businessId)
}

func GetBusinesses(ctx context.Context, name *string) ([]*Business, error) {

	db := config.GetDB()
	var results []*Business

	dbCtx := db.WithContext(ctx)
	if name != nil && len(*name) > 0 {
		dbCtx = dbCtx.Where("name LIKE ?", "%"+*name+"%")
	}
	// db query
	err := dbCtx.Order("name").Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

func GetTransactionLockingRecords(ctx context.Context, userId *int) ([]*TransactionLockingRecord, error) {

	db := config.GetDB()
	var results []*TransactionLockingRecord

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	dbCtx := db.WithContext(ctx).Where("business_id = ?", businessId)
	if userId != nil && *userId > 0 {
		dbCtx = dbCtx.Where("user_id = ?", userId)
	}
	err := dbCtx.Order("created_at DESC").Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}
