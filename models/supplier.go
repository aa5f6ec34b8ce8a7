package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/nordfoods/mrp_backend/config"
	"bitbucket.org/nordfoods/mrp_backend/utils"
)

type Supplier struct {
	ID                             int          `gorm:"primary_key" json:"id"`
	BusinessId                     string       `gorm:"index;not null" json:"business_id" binding:"required"`
	Name                           string       `gorm:"size:100;not null" json:"name" binding:"required"`
	Email                          string       `gorm:"size:100" json:"email"`
	Phone                          string       `gorm:"size:20" json:"phone"`
	Mobile                         string       `gorm:"size:20" json:"mobile"`
	VatNumber                      string       `gorm:"size:40" json:"vat_number"`
	Address                        string       `gorm:"size:255" json:"address"`
	City                           string       `gorm:"size:100" json:"city"`
	Country                        string       `gorm:"size:100" json:"country"`
	CurrencyCode                   string       `gorm:"size:3;not null;default:'EUR'" json:"currency_code"`
	SupplierPaymentTerms           PaymentTerms `gorm:"type:enum('Net15', 'Net30', 'Net45', 'Net60', 'DueMonthEnd', 'DueNextMonthEnd', 'DueOnReceipt', 'Custom');not null;default:'DueOnReceipt'" json:"supplier_payment_terms" binding:"required"`
	SupplierPaymentTermsCustomDays int          `gorm:"default:0" json:"supplier_payment_terms_custom_days"`
	Notes                          string       `gorm:"type:text" json:"notes"`
	Documents                      []*Document  `gorm:"polymorphic:Reference" json:"-"`
	IsActive                       *bool        `gorm:"not null;default:true" json:"is_active"`
	CreatedAt                      time.Time    `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt                      time.Time    `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewSupplier struct {
	Name                           string         `json:"name" binding:"required"`
	Email                          string         `json:"email"`
	Phone                          string         `json:"phone"`
	Mobile                         string         `json:"mobile"`
	VatNumber                      string         `json:"vat_number"`
	Address                        string         `json:"address"`
	City                           string         `json:"city"`
	Country                        string         `json:"country"`
	CurrencyCode                   string         `json:"currency_code" binding:"required"`
	SupplierPaymentTerms           PaymentTerms   `json:"supplier_payment_terms" binding:"required"`
	SupplierPaymentTermsCustomDays int            `json:"supplier_payment_terms_custom_days"`
	Notes                          string         `json:"notes"`
	Documents                      []*NewDocument `json:"documents"`
}

type SuppliersEdge Edge[Supplier]
type SuppliersConnection struct {
	PageInfo *PageInfo        `json:"pageInfo"`
	Edges    []*SuppliersEdge `json:"edges"`
}

// node
// returns decoded curosr string
func (s Supplier) GetCursor() string {
	return s.CreatedAt.String()
}

func (input *NewSupplier) validate(ctx context.Context, businessId string, id int) error {
	// validate unique name
	if err := utils.ValidateUnique[Supplier](ctx, businessId, "name", input.Name, id); err != nil {
		return err
	}
	// validate email
	if input.Email != "" && len(input.Email) > 0 {
		if !utils.IsValidEmail(input.Email) {
			return errors.New("invalid email")
		}
		if err := utils.ValidateUnique[Supplier](ctx, businessId, "email", input.Email, id); err != nil {
			return err
		}
	}
	// validate phone
	if input.Phone != "" && len(input.Phone) > 0 {
		if err := utils.ValidatePhoneNumber(input.Phone, utils.CountryCode); err != nil {
			return err
		}
		if err := utils.ValidateUnique[Supplier](ctx, businessId, "phone", input.Phone, id); err != nil {
			return err
		}
	}
	if _, err := ParsePaymentTerms(string(input.SupplierPaymentTerms)); err != nil {
		return err
	}
	return nil
}

func CreateSupplier(ctx context.Context, input *NewSupplier) (*Supplier, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	if err := input.validate(ctx, businessId, 0); err != nil {
		return nil, err
	}

	documents, err := mapNewDocuments(input.Documents, "suppliers", 0)
	if err != nil {
		return nil, err
	}
	supplier := Supplier{
		BusinessId:                     businessId,
		Name:                           input.Name,
		Email:                          input.Email,
		Phone:                          input.Phone,
		Mobile:                         input.Mobile,
		VatNumber:                      input.VatNumber,
		Address:                        input.Address,
		City:                           input.City,
		Country:                        input.Country,
		CurrencyCode:                   input.CurrencyCode,
		SupplierPaymentTerms:           input.SupplierPaymentTerms,
		SupplierPaymentTermsCustomDays: input.SupplierPaymentTermsCustomDays,
		Notes:                          input.Notes,
		IsActive:                       utils.NewTrue(),
		// associations
		Documents: documents,
	}

	db := config.GetDB()
	tx := db.Begin()
	if err := tx.WithContext(ctx).Create(&supplier).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := SaveHistoryCreate(tx.WithContext(ctx), supplier.ID, "suppliers", &supplier, "Created Supplier "+supplier.Name); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return &supplier, nil
}

func UpdateSupplier(ctx context.Context, id int, input *NewSupplier) (*Supplier, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	if err := input.validate(ctx, businessId, id); err != nil {
		return nil, err
	}

	supplier, err := utils.FetchModel[Supplier](ctx, businessId, id)
	if err != nil {
		return nil, err
	}
	before := *supplier

	db := config.GetDB()
	tx := db.Begin()
	err = tx.WithContext(ctx).Model(supplier).
		Updates(map[string]interface{}{
			"Name":                           input.Name,
			"Email":                          input.Email,
			"Phone":                          input.Phone,
			"Mobile":                         input.Mobile,
			"VatNumber":                      input.VatNumber,
			"Address":                        input.Address,
			"City":                           input.City,
			"Country":                        input.Country,
			"CurrencyCode":                   input.CurrencyCode,
			"SupplierPaymentTerms":           input.SupplierPaymentTerms,
			"SupplierPaymentTermsCustomDays": input.SupplierPaymentTermsCustomDays,
			"Notes":                          input.Notes,
		}).Error
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	// upserting association
	if _, err := upsertDocuments(ctx, tx, input.Documents, "suppliers", id); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := SaveHistoryUpdate(tx.WithContext(ctx), id, "suppliers", &before, input, "Updated Supplier "+input.Name); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return supplier, nil
}

// DeleteSupplier is blocked while purchase orders or catalog entries still
// reference the supplier.
func DeleteSupplier(ctx context.Context, id int) (*Supplier, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	result, err := utils.FetchModel[Supplier](ctx, businessId, id, "Documents")
	if err != nil {
		return nil, utils.ErrorRecordNotFound
	}

	count, err := utils.ResourceCountWhere[PurchaseOrder](ctx, businessId, "supplier_id = ?", id)
	if err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, errors.New("purchase order associated with supplier exists")
	}

	count, err = utils.ResourceCountWhere[SupplierProduct](ctx, businessId, "supplier_id = ?", id)
	if err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, errors.New("catalog entry associated with supplier exists")
	}

	count, err = utils.ResourceCountWhere[Cmr](ctx, businessId, "supplier_id = ?", id)
	if err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, errors.New("cmr associated with supplier exists")
	}

	db := config.GetDB()
	tx := db.Begin()
	err = tx.WithContext(ctx).Delete(&result).Error
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	// clearing associated data
	if err := deleteDocuments(ctx, tx, result.Documents); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := SaveHistoryDelete(tx.WithContext(ctx), id, "suppliers", result, "Deleted Supplier "+result.Name); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	return result, nil

}

func GetSupplier(ctx context.Context, id int) (*Supplier, error) {
	return GetResource[Supplier](ctx, id)
}

func GetSuppliers(ctx context.Context, name *string) ([]*Supplier, error) {
	db := config.GetDB()
	var results []*Supplier

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	dbCtx := db.WithContext(ctx).Where("business_id = ?", businessId)
	if name != nil && len(*name) > 0 {
		dbCtx = dbCtx.Where("name LIKE ?", "%"+*name+"%")
	}
	err := dbCtx.
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

func ToggleActiveSupplier(ctx context.Context, id int, isActive bool) (*Supplier, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	return ToggleActiveModel[Supplier](ctx, businessId, id, isActive)
}

func PaginateSupplier(ctx context.Context, limit *int, after *string,
	name *string, phone *string, email *string, isActive *bool) (*SuppliersConnection, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Where("business_id = ?", businessId)
	if name != nil && *name != "" {
		dbCtx.Where("name LIKE ?", "%"+*name+"%")
	}
	if phone != nil && *phone != "" {
		dbCtx.Where("phone LIKE ?", "%"+*phone+"%")
	}
	if email != nil && *email != "" {
		dbCtx.Where("email LIKE ?", "%"+*email+"%")
	}
	if isActive != nil {
		dbCtx.Where("is_active = ?", isActive)
	}
	edges, pageInfo, err := FetchPageCompositeCursor[Supplier](dbCtx, *limit, after, "created_at", "<")
	if err != nil {
		return nil, err
	}
	var suppliersConnection SuppliersConnection
	suppliersConnection.PageInfo = pageInfo
	for _, edge := range edges {
		supplierEdge := SuppliersEdge(edge)
		suppliersConnection.Edges = append(suppliersConnection.Edges, &supplierEdge)
	}
	return &suppliersConnection, err
}
