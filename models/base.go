package models

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"time"

	"bitbucket.org/nordfoods/mrp_backend/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// EnqueueOrderEvent implements the transactional outbox:
// it writes the message record inside the caller's DB transaction but does NOT publish to Pub/Sub.
// Publishing is performed asynchronously by the outbox dispatcher after commit.
func EnqueueOrderEvent(ctx context.Context, db *gorm.DB, businessId string, transactionDateTime time.Time, refId int, refType OrderReferenceType, obj interface{}, oldObj interface{}, msgAction PubSubMessageAction) error {

	var objInByte []byte
	var oldObjInByte []byte
	var err error

	if msgAction == PubSubMessageActionCreate || msgAction == PubSubMessageActionUpdate || msgAction == PubSubMessageActionConfirm {
		// Documents carry GCS URLs and can be large; the consumer re-reads them anyway.
		objInByte, err = ToJSONWithoutField(obj, "Documents")
		if err != nil {
			return err
		}
	}
	if msgAction == PubSubMessageActionUpdate || msgAction == PubSubMessageActionDelete {
		oldObjInByte, err = ToJSONWithoutField(oldObj, "Documents")
		if err != nil {
			return err
		}
	}

	record := PubSubMessageRecord{
		BusinessId:          businessId,
		TransactionDateTime: transactionDateTime,
		ReferenceId:         refId,
		ReferenceType:       refType,
		Action:              msgAction,
		NewObj:              objInByte,
		OldObj:              oldObjInByte,
		IsProcessed:         false,
		PublishStatus:       OutboxPublishStatusPending,
		CorrelationId:       correlationIdFromContextOrNew(ctx),
	}
	err = db.Create(&record).Error
	if err != nil {
		return err
	}
	return nil
}

func correlationIdFromContextOrNew(ctx context.Context) string {
	if ctx != nil {
		if v, ok := utils.GetCorrelationIdFromContext(ctx); ok && v != "" {
			return v
		}
	}
	return uuid.NewString()
}

// ToJSONWithoutField converts an object to JSON after temporarily removing a specified field
func ToJSONWithoutField(obj interface{}, fieldName string) ([]byte, error) {
	// Get the value of the object
	val := reflect.ValueOf(obj)

	// If the value is an interface, get the concrete value it holds
	if val.Kind() == reflect.Interface {
		val = val.Elem()
	}

	// If the value is not a pointer, create a pointer to it
	if val.Kind() != reflect.Ptr {
		valPtr := reflect.New(val.Type())
		valPtr.Elem().Set(val)
		val = valPtr
	}

	// Dereference the pointer
	val = val.Elem()

	// Ensure the value is a struct
	if val.Kind() != reflect.Struct {
		return nil, fmt.Errorf("expected a struct, got %v", val.Kind())
	}

	// Find the field by name
	field := val.FieldByName(fieldName)
	var err error
	var jsonData []byte
	if field.IsValid() {
		// Check if the field is a slice
		if field.Kind() == reflect.Slice {
			// Iterate over the slice elements
			for i := 0; i < field.Len(); i++ {
				elem := field.Index(i)
				if elem.Kind() == reflect.Struct {
					elemPtr := reflect.New(elem.Type())
					elemPtr.Elem().Set(elem)
					field.Index(i).Set(elemPtr.Elem())
				}
			}
		}

		// Store the original value of the field
		originalValue := reflect.New(field.Type()).Elem()
		originalValue.Set(field)

		// Clear the field value
		field.Set(reflect.Zero(field.Type()))

		// Convert the object to JSON
		jsonData, err = json.Marshal(val.Interface())

		// Restore the original value
		field.Set(originalValue)
	} else {
		// Convert the object to JSON
		jsonData, err = json.Marshal(val.Interface())
	}
	if err != nil {
		return nil, err
	}
	return jsonData, nil
}

func calculateDueDate(date time.Time, paymentTerms PaymentTerms, customDays int) *time.Time {
	var dueDate time.Time
	switch terms := paymentTerms; terms {
	case PaymentTermsDueOnReceipt:
		dueDate = date
	case PaymentTermsNet15:
		dueDate = date.AddDate(0, 0, 15)
	case PaymentTermsNet30:
		dueDate = date.AddDate(0, 0, 30)
	case PaymentTermsNet45:
		dueDate = date.AddDate(0, 0, 45)
	case PaymentTermsNet60:
		dueDate = date.AddDate(0, 0, 60)
	case PaymentTermsDueEndOfMonth:
		year, month, _ := date.Date()
		firstOfMonth := time.Date(year, month, 1, 0, 0, 0, 0, date.Location())
		dueDate = firstOfMonth.AddDate(0, 1, -1)
	case PaymentTermsDueEndOfNextMonth:
		year, month, _ := date.Date()
		firstOfNextMonth := time.Date(year, month+1, 1, 0, 0, 0, 0, date.Location())
		dueDate = firstOfNextMonth.AddDate(0, 1, -1)
	case PaymentTermsCustom:
		dueDate = date.AddDate(0, 0, customDays)
	}
	return &dueDate
}

// validatePurchaseLock blocks writes dated on or before the business's
// purchase lock date (period close).
func validatePurchaseLock(ctx context.Context, transactionDate time.Time, businessId string) error {
	business, err := GetBusinessById(ctx, businessId)
	if err != nil {
		return err
	}
	if business.PurchaseTransactionLockDate.IsZero() {
		return nil
	}
	tDate, err := utils.ConvertToDate(transactionDate, business.Timezone)
	if err != nil {
		return err
	}
	lDate, err := utils.ConvertToDate(business.PurchaseTransactionLockDate, business.Timezone)
	if err != nil {
		return err
	}
	if !tDate.After(lDate) {
		return errors.New("transaction has been locked")
	}
	return nil
}

// ValidatePurchaseLock enforces posting locks (period close) server-side.
// Safe to call from both API mutations and async workers.
func ValidatePurchaseLock(ctx context.Context, transactionDate time.Time, businessId string) error {
	return validatePurchaseLock(ctx, transactionDate, businessId)
}

// ValidateProductId checks the referenced item master row exists for the
// tenant. Free-text (input) lines carry no reference and always pass.
func ValidateProductId(ctx context.Context, businessId string, productId int, productType ProductType) error {
	if productId == 0 || productType == ProductTypeInput {
		return nil
	}
	if productType != ProductTypeSingle {
		return errors.New("invalid product type")
	}
	if err := utils.ValidateResourceId[Product](ctx, businessId, productId); err != nil {
		return errors.New("product not found")
	}
	return nil
}

func ParseDateString(dateString string, timezone string) (time.Time, error) {

	// Parse the date string into a time.Time object
	localTime, err := time.Parse("2006-01-02T15:04:05", dateString)
	if err != nil {
		fmt.Println("Error parsing date:", err)
		return time.Time{}, err
	}

	if timezone == "" {
		timezone = "Europe/Warsaw"
	}

	// Load the location for the given timezone
	location, err := time.LoadLocation(timezone)
	if err != nil {
		fmt.Println("Error loading location:", err)
		return time.Time{}, err
	}

	// Convert the local time to the specified timezone
	localTimeInZone := time.Date(
		localTime.Year(), localTime.Month(), localTime.Day(),
		localTime.Hour(), localTime.Minute(), localTime.Second(), localTime.Nanosecond(),
		location,
	)

	// Convert the time to UTC
	return localTimeInZone.UTC(), nil
}
