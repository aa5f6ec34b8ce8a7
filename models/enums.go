package models

import (
	"errors"
	"fmt"
	"strconv"
	"time"
)

type PaymentTerms string

const (
	PaymentTermsNet15             PaymentTerms = "Net15"
	PaymentTermsNet30             PaymentTerms = "Net30"
	PaymentTermsNet45             PaymentTerms = "Net45"
	PaymentTermsNet60             PaymentTerms = "Net60"
	PaymentTermsDueEndOfMonth     PaymentTerms = "DueMonthEnd"
	PaymentTermsDueEndOfNextMonth PaymentTerms = "DueNextMonthEnd"
	PaymentTermsDueOnReceipt      PaymentTerms = "DueOnReceipt"
	PaymentTermsCustom            PaymentTerms = "Custom"
)

func ParsePaymentTerms(s string) (PaymentTerms, error) {
	paymentTerms := map[string]PaymentTerms{
		"Net15":           PaymentTermsNet15,
		"Net30":           PaymentTermsNet30,
		"Net45":           PaymentTermsNet45,
		"Net60":           PaymentTermsNet60,
		"DueMonthEnd":     PaymentTermsDueEndOfMonth,
		"DueNextMonthEnd": PaymentTermsDueEndOfNextMonth,
		"DueOnReceipt":    PaymentTermsDueOnReceipt,
		"Custom":          PaymentTermsCustom,
	}
	p, ok := paymentTerms[s]
	if !ok {
		return "", errors.New("invalid paymentTerms")
	}
	return p, nil
}

type ProductType string

const (
	// ProductTypeSingle references a row in the products table.
	ProductTypeSingle ProductType = "S"
	// ProductTypeInput is a free-text line not backed by an item master record.
	ProductTypeInput ProductType = "I"
)

func ParseProductType(s string) (ProductType, error) {
	switch s {
	case "S":
		return ProductTypeSingle, nil
	case "I":
		return ProductTypeInput, nil
	default:
		return "", errors.New("invalid product type")
	}
}

type PurchaseOrderStatus string

const (
	PurchaseOrderStatusDraft     PurchaseOrderStatus = "Draft"
	PurchaseOrderStatusConfirmed PurchaseOrderStatus = "Confirmed"
	PurchaseOrderStatusClosed    PurchaseOrderStatus = "Closed"
	PurchaseOrderStatusCancelled PurchaseOrderStatus = "Cancelled"
)

func ParsePurchaseOrderStatus(s string) (PurchaseOrderStatus, error) {
	purchaseOrderStatus := map[string]PurchaseOrderStatus{
		"Draft":     PurchaseOrderStatusDraft,
		"Confirmed": PurchaseOrderStatusConfirmed,
		"Closed":    PurchaseOrderStatusClosed,
		"Cancelled": PurchaseOrderStatusCancelled,
	}
	st, ok := purchaseOrderStatus[s]
	if !ok {
		return "", errors.New("invalid purchase order status")
	}
	return st, nil
}

// IsCatalogRelevant reports whether orders in this status contribute to the
// supplier product catalog. Draft and Cancelled orders never do.
func (s PurchaseOrderStatus) IsCatalogRelevant() bool {
	return s == PurchaseOrderStatusConfirmed || s == PurchaseOrderStatusClosed
}

type CertificateType string

const (
	CertificateTypeEco    CertificateType = "eco"
	CertificateTypeHalal  CertificateType = "halal"
	CertificateTypeKosher CertificateType = "kosher"
	CertificateTypeVegan  CertificateType = "vegan"
	CertificateTypeVege   CertificateType = "vege"
	CertificateTypeGmp    CertificateType = "gmp"
	CertificateTypeIso    CertificateType = "iso"
	CertificateTypeOther  CertificateType = "other"
)

func ParseCertificateType(s string) (CertificateType, error) {
	certificateTypes := map[string]CertificateType{
		"eco":    CertificateTypeEco,
		"halal":  CertificateTypeHalal,
		"kosher": CertificateTypeKosher,
		"vegan":  CertificateTypeVegan,
		"vege":   CertificateTypeVege,
		"gmp":    CertificateTypeGmp,
		"iso":    CertificateTypeIso,
		"other":  CertificateTypeOther,
	}
	c, ok := certificateTypes[s]
	if !ok {
		return "", errors.New("invalid certificate type")
	}
	return c, nil
}

type CmrStatus string

const (
	CmrStatusDraft     CmrStatus = "Draft"
	CmrStatusIssued    CmrStatus = "Issued"
	CmrStatusInTransit CmrStatus = "InTransit"
	CmrStatusDelivered CmrStatus = "Delivered"
)

func ParseCmrStatus(s string) (CmrStatus, error) {
	cmrStatus := map[string]CmrStatus{
		"Draft":     CmrStatusDraft,
		"Issued":    CmrStatusIssued,
		"InTransit": CmrStatusInTransit,
		"Delivered": CmrStatusDelivered,
	}
	st, ok := cmrStatus[s]
	if !ok {
		return "", errors.New("invalid cmr status")
	}
	return st, nil
}

type PubSubMessageAction string

const (
	PubSubMessageActionCreate  PubSubMessageAction = "C"
	PubSubMessageActionUpdate  PubSubMessageAction = "U"
	PubSubMessageActionDelete  PubSubMessageAction = "D"
	PubSubMessageActionConfirm PubSubMessageAction = "F"
)

func ParsePubSubMessageAction(s string) (PubSubMessageAction, error) {
	switch s {
	case "C":
		return PubSubMessageActionCreate, nil
	case "U":
		return PubSubMessageActionUpdate, nil
	case "D":
		return PubSubMessageActionDelete, nil
	case "F":
		return PubSubMessageActionConfirm, nil
	default:
		return "", errors.New("invalid pub sub message action")
	}
}

// OrderReferenceType identifies the record an outbox/event row points at.
type OrderReferenceType string

const (
	OrderReferenceTypePurchaseOrder OrderReferenceType = "PO"
	OrderReferenceTypeCmr           OrderReferenceType = "CMR"
)

func ParseOrderReferenceType(s string) (OrderReferenceType, error) {
	switch s {
	case "PO":
		return OrderReferenceTypePurchaseOrder, nil
	case "CMR":
		return OrderReferenceTypeCmr, nil
	default:
		return "", errors.New("invalid order reference type")
	}
}

type UserRole string

const (
	UserRoleAdmin    UserRole = "A"
	UserRoleOwner    UserRole = "O"
	UserRoleOperator UserRole = "C"
)

func ParseUserRole(s string) (UserRole, error) {
	switch s {
	case "A":
		return UserRoleAdmin, nil
	case "O":
		return UserRoleOwner, nil
	case "C":
		return UserRoleOperator, nil
	default:
		return "", errors.New("invalid user role")
	}
}

type MyDateString time.Time

func (t MyDateString) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(time.Time(t).Format("2006-01-02T15:04:05"))), nil
}

// Parse the string into time.Time object
func (t *MyDateString) UnmarshalJSON(data []byte) error {
	str, err := strconv.Unquote(string(data))
	if err != nil {
		return errors.New("MyDateString must be string")
	}

	// Parse the date string into a time.Time object
	localTime, err := time.Parse("2006-01-02T15:04:05", str)
	if err != nil {
		return errors.New("error parsing datetime")
	}
	*t = MyDateString(localTime)

	return nil
}

func (t *MyDateString) StartOfDayUTCTime(timezone string) error {
	// do nothing if the pointer is nil
	if t == nil {
		return nil
	}

	localTime := time.Time(*t)

	if timezone == "" {
		timezone = "Europe/Warsaw"
	}

	// Load the location for the given timezone
	location, err := time.LoadLocation(timezone)
	if err != nil {
		fmt.Println("Error loading location:", err)
		return err
	}

	// Convert the start of the day local time to the specified timezone
	localTimeInZone := time.Date(
		localTime.Year(), localTime.Month(), localTime.Day(),
		0, 0, 0, 0,
		location,
	)

	// Convert the time to UTC
	utcTime := localTimeInZone.In(time.UTC)
	*t = MyDateString(utcTime)

	return nil
}

func (t *MyDateString) EndOfDayUTCTime(timezone string) error {
	// do nothing if the pointer is nil
	if t == nil {
		return nil
	}

	localTime := time.Time(*t)

	if timezone == "" {
		timezone = "Europe/Warsaw"
	}

	// Load the location for the given timezone
	location, err := time.LoadLocation(timezone)
	if err != nil {
		fmt.Println("Error loading location:", err)
		return err
	}

	// Convert the end of the day local time to the specified timezone
	localTimeInZone := time.Date(
		localTime.Year(), localTime.Month(), localTime.Day(),
		23, 59, 59, 0,
		location,
	)

	// Convert the time to UTC
	utcTime := localTimeInZone.In(time.UTC)
	*t = MyDateString(utcTime)

	return nil
}
