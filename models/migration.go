package models

import (
	"log"

	"bitbucket.org/nordfoods/mrp_backend/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&Business{}, &TransactionLockingRecord{},
		&User{},
		&Supplier{},
		&Product{},
		&SupplierProduct{},
		&PurchaseOrder{}, &PurchaseOrderDetail{},
		&Cmr{},
		&Document{}, &Image{},
		&History{},
		&PubSubMessageRecord{},
		&IdempotencyKey{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
