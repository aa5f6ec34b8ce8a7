package models

import (
	"bitbucket.org/nordfoods/mrp_backend/utils"
)

type RedisCleaner interface {
	RemoveInstanceRedis() error // remove one
	RemoveAllRedis() error      // remove list & map if exists
}

// remove both item & list + map
func RemoveRedisBoth[T RedisCleaner](obj T) error {
	if err := obj.RemoveInstanceRedis(); err != nil {
		return err
	}
	if err := obj.RemoveAllRedis(); err != nil {
		return err
	}
	return nil
}

func (obj Supplier) RemoveInstanceRedis() error {
	if err := utils.RemoveRedisItem[Supplier](obj.ID); err != nil {
		return err
	}
	return nil
}

func (obj Supplier) RemoveAllRedis() error {
	return nil
}

func (obj Product) RemoveInstanceRedis() error {
	if err := utils.RemoveRedisItem[Product](obj.ID); err != nil {
		return err
	}
	return nil
}

func (obj Product) RemoveAllRedis() error {
	return nil
}

func (obj SupplierProduct) RemoveInstanceRedis() error {
	if err := utils.RemoveRedisItem[SupplierProduct](obj.ID); err != nil {
		return err
	}
	return nil
}

func (obj SupplierProduct) RemoveAllRedis() error {
	// per-supplier catalog list cache
	return ClearSupplierCatalogCache(obj.BusinessId, obj.SupplierId)
}

func (obj PurchaseOrder) RemoveInstanceRedis() error {
	if err := utils.RemoveRedisItem[PurchaseOrder](obj.ID); err != nil {
		return err
	}
	return nil
}

func (obj PurchaseOrder) RemoveAllRedis() error {
	return nil
}

func (obj Cmr) RemoveInstanceRedis() error {
	if err := utils.RemoveRedisItem[Cmr](obj.ID); err != nil {
		return err
	}
	return nil
}

func (obj Cmr) RemoveAllRedis() error {
	return nil
}
