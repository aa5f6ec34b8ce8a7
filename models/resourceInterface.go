package models

func (s Supplier) GetBusinessId() string {
	return s.BusinessId
}

func (p Product) GetBusinessId() string {
	return p.BusinessId
}

func (sp SupplierProduct) GetBusinessId() string {
	return sp.BusinessId
}

func (po PurchaseOrder) GetBusinessId() string {
	return po.BusinessId
}

func (c Cmr) GetBusinessId() string {
	return c.BusinessId
}

func (h History) GetBusinessId() string {
	return h.BusinessId
}

func (a PubSubMessageRecord) GetBusinessId() string {
	return a.BusinessId
}

func (u User) GetBusinessId() string {
	return u.BusinessId
}
