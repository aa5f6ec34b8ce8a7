package models

type Identifier interface {
	GetId() int
}

func (s Supplier) GetId() int {
	return s.ID
}

func (p Product) GetId() int {
	return p.ID
}

func (po PurchaseOrder) GetId() int {
	return po.ID
}

func (d PurchaseOrderDetail) GetId() int {
	return d.ID
}

func (c Cmr) GetId() int {
	return c.ID
}

func (d Document) GetId() int {
	return d.ID
}

func (u User) GetId() int {
	return u.ID
}

func (r PubSubMessageRecord) GetId() int {
	return r.ID
}
