package domain

import "time"

// Deal aggregates buyer demand for a desired quantity of a product.
type Deal struct {
	ID          string
	HostBuyerID string
	ProductName string
	DesiredQty  int
	CreatedAt   time.Time
}

type Buyer struct {
	ID   string
	Name string
}

type Seller struct {
	ID   string
	Name string
}
