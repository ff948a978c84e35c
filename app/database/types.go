package database

import (
	"time"
)

type Flyer struct {
	FlyerID    int64
	FlyerURL   string
	Profile    string // site profile the flyer was discovered through
	StoreChain string
	ValidUntil *time.Time // nil when the site omits an expiry date
	Retrieved  bool       // true only after every item has been processed
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type Product struct {
	ID          int64
	FlyerID     int64
	ProductID   string
	ProductName string
	Price       float64
	Unit        string
	URL         string
	ImageURL    string
	CreatedAt   time.Time
}
