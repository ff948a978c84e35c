package database

import (
	"time"
)

type FlyerRepository interface {
	FlyerExists(flyerID int64) (bool, error)
	GetFlyer(flyerID int64) (*Flyer, error)
	GetFlyerCount() (int, error)

	InsertFlyer(flyer Flyer) error
	MarkRetrieved(flyerID int64) error
	ListPendingFlyers() ([]Flyer, error)
	DeleteExpired(before time.Time) (int64, error)
}

type ProductRepository interface {
	InsertProduct(product Product) (bool, error)
	GetProducts(flyerID int64) ([]Product, error)
	GetProductCount(flyerID int64) (int, error)
}
