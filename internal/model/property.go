package model

import "time"

type PropertyType string

const (
	PropertyHouse      PropertyType = "house"
	PropertyCondo      PropertyType = "condo"
	PropertyLot        PropertyType = "lot"
	PropertyCommercial PropertyType = "commercial"
	PropertyApartment  PropertyType = "apartment"
)

type ListingType string

const (
	ListingSale ListingType = "sale"
	ListingRent ListingType = "rent"
)

// PropertyStatus controls public visibility: only active listings are shown
// to visitors.
type PropertyStatus string

const (
	StatusActive   PropertyStatus = "active"
	StatusSold     PropertyStatus = "sold"
	StatusRented   PropertyStatus = "rented"
	StatusInactive PropertyStatus = "inactive"
)

// Property mirrors the `properties` table.
type Property struct {
	ID           string         `db:"id" json:"id"`
	UserID       string         `db:"user_id" json:"user_id"`
	Title        string         `db:"title" json:"title"`
	Description  *string        `db:"description" json:"description,omitempty"`
	PropertyType PropertyType   `db:"property_type" json:"property_type"`
	ListingType  ListingType    `db:"listing_type" json:"listing_type"`
	PriceCents   int64          `db:"price_cents" json:"price_cents"`
	Location     string         `db:"location" json:"location"`
	City         string         `db:"city" json:"city"`
	Province     string         `db:"province" json:"province"`
	Bedrooms     *int           `db:"bedrooms" json:"bedrooms,omitempty"`
	Bathrooms    *int           `db:"bathrooms" json:"bathrooms,omitempty"`
	FloorArea    *int           `db:"floor_area" json:"floor_area,omitempty"`
	LotArea      *int           `db:"lot_area" json:"lot_area,omitempty"`
	Images       StringList     `db:"images" json:"images"`
	Features     StringList     `db:"features" json:"features"`
	Status       PropertyStatus `db:"status" json:"status"`
	Featured     bool           `db:"featured" json:"featured"`
	Views        int            `db:"views" json:"views"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at" json:"updated_at"`
}

// PropertyInput is the owner-editable part of a listing, shared by create
// and update.
type PropertyInput struct {
	Title        string         `json:"title" validate:"required,max=255"`
	Description  *string        `json:"description" validate:"omitempty,max=10000"`
	PropertyType PropertyType   `json:"property_type" validate:"required,oneof=house condo lot commercial apartment"`
	ListingType  ListingType    `json:"listing_type" validate:"required,oneof=sale rent"`
	PriceCents   int64          `json:"price_cents" validate:"gte=0"`
	Location     string         `json:"location" validate:"required,max=255"`
	City         string         `json:"city" validate:"required,max=128"`
	Province     string         `json:"province" validate:"required,max=128"`
	Bedrooms     *int           `json:"bedrooms" validate:"omitempty,gte=0"`
	Bathrooms    *int           `json:"bathrooms" validate:"omitempty,gte=0"`
	FloorArea    *int           `json:"floor_area" validate:"omitempty,gte=0"`
	LotArea      *int           `json:"lot_area" validate:"omitempty,gte=0"`
	Images       []string       `json:"images" validate:"omitempty,max=30,dive,url"`
	Features     []string       `json:"features" validate:"omitempty,max=50,dive,max=128"`
	Status       PropertyStatus `json:"status" validate:"omitempty,oneof=active sold rented inactive"`
}

// Apply copies the input onto p.  An empty status leaves the current one.
func (in PropertyInput) Apply(p *Property) {
	p.Title = in.Title
	p.Description = in.Description
	p.PropertyType = in.PropertyType
	p.ListingType = in.ListingType
	p.PriceCents = in.PriceCents
	p.Location = in.Location
	p.City = in.City
	p.Province = in.Province
	p.Bedrooms = in.Bedrooms
	p.Bathrooms = in.Bathrooms
	p.FloorArea = in.FloorArea
	p.LotArea = in.LotArea
	p.Images = StringList(in.Images)
	p.Features = StringList(in.Features)
	if in.Status != "" {
		p.Status = in.Status
	}
}
