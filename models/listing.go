package models

import "time"

// Condition is the wear state a seller declares for a listing.
type Condition string

const (
	ConditionBrandNew  Condition = "Brand New"
	ConditionLikeNew   Condition = "Like New"
	ConditionExcellent Condition = "Excellent"
	ConditionGood      Condition = "Good"
	ConditionFair      Condition = "Fair"
)

// Conditions lists every accepted condition in display order.
var Conditions = []Condition{
	ConditionBrandNew,
	ConditionLikeNew,
	ConditionExcellent,
	ConditionGood,
	ConditionFair,
}

// Valid reports whether c is one of the accepted conditions.
func (c Condition) Valid() bool {
	for _, known := range Conditions {
		if c == known {
			return true
		}
	}
	return false
}

// Listing is a single classified ad.
type Listing struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Price         int       `json:"price"`
	Seller        string    `json:"seller"`
	WhatsApp      string    `json:"whatsapp"`
	Condition     Condition `json:"condition"`
	Description   string    `json:"description"`
	ImagePath     string    `json:"imagePath"`
	ImagePublicID string    `json:"imagePublicId,omitempty"`
	DateAdded     time.Time `json:"dateAdded"`
	IsActive      bool      `json:"isActive"`
}

// ListingStats summarises the active listings.
type ListingStats struct {
	TotalProducts int64 `json:"totalProducts"`
	TotalSellers  int64 `json:"totalSellers"`
	AveragePrice  int64 `json:"averagePrice"`
}
