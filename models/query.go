package models

// Sort keys accepted by the listing query.
const (
	SortPriceLow  = "price_low"
	SortPriceHigh = "price_high"
	SortName      = "name"
	SortNewest    = "newest"
)

// ListingQuery holds the filters for a listing search. Nil bounds and empty
// strings mean "not filtered".
type ListingQuery struct {
	Search    string
	MinPrice  *int
	MaxPrice  *int
	Condition Condition
	Sort      string
}

// NormalizedSort maps any unknown sort key to SortNewest.
func (q ListingQuery) NormalizedSort() string {
	switch q.Sort {
	case SortPriceLow, SortPriceHigh, SortName:
		return q.Sort
	default:
		return SortNewest
	}
}

// ListingUpdate carries a partial update. Only non-nil fields are applied.
type ListingUpdate struct {
	Name          *string    `json:"name,omitempty"`
	Price         *int       `json:"price,omitempty"`
	Seller        *string    `json:"seller,omitempty"`
	WhatsApp      *string    `json:"whatsapp,omitempty"`
	Condition     *Condition `json:"condition,omitempty"`
	Description   *string    `json:"description,omitempty"`
	ImagePath     *string    `json:"imagePath,omitempty"`
	ImagePublicID *string    `json:"imagePublicId,omitempty"`
}

// IsEmpty reports whether the update sets no field at all.
func (u ListingUpdate) IsEmpty() bool {
	return u.Name == nil && u.Price == nil && u.Seller == nil && u.WhatsApp == nil &&
		u.Condition == nil && u.Description == nil && u.ImagePath == nil && u.ImagePublicID == nil
}

// Apply copies the set fields onto l. ID, DateAdded and IsActive are never touched.
func (u ListingUpdate) Apply(l *Listing) {
	if u.Name != nil {
		l.Name = *u.Name
	}
	if u.Price != nil {
		l.Price = *u.Price
	}
	if u.Seller != nil {
		l.Seller = *u.Seller
	}
	if u.WhatsApp != nil {
		l.WhatsApp = *u.WhatsApp
	}
	if u.Condition != nil {
		l.Condition = *u.Condition
	}
	if u.Description != nil {
		l.Description = *u.Description
	}
	if u.ImagePath != nil {
		l.ImagePath = *u.ImagePath
	}
	if u.ImagePublicID != nil {
		l.ImagePublicID = *u.ImagePublicID
	}
}
