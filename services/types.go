package services

import "fmt"

// ListingCreateRequest carries the raw, untrimmed fields of a new listing.
// Price stays a string until validation so form and JSON input share rules.
type ListingCreateRequest struct {
	Name        string `json:"name" validate:"required"`
	Price       string `json:"price" validate:"required,price"`
	Seller      string `json:"seller" validate:"required"`
	WhatsApp    string `json:"whatsapp" validate:"required,whatsapp"`
	Condition   string `json:"condition" validate:"required,condition"`
	Description string `json:"description" validate:"required"`
	// ImagePath is a pre-hosted image URL, used when no image payload is sent.
	ImagePath string `json:"imagePath"`
	// ImagePublicID is the store handle of ImagePath, as returned by the
	// upload endpoint. It is ignored when an image payload is sent.
	ImagePublicID string `json:"imagePublicId"`
}

// ListingUpdateRequest is a partial update; nil fields are left untouched.
type ListingUpdateRequest struct {
	Name        *string
	Price       *string
	Seller      *string
	WhatsApp    *string
	Condition   *string
	Description *string
	ImagePath   *string
	// ImagePublicID goes with ImagePath. Changing the path without it clears
	// the stored handle.
	ImagePublicID *string
}

func (r ListingUpdateRequest) IsEmpty() bool {
	return r.Name == nil && r.Price == nil && r.Seller == nil && r.WhatsApp == nil &&
		r.Condition == nil && r.Description == nil && r.ImagePath == nil && r.ImagePublicID == nil
}

// ValidationError reports bad client input. Nothing has been written when it
// is returned.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// HealthStatus is the connectivity snapshot served by the health endpoint.
type HealthStatus struct {
	Backend    string
	Connected  bool
	ImageStore string
	Err        error
}
