package services

import (
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"listing-service/images"
	"listing-service/models"

	"github.com/go-playground/validator/v10"
)

var whatsAppPattern = regexp.MustCompile(`^91\d{10}$`)

// Messages returned for each failed rule.
const (
	MsgInvalidWhatsApp = "Invalid WhatsApp number. Use 12 digits starting with 91, e.g. 919876543210"
	MsgInvalidPrice    = "Price must be a whole number of at least 1"
	MsgImageRequired   = "Image is required"
	MsgImageTooLarge   = "Image must be 5MB or smaller"
	MsgImageType       = "Only JPEG, PNG, WEBP and GIF images are allowed"
	MsgNothingToUpdate = "No fields provided to update"
)

// rulePriority fixes the order in which failures are reported: missing fields
// first, then the phone number, then price and condition.
var rulePriority = []string{"required", "whatsapp", "price", "condition"}

// ListingValidator applies the listing field rules.
type ListingValidator struct {
	validate *validator.Validate
}

func NewListingValidator() *ListingValidator {
	v := validator.New()

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("whatsapp", func(fl validator.FieldLevel) bool {
		return IsValidWhatsApp(fl.Field().String())
	})
	_ = v.RegisterValidation("price", func(fl validator.FieldLevel) bool {
		_, err := ParsePrice(fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("condition", func(fl validator.FieldLevel) bool {
		return models.Condition(fl.Field().String()).Valid()
	})

	return &ListingValidator{validate: v}
}

// IsValidWhatsApp reports whether number is "91" followed by ten digits.
func IsValidWhatsApp(number string) bool {
	return whatsAppPattern.MatchString(number)
}

// ParsePrice parses a whole-number price of at least 1.
func ParsePrice(raw string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 1 {
		return 0, &ValidationError{Field: "price", Message: MsgInvalidPrice}
	}
	return n, nil
}

// Trim strips surrounding whitespace from every field.
func (r *ListingCreateRequest) Trim() {
	r.Name = strings.TrimSpace(r.Name)
	r.Price = strings.TrimSpace(r.Price)
	r.Seller = strings.TrimSpace(r.Seller)
	r.WhatsApp = strings.TrimSpace(r.WhatsApp)
	r.Condition = strings.TrimSpace(r.Condition)
	r.Description = strings.TrimSpace(r.Description)
	r.ImagePath = strings.TrimSpace(r.ImagePath)
	r.ImagePublicID = strings.TrimSpace(r.ImagePublicID)
}

// Validate checks the text and numeric fields and returns the highest
// priority failure as a *ValidationError.
func (lv *ListingValidator) Validate(req *ListingCreateRequest) error {
	err := lv.validate.Struct(req)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok || len(verrs) == 0 {
		return fmt.Errorf("validate listing: %w", err)
	}
	for _, tag := range rulePriority {
		for _, fe := range verrs {
			if fe.Tag() == tag {
				return &ValidationError{Field: fe.Field(), Message: messageFor(fe)}
			}
		}
	}
	fe := verrs[0]
	return &ValidationError{Field: fe.Field(), Message: messageFor(fe)}
}

func messageFor(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("All fields are required: %s is missing", fe.Field())
	case "whatsapp":
		return MsgInvalidWhatsApp
	case "price":
		return MsgInvalidPrice
	case "condition":
		names := make([]string, 0, len(models.Conditions))
		for _, c := range models.Conditions {
			names = append(names, string(c))
		}
		return "Condition must be one of: " + strings.Join(names, ", ")
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}

// ValidateImage checks presence, size and type of an image payload.
func ValidateImage(img *images.Image) error {
	if img == nil || len(img.Data) == 0 {
		return &ValidationError{Field: "image", Message: MsgImageRequired}
	}
	if len(img.Data) > images.MaxImageSize {
		return &ValidationError{Field: "image", Message: MsgImageTooLarge}
	}
	if !images.IsAllowedContentType(images.DetectContentType(*img)) {
		return &ValidationError{Field: "image", Message: MsgImageType}
	}
	return nil
}
