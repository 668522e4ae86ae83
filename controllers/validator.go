package controllers

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"listing-service/images"
	"listing-service/models"
	"listing-service/services"

	"github.com/gin-gonic/gin"
)

// Request body limits. Multipart carries the raw image, base64 inflates it by
// a third.
const (
	MaxMultipartBody = images.MaxImageSize + 1<<20
	MaxJSONBody      = images.MaxImageSize*4/3 + 1<<20
	multipartMemory  = 8 << 20
)

// RequestValidator turns HTTP input into service requests. Every error it
// returns is a *services.ValidationError.
type RequestValidator struct{}

func NewRequestValidator() *RequestValidator {
	return &RequestValidator{}
}

func badRequest(field, msg string) error {
	return &services.ValidationError{Field: field, Message: msg}
}

// ParseQuery reads the list filters. Malformed price bounds and unknown
// conditions are rejected; an unknown sort falls back to newest first.
func (rv *RequestValidator) ParseQuery(c *gin.Context) (models.ListingQuery, error) {
	q := models.ListingQuery{
		Search: strings.TrimSpace(c.Query("search")),
		Sort:   strings.TrimSpace(c.Query("sort")),
	}

	var err error
	if q.MinPrice, err = parsePriceBound(c, "minPrice"); err != nil {
		return q, err
	}
	if q.MaxPrice, err = parsePriceBound(c, "maxPrice"); err != nil {
		return q, err
	}
	if q.MinPrice != nil && q.MaxPrice != nil && *q.MinPrice > *q.MaxPrice {
		return q, badRequest("minPrice", "minPrice must be less than or equal to maxPrice")
	}

	if cond := strings.TrimSpace(c.Query("condition")); cond != "" {
		q.Condition = models.Condition(cond)
		if !q.Condition.Valid() {
			return q, badRequest("condition", "invalid condition value")
		}
	}
	return q, nil
}

func parsePriceBound(c *gin.Context, name string) (*int, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return nil, badRequest(name, fmt.Sprintf("invalid %s value", name))
	}
	return &v, nil
}

// ParseMultipartCreate reads form fields plus the optional "image" file.
func (rv *RequestValidator) ParseMultipartCreate(c *gin.Context) (services.ListingCreateRequest, *images.Image, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxMultipartBody)
	if err := c.Request.ParseMultipartForm(multipartMemory); err != nil {
		return services.ListingCreateRequest{}, nil, bodyError(err, "expected multipart form data")
	}

	req := services.ListingCreateRequest{
		Name:          c.PostForm("name"),
		Price:         c.PostForm("price"),
		Seller:        c.PostForm("seller"),
		WhatsApp:      c.PostForm("whatsapp"),
		Condition:     c.PostForm("condition"),
		Description:   c.PostForm("description"),
		ImagePath:     c.PostForm("imagePath"),
		ImagePublicID: c.PostForm("imagePublicId"),
	}

	fh, err := c.FormFile("image")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return req, nil, nil
		}
		return req, nil, bodyError(err, "invalid image upload")
	}
	img, err := readFormImage(fh)
	if err != nil {
		return req, nil, err
	}
	return req, img, nil
}

// ParseImageUpload reads the "image" file of a standalone upload.
func (rv *RequestValidator) ParseImageUpload(c *gin.Context) (*images.Image, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxMultipartBody)
	fh, err := c.FormFile("image")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, badRequest("image", services.MsgImageRequired)
		}
		return nil, bodyError(err, "expected multipart form data")
	}
	return readFormImage(fh)
}

func readFormImage(fh *multipart.FileHeader) (*images.Image, error) {
	if fh.Size > images.MaxImageSize {
		return nil, badRequest("image", services.MsgImageTooLarge)
	}
	f, err := fh.Open()
	if err != nil {
		return nil, badRequest("image", "could not read uploaded image")
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, badRequest("image", "could not read uploaded image")
	}
	return &images.Image{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}

// textField is a JSON string or number. Numbers keep their literal form so
// price accepts both 2000 and "2000". A null leaves the field absent.
type textField string

func (t *textField) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = textField(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return &json.UnmarshalTypeError{Value: string(data), Type: reflect.TypeOf("")}
	}
	*t = textField(n)
	return nil
}

func (t *textField) ptr() *string {
	if t == nil {
		return nil
	}
	s := string(*t)
	return &s
}

func (t *textField) String() string {
	if t == nil {
		return ""
	}
	return string(*t)
}

// listingBody is the JSON shape shared by create and update. Unknown keys,
// including id, dateAdded and isActive, are ignored.
type listingBody struct {
	Name          *textField `json:"name"`
	Price         *textField `json:"price"`
	Seller        *textField `json:"seller"`
	WhatsApp      *textField `json:"whatsapp"`
	Condition     *textField `json:"condition"`
	Description   *textField `json:"description"`
	ImagePath     *textField `json:"imagePath"`
	ImagePublicID *textField `json:"imagePublicId"`
}

func (b listingBody) createRequest() services.ListingCreateRequest {
	return services.ListingCreateRequest{
		Name:          b.Name.String(),
		Price:         b.Price.String(),
		Seller:        b.Seller.String(),
		WhatsApp:      b.WhatsApp.String(),
		Condition:     b.Condition.String(),
		Description:   b.Description.String(),
		ImagePath:     b.ImagePath.String(),
		ImagePublicID: b.ImagePublicID.String(),
	}
}

type base64ListingBody struct {
	listingBody
	Image     *textField `json:"image"`
	ImageName *textField `json:"imageName"`
}

// bindJSON decodes a size capped JSON body into dst.
func bindJSON(c *gin.Context, dst interface{}) error {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxJSONBody)
	if err := c.ShouldBindJSON(dst); err != nil {
		return bodyError(err, "invalid JSON body")
	}
	return nil
}

// ParseJSONCreate reads a JSON listing that references a pre-hosted image.
func (rv *RequestValidator) ParseJSONCreate(c *gin.Context) (services.ListingCreateRequest, error) {
	var body listingBody
	if err := bindJSON(c, &body); err != nil {
		return services.ListingCreateRequest{}, err
	}
	return body.createRequest(), nil
}

// ParseBase64Create reads a JSON listing whose "image" is a base64 payload,
// optionally as a data URI, with an optional "imageName".
func (rv *RequestValidator) ParseBase64Create(c *gin.Context) (services.ListingCreateRequest, *images.Image, error) {
	var body base64ListingBody
	if err := bindJSON(c, &body); err != nil {
		return services.ListingCreateRequest{}, nil, err
	}
	req := body.createRequest()

	raw := strings.TrimSpace(body.Image.String())
	if raw == "" {
		return req, nil, nil
	}
	img, err := decodeBase64Image(raw)
	if err != nil {
		return req, nil, err
	}
	if name := strings.TrimSpace(body.ImageName.String()); name != "" {
		img.Filename = name
	}
	return req, img, nil
}

// decodeBase64Image accepts plain base64 or a data URI such as
// "data:image/png;base64,....".
func decodeBase64Image(raw string) (*images.Image, error) {
	raw = strings.TrimSpace(raw)
	img := &images.Image{Filename: "image"}
	if strings.HasPrefix(raw, "data:") {
		comma := strings.Index(raw, ",")
		if comma < 0 {
			return nil, badRequest("image", "invalid data URI")
		}
		meta := raw[len("data:"):comma]
		if !strings.HasSuffix(meta, ";base64") {
			return nil, badRequest("image", "data URI must be base64 encoded")
		}
		img.ContentType = strings.TrimSuffix(meta, ";base64")
		raw = raw[comma+1:]
	}
	data, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, badRequest("image", "image is not valid base64")
	}
	if len(data) > images.MaxImageSize {
		return nil, badRequest("image", services.MsgImageTooLarge)
	}
	img.Data = data
	return img, nil
}

// ParseUpdate reads a partial JSON update.
func (rv *RequestValidator) ParseUpdate(c *gin.Context) (services.ListingUpdateRequest, error) {
	var body listingBody
	if err := bindJSON(c, &body); err != nil {
		return services.ListingUpdateRequest{}, err
	}
	return services.ListingUpdateRequest{
		Name:          body.Name.ptr(),
		Price:         body.Price.ptr(),
		Seller:        body.Seller.ptr(),
		WhatsApp:      body.WhatsApp.ptr(),
		Condition:     body.Condition.ptr(),
		Description:   body.Description.ptr(),
		ImagePath:     body.ImagePath.ptr(),
		ImagePublicID: body.ImagePublicID.ptr(),
	}, nil
}

// bodyError maps request body failures onto validation errors. An oversized
// body gets its own message and a mistyped field is named.
func bodyError(err error, fallback string) error {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return badRequest("image", services.MsgImageTooLarge)
	}
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		return badRequest(typeErr.Field, fmt.Sprintf("%s must be a string", typeErr.Field))
	}
	return badRequest("", fallback)
}
