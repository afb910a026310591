package validation

import (
	"net/url"
	"strconv"
	"strings"
)

type RegisterRequest struct {
	Email    string  `json:"email" validate:"required,email,max=255"`
	Username string  `json:"username" validate:"required,min=2,max=100,username"`
	Password string  `json:"password" validate:"required,min=8,max=128,password"`
	Phone    *string `json:"phone" validate:"omitempty,phone"`
	Address  *string `json:"address" validate:"omitempty,max=500"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type ProductRequest struct {
	Title           string  `json:"title" validate:"required,min=2,max=200"`
	Description     string  `json:"description" validate:"required,min=10,max=5000"`
	Price           *int64  `json:"price" validate:"required,min=0,max=999999999"`
	Category        string  `json:"category" validate:"required,oneof=electronics fashion beauty sports books food furniture etc"`
	Stock           *int    `json:"stock" validate:"omitempty,min=1,max=9999"`
	Location        *string `json:"location" validate:"omitempty,max=100"`
	IsNegotiable    *bool   `json:"is_negotiable"`
	ConditionStatus *string `json:"condition_status" validate:"omitempty,oneof=new like_new good fair poor"`
}

func (p *ProductRequest) ApplyDefaults() {
	if p.Stock == nil {
		one := 1
		p.Stock = &one
	}
	if p.IsNegotiable == nil {
		no := false
		p.IsNegotiable = &no
	}
}

type ReviewRequest struct {
	ProductID string `json:"product_id" validate:"required,uuid"`
	Rating    *int   `json:"rating" validate:"required,min=1,max=5"`
	Comment   string `json:"comment" validate:"required,min=10,max=1000"`
}

type InquiryRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Title    string `json:"title" validate:"required,min=5,max=200"`
	Content  string `json:"content" validate:"required,min=10,max=2000"`
	Category string `json:"category" validate:"required,oneof=general order payment delivery refund product account etc"`
}

type MessageRequest struct {
	ChatRoomID  string `json:"chat_room_id" validate:"required,uuid"`
	Content     string `json:"content" validate:"required,min=1,max=1000"`
	MessageType string `json:"message_type" validate:"oneof=text image file system"`
}

func (m *MessageRequest) ApplyDefaults() {
	if m.MessageType == "" {
		m.MessageType = "text"
	}
}

type UpdateProfileRequest struct {
	Username *string `json:"username" validate:"omitempty,min=2,max=100,username"`
	Phone    *string `json:"phone" validate:"omitempty,phone"`
	Address  *string `json:"address" validate:"omitempty,max=500"`
	Bio      *string `json:"bio" validate:"omitempty,max=500"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8,max=128,password"`
	ConfirmPassword string `json:"confirm_password" validate:"required,eqfield=NewPassword"`
}

type PriceSuggestionRequest struct {
	ProductID      string  `json:"product_id" validate:"required,uuid"`
	SuggestedPrice *int64  `json:"suggested_price" validate:"required,min=0,max=999999999"`
	Message        *string `json:"message" validate:"omitempty,max=500"`
}

type ReportRequest struct {
	ReportedUserID    *string `json:"reported_user_id" validate:"omitempty,uuid"`
	ReportedProductID *string `json:"reported_product_id" validate:"omitempty,uuid"`
	ReportedReviewID  *string `json:"reported_review_id" validate:"omitempty,uuid"`
	Reason            string  `json:"reason" validate:"required,oneof=spam fraud inappropriate copyright other"`
	Description       string  `json:"description" validate:"required,min=10,max=500"`
}

type CartItemRequest struct {
	ProductID string `json:"product_id" validate:"required,uuid4"`
	Quantity  *int   `json:"quantity" validate:"required,min=1,max=9999"`
}

type CartQuantityRequest struct {
	Quantity *int `json:"quantity" validate:"required,min=1,max=9999"`
}

// SearchQuery holds the listing and search query-string filters.
type SearchQuery struct {
	Q        string `query:"q" validate:"max=200"`
	Category string `query:"category" validate:"omitempty,oneof=electronics fashion beauty sports books food furniture etc"`
	MinPrice *int64 `query:"minPrice" validate:"omitempty,min=0"`
	MaxPrice *int64 `query:"maxPrice" validate:"omitempty,min=0"`
	Location string `query:"location" validate:"max=100"`
	Page     int    `query:"page" validate:"min=1"`
	Limit    int    `query:"limit" validate:"min=1,max=100"`
	Sort     string `query:"sort"`
}

// ParseSearch reads and validates listing filters. Page defaults to 1 and
// limit to 20. Unknown sort keys are left for the caller to map to a default.
func ParseSearch(values url.Values) (SearchQuery, error) {
	q := SearchQuery{
		Q:        strings.TrimSpace(values.Get("q")),
		Category: strings.TrimSpace(values.Get("category")),
		Location: strings.TrimSpace(values.Get("location")),
		Sort:     strings.TrimSpace(values.Get("sort")),
		Page:     1,
		Limit:    20,
	}
	var errs Errors
	intParam := func(name string, dst *int) {
		raw := strings.TrimSpace(values.Get(name))
		if raw == "" {
			return
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			errs = append(errs, FieldError{Field: name, Message: "must be a whole number"})
			return
		}
		*dst = n
	}
	priceParam := func(name string) *int64 {
		raw := strings.TrimSpace(values.Get(name))
		if raw == "" {
			return nil
		}
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			errs = append(errs, FieldError{Field: name, Message: "must be a whole number"})
			return nil
		}
		return &n
	}
	intParam("page", &q.Page)
	intParam("limit", &q.Limit)
	q.MinPrice = priceParam("minPrice")
	q.MaxPrice = priceParam("maxPrice")

	if err := Struct(&q); err != nil {
		if verrs, ok := err.(Errors); ok {
			errs = append(errs, verrs...)
		} else {
			return q, err
		}
	}
	if len(errs) > 0 {
		return q, errs
	}
	return q, nil
}

// IsUUID4 reports whether s is a lowercase or uppercase version 4 UUID.
func IsUUID4(s string) bool {
	return Var(strings.ToLower(s), "uuid4")
}
