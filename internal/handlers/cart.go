package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/AnshRaj112/usedgoods-backend/internal/httpx"
	"github.com/AnshRaj112/usedgoods-backend/internal/middleware"
	"github.com/AnshRaj112/usedgoods-backend/internal/services"
	"github.com/AnshRaj112/usedgoods-backend/internal/validation"
)

var errCartItemNotFound = apiError(http.StatusNotFound, "item not in cart")

func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) error {
	user := middleware.UserFromContext(r.Context())
	cart, err := h.cart.Get(r.Context(), user.ID)
	if err != nil {
		return err
	}
	httpx.OK(w, r, cart)
	return nil
}

// AddCartItem handles POST /api/cart/items.
func (h *Handler) AddCartItem(w http.ResponseWriter, r *http.Request) error {
	var req validation.CartItemRequest
	if err := validation.DecodeJSON(r, &req); err != nil {
		return err
	}
	user := middleware.UserFromContext(r.Context())
	cart, err := h.cart.AddItem(r.Context(), user.ID, req.ProductID, *req.Quantity)
	if errors.Is(err, services.ErrNotFound) {
		return errProductNotFound
	}
	if err != nil {
		return err
	}
	httpx.Message(w, r, http.StatusOK, "item added to cart", cart)
	return nil
}

// UpdateCartItem handles PUT /api/cart/items/{productId}.
func (h *Handler) UpdateCartItem(w http.ResponseWriter, r *http.Request) error {
	productID := chi.URLParam(r, "productId")
	if !validation.IsUUID4(productID) {
		return errInvalidProductID
	}
	var req validation.CartQuantityRequest
	if err := validation.DecodeJSON(r, &req); err != nil {
		return err
	}
	user := middleware.UserFromContext(r.Context())
	cart, err := h.cart.SetQuantity(r.Context(), user.ID, productID, *req.Quantity)
	if errors.Is(err, services.ErrNotFound) {
		return errCartItemNotFound
	}
	if err != nil {
		return err
	}
	httpx.Message(w, r, http.StatusOK, "cart updated", cart)
	return nil
}

// RemoveCartItem handles DELETE /api/cart/items/{productId}.
func (h *Handler) RemoveCartItem(w http.ResponseWriter, r *http.Request) error {
	productID := chi.URLParam(r, "productId")
	if !validation.IsUUID4(productID) {
		return errInvalidProductID
	}
	user := middleware.UserFromContext(r.Context())
	cart, err := h.cart.RemoveItem(r.Context(), user.ID, productID)
	if errors.Is(err, services.ErrNotFound) {
		return errCartItemNotFound
	}
	if err != nil {
		return err
	}
	httpx.Message(w, r, http.StatusOK, "item removed from cart", cart)
	return nil
}

// ClearCart handles DELETE /api/cart.
func (h *Handler) ClearCart(w http.ResponseWriter, r *http.Request) error {
	user := middleware.UserFromContext(r.Context())
	if err := h.cart.Clear(r.Context(), user.ID); err != nil {
		return err
	}
	cart, err := h.cart.Get(r.Context(), user.ID)
	if err != nil {
		return err
	}
	httpx.Message(w, r, http.StatusOK, "cart cleared", cart)
	return nil
}
