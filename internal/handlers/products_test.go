package handlers

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/AnshRaj112/usedgoods-backend/internal/models"
)

type listData struct {
	Products   []models.ProductSummary `json:"products"`
	Pagination models.Pagination       `json:"pagination"`
}

func TestCreateProductValidation(t *testing.T) {
	s := newTestServer(t, nil)
	_, token := s.signup("alice@example.com", "alice")

	rec := s.do(http.MethodPost, "/products", token, map[string]any{
		"title": "x", "description": "short", "price": -1, "category": "cars",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	env := decodeEnvelope(t, rec)
	for _, field := range []string{"title", "description", "price", "category"} {
		if !strings.Contains(fmt.Sprint(env.Errors), field) {
			t.Errorf("errors %v do not mention %s", env.Errors, field)
		}
	}

	if rec := s.do(http.MethodPost, "/products", "", map[string]any{}); rec.Code != http.StatusUnauthorized {
		t.Errorf("anonymous create = %d, want 401", rec.Code)
	}
}

func TestProductOwnership(t *testing.T) {
	s := newTestServer(t, nil)
	_, aliceToken := s.signup("alice@example.com", "alice")
	_, bobToken := s.signup("bob@example.com", "bob")
	adminID, adminToken := s.signup("root@example.com", "root")
	if err := s.users.SetAdmin(context.Background(), adminID, true); err != nil {
		t.Fatalf("set admin: %v", err)
	}

	id := s.createProduct(aliceToken, "Vintage camera")
	update := map[string]any{
		"title": "Vintage camera (lens included)", "description": "a perfectly fine used item",
		"price": 12000, "category": "electronics",
	}

	if rec := s.do(http.MethodPut, "/products/"+id, bobToken, update); rec.Code != http.StatusForbidden {
		t.Fatalf("non-owner update = %d, want 403", rec.Code)
	}
	if rec := s.do(http.MethodDelete, "/products/"+id, bobToken, nil); rec.Code != http.StatusForbidden {
		t.Fatalf("non-owner delete = %d, want 403", rec.Code)
	}
	if rec := s.do(http.MethodPut, "/products/"+id, aliceToken, update); rec.Code != http.StatusOK {
		t.Fatalf("owner update = %d: %s", rec.Code, rec.Body.String())
	}

	rec := s.do(http.MethodGet, "/products/"+id, "", nil)
	var detail models.ProductDetail
	decodeData(t, rec, &detail)
	if detail.Title != "Vintage camera (lens included)" || detail.Price != 12000 {
		t.Errorf("after update = %+v", detail.Product)
	}

	if rec := s.do(http.MethodDelete, "/products/"+id, adminToken, nil); rec.Code != http.StatusOK {
		t.Fatalf("admin delete = %d", rec.Code)
	}
	if rec := s.do(http.MethodGet, "/products/"+id, "", nil); rec.Code != http.StatusNotFound {
		t.Errorf("deleted product detail = %d, want 404", rec.Code)
	}
	if rec := s.do(http.MethodPut, "/products/"+id, aliceToken, update); rec.Code != http.StatusNotFound {
		t.Errorf("update of deleted product = %d, want 404", rec.Code)
	}
}

func TestProductIDMustBeUUID(t *testing.T) {
	s := newTestServer(t, nil)
	_, token := s.signup("alice@example.com", "alice")

	if rec := s.do(http.MethodGet, "/products/1%20OR%201=1", "", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("detail = %d, want 400", rec.Code)
	}
	if rec := s.do(http.MethodDelete, "/products/not-a-uuid", token, nil); rec.Code != http.StatusBadRequest {
		t.Errorf("delete = %d, want 400", rec.Code)
	}
}

func TestDeletedProductsAreHidden(t *testing.T) {
	s := newTestServer(t, nil)
	_, token := s.signup("alice@example.com", "alice")

	keep := s.createProduct(token, "Road bike")
	gone := s.createProduct(token, "Road bike helmet")
	if rec := s.do(http.MethodDelete, "/products/"+gone, token, nil); rec.Code != http.StatusOK {
		t.Fatalf("delete = %d", rec.Code)
	}

	rec := s.do(http.MethodGet, "/products", "", nil)
	var list listData
	decodeData(t, rec, &list)
	if len(list.Products) != 1 || list.Products[0].ID != keep || list.Pagination.Total != 1 {
		t.Errorf("list = %+v", list)
	}

	rec = s.do(http.MethodGet, "/products/search?q=bike", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("search = %d: %s", rec.Code, rec.Body.String())
	}
	var found searchResponse
	decodeData(t, rec, &found)
	if found.Count != 1 || len(found.Products) != 1 || found.Products[0].ID != keep || found.Query != "bike" {
		t.Errorf("search = %+v", found)
	}
}

func TestListFilters(t *testing.T) {
	s := newTestServer(t, nil)
	_, token := s.signup("alice@example.com", "alice")
	for i := 0; i < 3; i++ {
		s.createProduct(token, fmt.Sprintf("Desk lamp %d", i))
	}

	rec := s.do(http.MethodGet, "/products?limit=2&page=2", "", nil)
	var list listData
	decodeData(t, rec, &list)
	if len(list.Products) != 1 || list.Pagination.TotalPages != 2 || list.Pagination.Page != 2 {
		t.Errorf("page 2 = %+v", list.Pagination)
	}

	for _, q := range []string{"limit=500", "page=0", "minPrice=abc", "category=cars"} {
		if rec := s.do(http.MethodGet, "/products?"+q, "", nil); rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", q, rec.Code)
		}
	}
	if rec := s.do(http.MethodGet, "/products/search", "", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("search without q = %d, want 400", rec.Code)
	}
}

func TestSearchHistoryAndRecentlyViewed(t *testing.T) {
	s := newTestServer(t, nil)
	_, sellerToken := s.signup("alice@example.com", "alice")
	bobID, bobToken := s.signup("bob@example.com", "bob")
	_, eveToken := s.signup("eve@example.com", "eve")

	id := s.createProduct(sellerToken, "Espresso machine")

	if rec := s.do(http.MethodGet, "/products/search?q=espresso", bobToken, nil); rec.Code != http.StatusOK {
		t.Fatalf("search = %d", rec.Code)
	}
	if rec := s.do(http.MethodGet, "/products/"+id, bobToken, nil); rec.Code != http.StatusOK {
		t.Fatalf("detail = %d", rec.Code)
	}

	rec := s.do(http.MethodGet, "/users/"+bobID+"/search-history", bobToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("history = %d: %s", rec.Code, rec.Body.String())
	}
	var history []models.SearchHistory
	decodeData(t, rec, &history)
	if len(history) != 1 || history[0].Query != "espresso" || history[0].ResultCount != 1 {
		t.Errorf("history = %+v", history)
	}

	rec = s.do(http.MethodGet, "/users/"+bobID+"/recently-viewed", bobToken, nil)
	var viewed []models.RecentlyViewed
	decodeData(t, rec, &viewed)
	if len(viewed) != 1 || viewed[0].ID != id {
		t.Errorf("recently viewed = %+v", viewed)
	}

	if rec := s.do(http.MethodGet, "/users/"+bobID+"/recently-viewed", eveToken, nil); rec.Code != http.StatusForbidden {
		t.Errorf("other user's history = %d, want 403", rec.Code)
	}
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(1, 1, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

type upload struct {
	name        string
	contentType string
	data        []byte
}

func (s *testServer) upload(productID, token string, files ...upload) *httptest.ResponseRecorder {
	s.t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for _, f := range files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="images"; filename="%s"`, f.name))
		h.Set("Content-Type", f.contentType)
		part, err := mw.CreatePart(h)
		if err != nil {
			s.t.Fatal(err)
		}
		part.Write(f.data)
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/products/"+productID+"/images", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func countFiles(t *testing.T, root string) int {
	t.Helper()
	n := 0
	err := filepath.Walk(root, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			n++
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	return n
}

func TestUploadProductImages(t *testing.T) {
	s := newTestServer(t, nil)
	_, token := s.signup("alice@example.com", "alice")
	_, bobToken := s.signup("bob@example.com", "bob")
	id := s.createProduct(token, "Film camera")
	img := pngBytes(t)

	rec := s.upload(id, token,
		upload{"front.png", "image/png", img},
		upload{"back side.png", "image/png", img})
	if rec.Code != http.StatusCreated {
		t.Fatalf("upload = %d: %s", rec.Code, rec.Body.String())
	}
	var images []models.ProductImage
	decodeData(t, rec, &images)
	if len(images) != 2 || !images[0].IsThumbnail || images[1].IsThumbnail {
		t.Fatalf("images = %+v", images)
	}
	for _, im := range images {
		if !strings.HasPrefix(im.ImageURL, "/uploads/") || strings.Contains(im.ImageURL, " ") {
			t.Errorf("url = %q", im.ImageURL)
		}
	}
	if n := countFiles(t, s.uploads); n != 2 {
		t.Errorf("stored files = %d, want 2", n)
	}

	if rec := s.upload(id, bobToken, upload{"x.png", "image/png", img}); rec.Code != http.StatusForbidden {
		t.Errorf("non-owner upload = %d, want 403", rec.Code)
	}
}

func TestUploadRejectsBadFiles(t *testing.T) {
	s := newTestServer(t, nil)
	_, token := s.signup("alice@example.com", "alice")
	id := s.createProduct(token, "Film camera")
	img := pngBytes(t)

	cases := []struct {
		name  string
		files []upload
	}{
		{"no files", nil},
		{"script extension", []upload{{"shell.php", "image/png", img}}},
		{"wrong declared type", []upload{{"doc.png", "application/pdf", img}}},
		{"text posing as png", []upload{{"fake.png", "image/png", []byte("<?php system($_GET['c']); ?>")}}},
		{"one bad file spoils the batch", []upload{{"ok.png", "image/png", img}, {"fake.png", "image/png", []byte("not an image")}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := s.upload(id, token, tc.files...)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400: %s", rec.Code, rec.Body.String())
			}
		})
	}

	tooMany := make([]upload, 11)
	for i := range tooMany {
		tooMany[i] = upload{fmt.Sprintf("p%d.png", i), "image/png", img}
	}
	if rec := s.upload(id, token, tooMany...); rec.Code != http.StatusBadRequest {
		t.Errorf("11 files = %d, want 400", rec.Code)
	}

	if n := countFiles(t, s.uploads); n != 0 {
		t.Errorf("rejected uploads left %d files behind", n)
	}
	rec := s.do(http.MethodGet, "/products/"+id, "", nil)
	var detail models.ProductDetail
	decodeData(t, rec, &detail)
	if len(detail.Images) != 0 {
		t.Errorf("rejected uploads recorded images: %+v", detail.Images)
	}
}
