package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/mmeshcher/marketplace-gateway/internal/apperr"
	"github.com/mmeshcher/marketplace-gateway/internal/service"
)

// ListProducts возвращает каталог товаров.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.service.ListProducts(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.respond(w, r, products)
}

// GetProduct возвращает товар по идентификатору.
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.GetProduct(r.Context(), urlID(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.respond(w, r, p)
}

// CreateProduct создаёт товар из multipart-формы.
func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	u, ok := h.caller(w, r)
	if !ok {
		return
	}

	form, cleanup, err := h.parseProductForm(w, r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	defer cleanup()

	p, err := h.service.CreateProduct(r.Context(), u, form.ProductInput)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.respond(w, r, p)
}

// UpdateProduct обновляет товар из multipart-формы.
func (h *Handler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	u, ok := h.caller(w, r)
	if !ok {
		return
	}

	form, cleanup, err := h.parseProductForm(w, r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	defer cleanup()

	p, err := h.service.UpdateProduct(r.Context(), u, urlID(r), form)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.respond(w, r, p)
}

// DeleteProduct удаляет товар.
func (h *Handler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	u, ok := h.caller(w, r)
	if !ok {
		return
	}

	if err := h.service.DeleteProduct(r.Context(), u, urlID(r)); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.respond(w, r, messageResponse{Message: "Product deleted successfully"})
}

// parseProductForm читает поля name, description, price, stock, barcode, delete_image и файл image.
// Принимает multipart/form-data и application/x-www-form-urlencoded.
func (h *Handler) parseProductForm(w http.ResponseWriter, r *http.Request) (service.ProductUpdate, func(), error) {
	var out service.ProductUpdate
	noop := func() {}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)

	err := r.ParseMultipartForm(h.maxUploadBytes)
	switch {
	case errors.Is(err, http.ErrNotMultipart):
		if err := r.ParseForm(); err != nil {
			return out, noop, apperr.Invalid("Invalid form body")
		}
	case err != nil:
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return out, noop, apperr.Invalid("Request body too large")
		}
		return out, noop, apperr.Invalid("Invalid form body")
	}

	cleanup := func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}

	for _, field := range []string{"name", "description", "price", "stock"} {
		if _, ok := r.Form[field]; !ok {
			cleanup()
			return out, noop, apperr.Invalid("Missing form field: " + field)
		}
	}

	out.Name = strings.TrimSpace(r.FormValue("name"))
	out.Description = r.FormValue("description")

	if out.Price, err = strconv.ParseFloat(strings.TrimSpace(r.FormValue("price")), 64); err != nil {
		cleanup()
		return out, noop, apperr.Invalid("Invalid price")
	}
	if out.Stock, err = strconv.Atoi(strings.TrimSpace(r.FormValue("stock"))); err != nil {
		cleanup()
		return out, noop, apperr.Invalid("Invalid stock")
	}

	if barcode := strings.TrimSpace(r.FormValue("barcode")); barcode != "" {
		out.Barcode = &barcode
	}

	if raw := strings.TrimSpace(r.FormValue("delete_image")); raw != "" {
		v, ok := parseFormBool(raw)
		if !ok {
			cleanup()
			return out, noop, apperr.Invalid("Invalid delete_image")
		}
		out.DeleteImage = v
	}

	file, header, err := r.FormFile("image")
	switch {
	case err == nil:
		if header.Filename != "" {
			out.Image = &service.Image{Filename: header.Filename, Content: file}
		}
		prev := cleanup
		cleanup = func() {
			_ = file.Close()
			prev()
		}
	case isMissingFile(err), errors.Is(err, http.ErrNotMultipart):
	default:
		cleanup()
		return out, noop, apperr.Invalid("Invalid image upload")
	}

	return out, cleanup, nil
}

func parseFormBool(s string) (bool, bool) {
	switch strings.ToLower(s) {
	case "1", "true", "t", "yes", "y", "on":
		return true, true
	case "0", "false", "f", "no", "n", "off":
		return false, true
	}
	return false, false
}
