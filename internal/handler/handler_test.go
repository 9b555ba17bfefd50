package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/mmeshcher/marketplace-gateway/internal/apperr"
	"github.com/mmeshcher/marketplace-gateway/internal/metrics"
	"github.com/mmeshcher/marketplace-gateway/internal/model"
	"github.com/mmeshcher/marketplace-gateway/internal/service"
)

type stubService struct {
	users map[string]model.User

	session     *model.Session
	sessionErr  error
	gotRegister service.RegisterInput

	products   []model.Product
	product    *model.Product
	productErr error
	gotCaller  model.User
	gotInput   service.ProductUpdate
	gotImage   string
	gotID      string
	deleteErr  error

	order    *model.Order
	orders   []model.Order
	orderErr error
	gotOrder service.OrderInput
}

func (s *stubService) Register(_ context.Context, in service.RegisterInput) (*model.Session, error) {
	s.gotRegister = in
	return s.session, s.sessionErr
}

func (s *stubService) Login(context.Context, string, string) (*model.Session, error) {
	return s.session, s.sessionErr
}

func (s *stubService) ResolveIdentity(_ context.Context, token string) (model.User, error) {
	u, ok := s.users[token]
	if !ok {
		return model.User{}, apperr.Unauthenticated("Invalid authentication credentials")
	}
	return u, nil
}

func (s *stubService) ListProducts(context.Context) ([]model.Product, error) {
	return s.products, s.productErr
}

func (s *stubService) GetProduct(_ context.Context, id string) (*model.Product, error) {
	s.gotID = id
	return s.product, s.productErr
}

func (s *stubService) capture(caller model.User, in service.ProductUpdate) {
	s.gotCaller = caller
	s.gotInput = in
	if in.Image != nil {
		b, _ := io.ReadAll(in.Image.Content)
		s.gotImage = string(b)
	}
}

func (s *stubService) CreateProduct(_ context.Context, caller model.User, in service.ProductInput) (*model.Product, error) {
	s.capture(caller, service.ProductUpdate{ProductInput: in})
	return s.product, s.productErr
}

func (s *stubService) UpdateProduct(_ context.Context, caller model.User, id string, in service.ProductUpdate) (*model.Product, error) {
	s.gotID = id
	s.capture(caller, in)
	return s.product, s.productErr
}

func (s *stubService) DeleteProduct(_ context.Context, caller model.User, id string) error {
	s.gotCaller = caller
	s.gotID = id
	return s.deleteErr
}

func (s *stubService) CreateOrder(_ context.Context, caller model.User, in service.OrderInput) (*model.Order, error) {
	s.gotCaller = caller
	s.gotOrder = in
	return s.order, s.orderErr
}

func (s *stubService) ListOrders(_ context.Context, caller model.User) ([]model.Order, error) {
	s.gotCaller = caller
	return s.orders, s.orderErr
}

func (s *stubService) GetOrder(_ context.Context, caller model.User, id string) (*model.Order, error) {
	s.gotCaller = caller
	s.gotID = id
	return s.order, s.orderErr
}

var (
	vendor   = model.User{ID: "v1", Name: "Alice", Email: "alice@example.com", Role: model.RoleVendor}
	customer = model.User{ID: "c1", Name: "Carol", Email: "carol@example.com", Role: model.RoleCustomer}
)

func newStub() *stubService {
	return &stubService{users: map[string]model.User{
		"vendor-token":   vendor,
		"customer-token": customer,
	}}
}

func newTestRouter(t *testing.T, svc Service) http.Handler {
	t.Helper()

	logger, err := zap.NewDevelopment()
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}

	return NewHandler(svc, logger, metrics.New(), 1<<20).SetupRouter()
}

func do(t *testing.T, h http.Handler, req *http.Request, token string) (*http.Response, []byte) {
	t.Helper()

	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	res := rec.Result()
	t.Cleanup(func() { res.Body.Close() })

	body, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, body
}

func detail(t *testing.T, body []byte) string {
	t.Helper()

	var e errorResponse
	if err := json.Unmarshal(body, &e); err != nil {
		t.Fatalf("decode error body %q: %v", body, err)
	}
	return e.Detail
}

type formFile struct {
	name    string
	content string
}

func multipartRequest(t *testing.T, method, target string, fields map[string]string, file *formFile) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	if file != nil {
		fw, err := mw.CreateFormFile("image", file.name)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		_, _ = fw.Write([]byte(file.content))
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}

	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func widgetFields() map[string]string {
	return map[string]string{
		"name":        "Widget",
		"description": "A widget",
		"price":       "9.99",
		"stock":       "10",
	}
}

func TestRegister_Success(t *testing.T) {
	svc := newStub()
	svc.session = &model.Session{Token: "tok", User: vendor}
	h := newTestRouter(t, svc)

	body, _ := json.Marshal(registerRequest{
		Name:     "Alice",
		Email:    "alice@example.com",
		Password: "secret",
		Role:     "vendor",
	})

	res, raw := do(t, h, httptest.NewRequest(http.MethodPost, "/auth/register", bytes.NewReader(body)), "")
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}
	if svc.gotRegister.Role != model.RoleVendor || svc.gotRegister.Email != "alice@example.com" {
		t.Fatalf("unexpected register input: %+v", svc.gotRegister)
	}

	var got model.Session
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Token != "tok" || got.User.ID != "v1" {
		t.Fatalf("unexpected session: %+v", got)
	}
}

func TestLogin_Errors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		body   string
		status int
	}{
		{name: "wrong password", err: apperr.Unauthenticated("Invalid email or password"), body: `{"email":"a@b.c","password":"x"}`, status: http.StatusUnauthorized},
		{name: "disabled", err: apperr.Forbidden("This user account is disabled"), body: `{"email":"a@b.c","password":"x"}`, status: http.StatusForbidden},
		{name: "verifier down", err: apperr.Unavailable("Authentication service unavailable", errors.New("dial")), body: `{"email":"a@b.c","password":"x"}`, status: http.StatusServiceUnavailable},
		{name: "missing key", err: apperr.Internal("Identity web API key not configured", nil), body: `{"email":"a@b.c","password":"x"}`, status: http.StatusInternalServerError},
		{name: "malformed body", body: `{`, status: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newStub()
			svc.sessionErr = tt.err
			h := newTestRouter(t, svc)

			res, raw := do(t, h, httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(tt.body)), "")
			if res.StatusCode != tt.status {
				t.Fatalf("status = %d, want %d", res.StatusCode, tt.status)
			}
			if detail(t, raw) == "" {
				t.Fatalf("empty error detail")
			}
		})
	}
}

func TestLogoutAndMe(t *testing.T) {
	h := newTestRouter(t, newStub())

	res, _ := do(t, h, httptest.NewRequest(http.MethodPost, "/auth/logout", nil), "")
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("logout without token: status = %d, want 401", res.StatusCode)
	}

	res, raw := do(t, h, httptest.NewRequest(http.MethodPost, "/auth/logout", nil), "customer-token")
	if res.StatusCode != http.StatusOK || !strings.Contains(string(raw), "Logout successful") {
		t.Fatalf("logout: status = %d, body = %s", res.StatusCode, raw)
	}

	res, raw = do(t, h, httptest.NewRequest(http.MethodGet, "/users/me", nil), "customer-token")
	if res.StatusCode != http.StatusOK {
		t.Fatalf("me: status = %d", res.StatusCode)
	}
	var me model.User
	if err := json.Unmarshal(raw, &me); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if me != customer {
		t.Fatalf("me = %+v, want %+v", me, customer)
	}

	res, _ = do(t, h, httptest.NewRequest(http.MethodGet, "/users/me", nil), "forged")
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("me with forged token: status = %d, want 401", res.StatusCode)
	}
	if res.Header.Get("WWW-Authenticate") != "Bearer" {
		t.Fatalf("missing WWW-Authenticate challenge")
	}
}

func TestProducts_PublicReadsWithAndWithoutSlash(t *testing.T) {
	svc := newStub()
	svc.products = []model.Product{{ID: "p1", Name: "Widget", VendorID: "v1"}}
	svc.product = &model.Product{ID: "p1", Name: "Widget", VendorID: "v1"}
	h := newTestRouter(t, svc)

	for _, path := range []string{"/products/", "/products"} {
		res, raw := do(t, h, httptest.NewRequest(http.MethodGet, path, nil), "")
		if res.StatusCode != http.StatusOK {
			t.Fatalf("GET %s: status = %d", path, res.StatusCode)
		}
		var got []model.Product
		if err := json.Unmarshal(raw, &got); err != nil || len(got) != 1 {
			t.Fatalf("GET %s: body = %s, err = %v", path, raw, err)
		}
	}

	for _, path := range []string{"/products/p1", "/products/p1/"} {
		res, raw := do(t, h, httptest.NewRequest(http.MethodGet, path, nil), "")
		if res.StatusCode != http.StatusOK {
			t.Fatalf("GET %s: status = %d", path, res.StatusCode)
		}
		if svc.gotID != "p1" {
			t.Fatalf("GET %s: id = %q", path, svc.gotID)
		}
		var got map[string]any
		if err := json.Unmarshal(raw, &got); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if v, ok := got["image_url"]; !ok || v != nil {
			t.Fatalf("image_url must be present and null, got %v", got)
		}
	}
}

func TestGetProduct_NotFound(t *testing.T) {
	svc := newStub()
	svc.productErr = apperr.NotFound("Product not found")
	h := newTestRouter(t, svc)

	res, raw := do(t, h, httptest.NewRequest(http.MethodGet, "/products/missing", nil), "")
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", res.StatusCode)
	}
	if d := detail(t, raw); d != "Product not found" {
		t.Fatalf("detail = %q", d)
	}
}

func TestCreateProduct_Multipart(t *testing.T) {
	svc := newStub()
	svc.product = &model.Product{ID: "p1", Name: "Widget", VendorID: "v1"}
	h := newTestRouter(t, svc)

	fields := widgetFields()
	fields["barcode"] = "4006381333931"
	req := multipartRequest(t, http.MethodPost, "/products/", fields, &formFile{name: "w.png", content: "png-bytes"})

	res, raw := do(t, h, req, "vendor-token")
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, body = %s", res.StatusCode, raw)
	}
	if svc.gotCaller.ID != "v1" {
		t.Fatalf("caller = %+v", svc.gotCaller)
	}
	in := svc.gotInput
	if in.Name != "Widget" || in.Price != 9.99 || in.Stock != 10 || in.Description != "A widget" {
		t.Fatalf("unexpected input: %+v", in)
	}
	if in.Barcode == nil || *in.Barcode != "4006381333931" {
		t.Fatalf("barcode = %v", in.Barcode)
	}
	if svc.gotImage != "png-bytes" {
		t.Fatalf("image content = %q", svc.gotImage)
	}
}

func TestCreateProduct_WithoutImage(t *testing.T) {
	svc := newStub()
	svc.product = &model.Product{ID: "p1"}
	h := newTestRouter(t, svc)

	res, _ := do(t, h, multipartRequest(t, http.MethodPost, "/products", widgetFields(), nil), "vendor-token")
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", res.StatusCode)
	}
	if svc.gotInput.Image != nil || svc.gotInput.Barcode != nil {
		t.Fatalf("unexpected optional fields: %+v", svc.gotInput)
	}
}

func TestCreateProduct_BadForm(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(map[string]string)
	}{
		{name: "price not a number", mutate: func(f map[string]string) { f["price"] = "cheap" }},
		{name: "stock not integer", mutate: func(f map[string]string) { f["stock"] = "1.5" }},
		{name: "missing name", mutate: func(f map[string]string) { delete(f, "name") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newStub()
			h := newTestRouter(t, svc)

			fields := widgetFields()
			tt.mutate(fields)

			res, raw := do(t, h, multipartRequest(t, http.MethodPost, "/products/", fields, nil), "vendor-token")
			if res.StatusCode != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", res.StatusCode)
			}
			if detail(t, raw) == "" {
				t.Fatalf("empty detail")
			}
			if svc.gotCaller.ID != "" {
				t.Fatalf("service must not be called")
			}
		})
	}
}

func TestCreateProduct_RequiresToken(t *testing.T) {
	svc := newStub()
	h := newTestRouter(t, svc)

	res, _ := do(t, h, multipartRequest(t, http.MethodPost, "/products/", widgetFields(), nil), "")
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", res.StatusCode)
	}
}

func TestUpdateProduct_ForeignVendor(t *testing.T) {
	svc := newStub()
	svc.productErr = apperr.Forbidden("You can only update your own products")
	h := newTestRouter(t, svc)

	fields := widgetFields()
	fields["delete_image"] = "true"

	res, _ := do(t, h, multipartRequest(t, http.MethodPut, "/products/p1", fields, nil), "vendor-token")
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", res.StatusCode)
	}
	if svc.gotID != "p1" || !svc.gotInput.DeleteImage {
		t.Fatalf("unexpected update call: id=%q input=%+v", svc.gotID, svc.gotInput)
	}
}

func TestUpdateProduct_URLEncoded(t *testing.T) {
	svc := newStub()
	svc.product = &model.Product{ID: "p1"}
	h := newTestRouter(t, svc)

	req := httptest.NewRequest(http.MethodPut, "/products/p1/",
		strings.NewReader("name=Gadget&description=d&price=1.5&stock=3&delete_image=on"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	res, raw := do(t, h, req, "vendor-token")
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, body = %s", res.StatusCode, raw)
	}
	if svc.gotInput.Name != "Gadget" || svc.gotInput.Stock != 3 || !svc.gotInput.DeleteImage {
		t.Fatalf("unexpected input: %+v", svc.gotInput)
	}
}

func TestDeleteProduct(t *testing.T) {
	svc := newStub()
	h := newTestRouter(t, svc)

	res, raw := do(t, h, httptest.NewRequest(http.MethodDelete, "/products/p1", nil), "vendor-token")
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", res.StatusCode)
	}
	if !strings.Contains(string(raw), "Product deleted successfully") {
		t.Fatalf("body = %s", raw)
	}

	svc.deleteErr = apperr.Forbidden("You can only delete your own products")
	res, _ = do(t, h, httptest.NewRequest(http.MethodDelete, "/products/p1", nil), "customer-token")
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", res.StatusCode)
	}
}

func TestCreateOrder_IgnoresUserID(t *testing.T) {
	svc := newStub()
	svc.order = &model.Order{ID: "o1", UserID: "c1"}
	h := newTestRouter(t, svc)

	body := `{"user_id":"someone-else","products":[{"product_id":"p1","quantity":2}],"total_price":19.98}`
	res, raw := do(t, h, httptest.NewRequest(http.MethodPost, "/orders/", strings.NewReader(body)), "customer-token")
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, body = %s", res.StatusCode, raw)
	}
	if svc.gotCaller.ID != "c1" {
		t.Fatalf("caller = %+v", svc.gotCaller)
	}
	if len(svc.gotOrder.Products) != 1 || svc.gotOrder.Products[0].Quantity != 2 || svc.gotOrder.TotalPrice != 19.98 {
		t.Fatalf("unexpected order input: %+v", svc.gotOrder)
	}
}

func TestListOrders_EmptyIsArray(t *testing.T) {
	h := newTestRouter(t, newStub())

	res, raw := do(t, h, httptest.NewRequest(http.MethodGet, "/orders", nil), "vendor-token")
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", res.StatusCode)
	}
	if strings.TrimSpace(string(raw)) != "[]" {
		t.Fatalf("body = %s, want []", raw)
	}
}

func TestGetOrder_Forbidden(t *testing.T) {
	svc := newStub()
	svc.orderErr = apperr.Forbidden("You don't have permission to view this order")
	h := newTestRouter(t, svc)

	res, raw := do(t, h, httptest.NewRequest(http.MethodGet, "/orders/o1", nil), "customer-token")
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", res.StatusCode)
	}
	if svc.gotID != "o1" {
		t.Fatalf("id = %q", svc.gotID)
	}
	if detail(t, raw) == "" {
		t.Fatalf("empty detail")
	}
}

func TestInternalErrorDoesNotLeakCause(t *testing.T) {
	svc := newStub()
	svc.productErr = apperr.Internal("document store error", errors.New("pq: password authentication failed"))
	h := newTestRouter(t, svc)

	res, raw := do(t, h, httptest.NewRequest(http.MethodGet, "/products/", nil), "")
	if res.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status = %d", res.StatusCode)
	}
	if strings.Contains(string(raw), "password") {
		t.Fatalf("internal cause leaked: %s", raw)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	h := newTestRouter(t, newStub())

	res, raw := do(t, h, httptest.NewRequest(http.MethodGet, "/healthz", nil), "")
	if res.StatusCode != http.StatusOK || !strings.Contains(string(raw), "ok") {
		t.Fatalf("healthz: status = %d body = %s", res.StatusCode, raw)
	}

	res, raw = do(t, h, httptest.NewRequest(http.MethodGet, "/metrics", nil), "")
	if res.StatusCode != http.StatusOK {
		t.Fatalf("metrics: status = %d", res.StatusCode)
	}
	if !strings.Contains(string(raw), "marketplace_http_requests_total") {
		t.Fatalf("metrics body does not contain request counter")
	}
}

func TestUnknownRoute(t *testing.T) {
	h := newTestRouter(t, newStub())

	res, raw := do(t, h, httptest.NewRequest(http.MethodGet, "/nope", nil), "")
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", res.StatusCode)
	}
	if detail(t, raw) == "" {
		t.Fatalf("empty detail")
	}
}
