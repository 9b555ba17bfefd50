// Package handler содержит HTTP-обработчики API-шлюза маркетплейса.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mmeshcher/marketplace-gateway/internal/apperr"
	"github.com/mmeshcher/marketplace-gateway/internal/metrics"
	"github.com/mmeshcher/marketplace-gateway/internal/middleware"
	"github.com/mmeshcher/marketplace-gateway/internal/model"
	"github.com/mmeshcher/marketplace-gateway/internal/service"
)

// DefaultMaxUploadBytes ограничивает размер multipart-формы товара.
const DefaultMaxUploadBytes = 10 << 20

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	Register(ctx context.Context, in service.RegisterInput) (*model.Session, error)
	Login(ctx context.Context, email, password string) (*model.Session, error)
	ResolveIdentity(ctx context.Context, token string) (model.User, error)

	ListProducts(ctx context.Context) ([]model.Product, error)
	GetProduct(ctx context.Context, id string) (*model.Product, error)
	CreateProduct(ctx context.Context, caller model.User, in service.ProductInput) (*model.Product, error)
	UpdateProduct(ctx context.Context, caller model.User, id string, in service.ProductUpdate) (*model.Product, error)
	DeleteProduct(ctx context.Context, caller model.User, id string) error

	CreateOrder(ctx context.Context, caller model.User, in service.OrderInput) (*model.Order, error)
	ListOrders(ctx context.Context, caller model.User) ([]model.Order, error)
	GetOrder(ctx context.Context, caller model.User, id string) (*model.Order, error)
}

// Handler реализует HTTP-обработчики API-шлюза.
type Handler struct {
	service        Service
	logger         *zap.Logger
	metrics        *metrics.Metrics
	authMiddleware *middleware.AuthMiddleware
	maxUploadBytes int64
}

// NewHandler создаёт обработчик. Метрики могут быть nil; maxUploadBytes <= 0 означает значение по умолчанию.
func NewHandler(s Service, logger *zap.Logger, m *metrics.Metrics, maxUploadBytes int64) *Handler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = DefaultMaxUploadBytes
	}
	h := &Handler{
		service:        s,
		logger:         logger,
		metrics:        m,
		maxUploadBytes: maxUploadBytes,
	}
	h.authMiddleware = middleware.NewAuthMiddleware(s, h.writeError)
	return h
}

type errorResponse struct {
	Detail string `json:"detail"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}

func (h *Handler) respond(w http.ResponseWriter, r *http.Request, v any) {
	if err := writeJSON(w, http.StatusOK, v); err != nil {
		h.logger.Error("write response error", zap.Error(err), zap.String("uri", r.RequestURI))
	}
}

// writeError отображает ошибку на статус и пишет {"detail": ...}.
// Причина внутренних ошибок клиенту не отдаётся, только в лог.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperr.StatusCode(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("uri", r.RequestURI),
			zap.Int("status", status),
			zap.Error(err),
		)
	}
	_ = writeJSON(w, status, errorResponse{Detail: apperr.Message(err)})
}

func (h *Handler) badRequest(w http.ResponseWriter, r *http.Request, msg string) {
	h.writeError(w, r, apperr.Invalid(msg))
}

func (h *Handler) caller(w http.ResponseWriter, r *http.Request) (model.User, bool) {
	u, ok := middleware.UserFromContext(r.Context())
	if !ok {
		h.writeError(w, r, apperr.Unauthenticated(http.StatusText(http.StatusUnauthorized)))
	}
	return u, ok
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// Register регистрирует пользователя и возвращает токен с профилем.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.badRequest(w, r, "Invalid request body")
		return
	}

	session, err := h.service.Register(r.Context(), service.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Role:     model.Role(req.Role),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.respond(w, r, session)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login выполняет вход по email и паролю.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.badRequest(w, r, "Invalid request body")
		return
	}

	session, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.respond(w, r, session)
}

// Logout подтверждает выход. Серверной сессии нет: токен просто перестаёт использоваться клиентом.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, messageResponse{Message: "Logout successful"})
}

// Me возвращает профиль текущего пользователя.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	u, ok := h.caller(w, r)
	if !ok {
		return
	}
	h.respond(w, r, u)
}

// Health сообщает, что процесс жив.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, map[string]string{"status": "ok"})
}

func (h *Handler) notFound(w http.ResponseWriter, r *http.Request) {
	h.writeError(w, r, apperr.NotFound("Not Found"))
}

func (h *Handler) methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	_ = writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Detail: "Method Not Allowed"})
}

func urlID(r *http.Request) string {
	return chi.URLParam(r, "id")
}

func isMissingFile(err error) bool {
	return errors.Is(err, http.ErrMissingFile)
}
