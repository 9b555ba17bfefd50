// Package model содержит доменные сущности маркетплейса.
package model

import "time"

// Role описывает роль пользователя.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleVendor   Role = "vendor"
	RoleAdmin    Role = "admin"
)

// Valid сообщает, является ли роль известной.
func (r Role) Valid() bool {
	switch r {
	case RoleCustomer, RoleVendor, RoleAdmin:
		return true
	}
	return false
}

// User описывает профиль пользователя. Он же разрешённая личность вызывающего.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  Role   `json:"role"`
}

// IsAdmin сообщает, является ли пользователь администратором.
func (u User) IsAdmin() bool { return u.Role == RoleAdmin }

// Session содержит результат регистрации или входа.
type Session struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// Product описывает товар продавца.
type Product struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Price       float64    `json:"price"`
	Stock       int        `json:"stock"`
	ImageURL    *string    `json:"image_url"`
	VendorID    string     `json:"vendor_id"`
	Barcode     *string    `json:"barcode"`
	CreatedAt   *time.Time `json:"created_at,omitempty"`
}

// OrderStatus описывает статус заказа.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusConfirmed OrderStatus = "confirmed"
	OrderStatusShipped   OrderStatus = "shipped"
	OrderStatusDelivered OrderStatus = "delivered"
)

// Valid сообщает, является ли статус известным.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusConfirmed, OrderStatusShipped, OrderStatusDelivered:
		return true
	}
	return false
}

// LineItem описывает позицию заказа. Товар связан по идентификатору.
type LineItem struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// Order описывает заказ покупателя.
type Order struct {
	ID         string      `json:"id"`
	UserID     string      `json:"user_id"`
	Products   []LineItem  `json:"products"`
	TotalPrice float64     `json:"total_price"`
	Status     OrderStatus `json:"status"`
	CreatedAt  *time.Time  `json:"created_at,omitempty"`
}
