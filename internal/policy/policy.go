// Package policy содержит правила авторизации для каждого типа ресурса.
// Правила не зависят от HTTP и хранилищ: на вход личность и ресурс, на выход решение.
package policy

import "github.com/mmeshcher/marketplace-gateway/internal/model"

// Decision описывает результат проверки доступа.
type Decision bool

const (
	Allow Decision = true
	Deny  Decision = false
)

// CreateProduct разрешает создание товара продавцам и администраторам.
func CreateProduct(u model.User) Decision {
	return Decision(u.Role == model.RoleVendor || u.Role == model.RoleAdmin)
}

// ModifyProduct разрешает изменение и удаление товара владельцу и администратору.
func ModifyProduct(u model.User, p model.Product) Decision {
	return Decision(u.IsAdmin() || (u.ID != "" && p.VendorID == u.ID))
}

// OwnsAnyFunc отвечает, владеет ли продавец хотя бы одним товаром заказа.
// Вызывается лениво: только когда решение от этого зависит.
type OwnsAnyFunc func() (bool, error)

// ViewOrder разрешает просмотр заказа администратору, покупателю и продавцу,
// которому принадлежит хотя бы один товар из заказа.
func ViewOrder(u model.User, o model.Order, ownsAny OwnsAnyFunc) (Decision, error) {
	if u.IsAdmin() || (u.ID != "" && o.UserID == u.ID) {
		return Allow, nil
	}
	if u.Role != model.RoleVendor || ownsAny == nil {
		return Deny, nil
	}
	owns, err := ownsAny()
	if err != nil {
		return Deny, err
	}
	return Decision(owns), nil
}

// OrderScope описывает, какие заказы попадают в список для пользователя.
type OrderScope int

const (
	ScopeAll OrderScope = iota
	ScopeVendorProducts
	ScopeOwn
)

// ListOrders выбирает область видимости списка заказов по роли.
func ListOrders(u model.User) OrderScope {
	switch u.Role {
	case model.RoleAdmin:
		return ScopeAll
	case model.RoleVendor:
		return ScopeVendorProducts
	default:
		return ScopeOwn
	}
}
