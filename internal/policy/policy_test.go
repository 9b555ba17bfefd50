package policy

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/marketplace-gateway/internal/model"
)

var (
	admin    = model.User{ID: "admin-1", Role: model.RoleAdmin}
	vendorA  = model.User{ID: "vendor-a", Role: model.RoleVendor}
	vendorB  = model.User{ID: "vendor-b", Role: model.RoleVendor}
	customer = model.User{ID: "cust-1", Role: model.RoleCustomer}
)

func TestCreateProduct(t *testing.T) {
	assert.Equal(t, Allow, CreateProduct(admin))
	assert.Equal(t, Allow, CreateProduct(vendorA))
	assert.Equal(t, Deny, CreateProduct(customer))
	assert.Equal(t, Deny, CreateProduct(model.User{ID: "x", Role: "unknown"}))
}

func TestModifyProduct(t *testing.T) {
	p := model.Product{ID: "p1", VendorID: vendorA.ID}

	tests := []struct {
		name string
		user model.User
		want Decision
	}{
		{name: "owner", user: vendorA, want: Allow},
		{name: "admin", user: admin, want: Allow},
		{name: "other vendor", user: vendorB, want: Deny},
		{name: "customer", user: customer, want: Deny},
		{name: "empty id never matches", user: model.User{Role: model.RoleVendor}, want: Deny},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ModifyProduct(tt.user, p))
		})
	}
}

func TestViewOrder(t *testing.T) {
	o := model.Order{ID: "o1", UserID: customer.ID}

	mustNotCall := func() (bool, error) {
		t.Fatalf("ownership lookup must not be called")
		return false, nil
	}

	d, err := ViewOrder(admin, o, mustNotCall)
	require.NoError(t, err)
	assert.Equal(t, Allow, d)

	d, err = ViewOrder(customer, o, mustNotCall)
	require.NoError(t, err)
	assert.Equal(t, Allow, d)

	d, err = ViewOrder(model.User{ID: "cust-2", Role: model.RoleCustomer}, o, mustNotCall)
	require.NoError(t, err)
	assert.Equal(t, Deny, d)

	d, err = ViewOrder(vendorA, o, func() (bool, error) { return true, nil })
	require.NoError(t, err)
	assert.Equal(t, Allow, d)

	d, err = ViewOrder(vendorB, o, func() (bool, error) { return false, nil })
	require.NoError(t, err)
	assert.Equal(t, Deny, d)

	lookupErr := errors.New("store down")
	_, err = ViewOrder(vendorB, o, func() (bool, error) { return false, lookupErr })
	assert.ErrorIs(t, err, lookupErr)
}

func TestListOrders(t *testing.T) {
	assert.Equal(t, ScopeAll, ListOrders(admin))
	assert.Equal(t, ScopeVendorProducts, ListOrders(vendorA))
	assert.Equal(t, ScopeOwn, ListOrders(customer))
	assert.Equal(t, ScopeOwn, ListOrders(model.User{ID: "x"}))
}
