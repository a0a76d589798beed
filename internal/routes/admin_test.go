package routes

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/example/hairnova/internal/models"
)

func TestAdminRequiresAdminRole(t *testing.T) {
	env := newTestEnv(t)
	customer := env.seedUser(t, "c@example.com", models.RoleCustomer)

	status, _ := env.guest().do(t, http.MethodGet, "/api/admin/dashboard", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	status, _ = env.as(t, customer).do(t, http.MethodGet, "/api/admin/dashboard", nil)
	assert.Equal(t, http.StatusForbidden, status)

	// a stale token claiming admin does not help once the role is gone
	forged := customer
	forged.Role = models.RoleAdmin
	status, _ = env.as(t, forged).do(t, http.MethodGet, "/api/admin/dashboard", nil)
	assert.Equal(t, http.StatusForbidden, status)
}

func TestAdminOrderStatusFlow(t *testing.T) {
	env := newTestEnv(t)
	admin := env.as(t, env.seedUser(t, "admin@example.com", models.RoleAdmin))
	customer := env.seedUser(t, "lan@example.com", models.RoleCustomer)
	shopper := env.as(t, customer)
	conditioner := env.seedProduct(t, "Conditioner", 75000, 10)

	order := placeOrder(t, shopper, conditioner, 2)
	path := "/api/admin/orders/" + order["id"].(string) + "/status"

	status, _ := admin.do(t, http.MethodPut, path, map[string]string{"status": "shipping"})
	assert.Equal(t, http.StatusConflict, status, "cannot skip confirmation")
	status, _ = admin.do(t, http.MethodPut, path, map[string]string{"status": "lost"})
	assert.Equal(t, http.StatusBadRequest, status)
	status, _ = admin.do(t, http.MethodPut, path, map[string]string{"status": "pending"})
	assert.Equal(t, http.StatusConflict, status)

	for _, next := range []string{"confirmed", "shipping", "completed"} {
		status, body := admin.do(t, http.MethodPut, path, map[string]string{"status": next})
		require.Equal(t, http.StatusOK, status, body)
		assert.Equal(t, next, body.data()["new_status"])
		assert.NotEmpty(t, body.data()["new_status_name"])
		assert.NotEmpty(t, body.data()["status_class"])
	}

	status, _ = admin.do(t, http.MethodPut, path, map[string]string{"status": "cancelled"})
	assert.Equal(t, http.StatusConflict, status, "completed orders are final")
	assert.Equal(t, 8, env.reload(t, conditioner.ID).Stock)

	status, body := admin.do(t, http.MethodGet, "/api/admin/orders/"+order["id"].(string), nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body.data()["timeline"], 4)
	assert.Equal(t, customer.Email, body.data()["customer"].(map[string]interface{})["email"])

	status, body = admin.do(t, http.MethodGet, "/api/admin/orders?status=completed&search="+order["order_code"].(string), nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body.list(), 1)

	status, body = admin.do(t, http.MethodGet, "/api/admin/dashboard", nil)
	require.Equal(t, http.StatusOK, status)
	dash := body.data()
	assert.EqualValues(t, 1, dash["total_customers"])
	assert.EqualValues(t, 1, dash["total_orders"])
	assert.True(t, dec(t, dash["total_revenue"]).Equal(dec(t, "150000")))
	growth := dash["growth"].(map[string]interface{})["orders"].(map[string]interface{})
	assert.EqualValues(t, 100, growth["growth"])
	assert.Len(t, dash["recent_orders"], 1)

	status, body = admin.do(t, http.MethodGet, "/api/admin/reports", nil)
	require.Equal(t, http.StatusOK, status, body)
	rep := body.data()
	revenue := rep["revenue"].(map[string]interface{})
	assert.True(t, dec(t, revenue["total"]).Equal(dec(t, "150000")))
	assert.True(t, dec(t, revenue["this_month"]).Equal(dec(t, "150000")))
	series := revenue["series"].(map[string]interface{})
	assert.Equal(t, "monthly", series["granularity"])
	assert.Len(t, series["buckets"], 12)
	top := rep["top_products"].([]interface{})
	require.Len(t, top, 1)
	assert.EqualValues(t, 2, top[0].(map[string]interface{})["quantity"])

	status, body = admin.do(t, http.MethodGet, "/api/admin/reports?from=2000-01-01&to=2000-01-31", nil)
	require.Equal(t, http.StatusOK, status, body)
	revenue = body.data()["revenue"].(map[string]interface{})
	assert.True(t, dec(t, revenue["total"]).IsZero(), "range excludes today's order")
	assert.Empty(t, body.data()["top_products"])

	status, _ = admin.do(t, http.MethodGet, "/api/admin/reports?from=2024-02-01&to=2024-01-01", nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestAdminCancelRestoresStock(t *testing.T) {
	env := newTestEnv(t)
	admin := env.as(t, env.seedUser(t, "admin@example.com", models.RoleAdmin))
	serum := env.seedProduct(t, "Argan Serum", 100000, 0, variant("50ml", 0, 3))
	cl := env.guest()

	status, _ := cl.do(t, http.MethodPost, "/api/cart/items", map[string]interface{}{"product_id": serum.ID.String(), "capacity": "50ml", "quantity": 2})
	require.Equal(t, http.StatusOK, status)
	status, body := cl.do(t, http.MethodPost, "/api/checkout", checkoutBody())
	require.Equal(t, http.StatusCreated, status)
	id := body.data()["id"].(string)
	reserved := env.reload(t, serum.ID)
	assert.Equal(t, 1, reserved.AvailableStock("50ml"))

	status, _ = admin.do(t, http.MethodPut, "/api/admin/orders/"+id+"/status", map[string]string{"status": "confirmed"})
	require.Equal(t, http.StatusOK, status)
	status, body = admin.do(t, http.MethodPut, "/api/admin/orders/"+id+"/status", map[string]string{"status": "cancelled"})
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "confirmed", body.data()["old_status"])

	p := env.reload(t, serum.ID)
	assert.Equal(t, 3, p.AvailableStock("50ml"))
	assert.Equal(t, 3, p.Stock)
}

func TestAdminCatalog(t *testing.T) {
	env := newTestEnv(t)
	admin := env.as(t, env.seedUser(t, "admin@example.com", models.RoleAdmin))

	status, body := admin.do(t, http.MethodPost, "/api/admin/categories", map[string]string{"name": "Shampoo"})
	require.Equal(t, http.StatusCreated, status, body)
	categoryID := body.data()["id"].(string)
	assert.Equal(t, true, body.data()["is_active"])

	status, _ = admin.do(t, http.MethodPost, "/api/admin/products", map[string]interface{}{
		"name": "Bad", "price": "10", "variants": []map[string]interface{}{{"capacity": "50ml"}, {"capacity": "50ML"}},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, status, "duplicate capacities")

	status, body = admin.do(t, http.MethodPost, "/api/admin/products", map[string]interface{}{
		"name":        "Keratin Shampoo",
		"category_id": categoryID,
		"price":       "180000",
		"brand":       "Nova",
		"tags":        "keratin, repair ,",
		"stock":       99,
		"variants": []map[string]interface{}{
			{"capacity": "250ml", "stock": 4},
			{"capacity": "500ml", "price": "320000", "stock": "6"},
		},
	})
	require.Equal(t, http.StatusCreated, status, body)
	product := body.data()
	productID := product["id"].(string)
	assert.EqualValues(t, 10, product["stock"], "stock is the variant total")
	assert.Equal(t, "keratin,repair", product["tags"])

	status, _ = admin.do(t, http.MethodDelete, "/api/admin/categories/"+categoryID, nil)
	assert.Equal(t, http.StatusConflict, status)

	status, body = admin.do(t, http.MethodPut, "/api/admin/products/"+productID, map[string]interface{}{
		"name": "Keratin Shampoo", "category_id": categoryID, "price": "175000", "stock": 7, "is_active": false,
	})
	require.Equal(t, http.StatusOK, status, body)
	assert.EqualValues(t, 7, body.data()["stock"], "without variants stock is taken as given")
	assert.Equal(t, false, body.data()["is_active"])

	status, _ = env.guest().do(t, http.MethodGet, "/api/products/"+productID, nil)
	assert.Equal(t, http.StatusNotFound, status, "inactive products are hidden from the shop")

	env.images.On("Upload", mock.MatchedBy(func(key string) bool {
		return strings.HasPrefix(key, "products/"+productID+"/") && strings.HasSuffix(key, ".png")
	}), "image/png").Return("https://cdn.example.com/products/p/main.png", nil).Once()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("main_image", "Front.PNG")
	require.NoError(t, err)
	_, _ = part.Write([]byte("\x89PNG fake"))
	require.NoError(t, w.Close())
	req := httptest.NewRequest(http.MethodPost, "/api/admin/products/"+productID+"/images", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())

	status, body = admin.send(t, req)
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "https://cdn.example.com/products/p/main.png", body.data()["main_image"])

	env.images.On("Delete", "https://cdn.example.com/products/p/main.png").Return(nil).Once()
	status, _ = admin.do(t, http.MethodDelete, "/api/admin/products/"+productID, nil)
	require.Equal(t, http.StatusOK, status)
	env.images.AssertExpectations(t)

	status, _ = admin.do(t, http.MethodDelete, "/api/admin/categories/"+categoryID, nil)
	assert.Equal(t, http.StatusOK, status)
}

func TestAdminUsers(t *testing.T) {
	env := newTestEnv(t)
	me := env.seedUser(t, "admin@example.com", models.RoleAdmin)
	admin := env.as(t, me)

	status, _ := admin.do(t, http.MethodPost, "/api/admin/users", map[string]string{"username": "kim", "email": "kim@example.com"})
	assert.Equal(t, http.StatusUnprocessableEntity, status, "password required on create")

	status, body := admin.do(t, http.MethodPost, "/api/admin/users", map[string]string{
		"username": "kim", "email": "Kim@Example.com", "password": "secret1", "full_name": "Kim",
	})
	require.Equal(t, http.StatusCreated, status, body)
	kimID := body.data()["id"].(string)
	assert.Equal(t, "kim@example.com", body.data()["email"])

	status, _ = admin.do(t, http.MethodPost, "/api/admin/users", map[string]string{
		"username": "kim", "email": "kim2@example.com", "password": "secret1",
	})
	assert.Equal(t, http.StatusConflict, status)

	status, body = admin.do(t, http.MethodPost, "/api/admin/users/"+kimID+"/grant-admin", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "admin", body.data()["role"])

	status, _ = admin.do(t, http.MethodPost, "/api/admin/users/"+me.ID.String()+"/revoke-admin", nil)
	assert.Equal(t, http.StatusBadRequest, status)
	status, _ = admin.do(t, http.MethodDelete, "/api/admin/users/"+me.ID.String(), nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, body = admin.do(t, http.MethodGet, "/api/admin/users?search=KIM", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body.list(), 1)

	status, body = admin.do(t, http.MethodPut, "/api/admin/profile", map[string]string{
		"username": me.Username, "email": me.Email, "full_name": "Head Admin", "role": "customer",
	})
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "Head Admin", body.data()["full_name"])
	assert.Equal(t, "admin", body.data()["role"])

	status, _ = admin.do(t, http.MethodDelete, "/api/admin/users/"+kimID, nil)
	require.Equal(t, http.StatusOK, status)
	status, _ = admin.do(t, http.MethodGet, "/api/admin/users/"+kimID, nil)
	assert.Equal(t, http.StatusNotFound, status)
}
