package routes

import (
	"net/http"
	"net/url"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/hairnova/internal/models"
)

func names(list []interface{}) []string {
	out := make([]string, len(list))
	for i, item := range list {
		out[i] = item.(map[string]interface{})["name"].(string)
	}
	return out
}

func TestShopFiltersAndSorting(t *testing.T) {
	env := newTestEnv(t)
	care := models.Category{Name: "Hair Care", IsActive: true}
	styling := models.Category{Name: "Styling", IsActive: true}
	require.NoError(t, env.db.Create(&care).Error)
	require.NoError(t, env.db.Create(&styling).Error)

	seed := func(name, brand string, price int64, category *models.Category, mutate func(*models.Product)) models.Product {
		p := models.Product{Name: name, Brand: brand, Price: decimal.NewFromInt(price), Stock: 5, IsActive: true, CategoryID: &category.ID, Images: []string{}}
		if mutate != nil {
			mutate(&p)
		}
		require.NoError(t, env.db.Create(&p).Error)
		return p
	}
	argan := seed("Argan Oil", "Nova", 200000, &care, func(p *models.Product) { p.Rating = 4.8; p.IsFeatured = true })
	seed("Silk Shampoo", "Nova", 90000, &care, func(p *models.Product) { p.Tags = "argan,silk"; p.Rating = 4.1 })
	seed("Strong Gel", "Fix", 60000, &styling, func(p *models.Product) { p.OnSale = true })
	hidden := seed("Old Wax", "Fix", 10000, &styling, nil)
	require.NoError(t, env.db.Model(&hidden).Update("is_active", false).Error)

	cl := env.guest()
	status, body := cl.do(t, http.MethodGet, "/api/shop", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, []string{"Argan Oil", "Silk Shampoo", "Strong Gel"}, names(body.list()))
	filters := body["filters"].(map[string]interface{})
	assert.Equal(t, []interface{}{"Fix", "Nova"}, filters["brands"])
	assert.True(t, dec(t, filters["max_price"]).Equal(decimal.NewFromInt(200000)))
	assert.EqualValues(t, 1, body["pagination"].(map[string]interface{})["total_pages"])

	_, body = cl.do(t, http.MethodGet, "/api/shop?sort=priceAsc", nil)
	assert.Equal(t, []string{"Strong Gel", "Silk Shampoo", "Argan Oil"}, names(body.list()))

	_, body = cl.do(t, http.MethodGet, "/api/shop?search=ARGAN", nil)
	assert.ElementsMatch(t, []string{"Argan Oil", "Silk Shampoo"}, names(body.list()), "tags are searched too")

	_, body = cl.do(t, http.MethodGet, "/api/shop?category="+url.QueryEscape("hair care")+"&max_price=100000", nil)
	assert.Equal(t, []string{"Silk Shampoo"}, names(body.list()))

	_, body = cl.do(t, http.MethodGet, "/api/shop?category=all&brand=Fix", nil)
	assert.Equal(t, []string{"Strong Gel"}, names(body.list()))

	status, _ = cl.do(t, http.MethodGet, "/api/shop?max_price=cheap", nil)
	assert.Equal(t, http.StatusBadRequest, status)

	_, body = cl.do(t, http.MethodGet, "/api/shop?search=100%25", nil)
	assert.Empty(t, body.list(), "LIKE wildcards are matched literally")

	_, body = cl.do(t, http.MethodGet, "/api/shop/suggestions?query=gel", nil)
	assert.Equal(t, []string{"Strong Gel"}, names(body.list()))
	_, body = cl.do(t, http.MethodGet, "/api/shop/suggestions?query=", nil)
	assert.Empty(t, body.list())

	status, body = cl.do(t, http.MethodGet, "/api/home", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, []string{"Argan Oil"}, names(body.data()["featured_products"].([]interface{})))
	assert.Equal(t, []string{"Strong Gel"}, names(body.data()["sale_products"].([]interface{})))

	_, body = cl.do(t, http.MethodGet, "/api/categories?limit=1", nil)
	assert.Equal(t, []string{"Hair Care"}, names(body.list()))

	status, body = cl.do(t, http.MethodGet, "/api/products/"+argan.ID.String(), nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, []string{"Silk Shampoo"}, names(body.data()["related_products"].([]interface{})))
	assert.NotContains(t, body.data(), "can_review")

	status, _ = cl.do(t, http.MethodGet, "/api/products/"+hidden.ID.String(), nil)
	assert.Equal(t, http.StatusNotFound, status)
	status, _ = cl.do(t, http.MethodGet, "/api/products/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestWishlist(t *testing.T) {
	env := newTestEnv(t)
	user := env.seedUser(t, "lan@example.com", models.RoleCustomer)
	oil := env.seedProduct(t, "Argan Oil", 200000, 5)
	cl := env.as(t, user)
	toggle := map[string]string{"product_id": oil.ID.String()}

	status, _ := env.guest().do(t, http.MethodGet, "/api/wishlist", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, body := cl.do(t, http.MethodPost, "/api/wishlist/toggle", toggle)
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, true, body.data()["added"])
	assert.EqualValues(t, 1, body.data()["count"])

	_, body = cl.do(t, http.MethodGet, "/api/wishlist/ids", nil)
	assert.Equal(t, []interface{}{oil.ID.String()}, body.list())
	_, body = cl.do(t, http.MethodGet, "/api/wishlist/check/"+oil.ID.String(), nil)
	assert.Equal(t, true, body.data()["in_wishlist"])

	_, body = cl.do(t, http.MethodGet, "/api/wishlist", nil)
	require.Len(t, body.list(), 1)
	assert.Equal(t, "Argan Oil", body.list()[0].(map[string]interface{})["product"].(map[string]interface{})["name"])

	_, body = cl.do(t, http.MethodPost, "/api/wishlist/toggle", toggle)
	assert.Equal(t, false, body.data()["added"])
	assert.EqualValues(t, 0, body.data()["count"])

	status, _ = cl.do(t, http.MethodDelete, "/api/wishlist/"+oil.ID.String(), nil)
	assert.Equal(t, http.StatusNotFound, status)

	_, _ = cl.do(t, http.MethodPost, "/api/wishlist/toggle", toggle)
	status, body = cl.do(t, http.MethodDelete, "/api/wishlist/"+oil.ID.String(), nil)
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 0, body.data()["count"])

	status, _ = cl.do(t, http.MethodPost, "/api/wishlist/toggle", map[string]string{"product_id": "8f0c7f0e-0000-4000-8000-000000000000"})
	assert.Equal(t, http.StatusNotFound, status)
}

func TestReviews(t *testing.T) {
	env := newTestEnv(t)
	admin := env.as(t, env.seedUser(t, "admin@example.com", models.RoleAdmin))
	user := env.seedUser(t, "lan@example.com", models.RoleCustomer)
	cl := env.as(t, user)
	oil := env.seedProduct(t, "Argan Oil", 200000, 5)
	gel := env.seedProduct(t, "Strong Gel", 60000, 5)

	order := placeOrder(t, cl, oil, 1)
	orderID := order["id"].(string)
	review := map[string]interface{}{"order_id": orderID, "rating": 4, "comment": "Nice"}

	status, _ := cl.do(t, http.MethodPost, "/api/products/"+oil.ID.String()+"/reviews", review)
	assert.Equal(t, http.StatusBadRequest, status, "order not completed yet")

	status, body := cl.do(t, http.MethodGet, "/api/products/"+oil.ID.String()+"/can-review", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, false, body.data()["can_review"])

	for _, next := range []string{"confirmed", "shipping", "completed"} {
		status, _ := admin.do(t, http.MethodPut, "/api/admin/orders/"+orderID+"/status", map[string]string{"status": next})
		require.Equal(t, http.StatusOK, status)
	}

	status, _ = cl.do(t, http.MethodPost, "/api/products/"+gel.ID.String()+"/reviews", review)
	assert.Equal(t, http.StatusBadRequest, status, "order does not contain the product")

	status, _ = cl.do(t, http.MethodPost, "/api/products/"+oil.ID.String()+"/reviews", map[string]interface{}{"order_id": orderID, "rating": 6})
	assert.Equal(t, http.StatusUnprocessableEntity, status)

	stranger := env.as(t, env.seedUser(t, "x@example.com", models.RoleCustomer))
	status, _ = stranger.do(t, http.MethodPost, "/api/products/"+oil.ID.String()+"/reviews", review)
	assert.Equal(t, http.StatusNotFound, status)

	status, body = cl.do(t, http.MethodPost, "/api/products/"+oil.ID.String()+"/reviews", review)
	require.Equal(t, http.StatusCreated, status, body)

	review["rating"] = 2
	status, _ = cl.do(t, http.MethodPost, "/api/products/"+oil.ID.String()+"/reviews", review)
	require.Equal(t, http.StatusOK, status, "second submit edits the review")

	p := env.reload(t, oil.ID)
	assert.Equal(t, 2.0, p.Rating)
	assert.Equal(t, 1, p.ReviewCount)

	status, body = env.guest().do(t, http.MethodGet, "/api/products/"+oil.ID.String()+"/reviews", nil)
	require.Equal(t, http.StatusOK, status)
	reviews := body.data()["reviews"].([]interface{})
	require.Len(t, reviews, 1)
	first := reviews[0].(map[string]interface{})
	assert.Equal(t, user.FullName, first["reviewer_name"])
	assert.Contains(t, first["avatar_url"], "ui-avatars.com")

	_, body = cl.do(t, http.MethodGet, "/api/products/"+oil.ID.String()+"/can-review", nil)
	assert.Equal(t, true, body.data()["can_review"])
	assert.Equal(t, true, body.data()["has_reviewed"])

	_, body = cl.do(t, http.MethodGet, "/api/products/"+oil.ID.String(), nil)
	assert.Equal(t, true, body.data()["has_reviewed"])
}
