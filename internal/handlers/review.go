package handlers

import (
	"database/sql"
	"math"
	"net/url"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/hairnova/internal/models"
	"github.com/example/hairnova/internal/utils"
)

const avatarBaseURL = "https://ui-avatars.com/api/"

// ReviewHandler serves product reviews.
type ReviewHandler struct {
	db *gorm.DB
}

// NewReviewHandler constructs ReviewHandler.
func NewReviewHandler(db *gorm.DB) *ReviewHandler {
	return &ReviewHandler{db: db}
}

type reviewView struct {
	ID           uuid.UUID `json:"id"`
	Rating       int       `json:"rating"`
	Comment      string    `json:"comment"`
	ReviewerName string    `json:"reviewer_name"`
	AvatarURL    string    `json:"avatar_url"`
	CreatedAt    time.Time `json:"created_at"`
}

func avatarURL(name string) string {
	q := url.Values{}
	q.Set("name", name)
	q.Set("background", "random")
	return avatarBaseURL + "?" + q.Encode()
}

func newReviewView(r models.Review) reviewView {
	name := "Customer"
	if r.User != nil {
		if n := strings.TrimSpace(r.User.FullName); n != "" {
			name = n
		} else if r.User.Username != "" {
			name = r.User.Username
		}
	}
	return reviewView{
		ID:           r.ID,
		Rating:       r.Rating,
		Comment:      r.Comment,
		ReviewerName: name,
		AvatarURL:    avatarURL(name),
		CreatedAt:    r.CreatedAt,
	}
}

func (h *ReviewHandler) product(c *fiber.Ctx) (models.Product, error) {
	var product models.Product
	id, err := paramID(c, "id")
	if err != nil {
		return product, err
	}
	if err := h.db.First(&product, "id = ?", id).Error; err != nil {
		return product, notFound(err, "product")
	}
	return product, nil
}

// List returns the product's reviews, newest first.
func (h *ReviewHandler) List(c *fiber.Ctx) error {
	product, err := h.product(c)
	if err != nil {
		return err
	}

	pg := utils.ParsePagination(c)
	query := h.db.Model(&models.Review{}).Where("product_id = ?", product.ID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return err
	}

	var reviews []models.Review
	if err := query.Preload("User").
		Order("created_at desc").
		Limit(pg.Limit).Offset(pg.Offset).
		Find(&reviews).Error; err != nil {
		return err
	}

	views := make([]reviewView, len(reviews))
	for i, r := range reviews {
		views[i] = newReviewView(r)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"reviews":      views,
			"rating":       product.Rating,
			"review_count": product.ReviewCount,
		},
		"pagination": pg.Meta(total),
	})
}

// reviewEligibility returns the user's completed orders that contain the product
// and whether the user already reviewed it.
func reviewEligibility(db *gorm.DB, userID, productID uuid.UUID) ([]models.Order, bool, error) {
	var orders []models.Order
	if err := db.Where("user_id = ? AND status = ?", userID, models.StatusCompleted).
		Where("id IN (?)", db.Model(&models.OrderItem{}).Select("order_id").Where("product_id = ?", productID)).
		Order("created_at desc").
		Find(&orders).Error; err != nil {
		return nil, false, err
	}

	var reviewed int64
	if err := db.Model(&models.Review{}).
		Where("user_id = ? AND product_id = ?", userID, productID).
		Count(&reviewed).Error; err != nil {
		return nil, false, err
	}
	return orders, reviewed > 0, nil
}

// CanReview lists the completed orders the user can review the product for.
func (h *ReviewHandler) CanReview(c *fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	product, err := h.product(c)
	if err != nil {
		return err
	}

	orders, reviewed, err := reviewEligibility(h.db, userID, product.ID)
	if err != nil {
		return err
	}

	eligible := make([]fiber.Map, len(orders))
	for i, o := range orders {
		eligible[i] = fiber.Map{"id": o.ID, "order_code": o.OrderCode, "completed_at": o.CompletedAt}
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"can_review":   len(orders) > 0,
			"has_reviewed": reviewed,
			"orders":       eligible,
		},
	})
}

type submitReviewRequest struct {
	OrderID string `json:"order_id" validate:"required,uuid"`
	Rating  int    `json:"rating" validate:"required,min=1,max=5"`
	Comment string `json:"comment" validate:"max=2000"`
}

// Submit creates or updates the user's review for a product bought in a completed order.
func (h *ReviewHandler) Submit(c *fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	product, err := h.product(c)
	if err != nil {
		return err
	}
	var req submitReviewRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	orderID := uuid.MustParse(req.OrderID)

	created := false
	var review models.Review
	err = h.db.Transaction(func(tx *gorm.DB) error {
		var order models.Order
		if err := tx.First(&order, "id = ? AND user_id = ?", orderID, userID).Error; err != nil {
			return notFound(err, "order")
		}
		if order.Status != models.StatusCompleted {
			return fiber.NewError(fiber.StatusBadRequest, "only completed orders can be reviewed")
		}

		var lines int64
		if err := tx.Model(&models.OrderItem{}).
			Where("order_id = ? AND product_id = ?", order.ID, product.ID).
			Count(&lines).Error; err != nil {
			return err
		}
		if lines == 0 {
			return fiber.NewError(fiber.StatusBadRequest, "this order does not contain the product")
		}

		res := tx.Where(models.Review{ProductID: product.ID, UserID: userID, OrderID: order.ID}).Limit(1).Find(&review)
		if res.Error != nil {
			return res.Error
		}
		review.ProductID, review.UserID, review.OrderID = product.ID, userID, order.ID
		review.Rating = req.Rating
		review.Comment = strings.TrimSpace(req.Comment)

		if res.RowsAffected == 0 {
			created = true
			if err := tx.Create(&review).Error; err != nil {
				return err
			}
		} else if err := tx.Model(&review).Select("rating", "comment").Updates(&review).Error; err != nil {
			return err
		}

		return refreshRating(tx, product.ID)
	})
	if err != nil {
		return err
	}

	status := fiber.StatusOK
	if created {
		status = fiber.StatusCreated
	}
	return c.Status(status).JSON(fiber.Map{"success": true, "data": review})
}

// refreshRating recomputes the product's average rating and review count.
func refreshRating(tx *gorm.DB, productID uuid.UUID) error {
	var avg sql.NullFloat64
	var count int64
	if err := tx.Model(&models.Review{}).
		Select("AVG(rating), COUNT(*)").
		Where("product_id = ?", productID).
		Row().Scan(&avg, &count); err != nil {
		return err
	}

	rating := 0.0
	if avg.Valid {
		rating = math.Round(avg.Float64*10) / 10
	}
	return tx.Model(&models.Product{}).Where("id = ?", productID).
		Updates(map[string]interface{}{"rating": rating, "review_count": count}).Error
}
