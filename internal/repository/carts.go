package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/go_shop/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// An add can lose both conditional updates to concurrent writers (the line
// appears or disappears between them), so it is retried a few times.
const maxCartUpdateAttempts = 5

type mongoCartRepository struct {
	collection *mongo.Collection
}

func NewCartRepository(db *mongo.Database) CartRepository {
	return &mongoCartRepository{
		collection: db.Collection(usersCollection),
	}
}

func (m *mongoCartRepository) GetCart(ctx context.Context, userID string) (domain.Cart, error) {
	oid, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return domain.Cart{}, ErrUserNotFound
	}

	var doc userDocument
	opts := options.FindOne().SetProjection(bson.M{"cart": 1})
	err = m.collection.FindOne(ctx, bson.M{"_id": oid}, opts).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.Cart{}, ErrUserNotFound
		}
		return domain.Cart{}, wrapErr("failed to get cart", err)
	}

	return doc.Cart.toDomain(), nil
}

func (m *mongoCartRepository) AddItem(ctx context.Context, userID, productID string) error {
	uid, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return ErrUserNotFound
	}
	pid, err := primitive.ObjectIDFromHex(productID)
	if err != nil {
		return ErrProductNotFound
	}

	for attempt := 0; attempt < maxCartUpdateAttempts; attempt++ {
		now := time.Now().UTC()

		// Existing line: increment in place.
		result, err := m.collection.UpdateOne(ctx,
			bson.M{"_id": uid, "cart.items.product_id": pid},
			bson.M{
				"$inc": bson.M{"cart.items.$.quantity": 1},
				"$set": bson.M{"updated_at": now},
			},
		)
		if err != nil {
			return wrapErr("failed to increment cart item", err)
		}
		if result.MatchedCount > 0 {
			return nil
		}

		// No line yet: push only if still absent.
		result, err = m.collection.UpdateOne(ctx,
			bson.M{"_id": uid, "cart.items.product_id": bson.M{"$ne": pid}},
			bson.M{
				"$push": bson.M{"cart.items": cartItemDocument{ProductID: pid, Quantity: 1}},
				"$set":  bson.M{"updated_at": now},
			},
		)
		if err != nil {
			return wrapErr("failed to push cart item", err)
		}
		if result.MatchedCount > 0 {
			return nil
		}

		count, err := m.collection.CountDocuments(ctx, bson.M{"_id": uid})
		if err != nil {
			return wrapErr("failed to check user", err)
		}
		if count == 0 {
			return ErrUserNotFound
		}
	}

	return fmt.Errorf("failed to add item to cart after %d attempts", maxCartUpdateAttempts)
}

func (m *mongoCartRepository) RemoveItem(ctx context.Context, userID, productID string) error {
	uid, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return ErrUserNotFound
	}
	pid, err := primitive.ObjectIDFromHex(productID)
	if err != nil {
		// cannot be in the cart
		return nil
	}

	result, err := m.collection.UpdateOne(ctx,
		bson.M{"_id": uid},
		bson.M{
			"$pull": bson.M{"cart.items": bson.M{"product_id": pid}},
			"$set":  bson.M{"updated_at": time.Now().UTC()},
		},
	)
	if err != nil {
		return wrapErr("failed to remove cart item", err)
	}
	if result.MatchedCount == 0 {
		return ErrUserNotFound
	}

	return nil
}

func (m *mongoCartRepository) ClearCart(ctx context.Context, userID string) error {
	uid, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return ErrUserNotFound
	}

	result, err := m.collection.UpdateOne(ctx,
		bson.M{"_id": uid},
		bson.M{"$set": bson.M{
			"cart.items": []cartItemDocument{},
			"updated_at": time.Now().UTC(),
		}},
	)
	if err != nil {
		return wrapErr("failed to clear cart", err)
	}
	if result.MatchedCount == 0 {
		return ErrUserNotFound
	}

	return nil
}

func (m *mongoCartRepository) RemoveItems(ctx context.Context, userID string, items []domain.CartItem) error {
	uid, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return ErrUserNotFound
	}

	// One array filter per product; two filters on the same element would
	// conflict.
	taken := make(map[primitive.ObjectID]int, len(items))
	var order []primitive.ObjectID
	for _, item := range items {
		pid, err := primitive.ObjectIDFromHex(item.ProductID)
		if err != nil {
			continue
		}
		if _, seen := taken[pid]; !seen {
			order = append(order, pid)
		}
		taken[pid] += item.Quantity
	}

	inc := bson.M{}
	var filters []interface{}
	for i, pid := range order {
		name := fmt.Sprintf("i%d", i)
		inc["cart.items.$["+name+"].quantity"] = -taken[pid]
		filters = append(filters, bson.M{name + ".product_id": pid})
	}
	if len(filters) == 0 {
		return nil
	}

	now := time.Now().UTC()
	result, err := m.collection.UpdateOne(ctx,
		bson.M{"_id": uid},
		bson.M{
			"$inc": inc,
			"$set": bson.M{"updated_at": now},
		},
		options.Update().SetArrayFilters(options.ArrayFilters{Filters: filters}),
	)
	if err != nil {
		return wrapErr("failed to subtract cart items", err)
	}
	if result.MatchedCount == 0 {
		return ErrUserNotFound
	}

	// A concurrent add may already have raised a line back above zero.
	_, err = m.collection.UpdateOne(ctx,
		bson.M{"_id": uid},
		bson.M{"$pull": bson.M{"cart.items": bson.M{"quantity": bson.M{"$lte": 0}}}},
	)
	if err != nil {
		return wrapErr("failed to drop empty cart items", err)
	}

	return nil
}
