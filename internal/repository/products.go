package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/go_shop/internal/domain"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const productsCollection = "products"

type productDocument struct {
	ID          primitive.ObjectID   `bson:"_id,omitempty"`
	Title       string               `bson:"title"`
	Price       primitive.Decimal128 `bson:"price"`
	Description string               `bson:"description"`
	ImageURL    string               `bson:"image_url"`
	UserID      primitive.ObjectID   `bson:"user_id"`
	CreatedAt   time.Time            `bson:"created_at"`
	UpdatedAt   time.Time            `bson:"updated_at"`
}

func newProductDocument(p *domain.Product) (*productDocument, error) {
	price, err := primitive.ParseDecimal128(p.Price.String())
	if err != nil {
		return nil, fmt.Errorf("invalid price %s: %w", p.Price, err)
	}
	owner, err := primitive.ObjectIDFromHex(p.UserID)
	if err != nil {
		return nil, fmt.Errorf("invalid owner id %q: %w", p.UserID, err)
	}
	doc := &productDocument{
		Title:       p.Title,
		Price:       price,
		Description: p.Description,
		ImageURL:    p.ImageURL,
		UserID:      owner,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
	if p.ID != "" {
		if doc.ID, err = primitive.ObjectIDFromHex(p.ID); err != nil {
			return nil, ErrProductNotFound
		}
	}
	return doc, nil
}

func (d *productDocument) toDomain() (*domain.Product, error) {
	price, err := decimal.NewFromString(d.Price.String())
	if err != nil {
		return nil, fmt.Errorf("invalid stored price for product %s: %w", d.ID.Hex(), err)
	}
	return &domain.Product{
		ID:          d.ID.Hex(),
		Title:       d.Title,
		Price:       price,
		Description: d.Description,
		ImageURL:    d.ImageURL,
		UserID:      d.UserID.Hex(),
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}, nil
}

type mongoProductRepository struct {
	collection *mongo.Collection
}

func NewProductRepository(db *mongo.Database) ProductRepository {
	return &mongoProductRepository{
		collection: db.Collection(productsCollection),
	}
}

func (m *mongoProductRepository) Create(ctx context.Context, product *domain.Product) error {
	now := time.Now().UTC()
	product.CreatedAt = now
	product.UpdatedAt = now

	doc, err := newProductDocument(product)
	if err != nil {
		return err
	}

	res, err := m.collection.InsertOne(ctx, doc)
	if err != nil {
		return wrapErr("failed to create product", err)
	}
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		product.ID = oid.Hex()
	}
	return nil
}

func (m *mongoProductRepository) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrProductNotFound
	}

	var doc productDocument
	err = m.collection.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrProductNotFound
		}
		return nil, wrapErr("failed to get product", err)
	}
	return doc.toDomain()
}

// GetByIDs returns the products that still exist, keyed by id. Unknown or
// malformed ids are simply absent from the map.
func (m *mongoProductRepository) GetByIDs(ctx context.Context, ids []string) (map[string]*domain.Product, error) {
	oids := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		if oid, err := primitive.ObjectIDFromHex(id); err == nil {
			oids = append(oids, oid)
		}
	}
	products := make(map[string]*domain.Product, len(oids))
	if len(oids) == 0 {
		return products, nil
	}

	cursor, err := m.collection.Find(ctx, bson.M{"_id": bson.M{"$in": oids}})
	if err != nil {
		return nil, wrapErr("failed to find products", err)
	}
	found, err := decodeProducts(ctx, cursor)
	if err != nil {
		return nil, err
	}
	for _, p := range found {
		products[p.ID] = p
	}
	return products, nil
}

func (m *mongoProductRepository) List(ctx context.Context, offset, limit int64) ([]*domain.Product, int64, error) {
	total, err := m.collection.CountDocuments(ctx, bson.M{})
	if err != nil {
		return nil, 0, wrapErr("failed to count products", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}).
		SetSkip(offset).
		SetLimit(limit)
	cursor, err := m.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, 0, wrapErr("failed to list products", err)
	}

	products, err := decodeProducts(ctx, cursor)
	if err != nil {
		return nil, 0, err
	}
	return products, total, nil
}

func (m *mongoProductRepository) ListByOwner(ctx context.Context, ownerID string) ([]*domain.Product, error) {
	owner, err := primitive.ObjectIDFromHex(ownerID)
	if err != nil {
		return []*domain.Product{}, nil
	}

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	cursor, err := m.collection.Find(ctx, bson.M{"user_id": owner}, opts)
	if err != nil {
		return nil, wrapErr("failed to list owner products", err)
	}
	return decodeProducts(ctx, cursor)
}

// Update replaces the editable fields. The owner is part of the filter, so
// a product owned by someone else reports ErrProductNotFound.
func (m *mongoProductRepository) Update(ctx context.Context, product *domain.Product) error {
	product.UpdatedAt = time.Now().UTC()
	doc, err := newProductDocument(product)
	if err != nil {
		return err
	}

	result, err := m.collection.UpdateOne(ctx,
		bson.M{"_id": doc.ID, "user_id": doc.UserID},
		bson.M{"$set": bson.M{
			"title":       doc.Title,
			"price":       doc.Price,
			"description": doc.Description,
			"image_url":   doc.ImageURL,
			"updated_at":  doc.UpdatedAt,
		}},
	)
	if err != nil {
		return wrapErr("failed to update product", err)
	}
	if result.MatchedCount == 0 {
		return ErrProductNotFound
	}
	return nil
}

func (m *mongoProductRepository) Delete(ctx context.Context, id, ownerID string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrProductNotFound
	}
	owner, err := primitive.ObjectIDFromHex(ownerID)
	if err != nil {
		return ErrProductNotFound
	}

	result, err := m.collection.DeleteOne(ctx, bson.M{"_id": oid, "user_id": owner})
	if err != nil {
		return wrapErr("failed to delete product", err)
	}
	if result.DeletedCount == 0 {
		return ErrProductNotFound
	}
	return nil
}

func (m *mongoProductRepository) CreateIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "user_id", Value: 1}}},
		{Keys: bson.D{{Key: "created_at", Value: 1}}},
	}

	_, err := m.collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		return fmt.Errorf("failed to create product indexes: %w", err)
	}
	return nil
}

func decodeProducts(ctx context.Context, cursor *mongo.Cursor) ([]*domain.Product, error) {
	defer cursor.Close(ctx)

	products := make([]*domain.Product, 0)
	for cursor.Next(ctx) {
		var doc productDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode product: %w", err)
		}
		p, err := doc.toDomain()
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	if err := cursor.Err(); err != nil {
		return nil, wrapErr("product cursor error", err)
	}
	return products, nil
}
