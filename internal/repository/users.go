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

const usersCollection = "users"

type userDocument struct {
	ID                   primitive.ObjectID `bson:"_id,omitempty"`
	Email                string             `bson:"email"`
	Password             string             `bson:"password"`
	ResetToken           string             `bson:"reset_token,omitempty"`
	ResetTokenExpiration *time.Time         `bson:"reset_token_expiration,omitempty"`
	Cart                 cartDocument       `bson:"cart"`
	CreatedAt            time.Time          `bson:"created_at"`
	UpdatedAt            time.Time          `bson:"updated_at"`
}

type cartDocument struct {
	Items []cartItemDocument `bson:"items"`
}

type cartItemDocument struct {
	ProductID primitive.ObjectID `bson:"product_id"`
	Quantity  int                `bson:"quantity"`
}

func (d *userDocument) toDomain() *domain.User {
	return &domain.User{
		ID:                   d.ID.Hex(),
		Email:                d.Email,
		PasswordHash:         d.Password,
		ResetToken:           d.ResetToken,
		ResetTokenExpiration: d.ResetTokenExpiration,
		Cart:                 d.Cart.toDomain(),
		CreatedAt:            d.CreatedAt,
		UpdatedAt:            d.UpdatedAt,
	}
}

func (d cartDocument) toDomain() domain.Cart {
	items := make([]domain.CartItem, 0, len(d.Items))
	for _, item := range d.Items {
		items = append(items, domain.CartItem{
			ProductID: item.ProductID.Hex(),
			Quantity:  item.Quantity,
		})
	}
	return domain.Cart{Items: items}
}

type mongoUserRepository struct {
	collection *mongo.Collection
}

func NewUserRepository(db *mongo.Database) UserRepository {
	return &mongoUserRepository{
		collection: db.Collection(usersCollection),
	}
}

func (m *mongoUserRepository) Create(ctx context.Context, user *domain.User) error {
	now := time.Now().UTC()
	doc := userDocument{
		Email:     user.Email,
		Password:  user.PasswordHash,
		Cart:      cartDocument{Items: []cartItemDocument{}},
		CreatedAt: now,
		UpdatedAt: now,
	}

	res, err := m.collection.InsertOne(ctx, doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicateEmail
		}
		return wrapErr("failed to create user", err)
	}

	oid, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return fmt.Errorf("unexpected inserted id type %T", res.InsertedID)
	}
	user.ID = oid.Hex()
	user.Cart = domain.ClearCart()
	user.CreatedAt = now
	user.UpdatedAt = now
	return nil
}

func (m *mongoUserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrUserNotFound
	}
	return m.findOne(ctx, bson.M{"_id": oid})
}

func (m *mongoUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return m.findOne(ctx, bson.M{"email": email})
}

func (m *mongoUserRepository) GetByResetToken(ctx context.Context, token string) (*domain.User, error) {
	if token == "" {
		return nil, ErrUserNotFound
	}
	return m.findOne(ctx, bson.M{"reset_token": token})
}

func (m *mongoUserRepository) findOne(ctx context.Context, filter bson.M) (*domain.User, error) {
	var doc userDocument
	err := m.collection.FindOne(ctx, filter).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrUserNotFound
		}
		return nil, wrapErr("failed to get user", err)
	}
	return doc.toDomain(), nil
}

func (m *mongoUserRepository) SetResetToken(ctx context.Context, userID, token string, expiresAt time.Time) error {
	return m.updateByID(ctx, userID, bson.M{
		"$set": bson.M{
			"reset_token":            token,
			"reset_token_expiration": expiresAt.UTC(),
			"updated_at":             time.Now().UTC(),
		},
	}, "failed to set reset token")
}

// UpdatePassword stores the new hash and clears any pending reset token.
func (m *mongoUserRepository) UpdatePassword(ctx context.Context, userID, passwordHash string) error {
	return m.updateByID(ctx, userID, bson.M{
		"$set": bson.M{
			"password":   passwordHash,
			"updated_at": time.Now().UTC(),
		},
		"$unset": bson.M{
			"reset_token":            "",
			"reset_token_expiration": "",
		},
	}, "failed to update password")
}

func (m *mongoUserRepository) updateByID(ctx context.Context, userID string, update bson.M, msg string) error {
	oid, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return ErrUserNotFound
	}

	result, err := m.collection.UpdateOne(ctx, bson.M{"_id": oid}, update)
	if err != nil {
		return wrapErr(msg, err)
	}
	if result.MatchedCount == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (m *mongoUserRepository) CreateIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "reset_token", Value: 1}},
			Options: options.Index().SetSparse(true),
		},
	}

	_, err := m.collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		return fmt.Errorf("failed to create user indexes: %w", err)
	}

	return nil
}
