package mongodb

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/mamadbah2/pantry/internal/domain/models"
)

// CreateUser stores a new account. A duplicate email maps to ErrEmailTaken.
func (r *MongoDBRepository) CreateUser(ctx context.Context, user models.User) error {
	_, err := r.db.Collection(usersCollection).InsertOne(ctx, user)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return models.ErrEmailTaken
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// FindUserByID loads an account by id.
func (r *MongoDBRepository) FindUserByID(ctx context.Context, id string) (*models.User, error) {
	return r.findUser(ctx, bson.D{{Key: "_id", Value: id}})
}

// FindUserByEmail loads an account by its normalized email.
func (r *MongoDBRepository) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.findUser(ctx, bson.D{{Key: "email", Value: email}})
}

// FindUserByPhone resolves the sender of a chat message.
func (r *MongoDBRepository) FindUserByPhone(ctx context.Context, phone string) (*models.User, error) {
	return r.findUser(ctx, bson.D{{Key: "phone", Value: phone}})
}

// SetNotificationPreferences stores the opt-in flag and, when provided, the phone number.
func (r *MongoDBRepository) SetNotificationPreferences(ctx context.Context, id string, enabled bool, phone string) error {
	set := bson.D{{Key: "notificationsEnabled", Value: enabled}}
	if phone != "" {
		set = append(set, bson.E{Key: "phone", Value: phone})
	}

	res, err := r.db.Collection(usersCollection).UpdateOne(ctx,
		bson.D{{Key: "_id", Value: id}},
		bson.D{{Key: "$set", Value: set}},
	)
	if err != nil {
		return fmt.Errorf("update user %s preferences: %w", id, err)
	}
	if res.MatchedCount == 0 {
		return models.ErrUserNotFound
	}
	return nil
}

func (r *MongoDBRepository) findUser(ctx context.Context, filter bson.D) (*models.User, error) {
	var user models.User
	err := r.db.Collection(usersCollection).FindOne(ctx, filter).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, models.ErrUserNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return &user, nil
}
