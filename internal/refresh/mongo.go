package refresh

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStore implements Store on a Mongo collection. The unique index on the
// token string is the defense against two rows for one token.
type MongoStore struct {
	col *mongo.Collection
	now func() time.Time
}

func NewMongoStore(col *mongo.Collection) *MongoStore {
	return &MongoStore{col: col, now: time.Now}
}

// EnsureIndexes creates the unique token index plus lookup indexes. Safe to
// call on every startup.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "token", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "userId", Value: 1}}},
		{Keys: bson.D{{Key: "expiresAt", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("refresh token indexes: %w", err)
	}
	return nil
}

func (s *MongoStore) Issue(ctx context.Context, userID, token string, expiresAt time.Time) error {
	rec := &Token{
		ID:        primitive.NewObjectID().Hex(),
		UserID:    userID,
		Token:     token,
		ExpiresAt: expiresAt,
		CreatedAt: s.now().UTC(),
	}
	if _, err := s.col.InsertOne(ctx, rec); err != nil {
		return fmt.Errorf("issue refresh token: %w", err)
	}
	return nil
}

// Redeem finds the live row and deletes it in one step. The delete is the
// rotation: between it and the caller's follow-up Issue there is no
// redeemable token, and a racing redeemer of the same string loses.
func (s *MongoStore) Redeem(ctx context.Context, token string) (string, error) {
	filter := bson.M{
		"token":     token,
		"expiresAt": bson.M{"$gt": s.now().UTC()},
	}
	var rec Token
	if err := s.col.FindOneAndDelete(ctx, filter).Decode(&rec); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return "", ErrTokenNotFound
		}
		return "", fmt.Errorf("redeem refresh token: %w", err)
	}
	return rec.UserID, nil
}

func (s *MongoStore) Revoke(ctx context.Context, token string) error {
	if _, err := s.col.DeleteOne(ctx, bson.M{"token": token}); err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	return nil
}

func (s *MongoStore) RevokeAll(ctx context.Context, userID string) (int64, error) {
	res, err := s.col.DeleteMany(ctx, bson.M{"userId": userID})
	if err != nil {
		return 0, fmt.Errorf("revoke refresh tokens for user: %w", err)
	}
	return res.DeletedCount, nil
}

func (s *MongoStore) SweepExpired(ctx context.Context) (int64, error) {
	res, err := s.col.DeleteMany(ctx, bson.M{"expiresAt": bson.M{"$lte": s.now().UTC()}})
	if err != nil {
		return 0, fmt.Errorf("sweep refresh tokens: %w", err)
	}
	return res.DeletedCount, nil
}
