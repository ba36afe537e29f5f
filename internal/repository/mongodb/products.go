package mongodb

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/mamadbah2/pantry/internal/domain/models"
)

type productDocument struct {
	Handle         primitive.ObjectID `bson:"_id,omitempty"`
	models.Product `bson:",inline"`
}

func (r *MongoDBRepository) products(name string) (*mongo.Collection, error) {
	if !models.IsCollection(name) {
		return nil, fmt.Errorf("%w: %s", models.ErrUnknownCollection, name)
	}
	return r.db.Collection(name), nil
}

// Insert stores a product and returns the store handle assigned to it.
func (r *MongoDBRepository) Insert(ctx context.Context, collection string, product models.Product) (string, error) {
	coll, err := r.products(collection)
	if err != nil {
		return "", err
	}

	res, err := coll.InsertOne(ctx, productDocument{Product: product})
	if err != nil {
		return "", fmt.Errorf("insert product %s into %s: %w", product.ID, collection, err)
	}

	oid, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return fmt.Sprint(res.InsertedID), nil
	}
	return oid.Hex(), nil
}

// QueryByEquality returns every product matching all filters, in store order.
func (r *MongoDBRepository) QueryByEquality(ctx context.Context, collection string, filters ...Filter) ([]StoredProduct, error) {
	coll, err := r.products(collection)
	if err != nil {
		return nil, err
	}

	cursor, err := coll.Find(ctx, buildFilter(filters))
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", collection, err)
	}

	var docs []productDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode %s results: %w", collection, err)
	}

	out := make([]StoredProduct, 0, len(docs))
	for _, doc := range docs {
		out = append(out, StoredProduct{Handle: doc.Handle.Hex(), Product: doc.Product})
	}
	return out, nil
}

// DeleteByHandle removes exactly one document.
func (r *MongoDBRepository) DeleteByHandle(ctx context.Context, collection string, handle string) error {
	coll, err := r.products(collection)
	if err != nil {
		return err
	}
	oid, err := primitive.ObjectIDFromHex(handle)
	if err != nil {
		return fmt.Errorf("invalid handle %q: %w", handle, err)
	}

	res, err := coll.DeleteOne(ctx, bson.D{{Key: "_id", Value: oid}})
	if err != nil {
		return fmt.Errorf("delete %s from %s: %w", handle, collection, err)
	}
	if res.DeletedCount == 0 {
		return models.ErrNotFound
	}
	return nil
}

// ReplaceByHandle overwrites the document in place, keeping its handle.
func (r *MongoDBRepository) ReplaceByHandle(ctx context.Context, collection string, handle string, product models.Product) error {
	coll, err := r.products(collection)
	if err != nil {
		return err
	}
	oid, err := primitive.ObjectIDFromHex(handle)
	if err != nil {
		return fmt.Errorf("invalid handle %q: %w", handle, err)
	}

	res, err := coll.ReplaceOne(ctx, bson.D{{Key: "_id", Value: oid}}, productDocument{Product: product})
	if err != nil {
		return fmt.Errorf("replace %s in %s: %w", handle, collection, err)
	}
	if res.MatchedCount == 0 {
		return models.ErrNotFound
	}
	return nil
}

// DistinctUserIDs lists users owning at least one auto-tracked product.
func (r *MongoDBRepository) DistinctUserIDs(ctx context.Context, collection string) ([]string, error) {
	coll, err := r.products(collection)
	if err != nil {
		return nil, err
	}

	values, err := coll.Distinct(ctx, "userId", bson.D{{Key: "autoTracking", Value: true}})
	if err != nil {
		return nil, fmt.Errorf("distinct users in %s: %w", collection, err)
	}

	ids := make([]string, 0, len(values))
	for _, v := range values {
		if s, ok := v.(string); ok && s != "" {
			ids = append(ids, s)
		}
	}
	return ids, nil
}

// MigrateLegacyIDs rewrites string-typed product ids as numbers and returns how
// many documents changed. Documents whose id is not numeric are left untouched.
func (r *MongoDBRepository) MigrateLegacyIDs(ctx context.Context, collection string) (int, error) {
	coll, err := r.products(collection)
	if err != nil {
		return 0, err
	}

	cursor, err := coll.Find(ctx, bson.D{{Key: "id", Value: bson.D{{Key: "$type", Value: "string"}}}})
	if err != nil {
		return 0, fmt.Errorf("find legacy ids in %s: %w", collection, err)
	}
	defer cursor.Close(ctx)

	var (
		migrated int
		errs     []error
	)
	for cursor.Next(ctx) {
		var doc productDocument
		if err := cursor.Decode(&doc); err != nil {
			errs = append(errs, err)
			continue
		}
		_, err := coll.UpdateOne(ctx,
			bson.D{{Key: "_id", Value: doc.Handle}},
			bson.D{{Key: "$set", Value: bson.D{{Key: "id", Value: int64(doc.ID)}}}},
		)
		if err != nil {
			errs = append(errs, fmt.Errorf("migrate %s: %w", doc.Handle.Hex(), err))
			continue
		}
		migrated++
	}
	if err := cursor.Err(); err != nil {
		errs = append(errs, err)
	}

	return migrated, errors.Join(errs...)
}
