package mongodb

import (
	"go.mongodb.org/mongo-driver/bson"

	"github.com/mamadbah2/pantry/internal/domain/models"
)

// Filter is an equality condition on one field. Several values match any of them.
type Filter struct {
	Field  string
	Values []any
}

// Eq builds an equality filter.
func Eq(field string, values ...any) Filter {
	return Filter{Field: field, Values: values}
}

// OwnedBy scopes a query to one user.
func OwnedBy(userID string) Filter {
	return Eq("userId", userID)
}

// HasID matches a product id stored either as a number or as a legacy string.
func HasID(id models.ProductID) Filter {
	return Eq("id", int64(id), id.String())
}

// StoredProduct is a product together with its store-internal handle.
type StoredProduct struct {
	Handle string
	models.Product
}

func buildFilter(filters []Filter) bson.D {
	doc := bson.D{}
	for _, f := range filters {
		switch len(f.Values) {
		case 0:
			continue
		case 1:
			doc = append(doc, bson.E{Key: f.Field, Value: f.Values[0]})
		default:
			doc = append(doc, bson.E{Key: f.Field, Value: bson.D{{Key: "$in", Value: f.Values}}})
		}
	}
	return doc
}
