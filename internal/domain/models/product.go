package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
)

// Collection names used by the document store. Both hold structurally identical
// product records and are keyed independently.
const (
	CollectionProducts      = "products"
	CollectionSavedProducts = "savedProducts"
)

// Collections lists every product collection the service manages.
func Collections() []string {
	return []string{CollectionProducts, CollectionSavedProducts}
}

// IsCollection reports whether name is a known product collection.
func IsCollection(name string) bool {
	return name == CollectionProducts || name == CollectionSavedProducts
}

// Category groups tracked products. Entry forms may also submit free text.
type Category string

const (
	CategorySugar   Category = "Sugar"
	CategoryCoffee  Category = "Coffee"
	CategoryTea     Category = "Tea"
	CategoryCereals Category = "Cereals"
	CategoryFlour   Category = "Flour"
	CategorySpices  Category = "Spices"
)

var knownCategories = []Category{CategorySugar, CategoryCoffee, CategoryTea, CategoryCereals, CategoryFlour, CategorySpices}

// NormalizeCategory maps case-insensitive matches onto the fixed set and keeps
// anything else as trimmed free text.
func NormalizeCategory(raw string) Category {
	trimmed := strings.TrimSpace(raw)
	for _, c := range knownCategories {
		if strings.EqualFold(trimmed, string(c)) {
			return c
		}
	}
	return Category(trimmed)
}

// Known reports whether the category belongs to the fixed set.
func (c Category) Known() bool {
	for _, k := range knownCategories {
		if c == k {
			return true
		}
	}
	return false
}

// ProductID is the application-level identifier of a product. Older records stored
// it as a string, so both decoders accept numeric strings.
type ProductID int64

// NewProductID derives an identifier from a creation timestamp.
func NewProductID(t time.Time) ProductID {
	return ProductID(t.UnixMilli())
}

// ParseProductID parses the textual form of an identifier.
func ParseProductID(raw string) (ProductID, error) {
	v, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse product id %q: %w", raw, err)
	}
	return ProductID(v), nil
}

func (id ProductID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// UnmarshalJSON accepts both 1700000000000 and "1700000000000".
func (id *ProductID) UnmarshalJSON(data []byte) error {
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		v, err := n.Int64()
		if err != nil {
			return fmt.Errorf("product id %s is not an integer", data)
		}
		*id = ProductID(v)
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("product id must be a number or numeric string: %w", err)
	}
	parsed, err := ParseProductID(s)
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// UnmarshalBSONValue normalizes legacy string, int32 and double identifiers.
func (id *ProductID) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	raw := bson.RawValue{Type: t, Value: data}
	switch t {
	case bsontype.Int64:
		*id = ProductID(raw.Int64())
	case bsontype.Int32:
		*id = ProductID(raw.Int32())
	case bsontype.Double:
		*id = ProductID(int64(raw.Double()))
	case bsontype.String:
		parsed, err := ParseProductID(raw.StringValue())
		if err != nil {
			return err
		}
		*id = parsed
	case bsontype.Null, bsontype.Undefined:
		*id = 0
	default:
		return fmt.Errorf("unsupported bson type %s for product id", t)
	}
	return nil
}

// Product is the only tracked entity: a consumable and its quantity state.
type Product struct {
	ID           ProductID `bson:"id" json:"id"`
	Name         string    `bson:"name" json:"name"`
	Category     Category  `bson:"category" json:"category"`
	Volume       int       `bson:"volume" json:"volume"`
	PurchaseDate string    `bson:"purchaseDate" json:"purchaseDate"`
	DailyUsage   int       `bson:"dailyUsage" json:"dailyUsage"`
	Remaining    int       `bson:"remaining" json:"remaining"`
	EndDate      string    `bson:"endDate" json:"endDate"`
	AutoTracking bool      `bson:"autoTracking" json:"autoTracking"`
	UserID       string    `bson:"userId" json:"userId"`
	CreatedAt    time.Time `bson:"createdAt" json:"createdAt"`
}

// DaysLeft projects the whole days of supply left. ok is false when the daily
// usage is not positive and the projection is unknown.
func (p Product) DaysLeft() (int, bool) {
	return DaysLeft(p.Remaining, p.DailyUsage)
}

// Apply copies the mutable fields from f, keeping identity and creation metadata.
// Remaining is clamped into the new volume.
func (p Product) Apply(f ProductFields) Product {
	p.Name = f.Name
	p.Category = f.Category
	p.Volume = f.Volume
	p.PurchaseDate = f.PurchaseDate
	p.DailyUsage = f.DailyUsage
	p.AutoTracking = f.AutoTracking
	p.EndDate = f.EndDate
	if p.Remaining > p.Volume {
		p.Remaining = p.Volume
	}
	if p.Remaining < 0 {
		p.Remaining = 0
	}
	return p
}

// SyncStatus describes how the local copy of a record relates to the remote store.
type SyncStatus string

const (
	SyncPending  SyncStatus = "pending"
	SyncSaved    SyncStatus = "saved"
	SyncOrphaned SyncStatus = "orphaned"
)

// ProductView is the read model returned to clients.
type ProductView struct {
	Product
	DaysLeft   *int       `json:"daysLeft"`
	SyncStatus SyncStatus `json:"syncStatus"`
}

// NewProductView decorates a product with its projection.
func NewProductView(p Product, status SyncStatus) ProductView {
	view := ProductView{Product: p, SyncStatus: status}
	if days, ok := p.DaysLeft(); ok {
		view.DaysLeft = &days
	}
	return view
}

// Result is the outcome of a write against the local and remote state.
type Result struct {
	Product ProductView  `json:"product"`
	Outcome Outcome      `json:"outcome"`
	Change  *StockChange `json:"change,omitempty"`
}
