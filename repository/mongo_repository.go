package repository

import (
	"context"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"

	"listing-service/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// MongoRepository stores listings as documents in the "products" collection.
type MongoRepository struct {
	collection *mongo.Collection
}

func NewMongoRepository(db *mongo.Database) *MongoRepository {
	return &MongoRepository{
		collection: db.Collection("products"),
	}
}

type mongoListing struct {
	ID            primitive.ObjectID `bson:"_id,omitempty"`
	Name          string             `bson:"name"`
	Price         int                `bson:"price"`
	Seller        string             `bson:"seller"`
	WhatsApp      string             `bson:"whatsapp"`
	Condition     string             `bson:"condition"`
	Description   string             `bson:"description"`
	ImagePath     string             `bson:"imagePath"`
	ImagePublicID string             `bson:"imagePublicId,omitempty"`
	DateAdded     time.Time          `bson:"dateAdded"`
	IsActive      bool               `bson:"isActive"`
}

func (d *mongoListing) toModel() *models.Listing {
	return &models.Listing{
		ID:            d.ID.Hex(),
		Name:          d.Name,
		Price:         d.Price,
		Seller:        d.Seller,
		WhatsApp:      d.WhatsApp,
		Condition:     models.Condition(d.Condition),
		Description:   d.Description,
		ImagePath:     d.ImagePath,
		ImagePublicID: d.ImagePublicID,
		DateAdded:     d.DateAdded,
		IsActive:      d.IsActive,
	}
}

// buildFilter translates a query into a Mongo filter over active listings.
func buildFilter(q models.ListingQuery) bson.M {
	filter := bson.M{"isActive": true}

	if term := strings.TrimSpace(q.Search); term != "" {
		pattern := primitive.Regex{Pattern: regexp.QuoteMeta(term), Options: "i"}
		filter["$or"] = bson.A{
			bson.M{"name": pattern},
			bson.M{"description": pattern},
			bson.M{"seller": pattern},
		}
	}

	if q.MinPrice != nil || q.MaxPrice != nil {
		price := bson.M{}
		if q.MinPrice != nil {
			price["$gte"] = *q.MinPrice
		}
		if q.MaxPrice != nil {
			price["$lte"] = *q.MaxPrice
		}
		filter["price"] = price
	}

	if q.Condition != "" {
		filter["condition"] = string(q.Condition)
	}
	return filter
}

// buildSort maps a sort key onto a Mongo sort document.
func buildSort(sortKey string) bson.D {
	switch (models.ListingQuery{Sort: sortKey}).NormalizedSort() {
	case models.SortPriceLow:
		return bson.D{{Key: "price", Value: 1}, {Key: "_id", Value: 1}}
	case models.SortPriceHigh:
		return bson.D{{Key: "price", Value: -1}, {Key: "_id", Value: 1}}
	case models.SortName:
		return bson.D{{Key: "name", Value: 1}, {Key: "_id", Value: 1}}
	default:
		return bson.D{{Key: "dateAdded", Value: -1}, {Key: "_id", Value: -1}}
	}
}

// buildSetDocument turns the set fields of an update into a $set payload.
func buildSetDocument(u models.ListingUpdate) bson.M {
	set := bson.M{}
	if u.Name != nil {
		set["name"] = *u.Name
	}
	if u.Price != nil {
		set["price"] = *u.Price
	}
	if u.Seller != nil {
		set["seller"] = *u.Seller
	}
	if u.WhatsApp != nil {
		set["whatsapp"] = *u.WhatsApp
	}
	if u.Condition != nil {
		set["condition"] = string(*u.Condition)
	}
	if u.Description != nil {
		set["description"] = *u.Description
	}
	if u.ImagePath != nil {
		set["imagePath"] = *u.ImagePath
	}
	if u.ImagePublicID != nil {
		set["imagePublicId"] = *u.ImagePublicID
	}
	return set
}

func (r *MongoRepository) Find(ctx context.Context, q models.ListingQuery) ([]*models.Listing, error) {
	cursor, err := r.collection.Find(ctx, buildFilter(q), options.Find().SetSort(buildSort(q.Sort)))
	if err != nil {
		return nil, fmt.Errorf("find listings: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []mongoListing
	if err = cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode listings: %w", err)
	}
	listings := make([]*models.Listing, 0, len(docs))
	for i := range docs {
		listings = append(listings, docs[i].toModel())
	}
	return listings, nil
}

func (r *MongoRepository) FindByID(ctx context.Context, id string) (*models.Listing, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}
	var doc mongoListing
	err = r.collection.FindOne(ctx, bson.M{"_id": oid, "isActive": true}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find listing %s: %w", id, err)
	}
	return doc.toModel(), nil
}

func (r *MongoRepository) Create(ctx context.Context, listing *models.Listing) error {
	doc := mongoListing{
		ID:            primitive.NewObjectID(),
		Name:          listing.Name,
		Price:         listing.Price,
		Seller:        listing.Seller,
		WhatsApp:      listing.WhatsApp,
		Condition:     string(listing.Condition),
		Description:   listing.Description,
		ImagePath:     listing.ImagePath,
		ImagePublicID: listing.ImagePublicID,
		DateAdded:     listing.DateAdded,
		IsActive:      listing.IsActive,
	}
	if _, err := r.collection.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("insert listing: %w", err)
	}
	listing.ID = doc.ID.Hex()
	return nil
}

func (r *MongoRepository) Update(ctx context.Context, id string, update models.ListingUpdate) (*models.Listing, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}
	set := buildSetDocument(update)
	if len(set) == 0 {
		return r.FindByID(ctx, id)
	}

	var doc mongoListing
	err = r.collection.FindOneAndUpdate(ctx,
		bson.M{"_id": oid, "isActive": true},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("update listing %s: %w", id, err)
	}
	return doc.toModel(), nil
}

// Delete performs a soft delete.
func (r *MongoRepository) Delete(ctx context.Context, id string) (*models.Listing, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}
	var doc mongoListing
	err = r.collection.FindOneAndUpdate(ctx,
		bson.M{"_id": oid, "isActive": true},
		bson.M{"$set": bson.M{"isActive": false}},
		options.FindOneAndUpdate().SetReturnDocument(options.Before),
	).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("delete listing %s: %w", id, err)
	}
	return doc.toModel(), nil
}

// statsPipeline counts active listings, distinct sellers and the mean price.
func statsPipeline() mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"isActive": true}}},
		{{Key: "$group", Value: bson.M{
			"_id":     nil,
			"total":   bson.M{"$sum": 1},
			"sellers": bson.M{"$addToSet": "$seller"},
			"avg":     bson.M{"$avg": "$price"},
		}}},
		{{Key: "$project", Value: bson.M{
			"_id":     0,
			"total":   1,
			"sellers": bson.M{"$size": "$sellers"},
			"avg":     1,
		}}},
	}
}

func (r *MongoRepository) Stats(ctx context.Context) (*models.ListingStats, error) {
	cursor, err := r.collection.Aggregate(ctx, statsPipeline())
	if err != nil {
		return nil, fmt.Errorf("aggregate stats: %w", err)
	}
	defer cursor.Close(ctx)

	var rows []struct {
		Total   int64   `bson:"total"`
		Sellers int64   `bson:"sellers"`
		Avg     float64 `bson:"avg"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("decode stats: %w", err)
	}
	stats := &models.ListingStats{}
	if len(rows) > 0 {
		stats.TotalProducts = rows[0].Total
		stats.TotalSellers = rows[0].Sellers
		stats.AveragePrice = int64(math.Round(rows[0].Avg))
	}
	return stats, nil
}

func (r *MongoRepository) Ping(ctx context.Context) error {
	return r.collection.Database().Client().Ping(ctx, readpref.Primary())
}

func (r *MongoRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "isActive", Value: 1}, {Key: "dateAdded", Value: -1}}},
		{Keys: bson.D{{Key: "isActive", Value: 1}, {Key: "price", Value: 1}}},
		{Keys: bson.D{{Key: "seller", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("create listing indexes: %w", err)
	}
	return nil
}
