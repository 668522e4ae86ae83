package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"listing-service/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
)

// DynamoAPI is the subset of the DynamoDB client the adapter needs.
type DynamoAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
}

// DynamoAdapter is a DynamoDB-backed ListingRepo. Listings live in one table
// with primary key `id` (string). Filtering and sorting happen in application
// code after a scan of the active items.
type DynamoAdapter struct {
	client DynamoAPI
	table  string
}

func NewDynamoAdapter(client DynamoAPI, table string) *DynamoAdapter {
	return &DynamoAdapter{client: client, table: table}
}

type ddbListing struct {
	ID            string  `dynamodbav:"id"`
	Name          string  `dynamodbav:"name"`
	Price         int     `dynamodbav:"price"`
	Seller        string  `dynamodbav:"seller"`
	WhatsApp      string  `dynamodbav:"whatsapp"`
	Condition     string  `dynamodbav:"condition"`
	Description   string  `dynamodbav:"description"`
	ImagePath     string  `dynamodbav:"imagePath"`
	ImagePublicID *string `dynamodbav:"imagePublicId,omitempty"`
	DateAdded     string  `dynamodbav:"dateAdded"`
	IsActive      bool    `dynamodbav:"isActive"`
}

func (d *DynamoAdapter) toModel(dl *ddbListing) *models.Listing {
	l := &models.Listing{
		ID:          dl.ID,
		Name:        dl.Name,
		Price:       dl.Price,
		Seller:      dl.Seller,
		WhatsApp:    dl.WhatsApp,
		Condition:   models.Condition(dl.Condition),
		Description: dl.Description,
		ImagePath:   dl.ImagePath,
		IsActive:    dl.IsActive,
	}
	if dl.ImagePublicID != nil {
		l.ImagePublicID = *dl.ImagePublicID
	}
	if t, err := time.Parse(time.RFC3339Nano, dl.DateAdded); err == nil {
		l.DateAdded = t
	}
	return l
}

func (d *DynamoAdapter) toDDB(l *models.Listing) *ddbListing {
	dl := &ddbListing{
		ID:          l.ID,
		Name:        l.Name,
		Price:       l.Price,
		Seller:      l.Seller,
		WhatsApp:    l.WhatsApp,
		Condition:   string(l.Condition),
		Description: l.Description,
		ImagePath:   l.ImagePath,
		DateAdded:   l.DateAdded.UTC().Format(time.RFC3339Nano),
		IsActive:    l.IsActive,
	}
	if l.ImagePublicID != "" {
		dl.ImagePublicID = aws.String(l.ImagePublicID)
	}
	return dl
}

func (d *DynamoAdapter) key(id string) (map[string]types.AttributeValue, error) {
	key, err := attributevalue.MarshalMap(map[string]string{"id": id})
	if err != nil {
		return nil, fmt.Errorf("marshal key: %w", err)
	}
	return key, nil
}

func (d *DynamoAdapter) scanActive(ctx context.Context) ([]*models.Listing, error) {
	filterExpr := "#active = :active"
	input := &dynamodb.ScanInput{
		TableName:                 &d.table,
		FilterExpression:          &filterExpr,
		ExpressionAttributeNames:  map[string]string{"#active": "isActive"},
		ExpressionAttributeValues: map[string]types.AttributeValue{":active": &types.AttributeValueMemberBOOL{Value: true}},
	}

	var results []*models.Listing
	paginator := dynamodb.NewScanPaginator(d.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("scan page failed: %w", err)
		}
		for _, item := range page.Items {
			var dl ddbListing
			if err := attributevalue.UnmarshalMap(item, &dl); err != nil {
				return nil, fmt.Errorf("unmarshal item: %w", err)
			}
			results = append(results, d.toModel(&dl))
		}
	}
	return results, nil
}

func (d *DynamoAdapter) Find(ctx context.Context, q models.ListingQuery) ([]*models.Listing, error) {
	all, err := d.scanActive(ctx)
	if err != nil {
		return nil, err
	}
	return FilterListings(all, q), nil
}

func (d *DynamoAdapter) FindByID(ctx context.Context, id string) (*models.Listing, error) {
	key, err := d.key(id)
	if err != nil {
		return nil, err
	}
	out, err := d.client.GetItem(ctx, &dynamodb.GetItemInput{TableName: &d.table, Key: key})
	if err != nil {
		return nil, fmt.Errorf("dynamodb GetItem failed: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, ErrNotFound
	}
	var dl ddbListing
	if err := attributevalue.UnmarshalMap(out.Item, &dl); err != nil {
		return nil, fmt.Errorf("unmarshal item: %w", err)
	}
	if !dl.IsActive {
		return nil, ErrNotFound
	}
	return d.toModel(&dl), nil
}

func (d *DynamoAdapter) Create(ctx context.Context, listing *models.Listing) error {
	listing.ID = uuid.New().String()
	item, err := attributevalue.MarshalMap(d.toDDB(listing))
	if err != nil {
		return fmt.Errorf("marshal listing: %w", err)
	}
	cond := "attribute_not_exists(id)"
	_, err = d.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           &d.table,
		Item:                item,
		ConditionExpression: &cond,
	})
	if err != nil {
		return fmt.Errorf("dynamodb PutItem failed: %w", err)
	}
	return nil
}

// updateExpression builds "SET #a0 = :v0, ..." for the given attributes, plus
// the guard that the item exists and is still active.
func updateExpression(sets map[string]interface{}) (string, map[string]string, map[string]types.AttributeValue, error) {
	names := map[string]string{"#active": "isActive"}
	values := map[string]types.AttributeValue{":active": &types.AttributeValueMemberBOOL{Value: true}}
	clauses := make([]string, 0, len(sets))
	i := 0
	for attr, v := range sets {
		namePh := fmt.Sprintf("#a%d", i)
		valuePh := fmt.Sprintf(":v%d", i)
		av, err := attributevalue.Marshal(v)
		if err != nil {
			return "", nil, nil, fmt.Errorf("marshal update value: %w", err)
		}
		names[namePh] = attr
		values[valuePh] = av
		clauses = append(clauses, fmt.Sprintf("%s = %s", namePh, valuePh))
		i++
	}
	return "SET " + strings.Join(clauses, ", "), names, values, nil
}

func (d *DynamoAdapter) applyUpdate(ctx context.Context, id string, sets map[string]interface{}, returnValues types.ReturnValue) (*models.Listing, error) {
	key, err := d.key(id)
	if err != nil {
		return nil, err
	}
	expr, names, values, err := updateExpression(sets)
	if err != nil {
		return nil, err
	}
	cond := "attribute_exists(id) AND #active = :active"
	out, err := d.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 &d.table,
		Key:                       key,
		UpdateExpression:          &expr,
		ConditionExpression:       &cond,
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
		ReturnValues:              returnValues,
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("update item failed: %w", err)
	}
	var dl ddbListing
	if err := attributevalue.UnmarshalMap(out.Attributes, &dl); err != nil {
		return nil, fmt.Errorf("unmarshal item: %w", err)
	}
	return d.toModel(&dl), nil
}

func (d *DynamoAdapter) Update(ctx context.Context, id string, update models.ListingUpdate) (*models.Listing, error) {
	sets := make(map[string]interface{})
	if update.Name != nil {
		sets["name"] = *update.Name
	}
	if update.Price != nil {
		sets["price"] = *update.Price
	}
	if update.Seller != nil {
		sets["seller"] = *update.Seller
	}
	if update.WhatsApp != nil {
		sets["whatsapp"] = *update.WhatsApp
	}
	if update.Condition != nil {
		sets["condition"] = string(*update.Condition)
	}
	if update.Description != nil {
		sets["description"] = *update.Description
	}
	if update.ImagePath != nil {
		sets["imagePath"] = *update.ImagePath
	}
	if update.ImagePublicID != nil {
		sets["imagePublicId"] = *update.ImagePublicID
	}
	if len(sets) == 0 {
		return d.FindByID(ctx, id)
	}
	return d.applyUpdate(ctx, id, sets, types.ReturnValueAllNew)
}

// Delete performs a soft delete and returns the listing as it was.
func (d *DynamoAdapter) Delete(ctx context.Context, id string) (*models.Listing, error) {
	return d.applyUpdate(ctx, id, map[string]interface{}{"isActive": false}, types.ReturnValueAllOld)
}

func (d *DynamoAdapter) Stats(ctx context.Context) (*models.ListingStats, error) {
	all, err := d.scanActive(ctx)
	if err != nil {
		return nil, err
	}
	return ComputeStats(all), nil
}

func (d *DynamoAdapter) Ping(ctx context.Context) error {
	_, err := d.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: &d.table})
	if err != nil {
		return fmt.Errorf("describe table %s: %w", d.table, err)
	}
	return nil
}

func (d *DynamoAdapter) EnsureIndexes(ctx context.Context) error {
	// Table creation belongs to infrastructure; only verify it is reachable.
	return d.Ping(ctx)
}
