package repository_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"listing-service/models"
	"listing-service/repository"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDynamo keeps items in memory and understands the small subset of
// expressions the adapter sends.
type fakeDynamo struct {
	mu    sync.Mutex
	items map[string]map[string]types.AttributeValue
}

func newFakeDynamo() *fakeDynamo {
	return &fakeDynamo{items: make(map[string]map[string]types.AttributeValue)}
}

func copyItem(item map[string]types.AttributeValue) map[string]types.AttributeValue {
	out := make(map[string]types.AttributeValue, len(item))
	for k, v := range item {
		out[k] = v
	}
	return out
}

func itemID(key map[string]types.AttributeValue) string {
	return key["id"].(*types.AttributeValueMemberS).Value
}

func itemActive(item map[string]types.AttributeValue) bool {
	v, ok := item["isActive"].(*types.AttributeValueMemberBOOL)
	return ok && v.Value
}

func conditionFailed() error {
	return &types.ConditionalCheckFailedException{Message: aws.String("The conditional request failed")}
}

func (f *fakeDynamo) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.items[itemID(in.Key)]
	if !ok {
		return &dynamodb.GetItemOutput{}, nil
	}
	return &dynamodb.GetItemOutput{Item: copyItem(item)}, nil
}

func (f *fakeDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := itemID(in.Item)
	if _, exists := f.items[id]; exists && aws.ToString(in.ConditionExpression) == "attribute_not_exists(id)" {
		return nil, conditionFailed()
	}
	f.items[id] = copyItem(in.Item)
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamo) UpdateItem(_ context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := itemID(in.Key)
	item, ok := f.items[id]
	if !ok || !itemActive(item) {
		return nil, conditionFailed()
	}
	old := copyItem(item)
	for _, clause := range strings.Split(strings.TrimPrefix(aws.ToString(in.UpdateExpression), "SET "), ", ") {
		parts := strings.SplitN(clause, " = ", 2)
		item[in.ExpressionAttributeNames[parts[0]]] = in.ExpressionAttributeValues[parts[1]]
	}
	if in.ReturnValues == types.ReturnValueAllOld {
		return &dynamodb.UpdateItemOutput{Attributes: old}, nil
	}
	return &dynamodb.UpdateItemOutput{Attributes: copyItem(item)}, nil
}

func (f *fakeDynamo) Scan(_ context.Context, in *dynamodb.ScanInput, _ ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := &dynamodb.ScanOutput{}
	for _, item := range f.items {
		if in.FilterExpression != nil && !itemActive(item) {
			continue
		}
		out.Items = append(out.Items, copyItem(item))
	}
	return out, nil
}

func (f *fakeDynamo) DescribeTable(_ context.Context, in *dynamodb.DescribeTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
	return &dynamodb.DescribeTableOutput{Table: &types.TableDescription{TableName: in.TableName}}, nil
}

func newListing(name string, price int, seller string, added time.Time) *models.Listing {
	return &models.Listing{
		Name:        name,
		Price:       price,
		Seller:      seller,
		WhatsApp:    "919999999999",
		Condition:   models.ConditionGood,
		Description: "x",
		ImagePath:   "https://cdn.example.test/" + strings.ToLower(name) + ".jpg",
		DateAdded:   added,
		IsActive:    true,
	}
}

func TestDynamoAdapter_CreateAndFindByID(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewDynamoAdapter(newFakeDynamo(), "listings")

	added := time.Date(2024, 5, 10, 9, 30, 0, 0, time.UTC)
	l := newListing("Desk", 2000, "A", added)
	l.ImagePublicID = "listings/listing_img_1.jpg"
	require.NoError(t, repo.Create(ctx, l))
	assert.NotEmpty(t, l.ID)

	got, err := repo.FindByID(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, l.Name, got.Name)
	assert.Equal(t, l.Price, got.Price)
	assert.Equal(t, l.WhatsApp, got.WhatsApp)
	assert.Equal(t, l.ImagePublicID, got.ImagePublicID)
	assert.True(t, added.Equal(got.DateAdded))
	assert.True(t, got.IsActive)
}

func TestDynamoAdapter_FindByIDMissing(t *testing.T) {
	repo := repository.NewDynamoAdapter(newFakeDynamo(), "listings")
	_, err := repo.FindByID(context.Background(), "nope")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestDynamoAdapter_FindFiltersAndSorts(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewDynamoAdapter(newFakeDynamo(), "listings")
	base := time.Now().UTC()
	for i, p := range []int{4500, 800, 2000} {
		require.NoError(t, repo.Create(ctx, newListing("Item", p, "S", base.Add(time.Duration(i)*time.Minute))))
	}

	got, err := repo.Find(ctx, models.ListingQuery{Sort: models.SortPriceLow, MinPrice: intPtr(1000)})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 2000, got[0].Price)
	assert.Equal(t, 4500, got[1].Price)
}

func TestDynamoAdapter_UpdateKeepsImmutableFields(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewDynamoAdapter(newFakeDynamo(), "listings")
	l := newListing("Desk", 2000, "A", time.Now().UTC())
	require.NoError(t, repo.Create(ctx, l))

	price := 1500
	name := "Study desk"
	got, err := repo.Update(ctx, l.ID, models.ListingUpdate{Price: &price, Name: &name})
	require.NoError(t, err)
	assert.Equal(t, 1500, got.Price)
	assert.Equal(t, "Study desk", got.Name)
	assert.Equal(t, l.ID, got.ID)
	assert.True(t, l.DateAdded.Equal(got.DateAdded))

	_, err = repo.Update(ctx, "missing", models.ListingUpdate{Price: &price})
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestDynamoAdapter_SoftDelete(t *testing.T) {
	ctx := context.Background()
	fake := newFakeDynamo()
	repo := repository.NewDynamoAdapter(fake, "listings")
	l := newListing("Desk", 2000, "A", time.Now().UTC())
	require.NoError(t, repo.Create(ctx, l))

	before, err := repo.Delete(ctx, l.ID)
	require.NoError(t, err)
	assert.True(t, before.IsActive)
	assert.Equal(t, l.ImagePath, before.ImagePath)

	_, err = repo.FindByID(ctx, l.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	all, err := repo.Find(ctx, models.ListingQuery{})
	require.NoError(t, err)
	assert.Empty(t, all)
	assert.Len(t, fake.items, 1, "soft delete keeps the item")

	_, err = repo.Delete(ctx, l.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestDynamoAdapter_Stats(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewDynamoAdapter(newFakeDynamo(), "listings")
	now := time.Now().UTC()
	require.NoError(t, repo.Create(ctx, newListing("A", 1000, "x", now)))
	require.NoError(t, repo.Create(ctx, newListing("B", 2001, "y", now)))
	require.NoError(t, repo.Create(ctx, newListing("C", 3000, "x", now)))

	stats, err := repo.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.TotalProducts)
	assert.Equal(t, int64(2), stats.TotalSellers)
	assert.Equal(t, int64(2000), stats.AveragePrice)
	assert.NoError(t, repo.Ping(ctx))
}
