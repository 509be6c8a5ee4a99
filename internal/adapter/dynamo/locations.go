// Package dynamo stores user locations in a DynamoDB table keyed by "id".
package dynamo

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	dynamodbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/couchcryptid/satellite-climate-service/internal/climate"
	"github.com/couchcryptid/satellite-climate-service/internal/domain"
)

// API is the subset of the DynamoDB client used by LocationRepository.
type API interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	Scan(ctx context.Context, in *dynamodb.ScanInput, opts ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// LocationRepository implements climate.LocationRepository on DynamoDB.
type LocationRepository struct {
	client    API
	tableName string
}

func NewLocationRepository(client API, tableName string) *LocationRepository {
	return &LocationRepository{client: client, tableName: tableName}
}

// locationItem is the stored shape of a domain.Location.
type locationItem struct {
	ID        string             `dynamodbav:"id"`
	Name      string             `dynamodbav:"name"`
	Latitude  float64            `dynamodbav:"latitude"`
	Longitude float64            `dynamodbav:"longitude"`
	Station   *domain.StationRef `dynamodbav:"station,omitempty"`
	CreatedAt time.Time          `dynamodbav:"created_at"`
	UpdatedAt time.Time          `dynamodbav:"updated_at"`
}

func toItem(loc domain.Location) locationItem {
	return locationItem{
		ID:        loc.ID,
		Name:      loc.Name,
		Latitude:  loc.Coordinate.Lat,
		Longitude: loc.Coordinate.Lon,
		Station:   loc.Station,
		CreatedAt: loc.CreatedAt.UTC(),
		UpdatedAt: loc.UpdatedAt.UTC(),
	}
}

func (it locationItem) location() domain.Location {
	return domain.Location{
		ID:         it.ID,
		Name:       it.Name,
		Coordinate: domain.Coordinate{Lat: it.Latitude, Lon: it.Longitude},
		Station:    it.Station,
		CreatedAt:  it.CreatedAt,
		UpdatedAt:  it.UpdatedAt,
	}
}

func idKey(id string) map[string]dynamodbtypes.AttributeValue {
	return map[string]dynamodbtypes.AttributeValue{
		"id": &dynamodbtypes.AttributeValueMemberS{Value: id},
	}
}

func (r *LocationRepository) SaveLocation(ctx context.Context, loc domain.Location) error {
	item, err := attributevalue.MarshalMap(toItem(loc))
	if err != nil {
		return fmt.Errorf("marshal location %s: %w", loc.ID, err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("put location %s: %w", loc.ID, err)
	}
	return nil
}

func (r *LocationRepository) GetLocation(ctx context.Context, id string) (domain.Location, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            idKey(id),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return domain.Location{}, fmt.Errorf("get location %s: %w", id, err)
	}
	if out.Item == nil {
		return domain.Location{}, fmt.Errorf("%w: %s", climate.ErrLocationNotFound, id)
	}

	var it locationItem
	if err := attributevalue.UnmarshalMap(out.Item, &it); err != nil {
		return domain.Location{}, fmt.Errorf("unmarshal location %s: %w", id, err)
	}
	return it.location(), nil
}

// ListLocations scans the whole table, following pagination, and orders the
// result by creation time.
func (r *LocationRepository) ListLocations(ctx context.Context) ([]domain.Location, error) {
	var (
		out   []domain.Location
		start map[string]dynamodbtypes.AttributeValue
	)
	for {
		page, err := r.client.Scan(ctx, &dynamodb.ScanInput{
			TableName:         aws.String(r.tableName),
			ExclusiveStartKey: start,
		})
		if err != nil {
			return nil, fmt.Errorf("scan locations: %w", err)
		}

		var items []locationItem
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &items); err != nil {
			return nil, fmt.Errorf("unmarshal locations: %w", err)
		}
		for _, it := range items {
			out = append(out, it.location())
		}

		if len(page.LastEvaluatedKey) == 0 {
			break
		}
		start = page.LastEvaluatedKey
	}

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *LocationRepository) DeleteLocation(ctx context.Context, id string) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:           aws.String(r.tableName),
		Key:                 idKey(id),
		ConditionExpression: aws.String("attribute_exists(id)"),
	})
	var condErr *dynamodbtypes.ConditionalCheckFailedException
	if errors.As(err, &condErr) {
		return fmt.Errorf("%w: %s", climate.ErrLocationNotFound, id)
	}
	if err != nil {
		return fmt.Errorf("delete location %s: %w", id, err)
	}
	return nil
}
