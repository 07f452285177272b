package dynamo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/profilehub/profiles"
)

const DefaultTable = "Profiles"

type DynamoDBAPI interface {
	GetItem(ctx context.Context, input *dynamodb.GetItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, input *dynamodb.PutItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// ProfileStore keeps one item per profile keyed by UserId.
type ProfileStore struct {
	Client DynamoDBAPI
	Table  string
}

var _ profiles.ProfileStore = (*ProfileStore)(nil)

func NewProfileStore(cfg aws.Config, table string) *ProfileStore {
	return &ProfileStore{
		Client: dynamodb.NewFromConfig(cfg),
		Table:  table,
	}
}

func (s *ProfileStore) ById(ctx context.Context, id profiles.UserId) (profiles.Profile, error) {
	if id == "" {
		return profiles.Profile{}, errors.New("id cannot be empty")
	}
	out, err := s.Client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.Table),
		Key:            map[string]types.AttributeValue{"UserId": &types.AttributeValueMemberS{Value: string(id)}},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return profiles.Profile{}, fmt.Errorf("get item: %w", err)
	}
	if len(out.Item) == 0 {
		return profiles.Profile{}, profiles.ErrProfileNotFound
	}
	return profileFromItem(out.Item)
}

func (s *ProfileStore) Upsert(ctx context.Context, profile profiles.Profile) (profiles.Profile, error) {
	if profile.Id == "" {
		return profiles.Profile{}, errors.New("id cannot be empty")
	}
	if profile.UpdatedAt.IsZero() {
		profile.UpdatedAt = time.Now().UTC()
	}
	_, err := s.Client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.Table),
		Item:      profileItem(profile),
	})
	if err != nil {
		return profiles.Profile{}, fmt.Errorf("put item: %w", err)
	}
	return profile, nil
}

func profileItem(p profiles.Profile) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"UserId":    &types.AttributeValueMemberS{Value: string(p.Id)},
		"Username":  &types.AttributeValueMemberS{Value: p.Username},
		"Website":   &types.AttributeValueMemberS{Value: p.Website},
		"AvatarUrl": &types.AttributeValueMemberS{Value: p.AvatarUrl},
		"UpdatedAt": &types.AttributeValueMemberS{Value: p.UpdatedAt.Format(time.RFC3339Nano)},
	}
}

func profileFromItem(item map[string]types.AttributeValue) (profiles.Profile, error) {
	str := func(name string) string {
		if v, ok := item[name].(*types.AttributeValueMemberS); ok {
			return v.Value
		}
		return ""
	}

	profile := profiles.Profile{
		Id:        profiles.UserId(str("UserId")),
		Username:  str("Username"),
		Website:   str("Website"),
		AvatarUrl: str("AvatarUrl"),
	}
	if updatedAt := str("UpdatedAt"); updatedAt != "" {
		t, err := time.Parse(time.RFC3339Nano, updatedAt)
		if err != nil {
			return profiles.Profile{}, fmt.Errorf("parse UpdatedAt: %w", err)
		}
		profile.UpdatedAt = t
	}
	return profile, nil
}
