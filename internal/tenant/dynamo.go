package tenant

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

type dynamoAPI interface {
	GetItem(context.Context, *dynamodb.GetItemInput, ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(context.Context, *dynamodb.PutItemInput, ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(context.Context, *dynamodb.UpdateItemInput, ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(context.Context, *dynamodb.DeleteItemInput, ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

type dynamoRecord struct {
	ID              string `dynamodbav:"cnpj"`
	AccountID       string `dynamodbav:"clinica_cid"`
	APIKey          string `dynamodbav:"api_key"`
	LabelID         *int64 `dynamodbav:"id_rotulo,omitempty"`
	LocationID      *int64 `dynamodbav:"id_local,omitempty"`
	PatientOriginID *int64 `dynamodbav:"id_origem_paciente,omitempty"`
	CreatedAt       string `dynamodbav:"created_at"`
	UpdatedAt       string `dynamodbav:"updated_at"`
}

func (r dynamoRecord) tenant() *Tenant {
	t := &Tenant{
		ID:              r.ID,
		AccountID:       r.AccountID,
		APIKey:          r.APIKey,
		LabelID:         r.LabelID,
		LocationID:      r.LocationID,
		PatientOriginID: r.PatientOriginID,
	}
	t.CreatedAt, _ = time.Parse(time.RFC3339Nano, r.CreatedAt)
	t.UpdatedAt, _ = time.Parse(time.RFC3339Nano, r.UpdatedAt)
	return t
}

// DynamoStore keeps tenants in a DynamoDB table keyed by cnpj.
type DynamoStore struct {
	client    dynamoAPI
	tableName string
}

// NewDynamoStore builds a store on the provided DynamoDB client.
func NewDynamoStore(client dynamoAPI, tableName string) *DynamoStore {
	if client == nil {
		panic("tenant: dynamodb client cannot be nil")
	}
	if tableName == "" {
		panic("tenant: table name cannot be empty")
	}
	return &DynamoStore{client: client, tableName: tableName}
}

func (s *DynamoStore) key(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"cnpj": &types.AttributeValueMemberS{Value: id},
	}
}

func (s *DynamoStore) Get(ctx context.Context, id string) (*Tenant, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.tableName),
		Key:            s.key(id),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("tenant: get: %w", err)
	}
	if out.Item == nil {
		return nil, ErrNotFound
	}
	var rec dynamoRecord
	if err := attributevalue.UnmarshalMap(out.Item, &rec); err != nil {
		return nil, fmt.Errorf("tenant: decode %s: %w", id, err)
	}
	return rec.tenant(), nil
}

func (s *DynamoStore) Insert(ctx context.Context, t *Tenant) (*Tenant, error) {
	now := time.Now().UTC()
	stamp := now.Format(time.RFC3339Nano)
	rec := dynamoRecord{
		ID:              t.ID,
		AccountID:       t.AccountID,
		APIKey:          t.APIKey,
		LabelID:         t.LabelID,
		LocationID:      t.LocationID,
		PatientOriginID: t.PatientOriginID,
		CreatedAt:       stamp,
		UpdatedAt:       stamp,
	}
	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return nil, fmt.Errorf("tenant: encode: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(cnpj)"),
	})
	if err != nil {
		var cond *types.ConditionalCheckFailedException
		if errors.As(err, &cond) {
			return nil, fmt.Errorf("%w: %s", ErrAlreadyExists, t.ID)
		}
		return nil, fmt.Errorf("tenant: insert: %w", err)
	}
	return rec.tenant(), nil
}

func (s *DynamoStore) Update(ctx context.Context, id string, upd Update) (*Tenant, error) {
	expr := "SET #updated = :updated"
	names := map[string]string{"#updated": "updated_at"}
	values := map[string]types.AttributeValue{
		":updated": &types.AttributeValueMemberS{Value: time.Now().UTC().Format(time.RFC3339Nano)},
	}
	setString := func(attr string, v *string) {
		if v == nil {
			return
		}
		names["#"+attr] = attr
		values[":"+attr] = &types.AttributeValueMemberS{Value: *v}
		expr += fmt.Sprintf(", #%s = :%s", attr, attr)
	}
	setNumber := func(attr string, v *int64) {
		if v == nil {
			return
		}
		names["#"+attr] = attr
		values[":"+attr] = &types.AttributeValueMemberN{Value: strconv.FormatInt(*v, 10)}
		expr += fmt.Sprintf(", #%s = :%s", attr, attr)
	}
	setString("clinica_cid", upd.AccountID)
	setString("api_key", upd.APIKey)
	setNumber("id_rotulo", upd.LabelID)
	setNumber("id_local", upd.LocationID)
	setNumber("id_origem_paciente", upd.PatientOriginID)

	out, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(s.tableName),
		Key:                       s.key(id),
		UpdateExpression:          aws.String(expr),
		ConditionExpression:       aws.String("attribute_exists(cnpj)"),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
		ReturnValues:              types.ReturnValueAllNew,
	})
	if err != nil {
		var cond *types.ConditionalCheckFailedException
		if errors.As(err, &cond) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("tenant: update: %w", err)
	}
	var rec dynamoRecord
	if err := attributevalue.UnmarshalMap(out.Attributes, &rec); err != nil {
		return nil, fmt.Errorf("tenant: decode %s: %w", id, err)
	}
	return rec.tenant(), nil
}

func (s *DynamoStore) Delete(ctx context.Context, id string) error {
	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:           aws.String(s.tableName),
		Key:                 s.key(id),
		ConditionExpression: aws.String("attribute_exists(cnpj)"),
	})
	if err != nil {
		var cond *types.ConditionalCheckFailedException
		if errors.As(err, &cond) {
			return ErrNotFound
		}
		return fmt.Errorf("tenant: delete: %w", err)
	}
	return nil
}
