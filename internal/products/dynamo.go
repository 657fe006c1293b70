package products

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"

	"tvm/pkg/identity"
)

// DynamoAPI is the client slice the store uses; satisfied by *dynamodb.Client.
type DynamoAPI interface {
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// ClientProvider vends a tenant-scoped client per request.
type ClientProvider func(ctx context.Context, id identity.TenantIdentity) (DynamoAPI, error)

type DynamoStore struct {
	clients ClientProvider
	table   string
	log     *zap.SugaredLogger
}

func NewDynamoStore(clients ClientProvider, table string, log *zap.SugaredLogger) *DynamoStore {
	return &DynamoStore{clients: clients, table: table, log: log}
}

func (s *DynamoStore) List(ctx context.Context, id identity.TenantIdentity) ([]Product, error) {
	cli, err := s.clients(ctx, id)
	if err != nil {
		return nil, err
	}
	out, err := cli.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.table),
		KeyConditionExpression: aws.String("tenantId=:t_id"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":t_id": &types.AttributeValueMemberS{Value: id.TenantID},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	products := []Product{}
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &products); err != nil {
		return nil, err
	}
	return products, nil
}

func (s *DynamoStore) Get(ctx context.Context, id identity.TenantIdentity, productID string) (*Product, error) {
	cli, err := s.clients(ctx, id)
	if err != nil {
		return nil, err
	}
	out, err := cli.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.table),
		KeyConditionExpression: aws.String("tenantId=:t_id AND productId=:p_id"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":t_id": &types.AttributeValueMemberS{Value: id.TenantID},
			":p_id": &types.AttributeValueMemberS{Value: productID},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("query product: %w", err)
	}
	if len(out.Items) == 0 {
		return nil, nil
	}
	var p Product
	if err := attributevalue.UnmarshalMap(out.Items[0], &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *DynamoStore) Put(ctx context.Context, id identity.TenantIdentity, p Product) error {
	cli, err := s.clients(ctx, id)
	if err != nil {
		return err
	}
	p.TenantID = id.TenantID
	item, err := attributevalue.MarshalMap(p)
	if err != nil {
		return err
	}
	_, err = cli.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item:      item,
	})
	return err
}

func (s *DynamoStore) Delete(ctx context.Context, id identity.TenantIdentity, productID string) error {
	cli, err := s.clients(ctx, id)
	if err != nil {
		return err
	}
	_, err = cli.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.table),
		Key: map[string]types.AttributeValue{
			"tenantId":  &types.AttributeValueMemberS{Value: id.TenantID},
			"productId": &types.AttributeValueMemberS{Value: productID},
		},
	})
	return err
}
