// Package orders is thin CRUD glue over the tenant's order partition. Every
// storage call goes through a client vended for the caller's tenant; the
// partition key is always the verified tenant id.
package orders

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"tvm/pkg/identity"
)

type Order struct {
	OrderID       string         `json:"orderId" dynamodbav:"orderId"`
	TenantID      string         `json:"tenantId" dynamodbav:"tenantId"`
	OrderName     string         `json:"orderName" dynamodbav:"orderName"`
	OrderProducts []OrderProduct `json:"orderProducts" dynamodbav:"orderProducts"`
}

type OrderProduct struct {
	ProductID string  `json:"productId" dynamodbav:"productId"`
	Price     float64 `json:"price" dynamodbav:"price"`
	Quantity  int     `json:"quantity" dynamodbav:"quantity"`
}

// DynamoAPI is the slice of the DynamoDB client the service uses; satisfied
// by *dynamodb.Client.
type DynamoAPI interface {
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// ClientProvider vends a tenant-scoped client per request.
type ClientProvider func(ctx context.Context, id identity.TenantIdentity) (DynamoAPI, error)

type Service struct {
	clients ClientProvider
	table   string
	log     *zap.SugaredLogger
}

func NewService(clients ClientProvider, table string, log *zap.SugaredLogger) *Service {
	return &Service{clients: clients, table: table, log: log}
}

func (s *Service) List(ctx context.Context, id identity.TenantIdentity) ([]Order, error) {
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
		return nil, fmt.Errorf("query orders: %w", err)
	}
	orders := []Order{}
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

func (s *Service) Get(ctx context.Context, id identity.TenantIdentity, orderID string) (*Order, error) {
	cli, err := s.clients(ctx, id)
	if err != nil {
		return nil, err
	}
	out, err := cli.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.table),
		KeyConditionExpression: aws.String("tenantId=:t_id AND orderId=:o_id"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":t_id": &types.AttributeValueMemberS{Value: id.TenantID},
			":o_id": &types.AttributeValueMemberS{Value: orderID},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("query order: %w", err)
	}
	if len(out.Items) == 0 {
		return nil, nil
	}
	var order Order
	if err := attributevalue.UnmarshalMap(out.Items[0], &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (s *Service) Create(ctx context.Context, id identity.TenantIdentity, name string, products []OrderProduct) (*Order, error) {
	order := Order{
		OrderID:       uuid.NewString(),
		TenantID:      id.TenantID,
		OrderName:     name,
		OrderProducts: products,
	}
	if err := s.put(ctx, id, order); err != nil {
		return nil, err
	}
	s.log.Infow("order created", "tenant", id.TenantID, "order", order.OrderID)
	return &order, nil
}

func (s *Service) Update(ctx context.Context, id identity.TenantIdentity, order Order) error {
	// The item key is (tenantId, orderId); rebinding tenantId is impossible.
	order.TenantID = id.TenantID
	return s.put(ctx, id, order)
}

func (s *Service) Delete(ctx context.Context, id identity.TenantIdentity, orderID string) error {
	cli, err := s.clients(ctx, id)
	if err != nil {
		return err
	}
	_, err = cli.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.table),
		Key: map[string]types.AttributeValue{
			"tenantId": &types.AttributeValueMemberS{Value: id.TenantID},
			"orderId":  &types.AttributeValueMemberS{Value: orderID},
		},
	})
	return err
}

func (s *Service) put(ctx context.Context, id identity.TenantIdentity, order Order) error {
	cli, err := s.clients(ctx, id)
	if err != nil {
		return err
	}
	item, err := attributevalue.MarshalMap(order)
	if err != nil {
		return err
	}
	_, err = cli.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item:      item,
	})
	return err
}
