package dynamo

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
)

// RevocationRepo is the token denylist. Items expire through DynamoDB TTL on
// expires_at; reads also compare against now because TTL deletion lags.
type RevocationRepo struct {
	client    *dynamodb.Client
	tableName string
	now       func() time.Time
}

func NewRevocationRepo(client *dynamodb.Client, tableName string) *RevocationRepo {
	return &RevocationRepo{client: client, tableName: tableName, now: time.Now}
}

type revokedToken struct {
	JTI       string    `dynamodbav:"jti"`
	ExpiresAt time.Time `dynamodbav:"expires_at,unixtime"`
}

func (r *RevocationRepo) Revoke(ctx context.Context, jti string, expiresAt time.Time) error {
	item, err := attributevalue.MarshalMap(revokedToken{JTI: jti, ExpiresAt: expiresAt})
	if err != nil {
		return fmt.Errorf("marshal revoked token: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	return err
}

// RevokeOnce writes the denylist entry only if no live entry exists for jti
// and reports whether this call wrote it. Entries past expires_at but not
// yet removed by TTL count as absent.
func (r *RevocationRepo) RevokeOnce(ctx context.Context, jti string, expiresAt time.Time) (bool, error) {
	item, err := attributevalue.MarshalMap(revokedToken{JTI: jti, ExpiresAt: expiresAt})
	if err != nil {
		return false, fmt.Errorf("marshal revoked token: %w", err)
	}
	b := newExprBuilder()
	if err := whenNotRevoked(b, r.now()); err != nil {
		return false, err
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                 aws.String(r.tableName),
		Item:                      item,
		ConditionExpression:       b.condition(),
		ExpressionAttributeNames:  b.names,
		ExpressionAttributeValues: b.valuesOrNil(),
	})
	if isConditionFailure(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func whenNotRevoked(b *exprBuilder, now time.Time) error {
	nowVal, err := b.value(attributevalue.UnixTime(now))
	if err != nil {
		return err
	}
	b.when("(attribute_not_exists(" + b.path(fieldJTI) + ") OR " + b.path(fieldExpiresAt) + " <= " + nowVal + ")")
	return nil
}

func (r *RevocationRepo) IsRevoked(ctx context.Context, jti string) (bool, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey(fieldJTI, jti),
	})
	if err != nil {
		return false, err
	}
	if out.Item == nil {
		return false, nil
	}
	var rt revokedToken
	if err := attributevalue.UnmarshalMap(out.Item, &rt); err != nil {
		return false, fmt.Errorf("unmarshal revoked token: %w", err)
	}
	return r.now().Before(rt.ExpiresAt), nil
}
