package s3

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/hupe1980/stepwise/blobstore"
)

// DDBClient is the subset of the DynamoDB API the commit log uses.
type DDBClient interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
}

// DDBCommitLog implements blobstore.CommitLog with DynamoDB conditional
// writes, so that nodes running in separate processes agree on which steps
// are complete.
//
// Table schema:
//   - Partition key: commit_key (string)
//
// Create table with:
//
//	aws dynamodb create-table \
//	  --table-name stepwise-commits \
//	  --attribute-definitions AttributeName=commit_key,AttributeType=S \
//	  --key-schema AttributeName=commit_key,KeyType=HASH \
//	  --billing-mode PAY_PER_REQUEST
type DDBCommitLog struct {
	client    DDBClient
	tableName string
	now       func() time.Time
}

var _ blobstore.CommitLog = (*DDBCommitLog)(nil)

// NewDDBCommitLog creates a commit log on tableName.
func NewDDBCommitLog(client DDBClient, tableName string) *DDBCommitLog {
	return &DDBCommitLog{client: client, tableName: tableName, now: time.Now}
}

// DialDDBCommitLog loads the default AWS configuration and creates a
// commit log on tableName.
func DialDDBCommitLog(ctx context.Context, tableName, region string) (*DDBCommitLog, error) {
	var loadOpts []func(*config.LoadOptions) error
	if region != "" {
		loadOpts = append(loadOpts, config.WithRegion(region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("dynamodb: load aws config: %w", err)
	}
	return NewDDBCommitLog(dynamodb.NewFromConfig(cfg), tableName), nil
}

// Commit writes key unless it exists.
func (l *DDBCommitLog) Commit(ctx context.Context, key string) error {
	_, err := l.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(l.tableName),
		Item: map[string]types.AttributeValue{
			"commit_key":   &types.AttributeValueMemberS{Value: key},
			"committed_at": &types.AttributeValueMemberN{Value: strconv.FormatInt(l.now().UnixMilli(), 10)},
		},
		ConditionExpression: aws.String("attribute_not_exists(commit_key)"),
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return fmt.Errorf("%w: %s", blobstore.ErrAlreadyCommitted, key)
		}
		return fmt.Errorf("commit %s: %w", key, err)
	}
	return nil
}

// Committed performs a strongly consistent lookup of key.
func (l *DDBCommitLog) Committed(ctx context.Context, key string) (bool, error) {
	resp, err := l.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(l.tableName),
		Key: map[string]types.AttributeValue{
			"commit_key": &types.AttributeValueMemberS{Value: key},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return false, fmt.Errorf("lookup %s: %w", key, err)
	}
	return len(resp.Item) > 0, nil
}
