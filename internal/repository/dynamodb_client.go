package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"message-sweeper/internal/domain"
)

const (
	pkPrefixRoom = "ROOM#"
	skPrefixMsg  = "MSG#"

	attrDestructionTime = "destructionTime"

	// MaxTransactItems is the DynamoDB limit on actions in one TransactWriteItems call.
	MaxTransactItems = 100
)

// dynamodbAPI is the minimal DynamoDB interface required by Client.
// Defined here for testability.
type dynamodbAPI interface {
	Scan(ctx context.Context, in *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	TransactWriteItems(ctx context.Context, in *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// Client wraps the DynamoDB table holding chat messages for every room.
type Client struct {
	api       dynamodbAPI
	tableName string
}

// New creates a new repository Client.
func New(api dynamodbAPI, tableName string) (*Client, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	return &Client{api: api, tableName: tableName}, nil
}

// roomPK returns the partition key for a chat room.
func roomPK(roomID string) string {
	return pkPrefixRoom + roomID
}

// msgSK returns the sort key for a message within its room.
func msgSK(messageID string) string {
	return skPrefixMsg + messageID
}

// epochMillis encodes a timestamp the way destructionTime is stored.
func epochMillis(ts time.Time) string {
	return strconv.FormatInt(ts.UnixMilli(), 10)
}

// FindExpired scans every room for messages whose destructionTime is at or
// before cutoff. Items without destructionTime never match the filter. Reads
// are strongly consistent so messages written before cutoff are not missed.
func (c *Client) FindExpired(ctx context.Context, cutoff time.Time) ([]domain.MessageRef, error) {
	in := &dynamodb.ScanInput{
		TableName:            aws.String(c.tableName),
		FilterExpression:     aws.String("begins_with(SK, :msg) AND #dt <= :now"),
		ProjectionExpression: aws.String("PK, SK"),
		ConsistentRead:       aws.Bool(true),
		ExpressionAttributeNames: map[string]string{
			"#dt": attrDestructionTime,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":msg": &types.AttributeValueMemberS{Value: skPrefixMsg},
			":now": &types.AttributeValueMemberN{Value: epochMillis(cutoff)},
		},
	}

	var refs []domain.MessageRef
	pages := dynamodb.NewScanPaginator(c.api, in)
	for pages.HasMorePages() {
		out, err := pages.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("repository: FindExpired scan: %w", err)
		}
		for _, item := range out.Items {
			ref, err := itemToRef(item)
			if err != nil {
				return nil, fmt.Errorf("repository: FindExpired unmarshal: %w", err)
			}
			refs = append(refs, ref)
		}
	}
	return refs, nil
}

// DeleteBatch deletes all refs in a single transaction: either every
// message is removed or none are.
func (c *Client) DeleteBatch(ctx context.Context, refs []domain.MessageRef) error {
	if len(refs) == 0 {
		return nil
	}
	if len(refs) > MaxTransactItems {
		return fmt.Errorf("repository: DeleteBatch: %d items exceeds transaction limit of %d", len(refs), MaxTransactItems)
	}

	items := make([]types.TransactWriteItem, 0, len(refs))
	for _, ref := range refs {
		if ref.RoomID == "" || ref.MessageID == "" {
			return errors.New("repository: DeleteBatch: room and message IDs are required")
		}
		items = append(items, types.TransactWriteItem{
			Delete: &types.Delete{
				TableName: aws.String(c.tableName),
				Key: map[string]types.AttributeValue{
					"PK": &types.AttributeValueMemberS{Value: roomPK(ref.RoomID)},
					"SK": &types.AttributeValueMemberS{Value: msgSK(ref.MessageID)},
				},
			},
		})
	}

	_, err := c.api.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: items,
	})
	if err != nil {
		return fmt.Errorf("repository: DeleteBatch: %w", err)
	}
	return nil
}

// itemToRef converts a projected DynamoDB key map to a MessageRef.
func itemToRef(item map[string]types.AttributeValue) (domain.MessageRef, error) {
	pk, err := strAttr(item, "PK")
	if err != nil {
		return domain.MessageRef{}, err
	}
	sk, err := strAttr(item, "SK")
	if err != nil {
		return domain.MessageRef{}, err
	}
	roomID, ok := strings.CutPrefix(pk, pkPrefixRoom)
	if !ok || roomID == "" {
		return domain.MessageRef{}, fmt.Errorf("repository: unexpected partition key %q", pk)
	}
	msgID, ok := strings.CutPrefix(sk, skPrefixMsg)
	if !ok || msgID == "" {
		return domain.MessageRef{}, fmt.Errorf("repository: unexpected sort key %q", sk)
	}
	return domain.MessageRef{RoomID: roomID, MessageID: msgID}, nil
}

func strAttr(item map[string]types.AttributeValue, key string) (string, error) {
	v, ok := item[key]
	if !ok {
		return "", fmt.Errorf("repository: missing attribute %q", key)
	}
	s, ok := v.(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("repository: attribute %q is not a string", key)
	}
	return s.Value, nil
}
