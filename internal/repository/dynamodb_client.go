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

	"review-agent/internal/domain"
)

const (
	skPrefixTurn = "TURN#"
	skMeta       = "META#"
	ttlDuration  = 30 * 24 * time.Hour // 30-day TTL
)

// dynamodbAPI is the minimal DynamoDB interface required by Client.
// Defined here for testability.
type dynamodbAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	TransactWriteItems(ctx context.Context, in *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// ReadWriter defines the turn-archive operations consumed by the review
// service.
type ReadWriter interface {
	GetTurnCount(ctx context.Context, threadID string) (int, error)
	GetHistory(ctx context.Context, threadID string, limit int) ([]domain.Turn, error)
	SaveCompletedTurn(ctx context.Context, threadID, question, answer, runID string, turns int) error
}

// Client wraps a DynamoDB table that archives completed review turns. The
// remote assistant service stays the state of record for the conversation;
// this table only serves reporting and per-thread turn limits.
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

// threadPK returns the DynamoDB partition key for a thread.
func threadPK(threadID string) string {
	return "THREAD#" + threadID
}

// turnSK returns the sort key for a turn using the current UTC timestamp.
func turnSK(ts time.Time) string {
	return skPrefixTurn + ts.UTC().Format(time.RFC3339Nano)
}

// ttlValue returns a Unix timestamp 30 days in the future.
func ttlValue() int64 {
	return time.Now().Add(ttlDuration).Unix()
}

// GetHistory queries all TURN# items for a thread ordered chronologically.
func (c *Client) GetHistory(ctx context.Context, threadID string, limit int) ([]domain.Turn, error) {
	in := &dynamodb.QueryInput{
		TableName:              aws.String(c.tableName),
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :prefix)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":     &types.AttributeValueMemberS{Value: threadPK(threadID)},
			":prefix": &types.AttributeValueMemberS{Value: skPrefixTurn},
		},
		// Read newest first so LIMIT favors the most recent turns.
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(int32(limit)),
	}

	out, err := c.api.Query(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("repository: GetHistory query: %w", err)
	}

	turns := make([]domain.Turn, 0, len(out.Items))
	for _, item := range out.Items {
		turn, err := itemToTurn(item)
		if err != nil {
			return nil, fmt.Errorf("repository: GetHistory unmarshal: %w", err)
		}
		turns = append(turns, turn)
	}
	// Reverse to chronological order before returning.
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}

// GetTurnCount returns the persisted completed turn count for a thread.
func (c *Client) GetTurnCount(ctx context.Context, threadID string) (int, error) {
	out, err := c.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(c.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: threadPK(threadID)},
			"SK": &types.AttributeValueMemberS{Value: skMeta},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return 0, fmt.Errorf("repository: GetTurnCount get item: %w", err)
	}
	if out == nil || len(out.Item) == 0 {
		return 0, nil
	}

	turns, err := intAttr(out.Item, "turns")
	if err != nil {
		return 0, fmt.Errorf("repository: GetTurnCount decode turns: %w", err)
	}
	return turns, nil
}

// SaveTurn writes the completed turn and updated metadata in one transaction.
func (c *Client) SaveTurn(ctx context.Context, turn domain.Turn, meta domain.ThreadMeta) error {
	if turn.PK == "" || turn.SK == "" {
		return errors.New("repository: SaveTurn: turn PK and SK are required")
	}
	if meta.PK == "" || meta.SK == "" {
		return errors.New("repository: SaveTurn: meta PK and SK are required")
	}

	_, err := c.api.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{
				Put: &types.Put{
					TableName:           aws.String(c.tableName),
					Item:                turnItem(turn),
					ConditionExpression: aws.String("attribute_not_exists(PK) AND attribute_not_exists(SK)"),
				},
			},
			{
				Put: &types.Put{
					TableName: aws.String(c.tableName),
					Item:      metaItem(meta),
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("repository: SaveTurn: %w", err)
	}
	return nil
}

// SaveCompletedTurn persists the successful turn and updates metadata.
func (c *Client) SaveCompletedTurn(ctx context.Context, threadID, question, answer, runID string, turns int) error {
	turn := NewTurn(threadID, question, answer, runID, "complete")
	meta := NewThreadMeta(threadID, turns)
	if err := c.SaveTurn(ctx, turn, meta); err != nil {
		return fmt.Errorf("repository: SaveCompletedTurn: %w", err)
	}
	return nil
}

// NewTurn constructs a Turn with PK/SK/TTL set from threadID and current time.
func NewTurn(threadID, question, answer, runID, status string) domain.Turn {
	now := time.Now().UTC()
	return domain.Turn{
		PK:       threadPK(threadID),
		SK:       turnSK(now),
		ThreadID: threadID,
		Question: question,
		Answer:   answer,
		RunID:    runID,
		Status:   status,
		TTL:      ttlValue(),
	}
}

// NewThreadMeta constructs a ThreadMeta record.
func NewThreadMeta(threadID string, turns int) domain.ThreadMeta {
	return domain.ThreadMeta{
		PK:           threadPK(threadID),
		SK:           skMeta,
		ThreadID:     threadID,
		LastActivity: time.Now().UTC().Format(time.RFC3339),
		Turns:        turns,
		TTL:          ttlValue(),
	}
}

// itemToTurn converts a DynamoDB attribute map to a Turn.
func itemToTurn(item map[string]types.AttributeValue) (domain.Turn, error) {
	pk, err := strAttr(item, "PK")
	if err != nil {
		return domain.Turn{}, err
	}
	sk, err := strAttr(item, "SK")
	if err != nil {
		return domain.Turn{}, err
	}
	question, err := strAttr(item, "question")
	if err != nil {
		return domain.Turn{}, err
	}
	answer, _ := strAttr(item, "answer") // allow empty
	runID, _ := strAttr(item, "runId")   // allow empty
	status, _ := strAttr(item, "status") // allow empty

	return domain.Turn{
		PK:       pk,
		SK:       sk,
		Question: question,
		Answer:   answer,
		RunID:    runID,
		Status:   status,
	}, nil
}

func turnItem(turn domain.Turn) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK":       &types.AttributeValueMemberS{Value: turn.PK},
		"SK":       &types.AttributeValueMemberS{Value: turn.SK},
		"threadId": &types.AttributeValueMemberS{Value: turn.ThreadID},
		"question": &types.AttributeValueMemberS{Value: turn.Question},
		"answer":   &types.AttributeValueMemberS{Value: turn.Answer},
		"runId":    &types.AttributeValueMemberS{Value: turn.RunID},
		"status":   &types.AttributeValueMemberS{Value: turn.Status},
		"ttl":      &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", turn.TTL)},
	}
}

func metaItem(meta domain.ThreadMeta) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK":           &types.AttributeValueMemberS{Value: meta.PK},
		"SK":           &types.AttributeValueMemberS{Value: meta.SK},
		"threadId":     &types.AttributeValueMemberS{Value: meta.ThreadID},
		"lastActivity": &types.AttributeValueMemberS{Value: meta.LastActivity},
		"turns":        &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", meta.Turns)},
		"ttl":          &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", meta.TTL)},
	}
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

func intAttr(item map[string]types.AttributeValue, key string) (int, error) {
	v, ok := item[key]
	if !ok {
		return 0, fmt.Errorf("repository: missing attribute %q", key)
	}
	n, ok := v.(*types.AttributeValueMemberN)
	if !ok {
		return 0, fmt.Errorf("repository: attribute %q is not a number", key)
	}
	parsed, err := strconv.Atoi(n.Value)
	if err != nil {
		return 0, fmt.Errorf("repository: parse attribute %q: %w", key, err)
	}
	return parsed, nil
}
