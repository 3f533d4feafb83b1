package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"alexa-gemini-agent/internal/domain"
)

const (
	attrRequestID = "requestId"
	attrResponse  = "response"
	attrHistory   = "history"
	attrTTL       = "ttl"
)

// dynamodbAPI is the minimal DynamoDB interface required by Client.
// Defined here for testability.
type dynamodbAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// Client wraps a DynamoDB table holding one correlation record per
// requestId.
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

// now is overridable in expiry tests.
var now = time.Now

// GetResult performs a point lookup for a correlation record. A missing
// record and an expired record both return found=false; neither is an
// error, because callers poll for records that may not exist yet.
func (c *Client) GetResult(ctx context.Context, requestID string) (domain.CorrelationRecord, bool, error) {
	if strings.TrimSpace(requestID) == "" {
		return domain.CorrelationRecord{}, false, errors.New("repository: GetResult: request ID is required")
	}

	out, err := c.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(c.tableName),
		Key: map[string]types.AttributeValue{
			attrRequestID: &types.AttributeValueMemberS{Value: requestID},
		},
	})
	if err != nil {
		return domain.CorrelationRecord{}, false, fmt.Errorf("repository: GetResult get item: %w", err)
	}
	if out == nil || len(out.Item) == 0 {
		return domain.CorrelationRecord{}, false, nil
	}

	rec, err := itemToRecord(out.Item)
	if err != nil {
		return domain.CorrelationRecord{}, false, fmt.Errorf("repository: GetResult decode: %w", err)
	}
	// DynamoDB TTL reclamation is lazy; an expired item can still be
	// returned by GetItem and must be reported as absent.
	if rec.ExpiresAt > 0 && rec.ExpiresAt <= now().Unix() {
		return domain.CorrelationRecord{}, false, nil
	}
	return rec, true, nil
}

// PutResult writes the record as a single item so the response text and
// history become visible together. Rewrites of the same requestId replace
// the item (last writer wins on redelivery).
func (c *Client) PutResult(ctx context.Context, rec domain.CorrelationRecord) error {
	if strings.TrimSpace(rec.RequestID) == "" {
		return errors.New("repository: PutResult: request ID is required")
	}

	historyJSON, err := json.Marshal(rec.History)
	if err != nil {
		return fmt.Errorf("repository: PutResult marshal history: %w", err)
	}

	_, err = c.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(c.tableName),
		Item: map[string]types.AttributeValue{
			attrRequestID: &types.AttributeValueMemberS{Value: rec.RequestID},
			attrResponse:  &types.AttributeValueMemberS{Value: rec.ResponseText},
			attrHistory:   &types.AttributeValueMemberS{Value: string(historyJSON)},
			attrTTL:       &types.AttributeValueMemberN{Value: strconv.FormatInt(rec.ExpiresAt, 10)},
		},
	})
	if err != nil {
		return fmt.Errorf("repository: PutResult: %w", err)
	}
	return nil
}

// itemToRecord converts a DynamoDB attribute map to a CorrelationRecord.
// History and ttl are tolerated missing so records written by older
// revisions still read back.
func itemToRecord(item map[string]types.AttributeValue) (domain.CorrelationRecord, error) {
	requestID, err := strAttr(item, attrRequestID)
	if err != nil {
		return domain.CorrelationRecord{}, err
	}
	response, err := strAttr(item, attrResponse)
	if err != nil {
		return domain.CorrelationRecord{}, err
	}

	var history []domain.Turn
	if raw, ok := item[attrHistory]; ok {
		s, ok := raw.(*types.AttributeValueMemberS)
		if !ok {
			return domain.CorrelationRecord{}, fmt.Errorf("repository: attribute %q is not a string", attrHistory)
		}
		if s.Value != "" {
			if err := json.Unmarshal([]byte(s.Value), &history); err != nil {
				return domain.CorrelationRecord{}, fmt.Errorf("repository: unmarshal history: %w", err)
			}
		}
	}

	var expiresAt int64
	if _, ok := item[attrTTL]; ok {
		expiresAt, err = int64Attr(item, attrTTL)
		if err != nil {
			return domain.CorrelationRecord{}, err
		}
	}

	return domain.CorrelationRecord{
		RequestID:    requestID,
		ResponseText: response,
		History:      history,
		ExpiresAt:    expiresAt,
	}, nil
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

func int64Attr(item map[string]types.AttributeValue, key string) (int64, error) {
	v, ok := item[key]
	if !ok {
		return 0, fmt.Errorf("repository: missing attribute %q", key)
	}
	n, ok := v.(*types.AttributeValueMemberN)
	if !ok {
		return 0, fmt.Errorf("repository: attribute %q is not a number", key)
	}
	parsed, err := strconv.ParseInt(n.Value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("repository: parse attribute %q: %w", key, err)
	}
	return parsed, nil
}
