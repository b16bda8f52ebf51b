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

	"keeper-bot/internal/domain"
)

const offsetMetaKey = "update_offset"

// dynamodbAPI is the minimal DynamoDB interface required by Client.
// Defined here for testability.
type dynamodbAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// Tables names the four DynamoDB tables the bot uses.
type Tables struct {
	UserData     string
	Meta         string
	Messages     string
	KeywordIndex string
}

// Client wraps the DynamoDB tables holding all bot state.
type Client struct {
	api    dynamodbAPI
	tables Tables
}

// New creates a new repository Client.
func New(api dynamodbAPI, tables Tables) (*Client, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	for _, name := range []string{tables.UserData, tables.Meta, tables.Messages, tables.KeywordIndex} {
		if strings.TrimSpace(name) == "" {
			return nil, errors.New("repository: all table names must be set")
		}
	}
	return &Client{api: api, tables: tables}, nil
}

// userCreatedSK builds the keyword-index sort key. The zero-padded timestamp
// keeps lexicographic order equal to chronological order within a user.
func userCreatedSK(userID string, createdAt int64) string {
	return fmt.Sprintf("%s#%020d", userID, createdAt)
}

// PutUserValue writes or overwrites a key/value entry. Last write wins.
func (c *Client) PutUserValue(ctx context.Context, userID, key, value string) error {
	if userID == "" || key == "" {
		return errors.New("repository: PutUserValue: user id and key are required")
	}
	entry := domain.KVEntry{
		UserID:    userID,
		Key:       key,
		Value:     value,
		CreatedAt: time.Now().Unix(),
	}
	_, err := c.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(c.tables.UserData),
		Item: map[string]types.AttributeValue{
			"user_id":    &types.AttributeValueMemberS{Value: entry.UserID},
			"item_key":   &types.AttributeValueMemberS{Value: entry.Key},
			"value":      &types.AttributeValueMemberS{Value: entry.Value},
			"created_at": &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", entry.CreatedAt)},
		},
	})
	if err != nil {
		return fmt.Errorf("repository: PutUserValue: %w", err)
	}
	return nil
}

// GetUserValue returns the stored value for (userID, key). Absence is a
// normal result, reported via the bool.
func (c *Client) GetUserValue(ctx context.Context, userID, key string) (string, bool, error) {
	out, err := c.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(c.tables.UserData),
		Key: map[string]types.AttributeValue{
			"user_id":  &types.AttributeValueMemberS{Value: userID},
			"item_key": &types.AttributeValueMemberS{Value: key},
		},
	})
	if err != nil {
		return "", false, fmt.Errorf("repository: GetUserValue: %w", err)
	}
	if out == nil || len(out.Item) == 0 {
		return "", false, nil
	}
	value, err := strAttr(out.Item, "value")
	if err != nil {
		return "", false, fmt.Errorf("repository: GetUserValue: %w", err)
	}
	return value, true, nil
}

// ListUserKeys returns every saved key for a user in sort-key order.
func (c *Client) ListUserKeys(ctx context.Context, userID string) ([]string, error) {
	out, err := c.api.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(c.tables.UserData),
		KeyConditionExpression: aws.String("user_id = :uid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":uid": &types.AttributeValueMemberS{Value: userID},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("repository: ListUserKeys query: %w", err)
	}
	keys := make([]string, 0, len(out.Items))
	for _, item := range out.Items {
		key, err := strAttr(item, "item_key")
		if err != nil {
			return nil, fmt.Errorf("repository: ListUserKeys unmarshal: %w", err)
		}
		keys = append(keys, key)
	}
	return keys, nil
}

// GetUpdateOffset returns the highest processed update id, or 0 when the
// cursor record does not exist yet.
func (c *Client) GetUpdateOffset(ctx context.Context) (int64, error) {
	out, err := c.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(c.tables.Meta),
		Key: map[string]types.AttributeValue{
			"meta_key": &types.AttributeValueMemberS{Value: offsetMetaKey},
		},
	})
	if err != nil {
		return 0, fmt.Errorf("repository: GetUpdateOffset: %w", err)
	}
	if out == nil || len(out.Item) == 0 {
		return 0, nil
	}
	raw, err := strAttr(out.Item, "value")
	if err != nil {
		return 0, fmt.Errorf("repository: GetUpdateOffset: %w", err)
	}
	offset, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("repository: GetUpdateOffset parse cursor: %w", err)
	}
	return offset, nil
}

// SetUpdateOffset persists the polling cursor.
func (c *Client) SetUpdateOffset(ctx context.Context, offset int64) error {
	_, err := c.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(c.tables.Meta),
		Item: map[string]types.AttributeValue{
			"meta_key": &types.AttributeValueMemberS{Value: offsetMetaKey},
			"value":    &types.AttributeValueMemberS{Value: strconv.FormatInt(offset, 10)},
		},
	})
	if err != nil {
		return fmt.Errorf("repository: SetUpdateOffset: %w", err)
	}
	return nil
}

// PutMessage persists one inbound message record.
func (c *Client) PutMessage(ctx context.Context, msg domain.MessageRecord) error {
	if msg.UserID == "" || msg.MessageID == "" {
		return errors.New("repository: PutMessage: user id and message id are required")
	}
	item := map[string]types.AttributeValue{
		"user_id":      &types.AttributeValueMemberS{Value: msg.UserID},
		"created_at":   &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", msg.CreatedAt)},
		"message_id":   &types.AttributeValueMemberS{Value: msg.MessageID},
		"update_id":    &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", msg.UpdateID)},
		"message_type": &types.AttributeValueMemberS{Value: msg.MessageType},
		"text":         &types.AttributeValueMemberS{Value: msg.Text},
	}
	if msg.Raw != "" {
		item["raw"] = &types.AttributeValueMemberS{Value: msg.Raw}
	}
	_, err := c.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(c.tables.Messages),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("repository: PutMessage: %w", err)
	}
	return nil
}

// PutKeywordEntries writes the keyword-index entries for one message. Each
// entry is written independently; failures are collected into one error so
// the caller can log and continue. The message stays visible either way.
func (c *Client) PutKeywordEntries(ctx context.Context, entries []domain.KeywordEntry) error {
	var failed []error
	for _, e := range entries {
		_, err := c.api.PutItem(ctx, &dynamodb.PutItemInput{
			TableName: aws.String(c.tables.KeywordIndex),
			Item: map[string]types.AttributeValue{
				"keyword":      &types.AttributeValueMemberS{Value: e.Keyword},
				"user_created": &types.AttributeValueMemberS{Value: e.UserCreated},
				"message_id":   &types.AttributeValueMemberS{Value: e.MessageID},
				"user_id":      &types.AttributeValueMemberS{Value: e.UserID},
				"created_at":   &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", e.CreatedAt)},
				"snippet":      &types.AttributeValueMemberS{Value: e.Snippet},
			},
		})
		if err != nil {
			failed = append(failed, fmt.Errorf("repository: PutKeywordEntries keyword %q: %w", e.Keyword, err))
		}
	}
	return errors.Join(failed...)
}

// RecentMessages returns up to limit of the user's messages, newest first.
func (c *Client) RecentMessages(ctx context.Context, userID string, limit int) ([]domain.MessageRecord, error) {
	out, err := c.api.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(c.tables.Messages),
		KeyConditionExpression: aws.String("user_id = :uid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":uid": &types.AttributeValueMemberS{Value: userID},
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(int32(limit)),
	})
	if err != nil {
		return nil, fmt.Errorf("repository: RecentMessages query: %w", err)
	}
	return itemsToMessages(out.Items, "RecentMessages")
}

// AllMessages returns every message for a user in chronological order, as far
// as a single query page reaches.
func (c *Client) AllMessages(ctx context.Context, userID string) ([]domain.MessageRecord, error) {
	out, err := c.api.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(c.tables.Messages),
		KeyConditionExpression: aws.String("user_id = :uid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":uid": &types.AttributeValueMemberS{Value: userID},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("repository: AllMessages query: %w", err)
	}
	return itemsToMessages(out.Items, "AllMessages")
}

// MessageByID finds one of the user's messages by its message id. Absence is
// reported via the bool.
func (c *Client) MessageByID(ctx context.Context, userID, messageID string) (domain.MessageRecord, bool, error) {
	out, err := c.api.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(c.tables.Messages),
		KeyConditionExpression: aws.String("user_id = :uid"),
		FilterExpression:       aws.String("message_id = :mid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":uid": &types.AttributeValueMemberS{Value: userID},
			":mid": &types.AttributeValueMemberS{Value: messageID},
		},
	})
	if err != nil {
		return domain.MessageRecord{}, false, fmt.Errorf("repository: MessageByID query: %w", err)
	}
	if len(out.Items) == 0 {
		return domain.MessageRecord{}, false, nil
	}
	msg, err := itemToMessage(out.Items[0])
	if err != nil {
		return domain.MessageRecord{}, false, fmt.Errorf("repository: MessageByID unmarshal: %w", err)
	}
	return msg, true, nil
}

// SearchKeyword returns up to limit index entries for a keyword, restricted
// to the requesting user via the sort-key prefix, newest first.
func (c *Client) SearchKeyword(ctx context.Context, keyword, userID string, limit int) ([]domain.KeywordEntry, error) {
	out, err := c.api.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(c.tables.KeywordIndex),
		KeyConditionExpression: aws.String("keyword = :kw AND begins_with(user_created, :prefix)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":kw":     &types.AttributeValueMemberS{Value: keyword},
			":prefix": &types.AttributeValueMemberS{Value: userID + "#"},
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(int32(limit)),
	})
	if err != nil {
		return nil, fmt.Errorf("repository: SearchKeyword query: %w", err)
	}
	entries := make([]domain.KeywordEntry, 0, len(out.Items))
	for _, item := range out.Items {
		entry, err := itemToKeywordEntry(item)
		if err != nil {
			return nil, fmt.Errorf("repository: SearchKeyword unmarshal: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// NewMessageRecord constructs a MessageRecord keyed on the current time.
func NewMessageRecord(userID string, updateID, messageID int64, text, raw string) domain.MessageRecord {
	return domain.MessageRecord{
		UserID:      userID,
		CreatedAt:   time.Now().Unix(),
		MessageID:   fmt.Sprintf("%s:%d", userID, messageID),
		UpdateID:    updateID,
		MessageType: "text",
		Text:        text,
		Raw:         raw,
	}
}

// NewKeywordEntry builds one index entry for a message keyword.
func NewKeywordEntry(keyword string, msg domain.MessageRecord, snippet string) domain.KeywordEntry {
	return domain.KeywordEntry{
		Keyword:     keyword,
		UserCreated: userCreatedSK(msg.UserID, msg.CreatedAt),
		MessageID:   msg.MessageID,
		UserID:      msg.UserID,
		CreatedAt:   msg.CreatedAt,
		Snippet:     snippet,
	}
}

func itemsToMessages(items []map[string]types.AttributeValue, op string) ([]domain.MessageRecord, error) {
	msgs := make([]domain.MessageRecord, 0, len(items))
	for _, item := range items {
		msg, err := itemToMessage(item)
		if err != nil {
			return nil, fmt.Errorf("repository: %s unmarshal: %w", op, err)
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

func itemToMessage(item map[string]types.AttributeValue) (domain.MessageRecord, error) {
	userID, err := strAttr(item, "user_id")
	if err != nil {
		return domain.MessageRecord{}, err
	}
	createdAt, err := int64Attr(item, "created_at")
	if err != nil {
		return domain.MessageRecord{}, err
	}
	messageID, err := strAttr(item, "message_id")
	if err != nil {
		return domain.MessageRecord{}, err
	}
	text, _ := strAttr(item, "text")                // allow empty
	messageType, _ := strAttr(item, "message_type") // allow empty
	raw, _ := strAttr(item, "raw")                  // optional
	updateID, _ := int64Attr(item, "update_id")     // optional

	return domain.MessageRecord{
		UserID:      userID,
		CreatedAt:   createdAt,
		MessageID:   messageID,
		UpdateID:    updateID,
		MessageType: messageType,
		Text:        text,
		Raw:         raw,
	}, nil
}

func itemToKeywordEntry(item map[string]types.AttributeValue) (domain.KeywordEntry, error) {
	keyword, err := strAttr(item, "keyword")
	if err != nil {
		return domain.KeywordEntry{}, err
	}
	userCreated, err := strAttr(item, "user_created")
	if err != nil {
		return domain.KeywordEntry{}, err
	}
	messageID, err := strAttr(item, "message_id")
	if err != nil {
		return domain.KeywordEntry{}, err
	}
	userID, err := strAttr(item, "user_id")
	if err != nil {
		return domain.KeywordEntry{}, err
	}
	createdAt, err := int64Attr(item, "created_at")
	if err != nil {
		return domain.KeywordEntry{}, err
	}
	snippet, _ := strAttr(item, "snippet") // allow empty

	return domain.KeywordEntry{
		Keyword:     keyword,
		UserCreated: userCreated,
		MessageID:   messageID,
		UserID:      userID,
		CreatedAt:   createdAt,
		Snippet:     snippet,
	}, nil
}

func strAttr(item map[string]types.AttributeValue, key string) (string, error) {
	v, ok := item[key]
	if !ok {
		return "", fmt.Errorf("missing attribute %q", key)
	}
	s, ok := v.(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("attribute %q is not a string", key)
	}
	return s.Value, nil
}

func int64Attr(item map[string]types.AttributeValue, key string) (int64, error) {
	v, ok := item[key]
	if !ok {
		return 0, fmt.Errorf("missing attribute %q", key)
	}
	n, ok := v.(*types.AttributeValueMemberN)
	if !ok {
		return 0, fmt.Errorf("attribute %q is not a number", key)
	}
	parsed, err := strconv.ParseInt(n.Value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse attribute %q: %w", key, err)
	}
	return parsed, nil
}
