// Package dynamostore implements the gift collection on a DynamoDB table keyed
// by "id". DynamoDB has no filtered change feed, so the live query polls a
// consistent Scan and re-delivers only when the result set changes. Batches
// commit through TransactWriteItems.
package dynamostore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	dynamodbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"github.com/five82/giftlist/internal/gift"
	"github.com/five82/giftlist/internal/store"
)

var _ store.GiftStore = (*Store)(nil)

// maxTransactItems is DynamoDB's per-transaction item limit.
const maxTransactItems = 100

// API is the subset of the DynamoDB client the store uses.
type API interface {
	Scan(ctx context.Context, in *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	TransactWriteItems(ctx context.Context, in *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

type item struct {
	ID            string `dynamodbav:"id"`
	Name          string `dynamodbav:"name"`
	Image         string `dynamodbav:"image"`
	Purchased     bool   `dynamodbav:"purchased"`
	PurchaserName string `dynamodbav:"purchaserName,omitempty"`
}

// Store polls and writes one table.
type Store struct {
	client   API
	table    string
	interval time.Duration
	logger   *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithPollInterval sets how often the live query rescans the table.
func WithPollInterval(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithLogger sets the logger for scan failures.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Connect loads the default AWS configuration for region. A non-empty
// endpoint overrides the service URL, for DynamoDB Local.
func Connect(ctx context.Context, table, region, endpoint string, opts ...Option) (*Store, error) {
	var loadOpts []func(*awsconfig.LoadOptions) error
	if region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})
	return New(client, table, opts...), nil
}

// New wraps a DynamoDB client.
func New(client API, table string, opts ...Option) *Store {
	s := &Store{
		client: client,
		table:  table,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Subscribe polls the table and delivers the filtered gifts whenever they
// change. Scan failures are delivered as error snapshots.
func (s *Store) Subscribe(ctx context.Context, filter store.Filter) (<-chan store.Snapshot, store.CancelFunc, error) {
	ch, cancel := store.Watch(ctx, func(ctx context.Context, emit store.Emitter) {
		store.Poll(ctx, s.interval, func(ctx context.Context) ([]gift.Gift, error) {
			gifts, err := s.scan(ctx, filter)
			if err != nil && ctx.Err() == nil {
				s.logger.Warn("gift scan failed", "table", s.table, "error", err)
			}
			return gifts, err
		}, emit)
	})
	return ch, cancel, nil
}

func (s *Store) scan(ctx context.Context, filter store.Filter) ([]gift.Gift, error) {
	var (
		gifts []gift.Gift
		start map[string]dynamodbtypes.AttributeValue
	)
	for {
		out, err := s.client.Scan(ctx, &dynamodb.ScanInput{
			TableName:        aws.String(s.table),
			FilterExpression: aws.String("purchased = :p"),
			ExpressionAttributeValues: map[string]dynamodbtypes.AttributeValue{
				":p": &dynamodbtypes.AttributeValueMemberBOOL{Value: filter.Purchased},
			},
			ConsistentRead:    aws.Bool(true),
			ExclusiveStartKey: start,
		})
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", s.table, err)
		}
		var page []item
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return nil, fmt.Errorf("unmarshal gifts: %w", err)
		}
		for _, it := range page {
			gifts = append(gifts, it.toGift())
		}
		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		start = out.LastEvaluatedKey
	}
	if gifts == nil {
		gifts = []gift.Gift{}
	}
	store.SortGifts(gifts)
	return gifts, nil
}

// Commit writes the batch in a single transaction.
func (s *Store) Commit(ctx context.Context, batch store.Batch) error {
	if err := batch.Validate(maxTransactItems); err != nil {
		return err
	}
	_, err := s.client.TransactWriteItems(ctx, s.buildTransaction(batch))
	if err == nil {
		return nil
	}

	var canceled *dynamodbtypes.TransactionCanceledException
	if !errors.As(err, &canceled) {
		return fmt.Errorf("transact write: %w", err)
	}
	var failed []string
	for i, reason := range canceled.CancellationReasons {
		if i < len(batch.Updates) && aws.ToString(reason.Code) == "ConditionalCheckFailed" {
			failed = append(failed, batch.Updates[i].ID)
		}
	}
	if len(failed) == 0 {
		return fmt.Errorf("transact write: %w", err)
	}
	return s.classify(ctx, failed)
}

// classify tells missing gifts apart from ones another visitor took.
func (s *Store) classify(ctx context.Context, ids []string) error {
	var taken, missing []string
	for _, id := range ids {
		out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
			TableName:      aws.String(s.table),
			Key:            key(id),
			ConsistentRead: aws.Bool(true),
		})
		if err != nil {
			return fmt.Errorf("get gift %s: %w", id, err)
		}
		if len(out.Item) == 0 {
			missing = append(missing, id)
		} else {
			taken = append(taken, id)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %v", store.ErrNotFound, missing)
	}
	return &store.TakenError{IDs: taken}
}

func (s *Store) buildTransaction(batch store.Batch) *dynamodb.TransactWriteItemsInput {
	condition := "attribute_exists(id)"
	if batch.RequireUnpurchased {
		condition = "attribute_exists(id) AND purchased = :unpurchased"
	}
	items := make([]dynamodbtypes.TransactWriteItem, 0, len(batch.Updates))
	for _, u := range batch.Updates {
		values := map[string]dynamodbtypes.AttributeValue{
			":purchased": &dynamodbtypes.AttributeValueMemberBOOL{Value: u.Purchased},
			":purchaser": &dynamodbtypes.AttributeValueMemberS{Value: u.PurchaserName},
		}
		if batch.RequireUnpurchased {
			values[":unpurchased"] = &dynamodbtypes.AttributeValueMemberBOOL{Value: false}
		}
		items = append(items, dynamodbtypes.TransactWriteItem{
			Update: &dynamodbtypes.Update{
				TableName:                           aws.String(s.table),
				Key:                                 key(u.ID),
				UpdateExpression:                    aws.String("SET purchased = :purchased, purchaserName = :purchaser"),
				ConditionExpression:                 aws.String(condition),
				ExpressionAttributeValues:           values,
				ReturnValuesOnConditionCheckFailure: dynamodbtypes.ReturnValuesOnConditionCheckFailureAllOld,
			},
		})
	}
	return &dynamodb.TransactWriteItemsInput{TransactItems: items}
}

// Insert stores gifts under fresh uuids.
func (s *Store) Insert(ctx context.Context, gifts []gift.Gift) ([]string, error) {
	ids := make([]string, 0, len(gifts))
	for _, g := range gifts {
		it := item{
			ID:            uuid.NewString(),
			Name:          g.Name,
			Image:         g.Image,
			Purchased:     g.Purchased,
			PurchaserName: g.PurchaserName,
		}
		av, err := attributevalue.MarshalMap(it)
		if err != nil {
			return ids, fmt.Errorf("marshal gift %q: %w", g.Name, err)
		}
		_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
			TableName:           aws.String(s.table),
			Item:                av,
			ConditionExpression: aws.String("attribute_not_exists(id)"),
		})
		if err != nil {
			return ids, fmt.Errorf("put gift %q: %w", g.Name, err)
		}
		ids = append(ids, it.ID)
	}
	return ids, nil
}

func (it item) toGift() gift.Gift {
	return gift.Gift{
		ID:            it.ID,
		Name:          it.Name,
		Image:         it.Image,
		Purchased:     it.Purchased,
		PurchaserName: it.PurchaserName,
	}
}

func key(id string) map[string]dynamodbtypes.AttributeValue {
	return map[string]dynamodbtypes.AttributeValue{
		"id": &dynamodbtypes.AttributeValueMemberS{Value: id},
	}
}
