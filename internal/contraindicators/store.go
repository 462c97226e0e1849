package contraindicators

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"

	"github.com/imrishuroy/go-cimit-stub/internal/apperrors"
	"github.com/imrishuroy/go-cimit-stub/internal/aws"
)

const (
	partitionKey = "userId"
	sortKey      = "contraIndicatorCode"

	// MaxBatchSize is the DynamoDB TransactWriteItems limit.
	MaxBatchSize       = 100
	DefaultMaxAttempts = 10

	createCondition  = "attribute_not_exists(" + sortKey + ") OR #ttl <= :now"
	// A record re-created after expiry restarts at version 1, so the ttl
	// read alongside the version pins the write to one record lifetime.
	versionCondition = "#v = :expected AND #ttl = :readTtl"
)

// Store encapsulates operations on the contra-indicators table.
type Store struct {
	client      aws.DynamoDBAPI
	tableName   string
	retention   time.Duration
	maxAttempts int
	nowFunc     func() time.Time
	logger      *slog.Logger
}

type Option func(*Store)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// WithClock replaces time.Now for ttl and expiry decisions.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.nowFunc = now }
}

// WithMaxAttempts bounds optimistic retries of a read-modify-write cycle.
func WithMaxAttempts(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

// NewStore creates a contra-indicator Store. retention is added to the
// current time on every write to compute the record's ttl.
func NewStore(client aws.DynamoDBAPI, tableName string, retention time.Duration, opts ...Option) *Store {
	s := &Store{
		client:      client,
		tableName:   tableName,
		retention:   retention,
		maxAttempts: DefaultMaxAttempts,
		nowFunc:     time.Now,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateCi stores a new record. It fails with CodeAlreadyExists when a live
// record for (UserID, Code) is present.
func (s *Store) CreateCi(ctx context.Context, in Input) (*Record, error) {
	now := s.nowFunc()
	rec := s.newRecord(in, now)

	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeStoreFailure, "marshal contra-indicator")
	}

	_, err = s.client.PutItem(ctx, &dyn.PutItemInput{
		TableName:                 &s.tableName,
		Item:                      item,
		ConditionExpression:       awsString(createCondition),
		ExpressionAttributeNames:  map[string]string{"#ttl": "ttl"},
		ExpressionAttributeValues: map[string]types.AttributeValue{":now": numberAttr(now.Unix())},
	})
	if err != nil {
		if isConditionalCheckFailed(err) {
			return nil, alreadyExists(in.Code)
		}
		return nil, apperrors.Wrap(fmt.Errorf("put item: %w", err), apperrors.CodeStoreFailure, "store contra-indicator")
	}
	return &rec, nil
}

// UpdateCi merges in into the existing record. It fails with CodeNotFound
// when no live record for (UserID, Code) exists.
func (s *Store) UpdateCi(ctx context.Context, in Input) (*Record, error) {
	return s.mutate(ctx, in.UserID, in.Code, func(r *Record) error {
		applyUpdate(r, in)
		return nil
	})
}

// CreateMitigations sets the mitigations of an existing record that has none.
func (s *Store) CreateMitigations(ctx context.Context, userID, code string, mitigations []string) (*Record, error) {
	return s.mutate(ctx, userID, code, func(r *Record) error {
		if len(r.Mitigations) > 0 {
			return apperrors.New(apperrors.CodeAlreadyExists, fmt.Sprintf("mitigations already exist for contra-indicator %s", code))
		}
		r.Mitigations = Dedup(mitigations)
		return nil
	})
}

// UpdateMitigations merges mitigations into a record that already has some.
func (s *Store) UpdateMitigations(ctx context.Context, userID, code string, mitigations []string) (*Record, error) {
	return s.mutate(ctx, userID, code, func(r *Record) error {
		if len(r.Mitigations) == 0 {
			return apperrors.New(apperrors.CodeNotFound, fmt.Sprintf("no mitigations exist for contra-indicator %s", code))
		}
		r.Mitigations = Merge(r.Mitigations, mitigations)
		return nil
	})
}

// GetAll returns every live record for userID, ordered by code.
func (s *Store) GetAll(ctx context.Context, userID string) ([]Record, error) {
	now := s.nowFunc()
	p := dyn.NewQueryPaginator(s.client, &dyn.QueryInput{
		TableName:              &s.tableName,
		KeyConditionExpression: awsString("#pk = :pk"),
		FilterExpression:       awsString("#ttl > :now"),
		ExpressionAttributeNames: map[string]string{
			"#pk":  partitionKey,
			"#ttl": "ttl",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":  &types.AttributeValueMemberS{Value: userID},
			":now": numberAttr(now.Unix()),
		},
	})

	records := []Record{}
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, apperrors.Wrap(fmt.Errorf("query: %w", err), apperrors.CodeStoreFailure, "query contra-indicators")
		}
		var batch []Record
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &batch); err != nil {
			return nil, apperrors.Wrap(err, apperrors.CodeStoreFailure, "unmarshal contra-indicators")
		}
		for _, r := range batch {
			// TTL deletion is lazy on DynamoDB's side.
			if !r.expired(now) {
				r.normalize()
				records = append(records, r)
			}
		}
	}
	return records, nil
}

// Get fetches one live record. Returns (nil, nil) if absent or expired.
func (s *Store) Get(ctx context.Context, userID, code string) (*Record, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName:      &s.tableName,
		Key:            recordKey(userID, code),
		ConsistentRead: awsBool(true),
	})
	if err != nil {
		return nil, apperrors.Wrap(fmt.Errorf("get item: %w", err), apperrors.CodeStoreFailure, "read contra-indicator")
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	var r Record
	if err := attributevalue.UnmarshalMap(out.Item, &r); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeStoreFailure, "unmarshal contra-indicator")
	}
	if r.expired(s.nowFunc()) {
		return nil, nil
	}
	r.normalize()
	return &r, nil
}

// mutate runs fn against the current record and writes the result back
// only if nobody else wrote in between, retrying on conflict.
func (s *Store) mutate(ctx context.Context, userID, code string, fn func(*Record) error) (*Record, error) {
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		cur, err := s.Get(ctx, userID, code)
		if err != nil {
			return nil, err
		}
		if cur == nil {
			return nil, notFound(code)
		}

		next := *cur
		if err := fn(&next); err != nil {
			return nil, err
		}
		next.Version = cur.Version + 1
		next.TTL = s.nowFunc().Add(s.retention).Unix()

		err = s.putIfVersion(ctx, next, *cur)
		if err == nil {
			return &next, nil
		}
		if !isConditionalCheckFailed(err) {
			return nil, apperrors.Wrap(fmt.Errorf("put item: %w", err), apperrors.CodeStoreFailure, "store contra-indicator")
		}
		s.logger.DebugContext(ctx, "contra-indicator changed concurrently, retrying",
			"user_id", userID, "ci", code, "attempt", attempt)
	}

	s.logger.WarnContext(ctx, "giving up on contended contra-indicator", "user_id", userID, "ci", code)
	return nil, apperrors.New(apperrors.CodeStoreFailure, fmt.Sprintf("contra-indicator %s is being modified concurrently", code))
}

func (s *Store) putIfVersion(ctx context.Context, rec Record, read Record) error {
	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return fmt.Errorf("marshal contra-indicator: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dyn.PutItemInput{
		TableName:                 &s.tableName,
		Item:                      item,
		ConditionExpression:       awsString(versionCondition),
		ExpressionAttributeNames:  versionNames(),
		ExpressionAttributeValues: versionValues(read),
	})
	return err
}

func versionNames() map[string]string {
	return map[string]string{"#v": "version", "#ttl": "ttl"}
}

func versionValues(read Record) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		":expected": numberAttr(read.Version),
		":readTtl":  numberAttr(read.TTL),
	}
}

func (s *Store) newRecord(in Input, now time.Time) Record {
	issued := in.IssuanceDate
	if issued.IsZero() {
		issued = now
	}
	return Record{
		UserID:       in.UserID,
		Code:         in.Code,
		IssuanceDate: issued.UTC(),
		Document:     in.Document,
		Issuers:      single(in.Issuer),
		Txn:          single(in.Txn),
		Mitigations:  Dedup(in.Mitigations),
		Version:      1,
		TTL:          now.Add(s.retention).Unix(),
	}
}

func applyUpdate(r *Record, in Input) {
	if !in.IssuanceDate.IsZero() {
		r.IssuanceDate = in.IssuanceDate.UTC()
	}
	if in.Document != "" {
		r.Document = in.Document
	}
	r.Issuers = Merge(r.Issuers, single(in.Issuer))
	r.Txn = Merge(r.Txn, single(in.Txn))
	r.Mitigations = Merge(r.Mitigations, in.Mitigations)
}

func recordKey(userID, code string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		partitionKey: &types.AttributeValueMemberS{Value: userID},
		sortKey:      &types.AttributeValueMemberS{Value: code},
	}
}

func alreadyExists(code string) error {
	return apperrors.New(apperrors.CodeAlreadyExists, fmt.Sprintf("contra-indicator %s already exists for user", code))
}

func notFound(code string) error {
	return apperrors.New(apperrors.CodeNotFound, fmt.Sprintf("contra-indicator %s not found for user", code))
}

func isConditionalCheckFailed(err error) bool {
	var cc *types.ConditionalCheckFailedException
	if errors.As(err, &cc) {
		return true
	}
	var api smithy.APIError
	return errors.As(err, &api) && api.ErrorCode() == "ConditionalCheckFailedException"
}

func numberAttr(n int64) *types.AttributeValueMemberN {
	return &types.AttributeValueMemberN{Value: strconv.FormatInt(n, 10)}
}

func awsString(s string) *string { return &s }

func awsBool(b bool) *bool { return &b }
