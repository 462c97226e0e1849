package contraindicators

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/imrishuroy/go-cimit-stub/internal/apperrors"
)

// CreateAll creates every input for userID in a single transaction. If any
// code already exists nothing is written and CodeAlreadyExists names it.
func (s *Store) CreateAll(ctx context.Context, userID string, inputs []Input) ([]Record, error) {
	if err := checkBatch(inputs); err != nil {
		return nil, err
	}

	now := s.nowFunc()
	records := make([]Record, 0, len(inputs))
	items := make([]types.TransactWriteItem, 0, len(inputs))
	for _, in := range inputs {
		in.UserID = userID
		rec := s.newRecord(in, now)
		item, err := attributevalue.MarshalMap(rec)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.CodeStoreFailure, "marshal contra-indicator")
		}
		records = append(records, rec)
		items = append(items, types.TransactWriteItem{
			Put: &types.Put{
				TableName:                 &s.tableName,
				Item:                      item,
				ConditionExpression:       awsString(createCondition),
				ExpressionAttributeNames:  map[string]string{"#ttl": "ttl"},
				ExpressionAttributeValues: map[string]types.AttributeValue{":now": numberAttr(now.Unix())},
			},
		})
	}

	_, err := s.client.TransactWriteItems(ctx, &dyn.TransactWriteItemsInput{TransactItems: items})
	if err != nil {
		if idx, ok := conditionFailedAt(err); ok {
			return nil, alreadyExists(inputs[idx].Code)
		}
		return nil, apperrors.Wrap(fmt.Errorf("transact write: %w", err), apperrors.CodeStoreFailure, "store contra-indicators")
	}
	return records, nil
}

// UpdateAll merges every input into its existing record in a single
// transaction conditioned on each record's version. If any code is missing
// nothing is written and CodeNotFound names it.
func (s *Store) UpdateAll(ctx context.Context, userID string, inputs []Input) ([]Record, error) {
	if err := checkBatch(inputs); err != nil {
		return nil, err
	}

	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		records := make([]Record, 0, len(inputs))
		items := make([]types.TransactWriteItem, 0, len(inputs))
		for _, in := range inputs {
			cur, err := s.Get(ctx, userID, in.Code)
			if err != nil {
				return nil, err
			}
			if cur == nil {
				return nil, notFound(in.Code)
			}

			next := *cur
			applyUpdate(&next, in)
			next.Version = cur.Version + 1
			next.TTL = s.nowFunc().Add(s.retention).Unix()

			item, err := attributevalue.MarshalMap(next)
			if err != nil {
				return nil, apperrors.Wrap(err, apperrors.CodeStoreFailure, "marshal contra-indicator")
			}
			records = append(records, next)
			items = append(items, types.TransactWriteItem{
				Put: &types.Put{
					TableName:                 &s.tableName,
					Item:                      item,
					ConditionExpression:       awsString(versionCondition),
					ExpressionAttributeNames:  versionNames(),
					ExpressionAttributeValues: versionValues(*cur),
				},
			})
		}

		_, err := s.client.TransactWriteItems(ctx, &dyn.TransactWriteItemsInput{TransactItems: items})
		if err == nil {
			return records, nil
		}
		if _, ok := conditionFailedAt(err); !ok && !isTransactionConflict(err) {
			return nil, apperrors.Wrap(fmt.Errorf("transact write: %w", err), apperrors.CodeStoreFailure, "store contra-indicators")
		}
		s.logger.DebugContext(ctx, "contra-indicator batch changed concurrently, retrying",
			"user_id", userID, "attempt", attempt)
	}

	s.logger.WarnContext(ctx, "giving up on contended contra-indicator batch", "user_id", userID)
	return nil, apperrors.New(apperrors.CodeStoreFailure, "contra-indicators are being modified concurrently")
}

func checkBatch(inputs []Input) error {
	if len(inputs) == 0 {
		return apperrors.New(apperrors.CodeValidation, "at least one contra-indicator is required")
	}
	if len(inputs) > MaxBatchSize {
		return apperrors.New(apperrors.CodeValidation, fmt.Sprintf("at most %d contra-indicators per request", MaxBatchSize))
	}
	seen := make(map[string]struct{}, len(inputs))
	for _, in := range inputs {
		if _, ok := seen[in.Code]; ok {
			return apperrors.New(apperrors.CodeValidation, fmt.Sprintf("contra-indicator %s listed more than once", in.Code))
		}
		seen[in.Code] = struct{}{}
	}
	return nil
}

// conditionFailedAt reports the index of the first transact item whose
// condition failed.
func conditionFailedAt(err error) (int, bool) {
	var tce *types.TransactionCanceledException
	if !errors.As(err, &tce) {
		return 0, false
	}
	for i, r := range tce.CancellationReasons {
		if r.Code != nil && *r.Code == "ConditionalCheckFailed" {
			return i, true
		}
	}
	return 0, false
}

func isTransactionConflict(err error) bool {
	var tce *types.TransactionCanceledException
	if !errors.As(err, &tce) {
		return false
	}
	for _, r := range tce.CancellationReasons {
		if r.Code != nil && *r.Code == "TransactionConflict" {
			return true
		}
	}
	return false
}
