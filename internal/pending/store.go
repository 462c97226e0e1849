package pending

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/imrishuroy/go-cimit-stub/internal/apperrors"
	"github.com/imrishuroy/go-cimit-stub/internal/aws"
)

// Ledger stores mitigations asserted by a credential that has not been
// reconciled yet, keyed by the credential's jti.
type Ledger struct {
	client    aws.DynamoDBAPI
	tableName string
	retention time.Duration
	nowFunc   func() time.Time
}

// NewLedger returns a configured Ledger.
// retention: added to the current time to compute each record's ttl.
func NewLedger(client aws.DynamoDBAPI, tableName string, retention time.Duration) *Ledger {
	return &Ledger{
		client:    client,
		tableName: tableName,
		retention: retention,
		nowFunc:   time.Now,
	}
}

// RecordPendingMitigation upserts the pending record for vcJti. It has no
// existence precondition: resubmitting a jti replaces the previous record.
func (l *Ledger) RecordPendingMitigation(ctx context.Context, in Record) (*Record, error) {
	if in.VcJti == "" {
		return nil, apperrors.New(apperrors.CodeValidation, "vcJti is required")
	}
	if !in.RequestMethod.Valid() {
		return nil, apperrors.New(apperrors.CodeValidation, fmt.Sprintf("unknown request method %q", in.RequestMethod))
	}

	rec := in
	if rec.MitigationCodes == nil {
		rec.MitigationCodes = []string{}
	}
	rec.TTL = l.nowFunc().Add(l.retention).Unix()

	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeStoreFailure, "marshal pending mitigation")
	}

	_, err = l.client.PutItem(ctx, &dyn.PutItemInput{
		TableName: &l.tableName,
		Item:      item,
	})
	if err != nil {
		return nil, apperrors.Wrap(fmt.Errorf("put item: %w", err), apperrors.CodeStoreFailure, "store pending mitigation")
	}
	return &rec, nil
}

// Get retrieves the pending record for vcJti. Returns (nil, nil) if absent or expired.
func (l *Ledger) Get(ctx context.Context, vcJti string) (*Record, error) {
	out, err := l.client.GetItem(ctx, &dyn.GetItemInput{
		TableName: &l.tableName,
		Key: map[string]types.AttributeValue{
			"vcJti": &types.AttributeValueMemberS{Value: vcJti},
		},
	})
	if err != nil {
		return nil, apperrors.Wrap(fmt.Errorf("get item: %w", err), apperrors.CodeStoreFailure, "read pending mitigation")
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	var rec Record
	if err := attributevalue.UnmarshalMap(out.Item, &rec); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeStoreFailure, "unmarshal pending mitigation")
	}
	if rec.TTL <= l.nowFunc().Unix() {
		return nil, nil
	}
	return &rec, nil
}
