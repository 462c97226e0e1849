package contraindicators

import "time"

// Record is the item stored in the contra-indicators DynamoDB table.
// (userId, contraIndicatorCode) is unique.
type Record struct {
	UserID       string    `dynamodbav:"userId" json:"userId"`
	Code         string    `dynamodbav:"contraIndicatorCode" json:"code"`
	IssuanceDate time.Time `dynamodbav:"issuanceDate" json:"issuanceDate"`
	Document     string    `dynamodbav:"document,omitempty" json:"document,omitempty"`
	// Issuers keeps insertion order; credentials serialize it sorted.
	Issuers     []string `dynamodbav:"issuers,omitempty" json:"issuers,omitempty"`
	Txn         []string `dynamodbav:"txn,omitempty" json:"txn,omitempty"`
	Mitigations []string `dynamodbav:"mitigations,omitempty" json:"mitigations"`
	// Version is bumped on every write and guards read-modify-write cycles.
	Version int64 `dynamodbav:"version" json:"-"`
	// TTL is the DynamoDB expiry attribute, in epoch seconds.
	TTL int64 `dynamodbav:"ttl" json:"ttl"`
}

// Input carries the fields of a create or update mutation for one code.
// Zero-valued optional fields leave the stored value untouched on update.
type Input struct {
	UserID       string
	Code         string
	IssuanceDate time.Time
	Issuer       string
	Document     string
	Txn          string
	Mitigations  []string
}

func (r Record) expired(now time.Time) bool {
	return r.TTL <= now.Unix()
}

// normalize restores the empty mitigation list DynamoDB omits on write.
func (r *Record) normalize() {
	if r.Mitigations == nil {
		r.Mitigations = []string{}
	}
}
