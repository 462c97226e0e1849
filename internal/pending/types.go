package pending

// RequestMethod records which verb produced a pending mitigation.
type RequestMethod string

const (
	MethodCreate RequestMethod = "create"
	MethodUpdate RequestMethod = "update"
)

// Valid reports whether m is one of the known methods.
func (m RequestMethod) Valid() bool {
	return m == MethodCreate || m == MethodUpdate
}

// Record is the shape persisted in the pending-mitigations DynamoDB table.
// There is at most one record per VcJti; later writes replace earlier ones.
type Record struct {
	VcJti           string        `dynamodbav:"vcJti" json:"vcJti"` // PK
	UserID          string        `dynamodbav:"userId,omitempty" json:"userId,omitempty"`
	MitigatedCi     string        `dynamodbav:"mitigatedCi" json:"mitigatedCi"`
	MitigationCodes []string      `dynamodbav:"mitigationCodes" json:"mitigationCodes"`
	RequestMethod   RequestMethod `dynamodbav:"requestMethod" json:"requestMethod"`
	TTL             int64         `dynamodbav:"ttl" json:"ttl"` // epoch seconds
}
