package credential

import "github.com/golang-jwt/jwt/v5"

const (
	TypeVerifiableCredential    = "VerifiableCredential"
	TypeSecurityCheckCredential = "SecurityCheckCredential"
	EvidenceTypeSecurityCheck   = "SecurityCheck"

	// FailureSentinel is what transports render in place of a token when issuance fails.
	FailureSentinel = "Failure"
)

// Claims is the signed claim set. Field order is fixed by the struct, so
// the payload serializes deterministically.
type Claims struct {
	jwt.RegisteredClaims
	VC VerifiableCredential `json:"vc"`
}

type VerifiableCredential struct {
	Type     []string   `json:"type"`
	Evidence []Evidence `json:"evidence"`
}

type Evidence struct {
	Type            string            `json:"type"`
	Txn             string            `json:"txn"`
	ContraIndicator []ContraIndicator `json:"contraIndicator"`
}

type ContraIndicator struct {
	Code                 string       `json:"code"`
	Document             string       `json:"document,omitempty"`
	IssuanceDate         string       `json:"issuanceDate"`
	Issuers              []string     `json:"issuers"`
	Mitigation           []Mitigation `json:"mitigation"`
	IncompleteMitigation []Mitigation `json:"incompleteMitigation"`
	Txn                  []string     `json:"txn"`
}

type Mitigation struct {
	Code string `json:"code"`
}
