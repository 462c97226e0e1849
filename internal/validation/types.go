package validation

import (
	"time"

	"github.com/imrishuroy/go-cimit-stub/internal/contraindicators"
)

// ContraIndicator is one entry of a CI batch.
type ContraIndicator struct {
	Code         string     `json:"code" validate:"required"`
	IssuanceDate *time.Time `json:"issuanceDate,omitempty"`
	Issuer       string     `json:"issuer,omitempty"`
	Document     string     `json:"document,omitempty"`
	Txn          string     `json:"txn,omitempty"`
	Mitigations  []string   `json:"mitigations,omitempty" validate:"omitempty,dive,required"`
}

// ContraIndicatorBatch is the body of POST and PUT /user/:userId/contra-indicators.
// The body is a bare JSON array.
type ContraIndicatorBatch []ContraIndicator

// batchEnvelope lets the validator walk a batch as a struct.
type batchEnvelope struct {
	Items ContraIndicatorBatch `validate:"required,min=1,max=100,dive"`
}

// Inputs converts the batch into repository inputs for userID.
func (b ContraIndicatorBatch) Inputs(userID string) []contraindicators.Input {
	inputs := make([]contraindicators.Input, 0, len(b))
	for _, ci := range b {
		in := contraindicators.Input{
			UserID:      userID,
			Code:        ci.Code,
			Issuer:      ci.Issuer,
			Document:    ci.Document,
			Txn:         ci.Txn,
			Mitigations: ci.Mitigations,
		}
		if ci.IssuanceDate != nil {
			in.IssuanceDate = *ci.IssuanceDate
		}
		inputs = append(inputs, in)
	}
	return inputs
}

// MitigationRequest is the body of POST and PUT on a CI's mitigations. A
// non-empty VcJti defers the mitigation to the pending ledger.
type MitigationRequest struct {
	Mitigations []string `json:"mitigations" validate:"required,min=1,dive,required"`
	VcJti       string   `json:"vcJti,omitempty"`
}

// CredentialRequest is the body of POST /contra-indicators/credential.
type CredentialRequest struct {
	UserID string `json:"user_id" validate:"required"`
}
