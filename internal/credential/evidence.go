package credential

import (
	"slices"
	"time"

	"github.com/imrishuroy/go-cimit-stub/internal/contraindicators"
)

// MinimalEvidence is the fixed evidence block: no contra-indicators, only a
// per-issuance transaction id.
func MinimalEvidence(txn string) Evidence {
	return Evidence{
		Type:            EvidenceTypeSecurityCheck,
		Txn:             txn,
		ContraIndicator: []ContraIndicator{},
	}
}

// BuildEvidence summarizes records into one evidence block.
func BuildEvidence(records []contraindicators.Record, txn string) Evidence {
	ev := MinimalEvidence(txn)
	for _, r := range records {
		issuers := slices.Clone(r.Issuers)
		if issuers == nil {
			issuers = []string{}
		}
		slices.Sort(issuers)

		mitigations := make([]Mitigation, 0, len(r.Mitigations))
		for _, code := range r.Mitigations {
			mitigations = append(mitigations, Mitigation{Code: code})
		}

		txns := slices.Clone(r.Txn)
		if txns == nil {
			txns = []string{}
		}

		ev.ContraIndicator = append(ev.ContraIndicator, ContraIndicator{
			Code:                 r.Code,
			Document:             r.Document,
			IssuanceDate:         r.IssuanceDate.UTC().Format(time.RFC3339),
			Issuers:              issuers,
			Mitigation:           mitigations,
			IncompleteMitigation: []Mitigation{},
			Txn:                  txns,
		})
	}
	return ev
}
