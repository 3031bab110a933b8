// Package safetx models pending Safe multisig transactions and classifies
// them into semantic actions.
//
// A pending transaction is a proposed Safe transaction that has not yet
// collected enough owner confirmations to execute. The wire format follows
// the Safe Transaction Service API: amounts are decimal strings in wei,
// call data is 0x-prefixed hex, and decoded call data is present only when
// the service recognised the ABI at proposal time.
package safetx

import (
	"math/big"
	"strings"
	"time"
)

// Confirmation is a single owner approval of a pending transaction.
type Confirmation struct {
	Owner          string    `json:"owner"`
	SubmissionDate time.Time `json:"submissionDate"`
}

// Param is one decoded call parameter. Value is kept loosely typed because
// the upstream decoder emits strings for addresses and integers alike, but
// nests arrays for multi-send payloads.
type Param struct {
	Name  string `json:"name"`
	Type  string `json:"type"`
	Value any    `json:"value"`
}

// DecodedData is the service's best-effort ABI decoding of the call payload.
type DecodedData struct {
	Method     string  `json:"method"`
	Parameters []Param `json:"parameters"`
}

// PendingTransaction is a proposed, not-yet-executed Safe transaction.
// The risk engine only ever observes it in the pending state and never
// mutates it.
type PendingTransaction struct {
	SafeTxHash            string         `json:"safeTxHash"`
	To                    string         `json:"to"`
	Value                 string         `json:"value"`
	Data                  string         `json:"data"`
	DataDecoded           *DecodedData   `json:"dataDecoded,omitempty"`
	Proposer              string         `json:"proposer"`
	SubmissionDate        time.Time      `json:"submissionDate"`
	Confirmations         []Confirmation `json:"confirmations"`
	ConfirmationsRequired int            `json:"confirmationsRequired"`
}

// ValueWei returns the native-token value in wei. Malformed or empty
// values read as zero.
func (tx *PendingTransaction) ValueWei() *big.Int {
	if tx.Value == "" {
		return big.NewInt(0)
	}
	v, ok := new(big.Int).SetString(tx.Value, 10)
	if !ok || v.Sign() < 0 {
		return big.NewInt(0)
	}
	return v
}

// HasData reports whether the transaction carries a call payload.
// "0x" and the empty string both mean a plain value transfer.
func (tx *PendingTransaction) HasData() bool {
	d := strings.TrimPrefix(tx.Data, "0x")
	return d != ""
}

// DecodedMethod returns the decoded method name, or "" when the payload
// could not be decoded upstream.
func (tx *PendingTransaction) DecodedMethod() string {
	if tx.DataDecoded == nil {
		return ""
	}
	return tx.DataDecoded.Method
}
