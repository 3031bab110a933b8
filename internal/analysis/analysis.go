// Package analysis implements risk analysis of pending Safe transactions.
//
// A pending multisig transaction is classified into a semantic action, then
// evaluated against a fixed, ordered list of independent risk checks that
// combine on-chain state, decoded call data, and external reputation and
// verification lookups. Each check degrades to "skipped" when its data
// source fails; a single unreachable service never aborts the whole report.
// Reports are recomputed on every request and never cached, because the
// confirmation state and external answers can change between calls.
package analysis

import (
	"context"
	"errors"
	"math/big"
	"time"

	"github.com/safesentry/safesentry/internal/safetx"
	"github.com/safesentry/safesentry/internal/verify"
)

// Severity grades a single risk finding.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Default thresholds for risk findings. Both are preserved from the
// reference behavior as named, overridable values.
const (
	// DefaultHighValuePercent flags transfers moving strictly more than
	// this share of the Safe's balance.
	DefaultHighValuePercent = 50

	// DefaultLowReputationScore flags addresses scoring strictly below
	// this on the reputation service's 0-100 scale.
	DefaultLowReputationScore = 20
)

// ErrTransactionNotFound means the hash is not in the Safe's current
// pending set. Analysis halts immediately with no partial report.
var ErrTransactionNotFound = errors.New("analysis: transaction not found in pending set")

// Finding is one flagged concern. Findings are accumulated in check
// evaluation order and never deduplicated.
type Finding struct {
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

// Report is the engine's output for one pending transaction. Ephemeral,
// produced fresh on every call.
type Report struct {
	SafeAddress string                     `json:"safeAddress"`
	Transaction *safetx.PendingTransaction `json:"transaction"`
	Action      safetx.Action              `json:"-"`
	ActionKind  safetx.ActionKind          `json:"actionKind"`

	// Findings in check order. Notes are favorable context attached to
	// the action description, not risk. SkippedChecks names checks whose
	// data source was unavailable; a skipped check is not a passed check,
	// the formatter just does not surface the distinction yet.
	Findings      []Finding `json:"findings"`
	Notes         []string  `json:"notes"`
	SkippedChecks []string  `json:"skippedChecks"`

	// Text is the formatted narrative returned to the conversation layer.
	Text string `json:"text"`
}

// HighestSeverity returns the most severe finding grade, or "" when the
// report is clean.
func (r *Report) HighestSeverity() Severity {
	var top Severity
	for _, f := range r.Findings {
		switch f.Severity {
		case SeverityCritical:
			return SeverityCritical
		case SeverityWarning:
			top = SeverityWarning
		case SeverityInfo:
			if top == "" {
				top = SeverityInfo
			}
		}
	}
	return top
}

// PendingSource lists a Safe's pending transactions. The directory offers
// no by-hash lookup; the engine filters for the hash itself.
type PendingSource interface {
	PendingTransactions(ctx context.Context, safeAddr string) ([]*safetx.PendingTransaction, int, error)
}

// OwnerSource reads the governing Safe's current owner set on-chain.
type OwnerSource interface {
	Owners(ctx context.Context, safeAddr string) ([]string, error)
}

// ChainState reads balances and code presence from the chain RPC.
type ChainState interface {
	Balance(ctx context.Context, addr string) (*big.Int, error)
	IsContract(ctx context.Context, addr string) (bool, error)
}

// ReputationSource scores an address 0-100, higher is more trustworthy.
type ReputationSource interface {
	Configured() bool
	Score(ctx context.Context, addr string) (int, error)
}

// VerificationSource reports whether a contract has verified source.
type VerificationSource interface {
	Configured() bool
	ContractInfo(ctx context.Context, addr string) (*verify.Info, error)
}

// Record is a one-row audit summary of a completed analysis. It is an
// append-only trail, never a report cache.
type Record struct {
	ID           string    `json:"id"`
	SafeAddress  string    `json:"safeAddress"`
	SafeTxHash   string    `json:"safeTxHash"`
	ActionKind   string    `json:"actionKind"`
	FindingCount int       `json:"findingCount"`
	TopSeverity  string    `json:"topSeverity"`
	Report       string    `json:"report"`
	AnalyzedAt   time.Time `json:"analyzedAt"`
}

// Store persists analysis records for the audit trail.
type Store interface {
	Record(ctx context.Context, rec *Record) error
	ListBySafe(ctx context.Context, safeAddr string, limit int) ([]*Record, error)
}
