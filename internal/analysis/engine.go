package analysis

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/safesentry/safesentry/internal/idgen"
	"github.com/safesentry/safesentry/internal/metrics"
	"github.com/safesentry/safesentry/internal/safetx"
	"github.com/safesentry/safesentry/internal/traces"
	"github.com/safesentry/safesentry/internal/verify"
)

// errLookupDisabled stands in for a lookup that was never attempted
// because its service is not configured. The check skips either way.
var errLookupDisabled = errors.New("analysis: lookup disabled")

// Engine evaluates pending Safe transactions against the ordered check
// list. It holds no per-request state and is safe for concurrent use.
type Engine struct {
	pending      PendingSource
	owners       OwnerSource
	chain        ChainState
	reputation   ReputationSource
	verification VerificationSource
	store        Store

	highValuePercent   int64
	lowReputationScore int
}

// NewEngine creates a risk analysis engine over the given data sources.
func NewEngine(pending PendingSource, owners OwnerSource, chain ChainState, reputation ReputationSource, verification VerificationSource) *Engine {
	return &Engine{
		pending:            pending,
		owners:             owners,
		chain:              chain,
		reputation:         reputation,
		verification:       verification,
		highValuePercent:   DefaultHighValuePercent,
		lowReputationScore: DefaultLowReputationScore,
	}
}

// WithStore attaches an audit trail store. Records are written
// asynchronously, best-effort.
func (e *Engine) WithStore(s Store) *Engine {
	e.store = s
	return e
}

// WithHighValuePercent overrides the high-value transfer threshold.
func (e *Engine) WithHighValuePercent(p int64) *Engine {
	e.highValuePercent = p
	return e
}

// WithLowReputationScore overrides the low-reputation threshold.
func (e *Engine) WithLowReputationScore(s int) *Engine {
	e.lowReputationScore = s
	return e
}

// Analyze fetches the pending transaction by hash, classifies it, gathers
// external data, runs the check list, and returns the formatted report.
// It fails with ErrTransactionNotFound when the hash is not in the Safe's
// pending set; every other data-source failure degrades the checks that
// depend on it instead of aborting.
func (e *Engine) Analyze(ctx context.Context, safeAddr, safeTxHash string) (*Report, error) {
	ctx, span := traces.StartSpan(ctx, "analysis.Analyze",
		traces.SafeAddr(safeAddr), traces.TxHash(safeTxHash))
	defer span.End()

	tx, err := e.findPending(ctx, safeAddr, safeTxHash)
	if err != nil {
		if errors.Is(err, ErrTransactionNotFound) {
			metrics.AnalysesTotal.WithLabelValues("not_found").Inc()
		} else {
			metrics.AnalysesTotal.WithLabelValues("error").Inc()
		}
		return nil, err
	}

	action := safetx.Classify(tx)
	cc := e.gather(ctx, safeAddr, tx, action)

	report := &Report{
		SafeAddress: safeAddr,
		Transaction: tx,
		Action:      action,
		ActionKind:  action.Kind,
	}

	for _, c := range checkList {
		res := c.run(cc)
		if res.skipped {
			report.SkippedChecks = append(report.SkippedChecks, c.name)
			metrics.ChecksSkippedTotal.WithLabelValues(c.name).Inc()
			continue
		}
		report.Findings = append(report.Findings, res.findings...)
		report.Notes = append(report.Notes, res.notes...)
		for _, f := range res.findings {
			metrics.FindingsTotal.WithLabelValues(string(f.Severity)).Inc()
		}
	}

	report.Text = Format(report)
	metrics.AnalysesTotal.WithLabelValues("ok").Inc()

	if e.store != nil {
		rec := &Record{
			ID:           idgen.WithPrefix("ana_"),
			SafeAddress:  safeAddr,
			SafeTxHash:   tx.SafeTxHash,
			ActionKind:   string(action.Kind),
			FindingCount: len(report.Findings),
			TopSeverity:  string(report.HighestSeverity()),
			Report:       report.Text,
			AnalyzedAt:   time.Now().UTC(),
		}
		go func() {
			_ = e.store.Record(context.Background(), rec)
		}()
	}

	return report, nil
}

// findPending lists the Safe's pending set and filters for the hash.
// The directory offers no by-hash lookup.
func (e *Engine) findPending(ctx context.Context, safeAddr, safeTxHash string) (*safetx.PendingTransaction, error) {
	start := time.Now()
	txs, _, err := e.pending.PendingTransactions(ctx, safeAddr)
	metrics.ObserveLookup("txservice", start, err)
	if err != nil {
		return nil, fmt.Errorf("fetch pending transactions: %w", err)
	}
	for _, tx := range txs {
		if strings.EqualFold(tx.SafeTxHash, safeTxHash) {
			return tx, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrTransactionNotFound, safeTxHash)
}

// checkContext carries everything the checks read. All lookups complete
// before the first check runs; no finding is ever emitted from a partial
// lookup.
type checkContext struct {
	tx     *safetx.PendingTransaction
	action safetx.Action

	owners    []string
	ownersErr error

	balance    *big.Int
	balanceErr error

	// destKnown is false when the code read failed; both destination
	// check families skip rather than guessing a branch.
	destKnown  bool
	isContract bool

	newOwnerScore    int
	newOwnerScoreErr error

	destScore    int
	destScoreErr error

	verifyInfo *verify.Info
	verifyErr  error

	highValuePercent   int64
	lowReputationScore int
}

// fundMoving reports whether the transaction moves funds: a nonzero
// native value or a classified token transfer. The destination check
// families only apply to fund-moving transactions.
func (cc *checkContext) fundMoving() bool {
	return cc.tx.ValueWei().Sign() > 0 || cc.action.Kind == safetx.ActionTokenTransfer
}

func (cc *checkContext) isSafeOwner(addr string) bool {
	for _, o := range cc.owners {
		if strings.EqualFold(o, addr) {
			return true
		}
	}
	return false
}

// gather collects all external data the checks need. Owners, balance, and
// destination code are independent and fetched concurrently; reputation
// and verification depend on the classification and the destination type,
// so they run in a second wave.
func (e *Engine) gather(ctx context.Context, safeAddr string, tx *safetx.PendingTransaction, action safetx.Action) *checkContext {
	cc := &checkContext{
		tx:                 tx,
		action:             action,
		highValuePercent:   e.highValuePercent,
		lowReputationScore: e.lowReputationScore,
	}

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		start := time.Now()
		cc.owners, cc.ownersErr = e.owners.Owners(ctx, safeAddr)
		metrics.ObserveLookup("owners", start, cc.ownersErr)
	}()

	if tx.ValueWei().Sign() > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			start := time.Now()
			cc.balance, cc.balanceErr = e.chain.Balance(ctx, safeAddr)
			metrics.ObserveLookup("chain", start, cc.balanceErr)
		}()
	}

	if tx.To != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			start := time.Now()
			isContract, err := e.chain.IsContract(ctx, tx.To)
			metrics.ObserveLookup("chain", start, err)
			cc.isContract = isContract
			cc.destKnown = err == nil
		}()
	}

	wg.Wait()

	if action.Kind == safetx.ActionAddOwner && action.Owner != "" {
		if e.reputation.Configured() {
			start := time.Now()
			cc.newOwnerScore, cc.newOwnerScoreErr = e.reputation.Score(ctx, action.Owner)
			metrics.ObserveLookup("reputation", start, cc.newOwnerScoreErr)
		} else {
			cc.newOwnerScoreErr = errLookupDisabled
		}
	}

	if cc.destKnown && !cc.isContract && cc.fundMoving() {
		if e.reputation.Configured() {
			start := time.Now()
			cc.destScore, cc.destScoreErr = e.reputation.Score(ctx, tx.To)
			metrics.ObserveLookup("reputation", start, cc.destScoreErr)
		} else {
			cc.destScoreErr = errLookupDisabled
		}
	}

	if cc.destKnown && cc.isContract {
		if e.verification.Configured() {
			start := time.Now()
			cc.verifyInfo, cc.verifyErr = e.verification.ContractInfo(ctx, tx.To)
			metrics.ObserveLookup("verify", start, cc.verifyErr)
		} else {
			cc.verifyErr = errLookupDisabled
		}
	}

	return cc
}

// checkResult is one check's outcome. A skipped check could not gather
// its data; that is distinct from a check that ran and found nothing.
type checkResult struct {
	findings []Finding
	notes    []string
	skipped  bool
}

type namedCheck struct {
	name string
	run  func(*checkContext) checkResult
}

// checkList is the fixed evaluation order. Checks are independent; the
// order is not sorted by severity so that report text stays deterministic
// and diffable across runs.
var checkList = []namedCheck{
	{"config_change", checkConfigChange},
	{"new_owner_reputation", checkNewOwnerReputation},
	{"high_value_transfer", checkHighValueTransfer},
	{"contract_destination", checkContractDestination},
	{"eoa_destination", checkEOADestination},
	{"eoa_reputation", checkEOAReputation},
	{"contract_verification", checkContractVerification},
}

// checkConfigChange flags any change to the Safe's ownership or module
// configuration. Enabling a module is the same bucket as owner and
// threshold changes: a module can move funds without further signatures.
func checkConfigChange(cc *checkContext) checkResult {
	var msg string
	switch cc.action.Kind {
	case safetx.ActionAddOwner:
		msg = fmt.Sprintf("Modifies Safe configuration: adds owner %s and sets the confirmation threshold to %d", cc.action.Owner, cc.action.NewThreshold)
	case safetx.ActionRemoveOwner:
		msg = fmt.Sprintf("Modifies Safe configuration: removes owner %s and sets the confirmation threshold to %d", cc.action.Owner, cc.action.NewThreshold)
	case safetx.ActionChangeThreshold:
		msg = fmt.Sprintf("Modifies Safe configuration: changes the confirmation threshold to %d", cc.action.NewThreshold)
	case safetx.ActionEnableModule:
		msg = fmt.Sprintf("Modifies Safe configuration: enables module %s, which can execute transactions without owner signatures", cc.action.Module)
	default:
		return checkResult{}
	}
	return checkResult{findings: []Finding{{Severity: SeverityWarning, Message: msg}}}
}

func checkNewOwnerReputation(cc *checkContext) checkResult {
	if cc.action.Kind != safetx.ActionAddOwner || cc.action.Owner == "" {
		return checkResult{}
	}
	if cc.newOwnerScoreErr != nil {
		return checkResult{skipped: true}
	}
	if cc.newOwnerScore < cc.lowReputationScore {
		return checkResult{findings: []Finding{{
			Severity: SeverityWarning,
			Message:  fmt.Sprintf("New owner %s has a low reputation score (%d/100)", cc.action.Owner, cc.newOwnerScore),
		}}}
	}
	return checkResult{notes: []string{
		fmt.Sprintf("New owner %s has reputation score %d/100", cc.action.Owner, cc.newOwnerScore),
	}}
}

// checkHighValueTransfer fires when the transfer moves strictly more than
// highValuePercent of the Safe's balance. Exact big.Int comparison: a
// transfer of exactly 50%% does not fire.
func checkHighValueTransfer(cc *checkContext) checkResult {
	value := cc.tx.ValueWei()
	if value.Sign() <= 0 {
		return checkResult{}
	}
	if cc.balanceErr != nil || cc.balance == nil {
		return checkResult{skipped: true}
	}
	if cc.balance.Sign() <= 0 {
		return checkResult{findings: []Finding{{
			Severity: SeverityWarning,
			Message:  fmt.Sprintf("Transfer of %s ETH exceeds the Safe's current balance", formatEther(value)),
		}}}
	}

	// value*100 > balance*percent, exact integer arithmetic
	lhs := new(big.Int).Mul(value, big.NewInt(100))
	rhs := new(big.Int).Mul(cc.balance, big.NewInt(cc.highValuePercent))
	if lhs.Cmp(rhs) <= 0 {
		return checkResult{}
	}

	pct := new(big.Float).Quo(new(big.Float).SetInt(value), new(big.Float).SetInt(cc.balance))
	pct.Mul(pct, big.NewFloat(100))
	return checkResult{findings: []Finding{{
		Severity: SeverityWarning,
		Message:  fmt.Sprintf("High-value transfer: %s ETH is %.1f%% of the Safe's balance", formatEther(value), pct),
	}}}
}

func checkContractDestination(cc *checkContext) checkResult {
	if cc.tx.To == "" {
		return checkResult{}
	}
	if !cc.destKnown {
		return checkResult{skipped: true}
	}
	if !cc.isContract {
		return checkResult{}
	}

	var res checkResult
	if cc.action.Kind == safetx.ActionTokenTransfer && cc.action.Method == "transfer" &&
		strings.EqualFold(cc.action.Destination, cc.tx.To) {
		res.findings = append(res.findings, Finding{
			Severity: SeverityCritical,
			Message:  fmt.Sprintf("ERC20 transfer sends tokens to the token contract itself (%s); funds will likely be lost", cc.tx.To),
		})
	}
	if cc.tx.ValueWei().Sign() > 0 && !cc.tx.HasData() {
		res.findings = append(res.findings, Finding{
			Severity: SeverityCritical,
			Message:  fmt.Sprintf("Direct ETH transfer to contract %s without a function call; funds may be lost", cc.tx.To),
		})
	}
	return res
}

func checkEOADestination(cc *checkContext) checkResult {
	if cc.tx.To == "" || !cc.fundMoving() {
		return checkResult{}
	}
	if !cc.destKnown {
		return checkResult{skipped: true}
	}
	if cc.isContract {
		return checkResult{}
	}
	if cc.ownersErr != nil {
		return checkResult{skipped: true}
	}
	if cc.isSafeOwner(cc.tx.To) {
		return checkResult{notes: []string{
			fmt.Sprintf("Destination %s is a Safe owner", cc.tx.To),
		}}
	}
	return checkResult{findings: []Finding{{
		Severity: SeverityWarning,
		Message:  fmt.Sprintf("Transfer destination %s is not a Safe owner", cc.tx.To),
	}}}
}

// checkEOAReputation runs independently of the owner-membership check;
// an owner with a bad score still gets flagged.
func checkEOAReputation(cc *checkContext) checkResult {
	if cc.tx.To == "" || !cc.fundMoving() {
		return checkResult{}
	}
	if !cc.destKnown {
		return checkResult{skipped: true}
	}
	if cc.isContract {
		return checkResult{}
	}
	if cc.destScoreErr != nil {
		return checkResult{skipped: true}
	}
	if cc.destScore < cc.lowReputationScore {
		return checkResult{findings: []Finding{{
			Severity: SeverityWarning,
			Message:  fmt.Sprintf("Destination %s has a low reputation score (%d/100)", cc.tx.To, cc.destScore),
		}}}
	}
	return checkResult{notes: []string{
		fmt.Sprintf("Destination %s has reputation score %d/100", cc.tx.To, cc.destScore),
	}}
}

// checkContractVerification never emits a finding when the lookup itself
// failed: absence of information is not risk.
func checkContractVerification(cc *checkContext) checkResult {
	if cc.tx.To == "" {
		return checkResult{}
	}
	if !cc.destKnown {
		return checkResult{skipped: true}
	}
	if !cc.isContract {
		return checkResult{}
	}
	if cc.verifyErr != nil {
		return checkResult{skipped: true}
	}
	if !cc.verifyInfo.Verified {
		return checkResult{findings: []Finding{{
			Severity: SeverityWarning,
			Message:  fmt.Sprintf("Destination contract %s has no verified source code", cc.tx.To),
		}}}
	}
	if cc.verifyInfo.Name != "" {
		return checkResult{notes: []string{
			fmt.Sprintf("Destination contract has verified source code (%s)", cc.verifyInfo.Name),
		}}
	}
	return checkResult{notes: []string{"Destination contract has verified source code"}}
}
