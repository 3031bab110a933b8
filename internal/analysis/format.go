package analysis

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/safesentry/safesentry/internal/safetx"
)

// Format renders a report into the narrative returned to the conversation
// layer. Pure and total: the layout always has three sections (overview,
// action, risk factors), and an empty finding list renders the explicit
// no-risk sentence rather than an absent section, so readers can tell
// "no risk" from "analysis failed silently".
func Format(r *Report) string {
	var b strings.Builder

	b.WriteString("Safe Transaction Analysis\n")
	b.WriteString("=========================\n\n")

	b.WriteString(fmt.Sprintf("Transaction: %s\n", r.Transaction.SafeTxHash))
	b.WriteString(fmt.Sprintf("Proposed by: %s\n", r.Transaction.Proposer))
	b.WriteString(fmt.Sprintf("Proposed at: %s\n", r.Transaction.SubmissionDate.UTC().Format("2006-01-02 15:04 MST")))
	b.WriteString(fmt.Sprintf("Confirmations: %d of %d\n", len(r.Transaction.Confirmations), r.Transaction.ConfirmationsRequired))
	b.WriteString(fmt.Sprintf("Confirmed by: %s\n", confirmerList(r.Transaction.Confirmations)))

	b.WriteString("\nAction:\n")
	b.WriteString("  " + describeAction(r) + "\n")
	for _, note := range r.Notes {
		b.WriteString("  Note: " + note + "\n")
	}

	b.WriteString("\nRisk factors:\n")
	if len(r.Findings) == 0 {
		b.WriteString("  No significant risk factors identified.\n")
	} else {
		for _, f := range r.Findings {
			b.WriteString(fmt.Sprintf("  - [%s] %s\n", strings.ToUpper(string(f.Severity)), f.Message))
		}
	}

	return b.String()
}

func confirmerList(confirmations []safetx.Confirmation) string {
	if len(confirmations) == 0 {
		return "none yet"
	}
	addrs := make([]string, len(confirmations))
	for i, c := range confirmations {
		addrs[i] = c.Owner
	}
	return strings.Join(addrs, ", ")
}

func describeAction(r *Report) string {
	a := r.Action
	switch a.Kind {
	case safetx.ActionAddOwner:
		return fmt.Sprintf("Add owner %s with confirmation threshold %d", a.Owner, a.NewThreshold)
	case safetx.ActionRemoveOwner:
		return fmt.Sprintf("Remove owner %s, setting the confirmation threshold to %d", a.Owner, a.NewThreshold)
	case safetx.ActionChangeThreshold:
		return fmt.Sprintf("Change the confirmation threshold to %d", a.NewThreshold)
	case safetx.ActionEnableModule:
		return fmt.Sprintf("Enable module %s", a.Module)
	case safetx.ActionTokenTransfer:
		if a.Method == "transfer" {
			return fmt.Sprintf("ERC20 transfer of %s token units to %s (token contract %s)", amountString(a.Amount), a.Destination, r.Transaction.To)
		}
		return fmt.Sprintf("Transfer %s ETH to %s", formatEther(a.Amount), a.Destination)
	default:
		if a.Method != "" {
			return fmt.Sprintf("Contract call: %s (%d parameters) on %s", a.Method, a.ParamCount, r.Transaction.To)
		}
		if r.Transaction.HasData() {
			return fmt.Sprintf("Contract call with undecoded call data on %s", r.Transaction.To)
		}
		return fmt.Sprintf("No-op call to %s (no value, no call data)", r.Transaction.To)
	}
}

func amountString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

// formatEther renders wei as a decimal ETH string with up to six
// fractional digits, trailing zeros trimmed.
func formatEther(wei *big.Int) string {
	if wei == nil {
		return "0"
	}
	f := new(big.Float).Quo(new(big.Float).SetInt(wei), big.NewFloat(1e18))
	s := f.Text('f', 6)
	s = strings.TrimRight(s, "0")
	s = strings.TrimRight(s, ".")
	if s == "" || s == "-" {
		return "0"
	}
	return s
}
