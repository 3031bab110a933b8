package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// Handlers holds the handler functions for each MCP tool.
type Handlers struct {
	client *APIClient
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(client *APIClient) *Handlers {
	return &Handlers{client: client}
}

// HandleAnalyzeTransaction runs a risk analysis on one pending transaction
// and relays the engine's report text verbatim.
func (h *Handlers) HandleAnalyzeTransaction(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	safeAddr := req.GetString("safe_address", "")
	if safeAddr == "" {
		return mcp.NewToolResultError("safe_address is required"), nil
	}
	txHash := req.GetString("safe_tx_hash", "")
	if txHash == "" {
		return mcp.NewToolResultError("safe_tx_hash is required"), nil
	}

	raw, err := h.client.AnalyzeTransaction(ctx, safeAddr, txHash)
	if err != nil {
		// A missing transaction is an answer, not a failure: the hash may
		// have been executed or never proposed. Tell the model in plain text.
		if errors.Is(err, ErrNotFound) {
			return mcp.NewToolResultText(fmt.Sprintf(
				"No pending transaction with hash %s found for Safe %s. "+
					"It may have been executed already; use list_pending_transactions to see what is still pending.",
				txHash, safeAddr)), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("Analyze transaction: %v", err)), nil
	}

	text, err := extractReportText(raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Analyze transaction: failed to parse report: %v", err)), nil
	}

	return mcp.NewToolResultText(text), nil
}

// HandleListPending lists a Safe's pending transactions.
func (h *Handlers) HandleListPending(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	safeAddr := req.GetString("safe_address", "")
	if safeAddr == "" {
		return mcp.NewToolResultError("safe_address is required"), nil
	}

	raw, err := h.client.ListPendingTransactions(ctx, safeAddr)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("List pending transactions: %v", err)), nil
	}

	text, err := formatPendingList(raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("List pending transactions: failed to parse response: %v", err)), nil
	}

	return mcp.NewToolResultText(text), nil
}

// HandleGetSafeInfo returns a Safe's owners, threshold, and balance.
func (h *Handlers) HandleGetSafeInfo(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	safeAddr := req.GetString("safe_address", "")
	if safeAddr == "" {
		return mcp.NewToolResultError("safe_address is required"), nil
	}

	raw, err := h.client.GetSafeInfo(ctx, safeAddr)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Get Safe info: %v", err)), nil
	}

	text, err := formatSafeInfo(raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Get Safe info: failed to parse response: %v", err)), nil
	}

	return mcp.NewToolResultText(text), nil
}

// HandleGetReputation scores an arbitrary address.
func (h *Handlers) HandleGetReputation(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	addr := req.GetString("address", "")
	if addr == "" {
		return mcp.NewToolResultError("address is required"), nil
	}

	raw, err := h.client.GetReputation(ctx, addr)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Get address reputation: %v", err)), nil
	}

	text, err := formatReputation(raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Get address reputation: failed to parse response: %v", err)), nil
	}

	return mcp.NewToolResultText(text), nil
}

// HandleListAnalyses lists the recorded analyses for a Safe.
func (h *Handlers) HandleListAnalyses(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	safeAddr := req.GetString("safe_address", "")
	if safeAddr == "" {
		return mcp.NewToolResultError("safe_address is required"), nil
	}
	limit := req.GetInt("limit", 20)

	raw, err := h.client.ListAnalyses(ctx, safeAddr, limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("List past analyses: %v", err)), nil
	}

	text, err := formatAnalysesList(raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("List past analyses: failed to parse response: %v", err)), nil
	}

	return mcp.NewToolResultText(text), nil
}

func extractReportText(raw json.RawMessage) (string, error) {
	var report struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(raw, &report); err != nil {
		return "", err
	}
	if report.Text == "" {
		return "", fmt.Errorf("report has no text")
	}
	return report.Text, nil
}

func formatPendingList(raw json.RawMessage) (string, error) {
	var resp struct {
		Safe    string `json:"safe"`
		Count   int    `json:"count"`
		Results []struct {
			SafeTxHash  string `json:"safeTxHash"`
			To          string `json:"to"`
			Value       string `json:"value"`
			DataDecoded *struct {
				Method string `json:"method"`
			} `json:"dataDecoded"`
			Confirmations         []json.RawMessage `json:"confirmations"`
			ConfirmationsRequired int               `json:"confirmationsRequired"`
		} `json:"results"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", err
	}

	if len(resp.Results) == 0 {
		return fmt.Sprintf("No pending transactions for Safe %s.", resp.Safe), nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Found %d pending transaction(s) for Safe %s:\n\n", resp.Count, resp.Safe))
	for i, tx := range resp.Results {
		sb.WriteString(fmt.Sprintf("%d. %s\n", i+1, tx.SafeTxHash))
		method := "ETH transfer"
		if tx.DataDecoded != nil && tx.DataDecoded.Method != "" {
			method = tx.DataDecoded.Method
		}
		sb.WriteString(fmt.Sprintf("   Method: %s | To: %s | Value: %s wei\n", method, tx.To, tx.Value))
		sb.WriteString(fmt.Sprintf("   Confirmations: %d of %d\n", len(tx.Confirmations), tx.ConfirmationsRequired))
		if i < len(resp.Results)-1 {
			sb.WriteString("\n")
		}
	}
	sb.WriteString("\nUse analyze_pending_transaction before confirming any of these.")
	return sb.String(), nil
}

func formatSafeInfo(raw json.RawMessage) (string, error) {
	var resp struct {
		Address    string   `json:"address"`
		Owners     []string `json:"owners"`
		Threshold  int      `json:"threshold"`
		BalanceWei string   `json:"balanceWei"`
		ChainID    int64    `json:"chainId"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Safe %s:\n", resp.Address))
	sb.WriteString(fmt.Sprintf("  Threshold: %d of %d owners\n", resp.Threshold, len(resp.Owners)))
	sb.WriteString("  Owners:\n")
	for _, o := range resp.Owners {
		sb.WriteString(fmt.Sprintf("    %s\n", o))
	}
	if resp.BalanceWei != "" {
		sb.WriteString(fmt.Sprintf("  Balance: %s wei\n", resp.BalanceWei))
	}
	if resp.ChainID != 0 {
		sb.WriteString(fmt.Sprintf("  Chain ID: %d\n", resp.ChainID))
	}
	return sb.String(), nil
}

func formatAnalysesList(raw json.RawMessage) (string, error) {
	var resp struct {
		Safe     string `json:"safe"`
		Count    int    `json:"count"`
		Analyses []struct {
			SafeTxHash   string `json:"safeTxHash"`
			ActionKind   string `json:"actionKind"`
			FindingCount int    `json:"findingCount"`
			TopSeverity  string `json:"topSeverity"`
			AnalyzedAt   string `json:"analyzedAt"`
		} `json:"analyses"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", err
	}

	if len(resp.Analyses) == 0 {
		return fmt.Sprintf("No recorded analyses for Safe %s.", resp.Safe), nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Found %d recorded analysis(es) for Safe %s:\n\n", resp.Count, resp.Safe))
	for i, a := range resp.Analyses {
		sb.WriteString(fmt.Sprintf("%d. %s\n", i+1, a.SafeTxHash))
		severity := a.TopSeverity
		if severity == "" {
			severity = "clean"
		}
		sb.WriteString(fmt.Sprintf("   Action: %s | Findings: %d | Worst: %s\n", a.ActionKind, a.FindingCount, severity))
		sb.WriteString(fmt.Sprintf("   Analyzed at: %s\n", a.AnalyzedAt))
		if i < len(resp.Analyses)-1 {
			sb.WriteString("\n")
		}
	}
	return sb.String(), nil
}

func formatReputation(raw json.RawMessage) (string, error) {
	var resp struct {
		Address string `json:"address"`
		Score   int    `json:"score"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", err
	}
	return fmt.Sprintf("Reputation for %s: %d/100 (higher is more trustworthy)", resp.Address, resp.Score), nil
}
