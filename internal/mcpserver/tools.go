package mcpserver

import "github.com/mark3labs/mcp-go/mcp"

// Tool definitions for the SafeSentry MCP server.
// Descriptions are what the LLM reads to decide which tool to use.

var ToolAnalyzeTransaction = mcp.NewTool("analyze_pending_transaction",
	mcp.WithDescription(
		"Run a risk analysis on a pending Safe multisig transaction before approving it. "+
			"Explains what the transaction does (owner changes, transfers, contract calls) "+
			"and flags risk factors such as high-value transfers, unverified destination "+
			"contracts, and low-reputation addresses. Always use this before confirming a "+
			"transaction you did not propose yourself."),
	mcp.WithString("safe_address",
		mcp.Required(),
		mcp.Description("The Safe account address (e.g. '0x1234...')")),
	mcp.WithString("safe_tx_hash",
		mcp.Required(),
		mcp.Description("The pending transaction's safeTxHash (0x + 64 hex chars)")),
)

var ToolListPending = mcp.NewTool("list_pending_transactions",
	mcp.WithDescription(
		"List a Safe's pending multisig transactions awaiting confirmations. "+
			"Returns each transaction's hash, destination, value, decoded method, and "+
			"confirmation progress. Use this to find the safeTxHash for analyze_pending_transaction."),
	mcp.WithString("safe_address",
		mcp.Required(),
		mcp.Description("The Safe account address (e.g. '0x1234...')")),
)

var ToolGetSafeInfo = mcp.NewTool("get_safe_info",
	mcp.WithDescription(
		"Get a Safe's current configuration: owner addresses, confirmation threshold, "+
			"and native-token balance."),
	mcp.WithString("safe_address",
		mcp.Required(),
		mcp.Description("The Safe account address (e.g. '0x1234...')")),
)

var ToolListAnalyses = mcp.NewTool("list_past_analyses",
	mcp.WithDescription(
		"List recent risk analyses recorded for a Safe, most recent first. "+
			"Each entry shows when the analysis ran, what kind of action the transaction "+
			"was, and the worst severity found. Use this to review what has already been checked."),
	mcp.WithString("safe_address",
		mcp.Required(),
		mcp.Description("The Safe account address (e.g. '0x1234...')")),
	mcp.WithNumber("limit",
		mcp.Description("Maximum number of entries to return (default 20, max 100)")),
)

var ToolGetReputation = mcp.NewTool("get_address_reputation",
	mcp.WithDescription(
		"Get the reputation score (0-100, higher is more trustworthy) for any address "+
			"from the configured reputation service. Useful before adding an owner or "+
			"sending funds to an unfamiliar address."),
	mcp.WithString("address",
		mcp.Required(),
		mcp.Description("The address to score (e.g. '0x1234...')")),
)
