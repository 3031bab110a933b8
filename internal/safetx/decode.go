package safetx

import (
	"fmt"
	"math/big"
	"strings"
)

// ActionKind tags the semantic classification of a pending transaction.
type ActionKind string

const (
	ActionAddOwner        ActionKind = "add_owner"
	ActionRemoveOwner     ActionKind = "remove_owner"
	ActionChangeThreshold ActionKind = "change_threshold"
	ActionEnableModule    ActionKind = "enable_module"
	ActionTokenTransfer   ActionKind = "token_transfer"
	ActionGenericCall     ActionKind = "generic_call"
)

// Action is the classification of exactly one pending transaction.
// Which fields are meaningful depends on Kind; the zero value of the
// rest is left in place.
type Action struct {
	Kind ActionKind

	// Owner management
	Owner        string
	NewThreshold int

	// Module management
	Module string

	// Transfers
	Destination string
	Amount      *big.Int

	// Generic calls and decoded token transfers
	Method     string
	ParamCount int
}

// slot locates a decoded parameter, by name where the upstream decoder
// provides names and by position otherwise. Positions follow the Safe
// contract ABI.
type slot struct {
	name  string
	index int
}

// methodRule declares how a known Safe (or ERC20) method maps onto an
// Action. One table entry per method keeps the positional indexing in a
// single place instead of scattered per call site.
type methodRule struct {
	kind      ActionKind
	address   *slot // owner, module, or transfer destination
	threshold *slot
	amount    *slot
}

var methodTable = map[string]methodRule{
	"addOwnerWithThreshold": {
		kind:      ActionAddOwner,
		address:   &slot{name: "owner", index: 0},
		threshold: &slot{name: "_threshold", index: 1},
	},
	"removeOwner": {
		kind:      ActionRemoveOwner,
		address:   &slot{name: "owner", index: 1},
		threshold: &slot{name: "_threshold", index: 2},
	},
	"changeThreshold": {
		kind:      ActionChangeThreshold,
		threshold: &slot{name: "_threshold", index: 0},
	},
	"enableModule": {
		kind:    ActionEnableModule,
		address: &slot{name: "module", index: 0},
	},
	"transfer": {
		kind:    ActionTokenTransfer,
		address: &slot{name: "to", index: 0},
		amount:  &slot{name: "value", index: 1},
	},
}

// Classify maps a pending transaction onto exactly one Action. It is pure
// and total: unrecognised or undecodable payloads fall back to
// ActionGenericCall, and an undecoded nonzero-value transaction with no
// payload is a plain native-token transfer.
func Classify(tx *PendingTransaction) Action {
	if m := tx.DecodedMethod(); m != "" {
		if rule, ok := methodTable[m]; ok {
			return applyRule(tx, m, rule)
		}
	}

	if tx.ValueWei().Sign() > 0 && !tx.HasData() {
		return Action{
			Kind:        ActionTokenTransfer,
			Destination: tx.To,
			Amount:      tx.ValueWei(),
		}
	}

	a := Action{Kind: ActionGenericCall, Method: tx.DecodedMethod()}
	if tx.DataDecoded != nil {
		a.ParamCount = len(tx.DataDecoded.Parameters)
	}
	return a
}

func applyRule(tx *PendingTransaction, method string, rule methodRule) Action {
	params := tx.DataDecoded.Parameters
	a := Action{Kind: rule.kind, Method: method, ParamCount: len(params)}

	if rule.address != nil {
		addr := paramString(params, *rule.address)
		switch rule.kind {
		case ActionAddOwner, ActionRemoveOwner:
			a.Owner = addr
		case ActionEnableModule:
			a.Module = addr
		case ActionTokenTransfer:
			a.Destination = addr
		}
	}
	if rule.threshold != nil {
		a.NewThreshold = paramInt(params, *rule.threshold)
	}
	if rule.amount != nil {
		if v, ok := new(big.Int).SetString(paramString(params, *rule.amount), 10); ok {
			a.Amount = v
		}
	}
	return a
}

// paramString resolves a slot to its string value. Name match wins over
// position; a missing parameter resolves to "".
func paramString(params []Param, s slot) string {
	for _, p := range params {
		if p.Name != "" && strings.EqualFold(p.Name, s.name) {
			return valueString(p.Value)
		}
	}
	if s.index >= 0 && s.index < len(params) {
		return valueString(params[s.index].Value)
	}
	return ""
}

func paramInt(params []Param, s slot) int {
	str := paramString(params, s)
	n, ok := new(big.Int).SetString(str, 10)
	if !ok {
		return 0
	}
	return int(n.Int64())
}

func valueString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		// JSON numbers decode as float64; decoded thresholds are small.
		return new(big.Int).SetInt64(int64(t)).String()
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", t)
	}
}
