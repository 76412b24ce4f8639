package solana

import "context"

// RPCClient defines the Solana RPC HTTP interface used by ingestion.
type RPCClient interface {
	// GetTransaction retrieves a transaction by signature.
	GetTransaction(ctx context.Context, signature string) (*Transaction, error)

	// GetSignaturesForAddress retrieves signatures for an address with pagination.
	GetSignaturesForAddress(ctx context.Context, address string, opts *SignaturesOpts) ([]SignatureInfo, error)
}

// Transaction represents a Solana transaction.
type Transaction struct {
	Slot      int64
	Signature string
	BlockTime int64 // Unix timestamp (seconds)
	Meta      *TransactionMeta
	Message   *TransactionMessage
}

// TransactionMeta contains transaction metadata.
type TransactionMeta struct {
	Err                  interface{}
	Fee                  uint64
	ComputeUnitsConsumed uint64
	PreBalances          []uint64
	PostBalances         []uint64
	LogMessages          []string
}

// TransactionMessage contains the parsed transaction message.
type TransactionMessage struct {
	AccountKeys      []string
	InstructionCount int
}

// Success reports whether the transaction executed without error.
func (t *Transaction) Success() bool {
	return t.Meta == nil || t.Meta.Err == nil
}

// FeePayerBalanceChange returns the lamport delta of the fee payer
// account, or 0 when balance metadata is missing.
func (t *Transaction) FeePayerBalanceChange() int64 {
	if t.Meta == nil || len(t.Meta.PreBalances) == 0 || len(t.Meta.PostBalances) == 0 {
		return 0
	}
	return int64(t.Meta.PostBalances[0]) - int64(t.Meta.PreBalances[0])
}

// LogMessages returns the transaction's log lines, nil-safe.
func (t *Transaction) LogMessages() []string {
	if t.Meta == nil {
		return nil
	}
	return t.Meta.LogMessages
}
