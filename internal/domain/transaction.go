package domain

import "time"

// TransactionRecord is the envelope for every observed program
// transaction, stored whether or not it carried decodable events.
type TransactionRecord struct {
	Signature        string
	Slot             int64
	BlockTime        time.Time
	Success          bool
	FeeLamports      int64
	ComputeUnits     int64
	InstructionCount int
	LogMessageCount  int
	HasProgramData   bool
	SolBalanceChange int64
	CreatedAt        time.Time
}
