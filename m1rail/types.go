package m1rail

// Record mirrors the settlement rail's native HTLC3S record, returned
// by htlc3s_get/htlc3s_list. Field names follow the RPC's own JSON
// keys rather than Go convention translation tables, matching the
// Python reference client's M1HTLC3SRecord.
type Record struct {
	Outpoint            string `json:"outpoint"`
	HashlockUser        string `json:"hashlock_user"`
	HashlockLp1         string `json:"hashlock_lp1"`
	HashlockLp2         string `json:"hashlock_lp2"`
	Amount              int64  `json:"amount"`
	ClaimAddress        string `json:"claim_address"`
	RefundAddress       string `json:"refund_address"`
	CreateHeight        int64  `json:"create_height"`
	ExpiryHeight        int64  `json:"expiry_height"`
	Status              string `json:"status"`
	ResolveTxID         string `json:"resolve_txid,omitempty"`
	HasCovenant         bool   `json:"has_covenant"`
	CovenantDestAddress string `json:"covenant_dest_address,omitempty"`
}

// CreateResult is returned by CreateHTLC.
type CreateResult struct {
	TxID         string `json:"txid"`
	HTLCOutpoint string `json:"htlc_outpoint"`
	Amount       int64  `json:"amount"`
	ExpiryHeight int64  `json:"expiry_height"`
	HasCovenant  bool   `json:"has_covenant"`
}

// ClaimResult is returned by Claim and Refund.
type ClaimResult struct {
	TxID            string `json:"txid"`
	ReceiptOutpoint string `json:"receipt_outpoint"`
	Amount          int64  `json:"amount"`
}

// CovenantParams optionally forces the claimed output of a per-leg
// covenanted HTLC to a fixed destination.
type CovenantParams struct {
	TemplateCommitment  string
	CovenantDestAddress string
}
