package domain

// TxOutput is a requested payment. Assets are only supported by chains with
// native multi-asset outputs.
type TxOutput struct {
	Address string  `json:"address"`
	Amount  uint64  `json:"amount"`
	Assets  []Asset `json:"assets,omitempty"`
}

// TxRequest describes a transaction to build. ChangeAddress is filled in by
// the wallet when empty.
type TxRequest struct {
	Outputs       []TxOutput             `json:"outputs"`
	ChangeAddress string                 `json:"changeAddress,omitempty"`
	Metadata      map[uint64]interface{} `json:"metadata,omitempty"`
	TTL           uint64                 `json:"ttl,omitempty"`
}

// Validate ...
func (r TxRequest) Validate() error {
	if len(r.Outputs) <= 0 {
		return ErrNullOutputs
	}
	for _, out := range r.Outputs {
		if out.Address == "" {
			return ErrNullAddress
		}
	}
	return nil
}

// TxSummary is a human oriented recap of a built transaction.
type TxSummary struct {
	TotalInput  uint64  `json:"totalInput"`
	TotalOutput uint64  `json:"totalOutput"`
	Fee         uint64  `json:"fee"`
	Change      uint64  `json:"change"`
	Assets      []Asset `json:"assets,omitempty"`
	Size        int     `json:"size"`
}

// UnsignedTx is the chain specific serialization of a transaction to be
// signed along with the spent outputs.
type UnsignedTx struct {
	Chain   Chain     `json:"chain"`
	Body    []byte    `json:"body"`
	Fee     uint64    `json:"fee"`
	Inputs  []Utxo    `json:"inputs"`
	Summary TxSummary `json:"summary"`
}

// ProtocolParams are the network parameters a ChainWallet needs to compute
// fees. Linear fee params apply to Cardano, FeeRate (sat/vbyte) to Bitcoin.
type ProtocolParams struct {
	MinFeeA          uint64  `json:"minFeeA,omitempty"`
	MinFeeB          uint64  `json:"minFeeB,omitempty"`
	CoinsPerUtxoByte uint64  `json:"coinsPerUtxoByte,omitempty"`
	MaxTxSize        uint64  `json:"maxTxSize,omitempty"`
	FeeRate          float64 `json:"feeRate,omitempty"`
}

// DerivedAddress is the output of a ChainWallet derivation.
type DerivedAddress struct {
	Address        string `json:"address"`
	StakingAddress string `json:"stakingAddress,omitempty"`
	DerivationPath string `json:"derivationPath"`
	PublicKey      []byte `json:"publicKey,omitempty"`
}
