package bitcoinwallet

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/tdex-network/custody/internal/core/domain"
	"github.com/tdex-network/custody/internal/core/ports"
	"github.com/tyler-smith/go-bip39"
)

const (
	// Purpose is the BIP-84 purpose of native segwit wallets.
	Purpose uint32 = 84

	// DustLimit is the min value of a P2WPKH output.
	DustLimit = 546
	// MinFeeRate in sat/vbyte.
	MinFeeRate = 1.0

	txOverheadVSize   = 11
	p2wpkhInputVSize  = 68
	outputBaseVSize   = 9
	p2wpkhOutputVSize = 31
)

var (
	// ErrInvalidMnemonic ...
	ErrInvalidMnemonic = errors.New("mnemonic is invalid")
	// ErrForeignInput is returned when signing a tx that spends outputs not
	// locked by the signing key.
	ErrForeignInput = errors.New("transaction spends an input not owned by the signing key")
	// ErrOutputBelowDust ...
	ErrOutputBelowDust = errors.New("output amount is below the dust limit")
	// ErrInvalidTx ...
	ErrInvalidTx = errors.New("invalid transaction")
)

type chainWallet struct{}

// NewChainWallet returns the BIP-84 Bitcoin strategy. Addresses are native
// segwit P2WPKH.
func NewChainWallet() ports.ChainWallet {
	return chainWallet{}
}

func (chainWallet) Chain() domain.Chain {
	return domain.ChainBitcoin
}

func (w chainWallet) DeriveChainData(
	seed []byte, info domain.ChainInfo, account, index uint32, isChange bool,
) (*domain.DerivedAddress, error) {
	if err := w.validateInfo(info); err != nil {
		return nil, err
	}
	if account > domain.MaxAccountIndex {
		return nil, domain.ErrInvalidAccountIndex
	}

	var change uint32
	if isChange {
		change = 1
	}
	key, err := deriveKey(seed, info, account, change, index)
	if err != nil {
		return nil, err
	}
	defer key.Zero()

	addr, pubkey, err := p2wpkhAddress(key, netParams(info))
	if err != nil {
		return nil, err
	}

	return &domain.DerivedAddress{
		Address:        addr.EncodeAddress(),
		DerivationPath: derivationPath(info, account, change, index),
		PublicKey:      pubkey,
	}, nil
}

// BuildTransaction selects the largest utxos of from until the outputs plus
// the fee, estimated on the tx vsize with the provider fee rate, are
// covered. Change below the dust limit is left to the fee.
func (w chainWallet) BuildTransaction(
	ctx context.Context, info domain.ChainInfo, from string,
	req domain.TxRequest, provider ports.ChainProvider,
) (*domain.UnsignedTx, error) {
	if err := w.validateInfo(info); err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if len(req.Metadata) > 0 {
		return nil, fmt.Errorf("%w: bitcoin tx metadata", domain.ErrNotSupported)
	}

	params := netParams(info)
	changeAddr := req.ChangeAddress
	if changeAddr == "" {
		changeAddr = from
	}
	changeScript, err := payToAddrScript(changeAddr, params)
	if err != nil {
		return nil, err
	}

	tx := wire.NewMsgTx(wire.TxVersion)
	var target int64
	for _, out := range req.Outputs {
		if len(out.Assets) > 0 {
			return nil, fmt.Errorf("%w: bitcoin native assets", domain.ErrNotSupported)
		}
		if out.Amount < DustLimit {
			return nil, ErrOutputBelowDust
		}
		script, err := payToAddrScript(out.Address, params)
		if err != nil {
			return nil, err
		}
		tx.AddTxOut(wire.NewTxOut(int64(out.Amount), script))
		target += int64(out.Amount)
	}

	utxos, err := provider.GetUtxos(ctx, from)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch utxos: %w", err)
	}
	protocolParams, err := provider.GetProtocolParams(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch fee rate: %w", err)
	}
	feeRate := protocolParams.FeeRate
	if feeRate < MinFeeRate {
		feeRate = MinFeeRate
	}

	sorted := make([]domain.Utxo, len(utxos))
	copy(sorted, utxos)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Value > sorted[j].Value
	})

	outputsVSize := txOverheadVSize
	for _, out := range tx.TxOut {
		outputsVSize += outputBaseVSize + len(out.PkScript)
	}

	var (
		selected []domain.Utxo
		total    int64
		fee      int64
		change   int64
	)
	for _, u := range sorted {
		selected = append(selected, u)
		total += int64(u.Value)

		vsize := outputsVSize + len(selected)*p2wpkhInputVSize
		fee = feeFor(vsize, feeRate)
		if total < target+fee {
			continue
		}
		feeWithChange := feeFor(vsize+p2wpkhOutputVSize, feeRate)
		change = total - target - feeWithChange
		if change >= DustLimit {
			fee = feeWithChange
		} else {
			change = 0
			fee = total - target
		}
		break
	}
	if total < target+fee || len(selected) <= 0 {
		return nil, domain.ErrInsufficientFunds
	}

	for _, u := range selected {
		hash, err := chainhash.NewHashFromStr(u.TxHash)
		if err != nil {
			return nil, fmt.Errorf("%w: utxo %s", ErrInvalidTx, u.Key())
		}
		tx.AddTxIn(wire.NewTxIn(wire.NewOutPoint(hash, u.OutputIndex), nil, nil))
	}
	if change > 0 {
		tx.AddTxOut(wire.NewTxOut(change, changeScript))
	}

	var buf bytes.Buffer
	if err := tx.Serialize(&buf); err != nil {
		return nil, err
	}

	return &domain.UnsignedTx{
		Chain:  domain.ChainBitcoin,
		Body:   buf.Bytes(),
		Fee:    uint64(fee),
		Inputs: selected,
		Summary: domain.TxSummary{
			TotalInput:  uint64(total),
			TotalOutput: uint64(target),
			Fee:         uint64(fee),
			Change:      uint64(change),
			Size:        buf.Len(),
		},
	}, nil
}

// Sign adds a witness to every input with the external key at index of
// account. Inputs are expected in the same order as unsigned.Inputs.
func (w chainWallet) Sign(
	unsigned *domain.UnsignedTx, seed []byte, info domain.ChainInfo,
	account, index uint32,
) ([]byte, error) {
	if err := w.validateInfo(info); err != nil {
		return nil, err
	}
	if unsigned == nil || unsigned.Chain != domain.ChainBitcoin {
		return nil, ErrInvalidTx
	}

	tx := wire.NewMsgTx(wire.TxVersion)
	if err := tx.Deserialize(bytes.NewReader(unsigned.Body)); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidTx, err)
	}
	if len(tx.TxIn) != len(unsigned.Inputs) {
		return nil, fmt.Errorf("%w: inputs mismatch", ErrInvalidTx)
	}

	params := netParams(info)
	key, err := deriveKey(seed, info, account, 0, index)
	if err != nil {
		return nil, err
	}
	defer key.Zero()

	addr, _, err := p2wpkhAddress(key, params)
	if err != nil {
		return nil, err
	}
	ownScript, err := txscript.PayToAddrScript(addr)
	if err != nil {
		return nil, err
	}

	prevOuts := make(map[wire.OutPoint]*wire.TxOut, len(tx.TxIn))
	for i, in := range tx.TxIn {
		u := unsigned.Inputs[i]
		if in.PreviousOutPoint.Hash.String() != u.TxHash ||
			in.PreviousOutPoint.Index != u.OutputIndex {
			return nil, fmt.Errorf("%w: input %d mismatch", ErrInvalidTx, i)
		}
		script := ownScript
		if u.Address != "" {
			if script, err = payToAddrScript(u.Address, params); err != nil {
				return nil, err
			}
		}
		if !bytes.Equal(script, ownScript) {
			return nil, fmt.Errorf("%w: %s", ErrForeignInput, u.Key())
		}
		prevOuts[in.PreviousOutPoint] = wire.NewTxOut(int64(u.Value), script)
	}

	privKey, err := key.ECPrivKey()
	if err != nil {
		return nil, err
	}
	defer privKey.Zero()

	fetcher := txscript.NewMultiPrevOutFetcher(prevOuts)
	sigHashes := txscript.NewTxSigHashes(tx, fetcher)
	for i, in := range tx.TxIn {
		prevOut := prevOuts[in.PreviousOutPoint]
		witness, err := txscript.WitnessSignature(
			tx, sigHashes, i, prevOut.Value, prevOut.PkScript,
			txscript.SigHashAll, privKey, true,
		)
		if err != nil {
			return nil, err
		}
		in.Witness = witness
	}

	var buf bytes.Buffer
	if err := tx.Serialize(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (chainWallet) validateInfo(info domain.ChainInfo) error {
	if err := info.Validate(); err != nil {
		return err
	}
	if info.Chain != domain.ChainBitcoin {
		return fmt.Errorf("%w: %s", domain.ErrUnknownChain, info.Chain)
	}
	return nil
}

func netParams(info domain.ChainInfo) *chaincfg.Params {
	if info.IsMainnet() {
		return &chaincfg.MainNetParams
	}
	return &chaincfg.TestNet3Params
}

func coinType(info domain.ChainInfo) uint32 {
	if info.IsMainnet() {
		return 0
	}
	return 1
}

func derivationPath(info domain.ChainInfo, account, change, index uint32) string {
	return fmt.Sprintf(
		"m/%d'/%d'/%d'/%d/%d", Purpose, coinType(info), account, change, index,
	)
}

// deriveKey returns the key at m/84'/coin'/account'/change/index.
// Intermediate keys are wiped.
func deriveKey(
	seed []byte, info domain.ChainInfo, account, change, index uint32,
) (*hdkeychain.ExtendedKey, error) {
	mnemonic := string(seed)
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, ErrInvalidMnemonic
	}
	bip32Seed := bip39.NewSeed(mnemonic, "")
	defer clear(bip32Seed)

	key, err := hdkeychain.NewMaster(bip32Seed, netParams(info))
	if err != nil {
		return nil, err
	}

	path := []uint32{
		hdkeychain.HardenedKeyStart + Purpose,
		hdkeychain.HardenedKeyStart + coinType(info),
		hdkeychain.HardenedKeyStart + account,
		change,
		index,
	}
	for _, step := range path {
		child, err := key.Derive(step)
		key.Zero()
		if err != nil {
			return nil, err
		}
		key = child
	}
	return key, nil
}

func p2wpkhAddress(
	key *hdkeychain.ExtendedKey, params *chaincfg.Params,
) (*btcutil.AddressWitnessPubKeyHash, []byte, error) {
	pubkey, err := key.ECPubKey()
	if err != nil {
		return nil, nil, err
	}
	compressed := pubkey.SerializeCompressed()
	addr, err := btcutil.NewAddressWitnessPubKeyHash(
		btcutil.Hash160(compressed), params,
	)
	if err != nil {
		return nil, nil, err
	}
	return addr, compressed, nil
}

func payToAddrScript(addr string, params *chaincfg.Params) ([]byte, error) {
	decoded, err := btcutil.DecodeAddress(addr, params)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", addr, err)
	}
	if !decoded.IsForNet(params) {
		return nil, fmt.Errorf("%s is not a %s address", addr, params.Name)
	}
	return txscript.PayToAddrScript(decoded)
}

func feeFor(vsize int, feeRate float64) int64 {
	fee := int64(float64(vsize)*feeRate + 0.5)
	if fee < int64(vsize) {
		return int64(vsize)
	}
	return fee
}
