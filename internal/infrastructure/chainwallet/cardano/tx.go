package cardanowallet

import (
	"encoding/hex"
	"errors"
	"fmt"
	"sort"

	cardanogo "github.com/echovl/cardano-go"
	cardanocrypto "github.com/echovl/cardano-go/crypto"
	"github.com/tdex-network/custody/internal/core/domain"
	"github.com/tdex-network/custody/pkg/cardano"
)

// utxoWordLen is the size in bytes of the word the toolkit prices min utxo
// values with.
const utxoWordLen = 8

var (
	// ErrTxTooLarge is returned when the selection needed to fund the request
	// serializes over the max tx size of the network.
	ErrTxTooLarge = errors.New("transaction exceeds max size")

	// feeKey signs the drafts so that the fee accounts for the witness size.
	// The real witness replaces it at signing time.
	feeKey = cardanocrypto.NewXPrvKeyFromEntropy(make([]byte, 16), "").PrvKey()
)

// txDraft holds everything the toolkit needs apart from the inputs.
type txDraft struct {
	params   *domain.ProtocolParams
	outputs  []domain.TxOutput
	change   cardano.Address
	ttl      uint64
	metadata cardano.Metadata
}

// build assembles and balances a tx spending the given utxos. The toolkit
// computes the fee, the min utxo value of every output and the change.
func (d txDraft) build(utxos []domain.Utxo) (*cardanogo.Tx, error) {
	builder := cardanogo.NewTxBuilder(&cardanogo.ProtocolParams{
		MinFeeA:          cardanogo.Coin(d.params.MinFeeA),
		MinFeeB:          cardanogo.Coin(d.params.MinFeeB),
		CoinsPerUTXOWord: cardanogo.Coin(d.params.CoinsPerUtxoByte * utxoWordLen),
	})

	for _, u := range utxos {
		in, err := toTxInput(u)
		if err != nil {
			return nil, err
		}
		builder.AddInputs(in)
	}
	for _, out := range d.outputs {
		txOut, err := toTxOutput(out)
		if err != nil {
			return nil, err
		}
		builder.AddOutputs(txOut)
	}
	if d.ttl > 0 {
		builder.SetTTL(d.ttl)
	}
	if len(d.metadata) > 0 {
		metadata := make(cardanogo.Metadata, len(d.metadata))
		for label, value := range d.metadata {
			metadata[uint(label)] = value
		}
		builder.AddAuxiliaryData(&cardanogo.AuxiliaryData{Metadata: metadata})
	}

	change, err := toAddress(d.change)
	if err != nil {
		return nil, err
	}
	builder.AddChangeIfNeeded(change)
	builder.Sign(feeKey)

	return builder.Build()
}

// selectAndBuild grows the selection from the smallest prefix of utxos that
// covers the requested value, one input at a time, until the toolkit can
// balance the tx.
func (d txDraft) selectAndBuild(
	utxos []domain.Utxo,
) (*cardanogo.Tx, []domain.Utxo, error) {
	ordered := sortUtxos(utxos, d.outputs)
	start, ok := coveringPrefix(ordered, d.outputs)
	if !ok {
		return nil, nil, domain.ErrInsufficientFunds
	}

	var lastErr error
	for n := start; n <= len(ordered); n++ {
		selected := ordered[:n]
		tx, err := d.build(selected)
		if err != nil {
			lastErr = err
			continue
		}
		if d.params.MaxTxSize > 0 && uint64(len(tx.Bytes())) > d.params.MaxTxSize {
			return nil, nil, fmt.Errorf(
				"%w: %d inputs needed", ErrTxTooLarge, len(selected),
			)
		}
		return tx, selected, nil
	}
	return nil, nil, fmt.Errorf("%w: %w", domain.ErrInsufficientFunds, lastErr)
}

// sortUtxos puts the utxos holding any of the requested assets first, then
// the others by descending coin.
func sortUtxos(utxos []domain.Utxo, outputs []domain.TxOutput) []domain.Utxo {
	wanted := make(map[string]bool)
	for _, a := range requestedAssets(outputs) {
		wanted[a.Unit()] = true
	}
	holdsWanted := func(u domain.Utxo) bool {
		for _, a := range u.Assets {
			if wanted[a.Unit()] {
				return true
			}
		}
		return false
	}

	ordered := append([]domain.Utxo(nil), utxos...)
	sort.SliceStable(ordered, func(i, j int) bool {
		wi, wj := holdsWanted(ordered[i]), holdsWanted(ordered[j])
		if wi != wj {
			return wi
		}
		return ordered[i].Value > ordered[j].Value
	})
	return ordered
}

// coveringPrefix returns the length of the shortest prefix of utxos holding
// at least the coin and assets of outputs.
func coveringPrefix(utxos []domain.Utxo, outputs []domain.TxOutput) (int, bool) {
	var coin uint64
	needed := make(map[string]uint64)
	for _, out := range outputs {
		coin += out.Amount
	}
	for _, a := range requestedAssets(outputs) {
		needed[a.Unit()] = a.Quantity
	}

	var total uint64
	held := make(map[string]uint64)
	for i, u := range utxos {
		total += u.Value
		for _, a := range u.Assets {
			held[a.Unit()] += a.Quantity
		}
		if total < coin {
			continue
		}
		covered := true
		for unit, qty := range needed {
			if held[unit] < qty {
				covered = false
				break
			}
		}
		if covered {
			return i + 1, true
		}
	}
	return 0, false
}

func toTxInput(u domain.Utxo) (*cardanogo.TxInput, error) {
	hash, err := cardanogo.NewHash32(u.TxHash)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", cardano.ErrInvalidTx, u.Key())
	}
	value, err := toValue(u.Value, u.Assets)
	if err != nil {
		return nil, err
	}
	return cardanogo.NewTxInput(hash, uint(u.OutputIndex), value), nil
}

func toTxOutput(out domain.TxOutput) (*cardanogo.TxOutput, error) {
	parsed, err := cardano.ParseAddress(out.Address)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", out.Address, err)
	}
	addr, err := toAddress(parsed)
	if err != nil {
		return nil, err
	}
	value, err := toValue(out.Amount, out.Assets)
	if err != nil {
		return nil, err
	}
	return cardanogo.NewTxOutput(addr, value), nil
}

func toAddress(addr cardano.Address) (cardanogo.Address, error) {
	converted, err := cardanogo.NewAddressFromBytes(addr.Bytes())
	if err != nil {
		return cardanogo.Address{}, fmt.Errorf(
			"%w: %s: %s", cardano.ErrUnsupportedAddress, addr, err,
		)
	}
	return converted, nil
}

// toValue converts a coin amount and hex encoded assets to a toolkit value.
func toValue(coin uint64, assets []domain.Asset) (*cardanogo.Value, error) {
	aggregated := domain.AggregateAssets([]domain.Utxo{{Assets: assets}})
	if len(aggregated) == 0 {
		return cardanogo.NewValue(cardanogo.Coin(coin)), nil
	}

	groups := make(map[string]*cardanogo.Assets)
	policies := make(map[string]cardanogo.PolicyID)
	for _, a := range aggregated {
		if err := validateAsset(a); err != nil {
			return nil, err
		}
		group, ok := groups[a.PolicyID]
		if !ok {
			hash, err := cardanogo.NewHash28(a.PolicyID)
			if err != nil {
				return nil, fmt.Errorf("%w: policy id %q", cardano.ErrInvalidValue, a.PolicyID)
			}
			group = cardanogo.NewAssets()
			groups[a.PolicyID] = group
			policies[a.PolicyID] = cardanogo.NewPolicyIDFromHash(hash)
		}
		name, _ := hex.DecodeString(a.Name)
		group.Set(cardanogo.NewAssetName(string(name)), cardanogo.BigNum(a.Quantity))
	}

	multiAsset := cardanogo.NewMultiAsset()
	for policyID, group := range groups {
		multiAsset.Set(policies[policyID], group)
	}
	return cardanogo.NewValueWithAssets(cardanogo.Coin(coin), multiAsset), nil
}

// validateAsset checks the hex encoding of policy id and name.
func validateAsset(a domain.Asset) error {
	value := cardano.NewValue(0)
	return value.AddAsset(a.PolicyID, a.Name, a.Quantity)
}
