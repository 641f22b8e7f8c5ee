package utxorpc

import (
	"encoding/hex"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/tdex-network/custody/internal/core/domain"
	"github.com/tdex-network/custody/pkg/cardano"
	cardanorpc "github.com/utxorpc/go-codegen/utxorpc/v1alpha/cardano"
	"github.com/utxorpc/go-codegen/utxorpc/v1alpha/query"
	syncrpc "github.com/utxorpc/go-codegen/utxorpc/v1alpha/sync"
)

// ErrMalformedUtxo is returned for a search result that carries neither a
// decodable native output nor a parsed one.
var ErrMalformedUtxo = errors.New("malformed utxo in search result")

// toUtxo maps a search result preferring the native cbor encoding of the
// output over its parsed form, used as fallback.
func toUtxo(item *query.AnyUtxoData) (domain.Utxo, error) {
	ref := item.GetTxoRef()
	if len(ref.GetHash()) == 0 {
		return domain.Utxo{}, fmt.Errorf("%w: missing output reference", ErrMalformedUtxo)
	}
	utxo := domain.Utxo{
		TxHash:      hex.EncodeToString(ref.GetHash()),
		OutputIndex: ref.GetIndex(),
	}

	if native := item.GetNativeBytes(); len(native) > 0 {
		out, err := cardano.DecodeTxOutput(native)
		if err == nil {
			utxo.Address = out.Address.String()
			utxo.Value = out.Amount.Coin
			utxo.Assets = assetsFromValue(out.Amount)
			return utxo, nil
		}
		log.WithError(err).Debugf(
			"failed to decode native output %s, using parsed one", utxo.Key(),
		)
	}

	parsed := item.GetCardano()
	if parsed == nil {
		return domain.Utxo{}, fmt.Errorf("%w: %s", ErrMalformedUtxo, utxo.Key())
	}
	addr, err := cardano.AddressFromBytes(parsed.GetAddress())
	if err != nil {
		return domain.Utxo{}, fmt.Errorf("%w: %s: %s", ErrMalformedUtxo, utxo.Key(), err)
	}
	utxo.Address = addr.String()
	utxo.Value = parsed.GetCoin()
	utxo.Assets = assetsFromParsed(parsed.GetAssets())
	return utxo, nil
}

func assetsFromValue(v cardano.Value) []domain.Asset {
	units := v.Units()
	if len(units) <= 0 {
		return nil
	}
	assets := make([]domain.Asset, 0, len(units))
	for _, unit := range units {
		assets = append(assets, domain.Asset{
			PolicyID: unit.PolicyID,
			Name:     unit.Name,
			Quantity: v.Quantity(unit),
		})
	}
	return assets
}

func assetsFromParsed(multiassets []*cardanorpc.Multiasset) []domain.Asset {
	assets := make([]domain.Asset, 0)
	for _, ma := range multiassets {
		policyID := hex.EncodeToString(ma.GetPolicyId())
		for _, a := range ma.GetAssets() {
			if a.GetOutputCoin() == 0 {
				continue
			}
			assets = append(assets, domain.Asset{
				PolicyID: policyID,
				Name:     hex.EncodeToString(a.GetName()),
				Quantity: a.GetOutputCoin(),
			})
		}
	}
	if len(assets) <= 0 {
		return nil
	}
	domain.SortAssets(assets)
	return assets
}

// toTipEvent maps a tip action. Only cardano blocks carry a reference, a
// reset points at a slot without a height.
func toTipEvent(res *syncrpc.FollowTipResponse) (domain.TipEvent, bool) {
	var (
		action domain.TipAction
		header *cardanorpc.BlockHeader
	)
	switch {
	case res.GetApply() != nil:
		action, header = domain.TipActionApply, res.GetApply().GetCardano().GetHeader()
	case res.GetUndo() != nil:
		action, header = domain.TipActionUndo, res.GetUndo().GetCardano().GetHeader()
	case res.GetReset_() != nil:
		ref := res.GetReset_()
		return domain.TipEvent{
			Action: domain.TipActionReset,
			Slot:   ref.GetIndex(),
			Hash:   hex.EncodeToString(ref.GetHash()),
		}, true
	}
	if header == nil {
		return domain.TipEvent{}, false
	}
	return domain.TipEvent{
		Action: action,
		Slot:   header.GetSlot(),
		Hash:   hex.EncodeToString(header.GetHash()),
		Height: header.GetHeight(),
	}, true
}
