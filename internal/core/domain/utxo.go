package domain

import (
	"fmt"
	"sort"
)

// Asset is a native asset held by an output. Name is hex encoded.
type Asset struct {
	PolicyID string `json:"policyId"`
	Name     string `json:"name"`
	Quantity uint64 `json:"quantity"`
}

// Unit returns the policy id followed by the hex asset name.
func (a Asset) Unit() string {
	return a.PolicyID + a.Name
}

// Utxo is an unspent output as read from the chain. Its identity is the pair
// (TxHash, OutputIndex).
type Utxo struct {
	TxHash      string  `json:"txHash"`
	OutputIndex uint32  `json:"outputIndex"`
	Value       uint64  `json:"value"`
	Address     string  `json:"address,omitempty"`
	Assets      []Asset `json:"assets,omitempty"`
}

// Key ...
func (u Utxo) Key() string {
	return fmt.Sprintf("%s:%d", u.TxHash, u.OutputIndex)
}

// TotalValue sums the coin value of the given utxos.
func TotalValue(utxos []Utxo) uint64 {
	var total uint64
	for _, u := range utxos {
		total += u.Value
	}
	return total
}

// AggregateAssets sums the quantities of the utxos' assets by unit. The
// result is sorted by unit.
func AggregateAssets(utxos []Utxo) []Asset {
	byUnit := make(map[string]*Asset)
	for _, u := range utxos {
		for _, a := range u.Assets {
			if agg, ok := byUnit[a.Unit()]; ok {
				agg.Quantity += a.Quantity
				continue
			}
			asset := a
			byUnit[a.Unit()] = &asset
		}
	}

	assets := make([]Asset, 0, len(byUnit))
	for _, a := range byUnit {
		assets = append(assets, *a)
	}
	SortAssets(assets)
	return assets
}

// SortAssets ...
func SortAssets(assets []Asset) {
	sort.Slice(assets, func(i, j int) bool {
		return assets[i].Unit() < assets[j].Unit()
	})
}

// SortUtxos orders utxos by identity.
func SortUtxos(utxos []Utxo) {
	sort.Slice(utxos, func(i, j int) bool {
		if utxos[i].TxHash != utxos[j].TxHash {
			return utxos[i].TxHash < utxos[j].TxHash
		}
		return utxos[i].OutputIndex < utxos[j].OutputIndex
	})
}
