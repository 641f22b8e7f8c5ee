package domain

import "time"

// MaxAccountIndex is the max unhardened value of an account index.
const MaxAccountIndex uint32 = 1<<31 - 1

// ChainAddressData is the receive address of an account on a given chain and
// network. Change addresses are derived on demand and never stored.
type ChainAddressData struct {
	Chain          Chain      `json:"chain"`
	Network        Network    `json:"network"`
	ReceiveAddress string     `json:"receiveAddress"`
	StakingAddress string     `json:"stakingAddress,omitempty"`
	LastSyncedAt   *time.Time `json:"lastSyncedAt,omitempty"`
}

// Info ...
func (d ChainAddressData) Info() ChainInfo {
	return ChainInfo{Chain: d.Chain, Network: d.Network}
}

// Account is a hardened account of the HD wallet. Accounts are only ever
// appended and their index never changes.
type Account struct {
	Index     uint32                      `json:"index"`
	Name      string                      `json:"name"`
	Avatar    string                      `json:"avatar,omitempty"`
	ChainData map[string]ChainAddressData `json:"chainData"`
	CreatedAt time.Time                   `json:"createdAt"`
}

// NewAccount ...
func NewAccount(index uint32, name string, now time.Time) (*Account, error) {
	if index > MaxAccountIndex {
		return nil, ErrInvalidAccountIndex
	}
	return &Account{
		Index:     index,
		Name:      name,
		ChainData: make(map[string]ChainAddressData),
		CreatedAt: now.UTC(),
	}, nil
}

// SetChainData stores data under its (chain, network) key.
func (a *Account) SetChainData(data ChainAddressData) {
	if a.ChainData == nil {
		a.ChainData = make(map[string]ChainAddressData)
	}
	a.ChainData[data.Info().Key()] = data
}

// GetChainData ...
func (a *Account) GetChainData(info ChainInfo) (ChainAddressData, bool) {
	data, ok := a.ChainData[info.Key()]
	return data, ok
}

// MarkSynced ...
func (a *Account) MarkSynced(info ChainInfo, now time.Time) {
	data, ok := a.GetChainData(info)
	if !ok {
		return
	}
	t := now.UTC()
	data.LastSyncedAt = &t
	a.SetChainData(data)
}
