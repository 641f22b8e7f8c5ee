package cardanowallet

import (
	"context"
	"errors"
	"fmt"

	"github.com/tdex-network/custody/internal/core/domain"
	"github.com/tdex-network/custody/internal/core/ports"
	"github.com/tdex-network/custody/pkg/cardano"
)

var (
	// ErrForeignInput is returned when signing a tx that spends outputs not
	// locked by the signing key.
	ErrForeignInput = errors.New("transaction spends an input not owned by the signing key")
)

type chainWallet struct{}

// NewChainWallet returns the CIP-1852 Cardano strategy. The seed it's given
// is the BIP-39 mnemonic stored in the vault.
func NewChainWallet() ports.ChainWallet {
	return chainWallet{}
}

func (chainWallet) Chain() domain.Chain {
	return domain.ChainCardano
}

// DeriveChainData returns the base address of
// m/1852'/1815'/account'/role/index along with the reward address of the
// account's staking key.
func (w chainWallet) DeriveChainData(
	seed []byte, info domain.ChainInfo, account, index uint32, isChange bool,
) (*domain.DerivedAddress, error) {
	if err := w.validateInfo(info); err != nil {
		return nil, err
	}
	if account > domain.MaxAccountIndex {
		return nil, domain.ErrInvalidAccountIndex
	}

	role := cardano.RoleExternal
	if isChange {
		role = cardano.RoleInternal
	}

	root, err := cardano.NewRootKeyFromMnemonic(string(seed))
	if err != nil {
		return nil, err
	}
	defer root.Zero()

	accountKey := root.DerivePath(cardano.AccountPath(account))
	defer accountKey.Zero()
	paymentKey := accountKey.DerivePath(cardano.DerivationPath{uint32(role), index})
	defer paymentKey.Zero()
	stakeKey := accountKey.DerivePath(
		cardano.DerivationPath{uint32(cardano.RoleStaking), 0},
	)
	defer stakeKey.Zero()

	net := network(info)
	addr, err := cardano.NewBaseAddress(
		net, paymentKey.PublicKeyHash(), stakeKey.PublicKeyHash(),
	)
	if err != nil {
		return nil, err
	}
	stakeAddr, err := cardano.NewRewardAddress(net, stakeKey.PublicKeyHash())
	if err != nil {
		return nil, err
	}

	return &domain.DerivedAddress{
		Address:        addr.String(),
		StakingAddress: stakeAddr.String(),
		DerivationPath: cardano.KeyPath(account, role, index).String(),
		PublicKey:      paymentKey.PublicKey(),
	}, nil
}

// BuildTransaction spends the utxos of from to pay the requested outputs.
// Change goes to req.ChangeAddress, or back to from if empty.
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

	changeAddr := req.ChangeAddress
	if changeAddr == "" {
		changeAddr = from
	}
	change, err := parseAddress(changeAddr, info)
	if err != nil {
		return nil, err
	}
	for _, out := range req.Outputs {
		if _, err := parseAddress(out.Address, info); err != nil {
			return nil, err
		}
		if _, err := toValue(out.Amount, out.Assets); err != nil {
			return nil, err
		}
	}
	metadata := cardano.Metadata(req.Metadata)
	if err := metadata.Validate(); err != nil {
		return nil, err
	}

	utxos, err := provider.GetUtxos(ctx, from)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch utxos: %w", err)
	}
	for i := range utxos {
		if utxos[i].Address == "" {
			utxos[i].Address = from
		}
	}
	params, err := provider.GetProtocolParams(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch protocol params: %w", err)
	}

	draft := txDraft{
		params:   params,
		outputs:  req.Outputs,
		change:   change,
		ttl:      req.TTL,
		metadata: metadata,
	}
	tx, spent, err := draft.selectAndBuild(utxos)
	if err != nil {
		return nil, err
	}

	body := tx.Bytes()
	fee := uint64(tx.Body.Fee)
	summary := domain.TxSummary{
		TotalInput: domain.TotalValue(spent),
		Fee:        fee,
		Assets:     requestedAssets(req.Outputs),
		Size:       len(body),
	}
	for _, out := range req.Outputs {
		summary.TotalOutput += out.Amount
	}
	// Any output past the requested ones is the change added by the toolkit.
	for _, out := range tx.Body.Outputs[len(req.Outputs):] {
		summary.Change += uint64(out.Amount.Coin)
	}

	return &domain.UnsignedTx{
		Chain:   domain.ChainCardano,
		Body:    body,
		Fee:     fee,
		Inputs:  spent,
		Summary: summary,
	}, nil
}

// Sign witnesses the transaction with the external payment key at index of
// account. Every input must be locked by that key. The body built by the
// toolkit is kept byte for byte, only the witness set is replaced.
func (w chainWallet) Sign(
	unsigned *domain.UnsignedTx, seed []byte, info domain.ChainInfo,
	account, index uint32,
) ([]byte, error) {
	if err := w.validateInfo(info); err != nil {
		return nil, err
	}
	if unsigned == nil || unsigned.Chain != domain.ChainCardano {
		return nil, cardano.ErrInvalidTx
	}
	tx, err := cardano.DecodeTx(unsigned.Body)
	if err != nil {
		return nil, err
	}

	root, err := cardano.NewRootKeyFromMnemonic(string(seed))
	if err != nil {
		return nil, err
	}
	defer root.Zero()
	key := root.DerivePath(cardano.KeyPath(account, cardano.RoleExternal, index))
	defer key.Zero()

	keyHash := key.PublicKeyHash()
	for _, in := range unsigned.Inputs {
		if in.Address == "" {
			continue
		}
		addr, err := cardano.ParseAddress(in.Address)
		if err != nil {
			return nil, err
		}
		if string(addr.PaymentKeyHash()) != string(keyHash) {
			return nil, fmt.Errorf("%w: %s", ErrForeignInput, in.Key())
		}
	}

	tx.SetWitnesses(cardano.VKeyWitness{
		VKey:      key.PublicKey(),
		Signature: key.Sign(tx.ID()),
	})
	return tx.Bytes()
}

func (chainWallet) validateInfo(info domain.ChainInfo) error {
	if err := info.Validate(); err != nil {
		return err
	}
	if info.Chain != domain.ChainCardano {
		return fmt.Errorf("%w: %s", domain.ErrUnknownChain, info.Chain)
	}
	return nil
}

func network(info domain.ChainInfo) cardano.Network {
	if info.IsMainnet() {
		return cardano.Mainnet
	}
	return cardano.Testnet
}

func parseAddress(addr string, info domain.ChainInfo) (cardano.Address, error) {
	parsed, err := cardano.ParseAddress(addr)
	if err != nil {
		return cardano.Address{}, fmt.Errorf("%s: %w", addr, err)
	}
	if !parsed.IsByron() && parsed.Network() != network(info) {
		return cardano.Address{}, fmt.Errorf(
			"%w: %s is not a %s address", cardano.ErrInvalidAddress, addr, info,
		)
	}
	return parsed, nil
}

func requestedAssets(outputs []domain.TxOutput) []domain.Asset {
	utxos := make([]domain.Utxo, 0, len(outputs))
	for _, out := range outputs {
		utxos = append(utxos, domain.Utxo{Assets: out.Assets})
	}
	return domain.AggregateAssets(utxos)
}
