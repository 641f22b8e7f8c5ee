package utxorpc

import (
	"context"
	"crypto/tls"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"github.com/lightningnetwork/lnd/queue"
	log "github.com/sirupsen/logrus"
	"github.com/tdex-network/custody/internal/core/domain"
	"github.com/tdex-network/custody/internal/core/ports"
	"github.com/tdex-network/custody/pkg/cardano"
	"github.com/tdex-network/custody/pkg/fanout"
	cardanorpc "github.com/utxorpc/go-codegen/utxorpc/v1alpha/cardano"
	"github.com/utxorpc/go-codegen/utxorpc/v1alpha/query"
	"github.com/utxorpc/go-codegen/utxorpc/v1alpha/submit"
	syncrpc "github.com/utxorpc/go-codegen/utxorpc/v1alpha/sync"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
)

const (
	providerName = "utxorpc"
	apiKeyHeader = "dmtr-api-key"

	searchUtxosMethod = "/utxorpc.v1alpha.query.QueryService/SearchUtxos"
	readParamsMethod  = "/utxorpc.v1alpha.query.QueryService/ReadParams"
	submitTxMethod    = "/utxorpc.v1alpha.submit.SubmitService/SubmitTx"
	followTipMethod   = "/utxorpc.v1alpha.sync.SyncService/FollowTip"

	tipQueueSize = 20
)

var (
	// ErrMissingParams is returned if the endpoint doesn't return cardano
	// protocol params.
	ErrMissingParams = errors.New("endpoint returned no cardano protocol params")

	followTipDesc = &grpc.StreamDesc{
		StreamName:    "FollowTip",
		ServerStreams: true,
	}
)

// Opts ...
type Opts struct {
	Endpoint string
	// APIKey is sent along every call if not empty.
	APIKey   string
	Insecure bool
	// DialOptions are appended to the default ones.
	DialOptions []grpc.DialOption
}

func (o Opts) validate() error {
	if o.Endpoint == "" {
		return fmt.Errorf("missing endpoint")
	}
	return nil
}

type provider struct {
	conn *grpc.ClientConn
}

// NewProvider returns a ChainProvider talking to a UTxO RPC endpoint. The
// connection is established lazily by the first call.
func NewProvider(opts Opts) (ports.ChainProvider, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	creds := credentials.NewTLS(&tls.Config{MinVersion: tls.VersionTLS12})
	if opts.Insecure {
		creds = insecure.NewCredentials()
	}
	dialOpts := []grpc.DialOption{
		grpc.WithTransportCredentials(creds),
		unaryInterceptor(opts.APIKey),
		streamInterceptor(opts.APIKey),
	}
	dialOpts = append(dialOpts, opts.DialOptions...)

	conn, err := grpc.Dial(opts.Endpoint, dialOpts...)
	if err != nil {
		return nil, err
	}
	return &provider{conn}, nil
}

func (p *provider) GetUtxos(
	ctx context.Context, address string,
) ([]domain.Utxo, error) {
	addr, err := cardano.ParseAddress(address)
	if err != nil {
		return nil, err
	}

	req := &query.SearchUtxosRequest{
		Predicate: &query.UtxoPredicate{
			Match: &query.AnyUtxoPattern{
				UtxoPattern: &query.AnyUtxoPattern_Cardano{
					Cardano: &cardanorpc.TxOutputPattern{
						Address: &cardanorpc.AddressPattern{ExactAddress: addr.Bytes()},
					},
				},
			},
		},
	}
	utxos := make([]domain.Utxo, 0)
	for {
		res := &query.SearchUtxosResponse{}
		if err := p.conn.Invoke(ctx, searchUtxosMethod, req, res); err != nil {
			return nil, fmt.Errorf("failed to search utxos: %w", err)
		}
		for _, item := range res.GetItems() {
			utxo, err := toUtxo(item)
			if err != nil {
				return nil, err
			}
			utxos = append(utxos, utxo)
		}
		next := res.GetNextToken()
		if next == "" || next == req.GetStartToken() {
			break
		}
		req.StartToken = next
	}

	domain.SortUtxos(utxos)
	return utxos, nil
}

func (p *provider) GetUtxosForAddresses(
	ctx context.Context, addresses []string,
) ([]domain.Utxo, error) {
	return fanout.Utxos(ctx, addresses, fanout.DefaultLimit, p.GetUtxos)
}

func (p *provider) GetBalance(ctx context.Context, address string) (uint64, error) {
	utxos, err := p.GetUtxos(ctx, address)
	if err != nil {
		return 0, err
	}
	return domain.TotalValue(utxos), nil
}

func (p *provider) GetAssets(
	ctx context.Context, address string,
) ([]domain.Asset, error) {
	utxos, err := p.GetUtxos(ctx, address)
	if err != nil {
		return nil, err
	}
	return domain.AggregateAssets(utxos), nil
}

// IsAddressUsed reports whether the address currently holds any unspent.
// The query service doesn't index spent outputs.
func (p *provider) IsAddressUsed(ctx context.Context, address string) (bool, error) {
	utxos, err := p.GetUtxos(ctx, address)
	if err != nil {
		return false, err
	}
	return len(utxos) > 0, nil
}

func (p *provider) GetProtocolParams(
	ctx context.Context,
) (*domain.ProtocolParams, error) {
	res := &query.ReadParamsResponse{}
	if err := p.conn.Invoke(ctx, readParamsMethod, &query.ReadParamsRequest{}, res); err != nil {
		return nil, fmt.Errorf("failed to read protocol params: %w", err)
	}
	params := res.GetValues().GetCardano()
	if params == nil {
		return nil, ErrMissingParams
	}
	return &domain.ProtocolParams{
		MinFeeA:          params.GetMinFeeCoefficient(),
		MinFeeB:          params.GetMinFeeConstant(),
		CoinsPerUtxoByte: params.GetCoinsPerUtxoByte(),
		MaxTxSize:        params.GetMaxTxSize(),
	}, nil
}

func (p *provider) Submit(ctx context.Context, signedTx []byte) (string, error) {
	req := &submit.SubmitTxRequest{
		Tx: []*submit.AnyChainTx{{Type: &submit.AnyChainTx_Raw{Raw: signedTx}}},
	}
	res := &submit.SubmitTxResponse{}
	if err := p.conn.Invoke(ctx, submitTxMethod, req, res); err != nil {
		return "", fmt.Errorf("failed to submit tx: %w", err)
	}
	if refs := res.GetRef(); len(refs) > 0 && len(refs[0]) > 0 {
		return hex.EncodeToString(refs[0]), nil
	}
	return cardano.TxHashFromBytes(signedTx)
}

// FollowTip opens the tip stream. Events are buffered in an unbounded queue
// so that a slow consumer never stalls the stream. The subscription is
// finished with the error that ended the stream, nil if the server closed
// it, or the context error if cancelled.
func (p *provider) FollowTip(ctx context.Context) (*domain.TipSubscription, error) {
	ctx, cancel := context.WithCancel(ctx)
	stream, err := p.conn.NewStream(ctx, followTipDesc, followTipMethod)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to open tip stream: %w", err)
	}
	if err := stream.SendMsg(&syncrpc.FollowTipRequest{}); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to open tip stream: %w", err)
	}
	if err := stream.CloseSend(); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to open tip stream: %w", err)
	}

	sub := domain.NewTipSubscription(cancel)
	events := queue.NewConcurrentQueue(tipQueueSize)
	events.Start()

	go receiveTip(ctx, stream, events)
	go forwardTip(ctx, events, sub)

	return sub, nil
}

func (p *provider) Close() {
	if err := p.conn.Close(); err != nil {
		log.WithError(err).Debug("failed to close utxorpc connection")
	}
}

// tipEnd is the last item pushed to the queue of events.
type tipEnd struct {
	err error
}

func receiveTip(
	ctx context.Context, stream grpc.ClientStream, events *queue.ConcurrentQueue,
) {
	push := func(item interface{}) bool {
		select {
		case events.ChanIn() <- item:
			return true
		case <-ctx.Done():
			return false
		}
	}

	for {
		res := &syncrpc.FollowTipResponse{}
		if err := stream.RecvMsg(res); err != nil {
			if ctx.Err() != nil {
				err = ctx.Err()
			} else if errors.Is(err, io.EOF) {
				err = nil
			}
			push(tipEnd{err})
			return
		}

		ev, ok := toTipEvent(res)
		if !ok {
			log.Debug("skipping tip event without block reference")
			continue
		}
		if !push(ev) {
			return
		}
	}
}

// forwardTip drains the queue into the subscription and always finishes it.
func forwardTip(
	ctx context.Context, events *queue.ConcurrentQueue, sub *domain.TipSubscription,
) {
	defer events.Stop()
	defer sub.Close()

	for {
		select {
		case item := <-events.ChanOut():
			switch v := item.(type) {
			case tipEnd:
				sub.Finish(v.err)
				return
			case domain.TipEvent:
				if !sub.Publish(ctx, v) {
					sub.Finish(ctx.Err())
					return
				}
			}
		case <-ctx.Done():
			sub.Finish(ctx.Err())
			return
		}
	}
}
