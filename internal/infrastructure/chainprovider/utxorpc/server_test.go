package utxorpc

import (
	"context"
	"encoding/hex"
	"net"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	cardanorpc "github.com/utxorpc/go-codegen/utxorpc/v1alpha/cardano"
	"github.com/utxorpc/go-codegen/utxorpc/v1alpha/query"
	"github.com/utxorpc/go-codegen/utxorpc/v1alpha/submit"
	syncrpc "github.com/utxorpc/go-codegen/utxorpc/v1alpha/sync"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/test/bufconn"
)

// fakeServer implements the subset of the utxorpc services used by the
// provider.
type fakeServer struct {
	lock sync.Mutex

	// utxos are the pages of search results by hex address.
	utxos     map[string][][]*query.AnyUtxoData
	params    *cardanorpc.PParams
	searches  []*query.SearchUtxosRequest
	submitted [][]byte
	submitRef []byte
	tip       []*syncrpc.FollowTipResponse
	// tipHold keeps the stream open after sending tip until the client
	// goes away.
	tipHold bool
	apiKeys []string
	err     error
}

func newFakeServer() *fakeServer {
	return &fakeServer{utxos: make(map[string][][]*query.AnyUtxoData)}
}

func (s *fakeServer) recordAPIKey(ctx context.Context) {
	s.lock.Lock()
	defer s.lock.Unlock()

	md, _ := metadata.FromIncomingContext(ctx)
	s.apiKeys = append(s.apiKeys, md.Get(apiKeyHeader)...)
}

func (s *fakeServer) searchUtxos(
	ctx context.Context, req *query.SearchUtxosRequest,
) (*query.SearchUtxosResponse, error) {
	s.recordAPIKey(ctx)
	if s.err != nil {
		return nil, s.err
	}
	s.lock.Lock()
	s.searches = append(s.searches, req)
	s.lock.Unlock()

	address := req.GetPredicate().GetMatch().GetCardano().GetAddress().GetExactAddress()
	pages := s.utxos[hex.EncodeToString(address)]
	page := 0
	if token := req.GetStartToken(); token != "" {
		page = int(token[0] - '0')
	}
	res := &query.SearchUtxosResponse{}
	if page < len(pages) {
		res.Items = pages[page]
	}
	if page+1 < len(pages) {
		res.NextToken = string(rune('0' + page + 1))
	}
	return res, nil
}

func (s *fakeServer) readParams(ctx context.Context) (*query.ReadParamsResponse, error) {
	s.recordAPIKey(ctx)
	if s.err != nil {
		return nil, s.err
	}
	res := &query.ReadParamsResponse{}
	if s.params != nil {
		res.Values = &query.AnyChainParams{
			Params: &query.AnyChainParams_Cardano{Cardano: s.params},
		}
	}
	return res, nil
}

func (s *fakeServer) submitTx(
	ctx context.Context, req *submit.SubmitTxRequest,
) (*submit.SubmitTxResponse, error) {
	s.recordAPIKey(ctx)
	if s.err != nil {
		return nil, s.err
	}

	s.lock.Lock()
	defer s.lock.Unlock()
	for _, tx := range req.GetTx() {
		s.submitted = append(s.submitted, tx.GetRaw())
	}

	res := &submit.SubmitTxResponse{}
	if s.submitRef != nil {
		res.Ref = [][]byte{s.submitRef}
	}
	return res, nil
}

func (s *fakeServer) followTip(stream grpc.ServerStream) error {
	s.recordAPIKey(stream.Context())
	req := &syncrpc.FollowTipRequest{}
	if err := stream.RecvMsg(req); err != nil {
		return err
	}
	for _, res := range s.tip {
		if err := stream.SendMsg(res); err != nil {
			return err
		}
	}
	if s.tipHold {
		<-stream.Context().Done()
		return stream.Context().Err()
	}
	return s.err
}

func (s *fakeServer) register(server *grpc.Server) {
	server.RegisterService(&grpc.ServiceDesc{
		ServiceName: "utxorpc.v1alpha.query.QueryService",
		HandlerType: (*interface{})(nil),
		Methods: []grpc.MethodDesc{
			{MethodName: "SearchUtxos", Handler: searchUtxosHandler},
			{MethodName: "ReadParams", Handler: readParamsHandler},
		},
	}, s)
	server.RegisterService(&grpc.ServiceDesc{
		ServiceName: "utxorpc.v1alpha.submit.SubmitService",
		HandlerType: (*interface{})(nil),
		Methods: []grpc.MethodDesc{
			{MethodName: "SubmitTx", Handler: submitTxHandler},
		},
	}, s)
	server.RegisterService(&grpc.ServiceDesc{
		ServiceName: "utxorpc.v1alpha.sync.SyncService",
		HandlerType: (*interface{})(nil),
		Streams: []grpc.StreamDesc{
			{
				StreamName:    "FollowTip",
				ServerStreams: true,
				Handler: func(srv interface{}, stream grpc.ServerStream) error {
					return srv.(*fakeServer).followTip(stream)
				},
			},
		},
	}, s)
}

func searchUtxosHandler(
	srv interface{}, ctx context.Context, dec func(interface{}) error,
	_ grpc.UnaryServerInterceptor,
) (interface{}, error) {
	req := &query.SearchUtxosRequest{}
	if err := dec(req); err != nil {
		return nil, err
	}
	return srv.(*fakeServer).searchUtxos(ctx, req)
}

func readParamsHandler(
	srv interface{}, ctx context.Context, dec func(interface{}) error,
	_ grpc.UnaryServerInterceptor,
) (interface{}, error) {
	if err := dec(&query.ReadParamsRequest{}); err != nil {
		return nil, err
	}
	return srv.(*fakeServer).readParams(ctx)
}

func submitTxHandler(
	srv interface{}, ctx context.Context, dec func(interface{}) error,
	_ grpc.UnaryServerInterceptor,
) (interface{}, error) {
	req := &submit.SubmitTxRequest{}
	if err := dec(req); err != nil {
		return nil, err
	}
	return srv.(*fakeServer).submitTx(ctx, req)
}

// newTestProvider serves fake over an in-memory connection and returns a
// provider dialing it.
func newTestProvider(t *testing.T, fake *fakeServer, apiKey string) *provider {
	lis := bufconn.Listen(1 << 20)
	server := grpc.NewServer()
	fake.register(server)
	go func() {
		_ = server.Serve(lis)
	}()

	p, err := NewProvider(Opts{
		Endpoint: "bufnet",
		APIKey:   apiKey,
		Insecure: true,
		DialOptions: []grpc.DialOption{
			grpc.WithContextDialer(func(context.Context, string) (net.Conn, error) {
				return lis.Dial()
			}),
		},
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		p.Close()
		server.Stop()
	})
	return p.(*provider)
}
