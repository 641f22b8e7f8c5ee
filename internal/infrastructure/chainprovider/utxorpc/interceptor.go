package utxorpc

import (
	"context"
	"path"
	"time"

	middleware "github.com/grpc-ecosystem/go-grpc-middleware"
	grpc_logrus "github.com/grpc-ecosystem/go-grpc-middleware/logging/logrus"
	log "github.com/sirupsen/logrus"
	"github.com/tdex-network/custody/pkg/stats"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
)

func unaryInterceptor(apiKey string) grpc.DialOption {
	logger := log.WithField("provider", providerName)
	return grpc.WithUnaryInterceptor(
		middleware.ChainUnaryClient(
			unaryAPIKeyHandler(apiKey),
			grpc_logrus.UnaryClientInterceptor(logger),
			unaryMetricsHandler(),
		),
	)
}

func streamInterceptor(apiKey string) grpc.DialOption {
	logger := log.WithField("provider", providerName)
	return grpc.WithStreamInterceptor(
		middleware.ChainStreamClient(
			streamAPIKeyHandler(apiKey),
			grpc_logrus.StreamClientInterceptor(logger),
			streamMetricsHandler(),
		),
	)
}

func withAPIKey(ctx context.Context, apiKey string) context.Context {
	if apiKey == "" {
		return ctx
	}
	return metadata.AppendToOutgoingContext(ctx, apiKeyHeader, apiKey)
}

func unaryAPIKeyHandler(apiKey string) grpc.UnaryClientInterceptor {
	return func(
		ctx context.Context, method string, req, reply interface{},
		cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption,
	) error {
		return invoker(withAPIKey(ctx, apiKey), method, req, reply, cc, opts...)
	}
}

func streamAPIKeyHandler(apiKey string) grpc.StreamClientInterceptor {
	return func(
		ctx context.Context, desc *grpc.StreamDesc, cc *grpc.ClientConn,
		method string, streamer grpc.Streamer, opts ...grpc.CallOption,
	) (grpc.ClientStream, error) {
		return streamer(withAPIKey(ctx, apiKey), desc, cc, method, opts...)
	}
}

func unaryMetricsHandler() grpc.UnaryClientInterceptor {
	return func(
		ctx context.Context, method string, req, reply interface{},
		cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption,
	) error {
		start := time.Now()
		err := invoker(ctx, method, req, reply, cc, opts...)
		stats.RecordProviderRequest(providerName, path.Base(method), start, err)
		return err
	}
}

// streamMetricsHandler only accounts for the opening of the stream.
func streamMetricsHandler() grpc.StreamClientInterceptor {
	return func(
		ctx context.Context, desc *grpc.StreamDesc, cc *grpc.ClientConn,
		method string, streamer grpc.Streamer, opts ...grpc.CallOption,
	) (grpc.ClientStream, error) {
		start := time.Now()
		stream, err := streamer(ctx, desc, cc, method, opts...)
		stats.RecordProviderRequest(providerName, path.Base(method), start, err)
		return stream, err
	}
}
