package grpcx

import (
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
)

type ClientOptions struct {
	// Nil means plaintext, which is what the in-cluster deployment uses.
	Credentials credentials.TransportCredentials
}

// NewClient builds a lazily connecting client with tracing and request id
// propagation. The connection is established on the first RPC.
func NewClient(target string, opts ClientOptions, extra ...grpc.DialOption) (*grpc.ClientConn, error) {
	creds := opts.Credentials
	if creds == nil {
		creds = insecure.NewCredentials()
	}
	dialOpts := []grpc.DialOption{
		grpc.WithTransportCredentials(creds),
		grpc.WithStatsHandler(otelgrpc.NewClientHandler()),
		grpc.WithChainUnaryInterceptor(UnaryClientRequestID()),
	}
	return grpc.NewClient(target, append(dialOpts, extra...)...)
}
