package lndclient

import (
	"context"

	"google.golang.org/grpc/metadata"
)

// metadataWithMacaroon attaches the hex-encoded macaroon LND expects on
// the "macaroon" gRPC metadata key.
func metadataWithMacaroon(ctx context.Context, macHex string) context.Context {
	return metadata.AppendToOutgoingContext(ctx, "macaroon", macHex)
}
