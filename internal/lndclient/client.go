// Package lndclient implements dicezap.LightningClient against a real LND
// node over its gRPC interface, authenticated with a TLS certificate and a
// macaroon.
package lndclient

import (
	"context"
	"crypto/x509"
	"encoding/hex"
	"fmt"
	"os"
	"time"

	"github.com/chosanghyuk/dicezap"
	"github.com/lightningnetwork/lnd/lnrpc"
	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"gopkg.in/macaroon.v2"
)

// payoutFeeLimitSat bounds the routing fee a payout is allowed to spend,
// and payoutTimeout bounds how long a payout waits for a route.
const (
	payoutFeeLimitSat = 100
	payoutTimeout      = 60 * time.Second
)

// Config names the connection parameters for an LND node.
type Config struct {
	Address      string
	TLSCertPath  string
	MacaroonPath string
}

// Client adapts lnrpc.LightningClient to dicezap.LightningClient.
type Client struct {
	conn   *grpc.ClientConn
	rpc    lnrpc.LightningClient
	log    *logrus.Entry
	macHex string
}

// Dial opens a gRPC connection to the node described by cfg.
func Dial(cfg Config, log *logrus.Entry) (*Client, error) {
	certBytes, err := os.ReadFile(cfg.TLSCertPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read TLS cert %s: %w", cfg.TLSCertPath, err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(certBytes) {
		return nil, fmt.Errorf("failed to parse TLS cert %s", cfg.TLSCertPath)
	}

	macBytes, err := os.ReadFile(cfg.MacaroonPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read macaroon %s: %w", cfg.MacaroonPath, err)
	}
	var mac macaroon.Macaroon
	if err := mac.UnmarshalBinary(macBytes); err != nil {
		return nil, fmt.Errorf("failed to unmarshal macaroon %s: %w", cfg.MacaroonPath, err)
	}

	creds := credentials.NewClientTLSFromCert(pool, "")
	conn, err := grpc.NewClient(cfg.Address, grpc.WithTransportCredentials(creds))
	if err != nil {
		return nil, fmt.Errorf("failed to dial lnd at %s: %w", cfg.Address, err)
	}

	return &Client{
		conn:   conn,
		rpc:    lnrpc.NewLightningClient(conn),
		log:    log,
		macHex: hex.EncodeToString(macBytes),
	}, nil
}

// Close tears down the underlying gRPC connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) withMacaroon(ctx context.Context) context.Context {
	return metadataWithMacaroon(ctx, c.macHex)
}

// AddInvoice implements dicezap.LightningClient.
func (c *Client) AddInvoice(ctx context.Context, amountMsat uint64, memo string, expirySeconds int64, privateRouteHints bool) (string, string, error) {
	resp, err := c.rpc.AddInvoice(c.withMacaroon(ctx), &lnrpc.Invoice{
		Memo:      memo,
		ValueMsat: int64(amountMsat),
		Expiry:    expirySeconds,
		Private:   privateRouteHints,
	})
	if err != nil {
		return "", "", fmt.Errorf("failed to add invoice: %w", err)
	}
	return resp.PaymentRequest, hex.EncodeToString(resp.RHash), nil
}

// SubscribeInvoices implements dicezap.LightningClient.
func (c *Client) SubscribeInvoices(ctx context.Context, sinceAddIndex uint64) (<-chan dicezap.InvoiceUpdate, error) {
	stream, err := c.rpc.SubscribeInvoices(c.withMacaroon(ctx), &lnrpc.InvoiceSubscription{
		AddIndex: sinceAddIndex,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to invoices: %w", err)
	}

	updates := make(chan dicezap.InvoiceUpdate)
	go func() {
		defer close(updates)
		for {
			inv, err := stream.Recv()
			if err != nil {
				c.log.WithError(err).Warn("invoice subscription ended")
				return
			}
			update, ok := toInvoiceUpdate(inv)
			if !ok {
				continue
			}
			select {
			case updates <- update:
			case <-ctx.Done():
				return
			}
		}
	}()
	return updates, nil
}

func toInvoiceUpdate(inv *lnrpc.Invoice) (dicezap.InvoiceUpdate, bool) {
	var state dicezap.InvoiceState
	switch inv.State {
	case lnrpc.Invoice_OPEN:
		state = dicezap.InvoiceOpen
	case lnrpc.Invoice_ACCEPTED:
		state = dicezap.InvoiceAccepted
	case lnrpc.Invoice_SETTLED:
		state = dicezap.InvoiceSettled
	case lnrpc.Invoice_CANCELED:
		state = dicezap.InvoiceCanceled
	default:
		return dicezap.InvoiceUpdate{}, false
	}
	return dicezap.InvoiceUpdate{
		PaymentHash: hex.EncodeToString(inv.RHash),
		State:       state,
		AmountMsat:  uint64(inv.ValueMsat),
	}, true
}

// SendPayment implements dicezap.LightningClient. It uses the synchronous
// legacy SendPaymentSync RPC, which blocks until the payment succeeds or
// fails: a payment here is a single-shot transfer that doesn't need the
// richer retry/routing semantics of routerrpc.SendPaymentV2. Every payment is capped at payoutFeeLimitSat
// in routing fees and payoutTimeout to find a route.
func (c *Client) SendPayment(ctx context.Context, paymentRequest string) error {
	ctx, cancel := context.WithTimeout(ctx, payoutTimeout)
	defer cancel()

	resp, err := c.rpc.SendPaymentSync(c.withMacaroon(ctx), &lnrpc.SendRequest{
		PaymentRequest: paymentRequest,
		FeeLimit: &lnrpc.FeeLimit{
			Limit: &lnrpc.FeeLimit_Fixed{Fixed: payoutFeeLimitSat},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to send payment: %w", err)
	}
	if resp.PaymentError != "" {
		return fmt.Errorf("payment failed: %s", resp.PaymentError)
	}
	return nil
}

var _ dicezap.LightningClient = (*Client)(nil)
