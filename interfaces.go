package dicezap

import "context"

// InvoiceState mirrors the Lightning invoice lifecycle that drives a bet's
// state machine: Open -> Accepted|Canceled, Open -> Settled.
type InvoiceState string

const (
	InvoiceOpen     InvoiceState = "open"
	InvoiceAccepted InvoiceState = "accepted"
	InvoiceSettled  InvoiceState = "settled"
	InvoiceCanceled InvoiceState = "canceled"
)

// InvoiceUpdate is one observation delivered by a LightningClient's
// invoice subscription.
type InvoiceUpdate struct {
	PaymentHash string
	State       InvoiceState
	AmountMsat  uint64
}

// LightningClient is the narrow capability this service needs from a
// Lightning node: bet intake mints invoices with AddInvoice, and the
// daemon feeds SubscribeInvoices into the settlement handler. No domain
// component calls SendPayment; winners are paid through
// EventTransport.Zap. It is kept to three methods deliberately: anything
// wider would leak node-specific concerns into domain code.
type LightningClient interface {
	// AddInvoice mints a new invoice for amountMsat with the given memo,
	// expiring after expirySeconds and advertising private channels as
	// route hints when privateRouteHints is set. Returns the BOLT11
	// payment request string and its payment hash.
	AddInvoice(ctx context.Context, amountMsat uint64, memo string, expirySeconds int64, privateRouteHints bool) (paymentRequest string, paymentHash string, err error)

	// SubscribeInvoices streams settlement-relevant state transitions for
	// every invoice on the node from the given add index onward. The
	// channel is closed when ctx is canceled or the subscription fails
	// permanently.
	SubscribeInvoices(ctx context.Context, sinceAddIndex uint64) (<-chan InvoiceUpdate, error)

	// SendPayment pays the given BOLT11 invoice, blocking until the
	// payment either succeeds or definitively fails. Implementations
	// enforce their own send timeout and fee cap.
	SendPayment(ctx context.Context, paymentRequest string) error
}

// EventTransport is the narrow capability needed to publish and exchange
// social-event-protocol messages: announcing commitments and receipts,
// paying a player directly by their public identifier, and messaging
// players directly. Kept to three methods deliberately: anything wider
// would leak relay/wallet-specific concerns into domain code.
type EventTransport interface {
	// Publish broadcasts a signed event and returns its id.
	Publish(ctx context.Context, event Event) (eventID string, err error)

	// Zap pays amountSat to recipientPubkey's Lightning address,
	// attaching message as the payment's description. This is the
	// outbound payout path for a round's winners.
	Zap(ctx context.Context, recipientPubkey string, amountSat uint64, message string) (ok bool, err error)

	// SendDirectMessage delivers an encrypted direct message to
	// recipientPubkey, used to tell a roller the outcome of their bet.
	SendDirectMessage(ctx context.Context, recipientPubkey string, content string) error
}
