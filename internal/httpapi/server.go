// Package httpapi exposes the LNURL-pay surface over gorilla/mux,
// wrapped in rs/cors for public, cross-origin LNURL-pay clients.
package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/chosanghyuk/dicezap"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"
)

const (
	minSendableMsat uint64 = 1000
	maxSendableMsat uint64 = 11_000_000_000
)

// Server wires the four LNURL-pay routes onto a mux.Router.
type Server struct {
	router  *mux.Router
	intake  *dicezap.Intake
	domain  string
	npub    string
	relays  []string
	botName string
	log     *logrus.Entry
}

// New builds the HTTP surface. domain is the public hostname advertised in
// LNURL descriptors and the nostr.json well-known document; npub is the
// "main" keypair's public identifier; relays is the configured relay list
// advertised for every identity.
func New(intake *dicezap.Intake, domain, botName, npub string, relays []string, log *logrus.Entry) *Server {
	s := &Server{
		router:  mux.NewRouter(),
		intake:  intake,
		domain:  domain,
		npub:    npub,
		relays:  relays,
		botName: botName,
		log:     log,
	}
	s.routes()
	return s
}

// Handler returns the fully wrapped (CORS-enabled) HTTP handler to pass to
// an http.Server.
func (s *Server) Handler() http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet},
	})
	return c.Handler(s.withRequestID(s.router))
}

func (s *Server) routes() {
	s.router.HandleFunc("/.well-known/lnurlp/{name}", s.handleLNURLPay).Methods(http.MethodGet)
	s.router.HandleFunc("/.well-known/nostr.json", s.handleNostrJSON).Methods(http.MethodGet)
	s.router.HandleFunc("/get-invoice-for-game/{hash}", s.handleGameInvoice).Methods(http.MethodGet)
	s.router.HandleFunc("/get-invoice-for-zap/{hash}", s.handleZapInvoice).Methods(http.MethodGet)
}

type lnurlPayDescriptor struct {
	Callback    string `json:"callback"`
	MaxSendable uint64 `json:"maxSendable"`
	MinSendable uint64 `json:"minSendable"`
	Metadata    string `json:"metadata"`
	Tag         string `json:"tag"`
	AllowsNostr bool   `json:"allowsNostr"`
	NostrPubkey string `json:"nostrPubkey"`
}

func (s *Server) handleLNURLPay(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	metadata, err := json.Marshal([][2]string{{"text/plain", fmt.Sprintf("Zap %s to roll the dice", name)}})
	if err != nil {
		s.writeError(w, fmt.Errorf("failed to encode metadata: %w", err))
		return
	}

	writeJSON(w, lnurlPayDescriptor{
		Callback:    fmt.Sprintf("https://%s/get-invoice-for-game/%s", s.domain, name),
		MaxSendable: maxSendableMsat,
		MinSendable: minSendableMsat,
		Metadata:    string(metadata),
		Tag:         "payRequest",
		AllowsNostr: true,
		NostrPubkey: s.npub,
	})
}

type nostrJSONDocument struct {
	Names  map[string]string   `json:"names"`
	Relays map[string][]string `json:"relays"`
}

func (s *Server) handleNostrJSON(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		name = s.botName
	}
	writeJSON(w, nostrJSONDocument{
		Names:  map[string]string{name: s.npub},
		Relays: map[string][]string{s.npub: s.relays},
	})
}

type invoiceResponse struct {
	PR      string   `json:"pr"`
	Routers []string `json:"routers"`
}

// zapRequestWire is the JSON shape of the nostr= query parameter: a signed
// zap-request event, with created_at as a unix timestamp the way the
// social-event protocol encodes it on the wire.
type zapRequestWire struct {
	ID        string     `json:"id"`
	PubKey    string     `json:"pubkey"`
	Kind      int        `json:"kind"`
	Content   string     `json:"content"`
	Tags      [][]string `json:"tags"`
	CreatedAt int64      `json:"created_at"`
	Sig       string     `json:"sig"`
}

func (w zapRequestWire) toEvent() dicezap.Event {
	return dicezap.Event{
		ID:        w.ID,
		PubKey:    w.PubKey,
		Kind:      w.Kind,
		Content:   w.Content,
		Tags:      w.Tags,
		CreatedAt: time.Unix(w.CreatedAt, 0).UTC(),
		Sig:       w.Sig,
	}
}

func parseInvoiceQuery(r *http.Request) (uint64, dicezap.Event, error) {
	amountStr := r.URL.Query().Get("amount")
	if amountStr == "" {
		return 0, dicezap.Event{}, dicezap.NewValidationError("missing amount query parameter")
	}
	amount, err := strconv.ParseUint(amountStr, 10, 64)
	if err != nil {
		return 0, dicezap.Event{}, dicezap.NewValidationError("invalid amount query parameter: %v", err)
	}

	nostrStr := r.URL.Query().Get("nostr")
	if nostrStr == "" {
		return 0, dicezap.Event{}, dicezap.NewValidationError("missing nostr query parameter")
	}
	var wire zapRequestWire
	if err := json.Unmarshal([]byte(nostrStr), &wire); err != nil {
		return 0, dicezap.Event{}, dicezap.NewValidationError("invalid nostr query parameter: %v", err)
	}
	return amount, wire.toEvent(), nil
}

func (s *Server) handleGameInvoice(w http.ResponseWriter, r *http.Request) {
	amountMsat, request, err := parseInvoiceQuery(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	paymentRequest, err := s.intake.RequestGameInvoice(r.Context(), amountMsat, request)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, invoiceResponse{PR: paymentRequest, Routers: []string{}})
}

func (s *Server) handleZapInvoice(w http.ResponseWriter, r *http.Request) {
	amountMsat, request, err := parseInvoiceQuery(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	paymentRequest, err := s.intake.RequestDonationInvoice(r.Context(), amountMsat, request)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, invoiceResponse{PR: paymentRequest, Routers: []string{}})
}

type errorBody struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
}

// writeError always answers 400 with {"status":"ERROR","reason":...}; a
// ValidationError's message is surfaced verbatim, anything else is
// logged and reported generically so no internal detail leaks to the
// caller.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	var verr *dicezap.ValidationError
	reason := "bad request"
	if errors.As(err, &verr) {
		reason = verr.Error()
	} else {
		s.log.WithError(err).Warn("invoice request failed")
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	_ = json.NewEncoder(w).Encode(errorBody{Status: "ERROR", Reason: reason})
}

func writeJSON(w http.ResponseWriter, body any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(body)
}
