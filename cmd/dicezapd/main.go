// Command dicezapd runs the commit-reveal Lightning dice engine: the
// HTTP/LNURL surface, the invoice-settlement consumer, the nonce
// manager, and the social summary poster, wired together and driven by
// one shutdown signal.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/chosanghyuk/dicezap"
	"github.com/chosanghyuk/dicezap/configs"
	"github.com/chosanghyuk/dicezap/internal/httpapi"
	"github.com/chosanghyuk/dicezap/internal/lndclient"
	"github.com/chosanghyuk/dicezap/internal/logging"
	"github.com/chosanghyuk/dicezap/internal/social"
	"github.com/chosanghyuk/dicezap/internal/store"
	"github.com/chosanghyuk/dicezap/internal/transport"
	"github.com/chosanghyuk/dicezap/pkg/keys"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func main() {
	// Loaded before app.Run so the flags' EnvVars see the .env values.
	if err := configs.LoadDotEnv(".env"); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	app := &cli.App{
		Name:  "dicezapd",
		Usage: "commit-reveal Lightning dice engine",
		Flags: configs.Flags(),
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	cfg, err := configs.FromContext(c)
	if err != nil {
		return fmt.Errorf("failed to resolve configuration: %w", err)
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("failed to create data dir %s: %w", cfg.DataDir, err)
	}

	log := logging.New(logrus.InfoLevel, cfg.DataDir+"/dicezapd.log")

	db, err := store.Open(cfg.StorePath())
	if err != nil {
		return dicezap.NewFatalError("open_store", err)
	}
	defer db.Close()

	mainKey, err := keys.Load(cfg.KeyPath("main"))
	if err != nil {
		return dicezap.NewFatalError("load_main_key", err)
	}
	nonceKey, err := keys.Load(cfg.KeyPath("nonce"))
	if err != nil {
		return dicezap.NewFatalError("load_nonce_key", err)
	}
	socialKey, err := keys.Load(cfg.KeyPath("social"))
	if err != nil {
		return dicezap.NewFatalError("load_social_key", err)
	}

	multipliers, maxBet, err := configs.LoadMultipliers(cfg.MultiplierFile)
	if err != nil {
		return dicezap.NewFatalError("load_multipliers", err)
	}

	lnd, err := lndclient.Dial(lndclient.Config{
		Address:      cfg.LNDAddress(),
		TLSCertPath:  cfg.TLSCertPath,
		MacaroonPath: cfg.MacaroonPath,
	}, logging.Component(log, "lndclient"))
	if err != nil {
		return dicezap.NewFatalError("dial_lnd", err)
	}
	defer lnd.Close()

	nonceTransport := transport.NewMemoryTransport(nonceKey.Private, logging.Component(log, "transport"))
	socialTransport := transport.NewMemoryTransport(socialKey.Private, logging.Component(log, "social-transport"))

	payouts := dicezap.NewPayoutDispatcher(db, nonceTransport, multipliers, logging.Component(log, "payout"))
	intake := dicezap.NewIntake(db, lnd, multipliers, maxBet, cfg.RevealAfter, cfg.UseRouteHints)
	settlement := dicezap.NewSettlement(db, nonceTransport, payouts, logging.Component(log, "settlement"))
	nonceManager := dicezap.NewNonceManager(db, nonceTransport, payouts, logging.Component(log, "nonce-manager"), cfg.ExpireAfter, cfg.RevealAfter, nonceKey.Npub)
	summaryPoster := social.NewPoster(db, socialTransport, socialKey.Npub, time.Hour, 24*time.Hour, logging.Component(log, "social"))

	server := httpapi.New(intake, cfg.Domain, cfg.BotName, mainKey.Npub, cfg.Relays, logging.Component(log, "httpapi"))
	httpServer := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.BindAddress, cfg.Port),
		Handler: server.Handler(),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := nonceManager.Recover(ctx); err != nil {
		log.WithError(err).Error("startup recovery failed")
	}

	updates, err := lnd.SubscribeInvoices(ctx, 0)
	if err != nil {
		return dicezap.NewFatalError("subscribe_invoices", err)
	}

	go nonceManager.Run(ctx)
	go settlement.Run(ctx, updates)
	go summaryPoster.Run(ctx)
	go func() {
		log.WithField("addr", httpServer.Addr).Info("listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("http server stopped unexpectedly")
		}
	}()

	<-ctx.Done()
	log.Info("shutdown signal received, draining")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}
