package storefront

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/example/sweetshop-storefront/internal/config"
	"github.com/example/sweetshop-storefront/internal/domain/cart"
	"github.com/example/sweetshop-storefront/internal/domain/inventory"
	"github.com/example/sweetshop-storefront/internal/domain/order"
	"github.com/example/sweetshop-storefront/internal/domain/session"
	"github.com/example/sweetshop-storefront/internal/infrastructure/kafka"
	"github.com/example/sweetshop-storefront/internal/infrastructure/store"
	"github.com/example/sweetshop-storefront/internal/journal"
	"github.com/example/sweetshop-storefront/internal/shopapi"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Options overrides pieces of the wiring, mostly for tests.
type Options struct {
	// KV replaces the configured storage backend.
	KV store.KV
	// HTTPClient replaces the instrumented default client.
	HTTPClient *http.Client
	// Journal replaces the configured publisher.
	Journal journal.Publisher
	// Confirmer completes payment intents in intent mode.
	Confirmer order.Confirmer
}

// Build wires the storefront from configuration and hydrates the cart and
// session from storage. The returned close function is never nil.
func Build(ctx context.Context, cfg *config.Config, log logrus.FieldLogger, opts Options) (*Storefront, func() error, error) {
	var closers []func() error
	closeAll := func() error {
		var errs []error
		for i := len(closers) - 1; i >= 0; i-- {
			errs = append(errs, closers[i]())
		}
		return errors.Join(errs...)
	}

	kv := opts.KV
	if kv == nil {
		opened, closeFn, err := store.Open(ctx, store.Options{
			Backend:     cfg.StorageBackend,
			Dir:         cfg.StorageDir,
			RedisURL:    cfg.RedisURL,
			PostgresDSN: cfg.PostgresDSN,
			DynamoTable: cfg.DynamoTable,
			Profile:     cfg.StorageProfile,
			Secret:      cfg.StorageSecret,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open storage: %w", err)
		}
		kv = opened
		closers = append(closers, closeFn)
	}

	pub := opts.Journal
	if pub == nil {
		if len(cfg.JournalBrokers) > 0 {
			producer := kafka.NewProducer(cfg.JournalBrokers, cfg.JournalTopic)
			closers = append(closers, producer.Close)
			pub = producer
			log.WithField("topic", cfg.JournalTopic).Info("journal publishing to kafka")
		} else {
			pub = journal.Nop{}
		}
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   cfg.RequestTimeout,
		}
	}

	api := shopapi.New(shopapi.Options{
		BaseURL:            cfg.BackendURL,
		HTTPClient:         httpClient,
		BreakerMaxFailures: cfg.BreakerMaxFailures,
		BreakerOpenTimeout: cfg.BreakerOpenTimeout,
		Logger:             log,
	})

	holder := session.NewHolder(kv, api, log)
	api.SetTokenSource(holder)

	gate := inventory.NewGate(api, log)
	cartStore := cart.NewStore(kv, gate, pub, log)

	var payment order.PaymentStep
	switch cfg.PaymentMode {
	case config.PaymentModeIntent:
		payment = order.NewIntentPayment(api, opts.Confirmer)
	default:
		payment = order.NewMarkPaid(api)
	}
	submitter := order.NewSubmitter(order.Deps{
		Cart:    cartStore,
		Session: holder,
		API:     api,
		Payment: payment,
		Journal: pub,
		Logger:  log,
		KV:      kv,
	})

	if err := holder.Hydrate(ctx); err != nil {
		log.WithError(err).Warn("starting anonymous")
	}
	if err := cartStore.Hydrate(ctx); err != nil {
		log.WithError(err).Warn("starting with an empty cart")
	}

	sf := &Storefront{
		Cart:        cartStore,
		CartActions: cartStore,
		Session:     holder,
		Catalog:     api,
		Stock:       gate,
		Orders:      submitter,
		Tracking:    submitter.Tracker(),
		BackendURL:  cfg.BackendURL,
	}
	return sf, closeAll, nil
}
