package main

import (
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/arkantrust/vending-checkout/catalog"
	"github.com/arkantrust/vending-checkout/config"
	"github.com/arkantrust/vending-checkout/events"
	"github.com/arkantrust/vending-checkout/handlers"
	"github.com/arkantrust/vending-checkout/ledger"
	"github.com/arkantrust/vending-checkout/store"
)

// app owns everything that needs closing on shutdown.
type app struct {
	handler   http.Handler
	storeName string
	store     store.Store
	publisher *events.KafkaPublisher
}

func newApp(cfg *config.Config) (*app, error) {
	cat, err := catalog.New(cfg.Machines)
	if err != nil {
		return nil, err
	}

	a := &app{}
	if cfg.DBPath != "" {
		s, err := store.NewBolt(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		a.store, a.storeName = s, "bolt:"+cfg.DBPath
	} else {
		a.store, a.storeName = store.NewMemory(), "memory"
	}

	opts := []ledger.Option{ledger.WithLogger(log.Default())}
	if len(cfg.Kafka.Brokers) > 0 {
		p, err := events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			a.store.Close()
			return nil, err
		}
		a.publisher = p
		opts = append(opts, ledger.WithNotifier(p))
	}

	l := ledger.New(cat, a.store, opts...)
	a.handler = handlers.New(l).Routes(handlers.RouteOptions{EnableTestRoutes: cfg.EnableTestRoutes})
	return a, nil
}

func (a *app) Close() error {
	var errs []error
	if a.publisher != nil {
		errs = append(errs, a.publisher.Close())
	}
	errs = append(errs, a.store.Close())
	return errors.Join(errs...)
}
