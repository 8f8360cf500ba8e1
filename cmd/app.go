package cmd

import (
	"context"
	"net/http"
	"time"

	"github.com/chrisdamba/menuflow/internal/catalog"
	"github.com/chrisdamba/menuflow/internal/checkout"
	"github.com/chrisdamba/menuflow/internal/clients"
	"github.com/chrisdamba/menuflow/internal/events"
	"github.com/chrisdamba/menuflow/internal/lifecycle"
	"github.com/chrisdamba/menuflow/internal/models"
	"github.com/chrisdamba/menuflow/internal/pricing"
	"github.com/chrisdamba/menuflow/internal/printing"
	"github.com/chrisdamba/menuflow/internal/repositories"
	"github.com/chrisdamba/menuflow/internal/repositories/docstore"
	"github.com/chrisdamba/menuflow/internal/session"
	"github.com/chrisdamba/menuflow/internal/store"
	"github.com/chrisdamba/menuflow/internal/upsell"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// openStore returns the configured store and a function releasing it.
func openStore(ctx context.Context, cfg *models.Config, log logrus.FieldLogger) (store.Store, func(), error) {
	switch cfg.Storage {
	case "memory":
		return store.NewMemory(log), func() {}, nil
	case "postgres":
		db, err := models.LoadDatabaseConfig()
		if err != nil {
			return nil, nil, err
		}
		pg, err := store.NewPostgres(ctx, db.DSN(), log)
		if err != nil {
			return nil, nil, err
		}
		return pg, pg.Close, nil
	}
	return nil, nil, errors.Errorf("unknown storage %q", cfg.Storage)
}

type repos struct {
	products     repositories.ProductRepository
	optionGroups repositories.OptionGroupRepository
	coupons      repositories.CouponRepository
	orders       repositories.OrderRepository
	carts        repositories.CartRepository
	profiles     repositories.ProfileRepository
}

func newRepos(s store.Store, tenantID string, log logrus.FieldLogger) repos {
	return repos{
		products:     docstore.NewProductRepository(s, tenantID, log),
		optionGroups: docstore.NewOptionGroupRepository(s, tenantID, log),
		coupons:      docstore.NewCouponRepository(s, tenantID),
		orders:       docstore.NewOrderRepository(s, tenantID, log),
		carts:        docstore.NewCartRepository(s, tenantID),
		profiles:     docstore.NewProfileRepository(s, tenantID),
	}
}

// app is the wired ordering backend of one store.
type app struct {
	cfg      *models.Config
	log      logrus.FieldLogger
	repos    repos
	bus      *events.Bus
	catalog  *catalog.Catalog
	spooler  *printing.Spooler
	board    *lifecycle.Board
	tracker  *lifecycle.Tracker
	sessions *session.Manager
}

func newApp(cfg *models.Config, s store.Store, log logrus.FieldLogger) (*app, error) {
	tenant := cfg.Store.TenantID
	r := newRepos(s, tenant, log)

	var (
		destination events.OutputDestination
		keyed       printing.KeyedWriter
	)
	if cfg.Kafka.Enabled {
		producer, err := events.NewSaramaProducer(cfg.Kafka.BrokerList, log)
		if err != nil {
			return nil, err
		}
		destination, keyed = producer, producer
	} else {
		console := events.NewConsoleOutput(log)
		destination, keyed = console, console
	}
	destinations := []events.OutputDestination{destination}
	if cfg.Kafka.JournalPath != "" {
		destinations = append(destinations, events.NewJSONOutput(cfg.Kafka.JournalPath, "events"))
	}
	bus := events.NewBus(map[string]string{
		events.TypeOrderPlaced: cfg.Kafka.OrderTopic,
		events.TypeOrderStatus: cfg.Kafka.StatusTopic,
	}, log, destinations...)

	var fees pricing.FeeCalculator
	if cfg.Delivery.ServiceURL != "" {
		fees = clients.NewFeeClient(cfg.Delivery.ServiceURL, &http.Client{Timeout: 10 * time.Second})
	}
	var ai upsell.Suggester
	if cfg.Upsell.AIServiceURL != "" {
		ai = clients.NewSuggestClient(cfg.Upsell.AIServiceURL, &http.Client{Timeout: 10 * time.Second})
	}

	cat := catalog.New(cfg.Store.Channel, log)
	calc := pricing.NewCalculator(cfg.Delivery, cfg.Store.Origin, fees, log)
	spooler := printing.NewSpooler(printing.NewKafkaPrinter(keyed, cfg.Printer.Topic), r.orders, cfg.Printer, log)
	tracker := lifecycle.NewTracker(r.orders, bus, log)

	a := &app{
		cfg:     cfg,
		log:     log,
		repos:   r,
		bus:     bus,
		catalog: cat,
		spooler: spooler,
		board:   lifecycle.NewBoard(r.orders, spooler, bus, cfg.Printer, log),
		tracker: tracker,
	}
	a.sessions = session.NewManager(session.Deps{
		TenantID:  tenant,
		Catalog:   cat,
		Pricing:   calc,
		Pipeline:  checkout.NewPipeline(tenant, cfg.Store.Channel, cat, cfg.Schedule, calc, r.orders, log),
		Upsell:    upsell.NewEngine(cfg.Upsell, ai, log),
		Coupons:   r.coupons,
		Carts:     r.carts,
		Profiles:  r.profiles,
		Tracker:   tracker,
		Publisher: bus,
		Loyalty:   cfg.Loyalty,
		Log:       log,
	})
	return a, nil
}

func (a *app) catalogSource() repositories.CatalogSource {
	return repositories.CatalogSource{Products: a.repos.products, OptionGroups: a.repos.optionGroups}
}

func (a *app) Close() {
	a.sessions.Close()
	if err := a.bus.Close(); err != nil {
		a.log.WithError(err).Warn("failed to close event outputs")
	}
}
