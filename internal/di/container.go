package di

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"cloud.google.com/go/pubsub"
	"go.uber.org/zap"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/Alae213/gayla-shop-sub001/internal/platform/cartstorage"
	"github.com/Alae213/gayla-shop-sub001/internal/platform/config"
	pfirestore "github.com/Alae213/gayla-shop-sub001/internal/platform/firestore"
	"github.com/Alae213/gayla-shop-sub001/internal/platform/jobs"
	"github.com/Alae213/gayla-shop-sub001/internal/platform/kvstore"
	"github.com/Alae213/gayla-shop-sub001/internal/platform/observability"
	"github.com/Alae213/gayla-shop-sub001/internal/platform/requestctx"
	"github.com/Alae213/gayla-shop-sub001/internal/platform/secrets"
	"github.com/Alae213/gayla-shop-sub001/internal/repositories"
	firestorerepo "github.com/Alae213/gayla-shop-sub001/internal/repositories/firestore"
	"github.com/Alae213/gayla-shop-sub001/internal/services"
)

const defaultSecretsFallbackFile = ".secrets.local"

// Services bundles the service-layer contracts assembled by NewContainer.
type Services struct {
	Checkout services.CheckoutService
	Orders   services.OrderService
}

// Container wires repositories, services and storage for runtime use.
type Container struct {
	Config       config.Config
	Logger       *zap.Logger
	Repositories repositories.Registry
	Services     Services

	carts  kvstore.Store
	clock  func() time.Time
	events services.OrderEventPublisher

	closers []func(context.Context) error
}

// Option customises container construction.
type Option func(*Container)

// WithLogger sets the base logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Container) {
		if logger != nil {
			c.Logger = logger
		}
	}
}

// WithEventPublisher overrides the order event publisher.
func WithEventPublisher(publisher services.OrderEventPublisher) Option {
	return func(c *Container) {
		c.events = publisher
	}
}

// WithCartBackend overrides the key-value store holding guest carts.
func WithCartBackend(store kvstore.Store) Option {
	return func(c *Container) {
		c.carts = store
	}
}

// WithClock overrides the clock shared by all services.
func WithClock(clock func() time.Time) Option {
	return func(c *Container) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// NewContainer constructs the runtime dependencies from reg. Tests can supply in-memory registries.
func NewContainer(ctx context.Context, cfg config.Config, reg repositories.Registry, opts ...Option) (*Container, error) {
	if reg == nil {
		return nil, errors.New("repositories registry is required")
	}

	c := &Container{
		Config:       cfg,
		Logger:       zap.NewNop(),
		Repositories: reg,
		clock:        time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	if c.carts == nil {
		store, err := newCartBackend(ctx, cfg.Redis, cfg.Cart)
		if err != nil {
			return nil, err
		}
		c.carts = store
		if closer, ok := store.(interface{ Close() error }); ok {
			c.closers = append(c.closers, func(context.Context) error { return closer.Close() })
		}
	}

	svc, err := c.buildServices()
	if err != nil {
		_ = c.Close(ctx)
		return nil, err
	}
	c.Services = svc
	return c, nil
}

func (c *Container) buildServices() (Services, error) {
	eventLogger := observability.EventLogger(c.Logger)

	checkout, err := services.NewCheckoutService(services.CheckoutServiceDeps{
		Pricing: c.Repositories.DeliveryRates(),
		Logger:  eventLogger,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build checkout service: %w", err)
	}

	orders, err := services.NewOrderService(services.OrderServiceDeps{
		Orders:   c.Repositories.Orders(),
		Products: c.Repositories.Products(),
		Bans:     c.Repositories.Bans(),
		Events:   c.events,
		Clock:    c.clock,
		Logger:   eventLogger,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build order service: %w", err)
	}

	return Services{Checkout: checkout, Orders: orders}, nil
}

// NewCartStore opens the cart of one guest session, hydrated from the cart backend.
// Callers must Close the returned store to flush its last write.
func (c *Container) NewCartStore(ctx context.Context, sessionID string) (services.CartStore, error) {
	key := strings.TrimSpace(c.Config.Cart.StorageKey)
	if key == "" {
		key = cartstorage.DefaultKey
	}
	if session := strings.TrimSpace(sessionID); session != "" {
		key = key + ":" + session
		ctx = requestctx.WithSession(ctx, session)
	}

	adapter, err := cartstorage.NewAdapter(c.carts, key, c.Logger.Named("cart"))
	if err != nil {
		return nil, fmt.Errorf("build cart storage: %w", err)
	}
	return services.NewCartStore(ctx, services.CartStoreDeps{
		Persistence: adapter,
		Clock:       c.clock,
		Logger:      observability.EventLogger(c.Logger),
	})
}

// Close releases repository clients, publishers and the cart backend.
func (c *Container) Close(ctx context.Context) error {
	if c == nil {
		return nil
	}
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	if c.Repositories != nil {
		if err := c.Repositories.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Bootstrap loads configuration from the environment and wires the production stack:
// Firestore repositories, Pub/Sub order events and Redis carts when configured.
func Bootstrap(ctx context.Context, logger *zap.Logger, opts ...config.Option) (*Container, error) {
	if logger == nil {
		var err error
		logger, err = observability.NewLogger()
		if err != nil {
			return nil, fmt.Errorf("initialise logger: %w", err)
		}
	}

	ctx = observability.WithLogger(ctx, logger)

	resolver, err := newSecretResolver(ctx, logger)
	if err != nil {
		return nil, fmt.Errorf("initialise secret resolver: %w", err)
	}
	defer func() {
		if err := resolver.Close(); err != nil {
			logger.Warn("secret resolver close error", zap.Error(err))
		}
	}()

	cfg, err := config.Load(ctx, append([]config.Option{config.WithSecretResolver(resolver)}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}

	provider := pfirestore.NewProvider(cfg.Firestore,
		pfirestore.WithDialTimeout(cfg.Firestore.DialTimeout),
		pfirestore.WithClientOptions(credentialOptions(cfg.Firestore.CredentialsFile)...),
	)
	reg, err := firestorerepo.NewRegistry(provider)
	if err != nil {
		_ = provider.Close(ctx)
		return nil, err
	}

	containerOpts := []Option{WithLogger(logger)}
	var closers []func(context.Context) error
	if strings.TrimSpace(cfg.PubSub.OrderEventsTopic) != "" {
		publisher, closePublisher, err := newOrderEventPublisher(ctx, cfg.PubSub, credentialOptions(cfg.Firestore.CredentialsFile)...)
		if err != nil {
			_ = reg.Close(ctx)
			return nil, err
		}
		containerOpts = append(containerOpts, WithEventPublisher(publisher))
		closers = append(closers, closePublisher)
	}

	container, err := NewContainer(ctx, cfg, reg, containerOpts...)
	if err != nil {
		for _, closeFn := range closers {
			_ = closeFn(ctx)
		}
		return nil, err
	}
	container.closers = append(container.closers, closers...)

	logger.Info("container ready",
		zap.String("environment", cfg.Environment),
		zap.Bool("redisCarts", cfg.Redis.Enabled()),
		zap.Bool("orderEvents", len(closers) > 0),
	)
	return container, nil
}

func newCartBackend(ctx context.Context, redisCfg config.RedisConfig, cartCfg config.CartConfig) (kvstore.Store, error) {
	if !redisCfg.Enabled() {
		return kvstore.NewMemoryStore(), nil
	}
	store := kvstore.NewRedisStore(redisCfg, kvstore.WithTTL(cartCfg.TTL))
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := store.Ping(pingCtx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("connect cart backend: %w", err)
	}
	return store, nil
}

func newOrderEventPublisher(ctx context.Context, cfg config.PubSubConfig, baseOpts ...option.ClientOption) (*jobs.PubSubOrderEventPublisher, func(context.Context) error, error) {
	clientOpts := append([]option.ClientOption(nil), baseOpts...)
	if host := strings.TrimSpace(cfg.EmulatorHost); host != "" {
		clientOpts = append(clientOpts,
			option.WithEndpoint(host),
			option.WithoutAuthentication(),
			option.WithGRPCDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
		)
	}

	client, err := pubsub.NewClient(ctx, cfg.ProjectID, clientOpts...)
	if err != nil {
		return nil, nil, fmt.Errorf("initialise pubsub client: %w", err)
	}
	topic := client.Topic(cfg.OrderEventsTopic)
	publisher, err := jobs.NewPubSubOrderEventPublisher(topic, jobs.WithPublishTimeout(cfg.PublishTimeout))
	if err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	closeFn := func(context.Context) error {
		topic.Stop()
		return client.Close()
	}
	return publisher, closeFn, nil
}

func newSecretResolver(ctx context.Context, logger *zap.Logger) (*secrets.Resolver, error) {
	project := strings.TrimSpace(os.Getenv("GAYLA_SECRETS_PROJECT_ID"))
	if project == "" {
		project = strings.TrimSpace(os.Getenv("GAYLA_FIRESTORE_PROJECT_ID"))
	}
	fallback := strings.TrimSpace(os.Getenv("GAYLA_SECRETS_FALLBACK_FILE"))
	if fallback == "" {
		fallback = defaultSecretsFallbackFile
	}
	return secrets.NewResolver(ctx,
		secrets.WithLogger(logger.Named("secrets")),
		secrets.WithProject(project),
		secrets.WithFallbackFile(fallback),
		secrets.WithClientOptions(credentialOptions(os.Getenv("GAYLA_GOOGLE_CREDENTIALS_FILE"))...),
	)
}

func credentialOptions(path string) []option.ClientOption {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil
	}
	return []option.ClientOption{option.WithCredentialsFile(path)}
}
