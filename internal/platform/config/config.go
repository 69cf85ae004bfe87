package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

const (
	defaultEnvFile         = ".env"
	defaultEnvironment     = "local"
	defaultOrderEventTopic = "order-events"
	defaultRedisDB         = 0
	defaultRedisPoolSize   = 10
	defaultRedisKeyPrefix  = "gayla:"
	defaultCartStorageKey  = "gayla-cart"
	defaultCartTTL         = 30 * 24 * time.Hour
	defaultPublishTimeout  = 5 * time.Second
	defaultDialTimeout     = 10 * time.Second
)

// Config captures all runtime configuration organised by concern.
type Config struct {
	Environment string
	Firestore   FirestoreConfig
	PubSub      PubSubConfig
	Redis       RedisConfig
	Cart        CartConfig
	Secrets     SecretsConfig
}

// FirestoreConfig stores database parameters.
type FirestoreConfig struct {
	ProjectID    string
	EmulatorHost string
	// CredentialsFile points at a service account key; empty uses application default credentials.
	CredentialsFile string
	DialTimeout     time.Duration
}

// PubSubConfig controls order event publishing. An empty topic disables publishing.
type PubSubConfig struct {
	ProjectID        string
	OrderEventsTopic string
	EmulatorHost     string
	PublishTimeout   time.Duration
}

// RedisConfig configures the key-value store backing guest carts held server side.
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	PoolSize  int
	KeyPrefix string
}

// Enabled reports whether a Redis address was configured.
func (c RedisConfig) Enabled() bool {
	return strings.TrimSpace(c.Addr) != ""
}

// CartConfig controls guest cart persistence.
type CartConfig struct {
	StorageKey string
	TTL        time.Duration
}

// SecretsConfig configures Secret Manager lookups for secret:// references.
type SecretsConfig struct {
	ProjectID    string
	FallbackFile string
}

// SecretResolver resolves references to external secrets (e.g. Secret Manager URIs).
type SecretResolver interface {
	ResolveSecret(ctx context.Context, ref string) (string, error)
}

// SecretResolverFunc adapts ordinary functions to SecretResolver.
type SecretResolverFunc func(context.Context, string) (string, error)

// ResolveSecret resolves the secret using the wrapped function.
func (f SecretResolverFunc) ResolveSecret(ctx context.Context, ref string) (string, error) {
	return f(ctx, ref)
}

// ValidationError is returned when required configuration fields are missing or invalid.
type ValidationError struct {
	fields []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed: missing or invalid fields [%s]", strings.Join(e.fields, ", "))
}

// Fields returns a copy of the missing/invalid field list.
func (e *ValidationError) Fields() []string {
	out := make([]string, len(e.fields))
	copy(out, e.fields)
	return out
}

// SecretError describes failures while resolving a secret reference.
type SecretError struct {
	Ref string
	Err error
}

// Error implements the error interface.
func (e *SecretError) Error() string {
	return fmt.Sprintf("secret resolution failed for ref %q: %v", e.Ref, e.Err)
}

// Unwrap exposes the underlying error.
func (e *SecretError) Unwrap() error { return e.Err }

// MissingSecretsError indicates that one or more required secrets resolved to an empty value.
type MissingSecretsError struct {
	names []string
}

// Error implements the error interface.
func (e *MissingSecretsError) Error() string {
	return fmt.Sprintf("missing required secrets [%s]", strings.Join(e.names, ", "))
}

// Names returns the missing secret identifiers.
func (e *MissingSecretsError) Names() []string {
	out := make([]string, len(e.names))
	copy(out, e.names)
	return out
}

var errSecretResolverNotConfigured = errors.New("secret resolver not configured")

// Option customises Load behaviour.
type Option func(*loaderOptions)

type loaderOptions struct {
	envFile         string
	envMap          map[string]string
	useSystemEnv    bool
	secret          SecretResolver
	requiredSecrets []string
}

// WithEnvFile overrides the .env file path used for local overrides.
func WithEnvFile(path string) Option {
	return func(o *loaderOptions) {
		o.envFile = path
	}
}

// WithEnvMap injects an explicit key/value map for environment lookups. Values in the map
// take precedence over system environment variables.
func WithEnvMap(values map[string]string) Option {
	return func(o *loaderOptions) {
		o.envMap = values
	}
}

// WithoutSystemEnv disables reading from os.Getenv, relying only on provided maps and .env files.
func WithoutSystemEnv() Option {
	return func(o *loaderOptions) {
		o.useSystemEnv = false
	}
}

// WithSecretResolver sets a custom secret resolver used for secret:// and sm:// references.
func WithSecretResolver(resolver SecretResolver) Option {
	return func(o *loaderOptions) {
		o.secret = resolver
	}
}

// WithRequiredSecrets marks the provided secret identifiers (e.g. "Redis.Password") as mandatory.
func WithRequiredSecrets(names ...string) Option {
	return func(o *loaderOptions) {
		o.requiredSecrets = append(o.requiredSecrets, names...)
	}
}

// Load reads GAYLA_* settings. Precedence: WithEnvMap, then the process environment, then the
// .env file. secret:// and sm:// values are resolved through the configured SecretResolver.
func Load(ctx context.Context, opts ...Option) (Config, error) {
	options := loaderOptions{envFile: defaultEnvFile, useSystemEnv: true}
	for _, opt := range opts {
		opt(&options)
	}

	fileValues, err := loadDotEnv(options.envFile)
	if err != nil {
		return Config{}, err
	}
	env := envSource{overrides: options.envMap, system: options.useSystemEnv, file: fileValues}

	cfg := Config{
		Environment: strings.ToLower(env.str("GAYLA_ENVIRONMENT", defaultEnvironment)),
		Firestore: FirestoreConfig{
			ProjectID:       env.str("GAYLA_FIRESTORE_PROJECT_ID", ""),
			EmulatorHost:    env.str("GAYLA_FIRESTORE_EMULATOR_HOST", ""),
			CredentialsFile: env.str("GAYLA_GOOGLE_CREDENTIALS_FILE", ""),
			DialTimeout:     env.duration("GAYLA_FIRESTORE_DIAL_TIMEOUT", defaultDialTimeout),
		},
		PubSub: PubSubConfig{
			ProjectID:        env.str("GAYLA_PUBSUB_PROJECT_ID", ""),
			OrderEventsTopic: env.str("GAYLA_PUBSUB_ORDER_EVENTS_TOPIC", defaultOrderEventTopic),
			EmulatorHost:     env.str("GAYLA_PUBSUB_EMULATOR_HOST", ""),
			PublishTimeout:   env.duration("GAYLA_PUBSUB_PUBLISH_TIMEOUT", defaultPublishTimeout),
		},
		Redis: RedisConfig{
			Addr:      env.str("GAYLA_REDIS_ADDR", ""),
			Password:  env.str("GAYLA_REDIS_PASSWORD", ""),
			DB:        env.integer("GAYLA_REDIS_DB", defaultRedisDB),
			PoolSize:  env.integer("GAYLA_REDIS_POOL_SIZE", defaultRedisPoolSize),
			KeyPrefix: env.str("GAYLA_REDIS_KEY_PREFIX", defaultRedisKeyPrefix),
		},
		Cart: CartConfig{
			StorageKey: env.str("GAYLA_CART_STORAGE_KEY", defaultCartStorageKey),
			TTL:        env.duration("GAYLA_CART_TTL", defaultCartTTL),
		},
		Secrets: SecretsConfig{
			ProjectID:    env.str("GAYLA_SECRETS_PROJECT_ID", ""),
			FallbackFile: env.str("GAYLA_SECRETS_FALLBACK_FILE", ""),
		},
	}

	// Pub/Sub and Secret Manager default to the Firestore project.
	if cfg.PubSub.ProjectID == "" {
		cfg.PubSub.ProjectID = cfg.Firestore.ProjectID
	}
	if cfg.Secrets.ProjectID == "" {
		cfg.Secrets.ProjectID = cfg.Firestore.ProjectID
	}

	secretFields := map[string]*string{
		"Redis.Password": &cfg.Redis.Password,
	}
	for _, field := range secretFields {
		value, err := resolveSecret(ctx, *field, options.secret)
		if err != nil {
			return Config{}, err
		}
		*field = value
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}
	if missing := missingSecrets(options.requiredSecrets, secretFields); missing != nil {
		return Config{}, missing
	}
	return cfg, nil
}

// envSource layers explicit overrides, the process environment and .env values.
type envSource struct {
	overrides map[string]string
	system    bool
	file      map[string]string
}

func (e envSource) lookup(key string) string {
	if value, ok := e.overrides[key]; ok {
		return value
	}
	if e.system {
		if value, ok := os.LookupEnv(key); ok {
			return value
		}
	}
	return e.file[key]
}

func (e envSource) str(key, fallback string) string {
	if value := e.lookup(key); value != "" {
		return value
	}
	return fallback
}

// duration and integer ignore unparsable values and keep the fallback.
func (e envSource) duration(key string, fallback time.Duration) time.Duration {
	if d, err := time.ParseDuration(e.lookup(key)); err == nil {
		return d
	}
	return fallback
}

func (e envSource) integer(key string, fallback int) int {
	if n, err := strconv.Atoi(e.lookup(key)); err == nil {
		return n
	}
	return fallback
}

func resolveSecret(ctx context.Context, value string, resolver SecretResolver) (string, error) {
	ref, ok := secretReference(value)
	if !ok {
		return value, nil
	}
	if resolver == nil {
		return "", &SecretError{Ref: ref, Err: errSecretResolverNotConfigured}
	}
	secret, err := resolver.ResolveSecret(ctx, ref)
	if err != nil {
		return "", &SecretError{Ref: ref, Err: err}
	}
	return secret, nil
}

// secretReference reports whether value points at a secret and returns it in the
// canonical secret:// form.
func secretReference(value string) (string, bool) {
	trimmed := strings.TrimSpace(value)
	if rest, ok := strings.CutPrefix(trimmed, "sm://"); ok {
		return "secret://" + rest, true
	}
	return trimmed, strings.HasPrefix(trimmed, "secret://")
}

func validateConfig(cfg Config) error {
	checks := []struct {
		field  string
		failed bool
	}{
		{"Firestore.ProjectID", cfg.Firestore.ProjectID == ""},
		{"Cart.StorageKey", strings.TrimSpace(cfg.Cart.StorageKey) == ""},
		{"Cart.TTL", cfg.Cart.TTL < 0},
		{"Redis.PoolSize", cfg.Redis.Enabled() && cfg.Redis.PoolSize <= 0},
		{"Redis.DB", cfg.Redis.DB < 0},
		{"PubSub.PublishTimeout", cfg.PubSub.OrderEventsTopic != "" && cfg.PubSub.PublishTimeout <= 0},
	}
	var invalid []string
	for _, check := range checks {
		if check.failed {
			invalid = append(invalid, check.field)
		}
	}
	if len(invalid) > 0 {
		return &ValidationError{fields: invalid}
	}
	return nil
}

func missingSecrets(required []string, fields map[string]*string) *MissingSecretsError {
	names := make(map[string]struct{})
	for _, name := range required {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if field, ok := fields[name]; !ok || strings.TrimSpace(*field) == "" {
			names[name] = struct{}{}
		}
	}
	if len(names) == 0 {
		return nil
	}
	out := make([]string, 0, len(names))
	for name := range names {
		out = append(out, name)
	}
	sort.Strings(out)
	return &MissingSecretsError{names: out}
}

// ReadEnvFile parses a dotenv-style file. A missing file yields no values and no error.
func ReadEnvFile(path string) (map[string]string, error) {
	return loadDotEnv(strings.TrimSpace(path))
}

// loadDotEnv accepts KEY=value lines with optional "export " prefixes, quotes and # comments.
func loadDotEnv(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(filepath.Clean(path))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	values := make(map[string]string)
	for _, raw := range strings.Split(string(data), "\n") {
		line := strings.TrimSpace(raw)
		if line == "" || line[0] == '#' {
			continue
		}
		key, value, ok := strings.Cut(strings.TrimPrefix(line, "export "), "=")
		if key = strings.TrimSpace(key); !ok || key == "" {
			continue
		}
		values[key] = strings.Trim(strings.TrimSpace(value), `"'`)
	}
	return values, nil
}
