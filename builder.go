package authcore

import (
	"errors"

	"github.com/redis/go-redis/v9"
	"github.com/valtrade/authcore/internal/audit"
	"github.com/valtrade/authcore/internal/secretbox"
	"github.com/valtrade/authcore/jwt"
	"go.uber.org/zap"
)

// Builder assembles an Engine. All dependencies are injected up front; a
// Builder is single-use.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	store        Store
	userProvider UserProvider
	logger       *zap.Logger
	auditSink    AuditSink

	built bool
}

// New returns a Builder pre-loaded with production defaults.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the entire configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the Redis client backing the revocation ledger, pending
// setups, challenges, and lockout counters.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithStore sets the durable persistence layer.
func (b *Builder) WithStore(store Store) *Builder {
	b.store = store
	return b
}

// WithUserProvider sets the user lookup dependency.
func (b *Builder) WithUserProvider(up UserProvider) *Builder {
	b.userProvider = up
	return b
}

// WithLogger sets the structured logger. Absent a logger the engine stays
// silent via zap.NewNop.
func (b *Builder) WithLogger(logger *zap.Logger) *Builder {
	b.logger = logger
	return b
}

// WithAuditSink attaches an observer sink to the async audit dispatcher.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithMetricsEnabled toggles the in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// Build validates the configuration, wires every component, and returns a
// ready Engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if b.store == nil {
		return nil, errors.New("store required")
	}
	if b.userProvider == nil {
		return nil, errors.New("user provider required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := b.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	encryptionKey, err := cfg.Encryption.key()
	if err != nil {
		return nil, err
	}
	secrets, err := secretbox.New(encryptionKey)
	if err != nil {
		return nil, err
	}

	jwtManager, err := jwt.NewManager(jwt.Config{
		AccessTTL:     cfg.JWT.AccessTTL,
		RefreshTTL:    cfg.JWT.RefreshTTL,
		SigningMethod: jwt.SigningMethod(cfg.JWT.SigningMethod),
		PrivateKey:    cfg.JWT.PrivateKey,
		PublicKey:     cfg.JWT.PublicKey,
		Issuer:        cfg.JWT.Issuer,
		Leeway:        cfg.JWT.Leeway,
	})
	if err != nil {
		return nil, err
	}

	var dispatcher *audit.Dispatcher
	if cfg.Audit.Enabled {
		sink := b.auditSink
		if sink == nil {
			sink = NoOpSink{}
		}
		dispatcher = audit.NewDispatcher(audit.Config{
			Enabled:    true,
			BufferSize: cfg.Audit.BufferSize,
			DropIfFull: cfg.Audit.DropIfFull,
		}, sink)
	}

	b.built = true

	return &Engine{
		config:     cfg,
		logger:     logger,
		store:      b.store,
		users:      b.userProvider,
		blacklist:  newRevocationLedger(b.redis, cfg.RedisPrefix, cfg.JWT.RefreshTTL, logger),
		setupStore: newSetupStore(b.redis, cfg.RedisPrefix),
		challenges: newChallengeStore(b.redis, cfg.RedisPrefix),
		lockout:    newFailedAttemptLimiter(b.redis, cfg.RedisPrefix, cfg.Lockout.MaxAttempts, cfg.Lockout.Window),
		secrets:    secrets,
		jwtManager: jwtManager,
		audit:      dispatcher,
		metrics:    NewMetrics(cfg.Metrics),
	}, nil
}
