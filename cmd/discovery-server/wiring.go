package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"service-discovery/internal/catalog"
	"service-discovery/internal/collaborators/embedding"
	"service-discovery/internal/collaborators/nlp"
	awsclient "service-discovery/internal/common/aws"
	"service-discovery/internal/common/config"
	"service-discovery/internal/common/database"
	"service-discovery/internal/common/logger"
	"service-discovery/internal/common/observability"
	"service-discovery/internal/conversation"
	"service-discovery/internal/discovery/eligibility"
	"service-discovery/internal/discovery/matcher"
	"service-discovery/internal/discovery/ranking"
	"service-discovery/internal/escalation"
	"service-discovery/internal/orchestrator"
	"service-discovery/internal/session"
	"service-discovery/internal/transport/httpapi"
)

// backends holds the connections opened at startup.
type backends struct {
	postgres *database.PostgresClient
	elastic  *database.ElasticsearchClient
	redis    *database.RedisClient
}

func (b *backends) Close(zapLog *zap.Logger) {
	if b.postgres != nil {
		if err := b.postgres.Close(); err != nil {
			zapLog.Error("Error closing PostgreSQL", zap.Error(err))
		}
	}
	if b.redis != nil {
		if err := b.redis.Close(); err != nil {
			zapLog.Error("Error closing Redis", zap.Error(err))
		}
	}
}

func needs(cfg *config.Config, source string) bool {
	for _, s := range cfg.Catalog.Sources {
		if s == source {
			return true
		}
	}
	return false
}

// connect opens only the backends the configuration asks for.
func connect(ctx context.Context, cfg *config.Config, zapLog *zap.Logger) (*backends, error) {
	b := &backends{}

	if needs(cfg, "postgres") {
		err := retryWithBackoff(func() error {
			pg, err := database.NewPostgres(cfg.Database.Postgres)
			if err != nil {
				return err
			}
			if err := pg.Ping(ctx); err != nil {
				pg.Close()
				return err
			}
			b.postgres = pg
			return nil
		}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
		if err != nil {
			return b, err
		}
		zapLog.Info("PostgreSQL connected successfully")
	}

	if needs(cfg, "elasticsearch") {
		err := retryWithBackoff(func() error {
			es, err := database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			if err := es.Ping(ctx); err != nil {
				return err
			}
			b.elastic = es
			return nil
		}, 15, 2*time.Second, zapLog, "Elasticsearch connection")
		if err != nil {
			return b, err
		}
		zapLog.Info("Elasticsearch connected successfully")
	}

	if cfg.Sessions.Store == "redis" || cfg.Database.Redis.Address != "" {
		err := retryWithBackoff(func() error {
			rc, err := database.NewRedis(cfg.Database.Redis)
			if err != nil {
				return err
			}
			if err := rc.Ping(ctx); err != nil {
				rc.Close()
				return err
			}
			b.redis = rc
			return nil
		}, 10, 2*time.Second, zapLog, "Redis connection")
		if err != nil {
			return b, err
		}
		zapLog.Info("Redis connected successfully")
	}

	return b, nil
}

// buildCatalog chains the configured sources in order and picks the snapshot store.
func buildCatalog(cfg *config.Config, b *backends, log logger.Logger) (*catalog.Chain, matcher.SnapshotStore, error) {
	timeout := config.GetDuration(cfg.Catalog.Timeout)

	var sources []catalog.Source
	for _, name := range cfg.Catalog.Sources {
		switch name {
		case "elasticsearch":
			sources = append(sources, catalog.NewElasticsearchLookup(b.elastic.Client, b.elastic.Index, timeout, log))
		case "postgres":
			sources = append(sources, catalog.NewPostgresLookup(b.postgres.DB, timeout, log))
		case "file":
			mem, err := catalog.LoadFile(cfg.Catalog.File)
			if err != nil {
				return nil, nil, fmt.Errorf("load catalog file: %w", err)
			}
			sources = append(sources, namedSource{name: "file", Memory: mem})
		default:
			return nil, nil, fmt.Errorf("unknown catalog source %q", name)
		}
	}

	var snapshots matcher.SnapshotStore = catalog.NewMemorySnapshots()
	if b.redis != nil {
		snapshots = catalog.NewRedisSnapshots(b.redis.Client, cfg.Sessions.KeyPrefix+"catalog:",
			config.GetDuration(cfg.Catalog.SnapshotTTL))
	}
	return catalog.NewChain(log, sources...), snapshots, nil
}

type namedSource struct {
	name string
	*catalog.Memory
}

func (n namedSource) Name() string { return n.name }

func buildMatcher(cfg *config.Config, log logger.Logger) (*matcher.Matcher, error) {
	d := cfg.Discovery

	var scorer ranking.SemanticScorer
	if cfg.APIs.Embedding.BaseURL != "" {
		client, err := embedding.NewClient(embedding.Config{
			BaseURL:   cfg.APIs.Embedding.BaseURL,
			APIKey:    cfg.APIs.Embedding.APIKey,
			Model:     cfg.APIs.Embedding.Model,
			Timeout:   config.GetDuration(cfg.APIs.Embedding.Timeout),
			CacheSize: cfg.APIs.Embedding.CacheSize,
		}, log)
		if err != nil {
			return nil, err
		}
		scorer = client
	}

	ranker := ranking.NewRanker(ranking.Weights{
		Category: d.Weights.Category,
		Overlap:  d.Weights.EntityOverlap,
		Semantic: d.Weights.Semantic,
	}, scorer, log)

	return matcher.New(eligibility.NewEvaluator(eligibility.Builtins()), ranker, matcher.Config{
		RelevanceFloor:        d.RelevanceFloor,
		PrioritizationEpsilon: d.PrioritizationEpsilon,
		MaxResults:            d.MaxResults,
		AlternativesLimit:     d.AlternativesLimit,
		ScoringConcurrency:    d.ScoringConcurrency,
	}, log), nil
}

func buildEscalator(ctx context.Context, cfg *config.Config, log logger.Logger) (orchestrator.Escalator, error) {
	if !cfg.Escalation.Enabled {
		return escalation.Noop{}, nil
	}
	client, err := awsclient.NewSNSClient(ctx, cfg.Escalation.Region)
	if err != nil {
		return nil, fmt.Errorf("create sns client: %w", err)
	}
	return escalation.NewSNSEscalator(client, cfg.Escalation.TopicARN, log), nil
}

func buildSessionStore(cfg *config.Config, b *backends, log logger.Logger) (session.Store, error) {
	switch cfg.Sessions.Store {
	case "memory":
		return session.NewMemoryStore(), nil
	case "redis":
		return session.NewRedisStore(b.redis.Client, cfg.Sessions.KeyPrefix, log), nil
	default:
		return nil, fmt.Errorf("unknown session store %q", cfg.Sessions.Store)
	}
}

func registerChecks(h *httpapi.Health, b *backends, sessions *session.Manager) {
	h.RegisterCheck("sessions", sessions.Ping)
	if b.postgres != nil {
		h.RegisterCheck("postgres", b.postgres.Ping)
	}
	if b.elastic != nil {
		h.RegisterCheck("elasticsearch", b.elastic.Ping)
	}
	if b.redis != nil {
		h.RegisterCheck("redis", b.redis.Ping)
	}
}

func buildOrchestrator(ctx context.Context, cfg *config.Config, b *backends, obs *observability.Observability, log logger.Logger) (*orchestrator.Orchestrator, error) {
	lookup, snapshots, err := buildCatalog(cfg, b, log)
	if err != nil {
		return nil, err
	}
	m, err := buildMatcher(cfg, log)
	if err != nil {
		return nil, err
	}
	escalator, err := buildEscalator(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	deps := orchestrator.Deps{
		Fallback:      nlp.NewHeuristic(),
		Observability: obs,
	}
	if cfg.APIs.NLP.BaseURL != "" {
		deps.Parser = nlp.NewClient(nlp.Config{
			BaseURL:    cfg.APIs.NLP.BaseURL,
			APIKey:     cfg.APIs.NLP.APIKey,
			Timeout:    config.GetDuration(cfg.APIs.NLP.Timeout),
			MaxRetries: cfg.APIs.NLP.MaxRetries,
		}, log)
	}
	deps.Tracker = conversation.NewTracker(conversation.Config{
		FollowUpDecay: cfg.Discovery.FollowUpDecay,
		MaxTurns:      cfg.Sessions.MaxTurns,
	})
	deps.Matcher = m
	deps.Lookup = lookup
	deps.Snapshots = snapshots
	deps.Escalator = escalator
	deps.Logger = log

	log.Info("Catalog sources configured", map[string]interface{}{"sources": lookup.Sources()})
	return orchestrator.New(deps, orchestrator.ConfigFromDiscovery(cfg.Discovery)), nil
}
