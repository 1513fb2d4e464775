package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	orchestratorx "github.com/tanpawarit/Chative-Handset-Sales-Agent/agent/agents/orchestrator"
	catalogx "github.com/tanpawarit/Chative-Handset-Sales-Agent/agent/catalog"
	classifierx "github.com/tanpawarit/Chative-Handset-Sales-Agent/agent/classifier"
	contractx "github.com/tanpawarit/Chative-Handset-Sales-Agent/agent/contract"
	generatorx "github.com/tanpawarit/Chative-Handset-Sales-Agent/agent/generator"
	llmx "github.com/tanpawarit/Chative-Handset-Sales-Agent/agent/llm"
	notifyx "github.com/tanpawarit/Chative-Handset-Sales-Agent/agent/notify"
	promptx "github.com/tanpawarit/Chative-Handset-Sales-Agent/agent/prompt"
	retrieverx "github.com/tanpawarit/Chative-Handset-Sales-Agent/agent/retriever"
	statex "github.com/tanpawarit/Chative-Handset-Sales-Agent/agent/state"
	configx "github.com/tanpawarit/Chative-Handset-Sales-Agent/pkg/config"
	qstashx "github.com/tanpawarit/Chative-Handset-Sales-Agent/pkg/qstash"
)

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreUpstash  = "upstash"
)

// StoreConfig is read with the STORE prefix.
type StoreConfig struct {
	Backend string `split_words:"true" default:"memory"`
}

func (c *StoreConfig) Validate() error {
	switch strings.ToLower(strings.TrimSpace(c.Backend)) {
	case StoreMemory, StorePostgres, StoreUpstash:
		return nil
	}
	return fmt.Errorf("%w: unknown STORE_BACKEND %q", contractx.ErrValidation, c.Backend)
}

// app holds the process-wide collaborators shared by serve and chat.
type app struct {
	orchestrator *orchestratorx.Orchestrator
	closers      []func() error
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			log.Warn().Err(err).Msg("close failed")
		}
	}
}

func buildApp(ctx context.Context) (*app, error) {
	a := &app{}

	catalogCfg, err := configx.New[catalogx.Config]("CATALOG")
	if err != nil {
		return nil, err
	}
	docs, err := catalogx.LoadHandsetsFile(catalogCfg.HandsetsPath)
	if err != nil {
		return nil, err
	}
	records, err := catalogx.LoadCustomersFile(catalogCfg.CustomersPath)
	if err != nil {
		return nil, err
	}
	customers, err := catalogx.NewDirectory(records)
	if err != nil {
		return nil, err
	}
	handsets := catalogx.NewHandsets(docs)

	llmCfg, err := configx.New[llmx.Config]("LLM")
	if err != nil {
		return nil, err
	}
	classifierModel, err := llmCfg.NewChatModel(ctx, contractx.ModelRoleClassifier)
	if err != nil {
		return nil, err
	}
	generatorModel, err := llmCfg.NewChatModel(ctx, contractx.ModelRoleGenerator)
	if err != nil {
		return nil, err
	}

	prompts := promptx.LoadPromptSet()
	classifier, err := classifierx.New(classifierModel, prompts.Classifier)
	if err != nil {
		return nil, err
	}
	generator, err := generatorx.New(ctx, generatorModel)
	if err != nil {
		return nil, err
	}

	embeddingCfg, err := configx.New[retrieverx.Config]("EMBEDDING")
	if err != nil {
		return nil, err
	}
	embedder, err := retrieverx.NewEmbedder(ctx, *embeddingCfg)
	if err != nil {
		return nil, err
	}
	retriever, err := retrieverx.Open(ctx, catalogCfg.IndexPath, embedder, embeddingCfg.CacheSize)
	if err != nil {
		return nil, err
	}

	store, err := buildStore(ctx, a)
	if err != nil {
		a.Close()
		return nil, err
	}

	agentCfg, err := configx.New[orchestratorx.Config]("AGENT")
	if err != nil {
		a.Close()
		return nil, err
	}
	notifier, err := buildNotifier(agentCfg.CheckoutDestination)
	if err != nil {
		a.Close()
		return nil, err
	}

	deps := orchestratorx.Dependencies{
		Store:      store,
		Classifier: classifier,
		Generator:  generator,
		Retriever:  retriever,
		Customers:  customers,
		Handsets:   handsets,
		Prompts:    prompts,
	}
	if notifier != nil {
		deps.Notifier = notifier
	}

	o, err := orchestratorx.New(deps, *agentCfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.orchestrator = o

	log.Info().
		Int("handsets", handsets.Len()).
		Int("customers", customers.Len()).
		Int("indexed", retriever.Len()).
		Str("llm_provider", llmCfg.Provider).
		Str("embedder", embedder.Name()).
		Msg("handset sales agent ready")
	return a, nil
}

func buildStore(ctx context.Context, a *app) (statex.Store, error) {
	storeCfg, err := configx.New[StoreConfig]("STORE")
	if err != nil {
		return nil, err
	}

	switch strings.ToLower(strings.TrimSpace(storeCfg.Backend)) {
	case StorePostgres:
		pgCfg, err := configx.New[statex.PostgresConfig]("POSTGRES")
		if err != nil {
			return nil, err
		}
		store, err := statex.NewPostgresStore(ctx, *pgCfg)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, store.Close)
		log.Info().Str("backend", StorePostgres).Msg("thread store ready")
		return store, nil
	case StoreUpstash:
		redisCfg, err := configx.New[statex.UpstashRedisConfig]("UPSTASH_REDIS")
		if err != nil {
			return nil, err
		}
		store, err := statex.NewUpstashRedisStore(*redisCfg)
		if err != nil {
			return nil, err
		}
		log.Info().Str("backend", StoreUpstash).Msg("thread store ready")
		return store, nil
	default:
		log.Info().Str("backend", StoreMemory).Msg("thread store ready")
		return statex.NewMemoryStore(), nil
	}
}

// buildNotifier returns nil when checkout events are not configured.
func buildNotifier(destination string) (*notifyx.QStashNotifier, error) {
	if strings.TrimSpace(destination) == "" {
		return nil, nil
	}
	qstashCfg, err := configx.New[qstashx.Config]("QSTASH")
	if err != nil {
		return nil, err
	}
	if !qstashCfg.Enabled() {
		return nil, errors.New("AGENT_CHECKOUT_DESTINATION is set but QSTASH_TOKEN is empty")
	}
	client, err := qstashx.NewClient(*qstashCfg)
	if err != nil {
		return nil, err
	}
	return notifyx.NewQStashNotifier(client, destination)
}
