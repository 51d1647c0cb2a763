package main

import (
	"context"
	"fmt"

	"compliance-agent/internal/classifier"
	"compliance-agent/internal/config"
	"compliance-agent/internal/llm"
	"compliance-agent/internal/metrics"
	"compliance-agent/internal/repository"
	"compliance-agent/internal/service"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// app is the wired audit pipeline plus what must be closed on exit
type app struct {
	auditor    *service.Auditor
	translator *llm.MultiProviderClient
}

func (a *app) Close() error {
	return a.translator.Close()
}

// buildApp wires translator, store, classifier and auditor from cfg.
// Collectors are registered on reg; nil keeps them private.
func buildApp(ctx context.Context, cfg *config.Config, reg prometheus.Registerer, logger *zap.Logger) (*app, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	m := metrics.New(reg)

	translator, err := llm.NewMultiProviderClient(llm.MultiProviderConfig{
		Providers:   cfg.TranslatorProviders(),
		MaxFailures: cfg.MaxFailuresBeforeSwitch,
	}, m, logger.Named("llm"))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize translator: %w", err)
	}

	repo, err := repository.NewTransactionRepository(cfg.Database.Type, cfg.Database.Path, m, logger)
	if err != nil {
		translator.Close()
		return nil, fmt.Errorf("failed to initialize repository: %w", err)
	}

	schema, err := classifier.NewFeatureSchema(cfg.Features)
	if err != nil {
		translator.Close()
		return nil, fmt.Errorf("invalid feature list: %w", err)
	}

	auditor, err := service.NewAuditor(translator, repo, service.Options{
		Classifier: classifier.Load(ctx, cfg.Classifier, logger.Named("classifier")),
		Features:   schema,
	}, m, logger)
	if err != nil {
		translator.Close()
		return nil, err
	}

	return &app{auditor: auditor, translator: translator}, nil
}
