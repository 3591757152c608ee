package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	analyzerx "github.com/warrantix/warrantix/agent/analyzer"
	apix "github.com/warrantix/warrantix/agent/api"
	classifierx "github.com/warrantix/warrantix/agent/classifier"
	llmx "github.com/warrantix/warrantix/agent/llm"
	orchestratorx "github.com/warrantix/warrantix/agent/orchestrator"
	promptx "github.com/warrantix/warrantix/agent/prompt"
	reportx "github.com/warrantix/warrantix/agent/report"
	statex "github.com/warrantix/warrantix/agent/state"
	toolclientx "github.com/warrantix/warrantix/agent/toolclient"
	configx "github.com/warrantix/warrantix/pkg/config"
	gigachatx "github.com/warrantix/warrantix/pkg/gigachat"
	logx "github.com/warrantix/warrantix/pkg/logger"
	_ "github.com/warrantix/warrantix/pkg/logger/autoload"
)

func main() {
	log := logx.Component("main")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	llmCfg := configx.MustNew[llmx.Config]("LLM")
	toolCfg := configx.MustNew[toolclientx.Config]("TOOLS")
	orchCfg := configx.MustNew[orchestratorx.Config]("ORCHESTRATOR")
	archiveCfg := configx.MustNew[statex.ArchiveConfig]("ARCHIVE")
	apiCfg := configx.MustNew[apix.Config]("API")

	gigaClient := gigachatx.NewClient(llmCfg.GigaChatFor(llmx.RoleClassifier))
	if gigaClient == nil {
		log.Fatal().Msg("gigachat api key is not configured")
	}
	if err := gigachatx.Ping(ctx, gigaClient, llmCfg.Model); err != nil {
		// The classifier degrades gracefully when the model is down, so an
		// unreachable endpoint at boot is a warning, not a crash.
		log.Warn().Err(err).Msg("gigachat unreachable at startup")
	}

	tools := toolclientx.MustNew(*toolCfg)

	prompts := promptx.LoadPromptSet()

	clsModelCfg := llmCfg.GigaChatFor(llmx.RoleClassifier)
	cls, err := classifierx.New(ctx, &clsModelCfg, prompts.Classifier)
	if err != nil {
		log.Fatal().Err(err).Msg("build classifier")
	}

	analyzers, err := analyzerx.NewRegistry(ctx, *llmCfg, tools)
	if err != nil {
		log.Fatal().Err(err).Msg("build analyzers")
	}

	reportModelCfg := llmCfg.GigaChatFor(llmx.RoleReport)
	reporter, err := reportx.New(ctx, &reportModelCfg, prompts.Report)
	if err != nil {
		log.Fatal().Err(err).Msg("build reporter")
	}

	checks := []apix.Check{
		{Name: "tool_service", Probe: tools.Ping},
		{Name: "gigachat", Probe: func(ctx context.Context) error {
			return gigachatx.Ping(ctx, gigaClient, llmCfg.Model)
		}},
	}

	var archive statex.Archiver = statex.NoopArchive{}
	if archiveCfg.Enabled {
		pg, err := statex.NewPostgresArchive(*archiveCfg)
		if err != nil {
			log.Fatal().Err(err).Msg("open run archive")
		}
		defer pg.Close()

		if err := pg.EnsureSchema(ctx); err != nil {
			log.Fatal().Err(err).Msg("prepare run archive schema")
		}
		archive = pg
		checks = append(checks, apix.Check{Name: "archive", Probe: pg.Ping})
	}

	orch, err := orchestratorx.New(cls, analyzers, reporter, archive, *orchCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("build orchestrator")
	}

	server, err := apix.New(orch, *apiCfg, checks...)
	if err != nil {
		log.Fatal().Err(err).Msg("build api server")
	}

	if err := server.Run(ctx); err != nil {
		log.Fatal().Err(err).Msg("api server failed")
	}
	log.Info().Msg("stopped")
}
