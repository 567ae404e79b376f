package bootstrap

import (
	"context"
	"log"

	"aig-pipeline-be/internal/config"
	"aig-pipeline-be/internal/controller"
	"aig-pipeline-be/internal/pkg/logger"
	"aig-pipeline-be/internal/pkg/mailer"
	"aig-pipeline-be/internal/repository/memory"
	"aig-pipeline-be/internal/repository/unitofwork"
	"aig-pipeline-be/internal/service"
	"aig-pipeline-be/pkg/agents"
	"aig-pipeline-be/pkg/executor"
	"aig-pipeline-be/pkg/injection"
	"aig-pipeline-be/pkg/llm"
	"aig-pipeline-be/pkg/llm/factory"
	"aig-pipeline-be/pkg/pipeline"
	"aig-pipeline-be/pkg/pool"

	pktNats "aig-pipeline-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const runEventsTopic = "RUN_EVENTS"

type Container struct {
	// Controllers
	AuthController controller.IAuthController
	RunController  controller.IRunController

	// Background Services (Exposed for main.go to run)
	ConsumerService service.IConsumerService

	// Infrastructure handles the server lifecycle needs to close.
	Pool          *pool.Pool
	NatsPublisher *pktNats.Publisher
	Logger        logger.ILogger
}

func NewContainer(db *gorm.DB, cfg *config.Config) *Container {
	// 1. Core Facades
	uowFactory := unitofwork.NewRepositoryFactory(db)
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")

	emailService := mailer.NewEmailService(
		cfg.SMTP.Host,
		cfg.SMTP.Port,
		cfg.SMTP.Email,
		cfg.SMTP.Password,
		cfg.SMTP.SenderName,
	)

	// 2. Event Bus
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{},
		watermillLogger,
	)

	// 3. LLM provider cascade: primary first, fallback second.
	providers, err := factory.NewChain([]factory.ProviderSpec{
		{
			Name:    cfg.Providers.Primary.Name,
			Kind:    cfg.Providers.Primary.Kind,
			BaseURL: cfg.Providers.Primary.BaseURL,
			APIKey:  cfg.Providers.Primary.APIKey,
			Model:   cfg.Providers.Primary.Model,
		},
		{
			Name:    cfg.Providers.Fallback.Name,
			Kind:    cfg.Providers.Fallback.Kind,
			BaseURL: cfg.Providers.Fallback.BaseURL,
			APIKey:  cfg.Providers.Fallback.APIKey,
			Model:   cfg.Providers.Fallback.Model,
		},
	})
	if err != nil {
		log.Fatalf("[FATAL] Failed to initialize LLM providers: %v", err)
	}
	log.Printf("[INFO] LLM provider cascade: %d provider(s), primary=%s", len(providers), providers[0].Name)

	execConfig := executor.Config{
		MaxAttempts:     cfg.Retry.MaxAttempts,
		InitialInterval: cfg.Retry.InitialInterval,
		BackoffFactor:   cfg.Retry.BackoffFactor,
		Timeout:         cfg.Retry.Timeout,
		MinLength:       cfg.Retry.MinLength,
	}
	fixConfig := executor.FixConfig{}

	agentRunner := agents.NewRunner(
		providers,
		execConfig,
		fixConfig,
		cfg.Pipeline.NumItems,
		cfg.Pipeline.ForceApproveRound,
		sysLogger,
	)

	// Injection defense: primary classifier plus a cross-validation
	// classifier pinned to the reversed cascade so both verdicts come from
	// different providers when a fallback exists.
	var crossExec *executor.Executor
	if len(providers) > 1 {
		reversed := make([]llm.NamedProvider, len(providers))
		for i, p := range providers {
			reversed[len(providers)-1-i] = p
		}
		crossExec = executor.New("injection_cross_check", reversed, execConfig, sysLogger)
	}
	var injectionChecker pipeline.InjectionChecker
	if cfg.Injection.Enabled {
		injectionChecker = injection.New(
			agentRunner.Executor(agents.AgentInjectionClassifier),
			crossExec,
			fixConfig,
			injection.Config{
				MinLength:           cfg.Injection.MinLength,
				ConfidenceThreshold: cfg.Injection.ConfidenceThreshold,
				CrossValidate:       cfg.Injection.CrossValidate,
			},
			sysLogger,
		)
	}

	// 4. Infrastructure
	// NATS (optional: terminal run events are forwarded when reachable)
	natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
	}

	// Redis-backed rate limiting is opt-in; the in-process limiter is the
	// default for single-instance deployments.
	var limiter pool.AdmissionLimiter
	if cfg.Limits.UseRedis {
		opt, err := redis.ParseURL(cfg.App.RedisURL)
		if err != nil {
			log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
			opt = &redis.Options{
				Addr: cfg.App.RedisURL,
			}
		}
		rdb := redis.NewClient(opt)
		if _, err := rdb.Ping(context.Background()).Result(); err != nil {
			log.Printf("[WARN] Failed to connect to Redis: %v", err)
		}
		limiter = pool.NewRedisRateLimiter(rdb, cfg.Limits.RunsPerMinute, cfg.Limits.DailyRuns)
	} else {
		limiter = pool.NewRateLimiter(cfg.Limits.RunsPerMinute, cfg.Limits.DailyRuns)
	}

	concLimiter := pool.NewConcurrencyLimiter(cfg.Pool.MaxRunsPerUser)
	runPool := pool.New(pool.Config{
		MaxWorkers:      cfg.Pool.MaxWorkers,
		GlobalActiveCap: cfg.Pool.MaxGlobalActive,
		Retention:       cfg.Pool.TrackedRunMaxAge,
	}, limiter, concLimiter, sysLogger)

	// 5. Services
	researchCache := memory.NewResearchCache(cfg.Pipeline.ResearchTTL)
	recordService := service.NewRecordService(uowFactory, researchCache, sysLogger)

	eventPublisher := service.NewEventPublisher(pubSub, runEventsTopic, sysLogger)
	consumerService := service.NewConsumerService(
		pubSub,
		runEventsTopic,
		emailService,
		natsPub,
	)

	runService := service.NewRunService(
		runPool,
		agentRunner,
		recordService,
		injectionChecker,
		eventPublisher,
		cfg.Pipeline,
		sysLogger,
	)

	authService := service.NewAuthService(uowFactory)

	// 6. Controllers
	return &Container{
		AuthController:  controller.NewAuthController(authService),
		RunController:   controller.NewRunController(runService),
		ConsumerService: consumerService,
		Pool:            runPool,
		NatsPublisher:   natsPub,
		Logger:          sysLogger,
	}
}
