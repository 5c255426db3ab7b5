package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"wbor-twilio/internal/assistant"
	"wbor-twilio/internal/audit"
	"wbor-twilio/internal/auth"
	"wbor-twilio/internal/banlist"
	"wbor-twilio/internal/calls"
	"wbor-twilio/internal/classifier"
	"wbor-twilio/internal/config"
	"wbor-twilio/internal/database"
	"wbor-twilio/internal/events"
	"wbor-twilio/internal/httpapi"
	"wbor-twilio/internal/metrics"
	"wbor-twilio/internal/playout"
	"wbor-twilio/internal/recordings"
	"wbor-twilio/internal/sms"
	"wbor-twilio/internal/tasks"
	"wbor-twilio/internal/telephony"
	"wbor-twilio/pkg/logger"
	"wbor-twilio/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// app holds every long-lived dependency of the serve command.
type app struct {
	cfg config.Config
	log *slog.Logger

	db        *database.DB
	rdb       *redis.Client
	publisher events.Publisher
	metrics   *metrics.Metrics
	runner    *tasks.Runner
	eventRun  *tasks.Runner
	events    *events.Emitter
	audit     *audit.Service
	password  *auth.PasswordChecker
	limiter   *httpapi.IPRateLimiter
	signature gin.HandlerFunc

	sms        sms.Handlers
	smsSvc     *sms.Service
	calls      calls.Handlers
	recordings recordings.Handlers
}

func loadConfig() (config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, nil, err
	}
	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)
	return cfg, log, nil
}

// openDatabase connects and applies pending migrations.
func openDatabase(ctx context.Context, cfg config.Config, log *slog.Logger) (*database.DB, error) {
	db, err := database.Open(ctx, cfg.DriverName(), cfg.DSN(), log)
	if err != nil {
		return nil, fmt.Errorf("database init: %w", err)
	}
	if err := db.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("database migrate: %w", err)
	}
	return db, nil
}

func newApp(ctx context.Context, cfg config.Config, log *slog.Logger) (*app, error) {
	a := &app{cfg: cfg, log: log}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	var err error
	if a.db, err = openDatabase(ctx, cfg, log); err != nil {
		return nil, err
	}

	var (
		bans   banlist.Store      = banlist.NewMemoryStore()
		claims recordings.Claimer = recordings.NewMemoryClaimer()
	)
	if addr := cfg.RedisAddr(); addr != "" {
		a.rdb, err = utils.OpenRedis(ctx, utils.RedisConfig{Addr: addr, DB: cfg.Redis.DB})
		if err != nil {
			return nil, fmt.Errorf("redis init: %w", err)
		}
		if bans, err = banlist.NewRedisStore(a.rdb, ""); err != nil {
			return nil, err
		}
		claims = recordings.NewRedisClaimer(a.rdb, "", cfg.Recordings.DownloadTimeout+time.Minute)
	} else {
		log.Warn("REDIS_HOST not set; ban list and recording claims are process-local")
	}

	if cfg.RabbitMQ.URL != "" {
		pub, err := events.NewAMQPPublisher(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange, log)
		if err != nil {
			return nil, fmt.Errorf("rabbitmq init: %w", err)
		}
		a.publisher = pub
	} else {
		a.publisher = events.Nop{}
	}

	a.metrics = metrics.New()
	a.runner = tasks.NewRunner(int64(cfg.Workers.Concurrency), log)
	// Publishing gets its own slots so a stalled broker cannot starve
	// classification or recording downloads.
	a.eventRun = tasks.NewRunner(4, log)
	a.events = events.NewEmitter(a.publisher, a.eventRun, 10*time.Second)
	a.audit = audit.NewService(audit.NewLogRepo(log))
	a.password = auth.NewPasswordChecker(cfg.App.Password, a.audit, log)
	a.limiter = httpapi.NewIPRateLimiter(cfg.App.SendRatePerMinute, 10*time.Minute)

	if cfg.Twilio.ValidateSignature {
		a.signature = telephony.RequireSignature(
			telephony.NewSignatureValidator(cfg.Twilio.AuthToken),
			cfg.App.PublicBaseURL,
			func(c *gin.Context) {
				_ = a.audit.LogSignatureRejected(c.Request.Context(), c.ClientIP(), c.Request.URL.Path)
			},
		)
	} else {
		log.Warn("twilio signature validation is disabled")
	}

	sender, err := telephony.NewTwilioSender(cfg.Twilio.AccountSID, cfg.Twilio.AuthToken, cfg.Twilio.PhoneNumber)
	if err != nil {
		return nil, err
	}

	resolver := playout.NewResolver(playout.Options{
		URL:           cfg.Playout.URL,
		AutomationURL: cfg.Playout.AutomationURL,
		Timeout:       cfg.Playout.Timeout,
		Logger:        log,
	})

	var names telephony.CallerNameLookup
	if cfg.Twilio.LookupCallerName {
		names = sender
	}
	smsSvc, err := sms.NewService(sms.Deps{
		Sender:         sender,
		StationNumber:  sender.From(),
		Password:       a.password,
		Audit:          a.audit,
		Bans:           bans,
		Events:         a.events,
		Runner:         a.runner,
		Metrics:        a.metrics,
		Logger:         log,
		CallerNames:    names,
		InboundTimeout: cfg.Classifier.Timeout + cfg.Playout.Timeout + 30*time.Second,
	})
	if err != nil {
		return nil, err
	}
	if cfg.Classifier.URL != "" {
		chat := classifier.NewChatClient(cfg.Classifier.URL, cfg.Classifier.APIKey, cfg.Classifier.Model, &http.Client{})
		smsSvc.SetInboundHandler(assistant.New(
			classifier.NewAdapter(chat, cfg.Classifier.Timeout, a.metrics, log),
			resolver,
			smsSvc,
			cfg.App.Password,
			a.metrics,
			log,
		))
	} else {
		log.Warn("CLASSIFIER_URL not set; inbound texts are acknowledged without automated replies")
	}
	a.smsSvc = smsSvc
	a.sms = sms.Handlers{
		Service:    smsSvc,
		AutoReply:  cfg.Playout.AutoReply,
		Automation: resolver,
		Media:      sms.MediaInspector{Client: &http.Client{}, Timeout: 10 * time.Second},
	}

	a.calls = calls.Handlers{Events: a.events}

	files, err := recordings.NewFileStore(cfg.Recordings.Dir, cfg.Recordings.Format)
	if err != nil {
		return nil, err
	}
	repo := recordings.NewSQLRepo(a.db)
	pipeline, err := recordings.NewPipeline(recordings.Deps{
		Repo:  repo,
		Files: files,
		Downloader: &recordings.HTTPDownloader{
			Client:     &http.Client{},
			AccountSID: cfg.Twilio.AccountSID,
			AuthToken:  cfg.Twilio.AuthToken,
			Format:     cfg.Recordings.Format,
			Timeout:    cfg.Recordings.DownloadTimeout,
		},
		Claims:  claims,
		Runner:  a.runner,
		Events:  a.events,
		Metrics: a.metrics,
		Logger:  log,
		Timeout: cfg.Recordings.DownloadTimeout + 30*time.Second,
	})
	if err != nil {
		return nil, err
	}
	links, err := auth.NewLinkManager(cfg.Recordings.LinkSecret, cfg.Recordings.LinkTTL)
	if err != nil {
		return nil, err
	}
	a.recordings = recordings.Handlers{
		Pipeline:      pipeline,
		Repo:          repo,
		Links:         links,
		PublicBaseURL: cfg.App.PublicBaseURL,
	}

	a.metrics.Register(repo, a.runner)

	ok = true
	return a, nil
}

func (a *app) healthChecks() map[string]httpapi.Pinger {
	checks := map[string]httpapi.Pinger{
		"database": a.db.Ping,
	}
	if a.rdb != nil {
		checks["redis"] = func(ctx context.Context) error { return a.rdb.Ping(ctx).Err() }
	}
	return checks
}

// outgoingConsumer drains queued send requests into the sms service. It is
// nil when no broker is configured.
func (a *app) outgoingConsumer() (*events.Consumer, error) {
	if a.cfg.RabbitMQ.URL == "" {
		return nil, nil
	}
	return events.NewConsumer(events.ConsumerOptions{
		URL:        a.cfg.RabbitMQ.URL,
		Exchange:   a.cfg.RabbitMQ.Exchange,
		Queue:      a.cfg.RabbitMQ.OutgoingQueue,
		RoutingKey: events.RoutingKey(events.TypeSMSOutgoing),
		Logger:     a.log,
	})
}

// Close releases connections. Safe on a partially built app.
func (a *app) Close() {
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.log.Warn("publisher close failed", "err", err)
		}
	}
	if a.rdb != nil {
		_ = a.rdb.Close()
	}
	if a.db != nil {
		_ = a.db.Close()
	}
}
