package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/go-chi/chi"
	"github.com/golang-migrate/migrate/v4"
	migratep "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jessevdk/go-flags"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/Decentr-net/logrus/sentry"

	"github.com/Decentr-net/plutus/internal/entities"
	"github.com/Decentr-net/plutus/internal/feed/neynar"
	"github.com/Decentr-net/plutus/internal/health"
	"github.com/Decentr-net/plutus/internal/ledger"
	"github.com/Decentr-net/plutus/internal/ledger/ethereum"
	"github.com/Decentr-net/plutus/internal/notify"
	"github.com/Decentr-net/plutus/internal/notify/webhook"
	"github.com/Decentr-net/plutus/internal/retry"
	"github.com/Decentr-net/plutus/internal/scheduler/periodic"
	"github.com/Decentr-net/plutus/internal/server"
	"github.com/Decentr-net/plutus/internal/service/eligibility"
	"github.com/Decentr-net/plutus/internal/service/impl"
	"github.com/Decentr-net/plutus/internal/service/reward"
	"github.com/Decentr-net/plutus/internal/service/trend"
	"github.com/Decentr-net/plutus/internal/storage"
	"github.com/Decentr-net/plutus/internal/storage/file"
	"github.com/Decentr-net/plutus/internal/storage/postgres"
	"github.com/Decentr-net/plutus/internal/summarizer/openai"
)

// nolint:lll,gochecknoglobals
var opts = struct {
	Host           string        `long:"http.host" env:"HTTP_HOST" default:"0.0.0.0" description:"IP to listen on"`
	Port           int           `long:"http.port" env:"HTTP_PORT" default:"8080" description:"port to listen on for insecure connections"`
	RequestTimeout time.Duration `long:"http.request_timeout" env:"HTTP_REQUEST_TIMEOUT" default:"3m" description:"request timeout, should be greater than pipeline run timeout"`

	Storage                    string `long:"storage" env:"STORAGE" default:"file" choice:"file" choice:"postgres" description:"stores backend"`
	StorageDir                 string `long:"storage.dir" env:"STORAGE_DIR" default:"data" description:"directory of file stores"`
	Postgres                   string `long:"postgres" env:"POSTGRES" default:"host=localhost port=5432 user=postgres password=root sslmode=disable" description:"postgres dsn"`
	PostgresMaxOpenConnections int    `long:"postgres.max_open_connections" env:"POSTGRES_MAX_OPEN_CONNECTIONS" default:"0" description:"postgres maximal open connections count, 0 means unlimited"`
	PostgresMaxIdleConnections int    `long:"postgres.max_idle_connections" env:"POSTGRES_MAX_IDLE_CONNECTIONS" default:"5" description:"postgres maximal idle connections count"`
	PostgresMigrations         string `long:"postgres.migrations" env:"POSTGRES_MIGRATIONS" default:"scripts/migrations/postgres" description:"postgres migrations directory"`

	FeedURL     string        `long:"feed.url" env:"FEED_URL" default:"https://api.neynar.com" description:"social feed api url"`
	FeedAPIKey  string        `long:"feed.api_key" env:"FEED_API_KEY" required:"true" description:"social feed api key"`
	FeedTimeout time.Duration `long:"feed.timeout" env:"FEED_TIMEOUT" default:"10s" description:"timeout for a single feed request"`

	LedgerRPC            string        `long:"ledger.rpc" env:"LEDGER_RPC" required:"true" description:"ethereum json-rpc endpoint"`
	LedgerChainID        int64         `long:"ledger.chain_id" env:"LEDGER_CHAIN_ID" default:"0" description:"chain id, 0 means requested from node"`
	LedgerRegistry       string        `long:"ledger.registry" env:"LEDGER_REGISTRY" required:"true" description:"claim registry contract address"`
	LedgerRewardContract string        `long:"ledger.reward_contract" env:"LEDGER_REWARD_CONTRACT" required:"true" description:"reward nft contract address"`
	LedgerPrivateKey     string        `long:"ledger.private_key" env:"LEDGER_PRIVATE_KEY" required:"true" description:"hex private key of the minter"`
	LedgerTimeout        time.Duration `long:"ledger.timeout" env:"LEDGER_TIMEOUT" default:"15s" description:"timeout for a single rpc request"`
	ExplorerURL          string        `long:"ledger.explorer_url" env:"LEDGER_EXPLORER_URL" default:"https://sepolia.basescan.org" description:"block explorer base url"`

	SummarizerURL     string        `long:"summarizer.url" env:"SUMMARIZER_URL" default:"https://api.openai.com/v1" description:"chat completions api url"`
	SummarizerAPIKey  string        `long:"summarizer.api_key" env:"SUMMARIZER_API_KEY" description:"chat completions api key, heuristic summaries are used if empty"`
	SummarizerModel   string        `long:"summarizer.model" env:"SUMMARIZER_MODEL" default:"gpt-4o-mini" description:"chat completions model"`
	SummarizerTimeout time.Duration `long:"summarizer.timeout" env:"SUMMARIZER_TIMEOUT" default:"10s" description:"timeout for summarization"`

	NotifyURL string `long:"notify.url" env:"NOTIFY_URL" description:"webhook url for strong trend notifications, disabled if empty"`

	CampaignID         string        `long:"pipeline.campaign_id" env:"PIPELINE_CAMPAIGN_ID" default:"trend-rewards" description:"campaign id"`
	FallbackCampaignID string        `long:"pipeline.fallback_campaign_id" env:"PIPELINE_FALLBACK_CAMPAIGN_ID" default:"demo-campaign" description:"campaign id used when the main one is not configured"`
	MinTrendScore      float64       `long:"pipeline.min_trend_score" env:"PIPELINE_MIN_TREND_SCORE" default:"0.5" description:"minimal trend score"`
	StrongTrendScore   float64       `long:"pipeline.strong_trend_score" env:"PIPELINE_STRONG_TREND_SCORE" default:"0.7" description:"trend score which triggers notification"`
	MaxRecipients      int           `long:"pipeline.max_recipients" env:"PIPELINE_MAX_RECIPIENTS" default:"5" description:"maximal count of eligible recipients"`
	WeightTrend        float64       `long:"pipeline.weight.trend" env:"PIPELINE_WEIGHT_TREND" default:"0.40" description:"weight of trend score"`
	WeightFollower     float64       `long:"pipeline.weight.follower" env:"PIPELINE_WEIGHT_FOLLOWER" default:"0.20" description:"weight of followers"`
	WeightPowerBadge   float64       `long:"pipeline.weight.power_badge" env:"PIPELINE_WEIGHT_POWER_BADGE" default:"0.15" description:"weight of power badge"`
	WeightEngagement   float64       `long:"pipeline.weight.engagement" env:"PIPELINE_WEIGHT_ENGAGEMENT" default:"0.25" description:"weight of engagement"`
	XPAmount           int64         `long:"pipeline.xp_amount" env:"PIPELINE_XP_AMOUNT" default:"10" description:"xp awarded per reward"`
	CooldownWindow     time.Duration `long:"pipeline.cooldown" env:"PIPELINE_COOLDOWN" default:"24h" description:"minimal interval between claims of one address"`
	LeaderboardSize    int           `long:"pipeline.leaderboard_size" env:"PIPELINE_LEADERBOARD_SIZE" default:"100" description:"maximal count of leaderboard entries"`
	EnergyMax          int           `long:"pipeline.energy.max" env:"PIPELINE_ENERGY_MAX" default:"3" description:"maximal energy"`
	EnergyInterval     time.Duration `long:"pipeline.energy.interval" env:"PIPELINE_ENERGY_INTERVAL" default:"20m" description:"time to recharge one energy unit"`
	RunTimeout         time.Duration `long:"pipeline.run_timeout" env:"PIPELINE_RUN_TIMEOUT" default:"2m" description:"timeout of a whole pipeline run"`

	ScheduleInterval time.Duration `long:"schedule.interval" env:"SCHEDULE_INTERVAL" default:"30m" description:"interval of scheduled runs"`
	ScheduleChannel  string        `long:"schedule.channel" env:"SCHEDULE_CHANNEL" default:"global" description:"channel of scheduled runs"`

	LogLevel  string `long:"log.level" env:"LOG_LEVEL" default:"info" description:"Log level" choice:"debug" choice:"info" choice:"warning" choice:"error"`
	SentryDSN string `long:"sentry.dsn" env:"SENTRY_DSN" description:"sentry dsn"`
}{}

var errTerminated = errors.New("terminated")

type stores struct {
	leaderboard storage.LeaderboardStore
	cooldown    storage.CooldownStore
	energy      storage.EnergyStore
	pinger      storage.Pinger
}

func main() {
	parser := flags.NewParser(&opts, flags.Default)
	parser.ShortDescription = "Plutus"
	parser.LongDescription = "Plutus detects social trends and rewards their participants on-chain"

	_, err := parser.Parse()

	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			parser.WriteHelp(os.Stdout)
			os.Exit(0)
		}
		logrus.WithError(err).Fatal("error occurred while parsing flags")
	}

	lvl, _ := logrus.ParseLevel(opts.LogLevel) // err will always be nil
	logrus.SetLevel(lvl)

	if opts.SentryDSN != "" {
		hook, err := sentry.NewHook(sentry.Options{
			Dsn:              opts.SentryDSN,
			AttachStacktrace: true,
			Release:          health.GetVersion(),
			ServerName:       "plutus",
		}, logrus.PanicLevel, logrus.FatalLevel, logrus.ErrorLevel)

		if err != nil {
			logrus.WithError(err).Fatal("failed to init sentry")
		}

		logrus.AddHook(hook)
	} else {
		logrus.Info("empty sentry dsn")
		logrus.Warn("skip sentry initialization")
	}

	rankerCfg := mustGetRankerConfig()

	s := mustGetStores()
	l := mustGetLedger()
	f := neynar.New(&http.Client{}, neynar.Config{
		URL:    opts.FeedURL,
		APIKey: opts.FeedAPIKey,
		Retry:  retryConfig(opts.FeedTimeout),
	})

	pipeline := impl.New(
		trend.New(
			f,
			openai.New(&http.Client{}, openai.Config{
				URL:    opts.SummarizerURL,
				APIKey: opts.SummarizerAPIKey,
				Model:  opts.SummarizerModel,
				Retry:  retryConfig(opts.SummarizerTimeout),
			}),
			trendConfig(),
			trend.WithNotifier(mustGetNotifier()),
		),
		eligibility.New(
			f,
			l,
			rankerCfg,
			eligibility.WithCooldown(s.cooldown),
		),
		reward.New(l, reward.Config{XPAmount: opts.XPAmount}),
		impl.Config{
			RunTimeout:  opts.RunTimeout,
			ExplorerURL: opts.ExplorerURL,
		},
		impl.WithLeaderboard(s.leaderboard),
		impl.WithCooldown(s.cooldown),
		impl.WithLedger(l),
	)

	sch := periodic.New(pipeline, entities.Payload{ChannelID: opts.ScheduleChannel}, opts.ScheduleInterval)

	r := chi.NewMux()
	r.Get("/health", health.Handler(
		5*time.Second,
		sch,
		health.SubjectPinger("storage", s.pinger.Ping),
		health.SubjectPinger("ledger", l.Ping),
	))
	r.Handle("/metrics", promhttp.Handler())
	r.Group(func(r chi.Router) {
		server.SetupRouter(server.Deps{
			Pipeline:    pipeline,
			Leaderboard: s.leaderboard,
			Cooldown:    s.cooldown,
			Energy:      s.energy,
			Ledger:      l,
			CampaignID:  opts.CampaignID,
		}, r, opts.RequestTimeout)
	})

	srv := http.Server{
		Addr:              fmt.Sprintf("%s:%d", opts.Host, opts.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())

	gr, _ := errgroup.WithContext(ctx)
	gr.Go(func() error {
		return sch.Run(ctx)
	})
	gr.Go(srv.ListenAndServe)
	gr.Go(func() error {
		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

		s := <-sigs

		logrus.Infof("terminating by %s signal", s)

		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logrus.WithError(err).Error("failed to shutdown http server")
		}

		return errTerminated
	})

	logrus.Info("service started")

	if err := gr.Wait(); err != nil && !errors.Is(err, errTerminated) && !errors.Is(err, http.ErrServerClosed) {
		logrus.WithError(err).Fatal("plutus service unexpectedly closed")
	}
}

func retryConfig(timeout time.Duration) retry.Config {
	cfg := retry.DefaultConfig()
	cfg.AttemptTimeout = timeout

	return cfg
}

func trendConfig() trend.Config {
	cfg := trend.DefaultConfig()
	cfg.MinTrendScore = opts.MinTrendScore
	cfg.StrongTrendScore = opts.StrongTrendScore
	cfg.SummaryTimeout = opts.SummarizerTimeout

	return cfg
}

func mustGetRankerConfig() eligibility.Config {
	cfg := eligibility.Config{
		CampaignID:         opts.CampaignID,
		FallbackCampaignID: opts.FallbackCampaignID,
		MaxRecipients:      opts.MaxRecipients,
		EngagerLimit:       eligibility.DefaultConfig().EngagerLimit,
		Weights: eligibility.Weights{
			Trend:      opts.WeightTrend,
			Follower:   opts.WeightFollower,
			PowerBadge: opts.WeightPowerBadge,
			Engagement: opts.WeightEngagement,
		},
	}

	if err := cfg.Validate(); err != nil {
		logrus.WithError(err).Fatal("invalid pipeline config")
	}

	return cfg
}

func mustGetNotifier() notify.Notifier {
	if opts.NotifyURL == "" {
		logrus.Warn("empty notify url, notifications are disabled")
		return nil
	}

	return webhook.New(&http.Client{}, webhook.Config{
		URL:   opts.NotifyURL,
		Retry: retry.DefaultConfig(),
	})
}

func mustGetLedger() ledger.Ledger {
	c, err := ethclient.Dial(opts.LedgerRPC)
	if err != nil {
		logrus.WithError(err).Fatal("failed to dial ledger rpc")
	}

	var chainID *big.Int
	if opts.LedgerChainID != 0 {
		chainID = big.NewInt(opts.LedgerChainID)
	}

	l, err := ethereum.New(c, ethereum.Config{
		Registry:       opts.LedgerRegistry,
		RewardContract: opts.LedgerRewardContract,
		PrivateKey:     opts.LedgerPrivateKey,
		ChainID:        chainID,
		Retry:          retryConfig(opts.LedgerTimeout),
	})
	if err != nil {
		logrus.WithError(err).Fatal("failed to create ledger")
	}

	return l
}

func mustGetStores() stores {
	policy := storage.EnergyPolicy{Max: opts.EnergyMax, Interval: opts.EnergyInterval}

	if opts.Storage == "postgres" {
		b := postgres.New(mustGetDB(), postgres.Config{
			LeaderboardSize: opts.LeaderboardSize,
			CooldownWindow:  opts.CooldownWindow,
			Energy:          policy,
		})

		return stores{
			leaderboard: b,
			cooldown:    b,
			energy:      b,
			pinger:      b,
		}
	}

	if err := os.MkdirAll(opts.StorageDir, 0o755); err != nil {
		logrus.WithError(err).Fatal("failed to create storage dir")
	}

	return stores{
		leaderboard: file.NewLeaderboard(filepath.Join(opts.StorageDir, file.LeaderboardFile), opts.LeaderboardSize),
		cooldown:    file.NewCooldown(filepath.Join(opts.StorageDir, file.CooldownFile), opts.CooldownWindow, nil),
		energy:      file.NewEnergy(filepath.Join(opts.StorageDir, file.EnergyFile), policy, nil),
		pinger:      file.NewPinger(opts.StorageDir),
	}
}

func mustGetDB() *sql.DB {
	db, err := sql.Open("postgres", opts.Postgres)
	if err != nil {
		logrus.WithError(err).Fatal("failed to create postgres connection")
	}
	db.SetMaxOpenConns(opts.PostgresMaxOpenConnections)
	db.SetMaxIdleConns(opts.PostgresMaxIdleConnections)

	if err := db.PingContext(context.Background()); err != nil {
		logrus.WithError(err).Fatal("failed to ping postgres")
	}

	driver, err := migratep.WithInstance(db, &migratep.Config{})
	if err != nil {
		logrus.WithError(err).Fatal("failed to create database migrate driver")
	}

	migrator, err := migrate.NewWithDatabaseInstance(fmt.Sprintf("file://%s", opts.PostgresMigrations), "postgres", driver)
	if err != nil {
		logrus.WithError(err).Fatal("failed to create migrator")
	}

	switch v, d, err := migrator.Version(); err {
	case nil:
		logrus.Infof("database version %d with dirty state %t", v, d)
	case migrate.ErrNilVersion:
		logrus.Info("database version: nil")
	default:
		logrus.WithError(err).Fatal("failed to get version")
	}

	switch err := migrator.Up(); err {
	case nil:
		logrus.Info("database was migrated")
	case migrate.ErrNoChange:
		logrus.Info("database is up-to-date")
	default:
		logrus.WithError(err).Fatal("failed to migrate db")
	}

	return db
}
