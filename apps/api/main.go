package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	redisstore "github.com/ulule/limiter/v3/drivers/store/redis"

	echoapi "github.com/TTR-x/ttr-gestion-sub002/apps/api/echo"
	"github.com/TTR-x/ttr-gestion-sub002/core"
	"github.com/TTR-x/ttr-gestion-sub002/core/device"
	"github.com/TTR-x/ttr-gestion-sub002/core/ledger"
	"github.com/TTR-x/ttr-gestion-sub002/core/member"
	"github.com/TTR-x/ttr-gestion-sub002/core/treasury"
	emailsvc "github.com/TTR-x/ttr-gestion-sub002/services/email"
	locksvc "github.com/TTR-x/ttr-gestion-sub002/services/lock"
	logsvc "github.com/TTR-x/ttr-gestion-sub002/services/logger"
	metricsvc "github.com/TTR-x/ttr-gestion-sub002/services/metrics"
	"github.com/TTR-x/ttr-gestion-sub002/storage/database"
	inmemdb "github.com/TTR-x/ttr-gestion-sub002/storage/database/inmem"
	sqlxrepos "github.com/TTR-x/ttr-gestion-sub002/storage/database/sqlx"
)

type repositories struct {
	members  member.Repository
	devices  device.Repository
	ledger   ledger.Repository
	archive  ledger.Archive
	treasury treasury.Repository
}

func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()

	// set up loggers
	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)

	dbLogger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	dbLogger.Enable(!conf.Debug)

	ctx := context.Background()

	// set up DB & repos
	var repos repositories
	if conf.Database.Engine == "postgres" {
		db, err := setUpDB(ctx, conf)
		if err != nil {
			logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
		}
		defer func() {
			if err = db.Close(); err != nil {
				dbLogger.Fatal("Failed to close", err)
			}
		}()
		r := sqlxrepos.NewRepositories(db)
		repos = repositories{r.Members, r.Devices, r.Ledger, r.Archive, r.Treasury}
	} else {
		dbLogger.Warn("using the in-memory database; data is lost on restart")
		r := inmemdb.NewRepositories(inmemdb.Open())
		repos = repositories{r.Members, r.Devices, r.Ledger, r.Archive, r.Treasury}
	}

	// set up redis-backed locks & rate limits when configured
	var (
		locker     core.Locker
		limitStore limiter.Store
	)
	if conf.Redis.Addr != "" {
		client, err := locksvc.NewRedisClient(ctx, conf)
		if err != nil {
			logger.Fatal(fmt.Sprintf("connecting to redis: %v", err), err)
		}
		defer func() { _ = client.Close() }()

		locker = locksvc.NewRedisLocker(client)
		if limitStore, err = newRedisLimitStore(client); err != nil {
			logger.Fatal(fmt.Sprintf("creating rate limit store: %v", err), err)
		}
	} else {
		locker = locksvc.NewLocalLocker()
		limitStore = memory.NewStore()
	}

	// set up services
	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf, logger)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}
	memberSvc := member.NewService(repos.members, logger)
	deviceSvc := device.NewService(repos.devices, mailSvc, conf, logger)
	treasurySvc := treasury.NewService(repos.treasury)
	ledgerSvc := ledger.NewService(repos.ledger, repos.archive, treasurySvc, memberSvc, locker, logger)

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	member.InitValidators(validate, translator)
	ledger.InitValidators(validate, translator)

	metrics, err := metricsvc.NewPrometheusMetrics(prometheus.DefaultRegisterer)
	if err != nil {
		logger.Fatal(fmt.Sprintf("registering metrics: %v", err), err)
	}

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)
	expvar.NewString("dbEngine").Set(conf.Database.Engine)

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start API Service

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	server := echoapi.NewServer(conf.Server.Host, shutdown, &echoapi.Deps{
		Conf:           conf,
		Logger:         logger,
		MemberSvc:      memberSvc,
		DeviceSvc:      deviceSvc,
		LedgerSvc:      ledgerSvc,
		Validate:       validate,
		Translator:     translator,
		Metrics:        metrics,
		Gatherer:       prometheus.DefaultGatherer,
		RateLimitStore: limitStore,
	})

	go func() {
		server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err = <-server.Errors():
		logger.Fatal(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(ctx, conf.Server.ShutdownTimeout)
		defer cancel()

		// asking listener to shutdown and shed load
		if err = server.Shutdown(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				logger.Fatal(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
}

func setUpDB(ctx context.Context, conf *core.Config) (*sqlx.DB, error) {
	if err := database.CreateIfNotExist(ctx, conf); err != nil {
		return nil, err
	}

	db, err := database.Open(conf)
	if err != nil {
		return nil, err
	}

	if err = database.Migrate(db, "up"); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func newRedisLimitStore(client *redis.Client) (limiter.Store, error) {
	return redisstore.NewStoreWithOptions(client, limiter.StoreOptions{
		Prefix: "ttr_limiter",
	})
}
