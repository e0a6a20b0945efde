package app

import (
	"context"
	"database/sql"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/go-sql-driver/mysql"
	"github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"

	"github.com/aq2208/stockorder-api/configs"
	"github.com/aq2208/stockorder-api/internal/adapter/cache"
	httpadapter "github.com/aq2208/stockorder-api/internal/adapter/http"
	"github.com/aq2208/stockorder-api/internal/adapter/kafka"
	"github.com/aq2208/stockorder-api/internal/adapter/observ"
	"github.com/aq2208/stockorder-api/internal/adapter/queue"
	"github.com/aq2208/stockorder-api/internal/adapter/repo"
	"github.com/aq2208/stockorder-api/internal/logging"
	"github.com/aq2208/stockorder-api/internal/usecase"
)

type App struct {
	Router *gin.Engine
}

func InitWithConfig(cfg configs.Config) (*App, func(), error) {
	// init loggers
	logger, _ := observ.NewLogger()
	defer logger.Sync()
	logging.Init(cfg.App.Name, "./logs/app.log")

	// init database
	db, err := sql.Open("mysql", cfg.MySQL.DSN)
	if err != nil {
		return nil, nil, err
	}
	db.SetConnMaxLifetime(cfg.MySQL.ConnMaxLifetime)
	db.SetMaxOpenConns(cfg.MySQL.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MySQL.MaxIdleConns)

	pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	if err := db.PingContext(pingCtx); err != nil {
		cancel()
		return nil, nil, err
	}
	cancel()

	logger.Info("stockorder-api: starting up")

	// init redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       0,
	})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, nil, err
	}

	// init rabbitmq
	conn, err := amqp091.Dial(cfg.Rabbit.URL)
	if err != nil {
		return nil, nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		return nil, nil, err
	}
	producer, err := queue.NewRabbitProducer(ch)
	if err != nil {
		return nil, nil, err
	}

	// background workers share one app context torn down by cleanup
	appCtx, stop := context.WithCancel(context.Background())

	// infra
	productRepo := repo.NewMySQLProductRepo(db)
	orderRepo := repo.NewMySQLOrderRepo(db)
	committer := repo.NewMySQLOrderCommitter(db, repo.Mode(cfg.Placement.Mode))
	outboxRepo := repo.NewMySQLOutboxRepo(db)
	idem := cache.NewRedisIdempotencyStore(rdb, cfg.Idempotency.TTL)
	summaryCache := cache.NewRedisCache(rdb, cfg.Cache.TTL)

	// outbox drainer: placement events leave the db and hit the exchange
	drainer := queue.NewOutboxPublisher(outboxRepo, producer,
		queue.WithInterval(cfg.Outbox.Interval), queue.WithBatchSize(cfg.Outbox.BatchSize))
	go drainer.Start(appCtx)

	// order.placed consumer warms the summary cache
	setupQueue(ch, summaryCache)

	// stock replenishment feed
	if len(cfg.Kafka.Brokers) > 0 {
		setupKafkaListener(appCtx, cfg, productRepo)
	}

	// handlers + router
	placeUC := usecase.NewPlaceOrder(productRepo, committer, orderRepo, idem,
		usecase.WithMaxAttempts(cfg.Placement.MaxAttempts),
		usecase.WithRetryBackoff(cfg.Placement.RetryBackoff))
	h := httpadapter.NewOrderHandler(placeUC, orderRepo, productRepo, summaryCache)
	router := httpadapter.NewRouter(h)

	cleanup := func() {
		stop()
		_ = ch.Close()
		_ = conn.Close()
		_ = rdb.Close()
		_ = db.Close()
	}

	return &App{Router: router}, cleanup, nil
}

func setupQueue(ch *amqp091.Channel, summaryCache usecase.OrderCache) {
	h := queue.NewOrderPlacedHandler(summaryCache)

	router := queue.NewRouter(ch, queue.WithPrefetch(50))
	router.Register("order.placed.q", queue.JSONHandler[usecase.PlacedMsg]{HandleFunc: h.HandlePlaced})

	if err := router.Start(); err != nil {
		panic(err)
	}
}

func setupKafkaListener(ctx context.Context, cfg configs.Config, products usecase.StockReplenisher) {
	grp, err := kafka.NewGroup(cfg.Kafka.Brokers, cfg.Kafka.GroupID)
	if err != nil {
		panic(err)
	}

	h := kafka.NewStockReplenishedHandler(products)
	consumer := kafka.NewConsumer(grp, []string{cfg.Kafka.TopicStock}, h.Handle)
	consumer.Logger = logging.New("kafka")

	go func() {
		if err := consumer.Start(ctx); err != nil && ctx.Err() == nil {
			panic(err)
		}
	}()
}
