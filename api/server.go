package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	awsCfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gin-gonic/gin"
	natsgo "github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"

	"campus/adapters/database"
	natsAdapter "campus/adapters/nats"
	redisAdapter "campus/adapters/redis"
	internalS3 "campus/adapters/s3"
	"campus/api/openapi"
	"campus/models"
	"campus/profile"
)

type ServerImpl struct {
	db              *gorm.DB
	redisClient     *redis.Client
	natsConn        *natsgo.Conn
	streamPublisher *redisAdapter.StreamPublisher
	synchronizer    *profile.Synchronizer
	router          *gin.Engine
	logger          *slog.Logger

	config ServerConfig
}

func NewServer(config ServerConfig) (*ServerImpl, error) {
	const op = "NewServer"
	logger := slog.Default()
	impl := &ServerImpl{logger: logger.With(slog.String("caller", "Server")), config: config}

	// 載入驗證 access token 用的公鑰
	publicKey, err := openapi.LoadPublicKey(config.Auth.PublicKeyPath)
	if err != nil {
		return nil, fmt.Errorf("[%s] Fail to load public key, err=%w", op, err)
	}

	// 初始化資料庫連線
	dsn := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable&search_path=%s", config.DB.User, config.DB.Password, config.DB.Host, config.DB.Port, config.DB.Database, config.DB.Schema)
	namingStrategy := schema.NamingStrategy{}
	if config.DB.Schema != "" {
		namingStrategy.TablePrefix = config.DB.Schema + "."
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		TranslateError: true,
		NamingStrategy: namingStrategy,
	})
	if err != nil {
		return nil, fmt.Errorf("[%s] Fail to connect to database, err=%w", op, err)
	}
	impl.db = db
	if config.DB.AutoMigrate {
		if err := models.Migrate(db); err != nil {
			return nil, fmt.Errorf("[%s] Fail to migrate database, err=%w", op, err)
		}
	}

	// 初始化S3客戶端與大頭貼上傳器
	s3Cfg, err := awsCfg.LoadDefaultConfig(
		context.Background(),
		awsCfg.WithBaseEndpoint(config.S3.Endpoint),
		awsCfg.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(config.S3.AccessKeyID, config.S3.SecretAccessKey, "")),
		awsCfg.WithRegion("auto"),
	)
	if err != nil {
		return nil, fmt.Errorf("[%s] Fail to load AWS config, err=%w", op, err)
	}
	objectStore, err := internalS3.NewObjectStore(s3.NewFromConfig(s3Cfg), config.S3.Bucket, config.S3.PublicBaseURL)
	if err != nil {
		return nil, fmt.Errorf("[%s] Fail to create object store, err=%w", op, err)
	}
	uploaderOpts := []internalS3.ProfileImageOption{
		internalS3.WithLogger(logger),
		internalS3.WithImageRecords(db),
	}
	if config.S3.MaxImageBytes > 0 {
		uploaderOpts = append(uploaderOpts, internalS3.WithMaxBytes(config.S3.MaxImageBytes))
	}
	if config.S3.MaxImageDimension > 0 {
		uploaderOpts = append(uploaderOpts, internalS3.WithMaxDimension(config.S3.MaxImageDimension))
	}
	if config.S3.MaxImagePixels > 0 {
		uploaderOpts = append(uploaderOpts, internalS3.WithMaxPixels(config.S3.MaxImagePixels))
	}
	uploader, err := internalS3.NewProfileImageUploader(objectStore, uploaderOpts...)
	if err != nil {
		return nil, fmt.Errorf("[%s] Fail to create profile image uploader, err=%w", op, err)
	}

	synchronizerOpts := []profile.SynchronizerOption{
		profile.WithLogger(logger),
		profile.WithAttachmentUploader(uploader),
	}

	// 初始化Redis連線
	if config.Redis.Addr != "" {
		impl.redisClient = redis.NewClient(&redis.Options{
			Addr:     config.Redis.Addr,
			Password: config.Redis.Password,
			DB:       config.Redis.DB,
		})
		if config.Redis.EnableIdentityLock {
			mutexOpts := []redisAdapter.AutoRenewMutexOption{}
			if config.Redis.LockExpiry > 0 {
				mutexOpts = append(mutexOpts, redisAdapter.WithAutoRenewMutexExpiry(config.Redis.LockExpiry))
			}
			if config.Redis.LockWait > 0 {
				mutexOpts = append(mutexOpts, redisAdapter.WithAutoRenewMutexAcquireTimeout(config.Redis.LockWait))
			}
			locker, err := redisAdapter.NewIdentityLocker(
				impl.redisClient,
				redisAdapter.WithIdentityLockerLogger(logger),
				redisAdapter.WithIdentityLockerKeyPrefix(config.Redis.KeyPrefix),
				redisAdapter.WithIdentityLockerMutexOptions(mutexOpts...),
			)
			if err != nil {
				return nil, fmt.Errorf("[%s] Fail to create identity locker, err=%w", op, err)
			}
			synchronizerOpts = append(synchronizerOpts, profile.WithLocker(locker))
		}
	}

	// 初始化事件發布
	switch config.Events.Backend {
	case EventsBackendRedis:
		if impl.redisClient == nil {
			return nil, fmt.Errorf("[%s] Redis events backend requires redis-addr", op)
		}
		impl.streamPublisher, err = redisAdapter.NewStreamPublisher(
			impl.redisClient,
			config.Redis.KeyPrefix+config.Redis.StreamKeys.ProfileEvents,
			redisAdapter.WithProducerLogger[redisAdapter.SynchronizedMessage](logger),
		)
		if err != nil {
			return nil, fmt.Errorf("[%s] Fail to create stream publisher, err=%w", op, err)
		}
		synchronizerOpts = append(synchronizerOpts, profile.WithEventPublisher(impl.streamPublisher))
	case EventsBackendNATS:
		impl.natsConn, err = natsAdapter.Connect(config.NATS.URL, config.NATS.MaxReconnects, config.NATS.ReconnectWait, logger)
		if err != nil {
			return nil, fmt.Errorf("[%s] Fail to connect to NATS, err=%w", op, err)
		}
		publisher, err := natsAdapter.NewEventPublisher(impl.natsConn, config.NATS.SubjectPrefix)
		if err != nil {
			return nil, fmt.Errorf("[%s] Fail to create NATS publisher, err=%w", op, err)
		}
		synchronizerOpts = append(synchronizerOpts, profile.WithEventPublisher(publisher))
	case EventsBackendNone, "":
	default:
		return nil, fmt.Errorf("[%s] Unknown events backend %q", op, config.Events.Backend)
	}

	// 初始化角色資料同步
	txOpts := []database.TransactionOption{}
	if config.DB.TransactionTimeout > 0 {
		txOpts = append(txOpts, database.WithTransactionTimeout(config.DB.TransactionTimeout))
	}
	impl.synchronizer, err = profile.NewSynchronizer(
		database.NewIdentityStore(db),
		database.NewDepartmentDirectory(db),
		database.NewProfileRepository(db),
		database.NewTransactionCoordinator(db, txOpts...),
		synchronizerOpts...,
	)
	if err != nil {
		return nil, fmt.Errorf("[%s] Fail to create synchronizer, err=%w", op, err)
	}
	handlerOpts := []ProfileHandlerOption{WithHandlerLogger(logger)}
	if config.S3.MaxImageBytes > 0 {
		handlerOpts = append(handlerOpts, WithMaxImageBytes(config.S3.MaxImageBytes))
	}
	if config.S3.MaxImagePixels > 0 {
		handlerOpts = append(handlerOpts, WithMaxImagePixels(config.S3.MaxImagePixels))
	}
	profileHandler, err := NewProfileHandler(impl.synchronizer, publicKey, handlerOpts...)
	if err != nil {
		return nil, fmt.Errorf("[%s] Fail to create profile handler, err=%w", op, err)
	}

	// 註冊路由
	impl.router = gin.New()
	impl.router.Use(gin.Logger(), gin.Recovery())
	impl.router.GET("/healthz", impl.Healthz)
	if err := profileHandler.RegisterRoutes(impl.router); err != nil {
		return nil, fmt.Errorf("[%s] Fail to register routes, err=%w", op, err)
	}

	return impl, nil
}

func (impl *ServerImpl) Start() {
	if impl.streamPublisher != nil {
		impl.streamPublisher.Start()
	}
}

// Handler 回傳註冊好所有路由的 gin engine
func (impl *ServerImpl) Handler() http.Handler {
	return impl.router
}

// Healthz 檢查資料庫是否可用
func (impl *ServerImpl) Healthz(c *gin.Context) {
	sqlDB, err := impl.db.DB()
	if err == nil {
		err = sqlDB.PingContext(c.Request.Context())
	}
	if err != nil {
		impl.logger.Warn("Health check failed", slog.Any("error", err))
		c.Status(http.StatusServiceUnavailable)
		return
	}
	c.Status(http.StatusOK)
}

func (impl *ServerImpl) Close() {
	// 先停止事件發布，再關閉連線
	if impl.streamPublisher != nil {
		impl.streamPublisher.Close()
	}
	if impl.natsConn != nil {
		if err := impl.natsConn.Drain(); err != nil {
			impl.logger.Warn("Fail to drain NATS connection", slog.Any("error", err))
		}
	}
	if impl.redisClient != nil {
		if err := impl.redisClient.Close(); err != nil && !errors.Is(err, redis.ErrClosed) {
			impl.logger.Warn("Fail to close redis client", slog.Any("error", err))
		}
	}
	if sqlDB, err := impl.db.DB(); err == nil {
		sqlDB.Close()
	}
}
