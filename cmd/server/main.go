package main

import (
	"context"
	"flag"
	"log/syslog"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/profilehub/profiles"
	"github.com/profilehub/profiles/account"
	"github.com/profilehub/profiles/dynamo"
	"github.com/profilehub/profiles/oauth"
	"github.com/profilehub/profiles/persistent"
	"github.com/profilehub/profiles/s3store"
	"github.com/profilehub/profiles/transport/rest"
	"github.com/profilehub/profiles/transport/web"
	"github.com/sirupsen/logrus"
	logrusys "github.com/sirupsen/logrus/hooks/syslog"
	"github.com/tidwall/buntdb"
	"github.com/uptrace/bun"
)

// Multipart overhead on top of the largest avatar.
const bodyLimit = account.MaxAvatarSize + 1<<20

func loadAwsConfig(ctx context.Context) aws.Config {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		logrus.WithError(err).Fatalln("Could not load AWS SDK config.")
	}
	return awsCfg
}

func newBackend(ctx context.Context, cfg config, db *bun.DB, activityStore profiles.ActivityStore) *account.Service {
	var loadedAwsCfg *aws.Config
	awsCfg := func() aws.Config {
		if loadedAwsCfg == nil {
			loaded := loadAwsConfig(ctx)
			loadedAwsCfg = &loaded
		}
		return *loadedAwsCfg
	}

	var profileStore profiles.ProfileStore
	switch cfg.profileBackend {
	case backendDynamoDB:
		logrus.WithField("table", cfg.dynamoTable).Infoln("Using DynamoDB profile store.")
		profileStore = dynamo.NewProfileStore(awsCfg(), cfg.dynamoTable)
	default:
		profileStore = &persistent.ProfileStore{DB: db}
	}

	var objectStore profiles.ObjectStore
	switch cfg.storageBackend {
	case backendS3:
		logrus.WithField("bucket", cfg.avatarsBucket).Infoln("Using S3 object store.")
		objectStore = s3store.NewObjectStore(awsCfg(), cfg.avatarsBucket, account.MaxAvatarSize)
	default:
		objectStore = &persistent.ObjectStore{DB: db, Bucket: cfg.avatarsBucket}
	}

	return &account.Service{
		Profiles: profileStore,
		Objects:  objectStore,
		Activity: activityStore,
	}
}

const apiPrefix = "/api"

// Mounted apps share the root error handler.
func errorHandler(ctx *fiber.Ctx, err error) error {
	if strings.HasPrefix(ctx.Path(), apiPrefix+"/") {
		return rest.ErrorHandler(ctx, err)
	}
	return web.ErrorHandler(ctx, err)
}

func listenAndServe(
	ctx context.Context,
	cfg config,
	bdb *buntdb.DB,
	db *bun.DB,
) func() error {
	userStore := &persistent.UserStore{DB: db}
	activityStore := &persistent.ActivityStore{DB: db}
	sessionStore := &persistent.SessionStore{Buntdb: bdb, ActivityStore: activityStore}
	if err := sessionStore.CreateIndexes(); err != nil {
		logrus.WithError(err).Fatalln("Could not create session indexes.")
	}
	backend := newBackend(ctx, cfg, db, activityStore)
	screens := account.NewScreens(account.DefaultScreenTtl)
	dropScreen := func(session profiles.Session) {
		screens.Drop(session.Id)
	}

	authController := &rest.AuthController{
		CreateOAuthUrl:      oauth.RestUrlFactory(cfg.provider),
		ExchangeAccessToken: oauth.RestAccessTokenExchanger(cfg.provider),
		UserInfoProvider:    oauth.RestUserInfoProvider(cfg.provider.UserInfoUrl),
		SessionStore:        sessionStore,
		UserStore:           userStore,
		OnSignOut:           dropScreen,
	}
	profileController := rest.ProfileController{Backend: backend}
	identityController := rest.IdentityController{}
	activityController := rest.ActivityController{Store: activityStore}
	sessionController := rest.SessionController{Store: sessionStore, OnInvalidated: dropScreen}
	webController := web.Controller{
		Auth:          authController,
		SessionStore:  sessionStore,
		UserStore:     userStore,
		Backend:       backend,
		Screens:       screens,
		SecureCookies: !cfg.debug,
	}

	server := fiber.New(fiber.Config{
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		BodyLimit:    bodyLimit,
		ErrorHandler: errorHandler,
	})
	server.Use(rest.LogHandler())

	api := fiber.New(fiber.Config{
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		BodyLimit:    bodyLimit,
		ErrorHandler: rest.ErrorHandler,
	})

	api.Use(cors.New(cors.Config{AllowOrigins: cfg.allowOrigins}))

	requestAuthorizer := rest.RequestAuthorizer(sessionStore, userStore)
	rest.InstallStatus(requestAuthorizer, api)
	authController.InstallTo(api)
	identityController.InstallTo(requestAuthorizer, api)
	profileController.InstallTo(requestAuthorizer, api)
	activityController.InstallTo(requestAuthorizer, api)
	sessionController.InstallTo(requestAuthorizer, api)
	api.Use(rest.NotFoundHandler)

	server.Mount(apiPrefix, api)
	webController.InstallTo(server)
	server.Use(func(ctx *fiber.Ctx) error {
		return fiber.ErrNotFound
	})

	go func() {
		if err := server.Listen(cfg.listenAddr); err != nil {
			logrus.WithError(err).Fatalln("Could not listen.")
		}
	}()

	return server.Shutdown
}

func setupLogger(verbose bool, useSyslog bool) {
	logrus.SetFormatter(&logrus.TextFormatter{
		TimestampFormat: time.Stamp,
		FullTimestamp:   true,
	})
	if verbose {
		logrus.SetLevel(logrus.DebugLevel)
	}
	if !useSyslog {
		return
	}

	syslogHook, err := logrusys.NewSyslogHook("", "", syslog.LOG_USER, "profiles")
	if err != nil {
		logrus.WithError(err).Fatalln("Could not create syslog hook.")
		return
	}
	logrus.AddHook(syslogHook)
}

func awaitInterruption() {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)
	<-c
}

func main() {
	flag.Parse()
	cfg := configFromEnv()
	setupLogger(cfg.debug, cfg.syslog)
	logrus.Infoln("Starting profiles server.")

	bdb, err := buntdb.Open(cfg.kvPath)
	if err != nil {
		logrus.WithError(err).Fatalln("Could not open buntdb.")
	}
	defer bdb.Close()

	logrus.Infoln("Opening database.")
	ctx := context.Background()
	pg := persistent.PgOpen(ctx, cfg.pgDsn)
	defer pg.Close()
	if err := persistent.CreateSchema(ctx, pg); err != nil {
		logrus.WithError(err).Fatalln("Could not create database schema.")
	}

	logrus.
		WithField("addr", cfg.listenAddr).
		WithField("origins", strings.Split(cfg.allowOrigins, ",")).
		Infoln("Starting listening... To shut down use ^C")
	shutdown := listenAndServe(ctx, cfg, bdb, pg)

	awaitInterruption()

	logrus.Infoln("Shutting down...")
	err = shutdown()
	if err != nil {
		logrus.WithError(err).Warningln("Fiber shutdown failed.")
	}
	logrus.Exit(0)
}
