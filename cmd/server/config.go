package main

import (
	"os"
	"strings"

	"github.com/profilehub/profiles/oauth"
	"github.com/sirupsen/logrus"
)

const (
	backendPostgres = "postgres"
	backendDynamoDB = "dynamodb"
	backendS3       = "s3"
)

type config struct {
	debug          bool
	syslog         bool
	listenAddr     string
	allowOrigins   string
	pgDsn          string
	kvPath         string
	profileBackend string
	dynamoTable    string
	storageBackend string
	avatarsBucket  string
	provider       oauth.Provider
}

func requireEnv(key string) string {
	value := os.Getenv(key)
	if value == "" {
		logrus.Fatalln(key + " not set!")
	}
	return value
}

func envOr(key string, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func configFromEnv() config {
	debug := os.Getenv("DEBUG") == "true"
	defaultAddr := ":2137"
	if debug {
		defaultAddr = "127.0.0.1:2137"
	}

	cfg := config{
		debug:          debug,
		syslog:         os.Getenv("SYSLOG") == "true",
		listenAddr:     envOr("LISTEN_ADDR", defaultAddr),
		allowOrigins:   envOr("ALLOW_ORIGINS", "*"),
		pgDsn:          requireEnv("POSTGRES_DSN"),
		kvPath:         envOr("KV_PATH", "kv.db"),
		profileBackend: strings.ToLower(envOr("PROFILE_BACKEND", backendPostgres)),
		storageBackend: strings.ToLower(envOr("STORAGE_BACKEND", backendPostgres)),
		provider: oauth.Provider{
			ClientId:     requireEnv("OAUTH_CLIENT_ID"),
			ClientSecret: requireEnv("OAUTH_CLIENT_SECRET"),
			RedirectUri:  requireEnv("OAUTH_REDIRECT_URI"),
			AuthUrl:      requireEnv("OAUTH_AUTH_URL"),
			TokenUrl:     requireEnv("OAUTH_TOKEN_URL"),
			UserInfoUrl:  requireEnv("OAUTH_USERINFO_URL"),
		},
	}

	switch cfg.profileBackend {
	case backendPostgres:
	case backendDynamoDB:
		cfg.dynamoTable = envOr("DYNAMODB_TABLE", "Profiles")
	default:
		logrus.Fatalf("Unknown PROFILE_BACKEND %q.\n", cfg.profileBackend)
	}
	switch cfg.storageBackend {
	case backendPostgres:
		cfg.avatarsBucket = envOr("AVATARS_BUCKET", "avatars")
	case backendS3:
		cfg.avatarsBucket = requireEnv("AVATARS_BUCKET")
	default:
		logrus.Fatalf("Unknown STORAGE_BACKEND %q.\n", cfg.storageBackend)
	}
	return cfg
}
