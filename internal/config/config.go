package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	DriverSqlite   = "sqlite"
	DriverPostgres = "postgres"
	DriverBadger   = "badger"
)

// Config is read from the environment, a .env file in the working directory
// is loaded first when present.
type Config struct {
	DB      DBConfig
	LinkBag LinkBagConfig

	// RecordCompression names the codec of stored payloads: nop, gzip, lz4 or brotli.
	RecordCompression string

	RedisAddr       string
	KafkaBrokers    string
	KafkaIndexTopic string

	GrpcPort      string
	HttpPort      string
	AuditSchedule string

	LogLevel  string
	LogFormat string
}

type DBConfig struct {
	Driver string
	DSN    string
	Path   string // badger directory or sqlite file when DSN is empty
}

type LinkBagConfig struct {
	// EmbeddedToExternalThreshold is the size at which a bag moves to a tree.
	EmbeddedToExternalThreshold int
	// ExternalToEmbeddedThreshold is the size at which a tree backed bag moves
	// back inline, a negative value disables it.
	ExternalToEmbeddedThreshold int
}

func LoadConfig() *Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logrus.Warnf("failed to load .env file: %v", err)
	}

	cfg := &Config{
		DB: DBConfig{
			Driver: getEnv("DB_DRIVER", DriverSqlite),
			DSN:    getEnv("DB_DSN", ""),
			Path:   getEnv("DB_PATH", ".data/linkstore.db"),
		},
		LinkBag: LinkBagConfig{
			EmbeddedToExternalThreshold: getEnvInt("LINKBAG_EMBEDDED_TO_EXTERNAL_THRESHOLD", 40),
			ExternalToEmbeddedThreshold: getEnvInt("LINKBAG_EXTERNAL_TO_EMBEDDED_THRESHOLD", -1),
		},
		RecordCompression: getEnv("RECORD_COMPRESSION", "lz4"),
		RedisAddr:         getEnv("REDIS_ADDR", ""),
		KafkaBrokers:      getEnv("KAFKA_BROKERS", ""),
		KafkaIndexTopic:   getEnv("KAFKA_INDEX_TOPIC", "linkstore.index"),
		GrpcPort:          getEnv("GRPC_PORT", "4020"),
		HttpPort:          getEnv("HTTP_PORT", "4021"),
		AuditSchedule:     getEnv("AUDIT_SCHEDULE", "@every 10m"),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		LogFormat:         getEnv("LOG_FORMAT", "text"),
	}

	SetupLogger(cfg)

	return cfg
}

// SetupLogger configures the package level logrus logger.
func SetupLogger(cfg *Config) {
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		logrus.Warnf("unknown log level %q, using info", cfg.LogLevel)
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)

	if strings.EqualFold(cfg.LogFormat, "json") {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
}

// GetDb opens the relational database, it panics when the database cannot be reached.
func GetDb(cfg *Config) *gorm.DB {
	var dialector gorm.Dialector
	switch cfg.DB.Driver {
	case DriverPostgres:
		dialector = postgres.Open(cfg.DB.DSN)
	case DriverSqlite:
		dsn := cfg.DB.DSN
		if dsn == "" {
			dsn = cfg.DB.Path
		}
		dialector = sqlite.Open(dsn)
	default:
		logrus.Fatalf("driver %s has no relational database", cfg.DB.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		logrus.Errorf("failed to connect database: %v", err)
		panic(err)
	}

	return db
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}

	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback
	}

	n, err := strconv.Atoi(value)
	if err != nil {
		logrus.Warnf("invalid %s=%q, using %d", key, value, fallback)
		return fallback
	}

	return n
}
