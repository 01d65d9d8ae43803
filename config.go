package sqlchat

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
)

type AppConfig struct {
	Mode    string
	ApiPort string
	LLM     struct {
		BaseURL      string
		APIKey       string
		ChatModel    string
		EmbedModel   string
		EmbeddingDim int
	}
	Pipeline struct {
		TopK              int
		FKExpansionDepth  int
		MaxAttempts       int
		SQLTimeoutSeconds int
		MaxRows           int
		AnswerSampleRows  int
		QuestionMaxLen    int
	}
	MainDatabase struct {
		Host         string
		Port         string
		User         string
		Password     string
		DatabaseName string
		SSLMode      string
	}
	Typesense struct {
		URL    string
		APIKey string
	}
	RedisConfig struct {
		Host     string
		Port     string
		Password string
		DB       int
	}
}

var config AppConfig

func InitConfig(envfile string) {
	err := godotenv.Load(envfile)
	if err != nil {
		log.Fatal(fmt.Sprintf("Error loading %s file: %s", envfile, err))
	}
	config = AppConfig{
		Mode:    getEnvOrPanic("RUN_MODE"),
		ApiPort: getEnvOrPanic("API_PORT"),
		LLM: struct {
			BaseURL      string
			APIKey       string
			ChatModel    string
			EmbedModel   string
			EmbeddingDim int
		}{
			BaseURL:      GetEnv("LLM_BASE_URL", "http://localhost:11434/v1"),
			APIKey:       GetEnv("LLM_API_KEY", "ollama"),
			ChatModel:    GetEnv("LLM_CHAT_MODEL", "llama3.2"),
			EmbedModel:   GetEnv("LLM_EMBED_MODEL", "nomic-embed-text"),
			EmbeddingDim: getIntEnvOrDefault("LLM_EMBEDDING_DIM", 768),
		},
		Pipeline: struct {
			TopK              int
			FKExpansionDepth  int
			MaxAttempts       int
			SQLTimeoutSeconds int
			MaxRows           int
			AnswerSampleRows  int
			QuestionMaxLen    int
		}{
			TopK:              getIntEnvOrDefault("RETRIEVAL_TOP_K", 5),
			FKExpansionDepth:  getIntEnvOrDefault("FK_EXPANSION_DEPTH", 1),
			MaxAttempts:       getIntEnvOrDefault("MAX_ATTEMPTS", 2),
			SQLTimeoutSeconds: getIntEnvOrDefault("SQL_TIMEOUT_SECONDS", 30),
			MaxRows:           getIntEnvOrDefault("MAX_ROWS", 200),
			AnswerSampleRows:  getIntEnvOrDefault("ANSWER_SAMPLE_ROWS", 20),
			QuestionMaxLen:    getIntEnvOrDefault("QUESTION_MAX_LEN", 500),
		},
		MainDatabase: struct {
			Host         string
			Port         string
			User         string
			Password     string
			DatabaseName string
			SSLMode      string
		}{
			Host:         getEnvOrPanic("DB_HOSTNAME"),
			Port:         getEnvOrPanic("DB_PORT"),
			User:         getEnvOrPanic("DB_USERNAME"),
			Password:     getEnvOrPanic("DB_PASSWORD"),
			DatabaseName: getEnvOrPanic("DB_NAME"),
			SSLMode:      getEnvOrPanic("DB_SSL_MODE"),
		},
		Typesense: struct {
			URL    string
			APIKey string
		}{
			URL:    GetEnv("TYPESENSE_URL", "http://localhost:8108"),
			APIKey: getEnvOrPanic("TYPESENSE_API_KEY"),
		},
		RedisConfig: struct {
			Host     string
			Port     string
			Password string
			DB       int
		}{
			Host:     GetEnv("REDIS_HOST", "localhost"),
			Port:     GetEnv("REDIS_PORT", "6379"),
			Password: GetEnv("REDIS_PASSWORD", ""),
			DB:       getIntEnvOrDefault("REDIS_DB", 0),
		},
	}

	DB = connectToPostgres(config.MainDatabase.Host, config.MainDatabase.User, config.MainDatabase.Password, config.MainDatabase.DatabaseName, config.MainDatabase.Port, config.MainDatabase.SSLMode)
	Logger = initLogger()
	Redis = connectToRedis(config.RedisConfig.Host, config.RedisConfig.Port, config.RedisConfig.Password, config.RedisConfig.DB)
}

func GetConfig() AppConfig {
	return config
}

func getEnvOrPanic(key string) string {
	value := os.Getenv(key)
	if value == "" {
		log.Fatalf("%s must be set", key)
	}
	return value
}

func GetEnv(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getIntEnvOrDefault(key string, defaultValue int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return defaultValue
	}
	return value
}

func connectToPostgres(host string, username string, password string, dbname string, port string, ssl string) *sql.DB {
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		host, username, password, dbname, port, ssl)

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		panic(err)
	}
	db.SetMaxIdleConns(10)
	db.SetMaxOpenConns(10)
	db.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		panic(fmt.Sprintf("Failed to connect to Postgres: %v", err))
	}
	return db
}

func initLogger() zerolog.Logger {
	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: "15:04:05",
		NoColor:    false,
		FormatLevel: func(i interface{}) string {
			return strings.ToUpper(fmt.Sprintf("| %-6s|", i))
		},
		FormatMessage: func(i interface{}) string {
			return fmt.Sprintf("  %s  ", i)
		},
		FormatFieldName: func(i interface{}) string {
			return fmt.Sprintf("%s=", i)
		},
		FormatFieldValue: func(i interface{}) string {
			return fmt.Sprintf("%s", i)
		},
	}

	return zerolog.New(output).With().Timestamp().Caller().Logger()
}

func connectToRedis(host string, port string, password string, db int) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", host, port),
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		panic(fmt.Sprintf("Failed to connect to Redis: %v", err))
	}

	return client
}
