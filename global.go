package sqlchat

import (
	"database/sql"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

var (
	DB     *sql.DB
	Logger zerolog.Logger
	Redis  *redis.Client
)
