package redis

import (
	"strconv"

	"github.com/redis/go-redis/v9"

	"barmeet_server/internal/config"
)

// Init builds the redis client from config and returns the cache service.
func Init() *RedisCache {
	conf := config.GetConfig()
	addr := conf.RedisConfig.Host + ":" + strconv.Itoa(conf.RedisConfig.Port)

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: conf.RedisConfig.Password,
		DB:       conf.RedisConfig.Db,

		PoolSize:     50,
		MinIdleConns: 15,
	})

	// 15 workers, 3000 queued tasks: shared by every service doing
	// write-behind cache maintenance.
	return NewRedisCache(client, 15, 3000)
}
