package setup

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// 支持的数据库驱动
const (
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// DBOptions 描述持久化存储的连接参数
type DBOptions struct {
	Driver   string
	User     string
	Password string
	Host     string
	Port     string
	Name     string
	// SQLitePath 仅在 Driver 为 sqlite 时使用，例如 "chat.db" 或 "file::memory:?cache=shared"
	SQLitePath string
}

// InitDB 根据驱动打开数据库连接并配置连接池
func InitDB(opts DBOptions) (*gorm.DB, error) {
	dialector, err := buildDialector(opts)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", opts.Driver, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	if opts.Driver == DriverSQLite {
		// SQLite 单写者
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(50)
		sqlDB.SetMaxIdleConns(10)
	}
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	logrus.WithField("driver", opts.Driver).Info("Database connected")
	return db, nil
}

// buildDialector 构建对应驱动的 DSN 和 Dialector
func buildDialector(opts DBOptions) (gorm.Dialector, error) {
	switch opts.Driver {
	case DriverMySQL, "":
		if opts.User == "" {
			return nil, fmt.Errorf("DB_USER must be set for mysql")
		}
		port := opts.Port
		if port == "" {
			port = "3306"
		}
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
			opts.User, opts.Password, hostOrDefault(opts.Host), port, opts.Name)
		return mysql.Open(dsn), nil
	case DriverPostgres:
		if opts.User == "" {
			return nil, fmt.Errorf("DB_USER must be set for postgres")
		}
		port := opts.Port
		if port == "" {
			port = "5432"
		}
		dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
			hostOrDefault(opts.Host), opts.User, opts.Password, opts.Name, port)
		return postgres.Open(dsn), nil
	case DriverSQLite:
		path := opts.SQLitePath
		if path == "" {
			path = "chat.db"
		}
		return sqlite.Open(path), nil
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", opts.Driver)
	}
}

func hostOrDefault(host string) string {
	if host == "" {
		return "127.0.0.1"
	}
	return host
}

// InitRedis 初始化 Redis 连接并 Ping 一次
func InitRedis(addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		PoolSize:     20,
		MinIdleConns: 5,
		MaxConnAge:   30 * time.Minute,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := client.Ping(ctx).Result(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	logrus.WithField("addr", addr).Info("Redis connected")
	return client, nil
}
