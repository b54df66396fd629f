// Package mysql initializes the database connection and the repository layer.
package mysql

import (
	"fmt"

	"barmeet_server/internal/config"
	"barmeet_server/internal/dao/mysql/repository"
	"barmeet_server/internal/model"

	"go.uber.org/zap"
	mysqldriver "gorm.io/driver/mysql"
	"gorm.io/gorm"
)

// Init opens the MySQL connection, migrates the schema and returns the
// repository aggregate. Fatal on failure; the service cannot run without its
// store.
func Init() *repository.Repositories {
	conf := config.GetConfig()

	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		conf.MysqlConfig.User,
		conf.MysqlConfig.Password,
		conf.MysqlConfig.Host,
		conf.MysqlConfig.Port,
		conf.MysqlConfig.DatabaseName,
	)

	db, err := gorm.Open(mysqldriver.Open(dsn), &gorm.Config{})
	if err != nil {
		zap.L().Fatal(err.Error())
	}

	if err := Migrate(db); err != nil {
		zap.L().Fatal(err.Error())
	}

	return repository.NewRepositories(db)
}

// Migrate creates or updates the schema. Shared with the test setup, which
// runs it against sqlite.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.GroupOuting{},
		&model.Participant{},
		&model.Message{},
	)
}
