package database

import (
	"Recharge/config"
	"Recharge/models"
	"Recharge/pkg/log"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// NewDB 初始化数据库连接
func NewDB(conf *config.Config) *gorm.DB {
	db, err := Open(conf.MySQL)
	if err != nil {
		log.L.Fatal("failed to connect database", zap.Error(err))
	}
	log.L.Info("connect database success", zap.String("driver", conf.MySQL.GetDriver()))
	return db
}

func Open(conf *config.MySQL) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch conf.GetDriver() {
	case "mysql":
		dialector = mysql.Open(conf.Dsn())
	case "postgres":
		dialector = postgres.Open(conf.Dsn())
	default:
		return nil, fmt.Errorf("unsupported database driver %q", conf.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if conf.MaxOpen > 0 {
		sqlDB.SetMaxOpenConns(conf.MaxOpen)
	}
	if conf.MaxIdle > 0 {
		sqlDB.SetMaxIdleConns(conf.MaxIdle)
	}
	return db, nil
}

// Migrate 建表
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.PaymentPackage{},
		&models.PaymentOrder{},
		&models.PaymentNotifyLog{},
		&models.UserPoint{},
		&models.PointsLog{},
	)
}
