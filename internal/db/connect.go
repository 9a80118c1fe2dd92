package db

import (
	"fmt"
	"strconv"
	"time"

	mysqldrv "github.com/go-sql-driver/mysql"
	"github.com/zulandar/signalbox/internal/config"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DSN builds a MySQL DSN for a provider. An empty database selects no schema,
// which ConnectAdmin uses for CREATE DATABASE.
func DSN(p config.ProviderConfig) string {
	c := mysqldrv.NewConfig()
	c.User = p.User
	c.Passwd = p.Password
	c.Net = "tcp"
	c.Addr = p.Host + ":" + strconv.Itoa(p.Port)
	c.DBName = p.Database
	c.ParseTime = true
	c.Timeout = 5 * time.Second
	return c.FormatDSN()
}

// Connect opens a GORM connection for a storage provider.
func Connect(p config.ProviderConfig) (*gorm.DB, error) {
	dialector, err := dialectorFor(p)
	if err != nil {
		return nil, err
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("db: connect to %s: %w", describe(p), err)
	}
	if p.Driver == "sqlite" {
		// SQLite serialises writers; one connection keeps :memory: databases
		// shared across calls.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("db: connect to %s: %w", describe(p), err)
		}
		sqlDB.SetMaxOpenConns(1)
	}
	return db, nil
}

// ConnectAdmin opens a connection to a MySQL server without selecting a
// database, used for CREATE DATABASE operations.
func ConnectAdmin(p config.ProviderConfig) (*gorm.DB, error) {
	if p.Driver != "mysql" {
		return nil, fmt.Errorf("db: admin connect: driver %q has no server", p.Driver)
	}
	admin := p
	admin.Database = ""
	db, err := gorm.Open(mysql.Open(DSN(admin)), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("db: admin connect to %s:%d: %w", p.Host, p.Port, err)
	}
	return db, nil
}

// DropDatabase drops the named database if it exists.
func DropDatabase(adminDB *gorm.DB, name string) error {
	sql := fmt.Sprintf("DROP DATABASE IF EXISTS `%s`", name)
	if err := adminDB.Exec(sql).Error; err != nil {
		return fmt.Errorf("db: drop database %s: %w", name, err)
	}
	return nil
}

// CreateDatabase creates the named database if it doesn't already exist.
func CreateDatabase(adminDB *gorm.DB, name string) error {
	sql := fmt.Sprintf("CREATE DATABASE IF NOT EXISTS `%s`", name)
	if err := adminDB.Exec(sql).Error; err != nil {
		return fmt.Errorf("db: create database %s: %w", name, err)
	}
	return nil
}

func dialectorFor(p config.ProviderConfig) (gorm.Dialector, error) {
	switch p.Driver {
	case "mysql":
		return mysql.Open(DSN(p)), nil
	case "sqlite":
		return sqlite.Open(p.Path), nil
	default:
		return nil, fmt.Errorf("db: unsupported driver %q for provider %q", p.Driver, p.Name)
	}
}

func describe(p config.ProviderConfig) string {
	if p.Driver == "sqlite" {
		return fmt.Sprintf("%s (sqlite %s)", p.Name, p.Path)
	}
	return fmt.Sprintf("%s (%s:%d/%s)", p.Name, p.Host, p.Port, p.Database)
}
