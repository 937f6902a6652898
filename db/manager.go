package db

import (
	"context"
	"fmt"
	"time"

	"advising/config"
	"advising/models"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	"gorm.io/plugin/dbresolver"
)

// Manager owns the connection pool. It is opened once at startup and
// handed to the services that need it.
type Manager struct {
	ORM *gorm.DB
}

func dsnFromConfig(dbConf config.DBConfig) string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		dbConf.Host, dbConf.Port, dbConf.User, dbConf.Password, dbConf.DBName,
	)
}

func gormConfig() *gorm.Config {
	return &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Connect opens the database described by conf. For postgres, replicas are
// registered through dbresolver and serve reads issued via ReadOnly.
func Connect(conf *config.ConfigSchema) (*Manager, error) {
	if conf == nil {
		return nil, fmt.Errorf("config is nil")
	}
	switch conf.Databases.Driver {
	case "sqlite":
		return OpenSQLite(conf.Databases.SQLitePath + "?_foreign_keys=on")
	case "postgres":
	default:
		return nil, fmt.Errorf("unknown db driver %q", conf.Databases.Driver)
	}

	if conf.Databases.Master.Host == "" {
		return nil, fmt.Errorf("master database configuration is missing")
	}

	masterDSN := dsnFromConfig(conf.Databases.Master)
	replicaDSNs := make([]gorm.Dialector, 0, len(conf.Databases.Replicas))
	for _, r := range conf.Databases.Replicas {
		replicaDSNs = append(replicaDSNs, postgres.Open(dsnFromConfig(r)))
	}

	orm, err := gorm.Open(postgres.Open(masterDSN), gormConfig())
	if err != nil {
		return nil, err
	}

	manager := &Manager{ORM: orm}
	if len(replicaDSNs) > 0 {
		if err = manager.UseReplicas(replicaDSNs, conf.Databases.MaxOpenConns, conf.Databases.MaxIdleConns); err != nil {
			return nil, err
		}
	}

	sqlDB, err := orm.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(conf.Databases.MaxOpenConns)
	sqlDB.SetMaxIdleConns(conf.Databases.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return manager, nil
}

// UseReplicas routes statements issued through ReadOnly to the replicas.
// Replicas may lag, so anything that must observe the caller's own writes
// goes through Write.
func (m *Manager) UseReplicas(replicas []gorm.Dialector, maxOpen, maxIdle int) error {
	return m.ORM.Use(dbresolver.Register(dbresolver.Config{
		Replicas: replicas,
		Policy:   dbresolver.RandomPolicy{},
	}).
		SetMaxOpenConns(maxOpen).
		SetMaxIdleConns(maxIdle))
}

// OpenSQLite opens a SQLite database. SQLite allows one writer, so the pool
// is pinned to a single connection; this also keeps shared in-memory
// databases alive for the lifetime of the Manager.
func OpenSQLite(dsn string) (*Manager, error) {
	orm, err := gorm.Open(sqlite.Open(dsn), gormConfig())
	if err != nil {
		return nil, err
	}
	sqlDB, err := orm.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	if err = orm.Exec("PRAGMA foreign_keys = ON").Error; err != nil {
		return nil, err
	}
	return &Manager{ORM: orm}, nil
}

// Migrate creates or updates the schema and its secondary indexes.
func (m *Manager) Migrate() error {
	err := m.ORM.AutoMigrate(
		&models.Advisor{},
		&models.Student{},
		&models.Message{},
		&models.Attachment{},
		&models.UserTokens{},
	)
	if err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return CreateMessageIndexes(m.ORM)
}

// ReadOnly returns a session routed to the replicas, if any. The session can
// be reused for several statements without conditions leaking between them.
func (m *Manager) ReadOnly(ctx context.Context) *gorm.DB {
	return m.ORM.WithContext(ctx).Clauses(dbresolver.Read).Session(&gorm.Session{})
}

// Write returns a reusable session routed to the master.
func (m *Manager) Write(ctx context.Context) *gorm.DB {
	return m.ORM.WithContext(ctx).Clauses(dbresolver.Write).Session(&gorm.Session{})
}

func (m *Manager) Ping(ctx context.Context) error {
	sqlDB, err := m.ORM.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (m *Manager) Close() error {
	sqlDB, err := m.ORM.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
