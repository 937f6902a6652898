// Package dbtest opens throwaway in-memory databases for package tests.
package dbtest

import (
	"fmt"
	"testing"

	"advising/db"
	"advising/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// New returns a migrated in-memory SQLite Manager closed at test cleanup.
// Each call gets its own database.
func New(t testing.TB) *db.Manager {
	t.Helper()
	m, _ := open(t)
	return m
}

func open(t testing.TB) (*db.Manager, string) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=on", uuid.NewString())
	m, err := db.OpenSQLite(dsn)
	require.NoError(t, err)
	require.NoError(t, m.Migrate())
	t.Cleanup(func() {
		_ = m.Close()
	})
	return m, dsn
}

// AttachStaleReplica registers a replica that never receives any write, the
// worst case of replication lag. It returns the replica so tests can seed it.
func AttachStaleReplica(t testing.TB, m *db.Manager) *db.Manager {
	t.Helper()
	replica, dsn := open(t)
	require.NoError(t, m.UseReplicas([]gorm.Dialector{sqlite.Open(dsn)}, 1, 1))
	return replica
}

// SeedAdvisor inserts an advisor with a fixed id. The password column holds
// a placeholder that no login can match.
func SeedAdvisor(t testing.TB, m *db.Manager, id int64, name, surname string) models.Advisor {
	t.Helper()
	advisor := models.Advisor{
		ID:       id,
		Name:     name,
		Surname:  surname,
		Email:    fmt.Sprintf("advisor%d@example.edu", id),
		Username: fmt.Sprintf("advisor%d", id),
		Password: "-",
	}
	require.NoError(t, m.ORM.Create(&advisor).Error)
	return advisor
}

func SeedStudent(t testing.TB, m *db.Manager, id int64, name, surname string) models.Student {
	t.Helper()
	student := models.Student{
		ID:            id,
		StudentNumber: fmt.Sprintf("S%05d", id),
		Name:          name,
		Surname:       surname,
		Email:         fmt.Sprintf("student%d@example.edu", id),
		Password:      "-",
	}
	require.NoError(t, m.ORM.Create(&student).Error)
	return student
}
