package clientdb

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *ClientDB {
	t.Helper()
	db, err := New(DriverSqlite, filepath.Join(t.TempDir(), "gluehwo.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestMigrationIsRepeatable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gluehwo.db")
	for i := 0; i < 2; i++ {
		db, err := New(DriverSqlite, path)
		require.NoError(t, err)
		require.NoError(t, db.Close())
	}
}

func TestExecAndQuery(t *testing.T) {
	db := openTestDB(t)
	assert.Equal(t, DriverSqlite, db.Driver())

	const insert = `
		INSERT INTO templog
		(ExecutionIdentifier, SensorName, Timestamp, TemperatureInC, Band, ReadFailed, HasBeenSentToBrewfather)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
	for _, temp := range []float64{64, 66} {
		n, err := db.Exec(insert, "exec", "T1", 1700000000, temp, 3, false, false)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
	}

	var names []string
	var temps []float64
	err := db.Query(`SELECT SensorName, TemperatureInC FROM templog ORDER BY Id`, nil, func(rows *sql.Rows) error {
		var name string
		var temp float64
		if err := rows.Scan(&name, &temp); err != nil {
			return err
		}
		names = append(names, name)
		temps = append(temps, temp)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"T1", "T1"}, names)
	assert.Equal(t, []float64{64, 66}, temps)

	var avg float64
	require.NoError(t, db.QueryRow(`SELECT AVG(TemperatureInC) FROM templog WHERE SensorName = ?`, []any{"T1"}, &avg))
	assert.InDelta(t, 65.0, avg, 1e-9)

	_, err = db.Exec(`UPDATE nosuchtable SET x = 1`)
	assert.Error(t, err)
}

func TestClosed(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.Close())
	require.NoError(t, db.Close())

	_, err := db.Exec(`DELETE FROM templog`)
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, db.Query(`SELECT 1`, nil, func(*sql.Rows) error { return nil }), ErrClosed)
	var one int
	assert.ErrorIs(t, db.QueryRow(`SELECT 1`, nil, &one), ErrClosed)
}

func TestNewErrors(t *testing.T) {
	_, err := New("postgres", "whatever")
	assert.Error(t, err)

	_, err = New(DriverMysql, "not a dsn")
	assert.Error(t, err)
}
