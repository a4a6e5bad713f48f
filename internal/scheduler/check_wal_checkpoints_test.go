package scheduler

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/portfolio-analytics/internal/database"
	testingpkg "github.com/aristath/portfolio-analytics/internal/testing"
)

func TestCheckWALCheckpointsJob_Name(t *testing.T) {
	job := NewCheckWALCheckpointsJob(zerolog.Nop())
	assert.Equal(t, "check_wal_checkpoints", job.Name())
}

func TestCheckWALCheckpointsJob_Run_NilDatabases(t *testing.T) {
	job := NewCheckWALCheckpointsJob(zerolog.Nop(), nil, nil)
	assert.NoError(t, job.Run())
}

func TestCheckWALCheckpointsJob_Run(t *testing.T) {
	history := testingpkg.NewTestDB(t, "history")
	cacheDB := testingpkg.NewTestDB(t, "cache")

	job := NewCheckWALCheckpointsJob(zerolog.Nop(), history, nil, cacheDB)
	require.NoError(t, job.Run())
}

func TestCheckWALCheckpointsJob_ClosedDatabaseIsSkipped(t *testing.T) {
	db := testingpkg.NewTestDB(t, "portfolio")
	closed, err := database.New(database.Config{Path: db.Path() + ".closed", Name: "closed"})
	require.NoError(t, err)
	require.NoError(t, closed.Close())

	job := NewCheckWALCheckpointsJob(zerolog.Nop(), closed, db)
	assert.NoError(t, job.Run())
}
