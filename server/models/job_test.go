package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestCreateUniqueJobByName(t *testing.T) {
	InitializeTestDb()

	require.Nil(t, CreateUniqueJobByName("backup", "db_backup", "{}", time.Now()))

	// A second job with the same name is rejected while the first is pending
	err := CreateUniqueJobByName("backup", "db_backup", "{}", time.Now())
	assert.Equal(t, ErrDuplicateJob, err)

	job, err := LastJob(ENQUEUED_JOB, false)
	require.Nil(t, err)
	assert.Equal(t, "backup", job.Name)
}

func TestUpdateMovesScheduledJobToEnqueuedQueue(t *testing.T) {
	InitializeTestDb()

	require.Nil(t, CreateUniqueJobByName("backup", "db_backup", "{}", time.Now().Add(time.Second)))
	time.Sleep(1 * time.Second)

	job, err := FirstScheduledJobToBeQueued()
	require.Nil(t, err)
	require.Equal(t, SCHEDULED_JOB, job.JobStatus.Name)

	enqueuedStatus, err := FindJobStatus(ENQUEUED_JOB)
	require.Nil(t, err)

	// The preloaded JobStatus association must not clobber the new status
	require.Nil(t, job.Update(map[string]interface{}{
		"claimed":       false,
		"job_status_id": enqueuedStatus.ID,
		"enqueued_at":   time.Now(),
	}))

	_, err = FirstScheduledJobToBeQueued()
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound, "Expected the job to have left the scheduled queue")

	moved, err := LastJob(ENQUEUED_JOB, false)
	require.Nil(t, err)
	assert.Equal(t, "backup", moved.Name)
}
