package models

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

var ErrDuplicateJob = errors.New("job with the given name already exists in queue")

type Job struct {
	BaseModel
	Fails       int        `json:"fails"`
	Name        string     `json:"name"`
	Handler     string     `json:"handler"`
	Args        string     `json:"args"`
	LastError   string     `json:"last_error"`
	Claimed     bool       `json:"claimed" gorm:"default:false"`
	EnqueuedAt  time.Time  `json:"enqueued_at"`
	JobStatusID uint       `json:"job_status_id"`
	JobStatus   *JobStatus `json:"status"`
}

func (job *Job) MarkAsClaimed() (bool, error) {
	inProgressStatus, err := FindJobStatus(IN_PROGRESS_JOB)
	if err != nil {
		return false, err
	}

	res := db.Model(&Job{}).Where("id = ? AND claimed = ?", job.ID, false).Updates(map[string]interface{}{
		"claimed":       true,
		"job_status_id": inProgressStatus.ID,
	})
	if res.Error != nil {
		return false, res.Error
	}

	return res.RowsAffected > 0, nil
}

// Update writes only the given columns. The update is keyed by id rather
// than the loaded record, so a preloaded JobStatus association can't be
// re-saved over a job_status_id passed in 'data'.
func (job *Job) Update(data map[string]interface{}) error {
	return db.Model(&Job{}).Where("id = ?", job.ID).Updates(data).Error
}

// CreateUniqueJobByName enqueues a new job, unless a job with the same name
// is already waiting or running - then ErrDuplicateJob is returned.
// A job with 'enqueueAt' in the future goes on the scheduled queue & is moved
// onto the enqueued queue by the requeuer once its time has come.
func CreateUniqueJobByName(name, handler, args string, enqueueAt time.Time) error {
	statusName := ENQUEUED_JOB
	if enqueueAt.After(time.Now()) {
		statusName = SCHEDULED_JOB
	}

	jobStatus, err := FindJobStatus(statusName)
	if err != nil {
		return err
	}

	return db.Transaction(func(tx *gorm.DB) error {
		pendingStatusIDs := []uint{}
		err := tx.Model(&JobStatus{}).Where("name IN ?",
			[]string{ENQUEUED_JOB, IN_PROGRESS_JOB, SCHEDULED_JOB}).
			Pluck("id", &pendingStatusIDs).Error
		if err != nil {
			return err
		}

		result := tx.Where("name = ? AND job_status_id IN ?", name, pendingStatusIDs).First(&Job{})
		if result.Error != nil && !errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return result.Error
		}

		if result.RowsAffected > 0 {
			return ErrDuplicateJob
		}

		return tx.Create(&Job{
			Name:        name,
			Handler:     handler,
			Args:        args,
			EnqueuedAt:  enqueueAt,
			JobStatusID: jobStatus.ID,
		}).Error
	})
}

func LastJob(status string, claimed bool) (*Job, error) {
	job := Job{}
	err := db.Joins(
		"INNER JOIN job_statuses ON job_statuses.id = jobs.job_status_id AND job_statuses.name = ? AND claimed = ?",
		status, claimed).Last(&job).Error
	if err != nil {
		return nil, err
	}

	return &job, nil
}

// FirstScheduledJobToBeQueued returns the oldest scheduled job whose
// enqueue time has passed.
func FirstScheduledJobToBeQueued() (*Job, error) {
	jobStatus, err := FindJobStatus(SCHEDULED_JOB)
	if err != nil {
		return nil, err
	}

	job := Job{}
	err = db.Preload("JobStatus").
		Where("job_status_id = ? AND enqueued_at <= ?", jobStatus.ID, time.Now()).
		First(&job).Error
	if err != nil {
		return nil, err
	}

	return &job, nil
}

// LastJobLastUpdated returns the last job of the given status which was last
// updated at least 'minutesAgo' minutes ago.
//
// WARNING: THIS QUERY IS UNIQUE TO SQLITE, REMEMBER TO UPDATE IT IF/WHEN
// OTHER SQL DATABASES ARE SUPPORTED
func LastJobLastUpdated(minutesAgo uint, status string) (*Job, error) {
	jobStatus, err := FindJobStatus(status)
	if err != nil {
		return nil, err
	}

	job := Job{}
	err = db.Where(
		fmt.Sprintf("job_status_id = ? AND datetime(updated_at, '+%v minute') <= datetime('now')", minutesAgo),
		jobStatus.ID,
	).Last(&job).Error
	if err != nil {
		return nil, err
	}

	return &job, nil
}

func FetchJobs(page int) ([]Job, *Paging, error) {
	var total int64
	jobs := []Job{}

	err := db.Model(&Job{}).Count(&total).Error
	if err != nil {
		return nil, nil, err
	}

	err = db.Scopes(paginate(page, MAX_PAGE_SIZE)).
		Preload("JobStatus").Order("jobs.id desc").Find(&jobs).Error
	if err != nil {
		return nil, nil, err
	}

	return jobs, newPaging(int64(page), MAX_PAGE_SIZE, total), nil
}
