package server

import (
	"github.com/sheshield/sheshield/server/gstorage"
	"github.com/sheshield/sheshield/server/work"
)

const (
	DB_BACKUP_HANDLER = "sqlite_db_backup"
	DB_BACKUP_JOB     = "periodic_sqlite_db_backup"
)

func (app *app) registerJobHandlers(gStorage *gstorage.GStorage, sqliteDbFilePath string) {
	app.gStorage = gStorage
	app.sqliteDbFilePath = sqliteDbFilePath

	fatalOnError(app.logg, app.workerPool.Register(DB_BACKUP_HANDLER, app.backupSqliteDb))
}

// backupSqliteDb uploads the sqlite db file to the configured cloud storage
// bucket. It's a no-op when backups aren't configured, so it's safe to call
// on shutdown unconditionally.
func (app *app) backupSqliteDb(args map[string]interface{}) error {
	if app.gStorage == nil {
		return nil
	}

	app.logg.Infof("Backing up %v to google cloud storage", sqliteDbFileName)
	return app.gStorage.UploadFile(app.sqliteDbFilePath)
}

func (app *app) enqueueBackupJob(cronExpression string) {
	err := app.workerPool.PeriodicallyPerform(cronExpression, work.JobParams{
		Name:    DB_BACKUP_JOB,
		Handler: DB_BACKUP_HANDLER,
		Args:    map[string]interface{}{},
	})
	if err != nil {
		app.logg.Errorf("Unable to schedule db backup job: %v", err)
	}
}
