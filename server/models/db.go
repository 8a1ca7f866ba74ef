package models

import (
	"errors"
	"fmt"
	"log"

	sqlite "github.com/Daskott/gorm-sqlite-cipher"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var db *gorm.DB

// Initialize opens(or creates) the encrypted sqlite db file & runs migrations.
func Initialize(dbFilePath, passPhrase string) error {
	dsn := fmt.Sprintf(
		"%v?_pragma_key=%s&_pragma_cipher_page_size=4096",
		dbFilePath,
		passPhrase,
	)

	return initialize(dsn)
}

// InitializeTestDb sets up a shared in-memory db for tests,
// wiping any records left over by a previous test run.
func InitializeTestDb() {
	err := initialize("file::memory:?cache=shared")
	if err != nil {
		log.Panic(err)
	}

	session := db.Session(&gorm.Session{AllowGlobalUpdate: true})
	for _, record := range []interface{}{
		&Job{}, &Notification{}, &EmergencyContact{}, &Profile{}, &Post{}, &User{},
	} {
		session.Unscoped().Delete(record)
	}
}

func initialize(dsn string) error {
	var err error

	db, err = gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return err
	}

	return autoMigrate()
}

func autoMigrate() error {
	err := db.AutoMigrate(
		&Role{},
		&JobStatus{},
		&User{},
		&Profile{},
		&EmergencyContact{},
		&Notification{},
		&Post{},
		&Job{},
	)
	if err != nil {
		return err
	}

	return seedData()
}

func seedData() error {
	if err := db.First(&Role{}).Error; errors.Is(err, gorm.ErrRecordNotFound) {
		err = db.Create(&[]Role{{Name: ADMIN_USER_ROLE}, {Name: BASIC_USER_ROLE}}).Error
		if err != nil {
			return err
		}
	}

	if err := db.First(&JobStatus{}).Error; errors.Is(err, gorm.ErrRecordNotFound) {
		err = db.Create(&[]JobStatus{
			{Name: ENQUEUED_JOB},
			{Name: IN_PROGRESS_JOB},
			{Name: SUCCESSFUL_JOB},
			{Name: DEAD_JOB},
			{Name: SCHEDULED_JOB},
		}).Error
		if err != nil {
			return err
		}
	}

	return nil
}
