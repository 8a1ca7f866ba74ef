package server

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/go-playground/validator"
	"github.com/gorilla/mux"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/sheshield/sheshield/server/alert"
	"github.com/sheshield/sheshield/server/auth/key"
	"github.com/sheshield/sheshield/server/gidentity"
	"github.com/sheshield/sheshield/server/gstorage"
	"github.com/sheshield/sheshield/server/location"
	"github.com/sheshield/sheshield/server/logger"
	"github.com/sheshield/sheshield/server/models"
	"github.com/sheshield/sheshield/server/reminders"
	"github.com/sheshield/sheshield/server/twilio"
	"github.com/sheshield/sheshield/server/work"
	"github.com/sheshield/sheshield/shared"
	"github.com/sheshield/sheshield/utils"
)

const sqliteDbFileName = "sheshield.db"

// app carries every service the handlers need. Everything is constructed in
// Start & injected - no import-time singletons.
type app struct {
	config          *shared.ServerConfig
	logg            *zap.SugaredLogger
	validate        *validator.Validate
	authKeyPair     *key.KeyPair
	tracker         *location.Tracker
	dispatcher      *alert.Dispatcher
	verifier        gidentity.TokenVerifierInterface
	workerPool      *work.WorkerPoolAdapter
	reminders       *reminders.ReminderScheduler
	revokedSessions *revocationList

	gStorage         *gstorage.GStorage
	sqliteDbFilePath string
}

// Start wires up the server & blocks until it's told to shut down.
func Start(viperConfig *viper.Viper, devMode bool) {
	logg := logger.NewLogger(devMode)

	config := parseServerConfig(viperConfig, logg)

	dataDir := dataDirectory(devMode, logg)
	sqliteDbFilePath := filepath.Join(dataDir, sqliteDbFileName)

	backupEnabled := fmt.Sprintf("%v", config.Google.Storage.EnableSqliteBackupAndSync) == "true"

	var gStorage *gstorage.GStorage
	var err error
	if backupEnabled {
		gStorage, err = gstorage.NewGStorage(
			config.Google.ApplicationCredentials,
			config.Google.Storage.Bucket,
			config.Google.Storage.Prefix,
		)
		fatalOnError(logg, err)

		restoreSqliteDbIfMissing(gStorage, sqliteDbFilePath, logg)
	}

	fatalOnError(logg, models.Initialize(sqliteDbFilePath, config.Sqlite.PassPhrase))
	fatalOnError(logg, models.SeedCommunityPosts())

	authKeyPair, err := key.NewKeyPairFromRSAPrivateKeyPem(config.SheShield.PrivateKeyPem)
	fatalOnError(logg, err)

	validate := validator.New()
	fatalOnError(logg, RegisterValidators(validate))

	var verifier gidentity.TokenVerifierInterface
	if config.Google.OauthClientID != "" {
		verifier, err = gidentity.NewGoogleTokenVerifier(config.Google.OauthClientID)
		fatalOnError(logg, err)
	}

	workerPool := work.NewWorkerAdapter(config.SheShield.Cron.TimeZone, logg)

	reminderScheduler, err := reminders.NewReminderScheduler(workerPool, "")
	fatalOnError(logg, err)

	app := &app{
		config:          config,
		logg:            logg,
		validate:        validate,
		authKeyPair:     authKeyPair,
		tracker:         location.NewTracker(),
		dispatcher:      alert.NewDispatcher(twilio.NewClient(config.Twilio, devMode), logg),
		verifier:        verifier,
		workerPool:      workerPool,
		reminders:       reminderScheduler,
		revokedSessions: newRevocationList(),
	}

	app.registerJobHandlers(gStorage, sqliteDbFilePath)
	if backupEnabled {
		app.enqueueBackupJob(config.Google.Storage.SqliteBackupSchedule)
	}

	fatalOnError(logg, reminderScheduler.ScheduleReminders())
	fatalOnError(logg, workerPool.Start())

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%v", config.SheShield.Listener.Port),
		Handler: app.router(),
	}
	go serve(httpServer, logg)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	app.cleanup(httpServer, backupEnabled)
}

func (app *app) router() *mux.Router {
	router := mux.NewRouter()
	router.Use(app.loggingMiddleware)
	router.Use(app.initialContextMiddleware)

	router.HandleFunc("/health", app.healthCheck).Methods("GET")
	router.HandleFunc("/jwks", app.jwks).Methods("GET")
	router.HandleFunc("/signup", app.signUp).Methods("POST")
	router.HandleFunc("/login", app.logIn).Methods("POST")
	router.HandleFunc("/oauth/google", app.googleCredentialExchange).Methods("POST")

	protected := router.PathPrefix("/").Subrouter()
	protected.Use(app.protectedRouteMiddleware)
	protected.HandleFunc("/logout", app.logOut).Methods("DELETE")

	protected.HandleFunc("/users/{uid}", app.findUser).Methods("GET")
	protected.HandleFunc("/users/{uid}", app.updateUser).Methods("PUT")
	protected.HandleFunc("/users/{uid}", app.deleteUser).Methods("DELETE")

	protected.HandleFunc("/users/{uid}/profile", app.loadProfile).Methods("GET")
	protected.HandleFunc("/users/{uid}/profile", app.saveProfile).Methods("PUT")

	protected.HandleFunc("/users/{uid}/contacts", app.listContacts).Methods("GET")
	protected.HandleFunc("/users/{uid}/contacts", app.addContact).Methods("POST")
	protected.HandleFunc("/users/{uid}/contacts/import", app.importContacts).Methods("POST")
	protected.HandleFunc("/users/{uid}/contacts/{id}", app.removeContact).Methods("DELETE")

	protected.HandleFunc("/users/{uid}/location", app.recordLocation).Methods("PUT")
	protected.HandleFunc("/users/{uid}/location", app.currentLocation).Methods("GET")
	protected.HandleFunc("/users/{uid}/share-location", app.shareLocation).Methods("POST")

	protected.HandleFunc("/users/{uid}/notifications", app.listNotifications).Methods("GET")

	protected.HandleFunc("/posts", app.listPosts).Methods("GET")
	protected.HandleFunc("/posts", app.createPost).Methods("POST")
	protected.HandleFunc("/posts/{id}/reactions", app.addPostReaction).Methods("POST")

	router.HandleFunc("/helplines", app.listHelplines).Methods("GET")

	admin := router.PathPrefix("/jobs").Subrouter()
	admin.Use(app.adminRouteMiddleware)
	admin.HandleFunc("", app.listJobs).Methods("GET")

	return router
}

func restoreSqliteDbIfMissing(gStorage *gstorage.GStorage, sqliteDbFilePath string, logg *zap.SugaredLogger) {
	if utils.FileExist(sqliteDbFilePath) {
		return
	}

	err := gStorage.DownloadFile(sqliteDbFileName, sqliteDbFilePath)
	if err == gstorage.ErrObjectNotExist {
		logg.Infof("No db backup found in bucket, starting fresh")
		return
	}

	fatalOnError(logg, err)
	logg.Infof("Restored %v from backup", sqliteDbFileName)
}
