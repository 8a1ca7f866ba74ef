package server

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator"
	"github.com/gorilla/mux"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/sheshield/sheshield/server/auth"
	"github.com/sheshield/sheshield/server/models"
	"github.com/sheshield/sheshield/shared"
	"github.com/sheshield/sheshield/utils"
)

type ResponsePayload struct {
	Errors  []string    `json:"errors,omitempty"`
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
}

type DecodedJWT struct {
	Claims   *auth.SheShieldTokenClaims
	Token    string
	ErrorMsg string
}

type RequestContextKey string

// ---------------------------------------------------------------------------------//
// Session revocation
// --------------------------------------------------------------------------------//

// revocationList remembers logged-out session tokens until they'd have
// expired on their own anyway.
type revocationList struct {
	mu      sync.Mutex
	revoked map[string]time.Time
}

func newRevocationList() *revocationList {
	return &revocationList{revoked: make(map[string]time.Time)}
}

func (list *revocationList) Revoke(token string, expiresAt time.Time) {
	list.mu.Lock()
	defer list.mu.Unlock()

	now := time.Now()
	for revokedToken, expiry := range list.revoked {
		if expiry.Before(now) {
			delete(list.revoked, revokedToken)
		}
	}

	list.revoked[token] = expiresAt
}

func (list *revocationList) IsRevoked(token string) bool {
	list.mu.Lock()
	defer list.mu.Unlock()

	_, ok := list.revoked[token]
	return ok
}

// ---------------------------------------------------------------------------------//
// Handler helper functions
// --------------------------------------------------------------------------------//

func (app *app) writeResponse(rw http.ResponseWriter, payLoad ResponsePayload, statusCode int) {
	if statusCode >= http.StatusInternalServerError {
		app.logg.Error(payLoad.Errors)
	} else if statusCode >= http.StatusBadRequest {
		app.logg.Info(payLoad.Errors)
	}

	rw.WriteHeader(statusCode)
	json.NewEncoder(rw).Encode(payLoad)
}

func (app *app) newSessionToken(user *models.User) (string, error) {
	isAdmin, err := user.IsAdmin()
	if err != nil {
		return "", err
	}

	claims := auth.NewSessionClaims(
		strconv.FormatUint(uint64(user.ID), 10),
		user.FirstName,
		user.LastName,
		isAdmin,
	)

	return auth.EncodeJWT(claims, app.authKeyPair)
}

// requestUser loads the user record the request is scoped to via the {uid}
// route variable.
func requestUser(r *http.Request) (*models.User, error) {
	return models.FindUserBy("id", mux.Vars(r)["uid"])
}

func currentPage(r *http.Request) int {
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page < 1 {
		return 1
	}

	return page
}

func validationErrors(err error) []string {
	return strings.Split(err.Error(), "\n")
}

func removeUnknownFields(args map[string]interface{}, validFields map[string]bool) {
	for key := range args {
		if !validFields[key] {
			delete(args, key)
		}
	}
}

// RegisterValidators adds the app's custom field validators.
func RegisterValidators(validate *validator.Validate) error {
	return validate.RegisterValidation("password", func(fl validator.FieldLevel) bool {
		// Reject whitespace in passwords
		err := validate.Var(fl.Field().String(), "contains= ")
		if err == nil {
			return false
		}
		return len(fl.Field().String()) >= 8
	})
}

// ---------------------------------------------------------------------------------//
// Middleware helper functions
// --------------------------------------------------------------------------------//

func (app *app) decodeAndVerifyAuthHeader(authHeaderValue string) DecodedJWT {
	authHeaderList := strings.Split(authHeaderValue, "Bearer ")
	if len(authHeaderList) < 2 {
		return DecodedJWT{ErrorMsg: "no token provided"}
	}
	tokenString := authHeaderList[1]

	if app.revokedSessions.IsRevoked(tokenString) {
		return DecodedJWT{ErrorMsg: "session has been logged out"}
	}

	tokenClaims, err := auth.DecodeJWT(tokenString, app.authKeyPair)
	if err != nil {
		return DecodedJWT{ErrorMsg: "invalid token provided"}
	}

	// validate that the user account still exists
	_, err = models.FindUserBy("id", tokenClaims.Subject)
	if err != nil {
		return DecodedJWT{ErrorMsg: "invalid token provided"}
	}

	return DecodedJWT{Claims: tokenClaims, Token: tokenString}
}

// canAccessUserResource lets a client update/view only their own records,
// unless the client is an admin - who can GET/DELETE certain user resources
// but never touch another user's contacts, profile or location.
func canAccessUserResource(r *http.Request, userClaims *auth.SheShieldTokenClaims) bool {
	allowedMethodsForAdmins := map[string]bool{"GET": true, "DELETE": true}
	deniedPathsForAdmin := []string{"/contacts", "/profile", "/location", "/share-location"}

	if mux.Vars(r)["uid"] == "" || mux.Vars(r)["uid"] == userClaims.Subject {
		return true
	}

	if !userClaims.IsAdmin {
		return false
	}

	if !allowedMethodsForAdmins[r.Method] {
		return false
	}

	for _, deniedPath := range deniedPathsForAdmin {
		if strings.Contains(r.URL.Path, deniedPath) {
			return false
		}
	}

	return true
}

// ---------------------------------------------------------------------------------//
// Server helper functions
// --------------------------------------------------------------------------------//

func parseServerConfig(viperConfig *viper.Viper, logg *zap.SugaredLogger) *shared.ServerConfig {
	config := shared.ServerConfig{}

	fatalOnError(logg, viperConfig.Unmarshal(&config))

	validate := validator.New()
	if err := validate.Struct(config); err != nil {
		logg.Fatalf("invalid server config: %v", err)
	}

	return &config
}

func serve(server *http.Server, logg *zap.SugaredLogger) {
	logg.Infof("SheShield server is listening on port%v", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Fatal(err)
	}
}

func (app *app) cleanup(server *http.Server, backupDb bool) {
	// Stop all periodic jobs i.e. safety reminders & db backups
	app.workerPool.Stop()

	if backupDb {
		if err := app.backupSqliteDb(nil); err != nil {
			app.logg.Error(err)
		}
	}

	// Shutdown server gracefully
	ctxShutDown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctxShutDown); err != nil {
		app.logg.Fatalf("SheShield server shutdown failed:%+s", err)
	}

	app.logg.Infof("SheShield server stopped properly")
}

// dataDirectory retrieves the directory that holds the sqlite db file,
// or logs an error message & exits if it's unable to.
func dataDirectory(devMode bool, logg *zap.SugaredLogger) string {
	// Use 'sheshield' folder in home directory for prod
	dataFolderName := "sheshield"
	rootDir, err := os.UserHomeDir()
	fatalOnError(logg, err)

	// Use 'dev' folder in current directory for dev mode
	if devMode {
		dataFolderName = "dev"
		rootDir, err = os.Getwd()
		fatalOnError(logg, err)
	}

	dataDir := filepath.Join(rootDir, dataFolderName)

	fatalOnError(logg, utils.CreateDirIfNotExist(dataDir))

	return dataDir
}

func fatalOnError(logg *zap.SugaredLogger, err error) {
	if err != nil {
		logg.Fatal(err)
	}
}
