package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"gorm.io/gorm"

	"github.com/sheshield/sheshield/server/alert"
	"github.com/sheshield/sheshield/server/auth"
	"github.com/sheshield/sheshield/server/auth/key"
	"github.com/sheshield/sheshield/server/location"
	"github.com/sheshield/sheshield/server/models"
)

type Helpline struct {
	Name   string `json:"name"`
	Number string `json:"number,omitempty"`
	Link   string `json:"link,omitempty"`
}

var helplines = []Helpline{
	{Name: "Cyber Crime Helpline", Number: "155260"},
	{Name: "Women Cyber Cell", Number: "1091"},
	{Name: "National Cyber Crime Portal", Link: "cybercrime.gov.in"},
}

// ---------------------------------------------------------------------------------//
// Auth handlers
// --------------------------------------------------------------------------------//

func (app *app) signUp(rw http.ResponseWriter, r *http.Request) {
	user := models.User{}

	err := json.NewDecoder(r.Body).Decode(&user)
	if err != nil {
		app.writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusBadRequest)
		return
	}

	if errs := app.validate.Struct(user); errs != nil {
		app.writeResponse(rw, ResponsePayload{Errors: validationErrors(errs)}, http.StatusBadRequest)
		return
	}

	err = models.CreateUser(&user)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			app.writeResponse(rw,
				ResponsePayload{Errors: []string{"email or phone number is already in use"}},
				http.StatusConflict)
			return
		}

		app.writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	token, err := app.newSessionToken(&user)
	if err != nil {
		app.writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	user.Password = ""
	app.writeResponse(rw, ResponsePayload{
		Success: true,
		Data:    map[string]interface{}{"token": token, "user": user},
	}, http.StatusCreated)
}

func (app *app) logIn(rw http.ResponseWriter, r *http.Request) {
	data := make(map[string]string)
	json.NewDecoder(r.Body).Decode(&data)

	passwordHash, err := models.FindUserPassword(data["email"])
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		app.writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	if !auth.CheckPasswordHash(data["password"], passwordHash) {
		app.writeResponse(rw, ResponsePayload{Errors: []string{"email/password is invalid"}}, http.StatusUnauthorized)
		return
	}

	user, err := models.FindUserBy("email", data["email"])
	if err != nil {
		app.writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	token, err := app.newSessionToken(user)
	if err != nil {
		app.writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	app.writeResponse(rw, ResponsePayload{
		Success: true,
		Data:    map[string]interface{}{"token": token, "user": user},
	}, http.StatusOK)
}

func (app *app) googleCredentialExchange(rw http.ResponseWriter, r *http.Request) {
	if app.verifier == nil {
		app.writeResponse(rw,
			ResponsePayload{Errors: []string{"google sign-in is not enabled on this server"}},
			http.StatusServiceUnavailable)
		return
	}

	data := make(map[string]string)
	json.NewDecoder(r.Body).Decode(&data)

	identity, err := app.verifier.VerifyIDToken(data["id_token"])
	if err != nil {
		app.writeResponse(rw, ResponsePayload{Errors: []string{"invalid provider credential"}}, http.StatusUnauthorized)
		return
	}

	// Exchange only succeeds for accounts that already exist - sign-up
	// collects the phone number the alert flow depends on.
	user, err := models.FindUserBy("email", identity.Email)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		app.writeResponse(rw,
			ResponsePayload{Errors: []string{"no account found for this identity, sign up first"}},
			http.StatusNotFound)
		return
	}

	if err != nil {
		app.writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	token, err := app.newSessionToken(user)
	if err != nil {
		app.writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	app.writeResponse(rw, ResponsePayload{
		Success: true,
		Data:    map[string]interface{}{"token": token, "user": user},
	}, http.StatusOK)
}

func (app *app) logOut(rw http.ResponseWriter, r *http.Request) {
	decodedJWT := r.Context().Value(RequestContextKey("decodedJWT")).(DecodedJWT)

	app.revokedSessions.Revoke(decodedJWT.Token, time.Unix(decodedJWT.Claims.ExpiresAt, 0))

	userID, err := strconv.ParseUint(decodedJWT.Claims.Subject, 10, 64)
	if err == nil {
		app.tracker.Forget(uint(userID))
	}

	app.writeResponse(rw, ResponsePayload{Success: true}, http.StatusOK)
}

func (app *app) jwks(rw http.ResponseWriter, r *http.Request) {
	keyPairJWK, err := app.authKeyPair.JWK()
	if err != nil {
		app.writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	json.NewEncoder(rw).Encode(key.ExportJWKAsJWKS(keyPairJWK))
}

// ---------------------------------------------------------------------------------//
// User handlers
// --------------------------------------------------------------------------------//

func (app *app) findUser(rw http.ResponseWriter, r *http.Request) {
	user, err := requestUser(r)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		app.writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusNotFound)
		return
	}

	if err != nil {
		app.writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	app.writeResponse(rw, ResponsePayload{Success: true, Data: user}, http.StatusOK)
}

func (app *app) updateUser(rw http.ResponseWriter, r *http.Request) {
	var errs []string
	data := make(map[string]interface{})

	err := json.NewDecoder(r.Body).Decode(&data)
	if err != nil {
		app.writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusBadRequest)
		return
	}

	removeUnknownFields(data, map[string]bool{
		"first_name": true, "last_name": true, "phone_number": true, "password": true})
	if len(data) <= 0 {
		app.writeResponse(rw, ResponsePayload{Errors: []string{"valid fields required"}}, http.StatusBadRequest)
		return
	}

	if data["password"] != nil {
		if err := app.validate.Var(fmt.Sprintf("%v", data["password"]), "password"); err != nil {
			errs = append(errs, "password must be at least 8 characters with no spaces")
		}
	}

	if data["phone_number"] != nil {
		if err := app.validate.Var(fmt.Sprintf("%v", data["phone_number"]), "e164"); err != nil {
			errs = append(errs, "phone number must be in e164 format")
		}
	}

	if len(errs) > 0 {
		app.writeResponse(rw, ResponsePayload{Errors: errs}, http.StatusBadRequest)
		return
	}

	user, err := requestUser(r)
	if err != nil {
		app.writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusNotFound)
		return
	}

	if err := user.Update(data); err != nil {
		app.writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	app.writeResponse(rw, ResponsePayload{Success: true}, http.StatusOK)
}

func (app *app) deleteUser(rw http.ResponseWriter, r *http.Request) {
	err := models.DeleteUser(mux.Vars(r)["uid"])
	if err != nil {
		app.writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	app.writeResponse(rw, ResponsePayload{Success: true}, http.StatusOK)
}

// ---------------------------------------------------------------------------------//
// Profile handlers
// --------------------------------------------------------------------------------//

func (app *app) loadProfile(rw http.ResponseWriter, r *http.Request) {
	user, err := requestUser(r)
	if err != nil {
		app.writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusNotFound)
		return
	}

	profile, err := user.LoadProfile()
	if errors.Is(err, gorm.ErrRecordNotFound) {
		// No profile until the first save
		app.writeResponse(rw, ResponsePayload{Success: true}, http.StatusOK)
		return
	}

	if err != nil {
		app.writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	app.writeResponse(rw, ResponsePayload{Success: true, Data: profile}, http.StatusOK)
}

func (app *app) saveProfile(rw http.ResponseWriter, r *http.Request) {
	user, err := requestUser(r)
	if err != nil {
		app.writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusNotFound)
		return
	}

	profile := models.Profile{}
	err = json.NewDecoder(r.Body).Decode(&profile)
	if err != nil {
		app.writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusBadRequest)
		return
	}

	if errs := app.validate.Struct(profile); errs != nil {
		app.writeResponse(rw, ResponsePayload{Errors: validationErrors(errs)}, http.StatusBadRequest)
		return
	}

	if err := user.SaveProfile(&profile); err != nil {
		app.writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	// Keep the reminder schedule in step with the saved preference
	app.reminders.DescheduleReminder(user.ID)
	if profile.Preferences.SafetyReminders {
		if err := app.reminders.ScheduleReminder(user.ID); err != nil {
			app.logg.Errorf("unable to schedule safety reminder for user %v: %v", user.ID, err)
		}
	}

	app.writeResponse(rw, ResponsePayload{Success: true, Data: profile}, http.StatusOK)
}

// ---------------------------------------------------------------------------------//
// Emergency contact handlers
// --------------------------------------------------------------------------------//

func (app *app) listContacts(rw http.ResponseWriter, r *http.Request) {
	user, err := requestUser(r)
	if err != nil {
		app.writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusNotFound)
		return
	}

	contacts, err := user.ListEmergencyContacts()
	if err != nil {
		app.writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	app.writeResponse(rw, ResponsePayload{Success: true, Data: contacts}, http.StatusOK)
}

func (app *app) addContact(rw http.ResponseWriter, r *http.Request) {
	user, err := requestUser(r)
	if err != nil {
		app.writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusNotFound)
		return
	}

	contact := models.EmergencyContact{}
	err = json.NewDecoder(r.Body).Decode(&contact)
	if err != nil {
		app.writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusBadRequest)
		return
	}

	if errs := app.validate.Struct(contact); errs != nil {
		app.writeResponse(rw, ResponsePayload{Errors: validationErrors(errs)}, http.StatusBadRequest)
		return
	}

	err = user.AddEmergencyContact(&contact)
	if err != nil {
		app.writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, contactErrorStatus(err))
		return
	}

	app.writeResponse(rw, ResponsePayload{Success: true, Data: contact}, http.StatusCreated)
}

type contactCandidate struct {
	DeviceContactID string `json:"device_contact_id"`
	Name            string `json:"name"`
	PhoneNumber     string `json:"phone_number"`
	Relation        string `json:"relation"`
}

type importResult struct {
	DeviceContactID string                   `json:"device_contact_id"`
	Added           bool                     `json:"added"`
	Reason          string                   `json:"reason,omitempty"`
	Contact         *models.EmergencyContact `json:"contact,omitempty"`
}

// importContacts takes the device address-book candidates the client picked
// & reports, per candidate, whether it made it into the directory.
func (app *app) importContacts(rw http.ResponseWriter, r *http.Request) {
	user, err := requestUser(r)
	if err != nil {
		app.writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusNotFound)
		return
	}

	data := struct {
		Candidates []contactCandidate `json:"candidates"`
	}{}
	err = json.NewDecoder(r.Body).Decode(&data)
	if err != nil {
		app.writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusBadRequest)
		return
	}

	results := []importResult{}
	for _, candidate := range data.Candidates {
		contact := models.EmergencyContact{
			Name:            candidate.Name,
			PhoneNumber:     candidate.PhoneNumber,
			Relation:        candidate.Relation,
			DeviceContactID: candidate.DeviceContactID,
		}

		err := user.AddEmergencyContact(&contact)
		if err != nil {
			results = append(results, importResult{
				DeviceContactID: candidate.DeviceContactID,
				Reason:          err.Error(),
			})
			continue
		}

		results = append(results, importResult{
			DeviceContactID: candidate.DeviceContactID,
			Added:           true,
			Contact:         &contact,
		})
	}

	app.writeResponse(rw, ResponsePayload{Success: true, Data: results}, http.StatusOK)
}

func (app *app) removeContact(rw http.ResponseWriter, r *http.Request) {
	user, err := requestUser(r)
	if err != nil {
		app.writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusNotFound)
		return
	}

	// Removing an id that isn't in the directory is a no-op
	err = user.RemoveEmergencyContact(mux.Vars(r)["id"])
	if err != nil {
		app.writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	app.writeResponse(rw, ResponsePayload{Success: true}, http.StatusOK)
}

// ---------------------------------------------------------------------------------//
// Location & share handlers
// --------------------------------------------------------------------------------//

func (app *app) recordLocation(rw http.ResponseWriter, r *http.Request) {
	user, err := requestUser(r)
	if err != nil {
		app.writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusNotFound)
		return
	}

	enabled, err := user.LocationSharingEnabled()
	if err != nil {
		app.writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	if !enabled {
		app.writeResponse(rw,
			ResponsePayload{Errors: []string{"location sharing is disabled in preferences"}},
			http.StatusForbidden)
		return
	}

	fix := location.Fix{}
	err = json.NewDecoder(r.Body).Decode(&fix)
	if err != nil {
		app.writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusBadRequest)
		return
	}

	err = app.tracker.Record(user.ID, fix)
	if errors.Is(err, location.ErrInvalidFix) {
		app.writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusBadRequest)
		return
	}

	app.writeResponse(rw, ResponsePayload{Success: true}, http.StatusOK)
}

func (app *app) currentLocation(rw http.ResponseWriter, r *http.Request) {
	user, err := requestUser(r)
	if err != nil {
		app.writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusNotFound)
		return
	}

	fix, err := app.tracker.CurrentFix(user.ID)
	if errors.Is(err, location.ErrNoFix) {
		app.writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusNotFound)
		return
	}

	app.writeResponse(rw, ResponsePayload{Success: true, Data: fix}, http.StatusOK)
}

func (app *app) shareLocation(rw http.ResponseWriter, r *http.Request) {
	user, err := requestUser(r)
	if err != nil {
		app.writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusNotFound)
		return
	}

	data := make(map[string]interface{})
	json.NewDecoder(r.Body).Decode(&data)

	contact, err := user.FindEmergencyContact(data["contact_id"])
	if errors.Is(err, gorm.ErrRecordNotFound) {
		app.writeResponse(rw, ResponsePayload{Errors: []string{"emergency contact not found"}}, http.StatusNotFound)
		return
	}

	if err != nil {
		app.writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	fix, err := app.tracker.CurrentFix(user.ID)
	if errors.Is(err, location.ErrNoFix) {
		app.writeResponse(rw,
			ResponsePayload{Errors: []string{"unable to get your current location"}},
			http.StatusNotFound)
		return
	}

	err = app.dispatcher.SendAlert(user, contact, alert.Compose(fix))
	switch {
	case errors.Is(err, alert.ErrSmsUnavailable):
		app.writeResponse(rw, ResponsePayload{Errors: []string{"SMS is not available"}}, http.StatusServiceUnavailable)
		return
	case errors.Is(err, alert.ErrShareInProgress):
		app.writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusConflict)
		return
	case err != nil:
		app.writeResponse(rw, ResponsePayload{Errors: []string{"failed to share location"}}, http.StatusInternalServerError)
		return
	}

	app.writeResponse(rw, ResponsePayload{Success: true}, http.StatusOK)
}

// ---------------------------------------------------------------------------------//
// Notification, community & misc handlers
// --------------------------------------------------------------------------------//

func (app *app) listNotifications(rw http.ResponseWriter, r *http.Request) {
	notifications, paging, err := models.FetchNotifications(mux.Vars(r)["uid"], currentPage(r))
	if err != nil {
		app.writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	app.writeResponse(rw, ResponsePayload{
		Success: true,
		Data:    map[string]interface{}{"notifications": notifications, "paging": paging},
	}, http.StatusOK)
}

func (app *app) listPosts(rw http.ResponseWriter, r *http.Request) {
	posts, paging, err := models.FetchPosts(currentPage(r))
	if err != nil {
		app.writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	app.writeResponse(rw, ResponsePayload{
		Success: true,
		Data:    map[string]interface{}{"posts": posts, "paging": paging},
	}, http.StatusOK)
}

func (app *app) createPost(rw http.ResponseWriter, r *http.Request) {
	post := models.Post{}

	err := json.NewDecoder(r.Body).Decode(&post)
	if err != nil {
		app.writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusBadRequest)
		return
	}

	if errs := app.validate.Struct(post); errs != nil {
		app.writeResponse(rw, ResponsePayload{Errors: validationErrors(errs)}, http.StatusBadRequest)
		return
	}

	if err := models.CreatePost(&post); err != nil {
		app.writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	app.writeResponse(rw, ResponsePayload{Success: true, Data: post}, http.StatusCreated)
}

func (app *app) addPostReaction(rw http.ResponseWriter, r *http.Request) {
	err := models.AddPostReaction(mux.Vars(r)["id"])
	if errors.Is(err, gorm.ErrRecordNotFound) {
		app.writeResponse(rw, ResponsePayload{Errors: []string{"post not found"}}, http.StatusNotFound)
		return
	}

	if err != nil {
		app.writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	app.writeResponse(rw, ResponsePayload{Success: true}, http.StatusOK)
}

func (app *app) listHelplines(rw http.ResponseWriter, r *http.Request) {
	app.writeResponse(rw, ResponsePayload{Success: true, Data: helplines}, http.StatusOK)
}

func (app *app) listJobs(rw http.ResponseWriter, r *http.Request) {
	jobs, paging, err := models.FetchJobs(currentPage(r))
	if err != nil {
		app.writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	app.writeResponse(rw, ResponsePayload{
		Success: true,
		Data:    map[string]interface{}{"jobs": jobs, "paging": paging},
	}, http.StatusOK)
}

func (app *app) healthCheck(rw http.ResponseWriter, r *http.Request) {
	app.writeResponse(rw, ResponsePayload{Success: true}, http.StatusOK)
}

// ---------------------------------------------------------------------------------//
// Helper functions
// --------------------------------------------------------------------------------//

func contactErrorStatus(err error) int {
	switch {
	case errors.Is(err, models.ErrDirectoryFull), errors.Is(err, models.ErrMissingPhoneNumber):
		return http.StatusUnprocessableEntity
	case errors.Is(err, models.ErrDuplicateContact):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
