package server

import (
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-playground/validator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sheshield/sheshield/server/alert"
	"github.com/sheshield/sheshield/server/auth/key"
	"github.com/sheshield/sheshield/server/gidentity"
	"github.com/sheshield/sheshield/server/location"
	"github.com/sheshield/sheshield/server/logger"
	"github.com/sheshield/sheshield/server/models"
	"github.com/sheshield/sheshield/server/reminders"
	"github.com/sheshield/sheshield/server/twilio"
	"github.com/sheshield/sheshield/server/work"
	"github.com/sheshield/sheshield/shared"
)

func newTestApp(t *testing.T) *app {
	models.InitializeTestDb()

	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.Nil(t, err)

	privateKeyPem := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(privateKey),
	})

	authKeyPair, err := key.NewKeyPairFromRSAPrivateKeyPem(string(privateKeyPem))
	require.Nil(t, err)

	validate := validator.New()
	require.Nil(t, RegisterValidators(validate))

	logg := logger.NewLogger(true)

	workerPool := work.NewWorkerAdapter("UTC", logg)
	reminderScheduler, err := reminders.NewReminderScheduler(workerPool, "")
	require.Nil(t, err)

	return &app{
		config:          &shared.ServerConfig{},
		logg:            logg,
		validate:        validate,
		authKeyPair:     authKeyPair,
		tracker:         location.NewTracker(),
		dispatcher:      alert.NewDispatcher(twilio.NewClient(shared.TwilioConfig{}, true), logg),
		workerPool:      workerPool,
		reminders:       reminderScheduler,
		revokedSessions: newRevocationList(),
	}
}

func doJSONRequest(app *app, method, target, token string, body interface{}) *httptest.ResponseRecorder {
	var reader *bytes.Buffer
	if body != nil {
		encoded, _ := json.Marshal(body)
		reader = bytes.NewBuffer(encoded)
	} else {
		reader = bytes.NewBuffer(nil)
	}

	request := httptest.NewRequest(method, target, reader)
	if token != "" {
		request.Header.Set("Authorization", fmt.Sprintf("Bearer %v", token))
	}

	recorder := httptest.NewRecorder()
	app.router().ServeHTTP(recorder, request)

	return recorder
}

func decodePayload(t *testing.T, recorder *httptest.ResponseRecorder) map[string]interface{} {
	payload := make(map[string]interface{})
	require.Nil(t, json.NewDecoder(recorder.Body).Decode(&payload))

	return payload
}

// signUpTestUser registers a user through the API & returns the session token
// plus the created user's id.
func signUpTestUser(t *testing.T, app *app, email, phoneNumber string) (string, uint) {
	recorder := doJSONRequest(app, "POST", "/signup", "", map[string]string{
		"first_name":   "ada",
		"last_name":    "obi",
		"email":        email,
		"phone_number": phoneNumber,
		"password":     "secure-password",
	})
	require.Equal(t, http.StatusCreated, recorder.Code, recorder.Body.String())

	data := decodePayload(t, recorder)["data"].(map[string]interface{})
	user := data["user"].(map[string]interface{})

	return data["token"].(string), uint(user["id"].(float64))
}

func TestSignUpAndLogIn(t *testing.T) {
	app := newTestApp(t)

	token, _ := signUpTestUser(t, app, "ada@example.com", "+2348100000000")
	assert.NotEmpty(t, token)

	// Duplicate email is rejected
	recorder := doJSONRequest(app, "POST", "/signup", "", map[string]string{
		"first_name":   "ada",
		"last_name":    "obi",
		"email":        "ada@example.com",
		"phone_number": "+2348100000009",
		"password":     "secure-password",
	})
	assert.Equal(t, http.StatusConflict, recorder.Code)

	// Wrong password
	recorder = doJSONRequest(app, "POST", "/login", "", map[string]string{
		"email": "ada@example.com", "password": "wrong-password"})
	assert.Equal(t, http.StatusUnauthorized, recorder.Code)

	// Unknown email gets the same response as a wrong password
	recorder = doJSONRequest(app, "POST", "/login", "", map[string]string{
		"email": "nobody@example.com", "password": "secure-password"})
	assert.Equal(t, http.StatusUnauthorized, recorder.Code)

	recorder = doJSONRequest(app, "POST", "/login", "", map[string]string{
		"email": "ada@example.com", "password": "secure-password"})
	assert.Equal(t, http.StatusOK, recorder.Code)

	data := decodePayload(t, recorder)["data"].(map[string]interface{})
	assert.NotEmpty(t, data["token"])
}

func TestSignUpValidation(t *testing.T) {
	app := newTestApp(t)

	// Short password
	recorder := doJSONRequest(app, "POST", "/signup", "", map[string]string{
		"first_name":   "ada",
		"last_name":    "obi",
		"email":        "ada@example.com",
		"phone_number": "+2348100000000",
		"password":     "short",
	})
	assert.Equal(t, http.StatusBadRequest, recorder.Code)

	// Phone number must be e164
	recorder = doJSONRequest(app, "POST", "/signup", "", map[string]string{
		"first_name":   "ada",
		"last_name":    "obi",
		"email":        "ada@example.com",
		"phone_number": "0810 000 0000",
		"password":     "secure-password",
	})
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestProtectedRoutesRequireAuth(t *testing.T) {
	app := newTestApp(t)
	_, userID := signUpTestUser(t, app, "ada@example.com", "+2348100000000")

	recorder := doJSONRequest(app, "GET", fmt.Sprintf("/users/%v/contacts", userID), "", nil)
	assert.Equal(t, http.StatusUnauthorized, recorder.Code)

	recorder = doJSONRequest(app, "GET", fmt.Sprintf("/users/%v/contacts", userID), "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, recorder.Code)
}

func TestUsersCannotAccessEachOthersResources(t *testing.T) {
	app := newTestApp(t)
	_, firstUserID := signUpTestUser(t, app, "ada@example.com", "+2348100000000")
	secondToken, _ := signUpTestUser(t, app, "bisi@example.com", "+2348100000001")

	recorder := doJSONRequest(app, "GET",
		fmt.Sprintf("/users/%v/contacts", firstUserID), secondToken, nil)
	assert.Equal(t, http.StatusForbidden, recorder.Code)
}

func TestContactEndpoints(t *testing.T) {
	app := newTestApp(t)
	token, userID := signUpTestUser(t, app, "ada@example.com", "+2348100000000")
	contactsPath := fmt.Sprintf("/users/%v/contacts", userID)

	// Empty directory to start
	recorder := doJSONRequest(app, "GET", contactsPath, token, nil)
	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Empty(t, decodePayload(t, recorder)["data"])

	recorder = doJSONRequest(app, "POST", contactsPath, token, map[string]string{
		"name": "Mom", "phone_number": "+2348100000001", "relation": "mother"})
	require.Equal(t, http.StatusCreated, recorder.Code, recorder.Body.String())

	contact := decodePayload(t, recorder)["data"].(map[string]interface{})
	contactID := contact["id"].(float64)

	recorder = doJSONRequest(app, "GET", contactsPath, token, nil)
	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Len(t, decodePayload(t, recorder)["data"], 1)

	recorder = doJSONRequest(app, "DELETE",
		fmt.Sprintf("%v/%v", contactsPath, contactID), token, nil)
	assert.Equal(t, http.StatusOK, recorder.Code)

	recorder = doJSONRequest(app, "GET", contactsPath, token, nil)
	assert.Empty(t, decodePayload(t, recorder)["data"])
}

func TestImportContacts(t *testing.T) {
	app := newTestApp(t)
	token, userID := signUpTestUser(t, app, "ada@example.com", "+2348100000000")

	candidates := []map[string]string{
		{"device_contact_id": "d-1", "name": "Mom", "phone_number": "+2348100000001"},
		{"device_contact_id": "d-2", "name": "No Phone"},
		{"device_contact_id": "d-1", "name": "Mom Again", "phone_number": "+2348100000001"},
	}

	recorder := doJSONRequest(app, "POST",
		fmt.Sprintf("/users/%v/contacts/import", userID), token,
		map[string]interface{}{"candidates": candidates})
	require.Equal(t, http.StatusOK, recorder.Code, recorder.Body.String())

	results := decodePayload(t, recorder)["data"].([]interface{})
	require.Len(t, results, 3)

	first := results[0].(map[string]interface{})
	assert.Equal(t, true, first["added"])

	noPhone := results[1].(map[string]interface{})
	assert.Equal(t, false, noPhone["added"])
	assert.NotEmpty(t, noPhone["reason"])

	duplicate := results[2].(map[string]interface{})
	assert.Equal(t, false, duplicate["added"])
}

func TestImportContactsAtDirectoryLimit(t *testing.T) {
	app := newTestApp(t)
	token, userID := signUpTestUser(t, app, "ada@example.com", "+2348100000000")
	contactsPath := fmt.Sprintf("/users/%v/contacts", userID)

	for i := 0; i < models.DIRECTORY_LIMIT; i++ {
		recorder := doJSONRequest(app, "POST", contactsPath, token, map[string]string{
			"name": fmt.Sprintf("Contact %v", i), "phone_number": fmt.Sprintf("+234810000000%v", i)})
		require.Equal(t, http.StatusCreated, recorder.Code)
	}

	recorder := doJSONRequest(app, "POST", contactsPath+"/import", token,
		map[string]interface{}{"candidates": []map[string]string{
			{"device_contact_id": "d-9", "name": "Overflow", "phone_number": "+2348100000009"}}})
	require.Equal(t, http.StatusOK, recorder.Code)

	result := decodePayload(t, recorder)["data"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, false, result["added"])

	// The directory is still at the limit
	recorder = doJSONRequest(app, "GET", contactsPath, token, nil)
	assert.Len(t, decodePayload(t, recorder)["data"], models.DIRECTORY_LIMIT)
}

func TestLocationAndShareEndpoints(t *testing.T) {
	app := newTestApp(t)
	token, userID := signUpTestUser(t, app, "ada@example.com", "+2348100000000")
	locationPath := fmt.Sprintf("/users/%v/location", userID)

	// No fix reported yet
	recorder := doJSONRequest(app, "GET", locationPath, token, nil)
	assert.Equal(t, http.StatusNotFound, recorder.Code)

	// Sharing without a fix fails even with a valid contact
	recorder = doJSONRequest(app, "POST",
		fmt.Sprintf("/users/%v/contacts", userID), token,
		map[string]string{"name": "Mom", "phone_number": "+2348100000001"})
	require.Equal(t, http.StatusCreated, recorder.Code)
	contactID := decodePayload(t, recorder)["data"].(map[string]interface{})["id"].(float64)

	recorder = doJSONRequest(app, "POST",
		fmt.Sprintf("/users/%v/share-location", userID), token,
		map[string]interface{}{"contact_id": contactID})
	assert.Equal(t, http.StatusNotFound, recorder.Code)

	// Out-of-range fix is rejected
	recorder = doJSONRequest(app, "PUT", locationPath, token,
		map[string]float64{"latitude": 91, "longitude": 0})
	assert.Equal(t, http.StatusBadRequest, recorder.Code)

	recorder = doJSONRequest(app, "PUT", locationPath, token,
		map[string]float64{"latitude": 6.5244, "longitude": 3.3792})
	require.Equal(t, http.StatusOK, recorder.Code)

	recorder = doJSONRequest(app, "GET", locationPath, token, nil)
	require.Equal(t, http.StatusOK, recorder.Code)
	fix := decodePayload(t, recorder)["data"].(map[string]interface{})
	assert.Equal(t, 6.5244, fix["latitude"])

	// Unknown contact
	recorder = doJSONRequest(app, "POST",
		fmt.Sprintf("/users/%v/share-location", userID), token,
		map[string]interface{}{"contact_id": 999})
	assert.Equal(t, http.StatusNotFound, recorder.Code)

	recorder = doJSONRequest(app, "POST",
		fmt.Sprintf("/users/%v/share-location", userID), token,
		map[string]interface{}{"contact_id": contactID})
	assert.Equal(t, http.StatusOK, recorder.Code, recorder.Body.String())

	// The share lands in the notification log
	recorder = doJSONRequest(app, "GET",
		fmt.Sprintf("/users/%v/notifications", userID), token, nil)
	require.Equal(t, http.StatusOK, recorder.Code)

	data := decodePayload(t, recorder)["data"].(map[string]interface{})
	notifications := data["notifications"].([]interface{})
	latest := notifications[0].(map[string]interface{})
	assert.Equal(t, models.LOCATION_SHARE_NOTIFICATION, latest["type"])
}

func TestRecordLocationRespectsPreference(t *testing.T) {
	app := newTestApp(t)
	token, userID := signUpTestUser(t, app, "ada@example.com", "+2348100000000")

	user, err := models.FindUserBy("id", userID)
	require.Nil(t, err)

	preferences := models.DefaultPreferences()
	preferences.LocationSharing = false
	require.Nil(t, user.SaveProfile(&models.Profile{Preferences: preferences}))

	recorder := doJSONRequest(app, "PUT",
		fmt.Sprintf("/users/%v/location", userID), token,
		map[string]float64{"latitude": 6.5244, "longitude": 3.3792})
	assert.Equal(t, http.StatusForbidden, recorder.Code)
}

func TestProfileEndpoints(t *testing.T) {
	app := newTestApp(t)
	token, userID := signUpTestUser(t, app, "ada@example.com", "+2348100000000")
	profilePath := fmt.Sprintf("/users/%v/profile", userID)

	// No profile before the first save
	recorder := doJSONRequest(app, "GET", profilePath, token, nil)
	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Nil(t, decodePayload(t, recorder)["data"])

	recorder = doJSONRequest(app, "PUT", profilePath, token, map[string]interface{}{
		"home_address": "12 Allen Avenue, Ikeja",
		"medical_info": map[string]string{"blood_group": "O+"},
		"preferences": map[string]interface{}{
			"location_sharing": true, "theme": "dark"},
	})
	require.Equal(t, http.StatusOK, recorder.Code, recorder.Body.String())

	recorder = doJSONRequest(app, "GET", profilePath, token, nil)
	require.Equal(t, http.StatusOK, recorder.Code)

	profile := decodePayload(t, recorder)["data"].(map[string]interface{})
	assert.Equal(t, "12 Allen Avenue, Ikeja", profile["home_address"])
	assert.Equal(t, "dark", profile["preferences"].(map[string]interface{})["theme"])

	// Unsupported theme value
	recorder = doJSONRequest(app, "PUT", profilePath, token, map[string]interface{}{
		"preferences": map[string]interface{}{"theme": "sepia"}})
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestLogOut(t *testing.T) {
	app := newTestApp(t)
	token, userID := signUpTestUser(t, app, "ada@example.com", "+2348100000000")

	recorder := doJSONRequest(app, "DELETE", "/logout", token, nil)
	assert.Equal(t, http.StatusOK, recorder.Code)

	// The session token no longer works
	recorder = doJSONRequest(app, "GET", fmt.Sprintf("/users/%v", userID), token, nil)
	assert.Equal(t, http.StatusUnauthorized, recorder.Code)
}

func TestGoogleCredentialExchange(t *testing.T) {
	app := newTestApp(t)

	// Not configured
	recorder := doJSONRequest(app, "POST", "/oauth/google", "", map[string]string{"id_token": "x"})
	assert.Equal(t, http.StatusServiceUnavailable, recorder.Code)

	app.verifier = &gidentity.TokenVerifierStub{
		Identity: &gidentity.ExternalIdentity{Subject: "google-1", Email: "ada@example.com"},
	}

	// No matching account yet
	recorder = doJSONRequest(app, "POST", "/oauth/google", "", map[string]string{"id_token": "x"})
	assert.Equal(t, http.StatusNotFound, recorder.Code)

	signUpTestUser(t, app, "ada@example.com", "+2348100000000")

	recorder = doJSONRequest(app, "POST", "/oauth/google", "", map[string]string{"id_token": "x"})
	assert.Equal(t, http.StatusOK, recorder.Code, recorder.Body.String())

	data := decodePayload(t, recorder)["data"].(map[string]interface{})
	assert.NotEmpty(t, data["token"])

	// A rejected provider credential
	app.verifier = &gidentity.TokenVerifierStub{VerifyError: fmt.Errorf("bad token")}
	recorder = doJSONRequest(app, "POST", "/oauth/google", "", map[string]string{"id_token": "x"})
	assert.Equal(t, http.StatusUnauthorized, recorder.Code)
}

func TestCommunityPostEndpoints(t *testing.T) {
	app := newTestApp(t)
	token, _ := signUpTestUser(t, app, "ada@example.com", "+2348100000000")

	recorder := doJSONRequest(app, "POST", "/posts", token,
		map[string]string{"message": "Stay safe out there"})
	require.Equal(t, http.StatusCreated, recorder.Code, recorder.Body.String())

	post := decodePayload(t, recorder)["data"].(map[string]interface{})
	postID := post["id"].(float64)

	// Posts carry no author identity
	_, hasUserID := post["user_id"]
	assert.False(t, hasUserID)

	recorder = doJSONRequest(app, "POST", fmt.Sprintf("/posts/%v/reactions", postID), token, nil)
	assert.Equal(t, http.StatusOK, recorder.Code)

	recorder = doJSONRequest(app, "POST", "/posts/999/reactions", token, nil)
	assert.Equal(t, http.StatusNotFound, recorder.Code)

	recorder = doJSONRequest(app, "GET", "/posts", token, nil)
	require.Equal(t, http.StatusOK, recorder.Code)

	data := decodePayload(t, recorder)["data"].(map[string]interface{})
	assert.NotEmpty(t, data["posts"])
}

func TestHelplines(t *testing.T) {
	app := newTestApp(t)

	recorder := doJSONRequest(app, "GET", "/helplines", "", nil)
	require.Equal(t, http.StatusOK, recorder.Code)

	payload := decodePayload(t, recorder)
	assert.Len(t, payload["data"], len(helplines))
}
