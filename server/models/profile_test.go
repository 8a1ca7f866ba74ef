package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func profileTestUser(t *testing.T, email, phoneNumber string) *User {
	user := &User{
		FirstName:   "ada",
		LastName:    "obi",
		Email:       email,
		PhoneNumber: phoneNumber,
		Password:    "secure-password",
	}
	require.Nil(t, CreateUser(user))

	return user
}

func TestSaveAndLoadProfile(t *testing.T) {
	InitializeTestDb()
	user := profileTestUser(t, "ada@example.com", "+2348100000000")

	_, err := user.LoadProfile()
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound, "Expected no profile before the first save")

	profile := Profile{
		HomeAddress: "12 Allen Avenue, Ikeja",
		MedicalInfo: MedicalInfo{BloodGroup: "O+", Allergies: "penicillin"},
		Preferences: DefaultPreferences(),
	}
	require.Nil(t, user.SaveProfile(&profile))

	loaded, err := user.LoadProfile()
	require.Nil(t, err)
	assert.Equal(t, "12 Allen Avenue, Ikeja", loaded.HomeAddress)
	assert.Equal(t, "O+", loaded.MedicalInfo.BloodGroup)
	assert.True(t, loaded.Preferences.LocationSharing)
	assert.Equal(t, LIGHT_THEME, loaded.Preferences.Theme)
}

func TestSaveProfileOverwritesWholesale(t *testing.T) {
	InitializeTestDb()
	user := profileTestUser(t, "ada@example.com", "+2348100000000")

	require.Nil(t, user.SaveProfile(&Profile{
		HomeAddress: "12 Allen Avenue, Ikeja",
		WorkAddress: "1 Marina Road, Lagos",
		Preferences: DefaultPreferences(),
	}))

	// A save with a field left blank clears that field
	preferences := DefaultPreferences()
	preferences.LocationSharing = false
	require.Nil(t, user.SaveProfile(&Profile{
		HomeAddress: "4 New Street",
		Preferences: preferences,
	}))

	loaded, err := user.LoadProfile()
	require.Nil(t, err)
	assert.Equal(t, "4 New Street", loaded.HomeAddress)
	assert.Empty(t, loaded.WorkAddress)
	assert.False(t, loaded.Preferences.LocationSharing)

	// Still a single profile row for the user
	var count int64
	db.Model(&Profile{}).Where("user_id = ?", user.ID).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestLocationSharingEnabled(t *testing.T) {
	InitializeTestDb()
	user := profileTestUser(t, "ada@example.com", "+2348100000000")

	// No profile yet - defaults to sharing on
	enabled, err := user.LocationSharingEnabled()
	assert.Nil(t, err)
	assert.True(t, enabled)

	preferences := DefaultPreferences()
	preferences.LocationSharing = false
	require.Nil(t, user.SaveProfile(&Profile{Preferences: preferences}))

	enabled, err = user.LocationSharingEnabled()
	assert.Nil(t, err)
	assert.False(t, enabled)
}
