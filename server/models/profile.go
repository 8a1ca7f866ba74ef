package models

import (
	"errors"

	"gorm.io/gorm"
)

const (
	LIGHT_THEME = "light"
	DARK_THEME  = "dark"
)

// MedicalInfo is free-text info shown to responders, never validated.
type MedicalInfo struct {
	BloodGroup  string `json:"blood_group"`
	Allergies   string `json:"allergies"`
	Medications string `json:"medications"`
}

type Preferences struct {
	LocationSharing bool   `json:"location_sharing"`
	AutoAlert       bool   `json:"auto_alert"`
	BiometricLock   bool   `json:"biometric_lock"`
	SafetyReminders bool   `json:"safety_reminders"`
	Theme           string `json:"theme" validate:"omitempty,oneof=light dark"`
}

// Profile holds everything the profile screen edits. It is saved wholesale -
// every save overwrites the entire record for the user.
type Profile struct {
	BaseModel
	UserID      uint        `json:"user_id,omitempty" gorm:"not null;unique"`
	PhotoRef    string      `json:"photo_ref,omitempty"`
	HomeAddress string      `json:"home_address"`
	WorkAddress string      `json:"work_address"`
	MedicalInfo MedicalInfo `json:"medical_info" gorm:"embedded;embeddedPrefix:medical_"`
	Preferences Preferences `json:"preferences" gorm:"embedded;embeddedPrefix:pref_"`
}

// DefaultPreferences mirrors the defaults the profile screen starts with.
func DefaultPreferences() Preferences {
	return Preferences{
		LocationSharing: true,
		AutoAlert:       true,
		BiometricLock:   true,
		SafetyReminders: true,
		Theme:           LIGHT_THEME,
	}
}

// SaveProfile overwrites the user's entire profile record, creating it on
// the first save.
func (user *User) SaveProfile(profile *Profile) error {
	profile.UserID = user.ID

	return db.Transaction(func(tx *gorm.DB) error {
		existing := Profile{}
		err := tx.Select("id").First(&existing, "user_id = ?", user.ID).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		profile.ID = existing.ID
		return tx.Save(profile).Error
	})
}

// LoadProfile returns gorm.ErrRecordNotFound until the first save.
func (user *User) LoadProfile() (*Profile, error) {
	profile := Profile{}
	err := db.First(&profile, "user_id = ?", user.ID).Error
	if err != nil {
		return nil, err
	}

	return &profile, nil
}

// LocationSharingEnabled treats a missing profile as consent - the original
// app's default preference is sharing on.
func (user *User) LocationSharingEnabled() (bool, error) {
	profile, err := user.LoadProfile()
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return true, nil
	}

	if err != nil {
		return false, err
	}

	return profile.Preferences.LocationSharing, nil
}
