package models

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

// DIRECTORY_LIMIT bounds SMS fan-out & keeps the contact list manageable.
const DIRECTORY_LIMIT = 5

var (
	ErrDirectoryFull      = errors.New("emergency contact directory is full")
	ErrMissingPhoneNumber = errors.New("emergency contact requires a phone number")
	ErrDuplicateContact   = errors.New("device contact is already in the directory")
)

type EmergencyContact struct {
	BaseModel
	Name            string `json:"name" validate:"required"`
	PhoneNumber     string `json:"phone_number" validate:"required,e164"`
	Relation        string `json:"relation,omitempty"`
	DeviceContactID string `json:"device_contact_id,omitempty"`
	UserID          uint   `json:"user_id" gorm:"not null"`
}

// AddEmergencyContact enforces the directory invariants at insert time:
// a phone number is required, the directory holds at most DIRECTORY_LIMIT
// contacts & re-adding the same device contact is rejected.
func (user *User) AddEmergencyContact(contact *EmergencyContact) error {
	if strings.TrimSpace(contact.PhoneNumber) == "" {
		return ErrMissingPhoneNumber
	}

	contact.UserID = user.ID

	return db.Transaction(func(tx *gorm.DB) error {
		var count int64
		err := tx.Model(&EmergencyContact{}).Where("user_id = ?", user.ID).Count(&count).Error
		if err != nil {
			return err
		}

		if count >= DIRECTORY_LIMIT {
			return ErrDirectoryFull
		}

		if contact.DeviceContactID != "" {
			result := tx.Where("user_id = ? AND device_contact_id = ?",
				user.ID, contact.DeviceContactID).First(&EmergencyContact{})

			if result.Error != nil && !errors.Is(result.Error, gorm.ErrRecordNotFound) {
				return result.Error
			}

			if result.RowsAffected > 0 {
				return ErrDuplicateContact
			}
		}

		return tx.Create(contact).Error
	})
}

func (user *User) ListEmergencyContacts() ([]EmergencyContact, error) {
	contacts := []EmergencyContact{}
	err := db.Order("id").Find(&contacts, "user_id = ?", user.ID).Error
	if err != nil {
		return nil, err
	}

	return contacts, nil
}

func (user *User) FindEmergencyContact(id interface{}) (*EmergencyContact, error) {
	contact := EmergencyContact{}
	err := db.Where("user_id = ?", user.ID).First(&contact, "id = ?", id).Error
	if err != nil {
		return nil, err
	}

	return &contact, nil
}

// RemoveEmergencyContact is a no-op for ids that aren't in the directory.
func (user *User) RemoveEmergencyContact(id interface{}) error {
	return db.Where("user_id = ?", user.ID).Delete(&EmergencyContact{}, "id = ?", id).Error
}
