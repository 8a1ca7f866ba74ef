package models

import (
	"errors"
	"fmt"

	"github.com/sheshield/sheshield/server/auth"
	"gorm.io/gorm"
)

var (
	allFieldsExceptPassword = []string{"id",
		"first_name",
		"last_name",
		"phone_number",
		"email",
		"role_id",
		"created_at",
		"updated_at",
	}

	updatableFields = []string{"first_name",
		"last_name",
		"phone_number",
		"password",
	}
)

const welcomeNotificationBody = "Stay safe with our emergency features. " +
	"Add emergency contacts to get started."

type User struct {
	BaseModel
	FirstName         string             `json:"first_name" validate:"required"`
	LastName          string             `json:"last_name" validate:"required"`
	PhoneNumber       string             `json:"phone_number" validate:"required,e164" gorm:"not null;unique"`
	Email             string             `json:"email" validate:"required,email" gorm:"not null;unique"`
	Password          string             `json:"password,omitempty" validate:"required,password" gorm:"not null"`
	RoleID            uint               `json:"role_id" gorm:"null"`
	Profile           *Profile           `json:"profile,omitempty" gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	EmergencyContacts []EmergencyContact `json:"emergency_contacts,omitempty" gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	Notifications     []Notification     `json:"notifications,omitempty" gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
}

func (user *User) Update(data map[string]interface{}) error {
	if data["password"] != nil {
		passwordHash, err := auth.HashPassword(data["password"].(string))
		if err != nil {
			return err
		}
		data["password"] = passwordHash
	}

	return db.Model(&User{}).Where("id = ?", user.ID).Select(updatableFields).Updates(data).Error
}

func (user *User) IsAdmin() (bool, error) {
	if user.RoleID == 0 {
		return false, nil
	}

	adminRole, err := FindRole(ADMIN_USER_ROLE)
	if err != nil {
		return false, err
	}

	return adminRole.ID == user.RoleID, nil
}

func FindUserBy(field string, value interface{}) (*User, error) {
	user := User{}
	err := db.Select(allFieldsExceptPassword).First(&user, fmt.Sprintf("%v = ?", field), value).Error
	if err != nil {
		return nil, err
	}

	return &user, nil
}

func FindUserPassword(email string) (string, error) {
	user := &User{}
	err := db.Select("Password").First(user, "email = ?", email).Error
	if err != nil {
		return "", err
	}

	return user.Password, nil
}

// CreateUser hashes the user's password, assigns the 'admin' role to the very
// first account & seeds the welcome entry in the user's notification log.
func CreateUser(user *User) error {
	passwordHash, err := auth.HashPassword(user.Password)
	if err != nil {
		return err
	}
	user.Password = passwordHash

	userExists, err := AtLeastOneUserExists()
	if err != nil {
		return err
	}

	if !userExists {
		adminRole, err := FindRole(ADMIN_USER_ROLE)
		if err != nil {
			return err
		}
		user.RoleID = adminRole.ID
	}

	user.Notifications = []Notification{{
		Title: "Welcome to SheShield",
		Body:  welcomeNotificationBody,
		Type:  TIP_NOTIFICATION,
	}}

	return db.Create(user).Error
}

func DeleteUser(id interface{}) error {
	return db.Select("Profile", "EmergencyContacts", "Notifications").Delete(&User{}, id).Error
}

func AtLeastOneUserExists() (bool, error) {
	err := db.First(&User{}).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}

	if err != nil {
		return false, err
	}

	return true, nil
}

// UsersWithSafetyReminders returns every user whose saved profile has the
// safety-reminder preference switched on.
func UsersWithSafetyReminders() ([]User, error) {
	users := []User{}

	err := db.Select(allFieldsExceptPassword).Joins(
		"INNER JOIN profiles ON profiles.user_id = users.id AND profiles.pref_safety_reminders = true").
		Find(&users).Error
	if err != nil {
		return nil, err
	}

	return users, nil
}
