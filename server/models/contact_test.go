package models

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddEmergencyContact(t *testing.T) {
	InitializeTestDb()
	user := profileTestUser(t, "ada@example.com", "+2348100000000")

	contact := EmergencyContact{Name: "Mom", PhoneNumber: "+2348100000001", Relation: "mother"}
	assert.Nil(t, user.AddEmergencyContact(&contact))
	assert.NotZero(t, contact.ID)

	contacts, err := user.ListEmergencyContacts()
	require.Nil(t, err)
	assert.Len(t, contacts, 1)
	assert.Equal(t, "Mom", contacts[0].Name)
}

func TestAddEmergencyContactRequiresPhoneNumber(t *testing.T) {
	InitializeTestDb()
	user := profileTestUser(t, "ada@example.com", "+2348100000000")

	err := user.AddEmergencyContact(&EmergencyContact{Name: "Mom", PhoneNumber: "  "})
	assert.Equal(t, ErrMissingPhoneNumber, err)
}

func TestAddEmergencyContactDirectoryLimit(t *testing.T) {
	InitializeTestDb()
	user := profileTestUser(t, "ada@example.com", "+2348100000000")

	for i := 0; i < DIRECTORY_LIMIT; i++ {
		err := user.AddEmergencyContact(&EmergencyContact{
			Name:        fmt.Sprintf("Contact %v", i),
			PhoneNumber: fmt.Sprintf("+234810000000%v", i),
		})
		require.Nil(t, err)
	}

	err := user.AddEmergencyContact(&EmergencyContact{Name: "One Too Many", PhoneNumber: "+2348100000009"})
	assert.Equal(t, ErrDirectoryFull, err)

	contacts, _ := user.ListEmergencyContacts()
	assert.Len(t, contacts, DIRECTORY_LIMIT)
}

func TestAddEmergencyContactRejectsDuplicateDeviceContact(t *testing.T) {
	InitializeTestDb()
	user := profileTestUser(t, "ada@example.com", "+2348100000000")

	contact := EmergencyContact{Name: "Mom", PhoneNumber: "+2348100000001", DeviceContactID: "device-42"}
	require.Nil(t, user.AddEmergencyContact(&contact))

	err := user.AddEmergencyContact(&EmergencyContact{
		Name: "Mom Again", PhoneNumber: "+2348100000001", DeviceContactID: "device-42"})
	assert.Equal(t, ErrDuplicateContact, err)

	// Another user may add the same device contact
	other := profileTestUser(t, "bisi@example.com", "+2348100000002")
	err = other.AddEmergencyContact(&EmergencyContact{
		Name: "Mom", PhoneNumber: "+2348100000001", DeviceContactID: "device-42"})
	assert.Nil(t, err)
}

func TestRemoveEmergencyContact(t *testing.T) {
	InitializeTestDb()
	user := profileTestUser(t, "ada@example.com", "+2348100000000")

	contact := EmergencyContact{Name: "Mom", PhoneNumber: "+2348100000001"}
	require.Nil(t, user.AddEmergencyContact(&contact))

	assert.Nil(t, user.RemoveEmergencyContact(contact.ID))

	contacts, _ := user.ListEmergencyContacts()
	assert.Empty(t, contacts)

	// Removing an id that isn't there is a no-op
	assert.Nil(t, user.RemoveEmergencyContact(999))
}

func TestRemoveThenAddAtLimit(t *testing.T) {
	InitializeTestDb()
	user := profileTestUser(t, "ada@example.com", "+2348100000000")

	contacts := make([]EmergencyContact, DIRECTORY_LIMIT)
	for i := range contacts {
		contacts[i] = EmergencyContact{
			Name:        fmt.Sprintf("Contact %v", i),
			PhoneNumber: fmt.Sprintf("+234810000000%v", i),
		}
		require.Nil(t, user.AddEmergencyContact(&contacts[i]))
	}

	require.Nil(t, user.RemoveEmergencyContact(contacts[0].ID))

	// A slot opened up, so a new add succeeds
	err := user.AddEmergencyContact(&EmergencyContact{Name: "New", PhoneNumber: "+2348100000009"})
	assert.Nil(t, err)

	remaining, _ := user.ListEmergencyContacts()
	assert.Len(t, remaining, DIRECTORY_LIMIT)
}
