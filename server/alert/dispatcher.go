package alert

import (
	"fmt"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/sheshield/sheshield/server/models"
)

var (
	ErrSmsUnavailable  = errors.New("sms capability is not available")
	ErrShareInProgress = errors.New("a location share is already in progress")
)

// Messenger is the slice of the SMS client the dispatcher needs.
type Messenger interface {
	Available() bool
	SendMessage(to, msg string) error
}

// Dispatcher pushes emergency messages out over SMS & records each share in
// the user's notification log. Sends are fire-and-forget: acceptance by the
// SMS API is the only guarantee, there is no delivery confirmation or retry.
type Dispatcher struct {
	messenger Messenger
	logg      *zap.SugaredLogger

	mu      sync.Mutex
	sharing map[uint]bool
}

func NewDispatcher(messenger Messenger, logg *zap.SugaredLogger) *Dispatcher {
	return &Dispatcher{
		messenger: messenger,
		logg:      logg,
		sharing:   make(map[uint]bool),
	}
}

// SendAlert delivers the message to the chosen contact. Only one share may
// be in flight per user - re-entry is refused until the send settles. On
// success exactly one 'location_share' entry lands in the notification log,
// on failure none.
func (dispatcher *Dispatcher) SendAlert(user *models.User, contact *models.EmergencyContact, message string) error {
	if dispatcher.messenger == nil || !dispatcher.messenger.Available() {
		return ErrSmsUnavailable
	}

	if !dispatcher.beginShare(user.ID) {
		return ErrShareInProgress
	}
	defer dispatcher.endShare(user.ID)

	err := dispatcher.messenger.SendMessage(contact.PhoneNumber, message)
	if err != nil {
		return errors.Wrap(err, "SendAlert")
	}

	err = models.CreateNotification(
		user.ID,
		"Location Shared",
		fmt.Sprintf("Live location shared with %v", contact.Name),
		models.LOCATION_SHARE_NOTIFICATION,
	)
	if err != nil {
		// The SMS was already accepted, so a log write failure must not
		// fail the share.
		dispatcher.logg.Errorf("SendAlert: unable to record notification: %v", err)
	}

	return nil
}

func (dispatcher *Dispatcher) beginShare(userID uint) bool {
	dispatcher.mu.Lock()
	defer dispatcher.mu.Unlock()

	if dispatcher.sharing[userID] {
		return false
	}

	dispatcher.sharing[userID] = true
	return true
}

func (dispatcher *Dispatcher) endShare(userID uint) {
	dispatcher.mu.Lock()
	defer dispatcher.mu.Unlock()

	delete(dispatcher.sharing, userID)
}
