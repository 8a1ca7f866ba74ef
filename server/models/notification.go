package models

import "fmt"

const (
	TIP_NOTIFICATION            = "tip"
	EMERGENCY_NOTIFICATION      = "emergency"
	LOCATION_SHARE_NOTIFICATION = "location_share"
	REMINDER_NOTIFICATION       = "reminder"
)

var NotificationTypeNameMap = map[string]bool{
	TIP_NOTIFICATION:            true,
	EMERGENCY_NOTIFICATION:      true,
	LOCATION_SHARE_NOTIFICATION: true,
	REMINDER_NOTIFICATION:       true,
}

// Notification is one entry in a user's append-only alerts log. Entries are
// only ever created by the server & read back by the alerts screen.
type Notification struct {
	BaseModel
	Title  string `json:"title" gorm:"not null"`
	Body   string `json:"body"`
	Type   string `json:"type" gorm:"not null"`
	UserID uint   `json:"user_id" gorm:"not null"`
}

func CreateNotification(userID uint, title, body, notificationType string) error {
	if !NotificationTypeNameMap[notificationType] {
		return fmt.Errorf("%v is not a supported notification type", notificationType)
	}

	return db.Create(&Notification{
		Title:  title,
		Body:   body,
		Type:   notificationType,
		UserID: userID,
	}).Error
}

func FetchNotifications(userID interface{}, page int) ([]Notification, *Paging, error) {
	var total int64
	notifications := []Notification{}

	err := db.Model(&Notification{}).Where("user_id = ?", userID).Count(&total).Error
	if err != nil {
		return nil, nil, err
	}

	err = db.Scopes(paginate(page, DEFAULT_PAGE_SIZE)).
		Order("notifications.id desc").
		Find(&notifications, "user_id = ?", userID).Error
	if err != nil {
		return nil, nil, err
	}

	return notifications, newPaging(int64(page), DEFAULT_PAGE_SIZE, total), nil
}

func NotificationCountByType(userID interface{}, notificationType string) (int64, error) {
	var count int64
	err := db.Model(&Notification{}).
		Where("user_id = ? AND type = ?", userID, notificationType).
		Count(&count).Error

	return count, err
}
