package reminders

import (
	"fmt"
	"math/rand"

	"github.com/sheshield/sheshield/server/models"
	"github.com/sheshield/sheshield/server/work"
)

const (
	REMINDER_PREFIX       = "safety_reminder"
	SEND_REMINDER_HANDLER = "send_safety_reminder"

	// At 09:00 every Monday
	DEFAULT_REMINDER_CRON_EXPRESSION = "0 9 * * 1"
)

// Tips are rotated through the reminder notifications at random.
var safetyTips = []string{
	"Enable two-factor authentication on your accounts.",
	"Be careful with personal information sharing.",
	"Check your privacy settings regularly.",
	"Avoid public Wi-Fi for sensitive tasks.",
	"Be careful with location sharing.",
	"Report online harassment immediately.",
	"Keep your emergency contacts up to date.",
	"Share your live location with someone you trust when travelling late.",
}

// ReminderScheduler periodically drops a safety tip into the notification
// log of every user who has the safety-reminder preference switched on.
type ReminderScheduler struct {
	workerPoolAdapter *work.WorkerPoolAdapter
	cronExpression    string
}

func NewReminderScheduler(workerPoolAdapter *work.WorkerPoolAdapter, cronExpression string) (*ReminderScheduler, error) {
	if cronExpression == "" {
		cronExpression = DEFAULT_REMINDER_CRON_EXPRESSION
	}

	err := workerPoolAdapter.Register(SEND_REMINDER_HANDLER, sendSafetyReminder)
	if err != nil {
		return nil, err
	}

	return &ReminderScheduler{
		workerPoolAdapter: workerPoolAdapter,
		cronExpression:    cronExpression,
	}, nil
}

// ScheduleReminders sets up the periodic reminder job for every user with
// the preference on. Run once on server boot.
func (scheduler *ReminderScheduler) ScheduleReminders() error {
	users, err := models.UsersWithSafetyReminders()
	if err != nil {
		return err
	}

	for _, user := range users {
		err = scheduler.ScheduleReminder(user.ID)
		if err != nil {
			return err
		}
	}

	return nil
}

func (scheduler *ReminderScheduler) ScheduleReminder(userID uint) error {
	return scheduler.workerPoolAdapter.PeriodicallyPerform(scheduler.cronExpression, work.JobParams{
		Name:    reminderName(userID),
		Handler: SEND_REMINDER_HANDLER,
		Args:    map[string]interface{}{"user_id": userID},
	})
}

func (scheduler *ReminderScheduler) DescheduleReminder(userID uint) {
	scheduler.workerPoolAdapter.RemovePeriodicJob(reminderName(userID))
}

// ---------------------------------------------------------------------------------//
// Helper functions
// --------------------------------------------------------------------------------//

func reminderName(userID interface{}) string {
	return fmt.Sprintf("%v_%v", REMINDER_PREFIX, userID)
}

func sendSafetyReminder(args map[string]interface{}) error {
	// Job args round-trip through JSON, so numbers come back as float64
	userID, ok := args["user_id"].(float64)
	if !ok {
		return fmt.Errorf("sendSafetyReminder: user_id missing from job args")
	}

	tip := safetyTips[rand.Intn(len(safetyTips))]
	err := models.CreateNotification(uint(userID), "Safety Reminder", tip, models.REMINDER_NOTIFICATION)
	if err != nil {
		return fmt.Errorf("sendSafetyReminder: %v", err)
	}

	return nil
}
