// Package notify delivers user-facing messages. Delivery failures are
// logged, never retried.
package notify

import (
	"github.com/sirupsen/logrus"

	"pump_copy/internal/common"
)

// Notifier delivers one formatted message to one user.
type Notifier interface {
	Notify(userID int64, text string)
}

// LogNotifier writes notifications to the application log. It is the
// fallback when no Telegram token is configured, and handy in tests.
type LogNotifier struct{}

func NewLogNotifier() LogNotifier { return LogNotifier{} }

func (LogNotifier) Notify(userID int64, text string) {
	common.Log.WithFields(logrus.Fields{
		"user": userID,
		"text": text,
	}).Info("notification")
}
