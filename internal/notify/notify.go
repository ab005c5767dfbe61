// Package notify contains an interface of the best-effort notification channel.
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

//go:generate mockgen -destination=./mock/notify.go -package=mock -source=notify.go

var log = logrus.WithField("package", "notify")

// Notification ...
type Notification struct {
	Title     string `json:"title"`
	Body      string `json:"body"`
	TargetURL string `json:"target_url,omitempty"`
}

// Notifier delivers notification to target.
type Notifier interface {
	Notify(ctx context.Context, target string, n Notification) error
}

// Async delivers notification in background with its own timeout.
// Delivery is not bound to ctx cancellation. Failures go to the dead-letter log.
// Returned channel is closed when delivery is finished.
func Async(ctx context.Context, n Notifier, target string, msg Notification, timeout time.Duration) <-chan struct{} {
	done := make(chan struct{})

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)

	go func() {
		defer close(done)
		defer cancel()

		l := log.WithFields(logrus.Fields{
			"dead_letter": "notify",
			"target":      target,
			"title":       msg.Title,
			"body":        msg.Body,
		})

		defer func() {
			if r := recover(); r != nil {
				l.WithError(fmt.Errorf("panic: %v", r)).Error("failed to deliver notification")
			}
		}()

		if err := n.Notify(ctx, target, msg); err != nil {
			l.WithError(err).Error("failed to deliver notification")
			return
		}

		log.WithField("target", target).Debug("notification delivered")
	}()

	return done
}
