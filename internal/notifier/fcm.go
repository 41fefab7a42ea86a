package notifier

import (
	"context"
	"fmt"
	"strconv"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"github.com/ds124wfegd/alarmbridge/internal/entity"
	"github.com/sirupsen/logrus"
	"google.golang.org/api/option"
)

// Sender is the part of *messaging.Client the push presenter needs.
type Sender interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

// FCMTarget addresses either one device token or a topic.
type FCMTarget struct {
	Token string
	Topic string
}

// Push delivers notifications through Firebase Cloud Messaging. The slot
// becomes the Android tag, so the device replaces a visible notification
// with the same slot.
type Push struct {
	sender Sender
	target FCMTarget
}

func NewPush(sender Sender, target FCMTarget) *Push {
	return &Push{sender: sender, target: target}
}

// NewFirebaseSender initializes the Firebase app and returns its messaging
// client.
func NewFirebaseSender(ctx context.Context, projectID, credentialsFile string) (*messaging.Client, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("error initializing firebase app: %w", err)
	}

	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get messaging client: %w", err)
	}
	return client, nil
}

// EnsureChannel is a no-op: Android channels live on the device and the
// app creates them there.
func (p *Push) EnsureChannel(context.Context, entity.Channel) error {
	return nil
}

func (p *Push) Post(ctx context.Context, notification entity.Notification) error {
	message := BuildMessage(notification, p.target)

	response, err := p.sender.Send(ctx, message)
	if err != nil {
		if messaging.IsUnregistered(err) {
			return ErrNotificationsDisabled
		}
		return fmt.Errorf("fcm send failed: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"slot":     notification.Slot,
		"response": response,
	}).Debug("push notification sent")
	return nil
}

func BuildMessage(notification entity.Notification, target FCMTarget) *messaging.Message {
	slot := strconv.FormatInt(int64(notification.Slot), 10)

	priority := "normal"
	notificationPriority := messaging.PriorityDefault
	if notification.Priority == entity.PriorityHigh {
		priority = "high"
		notificationPriority = messaging.PriorityHigh
	}

	return &messaging.Message{
		Token: target.Token,
		Topic: target.Topic,
		Notification: &messaging.Notification{
			Title: notification.Title,
			Body:  notification.Body,
		},
		Data: map[string]string{
			"requestCode": slot,
			"tapAction":   notification.TapAction.Kind,
			"tapTarget":   notification.TapAction.Target,
		},
		Android: &messaging.AndroidConfig{
			CollapseKey: slot,
			Priority:    priority,
			Notification: &messaging.AndroidNotification{
				Tag:       slot,
				ChannelID: notification.ChannelID,
				Icon:      notification.SmallIcon,
				Priority:  notificationPriority,
			},
		},
	}
}
