package fcm

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// Client pushes notifications to browser and mobile devices through Firebase Cloud Messaging
type Client struct {
	msgClient *messaging.Client
	logger    *zap.Logger
}

func NewClient(ctx context.Context, logger *zap.Logger, credentialsFile string) (*Client, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	} else {
		logger.Warn("no firebase credentials file provided, falling back to application default credentials")
	}

	app, err := firebase.NewApp(ctx, nil, opts...)
	if err != nil {
		return nil, fmt.Errorf("error initializing firebase app: %w", err)
	}

	msgClient, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting messaging client: %w", err)
	}

	return &Client{
		msgClient: msgClient,
		logger:    logger,
	}, nil
}

// Send pushes one message to a device token. Web clients get a webpush
// notification block as well.
func (c *Client) Send(ctx context.Context, token string, title, body string, data map[string]string) error {
	if token == "" {
		return nil
	}

	message := &messaging.Message{
		Token: token,
		Notification: &messaging.Notification{
			Title: title,
			Body:  body,
		},
		Webpush: &messaging.WebpushConfig{
			Notification: &messaging.WebpushNotification{
				Title: title,
				Body:  body,
			},
		},
		Data: data,
	}
	if data["priority"] == "CRITICAL" || data["priority"] == "HIGH" {
		message.Android = &messaging.AndroidConfig{Priority: "high"}
	}

	_, err := c.msgClient.Send(ctx, message)
	if err != nil {
		if messaging.IsUnregistered(err) {
			c.logger.Debug("fcm token no longer registered", zap.Error(err))
		} else {
			c.logger.Error("failed to send fcm message", zap.Error(err))
		}
		return err
	}
	return nil
}
