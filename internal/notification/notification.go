package notification

import (
	"context"
	"fmt"
	"log/slog"
)

const (
	// KindPostClaimed is sent to a post owner when someone claims the post.
	KindPostClaimed = "post_claimed"
)

// Message describes a notification payload.
type Message struct {
	Kind        string
	Destination string
	Body        string
}

// PostClaimed builds the message telling the owner at phoneNumber that the
// post titled title was claimed.
func PostClaimed(phoneNumber, title string) Message {
	return Message{
		Kind:        KindPostClaimed,
		Destination: phoneNumber,
		Body:        fmt.Sprintf("Your post %q was claimed on ISO.", title),
	}
}

// Notifier delivers notifications to downstream systems.
type Notifier interface {
	Send(ctx context.Context, message Message) error
}

// LoggerNotifier writes notifications to the logger instead of delivering them.
type LoggerNotifier struct {
	logger *slog.Logger
}

// NewLoggerNotifier constructs a logging notifier.
func NewLoggerNotifier(logger *slog.Logger) *LoggerNotifier {
	return &LoggerNotifier{logger: logger}
}

// Send writes the message to the structured logger.
func (n *LoggerNotifier) Send(ctx context.Context, message Message) error {
	if n == nil || n.logger == nil {
		return nil
	}
	n.logger.InfoContext(ctx, "notification",
		slog.String("kind", message.Kind),
		slog.String("destination", message.Destination),
		slog.String("body", message.Body))
	return nil
}
