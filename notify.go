package identity

import (
	"context"
	"fmt"
)

type noopNotifier struct{}

func (noopNotifier) SendEmail(context.Context, string, string, string) error { return nil }
func (noopNotifier) SendSMS(context.Context, string, string) error           { return nil }

// NoopNotifier discards every message. Useful in tests and for hosts that
// wire delivery elsewhere.
func NoopNotifier() Notifier {
	return noopNotifier{}
}

// ConsoleNotifier writes messages to stdout, for local development.
type ConsoleNotifier struct{}

func (ConsoleNotifier) SendEmail(_ context.Context, address, subject, body string) error {
	fmt.Println("====== SENDING EMAIL NOTIFICATION =======")
	fmt.Printf("to: %s\n", address)
	fmt.Printf("subject: %s\n", subject)
	fmt.Printf("body: %s\n", body)
	return nil
}

func (ConsoleNotifier) SendSMS(_ context.Context, number, text string) error {
	fmt.Println("====== SENDING SMS NOTIFICATION =======")
	fmt.Printf("to: %s\n", number)
	fmt.Printf("text: %s\n", text)
	return nil
}

func normalizeNotifier(n Notifier) Notifier {
	if n == nil {
		return noopNotifier{}
	}
	return n
}
