package channel

import "context"

// Message is one outgoing digest.
// Recipient is advisory: a broadcast channel delivers to every subscriber of Target.
type Message struct {
	Target    string
	Recipient string
	Subject   string
	Body      string
}

// Publisher decouples the dispatcher from the concrete messaging service.
type Publisher interface {
	Publish(ctx context.Context, msg Message) (messageID string, err error)
}

// Subscriber is implemented by channels that manage their own subscriptions.
type Subscriber interface {
	Subscribe(ctx context.Context, target, address string) (subscriptionID string, err error)
}
