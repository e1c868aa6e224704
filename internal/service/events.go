package service

import "github.com/damoang/angple-collab/internal/domain"

// EventPublisher fans edit events out to watchers. Publish must not block
// the caller on slow subscribers.
type EventPublisher interface {
	Publish(event *domain.EditEvent)
}

type noopPublisher struct{}

func (noopPublisher) Publish(*domain.EditEvent) {}

func publisherOrNoop(p EventPublisher) EventPublisher {
	if p == nil {
		return noopPublisher{}
	}
	return p
}

