// Package meeting создаёт внешние видеовстречи для записей.
package meeting

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"
)

var ErrDisabled = errors.New("meeting provisioning is disabled")

// Meeting — дескриптор созданной встречи.
type Meeting struct {
	ID       string
	StartURL string
	JoinURL  string
}

// Provisioner создаёт встречу с темой, началом и длительностью в минутах.
type Provisioner interface {
	CreateMeeting(ctx context.Context, topic string, start time.Time, durationMin int) (Meeting, error)
}

// Topic формирует тему встречи по именам участников.
func Topic(clientName, expertName string) string {
	return fmt.Sprintf("Consultation: %s - Expert %s", clientName, expertName)
}

// Mock возвращает фиктивные ссылки, не обращаясь к внешнему сервису.
type Mock struct {
	seq atomic.Int64
}

func NewMock() *Mock {
	return &Mock{}
}

func (m *Mock) CreateMeeting(ctx context.Context, topic string, start time.Time, durationMin int) (Meeting, error) {
	n := m.seq.Add(1)
	id := fmt.Sprintf("mock_%d_%d", start.Unix(), n)
	return Meeting{
		ID:       id,
		StartURL: "https://zoom.us/s/" + id,
		JoinURL:  "https://zoom.us/j/" + id,
	}, nil
}

// Disabled всегда отказывает; вызывающий код продолжает без встречи.
type Disabled struct{}

func (Disabled) CreateMeeting(ctx context.Context, topic string, start time.Time, durationMin int) (Meeting, error) {
	return Meeting{}, ErrDisabled
}
