// Package booking описывает жизненный цикл записи на консультацию.
package booking

import (
	"errors"

	"github.com/mindcare/booking-core/internal/model"
)

var (
	ErrAlreadyInState    = errors.New("appointment is already in this state")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrWrongParty        = errors.New("this party cannot set the status")
	ErrUnknownStatus     = errors.New("unknown appointment status")
)

// Party — сторона записи, от имени которой меняется статус.
type Party int

const (
	PartyNone Party = iota
	PartyExpert
	PartyClient
)

func (p Party) String() string {
	switch p {
	case PartyExpert:
		return "expert"
	case PartyClient:
		return "client"
	default:
		return "none"
	}
}

// transitions — допустимые переходы статусов.
var transitions = map[model.AppointmentStatus][]model.AppointmentStatus{
	model.AppointmentStatusPending: {
		model.AppointmentStatusConfirmed,
		model.AppointmentStatusCancelled,
	},
	model.AppointmentStatusWaitingApproval: {
		model.AppointmentStatusConfirmed,
		model.AppointmentStatusCancelled,
	},
	model.AppointmentStatusConfirmed: {
		model.AppointmentStatusCancelRequested,
		model.AppointmentStatusCompleted,
	},
	model.AppointmentStatusCancelRequested: {
		model.AppointmentStatusCancelled,
		model.AppointmentStatusConfirmed,
	},
}

// owners — кто вправе выставить целевой статус.
var owners = map[model.AppointmentStatus]Party{
	model.AppointmentStatusConfirmed:       PartyExpert,
	model.AppointmentStatusCancelled:       PartyExpert,
	model.AppointmentStatusCompleted:       PartyExpert,
	model.AppointmentStatusCancelRequested: PartyClient,
}

// Statuses — все статусы в порядке жизненного цикла.
func Statuses() []model.AppointmentStatus {
	return []model.AppointmentStatus{
		model.AppointmentStatusPending,
		model.AppointmentStatusWaitingApproval,
		model.AppointmentStatusConfirmed,
		model.AppointmentStatusCancelRequested,
		model.AppointmentStatusCancelled,
		model.AppointmentStatusCompleted,
	}
}

// ParseStatus проверяет, что строка — известный статус.
func ParseStatus(s string) (model.AppointmentStatus, error) {
	for _, st := range Statuses() {
		if string(st) == s {
			return st, nil
		}
	}
	return "", ErrUnknownStatus
}

// Allowed сообщает, есть ли переход current → next в таблице.
func Allowed(current, next model.AppointmentStatus) bool {
	for _, st := range transitions[current] {
		if st == next {
			return true
		}
	}
	return false
}

// Transition проверяет смену статуса current → next стороной party.
// Порядок проверок: повтор текущего статуса, таблица переходов, сторона.
func Transition(current, next model.AppointmentStatus, party Party) error {
	if current == next {
		return ErrAlreadyInState
	}
	if !Allowed(current, next) {
		return ErrInvalidTransition
	}
	if owners[next] != party {
		return ErrWrongParty
	}
	return nil
}

// Effects — побочные эффекты входа в статус.
type Effects struct {
	// Значение флага is_confirmed после перехода, nil — не меняется.
	Confirmed *bool
	// Нужно создать встречу, если её ещё нет.
	ProvisionMeeting bool
}

// EffectsOf возвращает эффекты входа в статус next.
func EffectsOf(next model.AppointmentStatus) Effects {
	yes, no := true, false
	switch next {
	case model.AppointmentStatusConfirmed:
		return Effects{Confirmed: &yes, ProvisionMeeting: true}
	case model.AppointmentStatusCancelled:
		return Effects{Confirmed: &no}
	default:
		return Effects{}
	}
}

// IsActive — запись занимает слот эксперта.
func IsActive(st model.AppointmentStatus) bool {
	return st != model.AppointmentStatusCancelled
}
