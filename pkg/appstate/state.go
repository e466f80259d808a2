// Package appstate holds the process-wide UI store of a browser session:
// the selected pricing period, the open modals and the testimonial carousel
// pause flag. State is an immutable value; every mutation goes through a
// named action function that returns a new State.
package appstate

import (
	"errors"
	"fmt"
	"maps"
	"slices"
)

var (
	ErrInvalidPeriod = errors.New("invalid pricing period")
	ErrInvalidModal  = errors.New("invalid modal")
)

type PricingPeriod string

const (
	PeriodMonthly PricingPeriod = "monthly"
	PeriodAnnual  PricingPeriod = "annual"
)

type Modal string

const (
	ModalSignup     Modal = "signup"
	ModalContact    Modal = "contact"
	ModalLogin      Modal = "login"
	ModalDemo       Modal = "demo"
	ModalGuide      Modal = "guide"
	ModalOnboarding Modal = "onboarding"
	ModalDocument   Modal = "document"
)

var knownModals = []Modal{
	ModalSignup, ModalContact, ModalLogin, ModalDemo, ModalGuide, ModalOnboarding, ModalDocument,
}

// ParseModal validates a modal name.
func ParseModal(name string) (Modal, error) {
	m := Modal(name)
	if !slices.Contains(knownModals, m) {
		return "", fmt.Errorf("%w: %q", ErrInvalidModal, name)
	}

	return m, nil
}

// State is the UI store value.
type State struct {
	Period             PricingPeriod    `json:"period"`
	OpenModals         []Modal          `json:"open_modals"`
	Attached           map[Modal]string `json:"attached,omitempty"`
	TestimonialsPaused bool             `json:"testimonials_paused"`
}

// Initial returns the state of a freshly loaded page.
func Initial() State {
	return State{
		Period:     PeriodMonthly,
		OpenModals: []Modal{},
	}
}

func (s State) clone() State {
	next := s
	next.OpenModals = slices.Clone(s.OpenModals)
	next.Attached = maps.Clone(s.Attached)

	if next.OpenModals == nil {
		next.OpenModals = []Modal{}
	}

	return next
}

// IsOpen reports whether the modal is currently shown.
func (s State) IsOpen(m Modal) bool {
	return slices.Contains(s.OpenModals, m)
}

// Attachment returns the flow or walkthrough bound to an open modal.
func (s State) Attachment(m Modal) (string, bool) {
	id, ok := s.Attached[m]

	return id, ok
}

func SelectPeriod(s State, period PricingPeriod) (State, error) {
	if period != PeriodMonthly && period != PeriodAnnual {
		return s, fmt.Errorf("%w: %q", ErrInvalidPeriod, period)
	}

	next := s.clone()
	next.Period = period

	return next, nil
}

// OpenModal shows a modal. Opening an already open modal is a no-op.
func OpenModal(s State, m Modal) (State, error) {
	if !slices.Contains(knownModals, m) {
		return s, fmt.Errorf("%w: %q", ErrInvalidModal, m)
	}

	next := s.clone()
	if !next.IsOpen(m) {
		next.OpenModals = append(next.OpenModals, m)
		slices.Sort(next.OpenModals)
	}

	return next, nil
}

// CloseModal hides a modal and detaches whatever was bound to it. The detached
// id is returned so the caller can tear the flow down.
func CloseModal(s State, m Modal) (State, string) {
	next := s.clone()
	next.OpenModals = slices.DeleteFunc(next.OpenModals, func(open Modal) bool { return open == m })

	detached := next.Attached[m]
	delete(next.Attached, m)

	return next, detached
}

// AttachFlow binds a flow or walkthrough id to an open modal.
func AttachFlow(s State, m Modal, id string) State {
	next := s.clone()
	if next.Attached == nil {
		next.Attached = make(map[Modal]string)
	}

	next.Attached[m] = id

	return next
}

func ToggleTestimonials(s State) State {
	next := s.clone()
	next.TestimonialsPaused = !next.TestimonialsPaused

	return next
}
