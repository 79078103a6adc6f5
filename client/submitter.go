package client

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
)

// Submission states. Exactly one is current at a time; the order request is
// sent only on the Confirming -> Sending transition, never when a pharmacy
// is merely selected.

type SubmitState interface{ submitState() }

// Idle means no pharmacy is selected.
type Idle struct{}

// Confirming means a pharmacy is selected and awaiting the user's explicit
// confirmation. Nothing has been sent yet.
type Confirming struct{ Pharmacy Pharmacy }

// Sending means the order request is in flight.
type Sending struct{ Pharmacy Pharmacy }

// Succeeded holds the created order.
type Succeeded struct{ Order Order }

// Failed holds the error; the selection is kept so the user can retry.
type Failed struct {
	Pharmacy Pharmacy
	Err      error
}

func (Idle) submitState()       {}
func (Confirming) submitState() {}
func (Sending) submitState()    {}
func (Succeeded) submitState()  {}
func (Failed) submitState()     {}

var (
	ErrNoSelection    = errors.New("no pharmacy selected")
	ErrSubmitInFlight = errors.New("an order request is already in flight")
	ErrAlreadyPlaced  = errors.New("the order has already been placed")
)

// OrderPlacer is the slice of Client that Submitter needs.
type OrderPlacer interface {
	PlaceOrder(ctx context.Context, req PlaceOrderRequest, idempotencyKey string) (*Order, error)
}

// Submitter walks one prescription through selection, confirmation, and
// order placement. The idempotency key is minted when a pharmacy is first
// selected and reused across retries, so a retry after an ambiguous failure
// cannot create a second order.
type Submitter struct {
	placer         OrderPlacer
	prescriptionID uuid.UUID

	mu    sync.Mutex
	state SubmitState
	key   string
}

func NewSubmitter(placer OrderPlacer, prescriptionID uuid.UUID) *Submitter {
	return &Submitter{
		placer:         placer,
		prescriptionID: prescriptionID,
		state:          Idle{},
	}
}

// State returns the current submission state.
func (s *Submitter) State() SubmitState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Select stages a pharmacy for confirmation. Allowed from Idle, Confirming
// (re-selection), and Failed.
func (s *Submitter) Select(p Pharmacy) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state.(type) {
	case Sending:
		return ErrSubmitInFlight
	case Succeeded:
		return ErrAlreadyPlaced
	}

	if s.key == "" {
		s.key = uuid.NewString()
	}
	s.state = Confirming{Pharmacy: p}
	return nil
}

// Dismiss drops the staged selection and returns to Idle. The idempotency
// key is kept: if the user re-selects and confirms, a retry of the same
// prescription still deduplicates server-side.
func (s *Submitter) Dismiss() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state.(type) {
	case Sending:
		return ErrSubmitInFlight
	case Succeeded:
		return ErrAlreadyPlaced
	}

	s.state = Idle{}
	return nil
}

// Confirm sends the order for the staged pharmacy. Only a Confirming or
// Failed state can be confirmed; this is the single place a request leaves
// the client.
func (s *Submitter) Confirm(ctx context.Context) (*Order, error) {
	s.mu.Lock()
	var pharmacy Pharmacy
	switch st := s.state.(type) {
	case Confirming:
		pharmacy = st.Pharmacy
	case Failed:
		pharmacy = st.Pharmacy
	case Sending:
		s.mu.Unlock()
		return nil, ErrSubmitInFlight
	case Succeeded:
		s.mu.Unlock()
		return nil, ErrAlreadyPlaced
	default:
		s.mu.Unlock()
		return nil, ErrNoSelection
	}
	key := s.key
	s.state = Sending{Pharmacy: pharmacy}
	s.mu.Unlock()

	order, err := s.placer.PlaceOrder(ctx, PlaceOrderRequest{
		PrescriptionID: s.prescriptionID,
		PharmacyID:     pharmacy.ID,
	}, key)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.state = Failed{Pharmacy: pharmacy, Err: err}
		return nil, err
	}
	s.state = Succeeded{Order: *order}
	return order, nil
}
