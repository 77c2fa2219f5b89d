package domain

import "time"

const shippingLeadTime = 3 * 24 * time.Hour

var statusGraph = map[OrderStatus][]OrderStatus{
	StatusPending:   {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusShipped, StatusCancelled},
	StatusShipped:   {StatusDelivered},
}

var paymentGraph = map[PaymentStatus][]PaymentStatus{
	PaymentPending:   {PaymentCompleted, PaymentFailed},
	PaymentCompleted: {PaymentRefunded},
}

func CanTransitionStatus(from, to OrderStatus) bool {
	for _, s := range statusGraph[from] {
		if s == to {
			return true
		}
	}
	return false
}

func CanTransitionPayment(from, to PaymentStatus) bool {
	for _, s := range paymentGraph[from] {
		if s == to {
			return true
		}
	}
	return false
}

func (s OrderStatus) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusShipped, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentPending, PaymentCompleted, PaymentFailed, PaymentRefunded:
		return true
	}
	return false
}

// Transition describes a combined change of the order and payment dimensions.
// An empty field leaves that dimension untouched, so payment capture and
// confirmation land in a single write.
type Transition struct {
	Status  OrderStatus
	Payment PaymentStatus
}

var ConfirmPaid = Transition{Status: StatusConfirmed, Payment: PaymentCompleted}

// Apply validates t against the transition graphs and mutates o only when the
// whole change is legal. Requesting the state the order is already in is a
// no-op for that dimension. The returned flag is false when nothing changed.
func (o *Order) Apply(t Transition, now time.Time) (bool, error) {
	nextStatus := o.Status
	if t.Status != "" && t.Status != o.Status {
		if !CanTransitionStatus(o.Status, t.Status) {
			return false, &IllegalTransitionError{Field: "status", From: string(o.Status), To: string(t.Status)}
		}
		nextStatus = t.Status
	}

	nextPayment := o.PaymentStatus
	if t.Payment != "" && t.Payment != o.PaymentStatus {
		if !CanTransitionPayment(o.PaymentStatus, t.Payment) {
			return false, &IllegalTransitionError{Field: "payment", From: string(o.PaymentStatus), To: string(t.Payment)}
		}
		nextPayment = t.Payment
	}

	if nextPayment == PaymentCompleted && nextStatus == StatusPending {
		return false, &IllegalTransitionError{Field: "payment", From: string(o.PaymentStatus), To: string(nextPayment)}
	}

	if nextStatus == o.Status && nextPayment == o.PaymentStatus {
		return false, nil
	}

	if nextStatus == StatusShipped && o.Status != StatusShipped {
		eta := now.Add(shippingLeadTime)
		o.EstimatedDelivery = &eta
	}
	o.Status = nextStatus
	o.PaymentStatus = nextPayment
	o.UpdatedAt = now
	return true, nil
}

// IsConfirmedAndPaid reports whether a payment confirmation would be a no-op.
func (o *Order) IsConfirmedAndPaid() bool {
	return o.PaymentStatus == PaymentCompleted && o.Status != StatusPending && o.Status != StatusCancelled
}
