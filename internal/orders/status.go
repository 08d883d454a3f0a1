package orders

import "fmt"

type Status string

const (
	StatusPlaced          Status = "PLACED"
	StatusPaid            Status = "PAID"
	StatusFulfilled       Status = "FULFILLED"
	StatusShipped         Status = "SHIPPED"
	StatusDelivered       Status = "DELIVERED"
	StatusReturnRequested Status = "RETURN_REQUESTED"
	StatusReturned        Status = "RETURNED"
	StatusCancelled       Status = "CANCELLED"
)

type Actor string

const (
	ActorCustomer       Actor = "customer"
	ActorPaymentWebhook Actor = "payment-webhook"
	ActorCarrierWebhook Actor = "carrier-webhook"
	ActorAdmin          Actor = "admin"
	ActorSystem         Actor = "system"
)

// SideEffect = efek ledger yang melekat pada transisi (dieksekusi lifecycle.Machine).
type SideEffect int

const (
	EffectNone    SideEffect = iota
	EffectRelease            // reservasi balik ke available
	EffectCommit             // reservasi jadi konsumsi permanen
	EffectRestock            // qty retur ditambahkan balik ke total
)

type rule struct {
	effect SideEffect
	actors map[Actor]bool
}

func by(actors ...Actor) map[Actor]bool {
	m := make(map[Actor]bool, len(actors))
	for _, a := range actors {
		m[a] = true
	}
	return m
}

// Tabel transisi legal. PAID->CANCELLED sengaja admin-only (override).
var transitions = map[Status]map[Status]rule{
	StatusPlaced: {
		StatusPaid:      {EffectNone, by(ActorPaymentWebhook, ActorAdmin)},
		StatusCancelled: {EffectRelease, by(ActorCustomer, ActorSystem, ActorAdmin)},
	},
	StatusPaid: {
		StatusCancelled: {EffectRelease, by(ActorAdmin)},
		StatusFulfilled: {EffectCommit, by(ActorSystem, ActorAdmin)},
	},
	StatusFulfilled: {
		StatusShipped: {EffectNone, by(ActorCarrierWebhook, ActorAdmin)},
	},
	StatusShipped: {
		StatusDelivered: {EffectNone, by(ActorCarrierWebhook, ActorAdmin)},
	},
	StatusDelivered: {
		StatusReturnRequested: {EffectNone, by(ActorCustomer, ActorAdmin)},
	},
	StatusReturnRequested: {
		StatusReturned:  {EffectRestock, by(ActorSystem, ActorAdmin)},
		StatusDelivered: {EffectNone, by(ActorSystem, ActorAdmin)},
	},
	StatusReturned:  {},
	StatusCancelled: {},
}

// TransitionError: transisi di luar tabel, atau actor tidak berhak.
type TransitionError struct {
	From Status
	To   Status
	By   Actor
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid transition %s -> %s by %s", e.From, e.To, e.By)
}

// CanTransition cek legalitas (state + actor). nil berarti boleh.
func CanTransition(from, to Status, a Actor) error {
	r, ok := transitions[from][to]
	if !ok || !r.actors[a] {
		return &TransitionError{From: from, To: to, By: a}
	}
	return nil
}

// Effect mengembalikan efek ledger untuk pasangan transisi legal.
func Effect(from, to Status) SideEffect {
	return transitions[from][to].effect
}

func IsTerminal(s Status) bool {
	return len(transitions[s]) == 0
}
