package order

import (
	"strings"

	"golang.org/x/text/cases"
)

// Status is an order lifecycle state.
type Status string

// Canonical statuses.
const (
	StatusPending    Status = "PENDING"
	StatusPrinted    Status = "PRINTED"
	StatusShipped    Status = "SHIPPED"
	StatusDelivering Status = "DELIVERING"
	StatusPaid       Status = "PAID"
	StatusReturned   Status = "RETURNED"
)

// Terminal reports whether s is PAID or RETURNED.
func (s Status) Terminal() bool {
	return s == StatusPaid || s == StatusReturned
}

// Canonical maps s to a canonical status. Manual overrides may store any
// text, which is then classified like a carrier status.
func (s Status) Canonical() (Status, bool) {
	switch s {
	case StatusPending, StatusPrinted, StatusShipped, StatusDelivering, StatusPaid, StatusReturned:
		return s, true
	}
	return Classify(string(s))
}

type rule struct {
	status   Status
	keywords []string
}

// rules are evaluated in order; a raw status often matches several buckets.
var rules = []rule{
	{StatusPaid, []string{"livré", "livrée", "delivered", "payé", "paid", "encaissé"}},
	{StatusReturned, []string{
		"retour", "return", "annul", "cancel", "refus", "injoignable", "unreachable",
		"pas de réponse", "adresse erronée", "adresse incorrecte", "wrong address",
	}},
	{StatusShipped, []string{"expédi", "shipped", "transit", "envoyé"}},
	{StatusDelivering, []string{
		"ramass", "pickup", "préparation", "preparing", "programm", "scheduled",
		"en cours de livraison", "out for delivery", "chez le livreur", "en attente", "reporté",
	}},
}

func init() {
	for i := range rules {
		for j, kw := range rules[i].keywords {
			rules[i].keywords[j] = fold(kw)
		}
	}
}

func fold(s string) string {
	return cases.Fold().String(strings.TrimSpace(s))
}

// Classify maps a raw carrier status to a canonical status by
// case-insensitive substring match. ok is false when nothing matches.
func Classify(raw string) (Status, bool) {
	s := fold(raw)
	if s == "" {
		return "", false
	}
	for _, r := range rules {
		for _, kw := range r.keywords {
			if strings.Contains(s, kw) {
				return r.status, true
			}
		}
	}
	return "", false
}
