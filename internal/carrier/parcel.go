// Package carrier is the EliteSpeed delivery gateway: parcel creation,
// tracking, and inbound webhook parsing.
package carrier

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// MaxDescriptionLen bounds the product description sent with a parcel.
const MaxDescriptionLen = 255

// Line is one product line shown on the parcel label.
type Line struct {
	Name     string
	Size     string
	Color    string
	Quantity int
}

// Parcel is the payload of a parcel creation request.
type Parcel struct {
	// Reference is the order number. The carrier uses it as idempotency key.
	Reference string
	Recipient string
	Phone     string
	City      string
	Address   string
	// Price is the cash-on-delivery amount.
	Price decimal.Decimal
	Lines []Line
	Note  string
}

// Quantity is the total number of units in the parcel.
func (p Parcel) Quantity() int {
	n := 0
	for _, l := range p.Lines {
		n += l.Quantity
	}
	return n
}

// Describe summarizes lines as "{qty}x {name} ({size} {color})", joined
// with commas and truncated to MaxDescriptionLen runes.
func Describe(lines []Line) string {
	parts := make([]string, 0, len(lines))
	for _, l := range lines {
		s := fmt.Sprintf("%dx %s", l.Quantity, l.Name)
		if variant := strings.TrimSpace(l.Size + " " + l.Color); variant != "" {
			s += " (" + variant + ")"
		}
		parts = append(parts, s)
	}
	return truncate(strings.Join(parts, ", "), MaxDescriptionLen)
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

// NormalizePhone rewrites international Moroccan prefixes (+212, 00212,
// 212) to the local leading 0 and drops separators.
func NormalizePhone(phone string) string {
	p := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '.', '(', ')', '\t':
			return -1
		}
		return r
	}, phone)

	switch {
	case strings.HasPrefix(p, "+212"):
		return "0" + strings.TrimPrefix(p[4:], "0")
	case strings.HasPrefix(p, "00212"):
		return "0" + strings.TrimPrefix(p[5:], "0")
	case strings.HasPrefix(p, "212") && len(p) == 12:
		return "0" + p[3:]
	}
	return p
}
