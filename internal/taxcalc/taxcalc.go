// Package taxcalc computes what to charge so the shop nets a target amount
// after marketplace fees, and formats the quote for staff.
package taxcalc

import (
	"errors"
	"fmt"
	"math"
)

// Marketplace fee schedule: a percentage cut plus a flat per-transaction fee.
const (
	FeePercent = 0.05
	FeeFlat    = 0.30
)

// ErrInvalidAmount means the target amount is zero, negative, or not finite.
var ErrInvalidAmount = errors.New("taxcalc: amount must be a positive number")

// Quote is the result of a fee calculation.
type Quote struct {
	Net   float64 // what the shop keeps
	Gross float64 // what the customer pays
	Fee   float64 // what the marketplace takes
}

// ForNet returns the price to list so the shop nets amount after fees.
// Gross is rounded up to the cent; the rounding slack lands on the net side.
func ForNet(amount float64) (Quote, error) {
	if err := validate(amount); err != nil {
		return Quote{}, err
	}
	gross := roundUpCent((amount + FeeFlat) / (1 - FeePercent))
	fee := roundCent(gross*FeePercent + FeeFlat)
	return Quote{Net: roundCent(gross - fee), Gross: gross, Fee: fee}, nil
}

// ForGross returns what the shop nets from a listed price.
func ForGross(amount float64) (Quote, error) {
	if err := validate(amount); err != nil {
		return Quote{}, err
	}
	fee := roundCent(amount*FeePercent + FeeFlat)
	return Quote{Net: roundCent(amount - fee), Gross: amount, Fee: fee}, nil
}

// Format renders a quote for a staff reply.
func Format(q Quote, currency string) string {
	return fmt.Sprintf("List at **%.2f %s**: marketplace takes %.2f, you keep %.2f",
		q.Gross, currency, q.Fee, q.Net)
}

func validate(amount float64) error {
	if amount <= 0 || math.IsNaN(amount) || math.IsInf(amount, 0) {
		return ErrInvalidAmount
	}
	return nil
}

func roundCent(v float64) float64 {
	return math.Round(v*100) / 100
}

func roundUpCent(v float64) float64 {
	return math.Ceil(v*100) / 100
}
