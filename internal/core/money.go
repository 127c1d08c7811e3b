// Package core provides the financial entities and money handling utilities.
//
// This file contains the monetary codec: amounts live in memory as decimal
// currency units and cross the storage boundary as integer minor units.
package core

import "github.com/shopspring/decimal"

// ToCents converts a currency amount to minor units, rounding half away from zero.
//
// The conversion goes through a decimal so binary float noise never leaks into
// the stored value:
//
//	ToCents(12.34)      -> 1234
//	ToCents(0.1 + 0.2)  -> 30
//	ToCents(-19.995)    -> -2000
func ToCents(amount float64) int64 {
	return decimal.NewFromFloat(amount).Round(2).Shift(2).IntPart()
}

// FromCents converts minor units back to a currency amount.
func FromCents(cents int64) float64 {
	return decimal.New(cents, -2).InexactFloat64()
}

// RoundAmount normalizes an amount to two decimals.
func RoundAmount(amount float64) float64 {
	return FromCents(ToCents(amount))
}
