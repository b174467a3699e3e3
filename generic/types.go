/*
Package generic provides the core types of the leave lifecycle engine.

PURPOSE:

	This package holds the domain types shared by the lifecycle service, the
	stores and the HTTP layer: leave requests and their status machine, actors
	and their scope, day amounts, dates and date ranges, errors and the
	persistence interfaces. It has no knowledge of HTTP, SQL or scheduling.

KEY CONCEPTS IN THIS FILE (types.go):
  - Amount: A quantity of leave days (decimal, never float)
  - Identifiers: Type-safe IDs so employee and leave IDs cannot be mixed

DESIGN PRINCIPLES:
 1. Explicit actors: every operation receives the acting Actor, never globals
 2. Precision: day counts use decimal.Decimal
 3. Exactly-once: terminal transitions go through store compare-and-set

SEE ALSO:
  - request.go: LeaveRequest and the status machine
  - actor.go: Actor, Employee and authorization scope
  - store.go: Persistence interfaces
*/
package generic

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// AMOUNT - Quantity of leave
// =============================================================================

type Amount struct {
	Value decimal.Decimal
	Unit  Unit
}

type Unit string

const (
	UnitDays Unit = "days"
)

func NewAmount(value float64, unit Unit) Amount {
	return Amount{Value: decimal.NewFromFloat(value), Unit: unit}
}

func NewAmountFromInt(value int, unit Unit) Amount {
	return Amount{Value: decimal.NewFromInt(int64(value)), Unit: unit}
}

// Days is shorthand for an amount of whole days.
func Days(n int) Amount { return NewAmountFromInt(n, UnitDays) }

func (a Amount) Zero() Amount              { return Amount{Value: decimal.Zero, Unit: a.Unit} }
func (a Amount) Add(b Amount) Amount       { return Amount{Value: a.Value.Add(b.Value), Unit: a.Unit} }
func (a Amount) Sub(b Amount) Amount       { return Amount{Value: a.Value.Sub(b.Value), Unit: a.Unit} }
func (a Amount) IsNegative() bool          { return a.Value.IsNegative() }
func (a Amount) IsZero() bool              { return a.Value.IsZero() }
func (a Amount) Equal(b Amount) bool       { return a.Value.Equal(b.Value) }
func (a Amount) GreaterThan(b Amount) bool { return a.Value.GreaterThan(b.Value) }

// Float64 is used by the HTTP layer; decimals are kept internally.
func (a Amount) Float64() float64 {
	f, _ := a.Value.Float64()
	return f
}

// =============================================================================
// IDENTIFIERS
// =============================================================================

type EmployeeID string
type LeaveID string
type AuditID string

// SystemActorID is recorded as decided_by when the auto-approval window
// elapses without a decision.
const SystemActorID EmployeeID = "system"
