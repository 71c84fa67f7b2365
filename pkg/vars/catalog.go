package vars

import (
	"errors"
	"fmt"
	"strconv"
)

// VarName is an interned protocol variable name.
type VarName string

// The protocol variable catalog. Names are the exact strings used on the
// wire; they are compared case-sensitively.
const (
	// Pow: power state. 0=off, 1=on.
	Pow VarName = "Pow"

	// Mod: mode of operation. 0=auto, 1=cool, 2=dry, 3=fan, 4=heat.
	Mod VarName = "Mod"

	// SetTem: set temperature, in the unit selected by TemUn.
	SetTem VarName = "SetTem"

	// TemUn: temperature unit. 0=Celsius, 1=Fahrenheit.
	TemUn VarName = "TemUn"

	// WdSpd: fan speed. 0=auto, 1=low .. 5=high (2 and 4 are absent on
	// 3-speed units).
	WdSpd VarName = "WdSpd"

	// Air: fresh air valve state (not available on all units). 0/1.
	Air VarName = "Air"

	// Blo: "Blow"/"X-Fan", keeps the fan running for a while after
	// shutdown. Only usable in Dry and Cool mode. 0/1.
	Blo VarName = "Blo"

	// Health: "cold plasma" anion generator mode. 0/1.
	Health VarName = "Health"

	// SwhSlp: sleep mode. 0/1.
	SwhSlp VarName = "SwhSlp"

	// Lig: display and indicator light. 0/1.
	Lig VarName = "Lig"

	// SwingLfRig: horizontal blade swing. 0=default, 1=full swing,
	// 2-6 fixed positions leftmost to rightmost.
	SwingLfRig VarName = "SwingLfRig"

	// SwUpDn: vertical blade swing. 0=default, 1=full range, 2-6 fixed
	// positions, 7-11 regional swing.
	SwUpDn VarName = "SwUpDn"

	// Quiet: quiet mode. Not available in Dry and Fan mode. 0/1.
	Quiet VarName = "Quiet"

	// Tur: turbo, maximum fan speed. Only in Dry and Cool mode. 0/1.
	Tur VarName = "Tur"

	// StHt: 8 degree heat protection. 0/1.
	StHt VarName = "StHt"

	// HeatCoolType: vendor flag of unknown meaning.
	HeatCoolType VarName = "HeatCoolType"

	// TemRec: disambiguates between two Fahrenheit set points.
	TemRec VarName = "TemRec"

	// SvSt: energy saving mode. 0/1.
	SvSt VarName = "SvSt"

	// TemSen: internal temperature sensor, read only. Value is Celsius
	// with a +40 offset.
	TemSen VarName = "TemSen"

	// Time: device clock, "2006-01-02 15:04:05" format. Must be used in
	// its own exchange.
	Time VarName = "time"
)

// Kind is a variable's value domain.
type Kind uint8

const (
	// KindBool accepts 0 or 1.
	KindBool Kind = iota

	// KindUint8 accepts a small unsigned integer.
	KindUint8

	// KindString accepts a free-form string.
	KindString
)

// catalog maps every known variable to its value domain.
var catalog = map[VarName]Kind{
	Pow:          KindBool,
	Mod:          KindUint8,
	SetTem:       KindUint8,
	TemUn:        KindBool,
	WdSpd:        KindUint8,
	Air:          KindBool,
	Blo:          KindBool,
	Health:       KindBool,
	SwhSlp:       KindBool,
	Lig:          KindBool,
	SwingLfRig:   KindUint8,
	SwUpDn:       KindUint8,
	Quiet:        KindBool,
	Tur:          KindBool,
	StHt:         KindBool,
	HeatCoolType: KindString,
	TemRec:       KindUint8,
	SvSt:         KindBool,
	TemSen:       KindUint8,
	Time:         KindString,
}

// All lists the full catalog in wire order.
var All = []VarName{
	Pow, Mod, SetTem, TemUn, WdSpd, Air, Blo, Health, SwhSlp, Lig,
	SwingLfRig, SwUpDn, Quiet, Tur, StHt, HeatCoolType, TemRec, SvSt,
	TemSen, Time,
}

// Catalog errors.
var (
	ErrInvalidVar = errors.New("unknown variable")
)

// ValueError reports a literal outside a variable's declared domain.
type ValueError struct {
	Name    VarName
	Literal string
}

// Error implements the error interface.
func (e *ValueError) Error() string {
	return fmt.Sprintf("invalid value for %s: %q", e.Name, e.Literal)
}

// Name interns s, reporting whether it is a catalog variable.
func Name(s string) (VarName, bool) {
	n := VarName(s)
	_, ok := catalog[n]
	return n, ok
}

// KindOf returns the value domain of a catalog variable.
func KindOf(name VarName) (Kind, bool) {
	k, ok := catalog[name]
	return k, ok
}

// ParseValue validates a user-supplied literal against the variable's
// domain and converts it to its wire representation.
func ParseValue(name VarName, literal string) (any, error) {
	kind, ok := catalog[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrInvalidVar, name)
	}

	switch kind {
	case KindBool:
		w, err := strconv.ParseUint(literal, 10, 8)
		if err != nil || w > 1 {
			return nil, &ValueError{Name: name, Literal: literal}
		}
		return int(w), nil
	case KindUint8:
		w, err := strconv.ParseUint(literal, 10, 8)
		if err != nil {
			return nil, &ValueError{Name: name, Literal: literal}
		}
		return int(w), nil
	default:
		return literal, nil
	}
}
