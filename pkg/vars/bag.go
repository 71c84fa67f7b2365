package vars

import (
	"fmt"
	"sort"
)

// Slot holds one variable's staged state inside a Bag.
type Slot struct {
	// Value is the last known value, nil until populated.
	Value any

	// ReadPending is set until a network read populates the slot.
	ReadPending bool

	// WritePending is set by a local write and cleared when the device
	// confirms the value.
	WritePending bool
}

// Bag is a collection of variable slots staged for a read or write
// operation. The orchestrator mutates slot contents but never slot
// membership; the Bag is owned by the caller.
type Bag map[VarName]*Slot

// FromNames builds a read Bag with one pending-read slot per name.
func FromNames(names []string) (Bag, error) {
	bag := make(Bag, len(names))
	for _, s := range names {
		name, ok := Name(s)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrInvalidVar, s)
		}
		bag[name] = &Slot{ReadPending: true}
	}
	return bag, nil
}

// FromPairs builds a write Bag with one pending-write slot per pair.
// Each value literal is validated against the variable's domain.
func FromPairs(pairs map[string]string) (Bag, error) {
	bag := make(Bag, len(pairs))
	for s, literal := range pairs {
		name, ok := Name(s)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrInvalidVar, s)
		}
		value, err := ParseValue(name, literal)
		if err != nil {
			return nil, err
		}
		bag[name] = &Slot{Value: value, WritePending: true}
	}
	return bag, nil
}

// PendingReads lists the names awaiting a network read, sorted for a
// deterministic wire request.
func (b Bag) PendingReads() []string {
	var names []string
	for name, slot := range b {
		if slot.ReadPending {
			names = append(names, string(name))
		}
	}
	sort.Strings(names)
	return names
}

// PendingWrites lists the positionally paired names and values awaiting a
// network commit, sorted by name.
func (b Bag) PendingWrites() ([]string, []any) {
	var names []string
	for name, slot := range b {
		if slot.WritePending {
			names = append(names, string(name))
		}
	}
	sort.Strings(names)

	values := make([]any, len(names))
	for i, name := range names {
		values[i] = b[VarName(name)].Value
	}
	return names, values
}

// ApplyReadResult records a value returned by a status exchange and
// clears the slot's read flag. Names that are not in the catalog or not
// in the bag are ignored.
func (b Bag) ApplyReadResult(name string, value any) {
	n, ok := Name(name)
	if !ok {
		return
	}
	slot, ok := b[n]
	if !ok {
		return
	}
	slot.Value = value
	slot.ReadPending = false
}

// ApplyWriteResult records a value echoed by a command exchange and
// clears the slot's write flag. The device's value is authoritative.
func (b Bag) ApplyWriteResult(name string, value any) {
	n, ok := Name(name)
	if !ok {
		return
	}
	slot, ok := b[n]
	if !ok {
		return
	}
	slot.Value = value
	slot.WritePending = false
}

// ReportMap snapshots the bag as a plain name to value mapping.
func (b Bag) ReportMap() map[string]any {
	m := make(map[string]any, len(b))
	for name, slot := range b {
		m[string(name)] = slot.Value
	}
	return m
}
