package value

// Table is an open-addressed, linear-probed string-keyed hash map. It
// backs globals, instance properties, class method tables, module
// exports and the VM-wide string-intern table.
//
// Grounded on the reference table.c: capacity is always a power of two,
// stored internally as capacity-1 so indexing is a bitwise AND instead of
// a modulo; the table grows whenever the load factor exceeds 0.75;
// deletions leave a tombstone (nil key, Bool(true) value) so probing
// sequences past a deleted slot remain intact.
type Table struct {
	count    int
	mask     int // capacity-1; mask == -1 means capacity 0 (no backing array yet)
	entries  []entry
}

type entry struct {
	key   *ObjString
	value Value
}

const tableMaxLoad = 0.75

// NewTable returns an empty table with no backing array allocated yet.
func NewTable() *Table {
	return &Table{mask: -1}
}

// Count returns the number of occupied slots: live entries plus the
// tombstones Delete has left since the last resize.
func (t *Table) Count() int { return t.count }

// findEntry returns the slot a key occupies or should occupy: the first
// matching entry, or the first empty/tombstone slot seen on the probe
// sequence (tombstones are reused so deletions don't grow probe chains
// forever).
func findEntry(entries []entry, mask int, key *ObjString) *entry {
	idx := int(key.Hash) & mask
	var tombstone *entry
	for {
		e := &entries[idx]
		if e.key == nil {
			if e.value.IsNil() {
				if tombstone != nil {
					return tombstone
				}
				return e
			}
			if tombstone == nil {
				tombstone = e
			}
		} else if e.key == key {
			return e
		}
		idx = (idx + 1) & mask
	}
}

func (t *Table) adjustCapacity(capacity int) {
	entries := make([]entry, capacity)
	for i := range entries {
		entries[i].value = Nil
	}
	mask := capacity - 1

	oldEntries := t.entries
	t.count = 0
	for i := range oldEntries {
		e := &oldEntries[i]
		if e.key == nil {
			continue
		}
		dest := findEntry(entries, mask, e.key)
		dest.key = e.key
		dest.value = e.value
		t.count++
	}

	t.entries = entries
	t.mask = mask
}

// Get looks up key, returning its value and whether it was present.
func (t *Table) Get(key *ObjString) (Value, bool) {
	if t.count == 0 {
		return Nil, false
	}
	e := findEntry(t.entries, t.mask, key)
	if e.key == nil {
		return Nil, false
	}
	return e.value, true
}

// Set inserts or overwrites key's value, returning true if key was absent
// (it lands in an empty slot or reuses a tombstone's slot) and false if
// an existing entry for key was overwritten.
func (t *Table) Set(key *ObjString, v Value) bool {
	if float64(t.count+1) > float64(t.mask+1)*tableMaxLoad {
		capacity := 8
		if t.mask >= 0 {
			capacity = (t.mask + 1) * 2
		}
		t.adjustCapacity(capacity)
	}

	e := findEntry(t.entries, t.mask, key)
	isNew := e.key == nil
	if isNew && e.value.IsNil() {
		t.count++
	}
	e.key = key
	e.value = v
	return isNew
}

// Delete removes key, leaving a tombstone behind so later probes for
// colliding keys still find them.
func (t *Table) Delete(key *ObjString) bool {
	if t.count == 0 {
		return false
	}
	e := findEntry(t.entries, t.mask, key)
	if e.key == nil {
		return false
	}
	e.key = nil
	e.value = Bool(true)
	return true
}

// FindString looks up an interned string by length, hash and bytes — the
// only way new string allocation consults the intern table, guaranteeing
// the canonical-pointer invariant.
func (t *Table) FindString(chars string, hash uint32) *ObjString {
	if t.count == 0 {
		return nil
	}
	idx := int(hash) & t.mask
	for {
		e := &t.entries[idx]
		if e.key == nil {
			if e.value.IsNil() {
				return nil
			}
		} else if len(e.key.Chars) == len(chars) && e.key.Hash == hash && e.key.Chars == chars {
			return e.key
		}
		idx = (idx + 1) & t.mask
	}
}

// RemoveWhiteUnreferenced implements the intern table's weak-reference
// sweep: any key whose mark bit is clear after a mark phase is dropped
// from the table so dead strings don't accumulate. Called by the
// collector's sweep phase, before objects are freed.
func (t *Table) RemoveWhiteUnreferenced() {
	for i := range t.entries {
		e := &t.entries[i]
		if e.key != nil && !e.key.Marked {
			t.Delete(e.key)
		}
	}
}

// Each calls fn for every live entry. Iteration order is the table's
// internal bucket order, not insertion order (matching the reference
// implementation, which never promised ordering either).
func (t *Table) Each(fn func(key *ObjString, v Value)) {
	for i := range t.entries {
		e := &t.entries[i]
		if e.key != nil {
			fn(e.key, e.value)
		}
	}
}

// AddAll copies every entry of src into t, used when a subclass inherits
// a superclass's method table.
func (t *Table) AddAll(src *Table) {
	src.Each(func(k *ObjString, v Value) {
		t.Set(k, v)
	})
}

// Mark marks every key and value reachable from this table, used by the
// collector's blacken step.
func (t *Table) Mark(markObj func(*Obj), markValue func(Value)) {
	for i := range t.entries {
		e := &t.entries[i]
		if e.key != nil {
			markObj(&e.key.Obj)
			markValue(e.value)
		}
	}
}
