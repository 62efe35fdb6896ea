package value

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValueEquality(t *testing.T) {
	assert.True(t, Equal(Nil, Nil))
	assert.False(t, Equal(Nil, Bool(false)))
	assert.True(t, Equal(Bool(true), Bool(true)))
	assert.False(t, Equal(Bool(true), Bool(false)))
	assert.True(t, Equal(Number(3), Number(3)))
	assert.False(t, Equal(Number(3), Number(4)))
}

func TestIsTruthy(t *testing.T) {
	assert.False(t, Nil.IsTruthy())
	assert.False(t, Bool(false).IsTruthy())
	assert.True(t, Bool(true).IsTruthy())
	assert.True(t, Number(0).IsTruthy())
}

func TestTableSetGetDelete(t *testing.T) {
	tbl := NewTable()
	foo := &ObjString{Chars: "foo", Hash: FNV1a("foo")}
	bar := &ObjString{Chars: "bar", Hash: FNV1a("bar")}

	isNew := tbl.Set(foo, Number(1))
	assert.True(t, isNew)
	isNew = tbl.Set(bar, Number(2))
	assert.True(t, isNew)
	isNew = tbl.Set(foo, Number(10))
	assert.False(t, isNew)

	v, ok := tbl.Get(foo)
	assert.True(t, ok)
	assert.Equal(t, 10.0, v.AsNumber())

	assert.True(t, tbl.Delete(bar))
	_, ok = tbl.Get(bar)
	assert.False(t, ok)

	// re-inserting after a tombstone must still find a slot
	isNew = tbl.Set(bar, Number(3))
	assert.True(t, isNew)
	v, ok = tbl.Get(bar)
	assert.True(t, ok)
	assert.Equal(t, 3.0, v.AsNumber())
}

func TestTableGrowsAndFindsAllKeys(t *testing.T) {
	tbl := NewTable()
	keys := make([]*ObjString, 64)
	for i := range keys {
		s := NumberToString(float64(i))
		keys[i] = &ObjString{Chars: s, Hash: FNV1a(s)}
		tbl.Set(keys[i], Number(float64(i)))
	}
	for i, k := range keys {
		v, ok := tbl.Get(k)
		assert.True(t, ok)
		assert.Equal(t, float64(i), v.AsNumber())
	}
}

func TestFindStringInterning(t *testing.T) {
	tbl := NewTable()
	s := &ObjString{Chars: "hello", Hash: FNV1a("hello")}
	tbl.Set(s, Bool(true))

	found := tbl.FindString("hello", FNV1a("hello"))
	assert.Same(t, s, found)

	assert.Nil(t, tbl.FindString("world", FNV1a("world")))
}
