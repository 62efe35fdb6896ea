package corelib

import (
	"fmt"

	"github.com/saymow/simpl-sub000/pkg/compiler"
	"github.com/saymow/simpl-sub000/pkg/value"
	"github.com/saymow/simpl-sub000/pkg/vm"
)

// extensionSource mirrors core-inc.h: a snippet of the language itself,
// compiled and run once at bootstrap, that adds the handful of built-in
// methods natives can't implement because they need to call back into
// user code (a callback argument). It reopens Array and Object under
// placeholder names instead of their real ones — a bare `class Array {
// ... }` here would compile to a fresh OP_CLASS and, via OP_DEFINE_GLOBAL,
// silently replace the native-backed Array global losing every method
// installed in array.go. loadExtensions below merges these placeholders'
// methods into the real classes afterwards and discards the placeholders.
const extensionSource = `
class __ArrayExtensions {
  map(callback) {
    var result = Array.new();
    for (var i = 0; i < this.length(); i += 1) result.push(callback(this.take(i)));
    return result;
  }

  filter(callback) {
    var result = Array.new();
    for (var i = 0; i < this.length(); i += 1) {
      var item = this.take(i);
      if (callback(item)) result.push(item);
    }
    return result;
  }

  forEach(callback) {
    for (var i = 0; i < this.length(); i += 1) callback(this.take(i));
  }

  reduce(callback) {
    var accumulator = this.take(0);
    for (var i = 1; i < this.length(); i += 1) accumulator = callback(accumulator, this.take(i));
    return accumulator;
  }

  reduce(callback, initial) {
    var accumulator = initial;
    for (var i = 0; i < this.length(); i += 1) accumulator = callback(accumulator, this.take(i));
    return accumulator;
  }

  find(callback) {
    for (var i = 0; i < this.length(); i += 1) {
      var item = this.take(i);
      if (callback(item)) return item;
    }
    return nil;
  }

  findIndex(callback) {
    for (var i = 0; i < this.length(); i += 1) {
      if (callback(this.take(i))) return i;
    }
    return -1;
  }

  some(callback) {
    for (var i = 0; i < this.length(); i += 1) {
      if (callback(this.take(i))) return true;
    }
    return false;
  }

  every(callback) {
    for (var i = 0; i < this.length(); i += 1) {
      if (!callback(this.take(i))) return false;
    }
    return true;
  }

  sortBy(compare) {
    for (var i = 1; i < this.length(); i += 1) {
      var key = this[i];
      var j = i - 1;
      while (j >= 0 and compare(this[j], key) > 0) {
        this[j + 1] = this[j];
        j -= 1;
      }
      this[j + 1] = key;
    }
    return this;
  }
}

class __ObjectExtensions {
  entries() {
    return Object.entries(this);
  }
}
`

// loadExtensions compiles and runs extensionSource, then grafts its
// placeholder classes' methods onto the real Array/Object classes and
// removes the placeholders from the global namespace so they never
// surface as user-visible identifiers.
func loadExtensions(v *vm.VM) error {
	fn, err := compiler.Compile(extensionSource, "<corelib>")
	if err != nil {
		return fmt.Errorf("compiling extensions: %w", err)
	}
	if err := v.Interpret(fn); err != nil {
		return fmt.Errorf("running extensions: %w", err)
	}

	graft(v, "__ArrayExtensions", v.Class("Array"))
	graft(v, "__ObjectExtensions", v.Class("Object"))

	return nil
}

func graft(v *vm.VM, placeholderName string, target *value.ObjClass) {
	name := v.InternString(placeholderName)
	placeholder, ok := v.Globals.Get(name)
	if !ok {
		return
	}
	target.Methods.AddAll(placeholder.AsObj().AsClass().Methods)
	v.Globals.Delete(name)
}
