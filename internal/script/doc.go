// Package script defines the immutable script model consumed by the interpreter.
//
// This package contains type definitions, wire encoding, and content hashing.
// It imports nothing internal. Parsing and validation of untrusted input live
// in the compiler package so that every constructed Script has already passed
// validation.
//
// Key design constraints:
//   - Event and Cond are closed sets (private marker methods)
//   - All JSON tags use snake_case; events are tagged by "type", conds by "kind"
//   - Optional scalars are pointers: nil means "not present"
//   - A Script must not be modified after construction; interpreters share it
package script
