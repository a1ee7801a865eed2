// Package engine implements the vnengine script interpreter.
//
// An Interpreter owns the execution state of one play session: the cursor,
// flags and variables, the projected visual state, the audio queue, the
// dialogue and choice histories, and the dialogue read set. A host drives it
// by calling CurrentEvent, Step, Choose, and Resume.
//
// ARCHITECTURE:
//
// Host-Driven State Machine:
// The interpreter never spawns goroutines and never blocks. Each call either
// commits a new state or returns an error and leaves the state untouched.
// Mutations are applied to a clone that is swapped in on success.
//
//	Running(i) --Step--> Running(i+1) | Running(target) | AwaitingChoice(i)
//	                   | Suspended(i) | Exhausted
//	AwaitingChoice(i) --Choose(k)--> Running(target_k)
//	Suspended(i) --Resume--> Running(i+1) | Exhausted
//
// Side Effects As Data:
// Audio cues, transitions, prefetch hints, and resource usage are returned
// to the host as values. The interpreter performs no I/O.
//
// Suspension:
// An ext_call with no registered handler moves the interpreter to Suspended.
// The host performs the command out of band and calls Resume. With a handler
// registered, Step invokes it synchronously and advances.
//
// Determinism:
// Given the same script and the same sequence of calls, an interpreter
// produces the same events, audio commands, and state digests. Nothing
// depends on wall-clock time, map iteration order, or randomness.
package engine
