package engine

// ExtCallHandler performs an ext_call synchronously on the host side.
// args is a copy; the handler may keep it.
type ExtCallHandler func(command string, args []string)

// WithExtCallHandler registers the ext_call handler at construction.
func WithExtCallHandler(h ExtCallHandler) Option {
	return func(in *Interpreter) {
		in.handler = h
	}
}

// RegisterHandler sets the ext_call handler, replacing any previous one.
// With a handler, Step runs ext_calls inline instead of suspending.
func (in *Interpreter) RegisterHandler(h ExtCallHandler) {
	in.handler = h
}

// ClearHandler removes the ext_call handler. Later ext_calls suspend.
func (in *Interpreter) ClearHandler() {
	in.handler = nil
}

// HasHandler reports whether an ext_call handler is registered.
func (in *Interpreter) HasHandler() bool {
	return in.handler != nil
}

// Resume advances past the ext_call the interpreter is suspended on and
// returns that event. Valid only in StatusSuspended.
func (in *Interpreter) Resume() (StepResult, error) {
	if in.st.status != StatusSuspended {
		return StepResult{}, newStateError(opResume, in.st.cursor,
			"resume requires suspended status, got %s", in.st.status)
	}

	ev := in.script.Events[in.st.cursor]
	next := in.st.clone()
	next.advance(len(in.script.Events))

	in.logger.Info("resumed after ext_call", "index", in.st.cursor, "event_type", ev.Kind())
	return in.commit(opResume, next, ev, false), nil
}
