package engine

import "context"

// CallbackEngine adapts user-supplied callbacks into an Engine, letting
// callers define a custom engine (spec.md §4.1 "Custom engines may be
// defined with user-supplied callbacks") without declaring a named type.
// Any nil callback reports KindInvalid if invoked.
type CallbackEngine struct {
	SetFunc    func(ctx context.Context, flavor, scope, key string, value any) error
	ReadFunc   func(ctx context.Context, flavor, scope, key string, target any) (bool, error)
	RemoveFunc func(ctx context.Context, flavor, scope, key string) (bool, error)
	ClearFunc  func(ctx context.Context, scope, flavor string) error
}

func (c *CallbackEngine) Set(ctx context.Context, flavor, scope, key string, value any) error {
	if c.SetFunc == nil {
		return NewError(KindInvalid, errNotImplemented("Set"))
	}
	return c.SetFunc(ctx, flavor, scope, key, value)
}

func (c *CallbackEngine) Read(ctx context.Context, flavor, scope, key string, target any) (bool, error) {
	if c.ReadFunc == nil {
		return false, NewError(KindInvalid, errNotImplemented("Read"))
	}
	return c.ReadFunc(ctx, flavor, scope, key, target)
}

func (c *CallbackEngine) Remove(ctx context.Context, flavor, scope, key string) (bool, error) {
	if c.RemoveFunc == nil {
		return false, NewError(KindInvalid, errNotImplemented("Remove"))
	}
	return c.RemoveFunc(ctx, flavor, scope, key)
}

func (c *CallbackEngine) Clear(ctx context.Context, scope, flavor string) error {
	if c.ClearFunc == nil {
		return NewError(KindInvalid, errNotImplemented("Clear"))
	}
	return c.ClearFunc(ctx, scope, flavor)
}

func errNotImplemented(op string) error {
	return &notImplementedError{op: op}
}

type notImplementedError struct{ op string }

func (e *notImplementedError) Error() string {
	return "engine: " + e.op + " callback not provided"
}
