package watch

import (
	"fmt"
)

// SubscriberError reports a callback that panicked while a value was delivered to it.
// It never propagates past the Slot that caught it.
type SubscriberError struct {
	Recovered any
}

func (e *SubscriberError) Error() string {
	return fmt.Sprintf("subscriber callback failed: %v", e.Recovered)
}

// Unwrap returns the recovered value if it was an error.
func (e *SubscriberError) Unwrap() error {
	if err, ok := e.Recovered.(error); ok {
		return err
	}
	return nil
}

// Slot binds exactly one callback. Delivering a value through Fire can never
// panic past the slot, a failing callback is reported to the error handler instead.
type Slot[T any] struct {
	callback func(T)
	onError  func(error)
}

// NewSlot creates a slot for callback. Failures are passed to onError,
// a nil onError logs them with the package logger.
func NewSlot[T any](callback func(T), onError func(error)) *Slot[T] {
	if onError == nil {
		onError = func(err error) {
			Logger.Errorf("%v", err)
		}
	}
	return &Slot[T]{
		callback: callback,
		onError:  onError,
	}
}

// Fire invokes the callback with value. If ok is false there is no value
// to deliver and Fire does nothing. The result reports whether the callback
// was invoked and returned normally.
func (s *Slot[T]) Fire(value T, ok bool) (delivered bool) {
	if !ok || s.callback == nil {
		return false
	}

	defer func() {
		if r := recover(); r != nil {
			delivered = false
			s.onError(&SubscriberError{Recovered: r})
		}
	}()

	s.callback(value)
	return true
}
