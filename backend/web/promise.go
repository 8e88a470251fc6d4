//go:build js && wasm

package web

import (
	"context"
	"errors"
	"syscall/js"
)

// ErrRejected is returned when a JS promise rejects.
var ErrRejected = errors.New("web: promise rejected")

// await waits for p to settle without blocking the JS event loop: the
// calling goroutine parks while the callbacks run on the loop. A done ctx
// abandons the wait; the promise still settles in the background.
func await(ctx context.Context, p js.Value) (js.Value, error) {
	if p.Type() != js.TypeObject || p.Get("then").Type() != js.TypeFunction {
		return p, nil
	}

	type settled struct {
		v  js.Value
		ok bool
	}
	ch := make(chan settled, 1)

	onResolve := js.FuncOf(func(this js.Value, args []js.Value) any {
		ch <- settled{v: arg0(args), ok: true}
		return nil
	})
	onReject := js.FuncOf(func(this js.Value, args []js.Value) any {
		ch <- settled{v: arg0(args)}
		return nil
	})
	p.Call("then", onResolve, onReject)

	select {
	case s := <-ch:
		onResolve.Release()
		onReject.Release()
		if !s.ok {
			return js.Undefined(), errors.Join(ErrRejected, jsError(s.v))
		}
		return s.v, nil
	case <-ctx.Done():
		// The callbacks stay registered until the promise settles.
		go func() {
			<-ch
			onResolve.Release()
			onReject.Release()
		}()
		return js.Undefined(), ctx.Err()
	}
}

func arg0(args []js.Value) js.Value {
	if len(args) == 0 {
		return js.Undefined()
	}
	return args[0]
}

func jsError(v js.Value) error {
	if v.Type() == js.TypeObject && v.Get("message").Type() == js.TypeString {
		return errors.New(v.Get("message").String())
	}
	if v.Type() == js.TypeString {
		return errors.New(v.String())
	}
	return errors.New("unknown JS error")
}
