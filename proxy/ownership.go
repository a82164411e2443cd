// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package proxy

import (
	"context"

	"github.com/bureau-foundation/partition/continuation"
	"github.com/bureau-foundation/partition/domain"
	"github.com/bureau-foundation/partition/rref"
)

// CallMove forwards a call that takes ownership of arg. Once the
// liveness check passes, arg is re-tagged to the callee. On success
// the returned reference is re-tagged to the calling domain. On an
// operational error arg is handed back to the caller. If the callee
// crashes, arg stays with the callee and is released when the
// callee's shared data is freed.
func CallMove[I domain.Basic, R rref.Ref](ctx context.Context, p *Proxy[I], method string, arg rref.Ref, fn func(context.Context, I) (R, error)) (R, error) {
	caller := continuation.Caller(ctx)
	return Call(ctx, p, method, func(ctx context.Context, impl I) (R, error) {
		arg.MoveTo(p.id)
		result, err := fn(ctx, impl)
		if err != nil {
			arg.MoveTo(caller)
			return result, err
		}
		if result.Allocation() != nil {
			result.MoveTo(caller)
		}
		return result, nil
	})
}

// CallMoveN is CallMove for methods that also return a count.
func CallMoveN[I domain.Basic, R rref.Ref](ctx context.Context, p *Proxy[I], method string, arg rref.Ref, fn func(context.Context, I) (R, int, error)) (R, int, error) {
	var count int
	result, err := CallMove(ctx, p, method, arg, func(ctx context.Context, impl I) (R, error) {
		var (
			ref R
			err error
		)
		ref, count, err = fn(ctx, impl)
		return ref, err
	})
	if err != nil {
		return result, 0, err
	}
	return result, count, nil
}

// CallLend forwards a call that borrows refs for its duration. The
// borrows are taken after the liveness check and released when the
// callee returns, including when it panics.
func CallLend[I domain.Basic, R any](ctx context.Context, p *Proxy[I], method string, refs []rref.Ref, fn func(context.Context, I) (R, error)) (R, error) {
	return Call(ctx, p, method, func(ctx context.Context, impl I) (R, error) {
		release, err := rref.Lend(refs...)
		if err != nil {
			var zero R
			return zero, err
		}
		defer release()
		return fn(ctx, impl)
	})
}

// CallMoveAll forwards a call that takes ownership of arg and returns
// nothing but an error. arg stays with the callee on success.
func CallMoveAll[I domain.Basic](ctx context.Context, p *Proxy[I], method string, arg rref.Ref, fn func(context.Context, I) error) error {
	caller := continuation.Caller(ctx)
	return p.Invoke(ctx, method, func(ctx context.Context, impl I) error {
		arg.MoveTo(p.id)
		if err := fn(ctx, impl); err != nil {
			arg.MoveTo(caller)
			return err
		}
		return nil
	})
}
