// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package mmc5983

import (
	"context"
	"runtime"
	"time"
)

// Delay waits at least ns nanoseconds. Implementations return early with the
// context's error when ctx is done.
type Delay interface {
	DelayNs(ctx context.Context, ns uint32) error
}

// SleepDelay waits on a timer.
type SleepDelay struct{}

func (SleepDelay) DelayNs(ctx context.Context, ns uint32) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t := time.NewTimer(time.Duration(ns))
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// DelayFunc adapts a plain blocking wait, e.g. time.Sleep wrapped or a
// busy loop on a microcontroller.
type DelayFunc func(ns uint32)

func (f DelayFunc) DelayNs(ctx context.Context, ns uint32) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f(ns)
	return nil
}

// runner schedules the register sequences of the engine. step is called
// before every bus transaction, poll between two status reads and wait for
// every settling delay.
type runner interface {
	step() error
	poll() error
	wait(d Delay, ns uint32) error
}

// blocking runs a sequence to completion on the calling goroutine. Status
// polling spins without backoff.
type blocking struct{}

func (blocking) step() error { return nil }
func (blocking) poll() error { return nil }

func (blocking) wait(d Delay, ns uint32) error {
	return d.DelayNs(context.Background(), ns)
}

// cooperative yields at every suspension point and stops at the first one
// reached after ctx is done. A transaction already on the bus is never
// interrupted.
type cooperative struct {
	ctx context.Context
}

func (c cooperative) step() error { return c.ctx.Err() }

func (c cooperative) poll() error {
	runtime.Gosched()
	return c.ctx.Err()
}

func (c cooperative) wait(d Delay, ns uint32) error {
	if err := c.ctx.Err(); err != nil {
		return err
	}
	return d.DelayNs(c.ctx, ns)
}
