// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package session

import "sync/atomic"

// outlet is a bounded channel with a single producer that never blocks:
// when the buffer is full the oldest value is discarded.
type outlet[T any] struct {
	ch      chan T
	dropped atomic.Uint64
}

func newOutlet[T any](size int) *outlet[T] {
	return &outlet[T]{ch: make(chan T, size)}
}

func (o *outlet[T]) push(v T) {
	for {
		select {
		case o.ch <- v:
			return
		default:
		}
		select {
		case <-o.ch:
			o.dropped.Add(1)
		default:
		}
	}
}
