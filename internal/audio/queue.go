/*
 * This file is part of Loqa (https://github.com/loqalabs/loqa).
 * Copyright (C) 2025 Loqa Labs
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU Affero General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
 * GNU Affero General Public License for more details.
 *
 * You should have received a copy of the GNU Affero General Public License
 * along with this program. If not, see <https://www.gnu.org/licenses/>.
 */

package audio

import (
	"sync"
	"sync/atomic"
)

// Queue is a bounded hand-off between the capture callback and the consumer loop.
// Push never blocks: when the queue is full the incoming block is dropped and counted.
type Queue struct {
	ch        chan Block
	dropped   atomic.Uint64
	closeOnce sync.Once
}

// NewQueue creates a queue holding at most size blocks
func NewQueue(size int) *Queue {
	if size <= 0 {
		size = 1
	}
	return &Queue{ch: make(chan Block, size)}
}

// Push enqueues a block and reports whether it was accepted
func (q *Queue) Push(b Block) bool {
	select {
	case q.ch <- b:
		return true
	default:
		q.dropped.Add(1)
		return false
	}
}

// Blocks returns the receive side for the consumer loop
func (q *Queue) Blocks() <-chan Block {
	return q.ch
}

// Drain discards every queued block and returns how many were removed
func (q *Queue) Drain() int {
	n := 0
	for {
		select {
		case _, ok := <-q.ch:
			if !ok {
				return n
			}
			n++
		default:
			return n
		}
	}
}

// Len returns the number of queued blocks
func (q *Queue) Len() int {
	return len(q.ch)
}

// Dropped returns how many blocks were rejected because the queue was full
func (q *Queue) Dropped() uint64 {
	return q.dropped.Load()
}

// Close closes the receive side. The producer must have stopped pushing.
func (q *Queue) Close() {
	q.closeOnce.Do(func() { close(q.ch) })
}
