// Package pool implements a high-performance, type-safe object pooling system
// used throughout cqlbulk's streaming execution core. It provides generic
// memory reuse for the maps, slices, and buffers that would otherwise churn
// the garbage collector on the hot record/statement path.
//
// Architecture
//
// The pool package uses Go generics to provide type-safe pooling for any
// object type. It builds on sync.Pool but adds statistics tracking and
// size-bucketed buffer/arena allocation.
//
// Core Types:
//
//   - Pool[T]: generic pool implementation for any type T
//   - BufferPool: size-bucketed []byte pooling for connector I/O
//   - ArenaPool: bump allocator for per-window record arenas
//   - StringInternPool: interning for recurring field/resource names
//
// Usage
//
//	myPool := pool.New(
//		func() *MyType { return &MyType{} },
//		func(obj *MyType) { obj.Reset() },
//	)
//	obj := myPool.Get()
//	defer myPool.Put(obj)
//
// Global convenience pools (GetMap/PutMap, GetStringSlice/PutStringSlice,
// GetByteSlice/PutByteSlice) cover the most common allocation shapes without
// requiring callers to define their own pool.
package pool
