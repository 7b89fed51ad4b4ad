// Copyright (C) 2022 Sneller, Inc.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

package agg

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"

	"github.com/flowtable/incidx/internal/atomicext"
)

// These reference factories exist to exercise the Factory/Buffer contract
// end to end, not to be an exhaustive aggregator library; real deployments
// are expected to bring their own Factory implementations.

const float64Size = 8

// CountFactory produces a Buffer that counts rows, ignoring column values
// entirely.
type CountFactory struct {
	name string
}

// Count returns a Factory that counts the rows routed to its metric slot.
func Count(name string) *CountFactory {
	return &CountFactory{name: name}
}

func (f *CountFactory) Name() string     { return f.name }
func (f *CountFactory) TypeName() string { return "count" }
func (f *CountFactory) Size() int        { return float64Size }

func (f *CountFactory) Factorize(sel ColumnSelectors) (Buffer, error) {
	return &countBuffer{}, nil
}

type countBuffer struct{}

func (b *countBuffer) Init(buf []byte, offset int) {
	binary.LittleEndian.PutUint64(buf[offset:offset+float64Size], 0)
}

func (b *countBuffer) Aggregate(buf []byte, offset int, row Row) {
	p := floatPtr(buf, offset)
	atomicext.AddFloat64(p, 1)
}

func (b *countBuffer) Get(buf []byte, offset int) any {
	return readFloat(buf, offset)
}

func (b *countBuffer) Close() error { return nil }

// SumFloatFactory sums a named float column.
type SumFloatFactory struct {
	name   string
	column string
}

// SumFloat returns a Factory summing the named float column into metric name.
func SumFloat(name, column string) *SumFloatFactory {
	return &SumFloatFactory{name: name, column: column}
}

func (f *SumFloatFactory) Name() string     { return f.name }
func (f *SumFloatFactory) TypeName() string { return "float" }
func (f *SumFloatFactory) Size() int        { return float64Size }

func (f *SumFloatFactory) Factorize(sel ColumnSelectors) (Buffer, error) {
	return &sumFloatBuffer{get: sel.Float(f.column)}, nil
}

type sumFloatBuffer struct {
	get func(Row) (float64, bool)
}

func (b *sumFloatBuffer) Init(buf []byte, offset int) {
	binary.LittleEndian.PutUint64(buf[offset:offset+float64Size], 0)
}

func (b *sumFloatBuffer) Aggregate(buf []byte, offset int, row Row) {
	v, ok := b.get(row)
	if !ok {
		return
	}
	atomicext.AddFloat64(floatPtr(buf, offset), v)
}

func (b *sumFloatBuffer) Get(buf []byte, offset int) any {
	return readFloat(buf, offset)
}

func (b *sumFloatBuffer) Close() error { return nil }

// MinFloatFactory tracks the minimum observed value of a named float column.
type MinFloatFactory struct {
	name   string
	column string
}

// MinFloat returns a Factory tracking the minimum of the named float column.
func MinFloat(name, column string) *MinFloatFactory {
	return &MinFloatFactory{name: name, column: column}
}

func (f *MinFloatFactory) Name() string     { return f.name }
func (f *MinFloatFactory) TypeName() string { return "float" }
func (f *MinFloatFactory) Size() int        { return float64Size }

func (f *MinFloatFactory) Factorize(sel ColumnSelectors) (Buffer, error) {
	return &minFloatBuffer{get: sel.Float(f.column)}, nil
}

type minFloatBuffer struct {
	get func(Row) (float64, bool)
}

func (b *minFloatBuffer) Init(buf []byte, offset int) {
	binary.LittleEndian.PutUint64(buf[offset:offset+float64Size], math.Float64bits(math.Inf(1)))
}

func (b *minFloatBuffer) Aggregate(buf []byte, offset int, row Row) {
	v, ok := b.get(row)
	if !ok {
		return
	}
	atomicext.MinFloat64(floatPtr(buf, offset), v)
}

func (b *minFloatBuffer) Get(buf []byte, offset int) any {
	return readFloat(buf, offset)
}

func (b *minFloatBuffer) Close() error { return nil }

// MaxFloatFactory tracks the maximum observed value of a named float column.
type MaxFloatFactory struct {
	name   string
	column string
}

// MaxFloat returns a Factory tracking the maximum of the named float column.
func MaxFloat(name, column string) *MaxFloatFactory {
	return &MaxFloatFactory{name: name, column: column}
}

func (f *MaxFloatFactory) Name() string     { return f.name }
func (f *MaxFloatFactory) TypeName() string { return "float" }
func (f *MaxFloatFactory) Size() int        { return float64Size }

func (f *MaxFloatFactory) Factorize(sel ColumnSelectors) (Buffer, error) {
	return &maxFloatBuffer{get: sel.Float(f.column)}, nil
}

type maxFloatBuffer struct {
	get func(Row) (float64, bool)
}

func (b *maxFloatBuffer) Init(buf []byte, offset int) {
	binary.LittleEndian.PutUint64(buf[offset:offset+float64Size], math.Float64bits(math.Inf(-1)))
}

func (b *maxFloatBuffer) Aggregate(buf []byte, offset int, row Row) {
	v, ok := b.get(row)
	if !ok {
		return
	}
	atomicext.MaxFloat64(floatPtr(buf, offset), v)
}

func (b *maxFloatBuffer) Get(buf []byte, offset int) any {
	return readFloat(buf, offset)
}

func (b *maxFloatBuffer) Close() error { return nil }

func readFloat(buf []byte, offset int) float64 {
	bits := binary.LittleEndian.Uint64(buf[offset : offset+float64Size])
	return math.Float64frombits(bits)
}

// LastFactory keeps the most recently observed value of a non-float
// column, extracted via whatever Serde is registered for typeName. Unlike
// the float reference factories, its arena footprint is zero bytes: the
// observed value is arbitrary Go data (reflect.Type-described by the
// Serde), not a fixed-width numeric region, so it is kept in a side table
// keyed by arena offset instead.
type LastFactory struct {
	name     string
	column   string
	typeName string
	serdes   *SerdeRegistry
}

// Last returns a Factory that tracks the last-observed value of column,
// decoded by the Serde registered under typeName in serdes. Factorize
// fails with ErrUnknownType if serdes has no Serde registered for
// typeName, the fail-fast gate that lets index.New surface a
// misconfigured aggregator type before any row is ever ingested.
func Last(name, column, typeName string, serdes *SerdeRegistry) *LastFactory {
	return &LastFactory{name: name, column: column, typeName: typeName, serdes: serdes}
}

func (f *LastFactory) Name() string     { return f.name }
func (f *LastFactory) TypeName() string { return f.typeName }
func (f *LastFactory) Size() int        { return 0 }

func (f *LastFactory) Factorize(sel ColumnSelectors) (Buffer, error) {
	serde, ok := f.serdes.For(f.typeName)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, f.typeName)
	}
	column := f.column
	return &lastBuffer{
		values: make(map[int]any),
		get:    func(r Row) (any, bool) { return serde.Extract(r, column) },
	}, nil
}

type lastBuffer struct {
	mu     sync.Mutex
	values map[int]any
	get    func(Row) (any, bool)
}

func (b *lastBuffer) Init(buf []byte, offset int) {
	b.mu.Lock()
	delete(b.values, offset)
	b.mu.Unlock()
}

func (b *lastBuffer) Aggregate(buf []byte, offset int, row Row) {
	v, ok := b.get(row)
	if !ok {
		return
	}
	b.mu.Lock()
	b.values[offset] = v
	b.mu.Unlock()
}

func (b *lastBuffer) Get(buf []byte, offset int) any {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.values[offset]
}

func (b *lastBuffer) Close() error { return nil }
