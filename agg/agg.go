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

// Package agg defines the aggregator binding contract: how an index's
// fixed-width arena slot is interpreted and updated for a single metric,
// and a handful of reference aggregators that exercise the contract.
//
// The Init/Aggregate/Get/Close shape on a (buf []byte, offset int) region
// is grounded on vm.BufferAggregator in the teacher repo
// (vm/aggregate.go, vm/interpagg.go): a region of a larger shared buffer
// addressed by offset, not an owned allocation.
package agg

import (
	"errors"
	"reflect"
)

// ErrUnknownType is returned by LastFactory.Factorize at construction time
// when its TypeName has no Serde registered for it. The other reference
// factories (Count, SumFloat, MinFloat, MaxFloat) do not consult a
// SerdeRegistry and never return it.
var ErrUnknownType = errors.New("agg: no serde registered for aggregator type")

// DimSeq is the per-row view of one dimension's values handed to a column
// selector closure. Cardinality estimation is deliberately unsupported:
// any caller needing it operates outside this package's scope.
type DimSeq interface {
	Len() int
	At(i int) string
	LookupName(name string) (int, bool)
	LookupID(id int) (string, bool)
}

// Row is the input row contract a Factory's selectors and a Buffer's
// Aggregate call observe.
type Row interface {
	Timestamp() int64
	DimNames() []string
	DimValues(name string) []string
	Float(name string) (float64, bool)
	Raw(name string) (any, bool)
}

// ColumnSelectors is supplied by the index to Factory.Factorize so a
// Factory can bind closures over whichever columns it aggregates, without
// the index needing to know aggregator-specific column names up front.
type ColumnSelectors struct {
	Timestamp func(Row) int64
	Float     func(name string) func(Row) (float64, bool)
	Object    func(name string) func(Row) (any, bool)
	Dimension func(name string) func(Row) DimSeq
}

// Buffer is the BufferAggregator contract: a stateless view over a region
// of shared arena memory, addressed by (buf, offset). Aggregate takes the
// row explicitly rather than reading it from thread-local state; see
// ThreadScoped for an adapter to the alternative style.
type Buffer interface {
	Init(buf []byte, offset int)
	Aggregate(buf []byte, offset int, row Row)
	Get(buf []byte, offset int) any
	Close() error
}

// Factory constructs a Buffer for one metric column.
type Factory interface {
	Name() string
	TypeName() string
	Size() int
	Factorize(sel ColumnSelectors) (Buffer, error)
}

// Serde extracts a non-float aggregator input column's value from a row,
// for aggregator types the index itself has no built-in notion of.
type Serde interface {
	Extract(row Row, column string) (any, bool)
	ExtractedType() reflect.Type
}

// SerdeRegistry resolves a Serde by aggregator TypeName.
type SerdeRegistry struct {
	byType map[string]Serde
}

// NewSerdeRegistry returns an empty SerdeRegistry.
func NewSerdeRegistry() *SerdeRegistry {
	return &SerdeRegistry{byType: make(map[string]Serde)}
}

// Register adds a Serde for the given aggregator TypeName.
func (r *SerdeRegistry) Register(typeName string, s Serde) {
	r.byType[typeName] = s
}

// For returns the Serde registered for typeName, if any.
func (r *SerdeRegistry) For(typeName string) (Serde, bool) {
	s, ok := r.byType[typeName]
	return s, ok
}

// ThreadScoped adapts a Buffer whose Aggregate signature was written
// assuming a single ambient "current row" (the style the teacher's
// original column-selector closures used) to this package's
// explicit-row Buffer contract. Init/Aggregate/Get/Close still run
// against the row passed to the outer Aggregate call; ThreadScoped simply
// republishes it as a field for the duration of that one call, which is
// safe because the ingestion path already serializes Aggregate per
// aggregator via a per-metric mutex.
type ThreadScoped struct {
	Inner interface {
		Init(buf []byte, offset int)
		Aggregate(buf []byte, offset int, current func() Row)
		Get(buf []byte, offset int) any
		Close() error
	}
	current Row
}

func (t *ThreadScoped) Init(buf []byte, offset int) { t.Inner.Init(buf, offset) }

func (t *ThreadScoped) Aggregate(buf []byte, offset int, row Row) {
	t.current = row
	t.Inner.Aggregate(buf, offset, func() Row { return t.current })
	t.current = nil
}

func (t *ThreadScoped) Get(buf []byte, offset int) any { return t.Inner.Get(buf, offset) }

func (t *ThreadScoped) Close() error { return t.Inner.Close() }
