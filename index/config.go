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

package index

import (
	"errors"
	"fmt"
	"io"

	"sigs.k8s.io/yaml"

	"github.com/flowtable/incidx/agg"
	"github.com/flowtable/incidx/granularity"
)

// ErrUnknownAggregatorType is returned by LoadSchema when an aggregator
// entry names a type outside the reference set declarable from YAML.
var ErrUnknownAggregatorType = errors.New("index: unknown declarative aggregator type")

// yamlSchema is the on-disk shape LoadSchema decodes, using
// sigs.k8s.io/yaml the way the teacher decodes its own declarative config
// documents.
type yamlSchema struct {
	MinTimestamp int64            `json:"min_timestamp"`
	Granularity  string           `json:"granularity"`
	Offheap      bool             `json:"offheap"`
	Aggregators  []yamlAggregator `json:"aggregators"`
}

type yamlAggregator struct {
	Name   string `json:"name"`
	Type   string `json:"type"`
	Column string `json:"column"`
}

// LoadSchema decodes a YAML schema document describing an index's minimum
// timestamp, granularity, dictionary backend, and aggregator list into a
// Schema. Only the reference aggregator types shipped by the agg package
// (count, sum_float, min_float, max_float) can be named declaratively;
// callers wiring a custom Factory should build a Schema with Go literals
// instead.
func LoadSchema(r io.Reader) (Schema, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return Schema{}, fmt.Errorf("reading schema document: %w", err)
	}

	var doc yamlSchema
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return Schema{}, fmt.Errorf("parsing schema document: %w", err)
	}

	gran, ok := granularity.ByName(doc.Granularity)
	if !ok {
		return Schema{}, fmt.Errorf("unrecognized granularity %q", doc.Granularity)
	}

	schema := Schema{
		MinTimestamp: doc.MinTimestamp,
		Granularity:  gran,
		Offheap:      doc.Offheap,
	}

	for _, a := range doc.Aggregators {
		factory, err := referenceFactory(a)
		if err != nil {
			return Schema{}, err
		}
		schema.Aggs = append(schema.Aggs, AggDesc{Factory: factory, Size: factory.Size()})
		schema.Stride += factory.Size()
	}

	return schema, nil
}

func referenceFactory(a yamlAggregator) (agg.Factory, error) {
	switch a.Type {
	case "count":
		return agg.Count(a.Name), nil
	case "sum_float":
		return agg.SumFloat(a.Name, a.Column), nil
	case "min_float":
		return agg.MinFloat(a.Name, a.Column), nil
	case "max_float":
		return agg.MaxFloat(a.Name, a.Column), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAggregatorType, a.Type)
	}
}
