// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package core

import (
	"math"
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/varint"
)

// MUS serializers for store-persisted records. Field order is part of the
// on-disk format: append new fields at the end, never reorder. Timestamps
// serialize as UnixMicro.

var (
	// IDMUS serializes document identifiers.
	IDMUS = idMUS{}
	// DocumentMUS serializes documents including metadata and vector.
	DocumentMUS = documentMUS{}
	// RunReportMUS serializes ingestion run reports.
	RunReportMUS = runReportMUS{}
)

type idMUS struct{}

func (idMUS) Marshal(id ID, bs []byte) int {
	return varint.Uint64.Marshal(uint64(id), bs)
}

func (idMUS) Unmarshal(bs []byte) (ID, int, error) {
	v, n, err := varint.Uint64.Unmarshal(bs)
	return ID(v), n, err
}

func (idMUS) Size(id ID) int {
	return varint.Uint64.Size(uint64(id))
}

type documentMUS struct{}

func (s documentMUS) Marshal(d Document, bs []byte) int {
	n := varint.Uint64.Marshal(uint64(d.ID), bs)
	n += ord.String.Marshal(d.ThreadID, bs[n:])
	n += ord.String.Marshal(d.Body, bs[n:])
	n += marshalMetadata(d.Metadata, bs[n:])
	n += varint.Int.Marshal(len(d.Vector), bs[n:])
	for _, f := range d.Vector {
		n += varint.Uint32.Marshal(math.Float32bits(f), bs[n:])
	}
	return n
}

func (s documentMUS) Unmarshal(bs []byte) (Document, int, error) {
	var d Document
	v, n, err := varint.Uint64.Unmarshal(bs)
	if err != nil {
		return d, n, err
	}
	d.ID = ID(v)
	var n1 int
	d.ThreadID, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return d, n, err
	}
	d.Body, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return d, n, err
	}
	d.Metadata, n1, err = unmarshalMetadata(bs[n:])
	n += n1
	if err != nil {
		return d, n, err
	}
	count, n1, err := varint.Int.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return d, n, err
	}
	if count > 0 {
		d.Vector = make([]float32, count)
		for i := 0; i < count; i++ {
			bits, n2, err := varint.Uint32.Unmarshal(bs[n:])
			n += n2
			if err != nil {
				return d, n, err
			}
			d.Vector[i] = math.Float32frombits(bits)
		}
	}
	return d, n, nil
}

func (s documentMUS) Size(d Document) int {
	size := varint.Uint64.Size(uint64(d.ID))
	size += ord.String.Size(d.ThreadID)
	size += ord.String.Size(d.Body)
	size += sizeMetadata(d.Metadata)
	size += varint.Int.Size(len(d.Vector))
	for _, f := range d.Vector {
		size += varint.Uint32.Size(math.Float32bits(f))
	}
	return size
}

func marshalMetadata(m DocumentMetadata, bs []byte) int {
	n := varint.Int.Marshal(len(m.Participants), bs)
	for _, p := range m.Participants {
		n += ord.String.Marshal(p, bs[n:])
	}
	n += varint.Int.Marshal(m.MessageCount, bs[n:])
	n += varint.Int64.Marshal(m.StartTime.UnixMicro(), bs[n:])
	n += varint.Int64.Marshal(m.EndTime.UnixMicro(), bs[n:])
	n += ord.String.Marshal(m.SourceChat, bs[n:])
	n += varint.Int.Marshal(m.WordCount, bs[n:])
	n += ord.Bool.Marshal(m.HasQuestions, bs[n:])
	n += ord.Bool.Marshal(m.HasLinks, bs[n:])
	n += ord.Bool.Marshal(m.HasService, bs[n:])
	return n
}

func unmarshalMetadata(bs []byte) (DocumentMetadata, int, error) {
	var m DocumentMetadata
	count, n, err := varint.Int.Unmarshal(bs)
	if err != nil {
		return m, n, err
	}
	if count > 0 {
		m.Participants = make([]string, count)
		for i := 0; i < count; i++ {
			p, n1, err := ord.String.Unmarshal(bs[n:])
			n += n1
			if err != nil {
				return m, n, err
			}
			m.Participants[i] = p
		}
	}
	var n1 int
	m.MessageCount, n1, err = varint.Int.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return m, n, err
	}
	start, n1, err := varint.Int64.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return m, n, err
	}
	m.StartTime = time.UnixMicro(start).UTC()
	end, n1, err := varint.Int64.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return m, n, err
	}
	m.EndTime = time.UnixMicro(end).UTC()
	m.SourceChat, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return m, n, err
	}
	m.WordCount, n1, err = varint.Int.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return m, n, err
	}
	m.HasQuestions, n1, err = ord.Bool.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return m, n, err
	}
	m.HasLinks, n1, err = ord.Bool.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return m, n, err
	}
	m.HasService, n1, err = ord.Bool.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return m, n, err
	}
	return m, n, nil
}

func sizeMetadata(m DocumentMetadata) int {
	size := varint.Int.Size(len(m.Participants))
	for _, p := range m.Participants {
		size += ord.String.Size(p)
	}
	size += varint.Int.Size(m.MessageCount)
	size += varint.Int64.Size(m.StartTime.UnixMicro())
	size += varint.Int64.Size(m.EndTime.UnixMicro())
	size += ord.String.Size(m.SourceChat)
	size += varint.Int.Size(m.WordCount)
	size += ord.Bool.Size(m.HasQuestions)
	size += ord.Bool.Size(m.HasLinks)
	size += ord.Bool.Size(m.HasService)
	return size
}

type runReportMUS struct{}

func (s runReportMUS) Marshal(r RunReport, bs []byte) int {
	n := ord.String.Marshal(r.RunID, bs)
	n += ord.String.Marshal(r.Mode, bs[n:])
	n += ord.String.Marshal(r.SourceTag, bs[n:])
	n += varint.Int64.Marshal(r.StartedAt.UnixMicro(), bs[n:])
	n += varint.Int64.Marshal(r.FinishedAt.UnixMicro(), bs[n:])
	n += varint.Int.Marshal(r.MessagesTotal, bs[n:])
	n += varint.Int.Marshal(r.MessagesDropped, bs[n:])
	n += varint.Int.Marshal(r.ThreadsDetected, bs[n:])
	n += varint.Int.Marshal(r.DocumentsEligible, bs[n:])
	n += varint.Int.Marshal(r.DocumentsSkipped, bs[n:])
	n += varint.Int.Marshal(r.Attempted, bs[n:])
	n += varint.Int.Marshal(r.Succeeded, bs[n:])
	n += varint.Int.Marshal(r.Failed, bs[n:])
	n += varint.Int.Marshal(r.OrderingWarnings, bs[n:])
	n += varint.Int.Marshal(len(r.Errors), bs[n:])
	for _, e := range r.Errors {
		n += varint.Uint64.Marshal(uint64(e.DocumentID), bs[n:])
		n += ord.String.Marshal(e.Reason, bs[n:])
	}
	return n
}

func (s runReportMUS) Unmarshal(bs []byte) (RunReport, int, error) {
	var r RunReport
	var n, n1 int
	var err error
	r.RunID, n, err = ord.String.Unmarshal(bs)
	if err != nil {
		return r, n, err
	}
	r.Mode, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return r, n, err
	}
	r.SourceTag, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return r, n, err
	}
	started, n1, err := varint.Int64.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return r, n, err
	}
	r.StartedAt = time.UnixMicro(started).UTC()
	finished, n1, err := varint.Int64.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return r, n, err
	}
	r.FinishedAt = time.UnixMicro(finished).UTC()
	for _, dst := range []*int{
		&r.MessagesTotal, &r.MessagesDropped, &r.ThreadsDetected,
		&r.DocumentsEligible, &r.DocumentsSkipped,
		&r.Attempted, &r.Succeeded, &r.Failed, &r.OrderingWarnings,
	} {
		v, n2, err := varint.Int.Unmarshal(bs[n:])
		n += n2
		if err != nil {
			return r, n, err
		}
		*dst = v
	}
	count, n1, err := varint.Int.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return r, n, err
	}
	if count > 0 {
		r.Errors = make([]IngestError, count)
		for i := 0; i < count; i++ {
			id, n2, err := varint.Uint64.Unmarshal(bs[n:])
			n += n2
			if err != nil {
				return r, n, err
			}
			reason, n3, err := ord.String.Unmarshal(bs[n:])
			n += n3
			if err != nil {
				return r, n, err
			}
			r.Errors[i] = IngestError{DocumentID: ID(id), Reason: reason}
		}
	}
	return r, n, nil
}

func (s runReportMUS) Size(r RunReport) int {
	size := ord.String.Size(r.RunID)
	size += ord.String.Size(r.Mode)
	size += ord.String.Size(r.SourceTag)
	size += varint.Int64.Size(r.StartedAt.UnixMicro())
	size += varint.Int64.Size(r.FinishedAt.UnixMicro())
	for _, v := range []int{
		r.MessagesTotal, r.MessagesDropped, r.ThreadsDetected,
		r.DocumentsEligible, r.DocumentsSkipped,
		r.Attempted, r.Succeeded, r.Failed, r.OrderingWarnings,
	} {
		size += varint.Int.Size(v)
	}
	size += varint.Int.Size(len(r.Errors))
	for _, e := range r.Errors {
		size += varint.Uint64.Size(uint64(e.DocumentID))
		size += ord.String.Size(e.Reason)
	}
	return size
}
