// Package store encodes classification records as ordered byte keys for
// a modernc.org/kv audit database (spec §4.K), generalizing the
// teacher's BLAST-record key scheme (SubjectAccVer/SubjectLeft/...) from
// a genomic-coordinate key to a (pass, rank, SCO, gene) classification
// key.
package store

import (
	"bytes"
	"encoding/binary"
	"math"
)

var order = binary.BigEndian

// Record is one audited classification event: a single match of gene
// against sco in rank, during pass, carrying the bitscore and HMM-
// matched length that produced it.
type Record struct {
	Pass     int8
	Rank     int8
	SCOID    string
	GeneID   string
	BitScore float64
	Length   int64
}

// MarshalKey returns a byte key ordering records by pass, then rank,
// then SCO id, then gene id, then descending bitscore, matching the
// teacher's GroupByQueryOrderSubjectLeft convention of grouping by
// identity fields first and breaking ties by score.
func MarshalKey(r Record) []byte {
	var (
		buf bytes.Buffer
		b   [8]byte
	)
	buf.WriteByte(byte(r.Pass))
	buf.WriteByte(byte(r.Rank))

	order.PutUint64(b[:], uint64(len(r.SCOID)))
	buf.Write(b[:])
	buf.WriteString(r.SCOID)

	order.PutUint64(b[:], uint64(len(r.GeneID)))
	buf.Write(b[:])
	buf.WriteString(r.GeneID)

	// Higher bitscores sort first: store the bit pattern of its
	// complement so ascending byte order is descending score order.
	order.PutUint64(b[:], ^math.Float64bits(r.BitScore))
	buf.Write(b[:])

	order.PutUint64(b[:], uint64(r.Length))
	buf.Write(b[:])
	return buf.Bytes()
}

// UnmarshalKey reverses MarshalKey.
func UnmarshalKey(data []byte) Record {
	var r Record
	r.Pass = int8(data[0])
	r.Rank = int8(data[1])
	data = data[2:]

	n64 := binary.Size(uint64(0))
	n := order.Uint64(data[:n64])
	data = data[n64:]
	r.SCOID = string(data[:n])
	data = data[n:]

	n = order.Uint64(data[:n64])
	data = data[n64:]
	r.GeneID = string(data[:n])
	data = data[n:]

	r.BitScore = math.Float64frombits(^order.Uint64(data[:n64]))
	data = data[n64:]

	r.Length = int64(order.Uint64(data[:n64]))
	return r
}

// ByPassRankSCOGene is a kv compare function ordering the audit store by
// pass, rank, SCO id, gene id and descending bitscore — the order
// MarshalKey's byte layout already encodes, so it simply compares the
// raw byte strings once equality is ruled out.
func ByPassRankSCOGene(x, y []byte) int {
	if bytes.Equal(x, y) {
		return 0
	}
	return bytes.Compare(x, y)
}

// MarshalInt returns a slice encoding n as a big-endian int64. The
// orchestrator's audit store writes classification records only and does
// not call it.
func MarshalInt(n int) []byte {
	var buf [8]byte
	order.PutUint64(buf[:], uint64(n))
	return buf[:]
}
