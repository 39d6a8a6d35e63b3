package wire

import (
	"encoding/binary"
	"unsafe"
)

// ElementType discriminates the packed-sample encoding a streaming port
// carries, per the streaming field table (raw ADC is int, current range
// is uint, current/voltage/power are float).
type ElementType uint8

const (
	ElementInt ElementType = iota
	ElementUint
	ElementFloat
)

// TimeMap is the linear (offset_counter, offset_time, counter_rate)
// relation a stream-signal header carries so a subscriber can convert
// sample counters to UTC without a separate lookup.
type TimeMap struct {
	OffsetCounter uint64
	OffsetTimeUTC uint64 // microseconds since epoch
	CounterRate   float64
}

var _ [24]byte = [unsafe.Sizeof(TimeMap{})]byte{}

func (tm TimeMap) Encode() [24]byte {
	var buf [24]byte
	binary.LittleEndian.PutUint64(buf[0:8], tm.OffsetCounter)
	binary.LittleEndian.PutUint64(buf[8:16], tm.OffsetTimeUTC)
	binary.LittleEndian.PutUint64(buf[16:24], doubleBitsToU64(tm.CounterRate))
	return buf
}

func DecodeTimeMap(buf [24]byte) TimeMap {
	return TimeMap{
		OffsetCounter: binary.LittleEndian.Uint64(buf[0:8]),
		OffsetTimeUTC: binary.LittleEndian.Uint64(buf[8:16]),
		CounterRate:   u64BitsToDouble(binary.LittleEndian.Uint64(buf[16:24])),
	}
}

// StreamSignalHeader is the fixed portion of an in-progress
// stream-signal message the ULDevice accumulates per port before
// flushing it to the broker; Data is appended separately by the caller
// since its length varies with ElementCount and ElementSizeBits.
type StreamSignalHeader struct {
	SampleID        uint64
	SampleRate      uint32
	DecimateFactor  uint32
	FieldID         uint8
	Index           uint8
	ElementType     ElementType
	ElementSizeBits uint8
	ElementCount    uint32
	TimeMap         TimeMap
}

const streamSignalHeaderSize = 8 + 4 + 4 + 1 + 1 + 1 + 1 + 4 + 24

var _ [streamSignalHeaderSize]byte = [unsafe.Sizeof(StreamSignalHeader{})]byte{}

// Encode writes h's fixed-size wire form.
func (h StreamSignalHeader) Encode() []byte {
	buf := make([]byte, streamSignalHeaderSize)
	binary.LittleEndian.PutUint64(buf[0:8], h.SampleID)
	binary.LittleEndian.PutUint32(buf[8:12], h.SampleRate)
	binary.LittleEndian.PutUint32(buf[12:16], h.DecimateFactor)
	buf[16] = h.FieldID
	buf[17] = h.Index
	buf[18] = byte(h.ElementType)
	buf[19] = h.ElementSizeBits
	binary.LittleEndian.PutUint32(buf[20:24], h.ElementCount)
	tmBytes := h.TimeMap.Encode()
	copy(buf[24:48], tmBytes[:])
	return buf
}

// DecodeStreamSignalHeader reads the fixed portion from the front of buf.
func DecodeStreamSignalHeader(buf []byte) StreamSignalHeader {
	var tm [24]byte
	copy(tm[:], buf[24:48])
	return StreamSignalHeader{
		SampleID:        binary.LittleEndian.Uint64(buf[0:8]),
		SampleRate:      binary.LittleEndian.Uint32(buf[8:12]),
		DecimateFactor:  binary.LittleEndian.Uint32(buf[12:16]),
		FieldID:         buf[16],
		Index:           buf[17],
		ElementType:     ElementType(buf[18]),
		ElementSizeBits: buf[19],
		ElementCount:    binary.LittleEndian.Uint32(buf[20:24]),
		TimeMap:         DecodeTimeMap(tm),
	}
}

// BytesForElementCount returns the payload size in bytes needed to hold
// n elements of the given bit width, rounding up to whole bytes.
func BytesForElementCount(n uint32, elementSizeBits uint8) int {
	bits := int(n) * int(elementSizeBits)
	return (bits + 7) / 8
}
