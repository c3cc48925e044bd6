package digestcodec

import (
	"encoding/binary"
	"math"
)

type Writer interface {
	Write(p []byte) (n int, err error)
}

func BoolByte(v bool) byte {
	if v {
		return 1
	}
	return 0
}

func WriteU64(w Writer, tmp *[8]byte, v uint64) {
	binary.LittleEndian.PutUint64(tmp[:], v)
	w.Write(tmp[:])
}

func WriteI64(w Writer, tmp *[8]byte, v int64) { WriteU64(w, tmp, uint64(v)) }

// WriteF64 writes the IEEE bits, so equal values always digest equally.
func WriteF64(w Writer, tmp *[8]byte, v float64) { WriteU64(w, tmp, math.Float64bits(v)) }

// WriteString is length prefixed so adjacent strings cannot collide.
func WriteString(w Writer, tmp *[8]byte, s string) {
	WriteU64(w, tmp, uint64(len(s)))
	w.Write([]byte(s))
}

func WriteBool(w Writer, v bool) { w.Write([]byte{BoolByte(v)}) }
