package book

import (
	"hash/crc32"
	"math"
	"sync"

	"depth_go/internal/domain"
)

// DefaultChecksumDepth is the number of levels per side covered by the
// exchange checksum.
const DefaultChecksumDepth = 25

var bufPool = sync.Pool{
	New: func() interface{} {
		b := make([]byte, 0, 2048)
		return &b
	},
}

// Checksum renders the top depth levels as
//
//	bid0.price:bid0.qty:ask0.price:ask0.qty:bid1.price:...
//
// using the wire strings verbatim, and returns the CRC-32 (IEEE) of the
// result as a signed 32-bit value. When one side is shorter the missing
// entries are simply skipped.
func Checksum(bids, asks []domain.PriceLevel, depth int) int32 {
	bp := bufPool.Get().(*[]byte)
	buf := appendChecksumPayload((*bp)[:0], bids, asks, depth)
	sum := crc32.ChecksumIEEE(buf)
	*bp = buf
	bufPool.Put(bp)
	return int32(sum)
}

// ChecksumPayload returns the string the checksum is computed over.
func ChecksumPayload(bids, asks []domain.PriceLevel, depth int) string {
	return string(appendChecksumPayload(nil, bids, asks, depth))
}

func appendChecksumPayload(buf []byte, bids, asks []domain.PriceLevel, depth int) []byte {
	if depth <= 0 {
		depth = DefaultChecksumDepth
	}
	appendLevel := func(lvl domain.PriceLevel) {
		if len(buf) > 0 {
			buf = append(buf, ':')
		}
		buf = append(buf, lvl.RawPrice...)
		buf = append(buf, ':')
		buf = append(buf, lvl.RawQuantity...)
	}
	for i := 0; i < depth; i++ {
		if i < len(bids) {
			appendLevel(bids[i])
		}
		if i < len(asks) {
			appendLevel(asks[i])
		}
	}
	return buf
}

// MatchChecksum compares a computed checksum against the wire value. The
// wire value may be sent signed (int32) or unsigned (uint32); both encode
// the same 32 bits. Values outside either range never match.
func MatchChecksum(computed int32, wire int64) bool {
	if wire < math.MinInt32 || wire > math.MaxUint32 {
		return false
	}
	return computed == int32(uint32(wire))
}
