package miniasn

// bitReader consumes a byte slice bit by bit, most significant bit first,
// and exposes a monotonic bits-consumed cursor.
type bitReader struct {
	data []byte
	pos  int // bits consumed
}

func newBitReader(data []byte) *bitReader {
	return &bitReader{data: data}
}

func (r *bitReader) BitsRead() int { return r.pos }

func (r *bitReader) remaining() int { return len(r.data)*8 - r.pos }

func (r *bitReader) readBit() (uint64, bool) {
	if r.remaining() < 1 {
		return 0, false
	}
	b := r.data[r.pos/8]
	bit := (b >> (7 - uint(r.pos%8))) & 1
	r.pos++
	return uint64(bit), true
}

// readBits reads up to 64 bits as an unsigned big-endian value.
func (r *bitReader) readBits(n int) (uint64, bool) {
	if n < 0 || n > 64 || r.remaining() < n {
		return 0, false
	}
	var v uint64
	for i := 0; i < n; i++ {
		bit, _ := r.readBit()
		v = v<<1 | bit
	}
	return v, true
}

// readBitField reads n bits into a byte slice, padding the final byte with
// zeros on the right.
func (r *bitReader) readBitField(n int) ([]byte, bool) {
	if n < 0 || r.remaining() < n {
		return nil, false
	}
	out := make([]byte, (n+7)/8)
	for i := 0; i < n; i++ {
		bit, _ := r.readBit()
		if bit != 0 {
			out[i/8] |= 1 << (7 - uint(i%8))
		}
	}
	return out, true
}

func (r *bitReader) readBytes(n int) ([]byte, bool) {
	return r.readBitField(n * 8)
}

// bitWriter builds a bit string most significant bit first.
type bitWriter struct {
	buf []byte
	n   int // bits written
}

func (w *bitWriter) BitsWritten() int { return w.n }

func (w *bitWriter) writeBit(bit uint64) {
	if w.n%8 == 0 {
		w.buf = append(w.buf, 0)
	}
	if bit != 0 {
		w.buf[w.n/8] |= 1 << (7 - uint(w.n%8))
	}
	w.n++
}

// writeBits writes the low n bits of v, big-endian.
func (w *bitWriter) writeBits(v uint64, n int) {
	for i := n - 1; i >= 0; i-- {
		w.writeBit((v >> uint(i)) & 1)
	}
}

// writeBitField writes the first n bits of b.
func (w *bitWriter) writeBitField(b []byte, n int) {
	for i := 0; i < n; i++ {
		bit := uint64(b[i/8]>>(7-uint(i%8))) & 1
		w.writeBit(bit)
	}
}

func (w *bitWriter) writeBytes(b []byte) {
	w.writeBitField(b, len(b)*8)
}

// Bytes returns the accumulated bits, final byte zero-padded.
func (w *bitWriter) Bytes() []byte {
	if w.buf == nil {
		return []byte{}
	}
	return w.buf
}

// bitsFor returns the number of bits needed to represent values 0..n-1.
func bitsFor(n int64) int {
	if n <= 1 {
		return 0
	}
	bits := 0
	for v := uint64(n - 1); v > 0; v >>= 1 {
		bits++
	}
	return bits
}
