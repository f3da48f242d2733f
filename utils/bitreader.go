package utils

// BitReader consumes a variable count of bits from a byte buffer,
// least-significant-bit first inside every byte. Reads freely cross
// byte boundaries. Reading past the end of the buffer yields zero
// bits instead of panicking, callers are expected to bounds-check
// the region before trusting decoded values.
type BitReader struct {
	data        []byte
	bitPosition uint32
}

func NewBitReader(data []byte, startByteOffset uint32) *BitReader {
	return &BitReader{data: data, bitPosition: startByteOffset * 8}
}

// BitPosition returns the amount of bits consumed so far,
// counted from the start of the buffer.
func (br *BitReader) BitPosition() uint32 {
	return br.bitPosition
}

// ReadLSB reads n (0..32) bits and returns them packed LSB-first.
func (br *BitReader) ReadLSB(n uint32) uint32 {
	if n > 32 {
		n = 32
	}
	result := uint32(0)
	for i := uint32(0); i < n; i++ {
		byteIndex := br.bitPosition / 8
		if byteIndex < uint32(len(br.data)) {
			bit := (br.data[byteIndex] >> (br.bitPosition % 8)) & 1
			result |= uint32(bit) << i
		}
		br.bitPosition++
	}
	return result
}
