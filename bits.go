package kbye

import (
	"io"
)

// size of the buffers used by BitReader and BitWriter.
const defaultBufSize = 16 * 1024

// sliceByteLen slices the byte b such that the result has length len and starting bit start
func sliceByteLen(b byte, start uint8, len uint8) byte {
	return (b << start) >> (8 - len)
}

// roundBufSize makes bufSize a multiple of chunkLen (and at least chunkLen) so that a chunk never crosses
// the buffer boundary.
func roundBufSize(bufSize int, chunkLen uint8) int {
	bufSize -= bufSize % int(chunkLen)
	if bufSize < int(chunkLen) {
		bufSize = int(chunkLen)
	}
	return bufSize
}

// BitReader reads a constant number of bits from an io.Reader
type BitReader struct {
	chunkLen uint8
	in       io.Reader

	buf     []byte
	bitIdx  uint8
	byteIdx int
	bufN    int // limited by read size which cannot exceed an int
	eof     bool
}

// NewBitReader returns a BitReader that reads chunkLen bits at a time from in.
func NewBitReader(chunkLen uint8, in io.Reader) *BitReader {
	return NewBitReaderSize(chunkLen, in, defaultBufSize)
}

// NewBitReaderSize is like NewBitReader but allows setting the internal buffer size
func NewBitReaderSize(chunkLen uint8, in io.Reader, bufSize int) *BitReader {
	return &BitReader{chunkLen: chunkLen, in: in, buf: make([]byte, roundBufSize(bufSize, chunkLen))}
}

// Read returns the next chunkLen bits from the stream. If there is no more data to read, it returns io.EOF.
// For example, if chunkLen is 3 and the next 3 bits are 101, Read returns 5, nil.
//
// When the data runs out in the middle of a chunk, the missing bits are read as zeros.
func (br *BitReader) Read() (byte, error) {
	if br.byteIdx >= br.bufN { // need to read more
		if br.eof {
			return 0, io.EOF
		}
		n, err := io.ReadFull(br.in, br.buf)
		switch err {
		case nil:
		case io.EOF:
			br.eof = true
			return 0, io.EOF
		case io.ErrUnexpectedEOF: // last, partial buffer
			br.eof = true
		default:
			return 0, err
		}
		br.byteIdx = 0
		br.bitIdx = 0
		br.bufN = n
	}

	var result byte
	if br.bitIdx+br.chunkLen > 8 { // want to slice past current byte
		firstByte := sliceByteLen(br.buf[br.byteIdx], br.bitIdx, 8-br.bitIdx)
		secondPartLen := br.chunkLen + br.bitIdx - 8
		var next byte // zero padding past the end of the data
		if br.byteIdx+1 < br.bufN {
			next = br.buf[br.byteIdx+1]
		}
		result = (firstByte << secondPartLen) | sliceByteLen(next, 0, secondPartLen)
	} else {
		result = sliceByteLen(br.buf[br.byteIdx], br.bitIdx, br.chunkLen)
	}
	br.bitIdx += br.chunkLen
	if br.bitIdx >= 8 {
		br.bitIdx %= 8
		br.byteIdx++
	}
	return result, nil
}

// BitWriter writes a constant number of bits to an io.Writer
type BitWriter struct {
	chunkLen uint8
	out      io.Writer

	buf     []byte
	bufSize int
	bitIdx  uint8
	byteIdx int
}

// NewBitWriter returns a BitWriter that writes chunkLen bits at a time to out.
func NewBitWriter(chunkLen uint8, out io.Writer) *BitWriter {
	return NewBitWriterSize(chunkLen, out, defaultBufSize)
}

// NewBitWriterSize is like NewBitWriter but allows setting the internal buffer size
func NewBitWriterSize(chunkLen uint8, out io.Writer, bufSize int) *BitWriter {
	bw := &BitWriter{chunkLen: chunkLen, out: out, bufSize: roundBufSize(bufSize, chunkLen)}
	bw.buf = make([]byte, bw.bufSize)
	return bw
}

// Write writes the last chunkLen bits from b to the stream.
// For example, if chunkLen is 3 and b is 00000101, Write writes 101.
func (bw *BitWriter) Write(b byte) error {
	if bw.byteIdx == len(bw.buf) {
		if err := bw.drain(); err != nil {
			return err
		}
	}

	b &= 1<<bw.chunkLen - 1
	free := 8 - bw.bitIdx // unused low bits of the current byte
	if bw.chunkLen <= free {
		bw.buf[bw.byteIdx] |= b << (free - bw.chunkLen)
	} else {
		// the buffer holds a whole number of chunks, so byteIdx+1 is in range
		spill := bw.chunkLen - free
		bw.buf[bw.byteIdx] |= b >> spill
		bw.buf[bw.byteIdx+1] = b << (8 - spill)
	}
	bw.bitIdx += bw.chunkLen
	bw.byteIdx += int(bw.bitIdx / 8)
	bw.bitIdx %= 8
	return nil
}

// drain writes out a full buffer and starts a new one.
func (bw *BitWriter) drain() error {
	if _, err := bw.out.Write(bw.buf); err != nil {
		return err
	}
	clear(bw.buf)
	bw.bitIdx = 0
	bw.byteIdx = 0
	return nil
}

// Flush writes the complete bytes left in the buffer to the underlying io.Writer. Trailing bits that do not fill
// a whole byte are dropped, so Flush must only be called once, at the end of the stream.
func (bw *BitWriter) Flush() error {
	_, err := bw.out.Write(bw.buf[:bw.byteIdx])
	return err
}
