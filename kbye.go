// Package kbye hides data in boring chat replies. Every 3 bits of input become one filler word ("ok", "lol",
// "nice", ...) picked at random from a group of synonyms, and any synonym decodes back to the same bits.
//
// Encoding pads the input with zero bits to a multiple of 3 bits. Decoding drops trailing bits that do not fill a
// whole byte. Together these mean that decode(encode(x)) == x for every x.
//
// kbye is not encryption. It is an alphabet substitution.
package kbye

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"math/rand/v2"
	"strings"
)

// longest token considered when decoding. Anything longer cannot be a dictionary word.
const maxTokenLen = 4096

// UnknownWordError is returned when decoding input that contains a word not in the dictionary.
type UnknownWordError struct {
	Word string
}

func (e *UnknownWordError) Error() string {
	return fmt.Sprintf("unknown word: %q", e.Word)
}

// Rand picks the synonym used for each value while encoding. *rand.Rand from math/rand/v2 satisfies it.
type Rand interface {
	// IntN returns a number in [0, n).
	IntN(n int) int
}

// globalRand uses the top-level math/rand/v2 functions, which are safe for concurrent use.
type globalRand struct{}

func (globalRand) IntN(n int) int { return rand.IntN(n) }

// Coding encodes data into words from a Dictionary and decodes it back.
// A Coding is safe for concurrent use as long as its Rand is and its setters are not called concurrently.
type Coding struct {
	dict    *Dictionary
	rand    Rand
	bufSize int
}

// NewCoding creates a Coding that uses the words in d.
func NewCoding(d *Dictionary) *Coding {
	return &Coding{dict: d, rand: globalRand{}, bufSize: defaultBufSize}
}

var defaultCoding = NewCoding(Default)

// SetBufferSize sets internal buffer sizes
func (c *Coding) SetBufferSize(bufSize int) { c.bufSize = bufSize }

// SetRand sets the source used to pick synonyms. A nil r restores the default source.
func (c *Coding) SetRand(r Rand) {
	if r == nil {
		r = globalRand{}
	}
	c.rand = r
}

// Dictionary returns the dictionary c encodes with.
func (c *Coding) Dictionary() *Dictionary { return c.dict }

// Encode reads from src and writes space separated words to dst.
func (c *Coding) Encode(dst io.Writer, src io.Reader) error {
	br := NewBitReaderSize(BitsPerWord, src, c.bufSize)
	w := bufio.NewWriterSize(dst, c.bufSize)
	first := true
	for {
		chunk, err := br.Read()
		if err != nil {
			if err == io.EOF {
				return w.Flush()
			}
			return err
		}
		if !first {
			if err = w.WriteByte(' '); err != nil {
				return err
			}
		}
		first = false
		if _, err = w.WriteString(c.dict.word(chunk, c.rand)); err != nil {
			return err
		}
	}
}

// Decode reads whitespace separated words from src and writes the decoded bytes to dst. Case is ignored.
// If an unknown word is found, Decode returns an *UnknownWordError and dst may already have received part of the
// output; use DecodeBytes for all-or-nothing decoding.
func (c *Coding) Decode(dst io.Writer, src io.Reader) error {
	bw := NewBitWriterSize(BitsPerWord, dst, c.bufSize)
	sc := bufio.NewScanner(src)
	sc.Buffer(make([]byte, 0, 512), maxTokenLen)
	sc.Split(scanWordsLimit(maxTokenLen))
	for sc.Scan() {
		word := sc.Text()
		v, ok := c.dict.Value(word)
		if !ok {
			return &UnknownWordError{Word: word}
		}
		if err := bw.Write(v); err != nil {
			return err
		}
	}
	if err := sc.Err(); err != nil {
		return err
	}
	return bw.Flush()
}

// scanWordsLimit is bufio.ScanWords, except a word that reaches limit bytes is cut off and returned as a token
// instead of failing the scan with bufio.ErrTooLong.
func scanWordsLimit(limit int) bufio.SplitFunc {
	return func(data []byte, atEOF bool) (int, []byte, error) {
		advance, token, err := bufio.ScanWords(data, atEOF)
		if advance == 0 && token == nil && err == nil && len(data) >= limit {
			return len(data), data, nil
		}
		return advance, token, err
	}
}

// EncodeBytes encodes data and returns the words.
func (c *Coding) EncodeBytes(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	var buf bytes.Buffer
	buf.Grow((len(data)*8/BitsPerWord + 1) * 5)
	c.Encode(&buf, bytes.NewReader(data)) // writes to a bytes.Buffer never fail
	return buf.String()
}

// DecodeBytes decodes words. Unlike Decode, nothing is returned if an error occurs.
func (c *Coding) DecodeBytes(words string) ([]byte, error) {
	var buf bytes.Buffer
	if err := c.Decode(&buf, strings.NewReader(words)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// EncodeString encodes the UTF-8 bytes of text.
func (c *Coding) EncodeString(text string) string {
	return c.EncodeBytes([]byte(text))
}

// DecodeString decodes words into a string. The result is not checked to be valid UTF-8.
func (c *Coding) DecodeString(words string) (string, error) {
	b, err := c.DecodeBytes(words)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Encode encodes text with the default dictionary.
func Encode(text string) string {
	return defaultCoding.EncodeString(text)
}

// Decode decodes words with the default dictionary.
func Decode(words string) (string, error) {
	return defaultCoding.DecodeString(words)
}
