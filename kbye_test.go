package kbye

import (
	"bytes"
	"errors"
	"math/rand/v2"
	"strings"
	"sync"
	"testing"
)

// firstRand always picks the first synonym.
type firstRand struct{}

func (firstRand) IntN(int) int { return 0 }

func firstCoding() *Coding {
	c := NewCoding(Default)
	c.SetRand(firstRand{})
	return c
}

func TestEncodeVectors(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"\x00", "ok ok ok"},
		{"A", "bye ok bye"},
		{"hi", "lol bye ok sure cool cool"},
		{"\xff", "yeah yeah sure"},
		{"\x00\x00\x00", "ok ok ok ok ok ok ok ok"},
		{"kbye", "lol bye sure sure k k yeah k lol k bye"},
		{"héllo", "lol bye k cool k sure nice k lol lol ok sure sure k nice yeah"},
	}
	c := firstCoding()
	for _, tt := range tests {
		if got := c.EncodeString(tt.in); got != tt.want {
			t.Errorf("EncodeString(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestEncodeWordCount(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))
	for n := 0; n < 64; n++ {
		data := make([]byte, n)
		for i := range data {
			data[i] = byte(r.IntN(256))
		}
		words := strings.Fields(NewCoding(Default).EncodeBytes(data))
		want := (n*8 + BitsPerWord - 1) / BitsPerWord
		if len(words) != want {
			t.Fatalf("len %d: got %d words, want %d", n, len(words), want)
		}
		for _, w := range words {
			if _, ok := Default.Value(w); !ok {
				t.Fatalf("len %d: encoded word %q is not in the dictionary", n, w)
			}
		}
	}
}

func TestEncodeUsesOnlyGroupSynonyms(t *testing.T) {
	c := NewCoding(Default)
	c.SetRand(rand.New(rand.NewPCG(7, 7)))
	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		for _, w := range strings.Fields(c.EncodeString("\x00")) {
			seen[w] = true
		}
	}
	for w := range seen {
		if v, _ := Default.Value(w); v != 0 {
			t.Errorf("encoding 0x00 produced %q which has value %d", w, v)
		}
	}
	if len(seen) != len(DefaultGroups[0]) {
		t.Errorf("expected every synonym of group 0 to be picked eventually, saw %v", seen)
	}
}

func TestRoundTrip(t *testing.T) {
	r := rand.New(rand.NewPCG(3, 4))
	c := NewCoding(Default)
	c.SetRand(r)
	for n := 0; n < 100; n++ {
		data := make([]byte, n)
		for i := range data {
			data[i] = byte(r.IntN(256))
		}
		a, b := c.EncodeBytes(data), c.EncodeBytes(data)
		for _, enc := range []string{a, b} {
			got, err := c.DecodeBytes(enc)
			if err != nil {
				t.Fatal(err)
			}
			if !bytes.Equal(got, data) {
				t.Fatalf("round trip of %x gave %x", data, got)
			}
		}
	}
}

func TestDecodeVectors(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"   ", ""},
		{"\t\n ", ""},
		{"ok ok ok", "\x00"},
		{"oke OKAY ok", "\x00"},
		{"OK Ok ok", "\x00"},
		{"ok k", ""},
		{"  bye\tok\n\nbye  ", "A"},
		{"LOL cya OKAY yep kool COOL", "hi"},
		{"yeah yeah sure", "\xff"},
		{"yeah yeah yeah", "\xff"}, // trailing 1 bit dropped
	}
	for _, tt := range tests {
		got, err := Decode(tt.in)
		if err != nil {
			t.Errorf("Decode(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("Decode(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDecodeUnknownWord(t *testing.T) {
	tests := []struct {
		in   string
		word string
	}{
		{"ok ok nope", "nope"},
		{"hmm ok ok", "hmm"},
		{"ok BRB lol ttyl", "BRB"},
		{"ok " + strings.Repeat("x", 2*maxTokenLen), strings.Repeat("x", maxTokenLen)},
	}
	for _, tt := range tests {
		got, err := NewCoding(Default).DecodeBytes(tt.in)
		var uw *UnknownWordError
		if !errors.As(err, &uw) {
			t.Errorf("Decode(%.20q): want *UnknownWordError, got %v", tt.in, err)
			continue
		}
		if uw.Word != tt.word {
			t.Errorf("Decode(%.20q): unknown word %.20q, want %.20q", tt.in, uw.Word, tt.word)
		}
		if got != nil {
			t.Errorf("Decode(%.20q) returned partial output %q", tt.in, got)
		}
	}
}

func TestDecodeNormalisation(t *testing.T) {
	c := NewCoding(Default)
	data := []byte("Hide secret messages in boring replies.")
	words := strings.Fields(c.EncodeBytes(data))
	r := rand.New(rand.NewPCG(5, 6))
	var sb strings.Builder
	for _, w := range words {
		sb.WriteString(strings.Repeat(" \t\n"[r.IntN(3):][:1], 1+r.IntN(3)))
		if r.IntN(2) == 0 {
			w = strings.ToUpper(w)
		}
		sb.WriteString(w)
	}
	got, err := c.DecodeBytes(sb.String())
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("got %q, want %q", got, data)
	}
}

func TestStreamingSmallBuffers(t *testing.T) {
	data := bytes.Repeat([]byte("kbye streams \x00\xff"), 100)
	for _, size := range []int{1, 2, 3, 5, 7, 64, 1000} {
		c := firstCoding()
		c.SetBufferSize(size)
		var enc bytes.Buffer
		if err := c.Encode(&enc, bytes.NewReader(data)); err != nil {
			t.Fatal(err)
		}
		if want := firstCoding().EncodeBytes(data); enc.String() != want {
			t.Fatalf("bufSize %d: encoding differs from the default buffer size", size)
		}
		var dec bytes.Buffer
		if err := c.Decode(&dec, &enc); err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(dec.Bytes(), data) {
			t.Fatalf("bufSize %d: round trip mismatch", size)
		}
	}
}

func TestConcurrentUse(t *testing.T) {
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			in := strings.Repeat(string(rune('a'+i)), 50+i)
			for j := 0; j < 50; j++ {
				got, err := Decode(Encode(in))
				if err != nil || got != in {
					t.Errorf("goroutine %d: got %q, %v", i, got, err)
					return
				}
			}
		}(i)
	}
	wg.Wait()
}

func TestUnknownWordErrorMessage(t *testing.T) {
	err := error(&UnknownWordError{Word: "brb"})
	if err.Error() != `unknown word: "brb"` {
		t.Errorf("got %q", err.Error())
	}
}

func FuzzRoundTrip(f *testing.F) {
	f.Add([]byte("hello"))
	f.Add([]byte(""))
	f.Add([]byte("\x00"))
	f.Add([]byte("hello世界"))
	f.Add([]byte("🚀rocket"))
	f.Add([]byte{0xff, 0xfe, 0x00, 0x80})

	f.Fuzz(func(t *testing.T, data []byte) {
		enc := NewCoding(Default).EncodeBytes(data)
		if want := (len(data)*8 + 2) / 3; len(strings.Fields(enc)) != want {
			t.Fatalf("got %d words, want %d", len(strings.Fields(enc)), want)
		}
		got, err := NewCoding(Default).DecodeBytes(enc)
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(got, data) {
			t.Fatalf("round trip of %x gave %x", data, got)
		}
	})
}
