package kbye

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// BitsPerWord is the number of bits each word in a word stream stands for.
const BitsPerWord = 3

// NumGroups is the number of synonym groups a Dictionary must have.
const NumGroups = 1 << BitsPerWord

// DefaultGroups are the filler words used by Default. The index of a group is the value its words encode.
var DefaultGroups = [][]string{
	{"ok", "oke", "okay"},   // 000
	{"k", "kk"},             // 001
	{"bye", "cya", "bai"},   // 010
	{"lol", "lmao", "haha"}, // 011
	{"cool", "kool"},        // 100
	{"nice", "noice"},       // 101
	{"sure", "yup", "yep"},  // 110
	{"yeah", "yea", "ya"},   // 111
}

// Default is the dictionary used by the package-level Encode and Decode.
var Default = MustNewDictionary(DefaultGroups)

// Dictionary maps 3-bit values to groups of interchangeable words and back. A Dictionary is never modified after
// it is created, so it can be shared between goroutines.
type Dictionary struct {
	groups [NumGroups][]string
	values map[string]byte // lowercase word -> value
}

// NewDictionary creates a dictionary from exactly NumGroups groups of words. Words must be non-empty, shorter than
// 4096 bytes, must not contain whitespace and must be unique across all groups, ignoring case.
func NewDictionary(groups [][]string) (*Dictionary, error) {
	if len(groups) != NumGroups {
		return nil, fmt.Errorf("dictionary must have exactly %d groups, have %d", NumGroups, len(groups))
	}
	d := &Dictionary{values: make(map[string]byte)}
	for value, group := range groups {
		if len(group) == 0 {
			return nil, fmt.Errorf("group %d has no words", value)
		}
		for _, w := range group {
			if w == "" {
				return nil, fmt.Errorf("group %d contains an empty word", value)
			}
			if len(w) >= maxTokenLen { // Decode cuts tokens off at maxTokenLen
				return nil, fmt.Errorf("group %d contains a word of %d bytes, the limit is %d", value, len(w), maxTokenLen-1)
			}
			if strings.IndexFunc(w, unicode.IsSpace) >= 0 {
				return nil, errors.New("word contains whitespace: '" + w + "'")
			}
			lw := strings.ToLower(w)
			if prev, ok := d.values[lw]; ok {
				return nil, fmt.Errorf("word %q is in both group %d and group %d", w, prev, value)
			}
			d.values[lw] = byte(value)
		}
		d.groups[value] = append([]string(nil), group...)
	}
	return d, nil
}

// MustNewDictionary is like NewDictionary but panics if the groups are invalid.
func MustNewDictionary(groups [][]string) *Dictionary {
	d, err := NewDictionary(groups)
	if err != nil {
		panic("kbye: " + err.Error())
	}
	return d
}

// Value returns the value word stands for. Case is ignored.
func (d *Dictionary) Value(word string) (byte, bool) {
	v, ok := d.values[strings.ToLower(word)]
	return v, ok
}

// Words returns the synonyms for value, which must be less than NumGroups.
func (d *Dictionary) Words(value byte) []string {
	return append([]string(nil), d.groups[value]...)
}

// Groups returns a copy of all the groups, indexed by value.
func (d *Dictionary) Groups() [][]string {
	groups := make([][]string, NumGroups)
	for i := range d.groups {
		groups[i] = d.Words(byte(i))
	}
	return groups
}

// All returns every word in the dictionary in group order.
func (d *Dictionary) All() []string {
	all := make([]string, 0, len(d.values))
	for _, g := range d.groups {
		all = append(all, g...)
	}
	return all
}

// word picks one of the synonyms for value using r.
func (d *Dictionary) word(value byte, r Rand) string {
	options := d.groups[value]
	if len(options) == 1 {
		return options[0]
	}
	return options[r.IntN(len(options))]
}
