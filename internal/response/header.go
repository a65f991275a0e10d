package response

import "strings"

// Header is a header map that remembers insertion order. Names are
// matched case-insensitively; replacing a value keeps the original
// position and spelling.
type Header struct {
	fields []field
	index  map[string]int
}

type field struct {
	name  string
	value string
}

// NewHeader returns an empty Header.
func NewHeader() *Header {
	return &Header{index: make(map[string]int)}
}

// HeaderOf builds a Header from alternating name, value arguments.
// A trailing name without a value is ignored.
func HeaderOf(pairs ...string) *Header {
	h := NewHeader()
	for i := 0; i+1 < len(pairs); i += 2 {
		h.Set(pairs[i], pairs[i+1])
	}
	return h
}

// Set adds or replaces a header.
func (h *Header) Set(name, value string) {
	if h.index == nil {
		h.index = make(map[string]int)
	}
	key := strings.ToLower(name)
	if i, ok := h.index[key]; ok {
		h.fields[i].value = value
		return
	}
	h.index[key] = len(h.fields)
	h.fields = append(h.fields, field{name: name, value: value})
}

// Get returns a header value.
func (h *Header) Get(name string) (string, bool) {
	if h == nil {
		return "", false
	}
	i, ok := h.index[strings.ToLower(name)]
	if !ok {
		return "", false
	}
	return h.fields[i].value, true
}

// Del removes a header. Later headers keep their relative order.
func (h *Header) Del(name string) {
	if h == nil {
		return
	}
	key := strings.ToLower(name)
	i, ok := h.index[key]
	if !ok {
		return
	}
	h.fields = append(h.fields[:i], h.fields[i+1:]...)
	delete(h.index, key)
	for j := i; j < len(h.fields); j++ {
		h.index[strings.ToLower(h.fields[j].name)] = j
	}
}

// Len returns the number of headers.
func (h *Header) Len() int {
	if h == nil {
		return 0
	}
	return len(h.fields)
}

// Names returns header names in insertion order.
func (h *Header) Names() []string {
	if h == nil {
		return nil
	}
	names := make([]string, len(h.fields))
	for i, f := range h.fields {
		names[i] = f.name
	}
	return names
}

// Each calls fn for every header in insertion order.
func (h *Header) Each(fn func(name, value string)) {
	if h == nil {
		return
	}
	for _, f := range h.fields {
		fn(f.name, f.value)
	}
}

// Clone returns a deep copy.
func (h *Header) Clone() *Header {
	out := NewHeader()
	h.Each(out.Set)
	return out
}
