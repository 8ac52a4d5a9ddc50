package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ClassProbabilities maps class names to probabilities while keeping the
// class order stable. Probabilities are non-negative and sum to 1.
type ClassProbabilities struct {
	Classes []string
	Probs   []float64
}

// NewClassProbabilities pairs classes with probabilities. Both slices are copied.
func NewClassProbabilities(classes []string, probs []float64) (ClassProbabilities, error) {
	if len(classes) != len(probs) {
		return ClassProbabilities{}, fmt.Errorf("class/probability length mismatch: %d classes, %d values", len(classes), len(probs))
	}
	return ClassProbabilities{
		Classes: append([]string(nil), classes...),
		Probs:   append([]float64(nil), probs...),
	}, nil
}

// Len returns the number of classes.
func (c ClassProbabilities) Len() int {
	return len(c.Classes)
}

// IsEmpty reports whether the vector has no classes.
func (c ClassProbabilities) IsEmpty() bool {
	return len(c.Classes) == 0
}

// Get returns the probability of a class and whether the class is present.
func (c ClassProbabilities) Get(class string) (float64, bool) {
	for i, name := range c.Classes {
		if name == class {
			return c.Probs[i], true
		}
	}
	return 0, false
}

// Top returns the most probable class. Ties go to the earlier class.
func (c ClassProbabilities) Top() (string, float64) {
	if len(c.Classes) == 0 {
		return "", 0
	}
	best := 0
	for i := 1; i < len(c.Probs); i++ {
		if c.Probs[i] > c.Probs[best] {
			best = i
		}
	}
	return c.Classes[best], c.Probs[best]
}

// Sum adds up all probabilities.
func (c ClassProbabilities) Sum() float64 {
	var total float64
	for _, p := range c.Probs {
		total += p
	}
	return total
}

// Clone returns a deep copy.
func (c ClassProbabilities) Clone() ClassProbabilities {
	return ClassProbabilities{
		Classes: append([]string(nil), c.Classes...),
		Probs:   append([]float64(nil), c.Probs...),
	}
}

// MarshalJSON encodes the vector as an object in class order.
func (c ClassProbabilities) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, class := range c.Classes {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(class)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(c.Probs[i])
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes an object, keeping the key order of the document.
func (c *ClassProbabilities) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("class probabilities must be a JSON object")
	}

	c.Classes = c.Classes[:0]
	c.Probs = c.Probs[:0]
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("unexpected key token %v", tok)
		}
		var p float64
		if err := dec.Decode(&p); err != nil {
			return fmt.Errorf("class %q: %w", key, err)
		}
		c.Classes = append(c.Classes, key)
		c.Probs = append(c.Probs, p)
	}
	_, err = dec.Token()
	return err
}
