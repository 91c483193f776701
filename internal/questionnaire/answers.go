package questionnaire

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// Answer is a single questionnaire response. Single-choice and text questions carry a
// string, multiple-choice questions carry a list.
type Answer struct {
	Value  string
	Values []string
	IsList bool
}

// Text builds a single-value answer.
func Text(v string) Answer { return Answer{Value: v} }

// List builds a multi-select answer.
func List(v ...string) Answer {
	if v == nil {
		v = []string{}
	}
	return Answer{Values: v, IsList: true}
}

func (a Answer) MarshalJSON() ([]byte, error) {
	if a.IsList {
		if a.Values == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(a.Values)
	}
	return json.Marshal(a.Value)
}

// UnmarshalJSON accepts a string or an array. Numbers and booleans are kept as their
// literal text; null and other shapes leave the answer empty.
func (a *Answer) UnmarshalJSON(data []byte) error {
	*a = Answer{}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}

	switch data[0] {
	case '"':
		return json.Unmarshal(data, &a.Value)
	case '[':
		var raw []any
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		a.IsList = true
		a.Values = make([]string, 0, len(raw))
		for _, item := range raw {
			if s, ok := item.(string); ok {
				a.Values = append(a.Values, s)
			}
		}
		return nil
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return err
		}
		a.Value = strconv.FormatBool(b)
		return nil
	case '{':
		return nil
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return err
		}
		a.Value = n.String()
		return nil
	}
}

// Answers is the positional answer map as the mobile client stores it: question id to answer.
type Answers map[int]Answer

// NamedAnswers is the same data keyed by the stable question keys of the bank.
type NamedAnswers map[string]Answer

// String returns the answer for key when it was given as a single value.
func (n NamedAnswers) String(key string) (string, bool) {
	a, ok := n[key]
	if !ok || a.IsList {
		return "", false
	}
	return a.Value, true
}

// List returns the answer for key when it was given as a list. A single string where a
// list is expected is reported as absent.
func (n NamedAnswers) List(key string) ([]string, bool) {
	a, ok := n[key]
	if !ok || !a.IsList {
		return nil, false
	}
	return a.Values, true
}
