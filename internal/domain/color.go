package domain

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Color is the single shape colors take once past the HTTP boundary.
// Browsers send colors as a bare string, a {name, code} object or an array
// of either; UnmarshalJSON folds all of them into this struct.
type Color struct {
	Name string `json:"name"`
	Code string `json:"code,omitempty"`
}

func (c Color) IsZero() bool { return c.Name == "" && c.Code == "" }

func (c *Color) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*c = Color{}
		return nil
	}
	switch b[0] {
	case '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return ErrUnsupportedColor
		}
		*c = Color{Name: strings.TrimSpace(s)}
		return nil
	case '{':
		var obj struct {
			Name  *string `json:"name"`
			Code  *string `json:"code"`
			Value *string `json:"value"`
		}
		if err := json.Unmarshal(b, &obj); err != nil {
			return ErrUnsupportedColor
		}
		out := Color{}
		switch {
		case obj.Name != nil:
			out.Name = strings.TrimSpace(*obj.Name)
		case obj.Value != nil:
			out.Name = strings.TrimSpace(*obj.Value)
		}
		if obj.Code != nil {
			out.Code = strings.TrimSpace(*obj.Code)
		}
		*c = out
		return nil
	case '[':
		var arr []json.RawMessage
		if err := json.Unmarshal(b, &arr); err != nil {
			return ErrUnsupportedColor
		}
		if len(arr) == 0 {
			*c = Color{}
			return nil
		}
		// first element wins; nested arrays are not a shape anyone sends
		if t := bytes.TrimSpace(arr[0]); len(t) > 0 && t[0] == '[' {
			return ErrUnsupportedColor
		}
		return c.UnmarshalJSON(arr[0])
	}
	return ErrUnsupportedColor
}

func equalFold(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
