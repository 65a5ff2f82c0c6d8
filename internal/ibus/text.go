package ibus

import (
	"errors"
	"fmt"

	"github.com/godbus/dbus/v5"
)

var errNotText = errors.New("variant is not an IBusText")

// IBus serializable objects start with a type name followed by an
// attachment dictionary.
type attrList struct {
	Name        string
	Attachments map[string]dbus.Variant
	Attrs       []dbus.Variant
}

type text struct {
	Name        string
	Attachments map[string]dbus.Variant
	Text        string
	Attrs       dbus.Variant
}

// NewText wraps s as an IBusText variant without attributes.
func NewText(s string) dbus.Variant {
	return dbus.MakeVariant(text{
		Name:        "IBusText",
		Attachments: map[string]dbus.Variant{},
		Text:        s,
		Attrs: dbus.MakeVariant(attrList{
			Name:        "IBusAttrList",
			Attachments: map[string]dbus.Variant{},
			Attrs:       []dbus.Variant{},
		}),
	})
}

// DecodeText extracts the string of an IBusText variant.
func DecodeText(v dbus.Variant) (string, error) {
	switch val := v.Value().(type) {
	case []interface{}:
		if len(val) < 3 {
			return "", fmt.Errorf("%w: %d fields", errNotText, len(val))
		}
		if name, ok := val[0].(string); !ok || name != "IBusText" {
			return "", fmt.Errorf("%w: type %v", errNotText, val[0])
		}
		s, ok := val[2].(string)
		if !ok {
			return "", fmt.Errorf("%w: text field is %T", errNotText, val[2])
		}
		return s, nil
	case text:
		return val.Text, nil
	default:
		return "", fmt.Errorf("%w: %s", errNotText, v.Signature())
	}
}
