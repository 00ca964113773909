package catalog

import (
	"bytes"
	"errors"
	"fmt"
	"sort"

	json "github.com/goccy/go-json"
)

var (
	ErrUnknownTool   = errors.New("catalog: unknown tool")
	ErrNoHandler     = errors.New("catalog: no handler for tool")
	ErrInvalidParams = errors.New("catalog: invalid params")
)

// Param describes one declared parameter of a tool.
type Param struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Required    bool   `json:"required,omitempty"`
	Description string `json:"description,omitempty"`
}

// Spec describes one callable tool. Tools without params accept any
// well-formed params object; undeclared extras are always allowed so the
// peer can evolve ahead of this table.
type Spec struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Params      []Param `json:"params,omitempty"`
}

// table is the static catalog. The first two entries are answered locally;
// the rest are forwarded to the connected device peer.
var table = []Spec{
	{
		Name:        "echo",
		Description: "returns the given params unchanged",
	},
	{
		Name:        "relay_info",
		Description: "reports relay version, locally answered tools and live session state",
	},
	{
		Name:        "get_battery_level",
		Description: "reads the device battery charge percentage",
	},
	{
		Name:        "get_clipboard",
		Description: "reads the device clipboard text",
	},
	{
		Name:        "get_device_info",
		Description: "reports device model, OS version and identifiers",
	},
	{
		Name:        "get_location",
		Description: "reads the last known device location",
	},
	{
		Name:        "open_url",
		Description: "opens a URL on the device",
		Params: []Param{
			{Name: "url", Type: "string", Required: true, Description: "absolute URL to open"},
		},
	},
	{
		Name:        "send_sms",
		Description: "sends a text message from the device",
		Params: []Param{
			{Name: "to", Type: "string", Required: true, Description: "recipient number"},
			{Name: "body", Type: "string", Required: true, Description: "message text"},
		},
	},
	{
		Name:        "set_clipboard",
		Description: "replaces the device clipboard text",
		Params: []Param{
			{Name: "text", Type: "string", Required: true, Description: "clipboard contents"},
		},
	},
	{
		Name:        "set_volume",
		Description: "sets a device volume level",
		Params: []Param{
			{Name: "level", Type: "number", Required: true, Description: "volume from 0 to 100"},
			{Name: "stream", Type: "string", Description: "audio stream, defaults to media"},
		},
	},
	{
		Name:        "take_screenshot",
		Description: "captures the device screen",
	},
}

// Table returns a snapshot of the tool catalog.
func Table() []Spec {
	out := make([]Spec, len(table))
	copy(out, table)
	return out
}

// Names returns the catalog tool names sorted.
func Names() []string {
	names := make([]string, 0, len(table))
	for _, s := range table {
		names = append(names, s.Name)
	}
	sort.Strings(names)
	return names
}

// Lookup returns the spec for a tool name.
func Lookup(name string) (Spec, bool) {
	for _, s := range table {
		if s.Name == name {
			return s, true
		}
	}
	return Spec{}, false
}

// ValidateCall checks a call against the catalog before it goes on the
// wire: the tool must exist, params must form a JSON object, declared
// required params must be present, and declared params must match their
// type. Params the table does not declare pass through untouched.
func ValidateCall(tool string, params json.RawMessage) error {
	spec, ok := Lookup(tool)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownTool, tool)
	}

	fields := map[string]json.RawMessage{}
	if !emptyParams(params) {
		if err := json.Unmarshal(params, &fields); err != nil {
			return fmt.Errorf("%w: tool=%q params must be a JSON object: %v", ErrInvalidParams, tool, err)
		}
	}

	for _, p := range spec.Params {
		raw, present := fields[p.Name]
		if !present || jsonKind(raw) == "null" {
			if p.Required {
				return fmt.Errorf("%w: tool=%q missing required param %q", ErrInvalidParams, tool, p.Name)
			}
			continue
		}
		if p.Type != "" && p.Type != "any" {
			if kind := jsonKind(raw); kind != p.Type {
				return fmt.Errorf("%w: tool=%q param %q wants %s, got %s", ErrInvalidParams, tool, p.Name, p.Type, kind)
			}
		}
	}
	return nil
}

func emptyParams(params json.RawMessage) bool {
	trimmed := bytes.TrimSpace(params)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

// jsonKind names the JSON type of an encoded value by its first byte.
func jsonKind(raw json.RawMessage) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return "null"
	}
	switch trimmed[0] {
	case '"':
		return "string"
	case '{':
		return "object"
	case '[':
		return "array"
	case 't', 'f':
		return "boolean"
	case 'n':
		return "null"
	default:
		return "number"
	}
}
