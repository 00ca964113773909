package catalog

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/danmuck/tetherctl/internal/testutil/testlog"
	json "github.com/goccy/go-json"
)

func TestLookupKnownTool(t *testing.T) {
	testlog.Start(t)
	spec, ok := Lookup("send_sms")
	if !ok {
		t.Fatalf("send_sms missing from catalog")
	}
	if len(spec.Params) != 2 {
		t.Fatalf("send_sms params=%d", len(spec.Params))
	}
	if _, ok := Lookup("rm_rf"); ok {
		t.Fatalf("lookup invented a tool")
	}
}

func TestNamesSortedAndComplete(t *testing.T) {
	testlog.Start(t)
	names := Names()
	if len(names) != len(Table()) {
		t.Fatalf("names=%d table=%d", len(names), len(Table()))
	}
	for i := 1; i < len(names); i++ {
		if names[i-1] >= names[i] {
			t.Fatalf("names out of order at %d: %q >= %q", i, names[i-1], names[i])
		}
	}
}

func TestValidateCall(t *testing.T) {
	testlog.Start(t)
	cases := []struct {
		name    string
		tool    string
		params  string
		wantErr error
	}{
		{name: "unknown tool", tool: "rm_rf", params: `{}`, wantErr: ErrUnknownTool},
		{name: "no params needed", tool: "get_battery_level", params: ``},
		{name: "null params allowed", tool: "take_screenshot", params: `null`},
		{name: "params not an object", tool: "open_url", params: `[1,2]`, wantErr: ErrInvalidParams},
		{name: "missing required", tool: "send_sms", params: `{"to":"+15551234"}`, wantErr: ErrInvalidParams},
		{name: "required null counts as missing", tool: "open_url", params: `{"url":null}`, wantErr: ErrInvalidParams},
		{name: "all required present", tool: "send_sms", params: `{"to":"+15551234","body":"on my way"}`},
		{name: "undeclared extras pass", tool: "send_sms", params: `{"to":"+15551234","body":"hi","priority":3}`},
		{name: "wrong type", tool: "set_volume", params: `{"level":"loud"}`, wantErr: ErrInvalidParams},
		{name: "number accepted", tool: "set_volume", params: `{"level":40,"stream":"alarm"}`},
		{name: "optional absent", tool: "set_volume", params: `{"level":40}`},
	}
	for _, tc := range cases {
		err := ValidateCall(tc.tool, json.RawMessage(tc.params))
		if tc.wantErr == nil && err != nil {
			t.Fatalf("%s: unexpected err=%v", tc.name, err)
		}
		if tc.wantErr != nil && !errors.Is(err, tc.wantErr) {
			t.Fatalf("%s: want %v got %v", tc.name, tc.wantErr, err)
		}
	}
}

func TestRegistryRespond(t *testing.T) {
	testlog.Start(t)
	reg := NewRegistry()
	if err := reg.Register("shout", func(_ context.Context, params json.RawMessage) (json.RawMessage, error) {
		var s string
		if err := json.Unmarshal(params, &s); err != nil {
			return nil, err
		}
		return json.Marshal(strings.ToUpper(s))
	}); err != nil {
		t.Fatalf("register: %v", err)
	}

	data, err := reg.Respond(context.Background(), "shout", json.RawMessage(`"hey"`))
	if err != nil {
		t.Fatalf("respond: %v", err)
	}
	if string(data) != `"HEY"` {
		t.Fatalf("unexpected data: %s", data)
	}

	if _, err := reg.Respond(context.Background(), "whisper", nil); !errors.Is(err, ErrNoHandler) {
		t.Fatalf("expected ErrNoHandler got=%v", err)
	}
}

func TestRegisterRejectsBadInput(t *testing.T) {
	testlog.Start(t)
	reg := NewRegistry()
	if err := reg.Register("  ", func(_ context.Context, _ json.RawMessage) (json.RawMessage, error) {
		return nil, nil
	}); err == nil {
		t.Fatalf("blank name accepted")
	}
	if err := reg.Register("ok", nil); err == nil {
		t.Fatalf("nil handler accepted")
	}
}

func TestRegisterBuiltins(t *testing.T) {
	testlog.Start(t)
	reg := NewRegistry()
	statusCalls := 0
	if err := RegisterBuiltins(reg, "1.2.3", func() any {
		statusCalls++
		return map[string]any{"role": "listener"}
	}); err != nil {
		t.Fatalf("builtins: %v", err)
	}

	data, err := reg.Respond(context.Background(), "echo", json.RawMessage(`{"a":1}`))
	if err != nil || string(data) != `{"a":1}` {
		t.Fatalf("echo data=%s err=%v", data, err)
	}
	data, err = reg.Respond(context.Background(), "echo", nil)
	if err != nil || string(data) != "null" {
		t.Fatalf("empty echo data=%s err=%v", data, err)
	}

	data, err = reg.Respond(context.Background(), "relay_info", nil)
	if err != nil {
		t.Fatalf("relay_info: %v", err)
	}
	var info struct {
		Version    string         `json:"version"`
		LocalTools []string       `json:"local_tools"`
		Status     map[string]any `json:"status"`
	}
	if err := json.Unmarshal(data, &info); err != nil {
		t.Fatalf("relay_info decode: %v", err)
	}
	if info.Version != "1.2.3" || info.Status["role"] != "listener" {
		t.Fatalf("relay_info body=%s", data)
	}
	if len(info.LocalTools) != 2 || info.LocalTools[0] != "echo" || info.LocalTools[1] != "relay_info" {
		t.Fatalf("relay_info local tools=%v", info.LocalTools)
	}
	if statusCalls != 1 {
		t.Fatalf("status callback calls=%d", statusCalls)
	}
}
