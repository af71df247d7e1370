package events

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestIsCharKey(t *testing.T) {
	cases := []struct {
		key  string
		want bool
	}{
		{"a", true},
		{"A", true},
		{"1", true},
		{"$", true},
		{KeySpace, true},
		{"Key.ctrl", false},
		{"Key.enter", false},
		{"", false},
	}
	for _, tc := range cases {
		if got := IsCharKey(tc.key); got != tc.want {
			t.Fatalf("IsCharKey(%q) = %t, want %t", tc.key, got, tc.want)
		}
	}
}

func TestCharForKey(t *testing.T) {
	if got := CharForKey(KeySpace); got != " " {
		t.Fatalf("expected space character, got %q", got)
	}
	if got := CharForKey("x"); got != "x" {
		t.Fatalf("expected identity for plain keys, got %q", got)
	}
}

func TestPassthroughPreservesPayload(t *testing.T) {
	pressed := false
	raw := Raw{TS: 1.25, Device: DeviceMouse, Type: TypeClick, X: 10, Y: 20, Button: "left", Pressed: &pressed}

	out := Passthrough(raw)
	if out.TS != raw.TS || out.Device != raw.Device || out.Type != raw.Type {
		t.Fatalf("expected discriminators preserved, got %+v", out)
	}
	if out.X != 10 || out.Y != 20 || out.Button != "left" {
		t.Fatalf("expected mouse payload preserved, got %+v", out)
	}
	if out.Pressed == nil || *out.Pressed {
		t.Fatalf("expected pressed=false preserved, got %+v", out)
	}
}

func TestKeyboardWireFormatOmitsMouseFields(t *testing.T) {
	ev := Compressed{TS: 3.5, Device: DeviceKeyboard, Type: TypeKeyClick, Key: "Key.enter", Duration: 0.1}
	data, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	for _, field := range []string{"button", "pressed", "start_x", "num_moves", "string"} {
		if strings.Contains(string(data), `"`+field+`"`) {
			t.Fatalf("expected %q to be omitted from keyboard record: %s", field, data)
		}
	}
}

func TestWriterEmitsOneLinePerEvent(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	evs := []Compressed{
		{TS: 1, Device: DeviceKeyboard, Type: TypeTypedString, String: "hi", NumChars: 2, Duration: 0.2},
		{TS: 2, Device: DeviceMouse, Type: TypeMouseClick, Button: "left", X: 5, Y: 6, Duration: 0.1},
	}
	for _, ev := range evs {
		if err := w.Emit(ev); err != nil {
			t.Fatalf("emit: %v", err)
		}
	}
	if w.Count() != 2 {
		t.Fatalf("expected 2 written events, got %d", w.Count())
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 JSONL lines, got %d: %q", len(lines), buf.String())
	}

	var decoded []Compressed
	if err := ReadCompressed(strings.NewReader(buf.String()), func(ev Compressed) error {
		decoded = append(decoded, ev)
		return nil
	}); err != nil {
		t.Fatalf("read compressed: %v", err)
	}
	if len(decoded) != 2 || decoded[0].String != "hi" || decoded[1].Button != "left" {
		t.Fatalf("unexpected round-trip result: %+v", decoded)
	}
}

func TestReadRawSkipsBlankLinesAndReportsLineNumbers(t *testing.T) {
	input := `{"ts":1.0,"device":"keyboard","type":"press","key":"a"}

{"ts":2.0,"device":"mouse","type":"move","x":3,"y":4}
`
	var got []Raw
	if err := ReadRaw(strings.NewReader(input), func(ev Raw) error {
		got = append(got, ev)
		return nil
	}); err != nil {
		t.Fatalf("read raw: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 events, got %d", len(got))
	}
	if got[0].Key != "a" || got[1].X != 3 {
		t.Fatalf("unexpected decoded events: %+v", got)
	}

	err := ReadRaw(strings.NewReader("{\"ts\":1}\nnot-json\n"), func(Raw) error { return nil })
	if err == nil || !strings.Contains(err.Error(), "line 2") {
		t.Fatalf("expected line-numbered decode error, got %v", err)
	}
}

func TestRedactorAppliesPatterns(t *testing.T) {
	redactor, err := NewRedactor(true, []string{`secret-\d+`})
	if err != nil {
		t.Fatalf("new redactor: %v", err)
	}

	input := "mail jane@example.com code secret-123"
	out := redactor.ApplyString(input)
	if strings.Contains(out, "jane@example.com") {
		t.Fatalf("expected email to be redacted: %s", out)
	}
	if strings.Contains(out, "secret-123") {
		t.Fatalf("expected custom token to be redacted: %s", out)
	}
}

func TestRedactorNamedShorthands(t *testing.T) {
	redactor, err := NewRedactor(false, []string{"jwt"})
	if err != nil {
		t.Fatalf("new redactor: %v", err)
	}
	out := redactor.ApplyString("bearer eyJabc.eyJdef.sig123")
	if strings.Contains(out, "eyJabc") {
		t.Fatalf("expected jwt shorthand to redact, got %s", out)
	}
}

func TestRedactorInvalidPattern(t *testing.T) {
	if _, err := NewRedactor(false, []string{"("}); err == nil {
		t.Fatalf("expected error for invalid pattern")
	}
}

func TestRedactorApplyTargetsTypedStringsOnly(t *testing.T) {
	redactor, err := NewRedactor(true, nil)
	if err != nil {
		t.Fatalf("new redactor: %v", err)
	}

	typed := Compressed{Type: TypeTypedString, String: "me@example.com", NumChars: 14}
	out := redactor.Apply(typed)
	if out.String != "[REDACTED]" {
		t.Fatalf("expected typed text redacted, got %q", out.String)
	}
	if out.NumChars != 14 {
		t.Fatalf("expected character count preserved, got %d", out.NumChars)
	}

	click := Compressed{Type: TypeMouseClick, Button: "left"}
	if got := redactor.Apply(click); got.Button != "left" {
		t.Fatalf("expected non-typed records untouched, got %+v", got)
	}

	var zero Redactor
	if got := zero.Apply(typed); got.String != typed.String {
		t.Fatalf("expected zero-value redactor to be a no-op")
	}
}
