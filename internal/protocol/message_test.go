package protocol

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestParseControl_Resize(t *testing.T) {
	ctl, ok := ParseControl([]byte(`{"resize": {"cols": 204, "rows": 51}}`))
	if !ok {
		t.Fatal("expected control frame")
	}
	if !ctl.Resize.Valid() || ctl.Resize.Cols != 204 || ctl.Resize.Rows != 51 {
		t.Fatalf("unexpected resize: %+v", ctl.Resize)
	}
	if ctl.Refresh {
		t.Fatal("resize frame must not carry refresh")
	}
}

func TestParseControl_Refresh(t *testing.T) {
	ctl, ok := ParseControl([]byte(`{"refresh": true}`))
	if !ok || !ctl.Refresh {
		t.Fatalf("expected refresh control, got ok=%v ctl=%+v", ok, ctl)
	}
}

func TestParseControl_InputFallsThrough(t *testing.T) {
	inputs := []string{
		"ls -la\r",
		"",
		`{"resize": {`,          // malformed JSON pasted mid-frame
		`{"unknown": "thing"}`,  // JSON object without a control key
		`{broken`,               // not JSON at all
		"echo '{\"resize\": 1'", // shell text that merely contains the key
	}
	for _, in := range inputs {
		if _, ok := ParseControl([]byte(in)); ok {
			t.Fatalf("input %q misread as control frame", in)
		}
	}
}

func TestParseControl_ResizeZeroDimensionsInvalid(t *testing.T) {
	ctl, ok := ParseControl([]byte(`{"resize": {"cols": 0, "rows": 51}}`))
	if !ok {
		t.Fatal("expected control frame")
	}
	if ctl.Resize.Valid() {
		t.Fatalf("zero cols must not be a valid winsize: %+v", ctl.Resize)
	}
}

func TestSessionDeadReason(t *testing.T) {
	reason := SessionDeadReason()
	if len(reason) > 123 {
		t.Fatalf("close reason %d bytes, exceeds close frame payload", len(reason))
	}
	var payload ClosePayload
	if err := json.Unmarshal([]byte(reason), &payload); err != nil {
		t.Fatalf("close reason is not JSON: %v", err)
	}
	if payload.Error != "session_dead" {
		t.Fatalf("unexpected error field %q", payload.Error)
	}
	if !strings.Contains(payload.Message, "restored") {
		t.Fatalf("unexpected message %q", payload.Message)
	}
}
