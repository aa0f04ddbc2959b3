package callbacks

import (
	"testing"

	tele "gopkg.in/telebot.v4"
)

type callbackContext struct {
	tele.Context
	cb *tele.Callback
}

func (c callbackContext) Callback() *tele.Callback { return c.cb }

func TestParseCallbackData(t *testing.T) {
	tests := []struct {
		name        string
		data        string
		wantKey     string
		wantPayload string
	}{
		{"key only", "\\fadmpanel", "admpanel", ""},
		{"key with payload", "\\fadmtoggle|AB123", "admtoggle", "AB123"},
		{"no prefix", "admtoggle|AB123", "admtoggle", "AB123"},
		{"empty", "", "", ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			key, payload := ParseCallbackData(&tele.Callback{Data: tc.data})
			if key != tc.wantKey || payload != tc.wantPayload {
				t.Fatalf("parse(%q) = (%q, %q), want (%q, %q)",
					tc.data, key, payload, tc.wantKey, tc.wantPayload)
			}
		})
	}
}

func TestCallbackKey(t *testing.T) {
	c := callbackContext{cb: &tele.Callback{Data: "\\fadmapprove|AB123"}}
	if got := CallbackKey(c); got != "admapprove" {
		t.Fatalf("key = %q, want admapprove", got)
	}

	c = callbackContext{cb: &tele.Callback{Unique: "admclose", Data: "ignored"}}
	if got := CallbackKey(c); got != "admclose" {
		t.Fatalf("key = %q, want admclose", got)
	}

	if got := CallbackKey(callbackContext{}); got != "" {
		t.Fatalf("key without callback = %q, want empty", got)
	}
}

func TestPayloadString(t *testing.T) {
	c := callbackContext{cb: &tele.Callback{Data: "\\fadmtoggle| AB123 "}}
	if got := PayloadString(c); got != "AB123" {
		t.Fatalf("payload = %q, want AB123", got)
	}
}
