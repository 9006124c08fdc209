package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestJSONOutputCarriesFields(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: "info", Format: "json", Output: &buf})

	l.With("userId", "u1").WithFields(map[string]interface{}{"planId": "p1"}).Infof("completed day %d", 3)

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not json: %v (%q)", err, buf.String())
	}
	if entry["message"] != "completed day 3" || entry["userId"] != "u1" || entry["planId"] != "p1" {
		t.Errorf("unexpected entry: %v", entry)
	}
	if entry["level"] != "info" {
		t.Errorf("level = %v", entry["level"])
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: "warn", Output: &buf})

	l.Info("dropped")
	l.Debugf("dropped too")
	if buf.Len() != 0 {
		t.Fatalf("info logged at warn level: %q", buf.String())
	}
	l.ErrorWithErr(errors.New("boom"), "kept")
	if !strings.Contains(buf.String(), `"error":"boom"`) {
		t.Errorf("error field missing: %q", buf.String())
	}
}
