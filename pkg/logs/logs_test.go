package logs

import (
	"encoding/json"
	"log/slog"
	"testing"
	"time"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"WARN", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := parseLevel(tt.in); got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestLokiEncode(t *testing.T) {
	lw := &lokiWriter{labels: map[string]string{"service": "wellness_intake", "env": "test"}}

	body, err := lw.encode(time.Unix(0, 42), []byte(`{"msg":"hi \"there\""}`+"\n"))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	var push lokiPush
	if err := json.Unmarshal(body, &push); err != nil {
		t.Fatalf("push body is not JSON: %v", err)
	}
	if len(push.Streams) != 1 {
		t.Fatalf("expected one stream, got %d", len(push.Streams))
	}
	s := push.Streams[0]
	if s.Stream["service"] != "wellness_intake" || s.Stream["env"] != "test" {
		t.Errorf("unexpected labels: %v", s.Stream)
	}
	if s.Values[0][0] != "42" {
		t.Errorf("timestamp = %q, want 42", s.Values[0][0])
	}
	if s.Values[0][1] != `{"msg":"hi \"there\""}` {
		t.Errorf("line = %q", s.Values[0][1])
	}
}
