package storage

import (
	"bytes"
	"net/http"
	"testing"
	"time"
)

func TestBodyCodec(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body []byte
	}{
		{"empty", nil},
		{"json", []byte(`{"offline":true}`)},
		{"repetitive", bytes.Repeat([]byte("poster "), 1000)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := DecodeBody(EncodeBody(tt.body))
			if err != nil {
				t.Fatal(err)
			}
			if !bytes.Equal(got, tt.body) {
				t.Errorf("round trip changed body: %q", got)
			}
		})
	}
}

func TestDecodeBodyCorrupt(t *testing.T) {
	t.Parallel()
	if _, err := DecodeBody([]byte{0xff, 0xff, 0xff, 0xff, 0xff}); err == nil {
		t.Error("expected error for corrupt body")
	}
}

func TestHeaderCodec(t *testing.T) {
	t.Parallel()
	h := http.Header{"Content-Type": {"image/svg+xml"}, "Cache-Control": {"public, max-age=86400"}}
	s, err := EncodeHeader(h)
	if err != nil {
		t.Fatal(err)
	}
	got, err := DecodeHeader(s)
	if err != nil {
		t.Fatal(err)
	}
	if got.Get("Cache-Control") != "public, max-age=86400" {
		t.Errorf("header = %v", got)
	}

	empty, err := DecodeHeader("")
	if err != nil || empty == nil || len(empty) != 0 {
		t.Errorf("empty header = %v, %v", empty, err)
	}
}

func TestUnixNanoZero(t *testing.T) {
	t.Parallel()
	if UnixNano(time.Time{}) != 0 {
		t.Error("zero time should map to 0")
	}
	if !FromUnixNano(0).IsZero() {
		t.Error("0 should map to zero time")
	}
	now := time.Now()
	if !FromUnixNano(UnixNano(now)).Equal(now) {
		t.Error("round trip changed time")
	}
}
