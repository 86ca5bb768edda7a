package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/vango-dev/ion/internal/config"
	"github.com/vango-dev/ion/pkg/client"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestEncodeIntArgs(t *testing.T) {
	tests := []struct {
		args []string
		want []byte
	}{
		{nil, []byte{0x80}},
		{[]string{"4", "4"}, []byte{0x82, 0x04, 0x04}},
		{[]string{"-1", "0x10"}, []byte{0x82, 0x20, 0x10}},
	}
	for _, tt := range tests {
		got, err := encodeIntArgs(tt.args)
		if err != nil {
			t.Fatalf("encodeIntArgs(%v): %v", tt.args, err)
		}
		if !bytes.Equal(got, tt.want) {
			t.Errorf("encodeIntArgs(%v) = %x, want %x", tt.args, got, tt.want)
		}
	}
	if _, err := encodeIntArgs([]string{"four"}); err == nil {
		t.Error("encodeIntArgs accepted a non-integer")
	}
}

func TestInspect(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"payload", []string{"inspect", "820404"}, "[4, 4]\n"},
		{"spaced", []string{"inspect", "82 04", "04"}, "[4, 4]\n"},
		{"data frame", []string{"inspect", "--frame", "0008"}, "DATA\n8\n"},
		{"end frame", []string{"inspect", "--frame", "01"}, "END\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(t, tt.args...)
			if err != nil {
				t.Fatal(err)
			}
			if out != tt.want {
				t.Errorf("output = %q, want %q", out, tt.want)
			}
		})
	}

	if _, err := execute(t, "inspect", "zz"); err == nil {
		t.Error("inspect accepted invalid hex")
	}
}

func TestTicketRoundTrip(t *testing.T) {
	out, err := execute(t, "ticket", "encode", "00ff10")
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 || !strings.HasPrefix(lines[1], "ion!ticket#") {
		t.Fatalf("encode output = %q", out)
	}

	for _, in := range lines {
		got, err := execute(t, "ticket", "decode", in)
		if err != nil {
			t.Fatalf("decode %q: %v", in, err)
		}
		if strings.TrimSpace(got) != "00ff10" {
			t.Errorf("decode %q = %q, want 00ff10", in, got)
		}
	}
}

func TestVersionShort(t *testing.T) {
	out, err := execute(t, "version", "--short")
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(out) != version {
		t.Errorf("version = %q", out)
	}
}

func TestServeAndCall(t *testing.T) {
	srv, err := buildServer(config.New(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatal(err)
	}
	ts := httptest.NewServer(srv)
	defer ts.Close()

	c, err := client.New(ts.URL, nil)
	if err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	args, _ := encodeIntArgs([]string{"4", "4"})
	if err := runCall(context.Background(), &out, c, "Calculator", "Add", args, false); err != nil {
		t.Fatal(err)
	}
	if out.String() != "8\n" {
		t.Errorf("Add output = %q, want 8", out.String())
	}

	out.Reset()
	args, _ = encodeIntArgs([]string{"3"})
	if err := runCall(context.Background(), &out, c, "Calculator", "Count", args, true); err != nil {
		t.Fatal(err)
	}
	if out.String() != "0\n1\n2\n" {
		t.Errorf("Count output = %q", out.String())
	}

	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("metrics status = %d", resp.StatusCode)
	}
	if !strings.Contains(string(body), `ion_calls_total{interface="Calculator",method="Add",status="ok"} 1`) {
		t.Errorf("metrics missing Add call:\n%s", body)
	}
}
