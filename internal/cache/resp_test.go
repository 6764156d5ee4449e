package cache

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
)

func TestEncodeCommandWireFormat(t *testing.T) {
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)
	if err := encodeCommand(w, []byte("SET"), []byte("k"), []byte("v1")); err != nil {
		t.Fatalf("encodeCommand: %v", err)
	}
	want := "*3\r\n$3\r\nSET\r\n$1\r\nk\r\n$2\r\nv1\r\n"
	if got := buf.String(); got != want {
		t.Fatalf("wire frame = %q, want %q", got, want)
	}
}

func TestDecodeReplyKinds(t *testing.T) {
	cases := []struct {
		name string
		in   string
		kind replyKind
		data string
	}{
		{"simple", "+OK\r\n", kindSimple, "OK"},
		{"integer", ":2\r\n", kindInt, "2"},
		{"bulk", "$5\r\nhello\r\n", kindBulk, "hello"},
		{"empty bulk", "$0\r\n\r\n", kindBulk, ""},
		{"nil bulk", "$-1\r\n", kindNil, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rep, err := decodeReply(bufio.NewReader(strings.NewReader(tc.in)))
			if err != nil {
				t.Fatalf("decodeReply(%q): %v", tc.in, err)
			}
			if rep.kind != tc.kind || string(rep.data) != tc.data {
				t.Fatalf("decodeReply(%q) = kind %d data %q, want kind %d data %q",
					tc.in, rep.kind, rep.data, tc.kind, tc.data)
			}
		})
	}
}

func TestDecodeReplyServerError(t *testing.T) {
	_, err := decodeReply(bufio.NewReader(strings.NewReader("-ERR unknown command\r\n")))
	var srvErr serverError
	if !errors.As(err, &srvErr) {
		t.Fatalf("expected serverError, got %v", err)
	}
	if got := srvErr.Error(); got != "ERR unknown command" {
		t.Fatalf("server error text = %q", got)
	}
}

func TestDecodeReplyTruncatedBulk(t *testing.T) {
	_, err := decodeReply(bufio.NewReader(strings.NewReader("$10\r\nshort\r\n")))
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("expected unexpected EOF, got %v", err)
	}
}
