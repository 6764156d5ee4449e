package cache

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
)

// The valkey client speaks RESP2. Commands go out as arrays of bulk strings;
// the replies the engine cares about are simple strings, integers, bulk
// strings and the nil bulk that marks a missing key.

type replyKind int

const (
	kindSimple replyKind = iota
	kindInt
	kindBulk
	kindNil
)

type reply struct {
	kind replyKind
	data []byte
}

// serverError is an error the server itself returned (a "-" reply). It is a
// definitive answer, not a transport failure, and is never retried.
type serverError string

func (e serverError) Error() string { return string(e) }

// encodeCommand frames a command and its arguments as a RESP array of bulk
// strings and flushes the writer.
func encodeCommand(w *bufio.Writer, args ...[]byte) error {
	if _, err := w.WriteString("*" + strconv.Itoa(len(args)) + "\r\n"); err != nil {
		return err
	}
	for _, arg := range args {
		if _, err := w.WriteString("$" + strconv.Itoa(len(arg)) + "\r\n"); err != nil {
			return err
		}
		if _, err := w.Write(arg); err != nil {
			return err
		}
		if _, err := w.WriteString("\r\n"); err != nil {
			return err
		}
	}
	return w.Flush()
}

// decodeReply reads one reply frame from the server.
func decodeReply(r *bufio.Reader) (reply, error) {
	prefix, err := r.ReadByte()
	if err != nil {
		return reply{}, err
	}
	line, err := readLine(r)
	if err != nil {
		return reply{}, err
	}
	switch prefix {
	case '+':
		return reply{kind: kindSimple, data: line}, nil
	case ':':
		return reply{kind: kindInt, data: line}, nil
	case '-':
		return reply{}, serverError(line)
	case '$':
		size, err := strconv.Atoi(string(line))
		if err != nil {
			return reply{}, fmt.Errorf("bad bulk length %q", line)
		}
		if size < 0 {
			return reply{kind: kindNil}, nil
		}
		buf := make([]byte, size+2) // payload plus trailing CRLF
		if _, err := io.ReadFull(r, buf); err != nil {
			return reply{}, err
		}
		if buf[size] != '\r' || buf[size+1] != '\n' {
			return reply{}, fmt.Errorf("bulk string missing terminator")
		}
		return reply{kind: kindBulk, data: buf[:size]}, nil
	default:
		return reply{}, fmt.Errorf("unsupported reply prefix %q", prefix)
	}
}

func readLine(r *bufio.Reader) ([]byte, error) {
	line, err := r.ReadBytes('\n')
	if err != nil {
		return nil, err
	}
	n := len(line)
	if n < 2 || line[n-2] != '\r' {
		return nil, fmt.Errorf("malformed reply line")
	}
	return line[:n-2], nil
}
