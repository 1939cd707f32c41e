package backend

import (
	"bytes"
	"errors"
	"io"
	"testing"
)

func expectToRead(t *testing.T, reader io.Reader, expected []byte) {
	t.Helper()
	var scratch [1024]byte
	n, err := reader.Read(scratch[:])
	if err != nil {
		t.Errorf("expected read to succeed, got: %v", err)
	} else if !bytes.Equal(scratch[:n], expected) {
		t.Errorf("expected read to yield %q, got: %q", expected, scratch[:n])
	}
}

func expectReadEOF(t *testing.T, reader io.Reader) {
	t.Helper()
	var scratch [1024]byte
	n, err := reader.Read(scratch[:])
	if !errors.Is(err, io.EOF) {
		t.Errorf("expected read to give EOF, got: %v", err)
	} else if n != 0 {
		t.Errorf("expected read to read nothing, read %q", scratch[:n])
	}
}

func TestLineReader(t *testing.T) {
	buf := bytes.NewBuffer(nil)
	header := "timestamp_ms, Solar Power (W)\n"
	row := "1000, 1.5\n"
	buf.WriteString(header)
	buf.WriteString(row)
	l := NewLineReader(buf)
	expectToRead(t, l, []byte(header))
	expectToRead(t, l, []byte(row))
	// A partially-written record must not be handed to the parser.
	buf.WriteString("2000, ")
	expectReadEOF(t, l)
	buf.WriteString("2.5\n")
	expectToRead(t, l, []byte("2000, 2.5\n"))
	buf.WriteString("30")
	expectReadEOF(t, l)
	buf.WriteString("00")
	expectReadEOF(t, l)
	buf.WriteString(", 3.5\n40")
	expectToRead(t, l, []byte("3000, 3.5\n"))
}
