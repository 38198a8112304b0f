package protocol

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

// Conn frames bytes and lines over one stream. All reads share a single
// buffer so bytes following a line are never lost. It is not safe for
// concurrent use; the protocol's turn-taking is the only coordination.
type Conn struct {
	r *bufio.Reader
	w io.Writer
}

func NewConn(rw io.ReadWriter) *Conn {
	return &Conn{r: bufio.NewReader(rw), w: rw}
}

func (c *Conn) ReadByte() (byte, error) {
	return c.r.ReadByte()
}

func (c *Conn) WriteByte(b byte) error {
	return c.Write([]byte{b})
}

// ReadFull reads exactly n bytes.
func (c *Conn) ReadFull(n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(c.r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func (c *Conn) Write(p []byte) error {
	_, err := c.w.Write(p)
	return err
}

// ReadLine reads one '\n'-terminated UTF-8 line without its terminator.
func (c *Conn) ReadLine() (string, error) {
	line, err := c.r.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && line != "" {
			return "", io.ErrUnexpectedEOF
		}
		return "", err
	}
	line = strings.TrimSuffix(line, "\n")
	line = strings.TrimSuffix(line, "\r")
	if !utf8.ValidString(line) {
		return "", fmt.Errorf("%w: line is not valid UTF-8", ErrMalformed)
	}
	return line, nil
}

// WriteLine writes s followed by '\n'.
func (c *Conn) WriteLine(s string) error {
	if strings.ContainsAny(s, "\r\n") {
		return fmt.Errorf("%w: line contains a line break", ErrMalformed)
	}
	if !utf8.ValidString(s) {
		return fmt.Errorf("%w: line is not valid UTF-8", ErrMalformed)
	}
	return c.Write([]byte(s + "\n"))
}
