// Package chunked decodes the HTTP/1.1 chunked transfer encoding for
// response bodies. Trailer sections are not consumed.
package chunked

import (
	"bufio"
	"errors"
	"io"
)

func NewReader(r io.Reader) io.Reader {
	br, ok := r.(*bufio.Reader)
	if !ok {
		br = bufio.NewReader(r)
	}
	return &reader{Reader: br}
}

type reader struct {
	*bufio.Reader
	chunk     io.Reader
	read, siz int64
}

func (c *reader) readChunkHeader() (size uint64, err error) {
	cnt := 0
	isPref := true
	for isPref {
		var line []byte
		line, isPref, err = c.ReadLine()
		if err != nil {
			if err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			return 0, err
		}
		for _, b := range line {
			cnt++
			switch {
			case '0' <= b && b <= '9':
				b = b - '0'
			case 'a' <= b && b <= 'f':
				b = b - 'a' + 10
			case 'A' <= b && b <= 'F':
				b = b - 'A' + 10
			default:
				return 0, errors.New("invalid byte in chunk length")
			}
			size <<= 4
			size |= uint64(b)
		}
		if cnt >= 16 {
			return 0, errors.New("http chunk length too large")
		}
	}
	return
}

func (c *reader) Read(p []byte) (n int, err error) {
	if c.chunk == nil {
		size, err := c.readChunkHeader()
		if err != nil {
			return n, err
		}
		if size == 0 {
			return 0, io.EOF
		}
		c.chunk = io.LimitReader(c.Reader, int64(size))
		c.siz = int64(size)
	}
	n, err = c.chunk.Read(p)
	c.read += int64(n)
	if err == io.EOF {
		if c.read != c.siz {
			return n, io.ErrUnexpectedEOF
		}
		err = nil
		cr, _ := c.Reader.ReadByte()
		lf, err := c.Reader.ReadByte()
		if err != nil {
			if err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			return n, err
		}
		if cr != '\r' || lf != '\n' {
			return n, errors.New("malformed chunked encoding")
		}
		c.chunk = nil
		c.read = 0
	}
	return
}
