// Package sse decodes chat-completion Server-Sent Events into text fragments.
package sse

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"strings"
)

const (
	dataPrefix = "data: "
	// Sentinel is the data payload that ends a completion stream.
	Sentinel = "[DONE]"
)

// Chunk is the part of a streamed completion frame we read.
type Chunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

// Content returns choices[0].delta.content, or "" when absent.
func (c *Chunk) Content() string {
	if len(c.Choices) > 0 {
		return c.Choices[0].Delta.Content
	}
	return ""
}

// Parser decodes an SSE byte stream fed in arbitrary chunks.
// The zero value is ready to use.
type Parser struct {
	buf  []byte
	done bool
}

// Done reports whether the end-of-stream sentinel was seen.
func (p *Parser) Done() bool {
	return p.done
}

// Feed appends b to the buffer and returns every fragment that can be decoded so far.
// A complete line whose JSON does not parse is put back in front of the buffer
// and decoding pauses until more bytes arrive.
func (p *Parser) Feed(b []byte) []string {
	if p.done {
		return nil
	}
	p.buf = append(p.buf, b...)

	var out []string
	for {
		idx := bytes.IndexByte(p.buf, '\n')
		if idx < 0 {
			return out
		}
		line := p.buf[:idx]
		rest := p.buf[idx+1:]
		line = bytes.TrimSuffix(line, []byte("\r"))

		text, status := decodeLine(line)
		switch status {
		case lineSkip:
			p.buf = rest
		case lineDone:
			p.done = true
			p.buf = nil
			return out
		case lineText:
			p.buf = rest
			if text != "" {
				out = append(out, text)
			}
		case lineBad:
			// The line bytes still sit at the head of p.buf followed by '\n'.
			return out
		}
	}
}

// Flush decodes whatever is left once the input has ended: buffered lines and a
// final unterminated line. Lines that still fail to parse are dropped.
func (p *Parser) Flush() []string {
	if p.done || len(p.buf) == 0 {
		p.buf = nil
		return nil
	}
	var out []string
	for _, raw := range strings.Split(string(p.buf), "\n") {
		text, status := decodeLine([]byte(strings.TrimSuffix(raw, "\r")))
		if status == lineDone {
			p.done = true
			break
		}
		if status == lineText && text != "" {
			out = append(out, text)
		}
	}
	p.buf = nil
	return out
}

type lineStatus int

const (
	lineSkip lineStatus = iota
	lineText
	lineDone
	lineBad
)

func decodeLine(line []byte) (string, lineStatus) {
	if len(line) == 0 || line[0] == ':' {
		return "", lineSkip
	}
	if !bytes.HasPrefix(line, []byte(dataPrefix)) {
		return "", lineSkip
	}
	payload := bytes.TrimSpace(line[len(dataPrefix):])
	if string(payload) == Sentinel {
		return "", lineDone
	}
	var chunk Chunk
	if err := json.Unmarshal(payload, &chunk); err != nil {
		// Only malformed JSON may be a partial write. Valid JSON of another shape carries no text.
		var syntaxErr *json.SyntaxError
		if errors.As(err, &syntaxErr) {
			return "", lineBad
		}
		return "", lineSkip
	}
	return chunk.Content(), lineText
}

// Reader turns an SSE body into a lazy sequence of text fragments.
type Reader struct {
	src     io.Reader
	parser  Parser
	pending []string
	buf     []byte
	eof     bool
}

// NewReader wraps r.
func NewReader(r io.Reader) *Reader {
	return &Reader{src: r, buf: make([]byte, 4096)}
}

// Next returns the next fragment. It returns io.EOF after the sentinel or at the end of input.
func (r *Reader) Next() (string, error) {
	for len(r.pending) == 0 {
		if r.eof || r.parser.Done() {
			return "", io.EOF
		}
		n, err := r.src.Read(r.buf)
		if n > 0 {
			r.pending = append(r.pending, r.parser.Feed(r.buf[:n])...)
		}
		if errors.Is(err, io.EOF) {
			r.eof = true
			r.pending = append(r.pending, r.parser.Flush()...)
		} else if err != nil {
			return "", err
		}
	}
	next := r.pending[0]
	r.pending = r.pending[1:]
	return next, nil
}

// Process calls fn for every fragment until the stream ends.
func Process(r io.Reader, fn func(fragment string)) error {
	reader := NewReader(r)
	for {
		fragment, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		fn(fragment)
	}
}

// Transcript accumulates fragments into one assistant message.
type Transcript struct {
	b strings.Builder
}

// Append adds fragment to the transcript.
func (t *Transcript) Append(fragment string) {
	t.b.WriteString(fragment)
}

// String returns the text accumulated so far.
func (t *Transcript) String() string {
	return t.b.String()
}

// Collect reads the whole stream and returns the assembled text. Fragments read
// before a transport error are returned alongside it.
func Collect(r io.Reader) (string, error) {
	var t Transcript
	err := Process(r, t.Append)
	return t.String(), err
}
