// Package metadata reads generation parameters embedded in image files.
package metadata

import (
	"bufio"
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"unicode/utf8"
)

// ParametersKeyword is the text chunk keyword generators store their settings under.
const ParametersKeyword = "parameters"

const (
	// maxChunkLength bounds the stored size of a single chunk.
	maxChunkLength = 64 << 20
	// maxTextLength bounds the inflated size of a compressed text chunk.
	maxTextLength = 16 << 20
)

var pngSignature = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

// Extractor returns the parameter text embedded in the file at path.
// ok is false when the file carries no parameters or its format is not supported.
type Extractor interface {
	Extract(path string) (params string, ok bool, err error)
}

// PNGExtractor reads the "parameters" entry from a PNG's tEXt, zTXt or iTXt chunks.
type PNGExtractor struct {
	// Keyword overrides ParametersKeyword when set.
	Keyword string
}

func NewPNGExtractor() *PNGExtractor {
	return &PNGExtractor{Keyword: ParametersKeyword}
}

func (e *PNGExtractor) Extract(path string) (string, bool, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", false, fmt.Errorf("failed to open '%s': %w", path, err)
	}
	defer file.Close()

	params, ok, err := e.read(bufio.NewReader(file))
	if err != nil {
		return "", false, fmt.Errorf("failed to read '%s': %w", path, err)
	}
	return params, ok, nil
}

func (e *PNGExtractor) read(r io.Reader) (string, bool, error) {
	signature := make([]byte, len(pngSignature))
	if _, err := io.ReadFull(r, signature); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return "", false, nil
		}
		return "", false, err
	}
	if !bytes.Equal(signature, pngSignature) {
		return "", false, nil
	}

	keyword := e.Keyword
	if keyword == "" {
		keyword = ParametersKeyword
	}

	header := make([]byte, 8)
	for {
		if _, err := io.ReadFull(r, header); err != nil {
			return "", false, fmt.Errorf("truncated chunk header: %w", err)
		}
		length := binary.BigEndian.Uint32(header[:4])
		kind := string(header[4:8])
		if length > maxChunkLength {
			return "", false, fmt.Errorf("chunk %s exceeds %d bytes", kind, maxChunkLength)
		}

		data := make([]byte, length+4)
		if _, err := io.ReadFull(r, data); err != nil {
			return "", false, fmt.Errorf("truncated chunk %s: %w", kind, err)
		}
		body, checksum := data[:length], binary.BigEndian.Uint32(data[length:])
		if crc32.Update(crc32.ChecksumIEEE(header[4:8]), crc32.IEEETable, body) != checksum {
			return "", false, fmt.Errorf("checksum mismatch in chunk %s", kind)
		}

		var (
			name, text string
			err        error
		)
		switch kind {
		case "tEXt":
			name, text, err = parseText(body)
		case "zTXt":
			name, text, err = parseCompressedText(body, keyword)
		case "iTXt":
			name, text, err = parseInternationalText(body, keyword)
		case "IEND":
			return "", false, nil
		default:
			continue
		}
		if err != nil {
			return "", false, fmt.Errorf("malformed chunk %s: %w", kind, err)
		}
		if name == keyword {
			return text, true, nil
		}
	}
}

// tEXt: keyword NUL latin-1 text
func parseText(body []byte) (string, string, error) {
	keyword, text, ok := bytes.Cut(body, []byte{0})
	if !ok {
		return "", "", errors.New("missing keyword separator")
	}
	return latin1(keyword), latin1(text), nil
}

// zTXt: keyword NUL method compressed-text. The text is only inflated when the keyword matches.
func parseCompressedText(body []byte, want string) (string, string, error) {
	keyword, rest, ok := bytes.Cut(body, []byte{0})
	if !ok || len(rest) < 1 {
		return "", "", errors.New("missing keyword separator")
	}
	name := latin1(keyword)
	if name != want {
		return name, "", nil
	}

	text, err := inflate(rest[1:])
	if err != nil {
		return "", "", err
	}
	return name, latin1(text), nil
}

// iTXt: keyword NUL flag method language NUL translated NUL utf-8 text
func parseInternationalText(body []byte, want string) (string, string, error) {
	keyword, rest, ok := bytes.Cut(body, []byte{0})
	if !ok || len(rest) < 2 {
		return "", "", errors.New("missing keyword separator")
	}
	name := latin1(keyword)
	if name != want {
		return name, "", nil
	}
	compressed := rest[0] == 1
	rest = rest[2:]

	_, rest, ok = bytes.Cut(rest, []byte{0})
	if !ok {
		return "", "", errors.New("missing language tag")
	}
	_, text, ok := bytes.Cut(rest, []byte{0})
	if !ok {
		return "", "", errors.New("missing translated keyword")
	}

	if compressed {
		inflated, err := inflate(text)
		if err != nil {
			return "", "", err
		}
		text = inflated
	}
	return name, string(text), nil
}

func inflate(data []byte) ([]byte, error) {
	reader, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	text, err := io.ReadAll(io.LimitReader(reader, maxTextLength+1))
	if err != nil {
		return nil, err
	}
	if len(text) > maxTextLength {
		return nil, fmt.Errorf("inflated text exceeds %d bytes", maxTextLength)
	}
	return text, nil
}

func latin1(b []byte) string {
	if !bytes.ContainsFunc(b, func(r rune) bool { return r >= utf8.RuneSelf }) {
		return string(b)
	}
	runes := make([]rune, len(b))
	for i, c := range b {
		runes[i] = rune(c)
	}
	return string(runes)
}
