package gonet

import (
	"bufio"
	"io"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
)

func acceptEncoding(brotli bool) string {
	if brotli {
		return "gzip, deflate, br, zstd"
	}
	return "gzip, deflate, zstd"
}

// decodeBody wraps r with decoders for the Content-Encoding of a response.
// Encodings are listed in the order they were applied, so decoders are
// stacked in reverse order. Unknown encodings are passed through.
//
// Decoders are created on the first read which returns data, an empty body is
// reported as such whatever its declared encoding (HEAD, 204 and 304 responses
// commonly carry one).
func decodeBody(r io.ReadCloser, contentEncoding string, brotliEnabled bool) io.ReadCloser {
	if contentEncoding == "" {
		return r
	}
	return &decoder{
		src:       bufio.NewReader(r),
		encodings: strings.Split(contentEncoding, ","),
		brotli:    brotliEnabled,
	}
}

type decoder struct {
	src       *bufio.Reader
	encodings []string
	brotli    bool
	body      io.ReadCloser
}

func (d *decoder) Read(b []byte) (int, error) {
	if d.body == nil {
		if _, err := d.src.Peek(1); err != nil {
			return 0, err
		}
		body, err := newDecoder(d.src, d.encodings, d.brotli)
		if err != nil {
			return 0, &decodeError{err: err, encoded: true}
		}
		d.body = body
	}
	return d.body.Read(b)
}

func (d *decoder) Close() error {
	if d.body != nil {
		return d.body.Close()
	}
	return nil
}

func newDecoder(r io.Reader, encodings []string, brotliEnabled bool) (io.ReadCloser, error) {
	body := io.NopCloser(r)
	for i := len(encodings) - 1; i >= 0; i-- {
		var err error
		switch strings.ToLower(strings.TrimSpace(encodings[i])) {
		case "gzip", "x-gzip":
			body, err = gzip.NewReader(body)
		case "deflate":
			body, err = newDeflateReader(body)
		case "br":
			if brotliEnabled {
				body = io.NopCloser(brotli.NewReader(body))
			}
		case "zstd":
			var d *zstd.Decoder
			d, err = zstd.NewReader(body)
			if err == nil {
				body = d.IOReadCloser()
			}
		case "identity", "":
		default:
			return io.NopCloser(r), nil
		}
		if err != nil {
			return nil, err
		}
	}
	return body, nil
}

// newDeflateReader decodes deflate bodies. The encoding is specified as zlib
// wrapped data but some servers send raw deflate streams.
func newDeflateReader(r io.Reader) (io.ReadCloser, error) {
	br := bufio.NewReader(r)
	header, err := br.Peek(2)
	if err != nil && err != io.EOF {
		return nil, err
	}
	if len(header) == 2 && isZlibHeader(header[0], header[1]) {
		return zlib.NewReader(br)
	}
	return flate.NewReader(br), nil
}

func isZlibHeader(cmf, flg byte) bool {
	return cmf&0x0f == 8 && (uint16(cmf)<<8|uint16(flg))%31 == 0
}
