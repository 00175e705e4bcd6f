package network

import (
	"bufio"
	"compress/flate"
	"compress/gzip"
	"compress/zlib"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/andybalholm/brotli"
)

// acceptEncoding is advertised on every request that does not choose its own.
const acceptEncoding = "br, gzip, deflate"

// decoder wraps one Content-Encoding layer. release, when non-nil, hands
// pooled state back once the body is closed.
type decoder func(r io.Reader) (rc io.ReadCloser, release func(), err error)

var decoders = map[string]decoder{
	"gzip":    decodeGzip,
	"x-gzip":  decodeGzip,
	"br":      decodeBrotli,
	"deflate": decodeDeflate,
}

var (
	gzipPool   sync.Pool
	brotliPool = sync.Pool{New: func() any { return brotli.NewReader(nil) }}
)

func decodeGzip(r io.Reader) (io.ReadCloser, func(), error) {
	zr, _ := gzipPool.Get().(*gzip.Reader)
	var err error
	if zr == nil {
		zr, err = gzip.NewReader(r)
	} else {
		err = zr.Reset(r)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("gzip initialization error: %w", err)
	}
	return zr, func() {
		// Drop the reference to the response body before pooling.
		_ = zr.Reset(strings.NewReader(""))
		gzipPool.Put(zr)
	}, nil
}

func decodeBrotli(r io.Reader) (io.ReadCloser, func(), error) {
	br := brotliPool.Get().(*brotli.Reader)
	if err := br.Reset(r); err != nil {
		return nil, nil, fmt.Errorf("brotli initialization error: %w", err)
	}
	return io.NopCloser(br), func() {
		_ = br.Reset(strings.NewReader(""))
		brotliPool.Put(br)
	}, nil
}

// decodeDeflate accepts both zlib wrapped (RFC 1950) and raw (RFC 1951)
// deflate, since servers disagree on what "deflate" means.
func decodeDeflate(r io.Reader) (io.ReadCloser, func(), error) {
	br := bufio.NewReader(r)
	if hdr, err := br.Peek(2); err == nil && isZlibHeader(hdr) {
		zr, err := zlib.NewReader(br)
		if err != nil {
			return nil, nil, fmt.Errorf("deflate initialization error: %w", err)
		}
		return zr, nil, nil
	}
	return flate.NewReader(br), nil, nil
}

// isZlibHeader checks the CMF/FLG pair: deflate method and a valid check sum.
func isZlibHeader(b []byte) bool {
	return b[0]&0x0f == 8 && (uint16(b[0])<<8|uint16(b[1]))%31 == 0
}

// decodedBody closes the decoder and the layer beneath it.
type decodedBody struct {
	io.ReadCloser
	raw     io.ReadCloser
	release func()
}

func (b *decodedBody) Close() error {
	err := errors.Join(b.ReadCloser.Close(), b.raw.Close())
	if b.release != nil {
		b.release()
		b.release = nil
	}
	return err
}

// contentCodings lists the codings of resp in the order they were applied,
// accepting both repeated headers and comma separated values.
func contentCodings(h http.Header) []string {
	var codings []string
	for _, v := range h.Values("Content-Encoding") {
		for _, c := range strings.Split(v, ",") {
			codings = append(codings, strings.ToLower(strings.TrimSpace(c)))
		}
	}
	return codings
}

// DecompressResponse replaces resp.Body with a stream that undoes every
// Content-Encoding layer, outermost first. On success the Content-Encoding and
// Content-Length headers are removed and resp.Uncompressed is set. After an
// error the body must be treated as unusable.
func DecompressResponse(resp *http.Response) error {
	if resp == nil || resp.Body == nil {
		return nil
	}
	codings := contentCodings(resp.Header)
	if len(codings) == 0 {
		return nil
	}

	for i := len(codings) - 1; i >= 0; i-- {
		coding := codings[i]
		if coding == "identity" || coding == "" {
			continue
		}
		decode, ok := decoders[coding]
		if !ok {
			return fmt.Errorf("unsupported Content-Encoding layer: %s", coding)
		}
		rc, release, err := decode(resp.Body)
		if err != nil {
			return err
		}
		resp.Body = &decodedBody{ReadCloser: rc, raw: resp.Body, release: release}
	}

	resp.Header.Del("Content-Encoding")
	resp.Header.Del("Content-Length")
	resp.ContentLength = -1
	resp.Uncompressed = true
	return nil
}

// CompressionMiddleware is an http.RoundTripper that advertises brotli, gzip
// and deflate and decodes responses before the portal parsers see them.
type CompressionMiddleware struct {
	// Transport defaults to http.DefaultTransport when nil.
	Transport http.RoundTripper
}

// NewCompressionMiddleware wraps transport with response decompression.
func NewCompressionMiddleware(transport http.RoundTripper) *CompressionMiddleware {
	if transport == nil {
		transport = http.DefaultTransport
	}
	return &CompressionMiddleware{Transport: transport}
}

// RoundTrip implements http.RoundTripper.
func (cm *CompressionMiddleware) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("Accept-Encoding") == "" {
		req = req.Clone(req.Context())
		req.Header.Set("Accept-Encoding", acceptEncoding)
	}

	resp, err := cm.Transport.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if err := DecompressResponse(resp); err != nil {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("failed to initialize response decompression: %w", err)
	}
	return resp, nil
}
