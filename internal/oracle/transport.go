package oracle

import (
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/andybalholm/brotli"
)

// Pooled decompression readers. Completions are requested in a tight loop
// on cache-miss bursts, and a fresh reader per response is measurable
// allocation churn.
var (
	gzipReaderPool = sync.Pool{
		New: func() interface{} { return new(gzip.Reader) },
	}
	brotliReaderPool = sync.Pool{
		New: func() interface{} { return brotli.NewReader(nil) },
	}
)

var emptyReader = strings.NewReader("")

// decompressionTransport is an http.RoundTripper that negotiates response
// compression and transparently decodes it. Setting Accept-Encoding manually
// disables net/http's automatic gzip handling, so the decode has to live
// here for every encoding we advertise.
type decompressionTransport struct {
	base http.RoundTripper
}

func newDecompressionTransport(base http.RoundTripper) *decompressionTransport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &decompressionTransport{base: base}
}

func (t *decompressionTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("Accept-Encoding") == "" {
		req.Header.Set("Accept-Encoding", "br, gzip, identity")
	}

	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	if err := decompressResponse(resp); err != nil {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("decompress response: %w", err)
	}
	return resp, nil
}

// CloseIdleConnections forwards to the underlying transport so client Close
// can release pooled connections.
func (t *decompressionTransport) CloseIdleConnections() {
	type closeIdler interface{ CloseIdleConnections() }
	if ci, ok := t.base.(closeIdler); ok {
		ci.CloseIdleConnections()
	}
}

// decompressResponse wraps resp.Body with decoders for each Content-Encoding
// layer, innermost last. On success the response reads as plain text and the
// encoding headers are cleared.
func decompressResponse(resp *http.Response) error {
	if resp == nil || resp.Body == nil {
		return nil
	}

	encodings := resp.Header.Values("Content-Encoding")
	if len(encodings) == 0 {
		return nil
	}

	// Encodings are listed in application order; decode in reverse.
	for i := len(encodings) - 1; i >= 0; i-- {
		encoding := strings.ToLower(strings.TrimSpace(encodings[i]))

		var reader io.ReadCloser
		var release func()

		switch encoding {
		case "gzip":
			zr := gzipReaderPool.Get().(*gzip.Reader)
			if err := zr.Reset(resp.Body); err != nil {
				gzipReaderPool.Put(zr)
				return fmt.Errorf("gzip layer: %w", err)
			}
			reader = zr
			release = func() {
				_ = zr.Reset(emptyReader)
				gzipReaderPool.Put(zr)
			}

		case "br":
			br := brotliReaderPool.Get().(*brotli.Reader)
			if err := br.Reset(resp.Body); err != nil {
				brotliReaderPool.Put(br)
				return fmt.Errorf("brotli layer: %w", err)
			}
			reader = io.NopCloser(br)
			release = func() {
				_ = br.Reset(emptyReader)
				brotliReaderPool.Put(br)
			}

		case "identity", "":
			continue

		default:
			return fmt.Errorf("unsupported Content-Encoding %q", encoding)
		}

		resp.Body = &decompressedBody{
			ReadCloser: reader,
			original:   resp.Body,
			release:    release,
		}
	}

	resp.Header.Del("Content-Encoding")
	resp.Header.Del("Content-Length")
	resp.ContentLength = -1
	resp.Uncompressed = true
	return nil
}

// decompressedBody closes the decoder, returns it to its pool, and closes
// the original body so the connection can be reused.
type decompressedBody struct {
	io.ReadCloser
	original io.ReadCloser
	release  func()
}

func (b *decompressedBody) Close() error {
	err := b.ReadCloser.Close()
	if b.release != nil {
		b.release()
		b.release = nil
	}
	return errors.Join(err, b.original.Close())
}
