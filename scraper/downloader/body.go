package downloader

import (
	"io"
	"net/http"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// readBody returns the response body, gunzipping it when the server honored
// Accept-Encoding.
func readBody(resp *http.Response) ([]byte, error) {
	if !strings.EqualFold(resp.Header.Get("Content-Encoding"), "gzip") {
		return io.ReadAll(resp.Body)
	}
	zr, err := gzip.NewReader(resp.Body)
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	return io.ReadAll(zr)
}
