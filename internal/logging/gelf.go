package logging

import (
	"fmt"
	"io"

	"github.com/Graylog2/go-gelf/gelf"
)

// DialGraylog opens a GELF/UDP writer to a Graylog server. The returned
// writer can be passed to Setup as the graylog sink.
func DialGraylog(address string) (io.Writer, error) {
	w, err := gelf.NewWriter(address)
	if err != nil {
		return nil, fmt.Errorf("connecting to graylog at %s: %w", address, err)
	}
	return w, nil
}
