package display

import (
	"encoding/base64"
	"fmt"
	"io"
)

const (
	kittyPrefix    = "\x1b_G"
	kittySuffix    = "\x1b\\"
	kittyChunkSize = 4096
)

// encodeKitty transmits JPEG bytes as a Kitty graphics escape sequence,
// splitting the base64 payload into protocol-sized chunks.
func encodeKitty(out io.Writer, jpeg []byte) error {
	if len(jpeg) == 0 {
		return nil
	}

	payload := base64.StdEncoding.EncodeToString(jpeg)

	for first := true; len(payload) > 0; first = false {
		n := kittyChunkSize
		if len(payload) < n {
			n = len(payload)
		}
		chunk, rest := payload[:n], payload[n:]

		params := "m=1"
		if first {
			// a=T: transmit and display, f=100: PNG/JPEG payload.
			params = "a=T,f=100,q=2,m=1"
		}
		if len(rest) == 0 {
			if first {
				params = "a=T,f=100,q=2"
			} else {
				params = "m=0"
			}
		}

		if _, err := fmt.Fprintf(out, "%s%s;%s%s", kittyPrefix, params, chunk, kittySuffix); err != nil {
			return err
		}
		payload = rest
	}

	return nil
}
