// Package textenc transcodes command output captured from hosts whose
// locale emits something other than UTF-8 (common on older or
// Japanese-locale targets) into UTF-8 before it reaches telemetry,
// guard evaluation, or the CLI.
package textenc

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"
)

// ToUTF8 decodes s, which is assumed to be encoded as charset, into
// UTF-8. An empty or "utf-8" charset is a no-op. charset is looked up
// by its IANA/HTML name (e.g. "shift_jis", "euc-jp", "iso-8859-1")
// via golang.org/x/text's encoding registry.
func ToUTF8(s, charset string) (string, error) {
	charset = strings.TrimSpace(strings.ToLower(charset))
	if charset == "" || charset == "utf-8" || charset == "utf8" {
		return s, nil
	}

	enc, err := htmlindex.Get(charset)
	if err != nil {
		return s, fmt.Errorf("textenc: unknown charset %q: %w", charset, err)
	}

	out, _, err := transform.String(decoderOf(enc), s)
	if err != nil {
		return s, fmt.Errorf("textenc: decode %q: %w", charset, err)
	}
	return out, nil
}

func decoderOf(enc encoding.Encoding) transform.Transformer {
	return enc.NewDecoder()
}

// Reader wraps r, decoding its bytes from charset into UTF-8 as they
// are read, for streaming consumers that can't buffer the whole command
// output before transcoding it. No code in this repository calls it;
// CommandRunner.Run uses ToUTF8 on buffered output.
func Reader(r io.Reader, charset string) (io.Reader, error) {
	charset = strings.TrimSpace(strings.ToLower(charset))
	if charset == "" || charset == "utf-8" || charset == "utf8" {
		return r, nil
	}
	enc, err := htmlindex.Get(charset)
	if err != nil {
		return r, fmt.Errorf("textenc: unknown charset %q: %w", charset, err)
	}
	return transform.NewReader(r, enc.NewDecoder()), nil
}
