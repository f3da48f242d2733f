package utils

import (
	"bytes"

	"golang.org/x/text/transform"

	"github.com/velraen/gpk_browser/config"
)

// BytesToString decodes a nul-terminated string using the
// configured game encoding.
func BytesToString(bs []byte) string {
	n := bytes.IndexByte(bs, 0)
	if n < 0 {
		n = len(bs)
	}

	s, _, err := transform.Bytes(config.GetEncoding().NewDecoder(), bs[0:n])
	if err != nil {
		panic(err)
	}

	return string(s)
}
