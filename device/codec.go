package device

import (
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
)

// LocaleCodec picks the charset named by the first of LC_ALL, LC_CTYPE and LANG
// that is set, ex: de_DE.ISO-8859-1@euro. Unknown or missing charsets are UTF-8.
func LocaleCodec(getenv func(string) string) encoding.Encoding {
	for _, key := range []string{"LC_ALL", "LC_CTYPE", "LANG"} {
		locale := getenv(key)
		if locale == "" {
			continue
		}
		return codecForLocale(locale)
	}
	return unicode.UTF8
}

func codecForLocale(locale string) encoding.Encoding {
	if at := strings.IndexByte(locale, '@'); at >= 0 {
		locale = locale[:at]
	}
	dot := strings.IndexByte(locale, '.')
	if dot < 0 {
		return unicode.UTF8
	}
	enc, err := htmlindex.Get(locale[dot+1:])
	if err != nil || enc == nil {
		return unicode.UTF8
	}
	return enc
}

// CodecName is the canonical name of enc, or "unknown".
func CodecName(enc encoding.Encoding) string {
	name, err := htmlindex.Name(enc)
	if err != nil {
		return "unknown"
	}
	return name
}

// CodecByName looks up a charset by any of its WHATWG labels, ex: "latin1".
func CodecByName(name string) (encoding.Encoding, error) {
	enc, err := htmlindex.Get(name)
	if err != nil || enc == nil {
		return nil, errors.Errorf("unknown codec %q", name)
	}
	return enc, nil
}

type codecOverride struct {
	Device
	codec encoding.Encoding
}

func (d codecOverride) Codec() encoding.Encoding { return d.codec }

// WithCodec returns d decoding process output with codec instead of its own.
func WithCodec(d Device, codec encoding.Encoding) Device {
	if codec == nil {
		return d
	}
	return codecOverride{Device: d, codec: codec}
}
