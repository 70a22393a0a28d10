package sdr

import (
	"fmt"
	"strconv"
	"strings"
)

// Params is the string-keyed construction dictionary, e.g.
// "bladerf=0,fpga=/usr/share/hostedx40.rbf,buffers=64,buflen=32768".
type Params map[string]string

// ParseParams splits a comma-separated key=value argument string. A token
// without '=' becomes a key with an empty value, so bare flags like "bladerf"
// still register.
func ParseParams(args string) Params {
	p := make(Params)
	for _, tok := range strings.Split(args, ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		key, value, _ := strings.Cut(tok, "=")
		p[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	return p
}

// Uint returns the named parameter as an unsigned integer, or def when the
// key is absent or empty. A malformed value is an error: numeric params are
// construction-fatal when they do not parse.
func (p Params) Uint(key string, def uint) (uint, error) {
	value, ok := p[key]
	if !ok || value == "" {
		return def, nil
	}
	n, err := strconv.ParseUint(value, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("failed to use %q as %s: %w", value, key, err)
	}
	return uint(n), nil
}

// Int is the signed counterpart of Uint.
func (p Params) Int(key string, def int) (int, error) {
	value, ok := p[key]
	if !ok || value == "" {
		return def, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("failed to use %q as %s: %w", value, key, err)
	}
	return n, nil
}
