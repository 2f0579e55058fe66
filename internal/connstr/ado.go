// SPDX-License-Identifier: Apache-2.0

package connstr

import (
	"fmt"
	"strings"
)

// adoDatabaseKey is the attribute added when an ADO connection string names
// no database. "Database" is accepted as a synonym when reading.
const adoDatabaseKey = "Initial Catalog"

// adoDescriptor is an ADO.NET style connection string, as used by SQL Server.
// Keys are case-insensitive and later occurrences take precedence.
type adoDescriptor struct {
	pairs    []pair
	trailing bool
}

func parseADO(s string) (Descriptor, error) {
	d := &adoDescriptor{
		trailing: strings.HasSuffix(s, ";"),
	}

	i := 0
	for {
		for i < len(s) && (isSpace(s[i]) || s[i] == ';') {
			i++
		}
		if i >= len(s) {
			break
		}

		start := i
		var key strings.Builder
		for {
			if i >= len(s) || s[i] == ';' {
				return nil, fmt.Errorf("%w: missing \"=\" after %q", ErrInvalidConnectionString, strings.TrimSpace(key.String()))
			}
			if s[i] == '=' {
				// "==" is an escaped '=' within a key
				if i+1 < len(s) && s[i+1] == '=' {
					key.WriteByte('=')
					i += 2
					continue
				}
				break
			}
			key.WriteByte(s[i])
			i++
		}

		k := strings.TrimSpace(key.String())
		if k == "" {
			return nil, fmt.Errorf("%w: missing key before \"=\"", ErrInvalidConnectionString)
		}
		i = skipSpace(s, i+1)

		var value string
		if i < len(s) && (s[i] == '\'' || s[i] == '"') {
			q := s[i]
			i++

			var b strings.Builder
			closed := false
			for i < len(s) {
				if s[i] == q {
					if i+1 < len(s) && s[i+1] == q {
						b.WriteByte(q)
						i += 2
						continue
					}
					closed = true
					i++
					break
				}
				b.WriteByte(s[i])
				i++
			}
			if !closed {
				return nil, fmt.Errorf("%w: unterminated quoted value for %q", ErrInvalidConnectionString, k)
			}

			i = skipSpace(s, i)
			if i < len(s) && s[i] != ';' {
				return nil, fmt.Errorf("%w: unexpected characters after quoted value for %q", ErrInvalidConnectionString, k)
			}
			value = b.String()
		} else {
			end := strings.IndexByte(s[i:], ';')
			if end < 0 {
				end = len(s)
			} else {
				end += i
			}
			value = strings.TrimSpace(s[i:end])
			i = end
		}

		d.pairs = append(d.pairs, pair{key: k, value: value, raw: strings.TrimSpace(s[start:i])})
	}

	if len(d.pairs) == 0 {
		return nil, fmt.Errorf("%w: no attributes", ErrInvalidConnectionString)
	}
	return d, nil
}

func isADODatabaseKey(key string) bool {
	return strings.EqualFold(key, adoDatabaseKey) || strings.EqualFold(key, "Database")
}

func (d *adoDescriptor) Format() Format { return FormatADO }

func (d *adoDescriptor) Database() string {
	for i := len(d.pairs) - 1; i >= 0; i-- {
		if isADODatabaseKey(d.pairs[i].key) {
			return d.pairs[i].value
		}
	}
	return ""
}

// SetDatabase rewrites every database attribute, including synonyms, so that
// no stale value is left behind.
func (d *adoDescriptor) SetDatabase(name string) {
	found := false
	for i, p := range d.pairs {
		if isADODatabaseKey(p.key) {
			d.pairs[i] = pair{key: p.key, value: name}
			found = true
		}
	}
	if !found {
		d.pairs = append(d.pairs, pair{key: adoDatabaseKey, value: name})
	}
}

func (d *adoDescriptor) Get(key string) (string, bool) {
	for i := len(d.pairs) - 1; i >= 0; i-- {
		if strings.EqualFold(d.pairs[i].key, key) {
			return d.pairs[i].value, true
		}
	}
	return "", false
}

func (d *adoDescriptor) Set(key, value string) {
	found := false
	for i, p := range d.pairs {
		if strings.EqualFold(p.key, key) {
			d.pairs[i] = pair{key: p.key, value: value}
			found = true
		}
	}
	if !found {
		d.pairs = append(d.pairs, pair{key: key, value: value})
	}
}

func (d *adoDescriptor) Keys() []string {
	keys := make([]string, 0, len(d.pairs))
	for _, p := range d.pairs {
		dup := false
		for _, k := range keys {
			if strings.EqualFold(k, p.key) {
				dup = true
				break
			}
		}
		if !dup {
			keys = append(keys, p.key)
		}
	}
	return keys
}

func (d *adoDescriptor) String() string {
	parts := make([]string, 0, len(d.pairs))
	for _, p := range d.pairs {
		if p.raw != "" {
			parts = append(parts, p.raw)
			continue
		}
		parts = append(parts, strings.ReplaceAll(p.key, "=", "==")+"="+quoteADOValue(p.value))
	}

	s := strings.Join(parts, ";")
	if d.trailing {
		s += ";"
	}
	return s
}

func quoteADOValue(v string) string {
	needsQuotes := strings.Contains(v, ";") ||
		strings.TrimSpace(v) != v ||
		strings.HasPrefix(v, "'") ||
		strings.HasPrefix(v, `"`)
	if !needsQuotes {
		return v
	}

	switch {
	case !strings.Contains(v, `"`):
		return `"` + v + `"`
	case !strings.Contains(v, "'"):
		return "'" + v + "'"
	}
	return `"` + strings.ReplaceAll(v, `"`, `""`) + `"`
}
