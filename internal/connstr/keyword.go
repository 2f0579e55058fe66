// SPDX-License-Identifier: Apache-2.0

package connstr

import (
	"fmt"
	"strings"
)

const keywordDatabaseKey = "dbname"

// libpqKeywords are the connection parameters documented for libpq, plus the
// ones lib/pq adds on top.
var libpqKeywords = map[string]struct{}{
	"host":                      {},
	"hostaddr":                  {},
	"port":                      {},
	"dbname":                    {},
	"user":                      {},
	"password":                  {},
	"passfile":                  {},
	"require_auth":              {},
	"channel_binding":           {},
	"connect_timeout":           {},
	"client_encoding":           {},
	"options":                   {},
	"application_name":          {},
	"fallback_application_name": {},
	"keepalives":                {},
	"keepalives_idle":           {},
	"keepalives_interval":       {},
	"keepalives_count":          {},
	"tcp_user_timeout":          {},
	"replication":               {},
	"gssencmode":                {},
	"sslmode":                   {},
	"requiressl":                {},
	"sslnegotiation":            {},
	"sslcompression":            {},
	"sslcert":                   {},
	"sslkey":                    {},
	"sslkeylogfile":             {},
	"sslpassword":               {},
	"sslcertmode":               {},
	"sslrootcert":               {},
	"sslcrl":                    {},
	"sslcrldir":                 {},
	"sslsni":                    {},
	"ssl_min_protocol_version":  {},
	"ssl_max_protocol_version":  {},
	"min_protocol_version":      {},
	"max_protocol_version":      {},
	"requirepeer":               {},
	"krbsrvname":                {},
	"krbspn":                    {},
	"gsslib":                    {},
	"gssdelegation":             {},
	"service":                   {},
	"target_session_attrs":      {},
	"load_balance_hosts":        {},
	"oauth_issuer":              {},
	"oauth_client_id":           {},
	"oauth_client_secret":       {},
	"oauth_scope":               {},
	"sslinline":                 {},
}

func isLibpqKeyword(key string) bool {
	_, ok := libpqKeywords[key]
	return ok
}

// keywordDescriptor is a libpq keyword/value connection string. Later
// occurrences of a key take precedence, as in libpq.
type keywordDescriptor struct {
	pairs []pair
}

func parseKeywordValue(s string) (Descriptor, error) {
	d := &keywordDescriptor{}

	i := 0
	for {
		i = skipSpace(s, i)
		if i >= len(s) {
			break
		}

		start := i
		for i < len(s) && s[i] != '=' && !isSpace(s[i]) {
			i++
		}
		key := s[start:i]
		if key == "" {
			return nil, fmt.Errorf("%w: missing key before \"=\"", ErrInvalidConnectionString)
		}

		i = skipSpace(s, i)
		if i >= len(s) || s[i] != '=' {
			return nil, fmt.Errorf("%w: missing \"=\" after %q", ErrInvalidConnectionString, key)
		}
		i = skipSpace(s, i+1)

		var b strings.Builder
		if i < len(s) && s[i] == '\'' {
			i++
			closed := false
			for i < len(s) {
				c := s[i]
				if c == '\\' && i+1 < len(s) {
					b.WriteByte(s[i+1])
					i += 2
					continue
				}
				i++
				if c == '\'' {
					closed = true
					break
				}
				b.WriteByte(c)
			}
			if !closed {
				return nil, fmt.Errorf("%w: unterminated quoted value for %q", ErrInvalidConnectionString, key)
			}
		} else {
			for i < len(s) && !isSpace(s[i]) {
				if s[i] == '\\' && i+1 < len(s) {
					i++
				}
				b.WriteByte(s[i])
				i++
			}
		}

		d.pairs = append(d.pairs, pair{key: key, value: b.String(), raw: s[start:i]})
	}

	if len(d.pairs) == 0 {
		return nil, fmt.Errorf("%w: no attributes", ErrInvalidConnectionString)
	}
	return d, nil
}

// libpqShaped reports whether every key is a lowercase libpq-style
// identifier and at least one of them is a known libpq keyword.
func (d *keywordDescriptor) libpqShaped() bool {
	known := false
	for _, p := range d.pairs {
		for i, c := range p.key {
			switch {
			case c >= 'a' && c <= 'z', c == '_':
			case i > 0 && c >= '0' && c <= '9':
			default:
				return false
			}
		}
		if isLibpqKeyword(p.key) {
			known = true
		}
	}
	return known
}

func (d *keywordDescriptor) Format() Format { return FormatKeywordValue }

func (d *keywordDescriptor) Database() string {
	v, _ := d.Get(keywordDatabaseKey)
	return v
}

func (d *keywordDescriptor) SetDatabase(name string) {
	d.Set(keywordDatabaseKey, name)
}

func (d *keywordDescriptor) Get(key string) (string, bool) {
	for i := len(d.pairs) - 1; i >= 0; i-- {
		if d.pairs[i].key == key {
			return d.pairs[i].value, true
		}
	}
	return "", false
}

func (d *keywordDescriptor) Set(key, value string) {
	found := false
	for i := range d.pairs {
		if d.pairs[i].key == key {
			d.pairs[i] = pair{key: key, value: value}
			found = true
		}
	}
	if !found {
		d.pairs = append(d.pairs, pair{key: key, value: value})
	}
}

func (d *keywordDescriptor) Keys() []string {
	seen := make(map[string]struct{}, len(d.pairs))
	keys := make([]string, 0, len(d.pairs))
	for _, p := range d.pairs {
		if _, ok := seen[p.key]; ok {
			continue
		}
		seen[p.key] = struct{}{}
		keys = append(keys, p.key)
	}
	return keys
}

func (d *keywordDescriptor) String() string {
	parts := make([]string, 0, len(d.pairs))
	for _, p := range d.pairs {
		if p.raw != "" {
			parts = append(parts, p.raw)
			continue
		}
		parts = append(parts, p.key+"="+quoteKeywordValue(p.value))
	}
	return strings.Join(parts, " ")
}

func quoteKeywordValue(v string) string {
	if v != "" && !strings.ContainsAny(v, " \t\n\r\f\v'\\") {
		return v
	}

	r := strings.NewReplacer(`\`, `\\`, `'`, `\'`)
	return "'" + r.Replace(v) + "'"
}
