// SPDX-License-Identifier: Apache-2.0

package connstr

import (
	"fmt"
	"net"
	"net/url"
	"sort"
	"strings"

	"github.com/lib/pq"
)

const urlDatabaseKey = "database"

// urlDescriptor is a connection string in URL form. Postgres URLs carry the
// database in the path, SQL Server URLs in the `database` query parameter.
type urlDescriptor struct {
	u *url.URL
}

func parseURL(s string) (Descriptor, error) {
	u, err := url.Parse(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConnectionString, err)
	}

	if isPostgresScheme(u.Scheme) {
		if _, err := pq.ParseURL(s); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidConnectionString, err)
		}
	}

	return &urlDescriptor{u: u}, nil
}

func isPostgresScheme(scheme string) bool {
	return scheme == "postgres" || scheme == "postgresql"
}

func (d *urlDescriptor) Format() Format { return FormatURL }

func (d *urlDescriptor) databaseInQuery() bool {
	return d.u.Scheme == "sqlserver"
}

// databaseKeys returns every spelling of the database query parameter. SQL
// Server drivers match query keys case-insensitively.
func (d *urlDescriptor) databaseKeys() []string {
	var keys []string
	for k := range d.u.Query() {
		if strings.EqualFold(k, urlDatabaseKey) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

func (d *urlDescriptor) Database() string {
	if d.databaseInQuery() {
		keys := d.databaseKeys()
		if len(keys) == 0 {
			return ""
		}
		v, _ := d.Get(keys[len(keys)-1])
		return v
	}
	return strings.TrimPrefix(d.u.Path, "/")
}

func (d *urlDescriptor) SetDatabase(name string) {
	if d.databaseInQuery() {
		keys := d.databaseKeys()
		if len(keys) == 0 {
			d.Set(urlDatabaseKey, name)
			return
		}

		q := d.u.Query()
		for _, k := range keys[1:] {
			q.Del(k)
		}
		q.Set(keys[0], name)
		d.u.RawQuery = strings.ReplaceAll(q.Encode(), "+", "%20")
		return
	}

	// Escape the name as a single path segment so that a '/' in a test name
	// does not turn into a path separator.
	d.u.Path = "/" + name
	d.u.RawPath = "/" + url.PathEscape(name)
}

func (d *urlDescriptor) Get(key string) (string, bool) {
	switch key {
	case "host":
		h := d.u.Hostname()
		return h, h != ""
	case "port":
		p := d.u.Port()
		return p, p != ""
	case "user":
		if d.u.User == nil {
			return "", false
		}
		return d.u.User.Username(), true
	case "password":
		if d.u.User == nil {
			return "", false
		}
		return d.u.User.Password()
	}

	q := d.u.Query()
	if !q.Has(key) {
		return "", false
	}
	return q.Get(key), true
}

func (d *urlDescriptor) Set(key, value string) {
	switch key {
	case "host":
		d.u.Host = joinHostPort(value, d.u.Port())
	case "port":
		d.u.Host = joinHostPort(d.u.Hostname(), value)
	case "user":
		if p, ok := d.Get("password"); ok {
			d.u.User = url.UserPassword(value, p)
		} else {
			d.u.User = url.User(value)
		}
	case "password":
		user, _ := d.Get("user")
		d.u.User = url.UserPassword(user, value)
	default:
		q := d.u.Query()
		q.Set(key, value)

		// Replace '+' with '%20' to ensure proper encoding of spaces within
		// values such as the `options` query parameter.
		d.u.RawQuery = strings.ReplaceAll(q.Encode(), "+", "%20")
	}
}

func (d *urlDescriptor) Keys() []string {
	var keys []string
	for _, k := range []string{"host", "port", "user", "password"} {
		if _, ok := d.Get(k); ok {
			keys = append(keys, k)
		}
	}

	query := d.u.Query()
	queryKeys := make([]string, 0, len(query))
	for k := range query {
		queryKeys = append(queryKeys, k)
	}
	sort.Strings(queryKeys)

	return append(keys, queryKeys...)
}

func (d *urlDescriptor) String() string {
	return d.u.String()
}

func joinHostPort(host, port string) string {
	if port == "" {
		if strings.Contains(host, ":") {
			return "[" + host + "]"
		}
		return host
	}
	return net.JoinHostPort(host, port)
}
