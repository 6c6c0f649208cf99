package driver

import (
	"strings"
)

// ConnectionInfo holds the values a connection URL is built from. Empty
// fields fall back to the driver defaults.
type ConnectionInfo struct {
	Host     string
	Port     string
	Server   string
	Database string
	User     string
	File     string
}

// URLBuilder builds connection URLs for a provider's drivers when their
// sample URL was not overridden.
type URLBuilder func(d *Driver, info ConnectionInfo) string

// IsSampleURLForced reports whether the sample URL was changed from the one
// the driver was defined with. Custom drivers always use their sample URL.
func (d *Driver) IsSampleURLForced() bool {
	if d.sampleURL == "" {
		return false
	}
	return d.orig == nil || d.sampleURL != d.orig.sampleURL
}

// ConnectionURL returns the URL for info. The provider's URLBuilder is used
// unless the sample URL is forced or the provider has none.
func (d *Driver) ConnectionURL(info ConnectionInfo) string {
	if !d.IsSampleURLForced() && d.provider != nil && d.provider.urlBuilder != nil {
		return d.provider.urlBuilder(d, info)
	}
	return ExpandURLTemplate(d.sampleURL, d.urlVars(info))
}

func (d *Driver) urlVars(info ConnectionInfo) map[string]string {
	or := func(v, def string) string {
		if v != "" {
			return v
		}
		return def
	}
	return map[string]string{
		"host":     or(info.Host, d.defaultHost),
		"port":     or(info.Port, d.defaultPort),
		"server":   or(info.Server, d.defaultServer),
		"database": or(info.Database, d.defaultDatabase),
		"user":     or(info.User, d.defaultUser),
		"file":     info.File,
	}
}

// ExpandURLTemplate substitutes {name} variables in tmpl. A [bracketed]
// segment is kept only when every variable in it has a value; unknown
// variables are empty.
func ExpandURLTemplate(tmpl string, vars map[string]string) string {
	var b strings.Builder
	for tmpl != "" {
		open := strings.IndexByte(tmpl, '[')
		if open < 0 {
			s, _ := expandVars(tmpl, vars)
			b.WriteString(s)
			break
		}
		s, _ := expandVars(tmpl[:open], vars)
		b.WriteString(s)

		end := strings.IndexByte(tmpl[open:], ']')
		if end < 0 {
			s, _ := expandVars(tmpl[open:], vars)
			b.WriteString(s)
			break
		}
		if s, ok := expandVars(tmpl[open+1:open+end], vars); ok {
			b.WriteString(s)
		}
		tmpl = tmpl[open+end+1:]
	}
	return b.String()
}

// expandVars reports false when a referenced variable is empty.
func expandVars(s string, vars map[string]string) (string, bool) {
	var b strings.Builder
	complete := true
	for {
		open := strings.IndexByte(s, '{')
		if open < 0 {
			b.WriteString(s)
			return b.String(), complete
		}
		end := strings.IndexByte(s[open:], '}')
		if end < 0 {
			b.WriteString(s)
			return b.String(), complete
		}
		b.WriteString(s[:open])
		v := vars[s[open+1:open+end]]
		if v == "" {
			complete = false
		}
		b.WriteString(v)
		s = s[open+end+1:]
	}
}
