package response

import "strings"

// Cookie is a Set-Cookie entry. Expiry and flags are not modeled.
type Cookie struct {
	Name  string
	Value string
	Path  string
}

// String returns the Set-Cookie header value. An empty path is sent as "/".
func (c Cookie) String() string {
	var b strings.Builder

	b.WriteString(c.Name)
	b.WriteByte('=')
	b.WriteString(c.Value)

	path := c.Path
	if path == "" {
		path = "/"
	}
	b.WriteString("; Path=")
	b.WriteString(path)

	return b.String()
}
