package datasource

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/KaramelBytes/docshape-cli/internal/store"
)

// BuildPostgresDSN builds a postgres URL for src, defaulting the host to
// localhost and the port to 5432.
func BuildPostgresDSN(src store.DataSource) string {
	host := src.Host
	if host == "" {
		host = "localhost"
	}
	port := src.Port
	if port == 0 {
		port = 5432
	}
	u := url.URL{
		Scheme:   "postgres",
		Host:     host + ":" + strconv.Itoa(port),
		Path:     "/" + src.Database,
		RawQuery: "sslmode=disable",
	}
	switch {
	case src.Username != "" && src.Password != "":
		u.User = url.UserPassword(src.Username, src.Password)
	case src.Username != "":
		u.User = url.User(src.Username)
	}
	return u.String()
}

// Describe returns a printable connection summary without credentials.
func Describe(src store.DataSource) string {
	if src.Type == store.SourceSQLite {
		return fmt.Sprintf("sqlite %s", src.Database)
	}
	port := src.Port
	if port == 0 {
		port = 5432
	}
	return fmt.Sprintf("%s@%s:%d/%s", src.Username, src.Host, port, src.Database)
}
