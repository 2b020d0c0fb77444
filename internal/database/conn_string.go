package database

import (
	"net"
	"net/url"
	"strconv"

	"github.com/rickgao/padlink/internal/config"
	"github.com/rickgao/padlink/internal/version"
)

// BuildConnString renders cfg as a postgres:// URL. The session is tagged with
// the product name so journal connections are easy to spot in pg_stat_activity.
func BuildConnString(cfg config.DBConfig) string {
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = config.DefaultDBSSLMode
	}

	q := url.Values{}
	q.Set("sslmode", sslMode)
	q.Set("application_name", version.Product)

	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Path:     "/" + cfg.Name,
		RawQuery: q.Encode(),
	}
	return u.String()
}
