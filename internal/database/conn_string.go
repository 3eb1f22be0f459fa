package database

import (
	"net"
	"net/url"
	"strconv"

	"github.com/rickgao/kospi-sync/internal/config"
)

// ApplicationName tags session store connections in pg_stat_activity.
const ApplicationName = "kospi-sync"

// BuildConnString builds the PostgreSQL URL for the session store.
// User and password are escaped; an empty SSL mode means "prefer".
func BuildConnString(cfg config.DBConfig) string {
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "prefer"
	}

	q := url.Values{}
	q.Set("sslmode", sslMode)
	q.Set("application_name", ApplicationName)

	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Path:     "/" + cfg.Name,
		RawQuery: q.Encode(),
	}
	return u.String()
}
