package database

import (
	"net"
	"net/url"
	"strconv"

	"github.com/davidmehren/workadventure/internal/config"
)

// BuildConnString builds a PostgreSQL connection URL from config.
// applicationName shows up in pg_stat_activity and may be empty.
func BuildConnString(cfg config.DBConfig, applicationName string) string {
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = config.DefaultDBSSLMode
	}

	query := url.Values{}
	query.Set("sslmode", sslMode)
	if applicationName != "" {
		query.Set("application_name", applicationName)
	}

	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Path:     "/" + cfg.Name,
		RawQuery: query.Encode(),
	}
	return u.String()
}
