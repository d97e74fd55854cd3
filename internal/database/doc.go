// Package database opens the PostgreSQL pool used by the membership audit
// log. Room state itself is never stored.
package database
