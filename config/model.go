package config

import "github.com/rs/zerolog"

// Config drives the watch daemon. Paths and database coordinates default
// to the burn command's defaults when omitted.
type Config struct {
	Capacity      SizeArgument `json:"capacity,omitempty"`
	StateFile     string       `json:"state_file,omitempty"`
	Catalog       string       `json:"catalog,omitempty"`
	Schedule      string       `json:"cron"`
	ContainerPath string       `json:"container_path,omitempty"`
	HostPath      string       `json:"host_path,omitempty"`
	PgContainer   string       `json:"pg_container,omitempty"`
	PgUser        string       `json:"pg_user,omitempty"`
	PgDatabase    string       `json:"pg_database,omitempty"`
}

func (c Config) MarshalZerologObject(e *zerolog.Event) {
	e.Str("schedule", c.Schedule)
	if c.Capacity.Size > 0 {
		e.Int64("capacity", c.Capacity.Size)
	}
	if c.StateFile != "" {
		e.Str("state_file", c.StateFile)
	}
	if c.Catalog != "" {
		e.Str("catalog", c.Catalog)
	}
}
