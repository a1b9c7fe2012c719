package config

import (
	"fmt"
	"time"
)

// Config is the fully resolved engine configuration.
type Config struct {
	Global   Global
	Server   Server
	Database Database
	Redis    Redis
	Calendar Calendar
	Sync     Sync
}

// Global holds process-wide settings.
type Global struct {
	Debug      bool
	LogFormat  string
	ConfigPath string
}

// Server holds the HTTP API bind settings.
type Server struct {
	Host string
	Port int
}

// Addr returns the host:port string for the HTTP listener.
func (s Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Database holds the Postgres connection settings.
type Database struct {
	DSN string
}

// Redis holds the job-queue backend settings.
type Redis struct {
	Addr     string
	Password string
	DB       int
}

// Calendar holds the collaboration-suite calendar API settings.
type Calendar struct {
	BaseURL string
	Token   string
	Timeout time.Duration
	// CheckinBaseURL is the base of the check-in/leave page the schedule
	// description deep-links to.
	CheckinBaseURL  string
	ReminderMinutes int
}

// Sync holds engine behavior settings.
type Sync struct {
	// Timezone is the institution's fixed civil timezone for timetable rows.
	Timezone string
	Location *time.Location
	// Workers is the size of the job worker pool.
	Workers int
	// MaxRetries bounds the per-job retry loop for transient failures.
	MaxRetries int
	// RetryInterval is the initial backoff interval between retries.
	RetryInterval time.Duration
	// IncrementalCron, when set, runs incremental sync on this cron
	// expression in server mode.
	IncrementalCron string
	// Terms are the terms the scheduled incremental sync covers.
	Terms []string
}
