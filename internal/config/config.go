// Package config loads configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/kylejryan/appointment-lifecycle/internal/models"
)

// Country store drivers.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
)

// Env holds the configuration values shared by every binary.
type Env struct {
	Region             string
	LogLevel           string
	LogFormat          string
	Table              string
	TopicARN           string
	EventBusName       string
	CountryStoreDriver string
	HTTPAddr           string
	BusMaxReceives     int
}

// CountryDB is the connection configuration of one country's database.
type CountryDB struct {
	Country  models.CountryISO
	DSN      string
	MaxConns int32
}

// load reads the optional .env file and the settings every binary understands.
func load() Env {
	_ = godotenv.Load()
	return Env{
		Region:             get("AWS_REGION", "us-east-1"),
		LogLevel:           get("LOG_LEVEL", "info"),
		LogFormat:          get("LOG_FORMAT", "json"),
		EventBusName:       get("EVENT_BUS_NAME", "default"),
		CountryStoreDriver: strings.ToLower(get("COUNTRY_STORE_DRIVER", DriverMemory)),
	}
}

// MustLoadAppointment returns the configuration of the appointment function (intake + reconciler).
func MustLoadAppointment() Env {
	e := load()
	e.Table = must("APPOINTMENTS_TABLE")
	e.TopicARN = must("TOPIC_ARN")
	return e
}

// MustLoadCountry returns the configuration of a per-country processor.
func MustLoadCountry() Env {
	e := load()
	if e.CountryStoreDriver != DriverMemory && e.CountryStoreDriver != DriverPostgres {
		panic(fmt.Errorf("unsupported COUNTRY_STORE_DRIVER %q", e.CountryStoreDriver))
	}
	return e
}

// LoadLocal returns the configuration of the single-process dev server.
func LoadLocal() Env {
	e := load()
	e.LogFormat = get("LOG_FORMAT", "text")
	e.HTTPAddr = get("HTTP_ADDR", ":8080")
	e.BusMaxReceives = getInt("BUS_MAX_RECEIVES", 3)
	return e
}

// CountryDatabase reads <CC>_DATABASE_URL and <CC>_DB_MAX_CONNS for country c.
func CountryDatabase(c models.CountryISO) (CountryDB, error) {
	prefix := strings.ToUpper(string(c)) + "_"
	dsn := os.Getenv(prefix + "DATABASE_URL")
	if dsn == "" {
		return CountryDB{}, fmt.Errorf("missing env %sDATABASE_URL", prefix)
	}
	return CountryDB{
		Country:  c,
		DSN:      dsn,
		MaxConns: int32(getInt(prefix+"DB_MAX_CONNS", 2)),
	}, nil
}

// get returns the value of the environment variable k or def if not set.
func get(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

// getInt returns the integer value of k, or def when unset or unparsable.
func getInt(k string, def int) int {
	n, err := strconv.Atoi(get(k, ""))
	if err != nil || n <= 0 {
		return def
	}
	return n
}

// must returns the value of the environment variable k or panics if not set.
func must(k string) string {
	v := os.Getenv(k)
	if v == "" {
		panic(fmt.Errorf("missing env %s", k))
	}
	return v
}
