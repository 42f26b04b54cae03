package config // package config loads application configuration from environment variables

import (
    "log"      // log is used to report configuration errors and halt execution
    "os"       // os provides access to environment variables
    "strconv"  // strconv converts strings to other types
    "time"     // time expresses the hold and sweep durations
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  The types reflect how the values are used in
// the application: strings for identifiers and secrets, durations for the
// reservation hold lifetime and the background sweep cadence.
type Config struct {
    Env                 string        // application environment (e.g. "dev", "prod")
    Port                string        // HTTP port to listen on
    DBUser              string        // database username
    DBPass              string        // database password (optional)
    DBHost              string        // database host address
    DBPort              string        // database port number
    DBName              string        // database name
    JWTSecret           string        // secret used to verify JWTs
    HoldTTL             time.Duration // how long a cart hold reserves stock
    SweepInterval       time.Duration // how often expired holds are swept
    StripeSecretKey     string        // secret key for the Stripe API (empty disables intents)
    StripeWebhookSecret string        // signing secret for Stripe webhooks
    Currency            string        // default order currency code
}

// Load reads configuration values from environment variables and returns a
// Config.  Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.  The webhook secret
// is required: unsigned webhook deliveries are never accepted.
func Load() Config {
    return Config{
        Env:                 must("APP_ENV"),  // environment (dev/test/prod)
        Port:                must("APP_PORT"), // port to bind the HTTP server
        DBUser:              must("DB_USER"),  // database user
        DBPass:              os.Getenv("DB_PASS"), // database password (empty allowed)
        DBHost:              must("DB_HOST"),  // database host
        DBPort:              must("DB_PORT"),  // database port
        DBName:              must("DB_NAME"),  // database name
        JWTSecret:           must("JWT_SECRET"),
        HoldTTL:             minutes("HOLD_TTL_MIN", 15),
        SweepInterval:       minutes("SWEEP_INTERVAL_MIN", 5),
        StripeSecretKey:     os.Getenv("STRIPE_SECRET_KEY"),
        StripeWebhookSecret: must("STRIPE_WEBHOOK_SECRET"),
        Currency:            envStr("ORDER_CURRENCY", "usd"),
    }
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
    v, ok := os.LookupEnv(key)
    if !ok || v == "" {
        log.Fatalf("missing required env var: %s", key)
    }
    return v
}

// minutes reads an integer env var expressed in minutes, falling back to
// the given default when unset.  Invalid values are fatal.
func minutes(key string, def int) time.Duration {
    s := os.Getenv(key)
    if s == "" {
        return time.Duration(def) * time.Minute
    }
    n, err := strconv.Atoi(s)
    if err != nil || n <= 0 {
        log.Fatalf("invalid int for %s: %q", key, s)
    }
    return time.Duration(n) * time.Minute
}
