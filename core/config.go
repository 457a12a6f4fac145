package core

import (
	"log"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Env                string
	Build              string
	Debug              bool
	TestMode           bool
	AppName            string
	SecretKey          string
	FrontendBaseURL    string
	JWTExpirationDelta time.Duration
	OverrideTokenTTL   time.Duration
	SendgridApiKey     string
	RollbarToken       string
	defaultFromEmail   string

	Server struct {
		Host            string
		DebugHost       string
		ShutdownTimeout time.Duration
		RateLimit       string // ulule/limiter formatted rate, e.g. "20-M"
	}

	Database struct {
		Engine        string // "postgres" or "memory"
		Host          string
		Port          string
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
	}

	Redis struct {
		Addr     string
		Password string
		DB       int
	}

	Device struct {
		ServerURL     string
		CachePath     string
		ProbeURL      string
		ProbeInterval time.Duration
	}
}

func (conf *Config) DefaultFromEmail() mail.Address {
	addr, err := mail.ParseAddress(conf.defaultFromEmail)
	if err != nil {
		return mail.Address{Name: conf.AppName, Address: conf.defaultFromEmail}
	}
	return *addr
}

func (conf *Config) DatabaseAddress() string {
	return net.JoinHostPort(conf.Database.Host, conf.Database.Port)
}

// NewConfig loads the configuration from the environment.
// Keys are prefixed by the value of ENV: DEV (local; default), TEST, QA, PROD.
func NewConfig() *Config {
	v := viper.New()

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", true)
	v.SetDefault("build", "dev")
	v.SetDefault("appName", "TTR Gestion")
	v.SetDefault("secretKey", "xb7&2k!q9#c0-ttr)m+4w@e$h8n^gz(5yf3v=uo1pl6jd*ra")
	v.SetDefault("defaultFromEmail", "TTR Gestion <noreply@localhost>")
	v.SetDefault("frontendBaseURL", "http://localhost:3000")
	v.SetDefault("jwtExpirationDelta", 7*24*time.Hour)
	v.SetDefault("overrideTokenTTL", 30*time.Minute)
	v.SetDefault("sendgridApiKey", "")
	v.SetDefault("rollbarToken", "")
	v.SetDefault("testMode", false)

	v.SetDefault("server.host", "0.0.0.0:8000")
	v.SetDefault("server.debugHost", "0.0.0.0:4000")
	v.SetDefault("server.shutdownTimeout", 5*time.Second)
	v.SetDefault("server.rateLimit", "20-M")

	v.SetDefault("database.engine", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.name", "ttr_gestion")
	v.SetDefault("database.user", "ttr")
	v.SetDefault("database.password", "ttr")
	v.SetDefault("database.adminUser", "postgres")
	v.SetDefault("database.adminPassword", "")
	v.SetDefault("database.disableTLS", true)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("device.serverURL", "http://localhost:8000")
	v.SetDefault("device.cachePath", "ttr-cache.db")
	v.SetDefault("device.probeURL", "http://localhost:8000/health")
	v.SetDefault("device.probeInterval", 15*time.Second)

	env := strings.ToUpper(os.Getenv("ENV"))
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
	}
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join("config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	conf := &Config{
		Env:                env,
		Build:              v.GetString("build"),
		Debug:              v.GetBool("debug"),
		TestMode:           v.GetBool("testMode"),
		AppName:            v.GetString("appName"),
		SecretKey:          v.GetString("secretKey"),
		FrontendBaseURL:    strings.TrimRight(v.GetString("frontendBaseURL"), "/"),
		JWTExpirationDelta: v.GetDuration("jwtExpirationDelta"),
		OverrideTokenTTL:   v.GetDuration("overrideTokenTTL"),
		SendgridApiKey:     v.GetString("sendgridApiKey"),
		RollbarToken:       v.GetString("rollbarToken"),
		defaultFromEmail:   v.GetString("defaultFromEmail"),
	}

	conf.Server.Host = v.GetString("server.host")
	conf.Server.DebugHost = v.GetString("server.debugHost")
	conf.Server.ShutdownTimeout = v.GetDuration("server.shutdownTimeout")
	conf.Server.RateLimit = v.GetString("server.rateLimit")

	conf.Database.Engine = v.GetString("database.engine")
	conf.Database.Host = v.GetString("database.host")
	conf.Database.Port = v.GetString("database.port")
	conf.Database.Name = v.GetString("database.name")
	conf.Database.User = v.GetString("database.user")
	conf.Database.Password = v.GetString("database.password")
	conf.Database.AdminUser = v.GetString("database.adminUser")
	conf.Database.AdminPassword = v.GetString("database.adminPassword")
	conf.Database.DisableTLS = v.GetBool("database.disableTLS")

	conf.Redis.Addr = v.GetString("redis.addr")
	conf.Redis.Password = v.GetString("redis.password")
	conf.Redis.DB = v.GetInt("redis.db")

	conf.Device.ServerURL = strings.TrimRight(v.GetString("device.serverURL"), "/")
	conf.Device.CachePath = v.GetString("device.cachePath")
	conf.Device.ProbeURL = v.GetString("device.probeURL")
	conf.Device.ProbeInterval = v.GetDuration("device.probeInterval")

	return conf
}

// NewTestConfig returns a Config suited to tests: no disk or env lookups.
func NewTestConfig() *Config {
	conf := &Config{
		Env:                "TEST",
		Build:              "test",
		TestMode:           true,
		AppName:            "TTR Gestion",
		SecretKey:          "test-secret-key",
		FrontendBaseURL:    "http://localhost:3000",
		JWTExpirationDelta: time.Hour,
		OverrideTokenTTL:   30 * time.Minute,
		defaultFromEmail:   "TTR Gestion <noreply@localhost>",
	}
	conf.Server.ShutdownTimeout = time.Second
	conf.Server.RateLimit = "1000-M"
	conf.Database.Engine = "memory"
	return conf
}
