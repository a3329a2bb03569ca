package core

import (
	"fmt"
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

type (
	Config struct {
		AppName      string `mapstructure:"appName"`
		Build        string `mapstructure:"build"`
		Env          string `mapstructure:"-"`
		Debug        bool   `mapstructure:"debug"`
		TestMode     bool   `mapstructure:"testMode"`
		SecretKey    string `mapstructure:"secretKey"`
		RollbarToken string `mapstructure:"rollbarToken"`
		WorkDir      string `mapstructure:"workDir"`

		Server   ServerConfig   `mapstructure:"server"`
		Database DatabaseConfig `mapstructure:"database"`
		Bot      BotConfig      `mapstructure:"bot"`
		Dispatch DispatchConfig `mapstructure:"dispatch"`
		Email    EmailConfig    `mapstructure:"email"`
	}

	ServerConfig struct {
		Host               string        `mapstructure:"host"`
		Address            string        `mapstructure:"address"`
		DebugHost          string        `mapstructure:"debugHost"`
		ShutdownTimeout    time.Duration `mapstructure:"shutdownTimeout"`
		JWTExpirationDelta time.Duration `mapstructure:"jwtExpirationDelta"`
	}

	DatabaseConfig struct {
		Engine        string `mapstructure:"engine"` // postgres | sqlite
		Host          string `mapstructure:"host"`
		Port          string `mapstructure:"port"`
		Name          string `mapstructure:"name"` // file path or ":memory:" for sqlite
		User          string `mapstructure:"user"`
		Password      string `mapstructure:"password"`
		AdminUser     string `mapstructure:"adminUser"`
		AdminPassword string `mapstructure:"adminPassword"`
		DisableTLS    bool   `mapstructure:"disableTLS"`
	}

	BotConfig struct {
		APIBaseURL     string        `mapstructure:"apiBaseURL"`
		PublicURL      string        `mapstructure:"publicURL"`
		WebhookSecret  string        `mapstructure:"webhookSecret"`
		RequestTimeout time.Duration `mapstructure:"requestTimeout"`
		RateLimit      float64       `mapstructure:"rateLimit"` // messages per second
		RateBurst      int           `mapstructure:"rateBurst"`
	}

	DispatchConfig struct {
		Workers     int    `mapstructure:"workers"`
		ReportEmail string `mapstructure:"reportEmail"`
	}

	EmailConfig struct {
		SendgridApiKey   string        `mapstructure:"sendgridApiKey"`
		SendgridHost     string        `mapstructure:"sendgridHost"`
		DefaultFromEmail string        `mapstructure:"defaultFromEmail"`
		ReplyTo          string        `mapstructure:"replyTo"` // operators answering a report reach this address
		SendTimeout      time.Duration `mapstructure:"sendTimeout"`
	}
)

func (dc DatabaseConfig) Address() string {
	return net.JoinHostPort(dc.Host, dc.Port)
}

// ReplyToAddress is nil when no valid reply-to address is configured.
func (ec EmailConfig) ReplyToAddress() *mail.Address {
	addr, err := mail.ParseAddress(ec.ReplyTo)
	if err != nil {
		return nil
	}
	return addr
}

func (ec EmailConfig) FromAddress() mail.Address {
	addr, err := mail.ParseAddress(ec.DefaultFromEmail)
	if err != nil {
		return mail.Address{Address: ec.DefaultFromEmail}
	}
	return *addr
}

// NewConfig loads the configuration for the current ENV (DEV by default).
// Values come from, in order of precedence: environment variables prefixed with ENV (eg. PROD_BOT_PUBLICURL),
// the optional `config/.env.<env>` file, then the defaults below.
func NewConfig() *Config {
	v := viper.New()
	setDefaults(v)

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
		v.SetDefault("database.engine", "sqlite")
		v.SetDefault("database.name", ":memory:")
	}
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(v.GetString("workDir"), "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	conf := new(Config)
	if err := v.Unmarshal(conf); err != nil {
		log.Fatalf("config.Unmarshal: %v", err)
	}
	conf.Env = env
	return conf
}

func setDefaults(v *viper.Viper) {
	v.SetTypeByDefaultValue(true)

	v.SetDefault("appName", "EduTrack360")
	v.SetDefault("build", "develop")
	v.SetDefault("debug", true)
	v.SetDefault("testMode", false)
	v.SetDefault("secretKey", "3r!q8z-edutrack360-dev-only-k@y(w0t5p#n1v")
	v.SetDefault("rollbarToken", "")
	v.SetDefault("workDir", Getwd())

	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.address", ":8000")
	v.SetDefault("server.debugHost", "localhost:4000")
	v.SetDefault("server.shutdownTimeout", 5*time.Second)
	v.SetDefault("server.jwtExpirationDelta", 7*24*time.Hour)

	v.SetDefault("database.engine", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.name", "edutrack")
	v.SetDefault("database.user", "edutrack")
	v.SetDefault("database.password", "edutrack")
	v.SetDefault("database.adminUser", "postgres")
	v.SetDefault("database.adminPassword", "")
	v.SetDefault("database.disableTLS", true)

	v.SetDefault("bot.apiBaseURL", "https://api.telegram.org")
	v.SetDefault("bot.publicURL", "")
	v.SetDefault("bot.webhookSecret", "")
	v.SetDefault("bot.requestTimeout", 10*time.Second)
	v.SetDefault("bot.rateLimit", 25.0)
	v.SetDefault("bot.rateBurst", 30)

	v.SetDefault("dispatch.workers", 8)
	v.SetDefault("dispatch.reportEmail", "")

	v.SetDefault("email.sendgridApiKey", "")
	v.SetDefault("email.sendgridHost", "https://api.sendgrid.com")
	v.SetDefault("email.defaultFromEmail", "EduTrack360 <noreply@localhost>")
	v.SetDefault("email.replyTo", "")
	v.SetDefault("email.sendTimeout", 15*time.Second)
}

func (c *Config) String() string {
	return fmt.Sprintf("%s(%s) env=%s debug=%v db=%s", c.AppName, c.Build, c.Env, c.Debug, c.Database.Engine)
}
