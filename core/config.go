package core

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	ServerConfig struct {
		Host                      string
		Port                      int
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
		ShutdownTimeout           time.Duration
	}

	DatabaseConfig struct {
		Engine        string
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		Host          string
		Port          int
		DisableTLS    bool
	}

	// PaystackConfig holds the payment gateway settings. SubscriptionAmount
	// is in the minor currency unit (kobo).
	PaystackConfig struct {
		SecretKey          string
		BaseURL            string
		SubscriptionAmount int64
		CurrencyCode       string
		CallbackURL        string
		Timeout            time.Duration
	}

	Config struct {
		Debug            bool
		TestMode         bool
		Env              string // DEV (local; default), TEST, QA, PROD
		Build            string
		AppName          string
		SecretKey        string
		FrontendBaseURL  string
		DefaultFromEmail string

		// TrialDays is the trial period granted on registration; it has no
		// default and must be set explicitly.
		TrialDays int
		// TrialLimit is the max student count a school may have while its
		// time-based subscription is expired.
		TrialLimit int

		SendgridAPIKey string
		RollbarToken   string

		Server   ServerConfig
		Database DatabaseConfig
		Paystack PaystackConfig
	}
)

func (c DatabaseConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func NewConfig() *Config {
	conf := viper.New()

	// defaults
	conf.SetTypeByDefaultValue(true)
	conf.SetDefault("debug", true)
	conf.SetDefault("appName", "Karo")
	conf.SetDefault("secretKey", "o2d$g7^jw1q)8bk&3mh!e+x5u0c4(z9r#vfy6t_ln-sp*aqi%m")
	conf.SetDefault("frontendBaseURL", "http://localhost:3000")
	conf.SetDefault("defaultFromEmail", "noreply@localhost")
	conf.SetDefault("trialDays", 0)
	conf.SetDefault("trialLimit", 2)
	conf.SetDefault("sendgridAPIKey", "")
	conf.SetDefault("rollbarToken", "")
	conf.SetDefault("build", "dev")

	conf.SetDefault("server.host", "localhost")
	conf.SetDefault("server.port", 8000)
	conf.SetDefault("server.jwtExpirationDelta", 7*24*time.Hour)
	conf.SetDefault("server.jwtRefreshExpirationDelta", 4*time.Hour)
	conf.SetDefault("server.shutdownTimeout", 5*time.Second)

	conf.SetDefault("database.engine", "postgres")
	conf.SetDefault("database.name", "karo")
	conf.SetDefault("database.user", "karo")
	conf.SetDefault("database.password", "karo")
	conf.SetDefault("database.adminUser", "")
	conf.SetDefault("database.adminPassword", "")
	conf.SetDefault("database.host", "localhost")
	conf.SetDefault("database.port", 5432)
	conf.SetDefault("database.disableTLS", true)

	conf.SetDefault("paystack.secretKey", "")
	conf.SetDefault("paystack.baseURL", "https://api.paystack.co")
	conf.SetDefault("paystack.subscriptionAmount", 1000000) // NGN 10,000 in kobo
	conf.SetDefault("paystack.currencyCode", "NGN")
	conf.SetDefault("paystack.callbackURL", "http://localhost:8000/v1/subscription/callback")
	conf.SetDefault("paystack.timeout", 10*time.Second)

	env := os.Getenv("ENV")
	var testMode bool
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		testMode = true
	}
	conf.SetEnvPrefix(env)
	conf.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(Getwd(), "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	conf.AutomaticEnv()

	return &Config{
		Debug:            conf.GetBool("debug"),
		TestMode:         testMode,
		Env:              env,
		Build:            conf.GetString("build"),
		AppName:          conf.GetString("appName"),
		SecretKey:        conf.GetString("secretKey"),
		FrontendBaseURL:  conf.GetString("frontendBaseURL"),
		DefaultFromEmail: conf.GetString("defaultFromEmail"),
		TrialDays:        conf.GetInt("trialDays"),
		TrialLimit:       conf.GetInt("trialLimit"),
		SendgridAPIKey:   conf.GetString("sendgridAPIKey"),
		RollbarToken:     conf.GetString("rollbarToken"),
		Server: ServerConfig{
			Host:                      conf.GetString("server.host"),
			Port:                      conf.GetInt("server.port"),
			JWTExpirationDelta:        conf.GetDuration("server.jwtExpirationDelta"),
			JWTRefreshExpirationDelta: conf.GetDuration("server.jwtRefreshExpirationDelta"),
			ShutdownTimeout:           conf.GetDuration("server.shutdownTimeout"),
		},
		Database: DatabaseConfig{
			Engine:        conf.GetString("database.engine"),
			Name:          conf.GetString("database.name"),
			User:          conf.GetString("database.user"),
			Password:      conf.GetString("database.password"),
			AdminUser:     conf.GetString("database.adminUser"),
			AdminPassword: conf.GetString("database.adminPassword"),
			Host:          conf.GetString("database.host"),
			Port:          conf.GetInt("database.port"),
			DisableTLS:    conf.GetBool("database.disableTLS"),
		},
		Paystack: PaystackConfig{
			SecretKey:          conf.GetString("paystack.secretKey"),
			BaseURL:            conf.GetString("paystack.baseURL"),
			SubscriptionAmount: conf.GetInt64("paystack.subscriptionAmount"),
			CurrencyCode:       conf.GetString("paystack.currencyCode"),
			CallbackURL:        conf.GetString("paystack.callbackURL"),
			Timeout:            conf.GetDuration("paystack.timeout"),
		},
	}
}
