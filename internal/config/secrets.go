package config

const redacted = "***"

// Redacted returns a copy of the config with all secret material masked,
// safe to log at startup.
func (c *Config) Redacted() Config {
	out := *c

	if out.Kalshi.KeyPassword != "" {
		out.Kalshi.KeyPassword = redacted
	}
	if out.Kalshi.PrivateKeyPEM != "" {
		out.Kalshi.PrivateKeyPEM = redacted
	}
	if out.Postgres.DSN != "" {
		out.Postgres.DSN = redacted
	}
	if out.Postgres.Password != "" {
		out.Postgres.Password = redacted
	}
	if out.Redis.Password != "" {
		out.Redis.Password = redacted
	}
	if out.S3.AccessKey != "" {
		out.S3.AccessKey = redacted
	}
	if out.S3.SecretKey != "" {
		out.S3.SecretKey = redacted
	}
	if out.Server.APIKey != "" {
		out.Server.APIKey = redacted
	}
	if out.Notify.TelegramToken != "" {
		out.Notify.TelegramToken = redacted
	}
	if out.Notify.DiscordWebhookURL != "" {
		out.Notify.DiscordWebhookURL = redacted
	}

	// Detach shared slices so callers cannot mutate the original.
	out.Strategy.Tickers = append([]string(nil), c.Strategy.Tickers...)
	out.Server.CORSOrigins = append([]string(nil), c.Server.CORSOrigins...)

	return out
}
