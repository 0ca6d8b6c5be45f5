package config

import "regexp"

// dsnPassword matches the password part of a postgres:// URL.
var dsnPassword = regexp.MustCompile(`(://[^:/@]+:)[^@]+@`)

// RedactedConfig returns a copy of cfg safe to log: secrets become "***" and
// slices are copied so the original cannot be mutated through the result.
func RedactedConfig(cfg *Config) Config {
	out := *cfg

	if out.Postgres.DSN != "" {
		out.Postgres.DSN = dsnPassword.ReplaceAllString(out.Postgres.DSN, "${1}"+redacted+"@")
	}
	redact(&out.Postgres.Password)
	redact(&out.Redis.Password)
	redact(&out.S3.AccessKey)
	redact(&out.S3.SecretKey)
	redact(&out.Server.APIKey)
	redact(&out.Notify.TelegramToken)
	redact(&out.Notify.DiscordWebhookURL)

	out.Notify.Events = append([]string(nil), cfg.Notify.Events...)
	out.Server.CORSOrigins = append([]string(nil), cfg.Server.CORSOrigins...)
	return out
}

const redacted = "***"

func redact(s *string) {
	if *s != "" {
		*s = redacted
	}
}
