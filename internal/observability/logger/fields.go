package logger

import (
	"time"

	"go.uber.org/zap"
)

// Standard field constructors. Using these instead of raw zap keys keeps
// log keys identical across controllers, services and stores.

func RequestID(v string) zap.Field { return zap.String("request_id", v) }
func Method(v string) zap.Field    { return zap.String("method", v) }
func Path(v string) zap.Field      { return zap.String("path", v) }
func Status(v int) zap.Field       { return zap.Int("status", v) }

func Duration(v time.Duration) zap.Field { return zap.Duration("duration", v) }
func ClientIP(v string) zap.Field        { return zap.String("client_ip", v) }

func UserID(v string) zap.Field   { return zap.String("user_id", v) }
func Provider(v string) zap.Field { return zap.String("provider", v) }
func Role(v string) zap.Field     { return zap.String("role", v) }

// EmailMasked logs an email with the local part truncated; raw addresses
// never go to logs.
func EmailMasked(email string) zap.Field {
	return zap.String("email_masked", MaskEmail(email))
}

func Component(v string) zap.Field { return zap.String("component", v) }
func Op(v string) zap.Field        { return zap.String("op", v) }
func Layer(v string) zap.Field     { return zap.String("layer", v) }
func State(v string) zap.Field     { return zap.String("state", v) }

func Err(err error) zap.Field { return zap.Error(err) }

// MaskEmail shows the first two characters plus the domain.
func MaskEmail(email string) string {
	if len(email) < 3 {
		return "***"
	}
	at := -1
	for i, c := range email {
		if c == '@' {
			at = i
			break
		}
	}
	if at < 0 || at < 2 {
		return email[:2] + "***"
	}
	return email[:2] + "***" + email[at:]
}
