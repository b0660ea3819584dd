package internal

import (
	"fmt"
	"time"
)

type Config struct {
	Host string `env:"HOST,required=true"`
	Port int    `env:"PORT,required=true"`

	DBPath      string `env:"DB_PATH,required=true"`
	TokenSecret string `env:"TOKEN_SECRET,required=true"`
	LogLevel    string `env:"LOG_LEVEL,required=true"`

	// AuthTimeout bounds how long an unauthenticated connection may stay
	// open before the relay closes it.
	AuthTimeout     time.Duration `env:"AUTH_TIMEOUT,required=true"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT,required=true"`

	// CensoredWordsFile is optional: when empty, messages are relayed as-is.
	CensoredWordsFile string `env:"CENSORED_WORDS_FILE"`
	CharReplacement   string `env:"CHARACTER_REPLACEMENT"`

	// StatsPort is optional: when nil, the debug stats endpoint stays off.
	StatsPort *int `env:"STATS_PORT"`
}

func CharacterRune(str string) (rune, error) {
	r := []rune(str)
	if len(r) != 1 {
		return 0, fmt.Errorf(
			"CHARACTER_REPLACEMENT must be a single character, got %q",
			str,
		)
	}
	return r[0], nil
}
