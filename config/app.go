package config

type App struct {
	Port             string  `env:"APP_PORT" default:"8080"`
	DatabaseURL      string  `env:"DATABASE_URL,required"`
	JWTSecret        string  `env:"JWT_SECRET,required"`
	Env              string  `env:"APP_ENV" default:"dev"`
	BorrowDaysLimit  int     `env:"BORROW_DAYS_LIMIT" default:"14"`
	FinePerDay       float64 `env:"FINE_PER_DAY" default:"10.0"`
	NotifyWebhookURL string  `env:"NOTIFY_WEBHOOK_URL"`
}
