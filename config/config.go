package config

import "time"

type Config struct {
	Web     Web
	DB      DB
	Cors    Cors
	Auth    Auth
	Email   Email
	Oauth   Oauth
	Stripe  Stripe
	Paypal  Paypal
	Storage Storage
	Video   VideoHost
	Rate    Rate
}

type Web struct {
	Address         string        `conf:"default:0.0.0.0:8000"`
	ReadTimeout     time.Duration `conf:"default:5s"`
	WriteTimeout    time.Duration `conf:"default:10s"`
	IdleTimeout     time.Duration `conf:"default:120s"`
	ShutdownTimeout time.Duration `conf:"default:20s"`
}

type DB struct {
	User       string `conf:"default:postgres"`
	Password   string `conf:"default:postgres,mask"`
	Host       string `conf:"default:localhost"`
	Name       string `conf:"default:coursery"`
	DisableTLS bool   `conf:"default:true"`
}

type Cors struct {
	Origin string `conf:"default:"`
}

type Auth struct {
	ActivationRequired bool `conf:"default:false"`
}

type Email struct {
	Host          string `conf:"default:localhost"`
	Port          string `conf:"default:25"`
	Address       string `conf:"default:no-reply@coursery.dev"`
	Password      string `conf:"default:,mask"`
	ActivationURL string `conf:"default:http://localhost:3000/activate"`
	RecoveryURL   string `conf:"default:http://localhost:3000/recover"`
	TokenTimeout  time.Duration `conf:"default:15m"`
}

type Oauth struct {
	DiscoveryTimeout time.Duration `conf:"default:30s"`
	LoginRedirectURL string        `conf:"default:http://localhost:3000"`
	Google           OauthProvider
}

type OauthProvider struct {
	Client      string `conf:"default:"`
	Secret      string `conf:"default:,mask"`
	URL         string `conf:"default:https://accounts.google.com"`
	RedirectURL string `conf:"default:http://localhost:8000/auth/oauth-callback/google"`
}

type Stripe struct {
	APISecret     string `conf:"default:,mask"`
	WebhookSecret string `conf:"default:,mask"`
	SuccessURL    string `conf:"default:http://localhost:3000/payment/success"`
	CancelURL     string `conf:"default:http://localhost:3000/payment/canceled"`
}

type Paypal struct {
	ClientID string `conf:"default:"`
	Secret   string `conf:"default:,mask"`
	URL      string `conf:"default:https://api.sandbox.paypal.com"`
}

// Storage configures the S3-compatible bucket holding course file
// attachments and top-up receipts.
type Storage struct {
	Bucket         string        `conf:"default:coursery-files"`
	Region         string        `conf:"default:us-east-1"`
	Endpoint       string        `conf:"default:"`
	UploadExpiry   time.Duration `conf:"default:15m"`
	DownloadExpiry time.Duration `conf:"default:1h"`
}

// VideoHost configures the external video hosting service used for
// direct uploads, transcoding and playback.
type VideoHost struct {
	URL         string        `conf:"default:https://api.videohost.example.com"`
	TokenID     string        `conf:"default:"`
	TokenSecret string        `conf:"default:,mask"`
	Timeout     time.Duration `conf:"default:10s"`
}

type Rate struct {
	Burst    int     `conf:"default:5"`
	Expiry   int     `conf:"default:60"`
	LimitRPS float64 `conf:"default:1"`
}
