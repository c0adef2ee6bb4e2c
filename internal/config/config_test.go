package config

import "testing"

func validConfig() *Config {
	return &Config{
		Telegram: TelegramConfig{Token: "123:abc", RunMode: "webhook"},
		Webhook:  WebhookConfig{URL: "https://bot.example.com/webhook", Listen: "0.0.0.0", Port: 3001},
	}
}

func TestNormalizeDefaults(t *testing.T) {
	cfg := validConfig()
	if err := Normalize(cfg); err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if cfg.Backend.URL != "http://localhost:3000" {
		t.Errorf("backend url default = %q", cfg.Backend.URL)
	}
	if cfg.Backend.TimeoutSeconds != 10 {
		t.Errorf("backend timeout default = %d", cfg.Backend.TimeoutSeconds)
	}
	if cfg.Restaurant.Lat != -16.389385 || cfg.Restaurant.Lng != -68.119294 {
		t.Errorf("restaurant default = %v,%v", cfg.Restaurant.Lat, cfg.Restaurant.Lng)
	}
	if cfg.Delivery.BaseFare != 5.0 || cfg.Delivery.FreeRadiusKm != 1.0 || cfg.Delivery.PerKmRate != 2.0 {
		t.Errorf("delivery tariff default = %+v", cfg.Delivery)
	}
}

func TestNormalizeRequiresToken(t *testing.T) {
	cfg := validConfig()
	cfg.Telegram.Token = ""
	if err := Normalize(cfg); err == nil {
		t.Fatal("Normalize() accepted empty token")
	}
}

func TestNormalizeRunMode(t *testing.T) {
	tests := []struct {
		name    string
		mode    string
		wantErr bool
		want    string
	}{
		{"webhook", "webhook", false, RunModeWebhook},
		{"longpoll", "longpoll", false, RunModeLongpoll},
		{"polling alias", "polling", false, RunModeLongpoll},
		{"empty defaults to webhook", "", false, RunModeWebhook},
		{"mixed case", "WebHook", false, RunModeWebhook},
		{"invalid", "carrier-pigeon", true, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			cfg.Telegram.RunMode = tt.mode
			err := Normalize(cfg)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Normalize() accepted run_mode %q", tt.mode)
				}
				return
			}
			if err != nil {
				t.Fatalf("Normalize() error = %v", err)
			}
			if cfg.Telegram.RunMode != tt.want {
				t.Errorf("run_mode = %q, want %q", cfg.Telegram.RunMode, tt.want)
			}
		})
	}
}

func TestNormalizeWebhookRequiresURL(t *testing.T) {
	cfg := validConfig()
	cfg.Webhook.URL = ""
	if err := Normalize(cfg); err == nil {
		t.Fatal("Normalize() accepted webhook mode without url")
	}
}

func TestNormalizeTrimsBackendSlash(t *testing.T) {
	cfg := validConfig()
	cfg.Backend.URL = "http://api.internal:3000/"
	if err := Normalize(cfg); err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if cfg.Backend.URL != "http://api.internal:3000" {
		t.Errorf("backend url = %q", cfg.Backend.URL)
	}
}

func TestNormalizeRateLimitExcludes(t *testing.T) {
	cfg := validConfig()
	cfg.RateLimit.ExcludeUpdates = []string{" Callback ", "message"}
	if err := Normalize(cfg); err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if cfg.RateLimit.ExcludeUpdates[0] != "callback" {
		t.Errorf("exclude[0] = %q", cfg.RateLimit.ExcludeUpdates[0])
	}

	cfg = validConfig()
	cfg.RateLimit.ExcludeUpdates = []string{"inline_query"}
	if err := Normalize(cfg); err == nil {
		t.Fatal("Normalize() accepted unknown exclude kind")
	}
}

func TestNormalizeNegativeTariff(t *testing.T) {
	cfg := validConfig()
	cfg.Delivery.BaseFare = -1
	if err := Normalize(cfg); err == nil {
		t.Fatal("Normalize() accepted negative base fare")
	}
}
