package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "")
	t.Setenv("DEFAULT_REVIEW_DAYS", "")

	s := Load()
	if s.ServerPort == "" {
		t.Fatalf("expected a default port")
	}
	if s.SMTPPort != 587 {
		t.Fatalf("expected default smtp port 587, got %d", s.SMTPPort)
	}
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "Mongo")
	t.Setenv("DEFAULT_REVIEW_DAYS", "21")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example,")
	t.Setenv("APP_BASE_URL", "https://review.example/")

	s := Load()
	if s.StorageDriver != DriverMongo {
		t.Fatalf("expected mongo driver, got %q", s.StorageDriver)
	}
	if s.DefaultReviewDays != 21 {
		t.Fatalf("expected 21 review days, got %d", s.DefaultReviewDays)
	}
	if len(s.CORSOrigins) != 2 || s.CORSOrigins[1] != "https://b.example" {
		t.Fatalf("unexpected origins %v", s.CORSOrigins)
	}
	if s.AppBaseURL != "https://review.example" {
		t.Fatalf("expected trailing slash trimmed, got %q", s.AppBaseURL)
	}
}
