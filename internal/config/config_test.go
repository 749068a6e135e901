package config

import (
	"os"
	"path/filepath"
	"testing"

	"kassa/internal/models"
)

func TestLoadConfig(t *testing.T) {
	// Create a temporary config file
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	yamlContent := `
backend:
  base_url: "https://api.example.com"
  api_key: "test_key"
database:
  path: "test.db"
store:
  id: 42
  employee_id: 7
loyalty:
  enabled: true
  points_per_currency: 0.5
`
	if err := os.WriteFile(configPath, []byte(yamlContent), 0o644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Backend.BaseURL != "https://api.example.com" {
		t.Errorf("expected base_url https://api.example.com, got %s", cfg.Backend.BaseURL)
	}

	if cfg.Store.ID != 42 || cfg.Store.EmployeeID != 7 {
		t.Errorf("expected store 42 employee 7, got %d/%d", cfg.Store.ID, cfg.Store.EmployeeID)
	}

	if !cfg.Loyalty.Enabled || cfg.Loyalty.PointsPerCurrency != 0.5 {
		t.Errorf("expected loyalty enabled with 0.5 points per currency")
	}
}

func TestLoadConfigExpandsEnv(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	t.Setenv("KASSA_API_KEY", "secret_from_env")

	yamlContent := `
backend:
  base_url: "https://api.example.com"
  api_key: "${KASSA_API_KEY}"
database:
  path: "test.db"
store:
  id: 1
`
	if err := os.WriteFile(configPath, []byte(yamlContent), 0o644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Backend.APIKey != "secret_from_env" {
		t.Errorf("expected api_key from env, got %s", cfg.Backend.APIKey)
	}
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{
			name: "valid config",
			cfg: Config{
				Backend:  BackendConfig{BaseURL: "https://api.example.com"},
				Database: DatabaseConfig{Path: "kassa.db"},
				Store:    StoreConfig{ID: 1},
			},
			wantErr: false,
		},
		{
			name: "missing base_url",
			cfg: Config{
				Database: DatabaseConfig{Path: "kassa.db"},
				Store:    StoreConfig{ID: 1},
			},
			wantErr: true,
		},
		{
			name: "missing database path",
			cfg: Config{
				Backend: BackendConfig{BaseURL: "https://api.example.com"},
				Store:   StoreConfig{ID: 1},
			},
			wantErr: true,
		},
		{
			name: "missing store id",
			cfg: Config{
				Backend:  BackendConfig{BaseURL: "https://api.example.com"},
				Database: DatabaseConfig{Path: "kassa.db"},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.applyDefaults()

	if cfg.Stock.LowStockThreshold != models.DefaultLowStockThreshold {
		t.Errorf("expected default low stock threshold %d, got %d", models.DefaultLowStockThreshold, cfg.Stock.LowStockThreshold)
	}
	if cfg.Refresh.IntervalSeconds != models.DefaultRefreshIntervalSeconds {
		t.Errorf("expected default refresh interval %d, got %d", models.DefaultRefreshIntervalSeconds, cfg.Refresh.IntervalSeconds)
	}
	if cfg.Refresh.MaxAttempts != models.RefreshMaxAttempts {
		t.Errorf("expected default refresh attempts %d, got %d", models.RefreshMaxAttempts, cfg.Refresh.MaxAttempts)
	}
	if cfg.Backend.ProbeInterval != models.DefaultProbeIntervalSeconds {
		t.Errorf("expected default probe interval %d, got %d", models.DefaultProbeIntervalSeconds, cfg.Backend.ProbeInterval)
	}
	if cfg.Monitoring.HTTPPort != 8080 {
		t.Errorf("expected default http port 8080, got %d", cfg.Monitoring.HTTPPort)
	}
	if cfg.Exports.Path != "exports" {
		t.Errorf("expected default exports path, got %s", cfg.Exports.Path)
	}
}
