package isolation

import (
	"path/filepath"
	"reflect"
	"testing"

	"tshard/internal/config"
)

func TestPrepareCommand(t *testing.T) {
	root := string(filepath.Separator) + "app"
	artisan := filepath.Join(root, "artisan")

	tests := []struct {
		name       string
		prepareCmd string
		noFresh    bool
		wantName   string
		wantArgs   []string
	}{
		{
			name:     "default rebuilds the schema",
			wantName: "php",
			wantArgs: []string{artisan, "migrate:fresh", "--env=testing", "--force"},
		},
		{
			name:     "no-fresh keeps existing tables",
			noFresh:  true,
			wantName: "php",
			wantArgs: []string{artisan, "migrate", "--env=testing", "--force"},
		},
		{
			name:       "custom command replaces the default",
			prepareCmd: "make db-setup ARGS=--seed",
			wantName:   "make",
			wantArgs:   []string{"db-setup", "ARGS=--seed"},
		},
		{
			name:       "custom command without arguments",
			prepareCmd: "  ./scripts/prepare.sh  ",
			wantName:   "./scripts/prepare.sh",
			wantArgs:   []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.New()
			cfg.Flags.PrepareCmd = tt.prepareCmd
			p := NewProvisioner(cfg, NewDatabaseManager(cfg))

			name, args := p.prepareCommand(root, tt.noFresh)
			if name != tt.wantName {
				t.Errorf("command = %q, want %q", name, tt.wantName)
			}
			if !reflect.DeepEqual(args, tt.wantArgs) {
				t.Errorf("args = %v, want %v", args, tt.wantArgs)
			}
		})
	}
}

func TestDatabaseNameValidation(t *testing.T) {
	tests := []struct {
		name  string
		db    string
		valid bool
	}{
		{"default prefix", "testing_1", true},
		{"env prefix", "app_testing_12", true},
		{"empty", "", false},
		{"quote injection", "testing_1`; DROP DATABASE prod", false},
		{"spaces", "testing 1", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := dbNamePattern.MatchString(tt.db); got != tt.valid {
				t.Errorf("dbNamePattern.MatchString(%q) = %v, want %v", tt.db, got, tt.valid)
			}
		})
	}
}
