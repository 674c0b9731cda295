package validation

import (
	"strings"
	"testing"
)

func TestValidateDisplayName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"simple", "alice", false},
		{"with spaces", "  Bob Smith ", false},
		{"unicode", "Zoë", false},
		{"empty", "", true},
		{"whitespace only", "   ", true},
		{"too long", strings.Repeat("a", MaxDisplayNameLength+1), true},
		{"max length", strings.Repeat("a", MaxDisplayNameLength), false},
		{"control char", "al\x00ice", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateDisplayName(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateDisplayName(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestValidateRoomCode(t *testing.T) {
	tests := []struct {
		code    string
		wantErr bool
	}{
		{"ABC123", false},
		{"ZZZZZZ", false},
		{"abc123", true},
		{"ABC12", true},
		{"ABC1234", true},
		{"ABC-12", true},
		{"", true},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := ValidateRoomCode(tt.code)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateRoomCode(%q) error = %v, wantErr %v", tt.code, err, tt.wantErr)
			}
		})
	}
}

func TestValidateURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		schemes []string
		wantErr bool
	}{
		{"http", "http://localhost:8080", nil, false},
		{"wss", "wss://relay.example.com/ws", nil, false},
		{"ftp rejected", "ftp://example.com", nil, true},
		{"no host", "http://", nil, true},
		{"empty", "", nil, true},
		{"ws only accepts ws", "http://localhost/ws", []string{"ws", "wss"}, true},
		{"ws only ok", "ws://localhost/ws", []string{"ws", "wss"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateURL(tt.url, tt.schemes...)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateURL(%q) error = %v, wantErr %v", tt.url, err, tt.wantErr)
			}
		})
	}
}

func TestValidateNonEmptyString(t *testing.T) {
	if err := ValidateNonEmptyString(" x ", "field"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := ValidateNonEmptyString("  ", "field"); err == nil || !strings.Contains(err.Error(), "field") {
		t.Errorf("expected field error, got %v", err)
	}
}
