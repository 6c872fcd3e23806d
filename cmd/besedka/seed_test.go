package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestParseSeedArgs(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		want    seedOptions
		wantErr bool
	}{
		{name: "defaults", args: nil, want: seedOptions{Users: 10, Chats: 5, Messages: 50}},
		{name: "all overridden", args: []string{"--users", "3", "--chats", "2", "--messages", "7"},
			want: seedOptions{Users: 3, Chats: 2, Messages: 7}},
		{name: "missing value", args: []string{"--users"}, wantErr: true},
		{name: "negative value", args: []string{"--chats", "-1"}, wantErr: true},
		{name: "non-numeric value", args: []string{"--messages", "lots"}, wantErr: true},
		{name: "unknown flag", args: []string{"--drop-tables"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts, err := parseSeedArgs(tt.args)
			if tt.wantErr {
				if err == nil {
					t.Error("Expected an error")
				}
				return
			}
			if err != nil {
				t.Fatalf("parseSeedArgs() returned error: %v", err)
			}
			if opts != tt.want {
				t.Errorf("parseSeedArgs() = %+v, want %+v", opts, tt.want)
			}
		})
	}
}

func TestRunSeed(t *testing.T) {
	cfg := testConfig(t)

	var out bytes.Buffer
	// Two chats: one private, one group, so repeated private pairs
	// cannot collapse into an existing chat.
	if err := runSeed(cfg, &out, []string{"--users", "4", "--chats", "2", "--messages", "10"}); err != nil {
		t.Fatalf("runSeed() returned error: %v", err)
	}
	if !strings.Contains(out.String(), "Seeded 4 users, 2 chats, 10 messages") {
		t.Errorf("Unexpected seed output: %s", out.String())
	}

	status := collectStatus(cfg)
	if !status.DBMetricsReady {
		t.Fatalf("Status unavailable after seeding: %s", status.DBWarning)
	}
	if status.Users != 4 {
		t.Errorf("Users = %d, want 4", status.Users)
	}
	if status.Chats != 2 {
		t.Errorf("Chats = %d, want 2", status.Chats)
	}
	// Each chat also carries a system announcement.
	if status.Messages != 12 {
		t.Errorf("Messages = %d, want 12", status.Messages)
	}
}

func TestRunSeedTooFewUsers(t *testing.T) {
	cfg := testConfig(t)

	var out bytes.Buffer
	if err := runSeed(cfg, &out, []string{"--users", "1"}); err != nil {
		t.Fatalf("runSeed() returned error: %v", err)
	}
	if !strings.Contains(out.String(), "skipping chats") {
		t.Errorf("Unexpected seed output: %s", out.String())
	}
}

func TestPickPair(t *testing.T) {
	for i := 0; i < 100; i++ {
		a, b := pickPair(5)
		if a == b {
			t.Fatalf("pickPair returned identical indexes: %d", a)
		}
		if a < 0 || a >= 5 || b < 0 || b >= 5 {
			t.Fatalf("pickPair returned out-of-range indexes: %d, %d", a, b)
		}
	}
}
