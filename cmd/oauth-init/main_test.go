package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/oauth2"
)

const clientJSON = `{"installed":{"client_id":"id","client_secret":"secret","redirect_uris":["http://localhost"],"auth_uri":"https://accounts.google.com/o/oauth2/auth","token_uri":"https://oauth2.googleapis.com/token"}}`

func TestLoadClientConfig(t *testing.T) {
	t.Setenv("GOOGLE_OAUTH_CLIENT_JSON", "")
	if _, err := loadClientConfig(""); err == nil || !strings.Contains(err.Error(), "GOOGLE_OAUTH_CLIENT_FILE") {
		t.Fatalf("err=%v", err)
	}

	path := filepath.Join(t.TempDir(), "client.json")
	if err := os.WriteFile(path, []byte(clientJSON), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := loadClientConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ClientID != "id" {
		t.Errorf("client id = %q", cfg.ClientID)
	}

	t.Setenv("GOOGLE_OAUTH_CLIENT_JSON", "nope")
	if _, err := loadClientConfig(path); err == nil {
		t.Error("env JSON takes precedence and is invalid")
	}
}

func TestSaveToken(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	if err := saveToken(path, &oauth2.Token{AccessToken: "at", RefreshToken: "rt"}); err != nil {
		t.Fatal(err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("perm = %v", info.Mode().Perm())
	}
	b, _ := os.ReadFile(path)
	var tok oauth2.Token
	if err := json.Unmarshal(b, &tok); err != nil || tok.RefreshToken != "rt" {
		t.Fatalf("token = %+v, err=%v", tok, err)
	}
}
