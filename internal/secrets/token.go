package secrets

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"surveydash/internal/config"

	"github.com/zalando/go-keyring"
)

const (
	// KeyringService groups this app's secrets in the OS keychain.
	KeyringService = "surveydash"
)

var ErrTokenNotFound = errors.New("API token not found (set the token env var or store it in the keychain)")

// APIToken resolves the upstream credential: the env var named by
// source.token_env first, then the keychain.
func APIToken(cfg config.Config) (string, error) {
	return lookupToken(cfg, os.Getenv, keyring.Get)
}

func lookupToken(cfg config.Config, getenv func(string) string, kget func(service, user string) (string, error)) (string, error) {
	if name := strings.TrimSpace(cfg.Source.TokenEnv); name != "" {
		if tok := strings.TrimSpace(getenv(name)); tok != "" {
			return tok, nil
		}
	}

	if acct := KeyringAccount(cfg); acct != "" {
		tok, err := kget(KeyringService, acct)
		if err == nil && strings.TrimSpace(tok) != "" {
			return strings.TrimSpace(tok), nil
		}
		if err != nil && !errors.Is(err, keyring.ErrNotFound) {
			return "", fmt.Errorf("keychain lookup: %w", err)
		}
	}
	return "", ErrTokenNotFound
}

func SetAPIToken(cfg config.Config, token string) error {
	acct := KeyringAccount(cfg)
	if acct == "" {
		return errors.New("keyring account name is empty")
	}
	if strings.TrimSpace(token) == "" {
		return errors.New("token is empty")
	}
	return keyring.Set(KeyringService, acct, strings.TrimSpace(token))
}

func DeleteAPIToken(cfg config.Config) error {
	acct := KeyringAccount(cfg)
	if acct == "" {
		return errors.New("keyring account name is empty")
	}
	return keyring.Delete(KeyringService, acct)
}

// KeyringAccount is source.keyring_account, or one derived from the base id.
func KeyringAccount(cfg config.Config) string {
	if a := strings.TrimSpace(cfg.Source.KeyringAccount); a != "" {
		return a
	}
	if strings.TrimSpace(cfg.Source.BaseID) == "" {
		return ""
	}
	return fmt.Sprintf("surveydash:airtable:%s", strings.TrimSpace(cfg.Source.BaseID))
}

// Mask shows only enough of a token to tell which one is loaded.
func Mask(tok string) string {
	if len(tok) <= 5 {
		return strings.Repeat("*", len(tok))
	}
	return tok[:5] + strings.Repeat("*", 8)
}
