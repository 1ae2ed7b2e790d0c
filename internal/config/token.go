package config

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"ladder/internal/util"
)

var (
	// ErrTokenExpired means the token is valid, but expired.
	ErrTokenExpired = errors.New("token expired")
	ErrTokenInvalid = errors.New("invalid token")
)

// SignPlayerToken returns a token identifying playerID, valid for the given
// duration. Format: <player UUID>.<expiry UNIX timestamp>.<HMAC-SHA256>
func (c *Config) SignPlayerToken(playerID util.UUIDAsBlob, d time.Duration) (string, error) {
	payload := playerID.String() + "." + strconv.FormatInt(time.Now().Add(d).Unix(), 10)

	mac, err := c.sign([]byte(payload))
	if err != nil {
		return "", err
	}

	return payload + "." + mac, nil
}

// CheckPlayerToken ensures the given token is properly signed and returns
// the player it identifies.
func (c *Config) CheckPlayerToken(str string) (util.UUIDAsBlob, error) {
	parts := strings.Split(str, ".")
	if len(parts) != 3 {
		return util.UUIDAsBlob{}, ErrTokenInvalid
	}

	mac, err := c.sign([]byte(parts[0] + "." + parts[1]))
	if err != nil {
		return util.UUIDAsBlob{}, err
	}

	if !hmac.Equal([]byte(mac), []byte(parts[2])) {
		return util.UUIDAsBlob{}, ErrTokenInvalid
	}

	playerID, err := util.ParseUUIDAsBlob(parts[0])
	if err != nil {
		return util.UUIDAsBlob{}, ErrTokenInvalid
	}

	expiry, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return util.UUIDAsBlob{}, ErrTokenInvalid
	}

	// Keep this last, this error must be returned _only_ if the token is valid.
	if time.Unix(expiry, 0).Before(time.Now()) {
		return util.UUIDAsBlob{}, ErrTokenExpired
	}

	return playerID, nil
}

func (c *Config) sign(b []byte) (string, error) {
	if len(c.WebToken) < 32 {
		return "", fmt.Errorf("web token must be ≥ 32 chars, got %d", len(c.WebToken))
	}

	mac := hmac.New(sha256.New, []byte(c.WebToken))
	if _, err := mac.Write(b); err != nil {
		return "", err
	}

	return hex.EncodeToString(mac.Sum(nil)), nil
}
