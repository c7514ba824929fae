package helpers

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"strings"
	"time"
)

var ErrActivationTokenInvalid = errors.New("activation token invalid")

// ActivationCodec mints and verifies the signed tokens embedded in
// email-confirmation and password-reset links.
//
// The HMAC tag covers the user's current password hash and active flag, so
// a password change or a completed activation invalidates any link that is
// still in flight. Nothing is stored server-side.
type ActivationCodec struct {
	secret []byte
	ttl    time.Duration
}

func NewActivationCodec(secret string, ttl time.Duration) *ActivationCodec {
	return &ActivationCodec{secret: []byte(secret), ttl: ttl}
}

// Issue returns a token of the form <ts36>-<tag> bound to the user's
// current state. purpose separates activation links from reset links.
func (c *ActivationCodec) Issue(purpose, uid, passwordHash string, isActive bool) string {
	ts := strconv.FormatInt(time.Now().Unix(), 36)
	return ts + "-" + c.tag(purpose, uid, passwordHash, isActive, ts)
}

// Verify recomputes the tag from the user's CURRENT stored state. It fails
// on tamper, state change, or elapsed TTL.
func (c *ActivationCodec) Verify(token, purpose, uid, passwordHash string, isActive bool) error {
	ts, tag, ok := strings.Cut(token, "-")
	if !ok {
		return ErrActivationTokenInvalid
	}
	issued, err := strconv.ParseInt(ts, 36, 64)
	if err != nil {
		return ErrActivationTokenInvalid
	}
	if c.ttl > 0 && time.Since(time.Unix(issued, 0)) > c.ttl {
		return ErrActivationTokenInvalid
	}
	want := c.tag(purpose, uid, passwordHash, isActive, ts)
	if !hmac.Equal([]byte(tag), []byte(want)) {
		return ErrActivationTokenInvalid
	}
	return nil
}

func (c *ActivationCodec) tag(purpose, uid, passwordHash string, isActive bool, ts string) string {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write([]byte(purpose + "|" + uid + "|" + passwordHash + "|" + strconv.FormatBool(isActive) + "|" + ts))
	return hex.EncodeToString(mac.Sum(nil))[:32]
}
