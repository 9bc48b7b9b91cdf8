package storage

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	ErrLinkMalformed = errors.New("malformed content link")
	ErrLinkSignature = errors.New("invalid content link signature")
	ErrLinkExpired   = errors.New("content link expired")
)

// LinkClaims identifies the document a content link grants access to.
type LinkClaims struct {
	DocumentID    string
	InstitutionID string
	ExpiresAt     time.Time
}

// LinkSigner issues short-lived HMAC tokens that let a browser fetch document
// content without an Authorization header (iframes, <a download>).
type LinkSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewLinkSigner constructs a signer with the provided secret and TTL.
func NewLinkSigner(secret string, ttl time.Duration) *LinkSigner {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &LinkSigner{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Generate returns token "<documentID>.<institutionID>.<unix expiry>.<hex mac>".
func (s *LinkSigner) Generate(documentID, institutionID string) (string, time.Time, error) {
	if documentID == "" || institutionID == "" {
		return "", time.Time{}, fmt.Errorf("document and institution required")
	}
	if len(s.secret) == 0 {
		return "", time.Time{}, fmt.Errorf("signing secret missing")
	}
	expiresAt := s.now().Add(s.ttl).Truncate(time.Second)
	exp := strconv.FormatInt(expiresAt.Unix(), 10)
	token := strings.Join([]string{documentID, institutionID, exp, s.sign(documentID, institutionID, exp)}, ".")
	return token, expiresAt, nil
}

// Parse validates the signature and expiry and returns the embedded claims.
func (s *LinkSigner) Parse(token string) (*LinkClaims, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 4 {
		return nil, ErrLinkMalformed
	}
	documentID, institutionID, exp, signature := parts[0], parts[1], parts[2], parts[3]
	expUnix, err := strconv.ParseInt(exp, 10, 64)
	if err != nil {
		return nil, ErrLinkMalformed
	}
	expected := s.sign(documentID, institutionID, exp)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return nil, ErrLinkSignature
	}
	expiresAt := time.Unix(expUnix, 0)
	if s.now().After(expiresAt) {
		return nil, ErrLinkExpired
	}
	return &LinkClaims{DocumentID: documentID, InstitutionID: institutionID, ExpiresAt: expiresAt}, nil
}

func (s *LinkSigner) sign(documentID, institutionID, exp string) string {
	mac := hmac.New(sha256.New, s.secret)
	_, _ = mac.Write([]byte(documentID + "|" + institutionID + "|" + exp))
	return hex.EncodeToString(mac.Sum(nil))
}
