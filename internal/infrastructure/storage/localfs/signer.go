package localfs

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"strconv"
	"time"
)

// URLSigner mints and verifies expiring links to stored objects. The MAC
// covers both the key and the deadline, so neither can be swapped.
type URLSigner struct {
	baseURL string
	secret  []byte
}

func NewURLSigner(baseURL string, secret string) *URLSigner {
	return &URLSigner{baseURL: baseURL, secret: []byte(secret)}
}

func (s *URLSigner) Sign(key string, deadline time.Time) string {
	exp := strconv.FormatInt(deadline.Unix(), 10)
	return fmt.Sprintf("%s/v1/files/%s?exp=%s&sig=%s",
		s.baseURL, url.PathEscape(key), exp, s.mac(key, exp))
}

// Verify checks the signature and the deadline for a file request.
func (s *URLSigner) Verify(key, exp, sig string, now time.Time) error {
	expected := s.mac(key, exp)
	if !hmac.Equal([]byte(expected), []byte(sig)) {
		return fmt.Errorf("signature mismatch")
	}
	deadline, err := strconv.ParseInt(exp, 10, 64)
	if err != nil {
		return fmt.Errorf("malformed deadline: %w", err)
	}
	if now.Unix() > deadline {
		return fmt.Errorf("link expired")
	}
	return nil
}

func (s *URLSigner) mac(key, exp string) string {
	h := hmac.New(sha256.New, s.secret)
	h.Write([]byte(key))
	h.Write([]byte{'|'})
	h.Write([]byte(exp))
	return hex.EncodeToString(h.Sum(nil))
}
