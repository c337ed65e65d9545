package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"strconv"
	"strings"
	"time"
)

var (
	ErrInvalidToken = errors.New("invalid token format")
	ErrBadSignature = errors.New("invalid signature")
	ErrTokenExpired = errors.New("session expired")
)

func sign(payload, secret []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// CreateSessionToken はファウンダーIDと有効期限から署名付きセッショントークンを生成する。
// 形式: base64(founderID "|" unix秒) "." hex(HMAC-SHA256)
func CreateSessionToken(founderID string, expires time.Time, secret []byte) string {
	payload := []byte(founderID + "|" + strconv.FormatInt(expires.Unix(), 10))
	return base64.URLEncoding.EncodeToString(payload) + "." + sign(payload, secret)
}

// VerifySessionToken はトークンを検証しファウンダーIDを返す
func VerifySessionToken(token string, secret []byte, now time.Time) (string, error) {
	encoded, sig, ok := strings.Cut(token, ".")
	if !ok {
		return "", ErrInvalidToken
	}
	payload, err := base64.URLEncoding.DecodeString(encoded)
	if err != nil {
		return "", ErrInvalidToken
	}
	if !hmac.Equal([]byte(sign(payload, secret)), []byte(sig)) {
		return "", ErrBadSignature
	}

	founderID, exp, ok := strings.Cut(string(payload), "|")
	if !ok || founderID == "" {
		return "", ErrInvalidToken
	}
	expUnix, err := strconv.ParseInt(exp, 10, 64)
	if err != nil {
		return "", ErrInvalidToken
	}
	if !now.Before(time.Unix(expUnix, 0)) {
		return "", ErrTokenExpired
	}
	return founderID, nil
}

const sessionCookieName = "valley_session"
const minSecretLen = 32

// SessionCookieName はセッションクッキー名
func SessionCookieName() string {
	return sessionCookieName
}

// SessionSecretBytes は文字列からセッション署名用のバイト列を生成する（最低32バイト）
func SessionSecretBytes(s string) []byte {
	b := []byte(s)
	if len(b) < minSecretLen {
		out := make([]byte, minSecretLen)
		copy(out, b)
		return out
	}
	return b
}
