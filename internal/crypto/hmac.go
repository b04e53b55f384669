// Package crypto implements request signing for the MEXC REST API.
package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

// HMACAuth holds the API credentials for signed MEXC requests.
type HMACAuth struct {
	Key    string // API key, sent as the X-MEXC-APIKEY header
	Secret string // API secret used as the HMAC key
}

// SignQuery appends a timestamp to the given parameters, signs the sorted
// query string with HMAC-SHA256, and returns the final encoded query
// including the signature parameter.
func (h *HMACAuth) SignQuery(params url.Values) string {
	return h.SignQueryAt(params, time.Now())
}

// SignQueryAt is like SignQuery but lets the caller supply the timestamp
// (useful for deterministic testing).
func (h *HMACAuth) SignQueryAt(params url.Values, at time.Time) string {
	if params == nil {
		params = url.Values{}
	}
	params.Set("timestamp", strconv.FormatInt(at.UnixMilli(), 10))

	message := canonicalQuery(params)
	sig := hmacSHA256Hex([]byte(h.Secret), message)

	return message + "&signature=" + sig
}

// canonicalQuery renders params as key=value pairs joined by '&' with keys in
// lexicographic order. The signature is computed over exactly this string.
func canonicalQuery(params url.Values) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+url.QueryEscape(params.Get(k)))
	}
	return strings.Join(pairs, "&")
}

// hmacSHA256Hex computes HMAC-SHA256 of message using key and returns the
// lowercase hex digest.
func hmacSHA256Hex(key []byte, message string) string {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(message))
	return hex.EncodeToString(mac.Sum(nil))
}

// String returns a redacted representation suitable for logging.
func (h *HMACAuth) String() string {
	redact := func(s string) string {
		if len(s) <= 4 {
			return "****"
		}
		return s[:4] + "****"
	}
	return fmt.Sprintf("HMACAuth{key=%s, secret=%s}", redact(h.Key), redact(h.Secret))
}
