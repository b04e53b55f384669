package crypto

import (
	"net/url"
	"strings"
	"testing"
	"time"
)

func TestSignQueryAtDeterministic(t *testing.T) {
	auth := &HMACAuth{Key: "test-key", Secret: "test-secret"}
	at := time.UnixMilli(1700000000000)

	params := url.Values{}
	params.Set("symbol", "BTCUSDT")
	params.Set("side", "BUY")
	params.Set("type", "MARKET")
	params.Set("quantity", "0.01")

	q1 := auth.SignQueryAt(cloneValues(params), at)
	q2 := auth.SignQueryAt(cloneValues(params), at)
	if q1 != q2 {
		t.Fatalf("signature not deterministic:\n%s\n%s", q1, q2)
	}

	// Keys must be sorted so the exchange recomputes the same digest.
	wantPrefix := "quantity=0.01&side=BUY&symbol=BTCUSDT&timestamp=1700000000000&type=MARKET&signature="
	if !strings.HasPrefix(q1, wantPrefix) {
		t.Fatalf("unexpected canonical query: %s", q1)
	}

	sig := q1[len(wantPrefix):]
	if len(sig) != 64 {
		t.Fatalf("expected 64-char hex digest, got %d chars", len(sig))
	}
	if strings.ToLower(sig) != sig {
		t.Fatalf("digest not lowercase hex: %s", sig)
	}
}

func TestSignQueryDifferentSecrets(t *testing.T) {
	at := time.UnixMilli(1700000000000)
	params := url.Values{"symbol": {"BTCUSDT"}}

	a := &HMACAuth{Key: "k", Secret: "secret-a"}
	b := &HMACAuth{Key: "k", Secret: "secret-b"}

	if a.SignQueryAt(cloneValues(params), at) == b.SignQueryAt(cloneValues(params), at) {
		t.Fatal("different secrets produced identical signatures")
	}
}

func TestStringRedactsCredentials(t *testing.T) {
	auth := &HMACAuth{Key: "abcdef123456", Secret: "supersecretvalue"}
	s := auth.String()
	if strings.Contains(s, "123456") || strings.Contains(s, "secretvalue") {
		t.Fatalf("credentials leaked in String(): %s", s)
	}
}

func cloneValues(v url.Values) url.Values {
	out := url.Values{}
	for k, vals := range v {
		for _, val := range vals {
			out.Add(k, val)
		}
	}
	return out
}
