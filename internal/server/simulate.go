package server

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	eventdomain "github.com/smallbiznis/hookrelay/internal/event/domain"
)

// Canned payloads mirroring what each platform actually sends, so a
// simulated event exercises the same extraction path as a real one.
var simulatePayloads = map[string]struct {
	body    string
	headers map[string]string
}{
	"github": {
		body: `{"action":"opened","repository":{"full_name":"acme/widgets"},"sender":{"login":"octocat"}}`,
		headers: map[string]string{
			"X-GitHub-Event": "push",
		},
	},
	"razorpay": {
		body: `{"entity":"event","event":"payment.captured","payload":{"payment":{"entity":{"id":"pay_simulated","amount":50000,"currency":"INR"}}}}`,
	},
	"stripe": {
		body: `{"id":"evt_simulated","object":"event","type":"payment_intent.succeeded","data":{"object":{"id":"pi_simulated","amount":2000,"currency":"usd"}}}`,
	},
	"shopify": {
		body: `{"id":820982911946154500,"email":"jon@example.com","total_price":"254.98","currency":"USD"}`,
		headers: map[string]string{
			"X-Shopify-Topic":       "orders/create",
			"X-Shopify-Shop-Domain": "example.myshopify.com",
		},
	},
}

func (s *Server) SimulateWebhook(c *gin.Context) {
	platform := strings.ToLower(strings.TrimSpace(c.Param("platform")))

	sample, ok := simulatePayloads[platform]
	if !ok {
		AbortWithError(c, newValidationError("platform", "invalid_platform", "no sample payload for platform"))
		return
	}

	headers := http.Header{}
	headers.Set("Content-Type", "application/json")
	for key, value := range sample.headers {
		headers.Set(key, value)
	}

	// Sign the sample when a secret is configured; the simulated event then
	// lands as verified, same as real traffic.
	if secret, ok := s.cfg.PlatformSecret(platform); ok && secret != "" {
		signSample(headers, platform, []byte(sample.body), secret)
	}

	resp, err := s.eventSvc.Ingest(c.Request.Context(), eventdomain.IngestRequest{
		Platform: platform,
		Body:     []byte(sample.body),
		Headers:  headers,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"message":  "Simulated webhook ingested",
		"id":       resp.Event.ID.String(),
		"verified": resp.Event.Verified,
	})
}

func signSample(headers http.Header, platform string, body []byte, secret string) {
	switch platform {
	case "github":
		headers.Set("X-Hub-Signature-256", "sha256="+hexDigest(secret, body))
	case "razorpay":
		headers.Set("X-Razorpay-Signature", hexDigest(secret, body))
	case "stripe":
		timestamp := fmt.Sprintf("%d", nowUnix())
		signed := timestamp + "." + string(body)
		headers.Set("Stripe-Signature", fmt.Sprintf("t=%s,v1=%s", timestamp, hexDigest(secret, []byte(signed))))
	case "shopify":
		mac := hmac.New(sha256.New, []byte(secret))
		_, _ = mac.Write(body)
		headers.Set("X-Shopify-Hmac-Sha256", base64.StdEncoding.EncodeToString(mac.Sum(nil)))
	}
}

func nowUnix() int64 {
	return time.Now().Unix()
}

func hexDigest(secret string, message []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(message)
	return hex.EncodeToString(mac.Sum(nil))
}
