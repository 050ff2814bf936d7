// webhook-receiver is a standalone test endpoint for easyalarm deliveries.
// It records incoming fired-alarm webhooks, verifies their HMAC signature
// when SECRET is set, and exposes the captured payloads for inspection.
package main

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"sync"
	"time"
)

type payload struct {
	Key            string `json:"key"`
	SetterID       string `json:"setter_id"`
	TargetID       string `json:"target_id"`
	ConversationID string `json:"conversation_id"`
	Content        string `json:"content"`
	ScheduledAt    string `json:"scheduled_at"`
	FiredAt        string `json:"fired_at"`
}

type delivery struct {
	ReceivedAt   string  `json:"received_at"`
	DeliveryID   string  `json:"delivery_id"`
	AlarmKey     string  `json:"alarm_key"`
	SignatureOK  *bool   `json:"signature_ok,omitempty"`
	Payload      payload `json:"payload"`
	DriftSeconds float64 `json:"drift_seconds"`
}

type stats struct {
	Count          int64      `json:"count"`
	LastDeliveries []delivery `json:"last_deliveries"`
	Since          string     `json:"since"`
}

var (
	mu             sync.Mutex
	count          int64
	lastDeliveries []delivery
	since          time.Time
	maxStored      = 50
	secret         string
)

func main() {
	since = time.Now().UTC()
	secret = os.Getenv("SECRET")

	addr := ":8080"
	if v := os.Getenv("ADDR"); v != "" {
		addr = v
	}

	http.HandleFunc("/hook", hookHandler)
	http.HandleFunc("/stats", statsHandler)
	http.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})
	http.HandleFunc("/reset", func(w http.ResponseWriter, _ *http.Request) {
		mu.Lock()
		count = 0
		lastDeliveries = nil
		since = time.Now().UTC()
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "reset")
	})

	if secret == "" {
		log.Println("webhook-receiver: SECRET not set; signatures will not be verified")
	}
	log.Printf("webhook-receiver listening on %s", addr)
	log.Fatal(http.ListenAndServe(addr, nil))
}

func verifySignature(body []byte, signature string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

func hookHandler(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	defer r.Body.Close()

	var p payload
	if err := json.Unmarshal(body, &p); err != nil {
		log.Printf("hook: undecodable body: %v", err)
	}

	d := delivery{
		ReceivedAt: time.Now().UTC().Format(time.RFC3339Nano),
		DeliveryID: r.Header.Get("X-EasyAlarm-Delivery-ID"),
		AlarmKey:   r.Header.Get("X-EasyAlarm-Alarm-Key"),
		Payload:    p,
	}

	if scheduled, err := time.Parse(time.RFC3339, p.ScheduledAt); err == nil {
		d.DriftSeconds = time.Since(scheduled).Seconds()
	}

	if secret != "" {
		ok := verifySignature(body, r.Header.Get("X-EasyAlarm-Signature"))
		d.SignatureOK = &ok
		if !ok {
			log.Printf("hook: BAD SIGNATURE for alarm %s", d.AlarmKey)
		}
	}

	mu.Lock()
	count++
	lastDeliveries = append(lastDeliveries, d)
	if len(lastDeliveries) > maxStored {
		lastDeliveries = lastDeliveries[len(lastDeliveries)-maxStored:]
	}
	current := count
	mu.Unlock()

	log.Printf("hook received #%d: alarm=%s content=%q drift=%.1fs", current, d.AlarmKey, p.Content, d.DriftSeconds)
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"received":%d}`, current)
}

func statsHandler(w http.ResponseWriter, _ *http.Request) {
	mu.Lock()
	s := stats{
		Count:          count,
		LastDeliveries: lastDeliveries,
		Since:          since.Format(time.RFC3339),
	}
	mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s)
}
