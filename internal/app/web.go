package app

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/mmc5983/internal/config"
	"github.com/relabs-tech/mmc5983/internal/mag"
)

// latestSample keeps the last sample seen on the broker.
type latestSample struct {
	mu     sync.RWMutex
	sample mag.Sample
	have   bool
}

func (l *latestSample) store(s mag.Sample) {
	l.mu.Lock()
	l.sample = s
	l.have = true
	l.mu.Unlock()
}

func (l *latestSample) get() (mag.Sample, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.sample, l.have
}

// ServeHTTP answers with the latest sample as JSON.
func (l *latestSample) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s, ok := l.get()
	if !ok {
		http.Error(w, "no data yet", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s); err != nil {
		log.Printf("json encode error: %v", err)
	}
}

func RunWeb() error {
	cfg := config.Get()
	latest := &latestSample{}

	// 1) Connect to MQTT broker
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(clientID(cfg.MQTTClientIDWeb))

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	log.Printf("connected to MQTT broker at %s", cfg.MQTTBroker)

	// 2) Keep the latest sample
	token := client.Subscribe(cfg.TopicMag, 0, func(_ mqtt.Client, msg mqtt.Message) {
		s, err := mag.Decode(msg.Payload())
		if err != nil {
			log.Printf("MQTT payload decode error: %v", err)
			return
		}
		latest.store(s)
	})
	token.Wait()
	if token.Error() != nil {
		return token.Error()
	}
	log.Printf("subscribed to MQTT topic %s", cfg.TopicMag)

	// 3) JSON API endpoint: latest field
	http.Handle("/api/field", latest)

	// 4) Static files from ./web as the root
	fs := http.FileServer(http.Dir("web"))
	http.Handle("/", fs)

	addr := fmt.Sprintf(":%d", cfg.WebServerPort)
	log.Printf("web server listening on %s", addr)
	return http.ListenAndServe(addr, nil)
}
