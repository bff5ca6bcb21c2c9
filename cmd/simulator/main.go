package main

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

const (
	defaultSensorCount = 5
	defaultIntervalMs  = 2000
)

// hub tracks every connected stream client.
type hub struct {
	mutex sync.Mutex
	conns map[*websocket.Conn]bool
}

func newHub() *hub {
	return &hub{conns: make(map[*websocket.Conn]bool)}
}

func (h *hub) add(conn *websocket.Conn) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.conns[conn] = true
	logrus.Infof("Client connected (total: %d)", len(h.conns))
}

func (h *hub) remove(conn *websocket.Conn) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	delete(h.conns, conn)
	logrus.Infof("Client disconnected (remaining: %d)", len(h.conns))
}

func (h *hub) broadcast(message []byte) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	for conn := range h.conns {
		if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
			logrus.Errorf("Failed to send to client: %v", err)
			conn.Close()
			delete(h.conns, conn)
		}
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func main() {
	rand.Seed(time.Now().UnixNano())

	// Get configuration from environment variables
	port := getEnv("SIM_PORT", ":8081")
	intervalMs, _ := strconv.Atoi(getEnv("SIM_INTERVAL_MS", fmt.Sprintf("%d", defaultIntervalMs)))
	sensorCount, _ := strconv.Atoi(getEnv("SIM_SENSOR_COUNT", fmt.Sprintf("%d", defaultSensorCount)))
	malformedRate, _ := strconv.ParseFloat(getEnv("SIM_MALFORMED_RATE", "0.05"), 64)

	h := newHub()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Forward frames from Kafka instead of generating them when a broker is
	// configured.
	if broker := os.Getenv("KAFKA_BROKER"); broker != "" {
		go bridgeKafka(ctx, h, broker,
			getEnv("KAFKA_TOPIC", "alerts"),
			getEnv("KAFKA_GROUP_ID", "alert-simulator"))
	} else {
		go generate(ctx, h, sensorCount, time.Duration(intervalMs)*time.Millisecond, malformedRate)
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.GET("/alerts", func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logrus.Errorf("Upgrade failed: %v", err)
			return
		}

		if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"connection_established"}`)); err != nil {
			logrus.Errorf("Failed to send handshake frame: %v", err)
			conn.Close()
			return
		}
		h.add(conn)

		// Drain inbound frames so close frames are processed.
		go func() {
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					h.remove(conn)
					conn.Close()
					return
				}
			}
		}()
	})

	server := &http.Server{Addr: port, Handler: r}
	go func() {
		logrus.Infof("Simulator streaming on ws://localhost%s/alerts", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("Simulator server failed: %v", err)
		}
	}()

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer shutdownCancel()
	_ = server.Shutdown(shutdownCtx)
	logrus.Info("Simulator stopped")
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// generate emits alert frames on a ticker, mixing well-formed frames in both
// producer schemas with the occasional malformed one.
func generate(ctx context.Context, h *hub, sensorCount int, interval time.Duration, malformedRate float64) {
	logrus.Infof("Generating alerts for %d sensors every %v", sensorCount, interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if rand.Float64() < malformedRate {
				h.broadcast(malformedFrame())
				logrus.Warnf("🔥 Sent malformed frame (client should survive)")
				continue
			}
			sensorID := fmt.Sprintf("sim-sensor-%d", rand.Intn(sensorCount)+1)
			h.broadcast(alertFrame(sensorID))
		}
	}
}

var messages = []string{
	"Temperature above threshold",
	"Vibration spike detected",
	"Pressure back to normal",
	"Predicted bearing wear in 48h",
	"Coolant level low",
	"Sensor heartbeat missed",
}

// alertFrame builds a frame in one of the shapes real producers emit.
func alertFrame(sensorID string) []byte {
	message := messages[rand.Intn(len(messages))]

	var frame map[string]interface{}
	switch rand.Intn(4) {
	case 0:
		// Dashboard-style frame keyed by alert type
		frame = map[string]interface{}{
			"id":        uuid.NewString(),
			"type":      pick("CRITICAL", "WARNING", "NOTICE", "RESOLVED", "RUL_ALERT"),
			"message":   message,
			"device_id": sensorID,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		}
	case 1:
		// Severity-keyed frame
		frame = map[string]interface{}{
			"level":     pick("info", "warning", "critical"),
			"message":   message,
			"sensor_id": sensorID,
			"ts":        time.Now().UTC().Format(time.RFC3339),
			"source":    "simulator",
		}
	case 2:
		// Bare message, the client classifies it as info
		frame = map[string]interface{}{
			"message":  message,
			"sensorId": sensorID,
		}
	case 3:
		// No classifiable fields at all, the client drops it
		frame = map[string]interface{}{
			"reading":   20.0 + rand.Float64()*10.0,
			"device_id": sensorID,
		}
	}

	data, _ := json.Marshal(frame)
	return data
}

func malformedFrame() []byte {
	frames := []string{
		`{not valid json`,
		`[1, 2, 3]`,
		`"alert"`,
		`null`,
	}
	return []byte(frames[rand.Intn(len(frames))])
}

func pick(options ...string) string {
	return options[rand.Intn(len(options))]
}

// bridgeKafka forwards frames from a Kafka topic to all connected clients
// verbatim, so whatever producers publish reaches the client untouched.
func bridgeKafka(ctx context.Context, h *hub, broker, topic, groupID string) {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  []string{broker},
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	defer reader.Close()

	logrus.Infof("Bridging Kafka topic %s from %s", topic, broker)
	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logrus.Errorf("Read message failed: %v", err)
			continue
		}
		h.broadcast(msg.Value)
	}
}
