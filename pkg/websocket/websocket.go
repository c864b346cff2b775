package websocketPkg

import (
	"VSLBackend/internal/entity"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
)

var ErrModelUnavailable = errors.New("detection model unavailable")

type IDetector interface {
	Detect(ctx context.Context, frame []byte, inputSize int, maxDetections int) ([]entity.RawDetection, error)
	Label(classID int) string
	IsConnected() bool
	Reconnect() error
	CloseConnection()
}

type modelRequest struct {
	Action string `json:"action"`
	Image  string `json:"image,omitempty"`
	ImgSz  int    `json:"imgsz,omitempty"`
	MaxDet int    `json:"max_det,omitempty"`
}

type modelResponse struct {
	Detections []entity.RawDetection `json:"detections"`
	Labels     map[string]string     `json:"labels,omitempty"`
	Error      string                `json:"error,omitempty"`
}

// webSocketClient talks to the model server over a single connection. mu is
// held for a whole request/response exchange so replies are never handed to
// the wrong caller.
type webSocketClient struct {
	url          string
	log          *logrus.Logger
	conn         *websocket.Conn
	labels       map[int]string
	labelsMu     sync.RWMutex
	mu           sync.Mutex
	pingInterval time.Duration
	readTimeout  time.Duration
	writeTimeout time.Duration
	done         chan struct{}
}

type Option func(*webSocketClient)

func WithTimeouts(read, write time.Duration) Option {
	return func(c *webSocketClient) {
		c.readTimeout = read
		c.writeTimeout = write
	}
}

func WithPingInterval(d time.Duration) Option {
	return func(c *webSocketClient) {
		c.pingInterval = d
	}
}

func NewModelClient(log *logrus.Logger, url string, opts ...Option) IDetector {
	if url == "" {
		url = getModelURL()
	}

	client := &webSocketClient{
		url:          url,
		log:          log,
		labels:       map[int]string{},
		pingInterval: 30 * time.Second,
		readTimeout:  10 * time.Second,
		writeTimeout: 5 * time.Second,
		done:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(client)
	}

	if err := client.Reconnect(); err != nil {
		log.Warnf("Initial connection to detection model at %s failed: %v. Will retry on demand.", url, err)
	} else {
		log.Infof("Connected to detection model at %s", url)
	}

	return client
}

func getModelURL() string {
	url := os.Getenv("AI_DETECTION_URL")
	if url == "" {
		url = "ws://localhost:8000/v1/model/ws"
	}
	return url
}

func (c *webSocketClient) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

func (c *webSocketClient) Reconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connectLocked()
}

func (c *webSocketClient) connectLocked() error {
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}

	dialer := *websocket.DefaultDialer
	dialer.HandshakeTimeout = 10 * time.Second

	conn, _, err := dialer.Dial(c.url, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", c.url, err)
	}

	conn.SetPingHandler(func(appData string) error {
		err := conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(c.writeTimeout))
		if err != nil {
			c.log.Errorf("Error sending pong to detection model: %v", err)
		}
		return nil
	})

	c.conn = conn

	labels, err := c.roundTripLocked(context.Background(), modelRequest{Action: "labels"})
	if err != nil {
		c.dropLocked()
		return fmt.Errorf("failed to load label table: %w", err)
	}
	c.setLabels(labels.Labels)

	if c.pingInterval > 0 {
		go c.keepAlive(conn)
	}

	return nil
}

func (c *webSocketClient) setLabels(raw map[string]string) {
	labels := make(map[int]string, len(raw))
	for k, v := range raw {
		id, err := strconv.Atoi(k)
		if err != nil {
			c.log.Warnf("Ignoring non numeric class id %q in label table", k)
			continue
		}
		labels[id] = v
	}

	c.labelsMu.Lock()
	c.labels = labels
	c.labelsMu.Unlock()

	c.log.Infof("Loaded %d class labels from detection model", len(labels))
}

// Label resolves a class id against the table loaded on connect.
func (c *webSocketClient) Label(classID int) string {
	c.labelsMu.RLock()
	defer c.labelsMu.RUnlock()
	if name, ok := c.labels[classID]; ok {
		return name
	}
	return fmt.Sprintf("class_%d", classID)
}

func (c *webSocketClient) CloseConnection() {
	c.mu.Lock()
	defer c.mu.Unlock()

	select {
	case <-c.done:
	default:
		close(c.done)
	}

	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}

func (c *webSocketClient) dropLocked() {
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}

func (c *webSocketClient) keepAlive(conn *websocket.Conn) {
	ticker := time.NewTicker(c.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
		}

		c.mu.Lock()
		if c.conn != conn {
			c.mu.Unlock()
			return
		}

		err := conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(c.writeTimeout))
		if err != nil {
			c.log.Warnf("Ping to detection model failed, marking connection as dead: %v", err)
			c.dropLocked()
			c.mu.Unlock()
			return
		}
		c.mu.Unlock()
	}
}

// Detect sends one encoded frame and waits for its detections.
func (c *webSocketClient) Detect(ctx context.Context, frame []byte, inputSize int, maxDetections int) ([]entity.RawDetection, error) {
	if len(frame) == 0 {
		return nil, errors.New("empty frame")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		if err := c.connectLocked(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrModelUnavailable, err)
		}
	}

	resp, err := c.roundTripLocked(ctx, modelRequest{
		Action: "detect",
		Image:  base64.StdEncoding.EncodeToString(frame),
		ImgSz:  inputSize,
		MaxDet: maxDetections,
	})
	if err != nil {
		return nil, err
	}

	if resp.Detections == nil {
		return []entity.RawDetection{}, nil
	}
	return resp.Detections, nil
}

func (c *webSocketClient) roundTripLocked(ctx context.Context, req modelRequest) (*modelResponse, error) {
	conn := c.conn
	if conn == nil {
		return nil, ErrModelUnavailable
	}

	payload, err := jsoniter.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("error encoding %s request: %w", req.Action, err)
	}

	conn.SetWriteDeadline(c.deadline(ctx, c.writeTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		c.dropLocked()
		return nil, fmt.Errorf("error sending %s request: %w", req.Action, err)
	}

	conn.SetReadDeadline(c.deadline(ctx, c.readTimeout))
	_, message, err := conn.ReadMessage()
	if err != nil {
		c.dropLocked()
		return nil, fmt.Errorf("error reading %s response: %w", req.Action, err)
	}

	conn.SetReadDeadline(time.Time{})
	conn.SetWriteDeadline(time.Time{})

	var resp modelResponse
	if err := jsoniter.Unmarshal(message, &resp); err != nil {
		return nil, fmt.Errorf("error unmarshaling %s response: %w", req.Action, err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("detection model error: %s", resp.Error)
	}

	return &resp, nil
}

func (c *webSocketClient) deadline(ctx context.Context, timeout time.Duration) time.Time {
	d := time.Now().Add(timeout)
	if ctx == nil {
		return d
	}
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(d) {
		return ctxDeadline
	}
	return d
}
