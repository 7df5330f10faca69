package main

import (
	"bufio"
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"math/rand"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// SimulatorConfig holds the simulator configuration
type SimulatorConfig struct {
	ServerURL string
	SessionID string
	Token     string
	FPS       float64
	Frames    [][]byte
}

type message struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Simulator plays the browser side of a camera session.
type Simulator struct {
	config *SimulatorConfig
	conn   *websocket.Conn
	log    *zap.Logger

	writeMu sync.Mutex
	next    atomic.Int64

	sent      atomic.Int64
	predicted atomic.Int64
	waiting   atomic.Int64
	failed    atomic.Int64

	streamStop chan struct{}
	stopChan   chan struct{}
	stopOnce   sync.Once
	wg         sync.WaitGroup
}

// NewSimulator creates a new camera simulator
func NewSimulator(config *SimulatorConfig, log *zap.Logger) *Simulator {
	if config.FPS <= 0 {
		config.FPS = 10
	}
	return &Simulator{
		config:   config,
		log:      log,
		stopChan: make(chan struct{}),
	}
}

// Connect dials the camera socket and starts the reader.
func (s *Simulator) Connect() error {
	u, err := url.Parse(s.config.ServerURL)
	if err != nil {
		return fmt.Errorf("invalid server url: %w", err)
	}
	if s.config.SessionID != "" {
		q := u.Query()
		q.Set("session_id", s.config.SessionID)
		u.RawQuery = q.Encode()
	}

	header := http.Header{}
	if s.config.Token != "" {
		header.Set("Authorization", "Bearer "+s.config.Token)
	}

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.Dial(u.String(), header)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}

	s.conn = conn
	s.log.Info("Connected to camera socket", zap.String("url", u.String()))

	s.wg.Add(1)
	go s.readMessages()
	return nil
}

// StartStream announces the camera and streams frames at the configured rate.
func (s *Simulator) StartStream() {
	if s.streamStop != nil {
		return
	}
	_ = s.send("start_camera", nil)

	s.streamStop = make(chan struct{})
	s.wg.Add(1)
	go s.streamLoop(s.streamStop)
}

// StopStream stops streaming and announces it.
func (s *Simulator) StopStream() {
	if s.streamStop == nil {
		return
	}
	close(s.streamStop)
	s.streamStop = nil
	_ = s.send("stop_camera", nil)
}

// Stop stops the simulator
func (s *Simulator) Stop() {
	s.stopOnce.Do(func() {
		s.StopStream()
		close(s.stopChan)
		if s.conn != nil {
			s.writeMu.Lock()
			_ = s.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			s.writeMu.Unlock()
			s.conn.Close()
		}
		s.wg.Wait()
	})
}

// Stats summarises what came back from the server.
func (s *Simulator) Stats() string {
	return fmt.Sprintf("sent=%d predictions=%d waiting=%d errors=%d",
		s.sent.Load(), s.predicted.Load(), s.waiting.Load(), s.failed.Load())
}

func (s *Simulator) streamLoop(stop <-chan struct{}) {
	defer s.wg.Done()

	ticker := time.NewTicker(time.Duration(float64(time.Second) / s.config.FPS))
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-s.stopChan:
			return
		case <-ticker.C:
			if err := s.SendFrame(); err != nil {
				s.log.Error("Failed to send frame", zap.Error(err))
				return
			}
		}
	}
}

// SendFrame sends the next frame, cycling through the loaded set.
func (s *Simulator) SendFrame() error {
	i := s.next.Add(1) - 1
	frame := s.config.Frames[int(i)%len(s.config.Frames)]
	err := s.send("process_frame", map[string]string{
		"frame": "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(frame),
	})
	if err == nil {
		s.sent.Add(1)
	}
	return err
}

func (s *Simulator) send(event string, data interface{}) error {
	var raw json.RawMessage
	if data != nil {
		b, err := json.Marshal(data)
		if err != nil {
			return err
		}
		raw = b
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteJSON(message{Event: event, Data: raw})
}

// readMessages reads and processes incoming messages
func (s *Simulator) readMessages() {
	defer s.wg.Done()

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			select {
			case <-s.stopChan:
			default:
				s.log.Error("Read error", zap.Error(err))
			}
			return
		}
		s.handleMessage(data)
	}
}

func (s *Simulator) handleMessage(data []byte) {
	var msg message
	if err := json.Unmarshal(data, &msg); err != nil {
		s.log.Warn("Malformed server message", zap.ByteString("data", data))
		return
	}

	var body map[string]interface{}
	_ = json.Unmarshal(msg.Data, &body)

	switch msg.Event {
	case "prediction":
		switch body["status"] {
		case "success":
			s.predicted.Add(1)
			_, hasAudio := body["audio"]
			s.log.Info("Prediction",
				zap.Any("word", body["word"]),
				zap.Any("confidence", body["confidence"]),
				zap.Bool("audio", hasAudio),
			)
		case "waiting":
			s.waiting.Add(1)
			s.log.Debug("Frame throttled")
		default:
			s.failed.Add(1)
			s.log.Warn("Prediction error", zap.Any("message", body["message"]))
		}
	case "status", "camera_status":
		s.log.Info("Server status", zap.String("event", msg.Event), zap.Any("data", body))
	default:
		s.log.Debug("Unhandled event", zap.String("event", msg.Event))
	}
}

// RunInteractive runs the simulator in interactive mode
func (s *Simulator) RunInteractive() {
	scanner := bufio.NewScanner(os.Stdin)
	fmt.Print("> ")

	for scanner.Scan() {
		parts := strings.Fields(strings.TrimSpace(scanner.Text()))
		if len(parts) == 0 {
			fmt.Print("> ")
			continue
		}

		switch parts[0] {
		case "start":
			s.StartStream()
			fmt.Printf("Streaming at %.1f fps\n", s.config.FPS)

		case "stop":
			s.StopStream()
			fmt.Println("Stopped streaming")

		case "frame":
			if err := s.SendFrame(); err != nil {
				fmt.Printf("Send failed: %v\n", err)
			}

		case "burst":
			n := 10
			if len(parts) > 1 {
				if v, err := strconv.Atoi(parts[1]); err == nil && v > 0 {
					n = v
				}
			}
			for i := 0; i < n; i++ {
				if err := s.SendFrame(); err != nil {
					fmt.Printf("Send failed: %v\n", err)
					break
				}
			}
			fmt.Printf("Sent %d frames\n", n)

		case "stats":
			fmt.Println(s.Stats())

		case "quit", "exit":
			fmt.Println("Goodbye!")
			return

		default:
			fmt.Printf("Unknown command: %s\n", parts[0])
		}

		fmt.Print("> ")
	}
}

// LoadFrames reads every .jpg, .jpeg and .png file in dir in name order.
// An empty dir yields synthetic noise frames.
func LoadFrames(dir string) ([][]byte, error) {
	if dir == "" {
		return syntheticFrames(5)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".jpg", ".jpeg", ".png":
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	if len(names) == 0 {
		return nil, fmt.Errorf("no frames in %s", dir)
	}

	frames := make([][]byte, 0, len(names))
	for _, name := range names {
		b, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		frames = append(frames, b)
	}
	return frames, nil
}

func syntheticFrames(n int) ([][]byte, error) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	frames := make([][]byte, 0, n)
	for i := 0; i < n; i++ {
		img := image.NewRGBA(image.Rect(0, 0, 320, 240))
		for y := 0; y < 240; y++ {
			for x := 0; x < 320; x++ {
				img.Set(x, y, color.RGBA{uint8(rng.Intn(256)), uint8(x), uint8(y), 255})
			}
		}
		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 80}); err != nil {
			return nil, err
		}
		frames = append(frames, buf.Bytes())
	}
	return frames, nil
}
