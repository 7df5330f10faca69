package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
)

var (
	serverURL   = flag.String("server", "ws://localhost:5000/ws/camera", "Camera WebSocket URL")
	sessionID   = flag.String("session", "", "Session ID (generated by the server when empty)")
	framesDir   = flag.String("frames", "", "Directory of .jpg/.png frames to replay (synthetic frames when empty)")
	fps         = flag.Float64("fps", 10, "Frames per second to stream")
	duration    = flag.Duration("duration", 0, "Stop after this long (0 streams until Ctrl+C)")
	token       = flag.String("token", "", "Bearer token sent on the upgrade request")
	interactive = flag.Bool("interactive", false, "Enable interactive mode")
	verbose     = flag.Bool("verbose", false, "Enable verbose logging")
)

func main() {
	flag.Parse()

	// Setup logger
	var logger *zap.Logger
	var err error
	if *verbose {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	frames, err := LoadFrames(*framesDir)
	if err != nil {
		logger.Fatal("Failed to load frames", zap.Error(err))
	}

	simulator := NewSimulator(&SimulatorConfig{
		ServerURL: *serverURL,
		SessionID: *sessionID,
		Token:     *token,
		FPS:       *fps,
		Frames:    frames,
	}, logger)

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	if err := simulator.Connect(); err != nil {
		logger.Fatal("Failed to connect to server", zap.Error(err))
	}

	if *interactive {
		go func() {
			<-sigChan
			simulator.Stop()
			os.Exit(0)
		}()
		runInteractiveMode(simulator)
		simulator.Stop()
		return
	}

	fmt.Printf("Camera simulator streaming %d frame(s) at %.1f fps to %s\n", len(frames), *fps, *serverURL)
	fmt.Println("Press Ctrl+C to stop")

	simulator.StartStream()
	var timeout <-chan time.Time
	if *duration > 0 {
		timeout = time.After(*duration)
	}
	select {
	case <-sigChan:
	case <-timeout:
	}

	fmt.Println("\nShutting down simulator...")
	simulator.Stop()
	fmt.Println(simulator.Stats())
}

func runInteractiveMode(sim *Simulator) {
	fmt.Println("\nVoz Visible Camera Simulator - Interactive Mode")
	fmt.Println("===============================================")
	fmt.Println("Commands:")
	fmt.Println("  start          - Send start_camera and stream frames")
	fmt.Println("  stop           - Stop streaming and send stop_camera")
	fmt.Println("  frame          - Send a single frame")
	fmt.Println("  burst <n>      - Send n frames back to back")
	fmt.Println("  stats          - Show counters")
	fmt.Println("  quit           - Exit simulator")
	fmt.Println("")

	sim.RunInteractive()
}
