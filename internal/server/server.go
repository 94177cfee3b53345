package server

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/AvengeMedia/dankdisplay/internal/log"
	"github.com/AvengeMedia/dankdisplay/internal/server/display"
	"github.com/AvengeMedia/dankdisplay/internal/server/models"
	"github.com/AvengeMedia/dankdisplay/internal/server/power"
)

type Server struct {
	displayManager *display.Manager
	powerMonitor   *power.Monitor
}

func New(displayManager *display.Manager, powerMonitor *power.Monitor) *Server {
	return &Server{
		displayManager: displayManager,
		powerMonitor:   powerMonitor,
	}
}

func getSocketDir() string {
	if runtime := os.Getenv("XDG_RUNTIME_DIR"); runtime != "" {
		return runtime
	}

	if os.Getuid() == 0 {
		if _, err := os.Stat("/run"); err == nil {
			return "/run/dankdisplay"
		}
		return "/var/run/dankdisplay"
	}

	return os.TempDir()
}

func GetSocketPath() string {
	return filepath.Join(getSocketDir(), fmt.Sprintf("dankdisplay-%d.sock", os.Getpid()))
}

// FindSocketPath locates a live daemon socket, for client commands.
func FindSocketPath() (string, bool) {
	dir := getSocketDir()
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", false
	}

	for _, entry := range entries {
		if !strings.HasPrefix(entry.Name(), "dankdisplay-") || !strings.HasSuffix(entry.Name(), ".sock") {
			continue
		}
		pid, ok := socketPid(entry.Name())
		if !ok || !processAlive(pid) {
			continue
		}
		return filepath.Join(dir, entry.Name()), true
	}
	return "", false
}

func socketPid(name string) (int, bool) {
	pidStr := strings.TrimPrefix(name, "dankdisplay-")
	pidStr = strings.TrimSuffix(pidStr, ".sock")
	pid, err := strconv.Atoi(pidStr)
	if err != nil {
		return 0, false
	}
	return pid, true
}

func processAlive(pid int) bool {
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	// On Unix FindProcess always succeeds; signal 0 probes existence.
	return process.Signal(syscall.Signal(0)) == nil
}

func cleanupStaleSockets() {
	dir := getSocketDir()
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}

	for _, entry := range entries {
		if !strings.HasPrefix(entry.Name(), "dankdisplay-") || !strings.HasSuffix(entry.Name(), ".sock") {
			continue
		}
		pid, ok := socketPid(entry.Name())
		if !ok {
			continue
		}
		if !processAlive(pid) {
			socketPath := filepath.Join(dir, entry.Name())
			os.Remove(socketPath)
			log.Debugf("Removed stale socket: %s", socketPath)
		}
	}
}

func (s *Server) handleConnection(conn net.Conn) {
	defer conn.Close()

	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		line := scanner.Bytes()

		var req models.Request
		if err := json.Unmarshal(line, &req); err != nil {
			models.RespondError(conn, nil, "invalid json")
			continue
		}

		s.routeRequest(conn, req)
	}
}

func (s *Server) Start() error {
	cleanupStaleSockets()

	socketPath := GetSocketPath()
	if err := os.MkdirAll(filepath.Dir(socketPath), 0755); err != nil {
		return err
	}
	os.Remove(socketPath)

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return err
	}
	defer listener.Close()

	log.Infof("API Server listening on: %s", socketPath)
	log.Info("Protocol: JSON over Unix socket")
	log.Info("Request format: {\"id\": <any>, \"method\": \"...\", \"params\": {...}}")

	for {
		conn, err := listener.Accept()
		if err != nil {
			return err
		}
		go s.handleConnection(conn)
	}
}
