package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"strings"

	"github.com/spf13/cobra"

	"github.com/AvengeMedia/dankdisplay/internal/config"
	"github.com/AvengeMedia/dankdisplay/internal/log"
	"github.com/AvengeMedia/dankdisplay/internal/server"
	"github.com/AvengeMedia/dankdisplay/internal/server/display"
	"github.com/AvengeMedia/dankdisplay/internal/server/power"
	"github.com/AvengeMedia/dankdisplay/internal/store"
)

var rootCmd = &cobra.Command{
	Use:   "dankdisplay",
	Short: "Display brightness daemon",
	Long:  "Display identity and brightness control daemon\n\nTracks displays across sessions, picks the right control path per\ndisplay (backlight, DDC, software dimming) and serves a JSON API over\na Unix socket.",
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("dankdisplay %s\n", Version)
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the display daemon",
	Long:  "Run the display daemon and serve the control API on a Unix socket",
	Run: func(cmd *cobra.Command, args []string) {
		noDDC, _ := cmd.Flags().GetBool("no-ddc")
		if err := runDaemon(noDDC); err != nil {
			log.Fatalf("Error running daemon: %v", err)
		}
	},
}

var ipcCmd = &cobra.Command{
	Use:   "ipc <method> [params-json]",
	Short: "Send a request to the running daemon",
	Long:  "Send a single JSON request to the running daemon's Unix socket\nand print the response",
	Args:  cobra.RangeArgs(1, 2),
	Run: func(cmd *cobra.Command, args []string) {
		if err := runIPC(args); err != nil {
			log.Fatalf("Error sending IPC request: %v", err)
		}
	},
}

func runDaemon(noDDC bool) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	st, err := store.NewFileStore(store.DefaultPath())
	if err != nil {
		return fmt.Errorf("failed to open preference store: %w", err)
	}

	enum, err := display.NewWaylandEnumerator()
	if err != nil {
		return fmt.Errorf("failed to connect to compositor: %w", err)
	}

	var channel display.CommandChannel
	if !noDDC {
		// Display numbers are assigned by the manager on every
		// reconfiguration, startup included.
		channel = display.NewDDCUtilChannel()
	}

	native := display.NewSysfsNative()
	wireBacklight(native, enum)

	monitor, err := power.NewMonitor()
	if err != nil {
		log.Warnf("power monitoring unavailable: %v", err)
		monitor = nil
	}

	opts := display.Options{
		Enumerator: enum,
		Channel:    channel,
		Native:     native,
		Gamma:      enum.Gamma(),
		Curve:      display.LinearCurve{},
	}
	if monitor != nil {
		opts.Suspend = monitor
	}

	manager := display.NewManager(cfg, st, opts)
	manager.Start()
	defer manager.Close()

	srv := server.New(manager, monitor)
	return srv.Start()
}

// The internal panel's backlight device has no link back to the output
// it drives; eDP/LVDS naming is the convention every compositor follows.
func wireBacklight(native *display.SysfsNative, enum *display.WaylandEnumerator) {
	device, ok := native.FirstDevice()
	if !ok {
		return
	}
	for _, d := range enum.Displays() {
		if strings.HasPrefix(d.Name, "eDP") || strings.HasPrefix(d.Name, "LVDS") {
			if native.Assign(d.ID, device) {
				log.Infof("backlight %s bound to output %s", device, d.Name)
			}
			return
		}
	}
}

func runIPC(args []string) error {
	socketPath, ok := server.FindSocketPath()
	if !ok {
		return fmt.Errorf("no running daemon found")
	}

	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", socketPath, err)
	}
	defer conn.Close()

	params := map[string]interface{}{}
	if len(args) == 2 {
		if err := json.Unmarshal([]byte(args[1]), &params); err != nil {
			return fmt.Errorf("invalid params json: %w", err)
		}
	}

	req := map[string]interface{}{
		"id":     1,
		"method": args[0],
		"params": params,
	}
	if err := json.NewEncoder(conn).Encode(req); err != nil {
		return err
	}

	scanner := bufio.NewScanner(conn)
	subscribed := strings.HasSuffix(args[0], ".subscribe")
	for scanner.Scan() {
		fmt.Println(scanner.Text())
		if !subscribed {
			break
		}
	}
	return scanner.Err()
}
