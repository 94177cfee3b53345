package main

import (
	"os"

	"github.com/AvengeMedia/dankdisplay/internal/log"
)

var Version = "dev"

func init() {
	runCmd.Flags().Bool("no-ddc", false, "Disable hardware DDC control for this run")

	rootCmd.AddCommand(versionCmd, runCmd, ipcCmd)
}

func main() {
	// Block root
	if os.Geteuid() == 0 {
		log.Fatal("This program should not be run as root. Exiting.")
	}

	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
