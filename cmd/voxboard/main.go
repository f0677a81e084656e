// Command voxboard runs a live voice session against the default devices and
// renders the conversation in a terminal UI.
//
// GEMINI_API_KEY must be set, directly or through a .env file in the working
// directory.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	engine "github.com/voxboard/voxboard-core/core"
	"github.com/voxboard/voxboard-core/core/audio/miniaudio"
)

const defaultSystemInstruction = "You are a voice assistant helping the user " +
	"work on a shared whiteboard. Keep spoken replies short. Use the canvas " +
	"tools to move the camera and request_board_plan for board changes."

func main() {
	_ = godotenv.Load()

	model := flag.String("model", "", "session model override")
	instruction := flag.String("instruction", defaultSystemInstruction, "system instruction")
	flag.Parse()

	if os.Getenv("GEMINI_API_KEY") == "" {
		fmt.Fprintln(os.Stderr, "GEMINI_API_KEY is not set")
		os.Exit(1)
	}

	devices, err := miniaudio.NewClient()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open audio devices: %v\n", err)
		os.Exit(1)
	}
	defer devices.Close()

	e := engine.New(
		engine.WithAudioInput(devices),
		engine.WithAudioOutput(devices),
		engine.WithCanvasController(&loggingCanvas{}),
		engine.WithModel(*model),
		engine.WithSystemInstruction(*instruction),
	)
	defer e.Close()

	if err := runUI(e); err != nil {
		fmt.Fprintf(os.Stderr, "UI error: %v\n", err)
		os.Exit(1)
	}
}
