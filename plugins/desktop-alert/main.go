// Package main provides a desktop notification plugin. On "alert" it posts a
// notification through osascript (macOS) or notify-send (Linux); "clear" is
// acknowledged so the monitor can pair every alert with a clear.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"runtime"
)

// Request represents the input from the plugin executor.
type Request struct {
	Action string          `json:"action"`
	Event  string          `json:"event"`
	Text   string          `json:"text,omitempty"`
	Config json.RawMessage `json:"config,omitempty"`
	Params json.RawMessage `json:"params,omitempty"`
}

// Response represents the output to the plugin executor.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

type params struct {
	Title  string `json:"title"`
	DryRun bool   `json:"dry_run"`
}

type actionHandler func(req Request, p params) (string, error)

var actionHandlers = map[string]actionHandler{
	"alert": alert,
	"clear": clearAlert,
}

func main() {
	var req Request
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		writeErrorResponse(fmt.Sprintf("failed to decode request: %v", err))
		return
	}

	handler, ok := actionHandlers[req.Action]
	if !ok {
		writeErrorResponse(fmt.Sprintf("unknown action: %s", req.Action))
		return
	}

	p := params{Title: "handsoff"}
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &p); err != nil {
			writeErrorResponse(fmt.Sprintf("invalid params: %v", err))
			return
		}
	}

	command, err := handler(req, p)
	if err != nil {
		writeErrorResponse(fmt.Sprintf("action %s failed: %v", req.Action, err))
		return
	}

	writeSuccessResponse(command)
}

func writeErrorResponse(errMsg string) {
	json.NewEncoder(os.Stdout).Encode(Response{Success: false, Error: errMsg})
}

func writeSuccessResponse(command string) {
	data, _ := json.Marshal(map[string]string{"command": command})
	json.NewEncoder(os.Stdout).Encode(Response{Success: true, Data: data})
}

// alert posts a desktop notification with the request text.
func alert(req Request, p params) (string, error) {
	text := req.Text
	if text == "" {
		text = "Hand near face"
	}

	name, args, err := notifyCommand(p.Title, text)
	if err != nil {
		return "", err
	}
	if p.DryRun {
		return name, nil
	}

	out, err := exec.Command(name, args...).CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("%w: %s", err, string(out))
	}
	return name, nil
}

// clearAlert has nothing to undo: notifications expire on their own.
func clearAlert(req Request, p params) (string, error) {
	return "", nil
}

func notifyCommand(title, text string) (string, []string, error) {
	switch runtime.GOOS {
	case "darwin":
		script := fmt.Sprintf("display notification %q with title %q", text, title)
		return "osascript", []string{"-e", script}, nil
	case "linux":
		return "notify-send", []string{"--urgency=normal", title, text}, nil
	default:
		return "", nil, fmt.Errorf("notifications are not supported on %s", runtime.GOOS)
	}
}
