// Command nutractl is a small CLI client for the nutracoach service:
// account registration, login, and one-shot chat from the terminal.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"golang.org/x/term"
)

func newFlagSet(name string) *flag.FlagSet {
	return flag.NewFlagSet(name, flag.ExitOnError)
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	server := os.Getenv("NUTRACOACH_URL")
	if server == "" {
		server = "http://localhost:8080"
	}

	var err error
	switch os.Args[1] {
	case "register":
		err = register(server, os.Args[2:])
	case "login":
		err = login(server, os.Args[2:])
	case "chat":
		err = chatCmd(server, os.Args[2:])
	case "usage":
		err = usageCmd(server, os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "nutractl: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `Usage: nutractl <command> [flags]

Commands:
  register   create an account (prompts for password)
  login      obtain a session token (prompts for password)
  chat       send one chat message
  usage      report aggregated token usage

The server URL defaults to http://localhost:8080; override with NUTRACOACH_URL.`)
}

// promptPassword reads a password without echoing it.
func promptPassword(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	pw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(pw), nil
}

func postJSON(server, path, token string, payload any) ([]byte, int, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, 0, err
	}

	req, err := http.NewRequest(http.MethodPost, server+path, bytes.NewReader(body))
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	client := &http.Client{Timeout: 2 * time.Minute}
	resp, err := client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	return data, resp.StatusCode, err
}

func register(server string, args []string) error {
	fs := newFlagSet("register")
	user := fs.String("user", "", "username")
	age := fs.Int("age", 0, "age in years")
	sex := fs.String("sex", "", "male or female")
	height := fs.Float64("height", 0, "height in cm")
	weight := fs.Float64("weight", 0, "weight in kg")
	activity := fs.String("activity", "moderate", "activity level")
	goal := fs.String("goal", "maintain", "cut, maintain, or bulk")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *user == "" {
		return fmt.Errorf("-user is required")
	}

	password, err := promptPassword("Password: ")
	if err != nil {
		return err
	}
	confirm, err := promptPassword("Confirm password: ")
	if err != nil {
		return err
	}
	if password != confirm {
		return fmt.Errorf("passwords do not match")
	}

	data, status, err := postJSON(server, "/register", "", map[string]any{
		"username":       *user,
		"password":       password,
		"age":            *age,
		"sex":            *sex,
		"height_cm":      *height,
		"weight_kg":      *weight,
		"activity_level": *activity,
		"goal":           *goal,
	})
	if err != nil {
		return err
	}
	if status != http.StatusCreated {
		return fmt.Errorf("registration failed (%d): %s", status, data)
	}

	fmt.Printf("Registered %s\n", *user)
	return nil
}

func login(server string, args []string) error {
	fs := newFlagSet("login")
	user := fs.String("user", "", "username")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *user == "" {
		return fmt.Errorf("-user is required")
	}

	password, err := promptPassword("Password: ")
	if err != nil {
		return err
	}

	data, status, err := postJSON(server, "/login", "", map[string]string{
		"username": *user,
		"password": password,
	})
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("login failed (%d): %s", status, data)
	}

	var parsed struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(data, &parsed); err != nil {
		return err
	}

	fmt.Println(parsed.Token)
	return nil
}

func getJSON(server, path, token string) ([]byte, int, error) {
	req, err := http.NewRequest(http.MethodGet, server+path, nil)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	return data, resp.StatusCode, err
}

func usageCmd(server string, args []string) error {
	fs := newFlagSet("usage")
	token := fs.String("token", os.Getenv("NUTRACOACH_TOKEN"), "session token")
	byModel := fs.Bool("by-model", false, "break usage down per model")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *token == "" {
		return fmt.Errorf("-token or NUTRACOACH_TOKEN is required")
	}

	path := "/api/usage"
	if *byModel {
		path += "?by_model=true"
	}

	data, status, err := getJSON(server, path, *token)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("usage query failed (%d): %s", status, data)
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, data, "", "  "); err != nil {
		fmt.Println(string(data))
		return nil
	}
	fmt.Println(pretty.String())
	return nil
}

func chatCmd(server string, args []string) error {
	fs := newFlagSet("chat")
	message := fs.String("message", "", "message to send")
	token := fs.String("token", os.Getenv("NUTRACOACH_TOKEN"), "session token")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *message == "" {
		return fmt.Errorf("-message is required")
	}
	if *token == "" {
		return fmt.Errorf("-token or NUTRACOACH_TOKEN is required")
	}

	data, status, err := postJSON(server, "/api/chat", *token, map[string]string{
		"message": *message,
	})
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("chat failed (%d): %s", status, data)
	}

	var parsed struct {
		Response string `json:"response"`
		Cached   bool   `json:"cached"`
	}
	if err := json.Unmarshal(data, &parsed); err != nil {
		return err
	}

	fmt.Println(parsed.Response)
	if parsed.Cached {
		fmt.Fprintln(os.Stderr, "(served from cache)")
	}
	return nil
}
