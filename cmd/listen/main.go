// Command listen tails a user's notification stream and prints each event.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/golang-jwt/jwt/v5"
)

type frame struct {
	Event string
	Data  string
}

func main() {
	baseURL := flag.String("url", "http://localhost:3000", "server base URL")
	token := flag.String("token", "", "bearer token; minted from -secret and -user when empty")
	secret := flag.String("secret", os.Getenv("JWT_SECRET"), "HS256 secret used to mint a token")
	user := flag.String("user", "", "username to mint a token for")
	role := flag.String("role", "user", "role claim for a minted token")
	flag.Parse()

	if *token == "" {
		if *secret == "" || *user == "" {
			color.Red("either -token or both -secret and -user are required")
			os.Exit(2)
		}
		minted, err := mintToken(*secret, *user, *role)
		if err != nil {
			color.Red("Failed to mint token: %v", err)
			os.Exit(1)
		}
		*token = minted
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := listen(ctx, *baseURL, *token, os.Stdout); err != nil && ctx.Err() == nil {
		color.Red("Stream ended: %v", err)
		os.Exit(1)
	}
}

func mintToken(secret, user, role string) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"username": user,
		"role":     role,
		"exp":      time.Now().Add(12 * time.Hour).Unix(),
	}).SignedString([]byte(secret))
}

func listen(ctx context.Context, baseURL, token string, out io.Writer) error {
	endpoint := strings.TrimRight(baseURL, "/") + "/sse/notifications?token=" + url.QueryEscape(token)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("unexpected status %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	color.Cyan("Listening on %s", strings.TrimRight(baseURL, "/")+"/sse/notifications")
	return readFrames(resp.Body, func(f frame) { printFrame(out, f) })
}

// readFrames splits a text/event-stream body into frames. Comment lines
// (heartbeats) are skipped.
func readFrames(r io.Reader, emit func(frame)) error {
	scanner := bufio.NewScanner(r)
	var current frame
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if current.Event != "" || current.Data != "" {
				emit(current)
			}
			current = frame{}
		case strings.HasPrefix(line, ":"):
		case strings.HasPrefix(line, "event:"):
			current.Event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			if current.Data != "" {
				current.Data += "\n"
			}
			current.Data += strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		}
	}
	return scanner.Err()
}

func printFrame(out io.Writer, f frame) {
	stamp := time.Now().Format("15:04:05")
	switch f.Event {
	case "connected":
		color.New(color.FgGreen).Fprintf(out, "[%s] connected\n", stamp)
	case "unreadCount":
		color.New(color.FgYellow).Fprintf(out, "[%s] unread: %s\n", stamp, f.Data)
	case "notification":
		var pretty map[string]interface{}
		if err := json.Unmarshal([]byte(f.Data), &pretty); err != nil {
			fmt.Fprintf(out, "[%s] notification %s\n", stamp, f.Data)
			return
		}
		color.New(color.FgCyan, color.Bold).Fprintf(out, "[%s] %v: %v\n", stamp, pretty["title"], pretty["body"])
		fmt.Fprintf(out, "         from %v to %v (id %v)\n", pretty["sender"], pretty["target"], pretty["id"])
	default:
		fmt.Fprintf(out, "[%s] %s %s\n", stamp, f.Event, f.Data)
	}
}
