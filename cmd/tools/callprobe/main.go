package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

// callprobe drives the voice webhook from a terminal so a full conversation
// can be exercised without placing a carrier call. Each stdin line is sent
// as one speech result; the raw TwiML response is printed back.
func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
	}

	server := flag.String("server", "http://localhost:8080", "agent server base URL")
	caller := flag.String("from", "+15550001111", "caller number to report")
	callID := flag.String("call", "", "call SID to reuse, auto-generated when empty")
	timeout := flag.Duration("timeout", 30*time.Second, "per-request timeout")
	flag.Parse()

	sid := *callID
	if sid == "" {
		sid = "probe-" + uuid.NewString()
	}

	client := &http.Client{}
	base := strings.TrimRight(*server, "/")

	fmt.Printf("call SID: %s\n", sid)
	fmt.Println("empty line sends the initial webhook, 'quit' ends the call")

	// Kick off the call the way the carrier does, with no speech yet.
	if err := sendTurn(client, base, sid, *caller, "", *timeout); err != nil {
		log.Fatalf("initial webhook failed: %v", err)
	}

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "quit" {
			break
		}

		if err := sendTurn(client, base, sid, *caller, line, *timeout); err != nil {
			log.Printf("turn failed: %v", err)
		}
	}

	if err := sendComplete(client, base, sid, *timeout); err != nil {
		log.Printf("call completion failed: %v", err)
	} else {
		fmt.Println("call completed")
	}
}

func sendTurn(client *http.Client, base, sid, caller, speech string, timeout time.Duration) error {
	form := url.Values{
		"CallSid": {sid},
		"From":    {caller},
	}
	if speech != "" {
		form.Set("SpeechResult", speech)
	}

	body, err := postForm(client, base+"/voice", form, timeout)
	if err != nil {
		return err
	}

	fmt.Println(body)
	return nil
}

func sendComplete(client *http.Client, base, sid string, timeout time.Duration) error {
	_, err := postForm(client, base+"/recording-complete", url.Values{"CallSid": {sid}}, timeout)
	return err
}

func postForm(client *http.Client, endpoint string, form url.Values, timeout time.Duration) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	return string(body), nil
}
