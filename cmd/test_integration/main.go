package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

func baseURL() string {
	if u := os.Getenv("STEINBOT_URL"); u != "" {
		return u
	}
	return "http://localhost:8080"
}

func main() {
	// Wait for server to start
	time.Sleep(2 * time.Second)

	fmt.Println("Starting Integration Test...")

	stamp := time.Now().Unix()
	steps := []struct {
		name    string
		method  string
		path    string
		payload interface{}
	}{
		{"Health", "GET", "/api/health", nil},
		{"Ingest documents", "POST", "/api/documents", map[string]interface{}{
			"documents": []map[string]string{
				{"id": fmt.Sprintf("smoke-%d-a.txt", stamp), "content": "Alice leads the platform team and owns the quarterly budget review."},
				{"id": fmt.Sprintf("smoke-%d-b.txt", stamp), "content": "The quarterly budget review covers platform hiring and cloud spend."},
			},
		}},
		{"Search", "GET", "/api/search?query=budget&limit=3", nil},
		{"Topic search", "GET", "/api/search/topics?q=budget", nil},
		{"Chat", "POST", "/api/chat", map[string]interface{}{
			"query":        "What does the budget review cover?",
			"chat_history": []map[string]string{},
		}},
		{"Persona", "GET", "/api/persona", nil},
		{"Status", "GET", "/api/status", nil},
	}

	for i, s := range steps {
		fmt.Printf("%d. %s...\n", i+1, s.name)
		if !sendRequest(s.method, s.path, s.payload) {
			fmt.Printf("FAILED: %s\n", s.name)
			os.Exit(1)
		}
		fmt.Printf("PASSED: %s\n", s.name)
	}
}

func sendRequest(method, endpoint string, payload interface{}) bool {
	var body io.Reader
	if payload != nil {
		jsonBytes, _ := json.Marshal(payload)
		body = bytes.NewBuffer(jsonBytes)
	}

	req, err := http.NewRequest(method, baseURL()+endpoint, body)
	if err != nil {
		fmt.Printf("Error creating request: %v\n", err)
		return false
	}
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: 2 * time.Minute}
	resp, err := client.Do(req)
	if err != nil {
		fmt.Printf("Error sending request: %v\n", err)
		return false
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		fmt.Printf("Request failed with status %d: %s\n", resp.StatusCode, string(respBody))
		return false
	}
	fmt.Printf("Response: %s\n", string(respBody))

	return true
}
