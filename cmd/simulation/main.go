package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"
)

// Simulation client: registers a throwaway user, submits an automated run
// against a local server, and polls it to completion.

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type loginData struct {
	AccessToken string `json:"access_token"`
}

type submitData struct {
	RunID  string `json:"run_id"`
	Status string `json:"status"`
}

type statusData struct {
	RunID         string `json:"run_id"`
	Status        string `json:"status"`
	Phase         string `json:"phase"`
	RevisionCount int    `json:"revision_count"`
	Items         string `json:"items"`
	Error         string `json:"error"`
}

func main() {
	baseURL := flag.String("base-url", "http://localhost:3000/api", "API base URL")
	preset := flag.String("preset", "grit", "construct preset to submit")
	maxRevisions := flag.Int("max-revisions", 3, "revision bound for the run")
	flag.Parse()

	email := fmt.Sprintf("sim-%d@example.com", time.Now().UnixNano())
	token, err := registerAndLogin(*baseURL, email)
	if err != nil {
		log.Fatalf("Auth failed: %v", err)
	}
	fmt.Printf("Authenticated as %s\n", email)

	runID, err := submitRun(*baseURL, token, *preset, *maxRevisions)
	if err != nil {
		log.Fatalf("Submit failed: %v", err)
	}
	fmt.Printf("Run submitted: %s\n", runID)

	lastPhase := ""
	for {
		st, err := runStatus(*baseURL, token, runID)
		if err != nil {
			log.Fatalf("Status poll failed: %v", err)
		}
		if st.Phase != lastPhase {
			fmt.Printf("[%s] phase=%s revisions=%d\n", st.Status, st.Phase, st.RevisionCount)
			lastPhase = st.Phase
		}
		if st.Status == "done" || st.Status == "failed" || st.Status == "cancelled" {
			fmt.Printf("\nFinal status: %s\n", st.Status)
			if st.Error != "" {
				fmt.Printf("Error: %s\n", st.Error)
			}
			if st.Items != "" {
				fmt.Printf("\nGenerated items:\n%s\n", st.Items)
			}
			if st.Status != "done" {
				os.Exit(1)
			}
			return
		}
		time.Sleep(2 * time.Second)
	}
}

func registerAndLogin(baseURL, email string) (string, error) {
	const password = "simulation-pass-1"

	regBody := map[string]string{"email": email, "full_name": "Simulation User", "password": password}
	if _, err := post(baseURL+"/auth/v1/register", "", regBody); err != nil {
		return "", fmt.Errorf("register: %w", err)
	}

	data, err := post(baseURL+"/auth/v1/login", "", map[string]string{"email": email, "password": password})
	if err != nil {
		return "", fmt.Errorf("login: %w", err)
	}
	var login loginData
	if err := json.Unmarshal(data, &login); err != nil {
		return "", err
	}
	return login.AccessToken, nil
}

func submitRun(baseURL, token, preset string, maxRevisions int) (string, error) {
	data, err := post(baseURL+"/runs/v1", token, map[string]interface{}{
		"preset":        preset,
		"mode":          "automated",
		"max_revisions": maxRevisions,
	})
	if err != nil {
		return "", err
	}
	var res submitData
	if err := json.Unmarshal(data, &res); err != nil {
		return "", err
	}
	return res.RunID, nil
}

func runStatus(baseURL, token, runID string) (*statusData, error) {
	req, _ := http.NewRequest("GET", baseURL+"/runs/v1/"+runID, nil)
	req.Header.Set("Authorization", "Bearer "+token)

	data, err := do(req)
	if err != nil {
		return nil, err
	}
	var st statusData
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

func post(url, token string, payload interface{}) (json.RawMessage, error) {
	jsonBytes, _ := json.Marshal(payload)
	req, _ := http.NewRequest("POST", url, bytes.NewBuffer(jsonBytes))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return do(req)
}

func do(req *http.Request) (json.RawMessage, error) {
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("API error %d: %s", resp.StatusCode, string(body))
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, err
	}
	if !env.Success {
		return nil, fmt.Errorf("API rejected request: %s", env.Message)
	}
	return env.Data, nil
}
