// Command seed-doctors loads a doctor directory from a JSON file through the
// admin API.
//
// Usage:
//
//	JWT_SECRET=... API_URL=http://localhost:8080 go run ./scripts/seed-doctors doctors.json
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type doctorFile struct {
	Doctors []doctorSeed `json:"doctors"`
}

type doctorSeed struct {
	FirstName       string `json:"firstName"`
	LastName        string `json:"lastName"`
	Email           string `json:"email"`
	Phone           string `json:"phone"`
	Specialty       string `json:"specialty"`
	Hospital        string `json:"hospital"`
	ConsultationFee int64  `json:"consultationFee"`
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: go run ./scripts/seed-doctors <doctors.json>")
		os.Exit(1)
	}

	apiURL := strings.TrimRight(os.Getenv("API_URL"), "/")
	if apiURL == "" {
		apiURL = "http://localhost:8080"
	}
	secret := strings.TrimSpace(os.Getenv("JWT_SECRET"))
	if secret == "" {
		fmt.Println("JWT_SECRET is required to mint an admin token")
		os.Exit(1)
	}

	data, err := os.ReadFile(os.Args[1])
	if err != nil {
		fmt.Printf("error reading file: %v\n", err)
		os.Exit(1)
	}
	var file doctorFile
	if err := json.Unmarshal(data, &file); err != nil {
		fmt.Printf("error parsing JSON: %v\n", err)
		os.Exit(1)
	}

	token, err := adminToken(secret)
	if err != nil {
		fmt.Printf("error signing token: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Seeding %d doctors into %s\n", len(file.Doctors), apiURL)

	ctx := context.Background()
	client := &http.Client{Timeout: 30 * time.Second}
	failed := 0
	for _, doc := range file.Doctors {
		payload, err := json.Marshal(doc)
		if err != nil {
			fmt.Printf("  skip %s %s: %v\n", doc.FirstName, doc.LastName, err)
			failed++
			continue
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL+"/api/doctors", bytes.NewReader(payload))
		if err != nil {
			fmt.Printf("  skip %s %s: %v\n", doc.FirstName, doc.LastName, err)
			failed++
			continue
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+token)

		resp, err := client.Do(req)
		if err != nil {
			fmt.Printf("  error creating Dr. %s %s: %v\n", doc.FirstName, doc.LastName, err)
			failed++
			continue
		}
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		if resp.StatusCode != http.StatusCreated {
			fmt.Printf("  failed Dr. %s %s (status %d): %s\n", doc.FirstName, doc.LastName, resp.StatusCode, string(body))
			failed++
			continue
		}
		var created struct {
			Data struct {
				ID string `json:"id"`
			} `json:"data"`
		}
		_ = json.Unmarshal(body, &created)
		fmt.Printf("  created Dr. %s %s (%s)\n", doc.FirstName, doc.LastName, created.Data.ID)
	}

	if failed > 0 {
		fmt.Printf("\n%d of %d doctors failed\n", failed, len(file.Doctors))
		os.Exit(1)
	}
	fmt.Println("\nDoctor seeding complete")
}

func adminToken(secret string) (string, error) {
	claims := jwt.MapClaims{
		"sub":  "seed-doctors",
		"role": "admin",
		"exp":  time.Now().Add(10 * time.Minute).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
