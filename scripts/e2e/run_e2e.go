// Package main runs end-to-end booking scenarios against a running API.
//
// The server must run with ALLOW_FAKE_PAYMENTS=true and PUBLIC_BASE_URL set
// so the online-payment scenarios can complete checkout without Stripe.
//
// Usage:
//
//	JWT_SECRET=... API_BASE_URL=... go run scripts/e2e/run_e2e.go [scenario-name]
//	JWT_SECRET=... API_BASE_URL=... go run scripts/e2e/run_e2e.go              # runs all
//	JWT_SECRET=... API_BASE_URL=... go run scripts/e2e/run_e2e.go pay-online   # runs one
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const concurrentBookings = 20

var (
	apiBase   string
	jwtSecret string
	client    = &http.Client{
		Timeout: 30 * time.Second,
		// Fake checkout answers with a redirect to the frontend; keep it.
		CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse },
	}
	numberPattern = regexp.MustCompile(`^APP-\d{8}-\d{4,}$`)
)

type scenario struct {
	Name string
	Fn   func(t *T)
}

// T is a lightweight test context for a single scenario.
type T struct {
	passed int
	failed int
	name   string
}

func (t *T) check(name string, ok bool) {
	if ok {
		fmt.Printf("    PASS: %s\n", name)
		t.passed++
	} else {
		fmt.Printf("    FAIL: %s\n", name)
		t.failed++
	}
}

func (t *T) fatalf(format string, args ...interface{}) {
	fmt.Printf("    FATAL: "+format+"\n", args...)
	t.failed++
}

type envelope struct {
	Success   bool            `json:"success"`
	Error     string          `json:"error"`
	SessionID string          `json:"sessionId"`
	URL       string          `json:"url"`
	Data      json.RawMessage `json:"data"`
}

type appointment struct {
	ID                 string `json:"id"`
	AppointmentNumber  string `json:"appointmentNumber"`
	PatientQueueNumber int    `json:"patientQueueNumber"`
	Status             string `json:"status"`
	PaymentMethod      string `json:"paymentMethod"`
	ConsultationFee    int64  `json:"consultationFee"`
	PaymentSessionID   string `json:"paymentSessionId"`
}

func token(subject, role string) string {
	claims := jwt.MapClaims{
		"sub":  subject,
		"role": role,
		"exp":  time.Now().Add(15 * time.Minute).Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(jwtSecret))
	if err != nil {
		panic(err)
	}
	return signed
}

func call(method, path, bearer string, body interface{}) (int, *envelope, *http.Response, error) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return 0, nil, nil, err
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, apiBase+path, reader)
	if err != nil {
		return 0, nil, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, nil, err
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	var env envelope
	_ = json.Unmarshal(raw, &env)
	return resp.StatusCode, &env, resp, nil
}

func createDoctor(t *T, fee int64) string {
	status, env, _, err := call(http.MethodPost, "/api/doctors", token("e2e-admin", "admin"), map[string]interface{}{
		"firstName":       "E2E",
		"lastName":        fmt.Sprintf("Doctor%d", time.Now().UnixNano()%100000),
		"email":           "e2e-doctor@example.com",
		"phone":           "+94770000000",
		"consultationFee": fee,
	})
	if err != nil || status != http.StatusCreated {
		t.fatalf("create doctor: status=%d err=%v body=%+v", status, err, env)
		return ""
	}
	var doc struct {
		ID string `json:"id"`
	}
	_ = json.Unmarshal(env.Data, &doc)
	return doc.ID
}

func bookingBody(doctorID, date, method string) map[string]interface{} {
	return map[string]interface{}{
		"doctorId":      doctorID,
		"date":          date,
		"time":          "09:30",
		"patientName":   "E2E Patient",
		"phoneNumber":   "+94771234567",
		"email":         "patient@example.com",
		"notes":         "e2e run",
		"paymentMethod": method,
	}
}

func decodeAppointment(env *envelope) appointment {
	var appt appointment
	_ = json.Unmarshal(env.Data, &appt)
	return appt
}

// completeFakeCheckout pays a fake session and returns the session id the
// success redirect carries.
func completeFakeCheckout(t *T, checkoutURL string) string {
	resp, err := client.Post(strings.TrimRight(checkoutURL, "/")+"/complete", "application/x-www-form-urlencoded", nil)
	if err != nil {
		t.fatalf("complete fake checkout: %v", err)
		return ""
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusSeeOther {
		t.fatalf("expected 303 from fake checkout, got %d", resp.StatusCode)
		return ""
	}
	loc, err := url.Parse(resp.Header.Get("Location"))
	if err != nil {
		t.fatalf("parse redirect: %v", err)
		return ""
	}
	return loc.Query().Get("session_id")
}

func scenarioPayAtClinic(t *T) {
	doctorID := createDoctor(t, 4000)
	if doctorID == "" {
		return
	}
	status, env, _, err := call(http.MethodPost, "/api/appointments", token("e2e-user-1", "customer"), bookingBody(doctorID, "2030-01-15", "payAtClinic"))
	if err != nil {
		t.fatalf("book: %v", err)
		return
	}
	appt := decodeAppointment(env)
	t.check("direct booking returns 201", status == http.StatusCreated)
	t.check("status is pending", appt.Status == "pending")
	t.check("appointment number format", numberPattern.MatchString(appt.AppointmentNumber))
	t.check("first booking of the doctor-day is queue 1", appt.PatientQueueNumber == 1)
	t.check("fee snapshot", appt.ConsultationFee == 4000)
}

func scenarioPayOnline(t *T) {
	doctorID := createDoctor(t, 5500)
	if doctorID == "" {
		return
	}
	user := token("e2e-user-2", "customer")
	status, env, _, err := call(http.MethodPost, "/api/payments/create-payment-intent", user, map[string]interface{}{
		"amount":          5500,
		"doctorId":        doctorID,
		"appointmentData": bookingBody(doctorID, "2030-01-16", "payOnline"),
	})
	if err != nil || status != http.StatusOK {
		t.fatalf("create session: status=%d err=%v body=%+v", status, err, env)
		return
	}
	t.check("session id returned", env.SessionID != "")

	status, _, _, _ = call(http.MethodGet, "/api/payments/success?session_id="+url.QueryEscape(env.SessionID), "", nil)
	t.check("unpaid session is rejected with 402", status == http.StatusPaymentRequired)

	sessionID := completeFakeCheckout(t, env.URL)
	t.check("redirect carries the session id", sessionID == env.SessionID)

	status, confirmed, _, err := call(http.MethodGet, "/api/payments/success?session_id="+url.QueryEscape(sessionID), "", nil)
	if err != nil {
		t.fatalf("confirm: %v", err)
		return
	}
	appt := decodeAppointment(confirmed)
	t.check("confirmation returns 200", status == http.StatusOK)
	t.check("status is confirmed", appt.Status == "confirmed")
	t.check("payment method is payOnline", appt.PaymentMethod == "payOnline")

	_, replay, _, _ := call(http.MethodGet, "/api/payments/success?session_id="+url.QueryEscape(sessionID), "", nil)
	t.check("replayed confirmation returns the same appointment", decodeAppointment(replay).ID == appt.ID)
}

func scenarioConcurrentBookings(t *T) {
	doctorID := createDoctor(t, 4000)
	if doctorID == "" {
		return
	}
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		numbers = map[string]bool{}
		queues  = map[int]bool{}
		errs    int
	)
	for i := 0; i < concurrentBookings; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			status, env, _, err := call(http.MethodPost, "/api/appointments", token(fmt.Sprintf("e2e-load-%d", i), "customer"), bookingBody(doctorID, "2030-02-01", "payAtClinic"))
			mu.Lock()
			defer mu.Unlock()
			if err != nil || status != http.StatusCreated {
				errs++
				return
			}
			appt := decodeAppointment(env)
			numbers[appt.AppointmentNumber] = true
			queues[appt.PatientQueueNumber] = true
		}(i)
	}
	wg.Wait()

	t.check("all concurrent bookings succeed", errs == 0)
	t.check("appointment numbers are distinct", len(numbers) == concurrentBookings)
	contiguous := len(queues) == concurrentBookings
	for q := 1; q <= concurrentBookings; q++ {
		contiguous = contiguous && queues[q]
	}
	t.check("queue numbers are exactly 1..N", contiguous)
}

func scenarioFeeSnapshot(t *T) {
	doctorID := createDoctor(t, 3000)
	if doctorID == "" {
		return
	}
	user := token("e2e-user-3", "customer")
	_, env, _, _ := call(http.MethodPost, "/api/appointments", user, bookingBody(doctorID, "2030-03-01", "payAtClinic"))
	before := decodeAppointment(env)

	status, _, _, _ := call(http.MethodPatch, "/api/doctors/"+doctorID+"/fee", token("e2e-admin", "admin"), map[string]interface{}{"consultationFee": 9000})
	t.check("fee update succeeds", status == http.StatusOK)

	_, env, _, _ = call(http.MethodGet, "/api/appointments/"+before.ID, user, nil)
	t.check("existing appointment keeps its fee", decodeAppointment(env).ConsultationFee == 3000)
}

func main() {
	apiBase = strings.TrimRight(os.Getenv("API_BASE_URL"), "/")
	if apiBase == "" {
		apiBase = "http://localhost:8080"
	}
	jwtSecret = os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		fmt.Println("JWT_SECRET is required")
		os.Exit(1)
	}

	scenarios := []scenario{
		{"pay-at-clinic", scenarioPayAtClinic},
		{"pay-online", scenarioPayOnline},
		{"concurrent", scenarioConcurrentBookings},
		{"fee-snapshot", scenarioFeeSnapshot},
	}

	filter := ""
	if len(os.Args) > 1 {
		filter = os.Args[1]
	}

	totalPassed, totalFailed := 0, 0
	for _, sc := range scenarios {
		if filter != "" && sc.Name != filter {
			continue
		}
		fmt.Printf("\n=== %s ===\n", sc.Name)
		t := &T{name: sc.Name}
		sc.Fn(t)
		totalPassed += t.passed
		totalFailed += t.failed
	}

	fmt.Printf("\n%d passed, %d failed\n", totalPassed, totalFailed)
	if totalFailed > 0 {
		os.Exit(1)
	}
}
