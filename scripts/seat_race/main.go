package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type enrollmentResult struct {
	Status  string `json:"status"`
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

type course struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Capacity       int    `json:"capacity"`
	AvailableSeats int    `json:"available_seats"`
}

type outcome struct {
	StudentID string
	Result    enrollmentResult
	Err       error
	Duration  time.Duration
}

type client struct {
	http  *http.Client
	base  string
	token string
}

// seat_race fires concurrent enrollments for one course and checks that the
// number of admitted students never exceeds the seats that were free.
func main() {
	var (
		base     string
		email    string
		password string
		courseID string
		students string
		timeout  time.Duration
	)

	flag.StringVar(&base, "base", "http://localhost:8080/api/v1", "API base URL including prefix")
	flag.StringVar(&email, "email", "admin@university.edu", "Admin login e-mail")
	flag.StringVar(&password, "password", "", "Admin password")
	flag.StringVar(&courseID, "course", "", "Course to enroll into")
	flag.StringVar(&students, "students", "", "Comma separated student IDs")
	flag.DurationVar(&timeout, "timeout", 10*time.Second, "HTTP client timeout")
	flag.Parse()

	ids := splitIDs(students)
	if courseID == "" || len(ids) == 0 {
		log.Fatal("both -course and -students are required")
	}

	c := &client{http: &http.Client{Timeout: timeout}, base: strings.TrimRight(base, "/")}
	if err := c.login(email, password); err != nil {
		log.Fatalf("login failed: %v", err)
	}

	before, err := c.course(courseID)
	if err != nil {
		log.Fatalf("load course: %v", err)
	}

	results := make([]outcome, len(ids))
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i, id := range ids {
		wg.Add(1)
		go func(i int, studentID string) {
			defer wg.Done()
			<-start
			began := time.Now()
			res, err := c.enroll(studentID, courseID)
			results[i] = outcome{StudentID: studentID, Result: res, Err: err, Duration: time.Since(began)}
		}(i, id)
	}
	close(start)
	wg.Wait()

	after, err := c.course(courseID)
	if err != nil {
		log.Fatalf("reload course: %v", err)
	}

	admitted := printReport(before, after, results)
	violations := 0
	if admitted > before.AvailableSeats {
		fmt.Printf("VIOLATION: %d students admitted with only %d free seats\n", admitted, before.AvailableSeats)
		violations++
	}
	if after.AvailableSeats < 0 || after.AvailableSeats > after.Capacity {
		fmt.Printf("VIOLATION: available seats %d outside [0, %d]\n", after.AvailableSeats, after.Capacity)
		violations++
	}
	if after.AvailableSeats != before.AvailableSeats-admitted {
		fmt.Printf("VIOLATION: seats moved by %d but %d students were admitted\n", before.AvailableSeats-after.AvailableSeats, admitted)
		violations++
	}
	if violations > 0 {
		os.Exit(1)
	}
}

func splitIDs(raw string) []string {
	var ids []string
	for _, part := range strings.Split(raw, ",") {
		if id := strings.TrimSpace(part); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

func (c *client) login(email, password string) error {
	var resp struct {
		AccessToken string `json:"access_token"`
	}
	if err := c.do(http.MethodPost, "/auth/login", map[string]string{"email": email, "password": password}, &resp); err != nil {
		return err
	}
	if resp.AccessToken == "" {
		return errors.New("empty access token")
	}
	c.token = resp.AccessToken
	return nil
}

func (c *client) course(id string) (course, error) {
	var out course
	err := c.do(http.MethodGet, "/courses/"+id, nil, &out)
	return out, err
}

func (c *client) enroll(studentID, courseID string) (enrollmentResult, error) {
	var out enrollmentResult
	err := c.do(http.MethodPost, "/enrollments", map[string]string{"student_id": studentID, "course_id": courseID}, &out)
	return out, err
}

func (c *client) do(method, path string, payload, dest interface{}) error {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, c.base+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	if env.Error != nil {
		return fmt.Errorf("%s %s: %s (%s)", method, path, env.Error.Message, env.Error.Code)
	}
	return json.Unmarshal(env.Data, dest)
}

func printReport(before, after course, results []outcome) int {
	fmt.Println("Seat Race Report")
	fmt.Println("================")
	fmt.Printf("Course: %s (%s)\n", before.Name, before.ID)
	fmt.Printf("Seats before: %d/%d | after: %d/%d\n", before.AvailableSeats, before.Capacity, after.AvailableSeats, after.Capacity)

	tally := make(map[string]int)
	admitted := 0
	var slowest time.Duration
	for _, res := range results {
		if res.Duration > slowest {
			slowest = res.Duration
		}
		switch {
		case res.Err != nil:
			tally["TRANSPORT_ERROR"]++
			fmt.Printf("  [ERROR] %s: %v\n", res.StudentID, res.Err)
		case res.Result.Status == "Success":
			tally["SUCCESS"]++
			admitted++
		default:
			tally[res.Result.Reason]++
		}
	}

	keys := make([]string, 0, len(tally))
	for k := range tally {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Printf("  %-22s %d\n", k, tally[k])
	}
	fmt.Printf("Requests: %d | slowest: %s\n", len(results), slowest)
	return admitted
}
