//go:build integration

package integration_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"
)

func baseURL() string {
	if v := os.Getenv("QUORUM_TEST_BASE_URL"); strings.TrimSpace(v) != "" {
		return strings.TrimRight(v, "/")
	}
	return "http://127.0.0.1:18080"
}

func adminCredentials() (string, string) {
	email := os.Getenv("QUORUM_TEST_ADMIN_EMAIL")
	if strings.TrimSpace(email) == "" {
		email = "admin@example.com"
	}
	password := os.Getenv("QUORUM_TEST_ADMIN_PASSWORD")
	if strings.TrimSpace(password) == "" {
		password = "Secret123!"
	}
	return email, password
}

// TestParticipantCodeFlowIntegration exercises the public passcode surface
// against a running server. The code itself is delivered out of band, so the
// test asserts issuance behavior and rate-limit signalling rather than
// redemption.
func TestParticipantCodeFlowIntegration(t *testing.T) {
	client := &http.Client{Timeout: 5 * time.Second}
	base := baseURL()

	adminEmail, adminPassword := adminCredentials()
	var loginResp struct {
		Token string `json:"token"`
	}
	doPost(t, client, base+"/api/admin/login", "", map[string]string{
		"email":    adminEmail,
		"password": adminPassword,
	}, &loginResp)
	if loginResp.Token == "" {
		t.Fatalf("admin login did not return token")
	}

	participant := fmt.Sprintf("integration_%d@example.com", time.Now().UnixNano())
	doPost(t, client, base+"/api/admin/invitations", loginResp.Token, map[string]string{
		"email": participant,
		"group": "customer",
	}, nil)

	req, err := http.NewRequest(http.MethodPost, base+"/api/auth/request-code",
		bytes.NewReader(mustJSON(t, map[string]string{"email": participant})))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("request-code failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("request-code status = %d", resp.StatusCode)
	}
	if resp.Header.Get("X-RateLimit-Remaining") == "" {
		t.Fatalf("request-code response missing X-RateLimit-Remaining")
	}

	// Verifying with a bogus code must come back as a typed rejection, never
	// a server error.
	vreq, err := http.NewRequest(http.MethodPost, base+"/api/auth/verify",
		bytes.NewReader(mustJSON(t, map[string]any{"email": participant, "code": "000000", "consent": true})))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	vreq.Header.Set("Content-Type", "application/json")
	vresp, err := client.Do(vreq)
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	defer vresp.Body.Close()
	if vresp.StatusCode != http.StatusUnauthorized {
		body, _ := io.ReadAll(vresp.Body)
		t.Fatalf("verify with bogus code status = %d body %s", vresp.StatusCode, string(body))
	}
	var rejection struct {
		Kind string `json:"kind"`
	}
	if err := json.NewDecoder(vresp.Body).Decode(&rejection); err != nil {
		t.Fatalf("decode rejection: %v", err)
	}
	if rejection.Kind == "" {
		t.Fatalf("rejection missing kind")
	}
}

// TestAdminSurfaceIntegration walks the authenticated admin endpoints.
func TestAdminSurfaceIntegration(t *testing.T) {
	client := &http.Client{Timeout: 5 * time.Second}
	base := baseURL()

	adminEmail, adminPassword := adminCredentials()
	var loginResp struct {
		Token string `json:"token"`
	}
	doPost(t, client, base+"/api/admin/login", "", map[string]string{
		"email":    adminEmail,
		"password": adminPassword,
	}, &loginResp)

	participant := fmt.Sprintf("integration_%d@example.com", time.Now().UnixNano())
	doPost(t, client, base+"/api/admin/invitations", loginResp.Token, map[string]string{
		"email": participant,
		"group": "partner",
	}, nil)

	var list struct {
		Invitations []struct {
			Email string `json:"email"`
			Group string `json:"group"`
		} `json:"invitations"`
	}
	doGet(t, client, base+"/api/admin/invitations", loginResp.Token, &list)
	found := false
	for _, inv := range list.Invitations {
		if inv.Email == participant {
			found = true
			if inv.Group != "partner" {
				t.Fatalf("invitation group = %q", inv.Group)
			}
		}
	}
	if !found {
		t.Fatalf("created invitation missing from list")
	}

	doPost(t, client, base+"/api/admin/invitations/block", loginResp.Token, map[string]string{
		"email":  participant,
		"reason": "integration cleanup",
	}, nil)

	var mode struct {
		Restricted bool `json:"restricted"`
	}
	doGet(t, client, base+"/api/admin/mode", loginResp.Token, &mode)

	exportURL := base + "/api/admin/export?format=long"
	req, err := http.NewRequest(http.MethodGet, exportURL, nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+loginResp.Token)
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("export request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("export status %d body %s", resp.StatusCode, string(body))
	}
	csvData, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read export data: %v", err)
	}
	if !strings.HasPrefix(string(csvData), "participant,group,question_id,value,submitted_at") {
		t.Fatalf("unexpected export header: %s", string(csvData))
	}
	if strings.Contains(string(csvData), "@example.com") {
		t.Fatalf("export contains raw email addresses")
	}
}

func mustJSON(t *testing.T, body any) []byte {
	t.Helper()
	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	return payload
}

func doPost(t *testing.T, client *http.Client, url, token string, body any, out any) {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(mustJSON(t, body)))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if strings.TrimSpace(token) != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("http post %s failed: %v", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		t.Fatalf("unexpected status %d for %s: %s", resp.StatusCode, url, string(bodyBytes))
	}
	if out != nil {
		decoder := json.NewDecoder(resp.Body)
		if err := decoder.Decode(out); err != nil && err != io.EOF {
			t.Fatalf("decode response from %s: %v", url, err)
		}
	}
}

func doGet(t *testing.T, client *http.Client, url, token string, out any) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if strings.TrimSpace(token) != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("http get %s failed: %v", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		t.Fatalf("unexpected status %d for %s: %s", resp.StatusCode, url, string(bodyBytes))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && err != io.EOF {
		t.Fatalf("decode response from %s: %v", url, err)
	}
}
