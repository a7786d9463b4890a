package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClient_Verify(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/verify" {
			t.Errorf("Expected path /api/v1/verify, got %s", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Errorf("Expected POST method, got %s", r.Method)
		}

		var req VerifyRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("Failed to decode request: %v", err)
		}

		if req.Package.Name != "nft_marketplace" {
			t.Errorf("Expected package nft_marketplace, got %s", req.Package.Name)
		}
		if !req.VerifyDeps {
			t.Error("Expected verify_deps true")
		}

		json.NewEncoder(w).Encode(map[string]any{
			"package":     "nft_marketplace",
			"fingerprint": "4edd9e70a4d5a9e9f2a6b1d5f87b4f8c",
			"verified":    true,
			"result":      "ok",
		})
	}))
	defer server.Close()

	client := New(server.URL)
	result, err := client.Verify(context.Background(), VerifyRequest{
		Package: Package{
			Name: "nft_marketplace",
			Modules: []Module{
				{Name: "marketplace", Bytecode: []byte{0xa1, 0x1c, 0xeb, 0x0b}},
			},
			AddressTable: map[string]string{"nft_marketplace": "0x2a"},
		},
		VerifyDeps: true,
	})
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}

	if !result.Verified {
		t.Error("Verify().Verified = false, want true")
	}
	if result.Result != "ok" {
		t.Errorf("Verify().Result = %s, want ok", result.Result)
	}
	if result.Fingerprint == "" {
		t.Error("Verify().Fingerprint is empty")
	}
}

func TestClient_Verify_Mismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"package":  "nft_marketplace",
			"verified": false,
			"result":   "bytecode_mismatch",
			"message":  "local module marketplace does not match on-chain bytecode",
		})
	}))
	defer server.Close()

	client := New(server.URL)
	result, err := client.Verify(context.Background(), VerifyRequest{
		Package: Package{Name: "nft_marketplace"},
	})
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}

	if result.Verified {
		t.Error("Verify().Verified = true, want false")
	}
	if result.Result != "bytecode_mismatch" {
		t.Errorf("Verify().Result = %s, want bytecode_mismatch", result.Result)
	}
	if result.Message == "" {
		t.Error("Verify().Message is empty, want mismatch detail")
	}
}

func TestClient_ListVerifications(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/verifications" {
			t.Errorf("Expected path /api/v1/verifications, got %s", r.URL.Path)
		}
		if r.Method != http.MethodGet {
			t.Errorf("Expected GET method, got %s", r.Method)
		}

		q := r.URL.Query()
		if q.Get("package") != "nft_marketplace" {
			t.Errorf("Expected package query nft_marketplace, got %s", q.Get("package"))
		}
		if q.Get("result") != "ok" {
			t.Errorf("Expected result query ok, got %s", q.Get("result"))
		}
		if q.Get("limit") != "10" {
			t.Errorf("Expected limit query 10, got %s", q.Get("limit"))
		}

		json.NewEncoder(w).Encode(map[string]any{
			"verifications": []map[string]any{
				{"id": "ver-1", "package": "nft_marketplace", "operation": "root", "result": "ok"},
			},
			"has_more":    true,
			"next_cursor": "ver-1",
		})
	}))
	defer server.Close()

	client := New(server.URL)
	resp, err := client.ListVerifications(context.Background(), ListVerificationsOptions{
		Package: "nft_marketplace",
		Result:  "ok",
		Limit:   10,
	})
	if err != nil {
		t.Fatalf("ListVerifications() error = %v", err)
	}

	if len(resp.Verifications) != 1 {
		t.Errorf("ListVerifications() returned %d entries, want 1", len(resp.Verifications))
	}
	if resp.Verifications[0].ID != "ver-1" {
		t.Errorf("ListVerifications()[0].ID = %s, want ver-1", resp.Verifications[0].ID)
	}
	if !resp.HasMore {
		t.Error("ListVerifications().HasMore = false, want true")
	}
	if resp.NextCursor != "ver-1" {
		t.Errorf("ListVerifications().NextCursor = %s, want ver-1", resp.NextCursor)
	}
}

func TestClient_GetVerification(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/verifications/ver-42" {
			t.Errorf("Expected path /api/v1/verifications/ver-42, got %s", r.URL.Path)
		}

		json.NewEncoder(w).Encode(map[string]any{
			"id":          "ver-42",
			"package":     "nft_marketplace",
			"operation":   "root_and_deps",
			"result":      "ok",
			"duration_ms": 128,
			"created_at":  "2025-06-15T10:30:00Z",
		})
	}))
	defer server.Close()

	client := New(server.URL)
	v, err := client.GetVerification(context.Background(), "ver-42")
	if err != nil {
		t.Fatalf("GetVerification() error = %v", err)
	}

	if v.ID != "ver-42" {
		t.Errorf("GetVerification().ID = %s, want ver-42", v.ID)
	}
	if v.Operation != "root_and_deps" {
		t.Errorf("GetVerification().Operation = %s, want root_and_deps", v.Operation)
	}
	if v.DurationMS != 128 {
		t.Errorf("GetVerification().DurationMS = %d, want 128", v.DurationMS)
	}
}

func TestClient_Health(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			t.Errorf("Expected path /health, got %s", r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := New(server.URL)
	if err := client.Health(context.Background()); err != nil {
		t.Fatalf("Health() error = %v", err)
	}
}

func TestClient_ErrorHandling(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]string{
				"code":    "NOT_FOUND",
				"message": "Verification not found",
			},
		})
	}))
	defer server.Close()

	client := New(server.URL)
	_, err := client.GetVerification(context.Background(), "nonexistent")
	if err == nil {
		t.Fatal("Expected error for 404 response")
	}

	apiErr, ok := err.(*APIError)
	if !ok {
		t.Fatalf("Expected APIError, got %T", err)
	}
	if apiErr.Code != "NOT_FOUND" {
		t.Errorf("Expected code NOT_FOUND, got %s", apiErr.Code)
	}
}

func TestClient_ErrorHandling_NonJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream timeout"))
	}))
	defer server.Close()

	client := New(server.URL)
	_, err := client.GetVerification(context.Background(), "ver-1")
	if err == nil {
		t.Fatal("Expected error for 502 response")
	}
	if _, ok := err.(*APIError); ok {
		t.Error("Expected plain error for non-JSON body, got APIError")
	}
}
