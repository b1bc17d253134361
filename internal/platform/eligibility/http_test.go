package eligibility

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
)

func TestHTTPInvestigator_Medical(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/medical" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.PayerName != "Aetna" {
			t.Errorf("unexpected payer %s", req.PayerName)
		}
		json.NewEncoder(w).Encode(Result{
			CoverageStatus:    StatusActive,
			CoverageType:      CoverageCommercial,
			PriorAuthRequired: true,
		})
	}))
	defer srv.Close()

	inv := NewHTTPInvestigator(srv.URL, zerolog.Nop())
	res, err := inv.InvestigateMedical(context.Background(), Request{PatientID: "PT000001", PayerName: "Aetna"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.CoverageType != CoverageCommercial || !res.PriorAuthRequired {
		t.Errorf("unexpected result: %+v", res)
	}
}

func TestHTTPInvestigator_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	inv := NewHTTPInvestigator(srv.URL, zerolog.Nop())
	_, err := inv.InvestigatePharmacy(context.Background(), Request{PatientID: "PT000001"})

	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("expected TransportError, got %v", err)
	}
}

func TestHTTPInvestigator_Unreachable(t *testing.T) {
	inv := NewHTTPInvestigator("http://127.0.0.1:1", zerolog.Nop())
	_, err := inv.InvestigateMedical(context.Background(), Request{PatientID: "PT000001"})

	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("expected TransportError, got %v", err)
	}
}

func TestHTTPInvestigator_Available(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	if !NewHTTPInvestigator(srv.URL, zerolog.Nop()).Available(context.Background()) {
		t.Error("expected healthy API to report available")
	}
	if NewHTTPInvestigator("http://127.0.0.1:1", zerolog.Nop()).Available(context.Background()) {
		t.Error("expected unreachable API to report unavailable")
	}
}
