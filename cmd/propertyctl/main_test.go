package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestURLCommand(t *testing.T) {
	var out, errOut bytes.Buffer
	if code := run([]string{"url", "123", "Main", "St"}, &out, &errOut); code != 0 {
		t.Fatalf("exit %d: %s", code, errOut.String())
	}
	if got := strings.TrimSpace(out.String()); got != "https://www.redfin.com/search#query=123%20Main%20St" {
		t.Fatalf("got %q", got)
	}
}

func TestPlanCommand(t *testing.T) {
	var out, errOut bytes.Buffer
	if code := run([]string{"plan", "--dir", "LR"}, &out, &errOut); code != 0 {
		t.Fatalf("exit %d: %s", code, errOut.String())
	}
	want := "graph LR\n" +
		"n1[\"property_details<br/>Real Estate Data Specialist\"]\n" +
		"n2[\"nearby_amenities<br/>Nearby Amenities Finder\"]\n" +
		"n3[\"verification<br/>Real Estate Data Verification Assistant\"]\n" +
		"n1 --> n2\nn2 --> n3\n"
	if out.String() != want {
		t.Fatalf("unexpected plan:\n%s", out.String())
	}
}

func TestLookupCommand(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/property" || r.URL.Query().Get("address") != "9 Oak Ave" {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error": "Property not found for the provided address"}`))
			return
		}
		_, _ = w.Write([]byte(`{"address":"9 Oak Ave"}`))
	}))
	defer srv.Close()

	var out, errOut bytes.Buffer
	if code := run([]string{"lookup", "--host", srv.URL, "9 Oak Ave"}, &out, &errOut); code != 0 {
		t.Fatalf("exit %d: %s", code, errOut.String())
	}
	if out.String() != "{\n  \"address\": \"9 Oak Ave\"\n}\n" {
		t.Fatalf("unexpected output %q", out.String())
	}

	out.Reset()
	errOut.Reset()
	if code := run([]string{"lookup", "1 Elm St", "--host", srv.URL}, &out, &errOut); code != 1 {
		t.Fatalf("expected failure")
	}
	if !strings.Contains(errOut.String(), "status 404") {
		t.Fatalf("unexpected error output %q", errOut.String())
	}
}

func TestUsageErrors(t *testing.T) {
	var out, errOut bytes.Buffer
	if code := run(nil, &out, &errOut); code != 1 {
		t.Fatalf("expected exit 1 without a command")
	}
	if code := run([]string{"url"}, &out, &errOut); code != 1 || !strings.Contains(errOut.String(), "address is required") {
		t.Fatalf("expected missing address error, got %q", errOut.String())
	}
	if code := run([]string{"bogus"}, &out, &errOut); code != 1 {
		t.Fatalf("expected unknown command failure")
	}
}

func TestLookupURL(t *testing.T) {
	if got := lookupURL("localhost:5000", "1 A&B St"); got != "http://localhost:5000/api/property?address=1+A%26B+St" {
		t.Fatalf("got %s", got)
	}
}
