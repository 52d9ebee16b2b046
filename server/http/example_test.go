package http

import (
	"context"
	"fmt"
	"net/http/httptest"

	"github.com/KamdynS/property-crew/crew"
)

type exService struct{}

func (exService) Lookup(ctx context.Context, address string) (*crew.Output, error) {
	return &crew.Output{Raw: `{"address": "` + address + `"}`}, nil
}

func ExampleServer_property() {
	s := NewServer(exService{}, Config{Mode: "test"})
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest("GET", "/api/property?address=123%20Main%20St", nil))
	fmt.Println(w.Code, w.Body.String())

	w = httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest("GET", "/api/property", nil))
	fmt.Println(w.Code, w.Body.String())
	// Output:
	// 200 {"address":"123 Main St"}
	// 404 {"error": "Property not found for the provided address"}
}
