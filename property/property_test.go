package property

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/KamdynS/property-crew/crew"
	"github.com/KamdynS/property-crew/llm"
	"github.com/KamdynS/property-crew/memory/inmemory"
	"github.com/KamdynS/property-crew/tools/scrape"
)

func TestRedfinURL(t *testing.T) {
	cases := map[string]string{
		"123 Main St":               "https://www.redfin.com/search#query=123%20Main%20St",
		"  two  spaces ":            "https://www.redfin.com/search#query=%20%20two%20%20spaces%20",
		"1 Elm St, Apt #4 & Co/Ltd": "https://www.redfin.com/search#query=1%20Elm%20St,%20Apt%20#4%20&%20Co/Ltd",
		"NoSpaces":                  "https://www.redfin.com/search#query=NoSpaces",
	}
	for in, want := range cases {
		if got := RedfinURL(in); got != want {
			t.Errorf("RedfinURL(%q) = %q, want %q", in, got, want)
		}
	}
}

type stubTool struct{ name string }

func (s stubTool) Name() string                   { return s.name }
func (s stubTool) Description() string            { return s.name }
func (s stubTool) Schema() map[string]interface{} { return map[string]interface{}{"type": "object"} }
func (s stubTool) Execute(ctx context.Context, input string) (string, error) {
	return "", nil
}

func toolNames(c *crew.Crew, kind crew.TaskKind) []string {
	for _, task := range c.Tasks {
		if task.Kind == kind {
			var out []string
			for _, tl := range task.Tools {
				out = append(out, tl.Name())
			}
			return out
		}
	}
	return nil
}

func TestNewCrew(t *testing.T) {
	c := NewCrew("123 Main St", Toolset{Search: stubTool{"search"}, Scrape: stubTool{"scrape"}})
	if err := c.Validate(); err != nil {
		t.Fatalf("crew invalid: %v", err)
	}

	wantAgents := []crew.Role{crew.RoleDataSpecialist, crew.RoleAmenitiesFinder, crew.RoleVerifier}
	for i, a := range c.Agents {
		if a.Role != wantAgents[i] {
			t.Errorf("agent %d = %s, want %s", i, a.Role, wantAgents[i])
		}
		if a.AllowDelegation {
			t.Errorf("%s must not delegate", a.Role)
		}
		if !a.Verbose {
			t.Errorf("%s should be verbose", a.Role)
		}
	}
	if !strings.Contains(c.Agents[0].Goal, "based on {address}") {
		t.Errorf("goal should stay a template until kickoff: %q", c.Agents[0].Goal)
	}
	if len(c.Agents[0].Tools) != 0 || len(c.Agents[1].Tools) != 0 || len(c.Agents[2].Tools) != 2 {
		t.Errorf("unexpected agent tools")
	}

	wantTasks := []crew.TaskKind{crew.TaskPropertyDetails, crew.TaskNearbyAmenities, crew.TaskVerification}
	for i, task := range c.Tasks {
		if task.Kind != wantTasks[i] {
			t.Errorf("task %d = %s, want %s", i, task.Kind, wantTasks[i])
		}
		if !strings.Contains(task.Description, "{address}") {
			t.Errorf("%s description lost its address placeholder", task.Kind)
		}
	}
	if c.Tasks[2].Agent != crew.RoleVerifier {
		t.Errorf("verification assigned to %s", c.Tasks[2].Agent)
	}
	if c.Tasks[0].OutputSchema == nil || c.Tasks[2].OutputSchema != nil {
		t.Errorf("only the details task carries a schema")
	}
	if got := strings.Join(toolNames(c, crew.TaskPropertyDetails), ","); got != "search,scrape" {
		t.Errorf("details tools = %s", got)
	}
	if got := strings.Join(toolNames(c, crew.TaskNearbyAmenities), ","); got != "search" {
		t.Errorf("amenities tools = %s", got)
	}
	if got := strings.Join(toolNames(c, crew.TaskVerification), ","); got != "search,scrape" {
		t.Errorf("verification tools = %s", got)
	}
	if !c.Memory {
		t.Errorf("memory should be on")
	}
}

func TestNewCrewDefaultScrape(t *testing.T) {
	c := NewCrew("9 Oak Ave", Toolset{Search: stubTool{"search"}})
	ws, ok := c.Tasks[0].Tools[1].(*scrape.WebsiteTool)
	if !ok {
		t.Fatalf("expected a website tool, got %T", c.Tasks[0].Tools[1])
	}
	if ws.URL() != "https://www.redfin.com/search#query=9%20Oak%20Ave" {
		t.Fatalf("scrape bound to %s", ws.URL())
	}
}

func TestDetailsValidate(t *testing.T) {
	raw := `{"address": "123 Main St", "price_current": "$500,000", "number_of_bedrooms": 3,
		"number_of_bathrooms": 2, "square_footage": "1,800 sqft", "property_type": "Single Family",
		"property_taxes": "$6,000/yr", "nearby_schools": {"Lincoln Elementary": "8/10, 0.4 mi"},
		"nearby_public_transport": {"bus": "Route 5, 0.2 mi"}, "hoa_fees": "None"}`
	obj, err := DetailsSchema.Parse(raw)
	if err != nil {
		t.Fatalf("valid details rejected: %v", err)
	}
	if obj["number_of_bedrooms"] != float64(3) {
		t.Fatalf("unexpected object %v", obj)
	}

	_, err = DetailsSchema.Parse(`{"address": "123 Main St"}`)
	if err == nil {
		t.Fatalf("expected validation failure")
	}
	for _, field := range []string{"price_current", "nearby_schools", "hoa_fees"} {
		if !strings.Contains(err.Error(), field) {
			t.Errorf("error should name %s: %v", field, err)
		}
	}

	schema := Details{}.JSONSchema()
	props, _ := schema["properties"].(map[string]interface{})
	if _, ok := props["rental_value_estimate"]; !ok || len(props) != 14 {
		t.Fatalf("unexpected schema properties: %v", props)
	}
}

func TestDetailsValidateAcceptsEmptyValues(t *testing.T) {
	raw := `{"address": "", "price_current": "", "number_of_bedrooms": 0, "number_of_bathrooms": 0,
		"square_footage": "", "property_type": "", "property_taxes": "", "nearby_schools": {},
		"nearby_public_transport": {}, "hoa_fees": ""}`
	obj, err := DetailsSchema.Parse(raw)
	if err != nil {
		t.Fatalf("present but empty values rejected: %v", err)
	}
	if obj["hoa_fees"] != "" {
		t.Fatalf("unexpected object %v", obj)
	}

	_, err = DetailsSchema.Parse(strings.Replace(raw, `"hoa_fees": ""`, `"hoa_fees": null`, 1))
	if err == nil || !strings.Contains(err.Error(), "hoa_fees") {
		t.Fatalf("null hoa_fees should fail, got %v", err)
	}
	_, err = DetailsSchema.Parse(strings.Replace(raw, `"number_of_bedrooms": 0, `, "", 1))
	if err == nil || !strings.Contains(err.Error(), "number_of_bedrooms") {
		t.Fatalf("missing number_of_bedrooms should fail, got %v", err)
	}
}

const validDetails = `{"address": "123 Main St", "price_current": "$500,000", "number_of_bedrooms": 3,
	"number_of_bathrooms": 2, "square_footage": "1,800", "property_type": "Condo", "property_taxes": "$6,000",
	"nearby_schools": {}, "nearby_public_transport": {}, "hoa_fees": "$200"}`

type fakeLLM struct {
	mu    sync.Mutex
	calls []*llm.ChatRequest
	err   error
}

func (f *fakeLLM) Chat(ctx context.Context, req *llm.ChatRequest) (*llm.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req)
	if f.err != nil {
		return nil, f.err
	}
	switch len(f.calls) {
	case 1:
		return &llm.Response{Content: validDetails}, nil
	case 2:
		return &llm.Response{Content: `{"grocery_stores": []}`}, nil
	default:
		return &llm.Response{Content: `{"address": "123 Main St", "verified": true}`}, nil
	}
}
func (f *fakeLLM) Completion(ctx context.Context, prompt string) (*llm.Response, error) {
	return f.Chat(ctx, &llm.ChatRequest{})
}
func (f *fakeLLM) Model() string          { return "fake" }
func (f *fakeLLM) Provider() llm.Provider { return llm.ProviderOpenAI }
func (f *fakeLLM) Validate() error        { return nil }

func TestServiceLookup(t *testing.T) {
	model := &fakeLLM{}
	rt := &crew.Runtime{LLM: model, ShortTerm: inmemory.NewConversationStore(0), LongTerm: inmemory.NewLongTermStore()}
	svc := NewService(rt, stubTool{"search_internet"}, WithScrapeConfig(scrape.Config{MaxChars: 100}))

	out, err := svc.Lookup(context.Background(), "123 Main St")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if len(model.calls) != 3 {
		t.Fatalf("expected 3 llm calls, got %d", len(model.calls))
	}
	if final, ok := out.FinalJSON(); !ok || final["verified"] != true {
		t.Fatalf("unexpected final output %+v", out)
	}
	if out.TasksOutput[0].OutputFormat != crew.FormatJSON {
		t.Fatalf("details task should be structured")
	}
	if got := model.calls[0].Tools[0].Function.Name; got != "read_website_content" {
		t.Fatalf("expected tools sorted by name, got %s", got)
	}
}

func TestServiceLookupErrors(t *testing.T) {
	model := &fakeLLM{err: llm.NewLLMError(llm.ProviderOpenAI, llm.ErrorTypeServerError, "down")}
	svc := NewService(&crew.Runtime{LLM: model}, stubTool{"search_internet"}, WithMemory(false))

	if _, err := svc.Lookup(context.Background(), ""); !errors.Is(err, ErrEmptyAddress) {
		t.Fatalf("expected ErrEmptyAddress, got %v", err)
	}
	if len(model.calls) != 0 {
		t.Fatalf("no crew should run for an empty address")
	}
	out, err := svc.Lookup(context.Background(), "123 Main St")
	if err == nil || out != nil {
		t.Fatalf("expected failure, got %v", out)
	}
}

func TestServiceLookupWhitespaceAddress(t *testing.T) {
	for _, address := range []string{" ", "  ", "\t"} {
		model := &fakeLLM{}
		svc := NewService(&crew.Runtime{LLM: model}, stubTool{"search_internet"}, WithMemory(false))

		out, err := svc.Lookup(context.Background(), address)
		if err != nil {
			t.Fatalf("Lookup(%q): %v", address, err)
		}
		if len(model.calls) != 3 || out == nil {
			t.Fatalf("Lookup(%q): crew ran %d llm calls", address, len(model.calls))
		}
	}
}

func TestServiceLookupInterpolatesOnce(t *testing.T) {
	model := &fakeLLM{}
	svc := NewService(&crew.Runtime{LLM: model}, stubTool{"search_internet"}, WithMemory(false))
	if _, err := svc.Lookup(context.Background(), "A{address}B"); err != nil {
		t.Fatal(err)
	}

	var prompt strings.Builder
	for _, m := range model.calls[0].Messages {
		prompt.WriteString(m.Content)
	}
	got := prompt.String()
	if !strings.Contains(got, "based on A{address}B") || !strings.Contains(got, "details for A{address}B") {
		t.Fatalf("address not interpolated as given:\n%s", got)
	}
	if strings.Contains(got, "AA{address}BB") {
		t.Fatalf("address expanded twice:\n%s", got)
	}
}
