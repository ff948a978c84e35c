package vision

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type fakeDescriber struct {
	answers map[string]string // prompt -> answer
	err     error
	prompts []string
}

func (f *fakeDescriber) Describe(ctx context.Context, region, imageURI, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	return f.answers[prompt], nil
}

type fakeStore struct {
	staged   int
	unstaged int
	stageErr error
}

func (f *fakeStore) Stage(ctx context.Context, data []byte, contentType string) (string, error) {
	if f.stageErr != nil {
		return "", f.stageErr
	}
	f.staged++
	return fmt.Sprintf("blob://staging/object-%d", f.staged), nil
}

func (f *fakeStore) Unstage(ctx context.Context, uri string) error {
	f.unstaged++
	return nil
}

func newImageServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write([]byte("not-really-a-jpeg"))
	}))
}

func newTestExtractor(describer Describer, store ObjectStore) *Extractor {
	limiter := NewRateLimiter([]string{"us-central1"}, 100, 60*time.Second, time.Millisecond)
	return NewExtractor(limiter, describer, store, &http.Client{Timeout: 5 * time.Second}, "test-agent")
}

func TestExtractor_ValidItem(t *testing.T) {
	ts := newImageServer(t)
	defer ts.Close()

	describer := &fakeDescriber{answers: map[string]string{
		validityPrompt: "yes",
		detailPrompt:   "Basmati Rice, $8.99, each",
	}}
	store := &fakeStore{}

	result := newTestExtractor(describer, store).Infer(context.Background(), ts.URL+"/item.jpg")

	if !result.Valid {
		t.Fatal("Expected a valid result")
	}
	if result.Name != "Basmati Rice" {
		t.Errorf("Expected name 'Basmati Rice', got '%s'", result.Name)
	}
	if result.Price != 8.99 {
		t.Errorf("Expected price 8.99, got %f", result.Price)
	}
	if result.Unit != "each" {
		t.Errorf("Expected unit 'each', got '%s'", result.Unit)
	}
	if store.unstaged != 1 {
		t.Errorf("Staged image should be cleaned up exactly once, got %d", store.unstaged)
	}
}

func TestExtractor_ClassifierRejectsWithoutDetailPrompt(t *testing.T) {
	ts := newImageServer(t)
	defer ts.Close()

	describer := &fakeDescriber{answers: map[string]string{
		validityPrompt: "no",
	}}
	store := &fakeStore{}

	result := newTestExtractor(describer, store).Infer(context.Background(), ts.URL+"/banner.jpg")

	if result.Valid {
		t.Error("Banner image should not produce a valid result")
	}
	if len(describer.prompts) != 1 {
		t.Errorf("Detail prompt must not be issued after a 'no', got %d calls", len(describer.prompts))
	}
	if store.unstaged != 1 {
		t.Errorf("Staged image should be cleaned up even on rejection, got %d", store.unstaged)
	}
}

func TestExtractor_ClassifierAnswerSanitized(t *testing.T) {
	ts := newImageServer(t)
	defer ts.Close()

	describer := &fakeDescriber{answers: map[string]string{
		validityPrompt: " Yes.\n",
		detailPrompt:   "Wildflower Honey, 6.49",
	}}

	result := newTestExtractor(describer, &fakeStore{}).Infer(context.Background(), ts.URL+"/honey.jpg")

	if !result.Valid {
		t.Fatal("A noisy affirmative answer should still authorize the detail prompt")
	}
	if result.Price != 6.49 {
		t.Errorf("Expected price 6.49, got %f", result.Price)
	}
	if result.Unit != "" {
		t.Errorf("A name/price pair has no unit, got '%s'", result.Unit)
	}
}

func TestExtractor_InferenceErrorDegradesToInvalid(t *testing.T) {
	ts := newImageServer(t)
	defer ts.Close()

	describer := &fakeDescriber{err: fmt.Errorf("backend unavailable")}
	store := &fakeStore{}

	result := newTestExtractor(describer, store).Infer(context.Background(), ts.URL+"/item.jpg")

	if result.Valid {
		t.Error("A failed inference call must not produce a valid result")
	}
	if store.unstaged != 1 {
		t.Errorf("Staged image should be cleaned up after a failure, got %d", store.unstaged)
	}
}

func TestExtractor_SuccessfulCallsChargeTheWindow(t *testing.T) {
	ts := newImageServer(t)
	defer ts.Close()

	describer := &fakeDescriber{answers: map[string]string{
		validityPrompt: "yes",
		detailPrompt:   "Basmati Rice, $8.99, each",
	}}
	limiter := NewRateLimiter([]string{"us-central1"}, 2, 60*time.Second, time.Millisecond)
	extractor := NewExtractor(limiter, describer, &fakeStore{}, &http.Client{Timeout: 5 * time.Second}, "test-agent")

	result := extractor.Infer(context.Background(), ts.URL+"/item.jpg")

	if !result.Valid {
		t.Fatal("Expected a valid result")
	}
	if limiter.CanCall("us-central1") {
		t.Error("Two dispatched calls should exhaust a quota of 2")
	}
}

func TestExtractor_FailedInferenceRefundsQuota(t *testing.T) {
	ts := newImageServer(t)
	defer ts.Close()

	describer := &fakeDescriber{err: fmt.Errorf("backend unavailable")}
	limiter := NewRateLimiter([]string{"us-central1"}, 1, 60*time.Second, time.Millisecond)
	extractor := NewExtractor(limiter, describer, &fakeStore{}, &http.Client{Timeout: 5 * time.Second}, "test-agent")

	result := extractor.Infer(context.Background(), ts.URL+"/item.jpg")

	if result.Valid {
		t.Error("A failed inference call must not produce a valid result")
	}
	if !limiter.CanCall("us-central1") {
		t.Error("A call that never dispatched must not count against the window")
	}
}

func TestExtractor_DownloadFailureSkipsStaging(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer ts.Close()

	store := &fakeStore{}
	result := newTestExtractor(&fakeDescriber{}, store).Infer(context.Background(), ts.URL+"/missing.jpg")

	if result.Valid {
		t.Error("An unreachable image must not produce a valid result")
	}
	if store.staged != 0 {
		t.Errorf("Nothing should be staged when the download fails, got %d", store.staged)
	}
}

func TestParseDetail(t *testing.T) {
	tests := []struct {
		text  string
		name  string
		price float64
		unit  string
	}{
		{"Gala Apples, $1.99, lb", "Gala Apples", 1.99, "lb"},
		{"Vermicelli, 2.49", "Vermicelli", 2.49, ""},
		{"Rice, about $12.00, per bag", "Rice", 12.00, "per bag"},
		{"just a description with no commas", "just a description with no commas", 0, ""},
		{"Mystery Item, priceless", "Mystery Item", 0, ""},
	}

	for _, tt := range tests {
		name, price, unit := parseDetail(tt.text)
		if name != tt.name {
			t.Errorf("parseDetail(%q): expected name %q, got %q", tt.text, tt.name, name)
		}
		if price != tt.price {
			t.Errorf("parseDetail(%q): expected price %v, got %v", tt.text, tt.price, price)
		}
		if unit != tt.unit {
			t.Errorf("parseDetail(%q): expected unit %q, got %q", tt.text, tt.unit, unit)
		}
	}
}

func TestCleanPrice(t *testing.T) {
	if got := cleanPrice("$3.99"); got != 3.99 {
		t.Errorf("Expected 3.99, got %v", got)
	}
	if got := cleanPrice("3,49 $"); got != 3.49 {
		t.Errorf("Expected 3.49, got %v", got)
	}
	if got := cleanPrice("no digits here"); got != 0 {
		t.Errorf("Expected 0 for unparseable price, got %v", got)
	}
}
