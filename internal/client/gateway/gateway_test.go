package gateway

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/samplerpa08-cpu/tourplan/internal/models"
)

func planPayload(week, name, first string) models.PlanPayload {
	locs := make([]string, models.DaysPerWeek)
	locs[0] = first
	return models.PlanPayload{WeekStart: week, Name: name, Locations: locs}
}

// roundTripperFunc lets tests stand in for the network.
type roundTripperFunc func(req *http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func newTestGateway(fn roundTripperFunc, opts ...Option) *Gateway {
	client := &http.Client{Transport: fn, Timeout: time.Second}
	opts = append([]Option{WithBaseDelay(time.Millisecond), WithRetries(2)}, opts...)
	return New("http://example.com", client, nil, opts...)
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     http.Header{"Content-Type": []string{"application/json"}},
	}
}

func TestCall_NetworkErrorRetriesThenUnavailable(t *testing.T) {
	calls := 0
	g := newTestGateway(func(req *http.Request) (*http.Response, error) {
		calls++
		return nil, errors.New("connection refused")
	})

	err := g.Call(context.Background(), http.MethodGet, "/api/users", nil, nil)
	var ue *UnavailableError
	if !errors.As(err, &ue) {
		t.Fatalf("expected UnavailableError, got %v", err)
	}
	if calls != 3 { // initial attempt + 2 retries
		t.Errorf("calls = %d; want 3", calls)
	}
	if g.Online() {
		t.Error("gateway still believes it is online after exhausting retries")
	}
}

func TestCall_RejectedNotRetried(t *testing.T) {
	calls := 0
	g := newTestGateway(func(req *http.Request) (*http.Response, error) {
		calls++
		return jsonResponse(409, `{"ok":false,"message":"user exists"}`), nil
	})

	err := g.Call(context.Background(), http.MethodPost, "/api/users/add", map[string]string{"name": "a"}, nil)
	var re *RejectedError
	if !errors.As(err, &re) {
		t.Fatalf("expected RejectedError, got %v", err)
	}
	if re.Status != 409 || re.Message != "user exists" {
		t.Errorf("unexpected rejection: %+v", re)
	}
	if calls != 1 {
		t.Errorf("rejected request retried: calls = %d", calls)
	}
}

func TestCall_NonJSONServerErrorRetried(t *testing.T) {
	calls := 0
	g := newTestGateway(func(req *http.Request) (*http.Response, error) {
		calls++
		return &http.Response{
			StatusCode: 502,
			Body:       io.NopCloser(strings.NewReader("<html>bad gateway</html>")),
		}, nil
	})

	err := g.Call(context.Background(), http.MethodGet, "/api/users", nil, nil)
	var ue *UnavailableError
	if !errors.As(err, &ue) {
		t.Fatalf("expected UnavailableError, got %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d; want 3", calls)
	}
}

func TestCall_MalformedBodyNotRetried(t *testing.T) {
	calls := 0
	g := newTestGateway(func(req *http.Request) (*http.Response, error) {
		calls++
		return jsonResponse(200, "not-json"), nil
	})

	var out map[string]any
	err := g.Call(context.Background(), http.MethodGet, "/api/users", nil, &out)
	if err == nil {
		t.Fatal("expected decode error")
	}
	var ue *UnavailableError
	if errors.As(err, &ue) {
		t.Error("malformed application response classified as unavailable")
	}
	if calls != 1 {
		t.Errorf("malformed-JSON response retried: calls = %d", calls)
	}
}

func TestCall_SuccessDecodesAndSetsOnline(t *testing.T) {
	g := newTestGateway(func(req *http.Request) (*http.Response, error) {
		return jsonResponse(200, `{"ok":true,"users":[{"name":"ada","isAdmin":true}]}`), nil
	})
	g.SetOnline(false)

	resp, err := g.ListUsers(context.Background())
	if err != nil {
		t.Fatalf("ListUsers failed: %v", err)
	}
	if len(resp.Users) != 1 || resp.Users[0].Name != "ada" || !resp.Users[0].IsAdmin {
		t.Errorf("unexpected users: %+v", resp.Users)
	}
	if !g.Online() {
		t.Error("successful call did not restore online signal")
	}
}

func TestCall_OKFalseEnvelopeIsRejected(t *testing.T) {
	g := newTestGateway(func(req *http.Request) (*http.Response, error) {
		return jsonResponse(200, `{"ok":false,"message":"invalid credentials"}`), nil
	})

	_, err := g.Login(context.Background(), "ada", "9999")
	var re *RejectedError
	if !errors.As(err, &re) {
		t.Fatalf("expected RejectedError, got %v", err)
	}
	if re.Message != "invalid credentials" {
		t.Errorf("unexpected message: %q", re.Message)
	}
}

func TestSetPlan_SendsContract(t *testing.T) {
	var gotPath, gotBody string
	g := newTestGateway(func(req *http.Request) (*http.Response, error) {
		gotPath = req.URL.Path
		b, _ := io.ReadAll(req.Body)
		gotBody = string(b)
		return jsonResponse(200, `{"ok":true}`), nil
	})

	err := g.SetPlan(context.Background(), planPayload("20250811", "ada", "X"))
	if err != nil {
		t.Fatalf("SetPlan failed: %v", err)
	}
	if gotPath != "/api/plans/set" {
		t.Errorf("path = %q", gotPath)
	}
	for _, want := range []string{`"weekStart":"20250811"`, `"name":"ada"`, `"locationsArray"`} {
		if !strings.Contains(gotBody, want) {
			t.Errorf("body missing %s: %s", want, gotBody)
		}
	}
}

func TestTransitions_OfflineToOnline(t *testing.T) {
	g := newTestGateway(func(req *http.Request) (*http.Response, error) {
		return jsonResponse(200, `{"ok":true}`), nil
	})

	g.SetOnline(false)
	g.SetOnline(true)
	select {
	case <-g.Transitions():
	default:
		t.Fatal("offline-to-online flip emitted no transition")
	}

	// Staying online emits nothing.
	g.SetOnline(true)
	select {
	case <-g.Transitions():
		t.Fatal("online-to-online flip emitted a transition")
	default:
	}
}
