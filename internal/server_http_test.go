package internal

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
)

func doRequest(t *testing.T, gateway *Gateway, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	request := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		request.Header.Set("Content-Type", "application/json")
	}
	recorder := httptest.NewRecorder()
	switch {
	case path == "/users":
		gateway.HandleUsers(recorder, request)
	case strings.HasPrefix(path, "/users/"):
		gateway.HandleUserByID(recorder, request)
	case path == "/auth/signIn":
		gateway.HandleSignIn(recorder, request)
	default:
		t.Fatalf("unrouted path %s", path)
	}
	return recorder
}

func TestCreateAndListUsers(t *testing.T) {
	gateway := newTestGateway(t)

	resp := doRequest(t, gateway, "POST", "/users", `{"nick":"Thomas_Lawson","callsign":"Hawk","role":1}`)
	if resp.Code != 201 {
		t.Fatalf("create status = %d, body %s", resp.Code, resp.Body.String())
	}
	var created userResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode create response: %v", err)
	}
	if created.Nick != "Thomas_Lawson" || created.Role != 1 {
		t.Fatalf("unexpected created user: %+v", created)
	}

	resp = doRequest(t, gateway, "POST", "/users", `{"nick":"Thomas_Lawson","callsign":"Dup","role":2}`)
	if resp.Code != 409 {
		t.Fatalf("duplicate status = %d, want 409", resp.Code)
	}

	resp = doRequest(t, gateway, "POST", "/users", `{"nick":"x","callsign":"y","role":9}`)
	if resp.Code != 400 {
		t.Fatalf("bad role status = %d, want 400", resp.Code)
	}

	resp = doRequest(t, gateway, "GET", "/users", "")
	if resp.Code != 200 {
		t.Fatalf("list status = %d", resp.Code)
	}
	var list []userResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("list size = %d, want 1", len(list))
	}
}

func TestUserByIDRoutes(t *testing.T) {
	gateway := newTestGateway(t)

	resp := doRequest(t, gateway, "POST", "/users", `{"nick":"alice","callsign":"Dove","role":3}`)
	if resp.Code != 201 {
		t.Fatalf("create status = %d", resp.Code)
	}
	var created userResponse
	_ = json.Unmarshal(resp.Body.Bytes(), &created)

	resp = doRequest(t, gateway, "GET", "/users/1", "")
	if resp.Code != 200 {
		t.Fatalf("get status = %d", resp.Code)
	}

	resp = doRequest(t, gateway, "PATCH", "/users/1", `{"callsign":"Falcon","role":2}`)
	if resp.Code != 200 {
		t.Fatalf("patch status = %d, body %s", resp.Code, resp.Body.String())
	}
	var patched userResponse
	_ = json.Unmarshal(resp.Body.Bytes(), &patched)
	if patched.Callsign != "Falcon" || patched.Role != 2 {
		t.Fatalf("unexpected patched user: %+v", patched)
	}

	resp = doRequest(t, gateway, "GET", "/users/999", "")
	if resp.Code != 404 {
		t.Fatalf("missing get status = %d, want 404", resp.Code)
	}

	resp = doRequest(t, gateway, "DELETE", "/users/1", "")
	if resp.Code != 204 {
		t.Fatalf("delete status = %d, want 204", resp.Code)
	}
	resp = doRequest(t, gateway, "DELETE", "/users/1", "")
	if resp.Code != 404 {
		t.Fatalf("second delete status = %d, want 404", resp.Code)
	}
}

func TestSignIn(t *testing.T) {
	gateway := newTestGateway(t)

	resp := doRequest(t, gateway, "POST", "/users", `{"nick":"bob","callsign":"Raven","role":2}`)
	if resp.Code != 201 {
		t.Fatalf("create status = %d", resp.Code)
	}

	resp = doRequest(t, gateway, "POST", "/auth/signIn", `{"nick":"bob"}`)
	if resp.Code != 200 {
		t.Fatalf("signIn status = %d, body %s", resp.Code, resp.Body.String())
	}
	var user userResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &user); err != nil {
		t.Fatalf("decode signIn response: %v", err)
	}
	if user.Callsign != "Raven" {
		t.Fatalf("unexpected signIn user: %+v", user)
	}

	resp = doRequest(t, gateway, "POST", "/auth/signIn", `{"nick":"nobody"}`)
	if resp.Code != 401 {
		t.Fatalf("unknown signIn status = %d, want 401", resp.Code)
	}
}
