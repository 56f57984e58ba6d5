package handlers_test

import (
	"bytes"
	"strings"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/geocoder89/rehearsalhub/internal/http/handlers"
	"github.com/gin-gonic/gin"
)

type bindErrorResponse struct {
	Code    string                `json:"code"`
	Message string                `json:"message"`
	Errors  []handlers.FieldError `json:"errors"`
}

func bindRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.POST("/register", func(ctx *gin.Context) {
		var req handlers.RegisterRequest
		if !handlers.BindJSON(ctx, &req) {
			return
		}
		ctx.Status(http.StatusCreated)
	})

	return r
}

func postBind(t *testing.T, body string) (*httptest.ResponseRecorder, bindErrorResponse) {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/register", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	bindRouter().ServeHTTP(w, req)

	var resp bindErrorResponse
	if w.Code != http.StatusCreated {
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to unmarshal error response: %v body=%s", err, w.Body.String())
		}
	}

	return w, resp
}

func TestBindJSON_ValidationErrorsUseJSONFieldNames(t *testing.T) {
	w, resp := postBind(t, `{"email":"nope","password":"short","firstName":"  "}`)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("got status %d, want %d, body=%s", w.Code, http.StatusBadRequest, w.Body.String())
	}

	if resp.Code != "validation_failed" {
		t.Fatalf("unexpected code: %s", resp.Code)
	}

	wantRules := map[string]string{
		"email":     "email",
		"password":  "password",
		"firstName": "notblank",
		"lastName":  "required",
	}

	found := map[string]handlers.FieldError{}
	for _, fieldErr := range resp.Errors {
		found[fieldErr.Field] = fieldErr
	}

	for field, rule := range wantRules {
		fieldErr, ok := found[field]
		if !ok {
			t.Fatalf("missing field error for %q: %+v", field, resp.Errors)
		}
		if fieldErr.Rule != rule {
			t.Fatalf("field %q rule mismatch: got %q want %q", field, fieldErr.Rule, rule)
		}
		if fieldErr.Message == "" {
			t.Fatalf("field %q should include a non-empty message", field)
		}
	}
}

func TestBindJSON_AcceptsValidPayload(t *testing.T) {
	w, _ := postBind(t, `{"email":"ada@example.com","password":"Passw0rdX","firstName":"Ada","lastName":"Lovelace"}`)

	if w.Code != http.StatusCreated {
		t.Fatalf("got status %d, want %d, body=%s", w.Code, http.StatusCreated, w.Body.String())
	}
}

func TestBindJSON_SyntaxError(t *testing.T) {
	w, resp := postBind(t, `{"email": nope}`)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("got status %d, want %d", w.Code, http.StatusBadRequest)
	}
	if len(resp.Errors) != 1 || resp.Errors[0].Rule != "json" {
		t.Fatalf("expected a single json error, got %+v", resp.Errors)
	}
}

func TestBindJSON_TypeMismatchUsesJSONFieldName(t *testing.T) {
	w, resp := postBind(t, `{"email":"ada@example.com","password":"Passw0rdX","firstName":"Ada","lastName":"Lovelace","phone":42}`)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("got status %d, want %d", w.Code, http.StatusBadRequest)
	}
	if len(resp.Errors) != 1 {
		t.Fatalf("expected one field error, got %+v", resp.Errors)
	}
	if resp.Errors[0].Field != "phone" || resp.Errors[0].Rule != "type" {
		t.Fatalf("unexpected type mismatch error: %+v", resp.Errors[0])
	}
}

func TestBindJSON_RejectsPasswordBeyondBcryptLimit(t *testing.T) {
	password := "Passw0rd" + strings.Repeat("x", 70)
	w, resp := postBind(t, `{"email":"ada@example.com","password":"`+password+`","firstName":"Ada","lastName":"Lovelace"}`)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("got status %d, want %d, body=%s", w.Code, http.StatusBadRequest, w.Body.String())
	}
	if len(resp.Errors) != 1 || resp.Errors[0].Field != "password" || resp.Errors[0].Rule != "password" {
		t.Fatalf("unexpected errors: %+v", resp.Errors)
	}
}
