package slack_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"testing"

	"recipeassistant/slack"

	should "github.com/stretchr/testify/assert"
	must "github.com/stretchr/testify/require"
)

type mockDoer struct {
	resp   *http.Response
	err    error
	doFunc func(req *http.Request) (*http.Response, error)
}

func (m *mockDoer) Do(req *http.Request) (*http.Response, error) {
	if m.doFunc != nil {
		return m.doFunc(req)
	}
	return m.resp, m.err
}

func ok() (*http.Response, error) {
	return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(bytes.NewBufferString("ok"))}, nil
}

func TestNewClient(t *testing.T) {
	client := slack.NewClient("http://slack.com/webhook", nil)
	must.NotNil(t, client, "expected non-nil client")
	should.True(t, client.Enabled())

	should.False(t, slack.NewClient("", nil).Enabled())

	var nilClient *slack.Client
	should.False(t, nilClient.Enabled())
}

func TestPostMessage(t *testing.T) {
	tests := []struct {
		name    string
		doFunc  func(req *http.Request) (*http.Response, error)
		wantErr error
	}{
		{
			name:    "success",
			doFunc:  func(req *http.Request) (*http.Response, error) { return ok() },
			wantErr: nil,
		},
		{
			name: "failure status",
			doFunc: func(req *http.Request) (*http.Response, error) {
				return &http.Response{StatusCode: http.StatusBadRequest, Status: "400 Bad Request", Body: io.NopCloser(bytes.NewBufferString("bad request"))}, nil
			},
			wantErr: fmt.Errorf("failed to post message: 400 Bad Request"),
		},
		{
			name: "do error",
			doFunc: func(req *http.Request) (*http.Response, error) {
				return nil, errors.New("network error")
			},
			wantErr: fmt.Errorf("network error"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := slack.NewClient("http://example.com/webhook", &mockDoer{doFunc: tt.doFunc})
			err := client.PostMessage(context.Background(), "#general", "Hello, world!")
			should.Equal(t, tt.wantErr, err)
		})
	}
}

func TestPostExchange(t *testing.T) {
	var payload map[string]any
	client := slack.NewClient("http://example.com/webhook", &mockDoer{doFunc: func(req *http.Request) (*http.Response, error) {
		should.Equal(t, "application/json", req.Header.Get("Content-Type"))
		should.NoError(t, json.NewDecoder(req.Body).Decode(&payload))
		return ok()
	}})

	err := client.PostExchange(context.Background(), "", "Suggest a recipe", "Try the curry.")
	must.NoError(t, err)

	should.Equal(t, map[string]any{"text": "*User:* Suggest a recipe\n*Assistant:* Try the curry."}, payload)
}
