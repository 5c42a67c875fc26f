package apprise

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fusionn-seer/internal/config"
)

func newAppriseServer(t *testing.T, handler http.HandlerFunc) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		handler(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv.URL
}

func TestSendPostsForm(t *testing.T) {
	var form map[string]string
	url := newAppriseServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/notify/apprise", r.URL.Path)
		assert.NoError(t, r.ParseForm())
		form = map[string]string{
			"title":  r.PostForm.Get("title"),
			"body":   r.PostForm.Get("body"),
			"type":   r.PostForm.Get("type"),
			"tag":    r.PostForm.Get("tag"),
			"format": r.PostForm.Get("format"),
		}
		_, _ = w.Write([]byte(`{}`))
	})

	c := NewClient(config.AppriseConfig{Enabled: true, BaseURL: url + "/"})
	require.NoError(t, c.Send(context.Background(), Message{Title: "Title", Body: "Body", Type: NotifySuccess}))

	assert.Equal(t, map[string]string{
		"title":  "Title",
		"body":   "Body",
		"type":   "success",
		"tag":    "all",
		"format": "markdown",
	}, form)
}

func TestSendDefaults(t *testing.T) {
	var typ, format, title string
	url := newAppriseServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/notify/family", r.URL.Path)
		assert.NoError(t, r.ParseForm())
		typ, format, title = r.PostForm.Get("type"), r.PostForm.Get("format"), r.PostForm.Get("title")
		_, _ = w.Write([]byte(`{}`))
	})

	c := NewClient(config.AppriseConfig{Enabled: true, BaseURL: url, Key: "family", Tag: "tv"})
	require.NoError(t, c.Send(context.Background(), Message{Body: "Body", Format: FormatText}))

	assert.Equal(t, "info", typ)
	assert.Equal(t, "text", format)
	assert.Empty(t, title)
	assert.Equal(t, "tv", c.Tag())
}

func TestSendErrors(t *testing.T) {
	tests := []struct {
		name    string
		code    int
		payload string
		wantErr string
	}{
		{name: "error payload on 200", code: http.StatusOK, payload: `{"error":"no services"}`, wantErr: "no services"},
		{name: "error payload on 424", code: http.StatusFailedDependency, payload: `{"error":"delivery failed"}`, wantErr: "status 424: delivery failed"},
		{name: "bare status", code: http.StatusBadRequest, payload: `{}`, wantErr: "status 400"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			url := newAppriseServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.code)
				_, _ = w.Write([]byte(tt.payload))
			})

			c := NewClient(config.AppriseConfig{Enabled: true, BaseURL: url})
			err := c.Send(context.Background(), Message{Body: "Body"})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestSendRejectsEmptyBody(t *testing.T) {
	url := newAppriseServer(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})

	c := NewClient(config.AppriseConfig{Enabled: true, BaseURL: url})
	assert.Error(t, c.Send(context.Background(), Message{Body: "  "}))
}

func TestSendDisabledIsNoop(t *testing.T) {
	c := NewClient(config.AppriseConfig{Enabled: false, BaseURL: "http://127.0.0.1:1"})
	assert.NoError(t, c.Send(context.Background(), Message{Body: "b"}))

	var nilClient *Client
	assert.False(t, nilClient.IsEnabled())
	assert.NoError(t, nilClient.Send(context.Background(), Message{Body: "b"}))
}

func TestFormatTransitions(t *testing.T) {
	f := &SlackFormatter{}
	body := f.FormatTransitions([]TransitionDetail{
		{ShowTitle: "Severance", From: "fully_requested", To: "fully_available", Kind: KindAvailable},
		{ShowTitle: "Andor", To: "partially_available", Summary: "1 of 2 seasons available", Kind: KindProgress},
		{ShowTitle: "Lost", From: "fully_available", To: "partially_available", Summary: "5 of 6 seasons available", Kind: KindRegressed},
	}, false)

	assert.Equal(t, "*✅ NOW AVAILABLE (1):*\n"+
		"• Severance: fully requested → fully available\n\n"+
		"*📈 PROGRESS (1):*\n"+
		"• Andor: new → partially available (1 of 2 seasons available)\n\n"+
		"*⚠️ REGRESSED (1):*\n"+
		"• Lost: fully available → partially available (5 of 6 seasons available)", body)
}

func TestFormatTransitionsDryRun(t *testing.T) {
	body := (&SlackFormatter{}).FormatTransitions(nil, true)
	assert.Equal(t, "⚠️ *DRY RUN MODE*", body)
}
