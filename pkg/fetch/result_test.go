package fetch

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func header(kv ...string) http.Header {
	h := make(http.Header)
	for i := 0; i+1 < len(kv); i += 2 {
		h.Set(kv[i], kv[i+1])
	}
	return h
}

func TestClassifyInfo(t *testing.T) {
	tests := []struct {
		name          string
		status        int
		contentLength string
		wantLength    *uint64
		wantError     *string
	}{
		{name: "ok with length", status: 200, contentLength: "42", wantLength: ptr(uint64(42))},
		{name: "unparsable length is absent", status: 200, contentLength: "invalid"},
		{name: "negative length is absent", status: 200, contentLength: "-1"},
		{name: "missing length is absent", status: 200},
		{name: "not found", status: 404, contentLength: "0", wantLength: ptr(uint64(0)), wantError: ptr("404 Not Found")},
		{name: "server error", status: 503, wantError: ptr("503 Service Unavailable")},
		{name: "redirect status is not success", status: 304, wantError: ptr("304 Not Modified")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := header("Content-Type", "text/html")
			if tt.contentLength != "" {
				h.Set("Content-Length", tt.contentLength)
			}
			o := NewOutcome("http://origin/page", tt.status, h, []byte("never read"))

			r := ClassifyInfo(o, time.Now())

			assert.Equal(t, "http://origin/page", r.URL)
			assert.Equal(t, tt.wantLength, r.ContentLength)
			assert.Equal(t, tt.wantError, r.Error)
			assert.Equal(t, tt.wantError != nil, r.Failed())
			require.NotNil(t, r.HTTPCode)
			assert.Equal(t, tt.status, *r.HTTPCode)
			assert.Nil(t, r.Contents)
		})
	}
}

func TestClassifyDataUsesDecodedLength(t *testing.T) {
	o := NewOutcome("http://origin/", 200, header("Content-Type", "text/plain", "Content-Length", "999"), []byte("héllo"))

	r := ClassifyData(o, time.Now())

	require.NotNil(t, r.Contents)
	assert.Equal(t, "héllo", *r.Contents)
	require.NotNil(t, r.ContentLength)
	assert.Equal(t, uint64(6), *r.ContentLength)
	assert.Nil(t, r.Error)
}

// An empty payload is reported exactly like a missing one.
func TestClassifyDataCollapsesEmptyBody(t *testing.T) {
	o := NewOutcome("http://origin/", 200, header("Content-Type", "text/plain"), nil)

	r := ClassifyData(o, time.Now())

	assert.Nil(t, r.Contents)
	assert.Nil(t, r.ContentLength)
	require.NotNil(t, r.ContentType)
	assert.Nil(t, r.Error)
}

func TestClassifyDataBodyErrorIsAbsent(t *testing.T) {
	o := NewOutcome("http://origin/", 200, nil, nil)
	o.bodyErr = errors.New("broken gzip stream")

	r := ClassifyData(o, time.Now())

	assert.Nil(t, r.Contents)
	assert.Nil(t, r.ContentLength)
	assert.Nil(t, r.Error)
}

func TestClassifyDataNotFoundKeepsStatus(t *testing.T) {
	o := NewOutcome("http://origin/missing", 404, nil, nil)

	r := ClassifyData(o, time.Now())

	require.NotNil(t, r.HTTPCode)
	assert.Equal(t, 404, *r.HTTPCode)
	require.NotNil(t, r.Error)
	assert.Equal(t, "404 Not Found", *r.Error)
	assert.Nil(t, r.ContentType)
}

func TestClassifyTransportFailure(t *testing.T) {
	for name, classify := range map[string]func(*Outcome, time.Time) *Result{
		"info": ClassifyInfo,
		"data": ClassifyData,
	} {
		t.Run(name, func(t *testing.T) {
			r := classify(Failed("http://nowhere.invalid/", 0, errors.New("no such host")), time.Now())

			assert.Equal(t, "http://nowhere.invalid/", r.URL)
			assert.Nil(t, r.HTTPCode)
			require.NotNil(t, r.Error)
			assert.Equal(t, "no such host", *r.Error)
		})
	}
}

func TestClassifyTransportFailureWithStatus(t *testing.T) {
	r := ClassifyData(Failed("http://origin/loop", 302, errors.New("too many redirects")), time.Now())

	require.NotNil(t, r.HTTPCode)
	assert.Equal(t, 302, *r.HTTPCode)
	require.NotNil(t, r.Error)
}

func TestClassifyMeasuresFromAcceptance(t *testing.T) {
	accepted := time.Now().Add(-50 * time.Millisecond)

	r := ClassifyInfo(NewOutcome("http://origin/", 200, nil, nil), accepted)

	assert.GreaterOrEqual(t, r.ResponseTime, int64(50))
}

func TestResultJSONOmitsAbsentFields(t *testing.T) {
	raw, err := json.Marshal(&Result{URL: "http://origin/", ResponseTime: 3})
	require.NoError(t, err)
	assert.JSONEq(t, `{"response_time":3,"url":"http://origin/"}`, string(raw))

	raw, err = json.Marshal(ClassifyData(NewOutcome("http://origin/", 200, header("Content-Type", "text/plain"), []byte("hi")), time.Now()))
	require.NoError(t, err)
	var fields map[string]any
	require.NoError(t, json.Unmarshal(raw, &fields))
	assert.ElementsMatch(t,
		[]string{"content_length", "content_type", "http_code", "response_time", "url", "contents"},
		keys(fields))
}

func keys(m map[string]any) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func TestStatusError(t *testing.T) {
	tests := []struct {
		code int
		want string
	}{
		{http.StatusNotFound, "404 Not Found"},
		{http.StatusInternalServerError, "500 Internal Server Error"},
		{http.StatusMovedPermanently, "301 Moved Permanently"},
		{599, "599 <unknown status code>"},
		{199, "199 <unknown status code>"},
	}
	for _, tt := range tests {
		got := statusError(tt.code)
		require.NotNil(t, got, tt.code)
		assert.Equal(t, tt.want, *got)
	}

	assert.Nil(t, statusError(http.StatusOK))
	assert.Nil(t, statusError(http.StatusNoContent))
}
