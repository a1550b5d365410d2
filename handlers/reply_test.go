package handlers

import (
	"net/http"
	"testing"
	"time"

	"github.com/andesco/allorigins/pkg/fetch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvelopeReplyDoesNotEscapeHTML(t *testing.T) {
	o := fetch.NewOutcome("http://origin/?a=1&b=2", http.StatusOK,
		http.Header{"Content-Type": {"text/html"}}, []byte("<p>hi</p>"))
	res := fetch.ClassifyData(o, time.Now())

	r, err := envelopeReply(res)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, r.Status)
	assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
	assert.Contains(t, string(r.Body), `"contents":"<p>hi</p>"`)
	assert.Contains(t, string(r.Body), `"url":"http://origin/?a=1&b=2"`)
	assert.NotContains(t, string(r.Body), "\n")
}

func TestRawReplyPassesBodyThrough(t *testing.T) {
	o := fetch.NewOutcome("http://origin/", http.StatusOK,
		http.Header{"Content-Type": {"text/css"}}, []byte("a{}"))
	r, err := rawReply(fetch.ClassifyData(o, time.Now()))
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, r.Status)
	assert.Equal(t, "a{}", string(r.Body))
	assert.Equal(t, "3", r.Header.Get("Content-Length"))
	assert.Equal(t, "text/css", r.Header.Get("Content-Type"))
}

func TestRawReplyEmptyBody(t *testing.T) {
	o := fetch.NewOutcome("http://origin/", http.StatusNoContent, nil, nil)
	r, err := rawReply(fetch.ClassifyData(o, time.Now()))
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, r.Status)
	assert.Empty(t, r.Body)
	assert.Empty(t, r.Header.Get("Content-Length"))
	assert.Empty(t, r.Header.Get("Content-Type"))
}

func TestRawReplyFailureFallsBackToEnvelope(t *testing.T) {
	o := fetch.NewOutcome("http://origin/", http.StatusInternalServerError, nil, []byte("boom"))
	r, err := rawReply(fetch.ClassifyData(o, time.Now()))
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, r.Status)
	assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
	assert.Contains(t, string(r.Body), `"error":"500 Internal Server Error"`)
}

func TestMissingURLReply(t *testing.T) {
	r := missingURLReply()

	assert.Equal(t, http.StatusBadRequest, r.Status)
	assert.Equal(t, "text/plain", r.Header.Get("Content-Type"))
	assert.Equal(t, missingURLMessage, string(r.Body))
}
