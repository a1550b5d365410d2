package handlers

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnrich(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		in          Inbound
		wantOrigin  string
		wantType    string
		wantCache   string
	}{
		{
			name:        "defaults",
			contentType: "text/html",
			wantOrigin:  "*",
			wantType:    "text/html",
		},
		{
			name:        "origin echoed",
			contentType: "text/html",
			in:          Inbound{Origin: "https://caller.example"},
			wantOrigin:  "https://caller.example",
			wantType:    "text/html",
		},
		{
			name:        "charset appended",
			contentType: "application/json",
			in:          Inbound{Charset: "ISO-8859-1"},
			wantOrigin:  "*",
			wantType:    "application/json; charset=ISO-8859-1",
		},
		{
			name:       "charset without content type",
			in:         Inbound{Charset: "UTF-8"},
			wantOrigin: "*",
		},
		{
			name:        "cache control copied",
			contentType: "text/plain",
			in:          Inbound{CacheControl: "no-cache"},
			wantOrigin:  "*",
			wantType:    "text/plain",
			wantCache:   "no-cache",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Enrich(newReply(http.StatusOK, tt.contentType, nil), tt.in)

			assert.Equal(t, tt.wantOrigin, r.Header.Get("Access-Control-Allow-Origin"))
			assert.Equal(t, tt.wantType, r.Header.Get("Content-Type"))
			assert.Equal(t, tt.wantCache, r.Header.Get("Cache-Control"))
			assert.Equal(t, "true", r.Header.Get("Access-Control-Allow-Credentials"))
			assert.Equal(t, allowHeaders, r.Header.Get("Access-Control-Allow-Headers"))
			assert.Equal(t, allowMethods, r.Header.Get("Access-Control-Allow-Methods"))
			assert.Equal(t, "allorigins", r.Header.Get("Via"))
		})
	}
}

func TestEnrichKeepsStatusAndBody(t *testing.T) {
	r := Enrich(newReply(http.StatusTeapot, "", []byte("body")), Inbound{})

	assert.Equal(t, http.StatusTeapot, r.Status)
	assert.Equal(t, []byte("body"), r.Body)
}
