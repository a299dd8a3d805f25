package server

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRouteRegistry_ListSortedByPatternThenMethod(t *testing.T) {
	mux := http.NewServeMux()
	rr := &RouteRegistry{}
	noop := func(http.ResponseWriter, *http.Request) {}
	Handle(mux, rr, "POST /api/b", "", "", noop)
	Handle(mux, rr, "GET /api/a", "", "", noop)
	Handle(mux, rr, "GET /api/b", "", "", noop)

	assert.Equal(t, []RouteDoc{
		{Method: "GET", Pattern: "/api/a"},
		{Method: "GET", Pattern: "/api/b"},
		{Method: "POST", Pattern: "/api/b"},
	}, rr.List())
}
