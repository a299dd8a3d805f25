package serverapp

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/aabaaiaaa/SourceNet-sub005/internal/game"
	"github.com/aabaaiaaa/SourceNet-sub005/internal/httpmw"
	"github.com/aabaaiaaa/SourceNet-sub005/internal/server"
)

type Options struct {
	Engine *game.Engine
	Logger *log.Logger
}

// NewHandler assembles the full HTTP surface: the intent API, the websocket
// gateway, the admin route listing, and the middleware chain.
func NewHandler(opts Options) (http.Handler, error) {
	if opts.Engine == nil {
		return nil, errors.New("engine is required")
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}

	mux := http.NewServeMux()
	rr := &server.RouteRegistry{}
	app := &server.App{Engine: opts.Engine}

	server.RegisterAPIRoutes(mux, rr, app)
	server.RegisterAdminUI(mux, rr)

	gateway := server.NewGateway(app, opts.Logger)
	mux.HandleFunc("GET /ws", gateway.Handler)

	mux.Handle("GET /api/config", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(opts.Engine.Config()); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}))

	handler := httpmw.Chain(mux,
		httpmw.WithRequestID,
		httpmw.WithRecover(opts.Logger),
		httpmw.WithAccessLog(opts.Logger),
	)
	return handler, nil
}
