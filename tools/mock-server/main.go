// Package main implements a mock PChome API server for local development.
// It serves a canned tracking list and prices from a JSON fixture so the
// follower can be exercised without a real ECWEBSESS session. The --drop
// flag lowers every served price by a percentage so repeated runs trigger
// new-low alerts.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"
)

// fixtureProduct is one tracked product with its button-API price fields.
type fixtureProduct struct {
	ID        string   `json:"Id"`
	Name      string   `json:"Name"`
	BrandList []string `json:"BrandList"`
	Price     struct {
		Low *float64 `json:"Low"`
		P   float64  `json:"P"`
		M   float64  `json:"M"`
	} `json:"Price"`
}

type traceListPage struct {
	Rows       []traceListRow `json:"Rows"`
	TotalPages int            `json:"TotalPages"`
}

type traceListRow struct {
	ID        string   `json:"Id"`
	Name      string   `json:"Name"`
	BrandList []string `json:"BrandList"`
}

type buttonItem struct {
	ID    string `json:"Id"`
	Price struct {
		Low *float64 `json:"Low"`
		P   float64  `json:"P"`
		M   float64  `json:"M"`
	} `json:"Price"`
}

func main() {
	port := flag.Int("port", 8090, "port to listen on")
	fixtureFile := flag.String("fixture", "tools/mock-server/testdata/products.json", "path to products fixture")
	drop := flag.Float64("drop", 0, "percentage to subtract from every price (0-100)")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	products, err := loadFixture(*fixtureFile)
	if err != nil {
		logger.Error("failed to load fixture", "path", *fixtureFile, "error", err)
		os.Exit(1)
	}
	logger.Info("loaded fixture", "products", len(products))

	mux := http.NewServeMux()
	mux.HandleFunc("GET /fsapi/member/products/trace/list", traceListHandler(logger, products))
	mux.HandleFunc("GET /ecshop/prodapi/v2/prod/button", buttonHandler(logger, products, *drop))

	addr := fmt.Sprintf(":%d", *port)
	logger.Info("starting mock PChome server", "addr", addr, "drop", *drop)

	srv := &http.Server{
		Addr:         addr,
		Handler:      requestLogger(logger, mux),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	if err := srv.ListenAndServe(); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func loadFixture(path string) ([]fixtureProduct, error) {
	data, err := os.ReadFile(path) //nolint:gosec // fixture path from trusted CLI flag
	if err != nil {
		return nil, fmt.Errorf("reading fixture: %w", err)
	}
	var products []fixtureProduct
	if err := json.Unmarshal(data, &products); err != nil {
		return nil, fmt.Errorf("parsing fixture: %w", err)
	}
	return products, nil
}

func requestLogger(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger.Debug("request", "method", r.Method, "path", r.URL.Path, "query", r.URL.RawQuery)
		next.ServeHTTP(w, r)
	})
}

// requireSession rejects requests without an ECWEBSESS cookie the way the
// real API does, so session handling can be tested end to end.
func requireSession(logger *slog.Logger, w http.ResponseWriter, r *http.Request) bool {
	if c, err := r.Cookie("ECWEBSESS"); err != nil || c.Value == "" {
		logger.Warn("request missing ECWEBSESS cookie")
		w.WriteHeader(http.StatusForbidden)
		return false
	}
	return true
}

func traceListHandler(logger *slog.Logger, products []fixtureProduct) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requireSession(logger, w, r) {
			return
		}

		page := 1
		if v, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && v > 0 {
			page = v
		}
		limit := 100
		if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 {
			limit = v
		}

		totalPages := (len(products) + limit - 1) / limit
		if totalPages < 1 {
			totalPages = 1
		}

		rows := []traceListRow{}
		start := (page - 1) * limit
		if start < len(products) {
			end := min(start+limit, len(products))
			for _, p := range products[start:end] {
				rows = append(rows, traceListRow{ID: p.ID, Name: p.Name, BrandList: p.BrandList})
			}
		}

		w.Header().Set("Content-Type", "application/json")
		//nolint:errcheck,gosec // best-effort write to HTTP response in mock server
		json.NewEncoder(w).Encode(traceListPage{Rows: rows, TotalPages: totalPages})
		logger.Info("trace list", "page", page, "limit", limit, "rows", len(rows))
	}
}

func buttonHandler(logger *slog.Logger, products []fixtureProduct, drop float64) http.HandlerFunc {
	byID := make(map[string]fixtureProduct, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	factor := 1 - drop/100

	return func(w http.ResponseWriter, r *http.Request) {
		if !requireSession(logger, w, r) {
			return
		}

		items := []buttonItem{}
		for _, sku := range strings.Split(r.URL.Query().Get("id"), ",") {
			if sku == "" {
				continue
			}
			id := sku
			if idx := strings.LastIndex(sku, "-"); idx >= 0 {
				id = sku[:idx]
			}
			p, ok := byID[id]
			if !ok {
				continue
			}

			var item buttonItem
			item.ID = sku
			item.Price.P = p.Price.P * factor
			item.Price.M = p.Price.M
			if p.Price.Low != nil {
				low := *p.Price.Low * factor
				item.Price.Low = &low
			}
			items = append(items, item)
		}

		w.Header().Set("Content-Type", "application/json")
		//nolint:errcheck,gosec // best-effort write to HTTP response in mock server
		json.NewEncoder(w).Encode(items)
		logger.Info("button", "requested", r.URL.Query().Get("id"), "returned", len(items))
	}
}
