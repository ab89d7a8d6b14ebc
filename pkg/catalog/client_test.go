package catalog

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jerkyranks/jerkyranks-backend/pkg/config"
	"github.com/jerkyranks/jerkyranks-backend/pkg/logger"
)

func testConfig(serverURL string) config.CatalogConfig {
	return config.CatalogConfig{
		ShopDomain:  serverURL,
		AccessToken: "test-token",
		APIVersion:  "2024-07",
		PageSize:    2,
		RankableTag: "rankable",
	}
}

func TestFetchRankableFollowsLinkHeader(t *testing.T) {
	var requests []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests = append(requests, r.URL.RawQuery)
		if got := r.Header.Get("X-Access-Token"); got != "test-token" {
			t.Errorf("missing access token header, got %q", got)
		}

		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("page_info") == "" {
			w.Header().Set("Link", fmt.Sprintf(`<%s/admin/api/2024-07/products.json?limit=2&page_info=cursor2>; rel="next"`, serverBase(r)))
			fmt.Fprint(w, `{"products":[
				{"id":101,"title":"Peppered Beef","tags":"rankable, spicy","status":"active"},
				{"id":102,"title":"Gift Card","tags":"merch","status":"active"}
			]}`)
			return
		}
		fmt.Fprint(w, `{"products":[
			{"id":103,"title":"Teriyaki Turkey","tags":"rankable","status":"active"},
			{"id":104,"title":"Retired Elk","tags":"rankable","status":"archived"}
		]}`)
	}))
	defer srv.Close()

	client, err := NewClient(testConfig(srv.URL), logger.New(logger.Options{ServiceName: "catalog-test"}))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	products, err := client.FetchRankable(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}

	if len(requests) != 2 {
		t.Fatalf("expected 2 page requests, got %d: %v", len(requests), requests)
	}
	if len(products) != 2 {
		t.Fatalf("expected 2 rankable products, got %d", len(products))
	}
	if products[0].ID != "101" || products[1].ID != "103" {
		t.Fatalf("unexpected products: %+v", products)
	}
	if !products[0].HasTag("spicy") {
		t.Fatal("expected tags to be split from the comma string")
	}
}

func TestFetchRankableDependencyError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer srv.Close()

	client, err := NewClient(testConfig(srv.URL), logger.New(logger.Options{ServiceName: "catalog-test"}))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	if _, err := client.FetchRankable(context.Background()); err == nil {
		t.Fatal("expected error from 502 response")
	}
}

func TestNextPageInfo(t *testing.T) {
	header := `<https://shop.example.com/admin/api/2024-07/products.json?page_info=prev>; rel="previous", ` +
		`<https://shop.example.com/admin/api/2024-07/products.json?limit=250&page_info=abc123>; rel="next"`
	if got := nextPageInfo(header); got != "abc123" {
		t.Fatalf("expected abc123, got %q", got)
	}
	if got := nextPageInfo(`<https://shop.example.com/x?page_info=zzz>; rel="previous"`); got != "" {
		t.Fatalf("expected empty cursor on last page, got %q", got)
	}
}

func serverBase(r *http.Request) string {
	return "http://" + r.Host
}
