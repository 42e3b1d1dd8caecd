package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/paulmach/orb/geojson"
	"github.com/sony/gobreaker"

	"github.com/i474232898/look-pyrenees/internal/resilience"
	"github.com/i474232898/look-pyrenees/internal/scene"
)

const earthSearchCollection = "sentinel-2-l2a"

// EarthSearchProvider implements scene.Provider for the Element84 Earth Search
// STAC API. Only L2A products are published there.
type EarthSearchProvider struct {
	name        string
	baseURL     string
	httpCfg     resilience.HTTPClientConfig
	downloadCfg resilience.HTTPClientConfig
	circuit     *gobreaker.CircuitBreaker
}

func NewEarthSearchProvider(client *http.Client, cfg Config) *EarthSearchProvider {
	dl := client
	if client != nil {
		c := *client
		c.Timeout = 0
		dl = &c
	}
	return &EarthSearchProvider{
		name:        EarthSearchName,
		baseURL:     "https://earth-search.aws.element84.com/v1",
		httpCfg:     httpConfig(client, cfg.Backoff, cfg.CallTimeout),
		downloadCfg: httpConfig(dl, cfg.Backoff, cfg.DownloadTimeout),
		circuit:     resilience.NewBreaker(EarthSearchName),
	}
}

func (p *EarthSearchProvider) Name() string {
	return p.name
}

type stacSearch struct {
	Collections []string          `json:"collections"`
	Intersects  *geojson.Geometry `json:"intersects,omitempty"`
	Datetime    string            `json:"datetime"`
	Limit       int               `json:"limit"`
	Query       map[string]any    `json:"query,omitempty"`
}

type stacResponse struct {
	Features []stacItem `json:"features"`
	Links    []stacLink `json:"links"`
}

type stacLink struct {
	Rel    string          `json:"rel"`
	Href   string          `json:"href"`
	Method string          `json:"method"`
	Body   json.RawMessage `json:"body"`
}

type stacItem struct {
	ID         string            `json:"id"`
	Geometry   *geojson.Geometry `json:"geometry"`
	Properties struct {
		Datetime   time.Time `json:"datetime"`
		CloudCover float64   `json:"eo:cloud_cover"`
		ProductURI string    `json:"s2:product_uri"`
	} `json:"properties"`
	Assets map[string]struct {
		Href string `json:"href"`
	} `json:"assets"`
}

func (p *EarthSearchProvider) Search(ctx context.Context, q scene.SearchQuery) ([]scene.Product, error) {
	if q.ProductType != ProductTypeL2A {
		return nil, fmt.Errorf("earth_search: unsupported product type %q", q.ProductType)
	}

	body, err := json.Marshal(stacSearch{
		Collections: []string{earthSearchCollection},
		Intersects:  geojson.NewGeometry(q.Area),
		Datetime:    q.Start.UTC().Format(time.RFC3339) + "/" + q.End.UTC().Format(time.RFC3339),
		Limit:       100,
		Query:       map[string]any{"eo:cloud_cover": map[string]float64{"lte": q.MaxCloudCover}},
	})
	if err != nil {
		return nil, err
	}

	method, u := http.MethodPost, p.baseURL+"/search"
	var products []scene.Product
	for page := 0; u != "" && page < maxPages; page++ {
		reqMethod, reqURL, reqBody := method, u, body
		resp, err := resilience.DoRequest(ctx, p.httpCfg, p.circuit, func() (*http.Request, error) {
			if reqMethod == http.MethodGet {
				return http.NewRequest(reqMethod, reqURL, nil)
			}
			req, err := http.NewRequest(reqMethod, reqURL, bytes.NewReader(reqBody))
			if err != nil {
				return nil, err
			}
			req.Header.Set("Content-Type", "application/json")
			return req, nil
		})
		if err != nil {
			return nil, err
		}

		var payload stacResponse
		err = json.NewDecoder(resp.Body).Decode(&payload)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("earth_search: decode search page: %w", err)
		}

		for _, item := range payload.Features {
			products = append(products, item.toProduct())
		}

		u = ""
		for _, l := range payload.Links {
			if l.Rel != "next" {
				continue
			}
			u = l.Href
			method = http.MethodGet
			if strings.EqualFold(l.Method, http.MethodPost) {
				method = http.MethodPost
				if len(l.Body) > 0 {
					body = l.Body
				}
			}
		}
	}

	return products, nil
}

func (it stacItem) toProduct() scene.Product {
	name := strings.TrimSuffix(it.Properties.ProductURI, ".SAFE")
	if name == "" {
		name = it.ID
	}
	prod := scene.Product{
		ID:         it.ID,
		Name:       name,
		Acquired:   it.Properties.Datetime.UTC(),
		CloudCover: it.Properties.CloudCover,
	}
	if it.Geometry != nil {
		prod.Footprint = it.Geometry.Geometry()
	}
	if a, ok := it.Assets["visual"]; ok {
		prod.DownloadURL = a.Href
	}
	if a, ok := it.Assets["thumbnail"]; ok {
		prod.QuicklookURL = a.Href
	}
	return prod
}

// Download fetches the true-color cloud-optimized GeoTIFF of prod into dir.
func (p *EarthSearchProvider) Download(ctx context.Context, prod scene.Product, dir string) (string, error) {
	if prod.DownloadURL == "" {
		return "", fmt.Errorf("earth_search: no visual asset for %s", prod.Name)
	}

	path := filepath.Join(dir, prod.Name+"_TCI.tif")
	err := fetch(ctx, p.downloadCfg, p.circuit, path, func() (*http.Request, error) {
		return http.NewRequest(http.MethodGet, prod.DownloadURL, nil)
	})
	if err != nil {
		return "", fmt.Errorf("earth_search: download %s: %w", prod.Name, err)
	}
	return path, nil
}

func (p *EarthSearchProvider) Quicklook(ctx context.Context, prod scene.Product, dir string) (string, error) {
	if !prod.HasQuicklook() {
		return "", fmt.Errorf("earth_search: no quicklook for %s", prod.Name)
	}

	ext := filepath.Ext(strings.SplitN(prod.QuicklookURL, "?", 2)[0])
	if ext == "" {
		ext = ".jpg"
	}
	path := filepath.Join(dir, prod.Name+ext)
	err := fetch(ctx, p.httpCfg, p.circuit, path, func() (*http.Request, error) {
		return http.NewRequest(http.MethodGet, prod.QuicklookURL, nil)
	})
	if err != nil {
		return "", err
	}
	return path, nil
}
