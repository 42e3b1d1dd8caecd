package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/paulmach/orb/encoding/wkt"
	"github.com/paulmach/orb/geojson"
	"github.com/sony/gobreaker"

	"github.com/i474232898/look-pyrenees/internal/resilience"
	"github.com/i474232898/look-pyrenees/internal/scene"
)

const (
	copernicusDomain   = "dataspace.copernicus.eu"
	copernicusClientID = "cdse-public"
	odataTime          = "2006-01-02T15:04:05.000Z"
	// maxPages bounds pagination in case the catalogue keeps returning links.
	maxPages = 20
)

var copernicusTypes = map[string]string{
	ProductTypeL2A: "S2MSI2A",
	ProductTypeL1C: "S2MSI1C",
}

// CopernicusProvider implements scene.Provider for the Copernicus Data Space
// Ecosystem OData catalogue.
type CopernicusProvider struct {
	name         string
	catalogueURL string
	downloadURL  string
	tokenURL     string
	username     string
	password     string
	httpCfg      resilience.HTTPClientConfig
	downloadCfg  resilience.HTTPClientConfig
	circuit      *gobreaker.CircuitBreaker

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

func NewCopernicusProvider(client *http.Client, cfg Config) *CopernicusProvider {
	return &CopernicusProvider{
		name:         CopernicusName,
		catalogueURL: "https://catalogue." + copernicusDomain + "/odata/v1",
		downloadURL:  "https://zipper." + copernicusDomain + "/odata/v1",
		tokenURL:     "https://identity." + copernicusDomain + "/auth/realms/CDSE/protocol/openid-connect/token",
		username:     cfg.CopernicusUsername,
		password:     cfg.CopernicusPassword,
		httpCfg:      httpConfig(client, cfg.Backoff, cfg.CallTimeout),
		downloadCfg:  httpConfig(redirectKeepingAuth(client), cfg.Backoff, cfg.DownloadTimeout),
		circuit:      resilience.NewBreaker(CopernicusName),
	}
}

// redirectKeepingAuth copies client so that the bearer token survives the
// zipper's redirect to another copernicus host; net/http drops it otherwise.
func redirectKeepingAuth(client *http.Client) *http.Client {
	if client == nil {
		return nil
	}
	c := *client
	// Downloads are bounded per attempt through the request context.
	c.Timeout = 0
	c.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if len(via) >= 10 {
			return errors.New("stopped after 10 redirects")
		}
		host := req.URL.Hostname()
		if host == copernicusDomain || strings.HasSuffix(host, "."+copernicusDomain) {
			if auth := via[0].Header.Get("Authorization"); auth != "" {
				req.Header.Set("Authorization", auth)
			}
		}
		return nil
	}
	return &c
}

func (p *CopernicusProvider) Name() string {
	return p.name
}

type odataResponse struct {
	Value    []odataProduct `json:"value"`
	NextLink string         `json:"@odata.nextLink"`
}

type odataProduct struct {
	ID          string `json:"Id"`
	Name        string `json:"Name"`
	ContentDate struct {
		Start time.Time `json:"Start"`
	} `json:"ContentDate"`
	GeoFootprint json.RawMessage `json:"GeoFootprint"`
	Attributes   []struct {
		Name  string          `json:"Name"`
		Value json.RawMessage `json:"Value"`
	} `json:"Attributes"`
	Assets []struct {
		Type         string `json:"Type"`
		DownloadLink string `json:"DownloadLink"`
	} `json:"Assets"`
}

func (p *CopernicusProvider) Search(ctx context.Context, q scene.SearchQuery) ([]scene.Product, error) {
	ptype, ok := copernicusTypes[q.ProductType]
	if !ok {
		return nil, fmt.Errorf("cop_dataspace: unsupported product type %q", q.ProductType)
	}

	filter := strings.Join([]string{
		"Collection/Name eq 'SENTINEL-2'",
		fmt.Sprintf("Attributes/OData.CSC.StringAttribute/any(att:att/Name eq 'productType' and att/OData.CSC.StringAttribute/Value eq '%s')", ptype),
		fmt.Sprintf("OData.CSC.Intersects(area=geography'SRID=4326;%s')", wkt.MarshalString(q.Area)),
		"ContentDate/Start ge " + q.Start.UTC().Format(odataTime),
		"ContentDate/Start lt " + q.End.UTC().Format(odataTime),
		fmt.Sprintf("Attributes/OData.CSC.DoubleAttribute/any(att:att/Name eq 'cloudCover' and att/OData.CSC.DoubleAttribute/Value le %.2f)", q.MaxCloudCover),
	}, " and ")

	values := url.Values{}
	values.Set("$filter", filter)
	values.Add("$expand", "Attributes")
	values.Add("$expand", "Assets")
	values.Set("$orderby", "ContentDate/Start desc")
	values.Set("$top", "1000")
	next := fmt.Sprintf("%s/Products?%s", p.catalogueURL, values.Encode())

	var products []scene.Product
	for page := 0; next != "" && page < maxPages; page++ {
		u := next
		resp, err := resilience.DoRequest(ctx, p.httpCfg, p.circuit, func() (*http.Request, error) {
			return http.NewRequest(http.MethodGet, u, nil)
		})
		if err != nil {
			return nil, err
		}

		var payload odataResponse
		err = json.NewDecoder(resp.Body).Decode(&payload)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("cop_dataspace: decode search page: %w", err)
		}

		for _, item := range payload.Value {
			prod, err := item.toProduct()
			if err != nil {
				return nil, err
			}
			products = append(products, prod)
		}
		next = payload.NextLink
	}

	return products, nil
}

func (o odataProduct) toProduct() (scene.Product, error) {
	prod := scene.Product{
		ID:       o.ID,
		Name:     strings.TrimSuffix(o.Name, ".SAFE"),
		Acquired: o.ContentDate.Start.UTC(),
	}

	if len(o.GeoFootprint) > 0 {
		g, err := geojson.UnmarshalGeometry(o.GeoFootprint)
		if err != nil {
			return scene.Product{}, fmt.Errorf("cop_dataspace: footprint of %s: %w", o.Name, err)
		}
		prod.Footprint = g.Geometry()
	}

	for _, a := range o.Attributes {
		if a.Name != "cloudCover" {
			continue
		}
		if err := json.Unmarshal(a.Value, &prod.CloudCover); err != nil {
			return scene.Product{}, fmt.Errorf("cop_dataspace: cloud cover of %s: %w", o.Name, err)
		}
	}

	for _, a := range o.Assets {
		if a.Type == "QUICKLOOK" {
			prod.QuicklookURL = a.DownloadLink
		}
	}
	return prod, nil
}

// Download fetches the zipped SAFE product into dir.
func (p *CopernicusProvider) Download(ctx context.Context, prod scene.Product, dir string) (string, error) {
	token, err := p.accessToken(ctx)
	if err != nil {
		return "", err
	}

	u := fmt.Sprintf("%s/Products(%s)/$value", p.downloadURL, prod.ID)
	if prod.DownloadURL != "" {
		u = prod.DownloadURL
	}

	path := filepath.Join(dir, prod.Name+".SAFE.zip")
	err = fetch(ctx, p.downloadCfg, p.circuit, path, func() (*http.Request, error) {
		req, err := http.NewRequest(http.MethodGet, u, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+token)
		return req, nil
	})
	if err != nil {
		return "", fmt.Errorf("cop_dataspace: download %s: %w", prod.Name, err)
	}
	return path, nil
}

func (p *CopernicusProvider) Quicklook(ctx context.Context, prod scene.Product, dir string) (string, error) {
	if !prod.HasQuicklook() {
		return "", fmt.Errorf("cop_dataspace: no quicklook for %s", prod.Name)
	}

	path := filepath.Join(dir, prod.Name+".jpg")
	err := fetch(ctx, p.httpCfg, p.circuit, path, func() (*http.Request, error) {
		return http.NewRequest(http.MethodGet, prod.QuicklookURL, nil)
	})
	if err != nil {
		return "", err
	}
	return path, nil
}

// accessToken returns a cached bearer token, refreshing it shortly before expiry.
func (p *CopernicusProvider) accessToken(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.token != "" && time.Now().Before(p.tokenExpiry) {
		return p.token, nil
	}
	if p.username == "" || p.password == "" {
		return "", fmt.Errorf("cop_dataspace credentials are not configured")
	}

	form := url.Values{}
	form.Set("grant_type", "password")
	form.Set("client_id", copernicusClientID)
	form.Set("username", p.username)
	form.Set("password", p.password)

	resp, err := resilience.DoRequest(ctx, p.httpCfg, p.circuit, func() (*http.Request, error) {
		req, err := http.NewRequest(http.MethodPost, p.tokenURL, strings.NewReader(form.Encode()))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return req, nil
	})
	if err != nil {
		return "", fmt.Errorf("cop_dataspace: token: %w", err)
	}
	defer resp.Body.Close()

	var payload struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("cop_dataspace: decode token: %w", err)
	}
	if payload.AccessToken == "" {
		return "", fmt.Errorf("cop_dataspace: empty access token")
	}

	p.token = payload.AccessToken
	p.tokenExpiry = time.Now().Add(time.Duration(payload.ExpiresIn)*time.Second - 30*time.Second)
	return p.token, nil
}
