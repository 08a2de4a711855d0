// Package proxy maintains the local proxy list the browser may route through.
package proxy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"

	"github.com/hlrcheck/hlr-batch/internal/telemetry"
)

const (
	DefaultSourceURL = "https://proxylist.geonode.com/api/proxy-list"
	DefaultLimit     = 500

	// defaultResponseTime is written for every entry; the source's own
	// latency figures are not trusted.
	defaultResponseTime = 1000

	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/117.0.0.0 Safari/537.36"
)

// ErrNoProxies is returned when a list has no usable entry.
var ErrNoProxies = errors.New("no usable proxies")

// Entry is one proxies.json element.
type Entry struct {
	Host         string `json:"host"`
	Port         int    `json:"port"`
	Protocol     string `json:"protocol"`
	Country      string `json:"country"`
	ResponseTime int    `json:"response_time"`
}

// Server renders the entry as a proxy URL, e.g. "http://1.2.3.4:8080".
func (e Entry) Server() string {
	return fmt.Sprintf("%s://%s", strings.ToLower(e.Protocol), net.JoinHostPort(e.Host, strconv.Itoa(e.Port)))
}

// Client fetches proxy lists from a geonode-compatible endpoint.
type Client struct {
	http      *resty.Client
	sourceURL string
	limit     int
}

func NewClient(sourceURL string) *Client {
	if sourceURL == "" {
		sourceURL = DefaultSourceURL
	}
	client := resty.New()
	client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)
	client.SetHeader("user-agent", userAgent)
	client.SetTimeout(30 * time.Second)
	telemetry.InstrumentResty(client, "hlr-batch/proxy/http")

	return &Client{http: client, sourceURL: sourceURL, limit: DefaultLimit}
}

type geonodeResponse struct {
	Data []geonodeProxy `json:"data"`
}

type geonodeProxy struct {
	IP          string          `json:"ip"`
	Port        json.RawMessage `json:"port"`
	Protocols   []string        `json:"protocols"`
	CountryCode string          `json:"country_code"`
}

// SourceURL is the endpoint the client reads from.
func (c *Client) SourceURL() string {
	return c.sourceURL
}

// Fetch downloads the newest proxies, most recently checked first.
func (c *Client) Fetch(ctx context.Context) ([]Entry, error) {
	var body geonodeResponse
	res, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"limit":     strconv.Itoa(c.limit),
			"page":      "1",
			"sort_by":   "lastChecked",
			"sort_type": "desc",
		}).
		SetResult(&body).
		Get(c.sourceURL)
	if err != nil {
		return nil, fmt.Errorf("fetch proxy list: %w", err)
	}
	if res.IsError() {
		return nil, fmt.Errorf("fetch proxy list: status %d", res.StatusCode())
	}

	entries := make([]Entry, 0, len(body.Data))
	for _, p := range body.Data {
		// The source sends ports as strings, sometimes as numbers.
		port, err := strconv.Atoi(strings.Trim(string(p.Port), `"`))
		if err != nil || p.IP == "" {
			continue
		}
		protocol := "http"
		if len(p.Protocols) > 0 && p.Protocols[0] != "" {
			protocol = strings.ToLower(p.Protocols[0])
		}
		country := p.CountryCode
		if country == "" {
			country = "UN"
		}
		entries = append(entries, Entry{
			Host:         p.IP,
			Port:         port,
			Protocol:     protocol,
			Country:      country,
			ResponseTime: defaultResponseTime,
		})
	}
	return entries, nil
}

// Save writes entries to path as indented JSON, replacing the file atomically.
func Save(path string, entries []Entry) error {
	if entries == nil {
		entries = []Entry{}
	}
	b, err := json.MarshalIndent(entries, "", "    ")
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create proxy dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".proxies-*.json")
	if err != nil {
		return fmt.Errorf("create temp proxy file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(append(b, '\n')); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write proxy file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close proxy file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace proxy file: %w", err)
	}
	return nil
}

// Load reads a proxies.json file.
func Load(path string) ([]Entry, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var entries []Entry
	if err := json.Unmarshal(b, &entries); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return entries, nil
}

// Chromium can tunnel through these; socks4 is not supported.
var browserProtocols = map[string]bool{"http": true, "https": true, "socks5": true}

// Pick chooses a random entry the browser can use. A nil rng uses the
// runtime generator.
func Pick(entries []Entry, rng *rand.Rand) (Entry, error) {
	usable := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if e.Host != "" && e.Port > 0 && browserProtocols[strings.ToLower(e.Protocol)] {
			usable = append(usable, e)
		}
	}
	if len(usable) == 0 {
		return Entry{}, ErrNoProxies
	}
	if rng == nil {
		return usable[rand.IntN(len(usable))], nil
	}
	return usable[rng.IntN(len(usable))], nil
}
