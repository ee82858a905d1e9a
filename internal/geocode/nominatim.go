package geocode

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
)

type NominatimGeocoder struct {
	BaseURL     string
	UserAgent   string
	MinInterval time.Duration
	Client      *resty.Client

	mu        sync.Mutex
	lastReqAt time.Time
	cache     map[string]Address
}

type nominatimReverse struct {
	DisplayName string            `json:"display_name"`
	Address     map[string]string `json:"address"`
	Error       string            `json:"error"`
}

func (g *NominatimGeocoder) Reverse(ctx context.Context, lat, lon float64) (Address, error) {
	if !ValidCoordinates(lat, lon) {
		return Address{}, fmt.Errorf("invalid coordinates %f,%f", lat, lon)
	}
	if g.Client == nil {
		g.Client = resty.New().SetTimeout(10 * time.Second)
	}
	if g.BaseURL == "" {
		g.BaseURL = "https://nominatim.openstreetmap.org"
	}
	if g.UserAgent == "" {
		g.UserAgent = "mdms-triage"
	}
	if g.MinInterval <= 0 {
		g.MinInterval = time.Second
	}

	key := cacheKey(lat, lon)
	g.mu.Lock()
	if g.cache == nil {
		g.cache = map[string]Address{}
	}
	if cached, ok := g.cache[key]; ok {
		g.mu.Unlock()
		return cached, nil
	}
	sleepFor := time.Until(g.lastReqAt.Add(g.MinInterval))
	if sleepFor > 0 {
		g.mu.Unlock()
		select {
		case <-time.After(sleepFor):
		case <-ctx.Done():
			return Address{}, ctx.Err()
		}
		g.mu.Lock()
	}
	g.lastReqAt = time.Now()
	g.mu.Unlock()

	var body nominatimReverse
	resp, err := g.Client.R().
		SetContext(ctx).
		SetHeader("User-Agent", g.UserAgent).
		SetQueryParams(map[string]string{
			"lat":            strconv.FormatFloat(lat, 'f', -1, 64),
			"lon":            strconv.FormatFloat(lon, 'f', -1, 64),
			"format":         "json",
			"addressdetails": "1",
		}).
		SetResult(&body).
		Get(g.BaseURL + "/reverse")
	if err != nil {
		return Address{}, err
	}
	if !resp.IsSuccess() {
		return Address{}, fmt.Errorf("nominatim http error: %s", resp.Status())
	}
	addr, err := parseReverse(body)
	if err != nil {
		return Address{}, err
	}

	g.mu.Lock()
	g.cache[key] = addr
	g.mu.Unlock()
	return addr, nil
}

func parseReverse(r nominatimReverse) (Address, error) {
	if r.Error != "" || (r.DisplayName == "" && len(r.Address) == 0) {
		return Address{}, ErrNotFound
	}
	a := r.Address
	return Address{
		Area:     firstNonEmpty(a["suburb"], a["neighbourhood"], a["quarter"], a["residential"], a["village"], a["town"]),
		District: firstNonEmpty(a["city_district"], a["state_district"], a["county"], a["city"]),
		Full:     r.DisplayName,
	}, nil
}
