// Package apis wraps the third-party HTTP services the bot talks to:
// OpenWeatherMap, the official joke API, and TheCatAPI.
package apis

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

const (
	defaultWeatherBaseURL = "https://api.openweathermap.org/data/2.5"
	weatherIconURLFormat  = "https://openweathermap.org/img/wn/%s@2x.png"
)

// Weather describes current conditions for a city.
type Weather struct {
	City        string
	Description string
	TempC       float64
	FeelsLikeC  float64
	Humidity    int
	WindSpeed   float64
	IconURL     string
}

// Forecast describes predicted conditions for tomorrow.
type Forecast struct {
	City        string
	Description string
	TempC       float64
	IconURL     string
}

// WeatherClient queries OpenWeatherMap with a fixed API key.
type WeatherClient struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

func NewWeatherClient(apiKey string) *WeatherClient {
	return &WeatherClient{
		apiKey:  apiKey,
		baseURL: defaultWeatherBaseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

type weatherResponse struct {
	Name    string `json:"name"`
	Weather []struct {
		Description string `json:"description"`
		Icon        string `json:"icon"`
	} `json:"weather"`
	Main struct {
		Temp      float64 `json:"temp"`
		FeelsLike float64 `json:"feels_like"`
		Humidity  int     `json:"humidity"`
	} `json:"main"`
	Wind struct {
		Speed float64 `json:"speed"`
	} `json:"wind"`
}

type forecastResponse struct {
	City struct {
		Name string `json:"name"`
	} `json:"city"`
	List []struct {
		Dt      int64 `json:"dt"`
		Weather []struct {
			Description string `json:"description"`
			Icon        string `json:"icon"`
		} `json:"weather"`
		Main struct {
			Temp float64 `json:"temp"`
		} `json:"main"`
	} `json:"list"`
}

// Current fetches current conditions for the given city, metric units.
func (c *WeatherClient) Current(ctx context.Context, city string) (*Weather, error) {
	query := url.Values{}
	query.Set("q", city)
	query.Set("appid", c.apiKey)
	query.Set("units", "metric")

	var resp weatherResponse
	if err := c.getJSON(ctx, c.baseURL+"/weather?"+query.Encode(), &resp); err != nil {
		return nil, err
	}
	if len(resp.Weather) == 0 {
		return nil, fmt.Errorf("no weather data for %q", city)
	}
	return &Weather{
		City:        resp.Name,
		Description: resp.Weather[0].Description,
		TempC:       resp.Main.Temp,
		FeelsLikeC:  resp.Main.FeelsLike,
		Humidity:    resp.Main.Humidity,
		WindSpeed:   resp.Wind.Speed,
		IconURL:     fmt.Sprintf(weatherIconURLFormat, resp.Weather[0].Icon),
	}, nil
}

// Tomorrow fetches the forecast entry closest to noon tomorrow.
func (c *WeatherClient) Tomorrow(ctx context.Context, city string, now time.Time) (*Forecast, error) {
	query := url.Values{}
	query.Set("q", city)
	query.Set("appid", c.apiKey)
	query.Set("units", "metric")

	var resp forecastResponse
	if err := c.getJSON(ctx, c.baseURL+"/forecast?"+query.Encode(), &resp); err != nil {
		return nil, err
	}

	year, month, day := now.AddDate(0, 0, 1).Date()
	target := time.Date(year, month, day, 12, 0, 0, 0, time.UTC)

	var best *Forecast
	var bestDiff time.Duration
	for _, entry := range resp.List {
		if len(entry.Weather) == 0 {
			continue
		}
		diff := time.Unix(entry.Dt, 0).UTC().Sub(target)
		if diff < 0 {
			diff = -diff
		}
		if best == nil || diff < bestDiff {
			best = &Forecast{
				City:        resp.City.Name,
				Description: entry.Weather[0].Description,
				TempC:       entry.Main.Temp,
				IconURL:     fmt.Sprintf(weatherIconURLFormat, entry.Weather[0].Icon),
			}
			bestDiff = diff
		}
	}
	if best == nil {
		return nil, fmt.Errorf("no forecast data for %q", city)
	}
	return best, nil
}

func (c *WeatherClient) getJSON(ctx context.Context, rawURL string, out interface{}) error {
	return getJSON(ctx, c.client, rawURL, out)
}
