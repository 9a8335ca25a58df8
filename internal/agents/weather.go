// ABOUTME: Weather responder backed by the Open-Meteo geocoding and forecast APIs.
// ABOUTME: Exposes coordinate lookup and current-conditions tools to the generation loop.

package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"time"

	"github.com/2389/slack-dispatch/internal/llm"
)

const (
	defaultGeocodeURL  = "https://geocoding-api.open-meteo.com/v1/search"
	defaultForecastURL = "https://api.open-meteo.com/v1/forecast"

	weatherApology = "I couldn't get the weather right now. Please try again, or check the city name."
)

// weatherCodes maps WMO weather interpretation codes to descriptions.
var weatherCodes = map[int]string{
	0:  "clear sky",
	1:  "mainly clear",
	2:  "partly cloudy",
	3:  "overcast",
	45: "fog",
	48: "depositing rime fog",
	51: "light drizzle",
	53: "moderate drizzle",
	55: "dense drizzle",
	61: "slight rain",
	63: "moderate rain",
	65: "heavy rain",
	71: "slight snow",
	73: "moderate snow",
	75: "heavy snow",
	80: "slight rain showers",
	81: "moderate rain showers",
	82: "violent rain showers",
	85: "slight snow showers",
	86: "heavy snow showers",
	95: "thunderstorm",
	96: "thunderstorm with slight hail",
	99: "thunderstorm with heavy hail",
}

type coordinatesArgs struct {
	City string `json:"city" jsonschema:"description=Name of the city to look up"`
}

type conditionsArgs struct {
	Latitude  float64 `json:"latitude" jsonschema:"description=Latitude of the location"`
	Longitude float64 `json:"longitude" jsonschema:"description=Longitude of the location"`
	City      string  `json:"city" jsonschema:"description=Display name of the location"`
}

// WeatherResponder answers weather questions by geocoding the city and
// fetching current conditions, both through tools the model drives.
type WeatherResponder struct {
	llm         llm.Client
	httpc       *http.Client
	model       string
	timeout     time.Duration
	geocodeURL  string
	forecastURL string
	logger      *slog.Logger
}

// NewWeatherResponder builds the weather responder against the public
// Open-Meteo endpoints.
func NewWeatherResponder(client llm.Client, model string, timeout time.Duration, logger *slog.Logger) *WeatherResponder {
	return &WeatherResponder{
		llm:         client,
		httpc:       &http.Client{Timeout: 10 * time.Second},
		model:       model,
		timeout:     timeout,
		geocodeURL:  defaultGeocodeURL,
		forecastURL: defaultForecastURL,
		logger:      logger.With("component", "weather"),
	}
}

func (r *WeatherResponder) Descriptor() Descriptor {
	return Descriptor{
		ID:         WeatherID,
		Capability: "Current weather and conditions for a named location",
		Tools:      []string{"get_coordinates", "get_current_weather"},
	}
}

var weatherPattern = regexp.MustCompile(`(?i)weather|temperature|forecast|rain|snow|sunny|humid`)

func (r *WeatherResponder) CanHandle(query string) bool {
	return weatherPattern.MatchString(query)
}

func (r *WeatherResponder) Respond(ctx context.Context, history History, rctx *Context) Outcome {
	rctx.SetStatus("Checking the weather...")

	genCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	text, err := r.llm.Generate(genCtx, llm.GenerateRequest{
		Model: r.model,
		System: "You answer weather questions. Use get_coordinates to resolve the city, " +
			"then get_current_weather with those coordinates. Report temperature in both " +
			"Celsius and Fahrenheit with a short description of conditions.",
		Messages: toLLMMessages(history),
		Tools:    r.tools(),
	})
	if err != nil {
		r.logger.Error("weather generation failed", "error", err)
		return Outcome{OK: false, Text: weatherApology}
	}

	return Outcome{OK: true, Text: FormatForSlack(text)}
}

func (r *WeatherResponder) tools() []llm.Tool {
	return []llm.Tool{
		{
			Name:        "get_coordinates",
			Description: "Resolve a city name to latitude and longitude",
			Parameters:  llm.GenerateSchema[coordinatesArgs](),
			Execute:     r.getCoordinates,
		},
		{
			Name:        "get_current_weather",
			Description: "Fetch current weather conditions for coordinates",
			Parameters:  llm.GenerateSchema[conditionsArgs](),
			Execute:     r.getCurrentWeather,
		},
	}
}

func (r *WeatherResponder) getCoordinates(ctx context.Context, args json.RawMessage) (any, error) {
	var in coordinatesArgs
	if err := json.Unmarshal(args, &in); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}

	q := url.Values{}
	q.Set("name", in.City)
	q.Set("count", "1")
	q.Set("language", "en")
	q.Set("format", "json")

	var body struct {
		Results []struct {
			Latitude  float64 `json:"latitude"`
			Longitude float64 `json:"longitude"`
			Name      string  `json:"name"`
			Country   string  `json:"country"`
		} `json:"results"`
	}
	if err := r.getJSON(ctx, r.geocodeURL+"?"+q.Encode(), &body); err != nil {
		return nil, err
	}
	if len(body.Results) == 0 {
		return nil, fmt.Errorf("no location found for %q", in.City)
	}

	res := body.Results[0]
	return map[string]any{
		"latitude":  res.Latitude,
		"longitude": res.Longitude,
		"name":      res.Name,
		"country":   res.Country,
	}, nil
}

func (r *WeatherResponder) getCurrentWeather(ctx context.Context, args json.RawMessage) (any, error) {
	var in conditionsArgs
	if err := json.Unmarshal(args, &in); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}

	q := url.Values{}
	q.Set("latitude", fmt.Sprintf("%.4f", in.Latitude))
	q.Set("longitude", fmt.Sprintf("%.4f", in.Longitude))
	q.Set("current", "temperature_2m,weathercode,relativehumidity_2m,windspeed_10m")
	q.Set("timezone", "auto")

	var body struct {
		Current struct {
			Temperature float64 `json:"temperature_2m"`
			WeatherCode int     `json:"weathercode"`
			Humidity    float64 `json:"relativehumidity_2m"`
			WindSpeed   float64 `json:"windspeed_10m"`
		} `json:"current"`
	}
	if err := r.getJSON(ctx, r.forecastURL+"?"+q.Encode(), &body); err != nil {
		return nil, err
	}

	desc, ok := weatherCodes[body.Current.WeatherCode]
	if !ok {
		desc = "unknown conditions"
	}

	return map[string]any{
		"city":          in.City,
		"temperature_c": body.Current.Temperature,
		"temperature_f": body.Current.Temperature*9/5 + 32,
		"conditions":    desc,
		"humidity_pct":  body.Current.Humidity,
		"wind_kmh":      body.Current.WindSpeed,
	}, nil
}

func (r *WeatherResponder) getJSON(ctx context.Context, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}

	resp, err := r.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("weather api returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}
