package apis

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const (
	defaultJokeBaseURL = "https://official-joke-api.appspot.com"
	defaultCatBaseURL  = "https://api.thecatapi.com"
)

// Joke is a two-part joke: setup first, then the punchline.
type Joke struct {
	Setup     string `json:"setup"`
	Punchline string `json:"punchline"`
}

// JokeClient fetches random jokes.
type JokeClient struct {
	baseURL string
	client  *http.Client
}

func NewJokeClient() *JokeClient {
	return &JokeClient{
		baseURL: defaultJokeBaseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *JokeClient) Random(ctx context.Context) (*Joke, error) {
	var joke Joke
	if err := getJSON(ctx, c.client, c.baseURL+"/random_joke", &joke); err != nil {
		return nil, err
	}
	return &joke, nil
}

// CatClient fetches random cat pictures with hats.
type CatClient struct {
	baseURL string
	client  *http.Client
}

func NewCatClient() *CatClient {
	return &CatClient{
		baseURL: defaultCatBaseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// RandomHat returns the URL of a random cat image from the hats category.
func (c *CatClient) RandomHat(ctx context.Context) (string, error) {
	var images []struct {
		URL string `json:"url"`
	}
	if err := getJSON(ctx, c.client, c.baseURL+"/v1/images/search?category_ids=1", &images); err != nil {
		return "", err
	}
	if len(images) == 0 {
		return "", fmt.Errorf("cat API returned no images")
	}
	return images[0].URL, nil
}

func getJSON(ctx context.Context, client *http.Client, rawURL string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s returned status %d", rawURL, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
