package main

import (
	"fmt"

	"github.com/go-resty/resty/v2"
)

func newClient(token string) *resty.Client {
	c := resty.New()
	if token != "" {
		c.SetAuthToken(token)
	}
	return c
}

func doGet(token, url string, query map[string]string) ([]byte, error) {
	resp, err := newClient(token).R().SetQueryParams(query).Get(url)
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, fmt.Errorf("http %d: %s", resp.StatusCode(), resp.String())
	}
	return resp.Body(), nil
}

func doPostJSON(token, url string, payload interface{}) ([]byte, error) {
	resp, err := newClient(token).R().
		SetHeader("Content-Type", "application/json").
		SetBody(payload).
		Post(url)
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, fmt.Errorf("http %d: %s", resp.StatusCode(), resp.String())
	}
	return resp.Body(), nil
}
