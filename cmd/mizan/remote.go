package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/hyperjump/mizan/internal/cli"
	"github.com/hyperjump/mizan/internal/models"
)

func askViaHTTP(ctx context.Context, serverURL, question string) (*models.AskResponse, error) {
	body, err := json.Marshal(models.AskRequest{Question: question})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL(serverURL, "/api/v1/ask"), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	var response models.AskResponse
	if err := doJSON(req, &response); err != nil {
		return nil, err
	}
	return &response, nil
}

func retrieveViaHTTP(ctx context.Context, serverURL string, query *models.RetrieveQuery) (*models.RetrieveResponse, error) {
	params := url.Values{}
	params.Set("q", query.Query)
	if query.TopK > 0 {
		params.Set("top_k", strconv.Itoa(query.TopK))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL(serverURL, "/api/v1/retrieve")+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	var response models.RetrieveResponse
	if err := doJSON(req, &response); err != nil {
		return nil, err
	}
	return &response, nil
}

func statusViaHTTP(ctx context.Context, serverURL string) (*cli.Status, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL(serverURL, "/api/v1/status"), nil)
	if err != nil {
		return nil, err
	}
	var s cli.Status
	if err := doJSON(req, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func apiURL(serverURL, path string) string {
	return strings.TrimRight(serverURL, "/") + path
}

func doJSON(req *http.Request, out interface{}) error {
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
