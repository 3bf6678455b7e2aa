package zoho

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	httpclient "estate-assistant/internal/common/http"
)

type CRMClient struct {
	oauthToken string
	baseURL    string
	httpClient *httpclient.Client
}

// Lead is the subset of the Zoho Leads module we write.
type Lead struct {
	LastName    string `json:"Last_Name"`
	Company     string `json:"Company,omitempty"`
	Phone       string `json:"Phone,omitempty"`
	LeadSource  string `json:"Lead_Source,omitempty"`
	Description string `json:"Description,omitempty"`
}

type upsertResponse struct {
	Data []struct {
		Code    string `json:"code"`
		Details struct {
			ID string `json:"id"`
		} `json:"details"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"data"`
}

func NewCRMClient(oauthToken, baseURL string, hc *httpclient.Client) *CRMClient {
	if baseURL == "" {
		baseURL = "https://www.zohoapis.com/crm/v3"
	}
	if hc == nil {
		hc = httpclient.NewClientFrom(nil)
	}
	return &CRMClient{
		oauthToken: oauthToken,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: hc,
	}
}

// CreateLead inserts one lead and returns its Zoho record id.
func (c *CRMClient) CreateLead(ctx context.Context, lead *Lead) (string, error) {
	payload := map[string]interface{}{
		"data": []Lead{*lead},
	}
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal lead: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/Leads", bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Zoho-oauthtoken "+c.oauthToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return "", &httpclient.StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var out upsertResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if len(out.Data) == 0 {
		return "", fmt.Errorf("no data in response")
	}
	if out.Data[0].Status != "success" {
		return "", fmt.Errorf("lead creation failed: %s", out.Data[0].Message)
	}
	return out.Data[0].Details.ID, nil
}
