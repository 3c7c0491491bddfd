package shopify

import (
	"context"
	"encoding/json"
	"fmt"

	"archie-core-integrations-layer/internal/domain"
	"archie-core-integrations-layer/internal/ports"
)

const webPixelCreateMutation = `mutation webPixelCreate($webPixel: WebPixelInput!) {
  webPixelCreate(webPixel: $webPixel) {
    userErrors {
      code
      field
      message
    }
    webPixel {
      id
      settings
    }
  }
}`

type webPixelCreateData struct {
	WebPixelCreate struct {
		UserErrors []struct {
			Code    string   `json:"code"`
			Field   []string `json:"field"`
			Message string   `json:"message"`
		} `json:"userErrors"`
		WebPixel *struct {
			ID       string          `json:"id"`
			Settings json.RawMessage `json:"settings"`
		} `json:"webPixel"`
	} `json:"webPixelCreate"`
}

// WebPixelService creates web pixels through the rate-limited client
type WebPixelService struct {
	client *GraphQLClient
}

// NewWebPixelService creates a new web pixel service
func NewWebPixelService(client *GraphQLClient) *WebPixelService {
	return &WebPixelService{client: client}
}

// CreateWebPixel runs webPixelCreate. A non-empty userErrors list is
// returned as a PixelCreationRejectedError.
func (s *WebPixelService) CreateWebPixel(ctx context.Context, credential ports.PlatformCredential, settings string) (*domain.WebPixel, error) {
	resp, err := s.client.Execute(ctx, credential, ports.GraphQLRequest{
		Query:         webPixelCreateMutation,
		OperationName: "webPixelCreate",
		Variables: map[string]interface{}{
			"webPixel": map[string]interface{}{
				"settings": settings,
			},
		},
	})
	if err != nil {
		return nil, err
	}

	var data webPixelCreateData
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		return nil, fmt.Errorf("failed to decode webPixelCreate response: %w", err)
	}

	result := data.WebPixelCreate
	if len(result.UserErrors) > 0 {
		messages := make([]string, 0, len(result.UserErrors))
		for _, ue := range result.UserErrors {
			messages = append(messages, ue.Message)
		}
		return nil, &domain.PixelCreationRejectedError{Messages: messages}
	}
	if result.WebPixel == nil || result.WebPixel.ID == "" {
		return nil, fmt.Errorf("webPixelCreate returned no pixel")
	}

	return &domain.WebPixel{
		ID:       result.WebPixel.ID,
		Settings: settingsString(result.WebPixel.Settings),
	}, nil
}

// settingsString unwraps settings returned either as a JSON string or as an object
func settingsString(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}
