// clue-duel-system/services/judge_client.go
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"

	"clue-duel-system/utils"
)

// Judge decides whether a free-text guess is close enough to the correct
// answer. It is advisory: callers treat any failure as "incorrect" and never
// block play on it.
type Judge interface {
	Judge(ctx context.Context, correctName, userGuess string) (bool, error)
}

// JudgeServiceClient calls the external natural-language judgment service.
type JudgeServiceClient struct {
	BaseURL string
	Token   string
	Client  *http.Client
}

type judgeResponse struct {
	IsCorrect bool `json:"is_correct"`
}

func NewJudgeServiceClient(baseURL, token string) *JudgeServiceClient {
	return &JudgeServiceClient{
		BaseURL: baseURL,
		Token:   token,
		Client:  utils.HTTPClient,
	}
}

// Judge calls /judge on the judgment service. The original, non-normalized
// name and guess are sent so the service can apply its own matching.
func (c *JudgeServiceClient) Judge(ctx context.Context, correctName, userGuess string) (bool, error) {
	url := fmt.Sprintf("%s/judge", c.BaseURL)

	reqBody := map[string]interface{}{
		"correct_name": correctName,
		"user_guess":   userGuess,
	}
	jsonData, _ := json.Marshal(reqBody)

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return false, err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.Token)

	resp, err := c.Client.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	if resp.StatusCode != http.StatusOK {
		log.Printf("JudgeService /judge returned %d: %s", resp.StatusCode, string(body))
		return false, fmt.Errorf("judgment call failed: %d", resp.StatusCode)
	}

	var out judgeResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return false, err
	}
	return out.IsCorrect, nil
}
