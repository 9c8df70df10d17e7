package prediction

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

const maxResponseBytes = 1 << 20 // 1MB

// Predictor is the transport the pipeline drives. *Client is the production implementation.
type Predictor interface {
	Predict(ctx context.Context, in Input) (Outcome, error)
}

type predictRequest struct {
	DrugName      string `json:"drug_name"`
	ExcipientName string `json:"excipient_name"`
	Smiles        string `json:"smiles"`
}

// RemoteResponse is the success body of POST /predict. Pointer fields let the
// validator tell a missing field from a zero value.
type RemoteResponse struct {
	Status          string   `json:"status"`
	Message         string   `json:"message"`
	Prediction      *string  `json:"prediction" validate:"required"`
	Probability     *float64 `json:"probability" validate:"required,gte=0,lte=1"`
	RiskLevel       *string  `json:"risk_level" validate:"required"`
	AnalysisSummary *string  `json:"analysis_summary" validate:"required"`
}

type errorResponse struct {
	Detail json.RawMessage `json:"detail"`
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	validate   *validator.Validate
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		validate:   validator.New(),
	}
}

func (c *Client) Predict(ctx context.Context, in Input) (Outcome, error) {
	body, err := json.Marshal(predictRequest{
		DrugName:      strings.TrimSpace(in.DrugName),
		ExcipientName: strings.TrimSpace(in.ExcipientName),
		Smiles:        in.StructureCode,
	})
	if err != nil {
		return Outcome{}, fmt.Errorf("encode prediction request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/predict", bytes.NewReader(body))
	if err != nil {
		return Outcome{}, &RemoteError{Message: "prediction failed", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Outcome{}, &RemoteError{Message: transportMessage(err), Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return Outcome{}, &RemoteError{StatusCode: resp.StatusCode, Message: "prediction failed", Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Outcome{}, &RemoteError{StatusCode: resp.StatusCode, Message: detailMessage(data, "prediction failed")}
	}

	var payload RemoteResponse
	if err := json.Unmarshal(data, &payload); err != nil {
		return Outcome{}, &RemoteError{StatusCode: resp.StatusCode, Message: "malformed prediction response", Err: err}
	}
	if strings.EqualFold(payload.Status, "error") {
		msg := payload.Message
		if msg == "" {
			msg = "prediction failed"
		}
		return Outcome{}, &RemoteError{StatusCode: resp.StatusCode, Message: msg}
	}
	if err := c.validate.Struct(payload); err != nil {
		return Outcome{}, &RemoteError{StatusCode: resp.StatusCode, Message: "malformed prediction response", Err: err}
	}

	outcome, err := Normalize(payload)
	if err != nil {
		return Outcome{}, &RemoteError{StatusCode: resp.StatusCode, Message: "malformed prediction response", Err: err}
	}
	return outcome, nil
}

var paragraphBreak = regexp.MustCompile(`\r?\n[ \t]*\r?\n`)

// Normalize maps a validated remote response onto an Outcome.
func Normalize(r RemoteResponse) (Outcome, error) {
	if r.Prediction == nil || r.Probability == nil || r.RiskLevel == nil || r.AnalysisSummary == nil {
		return Outcome{}, errors.New("incomplete prediction response")
	}
	risk, err := ParseRiskLevel(*r.RiskLevel)
	if err != nil {
		return Outcome{}, err
	}

	var lines []string
	for _, p := range paragraphBreak.Split(*r.AnalysisSummary, -1) {
		if p = strings.TrimSpace(p); p != "" {
			lines = append(lines, p)
		}
	}
	if lines == nil {
		lines = []string{}
	}

	return Outcome{
		Compatible:   *r.Prediction == CompatibleLabel,
		Probability:  math.Round(*r.Probability*1000) / 10,
		RiskLevel:    risk,
		SummaryLines: lines,
	}, nil
}

// detailMessage extracts {"detail": "..."}; non-string details (e.g. validation lists) fall back.
func detailMessage(data []byte, fallback string) string {
	var body errorResponse
	if err := json.Unmarshal(data, &body); err != nil || len(body.Detail) == 0 {
		return fallback
	}
	var detail string
	if err := json.Unmarshal(body.Detail, &detail); err != nil || strings.TrimSpace(detail) == "" {
		return fallback
	}
	return detail
}

func transportMessage(err error) string {
	var netErr interface{ Timeout() bool }
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return "prediction service timed out"
	}
	return "prediction service unreachable"
}
