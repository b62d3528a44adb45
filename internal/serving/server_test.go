package serving

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kal4shnikova/credit-scoring-mlops/internal/config"
	"github.com/kal4shnikova/credit-scoring-mlops/internal/dataset"
	"github.com/kal4shnikova/credit-scoring-mlops/internal/logging"
	"github.com/kal4shnikova/credit-scoring-mlops/internal/model"
	"github.com/kal4shnikova/credit-scoring-mlops/internal/nn"
	"github.com/kal4shnikova/credit-scoring-mlops/internal/registry"
	"github.com/kal4shnikova/credit-scoring-mlops/internal/testsupport"
)

// promote builds a real model pipeline output and promotes it into the test
// config's registry.
func promote(t *testing.T, cfg *config.Config, version string) {
	t.Helper()

	ds := testsupport.SmallDataset(t, 300)
	split, err := dataset.StratifiedSplit(ds, 0.15, 0.15, 42)
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	scaler, err := dataset.FitScaler(split.Train)
	if err != nil {
		t.Fatalf("fit scaler: %v", err)
	}

	net := nn.NewNetwork(dataset.NumFeatures, []int{16, 8}, 0.3, 42)
	artifact, err := model.FromNetwork(net, version, dataset.FeatureNames)
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	quantized, err := model.Quantize(artifact)
	if err != nil {
		t.Fatalf("quantize: %v", err)
	}

	base := testsupport.BaseDir(cfg)
	modelPath := base + "/credit_scoring_model.json"
	quantPath := base + "/credit_scoring_model_quantized.json"
	scalerPath := base + "/scaler.json"
	if err := artifact.Save(modelPath); err != nil {
		t.Fatalf("save model: %v", err)
	}
	if err := quantized.Save(quantPath); err != nil {
		t.Fatalf("save quantized: %v", err)
	}
	if err := scaler.Save(scalerPath); err != nil {
		t.Fatalf("save scaler: %v", err)
	}

	entry := registry.Entry{
		Version:    version,
		PromotedAt: time.Now().UTC(),
		Trigger:    "manual",
		Accuracy:   0.81,
		AUC:        0.86,
	}
	files := map[string]string{
		registry.ModelFileName:     modelPath,
		registry.QuantizedFileName: quantPath,
		registry.ScalerFileName:    scalerPath,
	}
	if err := registry.Promote(cfg.Paths.RegistryDir, entry, files); err != nil {
		t.Fatalf("promote: %v", err)
	}
}

func newTestServer(t *testing.T, cfg *config.Config) *Server {
	t.Helper()
	loader := NewLoader(cfg, logging.NewNop())
	if err := loader.Reload(context.Background()); err != nil {
		t.Fatalf("reload: %v", err)
	}
	return NewServer(cfg, loader, logging.NewNop())
}

func validApplicant() Applicant {
	return Applicant{
		"age":                   35,
		"income":                52000,
		"loan_amount":           12000,
		"credit_history_length": 8,
		"num_open_accounts":     4,
		"debt_to_income":        0.3,
		"num_late_payments":     1,
		"employment_length":     6,
		"num_credit_inquiries":  2,
		"credit_utilization":    0.4,
	}
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = strings.NewReader(string(data))
	} else {
		reader = strings.NewReader("")
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(echoHeaderContentType, "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

const echoHeaderContentType = "Content-Type"

func TestHealthReportsServedModel(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	promote(t, cfg, "20260101120000")
	server := newTestServer(t, cfg)

	rec := doJSON(t, server.Handler(), http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d, want 200: %s", rec.Code, rec.Body.String())
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("parse body: %v", err)
	}
	if body["status"] != "healthy" {
		t.Errorf("status %v, want healthy", body["status"])
	}
	if body["model_version"] != "20260101120000" {
		t.Errorf("model version %v", body["model_version"])
	}
	if body["model_loaded"] != true || body["scaler_loaded"] != true {
		t.Errorf("load flags model=%v scaler=%v, want both true", body["model_loaded"], body["scaler_loaded"])
	}
	if ts, _ := body["timestamp"].(string); ts == "" {
		t.Error("health response missing timestamp")
	} else if _, err := time.Parse(time.RFC3339, ts); err != nil {
		t.Errorf("health timestamp %q not RFC3339: %v", ts, err)
	}
}

func TestHealthDegradedWithoutModel(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	server := newTestServer(t, cfg)

	rec := doJSON(t, server.Handler(), http.MethodGet, "/health", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status %d, want 503", rec.Code)
	}
}

func TestPredictScoresApplicant(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	promote(t, cfg, "20260101120000")
	server := newTestServer(t, cfg)

	rec := doJSON(t, server.Handler(), http.MethodPost, "/predict", validApplicant())
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d, want 200: %s", rec.Code, rec.Body.String())
	}
	var prediction Prediction
	if err := json.Unmarshal(rec.Body.Bytes(), &prediction); err != nil {
		t.Fatalf("parse prediction: %v", err)
	}
	if prediction.Probability < 0 || prediction.Probability > 1 {
		t.Errorf("probability %v out of [0, 1]", prediction.Probability)
	}
	if prediction.RiskLevel == "" {
		t.Error("risk level missing")
	}
	if prediction.ModelVersion != "20260101120000" {
		t.Errorf("model version %q", prediction.ModelVersion)
	}
	if _, err := time.Parse(time.RFC3339, prediction.Timestamp); err != nil {
		t.Errorf("timestamp %q not RFC3339: %v", prediction.Timestamp, err)
	}
	wantPredicted := 0
	if prediction.Probability >= 0.5 {
		wantPredicted = 1
	}
	if prediction.Prediction != wantPredicted {
		t.Errorf("prediction %d inconsistent with probability %v", prediction.Prediction, prediction.Probability)
	}
}

func TestPredictResponseFieldNames(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	promote(t, cfg, "20260101120000")
	server := newTestServer(t, cfg)

	rec := doJSON(t, server.Handler(), http.MethodPost, "/predict", validApplicant())
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d, want 200: %s", rec.Code, rec.Body.String())
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("parse body: %v", err)
	}
	for _, key := range []string{"prediction", "probability", "risk_level", "timestamp", "model_version"} {
		if _, ok := body[key]; !ok {
			t.Errorf("response missing %q: %s", key, rec.Body.String())
		}
	}
	if len(body) != 5 {
		t.Errorf("response carries %d fields, want 5: %s", len(body), rec.Body.String())
	}
}

func TestPredictRejectsInvalidInput(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	promote(t, cfg, "20260101120000")
	server := newTestServer(t, cfg)

	cases := []struct {
		name   string
		mutate func(a Applicant)
	}{
		{"missing feature", func(a Applicant) { delete(a, "age") }},
		{"age below minimum", func(a Applicant) { a["age"] = 12 }},
		{"utilization above maximum", func(a Applicant) { a["credit_utilization"] = 1.5 }},
		{"unknown feature", func(a Applicant) { a["shoe_size"] = 42 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			applicant := validApplicant()
			tc.mutate(applicant)
			rec := doJSON(t, server.Handler(), http.MethodPost, "/predict", applicant)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status %d, want 400: %s", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestPredictBatch(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	promote(t, cfg, "20260101120000")
	server := newTestServer(t, cfg)

	req := BatchRequest{Applications: []Applicant{validApplicant(), validApplicant(), validApplicant()}}
	rec := doJSON(t, server.Handler(), http.MethodPost, "/predict/batch", req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d, want 200: %s", rec.Code, rec.Body.String())
	}
	var resp BatchResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	if resp.BatchSize != 3 || len(resp.Predictions) != 3 {
		t.Errorf("batch size %d with %d predictions, want 3", resp.BatchSize, len(resp.Predictions))
	}

	var raw map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &raw); err != nil {
		t.Fatalf("parse raw response: %v", err)
	}
	for _, key := range []string{"predictions", "batch_size"} {
		if _, ok := raw[key]; !ok {
			t.Errorf("batch response missing %q: %s", key, rec.Body.String())
		}
	}
}

func TestPredictBatchEnforcesLimit(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Serving.MaxBatchSize = 2
	promote(t, cfg, "20260101120000")
	server := newTestServer(t, cfg)

	req := BatchRequest{Applications: []Applicant{validApplicant(), validApplicant(), validApplicant()}}
	rec := doJSON(t, server.Handler(), http.MethodPost, "/predict/batch", req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status %d, want 400", rec.Code)
	}

	rec = doJSON(t, server.Handler(), http.MethodPost, "/predict/batch", BatchRequest{})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("empty batch status %d, want 400", rec.Code)
	}
}

func TestModelInfo(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	promote(t, cfg, "20260101120000")
	server := newTestServer(t, cfg)

	rec := doJSON(t, server.Handler(), http.MethodGet, "/model/info", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d, want 200", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("parse body: %v", err)
	}
	if body["model_version"] != "20260101120000" {
		t.Errorf("model version %v", body["model_version"])
	}
	if body["accuracy"].(float64) != 0.81 {
		t.Errorf("accuracy %v", body["accuracy"])
	}
}

func TestMetricsEndpoint(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	promote(t, cfg, "20260101120000")
	server := newTestServer(t, cfg)

	// Generate one scored request so the counters have samples.
	doJSON(t, server.Handler(), http.MethodPost, "/predict", validApplicant())
	server.ObserveDrift(0.4, 4)

	rec := doJSON(t, server.Handler(), http.MethodGet, "/metrics", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d, want 200", rec.Code)
	}
	text := rec.Body.String()
	for _, metric := range []string{
		"credit_scoring_requests_total",
		"credit_scoring_request_duration_seconds",
		"credit_scoring_predictions_total",
		"credit_scoring_active_requests",
	} {
		if !strings.Contains(text, metric) {
			t.Errorf("metrics output missing %s", metric)
		}
	}
	if !strings.Contains(text, "credit_scoring_dataset_drift_score 0.4") {
		t.Error("metrics output missing drift score gauge")
	}
	if !strings.Contains(text, "credit_scoring_drifted_columns 4") {
		t.Error("metrics output missing drifted columns gauge")
	}
}

func TestLoaderReloadTracksManifest(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	loader := NewLoader(cfg, logging.NewNop())
	if err := loader.Reload(context.Background()); err != nil {
		t.Fatalf("reload empty registry: %v", err)
	}
	if loader.Current() != nil {
		t.Fatal("empty registry should serve no model")
	}

	promote(t, cfg, "20260101120000")
	if err := loader.Reload(context.Background()); err != nil {
		t.Fatalf("reload: %v", err)
	}
	first := loader.Current()
	if first == nil || first.Version != "20260101120000" {
		t.Fatalf("loaded %+v", first)
	}

	promote(t, cfg, "20260202120000")
	if err := loader.Reload(context.Background()); err != nil {
		t.Fatalf("reload new version: %v", err)
	}
	second := loader.Current()
	if second == nil || second.Version != "20260202120000" {
		t.Fatalf("loaded %+v after repromotion", second)
	}
}
