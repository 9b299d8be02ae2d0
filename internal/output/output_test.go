package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skuseek/skuseek/internal/catalog"
	"github.com/skuseek/skuseek/internal/search"
)

func sampleResponse() *search.Response {
	return &search.Response{
		Results: []*search.Result{
			{
				ID:           "CHAIR-001",
				Score:        0.0325,
				KeywordRank:  1,
				SemanticRank: 2,
				MatchedTerms: []string{"chair", "red"},
				Product: &catalog.Product{
					Code:        "CHAIR-001",
					Description: "red fabric office chair",
					BasePrice:   100,
				},
			},
			{ID: "CHAIR-002", Score: 0.0161, KeywordRank: 2},
		},
		RequestID: "req-1",
		Took:      12 * time.Millisecond,
	}
}

func TestWriter_Status_PrintsIconAndMessage(t *testing.T) {
	buf := &bytes.Buffer{}
	w := New(buf)

	w.Status("🔍", "Loading catalog...")

	output := buf.String()
	assert.Contains(t, output, "🔍")
	assert.Contains(t, output, "Loading catalog...")
}

func TestWriter_Success_PrintsCheckmark(t *testing.T) {
	buf := &bytes.Buffer{}
	w := New(buf)

	w.Success("Index complete!")

	output := buf.String()
	assert.Contains(t, output, "✅")
	assert.Contains(t, output, "Index complete!")
}

func TestWriter_Warning_PrintsWarningIcon(t *testing.T) {
	buf := &bytes.Buffer{}
	w := New(buf)

	w.Warning("Embedder not available")

	output := buf.String()
	assert.Contains(t, output, "⚠️")
	assert.Contains(t, output, "Embedder not available")
}

func TestWriter_Error_PrintsErrorIcon(t *testing.T) {
	buf := &bytes.Buffer{}
	w := New(buf)

	w.Error("Failed to connect")

	output := buf.String()
	assert.Contains(t, output, "❌")
	assert.Contains(t, output, "Failed to connect")
}

func TestWriter_Results_ListsHits(t *testing.T) {
	buf := &bytes.Buffer{}
	w := New(buf)

	w.Results(sampleResponse())

	output := buf.String()
	assert.Contains(t, output, "CHAIR-001")
	assert.Contains(t, output, "red fabric office chair")
	assert.Contains(t, output, "$100.00")
	assert.Contains(t, output, "matched: chair, red")
	assert.Contains(t, output, "2 results")
	assert.NotContains(t, output, "degraded")
}

func TestWriter_Results_DegradedWarning(t *testing.T) {
	buf := &bytes.Buffer{}
	w := New(buf)

	resp := sampleResponse()
	resp.Degraded = true
	resp.FailedSources = []string{search.SourceSemantic}
	w.Results(resp)

	output := buf.String()
	assert.Contains(t, output, "degraded")
	assert.Contains(t, output, "semantic")
}

func TestWriter_Results_Empty(t *testing.T) {
	buf := &bytes.Buffer{}
	w := New(buf)

	w.Results(&search.Response{})

	assert.Contains(t, buf.String(), "no results")
}

func TestWriter_ResultsJSON_RoundTrips(t *testing.T) {
	buf := &bytes.Buffer{}
	w := New(buf)

	require.NoError(t, w.ResultsJSON(sampleResponse()))

	var decoded struct {
		Results []struct {
			ProductCode string  `json:"product_code"`
			Score       float64 `json:"score"`
			Description string  `json:"description"`
		} `json:"results"`
		RequestID string `json:"request_id"`
		TookMS    int64  `json:"took_ms"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))

	require.Len(t, decoded.Results, 2)
	assert.Equal(t, "CHAIR-001", decoded.Results[0].ProductCode)
	assert.Equal(t, "red fabric office chair", decoded.Results[0].Description)
	assert.Equal(t, "req-1", decoded.RequestID)
	assert.Equal(t, int64(12), decoded.TookMS)
}

func TestWriter_Stats_PrintsCounts(t *testing.T) {
	buf := &bytes.Buffer{}
	w := New(buf)

	w.Stats(search.EngineStats{
		CatalogCount: 120,
		VectorCount:  120,
	})

	output := buf.String()
	assert.Contains(t, output, "120")
	assert.Contains(t, output, "vector store")
}

func TestWriter_Progress_PrintsProgressBar(t *testing.T) {
	buf := &bytes.Buffer{}
	w := New(buf)

	w.Progress(50, 100, "Embedding products")

	output := buf.String()
	assert.Contains(t, output, "50%")
	assert.Contains(t, output, "Embedding products")
}

func TestWriter_Progress_ZeroTotal_NoOutput(t *testing.T) {
	buf := &bytes.Buffer{}
	w := New(buf)

	assert.NotPanics(t, func() {
		w.Progress(0, 0, "Processing")
	})
	assert.Empty(t, buf.String())
}

func TestProgressBar_Render(t *testing.T) {
	tests := []struct {
		name     string
		current  int
		total    int
		width    int
		wantFull int
	}{
		{name: "0 percent", current: 0, total: 100, width: 10, wantFull: 0},
		{name: "50 percent", current: 50, total: 100, width: 10, wantFull: 5},
		{name: "100 percent", current: 100, total: 100, width: 10, wantFull: 10},
		{name: "25 percent", current: 25, total: 100, width: 20, wantFull: 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bar := renderProgressBar(tt.current, tt.total, tt.width)

			filled := strings.Count(bar, "█")
			assert.Equal(t, tt.wantFull, filled)
			assert.Equal(t, tt.width, len([]rune(bar)))
		})
	}
}

func TestWriter_Newline_PrintsEmptyLine(t *testing.T) {
	buf := &bytes.Buffer{}
	w := New(buf)

	w.Newline()

	assert.Equal(t, "\n", buf.String())
}
