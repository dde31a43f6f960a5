package parser

import (
	"encoding/json"
	"testing"
	"time"

	"tender-scraper/models"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testBase = "https://portal.example.com"

func extract(t *testing.T, cfg Config, html, base string) *Result {
	t.Helper()
	res, err := NewExtractor(cfg, nil).ParseHTML(html, base)
	require.NoError(t, err)
	return res
}

func TestParseHTMLTitleAndClosingDate(t *testing.T) {
	html := `<html><body><table>
		<tr><th>Title</th><th>Closing Date</th></tr>
		<tr><td><a href="/view/1">Road Repair RFP</a></td><td>2024-01-01</td></tr>
	</table></body></html>`

	res := extract(t, DefaultConfig(), html, testBase)
	require.Len(t, res.Records, 1)
	assert.Equal(t, StrategyLargestTable, res.Strategy)

	rec := res.Records[0]
	assert.Equal(t, "Road Repair RFP", rec.Text("Title"))
	assert.Equal(t, "2024-01-01", rec.Text("Closing Date"))
	want := []models.Link{{Text: "Road Repair RFP", URL: "https://portal.example.com/view/1"}}
	if diff := cmp.Diff(want, rec.Links("Title_links")); diff != "" {
		t.Errorf("Title_links mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []string{"Title", "Title_links", "Closing Date", models.FieldTableIndex, models.FieldRowIndex}, rec.Keys())
}

func TestParseHTMLTheadHeaders(t *testing.T) {
	html := `<table class="dataTable">
		<thead><tr><th>Ref</th><th>Buyer</th></tr></thead>
		<tbody>
			<tr><td>A-1</td><td>City of Ottawa</td></tr>
			<tr><td>A-2</td><td>Region of Peel</td></tr>
			<tr><td>A-3</td><td>Town of Milton</td></tr>
		</tbody>
	</table>`

	res := extract(t, DefaultConfig(), html, testBase)
	assert.Equal(t, StrategyStructural, res.Strategy)
	assert.Equal(t, HeaderFromThead, res.Headers.Source)
	require.Len(t, res.Records, 3)

	for i, rec := range res.Records {
		assert.Equal(t, []string{"Ref", "Buyer", models.FieldTableIndex, models.FieldRowIndex}, rec.Keys())
		idx, _ := rec.Get(models.FieldRowIndex)
		assert.Equal(t, i, idx)
	}
	assert.Equal(t, "Region of Peel", res.Records[1].Text("Buyer"))
}

func TestParseHTMLLargestTableSelected(t *testing.T) {
	html := `<table></table>
		<table><tr><td>a</td></tr><tr><td>b</td></tr></table>
		<table>
			<tr><td>1</td></tr><tr><td>2</td></tr><tr><td>3</td></tr><tr><td>4</td></tr><tr><td>5</td></tr>
			<tr><td>6</td></tr><tr><td>7</td></tr><tr><td>8</td></tr><tr><td>9</td></tr><tr><td>10</td></tr>
		</table>`

	res := extract(t, DefaultConfig(), html, testBase)
	assert.Equal(t, StrategyLargestTable, res.Strategy)
	assert.Equal(t, 2, res.TableIndex)
	assert.Len(t, res.Records, 10)
	assert.Equal(t, HeaderSynthesized, res.Headers.Source)
	assert.Equal(t, "1", res.Records[0].Text("Column_1"))
}

func TestParseHTMLLargestTableTieKeepsFirst(t *testing.T) {
	html := `<table><tr><td>first</td></tr><tr><td>x</td></tr></table>
		<table><tr><td>second</td></tr><tr><td>y</td></tr></table>`

	res := extract(t, DefaultConfig(), html, testBase)
	assert.Equal(t, 0, res.TableIndex)
	assert.Equal(t, "first", res.Records[0].Text("Column_1"))
}

func TestParseHTMLNothingFound(t *testing.T) {
	tests := []struct {
		name string
		html string
	}{
		{"empty document", ``},
		{"plain text", `<div class="news">Weather today is sunny and pleasant for all.</div>`},
		{"malformed markup", `<div><p>unclosed <span class=">`},
		{"empty table", `<table></table>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := extract(t, DefaultConfig(), tt.html, testBase)
			assert.True(t, res.Empty())
			assert.Equal(t, StrategyNone, res.Strategy)
		})
	}
}

func TestParseHTMLDropsEmptyRows(t *testing.T) {
	html := `<table>
		<tr><th>Title</th><th>Status</th></tr>
		<tr><td> </td><td></td></tr>
		<tr><td></td><td>Open</td></tr>
		<tr><td data-id="9">  </td><td>
		</td></tr>
		<tr><td data-id=" ">  </td><td></td></tr>
	</table>`

	res := extract(t, DefaultConfig(), html, testBase)
	require.Len(t, res.Records, 2)
	assert.Equal(t, "Open", res.Records[0].Text("Status"))
	idx, _ := res.Records[0].Get(models.FieldRowIndex)
	assert.Equal(t, 1, idx)

	attrOnly := res.Records[1]
	assert.Equal(t, "9", attrOnly.Text("Title_data-id"))
	assert.Equal(t, "", attrOnly.Text("Title"))
	idx, _ = attrOnly.Get(models.FieldRowIndex)
	assert.Equal(t, 2, idx)
}

func TestParseHTMLOverflowColumns(t *testing.T) {
	html := `<table>
		<tr><td>Title</td><td>Status</td></tr>
		<tr><td>Snow clearing</td><td>Open</td><td>extra one</td><td>extra two</td></tr>
	</table>`

	res := extract(t, DefaultConfig(), html, testBase)
	require.Len(t, res.Records, 1)
	rec := res.Records[0]
	assert.Equal(t, "extra one", rec.Text("Column_3"))
	assert.Equal(t, "extra two", rec.Text("Column_4"))
	assert.Equal(t, []string{"Title", "Status", "Column_3", "Column_4"}, rec.Keys()[:4])
}

func TestParseHTMLCellDetails(t *testing.T) {
	html := `<table id="tenderList">
		<tr><th>Title</th><th>Documents</th></tr>
		<tr>
			<td data-id="42" data-status="open">Water   main
				replacement</td>
			<td>
				<a href="javascript:void(0)">print</a>
				<a href="//cdn.example.com/doc.pdf">Spec PDF</a>
				<a href="addendum.html">Addendum</a>
			</td>
		</tr>
	</table>`

	res := extract(t, DefaultConfig(), html, "https://portal.example.com/esop/list.si")
	require.Len(t, res.Records, 1)
	rec := res.Records[0]

	assert.Equal(t, "Water main replacement", rec.Text("Title"))
	assert.Equal(t, "42", rec.Text("Title_data-id"))
	assert.Equal(t, "open", rec.Text("Title_data-status"))

	want := []models.Link{
		{Text: "Spec PDF", URL: "https://cdn.example.com/doc.pdf"},
		{Text: "Addendum", URL: "https://portal.example.com/esop/addendum.html"},
	}
	if diff := cmp.Diff(want, rec.Links("Documents_links")); diff != "" {
		t.Errorf("Documents_links mismatch (-want +got):\n%s", diff)
	}
}

func TestParseHTMLStructuralBeatsContent(t *testing.T) {
	html := `<table><tr><td>tender notices</td></tr></table>
		<table id="opportunityGrid"><tr><td>Bridge deck</td></tr></table>`

	res := extract(t, DefaultConfig(), html, testBase)
	assert.Equal(t, StrategyStructural, res.Strategy)
	assert.Equal(t, 1, res.TableIndex)
	assert.Equal(t, "Bridge deck", res.Records[0].Text("Column_1"))
}

func TestParseHTMLCascadeSkipsEmptyCandidate(t *testing.T) {
	html := `<table class="list"><tr><td></td></tr></table>
		<table><tr><td>Open tender for culvert works</td></tr></table>`

	res := extract(t, DefaultConfig(), html, testBase)
	assert.Equal(t, StrategyContent, res.Strategy)
	require.Len(t, res.Records, 1)
}

func TestParseHTMLIgnoresNestedTableRows(t *testing.T) {
	html := `<table>
		<tr><td><table>
			<tr><td>n1</td></tr><tr><td>n2</td></tr><tr><td>n3</td></tr>
		</table></td></tr>
	</table>`

	res := extract(t, DefaultConfig(), html, testBase)
	assert.Equal(t, 1, res.TableIndex)
	assert.Len(t, res.Records, 3)
}

func TestParseHTMLContainerFallback(t *testing.T) {
	html := `<section>
		<div class="tender-item">Road resurfacing tender for Springfield, closing March 3rd 2025 <a href="detail?id=5">view</a></div>
		<div class="tender-item">short</div>
		<div class="tender-item">Community garden volunteers meet every Saturday morning at the park</div>
		<div class="footer">Copyright notice for this site and more words</div>
	</section>`

	res := extract(t, DefaultConfig(), html, "https://portal.example.com/esop/public/")
	assert.Equal(t, StrategyContainer, res.Strategy)
	require.Len(t, res.Records, 1)

	rec := res.Records[0]
	assert.Equal(t, "Road resurfacing tender for Springfield, closing March 3rd 2025 view", rec.Text(models.FieldContent))
	assert.Equal(t, "div", rec.Text(models.FieldElementType))
	cls, _ := rec.Get(models.FieldElementClass)
	assert.Equal(t, []string{"tender-item"}, cls)
	idx, _ := rec.Get(models.FieldContainerIndex)
	assert.Equal(t, 0, idx)
	assert.Equal(t, "https://portal.example.com/esop/public/detail?id=5", rec.Links(models.FieldLinks)[0].URL)
}

func TestParseHTMLContainerNeedsNoTables(t *testing.T) {
	html := `<table></table><div class="tender-item">Road resurfacing tender for Springfield, closing March 3rd 2025</div>`

	res := extract(t, DefaultConfig(), html, testBase)
	assert.NotEqual(t, StrategyContainer, res.Strategy)
}

func TestParseHTMLLooseText(t *testing.T) {
	html := `<body><p>Closing date for this procurement is March 3rd</p><span>hi there</span><h2>RFQ</h2></body>`

	res := extract(t, DefaultConfig(), html, testBase)
	assert.Equal(t, StrategyLooseText, res.Strategy)
	require.Len(t, res.Records, 1)
	assert.Equal(t, "p", res.Records[0].Text(models.FieldElementType))
	assert.Equal(t, "Closing date for this procurement is March 3rd", res.Records[0].Text(models.FieldContent))
}

func TestParseHTMLScriptJSON(t *testing.T) {
	html := `<html><head><script>
		var a = {"title": "Bridge RFP", "id": 7};
		var b = {"color": "red"};
	</script></head><body></body></html>`

	off := extract(t, DefaultConfig(), html, testBase)
	assert.True(t, off.Empty())

	cfg := DefaultConfig()
	cfg.ScanScripts = true
	res := extract(t, cfg, html, testBase)
	assert.Equal(t, StrategyScriptJSON, res.Strategy)
	require.Len(t, res.Records, 1)
	rec := res.Records[0]
	assert.Equal(t, "Bridge RFP", rec.Text("title"))
	assert.Equal(t, "json_script", rec.Text(models.FieldDataSource))
	id, _ := rec.Get("id")
	assert.Equal(t, 7, id)
}

func TestParseHTMLDuplicateHeaders(t *testing.T) {
	html := `<table>
		<tr><th>Date</th><th>Date</th><th></th></tr>
		<tr><td>2024-01-01</td><td>2024-02-01</td><td>x</td></tr>
	</table>`

	res := extract(t, DefaultConfig(), html, testBase)
	require.Len(t, res.Records, 1)
	assert.Equal(t, []string{"Date", "Date_2", "Column_3"}, res.Headers.Names)
	assert.Equal(t, "2024-02-01", res.Records[0].Text("Date_2"))
}

func TestParseHTMLDeterministic(t *testing.T) {
	html := `<table class="dataTable">
		<tr><th>Title</th><th>Closing</th></tr>
		<tr><td data-x="1"><a href="/a">A</a></td><td>1</td></tr>
		<tr><td>B</td><td>2</td></tr>
	</table>`

	first, err := json.Marshal(extract(t, DefaultConfig(), html, testBase).Records)
	require.NoError(t, err)
	second, err := json.Marshal(extract(t, DefaultConfig(), html, testBase).Records)
	require.NoError(t, err)
	assert.Equal(t, string(first), string(second))
}

type recordingObserver struct {
	NopObserver
	tried   []Strategy
	dropped int
}

func (o *recordingObserver) StrategyTried(s Strategy, _ bool) { o.tried = append(o.tried, s) }
func (o *recordingObserver) RowDropped(Strategy, int)         { o.dropped++ }

func TestExtractorReportsToObserver(t *testing.T) {
	html := `<table><tr><td>tender one</td></tr><tr><td></td></tr></table>`

	obs := &recordingObserver{}
	res, err := NewExtractor(DefaultConfig(), obs).ParseHTML(html, testBase)
	require.NoError(t, err)
	assert.Len(t, res.Records, 1)
	assert.Equal(t, []Strategy{StrategyStructural, StrategyContent}, obs.tried)
	assert.Equal(t, 1, obs.dropped)
}

func TestAnnotate(t *testing.T) {
	rec := models.NewRecord()
	rec.Set("Title", "x")
	at := time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC)

	Annotate([]*models.Record{rec}, "https://portal.example.com/list", at)
	assert.Equal(t, "2024-05-01T12:30:00Z", rec.Text(models.FieldScrapedAt))
	assert.Equal(t, "https://portal.example.com/list", rec.Text(models.FieldSourceURL))
}

func TestStrategyString(t *testing.T) {
	tests := []struct {
		s    Strategy
		want string
	}{
		{StrategyStructural, "structural"},
		{StrategyLargestTable, "largest_table"},
		{StrategyScriptJSON, "script_json"},
		{Strategy(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.s.String(); got != tt.want {
			t.Errorf("Strategy(%d).String() = %q, want %q", tt.s, got, tt.want)
		}
	}
}
